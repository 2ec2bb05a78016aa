package main

import (
	"errors"
	"testing"
	"time"

	"citegraph/internal/ingest"
	"citegraph/internal/models"
	"citegraph/internal/workflows"

	"github.com/stretchr/testify/require"
)

func TestIDFromURL(t *testing.T) {
	require.Equal(t, "1706.03762v7", idFromURL("https://arxiv.org/pdf/1706.03762v7.pdf"))
	require.Equal(t, "1706.03762", idFromURL("https://arxiv.org/pdf/1706.03762"))
	require.Len(t, idFromURL("https://example.com/"), 36)
}

func TestOutcome(t *testing.T) {
	ok := outcome("1", ingest.Result{Metadata: models.PaperMetadata{ArxivID: "1"}, TextPoints: 4, References: []string{"a", "b"}}, nil)
	require.Equal(t, workflows.StatusDone, ok.Status)
	require.Equal(t, 2, ok.References)

	failed := outcome("2", ingest.Result{}, &ingest.StepError{PaperID: "2", State: ingest.StateGraphUpserting, Err: errors.New("down")})
	require.Equal(t, workflows.StatusFailed, failed.Status)
	require.Equal(t, "graph_upserting", failed.FailedState)

	missing := outcome("3", ingest.Result{}, &ingest.StepError{PaperID: "3", State: ingest.StateFetching, Err: ingest.ErrUnknownPaper})
	require.Equal(t, workflows.StatusNotFound, missing.Status)
}

func TestRecentDay(t *testing.T) {
	now := time.Date(2024, 3, 1, 23, 30, 0, 0, time.FixedZone("PST", -8*3600))
	day, err := recentDay("", now)
	require.NoError(t, err)
	require.Equal(t, "2024-03-02", day)

	day, err = recentDay(" 2017-06-12 ", now)
	require.NoError(t, err)
	require.Equal(t, "2017-06-12", day)

	_, err = recentDay("12/06/2017", now)
	require.Error(t, err)
}
