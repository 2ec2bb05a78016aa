package ingest

import (
	"context"
	"errors"
	"testing"

	"citegraph/internal/graph"
	"citegraph/internal/models"

	"github.com/stretchr/testify/require"
)

func TestMatchStubsPrefersExactThenBaseID(t *testing.T) {
	got := matchStubs(
		[]string{"2001.00001", "2001.00002v2", "2001.00003"},
		[]models.PaperMetadata{
			{ArxivID: "2001.00001v4", Title: "versioned answer"},
			{ArxivID: "2001.00002v2", Title: "exact answer"},
			{ArxivID: "2101.99999", Title: "unrelated"},
		},
	)
	require.Len(t, got, 2)
	byID := map[string]string{}
	for _, m := range got {
		byID[m.ArxivID] = m.Title
	}
	require.Equal(t, "exact answer", byID["2001.00002v2"])
	require.Equal(t, "versioned answer", byID["2001.00001"])
}

func seedStubs(t *testing.T, g graph.Store, ids ...string) {
	t.Helper()
	require.NoError(t, g.AddPaper(context.Background(), models.PaperMetadata{ArxivID: "2400.00001", Title: "src", Abstract: "abs"}))
	require.NoError(t, g.AddCitations(context.Background(), "2400.00001", ids))
}

func TestSweepResolvesStubsInOneLookup(t *testing.T) {
	g := graph.NewMemory()
	seedStubs(t, g, "2001.00001", "2001.00002", "2001.00003")
	lookup := &fakeLookup{papers: []models.PaperMetadata{
		{ArxivID: "2001.00001v1", Title: "one", Abstract: "abs one"},
		{ArxivID: "2001.00003v2", Title: "three", Abstract: "abs three"},
	}}

	res, err := NewSweeper(nil, g, lookup).Sweep(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, SweepResult{Requested: 3, Resolved: 2, Missing: []string{"2001.00002"}}, res)
	require.Len(t, lookup.calls, 1)

	left, err := g.GetIncompleteCitedPapers(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, []string{"2001.00002"}, left)
}

func TestSweepIsBoundedByBatch(t *testing.T) {
	g := graph.NewMemory()
	seedStubs(t, g, "2001.00001", "2001.00002", "2001.00003")
	lookup := &fakeLookup{}

	res, err := NewSweeper(nil, g, lookup).Sweep(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, 2, res.Requested)
	require.Len(t, lookup.calls[0], 2)
}

func TestSweepWithNothingToResolve(t *testing.T) {
	g := graph.NewMemory()
	lookup := &fakeLookup{}
	res, err := NewSweeper(nil, g, lookup).Sweep(context.Background(), 5)
	require.NoError(t, err)
	require.Zero(t, res.Requested)
	require.Empty(t, lookup.calls)
}

func TestSweepResolvingNothingIsNotAnError(t *testing.T) {
	g := graph.NewMemory()
	seedStubs(t, g, "2001.00001")
	res, err := NewSweeper(nil, g, &fakeLookup{}).Sweep(context.Background(), 5)
	require.NoError(t, err)
	require.Zero(t, res.Resolved)
	require.Equal(t, []string{"2001.00001"}, res.Missing)
}

func TestSweepLookupFailure(t *testing.T) {
	g := graph.NewMemory()
	seedStubs(t, g, "2001.00001")
	_, err := NewSweeper(nil, g, &fakeLookup{err: errors.New("503")}).Sweep(context.Background(), 5)
	require.Error(t, err)
}

func TestSweepReachesStubsBehindUnresolvableOnes(t *testing.T) {
	g := graph.NewMemory()
	seedStubs(t, g, "1000.00000", "1000.00001", "1000.00002", "2001.00001")
	lookup := &fakeLookup{papers: []models.PaperMetadata{
		{ArxivID: "2001.00001v2", Title: "resolvable", Abstract: "abs"},
	}}
	sw := NewSweeper(nil, g, lookup)
	ctx := context.Background()

	first, err := sw.Sweep(ctx, 3)
	require.NoError(t, err)
	require.Zero(t, first.Resolved)
	require.Equal(t, []string{"1000.00000", "1000.00001", "1000.00002"}, first.Missing)

	second, err := sw.Sweep(ctx, 3)
	require.NoError(t, err)
	require.Equal(t, 1, second.Resolved)
	require.Equal(t, "2001.00001", lookup.calls[1][0])

	got, err := g.GetPaperMetadata(ctx, "2001.00001")
	require.NoError(t, err)
	require.True(t, got.IsComplete())
}

func TestSweepRotatesThroughUnresolvableStubs(t *testing.T) {
	g := graph.NewMemory()
	seedStubs(t, g, "1000.00000", "1000.00001", "1000.00002")
	lookup := &fakeLookup{}
	sw := NewSweeper(nil, g, lookup)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := sw.Sweep(ctx, 2)
		require.NoError(t, err)
	}
	require.Equal(t, [][]string{
		{"1000.00000", "1000.00001"},
		{"1000.00002", "1000.00000"},
		{"1000.00001", "1000.00002"},
	}, lookup.calls)
}

func TestSweepLookupFailureDoesNotCountAsAttempt(t *testing.T) {
	g := graph.NewMemory()
	seedStubs(t, g, "1000.00000", "2001.00001")
	_, err := NewSweeper(nil, g, &fakeLookup{err: errors.New("503")}).Sweep(context.Background(), 1)
	require.Error(t, err)

	left, err := g.GetIncompleteCitedPapers(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, []string{"1000.00000"}, left)
}
