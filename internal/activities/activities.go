package activities

import (
	"context"
	"errors"
	"fmt"

	"citegraph/internal/app"
	"citegraph/internal/ingest"
	"citegraph/internal/insight"
	"citegraph/internal/logger"
	"citegraph/internal/models"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
)

// StepErrorPrefix prefixes the application error type of a failed ingestion
// step; the rest is the ingest.State it failed in.
const StepErrorPrefix = "ingest."

type Lookup interface {
	FetchByIDs(ctx context.Context, ids []string) ([]models.PaperMetadata, error)
	Latest(ctx context.Context, categories []string, max int) ([]models.PaperMetadata, error)
}

type Ingester interface {
	Process(ctx context.Context, meta models.PaperMetadata) (ingest.Result, error)
}

type Sweeper interface {
	Sweep(ctx context.Context, max int) (ingest.SweepResult, error)
}

type InsightGenerator interface {
	Generate(ctx context.Context, paperID string) (insight.Insight, error)
}

type Activities struct {
	lookup        Lookup
	ingester      Ingester
	sweeper       Sweeper
	insights      InsightGenerator
	backfillBatch int
	log           *logger.Logger
}

func New(log *logger.Logger, lookup Lookup, ing Ingester, sw Sweeper, ins InsightGenerator, backfillBatch int) *Activities {
	if log == nil {
		log = logger.Nop()
	}
	return &Activities{
		lookup:        lookup,
		ingester:      ing,
		sweeper:       sw,
		insights:      ins,
		backfillBatch: backfillBatch,
		log:           log.With("component", "Activities"),
	}
}

func FromApp(a *app.App) *Activities {
	var sw Sweeper
	if a.Sweeper != nil {
		sw = a.Sweeper
	}
	return New(a.Log, a.Arxiv, a.Pipeline, sw, a.Insights, a.Config.BackfillBatch)
}

func (a *Activities) LookupPapersActivity(ctx context.Context, in LookupPapersInput) (LookupPapersOutput, error) {
	if len(in.IDs) == 0 {
		return LookupPapersOutput{}, nil
	}
	papers, err := a.lookup.FetchByIDs(ctx, in.IDs)
	if err != nil {
		return LookupPapersOutput{}, fmt.Errorf("lookup %d ids: %w", len(in.IDs), err)
	}
	out := LookupPapersOutput{Papers: make([]models.PaperMetadata, 0, len(in.IDs))}
	for _, id := range in.IDs {
		meta, ok := ingest.PickPaper(id, papers)
		if !ok {
			out.Missing = append(out.Missing, id)
			continue
		}
		out.Papers = append(out.Papers, meta)
	}
	return out, nil
}

func (a *Activities) LatestPapersActivity(ctx context.Context, in LatestPapersInput) (LatestPapersOutput, error) {
	papers, err := a.lookup.Latest(ctx, in.Categories, in.Max)
	if err != nil {
		return LatestPapersOutput{}, fmt.Errorf("latest papers: %w", err)
	}
	return LatestPapersOutput{Papers: papers}, nil
}

// IngestPaperActivity runs the whole pipeline for one paper and heartbeats the
// state it is in. A failed step is returned as an application error whose type
// names the state.
func (a *Activities) IngestPaperActivity(ctx context.Context, in IngestPaperInput) (IngestPaperOutput, error) {
	hctx := ingest.WithStateHook(ctx, func(paperID string, s ingest.State) {
		activity.RecordHeartbeat(ctx, IngestHeartbeat{PaperID: paperID, State: s})
	})
	res, err := a.ingester.Process(hctx, in.Metadata)
	if err != nil {
		var se *ingest.StepError
		if errors.As(err, &se) {
			return IngestPaperOutput{}, temporal.NewApplicationErrorWithCause(err.Error(), StepErrorPrefix+string(se.State), se.Err)
		}
		return IngestPaperOutput{}, err
	}
	return IngestPaperOutput{Result: res}, nil
}

func (a *Activities) BackfillSweepActivity(ctx context.Context, in BackfillSweepInput) (BackfillSweepOutput, error) {
	if a.sweeper == nil {
		return BackfillSweepOutput{}, temporal.NewNonRetryableApplicationError("no metadata lookup configured", "BackfillUnavailable", nil)
	}
	batch := in.Batch
	if batch <= 0 {
		batch = a.backfillBatch
	}
	res, err := a.sweeper.Sweep(ctx, batch)
	if err != nil {
		return BackfillSweepOutput{}, err
	}
	a.log.Info("backfill sweep", "requested", res.Requested, "resolved", res.Resolved)
	return BackfillSweepOutput{Sweep: res}, nil
}

func (a *Activities) GenerateInsightActivity(ctx context.Context, in GenerateInsightInput) (GenerateInsightOutput, error) {
	out, err := a.insights.Generate(ctx, in.PaperID)
	if err != nil {
		return GenerateInsightOutput{}, err
	}
	return GenerateInsightOutput{Insight: out}, nil
}
