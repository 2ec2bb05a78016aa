package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"citegraph/internal/app"
	"citegraph/internal/ingest"
	"citegraph/internal/models"
	"citegraph/internal/sources"
	"citegraph/internal/workflows"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"
	"golang.org/x/sync/errgroup"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <arxiv-id>...",
	Short: "Ingest papers by arXiv id",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIngest,
}

var latestCmd = &cobra.Command{
	Use:   "latest",
	Short: "Ingest the newest papers of some arXiv categories",
	Args:  cobra.NoArgs,
	RunE:  runLatest,
}

func init() {
	for _, c := range []*cobra.Command{ingestCmd, latestCmd} {
		c.Flags().Bool("temporal", false, "start a Temporal workflow instead of ingesting in-process")
		c.Flags().Bool("wait", false, "with --temporal, wait for the workflow and print its progress")
	}
	latestCmd.Flags().Int("max", 10, "number of papers to ingest")
	latestCmd.Flags().StringSlice("category", sources.DefaultCategories, "arXiv categories to query")
	rootCmd.AddCommand(ingestCmd, latestCmd)
}

// paperOutcome is one line of the ingestion report.
type paperOutcome struct {
	PaperID     string   `json:"paper_id"`
	Status      string   `json:"status"`
	Error       string   `json:"error,omitempty"`
	FailedState string   `json:"failed_state,omitempty"`
	TextPoints  int      `json:"text_points,omitempty"`
	ImagePoints int      `json:"image_points,omitempty"`
	References  int      `json:"references,omitempty"`
	Resolved    int      `json:"backfill_resolved,omitempty"`
	Degraded    []string `json:"degraded,omitempty"`
}

func outcome(id string, res ingest.Result, err error) paperOutcome {
	if err != nil {
		o := paperOutcome{PaperID: id, Status: workflows.StatusFailed, Error: err.Error()}
		var se *ingest.StepError
		if errors.As(err, &se) {
			o.FailedState = string(se.State)
		}
		if errors.Is(err, ingest.ErrUnknownPaper) {
			o.Status = workflows.StatusNotFound
		}
		return o
	}
	return paperOutcome{
		PaperID:     res.Metadata.ArxivID,
		Status:      workflows.StatusDone,
		TextPoints:  res.TextPoints,
		ImagePoints: res.ImagePoints,
		References:  len(res.References),
		Resolved:    res.Backfill.Resolved,
		Degraded:    res.Degraded,
	}
}

// ingestAll runs fn for every item, at most limit at a time, and reports
// every outcome. It fails when any item failed.
func ingestAll[T any](ctx context.Context, limit int, items []T, fn func(context.Context, T) paperOutcome) error {
	outcomes := make([]paperOutcome, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, item := range items {
		g.Go(func() error {
			outcomes[i] = fn(gctx, item)
			return nil
		})
	}
	_ = g.Wait()
	if err := printJSON(outcomes); err != nil {
		return err
	}
	failed := 0
	for _, o := range outcomes {
		if o.Status != workflows.StatusDone {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d papers were not ingested", failed, len(items))
	}
	return nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	ids := make([]string, 0, len(args))
	for _, a := range args {
		if a = strings.TrimSpace(a); a != "" {
			ids = append(ids, a)
		}
	}
	if useTemporal, _ := cmd.Flags().GetBool("temporal"); useTemporal {
		wait, _ := cmd.Flags().GetBool("wait")
		return startCorpus(cmd.Context(), workflows.CorpusIngestInput{IDs: ids}, wait)
	}
	return withApp(cmd.Context(), func(a *app.App) error {
		return ingestAll(cmd.Context(), a.Config.IngestConcurrency, ids, func(ctx context.Context, id string) paperOutcome {
			res, err := a.Pipeline.IngestByID(ctx, id)
			return outcome(id, res, err)
		})
	})
}

func runLatest(cmd *cobra.Command, _ []string) error {
	n, _ := cmd.Flags().GetInt("max")
	categories, _ := cmd.Flags().GetStringSlice("category")
	if useTemporal, _ := cmd.Flags().GetBool("temporal"); useTemporal {
		wait, _ := cmd.Flags().GetBool("wait")
		return startCorpus(cmd.Context(), workflows.CorpusIngestInput{Latest: n, Categories: categories}, wait)
	}
	return withApp(cmd.Context(), func(a *app.App) error {
		papers, err := a.Arxiv.Latest(cmd.Context(), categories, n)
		if err != nil {
			return err
		}
		a.Log.Info("latest papers fetched", "count", len(papers), "categories", categories)
		return ingestAll(cmd.Context(), a.Config.IngestConcurrency, papers, func(ctx context.Context, meta models.PaperMetadata) paperOutcome {
			res, err := a.Pipeline.Process(ctx, meta)
			return outcome(meta.ArxivID, res, err)
		})
	})
}

func startCorpus(ctx context.Context, in workflows.CorpusIngestInput, wait bool) error {
	cfg, lg, err := loadConfig()
	if err != nil {
		return err
	}
	defer lg.Sync()
	c, err := dialTemporal(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	in.MaxChildren = cfg.CorpusMaxChildren
	in.LookupRetry = sources.RetryPolicyFromConfig(cfg)
	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        "corpus-" + uuid.NewString(),
		TaskQueue: cfg.TaskQueue,
	}, workflows.CorpusIngestWorkflow, in)
	if err != nil {
		return fmt.Errorf("starting corpus workflow: %w", err)
	}
	lg.Info("corpus workflow started", "workflow_id", run.GetID(), "run_id", run.GetRunID())
	if !wait {
		return printJSON(map[string]string{"workflow_id": run.GetID(), "run_id": run.GetRunID()})
	}
	var progress workflows.CorpusIngestProgress
	if err := run.Get(ctx, &progress); err != nil {
		return err
	}
	return printJSON(progress)
}
