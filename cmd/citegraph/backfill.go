package main

import (
	"errors"
	"fmt"

	"citegraph/internal/app"
	"citegraph/internal/workflows"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Fill in metadata for cited papers that were never ingested",
	Args:  cobra.NoArgs,
	RunE:  runBackfill,
}

func init() {
	backfillCmd.Flags().Int("batch", 0, "ids per sweep (default backfill_batch)")
	backfillCmd.Flags().Int("max-batches", 1, "sweeps to run; stops early when a sweep resolves nothing")
	backfillCmd.Flags().Bool("temporal", false, "run as a Temporal workflow")
	rootCmd.AddCommand(backfillCmd)
}

func runBackfill(cmd *cobra.Command, _ []string) error {
	batch, _ := cmd.Flags().GetInt("batch")
	maxBatches, _ := cmd.Flags().GetInt("max-batches")
	if maxBatches <= 0 {
		maxBatches = 1
	}
	if useTemporal, _ := cmd.Flags().GetBool("temporal"); useTemporal {
		return backfillTemporal(cmd, workflows.BackfillInput{Batch: batch, MaxBatches: maxBatches})
	}
	return withApp(cmd.Context(), func(a *app.App) error {
		if a.Sweeper == nil {
			return errors.New("backfill needs a metadata lookup")
		}
		if batch <= 0 {
			batch = a.Config.BackfillBatch
		}
		var summary workflows.BackfillSummary
		for summary.Batches < maxBatches {
			res, err := a.Sweeper.Sweep(cmd.Context(), batch)
			if err != nil {
				return err
			}
			summary.Batches++
			summary.Requested += res.Requested
			summary.Resolved += res.Resolved
			summary.Missing = res.Missing
			if res.Resolved == 0 {
				break
			}
		}
		return printJSON(summary)
	})
}

func backfillTemporal(cmd *cobra.Command, in workflows.BackfillInput) error {
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
	run, err := c.ExecuteWorkflow(cmd.Context(), client.StartWorkflowOptions{
		ID:        "backfill-" + uuid.NewString(),
		TaskQueue: cfg.TaskQueue,
	}, workflows.BackfillWorkflow, in)
	if err != nil {
		return fmt.Errorf("starting backfill workflow: %w", err)
	}
	var summary workflows.BackfillSummary
	if err := run.Get(cmd.Context(), &summary); err != nil {
		return err
	}
	return printJSON(summary)
}
