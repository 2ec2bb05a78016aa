package main

import (
	"errors"
	"fmt"

	"citegraph/internal/workflows"

	"github.com/spf13/cobra"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
)

var statusCmd = &cobra.Command{
	Use:   "status <workflow-id>",
	Short: "Show the state of an ingestion or backfill workflow",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

type workflowReport struct {
	WorkflowID string `json:"workflow_id"`
	RunID      string `json:"run_id"`
	Type       string `json:"type"`
	Status     string `json:"status"`
	Detail     any    `json:"detail,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
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

	ctx := cmd.Context()
	resp, err := c.DescribeWorkflowExecution(ctx, args[0], "")
	var notFound *serviceerror.NotFound
	if errors.As(err, &notFound) {
		return fmt.Errorf("no workflow with id %s", args[0])
	}
	if err != nil {
		return err
	}
	info := resp.GetWorkflowExecutionInfo()
	report := workflowReport{
		WorkflowID: info.GetExecution().GetWorkflowId(),
		RunID:      info.GetExecution().GetRunId(),
		Type:       info.GetType().GetName(),
		Status:     info.GetStatus().String(),
	}

	var query string
	var detail any
	switch report.Type {
	case "PaperIngestWorkflow":
		query, detail = workflows.QueryStatus, &workflows.PaperStatus{}
	case "CorpusIngestWorkflow":
		query, detail = workflows.QueryProgress, &workflows.CorpusIngestProgress{}
	}
	// Only running and completed executions are queried.
	if query != "" && (info.GetStatus() == enumspb.WORKFLOW_EXECUTION_STATUS_RUNNING || info.GetStatus() == enumspb.WORKFLOW_EXECUTION_STATUS_COMPLETED) {
		val, err := c.QueryWorkflow(ctx, report.WorkflowID, report.RunID, query)
		if err != nil {
			lg.Warn("workflow query failed", "workflow_id", report.WorkflowID, "query", query, "error", err)
		} else if err := val.Get(detail); err == nil {
			report.Detail = detail
		}
	}
	return printJSON(report)
}
