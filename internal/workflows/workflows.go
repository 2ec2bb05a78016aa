package workflows

import (
	"errors"
	"strings"
	"time"

	"citegraph/internal/activities"
	"citegraph/internal/insight"
	"citegraph/internal/models"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	QueryStatus   = "status"
	QueryProgress = "progress"
)

var defaultRetry = temporal.RetryPolicy{
	InitialInterval:    2 * time.Second,
	BackoffCoefficient: 2,
	MaximumInterval:    20 * time.Second,
	MaximumAttempts:    3,
}

func withActivity(ctx workflow.Context, timeout time.Duration, rp *temporal.RetryPolicy) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: timeout,
		RetryPolicy:         rp,
	})
}

// PaperIngestWorkflow resolves one paper's metadata and ingests it. Ingestion
// runs at most once: vector points are append-only, so a retried activity
// would duplicate them.
func PaperIngestWorkflow(ctx workflow.Context, input PaperIngestInput) (PaperStatus, error) {
	status := PaperStatus{
		PaperID:     strings.TrimSpace(input.PaperID),
		CurrentStep: "init",
		Status:      StatusProcessing,
		Steps:       map[string]string{},
	}
	if input.Metadata != nil && status.PaperID == "" {
		status.PaperID = input.Metadata.ArxivID
	}
	if status.PaperID == "" {
		return status, errors.New("paper id is required")
	}
	if err := workflow.SetQueryHandler(ctx, QueryStatus, func() (PaperStatus, error) {
		return status, nil
	}); err != nil {
		return status, err
	}
	logger := workflow.GetLogger(ctx)

	var meta models.PaperMetadata
	if input.Metadata != nil {
		meta = *input.Metadata
	} else {
		status.CurrentStep = "lookup"
		status.Steps[status.CurrentStep] = StatusProcessing
		lctx := withActivity(ctx, 2*time.Minute, input.LookupRetry.Temporal())
		var out activities.LookupPapersOutput
		if err := workflow.ExecuteActivity(lctx, "LookupPapersActivity", activities.LookupPapersInput{IDs: []string{status.PaperID}}).Get(ctx, &out); err != nil {
			status.Steps[status.CurrentStep] = StatusFailed
			return status, err
		}
		if len(out.Papers) == 0 {
			status.Steps[status.CurrentStep] = StatusNotFound
			status.Status = StatusNotFound
			status.FailReason = "metadata lookup returned no paper"
			return status, nil
		}
		meta = out.Papers[0]
		status.Steps[status.CurrentStep] = StatusDone
	}

	status.CurrentStep = "ingest"
	status.Steps[status.CurrentStep] = StatusProcessing
	ictx := withActivity(ctx, 30*time.Minute, &temporal.RetryPolicy{MaximumAttempts: 1})
	var out activities.IngestPaperOutput
	if err := workflow.ExecuteActivity(ictx, "IngestPaperActivity", activities.IngestPaperInput{Metadata: meta}).Get(ctx, &out); err != nil {
		var appErr *temporal.ApplicationError
		if errors.As(err, &appErr) && strings.HasPrefix(appErr.Type(), activities.StepErrorPrefix) {
			status.Steps[status.CurrentStep] = StatusFailed
			status.Status = StatusFailed
			status.FailedState = strings.TrimPrefix(appErr.Type(), activities.StepErrorPrefix)
			status.FailReason = appErr.Error()
			logger.Warn("paper ingestion failed", "paper_id", meta.ArxivID, "state", status.FailedState)
			return status, nil
		}
		return status, err
	}
	status.Steps[status.CurrentStep] = StatusDone
	status.CurrentStep = StatusDone
	status.Status = StatusDone
	status.Result = &out.Result
	return status, nil
}

// CorpusIngestWorkflow ingests many papers as child workflows, at most
// MaxChildren at a time.
func CorpusIngestWorkflow(ctx workflow.Context, input CorpusIngestInput) (CorpusIngestProgress, error) {
	progress := CorpusIngestProgress{
		PerPaper:      map[string]string{},
		ChildWorkflow: map[string]string{},
	}
	if err := workflow.SetQueryHandler(ctx, QueryProgress, func() (CorpusIngestProgress, error) {
		return progress, nil
	}); err != nil {
		return progress, err
	}

	inputs := make([]PaperIngestInput, 0, len(input.IDs))
	for _, id := range input.IDs {
		if id = strings.TrimSpace(id); id != "" {
			inputs = append(inputs, PaperIngestInput{PaperID: id, LookupRetry: input.LookupRetry})
		}
	}
	if len(inputs) == 0 && input.Latest > 0 {
		lctx := withActivity(ctx, 2*time.Minute, input.LookupRetry.Temporal())
		var latest activities.LatestPapersOutput
		if err := workflow.ExecuteActivity(lctx, "LatestPapersActivity", activities.LatestPapersInput{
			Categories: input.Categories,
			Max:        input.Latest,
		}).Get(ctx, &latest); err != nil {
			return progress, err
		}
		for i := range latest.Papers {
			meta := latest.Papers[i]
			inputs = append(inputs, PaperIngestInput{PaperID: meta.ArxivID, Metadata: &meta})
		}
	}
	progress.Total = len(inputs)

	maxChildren := input.MaxChildren
	if maxChildren <= 0 {
		maxChildren = 4
	}
	parentID := workflow.GetInfo(ctx).WorkflowExecution.ID
	for i := 0; i < len(inputs); i += maxChildren {
		end := min(i+maxChildren, len(inputs))
		futures := make([]workflow.ChildWorkflowFuture, 0, end-i)
		for _, in := range inputs[i:end] {
			progress.PerPaper[in.PaperID] = StatusProcessing
			workflowID := parentID + "-paper-" + sanitizeID(in.PaperID)
			cctx := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{WorkflowID: workflowID})
			futures = append(futures, workflow.ExecuteChildWorkflow(cctx, PaperIngestWorkflow, in))
			progress.ChildWorkflow[in.PaperID] = workflowID
		}
		for idx, f := range futures {
			id := inputs[i+idx].PaperID
			var child PaperStatus
			if err := f.Get(ctx, &child); err != nil {
				progress.Failed++
				progress.PerPaper[id] = StatusFailed
				continue
			}
			progress.PerPaper[id] = child.Status
			switch child.Status {
			case StatusDone:
				progress.Done++
			case StatusNotFound:
				progress.NotFound++
			default:
				progress.Failed++
			}
		}
	}
	return progress, nil
}

// BackfillWorkflow sweeps incomplete cited papers until a sweep resolves
// nothing or MaxBatches sweeps have run.
func BackfillWorkflow(ctx workflow.Context, input BackfillInput) (BackfillSummary, error) {
	maxBatches := input.MaxBatches
	if maxBatches <= 0 {
		maxBatches = 10
	}
	rp := defaultRetry
	actx := withActivity(ctx, 5*time.Minute, &rp)

	var summary BackfillSummary
	for summary.Batches < maxBatches {
		var out activities.BackfillSweepOutput
		if err := workflow.ExecuteActivity(actx, "BackfillSweepActivity", activities.BackfillSweepInput{Batch: input.Batch}).Get(ctx, &out); err != nil {
			return summary, err
		}
		summary.Batches++
		summary.Requested += out.Sweep.Requested
		summary.Resolved += out.Sweep.Resolved
		summary.Missing = out.Sweep.Missing
		if out.Sweep.Resolved == 0 {
			break
		}
	}
	return summary, nil
}

func InsightWorkflow(ctx workflow.Context, input InsightInput) (insight.Insight, error) {
	rp := defaultRetry
	actx := withActivity(ctx, 5*time.Minute, &rp)
	var out activities.GenerateInsightOutput
	if err := workflow.ExecuteActivity(actx, "GenerateInsightActivity", activities.GenerateInsightInput{PaperID: input.PaperID}).Get(ctx, &out); err != nil {
		return insight.Insight{}, err
	}
	return out.Insight, nil
}

func sanitizeID(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "_", "-")
	s = strings.ReplaceAll(s, ".", "-")
	s = strings.ReplaceAll(s, "/", "-")
	return s
}
