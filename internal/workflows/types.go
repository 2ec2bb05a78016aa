package workflows

import (
	"citegraph/internal/ingest"
	"citegraph/internal/models"
	"citegraph/internal/sources"
)

type PaperIngestInput struct {
	PaperID string `json:"paper_id"`
	// Metadata skips the lookup when set.
	Metadata *models.PaperMetadata `json:"metadata,omitempty"`
	// LookupRetry drives the lookup activity; the zero value uses the defaults.
	LookupRetry sources.RetryPolicy `json:"lookup_retry"`
}

type CorpusIngestInput struct {
	IDs []string `json:"ids,omitempty"`
	// Latest > 0 with no IDs ingests the newest papers of Categories.
	Latest      int                 `json:"latest,omitempty"`
	Categories  []string            `json:"categories,omitempty"`
	MaxChildren int                 `json:"max_children"`
	LookupRetry sources.RetryPolicy `json:"lookup_retry"`
}

type BackfillInput struct {
	Batch      int `json:"batch"`
	MaxBatches int `json:"max_batches"`
}

type InsightInput struct {
	PaperID string `json:"paper_id"`
}

const (
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusNotFound   = "not_found"
	StatusFailed     = "failed"
)

type PaperStatus struct {
	PaperID     string            `json:"paper_id"`
	CurrentStep string            `json:"current_step"`
	Status      string            `json:"status"`
	FailReason  string            `json:"fail_reason,omitempty"`
	FailedState string            `json:"failed_state,omitempty"`
	Steps       map[string]string `json:"steps"`
	Result      *ingest.Result    `json:"result,omitempty"`
}

type CorpusIngestProgress struct {
	Total         int               `json:"total"`
	Done          int               `json:"done"`
	Failed        int               `json:"failed"`
	NotFound      int               `json:"not_found"`
	PerPaper      map[string]string `json:"per_paper_status"`
	ChildWorkflow map[string]string `json:"child_workflow_ids,omitempty"`
}

type BackfillSummary struct {
	Batches   int      `json:"batches"`
	Requested int      `json:"requested"`
	Resolved  int      `json:"resolved"`
	Missing   []string `json:"missing,omitempty"`
}
