package activities

import (
	"citegraph/internal/ingest"
	"citegraph/internal/insight"
	"citegraph/internal/models"
)

type LookupPapersInput struct {
	IDs []string `json:"ids"`
}

type LookupPapersOutput struct {
	Papers  []models.PaperMetadata `json:"papers"`
	Missing []string               `json:"missing,omitempty"`
}

type LatestPapersInput struct {
	Categories []string `json:"categories,omitempty"`
	Max        int      `json:"max"`
}

type LatestPapersOutput struct {
	Papers []models.PaperMetadata `json:"papers"`
}

type IngestPaperInput struct {
	Metadata models.PaperMetadata `json:"metadata"`
}

type IngestPaperOutput struct {
	Result ingest.Result `json:"result"`
}

// IngestHeartbeat is recorded on every state the pipeline enters.
type IngestHeartbeat struct {
	PaperID string       `json:"paper_id"`
	State   ingest.State `json:"state"`
}

type BackfillSweepInput struct {
	Batch int `json:"batch"`
}

type BackfillSweepOutput struct {
	Sweep ingest.SweepResult `json:"sweep"`
}

type GenerateInsightInput struct {
	PaperID string `json:"paper_id"`
}

type GenerateInsightOutput struct {
	Insight insight.Insight `json:"insight"`
}
