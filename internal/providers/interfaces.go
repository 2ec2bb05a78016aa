package providers

import "context"

type ProviderInfo struct {
	Name  string `json:"name"`
	Model string `json:"model"`
	Key   string `json:"key"`
}

type GenerateRequest struct {
	Operation string `json:"operation"`
	Model     string `json:"model,omitempty"`
	System    string `json:"system,omitempty"`
	Prompt    string `json:"prompt"`
}

type GenerateResponse struct {
	Text string `json:"text"`
}

type EmbedRequest struct {
	Operation string   `json:"operation"`
	Inputs    []string `json:"inputs"`
	Dimension int      `json:"dimension"`
}

type ImageEmbedRequest struct {
	Operation string   `json:"operation"`
	Images    [][]byte `json:"-"`
	Dimension int      `json:"dimension"`
}

type LLMProvider interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error)
}

type EmbeddingProvider interface {
	Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error)
}

type ImageEmbeddingProvider interface {
	EmbedImages(ctx context.Context, req ImageEmbedRequest) ([][]float32, ProviderInfo, error)
}

// TextEmbedder is the text capability consumed by ingestion and retrieval.
// Vectors are L2-normalised and Dimension() long.
type TextEmbedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// ImageEmbedder is optional; callers treat a nil ImageEmbedder as "no image
// vectors".
type ImageEmbedder interface {
	EmbedImages(ctx context.Context, images [][]byte) ([][]float32, error)
	Dimension() int
}

type ChatRequest struct {
	Operation string
	PaperID   string
	Model     string
	Prompt    string
}

type ChatClient interface {
	Complete(ctx context.Context, req ChatRequest) (string, error)
}
