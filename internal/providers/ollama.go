package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OllamaEmbeddingProvider supports local, free embeddings via Ollama.
// Example model: nomic-embed-text (Nomic Embed v1.5 family).
type OllamaEmbeddingProvider struct {
	alias   string
	baseURL string
	model   string
	client  *http.Client
}

func NewOllamaEmbeddingProvider(alias, baseURL, defaultModel string, timeout time.Duration) *OllamaEmbeddingProvider {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "http://localhost:11434"
	}
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &OllamaEmbeddingProvider{
		alias:   alias,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   resolveOllamaEmbedModel(alias, defaultModel),
		client:  &http.Client{Timeout: timeout},
	}
}

func (o *OllamaEmbeddingProvider) info() ProviderInfo {
	return ProviderInfo{Name: "ollama", Model: o.model, Key: o.alias}
}

// Embed uses the batch /api/embed endpoint and falls back to the
// one-prompt-per-call /api/embeddings endpoint on older servers.
func (o *OllamaEmbeddingProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	if len(req.Inputs) == 0 {
		return nil, o.info(), fmt.Errorf("no embedding inputs")
	}
	out, status, err := o.embedBatch(ctx, req.Inputs)
	if status == http.StatusNotFound {
		out, err = o.embedEach(ctx, req.Inputs)
	}
	if err != nil {
		return nil, o.info(), err
	}
	for i := range out {
		out[i] = matchDimension(out[i], req.Dimension)
	}
	return out, o.info(), nil
}

func (o *OllamaEmbeddingProvider) post(ctx context.Context, path string, payload any) ([]byte, int, error) {
	b, _ := json.Marshal(payload)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return nil, 0, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, 0, fmt.Errorf("ollama embedding request failed: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return nil, resp.StatusCode, fmt.Errorf("ollama embedding error %d: %s", resp.StatusCode, string(body))
	}
	return body, resp.StatusCode, nil
}

func (o *OllamaEmbeddingProvider) embedBatch(ctx context.Context, inputs []string) ([][]float32, int, error) {
	body, status, err := o.post(ctx, "/api/embed", map[string]any{"model": o.model, "input": inputs})
	if err != nil {
		return nil, status, err
	}
	var parsed struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, status, fmt.Errorf("decode ollama embed response: %w", err)
	}
	if len(parsed.Embeddings) != len(inputs) {
		return nil, status, fmt.Errorf("ollama returned %d embeddings for %d inputs", len(parsed.Embeddings), len(inputs))
	}
	return parsed.Embeddings, status, nil
}

func (o *OllamaEmbeddingProvider) embedEach(ctx context.Context, inputs []string) ([][]float32, error) {
	out := make([][]float32, 0, len(inputs))
	for _, text := range inputs {
		body, _, err := o.post(ctx, "/api/embeddings", map[string]any{"model": o.model, "prompt": text})
		if err != nil {
			return nil, err
		}
		var parsed struct {
			Embedding []float32 `json:"embedding"`
		}
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, fmt.Errorf("decode ollama embedding response: %w", err)
		}
		if len(parsed.Embedding) == 0 {
			return nil, fmt.Errorf("ollama returned empty embedding")
		}
		out = append(out, parsed.Embedding)
	}
	return out, nil
}

func resolveOllamaEmbedModel(alias, fallback string) string {
	alias = strings.TrimSpace(alias)
	switch strings.ToLower(alias) {
	case "nomic":
		return "nomic-embed-text"
	case "bge":
		return "bge-small-en-v1.5"
	case "minilm":
		return "all-minilm"
	}
	// Allow direct model in provider list, e.g. ollama:nomic-embed-text
	if strings.Contains(alias, "-") || strings.Contains(alias, "/") || strings.Contains(alias, ".") {
		return alias
	}
	if strings.TrimSpace(fallback) != "" {
		return fallback
	}
	return "nomic-embed-text"
}

func matchDimension(v []float32, target int) []float32 {
	if target <= 0 || len(v) == target {
		return v
	}
	if len(v) > target {
		return v[:target]
	}
	out := make([]float32, target)
	copy(out, v)
	return out
}
