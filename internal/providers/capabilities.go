package providers

import (
	"context"
	"fmt"
	"time"

	"citegraph/internal/logger"
	"citegraph/internal/storage"
)

// Embedder adapts an EmbeddingProvider to TextEmbedder.
type Embedder struct {
	provider EmbeddingProvider
	dim      int
}

func NewEmbedder(p EmbeddingProvider, dim int) *Embedder {
	return &Embedder{provider: p, dim: dim}
}

func (e *Embedder) Dimension() int { return e.dim }

func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vecs, info, err := e.provider.Embed(ctx, EmbedRequest{Operation: "embed_text", Inputs: texts, Dimension: e.dim})
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("%s returned %d vectors for %d texts", info.Name, len(vecs), len(texts))
	}
	for i := range vecs {
		vecs[i] = Normalize(matchDimension(vecs[i], e.dim))
	}
	return vecs, nil
}

// ImageEmbedderAdapter adapts an ImageEmbeddingProvider to ImageEmbedder.
type ImageEmbedderAdapter struct {
	provider ImageEmbeddingProvider
	dim      int
}

func NewImageEmbedder(p ImageEmbeddingProvider, dim int) *ImageEmbedderAdapter {
	return &ImageEmbedderAdapter{provider: p, dim: dim}
}

func (a *ImageEmbedderAdapter) Dimension() int { return a.dim }

func (a *ImageEmbedderAdapter) EmbedImages(ctx context.Context, images [][]byte) ([][]float32, error) {
	if len(images) == 0 {
		return nil, nil
	}
	vecs, _, err := a.provider.EmbedImages(ctx, ImageEmbedRequest{Operation: "embed_image", Images: images, Dimension: a.dim})
	if err != nil {
		return nil, err
	}
	for i := range vecs {
		vecs[i] = Normalize(matchDimension(vecs[i], a.dim))
	}
	return vecs, nil
}

type AuditSink interface {
	Insert(ctx context.Context, rec storage.LLMCallRecord) error
}

// Chat adapts an LLMProvider to ChatClient and records every call when an
// audit sink is configured.
type Chat struct {
	provider LLMProvider
	audit    AuditSink
	log      *logger.Logger
}

func NewChat(p LLMProvider, audit AuditSink, log *logger.Logger) *Chat {
	if log == nil {
		log = logger.Nop()
	}
	return &Chat{provider: p, audit: audit, log: log}
}

func (c *Chat) Complete(ctx context.Context, req ChatRequest) (string, error) {
	start := time.Now()
	resp, info, err := c.provider.Generate(ctx, GenerateRequest{
		Operation: req.Operation,
		Model:     req.Model,
		Prompt:    req.Prompt,
	})
	if c.audit != nil {
		rec := storage.LLMCallRecord{
			Operation:    req.Operation,
			PaperID:      req.PaperID,
			ProviderName: info.Name,
			Model:        info.Model,
			Status:       "ok",
			LatencyMS:    time.Since(start).Milliseconds(),
		}
		if err != nil {
			rec.Status = "error"
			rec.ErrorType = string(ClassifyError(err))
		}
		if aerr := c.audit.Insert(ctx, rec); aerr != nil {
			c.log.Warn("llm audit insert failed", "operation", req.Operation, "error", aerr)
		}
	}
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}
