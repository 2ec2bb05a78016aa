package providers

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

type MockProvider struct {
	dim int
}

func NewMockProvider(dim int) *MockProvider {
	if dim <= 0 {
		dim = 384
	}
	return &MockProvider{dim: dim}
}

func (m *MockProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	_ = ctx
	dim := req.Dimension
	if dim <= 0 {
		dim = m.dim
	}
	vectors := make([][]float32, 0, len(req.Inputs))
	for _, input := range req.Inputs {
		vectors = append(vectors, deterministicVector([]byte(input), dim))
	}
	return vectors, ProviderInfo{Name: "mock", Model: fmt.Sprintf("mock-embed-%d", dim), Key: "mock"}, nil
}

func (m *MockProvider) EmbedImages(ctx context.Context, req ImageEmbedRequest) ([][]float32, ProviderInfo, error) {
	_ = ctx
	dim := req.Dimension
	if dim <= 0 {
		dim = m.dim
	}
	vectors := make([][]float32, 0, len(req.Images))
	for _, img := range req.Images {
		vectors = append(vectors, deterministicVector(img, dim))
	}
	return vectors, ProviderInfo{Name: "mock", Model: fmt.Sprintf("mock-image-%d", dim), Key: "mock"}, nil
}

// Generate answers in the marker formats the enrichment parsers expect so
// offline runs exercise the whole pipeline.
func (m *MockProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	_ = ctx
	op := strings.ToLower(req.Operation)
	text := "Mock response."
	switch {
	case strings.Contains(op, "sections"):
		text = "ABSTRACT: NOT_FOUND\nINTRODUCTION: NOT_FOUND\nMETHODOLOGY: A deterministic mock method section.\nRESULTS: NOT_FOUND\nCONCLUSION: NOT_FOUND"
	case strings.Contains(op, "domain"):
		text = "Machine Learning"
	case strings.Contains(op, "methodology"):
		text = "The authors apply a deterministic mock methodology to the problem."
	case strings.Contains(op, "contributions"):
		text = "1. A deterministic mock contribution about the method\n2. A deterministic mock contribution about the evaluation"
	case strings.Contains(op, "summary"):
		text = "This paper is summarised by a deterministic mock provider for offline runs."
	case strings.Contains(op, "single_shot"):
		text = "SUMMARY: This paper is summarised by a deterministic mock provider.\nCONTRIBUTIONS: A mock contribution about the method | A mock contribution about the evaluation\nMETHODOLOGY: Deterministic mock methodology."
	case strings.Contains(op, "insight"):
		text = "## Core contribution\nDeterministic mock insight.\n## Historical lineage\nMock lineage."
	}
	return GenerateResponse{Text: text}, ProviderInfo{Name: "mock", Model: "mock-llm-v1", Key: "mock"}, nil
}

func deterministicVector(seed []byte, dim int) []float32 {
	vec := make([]float32, dim)
	if len(seed) == 0 {
		seed = []byte("empty")
	}
	buf := make([]byte, len(seed)+1)
	copy(buf, seed)
	for i := 0; i < dim; i++ {
		buf[len(seed)] = byte(i % 251)
		h := sha256.Sum256(buf)
		u := binary.BigEndian.Uint32(h[:4])
		vec[i] = float32(u%2000)/1000.0 - 1.0
	}
	return Normalize(vec)
}

// Normalize scales v to unit L2 norm in place. Zero vectors are returned as is.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
	return v
}
