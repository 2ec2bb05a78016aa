package vector

import (
	"context"
	"encoding/base64"
	"fmt"

	"citegraph/internal/models"
)

// Named vector spaces of a collection.
const (
	SpaceText  = "text"
	SpaceImage = "image"
)

// Payload mirrors the chunk a point was built from.
type Payload struct {
	PaperID    string `json:"paper_id"`
	ChunkType  string `json:"chunk_type"`
	PageNumber int    `json:"page_number"`
	Content    string `json:"content,omitempty"`
	ImageB64   string `json:"image_b64,omitempty"`
	Ordinal    int    `json:"ord"`
}

type Point struct {
	ID      string
	Vector  []float32
	Payload Payload
}

type SearchRequest struct {
	Collection string
	Vector     []float32
	// Space selects the named vector ("text" or "image").
	Space     string
	PaperID   string
	ChunkType string
	Limit     int
}

type Hit struct {
	ID      string
	Score   float64
	Payload Payload
}

// Store is the vector store gateway. Points are append-only: ids are fresh
// for every upsert and existing points are never rewritten.
type Store interface {
	// EnsureCollection creates the collection with a text and an image space
	// when it does not exist. An existing collection is left untouched.
	EnsureCollection(ctx context.Context, name string, textDim, imageDim int) error
	Upsert(ctx context.Context, collection, paperID string, textPoints, imagePoints []Point) error
	Search(ctx context.Context, req SearchRequest) ([]Hit, error)
	// DeletePaper removes every point whose payload carries paperID.
	DeletePaper(ctx context.Context, collection, paperID string) error
}

// PointsFromChunks pairs chunks with their vectors. Chunks and vectors must
// have the same length.
func PointsFromChunks(chunks []models.Chunk, vectors [][]float32) ([]Point, error) {
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("%d chunks but %d vectors", len(chunks), len(vectors))
	}
	out := make([]Point, 0, len(chunks))
	for i, c := range chunks {
		p := Payload{
			PaperID:    c.PaperID,
			ChunkType:  string(c.Type),
			PageNumber: c.PageNumber,
			Ordinal:    c.Ordinal,
		}
		if c.Type == models.ChunkImage {
			p.ImageB64 = base64.StdEncoding.EncodeToString(c.Image)
		} else {
			p.Content = c.Text
		}
		out = append(out, Point{Vector: vectors[i], Payload: p})
	}
	return out, nil
}

func spaceOrDefault(s string) string {
	if s == "" {
		return SpaceText
	}
	return s
}
