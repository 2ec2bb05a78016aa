package vector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestChromem(t *testing.T) *Chromem {
	t.Helper()
	c, err := NewChromem(nil, "")
	require.NoError(t, err)
	require.NoError(t, c.EnsureCollection(context.Background(), "papers", 3, 2))
	return c
}

func textPoint(paperID string, page int, content string, vec ...float32) Point {
	return Point{Vector: vec, Payload: Payload{PaperID: paperID, ChunkType: "text", PageNumber: page, Content: content}}
}

func TestChromemEnsureCollectionTwiceKeepsPoints(t *testing.T) {
	ctx := context.Background()
	c := newTestChromem(t)
	require.NoError(t, c.Upsert(ctx, "papers", "A", []Point{textPoint("A", 1, "alpha", 1, 0, 0)}, nil))

	require.NoError(t, c.EnsureCollection(ctx, "papers", 3, 2))
	hits, err := c.Search(ctx, SearchRequest{Collection: "papers", Vector: []float32{1, 0, 0}, Limit: 5})
	require.NoError(t, err)
	require.Len(t, hits, 1)
}

func TestChromemEnsureCollectionRejectsNewDimensions(t *testing.T) {
	c := newTestChromem(t)
	err := c.EnsureCollection(context.Background(), "papers", 4, 2)
	var opErr *OperationError
	require.ErrorAs(t, err, &opErr)
	require.Equal(t, OperationErrorValidation, opErr.Code)
}

func TestChromemSearchFiltersByPaperAndSpace(t *testing.T) {
	ctx := context.Background()
	c := newTestChromem(t)

	require.NoError(t, c.Upsert(ctx, "papers", "A", []Point{
		textPoint("A", 1, "alpha one", 1, 0, 0),
		textPoint("A", 2, "alpha two", 0, 1, 0),
	}, []Point{{Vector: []float32{1, 0}, Payload: Payload{PaperID: "A", ChunkType: "image", PageNumber: 3, ImageB64: "aW1n"}}}))
	require.NoError(t, c.Upsert(ctx, "papers", "B", []Point{textPoint("B", 1, "beta", 1, 0, 0)}, nil))

	hits, err := c.Search(ctx, SearchRequest{Collection: "papers", Vector: []float32{1, 0, 0}, PaperID: "A", ChunkType: "text", Limit: 10})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	require.Equal(t, "alpha one", hits[0].Payload.Content)
	require.Equal(t, 1, hits[0].Payload.PageNumber)
	for _, h := range hits {
		require.Equal(t, "A", h.Payload.PaperID)
	}

	images, err := c.Search(ctx, SearchRequest{Collection: "papers", Space: SpaceImage, Vector: []float32{1, 0}, Limit: 3})
	require.NoError(t, err)
	require.Len(t, images, 1)
	require.Equal(t, "image", images[0].Payload.ChunkType)
	require.Equal(t, "aW1n", images[0].Payload.ImageB64)
	require.Equal(t, 3, images[0].Payload.PageNumber)
}

func TestChromemUpsertAppendsOnReingest(t *testing.T) {
	ctx := context.Background()
	c := newTestChromem(t)
	pts := []Point{textPoint("A", 1, "alpha", 1, 0, 0)}
	require.NoError(t, c.Upsert(ctx, "papers", "A", pts, nil))
	require.NoError(t, c.Upsert(ctx, "papers", "A", pts, nil))

	hits, err := c.Search(ctx, SearchRequest{Collection: "papers", Vector: []float32{1, 0, 0}, PaperID: "A", Limit: 10})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	require.NotEqual(t, hits[0].ID, hits[1].ID)
}

func TestChromemZeroPointsIsNoop(t *testing.T) {
	ctx := context.Background()
	c := newTestChromem(t)
	require.NoError(t, c.Upsert(ctx, "papers", "A", nil, nil))

	hits, err := c.Search(ctx, SearchRequest{Collection: "papers", Vector: []float32{1, 0, 0}})
	require.NoError(t, err)
	require.Empty(t, hits)
}

func TestChromemDeletePaper(t *testing.T) {
	ctx := context.Background()
	c := newTestChromem(t)
	require.NoError(t, c.Upsert(ctx, "papers", "A", []Point{textPoint("A", 1, "alpha", 1, 0, 0)}, nil))
	require.NoError(t, c.Upsert(ctx, "papers", "B", []Point{textPoint("B", 1, "beta", 0, 1, 0)}, nil))

	require.NoError(t, c.DeletePaper(ctx, "papers", "A"))
	hits, err := c.Search(ctx, SearchRequest{Collection: "papers", Vector: []float32{1, 0, 0}, Limit: 5})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "B", hits[0].Payload.PaperID)
}

func TestChromemUpsertIntoMissingCollectionFails(t *testing.T) {
	c, err := NewChromem(nil, "")
	require.NoError(t, err)
	err = c.Upsert(context.Background(), "nope", "A", []Point{textPoint("A", 1, "alpha", 1, 0, 0)}, nil)
	require.Error(t, err)
}
