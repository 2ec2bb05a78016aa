package vector

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"citegraph/internal/logger"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"
)

const chromemBackend = "chromem"

var errNoEmbeddingFunc = errors.New("chromem collections only accept precomputed embeddings")

// noEmbed is handed to chromem so it never tries to embed content itself.
func noEmbed(context.Context, string) ([]float32, error) { return nil, errNoEmbeddingFunc }

// Chromem is an embedded store backed by chromem-go. Each named space lives
// in its own chromem collection ("<name>.text", "<name>.image") because
// chromem requires one dimension per collection.
type Chromem struct {
	log *logger.Logger
	db  *chromem.DB

	mu   sync.Mutex
	dims map[string]int
}

// NewChromem opens a persistent store at path, or an in-memory one when path
// is empty.
func NewChromem(log *logger.Logger, path string) (*Chromem, error) {
	if log == nil {
		log = logger.Nop()
	}
	var (
		db  *chromem.DB
		err error
	)
	if path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(path, true)
		if err != nil {
			return nil, &ConfigError{Field: "chromem_path", Message: err.Error()}
		}
	}
	return &Chromem{log: log.With("service", "ChromemVectorStore"), db: db, dims: map[string]int{}}, nil
}

func spaceCollection(name, space string) string {
	return name + "." + spaceOrDefault(space)
}

func (c *Chromem) EnsureCollection(ctx context.Context, name string, textDim, imageDim int) error {
	const op = "ensure_collection"
	if textDim <= 0 || imageDim <= 0 {
		return opErr(chromemBackend, op, OperationErrorValidation, fmt.Sprintf("vector sizes must be positive (text=%d image=%d)", textDim, imageDim), nil)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for space, dim := range map[string]int{SpaceText: textDim, SpaceImage: imageDim} {
		full := spaceCollection(name, space)
		if got, ok := c.dims[full]; ok && got != dim {
			return opErr(chromemBackend, op, OperationErrorValidation,
				fmt.Sprintf("collection %q size mismatch: expected=%d actual=%d", full, dim, got), nil)
		}
		if col := c.db.GetCollection(full, noEmbed); col != nil {
			c.dims[full] = dim
			continue
		}
		if _, err := c.db.CreateCollection(full, map[string]string{"dim": strconv.Itoa(dim)}, noEmbed); err != nil {
			return opErr(chromemBackend, op, OperationErrorQueryFailed, "create collection failed", err)
		}
		c.dims[full] = dim
		c.log.Info("created chromem collection", "collection", full, "dim", dim)
	}
	return nil
}

func (c *Chromem) collection(name, space string) (*chromem.Collection, error) {
	col := c.db.GetCollection(spaceCollection(name, space), noEmbed)
	if col == nil {
		return nil, fmt.Errorf("collection %q does not exist", spaceCollection(name, space))
	}
	return col, nil
}

func (c *Chromem) Upsert(ctx context.Context, collection, paperID string, textPoints, imagePoints []Point) error {
	const op = "upsert"
	for space, pts := range map[string][]Point{SpaceText: textPoints, SpaceImage: imagePoints} {
		if len(pts) == 0 {
			continue
		}
		col, err := c.collection(collection, space)
		if err != nil {
			return opErr(chromemBackend, op, OperationErrorValidation, err.Error(), nil)
		}
		docs := make([]chromem.Document, 0, len(pts))
		for _, p := range pts {
			if len(p.Vector) == 0 {
				return opErr(chromemBackend, op, OperationErrorValidation, fmt.Sprintf("%s point for %s has an empty vector", space, paperID), nil)
			}
			id := p.ID
			if id == "" {
				id = uuid.NewString()
			}
			docs = append(docs, chromem.Document{
				ID:        id,
				Metadata:  payloadMetadata(p.Payload),
				Embedding: append([]float32(nil), p.Vector...),
				Content:   p.Payload.Content,
			})
		}
		if err := col.AddDocuments(ctx, docs, 1); err != nil {
			return opErr(chromemBackend, op, OperationErrorQueryFailed, "add documents failed", err)
		}
	}
	return nil
}

func (c *Chromem) Search(ctx context.Context, req SearchRequest) ([]Hit, error) {
	const op = "search"
	if len(req.Vector) == 0 {
		return nil, opErr(chromemBackend, op, OperationErrorValidation, "query vector is empty", nil)
	}
	col, err := c.collection(req.Collection, req.Space)
	if err != nil {
		return nil, opErr(chromemBackend, op, OperationErrorValidation, err.Error(), nil)
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 5
	}
	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	// chromem rejects nResults larger than the collection.
	limit = min(limit, count)

	where := map[string]string{}
	if req.PaperID != "" {
		where["paper_id"] = req.PaperID
	}
	if req.ChunkType != "" {
		where["chunk_type"] = req.ChunkType
	}
	if len(where) == 0 {
		where = nil
	}

	results, err := col.QueryEmbedding(ctx, req.Vector, limit, where, nil)
	if err != nil {
		return nil, opErr(chromemBackend, op, OperationErrorQueryFailed, "query failed", err)
	}
	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		p := metadataPayload(r.Metadata)
		p.Content = r.Content
		hits = append(hits, Hit{ID: r.ID, Score: float64(r.Similarity), Payload: p})
	}
	return hits, nil
}

func (c *Chromem) DeletePaper(ctx context.Context, collection, paperID string) error {
	for _, space := range []string{SpaceText, SpaceImage} {
		col, err := c.collection(collection, space)
		if err != nil {
			continue
		}
		if err := col.Delete(ctx, map[string]string{"paper_id": paperID}, nil); err != nil {
			return opErr(chromemBackend, "delete_paper", OperationErrorQueryFailed, "delete documents failed", err)
		}
	}
	return nil
}

func payloadMetadata(p Payload) map[string]string {
	md := map[string]string{
		"paper_id":    p.PaperID,
		"chunk_type":  p.ChunkType,
		"page_number": strconv.Itoa(p.PageNumber),
		"ord":         strconv.Itoa(p.Ordinal),
	}
	if p.ImageB64 != "" {
		md["image_b64"] = p.ImageB64
	}
	return md
}

func metadataPayload(m map[string]string) Payload {
	page, _ := strconv.Atoi(m["page_number"])
	ord, _ := strconv.Atoi(m["ord"])
	return Payload{
		PaperID:    m["paper_id"],
		ChunkType:  m["chunk_type"],
		PageNumber: page,
		Ordinal:    ord,
		ImageB64:   m["image_b64"],
	}
}
