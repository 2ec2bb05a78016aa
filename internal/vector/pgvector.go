package vector

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"citegraph/internal/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const pgvectorBackend = "pgvector"

// Conn is the subset of *pgxpool.Pool the pgvector store uses.
type Conn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// PGVector keeps each collection in its own table with one nullable vector
// column per space.
type PGVector struct {
	log *logger.Logger
	db  Conn
}

func NewPGVector(log *logger.Logger, db Conn) *PGVector {
	if log == nil {
		log = logger.Nop()
	}
	return &PGVector{log: log.With("service", "PGVectorStore"), db: db}
}

var unsafeTableChars = regexp.MustCompile(`[^a-z0-9_]+`)

func tableName(collection string) string {
	return "vec_" + unsafeTableChars.ReplaceAllString(strings.ToLower(collection), "_")
}

func quotedTable(collection string) string {
	return pgx.Identifier{tableName(collection)}.Sanitize()
}

func spaceColumn(space string) (string, error) {
	switch spaceOrDefault(space) {
	case SpaceText:
		return "text_embedding", nil
	case SpaceImage:
		return "image_embedding", nil
	default:
		return "", fmt.Errorf("unknown vector space %q", space)
	}
}

func (s *PGVector) EnsureCollection(ctx context.Context, name string, textDim, imageDim int) error {
	const op = "ensure_collection"
	if textDim <= 0 || imageDim <= 0 {
		return opErr(pgvectorBackend, op, OperationErrorValidation, fmt.Sprintf("vector sizes must be positive (text=%d image=%d)", textDim, imageDim), nil)
	}
	tbl := quotedTable(name)
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id              uuid PRIMARY KEY,
	paper_id        text NOT NULL,
	chunk_type      text NOT NULL,
	page_number     integer NOT NULL,
	ord             integer NOT NULL DEFAULT 0,
	content         text,
	image_b64       text,
	text_embedding  vector(%d),
	image_embedding vector(%d),
	created_at      timestamptz NOT NULL DEFAULT now()
)`, tbl, textDim, imageDim),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s(paper_id, chunk_type)`,
			pgx.Identifier{tableName(name) + "_paper_idx"}.Sanitize(), tbl),
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return opErr(pgvectorBackend, op, OperationErrorQueryFailed, "create collection table failed", err)
		}
	}

	for col, want := range map[string]int{"text_embedding": textDim, "image_embedding": imageDim} {
		var got int
		err := s.db.QueryRow(ctx,
			`SELECT atttypmod FROM pg_attribute WHERE attrelid = $1::regclass AND attname = $2`,
			tableName(name), col).Scan(&got)
		if err != nil {
			return opErr(pgvectorBackend, op, OperationErrorQueryFailed, "inspect collection table failed", err)
		}
		if got != want {
			return opErr(pgvectorBackend, op, OperationErrorValidation,
				fmt.Sprintf("collection %q %s size mismatch: expected=%d actual=%d", name, col, want, got), nil)
		}
	}
	return nil
}

func (s *PGVector) Upsert(ctx context.Context, collection, paperID string, textPoints, imagePoints []Point) error {
	const op = "upsert"
	if len(textPoints)+len(imagePoints) == 0 {
		return nil
	}
	tbl := quotedTable(collection)
	insert := func(col string) string {
		return fmt.Sprintf(`INSERT INTO %s (id, paper_id, chunk_type, page_number, ord, content, image_b64, %s)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8::vector)`, tbl, col)
	}

	batch := &pgx.Batch{}
	queue := func(col string, pts []Point) error {
		for _, p := range pts {
			if len(p.Vector) == 0 {
				return opErr(pgvectorBackend, op, OperationErrorValidation, fmt.Sprintf("point for %s has an empty vector", paperID), nil)
			}
			id := p.ID
			if id == "" {
				id = uuid.NewString()
			}
			batch.Queue(insert(col), id, p.Payload.PaperID, p.Payload.ChunkType, p.Payload.PageNumber,
				p.Payload.Ordinal, p.Payload.Content, p.Payload.ImageB64, ToLiteral(p.Vector))
		}
		return nil
	}
	if err := queue("text_embedding", textPoints); err != nil {
		return err
	}
	if err := queue("image_embedding", imagePoints); err != nil {
		return err
	}

	results := s.db.SendBatch(ctx, batch)
	defer results.Close()
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return opErr(pgvectorBackend, op, OperationErrorQueryFailed, "insert point failed", err)
		}
	}
	return nil
}

func (s *PGVector) Search(ctx context.Context, req SearchRequest) ([]Hit, error) {
	const op = "search"
	if len(req.Vector) == 0 {
		return nil, opErr(pgvectorBackend, op, OperationErrorValidation, "query vector is empty", nil)
	}
	col, err := spaceColumn(req.Space)
	if err != nil {
		return nil, opErr(pgvectorBackend, op, OperationErrorValidation, err.Error(), nil)
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 5
	}

	args := []any{ToLiteral(req.Vector), limit}
	filterSQL := ""
	if req.PaperID != "" {
		args = append(args, req.PaperID)
		filterSQL += fmt.Sprintf(" AND paper_id = $%d", len(args))
	}
	if req.ChunkType != "" {
		args = append(args, req.ChunkType)
		filterSQL += fmt.Sprintf(" AND chunk_type = $%d", len(args))
	}

	query := fmt.Sprintf(`
SELECT id::text, paper_id, chunk_type, page_number, ord,
       COALESCE(content, ''), COALESCE(image_b64, ''),
       1 - (%[1]s <=> $1::vector) AS score
FROM %[2]s
WHERE %[1]s IS NOT NULL%[3]s
ORDER BY %[1]s <=> $1::vector
LIMIT $2`, col, quotedTable(req.Collection), filterSQL)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, opErr(pgvectorBackend, op, OperationErrorQueryFailed, "vector search failed", err)
	}
	defer rows.Close()

	hits := make([]Hit, 0, limit)
	for rows.Next() {
		var h Hit
		p := &h.Payload
		if err := rows.Scan(&h.ID, &p.PaperID, &p.ChunkType, &p.PageNumber, &p.Ordinal, &p.Content, &p.ImageB64, &h.Score); err != nil {
			return nil, opErr(pgvectorBackend, op, OperationErrorDecodeFailed, "scan search row failed", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, opErr(pgvectorBackend, op, OperationErrorQueryFailed, "iterate search rows failed", err)
	}
	return hits, nil
}

func (s *PGVector) DeletePaper(ctx context.Context, collection, paperID string) error {
	q := fmt.Sprintf(`DELETE FROM %s WHERE paper_id = $1`, quotedTable(collection))
	tag, err := s.db.Exec(ctx, q, paperID)
	if err != nil {
		return opErr(pgvectorBackend, "delete_paper", OperationErrorQueryFailed, "delete points failed", err)
	}
	s.log.Debug("deleted paper points", "collection", collection, "paper_id", paperID, "rows", tag.RowsAffected())
	return nil
}

// ToLiteral renders a vector in pgvector's text format.
func ToLiteral(v []float32) string {
	parts := make([]string, 0, len(v))
	for _, x := range v {
		parts = append(parts, strconv.FormatFloat(float64(x), 'f', -1, 32))
	}
	return "[" + strings.Join(parts, ",") + "]"
}
