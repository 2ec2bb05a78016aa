package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"citegraph/internal/models"
	"citegraph/internal/storage"

	"github.com/jackc/pgx/v5"
)

// Postgres keeps the citation graph in graph_papers and graph_citations.
type Postgres struct {
	db *storage.DB
}

func NewPostgres(db *storage.DB) *Postgres {
	return &Postgres{db: db}
}

func (r *Postgres) EnsureSchema(ctx context.Context) error {
	return r.db.EnsureGraphSchema(ctx)
}

const paperColumns = `p.arxiv_id,
       COALESCE(p.title, ''),
       p.authors,
       COALESCE(p.abstract, ''),
       COALESCE(p.pdf_url, ''),
       COALESCE(p.publication_date, ''),
       COALESCE(p.ai_summary, ''),
       COALESCE(p.domain, ''),
       p.key_contributions,
       COALESCE(p.methodology, '')`

func scanPaper(row pgx.Row, extra ...any) (models.PaperMetadata, error) {
	var p models.PaperMetadata
	dest := []any{&p.ArxivID, &p.Title, &p.Authors, &p.Abstract, &p.PDFURL, &p.PublicationDate,
		&p.AISummary, &p.Domain, &p.KeyContributions, &p.Methodology}
	err := row.Scan(append(dest, extra...)...)
	return p, err
}

func paperArgs(p models.PaperMetadata) []any {
	return []any{
		strings.TrimSpace(p.ArxivID), nullable(p.Title), nonNil(p.Authors), nullable(p.Abstract),
		nullable(p.PDFURL), nullable(p.PublicationDate), nullable(p.AISummary), nullable(p.Domain),
		nonNil(p.KeyContributions), nullable(p.Methodology),
	}
}

func (r *Postgres) AddPaper(ctx context.Context, meta models.PaperMetadata) error {
	if strings.TrimSpace(meta.ArxivID) == "" {
		return fmt.Errorf("add paper: empty arxiv id")
	}
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO graph_papers(arxiv_id, title, authors, abstract, pdf_url, publication_date,
                         ai_summary, domain, key_contributions, methodology, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
ON CONFLICT (arxiv_id) DO UPDATE SET
  title = EXCLUDED.title,
  authors = EXCLUDED.authors,
  abstract = EXCLUDED.abstract,
  pdf_url = EXCLUDED.pdf_url,
  publication_date = EXCLUDED.publication_date,
  ai_summary = EXCLUDED.ai_summary,
  domain = EXCLUDED.domain,
  key_contributions = EXCLUDED.key_contributions,
  methodology = EXCLUDED.methodology,
  updated_at = now()`, paperArgs(meta)...)
	if err != nil {
		return fmt.Errorf("upsert graph paper %s: %w", meta.ArxivID, err)
	}
	return nil
}

func (r *Postgres) AddCitations(ctx context.Context, paperID string, citedIDs []string) error {
	paperID = strings.TrimSpace(paperID)
	cited := cleanCitations(paperID, citedIDs)
	if len(cited) == 0 {
		return nil
	}
	if paperID == "" {
		return fmt.Errorf("add citations: empty source id")
	}
	return pgx.BeginFunc(ctx, r.db.Pool, func(tx pgx.Tx) error {
		nodes := append([]string{paperID}, cited...)
		if _, err := tx.Exec(ctx, `
INSERT INTO graph_papers(arxiv_id)
SELECT unnest($1::text[])
ON CONFLICT (arxiv_id) DO NOTHING`, nodes); err != nil {
			return fmt.Errorf("merge cited papers: %w", err)
		}
		if _, err := tx.Exec(ctx, `
INSERT INTO graph_citations(source_id, target_id)
SELECT $1, unnest($2::text[])
ON CONFLICT (source_id, target_id) DO NOTHING`, paperID, cited); err != nil {
			return fmt.Errorf("merge citations: %w", err)
		}
		return nil
	})
}

func (r *Postgres) GetPaperMetadata(ctx context.Context, arxivID string) (models.PaperMetadata, error) {
	return withIDFallback(arxivID, func(id string) (models.PaperMetadata, error) {
		row := r.db.Pool.QueryRow(ctx, `
SELECT `+paperColumns+`,
       ARRAY(SELECT target_id FROM graph_citations WHERE source_id = p.arxiv_id ORDER BY target_id)
FROM graph_papers p
WHERE p.arxiv_id = $1`, id)
		var refs []string
		p, err := scanPaper(row, &refs)
		if errors.Is(err, pgx.ErrNoRows) {
			return models.PaperMetadata{}, notFound(id)
		}
		if err != nil {
			return models.PaperMetadata{}, fmt.Errorf("get graph paper %s: %w", id, err)
		}
		p.References = refs
		return normalize(p), nil
	}, nil)
}

func (r *Postgres) queryPapers(ctx context.Context, sql string, args ...any) ([]models.PaperMetadata, error) {
	rows, err := r.db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.PaperMetadata{}
	for rows.Next() {
		p, err := scanPaper(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, normalize(p))
	}
	return out, rows.Err()
}

func (r *Postgres) GetCitedPapersMetadata(ctx context.Context, arxivID string, limit int) ([]models.PaperMetadata, error) {
	limit = clampLimit(limit, 5)
	return withIDFallback(arxivID, func(id string) ([]models.PaperMetadata, error) {
		out, err := r.queryPapers(ctx, `
SELECT `+paperColumns+`
FROM graph_citations c
JOIN graph_papers p ON p.arxiv_id = c.target_id
WHERE c.source_id = $1 AND p.title IS NOT NULL AND p.abstract IS NOT NULL
ORDER BY p.arxiv_id
LIMIT $2`, id, limit)
		if err != nil {
			return nil, fmt.Errorf("get cited papers %s: %w", id, err)
		}
		return out, nil
	}, func(v []models.PaperMetadata) bool { return len(v) == 0 })
}

func (r *Postgres) GetIncompleteCitedPapers(ctx context.Context, limit int) ([]string, error) {
	limit = clampLimit(limit, 100)
	rows, err := r.db.Pool.Query(ctx, `
SELECT arxiv_id FROM graph_papers
WHERE title IS NULL OR abstract IS NULL
ORDER BY backfill_attempts, backfill_attempted_at NULLS FIRST, arxiv_id
LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("get incomplete papers: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan incomplete papers: %w", err)
	}
	return ids, nil
}

func (r *Postgres) MarkBackfillAttempted(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.Pool.Exec(ctx, `
UPDATE graph_papers
SET backfill_attempts = backfill_attempts + 1, backfill_attempted_at = now()
WHERE arxiv_id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("mark backfill attempted: %w", err)
	}
	return nil
}

func (r *Postgres) BackfillMetadata(ctx context.Context, papers []models.PaperMetadata) (int, error) {
	updated := 0
	for _, p := range papers {
		tag, err := r.db.Pool.Exec(ctx, `
UPDATE graph_papers SET
  title = $2, authors = $3, abstract = $4, pdf_url = $5, publication_date = $6,
  ai_summary = $7, domain = $8, key_contributions = $9, methodology = $10, updated_at = now()
WHERE arxiv_id = $1`, paperArgs(p)...)
		if err != nil {
			return updated, fmt.Errorf("backfill graph paper %s: %w", p.ArxivID, err)
		}
		updated += int(tag.RowsAffected())
	}
	return updated, nil
}

func (r *Postgres) Neighborhood(ctx context.Context, arxivID string, limit int) (models.Neighborhood, error) {
	limit = clampLimit(limit, 25)
	return withIDFallback(arxivID, func(id string) (models.Neighborhood, error) {
		center, err := scanPaper(r.db.Pool.QueryRow(ctx, `SELECT `+paperColumns+` FROM graph_papers p WHERE p.arxiv_id = $1`, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Neighborhood{}, notFound(id)
		}
		if err != nil {
			return models.Neighborhood{}, fmt.Errorf("get neighborhood center %s: %w", id, err)
		}
		outs, err := r.queryPapers(ctx, `
SELECT `+paperColumns+`
FROM graph_citations c JOIN graph_papers p ON p.arxiv_id = c.target_id
WHERE c.source_id = $1 ORDER BY p.arxiv_id LIMIT $2`, id, limit)
		if err != nil {
			return models.Neighborhood{}, fmt.Errorf("get cited neighbors %s: %w", id, err)
		}
		ins, err := r.queryPapers(ctx, `
SELECT `+paperColumns+`
FROM graph_citations c JOIN graph_papers p ON p.arxiv_id = c.source_id
WHERE c.target_id = $1 ORDER BY p.arxiv_id LIMIT $2`, id, limit)
		if err != nil {
			return models.Neighborhood{}, fmt.Errorf("get citing neighbors %s: %w", id, err)
		}

		nb := models.Neighborhood{Center: normalize(center), Nodes: []models.PaperMetadata{}, Edges: []models.CitationEdge{}}
		for _, p := range outs {
			nb.Nodes = append(nb.Nodes, p)
			nb.Edges = append(nb.Edges, models.CitationEdge{Source: id, Target: p.ArxivID})
		}
		for _, p := range ins {
			if len(nb.Nodes) == limit {
				break
			}
			nb.Nodes = append(nb.Nodes, p)
			nb.Edges = append(nb.Edges, models.CitationEdge{Source: p.ArxivID, Target: id})
		}
		return nb, nil
	}, nil)
}

func (r *Postgres) Recent(ctx context.Context, day string, limit int) (models.Subgraph, error) {
	limit = clampLimit(limit, 10)
	var papers []models.PaperMetadata
	var err error
	if day != "" {
		papers, err = r.queryPapers(ctx, `
SELECT `+paperColumns+`
FROM graph_papers p
WHERE p.title IS NOT NULL AND p.publication_date = $1
ORDER BY p.arxiv_id
LIMIT $2`, day, limit)
		if err != nil {
			return models.Subgraph{}, fmt.Errorf("get papers of %s: %w", day, err)
		}
	}
	if len(papers) == 0 {
		papers, err = r.queryPapers(ctx, `
SELECT `+paperColumns+`
FROM graph_papers p
WHERE p.title IS NOT NULL AND p.publication_date IS NOT NULL
ORDER BY p.publication_date DESC, p.arxiv_id
LIMIT $1`, limit)
		if err != nil {
			return models.Subgraph{}, fmt.Errorf("get latest papers: %w", err)
		}
	}

	sg := models.Subgraph{Papers: papers, Cited: []models.PaperMetadata{}, Edges: []models.CitationEdge{}}
	if len(papers) == 0 {
		return sg, nil
	}
	ids := make([]string, len(papers))
	for i, p := range papers {
		ids[i] = p.ArxivID
	}
	rows, err := r.db.Pool.Query(ctx, `
SELECT `+paperColumns+`, c.source_id
FROM graph_citations c JOIN graph_papers p ON p.arxiv_id = c.target_id
WHERE c.source_id = ANY($1)
ORDER BY c.source_id, p.arxiv_id`, ids)
	if err != nil {
		return models.Subgraph{}, fmt.Errorf("get cited by recent papers: %w", err)
	}
	defer rows.Close()
	seen := map[string]bool{}
	for rows.Next() {
		var source string
		c, err := scanPaper(rows, &source)
		if err != nil {
			return models.Subgraph{}, fmt.Errorf("scan cited paper: %w", err)
		}
		sg.Edges = append(sg.Edges, models.CitationEdge{Source: source, Target: c.ArxivID})
		if !seen[c.ArxivID] {
			seen[c.ArxivID] = true
			sg.Cited = append(sg.Cited, normalize(c))
		}
	}
	return sg, rows.Err()
}

// Close is a no-op; the pool belongs to the caller.
func (r *Postgres) Close(context.Context) error { return nil }
