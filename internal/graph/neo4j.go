package graph

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"citegraph/internal/logger"
	"citegraph/internal/models"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type Neo4jConfig struct {
	URI         string
	User        string
	Password    string
	Database    string
	MaxPoolSize int
	Timeout     time.Duration
}

// Neo4j stores papers as (:Paper {arxiv_id}) nodes joined by [:CITES].
type Neo4j struct {
	driver   neo4j.DriverWithContext
	database string
	log      *logger.Logger
}

func NewNeo4j(ctx context.Context, log *logger.Logger, cfg Neo4jConfig) (*Neo4j, error) {
	if strings.TrimSpace(cfg.URI) == "" {
		return nil, fmt.Errorf("neo4j: uri required")
	}
	if log == nil {
		log = logger.Nop()
	}
	if cfg.MaxPoolSize <= 0 {
		cfg.MaxPoolSize = 50
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""), func(c *neo4j.Config) {
		c.MaxConnectionPoolSize = cfg.MaxPoolSize
		c.SocketConnectTimeout = cfg.Timeout
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j: init driver: %w", err)
	}
	vctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(vctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4j: verify connectivity: %w", err)
	}
	return &Neo4j{driver: driver, database: cfg.Database, log: log.With("client", "Neo4jGraph")}, nil
}

// EnsureSchema creates the arxiv_id uniqueness constraint.
func (g *Neo4j) EnsureSchema(ctx context.Context) error {
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite, DatabaseName: g.database})
	defer session.Close(ctx)
	res, err := session.Run(ctx, `CREATE CONSTRAINT paper_arxiv_id_unique IF NOT EXISTS FOR (p:Paper) REQUIRE p.arxiv_id IS UNIQUE`, nil)
	if err != nil {
		return fmt.Errorf("neo4j: create constraint: %w", err)
	}
	_, err = res.Consume(ctx)
	return err
}

const setPaperProps = `p.title = row.title,
    p.authors = row.authors,
    p.abstract = row.abstract,
    p.pdf_url = row.pdf_url,
    p.publication_date = row.publication_date,
    p.ai_summary = row.ai_summary,
    p.domain = row.domain,
    p.key_contributions = row.key_contributions,
    p.methodology = row.methodology`

const (
	addPaperQuery = `
WITH $row AS row
MERGE (p:Paper {arxiv_id: row.arxiv_id})
SET ` + setPaperProps
	addCitationsQuery = `
MERGE (source:Paper {arxiv_id: $paper_id})
WITH source
UNWIND $cited_ids AS cid
MERGE (cited:Paper {arxiv_id: cid})
MERGE (source)-[:CITES]->(cited)`
	paperQuery = `
MATCH (p:Paper {arxiv_id: $id})
OPTIONAL MATCH (p)-[:CITES]->(c:Paper)
WITH p, c ORDER BY c.arxiv_id
RETURN p {.*} AS paper, collect(c.arxiv_id) AS refs`
	citedPapersQuery = `
MATCH (:Paper {arxiv_id: $id})-[:CITES]->(cited:Paper)
WHERE cited.title IS NOT NULL AND cited.abstract IS NOT NULL
RETURN cited {.*} AS paper
ORDER BY cited.arxiv_id
LIMIT $limit`
	// Stubs nobody has failed to resolve come first, then the longest untried.
	incompleteQuery = `
MATCH (p:Paper)
WHERE p.title IS NULL OR p.abstract IS NULL
RETURN p.arxiv_id AS id
ORDER BY coalesce(p.backfill_attempts, 0), coalesce(p.backfill_attempted_at, datetime({epochMillis: 0})), id
LIMIT $limit`
	markAttemptedQuery = `
UNWIND $ids AS id
MATCH (p:Paper {arxiv_id: id})
SET p.backfill_attempts = coalesce(p.backfill_attempts, 0) + 1,
    p.backfill_attempted_at = datetime()`
	backfillQuery = `
UNWIND $rows AS row
MATCH (p:Paper {arxiv_id: row.arxiv_id})
SET ` + setPaperProps + `
RETURN count(p) AS updated`
	neighborhoodQuery = `
MATCH (p:Paper {arxiv_id: $id})
OPTIONAL MATCH (p)-[:CITES]->(out:Paper)
WITH p, out ORDER BY out.arxiv_id
WITH p, collect(out {.*})[..$limit] AS outs
OPTIONAL MATCH (src:Paper)-[:CITES]->(p)
WITH p, outs, src ORDER BY src.arxiv_id
RETURN p {.*} AS center, outs, collect(src {.*})[..$limit] AS ins`
)

var queryParamPattern = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)

// checkParams rejects a query that names a parameter the caller did not bind.
func checkParams(query string, params map[string]any) error {
	var missing []string
	for _, m := range queryParamPattern.FindAllStringSubmatch(query, -1) {
		if _, ok := params[m[1]]; !ok && !slices.Contains(missing, m[1]) {
			missing = append(missing, m[1])
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("cypher parameters not bound: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (g *Neo4j) write(ctx context.Context, query string, params map[string]any) ([]*neo4j.Record, error) {
	if err := checkParams(query, params); err != nil {
		return nil, err
	}
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite, DatabaseName: g.database})
	defer session.Close(ctx)
	out, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}
	return out.([]*neo4j.Record), nil
}

func (g *Neo4j) read(ctx context.Context, query string, params map[string]any) ([]*neo4j.Record, error) {
	if err := checkParams(query, params); err != nil {
		return nil, err
	}
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead, DatabaseName: g.database})
	defer session.Close(ctx)
	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}
	return out.([]*neo4j.Record), nil
}


func (g *Neo4j) AddPaper(ctx context.Context, meta models.PaperMetadata) error {
	if strings.TrimSpace(meta.ArxivID) == "" {
		return fmt.Errorf("add paper: empty arxiv id")
	}
	_, err := g.write(ctx, addPaperQuery, map[string]any{"row": paperParams(meta)})
	if err != nil {
		return fmt.Errorf("neo4j add paper %s: %w", meta.ArxivID, err)
	}
	return nil
}

func (g *Neo4j) AddCitations(ctx context.Context, paperID string, citedIDs []string) error {
	paperID = strings.TrimSpace(paperID)
	cited := cleanCitations(paperID, citedIDs)
	if len(cited) == 0 {
		return nil
	}
	if paperID == "" {
		return fmt.Errorf("add citations: empty source id")
	}
	_, err := g.write(ctx, addCitationsQuery, map[string]any{"paper_id": paperID, "cited_ids": cited})
	if err != nil {
		return fmt.Errorf("neo4j add citations %s: %w", paperID, err)
	}
	return nil
}

func (g *Neo4j) GetPaperMetadata(ctx context.Context, arxivID string) (models.PaperMetadata, error) {
	return withIDFallback(arxivID, func(id string) (models.PaperMetadata, error) {
		recs, err := g.read(ctx, paperQuery, map[string]any{"id": id})
		if err != nil {
			return models.PaperMetadata{}, fmt.Errorf("neo4j get paper %s: %w", id, err)
		}
		if len(recs) == 0 {
			return models.PaperMetadata{}, notFound(id)
		}
		props, _ := recs[0].Get("paper")
		refs, _ := recs[0].Get("refs")
		p := paperFromProps(props)
		p.References = stringList(refs)
		return normalize(p), nil
	}, nil)
}

func (g *Neo4j) GetCitedPapersMetadata(ctx context.Context, arxivID string, limit int) ([]models.PaperMetadata, error) {
	limit = clampLimit(limit, 5)
	return withIDFallback(arxivID, func(id string) ([]models.PaperMetadata, error) {
		recs, err := g.read(ctx, citedPapersQuery, map[string]any{"id": id, "limit": int64(limit)})
		if err != nil {
			return nil, fmt.Errorf("neo4j get cited papers %s: %w", id, err)
		}
		return papersFromRecords(recs, "paper"), nil
	}, func(v []models.PaperMetadata) bool { return len(v) == 0 })
}

func (g *Neo4j) GetIncompleteCitedPapers(ctx context.Context, limit int) ([]string, error) {
	limit = clampLimit(limit, 100)
	recs, err := g.read(ctx, incompleteQuery, map[string]any{"limit": int64(limit)})
	if err != nil {
		return nil, fmt.Errorf("neo4j get incomplete papers: %w", err)
	}
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		v, _ := r.Get("id")
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (g *Neo4j) MarkBackfillAttempted(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := g.write(ctx, markAttemptedQuery, map[string]any{"ids": ids})
	if err != nil {
		return fmt.Errorf("neo4j mark backfill attempted: %w", err)
	}
	return nil
}

func (g *Neo4j) BackfillMetadata(ctx context.Context, papers []models.PaperMetadata) (int, error) {
	if len(papers) == 0 {
		return 0, nil
	}
	rows := make([]map[string]any, 0, len(papers))
	for _, p := range papers {
		rows = append(rows, paperParams(p))
	}
	recs, err := g.write(ctx, backfillQuery, map[string]any{"rows": rows})
	if err != nil {
		return 0, fmt.Errorf("neo4j backfill: %w", err)
	}
	if len(recs) == 0 {
		return 0, nil
	}
	v, _ := recs[0].Get("updated")
	n, _ := v.(int64)
	return int(n), nil
}

func (g *Neo4j) Neighborhood(ctx context.Context, arxivID string, limit int) (models.Neighborhood, error) {
	limit = clampLimit(limit, 25)
	return withIDFallback(arxivID, func(id string) (models.Neighborhood, error) {
		recs, err := g.read(ctx, neighborhoodQuery, map[string]any{"id": id, "limit": int64(limit)})
		if err != nil {
			return models.Neighborhood{}, fmt.Errorf("neo4j neighborhood %s: %w", id, err)
		}
		if len(recs) == 0 {
			return models.Neighborhood{}, notFound(id)
		}
		center, _ := recs[0].Get("center")
		outs, _ := recs[0].Get("outs")
		ins, _ := recs[0].Get("ins")

		nb := models.Neighborhood{Center: normalize(paperFromProps(center)), Nodes: []models.PaperMetadata{}, Edges: []models.CitationEdge{}}
		for _, raw := range anyList(outs) {
			if len(nb.Nodes) == limit {
				break
			}
			p := normalize(paperFromProps(raw))
			nb.Nodes = append(nb.Nodes, p)
			nb.Edges = append(nb.Edges, models.CitationEdge{Source: id, Target: p.ArxivID})
		}
		for _, raw := range anyList(ins) {
			if len(nb.Nodes) == limit {
				break
			}
			p := normalize(paperFromProps(raw))
			nb.Nodes = append(nb.Nodes, p)
			nb.Edges = append(nb.Edges, models.CitationEdge{Source: p.ArxivID, Target: id})
		}
		return nb, nil
	}, nil)
}

const (
	recentOnDayQuery = `
MATCH (p:Paper)
WHERE p.title IS NOT NULL AND p.publication_date = $day
RETURN p {.*} AS paper
ORDER BY p.arxiv_id
LIMIT $limit`
	recentLatestQuery = `
MATCH (p:Paper)
WHERE p.title IS NOT NULL AND p.publication_date IS NOT NULL
RETURN p {.*} AS paper
ORDER BY p.publication_date DESC, p.arxiv_id
LIMIT $limit`
	recentCitedQuery = `
MATCH (p:Paper)-[:CITES]->(c:Paper)
WHERE p.arxiv_id IN $ids
RETURN p.arxiv_id AS source, c {.*} AS cited
ORDER BY source, c.arxiv_id`
)

func (g *Neo4j) Recent(ctx context.Context, day string, limit int) (models.Subgraph, error) {
	limit = clampLimit(limit, 10)
	params := map[string]any{"day": day, "limit": int64(limit)}
	var recs []*neo4j.Record
	var err error
	if day != "" {
		recs, err = g.read(ctx, recentOnDayQuery, params)
		if err != nil {
			return models.Subgraph{}, fmt.Errorf("neo4j papers of %s: %w", day, err)
		}
	}
	if len(recs) == 0 {
		recs, err = g.read(ctx, recentLatestQuery, params)
		if err != nil {
			return models.Subgraph{}, fmt.Errorf("neo4j latest papers: %w", err)
		}
	}

	sg := models.Subgraph{Papers: papersFromRecords(recs, "paper"), Cited: []models.PaperMetadata{}, Edges: []models.CitationEdge{}}
	if len(sg.Papers) == 0 {
		return sg, nil
	}
	ids := make([]string, len(sg.Papers))
	for i, p := range sg.Papers {
		ids[i] = p.ArxivID
	}
	cited, err := g.read(ctx, recentCitedQuery, map[string]any{"ids": ids})
	if err != nil {
		return models.Subgraph{}, fmt.Errorf("neo4j cited by recent papers: %w", err)
	}
	seen := map[string]bool{}
	for _, r := range cited {
		src, _ := r.Get("source")
		raw, _ := r.Get("cited")
		c := normalize(paperFromProps(raw))
		sg.Edges = append(sg.Edges, models.CitationEdge{Source: str(src), Target: c.ArxivID})
		if !seen[c.ArxivID] {
			seen[c.ArxivID] = true
			sg.Cited = append(sg.Cited, c)
		}
	}
	return sg, nil
}

func (g *Neo4j) Close(ctx context.Context) error {
	if g == nil || g.driver == nil {
		return nil
	}
	return g.driver.Close(ctx)
}

// paperParams renders metadata as Cypher parameters. Blank strings become
// null so a paper without title or abstract stays a stub.
func paperParams(p models.PaperMetadata) map[string]any {
	return map[string]any{
		"arxiv_id":          strings.TrimSpace(p.ArxivID),
		"title":             nullable(p.Title),
		"authors":           nonNil(p.Authors),
		"abstract":          nullable(p.Abstract),
		"pdf_url":           nullable(p.PDFURL),
		"publication_date":  nullable(p.PublicationDate),
		"ai_summary":        nullable(p.AISummary),
		"domain":            nullable(p.Domain),
		"key_contributions": nonNil(p.KeyContributions),
		"methodology":       nullable(p.Methodology),
	}
}

func nullable(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func paperFromProps(v any) models.PaperMetadata {
	m, _ := v.(map[string]any)
	return models.PaperMetadata{
		ArxivID:          str(m["arxiv_id"]),
		Title:            str(m["title"]),
		Authors:          stringList(m["authors"]),
		Abstract:         str(m["abstract"]),
		PDFURL:           str(m["pdf_url"]),
		PublicationDate:  str(m["publication_date"]),
		AISummary:        str(m["ai_summary"]),
		Domain:           str(m["domain"]),
		KeyContributions: stringList(m["key_contributions"]),
		Methodology:      str(m["methodology"]),
	}
}

func papersFromRecords(recs []*neo4j.Record, key string) []models.PaperMetadata {
	out := make([]models.PaperMetadata, 0, len(recs))
	for _, r := range recs {
		v, _ := r.Get(key)
		out = append(out, normalize(paperFromProps(v)))
	}
	return out
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func anyList(v any) []any {
	l, _ := v.([]any)
	return l
}

func stringList(v any) []string {
	switch l := v.(type) {
	case []string:
		return l
	case []any:
		out := make([]string, 0, len(l))
		for _, x := range l {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return []string{}
}
