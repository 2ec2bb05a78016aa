package storage

import (
	"context"
	"fmt"
)

var auditSchema = []string{
	`CREATE EXTENSION IF NOT EXISTS pgcrypto`,
	`CREATE TABLE IF NOT EXISTS llm_calls (
	call_id       uuid PRIMARY KEY,
	operation     text NOT NULL,
	paper_id      text,
	provider_name text NOT NULL,
	model         text NOT NULL,
	status        text NOT NULL,
	error_type    text,
	latency_ms    bigint NOT NULL DEFAULT 0,
	created_at    timestamptz NOT NULL DEFAULT now()
)`,
	`CREATE INDEX IF NOT EXISTS llm_calls_paper_idx ON llm_calls(paper_id)`,
}

var graphSchema = []string{
	`CREATE TABLE IF NOT EXISTS graph_papers (
	arxiv_id          text PRIMARY KEY,
	title             text,
	authors           text[] NOT NULL DEFAULT '{}',
	abstract          text,
	pdf_url           text,
	publication_date  text,
	ai_summary        text,
	domain            text,
	key_contributions text[] NOT NULL DEFAULT '{}',
	methodology       text,
	updated_at        timestamptz NOT NULL DEFAULT now()
)`,
	`CREATE TABLE IF NOT EXISTS graph_citations (
	source_id  text NOT NULL REFERENCES graph_papers(arxiv_id),
	target_id  text NOT NULL REFERENCES graph_papers(arxiv_id),
	created_at timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY (source_id, target_id)
)`,
	`CREATE INDEX IF NOT EXISTS graph_citations_target_idx ON graph_citations(target_id)`,
	`CREATE INDEX IF NOT EXISTS graph_papers_incomplete_idx ON graph_papers(arxiv_id) WHERE title IS NULL OR abstract IS NULL`,
	`ALTER TABLE graph_papers ADD COLUMN IF NOT EXISTS backfill_attempts integer NOT NULL DEFAULT 0`,
	`ALTER TABLE graph_papers ADD COLUMN IF NOT EXISTS backfill_attempted_at timestamptz`,
	`CREATE INDEX IF NOT EXISTS graph_papers_published_idx ON graph_papers(publication_date) WHERE title IS NOT NULL`,
}

// EnsureAuditSchema creates the LLM call audit table.
func (d *DB) EnsureAuditSchema(ctx context.Context) error {
	return d.exec(ctx, "audit", auditSchema)
}

// EnsureGraphSchema creates the relational citation graph tables.
func (d *DB) EnsureGraphSchema(ctx context.Context) error {
	return d.exec(ctx, "graph", graphSchema)
}

func (d *DB) exec(ctx context.Context, name string, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := d.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure %s schema: %w", name, err)
		}
	}
	return nil
}
