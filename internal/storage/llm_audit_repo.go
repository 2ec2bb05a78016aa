package storage

import (
	"context"
	"fmt"
)

type LLMCallRecord struct {
	CallID       string
	Operation    string
	PaperID      string
	ProviderName string
	Model        string
	Status       string
	ErrorType    string
	LatencyMS    int64
}

type LLMAuditRepo struct {
	db *DB
}

func NewLLMAuditRepo(db *DB) *LLMAuditRepo {
	return &LLMAuditRepo{db: db}
}

func (r *LLMAuditRepo) Insert(ctx context.Context, rec LLMCallRecord) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO llm_calls(call_id, operation, paper_id, provider_name, model, status, error_type, latency_ms)
VALUES (COALESCE(NULLIF($1,'')::uuid, gen_random_uuid()), $2, NULLIF($3,''), $4, $5, $6, NULLIF($7,''), $8)`,
		rec.CallID, rec.Operation, rec.PaperID, rec.ProviderName, rec.Model, rec.Status, rec.ErrorType, rec.LatencyMS)
	if err != nil {
		return fmt.Errorf("insert llm call: %w", err)
	}
	return nil
}

type LLMCallStat struct {
	Operation string  `json:"operation"`
	Status    string  `json:"status"`
	Calls     int64   `json:"calls"`
	AvgMS     float64 `json:"avg_ms"`
}

// Stats aggregates recorded calls per operation and status.
func (r *LLMAuditRepo) Stats(ctx context.Context) ([]LLMCallStat, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT operation, status, COUNT(*), COALESCE(AVG(latency_ms), 0)
FROM llm_calls
GROUP BY operation, status
ORDER BY operation, status`)
	if err != nil {
		return nil, fmt.Errorf("query llm call stats: %w", err)
	}
	defer rows.Close()
	out := make([]LLMCallStat, 0)
	for rows.Next() {
		var s LLMCallStat
		if err := rows.Scan(&s.Operation, &s.Status, &s.Calls, &s.AvgMS); err != nil {
			return nil, fmt.Errorf("scan llm call stat: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
