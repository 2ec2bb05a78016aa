package graph

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"citegraph/internal/models"
)

var ErrNotFound = errors.New("paper not found in graph")

// Store is the graph store gateway over Paper nodes and CITES edges.
type Store interface {
	// AddPaper merges the node keyed by ArxivID and overwrites every attribute.
	AddPaper(ctx context.Context, meta models.PaperMetadata) error
	// AddCitations merges a node for every cited id and one edge per pair.
	AddCitations(ctx context.Context, paperID string, citedIDs []string) error
	GetPaperMetadata(ctx context.Context, arxivID string) (models.PaperMetadata, error)
	// GetCitedPapersMetadata returns complete papers cited by arxivID.
	GetCitedPapersMetadata(ctx context.Context, arxivID string, limit int) ([]models.PaperMetadata, error)
	// GetIncompleteCitedPapers returns ids of nodes lacking title or abstract,
	// fewest failed backfill attempts first, then the oldest attempt, then id.
	GetIncompleteCitedPapers(ctx context.Context, limit int) ([]string, error)
	// MarkBackfillAttempted counts one unanswered lookup against each stub so
	// later sweeps move on to stubs behind it.
	MarkBackfillAttempted(ctx context.Context, ids []string) error
	// BackfillMetadata overwrites known nodes only and reports how many matched.
	BackfillMetadata(ctx context.Context, papers []models.PaperMetadata) (int, error)
	Neighborhood(ctx context.Context, arxivID string, limit int) (models.Neighborhood, error)
	// Recent returns the titled papers published on day, or the latest limit
	// titled papers when day has none, with everything they cite.
	Recent(ctx context.Context, day string, limit int) (models.Subgraph, error)
	Close(ctx context.Context) error
}

// cleanCitations trims ids, drops blanks, duplicates and the source itself.
func cleanCitations(paperID string, cited []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(cited))
	for _, id := range cited {
		id = strings.TrimSpace(id)
		if id == "" || id == paperID || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// withIDFallback runs read for each candidate id until one yields a result.
// ErrNotFound and empty slices move on to the next candidate.
func withIDFallback[T any](id string, read func(string) (T, error), empty func(T) bool) (T, error) {
	var (
		zero    T
		lastErr error = ErrNotFound
	)
	for _, candidate := range models.CandidateIDs(id) {
		v, err := read(candidate)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return zero, err
		}
		if empty != nil && empty(v) {
			zero, lastErr = v, nil
			continue
		}
		return v, nil
	}
	return zero, lastErr
}

func notFound(id string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

// normalize coerces absent lists to empty ones so callers never see nil.
func normalize(p models.PaperMetadata) models.PaperMetadata {
	if p.Authors == nil {
		p.Authors = []string{}
	}
	if p.KeyContributions == nil {
		p.KeyContributions = []string{}
	}
	return p
}

func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	return limit
}
