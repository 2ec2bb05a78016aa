package ingest

import (
	"context"
	"fmt"

	"citegraph/internal/graph"
	"citegraph/internal/logger"
	"citegraph/internal/models"
)

type SweepResult struct {
	Requested int      `json:"requested"`
	Resolved  int      `json:"resolved"`
	Missing   []string `json:"missing,omitempty"`
}

// Sweeper fills citation stubs from the metadata lookup, one bounded batch
// per call.
type Sweeper struct {
	graph  graph.Store
	lookup MetadataLookup
	log    *logger.Logger
}

func NewSweeper(log *logger.Logger, g graph.Store, lookup MetadataLookup) *Sweeper {
	if log == nil {
		log = logger.Nop()
	}
	return &Sweeper{graph: g, lookup: lookup, log: log.With("component", "BackfillSweeper")}
}

// Sweep resolves at most max stubs with a single lookup call. Resolving
// nothing is not an error. Stubs the lookup did not answer are marked as
// attempted, so the next sweep starts with stubs that have not been tried.
func (s *Sweeper) Sweep(ctx context.Context, max int) (SweepResult, error) {
	if max <= 0 {
		max = 20
	}
	ids, err := s.graph.GetIncompleteCitedPapers(ctx, max)
	if err != nil {
		return SweepResult{}, fmt.Errorf("list citation stubs: %w", err)
	}
	res := SweepResult{Requested: len(ids)}
	if len(ids) == 0 {
		s.log.Debug("no incomplete cited papers")
		return res, nil
	}

	s.log.Info("backfilling cited papers", "count", len(ids))
	found, err := s.lookup.FetchByIDs(ctx, ids)
	if err != nil {
		res.Missing = ids
		return res, fmt.Errorf("lookup citation stubs: %w", err)
	}

	matched := matchStubs(ids, found)
	if len(matched) > 0 {
		n, err := s.graph.BackfillMetadata(ctx, matched)
		res.Resolved = n
		if err != nil {
			return res, fmt.Errorf("backfill metadata: %w", err)
		}
	}

	done := make(map[string]bool, len(matched))
	for _, m := range matched {
		done[m.ArxivID] = true
	}
	for _, id := range ids {
		if !done[id] {
			res.Missing = append(res.Missing, id)
		}
	}
	if len(res.Missing) > 0 {
		if err := s.graph.MarkBackfillAttempted(ctx, res.Missing); err != nil {
			s.log.Warn("recording unresolved stubs failed", "count", len(res.Missing), "error", err)
		}
		s.log.Info("backfill partially resolved", "resolved", res.Resolved, "missing", len(res.Missing))
	} else {
		s.log.Info("backfill resolved batch", "resolved", res.Resolved)
	}
	return res, nil
}

// matchStubs maps lookup answers back onto stub ids. The lookup usually
// answers with a versioned id ("2001.00001v3") for an unversioned stub, so a
// result matches a stub by exact id first and by version-less id second.
func matchStubs(stubs []string, found []models.PaperMetadata) []models.PaperMetadata {
	pending := make(map[string]bool, len(stubs))
	byBase := map[string][]string{}
	for _, id := range stubs {
		pending[id] = true
		base := models.BaseID(id)
		byBase[base] = append(byBase[base], id)
	}

	out := make([]models.PaperMetadata, 0, len(found))
	assign := func(id string, m models.PaperMetadata) {
		m.ArxivID = id
		out = append(out, m)
		delete(pending, id)
	}
	var unmatched []models.PaperMetadata
	for _, m := range found {
		if pending[m.ArxivID] {
			assign(m.ArxivID, m)
		} else {
			unmatched = append(unmatched, m)
		}
	}
	for _, m := range unmatched {
		for _, id := range byBase[models.BaseID(m.ArxivID)] {
			if pending[id] {
				assign(id, m)
			}
		}
	}
	return out
}
