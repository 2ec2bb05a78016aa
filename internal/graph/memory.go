package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"citegraph/internal/models"
)

// Memory is an in-process graph used by tests and local runs.
type Memory struct {
	mu       sync.RWMutex
	papers   map[string]models.PaperMetadata
	order    []string
	cites    map[string]map[string]bool
	attempts map[string]backfillAttempt
	tick     uint64
}

type backfillAttempt struct {
	count int
	last  uint64
}

func NewMemory() *Memory {
	return &Memory{
		papers:   map[string]models.PaperMetadata{},
		cites:    map[string]map[string]bool{},
		attempts: map[string]backfillAttempt{},
	}
}

func (m *Memory) merge(id string) {
	if _, ok := m.papers[id]; ok {
		return
	}
	m.papers[id] = models.PaperMetadata{ArxivID: id}
	m.order = append(m.order, id)
}

func stored(meta models.PaperMetadata) models.PaperMetadata {
	meta.ArxivID = strings.TrimSpace(meta.ArxivID)
	meta.Authors = append([]string(nil), meta.Authors...)
	meta.KeyContributions = append([]string(nil), meta.KeyContributions...)
	meta.References = nil
	return meta
}

func (m *Memory) AddPaper(_ context.Context, meta models.PaperMetadata) error {
	meta = stored(meta)
	if meta.ArxivID == "" {
		return fmt.Errorf("add paper: empty arxiv id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.merge(meta.ArxivID)
	m.papers[meta.ArxivID] = meta
	return nil
}

func (m *Memory) AddCitations(_ context.Context, paperID string, citedIDs []string) error {
	paperID = strings.TrimSpace(paperID)
	cited := cleanCitations(paperID, citedIDs)
	if len(cited) == 0 {
		return nil
	}
	if paperID == "" {
		return fmt.Errorf("add citations: empty source id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.merge(paperID)
	edges := m.cites[paperID]
	if edges == nil {
		edges = map[string]bool{}
		m.cites[paperID] = edges
	}
	for _, id := range cited {
		m.merge(id)
		edges[id] = true
	}
	return nil
}

func (m *Memory) citedIDs(id string) []string {
	out := make([]string, 0, len(m.cites[id]))
	for target := range m.cites[id] {
		out = append(out, target)
	}
	sort.Strings(out)
	return out
}

func (m *Memory) GetPaperMetadata(_ context.Context, arxivID string) (models.PaperMetadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return withIDFallback(arxivID, func(id string) (models.PaperMetadata, error) {
		p, ok := m.papers[id]
		if !ok {
			return models.PaperMetadata{}, notFound(id)
		}
		p.References = m.citedIDs(id)
		return normalize(p), nil
	}, nil)
}

func (m *Memory) GetCitedPapersMetadata(_ context.Context, arxivID string, limit int) ([]models.PaperMetadata, error) {
	limit = clampLimit(limit, 5)
	m.mu.RLock()
	defer m.mu.RUnlock()
	return withIDFallback(arxivID, func(id string) ([]models.PaperMetadata, error) {
		out := []models.PaperMetadata{}
		for _, target := range m.citedIDs(id) {
			p := m.papers[target]
			if !p.IsComplete() {
				continue
			}
			out = append(out, normalize(p))
			if len(out) == limit {
				break
			}
		}
		return out, nil
	}, func(v []models.PaperMetadata) bool { return len(v) == 0 })
}

func (m *Memory) GetIncompleteCitedPapers(_ context.Context, limit int) ([]string, error) {
	limit = clampLimit(limit, 100)
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []string{}
	for _, id := range m.order {
		if !m.papers[id].IsComplete() {
			out = append(out, id)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := m.attempts[out[i]], m.attempts[out[j]]
		if a.count != b.count {
			return a.count < b.count
		}
		return a.last < b.last
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) MarkBackfillAttempted(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tick++
	for _, id := range ids {
		if _, ok := m.papers[id]; !ok {
			continue
		}
		a := m.attempts[id]
		a.count++
		a.last = m.tick
		m.attempts[id] = a
	}
	return nil
}

func (m *Memory) BackfillMetadata(_ context.Context, papers []models.PaperMetadata) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	updated := 0
	for _, p := range papers {
		p = stored(p)
		if _, ok := m.papers[p.ArxivID]; !ok {
			continue
		}
		m.papers[p.ArxivID] = p
		updated++
	}
	return updated, nil
}

func (m *Memory) Neighborhood(_ context.Context, arxivID string, limit int) (models.Neighborhood, error) {
	limit = clampLimit(limit, 25)
	m.mu.RLock()
	defer m.mu.RUnlock()
	return withIDFallback(arxivID, func(id string) (models.Neighborhood, error) {
		center, ok := m.papers[id]
		if !ok {
			return models.Neighborhood{}, notFound(id)
		}
		nb := models.Neighborhood{Center: normalize(center), Nodes: []models.PaperMetadata{}, Edges: []models.CitationEdge{}}
		for _, target := range m.citedIDs(id) {
			if len(nb.Nodes) == limit {
				break
			}
			nb.Nodes = append(nb.Nodes, normalize(m.papers[target]))
			nb.Edges = append(nb.Edges, models.CitationEdge{Source: id, Target: target})
		}
		for _, source := range m.order {
			if len(nb.Nodes) == limit {
				break
			}
			if m.cites[source][id] {
				nb.Nodes = append(nb.Nodes, normalize(m.papers[source]))
				nb.Edges = append(nb.Edges, models.CitationEdge{Source: source, Target: id})
			}
		}
		return nb, nil
	}, nil)
}

func (m *Memory) Recent(_ context.Context, day string, limit int) (models.Subgraph, error) {
	limit = clampLimit(limit, 10)
	m.mu.RLock()
	defer m.mu.RUnlock()

	var onDay, dated []models.PaperMetadata
	for _, id := range m.order {
		p := m.papers[id]
		if p.Title == "" || p.PublicationDate == "" {
			continue
		}
		dated = append(dated, p)
		if day != "" && p.PublicationDate == day {
			onDay = append(onDay, p)
		}
	}
	papers := onDay
	if len(papers) == 0 {
		papers = dated
		sort.SliceStable(papers, func(i, j int) bool { return papers[i].PublicationDate > papers[j].PublicationDate })
	} else {
		sort.Slice(papers, func(i, j int) bool { return papers[i].ArxivID < papers[j].ArxivID })
	}
	if len(papers) > limit {
		papers = papers[:limit]
	}

	sg := models.Subgraph{Papers: []models.PaperMetadata{}, Cited: []models.PaperMetadata{}, Edges: []models.CitationEdge{}}
	seen := map[string]bool{}
	for _, p := range papers {
		sg.Papers = append(sg.Papers, normalize(p))
		for _, target := range m.citedIDs(p.ArxivID) {
			sg.Edges = append(sg.Edges, models.CitationEdge{Source: p.ArxivID, Target: target})
			if !seen[target] {
				seen[target] = true
				sg.Cited = append(sg.Cited, normalize(m.papers[target]))
			}
		}
	}
	return sg, nil
}

func (m *Memory) Close(context.Context) error { return nil }
