package insight

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"citegraph/internal/graph"
	"citegraph/internal/logger"
	"citegraph/internal/models"
	"citegraph/internal/providers"
	"citegraph/internal/util"
	"citegraph/internal/vector"
)

type Status string

const (
	StatusOK               Status = "ok"
	StatusNotIngested      Status = "not_ingested"
	StatusGenerationFailed Status = "generation_failed"
)

const (
	promptChunks       = 3
	chunkExcerptRunes  = 200
	abstractFallback   = 500
	citedAbstractRunes = 150
)

// Insight is the user-facing outcome of Generate. Infrastructure failures are
// returned as errors instead.
type Insight struct {
	PaperID     string    `json:"paper_id"`
	Status      Status    `json:"status"`
	Text        string    `json:"text"`
	Cause       string    `json:"cause,omitempty"`
	ChunksUsed  int       `json:"chunks_used"`
	CitedUsed   int       `json:"cited_used"`
	Degraded    []string  `json:"degraded,omitempty"`
	Cached      bool      `json:"cached,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
}

type Options struct {
	Collection string
	Model      string
	MaxCited   int
	MaxChunks  int
	CacheTTL   time.Duration
}

type Assembler struct {
	log     *logger.Logger
	graph   graph.Store
	vectors vector.Store
	text    providers.TextEmbedder
	chat    providers.ChatClient
	cache   Cache
	opts    Options
}

// New builds an assembler. cache may be nil.
func New(log *logger.Logger, g graph.Store, vs vector.Store, text providers.TextEmbedder, chat providers.ChatClient, cache Cache, opts Options) (*Assembler, error) {
	if g == nil || vs == nil || text == nil || chat == nil {
		return nil, errors.New("insight: graph, vector store, text embedder and chat client are required")
	}
	if log == nil {
		log = logger.Nop()
	}
	if opts.Collection == "" {
		opts.Collection = "papers"
	}
	if opts.MaxCited <= 0 {
		opts.MaxCited = 5
	}
	if opts.MaxChunks <= 0 {
		opts.MaxChunks = 5
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 24 * time.Hour
	}
	return &Assembler{log: log, graph: g, vectors: vs, text: text, chat: chat, cache: cache, opts: opts}, nil
}

func (a *Assembler) Generate(ctx context.Context, paperID string) (Insight, error) {
	paperID = strings.TrimSpace(paperID)
	if paperID == "" {
		return Insight{}, errors.New("insight: paper id is required")
	}
	log := a.log.With("paper_id", paperID)

	meta, err := a.graph.GetPaperMetadata(ctx, paperID)
	if errors.Is(err, graph.ErrNotFound) {
		return Insight{
			PaperID:     paperID,
			Status:      StatusNotIngested,
			Text:        fmt.Sprintf("Paper %s is not in the graph yet. Ingest it first.", paperID),
			GeneratedAt: time.Now().UTC(),
		}, nil
	}
	if err != nil {
		return Insight{}, fmt.Errorf("loading paper %s: %w", paperID, err)
	}

	out := Insight{PaperID: paperID}
	chunks, reason := a.paperChunks(ctx, paperID, meta)
	if reason != "" {
		log.Warn("insight continues without paper content", "reason", reason)
		out.Degraded = append(out.Degraded, reason)
	}

	cited, err := a.graph.GetCitedPapersMetadata(ctx, meta.ArxivID, a.opts.MaxCited)
	if err != nil {
		return Insight{}, fmt.Errorf("loading cited papers of %s: %w", meta.ArxivID, err)
	}
	out.ChunksUsed = min(len(chunks), promptChunks)
	out.CitedUsed = len(cited)

	prompt := BuildPrompt(meta, chunks, cited)
	key := CacheKey(a.opts.Model, prompt)
	if a.cache != nil {
		if hit, ok, err := a.cache.Get(ctx, key); err != nil {
			log.Warn("insight cache read failed", "error", err)
		} else if ok {
			out.Status = StatusOK
			out.Text = hit.Text
			out.GeneratedAt = hit.GeneratedAt
			out.Cached = true
			return out, nil
		}
	}

	text, err := a.chat.Complete(ctx, providers.ChatRequest{
		Operation: "insight.generate",
		PaperID:   meta.ArxivID,
		Model:     a.opts.Model,
		Prompt:    prompt,
	})
	out.GeneratedAt = time.Now().UTC()
	if err != nil {
		log.Error("insight generation failed", "error", err)
		out.Status = StatusGenerationFailed
		out.Text = "The insight could not be generated right now. Try again later."
		out.Cause = err.Error()
		return out, nil
	}
	out.Status = StatusOK
	out.Text = strings.TrimSpace(text)

	if a.cache != nil {
		if err := a.cache.Set(ctx, key, out, a.opts.CacheTTL); err != nil {
			log.Warn("insight cache write failed", "error", err)
		}
	}
	log.Info("insight generated", "chunks", out.ChunksUsed, "cited", out.CitedUsed)
	return out, nil
}

// paperChunks returns the text chunks closest to the paper's own title and
// abstract. A non-empty reason means retrieval degraded to no chunks.
func (a *Assembler) paperChunks(ctx context.Context, requested string, meta models.PaperMetadata) ([]string, string) {
	query := strings.TrimSpace(meta.Title + "\n" + meta.Abstract)
	if query == "" {
		return nil, "paper has no title or abstract to search with"
	}
	vecs, err := a.text.EmbedTexts(ctx, []string{query})
	if err != nil || len(vecs) != 1 {
		return nil, fmt.Sprintf("query embedding failed: %v", err)
	}
	var lastErr error
	for _, id := range searchIDs(requested, meta.ArxivID) {
		hits, err := a.vectors.Search(ctx, vector.SearchRequest{
			Collection: a.opts.Collection,
			Vector:     vecs[0],
			Space:      vector.SpaceText,
			PaperID:    id,
			ChunkType:  string(models.ChunkText),
			Limit:      a.opts.MaxChunks,
		})
		if err != nil {
			lastErr = err
			continue
		}
		var out []string
		for _, h := range hits {
			if c := strings.TrimSpace(h.Payload.Content); c != "" {
				out = append(out, c)
			}
		}
		if len(out) > 0 {
			return out, ""
		}
	}
	if lastErr != nil {
		return nil, fmt.Sprintf("vector search failed: %v", lastErr)
	}
	return nil, "no indexed text chunks"
}

// searchIDs lists the requested id, its base id and the id the graph
// resolved it to, without duplicates.
func searchIDs(requested, resolved string) []string {
	ids := models.CandidateIDs(requested)
	for _, id := range ids {
		if id == resolved {
			return ids
		}
	}
	if resolved != "" {
		ids = append(ids, resolved)
	}
	return ids
}

func BuildPrompt(meta models.PaperMetadata, chunks []string, cited []models.PaperMetadata) string {
	var b strings.Builder
	b.WriteString("You are a research analyst. Write an insight about the paper below and how it relates to the work it cites.\n\n")

	fmt.Fprintf(&b, "PAPER: %s (%s)\n", orUnknown(meta.Title), meta.ArxivID)
	if len(meta.Authors) > 0 {
		fmt.Fprintf(&b, "Authors: %s\n", strings.Join(meta.Authors, ", "))
	}
	if meta.PublicationDate != "" {
		fmt.Fprintf(&b, "Published: %s\n", meta.PublicationDate)
	}
	if meta.Domain != "" {
		fmt.Fprintf(&b, "Domain: %s\n", meta.Domain)
	}

	b.WriteString("\nCORE CONTENT:\n")
	if len(chunks) == 0 {
		fmt.Fprintf(&b, "Title: %s\nAbstract: %s\n", orUnknown(meta.Title), util.Snippet(meta.Abstract, abstractFallback))
	} else {
		query := meta.Title + ". " + meta.Abstract
		for i, c := range chunks {
			if i == promptChunks {
				break
			}
			fmt.Fprintf(&b, "- %s\n", util.EvidenceSnippet(c, query, chunkExcerptRunes))
		}
	}

	b.WriteString("\nCITED PAPERS:\n")
	if len(cited) == 0 {
		b.WriteString("No details are available for the papers this work cites.\n")
	}
	for _, c := range cited {
		date := c.PublicationDate
		if date == "" {
			date = "n.d."
		}
		fmt.Fprintf(&b, "- '%s' (%s): %s\n", orUnknown(c.Title), date, util.Snippet(c.Abstract, citedAbstractRunes))
	}

	b.WriteString(`
Cover these points:
1. Core contribution: what problem the paper solves and what is new.
2. Method: the key technique or approach.
3. Historical lineage: how it builds on or departs from the cited papers.
4. Impact: why the work matters and where it could lead.

If the information above is not enough for a point, say so instead of guessing.
`)
	return b.String()
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Unknown title"
	}
	return s
}
