package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"citegraph/internal/enrich"
	"citegraph/internal/extract"
	"citegraph/internal/graph"
	"citegraph/internal/logger"
	"citegraph/internal/models"
	"citegraph/internal/providers"
	"citegraph/internal/util"
	"citegraph/internal/vector"
)

type PDFSource interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// MetadataLookup resolves paper ids. Unknown ids are absent from the result.
type MetadataLookup interface {
	FetchByIDs(ctx context.Context, ids []string) ([]models.PaperMetadata, error)
}

type ContentExtractor interface {
	Extract(pdfBytes []byte, paperID string) (extract.Document, error)
}

// Enricher never fails; it degrades to a default result instead.
type Enricher interface {
	Enrich(ctx context.Context, in enrich.Input) enrich.Result
}

type Deps struct {
	PDFs      PDFSource
	Lookup    MetadataLookup
	Extractor ContentExtractor
	Enricher  Enricher
	Graph     graph.Store
	Vectors   vector.Store
	Text      providers.TextEmbedder
	// Images may be nil; ingestion then stores no image points.
	Images providers.ImageEmbedder
}

type Options struct {
	Collection     string
	ImageDim       int
	ReplaceVectors bool
	BackfillBatch  int
	// DataDir enables per-paper artifacts when set.
	DataDir string
	// OnState is called when a state is entered.
	OnState func(ctx context.Context, paperID string, s State)
}

type Result struct {
	Metadata       models.PaperMetadata `json:"metadata"`
	States         []State              `json:"states"`
	TextChunks     int                  `json:"text_chunks"`
	ImageChunks    int                  `json:"image_chunks"`
	TextPoints     int                  `json:"text_points"`
	ImagePoints    int                  `json:"image_points"`
	References     []string             `json:"references"`
	EnrichStrategy string               `json:"enrich_strategy"`
	Backfill       SweepResult          `json:"backfill"`
	Degraded       []string             `json:"degraded,omitempty"`
	StartedAt      time.Time            `json:"started_at"`
	FinishedAt     time.Time            `json:"finished_at"`
}

// Pipeline ingests one paper at a time into the graph and vector stores.
// It holds no per-paper state, so concurrent calls are safe.
type Pipeline struct {
	deps    Deps
	opts    Options
	sweeper *Sweeper
	log     *logger.Logger
}

func New(log *logger.Logger, deps Deps, opts Options) (*Pipeline, error) {
	if log == nil {
		log = logger.Nop()
	}
	switch {
	case deps.PDFs == nil:
		return nil, errors.New("ingest: pdf source required")
	case deps.Extractor == nil:
		return nil, errors.New("ingest: extractor required")
	case deps.Enricher == nil:
		return nil, errors.New("ingest: enricher required")
	case deps.Graph == nil:
		return nil, errors.New("ingest: graph store required")
	case deps.Vectors == nil:
		return nil, errors.New("ingest: vector store required")
	case deps.Text == nil:
		return nil, errors.New("ingest: text embedder required")
	}
	if opts.Collection == "" {
		opts.Collection = "papers"
	}
	if opts.ImageDim <= 0 {
		opts.ImageDim = 512
	}
	if opts.BackfillBatch <= 0 {
		opts.BackfillBatch = 20
	}
	p := &Pipeline{deps: deps, opts: opts, log: log.With("component", "IngestPipeline")}
	if deps.Lookup != nil {
		p.sweeper = NewSweeper(log, deps.Graph, deps.Lookup)
	}
	return p, nil
}

func (p *Pipeline) Sweeper() *Sweeper { return p.sweeper }

type run struct {
	p   *Pipeline
	ctx context.Context
	res *Result
}

func (r *run) enter(s State) {
	r.res.States = append(r.res.States, s)
	r.p.log.Debug("ingest state", "paper_id", r.res.Metadata.ArxivID, "state", s)
	if r.p.opts.OnState != nil {
		r.p.opts.OnState(r.ctx, r.res.Metadata.ArxivID, s)
	}
	if fn := stateHook(r.ctx); fn != nil {
		fn(r.res.Metadata.ArxivID, s)
	}
}

func (r *run) degrade(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.res.Degraded = append(r.res.Degraded, msg)
	r.p.log.Warn("ingest degraded", "paper_id", r.res.Metadata.ArxivID, "reason", msg)
}

// IngestByID resolves id through the metadata lookup, then runs Process.
func (p *Pipeline) IngestByID(ctx context.Context, id string) (Result, error) {
	if p.deps.Lookup == nil {
		return Result{}, stepErr(id, StateFetching, errors.New("no metadata lookup configured"))
	}
	papers, err := p.deps.Lookup.FetchByIDs(ctx, []string{id})
	if err != nil {
		return Result{}, stepErr(id, StateFetching, err)
	}
	meta, ok := PickPaper(id, papers)
	if !ok {
		return Result{}, stepErr(id, StateFetching, fmt.Errorf("%w: %s", ErrUnknownPaper, id))
	}
	return p.Process(ctx, meta)
}

// PickPaper returns the lookup answer for id, preferring an exact id match
// over a match on the version-less id.
func PickPaper(id string, papers []models.PaperMetadata) (models.PaperMetadata, bool) {
	for _, m := range papers {
		if m.ArxivID == id {
			return m, true
		}
	}
	for _, m := range papers {
		if models.BaseID(m.ArxivID) == models.BaseID(id) {
			return m, true
		}
	}
	return models.PaperMetadata{}, false
}

// Process runs every state for one paper. Fetching and extraction failures
// abort before anything is written; graph and vector write failures are
// returned as StepError; enrichment, image embedding and backfill degrade.
func (p *Pipeline) Process(ctx context.Context, meta models.PaperMetadata) (Result, error) {
	meta.ArxivID = strings.TrimSpace(meta.ArxivID)
	if meta.ArxivID == "" {
		return Result{}, stepErr("", StateFetching, errors.New("empty arxiv id"))
	}
	res := &Result{Metadata: meta, StartedAt: time.Now().UTC()}
	r := &run{p: p, ctx: ctx, res: res}
	log := p.log.With("paper_id", meta.ArxivID)
	log.Info("processing paper", "title", meta.Title)

	r.enter(StateFetching)
	url := meta.PDFURL
	if url == "" {
		url = "https://arxiv.org/pdf/" + meta.ArxivID
	}
	pdfBytes, err := p.deps.PDFs.Fetch(ctx, url)
	if err != nil {
		return *res, stepErr(meta.ArxivID, StateFetching, err)
	}

	r.enter(StateExtracting)
	doc, err := p.deps.Extractor.Extract(pdfBytes, meta.ArxivID)
	if err != nil {
		return *res, stepErr(meta.ArxivID, StateExtracting, err)
	}
	refs := dropSelfCitations(meta.ArxivID, extract.ExtractReferences(doc.FullText))
	res.References = refs
	res.TextChunks = doc.Count(models.ChunkText)
	res.ImageChunks = doc.Count(models.ChunkImage)

	r.enter(StateEnriching)
	enriched := p.deps.Enricher.Enrich(ctx, enrich.Input{
		PaperID:  meta.ArxivID,
		Title:    meta.Title,
		Authors:  meta.Authors,
		Abstract: meta.Abstract,
		FullText: doc.FullText,
	})
	meta.AISummary = enriched.Summary
	meta.Domain = enriched.Domain
	meta.KeyContributions = enriched.KeyContributions
	meta.Methodology = enriched.Methodology
	meta.References = refs
	res.Metadata = meta
	res.EnrichStrategy = enriched.Strategy
	if enriched.Strategy == enrich.StrategyDefault {
		r.degrade("enrichment fell back to metadata defaults")
	}

	r.enter(StateGraphUpserting)
	if err := p.deps.Graph.AddPaper(ctx, meta); err != nil {
		return *res, stepErr(meta.ArxivID, StateGraphUpserting, err)
	}
	if err := p.deps.Graph.AddCitations(ctx, meta.ArxivID, refs); err != nil {
		return *res, stepErr(meta.ArxivID, StateGraphUpserting, err)
	}
	log.Info("graph upsert done", "references", len(refs))

	if err := p.embedAndStore(r, doc); err != nil {
		return *res, err
	}

	r.enter(StateBackfillTriggered)
	if p.sweeper != nil {
		sweep, err := p.sweeper.Sweep(ctx, p.opts.BackfillBatch)
		res.Backfill = sweep
		if err != nil {
			r.degrade("backfill sweep failed: %v", err)
		}
	}

	r.enter(StateDone)
	res.FinishedAt = time.Now().UTC()
	p.writeArtifacts(*res)
	log.Info("paper ingested", "text_points", res.TextPoints, "image_points", res.ImagePoints,
		"strategy", res.EnrichStrategy, "degraded", len(res.Degraded))
	return *res, nil
}

// IndexPDF extracts, embeds and stores the chunks of a PDF without touching
// the graph.
func (p *Pipeline) IndexPDF(ctx context.Context, url, paperID string) (Result, error) {
	res := &Result{Metadata: models.PaperMetadata{ArxivID: paperID, PDFURL: url}, StartedAt: time.Now().UTC()}
	r := &run{p: p, ctx: ctx, res: res}

	r.enter(StateFetching)
	pdfBytes, err := p.deps.PDFs.Fetch(ctx, url)
	if err != nil {
		return *res, stepErr(paperID, StateFetching, err)
	}
	r.enter(StateExtracting)
	doc, err := p.deps.Extractor.Extract(pdfBytes, paperID)
	if err != nil {
		return *res, stepErr(paperID, StateExtracting, err)
	}
	res.TextChunks = doc.Count(models.ChunkText)
	res.ImageChunks = doc.Count(models.ChunkImage)
	if err := p.embedAndStore(r, doc); err != nil {
		return *res, err
	}
	r.enter(StateDone)
	res.FinishedAt = time.Now().UTC()
	return *res, nil
}

func (p *Pipeline) embedAndStore(r *run, doc extract.Document) error {
	ctx, paperID := r.ctx, r.res.Metadata.ArxivID

	r.enter(StateEmbedding)
	var textChunks, imageChunks []models.Chunk
	for _, c := range doc.Chunks {
		if c.Type == models.ChunkImage {
			imageChunks = append(imageChunks, c)
		} else {
			textChunks = append(textChunks, c)
		}
	}

	var textPoints []vector.Point
	if len(textChunks) > 0 {
		texts := make([]string, len(textChunks))
		for i, c := range textChunks {
			texts[i] = c.Text
		}
		vecs, err := p.deps.Text.EmbedTexts(ctx, texts)
		if err != nil {
			return stepErr(paperID, StateEmbedding, fmt.Errorf("embed text chunks: %w", err))
		}
		textPoints, err = vector.PointsFromChunks(textChunks, vecs)
		if err != nil {
			return stepErr(paperID, StateEmbedding, err)
		}
	}

	var imagePoints []vector.Point
	switch {
	case len(imageChunks) == 0:
	case p.deps.Images == nil:
		r.degrade("no image embedder; %d image chunks not indexed", len(imageChunks))
	default:
		images := make([][]byte, len(imageChunks))
		for i, c := range imageChunks {
			images[i] = c.Image
		}
		vecs, err := p.deps.Images.EmbedImages(ctx, images)
		if err == nil {
			imagePoints, err = vector.PointsFromChunks(imageChunks, vecs)
		}
		if err != nil {
			imagePoints = nil
			r.degrade("image embedding skipped: %v", err)
		}
	}

	r.enter(StateVectorUpserting)
	imageDim := p.opts.ImageDim
	if p.deps.Images != nil {
		imageDim = p.deps.Images.Dimension()
	}
	if err := p.deps.Vectors.EnsureCollection(ctx, p.opts.Collection, p.deps.Text.Dimension(), imageDim); err != nil {
		return stepErr(paperID, StateVectorUpserting, err)
	}
	if p.opts.ReplaceVectors {
		if err := p.deps.Vectors.DeletePaper(ctx, p.opts.Collection, paperID); err != nil {
			return stepErr(paperID, StateVectorUpserting, err)
		}
	}
	if err := p.deps.Vectors.Upsert(ctx, p.opts.Collection, paperID, textPoints, imagePoints); err != nil {
		return stepErr(paperID, StateVectorUpserting, err)
	}
	r.res.TextPoints = len(textPoints)
	r.res.ImagePoints = len(imagePoints)
	p.log.Info("vector upsert done", "paper_id", paperID, "text", len(textPoints), "image", len(imagePoints))
	return nil
}

func dropSelfCitations(id string, refs []string) []string {
	base := models.BaseID(id)
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		if ref == id || ref == base {
			continue
		}
		out = append(out, ref)
	}
	return out
}

func (p *Pipeline) writeArtifacts(res Result) {
	if p.opts.DataDir == "" {
		return
	}
	dir := util.PaperDir(p.opts.DataDir, res.Metadata.ArxivID)
	if err := util.WriteJSONAtomic(filepath.Join(dir, "metadata.json"), res.Metadata); err != nil {
		p.log.Warn("write metadata artifact failed", "paper_id", res.Metadata.ArxivID, "error", err)
	}
	if err := util.WriteJSONAtomic(filepath.Join(dir, "ingest.json"), res); err != nil {
		p.log.Warn("write ingest artifact failed", "paper_id", res.Metadata.ArxivID, "error", err)
	}
}
