package app

import (
	"context"
	"errors"
	"fmt"

	"citegraph/internal/config"
	"citegraph/internal/enrich"
	"citegraph/internal/extract"
	"citegraph/internal/graph"
	"citegraph/internal/ingest"
	"citegraph/internal/insight"
	"citegraph/internal/logger"
	"citegraph/internal/providers"
	"citegraph/internal/sources"
	"citegraph/internal/storage"
	"citegraph/internal/vector"
)

// App holds every long-lived component built from one Config.
type App struct {
	Config   *config.Config
	Log      *logger.Logger
	DB       *storage.DB
	Graph    graph.Store
	Vectors  vector.Store
	Arxiv    *sources.ArxivClient
	Pipeline *ingest.Pipeline
	Sweeper  *ingest.Sweeper
	Insights *insight.Assembler

	closers []func(context.Context) error
}

// New connects to the configured backends. The caller owns the returned App
// and must Close it.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	if log == nil {
		log = logger.Nop()
	}
	a := &App{Config: cfg, Log: log}
	if err := a.build(ctx); err != nil {
		_ = a.Close(context.Background())
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.Config

	if cfg.DatabaseURL != "" {
		db, err := storage.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		a.DB = db
		a.onClose(func(context.Context) error { db.Close(); return nil })
		if err := db.EnsureAuditSchema(ctx); err != nil {
			return err
		}
	}

	g, err := a.buildGraph(ctx)
	if err != nil {
		return err
	}
	a.Graph = g
	a.onClose(g.Close)

	vs, err := a.buildVectors()
	if err != nil {
		return err
	}
	a.Vectors = vs

	pm, err := providers.NewManager(cfg)
	if err != nil {
		return fmt.Errorf("providers: %w", err)
	}
	var audit providers.AuditSink
	if a.DB != nil {
		audit = storage.NewLLMAuditRepo(a.DB)
	}
	chat := pm.Chat(audit, a.Log)
	text := pm.TextEmbedder()

	chain, err := enrich.NewFromStrategy(cfg.EnrichStrategy, chat, cfg.ChatModel, a.Log)
	if err != nil {
		return err
	}

	retry := sources.RetryPolicyFromConfig(cfg)
	a.Arxiv = sources.NewArxivClient(a.Log, sources.ArxivConfig{
		APIURL:      cfg.ArxivAPIURL,
		UserAgent:   cfg.UserAgent,
		MinInterval: cfg.ArxivMinInterval,
		Timeout:     cfg.HTTPTimeout,
		Retry:       retry,
	})

	deps := ingest.Deps{
		PDFs:      sources.NewPDFDownloader(a.Log, cfg.UserAgent, cfg.HTTPTimeout, retry),
		Lookup:    a.Arxiv,
		Extractor: extract.New(a.Log),
		Enricher:  chain,
		Graph:     a.Graph,
		Vectors:   a.Vectors,
		Text:      text,
		Images:    pm.ImageEmbedder(),
	}
	a.Pipeline, err = ingest.New(a.Log, deps, ingest.Options{
		Collection:     cfg.Collection,
		ImageDim:       cfg.ImageEmbedDim,
		ReplaceVectors: cfg.ReplaceVectorsOnReingest,
		BackfillBatch:  cfg.BackfillBatch,
		DataDir:        cfg.DataDir,
	})
	if err != nil {
		return err
	}
	a.Sweeper = a.Pipeline.Sweeper()

	var cache insight.Cache
	if cfg.RedisURL != "" {
		rc, err := insight.NewRedisCache(ctx, cfg.RedisURL)
		if err != nil {
			a.Log.Warn("insight cache disabled", "error", err)
		} else {
			cache = rc
			a.onClose(func(context.Context) error { return rc.Close() })
		}
	}
	a.Insights, err = insight.New(a.Log, a.Graph, a.Vectors, text, chat, cache, insight.Options{
		Collection: cfg.Collection,
		Model:      cfg.ChatModel,
		MaxCited:   cfg.InsightMaxCited,
		MaxChunks:  cfg.InsightMaxChunks,
		CacheTTL:   cfg.InsightCacheTTL,
	})
	if err != nil {
		return err
	}

	a.Log.Info("components ready",
		"graph_backend", cfg.GraphBackend,
		"vector_backend", cfg.VectorBackend,
		"collection", cfg.Collection,
		"enrich_strategy", cfg.EnrichStrategy,
		"image_embedder", cfg.ImageEmbedder,
		"embed_providers", pm.EmbedCount(),
		"llm_providers", pm.LLMCount(),
		"insight_cache", cache != nil,
	)
	return nil
}

func (a *App) buildGraph(ctx context.Context) (graph.Store, error) {
	cfg := a.Config
	switch cfg.GraphBackend {
	case "memory":
		return graph.NewMemory(), nil
	case "postgres":
		if a.DB == nil {
			return nil, errors.New("postgres graph backend requires database_url")
		}
		g := graph.NewPostgres(a.DB)
		if err := g.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return g, nil
	default:
		g, err := graph.NewNeo4j(ctx, a.Log, graph.Neo4jConfig{
			URI:      cfg.Neo4jURI,
			User:     cfg.Neo4jUser,
			Password: cfg.Neo4jPassword,
			Database: cfg.Neo4jDatabase,
		})
		if err != nil {
			return nil, err
		}
		if err := g.EnsureSchema(ctx); err != nil {
			_ = g.Close(ctx)
			return nil, err
		}
		return g, nil
	}
}

func (a *App) buildVectors() (vector.Store, error) {
	cfg := a.Config
	switch cfg.VectorBackend {
	case "chromem":
		return vector.NewChromem(a.Log, cfg.ChromemPath)
	case "pgvector":
		if a.DB == nil {
			return nil, errors.New("pgvector backend requires database_url")
		}
		return vector.NewPGVector(a.Log, a.DB.Pool), nil
	default:
		return vector.NewQdrant(a.Log, vector.QdrantConfig{
			URL:     cfg.QdrantURL,
			APIKey:  cfg.QdrantAPIKey,
			Timeout: cfg.HTTPTimeout,
		})
	}
}

func (a *App) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

// Close releases backends in reverse construction order.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
