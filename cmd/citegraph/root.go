package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"citegraph/internal/app"
	"citegraph/internal/config"
	"citegraph/internal/logger"

	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"
)

var (
	cfgFile       string
	graphBackend  string
	vectorBackend string
)

var rootCmd = &cobra.Command{
	Use:   "citegraph",
	Short: "Ingest arXiv papers into a citation graph and a vector index",
	Long: `citegraph downloads arXiv papers, extracts their text, images and
citations, and stores them in a graph database and a vector index. It then
answers insight requests that combine a paper's content with the papers it
cites.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (default $CITEGRAPH_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&graphBackend, "graph", "", "graph backend override: neo4j, postgres, memory")
	rootCmd.PersistentFlags().StringVar(&vectorBackend, "vector", "", "vector backend override: qdrant, pgvector, chromem")
}

func loadConfig() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	if graphBackend != "" {
		cfg.GraphBackend = graphBackend
	}
	if vectorBackend != "" {
		cfg.VectorBackend = vectorBackend
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	lg, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, nil, fmt.Errorf("creating logger: %w", err)
	}
	return cfg, lg, nil
}

// withApp builds the components, runs fn and releases them.
func withApp(ctx context.Context, fn func(*app.App) error) error {
	cfg, lg, err := loadConfig()
	if err != nil {
		return err
	}
	defer lg.Sync()
	sctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	a, err := app.New(sctx, cfg, lg)
	cancel()
	if err != nil {
		return err
	}
	defer a.Close(context.Background())
	return fn(a)
}

func dialTemporal(cfg *config.Config) (client.Client, error) {
	c, err := client.Dial(client.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		return nil, fmt.Errorf("connecting to temporal at %s: %w", cfg.TemporalAddress, err)
	}
	return c, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
