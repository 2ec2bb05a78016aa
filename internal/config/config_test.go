package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, "papers", cfg.Collection)
	require.Equal(t, 20, cfg.BackfillBatch)
	require.Equal(t, 5, cfg.FetchMaxAttempts)
	require.Equal(t, 20*time.Second, cfg.FetchMaxDelay)
	require.Equal(t, "multi_step", cfg.EnrichStrategy)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "citegraph.yaml")
	yaml := "graph_backend: memory\nvector_backend: chromem\nbackfill_batch: 7\nfetch_max_delay: 5s\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	t.Setenv("CITEGRAPH_BACKFILL_BATCH", "9")
	t.Setenv("CITEGRAPH_ENRICH_STRATEGY", "single_shot")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "memory", cfg.GraphBackend)
	require.Equal(t, "chromem", cfg.VectorBackend)
	require.Equal(t, 9, cfg.BackfillBatch)
	require.Equal(t, 5*time.Second, cfg.FetchMaxDelay)
	require.Equal(t, "single_shot", cfg.EnrichStrategy)
}

func TestConventionalEnvFillsCredentials(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("NEO4J_URI", "neo4j://graph:7687")
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "sk-test", cfg.OpenAIAPIKey)
	require.Equal(t, "neo4j://graph:7687", cfg.Neo4jURI)
}

func TestValidateRejectsUnknownSelectors(t *testing.T) {
	cfg := Default()
	cfg.VectorBackend = "faiss"
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.GraphBackend = "postgres"
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.BackfillBatch = 0
	require.Error(t, cfg.Validate())
}
