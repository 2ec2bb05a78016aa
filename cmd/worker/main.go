package main

import (
	"context"
	"log"
	"time"

	"citegraph/internal/activities"
	"citegraph/internal/app"
	"citegraph/internal/config"
	"citegraph/internal/logger"
	"citegraph/internal/workflows"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

func main() {
	_ = godotenv.Load(".env")
	cfg, err := config.Load("")
	if err != nil {
		log.Fatal(err)
	}
	lg, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatal(err)
	}
	defer lg.Sync()

	c, err := client.Dial(client.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	a, err := app.New(ctx, cfg, lg)
	cancel()
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close(context.Background())

	w := worker.New(c, cfg.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize: cfg.IngestConcurrency,
	})
	workflows.Register(w)
	activities.Register(w, activities.FromApp(a))

	lg.Info("citegraph worker listening",
		"temporal_address", cfg.TemporalAddress,
		"task_queue", cfg.TaskQueue,
		"llm_providers", cfg.LLMProviders,
		"embed_providers", cfg.EmbedProviders,
	)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatal(err)
	}
}
