package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/quillfeed/quillfeed-backend/internal/clients/redis"
	"github.com/quillfeed/quillfeed-backend/internal/data/db"
	contentrepo "github.com/quillfeed/quillfeed-backend/internal/data/repos/content"
	"github.com/quillfeed/quillfeed-backend/internal/embedding"
	"github.com/quillfeed/quillfeed-backend/internal/platform/envutil"
	"github.com/quillfeed/quillfeed-backend/internal/platform/logger"
)

func main() {
	var batch int
	var interval time.Duration
	flag.IntVar(&batch, "batch", 0, "batch size (overrides EMBED_BATCH_SIZE)")
	flag.DurationVar(&interval, "interval", 0, "poll interval (overrides EMBED_POLL_INTERVAL)")
	flag.Parse()

	_ = godotenv.Load()

	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	providerName := envutil.GetEnv("EMBED_PROVIDER", embedding.ProviderLocal, log)
	provider, err := embedding.NewProvider(providerName, log)
	if err != nil {
		log.Fatal("Provider setup failed", "provider", providerName, "error", err)
	}

	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("Postgres init failed", "error", err)
	}
	itemRepo := contentrepo.NewItemRepo(postgresService.DB(), log)

	rdb, err := redis.NewClient(log)
	if err != nil {
		log.Fatal("Redis init failed", "error", err)
	}
	defer rdb.Close()
	queue, err := embedding.NewRedisQueue(rdb, log)
	if err != nil {
		log.Fatal("Queue init failed", "error", err)
	}

	cfg := embedding.WorkerConfigFromEnv(log)
	if batch > 0 {
		cfg.BatchSize = batch
	}
	if interval > 0 {
		cfg.PollInterval = interval
	}

	worker, err := embedding.NewWorker(queue, provider, itemRepo, cfg, log)
	if err != nil {
		log.Fatal("Worker setup failed", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("Worker exited", "error", err)
	}
}
