package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/quillfeed/quillfeed-backend/internal/clients/redis"
	"github.com/quillfeed/quillfeed-backend/internal/connectors"
	"github.com/quillfeed/quillfeed-backend/internal/data/db"
	contentrepo "github.com/quillfeed/quillfeed-backend/internal/data/repos/content"
	"github.com/quillfeed/quillfeed-backend/internal/embedding"
	"github.com/quillfeed/quillfeed-backend/internal/ingestion"
	"github.com/quillfeed/quillfeed-backend/internal/platform/envutil"
	"github.com/quillfeed/quillfeed-backend/internal/platform/logger"
	"github.com/quillfeed/quillfeed-backend/internal/quality"
)

func main() {
	var source string
	var dryRun bool
	flag.StringVar(&source, "source", "all", "source to ingest (all or one of: soundgraph, newswire, platefull, skillforge, townsquare)")
	flag.BoolVar(&dryRun, "dry-run", false, "fetch and check items without persisting or enqueueing")
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

	rulesPath := envutil.GetEnv("QUALITY_RULES_PATH", "configs/quality_rules.yaml", log)
	rules, err := quality.LoadRules(rulesPath)
	if err != nil {
		log.Fatal("Failed to load quality rules", "path", rulesPath, "error", err)
	}
	engine, err := quality.NewEngine(rules, log)
	if err != nil {
		log.Fatal("Failed to build quality engine", "error", err)
	}

	cfg := ingestion.DefaultConfig()
	cfg.DryRun = dryRun
	cfg.PageSize = envutil.GetEnvAsInt("INGEST_PAGE_SIZE", cfg.PageSize, log)
	cfg.ErrorBudget = envutil.GetEnvAsFloat("INGEST_ERROR_BUDGET", cfg.ErrorBudget, log)
	cfg.RateLimit = envutil.GetEnvAsFloat("INGEST_RATE_LIMIT", cfg.RateLimit, log)

	var itemRepo contentrepo.ItemRepo
	var queue embedding.Queue
	if !dryRun {
		postgresService, err := db.NewPostgresService(log)
		if err != nil {
			log.Fatal("Postgres init failed", "error", err)
		}
		if err := postgresService.AutoMigrateAll(); err != nil {
			log.Fatal("Postgres auto migration failed", "error", err)
		}
		itemRepo = contentrepo.NewItemRepo(postgresService.DB(), log)

		rdb, err := redis.NewClient(log)
		if err != nil {
			log.Fatal("Redis init failed", "error", err)
		}
		defer rdb.Close()
		queue, err = embedding.NewRedisQueue(rdb, log)
		if err != nil {
			log.Fatal("Queue init failed", "error", err)
		}
	}

	var conns []connectors.Connector
	if source == "all" {
		conns, err = connectors.NewAll(log)
	} else {
		var conn connectors.Connector
		conn, err = connectors.New(source, log)
		conns = []connectors.Connector{conn}
	}
	if err != nil {
		log.Fatal("Connector setup failed", "source", source, "error", err)
	}

	tracker := ingestion.NewTracker()
	runner, err := ingestion.NewRunner(engine, itemRepo, queue, tracker, cfg, log)
	if err != nil {
		log.Fatal("Runner setup failed", "error", err)
	}

	records := runner.RunAll(context.Background(), conns)

	failed := 0
	for _, rec := range records {
		status := "ok"
		if !rec.Success {
			status = "FAILED: " + rec.FailureReason
			failed++
		}
		fmt.Printf("%-12s fetched=%-5d mapped=%-5d failed=%-4d schema_errors=%-4d persisted=%-5d enqueued=%-5d %s\n",
			rec.Source, rec.ItemsFetched, rec.ItemsMapped, rec.ItemsFailed,
			rec.SchemaErrors, rec.ItemsPersisted, rec.ItemsEnqueued, status)
	}

	if failed > 0 {
		os.Exit(1)
	}
}
