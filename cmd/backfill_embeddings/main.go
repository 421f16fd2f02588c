package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/quillfeed/quillfeed-backend/internal/clients/redis"
	"github.com/quillfeed/quillfeed-backend/internal/data/db"
	contentrepo "github.com/quillfeed/quillfeed-backend/internal/data/repos/content"
	"github.com/quillfeed/quillfeed-backend/internal/domain/content"
	"github.com/quillfeed/quillfeed-backend/internal/embedding"
	"github.com/quillfeed/quillfeed-backend/internal/platform/logger"
)

func main() {
	var batch, limit int
	var domain string
	var dryRun bool
	flag.IntVar(&batch, "batch", 500, "items enqueued per pass")
	flag.IntVar(&limit, "limit", 0, "stop after this many items (0 = all)")
	flag.StringVar(&domain, "domain", "", "restrict to one domain")
	flag.BoolVar(&dryRun, "dry-run", false, "print planned jobs without enqueueing")
	flag.Parse()
	if batch <= 0 {
		batch = 500
	}

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

	domainFilter := content.Domain(domain)
	if domainFilter != "" && !domainFilter.Valid() {
		log.Fatal("Invalid domain filter", "domain", domain)
	}

	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("Postgres init failed", "error", err)
	}
	itemRepo := contentrepo.NewItemRepo(postgresService.DB(), log)

	var queue embedding.Queue
	if !dryRun {
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

	ctx := context.Background()
	items, err := itemRepo.ListMissingEmbedding(ctx, nil, domainFilter, limit)
	if err != nil {
		log.Fatal("Scan for missing embeddings failed", "error", err)
	}
	log.Info("Found items missing embeddings", "count", len(items), "domain", domainFilter)

	jobs := make([]*embedding.Job, 0, len(items))
	for _, item := range items {
		jobs = append(jobs, &embedding.Job{
			ItemID:   item.ID,
			Text:     embedding.BuildItemText(item),
			Domain:   item.Domain,
			Priority: embedding.PriorityLow,
		})
	}

	enqueued := 0
	for start := 0; start < len(jobs); start += batch {
		end := start + batch
		if end > len(jobs) {
			end = len(jobs)
		}
		chunk := jobs[start:end]
		if dryRun {
			for _, j := range chunk {
				fmt.Printf("would enqueue %s (%s, %d chars)\n", j.ItemID, j.Domain, len(j.Text))
			}
		} else {
			if err := queue.EnqueueBatch(ctx, chunk); err != nil {
				log.Fatal("Enqueue failed", "error", err)
			}
		}
		enqueued += len(chunk)
	}

	fmt.Printf("backfill complete: %d jobs enqueued\n", enqueued)
}
