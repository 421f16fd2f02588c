package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/quillfeed/quillfeed-backend/internal/domain/content"
	"github.com/quillfeed/quillfeed-backend/internal/platform/envutil"
	"github.com/quillfeed/quillfeed-backend/internal/platform/logger"
)

// VectorStore persists finished embeddings. The content repo satisfies this.
type VectorStore interface {
	UpdateEmbedding(ctx context.Context, itemID string, vec content.Vector) error
}

type WorkerConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
}

func WorkerConfigFromEnv(log *logger.Logger) WorkerConfig {
	return WorkerConfig{
		PollInterval: envutil.GetEnvAsDuration("EMBED_POLL_INTERVAL", 2*time.Second, log),
		BatchSize:    envutil.GetEnvAsInt("EMBED_BATCH_SIZE", 32, log),
		MaxAttempts:  envutil.GetEnvAsInt("EMBED_MAX_ATTEMPTS", 5, log),
	}
}

// Worker drains the queue in batches: dequeue, embed, persist, then settle
// every dequeued job as completed or requeued. Delivery is at-least-once;
// writing the same vector twice is harmless.
type Worker struct {
	log      *logger.Logger
	queue    Queue
	provider Provider
	store    VectorStore
	cfg      WorkerConfig
}

func NewWorker(queue Queue, provider Provider, store VectorStore, cfg WorkerConfig, log *logger.Logger) (*Worker, error) {
	if queue == nil || provider == nil || store == nil {
		return nil, fmt.Errorf("queue, provider and store are all required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	return &Worker{
		log:      log.With("component", "EmbeddingWorker", "provider", provider.Name()),
		queue:    queue,
		provider: provider,
		store:    store,
		cfg:      cfg,
	}, nil
}

// Run polls until ctx is cancelled. The batch in flight when cancellation
// arrives is finished on a detached context so no job is left stranded in
// the in-flight set.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.provider.Validate(ctx); err != nil {
		return err
	}
	w.log.Info("embedding worker started",
		"poll_interval", w.cfg.PollInterval,
		"batch_size", w.cfg.BatchSize,
		"max_attempts", w.cfg.MaxAttempts)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("embedding worker stopping")
			return ctx.Err()
		case <-ticker.C:
			w.runBatch(ctx)
		}
	}
}

// ProcessOnce drains a single batch and reports how many jobs it settled.
// Used by the backfill command and by Run's poll loop indirectly via
// runBatch.
func (w *Worker) ProcessOnce(ctx context.Context) (int, error) {
	jobs, err := w.queue.DequeueBatch(ctx, w.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	if len(jobs) == 0 {
		return 0, nil
	}
	w.settleBatch(ctx, jobs)
	return len(jobs), nil
}

func (w *Worker) runBatch(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("embedding batch panicked", "panic", r)
		}
	}()

	// Finish the batch even if shutdown begins mid-flight.
	detached := context.WithoutCancel(ctx)
	jobs, err := w.queue.DequeueBatch(detached, w.cfg.BatchSize)
	if err != nil {
		w.log.Error("dequeue failed", "error", err)
		return
	}
	if len(jobs) == 0 {
		return
	}
	w.settleBatch(detached, jobs)
}

// settleBatch embeds the jobs and guarantees every one of them leaves the
// in-flight set, either completed or requeued.
func (w *Worker) settleBatch(ctx context.Context, jobs []*Job) {
	texts := make([]string, len(jobs))
	for i, j := range jobs {
		texts[i] = j.Text
	}

	vecs, err := w.provider.EmbedBatch(ctx, texts)
	if err != nil {
		w.log.Warn("embed batch failed, requeueing", "jobs", len(jobs), "error", err)
		for _, j := range jobs {
			w.requeueOrDrop(ctx, j, err)
		}
		return
	}

	for i, j := range jobs {
		if err := w.store.UpdateEmbedding(ctx, j.ItemID, vecs[i]); err != nil {
			w.log.Warn("persist embedding failed, requeueing", "item_id", j.ItemID, "error", err)
			w.requeueOrDrop(ctx, j, err)
			continue
		}
		if err := w.queue.Complete(ctx, j.ItemID); err != nil {
			w.log.Error("complete failed", "item_id", j.ItemID, "error", err)
		}
	}
}

// requeueOrDrop sends a failed job back unless it has exhausted its
// attempts, in which case it is removed from the queue entirely.
func (w *Worker) requeueOrDrop(ctx context.Context, job *Job, cause error) {
	if job.Attempts >= w.cfg.MaxAttempts {
		w.log.Error("dropping job after max attempts",
			"item_id", job.ItemID,
			"attempts", job.Attempts,
			"error", cause)
		if err := w.queue.Complete(ctx, job.ItemID); err != nil {
			w.log.Error("drop failed", "item_id", job.ItemID, "error", err)
		}
		return
	}
	if err := w.queue.Requeue(ctx, job); err != nil {
		w.log.Error("requeue failed", "item_id", job.ItemID, "error", err)
	}
}
