package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/quillfeed/quillfeed-backend/internal/connectors"
	contentrepo "github.com/quillfeed/quillfeed-backend/internal/data/repos/content"
	"github.com/quillfeed/quillfeed-backend/internal/domain/content"
	"github.com/quillfeed/quillfeed-backend/internal/embedding"
	"github.com/quillfeed/quillfeed-backend/internal/platform/logger"
	"github.com/quillfeed/quillfeed-backend/internal/platform/ratelimit"
	"github.com/quillfeed/quillfeed-backend/internal/platform/retry"
	"github.com/quillfeed/quillfeed-backend/internal/quality"
)

type Config struct {
	PageSize    int
	ErrorBudget float64
	DryRun      bool
	DryRunCap   int

	// Tokens per second for the per-run rate limiter.
	RateLimit float64

	Retry retry.Config
}

func DefaultConfig() Config {
	return Config{
		PageSize:    100,
		ErrorBudget: 0.01,
		DryRunCap:   50,
		RateLimit:   5,
		Retry: retry.Config{
			MaxRetries:   3,
			InitialDelay: 1 * time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
			Retryable:    connectors.IsRetryable,
		},
	}
}

// Runner drives one full sync per connector: auth check, paginated fetch
// under a rate limiter, per-item map + validate + quality gate, then persist
// and enqueue. Auth and fetch are retried; mapping and validation failures
// are deterministic and only counted.
type Runner struct {
	log     *logger.Logger
	engine  *quality.Engine
	items   contentrepo.ItemRepo
	queue   embedding.Queue
	metrics *Tracker
	cfg     Config
}

// NewRunner wires the pipeline. The repo and queue may be nil only for
// dry runs, which never persist or enqueue.
func NewRunner(engine *quality.Engine, items contentrepo.ItemRepo, queue embedding.Queue, metrics *Tracker, cfg Config, baseLog *logger.Logger) (*Runner, error) {
	if engine == nil {
		return nil, fmt.Errorf("quality engine required")
	}
	if metrics == nil {
		return nil, fmt.Errorf("metrics tracker required")
	}
	if baseLog == nil {
		return nil, fmt.Errorf("logger required")
	}
	if !cfg.DryRun && (items == nil || queue == nil) {
		return nil, fmt.Errorf("item repo and queue required outside dry-run")
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.ErrorBudget <= 0 {
		cfg.ErrorBudget = 0.01
	}
	if cfg.DryRunCap <= 0 {
		cfg.DryRunCap = 50
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 5
	}
	if cfg.Retry.Retryable == nil {
		cfg.Retry = DefaultConfig().Retry
	}
	return &Runner{
		log:     baseLog.With("component", "IngestionRunner"),
		engine:  engine,
		items:   items,
		queue:   queue,
		metrics: metrics,
		cfg:     cfg,
	}, nil
}

// RunAll executes connectors sequentially and returns one record per
// connector. A failed run never aborts the batch.
func (r *Runner) RunAll(ctx context.Context, conns []connectors.Connector) []*RunRecord {
	records := make([]*RunRecord, 0, len(conns))
	for _, conn := range conns {
		records = append(records, r.Run(ctx, conn))
	}
	return records
}

func (r *Runner) Run(ctx context.Context, conn connectors.Connector) *RunRecord {
	rec := newRunRecord(conn.Name())
	log := r.log.With("source", conn.Name(), "run_id", rec.RunID.String())
	log.Info("ingestion run started", "dry_run", r.cfg.DryRun)

	limiter, err := ratelimit.NewBucket(r.cfg.RateLimit, 0)
	if err != nil {
		rec.finalize(false, fmt.Sprintf("rate limiter: %v", err))
		r.finish(log, rec)
		return rec
	}

	if _, err := retry.Do(ctx, r.cfg.Retry, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, conn.ValidateAuth(ctx)
	}); err != nil {
		rec.addError(ErrorAuth, "", err.Error())
		rec.finalize(false, fmt.Sprintf("auth check failed: %v", err))
		r.finish(log, rec)
		return rec
	}

	cursor := ""
	for {
		if err := limiter.Acquire(ctx); err != nil {
			rec.addError(ErrorFetch, "", err.Error())
			rec.finalize(false, fmt.Sprintf("rate limiter: %v", err))
			r.finish(log, rec)
			return rec
		}

		pageSize := r.cfg.PageSize
		if r.cfg.DryRun {
			if remaining := r.cfg.DryRunCap - rec.ItemsFetched; remaining < pageSize {
				pageSize = remaining
			}
		}

		page, err := retry.Do(ctx, r.cfg.Retry, func(ctx context.Context) (*connectors.Page, error) {
			return conn.Fetch(ctx, cursor, pageSize)
		})
		if err != nil {
			rec.addError(ErrorFetch, "", err.Error())
			rec.finalize(false, fmt.Sprintf("page fetch failed: %v", err))
			r.finish(log, rec)
			return rec
		}

		rec.ItemsFetched += len(page.Items)

		accepted := make([]*content.Item, 0, len(page.Items))
		jobs := make([]*embedding.Job, 0, len(page.Items))
		for _, raw := range page.Items {
			item, err := conn.Map(raw)
			if err != nil {
				rec.ItemsFailed++
				rec.addError(ErrorMapping, mappingItemID(err), err.Error())
				continue
			}
			if err := content.Validate(item); err != nil {
				rec.SchemaErrors++
				rec.addError(ErrorValidation, item.SourceItemID, err.Error())
				continue
			}
			rec.ItemsMapped++

			decision := r.engine.Check(item, quality.ContextIngest)
			switch decision.Action {
			case quality.ActionReject:
				rec.ItemsRejected++
				continue
			case quality.ActionQuarantine:
				rec.ItemsQuarantined++
				continue
			case quality.ActionFlag:
				rec.ItemsFlagged++
			default:
				rec.ItemsAllowed++
			}

			score := decision.Score
			item.QualityScore = &score
			item.QualityTier = string(decision.Tier)
			accepted = append(accepted, item)
			jobs = append(jobs, &embedding.Job{
				ItemID:   item.ID,
				Text:     embedding.BuildItemText(item),
				Domain:   item.Domain,
				Priority: embedding.PriorityNormal,
			})
		}

		if err := r.checkBudget(rec); err != nil {
			rec.addError(ErrorBudget, "", err.Error())
			rec.finalize(false, err.Error())
			r.finish(log, rec)
			return rec
		}

		if !r.cfg.DryRun && len(accepted) > 0 {
			if _, err := r.items.Upsert(ctx, nil, accepted); err != nil {
				rec.addError(ErrorPersist, "", err.Error())
				rec.finalize(false, fmt.Sprintf("persist failed: %v", err))
				r.finish(log, rec)
				return rec
			}
			rec.ItemsPersisted += len(accepted)

			if err := r.queue.EnqueueBatch(ctx, jobs); err != nil {
				rec.addError(ErrorPersist, "", err.Error())
				rec.finalize(false, fmt.Sprintf("enqueue failed: %v", err))
				r.finish(log, rec)
				return rec
			}
			rec.ItemsEnqueued += len(jobs)
		}

		if r.cfg.DryRun && rec.ItemsFetched >= r.cfg.DryRunCap {
			break
		}
		if !page.HasMore {
			break
		}
		cursor = page.NextCursor
	}

	rec.finalize(true, "")
	r.finish(log, rec)
	return rec
}

func (r *Runner) checkBudget(rec *RunRecord) error {
	if rec.ItemsFetched == 0 {
		return nil
	}
	rate := float64(rec.SchemaErrors) / float64(rec.ItemsFetched)
	if rate > r.cfg.ErrorBudget {
		return &BudgetExceededError{
			Source:       rec.Source,
			SchemaErrors: rec.SchemaErrors,
			ItemsFetched: rec.ItemsFetched,
			Budget:       r.cfg.ErrorBudget,
		}
	}
	return nil
}

func (r *Runner) finish(log *logger.Logger, rec *RunRecord) {
	r.metrics.Record(rec)
	if rec.Success {
		log.Info("ingestion run finished",
			"fetched", rec.ItemsFetched,
			"mapped", rec.ItemsMapped,
			"failed", rec.ItemsFailed,
			"schema_errors", rec.SchemaErrors,
			"persisted", rec.ItemsPersisted,
			"enqueued", rec.ItemsEnqueued,
			"duration", rec.Duration)
		return
	}
	log.Error("ingestion run failed",
		"reason", rec.FailureReason,
		"fetched", rec.ItemsFetched,
		"errors", len(rec.Errors),
		"duration", rec.Duration)
}

func mappingItemID(err error) string {
	var me *connectors.MappingError
	if errors.As(err, &me) {
		return me.SourceItemID
	}
	return ""
}
