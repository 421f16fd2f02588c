package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/quillfeed/quillfeed-backend/internal/platform/logger"
)

// Queue is the durable buffer between ingestion and the embedding workers.
// Dequeued jobs stay in an in-flight set until Complete or Requeue, so a
// crashed worker never silently loses work.
type Queue interface {
	Enqueue(ctx context.Context, job *Job) error
	EnqueueBatch(ctx context.Context, jobs []*Job) error
	Dequeue(ctx context.Context) (*Job, error)
	DequeueBatch(ctx context.Context, max int) ([]*Job, error)
	Complete(ctx context.Context, itemID string) error
	Requeue(ctx context.Context, job *Job) error
	Stats(ctx context.Context) (QueueStats, error)
}

type QueueStats struct {
	Pending  int64 `json:"pending"`
	InFlight int64 `json:"in_flight"`
}

const (
	keyPending  = "embed:pending"
	keyInflight = "embed:inflight"
	keyJobs     = "embed:jobs"
)

// dequeueScript pops up to ARGV[1] lowest-score ids from the pending set,
// marks them in flight and returns their payloads, all in one round trip.
var dequeueScript = goredis.NewScript(`
local ids = redis.call('ZRANGE', KEYS[1], 0, tonumber(ARGV[1]) - 1)
if #ids == 0 then
  return {}
end
redis.call('ZREM', KEYS[1], unpack(ids))
redis.call('SADD', KEYS[2], unpack(ids))
local out = {}
for i, id in ipairs(ids) do
  out[i] = redis.call('HGET', KEYS[3], id)
end
return out
`)

type redisQueue struct {
	log *logger.Logger
	rdb *goredis.Client
}

// NewRedisQueue wraps an already-connected client. Key layout: one sorted set
// for pending ids, one set for in-flight ids and one hash for job payloads.
func NewRedisQueue(rdb *goredis.Client, log *logger.Logger) (Queue, error) {
	if rdb == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &redisQueue{log: log.With("component", "EmbeddingQueue"), rdb: rdb}, nil
}

func (q *redisQueue) Enqueue(ctx context.Context, job *Job) error {
	return q.EnqueueBatch(ctx, []*Job{job})
}

func (q *redisQueue) EnqueueBatch(ctx context.Context, jobs []*Job) error {
	if len(jobs) == 0 {
		return nil
	}
	for _, j := range jobs {
		if j.EnqueuedAt.IsZero() {
			j.EnqueuedAt = time.Now().UTC()
		}
		if err := j.validate(); err != nil {
			return err
		}
	}

	pipe := q.rdb.TxPipeline()
	for _, j := range jobs {
		raw, err := json.Marshal(j)
		if err != nil {
			return fmt.Errorf("marshal job %s: %w", j.ItemID, err)
		}
		pipe.HSet(ctx, keyJobs, j.ItemID, raw)
		// NX keeps the original position of a job that is already pending.
		pipe.ZAddNX(ctx, keyPending, goredis.Z{Score: jobScore(j), Member: j.ItemID})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("enqueue batch: %w", err)
	}
	return nil
}

func (q *redisQueue) Dequeue(ctx context.Context) (*Job, error) {
	jobs, err := q.DequeueBatch(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, nil
	}
	return jobs[0], nil
}

func (q *redisQueue) DequeueBatch(ctx context.Context, max int) ([]*Job, error) {
	if max <= 0 {
		return nil, fmt.Errorf("dequeue batch size must be positive, got %d", max)
	}
	res, err := dequeueScript.Run(ctx, q.rdb,
		[]string{keyPending, keyInflight, keyJobs}, max).Slice()
	if err != nil {
		return nil, fmt.Errorf("dequeue batch: %w", err)
	}

	jobs := make([]*Job, 0, len(res))
	for _, raw := range res {
		s, ok := raw.(string)
		if !ok || s == "" {
			continue
		}
		var j Job
		if err := json.Unmarshal([]byte(s), &j); err != nil {
			q.log.Warn("dropping undecodable job payload", "error", err)
			continue
		}
		j.Attempts++
		jobs = append(jobs, &j)
	}
	return jobs, nil
}

func (q *redisQueue) Complete(ctx context.Context, itemID string) error {
	pipe := q.rdb.TxPipeline()
	pipe.SRem(ctx, keyInflight, itemID)
	pipe.HDel(ctx, keyJobs, itemID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("complete %s: %w", itemID, err)
	}
	return nil
}

// Requeue puts an in-flight job back on the pending set with its attempt
// count preserved. The score uses the original enqueue time, so a retried
// job keeps its place within its priority band.
func (q *redisQueue) Requeue(ctx context.Context, job *Job) error {
	if err := job.validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", job.ItemID, err)
	}
	pipe := q.rdb.TxPipeline()
	pipe.SRem(ctx, keyInflight, job.ItemID)
	pipe.HSet(ctx, keyJobs, job.ItemID, raw)
	pipe.ZAdd(ctx, keyPending, goredis.Z{Score: jobScore(job), Member: job.ItemID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("requeue %s: %w", job.ItemID, err)
	}
	return nil
}

func (q *redisQueue) Stats(ctx context.Context) (QueueStats, error) {
	pipe := q.rdb.TxPipeline()
	pending := pipe.ZCard(ctx, keyPending)
	inflight := pipe.SCard(ctx, keyInflight)
	if _, err := pipe.Exec(ctx); err != nil {
		return QueueStats{}, fmt.Errorf("queue stats: %w", err)
	}
	return QueueStats{Pending: pending.Val(), InFlight: inflight.Val()}, nil
}
