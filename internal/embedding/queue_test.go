package embedding

import (
	"context"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillfeed/quillfeed-backend/internal/domain/content"
	"github.com/quillfeed/quillfeed-backend/internal/platform/logger"
)

func TestJobScoreOrdersByPriorityThenTime(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	highLate := &Job{ItemID: "a", Priority: PriorityHigh, EnqueuedAt: base.Add(time.Hour)}
	normalEarly := &Job{ItemID: "b", Priority: PriorityNormal, EnqueuedAt: base}
	lowEarly := &Job{ItemID: "c", Priority: PriorityLow, EnqueuedAt: base.Add(-time.Hour)}

	// A high job enqueued later still drains before any normal job, and a
	// low job enqueued earlier still drains last.
	assert.Less(t, jobScore(highLate), jobScore(normalEarly))
	assert.Less(t, jobScore(normalEarly), jobScore(lowEarly))

	// Within a band, earlier enqueue wins.
	first := &Job{ItemID: "d", Priority: PriorityNormal, EnqueuedAt: base}
	second := &Job{ItemID: "e", Priority: PriorityNormal, EnqueuedAt: base.Add(time.Second)}
	assert.Less(t, jobScore(first), jobScore(second))
}

func TestJobValidate(t *testing.T) {
	tests := []struct {
		name string
		job  Job
	}{
		{"missing item id", Job{Text: "x", Priority: PriorityNormal}},
		{"empty text", Job{ItemID: "newswire:1", Priority: PriorityNormal}},
		{"bad priority", Job{ItemID: "newswire:1", Text: "x", Priority: "urgent"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.job.validate())
		})
	}

	ok := Job{ItemID: "newswire:1", Text: "x", Priority: PriorityHigh}
	assert.NoError(t, ok.validate())
}

// queueTestClient connects to TEST_REDIS_ADDR and clears the queue keys.
// Skips when the variable is unset.
func queueTestClient(t *testing.T) *goredis.Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set; skipping redis integration test")
	}
	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	ctx := context.Background()
	require.NoError(t, rdb.Ping(ctx).Err())
	require.NoError(t, rdb.Del(ctx, keyPending, keyInflight, keyJobs).Err())
	t.Cleanup(func() {
		_ = rdb.Del(ctx, keyPending, keyInflight, keyJobs).Err()
		_ = rdb.Close()
	})
	return rdb
}

func TestRedisQueueDrainsByPriority(t *testing.T) {
	rdb := queueTestClient(t)
	q, err := NewRedisQueue(rdb, logger.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	base := time.Now().UTC()
	jobs := []*Job{
		{ItemID: "newswire:low", Text: "low", Domain: content.DomainNews, Priority: PriorityLow, EnqueuedAt: base},
		{ItemID: "newswire:normal", Text: "normal", Domain: content.DomainNews, Priority: PriorityNormal, EnqueuedAt: base.Add(time.Second)},
		{ItemID: "newswire:high", Text: "high", Domain: content.DomainNews, Priority: PriorityHigh, EnqueuedAt: base.Add(2 * time.Second)},
	}
	require.NoError(t, q.EnqueueBatch(ctx, jobs))

	got, err := q.DequeueBatch(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "newswire:high", got[0].ItemID)
	assert.Equal(t, "newswire:normal", got[1].ItemID)
	assert.Equal(t, "newswire:low", got[2].ItemID)

	// Everything dequeued is now in flight.
	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Pending)
	assert.Equal(t, int64(3), stats.InFlight)
}

func TestRedisQueueCompleteAndRequeue(t *testing.T) {
	rdb := queueTestClient(t)
	q, err := NewRedisQueue(rdb, logger.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	job := &Job{ItemID: "soundgraph:t1", Text: "track", Domain: content.DomainMusic, Priority: PriorityNormal}
	require.NoError(t, q.Enqueue(ctx, job))

	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1, got.Attempts)

	// Requeue preserves the attempt count on the next dequeue.
	require.NoError(t, q.Requeue(ctx, got))
	again, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, 2, again.Attempts)

	require.NoError(t, q.Complete(ctx, again.ItemID))
	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Pending)
	assert.Equal(t, int64(0), stats.InFlight)

	empty, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestRedisQueueEnqueueIsIdempotentWhilePending(t *testing.T) {
	rdb := queueTestClient(t)
	q, err := NewRedisQueue(rdb, logger.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	job := &Job{ItemID: "platefull:r1", Text: "recipe", Domain: content.DomainRecipes, Priority: PriorityNormal}
	require.NoError(t, q.Enqueue(ctx, job))
	require.NoError(t, q.Enqueue(ctx, job))

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Pending)
}
