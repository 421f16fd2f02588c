package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/quillfeed/quillfeed-backend/internal/connectors"
	contentrepo "github.com/quillfeed/quillfeed-backend/internal/data/repos/content"
	"github.com/quillfeed/quillfeed-backend/internal/domain/content"
	"github.com/quillfeed/quillfeed-backend/internal/embedding"
	"github.com/quillfeed/quillfeed-backend/internal/platform/logger"
	"github.com/quillfeed/quillfeed-backend/internal/platform/retry"
	"github.com/quillfeed/quillfeed-backend/internal/quality"
)

const runnerRulesDoc = `
version: 1
global:
  default_reputation: 50
  spam_keywords: ["one weird trick"]
contexts:
  ingest: {min_reputation: 40}
  ranking: {min_reputation: 50}
  featured: {min_reputation: 70}
domains:
  news:
    min_reputation: 40
    blocked:
      - {source: "Fabricated Times", reason: "fabricated stories"}
`

// stubItem is the raw payload the stub connector emits.
type stubItem struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Publisher string `json:"publisher"`
	// Invalid items are mapped with no topics, which fails schema validation.
	Invalid bool `json:"invalid"`
	// Unmappable items raise a MappingError.
	Unmappable bool `json:"unmappable"`
}

// stubConnector pages through a fixed item list.
type stubConnector struct {
	items    []stubItem
	pageSize int

	authErr    error
	fetchErr   error
	authCalls  int
	fetchCalls int
}

func (c *stubConnector) Name() string           { return "stubwire" }
func (c *stubConnector) Domain() content.Domain { return content.DomainNews }

func (c *stubConnector) ValidateAuth(context.Context) error {
	c.authCalls++
	return c.authErr
}

func (c *stubConnector) Health(context.Context) connectors.Health {
	return connectors.Health{Healthy: true}
}

func (c *stubConnector) Fetch(_ context.Context, cursor string, limit int) (*connectors.Page, error) {
	c.fetchCalls++
	if c.fetchErr != nil {
		return nil, c.fetchErr
	}
	start := 0
	if cursor != "" {
		fmt.Sscanf(cursor, "%d", &start)
	}
	if limit <= 0 || limit > c.pageSize {
		limit = c.pageSize
	}
	end := start + limit
	if end > len(c.items) {
		end = len(c.items)
	}
	page := &connectors.Page{Total: len(c.items)}
	for _, it := range c.items[start:end] {
		raw, _ := json.Marshal(it)
		page.Items = append(page.Items, raw)
	}
	if end < len(c.items) {
		page.HasMore = true
		page.NextCursor = fmt.Sprintf("%d", end)
	}
	return page, nil
}

func (c *stubConnector) Map(raw json.RawMessage) (*content.Item, error) {
	var si stubItem
	if err := json.Unmarshal(raw, &si); err != nil {
		return nil, &connectors.MappingError{Source: "stubwire", Err: err}
	}
	if si.Unmappable {
		return nil, &connectors.MappingError{Source: "stubwire", SourceItemID: si.ID, Err: errors.New("missing required field title")}
	}
	item := &content.Item{
		ID:           content.ItemID("stubwire", si.ID),
		Domain:       content.DomainNews,
		Title:        si.Title,
		Description:  "A reasonably detailed description for quality scoring purposes here.",
		Source:       "stubwire",
		SourceItemID: si.ID,
		SourceURL:    "https://stubwire.example.com/" + si.ID,
	}
	if !si.Invalid {
		item.Topics = datatypes.NewJSONSlice([]string{"politics", "economy", "world"})
	}
	if err := item.SetMetadata(&content.NewsMetadata{
		Publisher: si.Publisher,
		Author:    "S. Tub",
		ImageURL:  "https://cdn.stubwire.example.com/" + si.ID + ".jpg",
	}); err != nil {
		return nil, &connectors.MappingError{Source: "stubwire", SourceItemID: si.ID, Err: err}
	}
	return item, nil
}

// memRepo records upserts without a database.
type memRepo struct {
	items map[string]*content.Item
}

func newMemRepo() *memRepo { return &memRepo{items: map[string]*content.Item{}} }

func (r *memRepo) Upsert(_ context.Context, _ *gorm.DB, items []*content.Item) ([]*content.Item, error) {
	for _, it := range items {
		r.items[it.ID] = it
	}
	return items, nil
}

func (r *memRepo) GetByIDs(_ context.Context, _ *gorm.DB, ids []string) ([]*content.Item, error) {
	var out []*content.Item
	for _, id := range ids {
		if it, ok := r.items[id]; ok {
			out = append(out, it)
		}
	}
	return out, nil
}

func (r *memRepo) ListMissingEmbedding(context.Context, *gorm.DB, content.Domain, int) ([]*content.Item, error) {
	return nil, nil
}

func (r *memRepo) UpdateEmbedding(context.Context, string, content.Vector) error { return nil }

func (r *memRepo) SearchSimilar(context.Context, content.Vector, int, content.Domain) ([]*contentrepo.SimilarItem, error) {
	return nil, nil
}

func (r *memRepo) CountByDomain(context.Context, *gorm.DB) (map[content.Domain]int64, error) {
	return nil, nil
}

// memJobQueue records enqueued jobs.
type memJobQueue struct {
	jobs []*embedding.Job
}

func (q *memJobQueue) Enqueue(ctx context.Context, job *embedding.Job) error {
	return q.EnqueueBatch(ctx, []*embedding.Job{job})
}

func (q *memJobQueue) EnqueueBatch(_ context.Context, jobs []*embedding.Job) error {
	q.jobs = append(q.jobs, jobs...)
	return nil
}

func (q *memJobQueue) Dequeue(context.Context) (*embedding.Job, error) { return nil, nil }

func (q *memJobQueue) DequeueBatch(context.Context, int) ([]*embedding.Job, error) {
	return nil, nil
}

func (q *memJobQueue) Complete(context.Context, string) error        { return nil }
func (q *memJobQueue) Requeue(context.Context, *embedding.Job) error { return nil }

func (q *memJobQueue) Stats(context.Context) (embedding.QueueStats, error) {
	return embedding.QueueStats{}, nil
}

func fastRunnerConfig() Config {
	cfg := DefaultConfig()
	cfg.PageSize = 10
	cfg.RateLimit = 100000
	cfg.Retry = retry.Config{
		MaxRetries:   2,
		InitialDelay: time.Nanosecond,
		MaxDelay:     time.Nanosecond,
		Multiplier:   2.0,
		Retryable:    connectors.IsRetryable,
	}
	return cfg
}

func testRunner(t *testing.T, repo contentrepo.ItemRepo, queue embedding.Queue, cfg Config) (*Runner, *Tracker) {
	t.Helper()
	rules, err := quality.ParseRules([]byte(runnerRulesDoc))
	require.NoError(t, err)
	engine, err := quality.NewEngine(rules, logger.NewNop())
	require.NoError(t, err)
	tracker := NewTracker()
	runner, err := NewRunner(engine, repo, queue, tracker, cfg, logger.NewNop())
	require.NoError(t, err)
	return runner, tracker
}

func validItems(n int) []stubItem {
	items := make([]stubItem, n)
	for i := range items {
		items[i] = stubItem{
			ID:        fmt.Sprintf("n%d", i),
			Title:     fmt.Sprintf("Headline number %d", i),
			Publisher: "The Daily Ledger",
		}
	}
	return items
}

func TestRunPersistsAndEnqueuesAcceptedItems(t *testing.T) {
	conn := &stubConnector{items: validItems(25), pageSize: 10}
	repo := newMemRepo()
	queue := &memJobQueue{}
	runner, tracker := testRunner(t, repo, queue, fastRunnerConfig())

	rec := runner.Run(context.Background(), conn)

	require.True(t, rec.Success)
	assert.Equal(t, 25, rec.ItemsFetched)
	assert.Equal(t, 25, rec.ItemsMapped)
	assert.Equal(t, 25, rec.ItemsPersisted)
	assert.Equal(t, 25, rec.ItemsEnqueued)
	assert.Len(t, repo.items, 25)
	assert.Len(t, queue.jobs, 25)

	// Persisted items carry the quality decision.
	for _, it := range repo.items {
		require.NotNil(t, it.QualityScore)
		assert.NotEmpty(t, it.QualityTier)
	}
	// Enqueued text includes the title.
	assert.Contains(t, queue.jobs[0].Text, "Headline number")

	stats := tracker.Snapshot()["stubwire"]
	assert.Equal(t, 1, stats.Runs)
	assert.Equal(t, 1, stats.Successes)
	assert.Equal(t, int64(25), stats.ItemsFetched)
}

func TestRunRejectedItemsAreNotPersisted(t *testing.T) {
	items := validItems(3)
	items[1].Publisher = "Fabricated Times"
	conn := &stubConnector{items: items, pageSize: 10}
	repo := newMemRepo()
	queue := &memJobQueue{}
	runner, _ := testRunner(t, repo, queue, fastRunnerConfig())

	rec := runner.Run(context.Background(), conn)

	require.True(t, rec.Success)
	assert.Equal(t, 1, rec.ItemsRejected)
	assert.Equal(t, 2, rec.ItemsPersisted)
	assert.Len(t, repo.items, 2)
	assert.NotContains(t, repo.items, content.ItemID("stubwire", "n1"))
}

func TestRunCountsMappingFailuresWithoutAborting(t *testing.T) {
	items := validItems(5)
	items[2].Unmappable = true
	conn := &stubConnector{items: items, pageSize: 10}
	runner, _ := testRunner(t, newMemRepo(), &memJobQueue{}, fastRunnerConfig())

	rec := runner.Run(context.Background(), conn)

	require.True(t, rec.Success)
	assert.Equal(t, 1, rec.ItemsFailed)
	assert.Equal(t, 4, rec.ItemsMapped)
	require.Len(t, rec.Errors, 1)
	assert.Equal(t, ErrorMapping, rec.Errors[0].Kind)
	assert.Equal(t, "n2", rec.Errors[0].SourceItemID)
}

func TestRunAbortsWhenBudgetExceeded(t *testing.T) {
	items := validItems(20)
	for i := 2; i < 20; i++ {
		items[i].Invalid = true
	}
	conn := &stubConnector{items: items, pageSize: 10}
	runner, _ := testRunner(t, newMemRepo(), &memJobQueue{}, fastRunnerConfig())

	rec := runner.Run(context.Background(), conn)

	require.False(t, rec.Success)
	assert.Contains(t, rec.FailureReason, "error budget exceeded")
	// Aborted after the first page; the second page was never fetched.
	assert.Equal(t, 10, rec.ItemsFetched)
	assert.Equal(t, 1, conn.fetchCalls)
}

func TestRunAuthFailureIsNotRetried(t *testing.T) {
	conn := &stubConnector{
		items:    validItems(3),
		pageSize: 10,
		authErr:  &connectors.AuthError{Source: "stubwire", Err: errors.New("invalid key")},
	}
	runner, _ := testRunner(t, newMemRepo(), &memJobQueue{}, fastRunnerConfig())

	rec := runner.Run(context.Background(), conn)

	require.False(t, rec.Success)
	assert.Contains(t, rec.FailureReason, "auth check failed")
	assert.Equal(t, 1, conn.authCalls)
	assert.Zero(t, conn.fetchCalls)
}

func TestRunRetriesTransientFetchErrors(t *testing.T) {
	conn := &stubConnector{
		items:    validItems(3),
		pageSize: 10,
		fetchErr: &connectors.NetworkError{Source: "stubwire", Err: errors.New("connection reset")},
	}
	runner, _ := testRunner(t, newMemRepo(), &memJobQueue{}, fastRunnerConfig())

	rec := runner.Run(context.Background(), conn)

	require.False(t, rec.Success)
	// MaxRetries=2 means up to 3 calls.
	assert.Equal(t, 3, conn.fetchCalls)
}

func TestRunAllContinuesPastFailures(t *testing.T) {
	failing := &stubConnector{
		items:    validItems(3),
		pageSize: 10,
		authErr:  &connectors.AuthError{Source: "stubwire", Err: errors.New("invalid key")},
	}
	healthy := &stubConnector{items: validItems(3), pageSize: 10}
	runner, _ := testRunner(t, newMemRepo(), &memJobQueue{}, fastRunnerConfig())

	records := runner.RunAll(context.Background(), []connectors.Connector{failing, healthy})

	require.Len(t, records, 2)
	assert.False(t, records[0].Success)
	assert.True(t, records[1].Success)
}

func TestDryRunSkipsPersistenceAndCapsFetch(t *testing.T) {
	conn := &stubConnector{items: validItems(200), pageSize: 25}
	cfg := fastRunnerConfig()
	cfg.DryRun = true

	rules, err := quality.ParseRules([]byte(runnerRulesDoc))
	require.NoError(t, err)
	engine, err := quality.NewEngine(rules, logger.NewNop())
	require.NoError(t, err)
	runner, err := NewRunner(engine, nil, nil, NewTracker(), cfg, logger.NewNop())
	require.NoError(t, err)

	rec := runner.Run(context.Background(), conn)

	require.True(t, rec.Success)
	assert.Equal(t, 50, rec.ItemsFetched)
	assert.Zero(t, rec.ItemsPersisted)
	assert.Zero(t, rec.ItemsEnqueued)
}
