package content

import (
	"context"
	"testing"

	"gorm.io/datatypes"

	"github.com/quillfeed/quillfeed-backend/internal/data/repos/testutil"
	"github.com/quillfeed/quillfeed-backend/internal/domain/content"
)

func testVector(hot int) content.Vector {
	vec := make(content.Vector, 1536)
	vec[hot] = 1
	return vec
}

func newTestItem(source, sourceItemID, title string) *content.Item {
	item := &content.Item{
		ID:           content.ItemID(source, sourceItemID),
		Domain:       content.DomainNews,
		Title:        title,
		Topics:       datatypes.NewJSONSlice([]string{"test"}),
		Source:       source,
		SourceItemID: sourceItemID,
	}
	return item
}

func cleanupSource(t *testing.T, source string) {
	t.Helper()
	gdb := testutil.DB(t)
	t.Cleanup(func() {
		gdb.Where("source = ?", source).Delete(&content.Item{})
	})
}

func TestItemRepoUpsert(t *testing.T) {
	gdb := testutil.DB(t)
	repo := NewItemRepo(gdb, testutil.Logger(t))
	ctx := context.Background()
	cleanupSource(t, "upserttest")

	first := newTestItem("upserttest", "a1", "Original title")
	if _, err := repo.Upsert(ctx, nil, []*content.Item{first}); err != nil {
		t.Fatalf("initial upsert: %v", err)
	}
	if first.IngestedAt.IsZero() {
		t.Fatalf("expected IngestedAt to be set")
	}

	second := newTestItem("upserttest", "a1", "Updated title")
	if _, err := repo.Upsert(ctx, nil, []*content.Item{second}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := repo.GetByIDs(ctx, nil, []string{first.ID})
	if err != nil {
		t.Fatalf("get by ids: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 item, got %d", len(got))
	}
	if got[0].Title != "Updated title" {
		t.Fatalf("expected title to be refreshed, got %q", got[0].Title)
	}
}

func TestItemRepoUpsertPreservesEmbedding(t *testing.T) {
	gdb := testutil.DB(t)
	repo := NewItemRepo(gdb, testutil.Logger(t))
	ctx := context.Background()
	cleanupSource(t, "embkeep")

	item := newTestItem("embkeep", "b1", "Embedded item")
	if _, err := repo.Upsert(ctx, nil, []*content.Item{item}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := repo.UpdateEmbedding(ctx, item.ID, testVector(0)); err != nil {
		t.Fatalf("update embedding: %v", err)
	}

	again := newTestItem("embkeep", "b1", "Embedded item v2")
	if _, err := repo.Upsert(ctx, nil, []*content.Item{again}); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}

	got, err := repo.GetByIDs(ctx, nil, []string{item.ID})
	if err != nil {
		t.Fatalf("get by ids: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 item, got %d", len(got))
	}
	if len(got[0].Embedding) == 0 {
		t.Fatalf("expected embedding to survive re-ingest")
	}
	if got[0].EmbeddedAt == nil {
		t.Fatalf("expected embedded_at to be set")
	}
}

func TestItemRepoListMissingEmbedding(t *testing.T) {
	gdb := testutil.DB(t)
	repo := NewItemRepo(gdb, testutil.Logger(t))
	ctx := context.Background()
	cleanupSource(t, "misstest")

	withVec := newTestItem("misstest", "c1", "Has vector")
	without := newTestItem("misstest", "c2", "No vector")
	if _, err := repo.Upsert(ctx, nil, []*content.Item{withVec, without}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := repo.UpdateEmbedding(ctx, withVec.ID, testVector(1)); err != nil {
		t.Fatalf("update embedding: %v", err)
	}

	missing, err := repo.ListMissingEmbedding(ctx, nil, content.DomainNews, 100)
	if err != nil {
		t.Fatalf("list missing: %v", err)
	}
	found := map[string]bool{}
	for _, it := range missing {
		found[it.ID] = true
	}
	if found[withVec.ID] {
		t.Fatalf("embedded item should not be listed as missing")
	}
	if !found[without.ID] {
		t.Fatalf("expected %s in missing list", without.ID)
	}
}

func TestItemRepoSearchSimilar(t *testing.T) {
	gdb := testutil.DB(t)
	repo := NewItemRepo(gdb, testutil.Logger(t))
	ctx := context.Background()
	cleanupSource(t, "simtest")

	near := newTestItem("simtest", "d1", "Near item")
	far := newTestItem("simtest", "d2", "Far item")
	bare := newTestItem("simtest", "d3", "No embedding")
	if _, err := repo.Upsert(ctx, nil, []*content.Item{near, far, bare}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := repo.UpdateEmbedding(ctx, near.ID, testVector(0)); err != nil {
		t.Fatalf("update near: %v", err)
	}
	if err := repo.UpdateEmbedding(ctx, far.ID, testVector(5)); err != nil {
		t.Fatalf("update far: %v", err)
	}

	results, err := repo.SearchSimilar(ctx, testVector(0), 10, content.DomainNews)
	if err != nil {
		t.Fatalf("search similar: %v", err)
	}
	if len(results) < 2 {
		t.Fatalf("expected at least 2 results, got %d", len(results))
	}
	if results[0].ID != near.ID {
		t.Fatalf("expected %s first, got %s", near.ID, results[0].ID)
	}
	if results[0].Score <= results[len(results)-1].Score {
		t.Fatalf("expected descending scores")
	}
	for _, r := range results {
		if r.ID == bare.ID {
			t.Fatalf("item without embedding must not be returned")
		}
	}
}

func TestItemRepoCountByDomain(t *testing.T) {
	gdb := testutil.DB(t)
	repo := NewItemRepo(gdb, testutil.Logger(t))
	ctx := context.Background()
	cleanupSource(t, "counttest")

	items := []*content.Item{
		newTestItem("counttest", "e1", "One"),
		newTestItem("counttest", "e2", "Two"),
	}
	if _, err := repo.Upsert(ctx, nil, items); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	counts, err := repo.CountByDomain(ctx, nil)
	if err != nil {
		t.Fatalf("count by domain: %v", err)
	}
	if counts[content.DomainNews] < 2 {
		t.Fatalf("expected at least 2 news items, got %d", counts[content.DomainNews])
	}
}
