package content

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/quillfeed/quillfeed-backend/internal/domain/content"
	"github.com/quillfeed/quillfeed-backend/internal/platform/logger"
)

type ItemRepo interface {
	Upsert(ctx context.Context, tx *gorm.DB, items []*content.Item) ([]*content.Item, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []string) ([]*content.Item, error)
	ListMissingEmbedding(ctx context.Context, tx *gorm.DB, domain content.Domain, limit int) ([]*content.Item, error)
	UpdateEmbedding(ctx context.Context, itemID string, vec content.Vector) error
	SearchSimilar(ctx context.Context, query content.Vector, topK int, domain content.Domain) ([]*SimilarItem, error)
	CountByDomain(ctx context.Context, tx *gorm.DB) (map[content.Domain]int64, error)
}

// SimilarItem is an item annotated with its cosine similarity to the query.
type SimilarItem struct {
	content.Item `gorm:"embedded"`
	Score        float64 `gorm:"column:score"`
}

type itemRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewItemRepo(db *gorm.DB, baseLog *logger.Logger) ItemRepo {
	repoLog := baseLog.With("repo", "ItemRepo")
	return &itemRepo{db: db, log: repoLog}
}

// Upsert inserts new items and refreshes the mutable columns of existing
// ones. The embedding column is left untouched so a re-ingested item keeps
// its vector until the worker overwrites it.
func (ir *itemRepo) Upsert(ctx context.Context, tx *gorm.DB, items []*content.Item) ([]*content.Item, error) {
	transaction := tx
	if transaction == nil {
		transaction = ir.db
	}

	if len(items) == 0 {
		return []*content.Item{}, nil
	}

	now := time.Now().UTC()
	for _, it := range items {
		if it.IngestedAt.IsZero() {
			it.IngestedAt = now
		}
	}

	if err := transaction.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "description", "topics", "source_url",
			"reputation_score", "sponsored", "actions", "metadata",
			"quality_score", "quality_tier", "ingested_at",
		}),
	}).Create(&items).Error; err != nil {
		return nil, err
	}

	return items, nil
}

func (ir *itemRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []string) ([]*content.Item, error) {
	transaction := tx
	if transaction == nil {
		transaction = ir.db
	}

	var results []*content.Item
	if len(ids) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (ir *itemRepo) ListMissingEmbedding(ctx context.Context, tx *gorm.DB, domain content.Domain, limit int) ([]*content.Item, error) {
	transaction := tx
	if transaction == nil {
		transaction = ir.db
	}

	q := transaction.WithContext(ctx).
		Where("embedding IS NULL").
		Order("ingested_at ASC")
	if domain != "" {
		q = q.Where("domain = ?", domain)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var results []*content.Item
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (ir *itemRepo) UpdateEmbedding(ctx context.Context, itemID string, vec content.Vector) error {
	return ir.db.WithContext(ctx).
		Model(&content.Item{}).
		Where("id = ?", itemID).
		Updates(map[string]any{
			"embedding":   vec,
			"embedded_at": time.Now().UTC(),
		}).Error
}

// SearchSimilar runs cosine nearest-neighbor retrieval over items that have
// an embedding, optionally restricted to one domain.
func (ir *itemRepo) SearchSimilar(ctx context.Context, query content.Vector, topK int, domain content.Domain) ([]*SimilarItem, error) {
	if topK <= 0 {
		topK = 10
	}

	q := ir.db.WithContext(ctx).
		Table("content_item").
		Select("*, 1 - (embedding <=> ?) AS score", query).
		Where("embedding IS NOT NULL")
	if domain != "" {
		q = q.Where("domain = ?", domain)
	}

	var results []*SimilarItem
	if err := q.Clauses(clause.OrderBy{
		Expression: clause.Expr{SQL: "embedding <=> ?", Vars: []any{query}, WithoutParentheses: true},
	}).Limit(topK).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (ir *itemRepo) CountByDomain(ctx context.Context, tx *gorm.DB) (map[content.Domain]int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = ir.db
	}

	var rows []struct {
		Domain content.Domain
		N      int64
	}
	if err := transaction.WithContext(ctx).
		Model(&content.Item{}).
		Select("domain, count(*) AS n").
		Group("domain").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := make(map[content.Domain]int64, len(rows))
	for _, r := range rows {
		out[r.Domain] = r.N
	}
	return out, nil
}
