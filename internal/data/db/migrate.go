package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/quillfeed/quillfeed-backend/internal/domain/content"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&content.Item{},
	)
}

func EnsureContentIndexes(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_content_item_domain
		ON content_item (domain);
	`).Error; err != nil {
		return fmt.Errorf("create idx_content_item_domain: %w", err)
	}

	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_content_item_source_item
		ON content_item (source, source_item_id);
	`).Error; err != nil {
		return fmt.Errorf("create idx_content_item_source_item: %w", err)
	}

	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_content_item_ingested_at
		ON content_item (ingested_at DESC);
	`).Error; err != nil {
		return fmt.Errorf("create idx_content_item_ingested_at: %w", err)
	}

	// Approximate nearest-neighbor index for cosine retrieval. Rows with a
	// NULL embedding are excluded from the index automatically.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_content_item_embedding
		ON content_item
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100);
	`).Error; err != nil {
		return fmt.Errorf("create idx_content_item_embedding: %w", err)
	}

	return nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	if err := AutoMigrateAll(s.db); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	if err := EnsureContentIndexes(s.db); err != nil {
		s.log.Error("Content index migration failed", "error", err)
		return err
	}
	return nil
}
