package content

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Domain tags the vertical an item belongs to. The set is fixed; connectors
// may only produce items in one of these.
type Domain string

const (
	DomainMusic    Domain = "music"
	DomainNews     Domain = "news"
	DomainRecipes  Domain = "recipes"
	DomainLearning Domain = "learning"
	DomainEvents   Domain = "events"
)

func Domains() []Domain {
	return []Domain{DomainMusic, DomainNews, DomainRecipes, DomainLearning, DomainEvents}
}

func (d Domain) Valid() bool {
	switch d {
	case DomainMusic, DomainNews, DomainRecipes, DomainLearning, DomainEvents:
		return true
	}
	return false
}

// Action is a user action an item supports.
type Action string

const (
	ActionSave     Action = "save"
	ActionTry      Action = "try"
	ActionAttend   Action = "attend"
	ActionPurchase Action = "purchase"
)

func (a Action) Valid() bool {
	switch a {
	case ActionSave, ActionTry, ActionAttend, ActionPurchase:
		return true
	}
	return false
}

// Item is the canonical record every connector produces. Once persisted the
// only legal mutation is embedding assignment by the embedding worker.
type Item struct {
	ID          string                      `gorm:"primaryKey" json:"id"`
	Domain      Domain                      `gorm:"index;not null" json:"domain"`
	Title       string                      `gorm:"not null" json:"title"`
	Description string                      `gorm:"type:text" json:"description,omitempty"`
	Topics      datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"topics"`

	Source          string   `gorm:"index;not null" json:"source"`
	SourceItemID    string   `gorm:"column:source_item_id;not null" json:"source_item_id"`
	SourceURL       string   `gorm:"column:source_url" json:"source_url,omitempty"`
	ReputationScore *float64 `gorm:"column:reputation_score" json:"reputation_score,omitempty"`

	Actions   datatypes.JSONSlice[Action] `gorm:"type:jsonb" json:"actions,omitempty"`
	Sponsored bool                        `gorm:"not null;default:false" json:"sponsored"`

	Embedding Vector         `gorm:"type:vector(1536)" json:"embedding,omitempty"`
	Metadata  datatypes.JSON `gorm:"type:jsonb" json:"metadata,omitempty"`

	// Set by the quality gate at ingest time.
	QualityScore *float64 `gorm:"column:quality_score" json:"quality_score,omitempty"`
	QualityTier  string   `gorm:"column:quality_tier" json:"quality_tier,omitempty"`

	IngestedAt time.Time  `gorm:"column:ingested_at;not null" json:"ingested_at"`
	EmbeddedAt *time.Time `gorm:"column:embedded_at" json:"embedded_at,omitempty"`

	CreatedAt time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

func (Item) TableName() string { return "content_item" }

// ItemID builds the globally unique, source-prefixed id.
func ItemID(source, sourceItemID string) string {
	return source + ":" + sourceItemID
}

// SetMetadata encodes the typed payload, enforcing that its domain tag equals
// the item's own domain tag.
func (i *Item) SetMetadata(md Metadata) error {
	if md == nil {
		i.Metadata = nil
		return nil
	}
	if md.MetadataDomain() != i.Domain {
		return fmt.Errorf("metadata domain %q does not match item domain %q", md.MetadataDomain(), i.Domain)
	}
	raw, err := EncodeMetadata(md)
	if err != nil {
		return err
	}
	i.Metadata = raw
	return nil
}

// DecodeMetadata returns the typed metadata payload, or nil when none is set.
func (i *Item) DecodeMetadata() (Metadata, error) {
	if len(i.Metadata) == 0 {
		return nil, nil
	}
	return DecodeMetadata(i.Metadata)
}

// SearchText is the blob the blocklist scanner matches against.
func (i *Item) SearchText() string {
	parts := make([]string, 0, 2+len(i.Topics))
	parts = append(parts, i.Title, i.Description)
	parts = append(parts, i.Topics...)
	return strings.ToLower(strings.Join(parts, " "))
}
