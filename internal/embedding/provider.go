package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/quillfeed/quillfeed-backend/internal/domain/content"
	"github.com/quillfeed/quillfeed-backend/internal/platform/logger"
)

// Provider turns text into fixed-dimension vectors. Implementations are
// swappable behind this contract; the dimensionality is fixed per provider
// and must match the active similarity index.
type Provider interface {
	Name() string
	Embed(ctx context.Context, text string) (content.Vector, error)
	EmbedBatch(ctx context.Context, texts []string) ([]content.Vector, error)
	Dimensions() int
	Validate(ctx context.Context) error
}

const (
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"

	// Rough heuristic used to bound payload size before sending.
	charsPerToken      = 4
	defaultTokenBudget = 8000
)

// NewProvider builds a provider by name, resolving configuration from the
// environment.
func NewProvider(name string, log *logger.Logger) (Provider, error) {
	switch name {
	case ProviderOpenAI:
		return newOpenAIProvider(log)
	case ProviderLocal:
		return newLocalProvider(log), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", name)
	}
}

// PrepareText truncates text to the token budget (approximated at 4 chars per
// token), keeping an ellipsis marker so truncation stays visible.
func PrepareText(text string, tokenBudget int) string {
	if tokenBudget <= 0 {
		tokenBudget = defaultTokenBudget
	}
	text = strings.TrimSpace(text)
	maxChars := tokenBudget * charsPerToken
	if len(text) <= maxChars {
		return text
	}
	return text[:maxChars-3] + "..."
}

// BuildItemText assembles the embedding input for an item: title,
// description, topics and a domain-specific slice of its metadata.
func BuildItemText(item *content.Item) string {
	parts := []string{item.Title}
	if item.Description != "" {
		parts = append(parts, item.Description)
	}
	if len(item.Topics) > 0 {
		parts = append(parts, strings.Join(item.Topics, ", "))
	}

	if md, err := item.DecodeMetadata(); err == nil && md != nil {
		switch t := md.(type) {
		case *content.MusicMetadata:
			parts = appendNonEmpty(parts, t.Artist, t.Album, t.Genre)
		case *content.NewsMetadata:
			parts = appendNonEmpty(parts, t.Publisher, t.Author)
		case *content.RecipeMetadata:
			parts = appendNonEmpty(parts, t.Cuisine)
			parts = append(parts, t.DietTags...)
		case *content.LearningMetadata:
			parts = appendNonEmpty(parts, t.Provider, t.Level)
		case *content.EventsMetadata:
			parts = appendNonEmpty(parts, t.Venue, t.City, t.Organizer)
		}
	}
	return PrepareText(strings.Join(parts, "\n"), defaultTokenBudget)
}

func appendNonEmpty(parts []string, values ...string) []string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			parts = append(parts, v)
		}
	}
	return parts
}
