package services

import (
	"context"
	"fmt"
	"strings"

	contentrepo "github.com/quillfeed/quillfeed-backend/internal/data/repos/content"
	"github.com/quillfeed/quillfeed-backend/internal/domain/content"
	"github.com/quillfeed/quillfeed-backend/internal/embedding"
	"github.com/quillfeed/quillfeed-backend/internal/platform/logger"
)

// DiscoveryService answers free-text queries with the most similar indexed
// items. The query is embedded with the same provider that produced the
// stored vectors.
type DiscoveryService interface {
	Search(ctx context.Context, query string, topK int, domain content.Domain) ([]*contentrepo.SimilarItem, error)
}

type discoveryService struct {
	log      *logger.Logger
	provider embedding.Provider
	items    contentrepo.ItemRepo
}

func NewDiscoveryService(provider embedding.Provider, items contentrepo.ItemRepo, baseLog *logger.Logger) (DiscoveryService, error) {
	if provider == nil || items == nil {
		return nil, fmt.Errorf("provider and item repo are required")
	}
	if baseLog == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &discoveryService{
		log:      baseLog.With("service", "DiscoveryService"),
		provider: provider,
		items:    items,
	}, nil
}

func (s *discoveryService) Search(ctx context.Context, query string, topK int, domain content.Domain) ([]*contentrepo.SimilarItem, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty query")
	}
	if domain != "" && !domain.Valid() {
		return nil, fmt.Errorf("invalid domain filter %q", domain)
	}
	if topK <= 0 {
		topK = 10
	}

	vec, err := s.provider.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := s.items.SearchSimilar(ctx, vec, topK, domain)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	s.log.Debug("discovery search", "query_len", len(query), "domain", domain, "results", len(results))
	return results, nil
}
