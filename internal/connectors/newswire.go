package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/quillfeed/quillfeed-backend/internal/domain/content"
	"github.com/quillfeed/quillfeed-backend/internal/platform/logger"
	"gorm.io/datatypes"
)

// newswireConnector pulls syndicated articles from the Newswire API.
type newswireConnector struct {
	api *apiClient
}

func newNewswire(log *logger.Logger) (*newswireConnector, error) {
	api, err := newAPIClient(SourceNewswire, "https://api.newswire.example.com", log)
	if err != nil {
		return nil, err
	}
	return &newswireConnector{api: api}, nil
}

func (c *newswireConnector) Name() string           { return SourceNewswire }
func (c *newswireConnector) Domain() content.Domain { return content.DomainNews }

type newswirePageResponse struct {
	Articles   []json.RawMessage `json:"articles"`
	NextCursor string            `json:"next_cursor"`
	Total      int               `json:"total"`
	HasMore    bool              `json:"has_more"`
}

func (c *newswireConnector) Fetch(ctx context.Context, cursor string, limit int) (*Page, error) {
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	var resp newswirePageResponse
	if err := c.api.getJSON(ctx, "/v1/articles", q, &resp); err != nil {
		return nil, err
	}
	return &Page{
		Items:      resp.Articles,
		NextCursor: resp.NextCursor,
		Total:      resp.Total,
		HasMore:    resp.HasMore,
	}, nil
}

type newswireArticle struct {
	ID          string     `json:"id"`
	Headline    string     `json:"headline"`
	Summary     string     `json:"summary"`
	Tags        []string   `json:"tags"`
	URL         string     `json:"url"`
	Publisher   string     `json:"publisher"`
	Author      string     `json:"author"`
	PublishedAt *time.Time `json:"published_at"`
	Credibility string     `json:"credibility"`
	TrustScore  *float64   `json:"trust_score"`
	ImageURL    string     `json:"image_url"`
	Sponsored   bool       `json:"sponsored"`
}

func (c *newswireConnector) Map(raw json.RawMessage) (*content.Item, error) {
	var a newswireArticle
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, &MappingError{Source: SourceNewswire, Err: err}
	}
	if a.ID == "" {
		return nil, &MappingError{Source: SourceNewswire, Err: fmt.Errorf("article id is missing")}
	}
	if a.Headline == "" {
		return nil, &MappingError{Source: SourceNewswire, SourceItemID: a.ID, Err: fmt.Errorf("headline is missing")}
	}
	if a.Publisher == "" {
		return nil, &MappingError{Source: SourceNewswire, SourceItemID: a.ID, Err: fmt.Errorf("publisher is missing")}
	}
	if len(a.Tags) == 0 {
		return nil, &MappingError{Source: SourceNewswire, SourceItemID: a.ID, Err: fmt.Errorf("article has no tags")}
	}

	item := &content.Item{
		ID:              content.ItemID(SourceNewswire, a.ID),
		Domain:          content.DomainNews,
		Title:           a.Headline,
		Description:     a.Summary,
		Topics:          datatypes.NewJSONSlice(a.Tags),
		Source:          SourceNewswire,
		SourceItemID:    a.ID,
		SourceURL:       a.URL,
		ReputationScore: a.TrustScore,
		Actions:         datatypes.NewJSONSlice([]content.Action{content.ActionSave}),
		Sponsored:       a.Sponsored,
	}
	if err := item.SetMetadata(&content.NewsMetadata{
		Publisher:       a.Publisher,
		Author:          a.Author,
		PublishedAt:     a.PublishedAt,
		CredibilityTier: a.Credibility,
		ImageURL:        a.ImageURL,
	}); err != nil {
		return nil, &MappingError{Source: SourceNewswire, SourceItemID: a.ID, Err: err}
	}
	return item, nil
}

func (c *newswireConnector) ValidateAuth(ctx context.Context) error {
	return c.api.getJSON(ctx, "/v1/account", nil, nil)
}

func (c *newswireConnector) Health(ctx context.Context) Health {
	return c.api.health(ctx, "/v1/status")
}
