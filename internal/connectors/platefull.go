package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/quillfeed/quillfeed-backend/internal/domain/content"
	"github.com/quillfeed/quillfeed-backend/internal/platform/logger"
	"gorm.io/datatypes"
)

// platefullConnector pulls recipes from the Platefull partner API.
type platefullConnector struct {
	api *apiClient
}

func newPlatefull(log *logger.Logger) (*platefullConnector, error) {
	api, err := newAPIClient(SourcePlatefull, "https://partners.platefull.example.com", log)
	if err != nil {
		return nil, err
	}
	return &platefullConnector{api: api}, nil
}

func (c *platefullConnector) Name() string           { return SourcePlatefull }
func (c *platefullConnector) Domain() content.Domain { return content.DomainRecipes }

type platefullPageResponse struct {
	Recipes    []json.RawMessage `json:"recipes"`
	NextCursor string            `json:"next_cursor"`
	TotalCount int               `json:"total_count"`
	HasMore    bool              `json:"has_more"`
}

func (c *platefullConnector) Fetch(ctx context.Context, cursor string, limit int) (*Page, error) {
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	var resp platefullPageResponse
	if err := c.api.getJSON(ctx, "/v1/recipes", q, &resp); err != nil {
		return nil, err
	}
	return &Page{
		Items:      resp.Recipes,
		NextCursor: resp.NextCursor,
		Total:      resp.TotalCount,
		HasMore:    resp.HasMore,
	}, nil
}

type platefullRecipe struct {
	ID             string             `json:"id"`
	Name           string             `json:"name"`
	Summary        string             `json:"summary"`
	Cuisine        string             `json:"cuisine"`
	Tags           []string           `json:"tags"`
	DietTags       []string           `json:"diet_tags"`
	PrepMinutes    int                `json:"prep_minutes"`
	Servings       int                `json:"servings"`
	Nutrition      map[string]float64 `json:"nutrition"`
	Publisher      string             `json:"publisher"`
	PublisherScore *float64           `json:"publisher_score"`
	ImageURL       string             `json:"image_url"`
	URL            string             `json:"url"`
	Sponsored      bool               `json:"sponsored"`
}

func (c *platefullConnector) Map(raw json.RawMessage) (*content.Item, error) {
	var r platefullRecipe
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, &MappingError{Source: SourcePlatefull, Err: err}
	}
	if r.ID == "" {
		return nil, &MappingError{Source: SourcePlatefull, Err: fmt.Errorf("recipe id is missing")}
	}
	if r.Name == "" {
		return nil, &MappingError{Source: SourcePlatefull, SourceItemID: r.ID, Err: fmt.Errorf("name is missing")}
	}
	if len(r.Tags) == 0 && len(r.DietTags) == 0 {
		return nil, &MappingError{Source: SourcePlatefull, SourceItemID: r.ID, Err: fmt.Errorf("recipe has no tags")}
	}

	topics := append([]string{}, r.Tags...)
	topics = append(topics, r.DietTags...)

	item := &content.Item{
		ID:              content.ItemID(SourcePlatefull, r.ID),
		Domain:          content.DomainRecipes,
		Title:           r.Name,
		Description:     r.Summary,
		Topics:          datatypes.NewJSONSlice(topics),
		Source:          SourcePlatefull,
		SourceItemID:    r.ID,
		SourceURL:       r.URL,
		ReputationScore: r.PublisherScore,
		Actions:         datatypes.NewJSONSlice([]content.Action{content.ActionSave, content.ActionTry}),
		Sponsored:       r.Sponsored,
	}
	if err := item.SetMetadata(&content.RecipeMetadata{
		Publisher:   r.Publisher,
		Cuisine:     r.Cuisine,
		PrepMinutes: r.PrepMinutes,
		Servings:    r.Servings,
		DietTags:    r.DietTags,
		Nutrition:   r.Nutrition,
		ImageURL:    r.ImageURL,
	}); err != nil {
		return nil, &MappingError{Source: SourcePlatefull, SourceItemID: r.ID, Err: err}
	}
	return item, nil
}

func (c *platefullConnector) ValidateAuth(ctx context.Context) error {
	return c.api.getJSON(ctx, "/v1/partner", nil, nil)
}

func (c *platefullConnector) Health(ctx context.Context) Health {
	return c.api.health(ctx, "/v1/status")
}
