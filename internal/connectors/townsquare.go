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

// townsquareConnector pulls local events from the Townsquare API.
type townsquareConnector struct {
	api *apiClient
}

func newTownsquare(log *logger.Logger) (*townsquareConnector, error) {
	api, err := newAPIClient(SourceTownsquare, "https://api.townsquare.example.com", log)
	if err != nil {
		return nil, err
	}
	return &townsquareConnector{api: api}, nil
}

func (c *townsquareConnector) Name() string           { return SourceTownsquare }
func (c *townsquareConnector) Domain() content.Domain { return content.DomainEvents }

type townsquarePageResponse struct {
	Events     []json.RawMessage `json:"events"`
	NextCursor string            `json:"next_cursor"`
	Total      int               `json:"total"`
	HasMore    bool              `json:"has_more"`
}

func (c *townsquareConnector) Fetch(ctx context.Context, cursor string, limit int) (*Page, error) {
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	var resp townsquarePageResponse
	if err := c.api.getJSON(ctx, "/v1/events", q, &resp); err != nil {
		return nil, err
	}
	return &Page{
		Items:      resp.Events,
		NextCursor: resp.NextCursor,
		Total:      resp.Total,
		HasMore:    resp.HasMore,
	}, nil
}

type townsquareEvent struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Description       string     `json:"description"`
	Venue             string     `json:"venue"`
	City              string     `json:"city"`
	Organizer         string     `json:"organizer"`
	StartsAt          *time.Time `json:"starts_at"`
	Capacity          int        `json:"capacity"`
	OrganizerVerified bool       `json:"organizer_verified"`
	OrganizerScore    *float64   `json:"organizer_score"`
	Categories        []string   `json:"categories"`
	ImageURL          string     `json:"image_url"`
	URL               string     `json:"url"`
	Sponsored         bool       `json:"sponsored"`
}

func (c *townsquareConnector) Map(raw json.RawMessage) (*content.Item, error) {
	var ev townsquareEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, &MappingError{Source: SourceTownsquare, Err: err}
	}
	if ev.ID == "" {
		return nil, &MappingError{Source: SourceTownsquare, Err: fmt.Errorf("event id is missing")}
	}
	if ev.Name == "" {
		return nil, &MappingError{Source: SourceTownsquare, SourceItemID: ev.ID, Err: fmt.Errorf("name is missing")}
	}
	if ev.Venue == "" {
		return nil, &MappingError{Source: SourceTownsquare, SourceItemID: ev.ID, Err: fmt.Errorf("venue is missing")}
	}
	if len(ev.Categories) == 0 {
		return nil, &MappingError{Source: SourceTownsquare, SourceItemID: ev.ID, Err: fmt.Errorf("event has no categories")}
	}

	item := &content.Item{
		ID:              content.ItemID(SourceTownsquare, ev.ID),
		Domain:          content.DomainEvents,
		Title:           ev.Name,
		Description:     ev.Description,
		Topics:          datatypes.NewJSONSlice(ev.Categories),
		Source:          SourceTownsquare,
		SourceItemID:    ev.ID,
		SourceURL:       ev.URL,
		ReputationScore: ev.OrganizerScore,
		Actions:         datatypes.NewJSONSlice([]content.Action{content.ActionSave, content.ActionAttend}),
		Sponsored:       ev.Sponsored,
	}
	if err := item.SetMetadata(&content.EventsMetadata{
		Organizer:         ev.Organizer,
		Venue:             ev.Venue,
		City:              ev.City,
		StartsAt:          ev.StartsAt,
		Capacity:          ev.Capacity,
		OrganizerVerified: ev.OrganizerVerified,
		ImageURL:          ev.ImageURL,
	}); err != nil {
		return nil, &MappingError{Source: SourceTownsquare, SourceItemID: ev.ID, Err: err}
	}
	return item, nil
}

func (c *townsquareConnector) ValidateAuth(ctx context.Context) error {
	return c.api.getJSON(ctx, "/v1/organizer", nil, nil)
}

func (c *townsquareConnector) Health(ctx context.Context) Health {
	return c.api.health(ctx, "/v1/status")
}
