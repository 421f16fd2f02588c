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

// skillforgeConnector pulls courses from the Skillforge affiliate API.
type skillforgeConnector struct {
	api *apiClient
}

func newSkillforge(log *logger.Logger) (*skillforgeConnector, error) {
	api, err := newAPIClient(SourceSkillforge, "https://affiliates.skillforge.example.com", log)
	if err != nil {
		return nil, err
	}
	return &skillforgeConnector{api: api}, nil
}

func (c *skillforgeConnector) Name() string           { return SourceSkillforge }
func (c *skillforgeConnector) Domain() content.Domain { return content.DomainLearning }

type skillforgePageResponse struct {
	Courses    []json.RawMessage `json:"courses"`
	NextCursor string            `json:"next_cursor"`
	Total      int               `json:"total"`
	HasMore    bool              `json:"has_more"`
}

func (c *skillforgeConnector) Fetch(ctx context.Context, cursor string, limit int) (*Page, error) {
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	var resp skillforgePageResponse
	if err := c.api.getJSON(ctx, "/v1/courses", q, &resp); err != nil {
		return nil, err
	}
	return &Page{
		Items:      resp.Courses,
		NextCursor: resp.NextCursor,
		Total:      resp.Total,
		HasMore:    resp.HasMore,
	}, nil
}

type skillforgeCourse struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Summary          string   `json:"summary"`
	Provider         string   `json:"provider"`
	Topics           []string `json:"topics"`
	InstructorRating float64  `json:"instructor_rating"`
	DurationHours    float64  `json:"duration_hours"`
	Level            string   `json:"level"`
	ProviderScore    *float64 `json:"provider_score"`
	ImageURL         string   `json:"image_url"`
	URL              string   `json:"url"`
	Sponsored        bool     `json:"sponsored"`
}

func (c *skillforgeConnector) Map(raw json.RawMessage) (*content.Item, error) {
	var course skillforgeCourse
	if err := json.Unmarshal(raw, &course); err != nil {
		return nil, &MappingError{Source: SourceSkillforge, Err: err}
	}
	if course.ID == "" {
		return nil, &MappingError{Source: SourceSkillforge, Err: fmt.Errorf("course id is missing")}
	}
	if course.Title == "" {
		return nil, &MappingError{Source: SourceSkillforge, SourceItemID: course.ID, Err: fmt.Errorf("title is missing")}
	}
	if course.Provider == "" {
		return nil, &MappingError{Source: SourceSkillforge, SourceItemID: course.ID, Err: fmt.Errorf("provider is missing")}
	}
	if len(course.Topics) == 0 {
		return nil, &MappingError{Source: SourceSkillforge, SourceItemID: course.ID, Err: fmt.Errorf("course has no topics")}
	}

	item := &content.Item{
		ID:              content.ItemID(SourceSkillforge, course.ID),
		Domain:          content.DomainLearning,
		Title:           course.Title,
		Description:     course.Summary,
		Topics:          datatypes.NewJSONSlice(course.Topics),
		Source:          SourceSkillforge,
		SourceItemID:    course.ID,
		SourceURL:       course.URL,
		ReputationScore: course.ProviderScore,
		Actions:         datatypes.NewJSONSlice([]content.Action{content.ActionSave, content.ActionPurchase}),
		Sponsored:       course.Sponsored,
	}
	if err := item.SetMetadata(&content.LearningMetadata{
		Provider:         course.Provider,
		InstructorRating: course.InstructorRating,
		DurationHours:    course.DurationHours,
		Level:            course.Level,
		ImageURL:         course.ImageURL,
	}); err != nil {
		return nil, &MappingError{Source: SourceSkillforge, SourceItemID: course.ID, Err: err}
	}
	return item, nil
}

func (c *skillforgeConnector) ValidateAuth(ctx context.Context) error {
	return c.api.getJSON(ctx, "/v1/affiliate", nil, nil)
}

func (c *skillforgeConnector) Health(ctx context.Context) Health {
	return c.api.health(ctx, "/v1/status")
}
