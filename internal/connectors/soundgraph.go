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

// soundgraphConnector pulls tracks from the Soundgraph catalog API.
type soundgraphConnector struct {
	api *apiClient
}

func newSoundgraph(log *logger.Logger) (*soundgraphConnector, error) {
	api, err := newAPIClient(SourceSoundgraph, "https://api.soundgraph.example.com", log)
	if err != nil {
		return nil, err
	}
	return &soundgraphConnector{api: api}, nil
}

func (c *soundgraphConnector) Name() string           { return SourceSoundgraph }
func (c *soundgraphConnector) Domain() content.Domain { return content.DomainMusic }

type soundgraphPageResponse struct {
	Tracks []json.RawMessage `json:"tracks"`
	Paging struct {
		Next  string `json:"next"`
		Total int    `json:"total"`
		More  bool   `json:"more"`
	} `json:"paging"`
}

func (c *soundgraphConnector) Fetch(ctx context.Context, cursor string, limit int) (*Page, error) {
	q := url.Values{"page_size": {strconv.Itoa(limit)}}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	var resp soundgraphPageResponse
	if err := c.api.getJSON(ctx, "/v2/catalog/tracks", q, &resp); err != nil {
		return nil, err
	}
	return &Page{
		Items:      resp.Tracks,
		NextCursor: resp.Paging.Next,
		Total:      resp.Paging.Total,
		HasMore:    resp.Paging.More,
	}, nil
}

type soundgraphTrack struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Artist      string   `json:"artist"`
	Album       string   `json:"album"`
	Genres      []string `json:"genres"`
	DurationSec int      `json:"duration_sec"`
	Popularity  *float64 `json:"popularity"`
	PreviewURL  string   `json:"preview_url"`
	ArtworkURL  string   `json:"artwork_url"`
	PageURL     string   `json:"page_url"`
	Promoted    bool     `json:"promoted"`
}

func (c *soundgraphConnector) Map(raw json.RawMessage) (*content.Item, error) {
	var t soundgraphTrack
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, &MappingError{Source: SourceSoundgraph, Err: err}
	}
	if t.ID == "" {
		return nil, &MappingError{Source: SourceSoundgraph, Err: fmt.Errorf("track id is missing")}
	}
	if t.Title == "" {
		return nil, &MappingError{Source: SourceSoundgraph, SourceItemID: t.ID, Err: fmt.Errorf("title is missing")}
	}
	if t.Artist == "" {
		return nil, &MappingError{Source: SourceSoundgraph, SourceItemID: t.ID, Err: fmt.Errorf("artist is missing")}
	}
	if len(t.Genres) == 0 {
		return nil, &MappingError{Source: SourceSoundgraph, SourceItemID: t.ID, Err: fmt.Errorf("track has no genres")}
	}

	item := &content.Item{
		ID:              content.ItemID(SourceSoundgraph, t.ID),
		Domain:          content.DomainMusic,
		Title:           t.Title,
		Description:     trackDescription(t.Artist, t.Album),
		Topics:          datatypes.NewJSONSlice(t.Genres),
		Source:          SourceSoundgraph,
		SourceItemID:    t.ID,
		SourceURL:       t.PageURL,
		ReputationScore: t.Popularity,
		Actions:         datatypes.NewJSONSlice([]content.Action{content.ActionSave, content.ActionPurchase}),
		Sponsored:       t.Promoted,
	}
	if err := item.SetMetadata(&content.MusicMetadata{
		Artist:      t.Artist,
		Album:       t.Album,
		Genre:       t.Genres[0],
		DurationSec: t.DurationSec,
		PreviewURL:  t.PreviewURL,
		ArtworkURL:  t.ArtworkURL,
	}); err != nil {
		return nil, &MappingError{Source: SourceSoundgraph, SourceItemID: t.ID, Err: err}
	}
	return item, nil
}

func trackDescription(artist, album string) string {
	if album == "" {
		return artist
	}
	return artist + " - " + album
}

func (c *soundgraphConnector) ValidateAuth(ctx context.Context) error {
	return c.api.getJSON(ctx, "/v2/me", nil, nil)
}

func (c *soundgraphConnector) Health(ctx context.Context) Health {
	return c.api.health(ctx, "/v2/ping")
}
