package content

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// Metadata is the per-domain payload carried by an item. It is a tagged union
// keyed by the "domain" field of the encoded JSON; the tag is validated
// against the item's own domain at construction time.
type Metadata interface {
	MetadataDomain() Domain
}

type MusicMetadata struct {
	Artist      string `json:"artist"`
	Album       string `json:"album,omitempty"`
	Genre       string `json:"genre,omitempty"`
	DurationSec int    `json:"duration_sec,omitempty"`
	PreviewURL  string `json:"preview_url,omitempty"`
	ArtworkURL  string `json:"artwork_url,omitempty"`
}

func (MusicMetadata) MetadataDomain() Domain { return DomainMusic }

type NewsMetadata struct {
	Publisher       string     `json:"publisher"`
	Author          string     `json:"author,omitempty"`
	PublishedAt     *time.Time `json:"published_at,omitempty"`
	CredibilityTier string     `json:"credibility_tier,omitempty"`
	ImageURL        string     `json:"image_url,omitempty"`
}

func (NewsMetadata) MetadataDomain() Domain { return DomainNews }

type RecipeMetadata struct {
	Publisher   string             `json:"publisher,omitempty"`
	Cuisine     string             `json:"cuisine,omitempty"`
	PrepMinutes int                `json:"prep_minutes,omitempty"`
	Servings    int                `json:"servings,omitempty"`
	DietTags    []string           `json:"diet_tags,omitempty"`
	Nutrition   map[string]float64 `json:"nutrition,omitempty"`
	ImageURL    string             `json:"image_url,omitempty"`
}

func (RecipeMetadata) MetadataDomain() Domain { return DomainRecipes }

type LearningMetadata struct {
	Provider         string  `json:"provider"`
	InstructorRating float64 `json:"instructor_rating,omitempty"`
	DurationHours    float64 `json:"duration_hours,omitempty"`
	Level            string  `json:"level,omitempty"`
	ImageURL         string  `json:"image_url,omitempty"`
}

func (LearningMetadata) MetadataDomain() Domain { return DomainLearning }

type EventsMetadata struct {
	Organizer         string     `json:"organizer,omitempty"`
	Venue             string     `json:"venue"`
	City              string     `json:"city,omitempty"`
	StartsAt          *time.Time `json:"starts_at,omitempty"`
	Capacity          int        `json:"capacity,omitempty"`
	OrganizerVerified bool       `json:"organizer_verified,omitempty"`
	ImageURL          string     `json:"image_url,omitempty"`
}

func (EventsMetadata) MetadataDomain() Domain { return DomainEvents }

// EncodeMetadata marshals a payload with its domain tag injected.
func EncodeMetadata(md Metadata) (datatypes.JSON, error) {
	raw, err := json.Marshal(md)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	m["domain"] = string(md.MetadataDomain())
	out, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(out), nil
}

// DecodeMetadata unmarshals the tagged union back into its concrete type.
func DecodeMetadata(raw datatypes.JSON) (Metadata, error) {
	var probe struct {
		Domain Domain `json:"domain"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("metadata is not an object: %w", err)
	}
	switch probe.Domain {
	case DomainMusic:
		var md MusicMetadata
		return &md, json.Unmarshal(raw, &md)
	case DomainNews:
		var md NewsMetadata
		return &md, json.Unmarshal(raw, &md)
	case DomainRecipes:
		var md RecipeMetadata
		return &md, json.Unmarshal(raw, &md)
	case DomainLearning:
		var md LearningMetadata
		return &md, json.Unmarshal(raw, &md)
	case DomainEvents:
		var md EventsMetadata
		return &md, json.Unmarshal(raw, &md)
	default:
		return nil, fmt.Errorf("unknown metadata domain %q", probe.Domain)
	}
}

// MetadataFieldCount counts the populated fields of an encoded payload,
// excluding the domain tag itself. Used by the content-quality heuristic.
func MetadataFieldCount(raw datatypes.JSON) int {
	if len(raw) == 0 {
		return 0
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return 0
	}
	delete(m, "domain")
	n := 0
	for _, v := range m {
		switch t := v.(type) {
		case nil:
		case string:
			if t != "" {
				n++
			}
		case float64:
			if t != 0 {
				n++
			}
		case bool:
			n++
		default:
			n++
		}
	}
	return n
}

// MetadataImageURL extracts the image URL from any domain's payload.
func MetadataImageURL(md Metadata) string {
	switch t := md.(type) {
	case *MusicMetadata:
		return t.ArtworkURL
	case *NewsMetadata:
		return t.ImageURL
	case *RecipeMetadata:
		return t.ImageURL
	case *LearningMetadata:
		return t.ImageURL
	case *EventsMetadata:
		return t.ImageURL
	case MusicMetadata:
		return t.ArtworkURL
	case NewsMetadata:
		return t.ImageURL
	case RecipeMetadata:
		return t.ImageURL
	case LearningMetadata:
		return t.ImageURL
	case EventsMetadata:
		return t.ImageURL
	}
	return ""
}
