package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/quillfeed/quillfeed-backend/internal/domain/content"
	"github.com/quillfeed/quillfeed-backend/internal/platform/logger"
)

// Page is one page of raw provider items. HasMore=false signals exhaustion;
// fetching the same cursor again must return the same page.
type Page struct {
	Items      []json.RawMessage
	NextCursor string
	Total      int
	HasMore    bool
}

type Health struct {
	Healthy   bool
	Latency   time.Duration
	ErrorRate float64
	Error     string
}

// Connector adapts one external provider to the unified content schema.
// Fetch does network I/O; Map must be pure.
type Connector interface {
	Name() string
	Domain() content.Domain
	Fetch(ctx context.Context, cursor string, limit int) (*Page, error)
	Map(raw json.RawMessage) (*content.Item, error)
	ValidateAuth(ctx context.Context) error
	Health(ctx context.Context) Health
}

const (
	SourceSoundgraph = "soundgraph"
	SourceNewswire   = "newswire"
	SourcePlatefull  = "platefull"
	SourceSkillforge = "skillforge"
	SourceTownsquare = "townsquare"
)

func Names() []string {
	return []string{SourceSoundgraph, SourceNewswire, SourcePlatefull, SourceSkillforge, SourceTownsquare}
}

// New builds a connector by source name, resolving credentials from the
// process environment.
func New(name string, log *logger.Logger) (Connector, error) {
	switch name {
	case SourceSoundgraph:
		return newSoundgraph(log)
	case SourceNewswire:
		return newNewswire(log)
	case SourcePlatefull:
		return newPlatefull(log)
	case SourceSkillforge:
		return newSkillforge(log)
	case SourceTownsquare:
		return newTownsquare(log)
	default:
		return nil, fmt.Errorf("unknown source %q", name)
	}
}

// NewAll builds every registered connector.
func NewAll(log *logger.Logger) ([]Connector, error) {
	out := make([]Connector, 0, len(Names()))
	for _, name := range Names() {
		c, err := New(name, log)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
