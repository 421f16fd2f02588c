package quality

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/quillfeed/quillfeed-backend/internal/domain/content"
)

// CheckContext selects the reputation threshold an item is held against.
type CheckContext string

const (
	ContextIngest   CheckContext = "ingest"
	ContextRanking  CheckContext = "ranking"
	ContextFeatured CheckContext = "featured"
)

func (c CheckContext) Valid() bool {
	switch c {
	case ContextIngest, ContextRanking, ContextFeatured:
		return true
	}
	return false
}

// Rules is the declarative, human-edited quality document. A malformed
// document fails at load time; the engine never defaults silently.
type Rules struct {
	Version   int                            `yaml:"version"`
	Global    GlobalRules                    `yaml:"global"`
	Contexts  map[CheckContext]ContextRules  `yaml:"contexts"`
	Allowlist AllowlistRules                 `yaml:"allowlist"`
	Domains   map[content.Domain]DomainRules `yaml:"domains"`
}

type GlobalRules struct {
	SpamKeywords      []string `yaml:"spam_keywords"`
	SensitiveTopics   []string `yaml:"sensitive_topics"`
	DefaultReputation float64  `yaml:"default_reputation"`
}

type ContextRules struct {
	MinReputation float64 `yaml:"min_reputation"`
}

type AllowlistRules struct {
	TrustedDomains   []string                    `yaml:"trusted_domains"`
	VerifiedCreators map[content.Domain][]string `yaml:"verified_creators"`
}

type TierList struct {
	Sources []string `yaml:"sources"`
	Score   float64  `yaml:"score"`
}

type BlockedSource struct {
	Source string `yaml:"source"`
	Reason string `yaml:"reason"`
}

type DomainFilters struct {
	// News: health/medical items must carry a credibility tier other than
	// "unverified".
	RequireHealthCredibility bool `yaml:"require_health_credibility"`
	// Recipes: diet-tagged recipes should carry nutrition data.
	RequireDietNutrition bool `yaml:"require_diet_nutrition"`
	// Learning: courses below this instructor rating are flagged.
	MinInstructorRating float64 `yaml:"min_instructor_rating"`
	// Events: above this capacity the organizer should be verified.
	LargeEventCapacity int `yaml:"large_event_capacity"`
}

type DomainRules struct {
	Trusted           TierList        `yaml:"trusted"`
	Verified          TierList        `yaml:"verified"`
	Risky             TierList        `yaml:"risky"`
	Blocked           []BlockedSource `yaml:"blocked"`
	BlocklistKeywords []string        `yaml:"blocklist_keywords"`
	MinReputation     float64         `yaml:"min_reputation"`
	Filters           DomainFilters   `yaml:"filters"`
}

// LoadRules reads and validates the rules document at path.
func LoadRules(path string) (*Rules, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules document: %w", err)
	}
	return ParseRules(raw)
}

// ParseRules decodes a rules document, rejecting unknown fields.
func ParseRules(raw []byte) (*Rules, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)

	var rules Rules
	if err := dec.Decode(&rules); err != nil {
		return nil, fmt.Errorf("parse rules document: %w", err)
	}
	if err := rules.validate(); err != nil {
		return nil, fmt.Errorf("invalid rules document: %w", err)
	}
	return &rules, nil
}

func (r *Rules) validate() error {
	if r.Version < 1 {
		return fmt.Errorf("version must be >= 1, got %d", r.Version)
	}
	if r.Global.DefaultReputation < 0 || r.Global.DefaultReputation > 100 {
		return fmt.Errorf("global.default_reputation out of range: %v", r.Global.DefaultReputation)
	}
	for _, cctx := range []CheckContext{ContextIngest, ContextRanking, ContextFeatured} {
		cr, ok := r.Contexts[cctx]
		if !ok {
			return fmt.Errorf("missing context %q", cctx)
		}
		if cr.MinReputation < 0 || cr.MinReputation > 100 {
			return fmt.Errorf("context %q min_reputation out of range: %v", cctx, cr.MinReputation)
		}
	}
	for cctx := range r.Contexts {
		switch cctx {
		case ContextIngest, ContextRanking, ContextFeatured:
		default:
			return fmt.Errorf("unknown context %q", cctx)
		}
	}
	for d := range r.Allowlist.VerifiedCreators {
		if !d.Valid() {
			return fmt.Errorf("allowlist.verified_creators: unknown domain %q", d)
		}
	}
	for d, dr := range r.Domains {
		if !d.Valid() {
			return fmt.Errorf("domains: unknown domain %q", d)
		}
		for name, tl := range map[string]TierList{"trusted": dr.Trusted, "verified": dr.Verified, "risky": dr.Risky} {
			if tl.Score < 0 || tl.Score > 100 {
				return fmt.Errorf("domain %q %s score out of range: %v", d, name, tl.Score)
			}
		}
		if dr.MinReputation < 0 || dr.MinReputation > 100 {
			return fmt.Errorf("domain %q min_reputation out of range: %v", d, dr.MinReputation)
		}
	}
	return nil
}

func (r *Rules) domain(d content.Domain) DomainRules {
	return r.Domains[d]
}
