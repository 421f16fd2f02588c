package quality

import (
	"fmt"
	"strings"

	"github.com/quillfeed/quillfeed-backend/internal/domain/content"
	"github.com/quillfeed/quillfeed-backend/internal/platform/logger"
)

// Engine scores items against the loaded rules document. Check is a pure
// function of (item, context, rules); there is no hidden state.
type Engine struct {
	rules *Rules
	log   *logger.Logger
}

func NewEngine(rules *Rules, log *logger.Logger) (*Engine, error) {
	if rules == nil {
		return nil, fmt.Errorf("rules document required")
	}
	return &Engine{rules: rules, log: log.With("component", "QualityEngine")}, nil
}

// Check runs the full scoring pipeline and determines the final action.
// It never fails for a well-formed item.
func (e *Engine) Check(item *content.Item, cctx CheckContext) *Decision {
	d := &Decision{Violations: []Violation{}}
	dr := e.rules.domain(item.Domain)
	creator := creatorName(item)

	allowlisted := e.isAllowlisted(item, creator)

	var reputation float64
	switch {
	case allowlisted:
		reputation = 100
	default:
		reputation = e.reputationScore(item, dr, creator, d)
	}

	e.scanBlocklists(item, dr, d)
	e.applyDomainFilters(item, dr, d)

	thresholdFailed := e.applyContextThreshold(reputation, cctx, d)
	contentQuality := contentQualityScore(item)

	d.Score = 0.6*reputation + 0.4*contentQuality
	d.Tier = TierForScore(reputation)
	d.Action = determineAction(d, thresholdFailed)
	d.Passed = d.Action == ActionAllow
	d.Metadata = map[string]any{
		"reputation_score": reputation,
		"content_quality":  contentQuality,
		"allowlisted":      allowlisted,
		"violation_types":  distinctViolationTypes(d.Violations),
	}
	return d
}

// isAllowlisted checks the trusted-domain URL prefixes and the per-domain
// verified creator registry. Allowlisting pins reputation at 100 but does not
// skip blocklist, filter or threshold checks.
func (e *Engine) isAllowlisted(item *content.Item, creator string) bool {
	if item.SourceURL != "" {
		for _, prefix := range e.rules.Allowlist.TrustedDomains {
			if strings.HasPrefix(item.SourceURL, prefix) {
				return true
			}
		}
	}
	if creator != "" {
		for _, name := range e.rules.Allowlist.VerifiedCreators[item.Domain] {
			if strings.EqualFold(name, creator) {
				return true
			}
		}
	}
	return false
}

func (e *Engine) reputationScore(item *content.Item, dr DomainRules, creator string, d *Decision) float64 {
	for _, blocked := range dr.Blocked {
		if strings.EqualFold(blocked.Source, creator) {
			d.Violations = append(d.Violations, Violation{
				Type:     ViolationBlockedSource,
				Severity: SeverityCritical,
				Message:  fmt.Sprintf("source %q is blocked for domain %s: %s", creator, item.Domain, blocked.Reason),
				Field:    "source",
				Value:    creator,
			})
			return 0
		}
	}
	if matchesTier(dr.Trusted, creator) {
		return dr.Trusted.Score
	}
	if matchesTier(dr.Verified, creator) {
		return dr.Verified.Score
	}
	if matchesTier(dr.Risky, creator) {
		return dr.Risky.Score
	}

	reputation := e.rules.Global.DefaultReputation
	if item.ReputationScore != nil {
		reputation = *item.ReputationScore
	}
	if dr.MinReputation > 0 && reputation < dr.MinReputation {
		d.Violations = append(d.Violations, Violation{
			Type:           ViolationLowReputation,
			Severity:       SeverityHigh,
			Message:        fmt.Sprintf("reputation %.0f is below the %s minimum %.0f", reputation, item.Domain, dr.MinReputation),
			Field:          "reputation_score",
			Value:          fmt.Sprintf("%.0f", reputation),
			Recommendation: "register the source or raise its reputation before ingesting",
		})
	}
	return reputation
}

func (e *Engine) scanBlocklists(item *content.Item, dr DomainRules, d *Decision) {
	text := item.SearchText()
	for _, kw := range e.rules.Global.SpamKeywords {
		if strings.Contains(text, strings.ToLower(kw)) {
			d.Violations = append(d.Violations, Violation{
				Type:     ViolationSpamKeyword,
				Severity: SeverityHigh,
				Message:  fmt.Sprintf("content matches spam keyword %q", kw),
				Value:    kw,
			})
		}
	}
	for _, kw := range e.rules.Global.SensitiveTopics {
		if strings.Contains(text, strings.ToLower(kw)) {
			d.Violations = append(d.Violations, Violation{
				Type:     ViolationSensitiveTopic,
				Severity: SeverityMedium,
				Message:  fmt.Sprintf("content matches sensitive topic %q", kw),
				Value:    kw,
			})
		}
	}
	for _, kw := range dr.BlocklistKeywords {
		if strings.Contains(text, strings.ToLower(kw)) {
			d.Violations = append(d.Violations, Violation{
				Type:     ViolationDomainBlocklist,
				Severity: SeverityHigh,
				Message:  fmt.Sprintf("content matches %s blocklist keyword %q", item.Domain, kw),
				Value:    kw,
			})
		}
	}
}

func (e *Engine) applyDomainFilters(item *content.Item, dr DomainRules, d *Decision) {
	md, err := item.DecodeMetadata()
	if err != nil {
		// Schema validation upstream catches malformed metadata; the engine
		// just scores what it can see.
		md = nil
	}

	switch item.Domain {
	case content.DomainNews:
		if !dr.Filters.RequireHealthCredibility || !hasAnyTopic(item, "health", "medical") {
			return
		}
		tier := ""
		if news, ok := md.(*content.NewsMetadata); ok {
			tier = news.CredibilityTier
		}
		if tier == "" || strings.EqualFold(tier, "unverified") {
			d.Violations = append(d.Violations, Violation{
				Type:           ViolationUnverifiedHealth,
				Severity:       SeverityHigh,
				Message:        "health/medical news requires a verified credibility tier",
				Field:          "metadata.credibility_tier",
				Value:          tier,
				Recommendation: "only ingest health coverage from credentialed publishers",
			})
		}
	case content.DomainRecipes:
		if !dr.Filters.RequireDietNutrition {
			return
		}
		recipe, ok := md.(*content.RecipeMetadata)
		dietTagged := hasAnyTopic(item, "diet") || (ok && len(recipe.DietTags) > 0)
		if dietTagged && (!ok || len(recipe.Nutrition) == 0) {
			d.Violations = append(d.Violations, Violation{
				Type:           ViolationMissingNutrition,
				Severity:       SeverityMedium,
				Message:        "diet-tagged recipe is missing nutrition data",
				Field:          "metadata.nutrition",
				Recommendation: "request nutrition facts from the provider",
			})
		}
	case content.DomainLearning:
		if dr.Filters.MinInstructorRating <= 0 {
			return
		}
		rating := 0.0
		if course, ok := md.(*content.LearningMetadata); ok {
			rating = course.InstructorRating
		}
		if rating > 0 && rating < dr.Filters.MinInstructorRating {
			d.Violations = append(d.Violations, Violation{
				Type:     ViolationLowInstructor,
				Severity: SeverityMedium,
				Message:  fmt.Sprintf("instructor rating %.1f is below the minimum %.1f", rating, dr.Filters.MinInstructorRating),
				Field:    "metadata.instructor_rating",
				Value:    fmt.Sprintf("%.1f", rating),
			})
		}
	case content.DomainEvents:
		if dr.Filters.LargeEventCapacity <= 0 {
			return
		}
		if ev, ok := md.(*content.EventsMetadata); ok {
			if ev.Capacity >= dr.Filters.LargeEventCapacity && !ev.OrganizerVerified {
				d.Violations = append(d.Violations, Violation{
					Type:     ViolationUnverifiedOrganizer,
					Severity: SeverityLow,
					Message:  fmt.Sprintf("event capacity %d without a verified organizer", ev.Capacity),
					Field:    "metadata.organizer_verified",
				})
			}
		}
	}
}

func (e *Engine) applyContextThreshold(reputation float64, cctx CheckContext, d *Decision) bool {
	cr, ok := e.rules.Contexts[cctx]
	if !ok || reputation >= cr.MinReputation {
		return false
	}
	severity := SeverityMedium
	if cctx == ContextIngest {
		severity = SeverityHigh
	}
	d.Violations = append(d.Violations, Violation{
		Type:     ViolationBelowThreshold,
		Severity: severity,
		Message:  fmt.Sprintf("reputation %.0f is below the %s threshold %.0f", reputation, cctx, cr.MinReputation),
		Field:    "reputation_score",
	})
	return true
}

// contentQualityScore is the completeness heuristic: base 50, +10 for each of
// a substantial description, three or more topics, rich metadata, not being
// sponsored, and carrying an image.
func contentQualityScore(item *content.Item) float64 {
	score := 50.0
	if len(item.Description) >= 50 {
		score += 10
	}
	if len(item.Topics) >= 3 {
		score += 10
	}
	if content.MetadataFieldCount(item.Metadata) > 3 {
		score += 10
	}
	if !item.Sponsored {
		score += 10
	}
	if md, err := item.DecodeMetadata(); err == nil && md != nil && content.MetadataImageURL(md) != "" {
		score += 10
	}
	if score > 100 {
		score = 100
	}
	return score
}

// determineAction applies the policy table in priority order; first match
// wins.
func determineAction(d *Decision, thresholdFailed bool) DecisionAction {
	highCount := d.severityCount(SeverityHigh)
	switch {
	case d.severityCount(SeverityCritical) > 0:
		return ActionReject
	case d.Tier == TierBlocked:
		return ActionReject
	case d.Tier == TierRisky && thresholdFailed:
		return ActionQuarantine
	case highCount >= 2:
		return ActionQuarantine
	case highCount == 1:
		return ActionFlag
	default:
		return ActionAllow
	}
}

// creatorName resolves the per-item source identity the trust lists key on:
// the publisher, artist, provider or organizer, falling back to the
// connector name.
func creatorName(item *content.Item) string {
	md, err := item.DecodeMetadata()
	if err == nil && md != nil {
		switch t := md.(type) {
		case *content.NewsMetadata:
			if t.Publisher != "" {
				return t.Publisher
			}
		case *content.MusicMetadata:
			if t.Artist != "" {
				return t.Artist
			}
		case *content.RecipeMetadata:
			if t.Publisher != "" {
				return t.Publisher
			}
		case *content.LearningMetadata:
			if t.Provider != "" {
				return t.Provider
			}
		case *content.EventsMetadata:
			if t.Organizer != "" {
				return t.Organizer
			}
		}
	}
	return item.Source
}

func matchesTier(tl TierList, creator string) bool {
	for _, s := range tl.Sources {
		if strings.EqualFold(s, creator) {
			return true
		}
	}
	return false
}

func hasAnyTopic(item *content.Item, topics ...string) bool {
	for _, t := range item.Topics {
		for _, want := range topics {
			if strings.EqualFold(strings.TrimSpace(t), want) {
				return true
			}
		}
	}
	return false
}

func distinctViolationTypes(violations []Violation) []string {
	seen := map[ViolationType]bool{}
	out := make([]string, 0, len(violations))
	for _, v := range violations {
		if !seen[v.Type] {
			seen[v.Type] = true
			out = append(out, string(v.Type))
		}
	}
	return out
}
