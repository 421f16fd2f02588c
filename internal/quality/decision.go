package quality

// Severity orders violations for action determination.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

type ViolationType string

const (
	ViolationBlockedSource       ViolationType = "blocked_source"
	ViolationLowReputation       ViolationType = "low_reputation"
	ViolationSpamKeyword         ViolationType = "spam_keyword"
	ViolationSensitiveTopic      ViolationType = "sensitive_topic"
	ViolationDomainBlocklist     ViolationType = "domain_blocklist"
	ViolationUnverifiedHealth    ViolationType = "unverified_health_claim"
	ViolationMissingNutrition    ViolationType = "missing_nutrition"
	ViolationLowInstructor       ViolationType = "low_instructor_rating"
	ViolationUnverifiedOrganizer ViolationType = "unverified_organizer"
	ViolationBelowThreshold      ViolationType = "below_threshold"
)

type Violation struct {
	Type           ViolationType `json:"type"`
	Severity       Severity      `json:"severity"`
	Message        string        `json:"message"`
	Field          string        `json:"field,omitempty"`
	Value          string        `json:"value,omitempty"`
	Recommendation string        `json:"recommendation,omitempty"`
}

// Action is the engine's final disposition, in escalating order of concern.
type DecisionAction string

const (
	ActionAllow      DecisionAction = "allow"
	ActionFlag       DecisionAction = "flag"
	ActionQuarantine DecisionAction = "quarantine"
	ActionReject     DecisionAction = "reject"
)

// Tier is the discrete trust band derived from the reputation score.
type Tier string

const (
	TierTrusted    Tier = "trusted"
	TierVerified   Tier = "verified"
	TierUnverified Tier = "unverified"
	TierRisky      Tier = "risky"
	TierBlocked    Tier = "blocked"
)

// TierForScore maps a 0-100 score onto contiguous, non-overlapping bands.
func TierForScore(score float64) Tier {
	switch {
	case score >= 90:
		return TierTrusted
	case score >= 70:
		return TierVerified
	case score >= 50:
		return TierUnverified
	case score >= 30:
		return TierRisky
	default:
		return TierBlocked
	}
}

// Decision is computed fresh on every check; the engine persists nothing.
type Decision struct {
	Passed     bool           `json:"passed"`
	Score      float64        `json:"score"`
	Tier       Tier           `json:"tier"`
	Violations []Violation    `json:"violations"`
	Action     DecisionAction `json:"action"`
	Metadata   map[string]any `json:"metadata"`
}

func (d *Decision) severityCount(s Severity) int {
	n := 0
	for _, v := range d.Violations {
		if v.Severity == s {
			n++
		}
	}
	return n
}
