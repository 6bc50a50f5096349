package compliance

import "strings"

// Severity is ordered LOW < MEDIUM < HIGH < CRITICAL.
type Severity int

const (
	SeverityLow Severity = iota + 1
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

var severityNames = map[Severity]string{
	SeverityLow:      "LOW",
	SeverityMedium:   "MEDIUM",
	SeverityHigh:     "HIGH",
	SeverityCritical: "CRITICAL",
}

func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// MarshalText stores severities by name so persisted verdicts stay readable.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText is the inverse of MarshalText; unknown names become MEDIUM.
func (s *Severity) UnmarshalText(b []byte) error {
	parsed, _ := ParseSeverity(string(b))
	*s = parsed
	return nil
}

// ParseSeverity matches case-insensitively. Unrecognized input yields MEDIUM
// and ok=false so callers can preserve the original string.
func ParseSeverity(raw string) (Severity, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "LOW":
		return SeverityLow, true
	case "MEDIUM":
		return SeverityMedium, true
	case "HIGH":
		return SeverityHigh, true
	case "CRITICAL":
		return SeverityCritical, true
	}
	return SeverityMedium, false
}

// RuleType is the enumerated category a violation belongs to.
type RuleType string

const (
	RuleMisleadingClaims    RuleType = "misleading_claims"
	RuleFalsePromises       RuleType = "false_promises"
	RuleClickbait           RuleType = "clickbait"
	RuleMedicalClaims       RuleType = "medical_claims"
	RuleFinancialGuarantees RuleType = "financial_guarantees"
	RuleBeforeAfterClaims   RuleType = "before_after_claims"

	RuleRelevanceToAd     RuleType = "relevance_to_ad"
	RuleMisleadingContent RuleType = "misleading_content"
	RulePageAccessibility RuleType = "page_accessibility"
	RuleUserExperience    RuleType = "user_experience"
	RuleContentQuality    RuleType = "content_quality"

	RuleOther RuleType = "other"
)

// CreativeRules and LandingPageRules are the checklists in request order.
var (
	CreativeRules = []RuleType{
		RuleMisleadingClaims,
		RuleFalsePromises,
		RuleClickbait,
		RuleMedicalClaims,
		RuleFinancialGuarantees,
		RuleBeforeAfterClaims,
	}
	LandingPageRules = []RuleType{
		RuleRelevanceToAd,
		RuleMisleadingContent,
		RulePageAccessibility,
		RuleUserExperience,
		RuleContentQuality,
	}
)

// ParseRuleType matches against the known rule names case-insensitively.
func ParseRuleType(raw string) (RuleType, bool) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.ReplaceAll(normalized, " ", "_")
	normalized = strings.ReplaceAll(normalized, "-", "_")
	for _, set := range [][]RuleType{CreativeRules, LandingPageRules} {
		for _, r := range set {
			if string(r) == normalized {
				return r, true
			}
		}
	}
	return RuleOther, false
}

// Violation is one rule breach reported by the judge.
type Violation struct {
	RuleType     RuleType `json:"rule_type"`
	Severity     Severity `json:"severity"`
	Description  string   `json:"description"`
	ViolatedText string   `json:"violated_text"`
}

// Verdict is the typed result of one compliance judgment. Compliant does not
// imply an empty Violations list.
type Verdict struct {
	Compliant       bool        `json:"compliant"`
	ConfidenceScore float64     `json:"confidence_score"`
	Reasoning       string      `json:"reasoning"`
	Violations      []Violation `json:"violations"`
	RawResponse     string      `json:"raw_response"`

	// ParseFailed marks the conservative fallback produced for unparseable output.
	ParseFailed bool `json:"parse_failed,omitempty"`
}

// HighestSeverity returns the most severe violation level, or 0 when none.
func (v *Verdict) HighestSeverity() Severity {
	var highest Severity
	for _, vi := range v.Violations {
		if vi.Severity > highest {
			highest = vi.Severity
		}
	}
	return highest
}

// NoLandingPageReasoning is used when an ad has no landing page URL.
const NoLandingPageReasoning = "no landing page to evaluate"

// NoLandingPageVerdict is the placeholder used when landing page analysis is skipped.
func NoLandingPageVerdict() Verdict {
	return Verdict{
		Compliant:       true,
		ConfidenceScore: 0,
		Reasoning:       NoLandingPageReasoning,
		Violations:      []Violation{},
	}
}
