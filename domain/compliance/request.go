package compliance

import "adcompliance/domain/core"

// TaskKind names the kind of judgment being requested.
type TaskKind string

const (
	TaskCreative    TaskKind = "creative"
	TaskLandingPage TaskKind = "landing_page"
)

// Checklist maps rule names to whether they are enabled.
type Checklist map[RuleType]bool

// Enabled returns the enabled rules for the checklist in a fixed order.
func (c Checklist) Enabled(order []RuleType) []RuleType {
	out := make([]RuleType, 0, len(order))
	for _, r := range order {
		if c[r] {
			out = append(out, r)
		}
	}
	return out
}

// JudgmentRequest is the self-describing document sent to the reasoning service.
type JudgmentRequest struct {
	Task                   TaskKind          `json:"task"`
	AdID                   core.AdID         `json:"ad_id"`
	Content                map[string]any    `json:"content"`
	Rules                  map[string]bool   `json:"rules"`
	ExpectedResponseFormat map[string]string `json:"expected_response_format"`
}

// JudgmentDocument is a built request together with its canonical encoding.
type JudgmentDocument struct {
	Request JudgmentRequest
	Body    string
}
