package compliance

import (
	"time"

	"adcompliance/domain/core"
)

// Weights used to combine branch confidences into the overall score.
const (
	CreativeWeight    = 0.6
	LandingPageWeight = 0.4
)

// AdComplianceAnalysis is the persisted aggregate owned by an ad within a domain.
// Re-analysis replaces it in place; it is never partially updated.
type AdComplianceAnalysis struct {
	ID       core.AnalysisID `json:"id"`
	AdID     core.AdID       `json:"ad_id"`
	DomainID core.DomainID   `json:"domain_id"`

	CreativeVerdict      Verdict `json:"creative_verdict"`
	LandingPageVerdict   Verdict `json:"landing_page_verdict"`
	LandingPageEvaluated bool    `json:"landing_page_evaluated"`

	OverallCompliant bool    `json:"overall_compliant"`
	OverallScore     float64 `json:"overall_score"`

	ManualReviewRequired bool     `json:"manual_review_required"`
	ManualReviewReasons  []string `json:"manual_review_reasons"`

	ContentFingerprint core.Fingerprint `json:"content_fingerprint"`
	RunID              core.RunID       `json:"run_id"`
	ComputedAt         time.Time        `json:"computed_at"`
}

// Key returns the owning ad-within-domain identity.
func (a *AdComplianceAnalysis) Key() AnalysisKey {
	return AnalysisKey{AdID: a.AdID, DomainID: a.DomainID}
}

// OverallScore combines the branch confidences. When the landing page was
// not evaluated the creative score stands alone.
func OverallScore(creative Verdict, landing *Verdict) float64 {
	if landing == nil {
		return creative.ConfidenceScore
	}
	return CreativeWeight*creative.ConfidenceScore + LandingPageWeight*landing.ConfidenceScore
}

// RunState is a state in the per-ad orchestration state machine.
type RunState string

const (
	StatePending          RunState = "PENDING"
	StateEvidenceGathered RunState = "EVIDENCE_GATHERED"
	StateJudged           RunState = "JUDGED"
	StateStored           RunState = "STORED"
	StateFailed           RunState = "FAILED"
)

// IsTerminal reports whether no further transitions can happen.
func (s RunState) IsTerminal() bool {
	return s == StateStored || s == StateFailed
}

// RunResult is what a caller gets back from one orchestration run.
type RunResult struct {
	RunID    core.RunID
	Key      AnalysisKey
	State    RunState
	History  []RunState
	Analysis *AdComplianceAnalysis

	// Skipped is set when the staleness policy decided no re-analysis was needed;
	// State is then STORED and Analysis holds the prior record.
	Skipped bool

	// ErrorCode and Error form the explicit error marker of a FAILED run.
	ErrorCode string
	Error     string

	StartedAt  time.Time
	FinishedAt time.Time
}

// Failed reports whether the run ended in FAILED.
func (r *RunResult) Failed() bool { return r.State == StateFailed }
