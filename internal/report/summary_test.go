package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adcompliance/domain/compliance"
)

func analysis(compliant bool, score float64, landing bool, violations ...compliance.Violation) *compliance.AdComplianceAnalysis {
	return &compliance.AdComplianceAnalysis{
		OverallCompliant:     compliant,
		OverallScore:         score,
		LandingPageEvaluated: landing,
		CreativeVerdict:      compliance.Verdict{Compliant: compliant, Violations: violations},
	}
}

func TestSummarize(t *testing.T) {
	medical := compliance.Violation{RuleType: compliance.RuleMedicalClaims, Severity: compliance.SeverityHigh}
	clickbait := compliance.Violation{RuleType: compliance.RuleClickbait, Severity: compliance.SeverityLow}

	in := []*compliance.AdComplianceAnalysis{
		analysis(true, 0.9, true),
		analysis(false, 0.2, false, medical, clickbait),
		analysis(false, 0.4, true, medical),
		analysis(true, 0.7, true),
	}
	in[1].ManualReviewRequired = true
	in[2].LandingPageVerdict = compliance.Verdict{ParseFailed: true}

	s, err := Summarize(time.Time{}, in)
	require.NoError(t, err)

	assert.Equal(t, 4, s.Count)
	assert.Equal(t, 2, s.Compliant)
	assert.InDelta(t, 0.5, s.ComplianceRate, 1e-9)
	assert.Equal(t, 1, s.ManualReview)
	assert.Equal(t, 1, s.NoLandingPage)
	assert.Equal(t, 1, s.ParseFailures)

	assert.InDelta(t, 0.55, s.Scores.Mean, 1e-9)
	assert.InDelta(t, 0.55, s.Scores.Median, 1e-9)
	assert.InDelta(t, 0.2, s.Scores.Min, 1e-9)
	assert.InDelta(t, 0.9, s.Scores.Max, 1e-9)

	assert.Equal(t, map[string]int{"HIGH": 2, "LOW": 1}, s.BySeverity)
	require.Len(t, s.TopRules, 2)
	assert.Equal(t, RuleCount{RuleType: compliance.RuleMedicalClaims, Count: 2}, s.TopRules[0])
}

func TestSummarize_Empty(t *testing.T) {
	s, err := Summarize(time.Time{}, nil)
	require.NoError(t, err)
	assert.Zero(t, s.Count)
	assert.Zero(t, s.ComplianceRate)
	assert.Empty(t, s.TopRules)
}
