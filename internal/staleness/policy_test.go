package staleness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"adcompliance/domain/compliance"
	"adcompliance/domain/core"
	"adcompliance/internal/evidence"
)

func bundle(text string) *compliance.EvidenceBundle {
	return &compliance.EvidenceBundle{
		AdID:              "ad-1",
		TextContent:       compliance.Present(text),
		OCRText:           compliance.Marked(compliance.FieldAbsent, compliance.SentinelNoImages),
		VisualDescription: compliance.Marked(compliance.FieldAbsent, compliance.SentinelNoImages),
		AudioTranscript:   compliance.Marked(compliance.FieldNotApplicable, compliance.SentinelNoVideo),
	}
}

func landing(page string) *compliance.LandingPageEvidence {
	return &compliance.LandingPageEvidence{
		AdID:          "ad-1",
		URL:           "https://example.com",
		Content:       &page,
		ContentDigest: evidence.DigestContent(page),
	}
}

func TestFingerprint(t *testing.T) {
	base := Fingerprint(bundle("Headline: Sale"), landing("page"), "v1")

	assert.Equal(t, base, Fingerprint(bundle("Headline: Sale"), landing("page"), "v1"))
	assert.Equal(t, base, Fingerprint(bundle("Headline:   Sale \n"), landing("page"), "v1"), "whitespace is normalized")

	assert.Equal(t, Fingerprint(bundle("Headline: Sale"), landing("Buy now"), "v1"),
		Fingerprint(bundle("Headline: Sale"), landing("Buy   now\n"), "v1"), "landing whitespace is normalized")

	assert.NotEqual(t, base, Fingerprint(bundle("Headline: Sale!"), landing("page"), "v1"))
	assert.NotEqual(t, base, Fingerprint(bundle("Headline: Sale"), landing("other page"), "v1"))
	assert.NotEqual(t, base, Fingerprint(bundle("Headline: Sale"), landing("page"), "v2"))
	assert.NotEqual(t, base, Fingerprint(bundle("Headline: Sale"), nil, "v1"))

	ocr := bundle("Headline: Sale")
	ocr.OCRText = compliance.Present("50% OFF")
	assert.NotEqual(t, base, Fingerprint(ocr, landing("page"), "v1"))

	unreachable := landing("page")
	unreachable.Content = nil
	assert.NotEqual(t, base, Fingerprint(bundle("Headline: Sale"), unreachable, "v1"))
}

func TestNeedsReanalysis(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	policy := Policy{MaxAge: DefaultMaxAge, Now: func() time.Time { return now }}
	fp := core.Fingerprint("abc")

	tests := []struct {
		name     string
		last     *compliance.AdComplianceAnalysis
		expected bool
		reason   string
	}{
		{
			name:     "no prior analysis",
			last:     nil,
			expected: true,
			reason:   "no prior analysis",
		},
		{
			name:     "fingerprint changed but recent",
			last:     &compliance.AdComplianceAnalysis{ContentFingerprint: "old", ComputedAt: now.Add(-time.Minute)},
			expected: true,
			reason:   "content changed",
		},
		{
			name:     "unchanged but expired",
			last:     &compliance.AdComplianceAnalysis{ContentFingerprint: fp, ComputedAt: now.Add(-31 * 24 * time.Hour)},
			expected: true,
			reason:   "analysis expired",
		},
		{
			name:     "unchanged and exactly at max age",
			last:     &compliance.AdComplianceAnalysis{ContentFingerprint: fp, ComputedAt: now.Add(-DefaultMaxAge)},
			expected: false,
			reason:   "fresh",
		},
		{
			name:     "unchanged and recent",
			last:     &compliance.AdComplianceAnalysis{ContentFingerprint: fp, ComputedAt: now.Add(-24 * time.Hour)},
			expected: false,
			reason:   "fresh",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, policy.NeedsReanalysis(fp, tt.last))
			assert.Equal(t, tt.reason, policy.Reason(fp, tt.last))
		})
	}
}

func TestNewPolicyDefaults(t *testing.T) {
	assert.Equal(t, DefaultMaxAge, NewPolicy(0).MaxAge)
	assert.Equal(t, time.Hour, NewPolicy(time.Hour).MaxAge)
	assert.NotNil(t, NewPolicy(0).Now)
}
