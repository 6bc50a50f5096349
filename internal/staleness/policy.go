// Package staleness decides when a stored analysis must be recomputed.
package staleness

import (
	"strconv"
	"strings"
	"time"

	"adcompliance/domain/compliance"
	"adcompliance/domain/core"
)

// DefaultMaxAge is how long an unchanged analysis stays fresh.
const DefaultMaxAge = 30 * 24 * time.Hour

const fieldSeparator = "\x1f"

// Fingerprint hashes every evidence field that feeds a judgment request, in a
// fixed order and with whitespace runs collapsed. Landing content enters via
// its digest of the untruncated page.
func Fingerprint(creative *compliance.EvidenceBundle, landing *compliance.LandingPageEvidence, checklistVersion string) core.Fingerprint {
	parts := []string{
		"checklist", checklistVersion,
		"text", normalize(creative.TextContent.Text()),
		"ocr", normalize(creative.OCRText.Text()),
		"visual", normalize(creative.VisualDescription.Text()),
		"audio", normalize(creative.AudioTranscript.Text()),
		"images", strconv.Itoa(creative.ImageCount),
		"videos", strconv.Itoa(creative.VideoCount),
	}
	if landing != nil && landing.HasURL() {
		content := "<unreachable>"
		if landing.Content != nil {
			content = landing.ContentDigest.String()
		}
		screenshot := ""
		if landing.Screenshot != nil {
			screenshot = *landing.Screenshot
		}
		parts = append(parts,
			"url", normalize(landing.URL),
			"page", content,
			"screenshot", screenshot,
		)
	} else {
		parts = append(parts, "url", "")
	}
	return core.NewFingerprint([]byte(strings.Join(parts, fieldSeparator)))
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Policy carries the freshness window and clock.
type Policy struct {
	MaxAge time.Duration
	Now    func() time.Time
}

// NewPolicy returns a policy with the given window; zero selects DefaultMaxAge.
func NewPolicy(maxAge time.Duration) Policy {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return Policy{MaxAge: maxAge, Now: time.Now}
}

// NeedsReanalysis reports whether the last analysis should be replaced given
// the fingerprint of the current evidence.
func (p Policy) NeedsReanalysis(current core.Fingerprint, last *compliance.AdComplianceAnalysis) bool {
	if last == nil {
		return true
	}
	if last.ContentFingerprint != current {
		return true
	}
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	maxAge := p.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return now().Sub(last.ComputedAt) > maxAge
}

// Reason explains NeedsReanalysis for logs and run results.
func (p Policy) Reason(current core.Fingerprint, last *compliance.AdComplianceAnalysis) string {
	switch {
	case last == nil:
		return "no prior analysis"
	case last.ContentFingerprint != current:
		return "content changed"
	case p.NeedsReanalysis(current, last):
		return "analysis expired"
	}
	return "fresh"
}
