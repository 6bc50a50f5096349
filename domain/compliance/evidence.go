package compliance

import (
	"fmt"

	"adcompliance/domain/core"
)

// FieldStatus says why an evidence field holds what it holds. Consumers use it
// to tell "no images" from "OCR failed" without comparing sentinel strings.
type FieldStatus string

const (
	FieldPresent        FieldStatus = "present"
	FieldAbsent         FieldStatus = "absent"
	FieldNoText         FieldStatus = "no_text"
	FieldFailed         FieldStatus = "failed"
	FieldManualReview   FieldStatus = "manual_review"
	FieldNotApplicable  FieldStatus = "not_applicable"
	FieldNotImplemented FieldStatus = "not_implemented"
	FieldUnavailable    FieldStatus = "unavailable"
)

// Sentinel strings placed in the request when a field has no real content.
const (
	SentinelNoImages             = "no images available"
	SentinelNoTextDetected       = "no text detected"
	SentinelNoVideo              = "no video content"
	SentinelTranscriptionMissing = "transcription unavailable"
	SentinelNoTextContent        = "no text content"
	SentinelPageUnreachable      = "landing page content unavailable"
)

// ManualReviewPlaceholder is the structural visual description used while no
// vision backend exists. It must never read like a completed analysis.
func ManualReviewPlaceholder(imageCount int) string {
	return fmt.Sprintf("requires manual review: %d image(s) attached, automated visual analysis not performed", imageCount)
}

// Field is one piece of evidence together with its status.
type Field struct {
	Status FieldStatus `json:"status"`
	Value  string      `json:"value"`
}

// Present builds a field carrying real content.
func Present(value string) Field { return Field{Status: FieldPresent, Value: value} }

// Marked builds a non-content field whose value is the given sentinel.
func Marked(status FieldStatus, sentinel string) Field {
	return Field{Status: status, Value: sentinel}
}

// Text returns the string that goes into the judgment request.
func (f Field) Text() string { return f.Value }

// IsPresent reports whether the field holds real content.
func (f Field) IsPresent() bool { return f.Status == FieldPresent }

// ImageText records the OCR outcome for a single image, in capture order.
type ImageText struct {
	Index int    `json:"index"`
	Ref   string `json:"ref"`
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// EvidenceBundle is the normalized creative evidence for one ad.
type EvidenceBundle struct {
	AdID core.AdID

	Headline     *string
	PrimaryText  *string
	Description  *string
	CallToAction *string

	TextContent       Field
	OCRText           Field
	ImageTexts        []ImageText
	VisualDescription Field
	AudioTranscript   Field

	ImageCount int
	VideoCount int

	// GatherError marks a failure of the aggregator itself; fields still carry
	// their own sentinels.
	GatherError string
}

// ManualReviewReasons lists the sub-analyses that were not performed automatically.
func (b *EvidenceBundle) ManualReviewReasons() []string {
	var reasons []string
	switch {
	case b.VisualDescription.Status == FieldManualReview:
		reasons = append(reasons, "visual analysis requires manual review")
	case b.ImageCount > 0 && b.VisualDescription.Status == FieldFailed:
		reasons = append(reasons, "visual analysis failed")
	}
	if b.VideoCount > 0 {
		switch b.AudioTranscript.Status {
		case FieldUnavailable, FieldNotImplemented, FieldFailed:
			reasons = append(reasons, "audio transcription unavailable")
		}
	}
	if b.GatherError != "" {
		reasons = append(reasons, "creative evidence gathering failed: "+b.GatherError)
	}
	return reasons
}

// LandingPageEvidence is the normalized landing page evidence for one ad.
type LandingPageEvidence struct {
	AdID core.AdID
	URL  string

	// Content is nil when the page was unreachable.
	Content        *string
	Truncated      bool
	OriginalLength int
	// ContentDigest hashes the untruncated content with whitespace collapsed,
	// so changes past the truncation point still change the fingerprint.
	ContentDigest core.Hash

	// Screenshot is nil when no captured screenshot exists.
	Screenshot *string

	// AdTextContent is the creative copy the page is judged against for relevance.
	AdTextContent string

	GatherError string
}

// ManualReviewReasons reports a failed gather; the page was then judged on
// incomplete evidence.
func (l *LandingPageEvidence) ManualReviewReasons() []string {
	if l == nil || l.GatherError == "" {
		return nil
	}
	return []string{"landing page evidence gathering failed: " + l.GatherError}
}

// HasURL reports whether there is a landing page to evaluate at all.
func (l *LandingPageEvidence) HasURL() bool { return l != nil && l.URL != "" }
