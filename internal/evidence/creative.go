package evidence

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"adcompliance/domain/compliance"
	"adcompliance/internal"
	"adcompliance/ports"
)

// CreativeAggregator assembles the creative evidence bundle for one ad.
// It never fails: collaborator errors degrade single fields to sentinels.
type CreativeAggregator struct {
	ocr         ports.OCRService
	transcriber ports.Transcriber
}

// NewCreativeAggregator wires the OCR and transcription collaborators. Either
// may be nil, in which case the corresponding fields are marked unavailable.
func NewCreativeAggregator(ocr ports.OCRService, transcriber ports.Transcriber) *CreativeAggregator {
	return &CreativeAggregator{ocr: ocr, transcriber: transcriber}
}

type labeledField struct {
	label string
	value *string
}

// contribution is text produced for the media item at a 1-based position.
type contribution struct {
	index int
	text  string
}

// joinNumbered returns a lone contribution as-is and prefixes each one with
// "<label> N:" when several contributed.
func joinNumbered(label string, items []contribution) string {
	if len(items) == 1 {
		return items[0].text
	}
	parts := make([]string, 0, len(items))
	for _, c := range items {
		parts = append(parts, fmt.Sprintf("%s %d: %s", label, c.index, c.text))
	}
	return strings.Join(parts, "\n")
}

// Gather builds the bundle. The logger is the caller's run-scoped logger.
func (a *CreativeAggregator) Gather(ctx context.Context, ad *compliance.ScrapedAd, logger *internal.Logger) compliance.EvidenceBundle {
	bundle := compliance.EvidenceBundle{
		AdID:         ad.ID,
		Headline:     ad.Headline,
		PrimaryText:  ad.PrimaryText,
		Description:  ad.Description,
		CallToAction: ad.CallToAction,
		ImageCount:   len(ad.ImageRefs),
		VideoCount:   len(ad.VideoRefs),
	}

	bundle.TextContent = BuildTextContent(ad)
	bundle.OCRText, bundle.ImageTexts = a.extractImageText(ctx, ad.ImageRefs, logger)
	bundle.VisualDescription = describeVisuals(len(ad.ImageRefs))
	bundle.AudioTranscript = a.transcribe(ctx, ad.VideoRefs, logger)

	logger.Debug("[CreativeAggregator] text=%s ocr=%s visual=%s audio=%s",
		bundle.TextContent.Status, bundle.OCRText.Status, bundle.VisualDescription.Status, bundle.AudioTranscript.Status)
	return bundle
}

// BuildTextContent renders the declared copy as "<Label>: <value>" lines in
// fixed order, omitting absent fields.
func BuildTextContent(ad *compliance.ScrapedAd) compliance.Field {
	fields := []labeledField{
		{"Headline", ad.Headline},
		{"Primary Text", ad.PrimaryText},
		{"Description", ad.Description},
		{"Call to Action", ad.CallToAction},
	}

	var lines []string
	for _, f := range fields {
		if f.value == nil {
			continue
		}
		v := strings.TrimSpace(*f.value)
		if v == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", f.label, v))
	}

	if len(lines) == 0 {
		return compliance.Marked(compliance.FieldAbsent, compliance.SentinelNoTextContent)
	}
	return compliance.Present(strings.TrimRight(strings.Join(lines, "\n"), " \t\r\n"))
}

func (a *CreativeAggregator) extractImageText(ctx context.Context, refs []string, logger *internal.Logger) (compliance.Field, []compliance.ImageText) {
	if len(refs) == 0 {
		return compliance.Marked(compliance.FieldAbsent, compliance.SentinelNoImages), nil
	}

	results := make([]compliance.ImageText, 0, len(refs))
	var contributed []contribution
	failures := 0

	for i, ref := range refs {
		item := compliance.ImageText{Index: i + 1, Ref: ref}
		if a.ocr == nil {
			item.Error = "ocr service not configured"
			failures++
			results = append(results, item)
			continue
		}

		text, err := a.ocr.ExtractText(ctx, ref)
		if err != nil {
			// One unreadable image never aborts the bundle.
			logger.Warn("[CreativeAggregator] ocr failed for image %d (%s): %v", i+1, ref, err)
			item.Error = err.Error()
			failures++
			results = append(results, item)
			continue
		}

		item.Text = strings.TrimSpace(text)
		results = append(results, item)
		if item.Text != "" {
			contributed = append(contributed, contribution{index: i + 1, text: item.Text})
		}
	}

	if len(contributed) == 0 {
		status := compliance.FieldNoText
		if failures == len(refs) {
			status = compliance.FieldFailed
		}
		return compliance.Marked(status, compliance.SentinelNoTextDetected), results
	}
	return compliance.Present(joinNumbered("Image", contributed)), results
}

func describeVisuals(imageCount int) compliance.Field {
	if imageCount == 0 {
		return compliance.Marked(compliance.FieldAbsent, compliance.SentinelNoImages)
	}
	// No vision backend yet: the placeholder is flagged for manual review.
	return compliance.Marked(compliance.FieldManualReview, compliance.ManualReviewPlaceholder(imageCount))
}

func (a *CreativeAggregator) transcribe(ctx context.Context, refs []string, logger *internal.Logger) compliance.Field {
	if len(refs) == 0 {
		return compliance.Marked(compliance.FieldNotApplicable, compliance.SentinelNoVideo)
	}
	if a.transcriber == nil {
		return compliance.Marked(compliance.FieldNotImplemented, compliance.SentinelTranscriptionMissing)
	}

	var parts []contribution
	notImplemented := 0
	for i, ref := range refs {
		text, err := a.transcriber.Transcribe(ctx, ref)
		if err != nil {
			if stderrors.Is(err, ports.ErrNotImplemented) {
				notImplemented++
				continue
			}
			logger.Warn("[CreativeAggregator] transcription failed for video %d (%s): %v", i+1, ref, err)
			continue
		}
		if t := strings.TrimSpace(text); t != "" {
			parts = append(parts, contribution{index: i + 1, text: t})
		}
	}

	switch {
	case len(parts) == 0 && notImplemented == len(refs):
		return compliance.Marked(compliance.FieldNotImplemented, compliance.SentinelTranscriptionMissing)
	case len(parts) == 0:
		return compliance.Marked(compliance.FieldUnavailable, compliance.SentinelTranscriptionMissing)
	}
	return compliance.Present(joinNumbered("Video", parts))
}
