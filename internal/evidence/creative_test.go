package evidence

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adcompliance/domain/compliance"
	"adcompliance/internal"
	"adcompliance/ports"
)

type fakeOCR struct {
	texts map[string]string
	errs  map[string]error
	calls []string
}

func (f *fakeOCR) ExtractText(_ context.Context, ref string) (string, error) {
	f.calls = append(f.calls, ref)
	if err, ok := f.errs[ref]; ok {
		return "", err
	}
	return f.texts[ref], nil
}

type fakeTranscriber struct {
	texts map[string]string
	err   error
}

func (f *fakeTranscriber) Transcribe(_ context.Context, ref string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.texts[ref], nil
}

func TestBuildTextContent(t *testing.T) {
	tests := []struct {
		name     string
		ad       compliance.ScrapedAd
		expected compliance.Field
	}{
		{
			name: "all fields in fixed order",
			ad: compliance.ScrapedAd{
				Headline:     compliance.StringPtr("Big Sale"),
				PrimaryText:  compliance.StringPtr("Everything must go"),
				Description:  compliance.StringPtr("Today only"),
				CallToAction: compliance.StringPtr("Shop Now"),
			},
			expected: compliance.Present("Headline: Big Sale\nPrimary Text: Everything must go\nDescription: Today only\nCall to Action: Shop Now"),
		},
		{
			name: "missing and blank fields omitted",
			ad: compliance.ScrapedAd{
				Headline:     compliance.StringPtr("Big Sale"),
				Description:  compliance.StringPtr("   "),
				CallToAction: compliance.StringPtr(" Shop Now "),
			},
			expected: compliance.Present("Headline: Big Sale\nCall to Action: Shop Now"),
		},
		{
			name:     "no copy at all",
			ad:       compliance.ScrapedAd{},
			expected: compliance.Marked(compliance.FieldAbsent, compliance.SentinelNoTextContent),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, BuildTextContent(&tt.ad))
		})
	}
}

func TestCreativeAggregator_NoImagesVersusFailedOCR(t *testing.T) {
	ocr := &fakeOCR{errs: map[string]error{"broken.png": errors.New("decode failed")}}
	agg := NewCreativeAggregator(ocr, nil)

	none := agg.Gather(context.Background(), &compliance.ScrapedAd{ID: "ad-1"}, internal.Discard)
	assert.Equal(t, compliance.SentinelNoImages, none.OCRText.Text())
	assert.Equal(t, compliance.FieldAbsent, none.OCRText.Status)
	assert.Equal(t, compliance.SentinelNoImages, none.VisualDescription.Text())

	failed := agg.Gather(context.Background(), &compliance.ScrapedAd{ID: "ad-2", ImageRefs: []string{"broken.png"}}, internal.Discard)
	assert.Equal(t, compliance.SentinelNoTextDetected, failed.OCRText.Text())
	assert.Equal(t, compliance.FieldFailed, failed.OCRText.Status)
	require.Len(t, failed.ImageTexts, 1)
	assert.Equal(t, "decode failed", failed.ImageTexts[0].Error)

	assert.NotEqual(t, none.OCRText, failed.OCRText)
}

func TestCreativeAggregator_OCRFormatting(t *testing.T) {
	tests := []struct {
		name     string
		refs     []string
		texts    map[string]string
		errs     map[string]error
		expected compliance.Field
	}{
		{
			name:     "single contributor is bare",
			refs:     []string{"a.png"},
			texts:    map[string]string{"a.png": "  50% OFF  "},
			expected: compliance.Present("50% OFF"),
		},
		{
			name:     "multiple contributors numbered by capture position",
			refs:     []string{"a.png", "b.png", "c.png"},
			texts:    map[string]string{"a.png": "first", "c.png": "third"},
			expected: compliance.Present("Image 1: first\nImage 3: third"),
		},
		{
			name:     "one failure does not abort the rest",
			refs:     []string{"a.png", "b.png", "c.png"},
			texts:    map[string]string{"b.png": "second", "c.png": "third"},
			errs:     map[string]error{"a.png": errors.New("boom")},
			expected: compliance.Present("Image 2: second\nImage 3: third"),
		},
		{
			name:     "images with no text",
			refs:     []string{"a.png", "b.png"},
			expected: compliance.Marked(compliance.FieldNoText, compliance.SentinelNoTextDetected),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ocr := &fakeOCR{texts: tt.texts, errs: tt.errs}
			agg := NewCreativeAggregator(ocr, nil)

			bundle := agg.Gather(context.Background(), &compliance.ScrapedAd{ID: "ad", ImageRefs: tt.refs}, internal.Discard)
			assert.Equal(t, tt.expected, bundle.OCRText)
			assert.Equal(t, tt.refs, ocr.calls)
			assert.Len(t, bundle.ImageTexts, len(tt.refs))
		})
	}
}

func TestCreativeAggregator_VisualPlaceholder(t *testing.T) {
	agg := NewCreativeAggregator(&fakeOCR{}, nil)
	bundle := agg.Gather(context.Background(), &compliance.ScrapedAd{ID: "ad", ImageRefs: []string{"a.png", "b.png"}}, internal.Discard)

	assert.Equal(t, compliance.FieldManualReview, bundle.VisualDescription.Status)
	assert.Contains(t, bundle.VisualDescription.Text(), "requires manual review")
	assert.Contains(t, bundle.VisualDescription.Text(), "2 image(s)")
	assert.Equal(t, 2, bundle.ImageCount)
	assert.Contains(t, bundle.ManualReviewReasons(), "visual analysis requires manual review")
}

func TestCreativeAggregator_Transcription(t *testing.T) {
	tests := []struct {
		name        string
		videos      []string
		transcriber ports.Transcriber
		expected    compliance.Field
	}{
		{
			name:        "no video",
			transcriber: &fakeTranscriber{},
			expected:    compliance.Marked(compliance.FieldNotApplicable, compliance.SentinelNoVideo),
		},
		{
			name:        "no transcriber configured",
			videos:      []string{"v.mp4"},
			transcriber: nil,
			expected:    compliance.Marked(compliance.FieldNotImplemented, compliance.SentinelTranscriptionMissing),
		},
		{
			name:        "transcriber not implemented",
			videos:      []string{"v.mp4"},
			transcriber: &fakeTranscriber{err: ports.ErrNotImplemented},
			expected:    compliance.Marked(compliance.FieldNotImplemented, compliance.SentinelTranscriptionMissing),
		},
		{
			name:        "transcriber failure",
			videos:      []string{"v.mp4"},
			transcriber: &fakeTranscriber{err: errors.New("timeout")},
			expected:    compliance.Marked(compliance.FieldUnavailable, compliance.SentinelTranscriptionMissing),
		},
		{
			name:        "single transcript",
			videos:      []string{"v.mp4"},
			transcriber: &fakeTranscriber{texts: map[string]string{"v.mp4": "buy now"}},
			expected:    compliance.Present("buy now"),
		},
		{
			name:        "multiple transcripts",
			videos:      []string{"a.mp4", "b.mp4"},
			transcriber: &fakeTranscriber{texts: map[string]string{"a.mp4": "one", "b.mp4": "two"}},
			expected:    compliance.Present("Video 1: one\nVideo 2: two"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := NewCreativeAggregator(nil, tt.transcriber)
			bundle := agg.Gather(context.Background(), &compliance.ScrapedAd{ID: "ad", VideoRefs: tt.videos}, internal.Discard)
			assert.Equal(t, tt.expected, bundle.AudioTranscript)
		})
	}
}

func TestCreativeAggregator_NilOCRMarksFailure(t *testing.T) {
	agg := NewCreativeAggregator(nil, nil)
	bundle := agg.Gather(context.Background(), &compliance.ScrapedAd{ID: "ad", ImageRefs: []string{"a.png"}}, internal.Discard)

	assert.Equal(t, compliance.Marked(compliance.FieldFailed, compliance.SentinelNoTextDetected), bundle.OCRText)
}
