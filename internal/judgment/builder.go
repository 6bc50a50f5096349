// Package judgment turns evidence bundles into canonical judgment requests.
package judgment

import (
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"

	"adcompliance/domain/compliance"
	"adcompliance/domain/core"
	"adcompliance/internal/evidence"
)

// formatRevision changes whenever the request layout changes in a way that
// should invalidate stored analyses.
const formatRevision = "1"

const creativeInstructions = "Evaluate the ad creative below against every enabled rule. " +
	"Fields whose status is not \"present\" hold a placeholder, not ad content; do not treat placeholders as claims. " +
	"Respond with a single JSON object matching expected_response_format and nothing else."

const landingInstructions = "Evaluate the landing page below against every enabled rule. " +
	"Judge relevance_to_ad by comparing the page content with ad_text_content. " +
	"A null content means the page could not be reached. " +
	"Respond with a single JSON object matching expected_response_format and nothing else."

// ExpectedResponseFormat describes the verdict document the service must return.
var ExpectedResponseFormat = map[string]string{
	"compliant":        "boolean: true only if no enabled rule is violated",
	"confidence_score": "number between 0.0 and 1.0",
	"violations": "array of objects {rule_type: one of the enabled rule names, " +
		"severity: LOW|MEDIUM|HIGH|CRITICAL, description: string, violated_text: exact excerpt or empty string}",
	"reasoning": "string: short explanation of the verdict",
}

// DefaultCreativeChecklist enables every creative rule.
func DefaultCreativeChecklist() compliance.Checklist { return allEnabled(compliance.CreativeRules) }

// DefaultLandingChecklist enables every landing page rule.
func DefaultLandingChecklist() compliance.Checklist { return allEnabled(compliance.LandingPageRules) }

func allEnabled(rules []compliance.RuleType) compliance.Checklist {
	c := make(compliance.Checklist, len(rules))
	for _, r := range rules {
		c[r] = true
	}
	return c
}

// Builder produces judgment documents. The same bundle and checklists always
// yield byte-identical bodies.
type Builder struct {
	creative compliance.Checklist
	landing  compliance.Checklist
	version  string
}

// NewBuilder uses the given checklists; nil selects the default for that task.
func NewBuilder(creative, landing compliance.Checklist) *Builder {
	if creative == nil {
		creative = DefaultCreativeChecklist()
	}
	if landing == nil {
		landing = DefaultLandingChecklist()
	}
	b := &Builder{creative: creative, landing: landing}
	b.version = b.computeVersion()
	return b
}

// ChecklistVersion identifies the checklists and request layout in use, so a
// change to either marks previous analyses stale.
func (b *Builder) ChecklistVersion() string { return b.version }

func (b *Builder) computeVersion() string {
	doc := map[string]any{
		"format":   formatRevision,
		"creative": ruleMap(b.creative, compliance.CreativeRules),
		"landing":  ruleMap(b.landing, compliance.LandingPageRules),
	}
	raw, err := canonical(doc)
	if err != nil {
		// Only maps of bools and strings are encoded here.
		panic(fmt.Sprintf("judgment: encoding checklist version: %v", err))
	}
	return "v" + formatRevision + "-" + core.NewHash(raw).String()[:12]
}

// Creative builds the creative analysis request.
func (b *Builder) Creative(bundle *compliance.EvidenceBundle) (*compliance.JudgmentDocument, error) {
	content := map[string]any{
		"instructions":       creativeInstructions,
		"text_content":       bundle.TextContent.Text(),
		"ocr_text":           bundle.OCRText.Text(),
		"visual_description": bundle.VisualDescription.Text(),
		"audio_transcript":   bundle.AudioTranscript.Text(),
		"image_count":        bundle.ImageCount,
		"video_count":        bundle.VideoCount,
		"field_status": map[string]string{
			"text_content":       string(bundle.TextContent.Status),
			"ocr_text":           string(bundle.OCRText.Status),
			"visual_description": string(bundle.VisualDescription.Status),
			"audio_transcript":   string(bundle.AudioTranscript.Status),
		},
	}
	return b.build(compliance.TaskCreative, bundle.AdID, content, ruleMap(b.creative, compliance.CreativeRules))
}

// LandingPage builds the landing page analysis request.
func (b *Builder) LandingPage(ev *compliance.LandingPageEvidence) (*compliance.JudgmentDocument, error) {
	var pageContent any
	if ev.Content != nil {
		pageContent = *ev.Content
	}
	var screenshot any
	if ev.Screenshot != nil {
		screenshot = *ev.Screenshot
	}
	content := map[string]any{
		"instructions":    landingInstructions,
		"url":             ev.URL,
		"domain":          evidence.NormalizeDomain(ev.URL),
		"content":         pageContent,
		"truncated":       ev.Truncated,
		"original_length": ev.OriginalLength,
		"screenshot":      screenshot,
		"ad_text_content": ev.AdTextContent,
	}
	return b.build(compliance.TaskLandingPage, ev.AdID, content, ruleMap(b.landing, compliance.LandingPageRules))
}

func (b *Builder) build(task compliance.TaskKind, adID core.AdID, content map[string]any, rules map[string]bool) (*compliance.JudgmentDocument, error) {
	format := make(map[string]string, len(ExpectedResponseFormat))
	for k, v := range ExpectedResponseFormat {
		format[k] = v
	}
	req := compliance.JudgmentRequest{
		Task:                   task,
		AdID:                   adID,
		Content:                content,
		Rules:                  rules,
		ExpectedResponseFormat: format,
	}
	body, err := canonical(req)
	if err != nil {
		return nil, fmt.Errorf("encode %s request for ad %s: %w", task, adID, err)
	}
	return &compliance.JudgmentDocument{Request: req, Body: string(body)}, nil
}

// ruleMap lists every known rule of a task with its enabled flag, so disabled
// rules are explicit in the request.
func ruleMap(c compliance.Checklist, known []compliance.RuleType) map[string]bool {
	out := make(map[string]bool, len(known))
	for _, r := range known {
		out[string(r)] = c[r]
	}
	return out
}

// canonical encodes v as RFC 8785 JSON: sorted keys, no insignificant whitespace.
func canonical(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jcs.Transform(raw)
}
