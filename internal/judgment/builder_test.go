package judgment

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adcompliance/domain/compliance"
)

func sampleBundle() *compliance.EvidenceBundle {
	return &compliance.EvidenceBundle{
		AdID:              "ad-1",
		TextContent:       compliance.Present("Headline: Lose 20 lbs <fast> & easy"),
		OCRText:           compliance.Marked(compliance.FieldAbsent, compliance.SentinelNoImages),
		VisualDescription: compliance.Marked(compliance.FieldAbsent, compliance.SentinelNoImages),
		AudioTranscript:   compliance.Marked(compliance.FieldNotApplicable, compliance.SentinelNoVideo),
	}
}

func TestBuilder_CreativeDeterministic(t *testing.T) {
	b := NewBuilder(nil, nil)

	first, err := b.Creative(sampleBundle())
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := NewBuilder(nil, nil).Creative(sampleBundle())
		require.NoError(t, err)
		assert.Equal(t, first.Body, again.Body)
	}
}

func TestBuilder_CreativeShape(t *testing.T) {
	doc, err := NewBuilder(nil, nil).Creative(sampleBundle())
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(doc.Body), &decoded))

	assert.Equal(t, "creative", decoded["task"])
	assert.Equal(t, "ad-1", decoded["ad_id"])

	rules := decoded["rules"].(map[string]any)
	assert.Len(t, rules, 6)
	for _, r := range compliance.CreativeRules {
		assert.Equal(t, true, rules[string(r)], r)
	}

	content := decoded["content"].(map[string]any)
	assert.Equal(t, "no images available", content["ocr_text"])
	assert.Equal(t, "Headline: Lose 20 lbs <fast> & easy", content["text_content"])
	assert.Equal(t, "absent", content["field_status"].(map[string]any)["ocr_text"])

	format := decoded["expected_response_format"].(map[string]any)
	for _, k := range []string{"compliant", "confidence_score", "violations", "reasoning"} {
		assert.Contains(t, format, k)
	}
}

func TestBuilder_CanonicalEncoding(t *testing.T) {
	doc, err := NewBuilder(nil, nil).Creative(sampleBundle())
	require.NoError(t, err)

	// Keys sorted, HTML characters left unescaped, no whitespace between tokens.
	assert.True(t, len(doc.Body) > 0 && doc.Body[0] == '{')
	assert.Contains(t, doc.Body, `<fast> & easy`)
	assert.NotContains(t, doc.Body, "\n")
	assert.Less(t, strings.Index(doc.Body, `"ad_id"`), strings.Index(doc.Body, `"content"`))
	assert.Less(t, strings.Index(doc.Body, `"rules"`), strings.Index(doc.Body, `"task"`))
}

func TestBuilder_LandingPage(t *testing.T) {
	content := "Our store sells garden furniture."
	shot := "/shots/example.com/ad-1.png"
	ev := &compliance.LandingPageEvidence{
		AdID:          "ad-1",
		URL:           "https://www.example.com/x",
		Content:       &content,
		Screenshot:    &shot,
		AdTextContent: "Headline: Lose weight",
	}

	doc, err := NewBuilder(nil, nil).LandingPage(ev)
	require.NoError(t, err)
	assert.Equal(t, compliance.TaskLandingPage, doc.Request.Task)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(doc.Body), &decoded))
	c := decoded["content"].(map[string]any)
	assert.Equal(t, "example.com", c["domain"])
	assert.Equal(t, content, c["content"])
	assert.Equal(t, shot, c["screenshot"])
	assert.Equal(t, false, c["truncated"])
	assert.Len(t, decoded["rules"].(map[string]any), 5)
}

func TestBuilder_LandingPageUnreachable(t *testing.T) {
	doc, err := NewBuilder(nil, nil).LandingPage(&compliance.LandingPageEvidence{AdID: "ad-1", URL: "https://example.com"})
	require.NoError(t, err)
	assert.Contains(t, doc.Body, `"content":null`)
	assert.Contains(t, doc.Body, `"screenshot":null`)
}

func TestBuilder_DisabledRulesAndVersion(t *testing.T) {
	custom := DefaultCreativeChecklist()
	custom[compliance.RuleClickbait] = false

	def := NewBuilder(nil, nil)
	b := NewBuilder(custom, nil)
	doc, err := b.Creative(sampleBundle())
	require.NoError(t, err)

	assert.Equal(t, false, doc.Request.Rules["clickbait"])
	assert.Equal(t, true, doc.Request.Rules["medical_claims"])
	assert.NotEqual(t, def.ChecklistVersion(), b.ChecklistVersion())
	assert.Equal(t, def.ChecklistVersion(), NewBuilder(nil, nil).ChecklistVersion())
}
