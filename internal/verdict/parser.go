// Package verdict decodes judgment responses into typed verdicts. Parsing never
// fails: anything that does not match the response schema becomes a
// conservative non-compliant fallback.
package verdict

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"adcompliance/domain/compliance"
	"adcompliance/internal"
)

const schemaURL = "https://adcompliance.local/schemas/verdict.schema.json"

// responseSchema is the strict shape of a judgment response. Confidence range
// is not constrained here because out-of-range values are clamped.
const responseSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["compliant", "confidence_score", "violations", "reasoning"],
  "properties": {
    "compliant": {"type": "boolean"},
    "confidence_score": {"type": "number"},
    "reasoning": {"type": "string"},
    "violations": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["rule_type", "severity", "description"],
        "properties": {
          "rule_type": {"type": "string"},
          "severity": {"type": "string"},
          "description": {"type": "string"},
          "violated_text": {"type": ["string", "null"]}
        }
      }
    }
  }
}`

// FallbackPrefix starts the reasoning of every fallback verdict.
const FallbackPrefix = "verdict parse failed: "

type wireViolation struct {
	RuleType     string  `json:"rule_type"`
	Severity     string  `json:"severity"`
	Description  string  `json:"description"`
	ViolatedText *string `json:"violated_text"`
}

type wireVerdict struct {
	Compliant       bool            `json:"compliant"`
	ConfidenceScore float64         `json:"confidence_score"`
	Violations      []wireViolation `json:"violations"`
	Reasoning       string          `json:"reasoning"`
}

// Parser validates and decodes response documents.
type Parser struct {
	schema *jsonschema.Schema
	logger *internal.Logger
}

// NewParser compiles the response schema.
func NewParser(logger *internal.Logger) (*Parser, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(schemaURL, strings.NewReader(responseSchema)); err != nil {
		return nil, fmt.Errorf("verdict schema load failed: %w", err)
	}
	compiled, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("verdict schema compile failed: %w", err)
	}
	if logger == nil {
		logger = internal.Discard
	}
	return &Parser{schema: compiled, logger: logger}, nil
}

// MustNewParser is NewParser for the built-in schema, which always compiles.
func MustNewParser(logger *internal.Logger) *Parser {
	p, err := NewParser(logger)
	if err != nil {
		panic(err)
	}
	return p
}

// Parse decodes raw into a verdict. RawResponse always holds raw unmodified.
func (p *Parser) Parse(raw string) compliance.Verdict {
	body, ok := ExtractJSON(raw)
	if !ok {
		return p.fallback(raw, "no JSON object in response")
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return p.fallback(raw, fmt.Sprintf("invalid JSON: %v", err))
	}
	if err := p.schema.Validate(doc); err != nil {
		return p.fallback(raw, fmt.Sprintf("schema mismatch: %s", schemaReason(err)))
	}

	var w wireVerdict
	if err := json.Unmarshal([]byte(body), &w); err != nil {
		return p.fallback(raw, fmt.Sprintf("decode: %v", err))
	}

	v := compliance.Verdict{
		Compliant:       w.Compliant,
		ConfidenceScore: Clamp(w.ConfidenceScore),
		Reasoning:       w.Reasoning,
		Violations:      make([]compliance.Violation, 0, len(w.Violations)),
		RawResponse:     raw,
	}
	for _, wv := range w.Violations {
		v.Violations = append(v.Violations, mapViolation(wv))
	}
	return v
}

func (p *Parser) fallback(raw, reason string) compliance.Verdict {
	p.logger.Warn("[VerdictParser] falling back to non-compliant verdict: %s", reason)
	return compliance.Verdict{
		Compliant:       false,
		ConfidenceScore: 0,
		Reasoning:       FallbackPrefix + reason,
		Violations:      []compliance.Violation{},
		RawResponse:     raw,
		ParseFailed:     true,
	}
}

func mapViolation(wv wireViolation) compliance.Violation {
	desc := strings.TrimSpace(wv.Description)

	rule, known := compliance.ParseRuleType(wv.RuleType)
	if !known {
		desc = fmt.Sprintf("[rule_type: %s] %s", wv.RuleType, desc)
	}
	sev, known := compliance.ParseSeverity(wv.Severity)
	if !known {
		desc = fmt.Sprintf("[severity: %s] %s", wv.Severity, desc)
	}

	out := compliance.Violation{
		RuleType:    rule,
		Severity:    sev,
		Description: desc,
	}
	if wv.ViolatedText != nil {
		out.ViolatedText = *wv.ViolatedText
	}
	return out
}

// Clamp bounds a confidence score to [0,1].
func Clamp(score float64) float64 {
	switch {
	case math.IsNaN(score):
		return 0
	case score < 0:
		return 0
	case score > 1:
		return 1
	}
	return score
}

// ExtractJSON strips markdown fences and surrounding chatter, returning the
// outermost object span.
func ExtractJSON(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.Contains(s[:nl], "{") {
			// Drop the info string, e.g. "json".
			s = s[nl+1:]
		}
		if end := strings.LastIndex(s, "```"); end >= 0 {
			s = s[:end]
		}
	}

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return "", false
	}
	return s[start : end+1], true
}

func schemaReason(err error) string {
	if ve, ok := err.(*jsonschema.ValidationError); ok {
		leaf := ve
		for len(leaf.Causes) > 0 {
			leaf = leaf.Causes[0]
		}
		loc := leaf.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		return fmt.Sprintf("%s: %s", loc, leaf.Message)
	}
	return err.Error()
}
