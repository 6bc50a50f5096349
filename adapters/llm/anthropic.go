package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"adcompliance/ports"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com/v1"
	defaultAnthropicModel   = "claude-sonnet-4-20250514"
	anthropicVersion        = "2023-06-01"
)

// AnthropicJudge calls the Anthropic messages API
type AnthropicJudge struct {
	apiKey      string
	baseURL     string
	model       string
	maxTokens   int
	temperature float64
	transport   transport
}

var _ ports.Judge = (*AnthropicJudge)(nil)

func NewAnthropicJudge(cfg Config) *AnthropicJudge {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4000
	}
	return &AnthropicJudge{
		apiKey:      cfg.APIKey,
		baseURL:     strings.TrimRight(defaultString(cfg.BaseURL, defaultAnthropicBaseURL), "/"),
		model:       defaultString(cfg.Model, defaultAnthropicModel),
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
		transport:   newTransport(cfg),
	}
}

func (j *AnthropicJudge) Provider() string { return "anthropic" }
func (j *AnthropicJudge) Model() string    { return j.model }

func (j *AnthropicJudge) Judge(ctx context.Context, requestDoc string) (*ports.JudgeResponse, error) {
	body := map[string]interface{}{
		"model":  j.model,
		"system": SystemPrompt,
		"messages": []map[string]string{{
			"role":    "user",
			"content": requestDoc,
		}},
		"max_tokens":  j.maxTokens,
		"temperature": j.temperature,
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	respRaw, err := j.transport.post(ctx, "anthropic", j.baseURL+"/messages", map[string]string{
		"x-api-key":         j.apiKey,
		"anthropic-version": anthropicVersion,
	}, raw)
	if err != nil {
		return nil, err
	}

	if msg := gjson.GetBytes(respRaw, "error.message"); msg.Exists() && msg.String() != "" {
		return nil, fmt.Errorf("anthropic api error: %s", msg.String())
	}

	var text strings.Builder
	for _, block := range gjson.GetBytes(respRaw, "content").Array() {
		if block.Get("type").String() == "text" || !block.Get("type").Exists() {
			text.WriteString(block.Get("text").String())
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("empty response from anthropic")
	}

	out := &ports.JudgeResponse{Content: text.String()}
	if usage := gjson.GetBytes(respRaw, "usage"); usage.Exists() {
		in := int(usage.Get("input_tokens").Int())
		outTokens := int(usage.Get("output_tokens").Int())
		out.Usage = &ports.UsageData{
			PromptTokens:     in,
			CompletionTokens: outTokens,
			TotalTokens:      in + outTokens,
			Model:            defaultString(gjson.GetBytes(respRaw, "model").String(), j.model),
			Provider:         j.Provider(),
		}
	}
	return out, nil
}
