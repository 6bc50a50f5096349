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
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOpenAIModel   = "gpt-4o"
)

// OpenAIJudge calls an OpenAI-compatible chat completions endpoint
type OpenAIJudge struct {
	apiKey      string
	baseURL     string
	model       string
	maxTokens   int
	temperature float64
	transport   transport
}

var _ ports.Judge = (*OpenAIJudge)(nil)

func NewOpenAIJudge(cfg Config) *OpenAIJudge {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2000
	}
	return &OpenAIJudge{
		apiKey:      cfg.APIKey,
		baseURL:     strings.TrimRight(defaultString(cfg.BaseURL, defaultOpenAIBaseURL), "/"),
		model:       defaultString(cfg.Model, defaultOpenAIModel),
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
		transport:   newTransport(cfg),
	}
}

func (j *OpenAIJudge) Provider() string { return "openai" }
func (j *OpenAIJudge) Model() string    { return j.model }

func (j *OpenAIJudge) Judge(ctx context.Context, requestDoc string) (*ports.JudgeResponse, error) {
	type msg struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	type reqBody struct {
		Model          string            `json:"model"`
		Messages       []msg             `json:"messages"`
		Temperature    float64           `json:"temperature"`
		MaxTokens      int               `json:"max_tokens,omitempty"`
		ResponseFormat map[string]string `json:"response_format,omitempty"`
	}
	body := reqBody{
		Model: j.model,
		Messages: []msg{
			{Role: "system", Content: SystemPrompt},
			{Role: "user", Content: requestDoc},
		},
		Temperature:    j.temperature,
		MaxTokens:      j.maxTokens,
		ResponseFormat: map[string]string{"type": "json_object"},
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	respRaw, err := j.transport.post(ctx, "openai", j.baseURL+"/chat/completions",
		map[string]string{"Authorization": "Bearer " + j.apiKey}, raw)
	if err != nil {
		return nil, err
	}

	content := gjson.GetBytes(respRaw, "choices.0.message.content")
	if !content.Exists() {
		return nil, fmt.Errorf("openai response missing choices")
	}

	out := &ports.JudgeResponse{Content: content.String()}
	if usage := gjson.GetBytes(respRaw, "usage"); usage.Exists() {
		out.Usage = &ports.UsageData{
			PromptTokens:     int(usage.Get("prompt_tokens").Int()),
			CompletionTokens: int(usage.Get("completion_tokens").Int()),
			TotalTokens:      int(usage.Get("total_tokens").Int()),
			Model:            defaultString(gjson.GetBytes(respRaw, "model").String(), j.model),
			Provider:         j.Provider(),
		}
	}
	return out, nil
}
