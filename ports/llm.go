package ports

import "context"

// UsageData represents raw usage data from LLM provider APIs
type UsageData struct {
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
	Model            string `json:"model"`
	Provider         string `json:"provider"`
}

// JudgeResponse is the opaque response document plus whatever usage the
// provider reported. Usage is nil when the provider reported none.
type JudgeResponse struct {
	Content string
	Usage   *UsageData
}

// Judge submits a judgment request document to an external reasoning service.
// One call is one attempt; retries belong to the transport.
type Judge interface {
	Judge(ctx context.Context, requestDoc string) (*JudgeResponse, error)

	// Provider and Model name the backend for the usage ledger.
	Provider() string
	Model() string
}
