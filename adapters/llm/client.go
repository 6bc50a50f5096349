package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"adcompliance/ports"
)

// SystemPrompt frames every judgment call. The request document itself is
// self-describing and goes in the user turn.
const SystemPrompt = "You are an advertising compliance reviewer. " +
	"Evaluate the JSON request you are given and reply with exactly one JSON object in the requested format, with no commentary."

// Config selects and tunes a judge backend
type Config struct {
	Provider          string
	APIKey            string
	Model             string
	BaseURL           string
	Timeout           time.Duration
	MaxTokens         int
	Temperature       float64
	RequestsPerSecond float64
}

// NewJudge creates the judge for the configured provider
func NewJudge(cfg Config) (ports.Judge, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing %s API key", cfg.Provider)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "openai":
		return NewOpenAIJudge(cfg), nil
	case "anthropic", "claude":
		return NewAnthropicJudge(cfg), nil
	}
	return nil, fmt.Errorf("unsupported LLM provider %q", cfg.Provider)
}

// transport is the HTTP plumbing shared by the provider adapters
type transport struct {
	client  *http.Client
	limiter *rate.Limiter
}

func newTransport(cfg Config) transport {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	t := transport{client: &http.Client{Timeout: timeout}}
	if cfg.RequestsPerSecond > 0 {
		t.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return t
}

// post sends one request. Non-2xx responses are errors carrying the body.
func (t transport) post(ctx context.Context, provider, url string, headers map[string]string, body []byte) ([]byte, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%s rate limit wait: %w", provider, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", provider, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s http %d: %s", provider, resp.StatusCode, truncateBody(raw))
	}
	return raw, nil
}

func truncateBody(raw []byte) string {
	const limit = 512
	if len(raw) > limit {
		return string(raw[:limit]) + "..."
	}
	return string(raw)
}

func defaultString(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
