package llm

import (
	"context"
	"sync"

	"github.com/tidwall/gjson"

	"adcompliance/ports"
)

// MockJudge is a scripted judge for testing. Responses and errors are chosen
// by the request's task kind.
type MockJudge struct {
	Responses map[string]string // task kind -> response document
	Errors    map[string]error  // task kind -> simulated transport error
	Usage     *ports.UsageData

	// Hook, when set, runs before each call; tests use it to block or observe.
	Hook func(ctx context.Context, task string) error

	mu    sync.Mutex
	calls []string
}

var _ ports.Judge = (*MockJudge)(nil)

func (m *MockJudge) Provider() string { return "mock" }
func (m *MockJudge) Model() string    { return "mock-judge" }

func (m *MockJudge) Judge(ctx context.Context, requestDoc string) (*ports.JudgeResponse, error) {
	task := gjson.Get(requestDoc, "task").String()

	m.mu.Lock()
	m.calls = append(m.calls, task)
	m.mu.Unlock()

	if m.Hook != nil {
		if err := m.Hook(ctx, task); err != nil {
			return nil, err
		}
	}
	if err := m.Errors[task]; err != nil {
		return nil, err
	}
	resp := &ports.JudgeResponse{Content: m.Responses[task]}
	if m.Usage != nil {
		u := *m.Usage
		resp.Usage = &u
	}
	return resp, nil
}

// Calls returns the task kinds judged so far, in call order.
func (m *MockJudge) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}
