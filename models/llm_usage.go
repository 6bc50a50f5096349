package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// JudgmentUsage represents a single judge call's token usage and estimated cost
type JudgmentUsage struct {
	ID               uuid.UUID `json:"id" db:"id"`
	SubjectID        string    `json:"subject_id" db:"subject_id"` // ad id the call was made for
	RunID            string    `json:"run_id" db:"run_id"`
	TaskKind         string    `json:"task_kind" db:"task_kind"` // 'creative', 'landing_page'
	Provider         string    `json:"provider" db:"provider"`   // 'openai', 'anthropic', etc.
	Model            string    `json:"model" db:"model"`
	PromptTokens     int       `json:"prompt_tokens" db:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens" db:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens" db:"total_tokens"`
	EstimatedCost    float64   `json:"estimated_cost" db:"estimated_cost"`
	Success          bool      `json:"success" db:"success"`
	ErrorMessage     string    `json:"error_message,omitempty" db:"error_message"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// Validate checks a row before it is written to the ledger
func (u *JudgmentUsage) Validate() error {
	if u.SubjectID == "" {
		return errors.New("subject id is required")
	}
	if u.TaskKind == "" {
		return errors.New("task kind is required")
	}
	if u.PromptTokens < 0 || u.CompletionTokens < 0 || u.TotalTokens < 0 {
		return errors.New("token counts must not be negative")
	}
	if u.EstimatedCost < 0 {
		return errors.New("estimated cost must not be negative")
	}
	return nil
}

// UsageSummary provides aggregated usage statistics for a period
type UsageSummary struct {
	PeriodStart   time.Time             `json:"period_start"`
	PeriodEnd     time.Time             `json:"period_end"`
	RequestCount  int                   `json:"request_count" db:"request_count"`
	FailedCount   int                   `json:"failed_count" db:"failed_count"`
	TotalTokens   int                   `json:"total_tokens" db:"total_tokens"`
	EstimatedCost float64               `json:"estimated_cost" db:"estimated_cost"`
	ByModel       map[string]ModelUsage `json:"by_model"`
}

// ModelUsage represents usage aggregated by model
type ModelUsage struct {
	Model         string  `json:"model"`
	Provider      string  `json:"provider"`
	TotalTokens   int     `json:"total_tokens"`
	RequestCount  int     `json:"request_count"`
	EstimatedCost float64 `json:"estimated_cost"`
}
