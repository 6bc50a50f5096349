package ports

import (
	"context"
	"time"

	"adcompliance/models"
)

// LLMUsageRepository defines the interface for judgment usage ledger operations
type LLMUsageRepository interface {
	// Record usage for a judge call
	RecordUsage(ctx context.Context, usage *models.JudgmentUsage) error

	// Get usage records for a subject
	GetSubjectUsage(ctx context.Context, subjectID string) ([]*models.JudgmentUsage, error)

	// Get aggregated usage within a date range
	GetUsageSummary(ctx context.Context, start, end time.Time) (*models.UsageSummary, error)
}
