package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"adcompliance/models"
	"adcompliance/ports"
)

// LLMUsageRepositoryImpl implements LLMUsageRepository for PostgreSQL
type LLMUsageRepositoryImpl struct {
	db *sqlx.DB
}

// NewLLMUsageRepository creates a new PostgreSQL LLM usage repository
func NewLLMUsageRepository(db *sqlx.DB) ports.LLMUsageRepository {
	return &LLMUsageRepositoryImpl{db: db}
}

// RecordUsage records one judge call
func (r *LLMUsageRepositoryImpl) RecordUsage(ctx context.Context, usage *models.JudgmentUsage) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO llm_usage (
			id, subject_id, run_id, task_kind, provider, model,
			prompt_tokens, completion_tokens, total_tokens, estimated_cost,
			success, error_message, created_at
		) VALUES (
			:id, :subject_id, :run_id, :task_kind, :provider, :model,
			:prompt_tokens, :completion_tokens, :total_tokens, :estimated_cost,
			:success, :error_message, :created_at
		)
	`, usage)
	return err
}

// GetSubjectUsage retrieves usage records for an ad, newest first
func (r *LLMUsageRepositoryImpl) GetSubjectUsage(ctx context.Context, subjectID string) ([]*models.JudgmentUsage, error) {
	var usages []*models.JudgmentUsage
	err := r.db.SelectContext(ctx, &usages, `
		SELECT id, subject_id, run_id, task_kind, provider, model,
		       prompt_tokens, completion_tokens, total_tokens, estimated_cost,
		       success, error_message, created_at
		FROM llm_usage
		WHERE subject_id = $1
		ORDER BY created_at DESC
	`, subjectID)
	return usages, err
}

// GetUsageSummary returns aggregated usage statistics for a period
func (r *LLMUsageRepositoryImpl) GetUsageSummary(ctx context.Context, start, end time.Time) (*models.UsageSummary, error) {
	summary := &models.UsageSummary{
		PeriodStart: start,
		PeriodEnd:   end,
		ByModel:     make(map[string]models.ModelUsage),
	}

	// Get basic aggregates
	err := r.db.GetContext(ctx, summary, `
		SELECT
			COUNT(*) AS request_count,
			COUNT(*) FILTER (WHERE NOT success) AS failed_count,
			COALESCE(SUM(total_tokens), 0) AS total_tokens,
			COALESCE(SUM(estimated_cost), 0) AS estimated_cost
		FROM llm_usage
		WHERE created_at >= $1 AND created_at <= $2
	`, start, end)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}

	// Get model breakdown
	modelRows, err := r.db.QueryContext(ctx, `
		SELECT model, provider, COALESCE(SUM(total_tokens), 0), COUNT(*), COALESCE(SUM(estimated_cost), 0)
		FROM llm_usage
		WHERE created_at >= $1 AND created_at <= $2
		GROUP BY model, provider
		ORDER BY model
	`, start, end)
	if err != nil {
		return nil, err
	}
	defer modelRows.Close()

	for modelRows.Next() {
		var model models.ModelUsage
		if err := modelRows.Scan(&model.Model, &model.Provider, &model.TotalTokens, &model.RequestCount, &model.EstimatedCost); err != nil {
			return nil, err
		}
		summary.ByModel[model.Model] = model
	}
	return summary, modelRows.Err()
}
