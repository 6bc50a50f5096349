package usage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"adcompliance/internal"
	"adcompliance/models"
	"adcompliance/ports"
)

// Rates prices tokens per thousand for cost estimation.
type Rates struct {
	PromptPer1K     float64
	CompletionPer1K float64
}

// Cost estimates the price of a call.
func (r Rates) Cost(promptTokens, completionTokens int) float64 {
	return float64(promptTokens)/1000*r.PromptPer1K + float64(completionTokens)/1000*r.CompletionPer1K
}

// Service handles judgment usage tracking and persistence
type Service struct {
	repo   ports.LLMUsageRepository
	rates  Rates
	logger *internal.Logger

	maxRetries int
	baseDelay  time.Duration

	pending sync.WaitGroup
}

// NewService creates a new usage service
func NewService(repo ports.LLMUsageRepository, rates Rates, logger *internal.Logger) *Service {
	if logger == nil {
		logger = internal.Discard
	}
	return &Service{
		repo:       repo,
		rates:      rates,
		logger:     logger,
		maxRetries: 3,
		baseDelay:  100 * time.Millisecond,
	}
}

// Record asynchronously persists one ledger entry. Errors are logged only.
func (s *Service) Record(_ context.Context, entry ports.UsageEntry) {
	if entry.TotalTokens == 0 {
		entry.TotalTokens = entry.PromptTokens + entry.CompletionTokens
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	row := &models.JudgmentUsage{
		ID:               uuid.New(),
		SubjectID:        entry.SubjectID,
		RunID:            entry.RunID,
		TaskKind:         entry.TaskKind,
		Provider:         entry.Provider,
		Model:            entry.Model,
		PromptTokens:     entry.PromptTokens,
		CompletionTokens: entry.CompletionTokens,
		TotalTokens:      entry.TotalTokens,
		EstimatedCost:    s.rates.Cost(entry.PromptTokens, entry.CompletionTokens),
		Success:          entry.Success,
		ErrorMessage:     entry.Error,
		CreatedAt:        entry.Timestamp,
	}
	if err := row.Validate(); err != nil {
		s.logger.Error("[UsageService] dropping usage for %q: %v", entry.SubjectID, err)
		return
	}

	// Persist off the caller's path; the run context may already be done.
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := s.persistWithRetry(row); err != nil {
			s.logger.Error("[UsageService] failed to persist usage for %s after retries: %v", row.SubjectID, err)
		}
	}()
}

// Flush waits for in-flight writes.
func (s *Service) Flush() {
	s.pending.Wait()
}

// persistWithRetry attempts to persist usage with linear backoff
func (s *Service) persistWithRetry(row *models.JudgmentUsage) error {
	var err error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if err = s.repo.RecordUsage(context.Background(), row); err == nil {
			return nil
		}
		s.logger.Debug("[UsageService] attempt %d failed: %v", attempt+1, err)
		if attempt < s.maxRetries-1 {
			time.Sleep(time.Duration(attempt+1) * s.baseDelay)
		}
	}
	return err
}

// Summary returns aggregated usage in a time period
func (s *Service) Summary(ctx context.Context, start, end time.Time) (*models.UsageSummary, error) {
	return s.repo.GetUsageSummary(ctx, start, end)
}

// SubjectUsage returns detailed usage records for one ad
func (s *Service) SubjectUsage(ctx context.Context, subjectID string) ([]*models.JudgmentUsage, error) {
	return s.repo.GetSubjectUsage(ctx, subjectID)
}
