package migration

import (
	"context"

	"github.com/jmoiron/sqlx"

	"adcompliance/internal"
	"adcompliance/internal/errors"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner handles database schema migrations
type MigrationRunner struct {
	version string
	logger  *internal.Logger
}

// NewRunner creates a new migration runner
func NewRunner(logger *internal.Logger) *MigrationRunner {
	if logger == nil {
		logger = internal.Discard
	}
	return &MigrationRunner{
		version: "1.0.0",
		logger:  logger,
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in the correct order
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createScrapedAdsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create scraped_ads table")
	}

	if err := r.createAnalysesTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create ad_compliance_analyses table")
	}

	if err := r.createUsageTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create llm_usage table")
	}

	r.createIndexes(ctx, db)
	return nil
}

// scraped_ads belongs to the scraper; it is created here only so local
// environments have something to read.
func (r *MigrationRunner) createScrapedAdsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS scraped_ads (
			ad_id TEXT NOT NULL,
			domain_id TEXT NOT NULL,
			headline TEXT,
			primary_text TEXT,
			description TEXT,
			call_to_action TEXT,
			landing_page_url TEXT,
			landing_page_content TEXT,
			image_refs TEXT[] NOT NULL DEFAULT '{}',
			video_refs TEXT[] NOT NULL DEFAULT '{}',
			scraped_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			PRIMARY KEY (ad_id, domain_id)
		)
	`)
	return err
}

func (r *MigrationRunner) createAnalysesTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS ad_compliance_analyses (
			ad_id TEXT NOT NULL,
			domain_id TEXT NOT NULL,
			id TEXT NOT NULL UNIQUE,
			creative_verdict JSONB NOT NULL,
			landing_page_verdict JSONB NOT NULL,
			landing_page_evaluated BOOLEAN NOT NULL DEFAULT false,
			overall_compliant BOOLEAN NOT NULL,
			overall_score DOUBLE PRECISION NOT NULL,
			manual_review_required BOOLEAN NOT NULL DEFAULT false,
			manual_review_reasons JSONB NOT NULL DEFAULT '[]'::jsonb,
			content_fingerprint TEXT NOT NULL,
			run_id TEXT NOT NULL,
			computed_at TIMESTAMP WITH TIME ZONE NOT NULL,
			PRIMARY KEY (ad_id, domain_id)
		)
	`)
	return err
}

func (r *MigrationRunner) createUsageTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS llm_usage (
			id UUID PRIMARY KEY,
			subject_id TEXT NOT NULL,
			run_id TEXT NOT NULL DEFAULT '',
			task_kind VARCHAR(32) NOT NULL DEFAULT '',
			provider VARCHAR(50) NOT NULL DEFAULT '',
			model VARCHAR(100) NOT NULL DEFAULT '',
			prompt_tokens INTEGER NOT NULL DEFAULT 0,
			completion_tokens INTEGER NOT NULL DEFAULT 0,
			total_tokens INTEGER NOT NULL DEFAULT 0,
			estimated_cost DOUBLE PRECISION NOT NULL DEFAULT 0,
			success BOOLEAN NOT NULL,
			error_message TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) {
	indexes := []string{
		// Staleness sweeps scan by age
		"CREATE INDEX IF NOT EXISTS idx_analyses_computed_at ON ad_compliance_analyses(computed_at)",
		"CREATE INDEX IF NOT EXISTS idx_analyses_domain ON ad_compliance_analyses(domain_id)",

		"CREATE INDEX IF NOT EXISTS idx_scraped_ads_scraped_at ON scraped_ads(scraped_at)",

		"CREATE INDEX IF NOT EXISTS idx_usage_subject ON llm_usage(subject_id)",
		"CREATE INDEX IF NOT EXISTS idx_usage_created_at ON llm_usage(created_at DESC)",
	}

	for _, idxSQL := range indexes {
		if _, err := db.ExecContext(ctx, idxSQL); err != nil {
			// Log but don't fail on index creation errors
			r.logger.Warn("[Migration] index creation failed: %v", err)
		}
	}
}
