package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"adcompliance/domain/compliance"
	"adcompliance/domain/core"
	"adcompliance/ports"
)

// analysisRow mirrors ad_compliance_analyses. Verdicts and review reasons are JSONB.
type analysisRow struct {
	AdID                 string    `db:"ad_id"`
	DomainID             string    `db:"domain_id"`
	ID                   string    `db:"id"`
	CreativeVerdict      []byte    `db:"creative_verdict"`
	LandingPageVerdict   []byte    `db:"landing_page_verdict"`
	LandingPageEvaluated bool      `db:"landing_page_evaluated"`
	OverallCompliant     bool      `db:"overall_compliant"`
	OverallScore         float64   `db:"overall_score"`
	ManualReviewRequired bool      `db:"manual_review_required"`
	ManualReviewReasons  []byte    `db:"manual_review_reasons"`
	ContentFingerprint   string    `db:"content_fingerprint"`
	RunID                string    `db:"run_id"`
	ComputedAt           time.Time `db:"computed_at"`
}

const analysisColumns = `ad_id, domain_id, id, creative_verdict, landing_page_verdict,
	landing_page_evaluated, overall_compliant, overall_score, manual_review_required,
	manual_review_reasons, content_fingerprint, run_id, computed_at`

// AnalysisRepository implements ports.AnalysisRepository for PostgreSQL
type AnalysisRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

var _ ports.AnalysisRepository = (*AnalysisRepository)(nil)

// NewAnalysisRepository creates a new PostgreSQL analysis repository
func NewAnalysisRepository(db *sqlx.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db, now: time.Now}
}

// Get returns the analysis for an ad within a domain, or nil when none exists
func (r *AnalysisRepository) Get(ctx context.Context, adID core.AdID, domainID core.DomainID) (*compliance.AdComplianceAnalysis, error) {
	var row analysisRow
	err := r.db.GetContext(ctx, &row, `
		SELECT `+analysisColumns+`
		FROM ad_compliance_analyses
		WHERE ad_id = $1 AND domain_id = $2
	`, adID.String(), domainID.String())
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis %s/%s: %w", domainID, adID, err)
	}
	return row.toDomain()
}

// Put replaces the full analysis in one statement. The row keeps its original
// id across re-analysis; that id is written back to analysis.ID.
func (r *AnalysisRepository) Put(ctx context.Context, analysis *compliance.AdComplianceAnalysis) error {
	row, err := fromDomain(analysis)
	if err != nil {
		return err
	}

	var id string
	err = r.db.QueryRowxContext(ctx, `
		INSERT INTO ad_compliance_analyses (`+analysisColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (ad_id, domain_id) DO UPDATE SET
			creative_verdict = EXCLUDED.creative_verdict,
			landing_page_verdict = EXCLUDED.landing_page_verdict,
			landing_page_evaluated = EXCLUDED.landing_page_evaluated,
			overall_compliant = EXCLUDED.overall_compliant,
			overall_score = EXCLUDED.overall_score,
			manual_review_required = EXCLUDED.manual_review_required,
			manual_review_reasons = EXCLUDED.manual_review_reasons,
			content_fingerprint = EXCLUDED.content_fingerprint,
			run_id = EXCLUDED.run_id,
			computed_at = EXCLUDED.computed_at
		RETURNING id
	`,
		row.AdID, row.DomainID, row.ID, row.CreativeVerdict, row.LandingPageVerdict,
		row.LandingPageEvaluated, row.OverallCompliant, row.OverallScore, row.ManualReviewRequired,
		row.ManualReviewReasons, row.ContentFingerprint, row.RunID, row.ComputedAt,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("failed to upsert analysis %s: %w", analysis.Key(), err)
	}
	analysis.ID = core.AnalysisID(id)
	return nil
}

// ListStale returns keys computed before now-maxAge, oldest first. A zero
// limit returns all of them.
func (r *AnalysisRepository) ListStale(ctx context.Context, maxAge time.Duration, limit int) ([]compliance.AnalysisKey, error) {
	var lim sql.NullInt64
	if limit > 0 {
		lim = sql.NullInt64{Int64: int64(limit), Valid: true}
	}
	var keys []compliance.AnalysisKey
	err := r.db.SelectContext(ctx, &keys, `
		SELECT ad_id, domain_id
		FROM ad_compliance_analyses
		WHERE computed_at < $1
		ORDER BY computed_at ASC
		LIMIT $2
	`, r.now().Add(-maxAge), lim)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale analyses: %w", err)
	}
	return keys, nil
}

// List returns analyses computed at or after since, newest first
func (r *AnalysisRepository) List(ctx context.Context, since time.Time) ([]*compliance.AdComplianceAnalysis, error) {
	var rows []analysisRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT `+analysisColumns+`
		FROM ad_compliance_analyses
		WHERE computed_at >= $1
		ORDER BY computed_at DESC
	`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}

	out := make([]*compliance.AdComplianceAnalysis, 0, len(rows))
	for i := range rows {
		a, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func fromDomain(a *compliance.AdComplianceAnalysis) (*analysisRow, error) {
	creative, err := json.Marshal(a.CreativeVerdict)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal creative verdict: %w", err)
	}
	landing, err := json.Marshal(a.LandingPageVerdict)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal landing page verdict: %w", err)
	}
	reasons := a.ManualReviewReasons
	if reasons == nil {
		reasons = []string{}
	}
	reasonsJSON, err := json.Marshal(reasons)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal review reasons: %w", err)
	}

	id := a.ID
	if id == "" {
		id = core.NewAnalysisID()
	}
	return &analysisRow{
		AdID:                 a.AdID.String(),
		DomainID:             a.DomainID.String(),
		ID:                   id.String(),
		CreativeVerdict:      creative,
		LandingPageVerdict:   landing,
		LandingPageEvaluated: a.LandingPageEvaluated,
		OverallCompliant:     a.OverallCompliant,
		OverallScore:         a.OverallScore,
		ManualReviewRequired: a.ManualReviewRequired,
		ManualReviewReasons:  reasonsJSON,
		ContentFingerprint:   a.ContentFingerprint.String(),
		RunID:                a.RunID.String(),
		ComputedAt:           a.ComputedAt,
	}, nil
}

func (row *analysisRow) toDomain() (*compliance.AdComplianceAnalysis, error) {
	a := &compliance.AdComplianceAnalysis{
		ID:                   core.AnalysisID(row.ID),
		AdID:                 core.AdID(row.AdID),
		DomainID:             core.DomainID(row.DomainID),
		LandingPageEvaluated: row.LandingPageEvaluated,
		OverallCompliant:     row.OverallCompliant,
		OverallScore:         row.OverallScore,
		ManualReviewRequired: row.ManualReviewRequired,
		ContentFingerprint:   core.Fingerprint(row.ContentFingerprint),
		RunID:                core.RunID(row.RunID),
		ComputedAt:           row.ComputedAt,
	}
	if err := json.Unmarshal(row.CreativeVerdict, &a.CreativeVerdict); err != nil {
		return nil, fmt.Errorf("failed to unmarshal creative verdict: %w", err)
	}
	if err := json.Unmarshal(row.LandingPageVerdict, &a.LandingPageVerdict); err != nil {
		return nil, fmt.Errorf("failed to unmarshal landing page verdict: %w", err)
	}
	if len(row.ManualReviewReasons) > 0 {
		if err := json.Unmarshal(row.ManualReviewReasons, &a.ManualReviewReasons); err != nil {
			return nil, fmt.Errorf("failed to unmarshal review reasons: %w", err)
		}
	}
	return a, nil
}
