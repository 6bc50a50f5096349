package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adcompliance/domain/compliance"
	"adcompliance/models"
)

var analysisCols = []string{
	"ad_id", "domain_id", "id", "creative_verdict", "landing_page_verdict",
	"landing_page_evaluated", "overall_compliant", "overall_score", "manual_review_required",
	"manual_review_reasons", "content_fingerprint", "run_id", "computed_at",
}

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "postgres"), mock
}

func TestAnalysisRepository_PutUpsertsAndKeepsID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAnalysisRepository(db)

	a := &compliance.AdComplianceAnalysis{
		ID:               "fresh-id",
		AdID:             "ad-1",
		DomainID:         "d",
		CreativeVerdict:  compliance.Verdict{Compliant: true, ConfidenceScore: 0.9, Violations: []compliance.Violation{}},
		OverallCompliant: true,
		OverallScore:     0.9,
		ComputedAt:       time.Now(),
	}

	mock.ExpectQuery(`INSERT INTO ad_compliance_analyses .* ON CONFLICT \(ad_id, domain_id\) DO UPDATE SET .* RETURNING id`).
		WithArgs("ad-1", "d", "fresh-id",
			sqlmock.AnyArg(), sqlmock.AnyArg(), false, true, 0.9, false,
			[]byte("[]"), "", "", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("original-id"))

	require.NoError(t, repo.Put(context.Background(), a))
	assert.Equal(t, "original-id", a.ID.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalysisRepository_PutError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAnalysisRepository(db)

	mock.ExpectQuery(`INSERT INTO ad_compliance_analyses`).WillReturnError(errors.New("connection refused"))

	err := repo.Put(context.Background(), &compliance.AdComplianceAnalysis{AdID: "ad-1", DomainID: "d"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestAnalysisRepository_Get(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAnalysisRepository(db)

	mock.ExpectQuery(`FROM ad_compliance_analyses`).
		WithArgs("missing", "d").
		WillReturnRows(sqlmock.NewRows(analysisCols))

	got, err := repo.Get(context.Background(), "missing", "d")
	require.NoError(t, err)
	assert.Nil(t, got)

	creative, _ := json.Marshal(compliance.Verdict{
		Compliant:  false,
		Violations: []compliance.Violation{{RuleType: compliance.RuleMedicalClaims, Severity: compliance.SeverityCritical, ViolatedText: "guaranteed"}},
	})
	landing, _ := json.Marshal(compliance.NoLandingPageVerdict())
	computed := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM ad_compliance_analyses`).
		WithArgs("ad-1", "d").
		WillReturnRows(sqlmock.NewRows(analysisCols).AddRow(
			"ad-1", "d", "an-1", creative, landing,
			false, false, 0.6, true,
			[]byte(`["visual analysis requires manual review"]`), "fp", "run-1", computed,
		))

	got, err = repo.Get(context.Background(), "ad-1", "d")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "an-1", got.ID.String())
	assert.Equal(t, compliance.SeverityCritical, got.CreativeVerdict.Violations[0].Severity)
	assert.Equal(t, compliance.NoLandingPageReasoning, got.LandingPageVerdict.Reasoning)
	assert.Equal(t, []string{"visual analysis requires manual review"}, got.ManualReviewReasons)
	assert.Equal(t, computed, got.ComputedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalysisRepository_ListStale(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAnalysisRepository(db)
	now := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	mock.ExpectQuery(`SELECT ad_id, domain_id\s+FROM ad_compliance_analyses\s+WHERE computed_at < \$1`).
		WithArgs(now.Add(-24*time.Hour), int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"ad_id", "domain_id"}).AddRow("ad-1", "d").AddRow("ad-2", "d"))

	keys, err := repo.ListStale(context.Background(), 24*time.Hour, 10)
	require.NoError(t, err)
	assert.Equal(t, []compliance.AnalysisKey{{AdID: "ad-1", DomainID: "d"}, {AdID: "ad-2", DomainID: "d"}}, keys)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdRepository_GetAd(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAdRepository(db)

	mock.ExpectQuery(`FROM scraped_ads`).
		WithArgs("ad-1", "d").
		WillReturnRows(sqlmock.NewRows([]string{
			"ad_id", "domain_id", "headline", "primary_text", "description", "call_to_action",
			"landing_page_url", "landing_page_content", "image_refs", "video_refs", "scraped_at",
		}).AddRow("ad-1", "d", "Lose 20 lbs", nil, nil, "Buy", "https://example.com", nil,
			[]byte(`{a.png,b.png}`), []byte(`{}`), time.Now()))

	ad, err := repo.GetAd(context.Background(), "ad-1", "d")
	require.NoError(t, err)
	require.NotNil(t, ad)
	require.NotNil(t, ad.Headline)
	assert.Equal(t, "Lose 20 lbs", *ad.Headline)
	assert.Nil(t, ad.PrimaryText)
	assert.Nil(t, ad.LandingPageContent)
	assert.Equal(t, "https://example.com", ad.LandingPageURL)
	assert.Equal(t, []string{"a.png", "b.png"}, ad.ImageRefs)
	assert.Empty(t, ad.VideoRefs)
}

func TestAdRepository_ListUnanalyzed(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAdRepository(db)

	mock.ExpectQuery(`LEFT JOIN ad_compliance_analyses`).
		WithArgs(nil).
		WillReturnRows(sqlmock.NewRows([]string{"ad_id", "domain_id"}).AddRow("ad-9", "d"))

	keys, err := repo.ListUnanalyzed(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []compliance.AnalysisKey{{AdID: "ad-9", DomainID: "d"}}, keys)
}

func TestLLMUsageRepository_RecordUsage(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewLLMUsageRepository(db)

	mock.ExpectExec(`INSERT INTO llm_usage`).WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.RecordUsage(context.Background(), &models.JudgmentUsage{
		ID:        uuid.New(),
		SubjectID: "ad-1",
		TaskKind:  "creative",
		Model:     "gpt-4o",
		Success:   true,
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLLMUsageRepository_GetUsageSummary(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewLLMUsageRepository(db)
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	mock.ExpectQuery(`COUNT\(\*\) FILTER`).
		WithArgs(start, end).
		WillReturnRows(sqlmock.NewRows([]string{"request_count", "failed_count", "total_tokens", "estimated_cost"}).
			AddRow(10, 1, 5000, 0.25))
	mock.ExpectQuery(`GROUP BY model, provider`).
		WithArgs(start, end).
		WillReturnRows(sqlmock.NewRows([]string{"model", "provider", "total_tokens", "request_count", "estimated_cost"}).
			AddRow("gpt-4o", "openai", 5000, 10, 0.25))

	summary, err := repo.GetUsageSummary(context.Background(), start, end)
	require.NoError(t, err)
	assert.Equal(t, 10, summary.RequestCount)
	assert.Equal(t, 1, summary.FailedCount)
	assert.Equal(t, 5000, summary.TotalTokens)
	assert.InDelta(t, 0.25, summary.EstimatedCost, 1e-12)
	assert.Equal(t, 10, summary.ByModel["gpt-4o"].RequestCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}
