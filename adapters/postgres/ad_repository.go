package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"adcompliance/domain/compliance"
	"adcompliance/domain/core"
	"adcompliance/ports"
)

type scrapedAdRow struct {
	AdID               string         `db:"ad_id"`
	DomainID           string         `db:"domain_id"`
	Headline           sql.NullString `db:"headline"`
	PrimaryText        sql.NullString `db:"primary_text"`
	Description        sql.NullString `db:"description"`
	CallToAction       sql.NullString `db:"call_to_action"`
	LandingPageURL     sql.NullString `db:"landing_page_url"`
	LandingPageContent sql.NullString `db:"landing_page_content"`
	ImageRefs          pq.StringArray `db:"image_refs"`
	VideoRefs          pq.StringArray `db:"video_refs"`
	ScrapedAt          time.Time      `db:"scraped_at"`
}

// AdRepository reads the scraper's scraped_ads table
type AdRepository struct {
	db *sqlx.DB
}

var _ ports.AdRepository = (*AdRepository)(nil)

// NewAdRepository creates a new PostgreSQL scraped ad repository
func NewAdRepository(db *sqlx.DB) *AdRepository {
	return &AdRepository{db: db}
}

// GetAd returns one scraped ad, or nil when it does not exist
func (r *AdRepository) GetAd(ctx context.Context, adID core.AdID, domainID core.DomainID) (*compliance.ScrapedAd, error) {
	var row scrapedAdRow
	err := r.db.GetContext(ctx, &row, `
		SELECT ad_id, domain_id, headline, primary_text, description, call_to_action,
		       landing_page_url, landing_page_content, image_refs, video_refs, scraped_at
		FROM scraped_ads
		WHERE ad_id = $1 AND domain_id = $2
	`, adID.String(), domainID.String())
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scraped ad %s/%s: %w", domainID, adID, err)
	}

	return &compliance.ScrapedAd{
		ID:                 core.AdID(row.AdID),
		DomainID:           core.DomainID(row.DomainID),
		Headline:           nullable(row.Headline),
		PrimaryText:        nullable(row.PrimaryText),
		Description:        nullable(row.Description),
		CallToAction:       nullable(row.CallToAction),
		LandingPageURL:     row.LandingPageURL.String,
		LandingPageContent: nullable(row.LandingPageContent),
		ImageRefs:          []string(row.ImageRefs),
		VideoRefs:          []string(row.VideoRefs),
		ScrapedAt:          row.ScrapedAt,
	}, nil
}

// ListUnanalyzed returns ads without an analysis, oldest scrape first
func (r *AdRepository) ListUnanalyzed(ctx context.Context, limit int) ([]compliance.AnalysisKey, error) {
	var lim sql.NullInt64
	if limit > 0 {
		lim = sql.NullInt64{Int64: int64(limit), Valid: true}
	}
	var keys []compliance.AnalysisKey
	err := r.db.SelectContext(ctx, &keys, `
		SELECT a.ad_id, a.domain_id
		FROM scraped_ads a
		LEFT JOIN ad_compliance_analyses c ON c.ad_id = a.ad_id AND c.domain_id = a.domain_id
		WHERE c.ad_id IS NULL
		ORDER BY a.scraped_at ASC
		LIMIT $1
	`, lim)
	if err != nil {
		return nil, fmt.Errorf("failed to list unanalyzed ads: %w", err)
	}
	return keys, nil
}

func nullable(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
