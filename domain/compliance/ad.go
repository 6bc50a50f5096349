package compliance

import (
	"time"

	"adcompliance/domain/core"
)

// ScrapedAd is the scraper's record of one ad placed on a monitored domain.
// Optional copy fields are nil when the ad did not carry them.
type ScrapedAd struct {
	ID       core.AdID
	DomainID core.DomainID

	Headline     *string
	PrimaryText  *string
	Description  *string
	CallToAction *string

	// LandingPageURL is empty when the ad links nowhere.
	LandingPageURL string
	// LandingPageContent is nil when the scraper could not reach the page.
	LandingPageContent *string

	// Local references, in the order the scraper captured them.
	ImageRefs []string
	VideoRefs []string

	ScrapedAt time.Time
}

// Key returns the ad-within-domain identity that owns an analysis.
func (a *ScrapedAd) Key() AnalysisKey {
	return AnalysisKey{AdID: a.ID, DomainID: a.DomainID}
}

// AnalysisKey identifies the single analysis owned by an ad within a domain.
type AnalysisKey struct {
	AdID     core.AdID     `json:"ad_id" db:"ad_id"`
	DomainID core.DomainID `json:"domain_id" db:"domain_id"`
}

// String renders the key as used for locking, "<domain>/<ad>".
func (k AnalysisKey) String() string {
	return k.DomainID.String() + "/" + k.AdID.String()
}

// StringPtr is a small helper for building ads in code and tests.
func StringPtr(s string) *string { return &s }
