package evidence

import (
	"context"
	"strings"
	"unicode/utf8"

	"adcompliance/domain/compliance"
	"adcompliance/domain/core"
	"adcompliance/internal"
)

// MaxLandingContentChars bounds the page content sent for judgment, counted in
// characters (runes), not bytes.
const MaxLandingContentChars = 3000

// LandingAggregator assembles landing page evidence from scraped content and
// captured screenshots.
type LandingAggregator struct {
	screenshots *ScreenshotLocator
}

// NewLandingAggregator returns an aggregator probing screenshots with the given
// locator. A nil locator disables screenshot lookup.
func NewLandingAggregator(screenshots *ScreenshotLocator) *LandingAggregator {
	return &LandingAggregator{screenshots: screenshots}
}

// Gather builds the landing page bundle. creativeText is the ad's rendered copy,
// carried along so the page can be judged for relevance to the ad.
func (a *LandingAggregator) Gather(ctx context.Context, ad *compliance.ScrapedAd, creativeText string, logger *internal.Logger) compliance.LandingPageEvidence {
	ev := compliance.LandingPageEvidence{
		AdID:          ad.ID,
		URL:           ad.LandingPageURL,
		AdTextContent: creativeText,
	}
	if !ev.HasURL() {
		return ev
	}

	if ad.LandingPageContent != nil {
		full := *ad.LandingPageContent
		content, truncated := Truncate(full, MaxLandingContentChars)
		ev.Content = &content
		ev.Truncated = truncated
		ev.OriginalLength = utf8.RuneCountInString(full)
		ev.ContentDigest = DigestContent(full)
		if truncated {
			logger.Debug("[LandingAggregator] content truncated from %d to %d chars", ev.OriginalLength, MaxLandingContentChars)
		}
	} else {
		logger.Info("[LandingAggregator] no scraped content for %s", ev.URL)
	}

	if a.screenshots != nil && ctx.Err() == nil {
		ev.Screenshot = a.screenshots.Find(ev.URL, ad.ID)
	}
	return ev
}

// Truncate keeps the first limit characters of s and reports whether anything
// was cut.
func Truncate(s string, limit int) (string, bool) {
	if utf8.RuneCountInString(s) <= limit {
		return s, false
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i], true
		}
		n++
	}
	return s, false
}

// ContentText returns the page content as sent for judgment, or the
// unreachable sentinel.
func ContentText(ev *compliance.LandingPageEvidence) string {
	if ev.Content == nil {
		return compliance.SentinelPageUnreachable
	}
	return *ev.Content
}

// DigestContent hashes the full page with whitespace runs collapsed, so a page
// that only reflows keeps its digest.
func DigestContent(full string) core.Hash {
	return core.NewHash([]byte(strings.Join(strings.Fields(full), " ")))
}
