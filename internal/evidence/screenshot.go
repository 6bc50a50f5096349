package evidence

import (
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/publicsuffix"

	"adcompliance/domain/core"
)

// ScreenshotLocator finds screenshots captured by the scraper under a base
// directory. It only reads the filesystem; capture is someone else's job.
type ScreenshotLocator struct {
	dir string
}

func NewScreenshotLocator(dir string) *ScreenshotLocator {
	return &ScreenshotLocator{dir: dir}
}

// NormalizeDomain reduces a landing page URL to a bare lowercase host:
// scheme and a leading "www." are dropped and everything from the first path
// separator, query or fragment on is cut.
func NormalizeDomain(rawURL string) string {
	d := strings.TrimSpace(rawURL)
	if i := strings.Index(d, "://"); i >= 0 {
		d = d[i+3:]
	}
	if len(d) >= 4 && strings.EqualFold(d[:4], "www.") {
		d = d[4:]
	}
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	return strings.ToLower(d)
}

// Candidates lists the conventional screenshot paths for an ad in probe order.
func (l *ScreenshotLocator) Candidates(landingURL string, adID core.AdID) []string {
	id := filepath.Base(adID.String())
	if id == "" || id == "." || id == string(filepath.Separator) {
		return nil
	}
	file := id + ".png"

	domain := NormalizeDomain(landingURL)
	var out []string
	if domain != "" && !strings.ContainsAny(domain, `/\`) && domain != ".." {
		out = append(out,
			filepath.Join(l.dir, domain, file),
			filepath.Join(l.dir, domain+"_"+file),
		)
	}
	out = append(out, filepath.Join(l.dir, file))

	if domain != "" {
		host := domain
		if i := strings.LastIndex(host, ":"); i >= 0 {
			host = host[:i]
		}
		if reg, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil && reg != domain {
			out = append(out, filepath.Join(l.dir, reg, file))
		}
	}
	return out
}

// Find returns the first candidate that exists as a regular file, or nil.
func (l *ScreenshotLocator) Find(landingURL string, adID core.AdID) *string {
	for _, p := range l.Candidates(landingURL, adID) {
		info, err := os.Stat(p)
		if err == nil && info.Mode().IsRegular() {
			found := p
			return &found
		}
	}
	return nil
}
