package memory

import (
	"context"
	"sort"
	"sync"

	"adcompliance/domain/compliance"
	"adcompliance/domain/core"
	"adcompliance/ports"
)

// AdRepository serves scraped ads from memory. It consults an analysis
// repository to answer ListUnanalyzed.
type AdRepository struct {
	mu       sync.RWMutex
	ads      map[compliance.AnalysisKey]*compliance.ScrapedAd
	analyses ports.AnalysisRepository
}

var _ ports.AdRepository = (*AdRepository)(nil)

func NewAdRepository(analyses ports.AnalysisRepository) *AdRepository {
	return &AdRepository{ads: make(map[compliance.AnalysisKey]*compliance.ScrapedAd), analyses: analyses}
}

// Add stores or replaces an ad.
func (r *AdRepository) Add(ad *compliance.ScrapedAd) {
	copied := *ad
	r.mu.Lock()
	r.ads[ad.Key()] = &copied
	r.mu.Unlock()
}

func (r *AdRepository) GetAd(ctx context.Context, adID core.AdID, domainID core.DomainID) (*compliance.ScrapedAd, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	ad, ok := r.ads[compliance.AnalysisKey{AdID: adID, DomainID: domainID}]
	if !ok {
		return nil, nil
	}
	copied := *ad
	return &copied, nil
}

func (r *AdRepository) ListUnanalyzed(ctx context.Context, limit int) ([]compliance.AnalysisKey, error) {
	r.mu.RLock()
	keys := make([]compliance.AnalysisKey, 0, len(r.ads))
	for k := range r.ads {
		keys = append(keys, k)
	}
	r.mu.RUnlock()
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	var out []compliance.AnalysisKey
	for _, k := range keys {
		existing, err := r.analyses.Get(ctx, k.AdID, k.DomainID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			continue
		}
		out = append(out, k)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
