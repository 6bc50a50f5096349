// Package memory provides in-process repositories for tests and dry runs.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"adcompliance/domain/compliance"
	"adcompliance/domain/core"
	"adcompliance/ports"
)

// AnalysisRepository keeps analyses in a map keyed by ad within domain. Stored
// values are deep copies, so callers can never mutate a stored record. Like
// the SQL store, a replaced record keeps its original id.
type AnalysisRepository struct {
	mu      sync.RWMutex
	records map[compliance.AnalysisKey][]byte
	now     func() time.Time
}

var _ ports.AnalysisRepository = (*AnalysisRepository)(nil)

func NewAnalysisRepository() *AnalysisRepository {
	return &AnalysisRepository{records: make(map[compliance.AnalysisKey][]byte), now: time.Now}
}

// WithClock overrides the clock used by ListStale.
func (r *AnalysisRepository) WithClock(now func() time.Time) *AnalysisRepository {
	r.now = now
	return r
}

func (r *AnalysisRepository) Get(ctx context.Context, adID core.AdID, domainID core.DomainID) (*compliance.AdComplianceAnalysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	raw, ok := r.records[compliance.AnalysisKey{AdID: adID, DomainID: domainID}]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return decode(raw)
}

func (r *AnalysisRepository) Put(ctx context.Context, analysis *compliance.AdComplianceAnalysis) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.records[analysis.Key()]; ok {
		if old, err := decode(prev); err == nil {
			analysis.ID = old.ID
		}
	}
	if analysis.ID == "" {
		analysis.ID = core.NewAnalysisID()
	}
	raw, err := json.Marshal(analysis)
	if err != nil {
		return err
	}
	r.records[analysis.Key()] = raw
	return nil
}

func (r *AnalysisRepository) ListStale(ctx context.Context, maxAge time.Duration, limit int) ([]compliance.AnalysisKey, error) {
	all, err := r.all(ctx)
	if err != nil {
		return nil, err
	}
	cutoff := r.now().Add(-maxAge)
	sort.Slice(all, func(i, j int) bool { return all[i].ComputedAt.Before(all[j].ComputedAt) })

	var keys []compliance.AnalysisKey
	for _, a := range all {
		if !a.ComputedAt.Before(cutoff) {
			break
		}
		keys = append(keys, a.Key())
		if limit > 0 && len(keys) == limit {
			break
		}
	}
	return keys, nil
}

func (r *AnalysisRepository) List(ctx context.Context, since time.Time) ([]*compliance.AdComplianceAnalysis, error) {
	all, err := r.all(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, a := range all {
		if !a.ComputedAt.Before(since) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ComputedAt.After(out[j].ComputedAt) })
	return out, nil
}

// Len returns the number of stored analyses.
func (r *AnalysisRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

func (r *AnalysisRepository) all(ctx context.Context) ([]*compliance.AdComplianceAnalysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*compliance.AdComplianceAnalysis, 0, len(r.records))
	for _, raw := range r.records {
		a, err := decode(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func decode(raw []byte) (*compliance.AdComplianceAnalysis, error) {
	var a compliance.AdComplianceAnalysis
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, err
	}
	return &a, nil
}
