package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adcompliance/domain/compliance"
	"adcompliance/domain/core"
)

func TestAnalysisRepository_PutReplacesAndIsolates(t *testing.T) {
	repo := NewAnalysisRepository()
	ctx := context.Background()

	got, err := repo.Get(ctx, "ad-1", "d")
	require.NoError(t, err)
	assert.Nil(t, got)

	a := &compliance.AdComplianceAnalysis{
		AdID:     "ad-1",
		DomainID: "d",
		CreativeVerdict: compliance.Verdict{
			Compliant:  false,
			Violations: []compliance.Violation{{RuleType: compliance.RuleClickbait, Severity: compliance.SeverityHigh}},
		},
		OverallScore: 0.5,
	}
	require.NoError(t, repo.Put(ctx, a))
	firstID := a.ID
	assert.NotEmpty(t, firstID)

	// Mutating the caller's copy never reaches the store.
	a.OverallScore = 0.99
	a.CreativeVerdict.Violations[0].Severity = compliance.SeverityLow

	got, err = repo.Get(ctx, "ad-1", "d")
	require.NoError(t, err)
	assert.Equal(t, 0.5, got.OverallScore)
	assert.Equal(t, compliance.SeverityHigh, got.CreativeVerdict.Violations[0].Severity)

	require.NoError(t, repo.Put(ctx, &compliance.AdComplianceAnalysis{AdID: "ad-1", DomainID: "d", OverallScore: 0.1}))
	got, err = repo.Get(ctx, "ad-1", "d")
	require.NoError(t, err)
	assert.Equal(t, 0.1, got.OverallScore)
	assert.Equal(t, firstID, got.ID)
	assert.Empty(t, got.CreativeVerdict.Violations)
	assert.Equal(t, 1, repo.Len())
}

func TestAnalysisRepository_ListStaleAndList(t *testing.T) {
	now := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	repo := NewAnalysisRepository().WithClock(func() time.Time { return now })
	ctx := context.Background()

	for id, age := range map[string]time.Duration{"a": 40 * 24 * time.Hour, "b": 31 * 24 * time.Hour, "c": time.Hour} {
		require.NoError(t, repo.Put(ctx, &compliance.AdComplianceAnalysis{
			AdID: core.AdID(id), DomainID: "d", ComputedAt: now.Add(-age),
		}))
	}

	stale, err := repo.ListStale(ctx, 30*24*time.Hour, 0)
	require.NoError(t, err)
	require.Len(t, stale, 2)
	assert.Equal(t, "d/a", stale[0].String())
	assert.Equal(t, "d/b", stale[1].String())

	limited, err := repo.ListStale(ctx, 30*24*time.Hour, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	recent, err := repo.List(ctx, now.Add(-32*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "c", recent[0].AdID.String())
}
