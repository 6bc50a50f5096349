package container

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adcompliance/adapters/llm"
	"adcompliance/adapters/lock"
	"adcompliance/domain/compliance"
	"adcompliance/domain/core"
	"adcompliance/internal"
	"adcompliance/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		AI: config.AIConfig{Provider: "openai", APIKey: "test-key", Timeout: time.Second},
		Analysis: config.AnalysisConfig{
			MaxAge:        time.Hour,
			Workers:       2,
			ScreenshotDir: "",
		},
		LogLevel: "ERROR",
	}
}

func TestNew_InMemoryWiring(t *testing.T) {
	ctx := context.Background()
	c, err := New(ctx, testConfig(), internal.Discard)
	require.NoError(t, err)
	assert.Equal(t, "openai", c.Judge.Provider())
	assert.IsType(t, &lock.MemoryLocker{}, c.Locker)

	judge := &llm.MockJudge{Responses: map[string]string{
		"creative": `{"compliant": true, "confidence_score": 0.8, "violations": [], "reasoning": "ok"}`,
	}}
	ads, err := c.WithJudge(judge).InitInMemory()
	require.NoError(t, err)
	require.NotNil(t, c.Orchestrator)
	require.NotNil(t, c.Sweeper)
	assert.Nil(t, c.Usage)

	ad := &compliance.ScrapedAd{ID: core.AdID("ad-1"), DomainID: core.DomainID("news.example"), Headline: compliance.StringPtr("Fresh coffee")}
	ads.Add(ad)

	res, err := c.Orchestrator.AnalyzeKey(ctx, ad.Key(), false)
	require.NoError(t, err)
	assert.Equal(t, compliance.StateStored, res.State)
	assert.True(t, res.Analysis.OverallCompliant)
	assert.InDelta(t, 0.8, res.Analysis.OverallScore, 1e-9)

	report, err := c.Sweeper.Run(ctx, c.SweepOptions())
	require.NoError(t, err)
	assert.Zero(t, report.Candidates)

	require.NoError(t, c.Shutdown(ctx))
}

func TestNew_RejectsMissingKey(t *testing.T) {
	cfg := testConfig()
	cfg.AI.APIKey = ""
	_, err := New(context.Background(), cfg, internal.Discard)
	assert.Error(t, err)
}

func TestNew_RedisUnreachable(t *testing.T) {
	cfg := testConfig()
	cfg.Redis.Addr = "127.0.0.1:1"
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := New(ctx, cfg, internal.Discard)
	assert.Error(t, err)
}
