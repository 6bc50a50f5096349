// Package sweep re-analyzes stale and never-analyzed ads with a bounded
// worker pool.
package sweep

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"adcompliance/domain/compliance"
	"adcompliance/internal"
	"adcompliance/internal/errors"
	"adcompliance/ports"
)

// Analyzer is the part of the orchestrator the sweep drives.
type Analyzer interface {
	AnalyzeKey(ctx context.Context, key compliance.AnalysisKey, force bool) (*compliance.RunResult, error)
}

// Options tunes one sweep.
type Options struct {
	Workers int
	MaxAge  time.Duration
	// Batch caps how many keys each source contributes; zero means no cap.
	Batch int
}

// Failure records one ad the sweep could not analyze.
type Failure struct {
	Key   compliance.AnalysisKey `json:"key"`
	Code  string                 `json:"code"`
	Error string                 `json:"error"`
}

// Report summarizes a sweep.
type Report struct {
	Candidates int       `json:"candidates"`
	Analyzed   int       `json:"analyzed"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	Errors     []Failure `json:"errors,omitempty"`
}

// Runner collects candidates and fans them out to the analyzer.
type Runner struct {
	analyzer Analyzer
	analyses ports.AnalysisRepository
	ads      ports.AdRepository
	logger   *internal.Logger
}

func NewRunner(analyzer Analyzer, analyses ports.AnalysisRepository, ads ports.AdRepository, logger *internal.Logger) *Runner {
	if logger == nil {
		logger = internal.Discard
	}
	return &Runner{analyzer: analyzer, analyses: analyses, ads: ads, logger: logger}
}

// Candidates returns stale keys followed by never-analyzed keys, de-duplicated.
func (r *Runner) Candidates(ctx context.Context, opts Options) ([]compliance.AnalysisKey, error) {
	stale, err := r.analyses.ListStale(ctx, opts.MaxAge, opts.Batch)
	if err != nil {
		return nil, err
	}
	var fresh []compliance.AnalysisKey
	if r.ads != nil {
		fresh, err = r.ads.ListUnanalyzed(ctx, opts.Batch)
		if err != nil {
			return nil, err
		}
	}

	seen := make(map[compliance.AnalysisKey]struct{}, len(stale)+len(fresh))
	out := make([]compliance.AnalysisKey, 0, len(stale)+len(fresh))
	for _, k := range append(stale, fresh...) {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out, nil
}

// Run analyzes every candidate. One ad failing never stops the sweep; only a
// failure to list candidates is returned as an error.
func (r *Runner) Run(ctx context.Context, opts Options) (*Report, error) {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	keys, err := r.Candidates(ctx, opts)
	if err != nil {
		return nil, err
	}
	report := &Report{Candidates: len(keys)}
	r.logger.Info("[Sweep] %d candidates, %d workers", len(keys), opts.Workers)

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(opts.Workers)

	for _, key := range keys {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res, err := r.analyzer.AnalyzeKey(ctx, key, false)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				report.Failed++
				report.Errors = append(report.Errors, Failure{Key: key, Code: errors.GetCode(err), Error: err.Error()})
				r.logger.Warn("[Sweep] %s failed: %v", key, err)
			case res.Skipped:
				report.Skipped++
			default:
				report.Analyzed++
			}
			return nil
		})
	}
	_ = g.Wait()

	r.logger.Info("[Sweep] done analyzed=%d skipped=%d failed=%d", report.Analyzed, report.Skipped, report.Failed)
	return report, ctx.Err()
}
