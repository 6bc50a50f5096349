// Package orchestrator runs the per-ad compliance analysis state machine:
// gather evidence, judge both branches, merge, and store atomically.
package orchestrator

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"adcompliance/domain/compliance"
	"adcompliance/domain/core"
	"adcompliance/internal"
	"adcompliance/internal/errors"
	"adcompliance/internal/evidence"
	"adcompliance/internal/judgment"
	"adcompliance/internal/staleness"
	"adcompliance/internal/verdict"
	"adcompliance/ports"
)

// Dependencies are the collaborators of an Orchestrator. Ads, Locker and Usage
// are optional.
type Dependencies struct {
	Creative *evidence.CreativeAggregator
	Landing  *evidence.LandingAggregator
	Builder  *judgment.Builder
	Judge    ports.Judge
	Parser   *verdict.Parser
	Analyses ports.AnalysisRepository
	Ads      ports.AdRepository
	Locker   ports.AdLocker
	Usage    ports.UsageRecorder
	Policy   staleness.Policy
	Logger   *internal.Logger
	Now      func() time.Time
}

// Orchestrator holds only immutable collaborators, so runs for different ads
// share no mutable state.
type Orchestrator struct {
	deps Dependencies
}

// New validates the collaborators and fills defaults.
func New(deps Dependencies) (*Orchestrator, error) {
	switch {
	case deps.Judge == nil:
		return nil, errors.ConfigInvalid("orchestrator: judge is required")
	case deps.Analyses == nil:
		return nil, errors.ConfigInvalid("orchestrator: analysis repository is required")
	}
	if deps.Creative == nil {
		deps.Creative = evidence.NewCreativeAggregator(nil, nil)
	}
	if deps.Landing == nil {
		deps.Landing = evidence.NewLandingAggregator(nil)
	}
	if deps.Builder == nil {
		deps.Builder = judgment.NewBuilder(nil, nil)
	}
	if deps.Parser == nil {
		deps.Parser = verdict.MustNewParser(deps.Logger)
	}
	if deps.Logger == nil {
		deps.Logger = internal.Discard
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Policy.MaxAge <= 0 {
		deps.Policy.MaxAge = staleness.DefaultMaxAge
	}
	if deps.Policy.Now == nil {
		deps.Policy.Now = deps.Now
	}
	return &Orchestrator{deps: deps}, nil
}

// Analyze re-analyzes the ad unconditionally.
func (o *Orchestrator) Analyze(ctx context.Context, ad *compliance.ScrapedAd) (*compliance.RunResult, error) {
	return o.run(ctx, ad, true)
}

// AnalyzeIfStale re-analyzes only when the staleness policy asks for it. A
// skipped run returns the prior analysis with Skipped set.
func (o *Orchestrator) AnalyzeIfStale(ctx context.Context, ad *compliance.ScrapedAd) (*compliance.RunResult, error) {
	return o.run(ctx, ad, false)
}

// AnalyzeKey loads the ad from the ad repository and runs it.
func (o *Orchestrator) AnalyzeKey(ctx context.Context, key compliance.AnalysisKey, force bool) (*compliance.RunResult, error) {
	if o.deps.Ads == nil {
		return nil, errors.ConfigInvalid("orchestrator: ad repository not configured")
	}
	ad, err := o.deps.Ads.GetAd(ctx, key.AdID, key.DomainID)
	if err != nil {
		return nil, errors.Wrapf(err, "load ad %s", key)
	}
	if ad == nil {
		return nil, errors.NotFound(fmt.Sprintf("ad %s", key))
	}
	return o.run(ctx, ad, force)
}

// Get returns the stored analysis for a key, or nil when none exists.
func (o *Orchestrator) Get(ctx context.Context, key compliance.AnalysisKey) (*compliance.AdComplianceAnalysis, error) {
	return o.deps.Analyses.Get(ctx, key.AdID, key.DomainID)
}

type execution struct {
	result *compliance.RunResult
	logger *internal.Logger
}

func (r *execution) transition(to compliance.RunState) {
	r.result.State = to
	r.result.History = append(r.result.History, to)
	r.logger.Debug("[Orchestrator] state=%s", to)
}

func (o *Orchestrator) run(ctx context.Context, ad *compliance.ScrapedAd, force bool) (*compliance.RunResult, error) {
	if ad == nil || ad.ID == "" {
		return nil, errors.InvalidInput("ad with an id is required")
	}

	runID := core.NewRunID()
	r := &execution{
		result: &compliance.RunResult{
			RunID:     runID,
			Key:       ad.Key(),
			StartedAt: o.deps.Now(),
		},
		logger: o.deps.Logger.With("run_id", runID).With("ad_id", ad.ID),
	}
	r.transition(compliance.StatePending)

	if o.deps.Locker != nil {
		release, err := o.deps.Locker.Acquire(ctx, ad.Key().String())
		if err != nil {
			if stderrors.Is(err, ports.ErrLocked) {
				return o.fail(r, errors.AnalysisInProgress(ad.Key().String()))
			}
			// Running out of time while another run holds the key is contention,
			// not a backend outage.
			if stderrors.Is(err, context.DeadlineExceeded) {
				return o.fail(r, &errors.AppError{
					Code:    errors.CodeAnalysisInProgress,
					Message: "timed out waiting for analysis lock on " + ad.Key().String(),
					Cause:   err,
				})
			}
			return o.fail(r, classify(err, "acquire analysis lock"))
		}
		defer release()
	}

	creative, landing := o.gather(ctx, ad, r.logger)
	r.transition(compliance.StateEvidenceGathered)

	fingerprint := staleness.Fingerprint(&creative, &landing, o.deps.Builder.ChecklistVersion())

	if !force {
		prior, err := o.deps.Analyses.Get(ctx, ad.ID, ad.DomainID)
		if err != nil {
			return o.fail(r, errors.WithCode(errors.CodeStorage, err))
		}
		if !o.deps.Policy.NeedsReanalysis(fingerprint, prior) {
			r.logger.Info("[Orchestrator] analysis is fresh, skipping")
			r.result.Skipped = true
			r.result.Analysis = prior
			r.transition(compliance.StateStored)
			r.result.FinishedAt = o.deps.Now()
			return r.result, nil
		}
		r.logger.Info("[Orchestrator] re-analyzing: %s", o.deps.Policy.Reason(fingerprint, prior))
	}

	creativeVerdict, landingVerdict, err := o.judge(ctx, r, &creative, &landing)
	if err != nil {
		return o.fail(r, err)
	}
	r.transition(compliance.StateJudged)

	analysis := o.merge(r.result.RunID, ad, &creative, &landing, creativeVerdict, landingVerdict, fingerprint)

	// A cancelled run must not reach storage.
	if err := ctx.Err(); err != nil {
		return o.fail(r, classify(err, "store analysis"))
	}
	if err := o.deps.Analyses.Put(ctx, analysis); err != nil {
		return o.fail(r, errors.StorageError(err))
	}
	r.result.Analysis = analysis
	r.transition(compliance.StateStored)
	r.result.FinishedAt = o.deps.Now()

	r.logger.Info("[Orchestrator] stored analysis compliant=%t score=%.3f", analysis.OverallCompliant, analysis.OverallScore)
	return r.result, nil
}

// gather runs both aggregators concurrently. Neither branch can fail the run;
// a panic becomes a GatherError on that bundle.
func (o *Orchestrator) gather(ctx context.Context, ad *compliance.ScrapedAd, logger *internal.Logger) (compliance.EvidenceBundle, compliance.LandingPageEvidence) {
	var (
		creative compliance.EvidenceBundle
		landing  compliance.LandingPageEvidence
		g        errgroup.Group
	)
	creativeText := evidence.BuildTextContent(ad)

	g.Go(func() error {
		defer func() {
			if p := recover(); p != nil {
				logger.Error("[Orchestrator] creative evidence panicked: %v", p)
				creative = failedCreative(ad, fmt.Sprint(p))
			}
		}()
		creative = o.deps.Creative.Gather(ctx, ad, logger)
		return nil
	})
	g.Go(func() error {
		defer func() {
			if p := recover(); p != nil {
				logger.Error("[Orchestrator] landing evidence panicked: %v", p)
				landing = compliance.LandingPageEvidence{
					AdID:          ad.ID,
					URL:           ad.LandingPageURL,
					AdTextContent: creativeText.Text(),
					GatherError:   fmt.Sprint(p),
				}
			}
		}()
		landing = o.deps.Landing.Gather(ctx, ad, creativeText.Text(), logger)
		return nil
	})
	_ = g.Wait()
	return creative, landing
}

func failedCreative(ad *compliance.ScrapedAd, reason string) compliance.EvidenceBundle {
	failed := func(sentinel string) compliance.Field { return compliance.Marked(compliance.FieldFailed, sentinel) }
	return compliance.EvidenceBundle{
		AdID:              ad.ID,
		Headline:          ad.Headline,
		PrimaryText:       ad.PrimaryText,
		Description:       ad.Description,
		CallToAction:      ad.CallToAction,
		TextContent:       evidence.BuildTextContent(ad),
		OCRText:           failed(compliance.SentinelNoTextDetected),
		VisualDescription: failed(compliance.ManualReviewPlaceholder(len(ad.ImageRefs))),
		AudioTranscript:   failed(compliance.SentinelTranscriptionMissing),
		ImageCount:        len(ad.ImageRefs),
		VideoCount:        len(ad.VideoRefs),
		GatherError:       reason,
	}
}

// judge submits both branches concurrently and joins them. Parse failures are
// absorbed into fallback verdicts; only transport and encoding errors return.
func (o *Orchestrator) judge(ctx context.Context, r *execution, creative *compliance.EvidenceBundle, landing *compliance.LandingPageEvidence) (compliance.Verdict, *compliance.Verdict, error) {
	var (
		creativeVerdict compliance.Verdict
		landingVerdict  *compliance.Verdict
	)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		doc, err := o.deps.Builder.Creative(creative)
		if err != nil {
			return errors.Wrap(err, "build creative request")
		}
		v, err := o.submit(gctx, r, doc)
		if err != nil {
			return err
		}
		creativeVerdict = v
		return nil
	})

	if landing.HasURL() {
		g.Go(func() error {
			doc, err := o.deps.Builder.LandingPage(landing)
			if err != nil {
				return errors.Wrap(err, "build landing page request")
			}
			v, err := o.submit(gctx, r, doc)
			if err != nil {
				return err
			}
			landingVerdict = &v
			return nil
		})
	} else {
		r.logger.Debug("[Orchestrator] no landing page url, skipping landing analysis")
	}

	if err := g.Wait(); err != nil {
		return compliance.Verdict{}, nil, err
	}
	return creativeVerdict, landingVerdict, nil
}

// submit makes one judge call, records its usage and parses the response.
func (o *Orchestrator) submit(ctx context.Context, r *execution, doc *compliance.JudgmentDocument) (compliance.Verdict, error) {
	task := doc.Request.Task
	r.logger.Trace("[Orchestrator] %s request: %s", task, doc.Body)

	resp, err := o.deps.Judge.Judge(ctx, doc.Body)
	if err == nil && resp == nil {
		err = fmt.Errorf("empty response")
	}
	o.recordUsage(ctx, r, task, resp, err)
	if err != nil {
		r.logger.Warn("[Orchestrator] %s judgment failed: %v", task, err)
		return compliance.Verdict{}, classify(err, fmt.Sprintf("%s judgment", task))
	}

	v := o.deps.Parser.Parse(resp.Content)
	if v.ParseFailed {
		r.logger.Warn("[Orchestrator] %s verdict unparseable, using fallback", task)
	}
	return v, nil
}

func (o *Orchestrator) recordUsage(ctx context.Context, r *execution, task compliance.TaskKind, resp *ports.JudgeResponse, callErr error) {
	if o.deps.Usage == nil {
		return
	}
	entry := ports.UsageEntry{
		SubjectID: r.result.Key.AdID.String(),
		RunID:     r.result.RunID.String(),
		TaskKind:  string(task),
		Provider:  o.deps.Judge.Provider(),
		Model:     o.deps.Judge.Model(),
		Success:   callErr == nil,
		Timestamp: o.deps.Now(),
	}
	if callErr != nil {
		entry.Error = callErr.Error()
	}
	if resp != nil && resp.Usage != nil {
		entry.PromptTokens = resp.Usage.PromptTokens
		entry.CompletionTokens = resp.Usage.CompletionTokens
		entry.TotalTokens = resp.Usage.TotalTokens
		if resp.Usage.Model != "" {
			entry.Model = resp.Usage.Model
		}
	}
	o.deps.Usage.Record(ctx, entry)
}

// merge builds the full aggregate. A missing landing verdict means the page
// was not evaluated and the placeholder verdict is stored.
func (o *Orchestrator) merge(runID core.RunID, ad *compliance.ScrapedAd, creative *compliance.EvidenceBundle, landing *compliance.LandingPageEvidence, creativeVerdict compliance.Verdict, landingVerdict *compliance.Verdict, fingerprint core.Fingerprint) *compliance.AdComplianceAnalysis {
	a := &compliance.AdComplianceAnalysis{
		ID:                 core.NewAnalysisID(),
		AdID:               ad.ID,
		DomainID:           ad.DomainID,
		CreativeVerdict:    creativeVerdict,
		OverallScore:       compliance.OverallScore(creativeVerdict, landingVerdict),
		ContentFingerprint: fingerprint,
		RunID:              runID,
		ComputedAt:         o.deps.Now(),
	}

	if landingVerdict != nil {
		a.LandingPageVerdict = *landingVerdict
		a.LandingPageEvaluated = true
	} else {
		a.LandingPageVerdict = compliance.NoLandingPageVerdict()
	}
	a.OverallCompliant = a.CreativeVerdict.Compliant && a.LandingPageVerdict.Compliant

	a.ManualReviewReasons = append(creative.ManualReviewReasons(), landing.ManualReviewReasons()...)
	a.ManualReviewRequired = len(a.ManualReviewReasons) > 0
	return a
}

func (o *Orchestrator) fail(r *execution, err error) (*compliance.RunResult, error) {
	r.transition(compliance.StateFailed)
	r.result.ErrorCode = errors.GetCode(err)
	r.result.Error = err.Error()
	r.result.FinishedAt = o.deps.Now()
	r.logger.Error("[Orchestrator] run failed code=%s: %v", r.result.ErrorCode, err)
	return r.result, err
}

// classify maps caller cancellation to CANCELED and every other judge or lock
// backend failure, judge deadlines included, to TRANSPORT_ERROR.
func classify(err error, what string) error {
	if errors.IsAppError(err) {
		return errors.Wrap(err, what)
	}
	if stderrors.Is(err, context.Canceled) {
		return &errors.AppError{Code: errors.CodeCanceled, Message: what + " canceled", Cause: err}
	}
	return errors.TransportError(what, err)
}
