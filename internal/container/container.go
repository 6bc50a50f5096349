package container

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"adcompliance/adapters/llm"
	"adcompliance/adapters/lock"
	"adcompliance/adapters/memory"
	"adcompliance/adapters/ocr"
	"adcompliance/adapters/postgres"
	"adcompliance/internal"
	"adcompliance/internal/config"
	"adcompliance/internal/evidence"
	"adcompliance/internal/judgment"
	"adcompliance/internal/orchestrator"
	"adcompliance/internal/staleness"
	"adcompliance/internal/sweep"
	"adcompliance/internal/usage"
	"adcompliance/internal/verdict"
	"adcompliance/ports"
)

// Container holds all application dependencies
type Container struct {
	Config *config.Config
	Logger *internal.Logger
	DB     *sqlx.DB

	// Repositories
	Analyses  ports.AnalysisRepository
	Ads       ports.AdRepository
	UsageRepo ports.LLMUsageRepository

	// Collaborators
	Judge   ports.Judge
	Locker  ports.AdLocker
	Builder *judgment.Builder
	Parser  *verdict.Parser

	// Services
	Usage        *usage.Service
	Orchestrator *orchestrator.Orchestrator
	Sweeper      *sweep.Runner

	closers []func() error
}

// New creates the judge and lock backend from configuration. Repositories
// and services are wired by InitWithDatabase or InitInMemory.
func New(ctx context.Context, cfg *config.Config, logger *internal.Logger) (*Container, error) {
	if logger == nil {
		logger = internal.NewLogger(internal.ParseLogLevel(cfg.LogLevel))
	}
	c := &Container{Config: cfg, Logger: logger}

	judge, err := llm.NewJudge(llm.Config{
		Provider:          cfg.AI.Provider,
		APIKey:            cfg.AI.APIKey,
		Model:             cfg.AI.Model,
		BaseURL:           cfg.AI.BaseURL,
		Timeout:           cfg.AI.Timeout,
		MaxTokens:         cfg.AI.MaxTokens,
		Temperature:       cfg.AI.Temperature,
		RequestsPerSecond: cfg.AI.RequestsPerSecond,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create judge: %w", err)
	}
	c.Judge = judge

	if err := c.initLocker(ctx); err != nil {
		return nil, err
	}

	parser, err := verdict.NewParser(logger)
	if err != nil {
		return nil, fmt.Errorf("failed to compile verdict schema: %w", err)
	}
	c.Parser = parser
	c.Builder = judgment.NewBuilder(nil, nil)

	logger.Info("[Container] judge=%s/%s checklist=%s", judge.Provider(), judge.Model(), c.Builder.ChecklistVersion())
	return c, nil
}

// WithJudge replaces the configured judge; call before Init*.
func (c *Container) WithJudge(j ports.Judge) *Container {
	c.Judge = j
	return c
}

func (c *Container) initLocker(ctx context.Context) error {
	if c.Config.Redis.Addr == "" {
		c.Locker = lock.NewMemoryLocker()
		c.Logger.Info("[Container] using in-process ad locks")
		return nil
	}
	l, err := lock.NewRedisLocker(ctx, c.Config.Redis.Addr, c.Config.Redis.Password, c.Config.Redis.DB, c.Config.Redis.LockTTL, c.Logger)
	if err != nil {
		return fmt.Errorf("failed to connect lock backend: %w", err)
	}
	c.Locker = l
	c.closers = append(c.closers, l.Close)
	c.Logger.Info("[Container] using redis ad locks at %s", c.Config.Redis.Addr)
	return nil
}

// InitWithDatabase initializes the container with a database connection
func (c *Container) InitWithDatabase(ctx context.Context, db *sqlx.DB) error {
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database connection test failed: %w", err)
	}
	c.DB = db

	analyses := postgres.NewAnalysisRepository(db)
	c.Analyses = analyses
	c.Ads = postgres.NewAdRepository(db)
	c.UsageRepo = postgres.NewLLMUsageRepository(db)

	if err := c.initServices(); err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	c.Logger.Info("[Container] initialized with database connection")
	return nil
}

// InitInMemory wires in-memory repositories and returns the ad store so
// callers can seed it. Usage is not persisted.
func (c *Container) InitInMemory() (*memory.AdRepository, error) {
	analyses := memory.NewAnalysisRepository()
	ads := memory.NewAdRepository(analyses)
	c.Analyses = analyses
	c.Ads = ads

	if err := c.initServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	c.Logger.Info("[Container] initialized with in-memory repositories")
	return ads, nil
}

func (c *Container) initServices() error {
	cfg := c.Config

	deps := orchestrator.Dependencies{
		Creative: evidence.NewCreativeAggregator(ocr.NewTesseract(cfg.Analysis.TesseractPath), ocr.NoTranscriber{}),
		Landing:  evidence.NewLandingAggregator(evidence.NewScreenshotLocator(cfg.Analysis.ScreenshotDir)),
		Builder:  c.Builder,
		Judge:    c.Judge,
		Parser:   c.Parser,
		Analyses: c.Analyses,
		Ads:      c.Ads,
		Locker:   c.Locker,
		Policy:   staleness.NewPolicy(cfg.Analysis.MaxAge),
		Logger:   c.Logger,
	}
	if c.UsageRepo != nil {
		c.Usage = usage.NewService(c.UsageRepo, usage.Rates{
			PromptPer1K:     cfg.AI.PromptCostPer1K,
			CompletionPer1K: cfg.AI.CompletionCostPer1K,
		}, c.Logger)
		deps.Usage = c.Usage
	}

	orch, err := orchestrator.New(deps)
	if err != nil {
		return err
	}
	c.Orchestrator = orch
	c.Sweeper = sweep.NewRunner(orch, c.Analyses, c.Ads, c.Logger)
	return nil
}

// SweepOptions derives sweep settings from configuration.
func (c *Container) SweepOptions() sweep.Options {
	return sweep.Options{
		Workers: c.Config.Analysis.Workers,
		MaxAge:  c.Config.Analysis.MaxAge,
		Batch:   c.Config.Analysis.SweepBatch,
	}
}

// Shutdown flushes pending usage writes and closes connections
func (c *Container) Shutdown(ctx context.Context) error {
	if c.Usage != nil {
		done := make(chan struct{})
		go func() {
			c.Usage.Flush()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			c.Logger.Warn("[Container] usage flush interrupted: %v", ctx.Err())
		}
	}

	var firstErr error
	for _, closeFn := range c.closers {
		if err := closeFn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.DB != nil {
		if err := c.DB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
