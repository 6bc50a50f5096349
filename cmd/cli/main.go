package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"adcompliance/domain/compliance"
	"adcompliance/domain/core"
	"adcompliance/internal"
	"adcompliance/internal/config"
	"adcompliance/internal/container"
	"adcompliance/internal/migration"
	"adcompliance/internal/report"
)

func main() {
	// .env is optional; real environment wins
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:           "adcompliance",
		Short:         "Ad compliance analysis engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newAnalyzeCmd(),
		newSweepCmd(),
		newMigrateCmd(),
		newSummaryCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootstrap loads configuration, connects to Postgres and wires the container.
func bootstrap(ctx context.Context) (*container.Container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.RequireDatabase(); err != nil {
		return nil, err
	}
	logger := internal.NewLogger(internal.ParseLogLevel(cfg.LogLevel))

	c, err := container.New(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := c.InitWithDatabase(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

func shutdown(c *container.Container) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.Shutdown(ctx); err != nil {
		c.Logger.Warn("[CLI] shutdown: %v", err)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newAnalyzeCmd() *cobra.Command {
	var domain string
	var force bool

	cmd := &cobra.Command{
		Use:   "analyze [ad-id]",
		Short: "Analyze one scraped ad and store the result",
		Long: `Gather evidence for one ad, judge creative and landing page, and store
the merged analysis. Fresh analyses are skipped unless --force is given.

Example: adcompliance analyze 1209384 --domain news.example --force`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if domain == "" {
				return fmt.Errorf("--domain is required")
			}
			c, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer shutdown(c)

			key := compliance.AnalysisKey{AdID: core.AdID(args[0]), DomainID: core.DomainID(domain)}
			res, err := c.Orchestrator.AnalyzeKey(cmd.Context(), key, force)
			if res != nil {
				if perr := printJSON(res); perr != nil {
					return perr
				}
			}
			return err
		},
	}

	cmd.Flags().StringVar(&domain, "domain", "", "Domain the ad was scraped from")
	cmd.Flags().BoolVar(&force, "force", false, "Re-analyze even when the stored analysis is fresh")
	return cmd
}

func newSweepCmd() *cobra.Command {
	var workers, batch int
	var maxAge time.Duration

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Re-analyze stale and never-analyzed ads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer shutdown(c)

			opts := c.SweepOptions()
			if cmd.Flags().Changed("workers") {
				opts.Workers = workers
			}
			if cmd.Flags().Changed("max-age") {
				opts.MaxAge = maxAge
			}
			if cmd.Flags().Changed("batch") {
				opts.Batch = batch
			}

			rep, err := c.Sweeper.Run(cmd.Context(), opts)
			if rep != nil {
				if perr := printJSON(rep); perr != nil {
					return perr
				}
			}
			return err
		},
	}

	cmd.Flags().IntVar(&workers, "workers", 4, "Concurrent analyses (default from ANALYSIS_WORKERS)")
	cmd.Flags().DurationVar(&maxAge, "max-age", config.DefaultMaxAge, "Re-analyze analyses older than this (default from ANALYSIS_MAX_AGE)")
	cmd.Flags().IntVar(&batch, "batch", 100, "Maximum candidates per source (default from SWEEP_BATCH)")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dbCfg, err := config.LoadDatabase()
			if err != nil {
				return err
			}
			db, err := sqlx.ConnectContext(cmd.Context(), "postgres", dbCfg.URL)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer db.Close()

			runner := migration.NewRunner(internal.NewDefaultLogger())
			if err := runner.Run(cmd.Context(), db); err != nil {
				return err
			}
			fmt.Printf("schema at version %s\n", runner.Version())
			return nil
		},
	}
}

func newSummaryCmd() *cobra.Command {
	var since time.Duration

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Summarize stored analyses over a recent window",
		Long: `Print count, compliance rate, score distribution and the most violated
rules for analyses computed within the window.

Example: adcompliance summary --since 168h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer shutdown(c)

			from := time.Now().Add(-since)
			analyses, err := c.Analyses.List(cmd.Context(), from)
			if err != nil {
				return err
			}
			s, err := report.Summarize(from, analyses)
			if err != nil {
				return err
			}

			out := map[string]any{"analyses": s}
			if c.Usage != nil {
				usage, err := c.Usage.Summary(cmd.Context(), from, time.Now())
				if err != nil {
					c.Logger.Warn("[CLI] usage summary unavailable: %v", err)
				} else {
					out["usage"] = usage
				}
			}
			return printJSON(out)
		},
	}

	cmd.Flags().DurationVar(&since, "since", 7*24*time.Hour, "Window to summarize")
	return cmd
}
