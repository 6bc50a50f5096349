package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"adcompliance/adapters/api"
	"adcompliance/internal"
	"adcompliance/internal/config"
	"adcompliance/internal/container"
	"adcompliance/internal/errors"
	"adcompliance/internal/migration"
)

// initDatabase connects to PostgreSQL and brings the schema up to date
func initDatabase(ctx context.Context, appConfig *config.Config, logger *internal.Logger) (*sqlx.DB, error) {
	if err := appConfig.RequireDatabase(); err != nil {
		return nil, err
	}

	db, err := sqlx.ConnectContext(ctx, "postgres", appConfig.Database.URL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	if err := migration.NewRunner(logger).Run(ctx, db); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "database migration failed")
	}
	return db, nil
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := internal.NewLogger(internal.ParseLogLevel(appConfig.LogLevel))
	gin.SetMode(appConfig.Server.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appContainer, err := container.New(ctx, appConfig, logger)
	if err != nil {
		log.Fatalf("Failed to create container: %v", err)
	}

	db, err := initDatabase(ctx, appConfig, logger)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	if err := appContainer.InitWithDatabase(ctx, db); err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := appContainer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("[Main] shutdown: %v", err)
		}
	}()

	server := api.NewServer(appContainer.Orchestrator, appContainer.Analyses, logger)
	if err := server.Start(ctx, ":"+appConfig.Server.Port); err != nil {
		logger.Error("[Main] server stopped: %v", err)
	}
}
