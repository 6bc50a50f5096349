// Package api exposes the compliance engine over HTTP with gin.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"adcompliance/domain/compliance"
	"adcompliance/internal"
)

// Analyzer is the orchestration surface the handlers need.
type Analyzer interface {
	AnalyzeKey(ctx context.Context, key compliance.AnalysisKey, force bool) (*compliance.RunResult, error)
	Get(ctx context.Context, key compliance.AnalysisKey) (*compliance.AdComplianceAnalysis, error)
}

// Lister reads stored analyses for portfolio summaries.
type Lister interface {
	List(ctx context.Context, since time.Time) ([]*compliance.AdComplianceAnalysis, error)
}

// Server represents the compliance HTTP server
type Server struct {
	router   *gin.Engine
	analyzer Analyzer
	lister   Lister
	logger   *internal.Logger

	// RunTimeout bounds one synchronous analysis request.
	RunTimeout time.Duration
}

// NewServer creates the router and registers routes. lister may be nil, in
// which case the summary route is not registered.
func NewServer(analyzer Analyzer, lister Lister, logger *internal.Logger) *Server {
	if logger == nil {
		logger = internal.Discard
	}
	s := &Server{
		router:     gin.New(),
		analyzer:   analyzer,
		lister:     lister,
		logger:     logger,
		RunTimeout: 5 * time.Minute,
	}
	s.router.Use(gin.Recovery(), s.requestLogger())
	s.setupRoutes()
	return s
}

// Handler returns the underlying http.Handler
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until ctx is done, then shuts down gracefully
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("[Server] listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		s.logger.Info("[Server] shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealth)

	ads := s.router.Group("/ads/:adID")
	ads.GET("/compliance", s.handleGetAnalysis)
	ads.POST("/analyze", s.handleAnalyze)

	if s.lister != nil {
		s.router.GET("/compliance/summary", s.handleSummary)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("[Server] %s %s %d %s", c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}
