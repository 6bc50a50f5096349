package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"adcompliance/domain/compliance"
	"adcompliance/domain/core"
	"adcompliance/internal/errors"
	"adcompliance/internal/report"
)

// defaultSummaryWindow applies when no since parameter is given.
const defaultSummaryWindow = 7 * 24 * time.Hour

// RunResponse is the wire form of one orchestration run.
type RunResponse struct {
	RunID      string                           `json:"run_id"`
	AdID       string                           `json:"ad_id"`
	DomainID   string                           `json:"domain_id"`
	State      compliance.RunState              `json:"state"`
	History    []compliance.RunState            `json:"history"`
	Skipped    bool                             `json:"skipped"`
	Analysis   *compliance.AdComplianceAnalysis `json:"analysis,omitempty"`
	ErrorCode  string                           `json:"error_code,omitempty"`
	Error      string                           `json:"error,omitempty"`
	StartedAt  time.Time                        `json:"started_at"`
	FinishedAt time.Time                        `json:"finished_at"`
}

func newRunResponse(res *compliance.RunResult) RunResponse {
	return RunResponse{
		RunID:      res.RunID.String(),
		AdID:       res.Key.AdID.String(),
		DomainID:   res.Key.DomainID.String(),
		State:      res.State,
		History:    res.History,
		Skipped:    res.Skipped,
		Analysis:   res.Analysis,
		ErrorCode:  res.ErrorCode,
		Error:      res.Error,
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleGetAnalysis(c *gin.Context) {
	key, ok := analysisKey(c)
	if !ok {
		return
	}

	analysis, err := s.analyzer.Get(c.Request.Context(), key)
	if err != nil {
		s.logger.Error("[Server] get analysis %s: %v", key, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load analysis", "error_code": errors.CodeStorage})
		return
	}
	if analysis == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no analysis for " + key.String(), "error_code": errors.CodeNotFound})
		return
	}
	c.JSON(http.StatusOK, analysis)
}

func (s *Server) handleAnalyze(c *gin.Context) {
	key, ok := analysisKey(c)
	if !ok {
		return
	}
	force := false
	if raw := c.Query("force"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "force must be a boolean", "error_code": errors.CodeInvalidInput})
			return
		}
		force = v
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.RunTimeout)
	defer cancel()

	res, err := s.analyzer.AnalyzeKey(ctx, key, force)
	if res == nil {
		code := errors.GetCode(err)
		c.JSON(statusFor(code), gin.H{"error": err.Error(), "error_code": code})
		return
	}
	c.JSON(statusFor(res.ErrorCode), newRunResponse(res))
}

// analysisKey reads the ad id and the required domain query parameter.
func analysisKey(c *gin.Context) (compliance.AnalysisKey, bool) {
	adID := c.Param("adID")
	domain := c.Query("domain")
	if adID == "" || domain == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ad id and domain are required", "error_code": errors.CodeInvalidInput})
		return compliance.AnalysisKey{}, false
	}
	return compliance.AnalysisKey{AdID: core.AdID(adID), DomainID: core.DomainID(domain)}, true
}

func statusFor(code string) int {
	switch code {
	case "":
		return http.StatusOK
	case errors.CodeInvalidInput:
		return http.StatusBadRequest
	case errors.CodeNotFound:
		return http.StatusNotFound
	case errors.CodeAnalysisInProgress:
		return http.StatusConflict
	case errors.CodeTransport:
		return http.StatusBadGateway
	case errors.CodeCanceled:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// handleSummary accepts since as RFC3339 or as a duration back from now.
func (s *Server) handleSummary(c *gin.Context) {
	since, err := parseSince(c.Query("since"), time.Now())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "error_code": errors.CodeInvalidInput})
		return
	}

	analyses, err := s.lister.List(c.Request.Context(), since)
	if err != nil {
		s.logger.Error("[Server] list analyses: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list analyses", "error_code": errors.CodeStorage})
		return
	}
	summary, err := report.Summarize(since, analyses)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "error_code": errors.CodeInternalError})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func parseSince(raw string, now time.Time) (time.Time, error) {
	if raw == "" {
		return now.Add(-defaultSummaryWindow), nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return time.Time{}, errors.InvalidInput("since must be RFC3339 or a duration like 72h")
	}
	return now.Add(-d), nil
}
