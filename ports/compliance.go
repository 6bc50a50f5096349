package ports

import (
	"context"
	"errors"
	"time"

	"adcompliance/domain/compliance"
	"adcompliance/domain/core"
)

var (
	// ErrNotImplemented is returned by stubbed collaborators such as transcription.
	ErrNotImplemented = errors.New("not implemented")
	// ErrLocked is returned when another run holds the per-ad lock.
	ErrLocked = errors.New("analysis already in progress")
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")
)

// OCRService extracts text from a local image reference.
type OCRService interface {
	ExtractText(ctx context.Context, imageRef string) (string, error)
}

// Transcriber produces an audio transcript for a local video reference.
type Transcriber interface {
	Transcribe(ctx context.Context, videoRef string) (string, error)
}

// AnalysisRepository stores one AdComplianceAnalysis per ad within a domain.
type AnalysisRepository interface {
	// Get returns nil, nil when no analysis exists.
	Get(ctx context.Context, adID core.AdID, domainID core.DomainID) (*compliance.AdComplianceAnalysis, error)

	// Put atomically replaces any prior analysis for the same key.
	Put(ctx context.Context, analysis *compliance.AdComplianceAnalysis) error

	// ListStale returns keys whose analysis was computed more than maxAge ago.
	ListStale(ctx context.Context, maxAge time.Duration, limit int) ([]compliance.AnalysisKey, error)

	// List returns analyses computed at or after since, newest first.
	List(ctx context.Context, since time.Time) ([]*compliance.AdComplianceAnalysis, error)
}

// AdRepository reads the scraper's ad records.
type AdRepository interface {
	GetAd(ctx context.Context, adID core.AdID, domainID core.DomainID) (*compliance.ScrapedAd, error)

	// ListUnanalyzed returns ads that have no analysis yet.
	ListUnanalyzed(ctx context.Context, limit int) ([]compliance.AnalysisKey, error)
}

// AdLocker provides per-ad mutual exclusion across orchestration runs.
type AdLocker interface {
	// Acquire blocks or fails with ErrLocked, depending on the implementation.
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// UsageEntry is one judge invocation as seen by the usage ledger.
type UsageEntry struct {
	SubjectID        string
	RunID            string
	TaskKind         string
	Provider         string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Success          bool
	Error            string
	Timestamp        time.Time
}

// UsageRecorder accepts ledger entries fire-and-forget. It never fails the caller.
type UsageRecorder interface {
	Record(ctx context.Context, entry UsageEntry)
}
