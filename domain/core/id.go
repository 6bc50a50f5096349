package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	// Falls back to v4 if v7 generation fails
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	AdID       ID
	DomainID   ID
	RunID      ID
	AnalysisID ID
)

// String conversions for domain IDs
func (id AdID) String() string       { return ID(id).String() }
func (id DomainID) String() string   { return ID(id).String() }
func (id RunID) String() string      { return ID(id).String() }
func (id AnalysisID) String() string { return ID(id).String() }

// NewRunID creates a time-ordered identifier for one orchestration run
func NewRunID() RunID { return RunID(NewID()) }

// NewAnalysisID creates an identifier for a newly created analysis aggregate
func NewAnalysisID() AnalysisID { return AnalysisID(NewID()) }

// ParseAdID parses a string into AdID
func ParseAdID(s string) (AdID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("ad ID cannot be empty")
	}
	return AdID(strings.TrimSpace(s)), nil
}

// ParseDomainID parses a string into DomainID
func ParseDomainID(s string) (DomainID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("domain ID cannot be empty")
	}
	return DomainID(strings.TrimSpace(s)), nil
}

// ParseRunID parses a string into RunID
func ParseRunID(s string) (RunID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("run ID cannot be empty")
	}
	return RunID(s), nil
}
