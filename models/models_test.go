package models

import (
	"testing"
)

func TestJudgmentUsage_Validate(t *testing.T) {
	tests := []struct {
		name        string
		usage       JudgmentUsage
		expectError bool
	}{
		{
			name:        "Valid successful call",
			usage:       JudgmentUsage{SubjectID: "ad-1", TaskKind: "creative", PromptTokens: 1200, CompletionTokens: 300, TotalTokens: 1500},
			expectError: false,
		},
		{
			name:        "Valid failed call with no usage",
			usage:       JudgmentUsage{SubjectID: "ad-1", TaskKind: "landing_page", ErrorMessage: "timeout"},
			expectError: false,
		},
		{
			name:        "Invalid - missing subject",
			usage:       JudgmentUsage{TaskKind: "creative"},
			expectError: true,
		},
		{
			name:        "Invalid - missing task kind",
			usage:       JudgmentUsage{SubjectID: "ad-1"},
			expectError: true,
		},
		{
			name:        "Invalid - negative tokens",
			usage:       JudgmentUsage{SubjectID: "ad-1", TaskKind: "creative", CompletionTokens: -5},
			expectError: true,
		},
		{
			name:        "Invalid - negative cost",
			usage:       JudgmentUsage{SubjectID: "ad-1", TaskKind: "creative", EstimatedCost: -0.01},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.usage.Validate()
			if (err != nil) != tt.expectError {
				t.Errorf("JudgmentUsage.Validate() error = %v, expectError %v", err, tt.expectError)
			}
		})
	}
}
