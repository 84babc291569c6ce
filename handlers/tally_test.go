// Copyright (c) 2026 Alexandre Moreau.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"testing"

	"github.com/statecraft-sim/server/laws"
	"github.com/statecraft-sim/server/models"
)

func TestOutcomeFor(t *testing.T) {
	tests := []struct {
		name     string
		passing  string
		tally    models.Tally
		expected string
	}{
		{
			name:     "majority passes on more yes than no",
			passing:  laws.PassMajority,
			tally:    models.Tally{Yes: 3, No: 2},
			expected: models.ProposalPassed,
		},
		{
			name:     "majority rejects a tie",
			passing:  laws.PassMajority,
			tally:    models.Tally{Yes: 2, No: 2},
			expected: models.ProposalRejected,
		},
		{
			name:     "majority rejects more no than yes",
			passing:  laws.PassMajority,
			tally:    models.Tally{Yes: 1, No: 2},
			expected: models.ProposalRejected,
		},
		{
			name:     "supermajority rejects exactly two thirds",
			passing:  laws.PassSupermajority,
			tally:    models.Tally{Yes: 2, No: 1},
			expected: models.ProposalRejected,
		},
		{
			name:     "supermajority passes three of four",
			passing:  laws.PassSupermajority,
			tally:    models.Tally{Yes: 3, No: 1},
			expected: models.ProposalPassed,
		},
		{
			name:     "supermajority passes with no dissent",
			passing:  laws.PassSupermajority,
			tally:    models.Tally{Yes: 1, No: 0},
			expected: models.ProposalPassed,
		},
		{
			name:     "unanimous rejects a single no",
			passing:  laws.PassUnanimous,
			tally:    models.Tally{Yes: 9, No: 1},
			expected: models.ProposalRejected,
		},
		{
			name:     "unanimous passes with only yes votes",
			passing:  laws.PassUnanimous,
			tally:    models.Tally{Yes: 2, No: 0},
			expected: models.ProposalPassed,
		},
		{
			name:     "zero votes expires rather than rejects",
			passing:  laws.PassMajority,
			tally:    models.Tally{},
			expected: models.ProposalExpired,
		},
		{
			name:     "zero votes expires under unanimous too",
			passing:  laws.PassUnanimous,
			tally:    models.Tally{},
			expected: models.ProposalExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, notes := outcomeFor(tt.passing, tt.tally)
			if status != tt.expected {
				t.Errorf("Expected %s, got %s (notes: %s)", tt.expected, status, notes)
			}
			if notes == "" {
				t.Error("Expected non-empty resolution notes")
			}
		})
	}
}

func TestSupermajorityBoundary(t *testing.T) {
	// The threshold is strictly more than two thirds.
	tests := []struct {
		yes, no int
		want    bool
	}{
		{2, 1, false}, // exactly 2/3
		{3, 1, true},
		{4, 2, false}, // exactly 2/3 again
		{67, 33, true},
		{66, 34, false},
		{1, 0, true},
	}

	for _, tt := range tests {
		got := supermajorityPassed(models.Tally{Yes: tt.yes, No: tt.no})
		if got != tt.want {
			t.Errorf("supermajorityPassed(%d yes, %d no) = %v, want %v", tt.yes, tt.no, got, tt.want)
		}
	}
}
