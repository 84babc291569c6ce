// Copyright (c) 2026 Alexandre Moreau.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package rank

import (
	"testing"

	"github.com/statecraft-sim/server/models"
)

func TestNormalize_PrefersRankTier(t *testing.T) {
	tier := 1
	if got := Normalize(&tier, "founder"); got != 1 {
		t.Errorf("rank_tier should win over legacy role: expected 1, got %d", got)
	}

	zero := 0
	if got := Normalize(&zero, ""); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
}

func TestNormalize_LegacyRoles(t *testing.T) {
	tests := []struct {
		role     string
		expected int
	}{
		{"founder", Sovereign},
		{"leader", Secretary},
		{"member", Ordinary},
		{"", Ordinary},
		{"peasant", Ordinary},
	}

	for _, tt := range tests {
		if got := Normalize(nil, tt.role); got != tt.expected {
			t.Errorf("Normalize(nil, %q): expected %d, got %d", tt.role, tt.expected, got)
		}
	}
}

func TestPredicates(t *testing.T) {
	if !IsSovereign(Sovereign) {
		t.Error("rank 0 should be sovereign")
	}
	if IsSovereign(Secretary) {
		t.Error("rank 1 should not be sovereign")
	}

	if !IsCouncil(Sovereign) || !IsCouncil(Secretary) {
		t.Error("ranks 0 and 1 should be council")
	}
	if IsCouncil(Ordinary) {
		t.Error("rank 10 should not be council")
	}
}

func TestSeatLimit(t *testing.T) {
	if got := SeatLimit(models.GovernanceMonarchy, Sovereign); got != 1 {
		t.Errorf("expected 1 sovereign seat, got %d", got)
	}
	if got := SeatLimit(models.GovernanceMonarchy, Secretary); got != 3 {
		t.Errorf("expected 3 secretary seats in a monarchy, got %d", got)
	}
	if got := SeatLimit(models.GovernanceDemocracy, Secretary); got != 5 {
		t.Errorf("expected 5 secretary seats in a democracy, got %d", got)
	}
	if got := SeatLimit(models.GovernanceMonarchy, Ordinary); got != -1 {
		t.Errorf("ordinary members should be uncapped, got %d", got)
	}
}
