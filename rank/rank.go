// Copyright (c) 2026 Alexandre Moreau.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package rank

import "github.com/statecraft-sim/server/models"

// Rank tiers. Lower is more powerful.
const (
	Sovereign = 0
	Secretary = 1
	Ordinary  = 10
)

// Legacy role strings found on old member records that predate rank_tier.
const (
	legacyFounder = "founder"
	legacyLeader  = "leader"
)

// Normalize produces the canonical rank integer for a member record. Legacy
// records carry a role string instead of rank_tier; the mapping is
// founder→0, leader→1, everything else→10. This is the only place the
// legacy field is interpreted; business logic never sees it.
func Normalize(rankTier *int, role string) int {
	if rankTier != nil {
		return *rankTier
	}
	switch role {
	case legacyFounder:
		return Sovereign
	case legacyLeader:
		return Secretary
	default:
		return Ordinary
	}
}

// IsSovereign reports whether a rank is the community's ruling tier.
func IsSovereign(rank int) bool {
	return rank == Sovereign
}

// IsCouncil reports whether a rank sits on the community's council
// (sovereign or secretary).
func IsCouncil(rank int) bool {
	return rank <= Secretary
}

// SeatLimit returns the configured cap for a rank under a governance type,
// or -1 when the rank is uncapped. Assignment callers must reject any
// change that would exceed the cap.
func SeatLimit(governance string, rank int) int {
	switch rank {
	case Sovereign:
		return 1
	case Secretary:
		switch governance {
		case models.GovernanceDemocracy:
			return 5
		default:
			return 3
		}
	default:
		return -1
	}
}
