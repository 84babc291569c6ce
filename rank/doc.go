// Copyright (c) 2026 Alexandre Moreau.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package rank defines the community rank hierarchy.

Rank tiers are integers: 0 is the sovereign (sole ruler), 1 is a
secretary/advisor (limited council seats), 10 and above are ordinary
members.

Normalize is the single point that converts stored member records,
including legacy records that only carry a role string, into a canonical
rank integer. Every other component works with the normalized value; no
business logic branches on the legacy field.

IsSovereign and IsCouncil are the only implementations of those
predicates. SeatLimit exposes per-governance-type seat caps to the rank
assignment path.
*/
package rank
