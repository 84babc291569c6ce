// Copyright (c) 2026 Alexandre Moreau.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"fmt"

	"github.com/statecraft-sim/server/laws"
	"github.com/statecraft-sim/server/models"
)

// proposalTallies aggregates vote rows for a proposal: the combined total
// and a per-community breakdown. The breakdown is what bi-communal laws
// resolve against; nothing intermediate is ever stored.
func proposalTallies(q querier, proposalID string) (models.Tally, map[string]models.Tally, error) {
	rows, err := q.Query(`
		SELECT community_id, choice, COUNT(*)
		FROM vote WHERE proposal_id = $1
		GROUP BY community_id, choice
	`, proposalID)
	if err != nil {
		return models.Tally{}, nil, err
	}
	defer rows.Close()

	var total models.Tally
	bySide := make(map[string]models.Tally)
	for rows.Next() {
		var side, choice string
		var n int
		if err := rows.Scan(&side, &choice, &n); err != nil {
			return models.Tally{}, nil, err
		}
		t := bySide[side]
		switch choice {
		case models.VoteYes:
			t.Yes += n
			total.Yes += n
		case models.VoteNo:
			t.No += n
			total.No += n
		}
		bySide[side] = t
	}
	return total, bySide, rows.Err()
}

func majorityPassed(t models.Tally) bool {
	return t.Yes > t.No
}

// supermajorityPassed requires strictly more than two thirds yes.
// Exactly two thirds is not enough.
func supermajorityPassed(t models.Tally) bool {
	return 3*t.Yes > 2*(t.Yes+t.No)
}

func unanimousPassed(t models.Tally) bool {
	return t.Yes > 0 && t.No == 0
}

// outcomeFor maps a passing condition and a closed tally to a terminal
// status. A window that closed with no votes at all expires rather than
// rejects.
func outcomeFor(passing string, t models.Tally) (status, notes string) {
	if t.Yes+t.No == 0 {
		return models.ProposalExpired, "voting window closed with no votes cast"
	}

	passed := false
	switch passing {
	case laws.PassMajority:
		passed = majorityPassed(t)
	case laws.PassSupermajority:
		passed = supermajorityPassed(t)
	case laws.PassUnanimous:
		passed = unanimousPassed(t)
	}

	if passed {
		return models.ProposalPassed, fmt.Sprintf("passed with %d yes, %d no", t.Yes, t.No)
	}
	return models.ProposalRejected, fmt.Sprintf("rejected with %d yes, %d no", t.Yes, t.No)
}
