// Copyright (c) 2026 Alexandre Moreau.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"strings"

	"github.com/statecraft-sim/server/models"
	"github.com/statecraft-sim/server/rank"
)

// querier is the subset of *sql.DB and *sql.Tx the lookup helpers need.
type querier interface {
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// memberByToken resolves the X-Member-Token header to a member row.
// Returns sql.ErrNoRows when the token is unknown. The legacy role column
// is normalized here; nothing downstream ever sees it.
func memberByToken(q querier, token string) (models.Member, error) {
	var m models.Member
	var tier sql.NullInt64
	var role sql.NullString

	err := q.QueryRow(`
		SELECT community_id, user_id, username, rank_tier, role, member_token, joined_at
		FROM member WHERE member_token = $1
	`, token).Scan(&m.CommunityID, &m.UserID, &m.Username, &tier, &role, &m.MemberToken, &m.JoinedAt)
	if err != nil {
		return models.Member{}, err
	}

	m.Rank = normalizedRank(tier, role)
	return m, nil
}

// memberByID resolves a (community, user) pair to a member row.
func memberByID(q querier, communityID, userID string) (models.Member, error) {
	var m models.Member
	var tier sql.NullInt64
	var role sql.NullString

	err := q.QueryRow(`
		SELECT community_id, user_id, username, rank_tier, role, member_token, joined_at
		FROM member WHERE community_id = $1 AND user_id = $2
	`, communityID, userID).Scan(&m.CommunityID, &m.UserID, &m.Username, &tier, &role, &m.MemberToken, &m.JoinedAt)
	if err != nil {
		return models.Member{}, err
	}

	m.Rank = normalizedRank(tier, role)
	return m, nil
}

// communityByID loads a community. Returns sql.ErrNoRows when missing.
func communityByID(q querier, id string) (models.Community, error) {
	var c models.Community
	err := q.QueryRow(`
		SELECT id, name, governance, members_count, motd_title, motd_content,
		       work_tax, import_tariff, created_at
		FROM community WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Governance, &c.MembersCount, &c.MotdTitle,
		&c.MotdContent, &c.WorkTax, &c.ImportTariff, &c.CreatedAt)
	if err != nil {
		return models.Community{}, err
	}
	return c, nil
}

// sovereignOf finds the community's rank-0 member. This is a query every
// time, never cached: an uprising can change the answer.
func sovereignOf(q querier, communityID string) (models.Member, error) {
	rows, err := q.Query(`
		SELECT community_id, user_id, username, rank_tier, role, member_token, joined_at
		FROM member WHERE community_id = $1
	`, communityID)
	if err != nil {
		return models.Member{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var m models.Member
		var tier sql.NullInt64
		var role sql.NullString
		if err := rows.Scan(&m.CommunityID, &m.UserID, &m.Username, &tier, &role, &m.MemberToken, &m.JoinedAt); err != nil {
			return models.Member{}, err
		}
		m.Rank = normalizedRank(tier, role)
		if rank.IsSovereign(m.Rank) {
			return m, nil
		}
	}
	if err := rows.Err(); err != nil {
		return models.Member{}, err
	}
	return models.Member{}, sql.ErrNoRows
}

// countMembersWithRank counts members holding a rank after normalization.
func countMembersWithRank(q querier, communityID string, want int) (int, error) {
	rows, err := q.Query(`SELECT rank_tier, role FROM member WHERE community_id = $1`, communityID)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var tier sql.NullInt64
		var role sql.NullString
		if err := rows.Scan(&tier, &role); err != nil {
			return 0, err
		}
		if normalizedRank(tier, role) == want {
			count++
		}
	}
	return count, rows.Err()
}

func normalizedRank(tier sql.NullInt64, role sql.NullString) int {
	var tierPtr *int
	if tier.Valid {
		v := int(tier.Int64)
		tierPtr = &v
	}
	return rank.Normalize(tierPtr, role.String)
}

// isUniqueViolation matches the duplicate-key errors both drivers produce.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || // modernc sqlite
		strings.Contains(msg, "constraint failed: UNIQUE") || // modernc sqlite, extended codes
		strings.Contains(msg, "duplicate key value violates unique constraint") // lib/pq
}
