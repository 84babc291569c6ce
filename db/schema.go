// Copyright (c) 2026 Alexandre Moreau.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"
	"strings"
)

// Open connects to the configured database. Drivers must be blank-imported
// by the caller (lib/pq for postgres, modernc.org/sqlite for sqlite).
// Sqlite pragmas go in the DSN so every pooled connection gets them; a
// one-off Exec would only reach whichever connection the pool hands out.
func Open(dbType, url string) (*sql.DB, error) {
	switch dbType {
	case "postgres":
		return sql.Open("postgres", url)
	case "sqlite":
		sep := "?"
		if strings.ContainsRune(url, '?') {
			sep = "&"
		}
		return sql.Open("sqlite", url+sep+"_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	default:
		return nil, fmt.Errorf("unknown database type %q", dbType)
	}
}

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
func CreateSchema(db *sql.DB, dbType string) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// The schema sticks to the SQL subset both drivers accept: $n placeholders,
// TEXT/INTEGER/REAL/TIMESTAMP/BOOLEAN, partial unique indexes, and
// CURRENT_TIMESTAMP defaults.
const schema = `
-- Communities
CREATE TABLE IF NOT EXISTS community (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    governance TEXT NOT NULL CHECK (governance IN ('monarchy', 'democracy')),
    members_count INTEGER NOT NULL DEFAULT 0,
    motd_title TEXT,
    motd_content TEXT,
    work_tax REAL,
    import_tariff REAL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Members. rank_tier is nullable: legacy rows carry only a role string and
-- are normalized at scan time.
CREATE TABLE IF NOT EXISTS member (
    community_id TEXT NOT NULL REFERENCES community(id) ON DELETE CASCADE,
    user_id TEXT NOT NULL,
    username TEXT NOT NULL,
    rank_tier INTEGER,
    role TEXT,
    member_token TEXT NOT NULL UNIQUE,
    joined_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (community_id, user_id),
    UNIQUE (community_id, username)
);

-- At most one sovereign per community, enforced by the database.
CREATE UNIQUE INDEX IF NOT EXISTS idx_member_sovereign
    ON member(community_id) WHERE rank_tier = 0;
CREATE INDEX IF NOT EXISTS idx_member_token ON member(member_token);

-- Proposals
CREATE TABLE IF NOT EXISTS proposal (
    id TEXT PRIMARY KEY,
    community_id TEXT NOT NULL REFERENCES community(id) ON DELETE CASCADE,
    law_type TEXT NOT NULL,
    proposer_id TEXT NOT NULL,
    metadata TEXT NOT NULL DEFAULT '{}',
    status TEXT NOT NULL DEFAULT 'pending'
        CHECK (status IN ('pending', 'passed', 'rejected', 'expired', 'failed')),
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    expires_at TIMESTAMP,
    resolved_at TIMESTAMP,
    resolution_notes TEXT
);

CREATE INDEX IF NOT EXISTS idx_proposal_community ON proposal(community_id);
CREATE INDEX IF NOT EXISTS idx_proposal_status ON proposal(status);

-- Votes. community_id records which side of a bi-communal proposal the
-- voter belongs to; the primary key makes a vote immutable and unique.
CREATE TABLE IF NOT EXISTS vote (
    proposal_id TEXT NOT NULL REFERENCES proposal(id) ON DELETE CASCADE,
    user_id TEXT NOT NULL,
    community_id TEXT NOT NULL,
    choice TEXT NOT NULL CHECK (choice IN ('yes', 'no')),
    cast_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (proposal_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_vote_proposal_side ON vote(proposal_id, community_id);

-- Rebellions
CREATE TABLE IF NOT EXISTS rebellion (
    id TEXT PRIMARY KEY,
    community_id TEXT NOT NULL REFERENCES community(id) ON DELETE CASCADE,
    leader_id TEXT,
    target_id TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'agitation'
        CHECK (status IN ('agitation', 'battle', 'resolved')),
    current_supports INTEGER NOT NULL DEFAULT 0,
    required_supports INTEGER NOT NULL,
    agitation_expires_at TIMESTAMP NOT NULL,
    is_leader_exiled BOOLEAN NOT NULL DEFAULT FALSE,
    resolution_notes TEXT,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- At most one non-resolved rebellion per community.
CREATE UNIQUE INDEX IF NOT EXISTS idx_rebellion_active
    ON rebellion(community_id) WHERE status != 'resolved';

-- Supports
CREATE TABLE IF NOT EXISTS support (
    rebellion_id TEXT NOT NULL REFERENCES rebellion(id) ON DELETE CASCADE,
    user_id TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (rebellion_id, user_id)
);

-- Negotiations
CREATE TABLE IF NOT EXISTS negotiation (
    id TEXT PRIMARY KEY,
    rebellion_id TEXT NOT NULL REFERENCES rebellion(id) ON DELETE CASCADE,
    requested_by TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending'
        CHECK (status IN ('pending', 'accepted', 'rejected')),
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    responded_at TIMESTAMP
);

-- At most one pending negotiation per rebellion.
CREATE UNIQUE INDEX IF NOT EXISTS idx_negotiation_pending
    ON negotiation(rebellion_id) WHERE status = 'pending';

-- Post-negotiation uprising cooldowns
CREATE TABLE IF NOT EXISTS uprising_cooldown (
    community_id TEXT PRIMARY KEY REFERENCES community(id) ON DELETE CASCADE,
    expires_at TIMESTAMP NOT NULL
);

-- Applied law effects with their own records
CREATE TABLE IF NOT EXISTS alliance (
    id TEXT PRIMARY KEY,
    community_a TEXT NOT NULL,
    community_b TEXT NOT NULL,
    proposal_id TEXT,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS war (
    id TEXT PRIMARY KEY,
    aggressor_id TEXT NOT NULL,
    defender_id TEXT NOT NULL,
    proposal_id TEXT,
    declared_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS currency_issue (
    id TEXT PRIMARY KEY,
    community_id TEXT NOT NULL REFERENCES community(id) ON DELETE CASCADE,
    gold_amount REAL NOT NULL,
    conversion_rate REAL NOT NULL,
    proposal_id TEXT,
    issued_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`
