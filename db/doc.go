// Copyright (c) 2026 Alexandre Moreau.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db handles database connection and schema creation.

# Connection

Open selects the driver by database type:

	conn, err := db.Open(cfg.DatabaseType, cfg.DatabaseURL)

Supported types are "postgres" (lib/pq) and "sqlite" (modernc.org/sqlite).

# Schema Creation

CreateSchema initializes all required tables:

	if err := db.CreateSchema(conn, cfg.DatabaseType); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.

# Tables

The schema includes:

  - community: community metadata, governance type, applied policy
  - member: memberships with rank tier (legacy role column retained)
  - proposal: law proposal lifecycle state
  - vote: one immutable vote per member per proposal
  - rebellion: uprising state machine records
  - support: one support per member per rebellion
  - negotiation: sovereign settlement offers
  - uprising_cooldown: post-negotiation lockout per community
  - alliance, war, currency_issue: records created by passed laws

# Invariants enforced by the database

  - one sovereign per community (partial unique index on rank_tier = 0)
  - one vote per (proposal, user): primary key
  - one support per (rebellion, user): primary key
  - one non-resolved rebellion per community (partial unique index)
  - one pending negotiation per rebellion (partial unique index)

All foreign keys use ON DELETE CASCADE. The SQL stays inside the subset
both drivers accept, so one schema serves postgres and sqlite alike.
*/
package db
