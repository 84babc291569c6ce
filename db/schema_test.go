// Copyright (c) 2026 Alexandre Moreau.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"testing"

	_ "modernc.org/sqlite"
)

func TestOpenUnknownType(t *testing.T) {
	if _, err := Open("mysql", "whatever"); err == nil {
		t.Error("Expected an error for an unknown database type")
	}
}

func TestSqliteForeignKeysEnforced(t *testing.T) {
	conn, err := Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer conn.Close()
	conn.SetMaxOpenConns(1)

	if err := CreateSchema(conn, "sqlite"); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	// The pragma rides in the DSN, so every connection the pool opens has
	// it on. A one-off Exec would only cover a single connection.
	var fk int
	if err := conn.QueryRow(`PRAGMA foreign_keys`).Scan(&fk); err != nil {
		t.Fatalf("Failed to read pragma: %v", err)
	}
	if fk != 1 {
		t.Fatalf("Expected foreign_keys on, got %d", fk)
	}

	_, err = conn.Exec(`
		INSERT INTO member (community_id, user_id, username, rank_tier, member_token)
		VALUES ('no-such-community', 'u1', 'Ghost', 10, 'tok-1')
	`)
	if err == nil {
		t.Error("Expected a foreign key violation for an orphan member")
	}
}

func TestCreateSchemaIdempotent(t *testing.T) {
	conn, err := Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer conn.Close()
	conn.SetMaxOpenConns(1)

	for i := 0; i < 2; i++ {
		if err := CreateSchema(conn, "sqlite"); err != nil {
			t.Fatalf("CreateSchema run %d failed: %v", i+1, err)
		}
	}
}
