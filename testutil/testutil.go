// Copyright (c) 2026 Alexandre Moreau.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/statecraft-sim/server/auth"
	"github.com/statecraft-sim/server/cliparse"
	"github.com/statecraft-sim/server/db"
	"github.com/statecraft-sim/server/models"
)

// SetupTestDB creates a fresh in-memory database with the full schema.
// One connection only: an in-memory sqlite database is per-connection, so
// a second pooled connection would see empty tables.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := db.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	conn.SetMaxOpenConns(1)

	if err := db.CreateSchema(conn, "sqlite"); err != nil {
		conn.Close()
		t.Fatalf("Failed to create schema: %v", err)
	}

	t.Cleanup(func() { conn.Close() })
	return conn
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:         3324,
		DatabaseURL:  ":memory:",
		DatabaseType: "sqlite",
		AdminKeySalt: "test-admin-salt",
	}
}

// CreateTestCommunity inserts a community with a sovereign founder and
// returns the community ID, the founder's user ID, and their member token.
func CreateTestCommunity(t *testing.T, conn *sql.DB, governance string) (communityID, founderID, founderToken string) {
	t.Helper()

	communityID, _ = auth.GenerateID(16)
	founderID, _ = auth.GenerateID(16)
	founderToken, _ = auth.GenerateMemberToken()

	_, err := conn.Exec(`
		INSERT INTO community (id, name, governance, members_count)
		VALUES ($1, $2, $3, 1)
	`, communityID, "Test Nation "+communityID[:8], governance)
	if err != nil {
		t.Fatalf("Failed to create test community: %v", err)
	}

	_, err = conn.Exec(`
		INSERT INTO member (community_id, user_id, username, rank_tier, member_token)
		VALUES ($1, $2, 'Founder', 0, $3)
	`, communityID, founderID, founderToken)
	if err != nil {
		t.Fatalf("Failed to create founder: %v", err)
	}

	return communityID, founderID, founderToken
}

// CreateTestMember adds a member at the given rank tier and returns the
// user ID and member token. Bumps members_count like the join path does.
func CreateTestMember(t *testing.T, conn *sql.DB, communityID, username string, rankTier int) (userID, token string) {
	t.Helper()

	userID, _ = auth.GenerateID(16)
	token, _ = auth.GenerateMemberToken()

	_, err := conn.Exec(`
		INSERT INTO member (community_id, user_id, username, rank_tier, member_token)
		VALUES ($1, $2, $3, $4, $5)
	`, communityID, userID, username, rankTier, token)
	if err != nil {
		t.Fatalf("Failed to create test member: %v", err)
	}

	_, err = conn.Exec(`UPDATE community SET members_count = members_count + 1 WHERE id = $1`, communityID)
	if err != nil {
		t.Fatalf("Failed to bump members_count: %v", err)
	}

	return userID, token
}

// CreateLegacyMember adds a member using the old role-string column with a
// NULL rank tier, the shape migrated rows arrive in.
func CreateLegacyMember(t *testing.T, conn *sql.DB, communityID, username, role string) (userID, token string) {
	t.Helper()

	userID, _ = auth.GenerateID(16)
	token, _ = auth.GenerateMemberToken()

	_, err := conn.Exec(`
		INSERT INTO member (community_id, user_id, username, role, member_token)
		VALUES ($1, $2, $3, $4, $5)
	`, communityID, userID, username, role, token)
	if err != nil {
		t.Fatalf("Failed to create legacy member: %v", err)
	}

	_, err = conn.Exec(`UPDATE community SET members_count = members_count + 1 WHERE id = $1`, communityID)
	if err != nil {
		t.Fatalf("Failed to bump members_count: %v", err)
	}

	return userID, token
}

// CreateTestProposal inserts a pending proposal expiring at the given time
// and returns its ID.
func CreateTestProposal(t *testing.T, conn *sql.DB, communityID, proposerID, lawType, metadata string, expiresAt time.Time) string {
	t.Helper()

	proposalID, _ := auth.GenerateID(16)
	if metadata == "" {
		metadata = "{}"
	}

	_, err := conn.Exec(`
		INSERT INTO proposal (id, community_id, law_type, proposer_id, metadata, status, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, proposalID, communityID, lawType, proposerID, metadata, models.ProposalPending, expiresAt)
	if err != nil {
		t.Fatalf("Failed to create test proposal: %v", err)
	}

	return proposalID
}

// CastTestVote records a vote row directly.
func CastTestVote(t *testing.T, conn *sql.DB, proposalID, userID, communityID, choice string) {
	t.Helper()

	_, err := conn.Exec(`
		INSERT INTO vote (proposal_id, user_id, community_id, choice)
		VALUES ($1, $2, $3, $4)
	`, proposalID, userID, communityID, choice)
	if err != nil {
		t.Fatalf("Failed to cast test vote: %v", err)
	}
}

// CreateTestRebellion inserts a rebellion in the given status and returns
// its ID.
func CreateTestRebellion(t *testing.T, conn *sql.DB, communityID, leaderID, targetID, status string, required int, expiresAt time.Time) string {
	t.Helper()

	rebellionID, _ := auth.GenerateID(16)

	_, err := conn.Exec(`
		INSERT INTO rebellion (id, community_id, leader_id, target_id, status,
		                       current_supports, required_supports, agitation_expires_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6, $7)
	`, rebellionID, communityID, leaderID, targetID, status, required, expiresAt)
	if err != nil {
		t.Fatalf("Failed to create test rebellion: %v", err)
	}

	return rebellionID
}

// MakeRequest builds an HTTP request with an optional JSON body and headers
func MakeRequest(t *testing.T, method, path string, body interface{}, headers map[string]string) *http.Request {
	t.Helper()

	var req *http.Request
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
