// Copyright (c) 2026 Alexandre Moreau.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/statecraft-sim/server/laws"
	"github.com/statecraft-sim/server/models"
	"github.com/statecraft-sim/server/testutil"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	db := testutil.SetupTestDB(t)
	reg, err := laws.Load()
	if err != nil {
		t.Fatalf("Failed to load law catalog: %v", err)
	}
	return NewRouter(db, testutil.GetTestConfig(), reg)
}

func TestHealthEndpoint(t *testing.T) {
	mux := newTestRouter(t)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if w.Body.String() != "OK" {
		t.Errorf("Expected body 'OK', got '%s'", w.Body.String())
	}
}

func TestRootEndpoint(t *testing.T) {
	mux := newTestRouter(t)

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	expected := "statecraft API v1"
	if w.Body.String() != expected {
		t.Errorf("Expected body '%s', got '%s'", expected, w.Body.String())
	}
}

func TestRouteExistence(t *testing.T) {
	mux := newTestRouter(t)

	// Handlers may answer 400/401/404 for made-up IDs; only 405 means the
	// route itself is missing.
	testCases := []struct {
		method string
		path   string
	}{
		{"GET", "/health"},
		{"GET", "/"},

		{"POST", "/communities"},
		{"GET", "/communities/test-id"},
		{"POST", "/communities/test-id/members"},
		{"POST", "/communities/test-id/members/test-user/rank"},
		{"GET", "/communities/test-id/laws"},

		{"POST", "/communities/test-id/proposals"},
		{"GET", "/communities/test-id/proposals"},
		{"GET", "/proposals/test-id"},
		{"POST", "/proposals/test-id/fast-track"},
		{"POST", "/proposals/test-id/votes"},

		{"POST", "/communities/test-id/uprisings"},
		{"GET", "/communities/test-id/uprisings/active"},
		{"POST", "/uprisings/test-id/support"},
		{"POST", "/uprisings/test-id/exile"},
		{"POST", "/uprisings/test-id/outcome"},

		{"POST", "/uprisings/test-id/negotiations"},
		{"POST", "/negotiations/test-id/respond"},
	}

	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			if w.Code == http.StatusMethodNotAllowed {
				t.Errorf("Route %s %s returned 405, expected route handler to exist", tc.method, tc.path)
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	mux := newTestRouter(t)

	testCases := []struct {
		method string
		path   string
	}{
		{"POST", "/health"},
		{"DELETE", "/communities/test-id"},
		{"PUT", "/proposals/test-id/votes"},
	}

	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			if w.Code != http.StatusMethodNotAllowed {
				t.Errorf("Expected 405 for %s %s, got %d", tc.method, tc.path, w.Code)
			}
		})
	}
}

// TestGovernanceLifecycle walks a community from founding through a voted
// law to an uprising, entirely through the HTTP surface.
func TestGovernanceLifecycle(t *testing.T) {
	mux := newTestRouter(t)

	do := func(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
		req := testutil.MakeRequest(t, method, path, body, headers)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)
		return w
	}

	// Found a monarchy.
	w := do("POST", "/communities", models.CreateCommunityRequest{
		Name: "Eastmarch", Governance: "monarchy", FounderName: "Queen Maud",
	}, nil)
	testutil.AssertStatus(t, w, http.StatusCreated)

	var founded models.CreateCommunityResponse
	testutil.AssertJSON(t, w, &founded)
	crown := map[string]string{"X-Member-Token": founded.MemberToken}

	// Three subjects join.
	join := func(name string) models.JoinCommunityResponse {
		w := do("POST", "/communities/"+founded.CommunityID+"/members",
			models.JoinCommunityRequest{Username: name}, nil)
		testutil.AssertStatus(t, w, http.StatusCreated)
		var resp models.JoinCommunityResponse
		testutil.AssertJSON(t, w, &resp)
		return resp
	}
	alice := join("alice")
	bob := join("bob")
	cora := join("cora")

	// Seat alice on the council.
	w = do("POST", "/communities/"+founded.CommunityID+"/members/"+alice.UserID+"/rank",
		models.AssignRankRequest{RankTier: 1}, crown)
	testutil.AssertStatus(t, w, http.StatusOK)

	// The crown proposes a work tax; the council carries it by fast-track.
	w = do("POST", "/communities/"+founded.CommunityID+"/proposals", map[string]any{
		"law_type": "WORK_TAX",
		"metadata": map[string]any{"rate": 0.15},
	}, crown)
	testutil.AssertStatus(t, w, http.StatusCreated)

	var proposal models.CreateProposalResponse
	testutil.AssertJSON(t, w, &proposal)

	w = do("POST", "/proposals/"+proposal.ProposalID+"/votes",
		models.CastVoteRequest{Choice: "yes"}, crown)
	testutil.AssertStatus(t, w, http.StatusCreated)
	w = do("POST", "/proposals/"+proposal.ProposalID+"/votes",
		models.CastVoteRequest{Choice: "yes"}, map[string]string{"X-Member-Token": alice.MemberToken})
	testutil.AssertStatus(t, w, http.StatusCreated)

	w = do("POST", "/proposals/"+proposal.ProposalID+"/fast-track", nil, crown)
	testutil.AssertStatus(t, w, http.StatusOK)

	var passed models.ProposalView
	testutil.AssertJSON(t, w, &passed)
	if passed.Status != models.ProposalPassed {
		t.Fatalf("Expected work tax to pass, got %s", passed.Status)
	}

	// Bob rises against the crown.
	w = do("POST", "/communities/"+founded.CommunityID+"/uprisings", nil,
		map[string]string{"X-Member-Token": bob.MemberToken})
	testutil.AssertStatus(t, w, http.StatusCreated)

	var uprising models.StartUprisingResponse
	testutil.AssertJSON(t, w, &uprising)
	if uprising.RequiredSupports != 3 {
		t.Errorf("A 4-member community needs 3 supports, got %d", uprising.RequiredSupports)
	}

	// The crown sues for peace and bob accepts.
	w = do("POST", "/uprisings/"+uprising.RebellionID+"/negotiations", nil, crown)
	testutil.AssertStatus(t, w, http.StatusCreated)

	var negotiation models.RequestNegotiationResponse
	testutil.AssertJSON(t, w, &negotiation)

	w = do("POST", "/negotiations/"+negotiation.NegotiationID+"/respond",
		models.RespondNegotiationRequest{Accept: true},
		map[string]string{"X-Member-Token": bob.MemberToken})
	testutil.AssertStatus(t, w, http.StatusOK)

	// Peace holds: no active uprising, and the cooldown blocks a new one.
	w = do("GET", "/communities/"+founded.CommunityID+"/uprisings/active", nil, nil)
	testutil.AssertStatus(t, w, http.StatusNotFound)

	w = do("POST", "/communities/"+founded.CommunityID+"/uprisings", nil,
		map[string]string{"X-Member-Token": cora.MemberToken})
	testutil.AssertStatus(t, w, http.StatusConflict)
}
