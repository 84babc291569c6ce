// Copyright (c) 2026 Alexandre Moreau.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"database/sql"
	"net/http"

	"github.com/statecraft-sim/server/cliparse"
	"github.com/statecraft-sim/server/effects"
	"github.com/statecraft-sim/server/handlers"
	"github.com/statecraft-sim/server/laws"
	"github.com/statecraft-sim/server/middleware"
)

func NewRouter(db *sql.DB, cfg cliparse.Config, reg *laws.Registry) *http.ServeMux {
	mux := http.NewServeMux()

	// Initialize handlers
	applier := effects.NewApplier()
	communityHandler := handlers.NewCommunityHandler(db, cfg, reg)
	proposalHandler := handlers.NewProposalHandler(db, cfg, reg, applier)
	voteHandler := handlers.NewVoteHandler(db, cfg, reg, applier)
	uprisingHandler := handlers.NewUprisingHandler(db, cfg, nil)
	negotiationHandler := handlers.NewNegotiationHandler(db, cfg)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Community and membership
	mux.HandleFunc("POST /communities", middleware.WithLogging(communityHandler.CreateCommunity))
	mux.HandleFunc("GET /communities/{id}", middleware.WithLogging(communityHandler.Get))
	mux.HandleFunc("POST /communities/{id}/members", middleware.WithLogging(communityHandler.Join))
	mux.HandleFunc("POST /communities/{id}/members/{user_id}/rank", middleware.WithLogging(communityHandler.AssignRank))
	mux.HandleFunc("GET /communities/{id}/laws", middleware.WithLogging(communityHandler.ListLaws))

	// Proposal lifecycle
	mux.HandleFunc("POST /communities/{id}/proposals", middleware.WithLogging(proposalHandler.Create))
	mux.HandleFunc("GET /communities/{id}/proposals", middleware.WithLogging(proposalHandler.List))
	mux.HandleFunc("GET /proposals/{id}", middleware.WithLogging(proposalHandler.Get))
	mux.HandleFunc("POST /proposals/{id}/fast-track", middleware.WithLogging(proposalHandler.FastTrack))
	mux.HandleFunc("POST /proposals/{id}/votes", middleware.WithLogging(voteHandler.CastVote))

	// Uprisings
	mux.HandleFunc("POST /communities/{id}/uprisings", middleware.WithLogging(uprisingHandler.Start))
	mux.HandleFunc("GET /communities/{id}/uprisings/active", middleware.WithLogging(uprisingHandler.GetActive))
	mux.HandleFunc("POST /uprisings/{id}/support", middleware.WithLogging(uprisingHandler.Support))
	mux.HandleFunc("POST /uprisings/{id}/exile", middleware.WithLogging(uprisingHandler.Exile))
	mux.HandleFunc("POST /uprisings/{id}/outcome", middleware.WithLogging(uprisingHandler.Outcome))

	// Negotiations
	mux.HandleFunc("POST /uprisings/{id}/negotiations", middleware.WithLogging(negotiationHandler.Request))
	mux.HandleFunc("POST /negotiations/{id}/respond", middleware.WithLogging(negotiationHandler.Respond))

	// Root endpoint
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("statecraft API v1"))
	})

	return mux
}
