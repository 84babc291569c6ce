// Copyright (c) 2026 Alexandre Moreau.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/statecraft-sim/server/cliparse"
	"github.com/statecraft-sim/server/effects"
	"github.com/statecraft-sim/server/laws"
	"github.com/statecraft-sim/server/middleware"
	"github.com/statecraft-sim/server/models"
)

// VoteHandler records votes on open proposals.
type VoteHandler struct {
	db      *sql.DB
	cfg     cliparse.Config
	reg     *laws.Registry
	applier effects.Applier
}

func NewVoteHandler(db *sql.DB, cfg cliparse.Config, reg *laws.Registry, applier effects.Applier) *VoteHandler {
	return &VoteHandler{db: db, cfg: cfg, reg: reg, applier: applier}
}

// CastVote records one immutable vote. Votes cast after the window has
// elapsed lose: the proposal is resolved first, then rejected as closed.
// For alliance proposals members of the target community vote too, and
// the vote row records which side they sit on.
func (h *VoteHandler) CastVote(w http.ResponseWriter, r *http.Request) {
	proposalID := r.PathValue("id")

	p, err := proposalByID(h.db, proposalID)
	if err != nil {
		if err == sql.ErrNoRows {
			middleware.ErrorResponse(w, http.StatusNotFound, "Proposal not found")
			return
		}
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to cast vote")
		return
	}

	p, err = resolveDue(h.db, h.reg, h.applier, p, time.Now().UTC())
	if err != nil {
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to cast vote")
		return
	}
	if p.Status != models.ProposalPending {
		middleware.ErrorResponse(w, http.StatusConflict, "Proposal is no longer open for voting")
		return
	}

	caller, err := memberByToken(h.db, r.Header.Get("X-Member-Token"))
	if err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid member token")
		return
	}

	if ok, status, msg := h.voterEligible(p, caller); !ok {
		middleware.ErrorResponse(w, status, msg)
		return
	}

	var req models.CastVoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.Choice != models.VoteYes && req.Choice != models.VoteNo {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Choice must be yes or no")
		return
	}

	_, err = h.db.Exec(`
		INSERT INTO vote (proposal_id, user_id, community_id, choice)
		VALUES ($1, $2, $3, $4)
	`, p.ID, caller.UserID, caller.CommunityID, req.Choice)
	if err != nil {
		if isUniqueViolation(err) {
			middleware.ErrorResponse(w, http.StatusConflict, "You have already voted on this proposal")
			return
		}
		slog.Error("Failed to insert vote", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to cast vote")
		return
	}

	slog.Info("Vote cast", "proposalId", p.ID, "communityId", caller.CommunityID, "choice", req.Choice)
	middleware.JSONResponse(w, http.StatusCreated, models.CastVoteResponse{
		ProposalID: p.ID,
		Choice:     req.Choice,
		Message:    "Vote recorded",
	})
}

// voterEligible checks community membership and the law's vote access for
// the voter's side. Each side of an alliance proposal is judged under its
// own community's governance.
func (h *VoteHandler) voterEligible(p models.Proposal, caller models.Member) (bool, int, string) {
	onProposal := caller.CommunityID == p.CommunityID
	if !onProposal && p.LawType == laws.CfcAlliance {
		var meta models.TargetCommunityMetadata
		if err := json.Unmarshal(p.Metadata, &meta); err == nil {
			onProposal = caller.CommunityID == meta.TargetCommunityID
		}
	}
	if !onProposal {
		return false, http.StatusForbidden, "You are not a member of a community voting on this proposal"
	}

	community, err := communityByID(h.db, caller.CommunityID)
	if err != nil {
		return false, http.StatusInternalServerError, "Failed to cast vote"
	}
	if _, ok := h.reg.RulesFor(p.LawType, community.Governance); !ok {
		// The target side of an alliance may run a governance where the
		// law carries no rule; those members vote under open access and
		// their tally resolves by majority.
		return true, 0, ""
	}
	if !h.reg.CanVote(p.LawType, community.Governance, caller.Rank) {
		return false, http.StatusForbidden, "Your rank cannot vote on this law"
	}
	return true, 0, ""
}
