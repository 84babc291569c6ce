// Copyright (c) 2026 Alexandre Moreau.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/statecraft-sim/server/auth"
	"github.com/statecraft-sim/server/cliparse"
	"github.com/statecraft-sim/server/effects"
	"github.com/statecraft-sim/server/laws"
	"github.com/statecraft-sim/server/middleware"
	"github.com/statecraft-sim/server/models"
	"github.com/statecraft-sim/server/rank"
)

// ProposalHandler handles the proposal lifecycle: creation (including the
// immediate decree path), listing, reads, and the sovereign fast-track.
type ProposalHandler struct {
	db      *sql.DB
	cfg     cliparse.Config
	reg     *laws.Registry
	applier effects.Applier
}

func NewProposalHandler(db *sql.DB, cfg cliparse.Config, reg *laws.Registry, applier effects.Applier) *ProposalHandler {
	return &ProposalHandler{db: db, cfg: cfg, reg: reg, applier: applier}
}

// Create validates and records a proposal. Decrees (sovereign_only passing)
// skip the voting window entirely: they resolve, and their effect applies,
// before the response is written.
func (h *ProposalHandler) Create(w http.ResponseWriter, r *http.Request) {
	communityID := r.PathValue("id")

	community, err := communityByID(h.db, communityID)
	if err != nil {
		if err == sql.ErrNoRows {
			middleware.ErrorResponse(w, http.StatusNotFound, "Community not found")
			return
		}
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create proposal")
		return
	}

	caller, err := memberByToken(h.db, r.Header.Get("X-Member-Token"))
	if err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid member token")
		return
	}
	if caller.CommunityID != communityID {
		middleware.ErrorResponse(w, http.StatusForbidden, "You are not a member of this community")
		return
	}

	var req models.CreateProposalRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	rule, ok := h.reg.RulesFor(req.LawType, community.Governance)
	if !ok {
		middleware.ErrorResponse(w, http.StatusBadRequest, "This law is not available under this governance")
		return
	}
	if !h.reg.CanPropose(req.LawType, community.Governance, caller.Rank) {
		middleware.ErrorResponse(w, http.StatusForbidden, "Your rank cannot propose this law")
		return
	}
	if err := h.reg.ValidateMetadata(req.LawType, req.Metadata); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	if status, msg := h.checkTargets(community, req.LawType, req.Metadata); status != 0 {
		middleware.ErrorResponse(w, status, msg)
		return
	}

	proposalID, err := auth.GenerateID(16)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create proposal")
		return
	}

	metadata := req.Metadata
	if len(metadata) == 0 {
		metadata = json.RawMessage("{}")
	}

	if rule.Passing == laws.PassSovereignOnly {
		h.createDecree(w, community, caller, proposalID, req.LawType, metadata)
		return
	}

	expiresAt := time.Now().UTC().Add(rule.TimeToPass)
	_, err = h.db.Exec(`
		INSERT INTO proposal (id, community_id, law_type, proposer_id, metadata, status, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, proposalID, communityID, req.LawType, caller.UserID, string(metadata), models.ProposalPending, expiresAt)
	if err != nil {
		slog.Error("Failed to insert proposal", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create proposal")
		return
	}

	slog.Info("Proposal created", "proposalId", proposalID, "lawType", req.LawType, "communityId", communityID)
	middleware.JSONResponse(w, http.StatusCreated, models.CreateProposalResponse{
		ProposalID: proposalID,
		Status:     models.ProposalPending,
		ExpiresAt:  &expiresAt,
	})
}

// createDecree records and applies a sovereign decree in one transaction.
// An effect failure leaves the proposal in failed status rather than
// rolling the record away.
func (h *ProposalHandler) createDecree(w http.ResponseWriter, community models.Community, caller models.Member, proposalID, lawType string, metadata json.RawMessage) {
	now := time.Now().UTC()

	tx, err := h.db.Begin()
	if err != nil {
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create proposal")
		return
	}
	defer tx.Rollback()

	status := models.ProposalPassed
	notes := "decreed by the sovereign"

	_, err = tx.Exec(`
		INSERT INTO proposal (id, community_id, law_type, proposer_id, metadata, status, resolved_at, resolution_notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, proposalID, community.ID, lawType, caller.UserID, string(metadata), status, now, notes)
	if err != nil {
		slog.Error("Failed to insert decree", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create proposal")
		return
	}

	p := models.Proposal{
		ID:          proposalID,
		CommunityID: community.ID,
		LawType:     lawType,
		ProposerID:  caller.UserID,
		Metadata:    metadata,
	}
	applyErr, err := applyGuarded(tx, h.applier, p)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create proposal")
		return
	}
	if applyErr != nil {
		slog.Warn("Decree effect failed", "proposalId", proposalID, "lawType", lawType, "error", applyErr)
		status = models.ProposalFailed
		notes = applyErr.Error()
		if _, err := tx.Exec(`
			UPDATE proposal SET status = $1, resolution_notes = $2 WHERE id = $3
		`, status, notes, proposalID); err != nil {
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create proposal")
			return
		}
	}

	if err := tx.Commit(); err != nil {
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create proposal")
		return
	}

	slog.Info("Decree resolved", "proposalId", proposalID, "lawType", lawType, "status", status)
	middleware.JSONResponse(w, http.StatusCreated, models.CreateProposalResponse{
		ProposalID: proposalID,
		Status:     status,
	})
}

// checkTargets runs the semantic checks schema validation cannot: targets
// must resolve at proposal time. Returns a zero status when everything
// checks out.
func (h *ProposalHandler) checkTargets(community models.Community, lawType string, metadata json.RawMessage) (int, string) {
	switch lawType {
	case laws.DeclareWar, laws.CfcAlliance:
		var meta models.TargetCommunityMetadata
		if err := json.Unmarshal(metadata, &meta); err != nil {
			return http.StatusBadRequest, "Invalid metadata"
		}
		if meta.TargetCommunityID == community.ID {
			return http.StatusBadRequest, "A community cannot target itself"
		}
		if _, err := communityByID(h.db, meta.TargetCommunityID); err != nil {
			if err == sql.ErrNoRows {
				return http.StatusBadRequest, "Target community not found"
			}
			return http.StatusInternalServerError, "Failed to create proposal"
		}
	case laws.AppointSecretary, laws.RoyalSuccession:
		var meta models.TargetMemberMetadata
		if err := json.Unmarshal(metadata, &meta); err != nil {
			return http.StatusBadRequest, "Invalid metadata"
		}
		if _, err := memberByID(h.db, community.ID, meta.TargetUserID); err != nil {
			if err == sql.ErrNoRows {
				return http.StatusBadRequest, "Target member not found in this community"
			}
			return http.StatusInternalServerError, "Failed to create proposal"
		}
	}
	return 0, ""
}

// List returns a community's proposals, newest first. Reading is what
// resolves overdue windows; each pending row gets a resolution pass.
func (h *ProposalHandler) List(w http.ResponseWriter, r *http.Request) {
	communityID := r.PathValue("id")

	if _, err := communityByID(h.db, communityID); err != nil {
		if err == sql.ErrNoRows {
			middleware.ErrorResponse(w, http.StatusNotFound, "Community not found")
			return
		}
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to list proposals")
		return
	}

	rows, err := h.db.Query(`
		SELECT id FROM proposal WHERE community_id = $1
		ORDER BY created_at DESC LIMIT 50
	`, communityID)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to list proposals")
		return
	}
	ids := make([]string, 0, 16)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to list proposals")
			return
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to list proposals")
		return
	}

	now := time.Now().UTC()
	views := make([]models.ProposalView, 0, len(ids))
	for _, id := range ids {
		view, err := h.loadView(id, now)
		if err != nil {
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to list proposals")
			return
		}
		views = append(views, view)
	}

	middleware.JSONResponse(w, http.StatusOK, map[string]any{"proposals": views})
}

// Get returns one proposal with its tallies, resolving it first if its
// window has closed.
func (h *ProposalHandler) Get(w http.ResponseWriter, r *http.Request) {
	proposalID := r.PathValue("id")

	view, err := h.loadView(proposalID, time.Now().UTC())
	if err != nil {
		if err == sql.ErrNoRows {
			middleware.ErrorResponse(w, http.StatusNotFound, "Proposal not found")
			return
		}
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to load proposal")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, view)
}

func (h *ProposalHandler) loadView(proposalID string, now time.Time) (models.ProposalView, error) {
	p, err := proposalByID(h.db, proposalID)
	if err != nil {
		return models.ProposalView{}, err
	}
	p, err = resolveDue(h.db, h.reg, h.applier, p, now)
	if err != nil {
		return models.ProposalView{}, err
	}

	total, bySide, err := proposalTallies(h.db, p.ID)
	if err != nil {
		return models.ProposalView{}, err
	}

	view := models.ProposalView{Proposal: p, Tally: total}
	if p.LawType == laws.CfcAlliance {
		view.SideTallies = bySide
	}
	return view, nil
}

// FastTrack lets the sovereign close an eligible law's voting window early.
// The tally is judged as it stands; an empty tally expires the proposal
// just as a naturally closed window would.
func (h *ProposalHandler) FastTrack(w http.ResponseWriter, r *http.Request) {
	proposalID := r.PathValue("id")

	p, err := proposalByID(h.db, proposalID)
	if err != nil {
		if err == sql.ErrNoRows {
			middleware.ErrorResponse(w, http.StatusNotFound, "Proposal not found")
			return
		}
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to fast-track proposal")
		return
	}

	caller, err := memberByToken(h.db, r.Header.Get("X-Member-Token"))
	if err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid member token")
		return
	}
	if caller.CommunityID != p.CommunityID || !rank.IsSovereign(caller.Rank) {
		middleware.ErrorResponse(w, http.StatusForbidden, "Only the sovereign can fast-track a proposal")
		return
	}

	community, err := communityByID(h.db, p.CommunityID)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to fast-track proposal")
		return
	}
	rule, ok := h.reg.RulesFor(p.LawType, community.Governance)
	if !ok || !rule.FastTrack {
		middleware.ErrorResponse(w, http.StatusForbidden, "This law cannot be fast-tracked")
		return
	}

	if p.Status != models.ProposalPending {
		middleware.ErrorResponse(w, http.StatusConflict, "Proposal is already resolved")
		return
	}

	now := time.Now().UTC()
	status, notes, err := computeOutcome(h.db, h.reg, p)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to fast-track proposal")
		return
	}
	p, err = finalizeProposal(h.db, h.applier, p, status, notes, now)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to fast-track proposal")
		return
	}

	total, _, err := proposalTallies(h.db, p.ID)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to fast-track proposal")
		return
	}

	slog.Info("Proposal fast-tracked", "proposalId", p.ID, "status", p.Status)
	middleware.JSONResponse(w, http.StatusOK, models.ProposalView{Proposal: p, Tally: total})
}
