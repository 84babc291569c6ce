// Copyright (c) 2026 Alexandre Moreau.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/statecraft-sim/server/auth"
	"github.com/statecraft-sim/server/cliparse"
	"github.com/statecraft-sim/server/middleware"
	"github.com/statecraft-sim/server/models"
	"github.com/statecraft-sim/server/rank"
)

// NegotiationHandler handles the sovereign's olive branch during agitation.
type NegotiationHandler struct {
	db  *sql.DB
	cfg cliparse.Config
}

func NewNegotiationHandler(db *sql.DB, cfg cliparse.Config) *NegotiationHandler {
	return &NegotiationHandler{db: db, cfg: cfg}
}

func negotiationByID(q querier, id string) (models.Negotiation, error) {
	var n models.Negotiation
	var responded sql.NullTime

	err := q.QueryRow(`
		SELECT id, rebellion_id, requested_by, status, created_at, responded_at
		FROM negotiation WHERE id = $1
	`, id).Scan(&n.ID, &n.RebellionID, &n.RequestedBy, &n.Status, &n.CreatedAt, &responded)
	if err != nil {
		return models.Negotiation{}, err
	}
	if responded.Valid {
		n.RespondedAt = &responded.Time
	}
	return n, nil
}

// Request opens a negotiation. Only the sovereign may sue for peace, and
// only while the uprising is still gathering support. The partial unique
// index keeps it to one pending negotiation per rebellion.
func (h *NegotiationHandler) Request(w http.ResponseWriter, r *http.Request) {
	rebellionID := r.PathValue("id")

	reb, err := rebellionByID(h.db, rebellionID)
	if err != nil {
		if err == sql.ErrNoRows {
			middleware.ErrorResponse(w, http.StatusNotFound, "Uprising not found")
			return
		}
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to request negotiation")
		return
	}

	reb, err = expireAgitationIfDue(h.db, reb, time.Now().UTC())
	if err != nil {
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to request negotiation")
		return
	}

	caller, err := memberByToken(h.db, r.Header.Get("X-Member-Token"))
	if err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid member token")
		return
	}
	if caller.CommunityID != reb.CommunityID || !rank.IsSovereign(caller.Rank) {
		middleware.ErrorResponse(w, http.StatusForbidden, "Only the sovereign can request negotiation")
		return
	}

	if reb.Status != models.RebellionAgitation {
		middleware.ErrorResponse(w, http.StatusConflict, "Negotiation is only possible while the uprising gathers support")
		return
	}
	if reb.LeaderID == nil {
		middleware.ErrorResponse(w, http.StatusConflict, "There is no leader left to negotiate with")
		return
	}

	negotiationID, err := auth.GenerateID(16)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to request negotiation")
		return
	}

	_, err = h.db.Exec(`
		INSERT INTO negotiation (id, rebellion_id, requested_by, status)
		VALUES ($1, $2, $3, $4)
	`, negotiationID, reb.ID, caller.UserID, models.NegotiationPending)
	if err != nil {
		if isUniqueViolation(err) {
			middleware.ErrorResponse(w, http.StatusConflict, "A negotiation is already pending")
			return
		}
		slog.Error("Failed to insert negotiation", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to request negotiation")
		return
	}

	slog.Info("Negotiation requested", "negotiationId", negotiationID, "rebellionId", reb.ID)
	middleware.JSONResponse(w, http.StatusCreated, models.RequestNegotiationResponse{
		NegotiationID: negotiationID,
	})
}

// Respond records the leader's answer. Acceptance stands the uprising down
// and starts the cooldown; rejection leaves the agitation running on its
// original clock.
func (h *NegotiationHandler) Respond(w http.ResponseWriter, r *http.Request) {
	negotiationID := r.PathValue("id")

	n, err := negotiationByID(h.db, negotiationID)
	if err != nil {
		if err == sql.ErrNoRows {
			middleware.ErrorResponse(w, http.StatusNotFound, "Negotiation not found")
			return
		}
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to respond to negotiation")
		return
	}
	if n.Status != models.NegotiationPending {
		middleware.ErrorResponse(w, http.StatusConflict, "Negotiation has already been answered")
		return
	}

	reb, err := rebellionByID(h.db, n.RebellionID)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to respond to negotiation")
		return
	}

	caller, err := memberByToken(h.db, r.Header.Get("X-Member-Token"))
	if err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid member token")
		return
	}
	// An exiled leader leaves nobody entitled to answer.
	if reb.LeaderID == nil || *reb.LeaderID != caller.UserID {
		middleware.ErrorResponse(w, http.StatusForbidden, "Only the uprising's leader can respond")
		return
	}

	var req models.RespondNegotiationRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	now := time.Now().UTC()
	status := models.NegotiationRejected
	if req.Accept {
		status = models.NegotiationAccepted
	}

	tx, err := h.db.Begin()
	if err != nil {
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to respond to negotiation")
		return
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE negotiation SET status = $1, responded_at = $2
		WHERE id = $3 AND status = $4
	`, status, now, n.ID, models.NegotiationPending)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to respond to negotiation")
		return
	}
	if affected, err := res.RowsAffected(); err != nil || affected == 0 {
		middleware.ErrorResponse(w, http.StatusConflict, "Negotiation has already been answered")
		return
	}

	if req.Accept {
		_, err = tx.Exec(`
			UPDATE rebellion SET status = $1, resolution_notes = $2
			WHERE id = $3 AND status != $1
		`, models.RebellionResolved, "settled by negotiation", reb.ID)
		if err != nil {
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to respond to negotiation")
			return
		}
		_, err = tx.Exec(`
			INSERT INTO uprising_cooldown (community_id, expires_at) VALUES ($1, $2)
			ON CONFLICT (community_id) DO UPDATE SET expires_at = excluded.expires_at
		`, reb.CommunityID, now.Add(models.NegotiationCooldown))
		if err != nil {
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to respond to negotiation")
			return
		}
	}

	if err := tx.Commit(); err != nil {
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to respond to negotiation")
		return
	}

	slog.Info("Negotiation answered", "negotiationId", n.ID, "status", status)
	n.Status = status
	n.RespondedAt = &now
	middleware.JSONResponse(w, http.StatusOK, n)
}
