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

// MoraleGate decides whether community conditions permit a new uprising.
// The default implementation only honors post-negotiation cooldowns;
// richer gates (happiness thresholds, war status) plug in here.
type MoraleGate interface {
	CanRebel(q querier, communityID string, now time.Time) (allowed bool, reason string, err error)
}

// CooldownGate blocks uprisings while a settled negotiation's cooldown is
// in force.
type CooldownGate struct{}

func (CooldownGate) CanRebel(q querier, communityID string, now time.Time) (bool, string, error) {
	var expires time.Time
	err := q.QueryRow(`
		SELECT expires_at FROM uprising_cooldown WHERE community_id = $1
	`, communityID).Scan(&expires)
	if err == sql.ErrNoRows {
		return true, "", nil
	}
	if err != nil {
		return false, "", err
	}
	if now.Before(expires) {
		return false, "The community is not ready for another uprising", nil
	}
	return true, "", nil
}

// RequiredSupports is the uprising sizing rule: half the community,
// but never fewer than three.
func RequiredSupports(membersCount int) int {
	required := membersCount / 2
	if required < 3 {
		required = 3
	}
	return required
}

// UprisingHandler handles the rebellion state machine: agitation, exile,
// battle, and resolution.
type UprisingHandler struct {
	db   *sql.DB
	cfg  cliparse.Config
	gate MoraleGate
}

func NewUprisingHandler(db *sql.DB, cfg cliparse.Config, gate MoraleGate) *UprisingHandler {
	if gate == nil {
		gate = CooldownGate{}
	}
	return &UprisingHandler{db: db, cfg: cfg, gate: gate}
}

// rebellionByID loads a rebellion row. Returns sql.ErrNoRows when missing.
func rebellionByID(q querier, id string) (models.Rebellion, error) {
	var reb models.Rebellion
	var leader, notes sql.NullString

	err := q.QueryRow(`
		SELECT id, community_id, leader_id, target_id, status, current_supports,
		       required_supports, agitation_expires_at, is_leader_exiled,
		       resolution_notes, created_at
		FROM rebellion WHERE id = $1
	`, id).Scan(&reb.ID, &reb.CommunityID, &leader, &reb.TargetID, &reb.Status,
		&reb.CurrentSupports, &reb.RequiredSupports, &reb.AgitationExpiresAt,
		&reb.IsLeaderExiled, &notes, &reb.CreatedAt)
	if err != nil {
		return models.Rebellion{}, err
	}

	if leader.Valid {
		reb.LeaderID = &leader.String
	}
	if notes.Valid {
		reb.ResolutionNotes = &notes.String
	}
	return reb, nil
}

// expireAgitationIfDue fizzles an agitation whose window elapsed without
// reaching the support threshold. Lazy, CAS-guarded: concurrent callers
// converge on whichever state won.
func expireAgitationIfDue(db *sql.DB, reb models.Rebellion, now time.Time) (models.Rebellion, error) {
	if reb.Status != models.RebellionAgitation || now.Before(reb.AgitationExpiresAt) {
		return reb, nil
	}

	res, err := db.Exec(`
		UPDATE rebellion SET status = $1, resolution_notes = $2
		WHERE id = $3 AND status = $4
	`, models.RebellionResolved, "failed to gather enough support in time", reb.ID, models.RebellionAgitation)
	if err != nil {
		return reb, err
	}
	if affected, err := res.RowsAffected(); err != nil {
		return reb, err
	} else if affected == 0 {
		return rebellionByID(db, reb.ID)
	}

	slog.Info("Uprising fizzled", "rebellionId", reb.ID, "communityId", reb.CommunityID)
	return rebellionByID(db, reb.ID)
}

// Start opens an uprising against the sitting sovereign. The partial
// unique index on non-resolved rebellions is the duplicate guard.
func (h *UprisingHandler) Start(w http.ResponseWriter, r *http.Request) {
	communityID := r.PathValue("id")

	community, err := communityByID(h.db, communityID)
	if err != nil {
		if err == sql.ErrNoRows {
			middleware.ErrorResponse(w, http.StatusNotFound, "Community not found")
			return
		}
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to start uprising")
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
	if rank.IsSovereign(caller.Rank) {
		middleware.ErrorResponse(w, http.StatusForbidden, "The sovereign cannot rise against the crown")
		return
	}

	now := time.Now().UTC()
	allowed, reason, err := h.gate.CanRebel(h.db, communityID, now)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to start uprising")
		return
	}
	if !allowed {
		middleware.ErrorResponse(w, http.StatusConflict, reason)
		return
	}

	target, err := sovereignOf(h.db, communityID)
	if err != nil {
		if err == sql.ErrNoRows {
			middleware.ErrorResponse(w, http.StatusConflict, "There is no sovereign to overthrow")
			return
		}
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to start uprising")
		return
	}

	rebellionID, err := auth.GenerateID(16)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to start uprising")
		return
	}

	required := RequiredSupports(community.MembersCount)
	expiresAt := now.Add(models.AgitationWindow)

	_, err = h.db.Exec(`
		INSERT INTO rebellion (id, community_id, leader_id, target_id, status,
		                       current_supports, required_supports, agitation_expires_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6, $7)
	`, rebellionID, communityID, caller.UserID, target.UserID, models.RebellionAgitation, required, expiresAt)
	if err != nil {
		if isUniqueViolation(err) {
			middleware.ErrorResponse(w, http.StatusConflict, "An uprising is already underway")
			return
		}
		slog.Error("Failed to insert rebellion", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to start uprising")
		return
	}

	slog.Info("Uprising started", "rebellionId", rebellionID, "communityId", communityID,
		"leaderId", caller.UserID, "requiredSupports", required)
	middleware.JSONResponse(w, http.StatusCreated, models.StartUprisingResponse{
		RebellionID:        rebellionID,
		RequiredSupports:   required,
		AgitationExpiresAt: expiresAt,
	})
}

// Support adds one member's backing. The supporter whose pledge meets the
// threshold tips the uprising into battle inside the same transaction.
func (h *UprisingHandler) Support(w http.ResponseWriter, r *http.Request) {
	rebellionID := r.PathValue("id")

	reb, err := rebellionByID(h.db, rebellionID)
	if err != nil {
		if err == sql.ErrNoRows {
			middleware.ErrorResponse(w, http.StatusNotFound, "Uprising not found")
			return
		}
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to support uprising")
		return
	}

	reb, err = expireAgitationIfDue(h.db, reb, time.Now().UTC())
	if err != nil {
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to support uprising")
		return
	}
	if reb.Status != models.RebellionAgitation {
		middleware.ErrorResponse(w, http.StatusConflict, "The uprising is no longer gathering support")
		return
	}

	caller, err := memberByToken(h.db, r.Header.Get("X-Member-Token"))
	if err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid member token")
		return
	}
	if caller.CommunityID != reb.CommunityID {
		middleware.ErrorResponse(w, http.StatusForbidden, "You are not a member of this community")
		return
	}
	if rank.IsSovereign(caller.Rank) {
		middleware.ErrorResponse(w, http.StatusForbidden, "The sovereign cannot support an uprising against the crown")
		return
	}
	if reb.LeaderID != nil && *reb.LeaderID == caller.UserID {
		middleware.ErrorResponse(w, http.StatusForbidden, "The uprising's leader is already counted")
		return
	}

	tx, err := h.db.Begin()
	if err != nil {
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to support uprising")
		return
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO support (rebellion_id, user_id) VALUES ($1, $2)
	`, reb.ID, caller.UserID)
	if err != nil {
		if isUniqueViolation(err) {
			middleware.ErrorResponse(w, http.StatusConflict, "You already support this uprising")
			return
		}
		slog.Error("Failed to insert support", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to support uprising")
		return
	}

	res, err := tx.Exec(`
		UPDATE rebellion SET current_supports = current_supports + 1
		WHERE id = $1 AND status = $2
	`, reb.ID, models.RebellionAgitation)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to support uprising")
		return
	}
	if affected, err := res.RowsAffected(); err != nil || affected == 0 {
		// Lost a race with expiry or the battle transition.
		middleware.ErrorResponse(w, http.StatusConflict, "The uprising is no longer gathering support")
		return
	}

	var current, required int
	err = tx.QueryRow(`
		SELECT current_supports, required_supports FROM rebellion WHERE id = $1
	`, reb.ID).Scan(&current, &required)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to support uprising")
		return
	}

	status := models.RebellionAgitation
	if current >= required {
		_, err = tx.Exec(`
			UPDATE rebellion SET status = $1 WHERE id = $2 AND status = $3
		`, models.RebellionBattle, reb.ID, models.RebellionAgitation)
		if err != nil {
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to support uprising")
			return
		}
		status = models.RebellionBattle
	}

	if err := tx.Commit(); err != nil {
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to support uprising")
		return
	}

	if status == models.RebellionBattle {
		slog.Info("Uprising reached battle", "rebellionId", reb.ID, "supports", current)
	}
	middleware.JSONResponse(w, http.StatusCreated, models.SupportResponse{
		RebellionID:     reb.ID,
		CurrentSupports: current,
		Status:          status,
	})
}

// Exile lets the sovereign banish the uprising's leader during agitation.
// The rebellion survives leaderless; only the member behind it goes.
func (h *UprisingHandler) Exile(w http.ResponseWriter, r *http.Request) {
	rebellionID := r.PathValue("id")

	reb, err := rebellionByID(h.db, rebellionID)
	if err != nil {
		if err == sql.ErrNoRows {
			middleware.ErrorResponse(w, http.StatusNotFound, "Uprising not found")
			return
		}
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to exile leader")
		return
	}

	reb, err = expireAgitationIfDue(h.db, reb, time.Now().UTC())
	if err != nil {
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to exile leader")
		return
	}

	caller, err := memberByToken(h.db, r.Header.Get("X-Member-Token"))
	if err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid member token")
		return
	}
	if caller.CommunityID != reb.CommunityID || !rank.IsSovereign(caller.Rank) {
		middleware.ErrorResponse(w, http.StatusForbidden, "Only the sovereign can exile the uprising's leader")
		return
	}

	if reb.Status != models.RebellionAgitation {
		middleware.ErrorResponse(w, http.StatusConflict, "Exile is only possible while the uprising gathers support")
		return
	}
	if reb.IsLeaderExiled {
		middleware.ErrorResponse(w, http.StatusConflict, "The uprising's leader is already exiled")
		return
	}

	res, err := h.db.Exec(`
		UPDATE rebellion SET is_leader_exiled = TRUE, leader_id = NULL
		WHERE id = $1 AND status = $2 AND is_leader_exiled = FALSE
	`, reb.ID, models.RebellionAgitation)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to exile leader")
		return
	}
	if affected, err := res.RowsAffected(); err != nil || affected == 0 {
		middleware.ErrorResponse(w, http.StatusConflict, "The uprising's leader is already exiled")
		return
	}

	slog.Info("Uprising leader exiled", "rebellionId", reb.ID, "communityId", reb.CommunityID)
	middleware.JSONResponse(w, http.StatusOK, map[string]string{"message": "The uprising's leader has been exiled"})
}

// Outcome records the battle result. The caller is the game's battle
// collaborator, authenticated by the community admin key rather than a
// member token. Resolving an already-resolved rebellion is a no-op.
func (h *UprisingHandler) Outcome(w http.ResponseWriter, r *http.Request) {
	rebellionID := r.PathValue("id")

	reb, err := rebellionByID(h.db, rebellionID)
	if err != nil {
		if err == sql.ErrNoRows {
			middleware.ErrorResponse(w, http.StatusNotFound, "Uprising not found")
			return
		}
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to record outcome")
		return
	}

	if err := auth.ValidateAdminKey(reb.CommunityID, r.Header.Get("X-Admin-Key"), h.cfg.AdminKeySalt); err != nil {
		middleware.ErrorResponse(w, http.StatusForbidden, "Invalid admin key")
		return
	}

	if reb.Status == models.RebellionAgitation {
		middleware.ErrorResponse(w, http.StatusConflict, "The battle has not begun")
		return
	}
	if reb.Status == models.RebellionResolved {
		middleware.JSONResponse(w, http.StatusOK, reb)
		return
	}

	var req models.BattleOutcomeRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	notes := "the crown held against the uprising"
	if req.Won {
		if reb.LeaderID != nil {
			notes = "the crown has fallen"
		} else {
			// A leaderless uprising can win the field but crowns no one.
			notes = "the rebels won the field, but leaderless they crowned no one"
		}
	}

	tx, err := h.db.Begin()
	if err != nil {
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to record outcome")
		return
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE rebellion SET status = $1, resolution_notes = $2
		WHERE id = $3 AND status = $4
	`, models.RebellionResolved, notes, reb.ID, models.RebellionBattle)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to record outcome")
		return
	}
	if affected, err := res.RowsAffected(); err != nil {
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to record outcome")
		return
	} else if affected == 0 {
		tx.Rollback()
		reb, err := rebellionByID(h.db, reb.ID)
		if err != nil {
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to record outcome")
			return
		}
		middleware.JSONResponse(w, http.StatusOK, reb)
		return
	}

	if req.Won && reb.LeaderID != nil {
		// Demote before crowning; the sovereign index allows only one.
		_, err = tx.Exec(`
			UPDATE member SET rank_tier = $1, role = NULL
			WHERE community_id = $2 AND user_id = $3
		`, rank.Ordinary, reb.CommunityID, reb.TargetID)
		if err != nil {
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to record outcome")
			return
		}
		_, err = tx.Exec(`
			UPDATE member SET rank_tier = $1, role = NULL
			WHERE community_id = $2 AND user_id = $3
		`, rank.Sovereign, reb.CommunityID, *reb.LeaderID)
		if err != nil {
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to record outcome")
			return
		}
	}

	if err := tx.Commit(); err != nil {
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to record outcome")
		return
	}

	slog.Info("Uprising resolved", "rebellionId", reb.ID, "won", req.Won, "notes", notes)

	resolved, err := rebellionByID(h.db, reb.ID)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to record outcome")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, resolved)
}

// GetActive returns the community's non-resolved rebellion, expiring a
// stale agitation on the way.
func (h *UprisingHandler) GetActive(w http.ResponseWriter, r *http.Request) {
	communityID := r.PathValue("id")

	var id string
	err := h.db.QueryRow(`
		SELECT id FROM rebellion WHERE community_id = $1 AND status != $2
	`, communityID, models.RebellionResolved).Scan(&id)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "No active uprising")
		return
	}
	if err != nil {
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to load uprising")
		return
	}

	reb, err := rebellionByID(h.db, id)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to load uprising")
		return
	}
	reb, err = expireAgitationIfDue(h.db, reb, time.Now().UTC())
	if err != nil {
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to load uprising")
		return
	}
	if reb.Status == models.RebellionResolved {
		middleware.ErrorResponse(w, http.StatusNotFound, "No active uprising")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, reb)
}
