// Copyright (c) 2026 Alexandre Moreau.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"

	"github.com/statecraft-sim/server/auth"
	"github.com/statecraft-sim/server/cliparse"
	"github.com/statecraft-sim/server/laws"
	"github.com/statecraft-sim/server/middleware"
	"github.com/statecraft-sim/server/models"
	"github.com/statecraft-sim/server/rank"
)

// CommunityHandler handles community creation, membership, and rank
// administration.
type CommunityHandler struct {
	db  *sql.DB
	cfg cliparse.Config
	reg *laws.Registry
}

func NewCommunityHandler(db *sql.DB, cfg cliparse.Config, reg *laws.Registry) *CommunityHandler {
	return &CommunityHandler{db: db, cfg: cfg, reg: reg}
}

// CreateCommunity creates a community and seats its founder as sovereign.
func (h *CommunityHandler) CreateCommunity(w http.ResponseWriter, r *http.Request) {
	var req models.CreateCommunityRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.FounderName = strings.TrimSpace(req.FounderName)
	if req.Name == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Community name is required")
		return
	}
	if req.FounderName == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Founder name is required")
		return
	}
	if req.Governance == "" {
		req.Governance = models.GovernanceMonarchy
	}
	if req.Governance != models.GovernanceMonarchy && req.Governance != models.GovernanceDemocracy {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Governance must be monarchy or democracy")
		return
	}

	communityID, err := auth.GenerateID(16)
	if err != nil {
		slog.Error("Failed to generate community ID", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create community")
		return
	}
	userID, err := auth.GenerateID(16)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create community")
		return
	}
	token, err := auth.GenerateMemberToken()
	if err != nil {
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create community")
		return
	}

	tx, err := h.db.Begin()
	if err != nil {
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create community")
		return
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO community (id, name, governance, members_count)
		VALUES ($1, $2, $3, 1)
	`, communityID, req.Name, req.Governance)
	if err != nil {
		if isUniqueViolation(err) {
			middleware.ErrorResponse(w, http.StatusConflict, "A community with this name already exists")
			return
		}
		slog.Error("Failed to insert community", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create community")
		return
	}

	_, err = tx.Exec(`
		INSERT INTO member (community_id, user_id, username, rank_tier, member_token)
		VALUES ($1, $2, $3, $4, $5)
	`, communityID, userID, req.FounderName, rank.Sovereign, token)
	if err != nil {
		slog.Error("Failed to insert founder", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create community")
		return
	}

	if err := tx.Commit(); err != nil {
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create community")
		return
	}

	adminKey := auth.GenerateAdminKey(communityID, h.cfg.AdminKeySalt)
	slog.Info("Community created", "communityId", communityID, "governance", req.Governance)

	middleware.JSONResponse(w, http.StatusCreated, models.CreateCommunityResponse{
		CommunityID: communityID,
		UserID:      userID,
		MemberToken: token,
		AdminKey:    adminKey,
	})
}

// Join adds a new ordinary member to an existing community.
func (h *CommunityHandler) Join(w http.ResponseWriter, r *http.Request) {
	communityID := r.PathValue("id")

	var req models.JoinCommunityRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Username is required")
		return
	}

	if _, err := communityByID(h.db, communityID); err != nil {
		if err == sql.ErrNoRows {
			middleware.ErrorResponse(w, http.StatusNotFound, "Community not found")
			return
		}
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to join community")
		return
	}

	userID, err := auth.GenerateID(16)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to join community")
		return
	}
	token, err := auth.GenerateMemberToken()
	if err != nil {
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to join community")
		return
	}

	tx, err := h.db.Begin()
	if err != nil {
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to join community")
		return
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO member (community_id, user_id, username, rank_tier, member_token)
		VALUES ($1, $2, $3, $4, $5)
	`, communityID, userID, req.Username, rank.Ordinary, token)
	if err != nil {
		if isUniqueViolation(err) {
			middleware.ErrorResponse(w, http.StatusConflict, "This username is already taken in this community")
			return
		}
		slog.Error("Failed to insert member", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to join community")
		return
	}

	_, err = tx.Exec(`
		UPDATE community SET members_count = members_count + 1 WHERE id = $1
	`, communityID)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to join community")
		return
	}

	if err := tx.Commit(); err != nil {
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to join community")
		return
	}

	slog.Info("Member joined", "communityId", communityID, "userId", userID)
	middleware.JSONResponse(w, http.StatusCreated, models.JoinCommunityResponse{
		UserID:      userID,
		MemberToken: token,
	})
}

// Get returns a community's public state, including who currently holds
// the crown.
func (h *CommunityHandler) Get(w http.ResponseWriter, r *http.Request) {
	communityID := r.PathValue("id")

	community, err := communityByID(h.db, communityID)
	if err != nil {
		if err == sql.ErrNoRows {
			middleware.ErrorResponse(w, http.StatusNotFound, "Community not found")
			return
		}
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to load community")
		return
	}

	var sovereignID *string
	if sov, err := sovereignOf(h.db, communityID); err == nil {
		sovereignID = &sov.UserID
	} else if err != sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to load community")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, struct {
		models.Community
		SovereignID *string `json:"sovereign_id"`
	}{community, sovereignID})
}

// AssignRank lets the sovereign promote or demote a member directly.
// The crown itself is never assigned this way.
func (h *CommunityHandler) AssignRank(w http.ResponseWriter, r *http.Request) {
	communityID := r.PathValue("id")
	targetID := r.PathValue("user_id")

	caller, err := memberByToken(h.db, r.Header.Get("X-Member-Token"))
	if err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid member token")
		return
	}
	if caller.CommunityID != communityID || !rank.IsSovereign(caller.Rank) {
		middleware.ErrorResponse(w, http.StatusForbidden, "Only the sovereign can assign ranks")
		return
	}

	var req models.AssignRankRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.RankTier == rank.Sovereign {
		middleware.ErrorResponse(w, http.StatusConflict, "The crown changes hands only through succession or uprising")
		return
	}
	if req.RankTier != rank.Secretary && req.RankTier < rank.Ordinary {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Unknown rank tier")
		return
	}

	community, err := communityByID(h.db, communityID)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to assign rank")
		return
	}

	target, err := memberByID(h.db, communityID, targetID)
	if err != nil {
		if err == sql.ErrNoRows {
			middleware.ErrorResponse(w, http.StatusNotFound, "Member not found")
			return
		}
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to assign rank")
		return
	}
	if rank.IsSovereign(target.Rank) {
		middleware.ErrorResponse(w, http.StatusConflict, "The sovereign cannot be reassigned")
		return
	}

	if req.RankTier == rank.Secretary && target.Rank != rank.Secretary {
		limit := rank.SeatLimit(community.Governance, rank.Secretary)
		if limit >= 0 {
			seated, err := countMembersWithRank(h.db, communityID, rank.Secretary)
			if err != nil {
				middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to assign rank")
				return
			}
			if seated >= limit {
				middleware.ErrorResponse(w, http.StatusConflict, "All secretary seats are filled")
				return
			}
		}
	}

	_, err = h.db.Exec(`
		UPDATE member SET rank_tier = $1, role = NULL
		WHERE community_id = $2 AND user_id = $3
	`, req.RankTier, communityID, targetID)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to assign rank")
		return
	}

	slog.Info("Rank assigned", "communityId", communityID, "userId", targetID, "rankTier", req.RankTier)
	middleware.JSONResponse(w, http.StatusOK, map[string]string{"message": "Rank updated"})
}

// ListLaws returns the laws available under the community's governance,
// with the voting rules each one carries.
func (h *CommunityHandler) ListLaws(w http.ResponseWriter, r *http.Request) {
	communityID := r.PathValue("id")

	community, err := communityByID(h.db, communityID)
	if err != nil {
		if err == sql.ErrNoRows {
			middleware.ErrorResponse(w, http.StatusNotFound, "Community not found")
			return
		}
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to list laws")
		return
	}

	type lawEntry struct {
		Type        string `json:"type"`
		Label       string `json:"label"`
		Description string `json:"description"`
		VoteAccess  string `json:"vote_access"`
		Passing     string `json:"passing"`
		TimeToPass  string `json:"time_to_pass"`
		FastTrack   bool   `json:"fast_track"`
	}

	available := h.reg.Available(community.Governance)
	entries := make([]lawEntry, 0, len(available))
	for _, def := range available {
		rule, ok := h.reg.RulesFor(def.Type, community.Governance)
		if !ok {
			continue
		}
		entries = append(entries, lawEntry{
			Type:        def.Type,
			Label:       def.Label,
			Description: def.Description,
			VoteAccess:  rule.VoteAccess,
			Passing:     rule.Passing,
			TimeToPass:  rule.TimeToPass.String(),
			FastTrack:   rule.FastTrack,
		})
	}

	middleware.JSONResponse(w, http.StatusOK, map[string]any{
		"governance": community.Governance,
		"laws":       entries,
	})
}
