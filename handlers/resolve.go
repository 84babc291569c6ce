// Copyright (c) 2026 Alexandre Moreau.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/statecraft-sim/server/effects"
	"github.com/statecraft-sim/server/laws"
	"github.com/statecraft-sim/server/models"
)

// proposalByID loads a proposal row. Returns sql.ErrNoRows when missing.
func proposalByID(q querier, id string) (models.Proposal, error) {
	var p models.Proposal
	var metadata string
	var expires, resolved sql.NullTime
	var notes sql.NullString

	err := q.QueryRow(`
		SELECT id, community_id, law_type, proposer_id, metadata, status,
		       created_at, expires_at, resolved_at, resolution_notes
		FROM proposal WHERE id = $1
	`, id).Scan(&p.ID, &p.CommunityID, &p.LawType, &p.ProposerID, &metadata,
		&p.Status, &p.CreatedAt, &expires, &resolved, &notes)
	if err != nil {
		return models.Proposal{}, err
	}

	p.Metadata = json.RawMessage(metadata)
	if expires.Valid {
		p.ExpiresAt = &expires.Time
	}
	if resolved.Valid {
		p.ResolvedAt = &resolved.Time
	}
	if notes.Valid {
		p.ResolutionNotes = &notes.String
	}
	return p, nil
}

// resolveDue moves a pending proposal to its terminal status once the
// voting window has elapsed. Resolution happens lazily on read; there is
// no background scheduler. Safe under concurrent callers: the status CAS
// lets exactly one of them resolve, and everyone else re-reads.
func resolveDue(db *sql.DB, reg *laws.Registry, applier effects.Applier, p models.Proposal, now time.Time) (models.Proposal, error) {
	if p.Status != models.ProposalPending {
		return p, nil
	}
	if p.ExpiresAt == nil || now.Before(*p.ExpiresAt) {
		return p, nil
	}

	status, notes, err := computeOutcome(db, reg, p)
	if err != nil {
		return p, err
	}
	return finalizeProposal(db, applier, p, status, notes, now)
}

// computeOutcome derives the terminal status from vote rows. For alliance
// proposals each community's tally is judged under its own governance rule
// and both must pass.
func computeOutcome(db *sql.DB, reg *laws.Registry, p models.Proposal) (status, notes string, err error) {
	total, bySide, err := proposalTallies(db, p.ID)
	if err != nil {
		return "", "", err
	}

	if p.LawType == laws.CfcAlliance {
		return allianceOutcome(db, reg, p, total, bySide)
	}

	community, err := communityByID(db, p.CommunityID)
	if err != nil {
		return "", "", err
	}
	rule, ok := reg.RulesFor(p.LawType, community.Governance)
	if !ok {
		// Governance changed out from under a pending proposal.
		return models.ProposalExpired, "law is no longer available under this governance", nil
	}
	status, notes = outcomeFor(rule.Passing, total)
	return status, notes, nil
}

func allianceOutcome(db *sql.DB, reg *laws.Registry, p models.Proposal, total models.Tally, bySide map[string]models.Tally) (string, string, error) {
	if total.Yes+total.No == 0 {
		return models.ProposalExpired, "voting window closed with no votes cast", nil
	}

	var meta models.TargetCommunityMetadata
	if err := json.Unmarshal(p.Metadata, &meta); err != nil {
		return "", "", err
	}

	for _, side := range []string{p.CommunityID, meta.TargetCommunityID} {
		community, err := communityByID(db, side)
		if err != nil {
			return "", "", err
		}
		passing := laws.PassMajority
		if rule, ok := reg.RulesFor(p.LawType, community.Governance); ok {
			passing = rule.Passing
		}
		status, _ := outcomeFor(passing, bySide[side])
		if status != models.ProposalPassed {
			return models.ProposalRejected, "alliance requires approval from both communities", nil
		}
	}
	return models.ProposalPassed, "approved by both communities", nil
}

// finalizeProposal writes the terminal status and, for a pass, applies the
// law's effect in the same transaction. The WHERE status clause is the
// concurrency guard: zero rows affected means another request resolved
// first, and the caller gets that winner's result.
func finalizeProposal(db *sql.DB, applier effects.Applier, p models.Proposal, status, notes string, now time.Time) (models.Proposal, error) {
	tx, err := db.Begin()
	if err != nil {
		return p, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE proposal SET status = $1, resolved_at = $2, resolution_notes = $3
		WHERE id = $4 AND status = $5
	`, status, now, notes, p.ID, models.ProposalPending)
	if err != nil {
		return p, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return p, err
	}
	if affected == 0 {
		tx.Rollback()
		return proposalByID(db, p.ID)
	}

	if status == models.ProposalPassed {
		applyErr, err := applyGuarded(tx, applier, p)
		if err != nil {
			return p, err
		}
		if applyErr != nil {
			// The proposal passed its vote but the world no longer admits
			// the effect. Record the failure instead of passing silently.
			slog.Warn("Effect application failed", "proposalId", p.ID, "lawType", p.LawType, "error", applyErr)
			status = models.ProposalFailed
			notes = applyErr.Error()
			if _, err := tx.Exec(`
				UPDATE proposal SET status = $1, resolution_notes = $2 WHERE id = $3
			`, status, notes, p.ID); err != nil {
				return p, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return p, err
	}

	slog.Info("Proposal resolved", "proposalId", p.ID, "lawType", p.LawType, "status", status)
	p.Status = status
	p.ResolvedAt = &now
	p.ResolutionNotes = &notes
	return p, nil
}

// applyGuarded runs the effect inside a savepoint. A failing applier may
// have written rows before erroring; rolling back to the savepoint discards
// them while keeping the enclosing transaction, so a failed effect leaves
// no trace behind. The first return value is the applier's own error, the
// second any infrastructure error.
func applyGuarded(tx *sql.Tx, applier effects.Applier, p models.Proposal) (error, error) {
	if _, err := tx.Exec("SAVEPOINT apply_effect"); err != nil {
		return nil, err
	}
	if applyErr := applier.Apply(tx, p); applyErr != nil {
		if _, err := tx.Exec("ROLLBACK TO SAVEPOINT apply_effect"); err != nil {
			return nil, err
		}
		return applyErr, nil
	}
	if _, err := tx.Exec("RELEASE SAVEPOINT apply_effect"); err != nil {
		return nil, err
	}
	return nil, nil
}
