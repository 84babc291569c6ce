// Copyright (c) 2026 Alexandre Moreau.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package effects

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/statecraft-sim/server/auth"
	"github.com/statecraft-sim/server/laws"
	"github.com/statecraft-sim/server/models"
	"github.com/statecraft-sim/server/rank"
)

// Applier applies the effect of a passed proposal. It runs inside the
// transaction that resolves the proposal, so an effect either lands with
// the status change or not at all. An error moves the proposal to
// "failed"; effects are never retried.
type Applier interface {
	Apply(tx *sql.Tx, p models.Proposal) error
}

// DBApplier is the default Applier. It writes each law's effect straight
// to the database.
type DBApplier struct{}

func NewApplier() DBApplier {
	return DBApplier{}
}

func (DBApplier) Apply(tx *sql.Tx, p models.Proposal) error {
	switch p.LawType {
	case laws.MessageOfTheDay:
		return applyMotd(tx, p)
	case laws.WorkTax:
		return applyRate(tx, p, "work_tax")
	case laws.ImportTariff:
		return applyRate(tx, p, "import_tariff")
	case laws.IssueCurrency:
		return applyCurrency(tx, p)
	case laws.DeclareWar:
		return applyWar(tx, p)
	case laws.CfcAlliance:
		return applyAlliance(tx, p)
	case laws.AppointSecretary:
		return applyAppointSecretary(tx, p)
	case laws.RoyalSuccession:
		return applySuccession(tx, p)
	default:
		return fmt.Errorf("no effect registered for law type %s", p.LawType)
	}
}

func applyMotd(tx *sql.Tx, p models.Proposal) error {
	var meta models.MotdMetadata
	if err := json.Unmarshal(p.Metadata, &meta); err != nil {
		return fmt.Errorf("decode metadata: %w", err)
	}
	_, err := tx.Exec(`
		UPDATE community SET motd_title = $1, motd_content = $2 WHERE id = $3
	`, meta.Title, meta.Content, p.CommunityID)
	return err
}

func applyRate(tx *sql.Tx, p models.Proposal, column string) error {
	var meta models.RateMetadata
	if err := json.Unmarshal(p.Metadata, &meta); err != nil {
		return fmt.Errorf("decode metadata: %w", err)
	}
	// column is one of two fixed names picked by the dispatcher, never user input
	_, err := tx.Exec(`UPDATE community SET `+column+` = $1 WHERE id = $2`, meta.Rate, p.CommunityID)
	return err
}

func applyCurrency(tx *sql.Tx, p models.Proposal) error {
	var meta models.CurrencyMetadata
	if err := json.Unmarshal(p.Metadata, &meta); err != nil {
		return fmt.Errorf("decode metadata: %w", err)
	}
	id, err := auth.GenerateID(12)
	if err != nil {
		return err
	}
	_, err = tx.Exec(`
		INSERT INTO currency_issue (id, community_id, gold_amount, conversion_rate, proposal_id)
		VALUES ($1, $2, $3, $4, $5)
	`, id, p.CommunityID, meta.GoldAmount, meta.ConversionRate, p.ID)
	return err
}

func applyWar(tx *sql.Tx, p models.Proposal) error {
	var meta models.TargetCommunityMetadata
	if err := json.Unmarshal(p.Metadata, &meta); err != nil {
		return fmt.Errorf("decode metadata: %w", err)
	}
	id, err := auth.GenerateID(12)
	if err != nil {
		return err
	}
	_, err = tx.Exec(`
		INSERT INTO war (id, aggressor_id, defender_id, proposal_id)
		VALUES ($1, $2, $3, $4)
	`, id, p.CommunityID, meta.TargetCommunityID, p.ID)
	return err
}

func applyAlliance(tx *sql.Tx, p models.Proposal) error {
	var meta models.TargetCommunityMetadata
	if err := json.Unmarshal(p.Metadata, &meta); err != nil {
		return fmt.Errorf("decode metadata: %w", err)
	}
	id, err := auth.GenerateID(12)
	if err != nil {
		return err
	}
	_, err = tx.Exec(`
		INSERT INTO alliance (id, community_a, community_b, proposal_id)
		VALUES ($1, $2, $3, $4)
	`, id, p.CommunityID, meta.TargetCommunityID, p.ID)
	return err
}

// applyAppointSecretary elevates the target to rank 1, failing if the
// governance type's secretary seats are already filled. A full council is
// how a passed appointment ends up in "failed".
func applyAppointSecretary(tx *sql.Tx, p models.Proposal) error {
	var meta models.TargetMemberMetadata
	if err := json.Unmarshal(p.Metadata, &meta); err != nil {
		return fmt.Errorf("decode metadata: %w", err)
	}

	var governance string
	if err := tx.QueryRow(`SELECT governance FROM community WHERE id = $1`, p.CommunityID).Scan(&governance); err != nil {
		return fmt.Errorf("load community: %w", err)
	}

	seated, err := countRank(tx, p.CommunityID, rank.Secretary)
	if err != nil {
		return err
	}
	if limit := rank.SeatLimit(governance, rank.Secretary); limit >= 0 && seated >= limit {
		return fmt.Errorf("all %d secretary seats are filled", limit)
	}

	res, err := tx.Exec(`
		UPDATE member SET rank_tier = $1, role = NULL WHERE community_id = $2 AND user_id = $3
	`, rank.Secretary, p.CommunityID, meta.TargetUserID)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("target is not a member of the community")
	}
	return nil
}

// applySuccession demotes the reigning sovereign to an ordinary member and
// crowns the target. Demotion happens first so the one-sovereign index
// never sees two rank-0 rows.
func applySuccession(tx *sql.Tx, p models.Proposal) error {
	var meta models.TargetMemberMetadata
	if err := json.Unmarshal(p.Metadata, &meta); err != nil {
		return fmt.Errorf("decode metadata: %w", err)
	}

	var exists bool
	err := tx.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM member WHERE community_id = $1 AND user_id = $2)
	`, p.CommunityID, meta.TargetUserID).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("successor is not a member of the community")
	}

	_, err = tx.Exec(`
		UPDATE member SET rank_tier = $1, role = NULL
		WHERE community_id = $2 AND (rank_tier = 0 OR (rank_tier IS NULL AND role = 'founder'))
	`, rank.Ordinary, p.CommunityID)
	if err != nil {
		return fmt.Errorf("demote sovereign: %w", err)
	}

	_, err = tx.Exec(`
		UPDATE member SET rank_tier = 0, role = NULL WHERE community_id = $1 AND user_id = $2
	`, p.CommunityID, meta.TargetUserID)
	if err != nil {
		return fmt.Errorf("crown successor: %w", err)
	}
	return nil
}

// countRank counts members holding a rank, normalizing legacy role rows
// through the rank package rather than re-encoding the mapping in SQL.
func countRank(tx *sql.Tx, communityID string, want int) (int, error) {
	rows, err := tx.Query(`SELECT rank_tier, role FROM member WHERE community_id = $1`, communityID)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var tier sql.NullInt64
		var role sql.NullString
		if err := rows.Scan(&tier, &role); err != nil {
			return 0, err
		}
		var tierPtr *int
		if tier.Valid {
			v := int(tier.Int64)
			tierPtr = &v
		}
		if rank.Normalize(tierPtr, role.String) == want {
			count++
		}
	}
	return count, rows.Err()
}
