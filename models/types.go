package models

import (
	"encoding/json"
	"time"
)

// Governance type constants
const (
	GovernanceMonarchy  = "monarchy"
	GovernanceDemocracy = "democracy"
)

// Proposal status constants
const (
	ProposalPending  = "pending"
	ProposalPassed   = "passed"
	ProposalRejected = "rejected"
	ProposalExpired  = "expired"
	ProposalFailed   = "failed"
)

// Rebellion status constants
const (
	RebellionAgitation = "agitation"
	RebellionBattle    = "battle"
	RebellionResolved  = "resolved"
)

// Negotiation status constants
const (
	NegotiationPending  = "pending"
	NegotiationAccepted = "accepted"
	NegotiationRejected = "rejected"
)

// Vote choices
const (
	VoteYes = "yes"
	VoteNo  = "no"
)

// Engine timing constants
const (
	// AgitationWindow bounds the support-gathering phase of a rebellion.
	AgitationWindow = 24 * time.Hour
	// NegotiationCooldown blocks a new uprising after a settled negotiation.
	NegotiationCooldown = 72 * time.Hour
)

// Request types

type CreateCommunityRequest struct {
	Name        string `json:"name"`
	Governance  string `json:"governance"`
	FounderName string `json:"founder_name"`
}

type JoinCommunityRequest struct {
	Username string `json:"username"`
}

type AssignRankRequest struct {
	RankTier int `json:"rank_tier"`
}

type CreateProposalRequest struct {
	LawType  string          `json:"law_type"`
	Metadata json.RawMessage `json:"metadata"`
}

type CastVoteRequest struct {
	Choice string `json:"choice"`
}

type RespondNegotiationRequest struct {
	Accept bool `json:"accept"`
}

type BattleOutcomeRequest struct {
	Won bool `json:"won"`
}

// Response types

type CreateCommunityResponse struct {
	CommunityID string `json:"community_id"`
	UserID      string `json:"user_id"`
	MemberToken string `json:"member_token"`
	AdminKey    string `json:"admin_key"`
}

type JoinCommunityResponse struct {
	UserID      string `json:"user_id"`
	MemberToken string `json:"member_token"`
}

type CreateProposalResponse struct {
	ProposalID string     `json:"proposal_id"`
	Status     string     `json:"status"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

type CastVoteResponse struct {
	ProposalID string `json:"proposal_id"`
	Choice     string `json:"choice"`
	Message    string `json:"message"`
}

type StartUprisingResponse struct {
	RebellionID        string    `json:"rebellion_id"`
	RequiredSupports   int       `json:"required_supports"`
	AgitationExpiresAt time.Time `json:"agitation_expires_at"`
}

type SupportResponse struct {
	RebellionID     string `json:"rebellion_id"`
	CurrentSupports int    `json:"current_supports"`
	Status          string `json:"status"`
}

type RequestNegotiationResponse struct {
	NegotiationID string `json:"negotiation_id"`
}

// Domain types

type Community struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Governance   string    `json:"governance"`
	MembersCount int       `json:"members_count"`
	MotdTitle    *string   `json:"motd_title,omitempty"`
	MotdContent  *string   `json:"motd_content,omitempty"`
	WorkTax      *float64  `json:"work_tax,omitempty"`
	ImportTariff *float64  `json:"import_tariff,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type Member struct {
	UserID      string    `json:"user_id"`
	CommunityID string    `json:"community_id"`
	Username    string    `json:"username"`
	Rank        int       `json:"rank_tier"` // normalized; legacy role strings never leak past scanning
	MemberToken string    `json:"-"`         // Never expose in JSON
	JoinedAt    time.Time `json:"joined_at"`
}

type Proposal struct {
	ID              string          `json:"id"`
	CommunityID     string          `json:"community_id"`
	LawType         string          `json:"law_type"`
	ProposerID      string          `json:"proposer_id"`
	Metadata        json.RawMessage `json:"metadata"`
	Status          string          `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	ExpiresAt       *time.Time      `json:"expires_at,omitempty"`
	ResolvedAt      *time.Time      `json:"resolved_at,omitempty"`
	ResolutionNotes *string         `json:"resolution_notes,omitempty"`
}

// Tally is a yes/no count for a proposal, or for one side of an alliance
// proposal.
type Tally struct {
	Yes int `json:"yes"`
	No  int `json:"no"`
}

// ProposalView is a proposal plus its derived vote state. For CFC_ALLIANCE
// the per-side tallies are computed from vote rows at read time; the
// "half-approved" intermediate is never stored.
type ProposalView struct {
	Proposal
	Tally       Tally            `json:"tally"`
	SideTallies map[string]Tally `json:"side_tallies,omitempty"`
}

type Rebellion struct {
	ID                 string    `json:"id"`
	CommunityID        string    `json:"community_id"`
	LeaderID           *string   `json:"leader_id"` // nil once the leader is exiled
	TargetID           string    `json:"target_id"`
	Status             string    `json:"status"`
	CurrentSupports    int       `json:"current_supports"`
	RequiredSupports   int       `json:"required_supports"`
	AgitationExpiresAt time.Time `json:"agitation_expires_at"`
	IsLeaderExiled     bool      `json:"is_leader_exiled"`
	ResolutionNotes    *string   `json:"resolution_notes,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

type Negotiation struct {
	ID          string     `json:"id"`
	RebellionID string     `json:"rebellion_id"`
	RequestedBy string     `json:"requested_by"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
}

// Law metadata payloads. Shape validation happens against the registry's
// JSON schemas; these are the decoded forms the effects layer consumes.

type TargetCommunityMetadata struct {
	TargetCommunityID string `json:"target_community_id"`
}

type TargetMemberMetadata struct {
	TargetUserID string `json:"target_user_id"`
}

type RateMetadata struct {
	Rate float64 `json:"rate"`
}

type CurrencyMetadata struct {
	GoldAmount     float64 `json:"gold_amount"`
	ConversionRate float64 `json:"conversion_rate"`
}

type MotdMetadata struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
