// Copyright (c) 2026 Alexandre Moreau.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the API.

# Request Types

Types for parsing incoming JSON:

  - CreateCommunityRequest: name, governance, founder_name
  - JoinCommunityRequest: username
  - AssignRankRequest: rank_tier
  - CreateProposalRequest: law_type, metadata
  - CastVoteRequest: choice
  - RespondNegotiationRequest: accept
  - BattleOutcomeRequest: won

# Response Types

Types for JSON responses:

  - CreateCommunityResponse: community_id, user_id, member_token, admin_key
  - JoinCommunityResponse: user_id, member_token
  - CreateProposalResponse: proposal_id, status, expires_at
  - CastVoteResponse: proposal_id, choice, message
  - StartUprisingResponse: rebellion_id, required_supports, agitation_expires_at
  - SupportResponse: rebellion_id, current_supports, status
  - ErrorResponse: error, message

# Domain Types

Internal data structures:

  - Community: governance type, member count, applied policy (motd, taxes)
  - Member: normalized rank, membership token
  - Proposal: law proposal lifecycle state
  - ProposalView: proposal plus derived tallies
  - Rebellion: uprising state machine record
  - Negotiation: sovereign-initiated settlement offer

# Constants

Proposal status values:

	ProposalPending  = "pending"
	ProposalPassed   = "passed"
	ProposalRejected = "rejected"
	ProposalExpired  = "expired"
	ProposalFailed   = "failed"

Rebellion status values:

	RebellionAgitation = "agitation"
	RebellionBattle    = "battle"
	RebellionResolved  = "resolved"

Governance types:

	GovernanceMonarchy  = "monarchy"
	GovernanceDemocracy = "democracy"

Timing:

	AgitationWindow     = 24h
	NegotiationCooldown = 72h
*/
package models
