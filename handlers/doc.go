// Copyright (c) 2026 Alexandre Moreau.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package handlers implements the HTTP layer of the governance engine.
//
// Handlers are grouped by lifecycle: communities.go covers creation,
// membership, and rank administration; proposals.go, voting.go, tally.go,
// and resolve.go cover the law lifecycle; uprisings.go and negotiations.go
// cover the rebellion state machine.
//
// Nothing here runs on a timer. Voting windows and agitation deadlines
// resolve lazily on the first read or write that touches an overdue row,
// guarded by compare-and-swap status updates so concurrent requests agree
// on a single outcome.
package handlers
