// Copyright (c) 2026 Alexandre Moreau.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides token and key generation.

# Identifiers

GenerateID creates random hex identifiers for entities (communities,
proposals, rebellions). Identifiers are opaque and stable.

# Member Tokens

GenerateMemberToken creates the per-member bearer token issued when a
member joins a community. Handlers resolve the X-Member-Token header to a
member row; the token is never derivable from public data.

# Admin Keys

GenerateAdminKey / ValidateAdminKey implement the deterministic HMAC key
handed to community operators at creation time. It gates operator-only
endpoints, such as the battle collaborator reporting an uprising outcome.
*/
package auth
