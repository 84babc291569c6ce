// Copyright (c) 2026 Alexandre Moreau.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package laws holds the static law catalog.

The catalog is embedded as YAML (catalog.yaml) and parsed once at startup
into a Registry. Each law type maps governance types to a GovernanceRule:
who may propose, who may vote, the passing condition, the voting window,
and whether the sovereign may fast-track a tally. A law with no rule for a
community's governance type is simply unavailable there.

Each law also names a JSON Schema (schemas/) describing its metadata
payload; ValidateMetadata is the shape gate applied before a proposal is
created. Semantic checks that need database access, such as target
community or member resolvability, happen in the handlers.

CanPropose and CanVote are the only permission gates for proposal creation
and vote acceptance. Registry is immutable after Load and safe for
concurrent use.
*/
package laws
