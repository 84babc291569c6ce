// Copyright (c) 2026 Alexandre Moreau.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package effects applies the effects of passed laws.

The Applier interface is invoked exactly once per passed proposal, inside
the transaction that resolves it. A returned error moves the proposal to
the terminal "failed" status; the engine never retries an effect, so a
failed law has to be re-proposed.

DBApplier is the default implementation: message-of-the-day and tax laws
update the community row, currency/war/alliance laws insert their own
records, and the appointment/succession laws mutate member ranks under
the seat-limit and single-sovereign rules.
*/
package effects
