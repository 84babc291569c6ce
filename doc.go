// Copyright (c) 2026 Alexandre Moreau.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the Statecraft governance API server.

Statecraft is a browser-based nation simulation. This server is its
Governance & Uprising engine: communities ruled by a ranked hierarchy,
a per-governance-type law catalog, proposal voting with several passing
conditions, and the rebellion state machine (agitation, battle, resolution
and negotiation).

# Starting the Server

The server requires environment variables or CLI flags for configuration:

	DATABASE_URL=postgres://... go run main.go

Or with flags:

	go run main.go -p 3324 -d "postgres://..." -t postgres

# Configuration

Required settings:

  - DATABASE_URL (-d): database connection string
  - ADMIN_KEY_SALT (--admin-salt): secret for community admin key HMAC

Optional settings:

  - PORT (-p): server port (default: 3324)
  - DATABASE_TYPE (-t): "postgres" or "sqlite" (default: sqlite)

# Architecture

The server uses a handler-based architecture with dependency injection:

  - handlers: HTTP request handlers (communities, proposals, voting, uprisings)
  - laws: static law catalog with per-governance-type voting rules
  - rank: rank hierarchy model (sovereign / secretary / member)
  - effects: applies the effects of passed laws
  - router: route definitions using Go 1.22+ routing
  - middleware: CORS, logging, JSON helpers
  - models: request/response and domain types
  - auth: token and admin key generation
  - db: connection and schema creation
  - cliparse: configuration parsing

See package documentation for each component.
*/
package main
