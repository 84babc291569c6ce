// Copyright (c) 2026 Alexandre Moreau.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package router wires HTTP routes to handlers using Go 1.22 method and
// path-value patterns on the standard ServeMux.
package router
