// Copyright (c) 2026 Alexandre Moreau.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and response helpers.

# Logging

WithLogging wraps a handler with start/completion request logs. Each
request is tagged with a generated request id for correlating concurrent
engine operations.

# Responses

JSONResponse and ErrorResponse write the uniform JSON envelope every
endpoint uses. Rejections always carry a specific reason string; the API
never silently drops an action.

# Parsing

ParseJSONBody decodes a request body into the given struct and closes the
body.

# CORS

CORS allows cross-origin requests from the browser frontend, including
the X-Member-Token and X-Admin-Key headers.
*/
package middleware
