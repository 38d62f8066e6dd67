// Package auth provides token authentication for the dreame-bridge admin API.
//
// The bridge has no user accounts. A single bootstrap secret (configured
// as security.api_secret) is exchanged for a short-lived HS256 JWT via
// POST /api/v1/auth/token. Every other protected endpoint validates that
// JWT by signature and expiry only, with no storage lookup.
package auth
