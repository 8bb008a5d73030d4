// Package auth provides credential verification and JWT access token
// issuance for the management API.
//
// Authentication is deliberately minimal: a single admin credential pair
// from configuration, checked on login, exchanged for a short-lived HS256
// access token. Tokens are validated by signature and expiry only, with
// no database lookup on the request path.
package auth
