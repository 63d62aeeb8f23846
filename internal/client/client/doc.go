// Package client talks to the journal HTTP API on behalf of the CLI.
//
// # Overview
//
// Client wraps the setup, unlock and entry routes. Every call sends the
// session user header; entry calls also send the journal token returned by
// Unlock.
//
// # Error Handling
//
// Non-2xx responses come back as *APIError. It unwraps to the matching
// sentinel so callers can use errors.Is: common.ErrValidation,
// common.ErrNotFound, common.ErrLocked, common.ErrRateLimited,
// common.ErrNotConfigured, ErrUnauthorized and ErrUnavailable. Transport
// failures wrap ErrUnavailable.
package client
