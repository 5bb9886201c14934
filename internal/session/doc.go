// Package session owns the credential lifecycle for one subscriber
// account.
//
// Two tokens are managed:
//
//   - the mobile token, obtained interactively through phone
//     confirmation (or restored from persisted state); it cannot be
//     refreshed without the subscriber re-entering a code
//   - the CRM token, derived on demand from a valid mobile token; it is
//     refreshed automatically and invalidated whenever the CRM rejects it
//
// EnsureCRMToken is the hot path: every door-open goes through it.
// Concurrent callers finding the CRM token stale share one refresh via
// singleflight instead of racing reauthorizations against the CRM.
//
// The session never performs door commands or relay fetches itself; it
// hands out tokens and leaves the calls to the dispatch and relay
// packages.
package session
