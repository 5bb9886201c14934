// Package token holds the two credential records the intercom cloud issues
// and their expiry logic. It is pure data - no I/O, no locking.
//
// # Token model
//
// The mobile token is the primary identity credential, issued after
// phone-confirmation login. The CRM token is derived from it and is the
// only credential the CRM accepts for door-open commands. Both carry
// optional ACCESS_BEGIN/ACCESS_END timestamps.
//
// # Expiry
//
// A token is expired iff AccessEnd is set and now >= AccessEnd - margin.
// The margin (60s) absorbs clock and network skew. A nil AccessEnd means
// "never expires" - a deliberate permissive default for tokens whose
// expiry the cloud omits. When the token string itself is a JWT, the
// parser recovers the expiry from the unverified exp claim instead, so
// the permissive default only applies to truly opaque tokens.
package token
