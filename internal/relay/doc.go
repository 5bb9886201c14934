// Package relay maintains the catalog of door relays reachable from the
// account.
//
// The cloud splits relays into two categories, "own" (isShared=0) and
// "shared" (isShared=1), and may legitimately return the same physical
// relay in both. A refresh fetches both categories, normalizes each raw
// record (canonical MAC, resolved door id), deduplicates across the two
// result sets, and replaces the catalog wholesale with a stable ordering:
// main entrance first, then lowercase address.
//
// Every record gets a uid derived from the account scope, the MAC and
// the door id, so repeated refreshes update doors in place instead of
// churning identity.
//
// The last good catalog is persisted to SQLite. When both category
// fetches fail the snapshot is served instead; a single failed category
// is logged and skipped.
package relay
