// Package dispatch sends door-open commands to the CRM.
//
// The dispatcher owns exactly one recovery path: when the CRM rejects
// the presented token (401/403), the token is invalidated, a fresh one
// is derived from the mobile credential, and the command is retried
// once. Any second failure, and any non-auth failure, surfaces as a
// *CommandError without further retries. Opening a door is a physical
// side effect; blind retry loops belong nowhere near it.
package dispatch
