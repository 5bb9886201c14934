// Package cloud is the HTTP transport to the intercom operator's cloud.
//
// The cloud is two hosts with separate credentials:
//
//   - the mobile API (phone-confirmation login, token issuance, relay
//     listings, account data), authenticated with the mobile token
//   - the CRM (door-open commands), authenticated with the CRM token
//
// This package owns the wire format only: the fixed synthetic-device
// header set, request timeouts, JSON decoding and the error taxonomy.
// Token lifecycle lives in the session package; relay normalization in
// the relay package.
//
// # Error taxonomy
//
//   - ErrNetwork wraps transport failures; a request timeout is a network
//     error, never a silent retry
//   - *APIError carries the status and body of any non-2xx response
//   - ErrBadPayload marks a response whose shape is not what the endpoint
//     is documented to return
//
// # Logging
//
// Request contexts are sanitized before logging: token-like values are
// fully masked, phone numbers and device ids partially, and the
// Authorization header keeps its scheme but masks the secret.
package cloud
