package session

import "errors"

var (
	// ErrNoToken is returned when an operation needs a mobile token and
	// none has been issued or restored.
	ErrNoToken = errors.New("session: no mobile token")

	// ErrTokenExpired is returned when the mobile token exists but is past
	// its access window. Recovery requires a fresh phone confirmation.
	ErrTokenExpired = errors.New("session: mobile token expired")

	// ErrNotConfirmed is returned when token issuance is attempted before
	// a confirmation code has been checked.
	ErrNotConfirmed = errors.New("session: confirmation not completed")

	// ErrCRMRejected is returned when the CRM refuses the mobile token
	// during reauthorization.
	ErrCRMRejected = errors.New("session: crm rejected mobile token")
)
