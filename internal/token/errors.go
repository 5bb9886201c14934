package token

import "errors"

var (
	// ErrMissingToken is returned when a payload carries no TOKEN field.
	ErrMissingToken = errors.New("token: payload has no token")

	// ErrBadField is returned when a required numeric field is absent or
	// not convertible to an integer.
	ErrBadField = errors.New("token: bad field")
)
