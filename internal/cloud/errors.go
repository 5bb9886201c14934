package cloud

import (
	"errors"
	"fmt"
)

var (
	// ErrNetwork wraps transport-level failures, including timeouts.
	ErrNetwork = errors.New("cloud: network error")

	// ErrBadPayload is returned when a response does not have the shape
	// the endpoint is documented to return (e.g. relay list not an array).
	ErrBadPayload = errors.New("cloud: unexpected response shape")
)

// APIError is a non-2xx response from either cloud host.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cloud: api returned %d: %s", e.Status, e.Body)
}

// IsAuthRejected reports whether the error is an APIError with a 401 or
// 403 status - the signal that the presented credential was refused.
func IsAuthRejected(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status == 401 || apiErr.Status == 403
}
