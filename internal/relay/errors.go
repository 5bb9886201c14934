package relay

import "errors"

var (
	// ErrNoRelays is returned when both category fetches fail and no
	// snapshot exists to fall back on.
	ErrNoRelays = errors.New("relay: no relays available")

	// ErrNotFound is returned when a uid does not resolve to a catalog
	// record.
	ErrNotFound = errors.New("relay: not found")
)
