package mqtt

import "errors"

// Sentinel errors for broker operations, checked with errors.Is().
var (
	// ErrNotConnected means the broker link is down; door events and
	// commands are dropped rather than queued.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrConnectionFailed is returned when the initial broker connection
	// cannot be established.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrPublishFailed is returned when a publish is not acknowledged.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed is returned when a command subscription is not
	// acknowledged.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrInvalidQoS rejects QoS levels outside 0..2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")

	// ErrInvalidTopic rejects empty topics.
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")
)
