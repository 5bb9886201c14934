package face

import "errors"

var (
	// ErrNoFaceFound is returned when an image offered for registration
	// contains no detectable face.
	ErrNoFaceFound = errors.New("face: no face found in image")

	// ErrFaceNotFound is returned when removing a name that is not in
	// the registry.
	ErrFaceNotFound = errors.New("face: name not in registry")

	// ErrEncoderUnavailable is returned by registry writes when no face
	// encoder is installed.
	ErrEncoderUnavailable = errors.New("face: encoder unavailable")

	// ErrEmptyImage is returned when an empty image is offered for
	// registration.
	ErrEmptyImage = errors.New("face: empty image")
)
