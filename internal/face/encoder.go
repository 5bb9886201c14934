package face

// DefaultThreshold is the accept distance for a face match. It mirrors
// the conventional threshold of the dlib face embedding space.
const DefaultThreshold = 0.5

// Encoder is the pluggable feature-extraction capability. Encode
// returns one vector per face detected in the image; an image with no
// faces yields an empty slice, not an error.
type Encoder interface {
	// Available reports whether the encoder can actually process images.
	Available() bool

	// Encode extracts one feature vector per detected face.
	Encode(image []byte) ([][]float64, error)

	// Distance computes the dissimilarity of two vectors; lower is more
	// similar.
	Distance(a, b []float64) float64
}

// DisabledEncoder is the null encoder used when no extraction backend
// is configured. Matching becomes a no-op and registrations fail.
type DisabledEncoder struct{}

func (DisabledEncoder) Available() bool { return false }

func (DisabledEncoder) Encode([]byte) ([][]float64, error) {
	return nil, ErrEncoderUnavailable
}

func (DisabledEncoder) Distance([]float64, []float64) float64 {
	return 1
}
