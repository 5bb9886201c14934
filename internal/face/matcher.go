package face

import (
	"context"
	"fmt"
	"sync"
)

// Logger is the logging interface for the matcher.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Match is an accepted frame match.
type Match struct {
	Name     string
	Distance float64
}

// Matcher holds the in-memory registry and runs frame matching.
// All methods are safe for concurrent use.
type Matcher struct {
	encoder   Encoder
	repo      Repository
	threshold float64
	logger    Logger

	mu    sync.RWMutex
	faces []KnownFace

	disabledOnce sync.Once
}

// NewMatcher creates a matcher. A nil encoder installs the
// DisabledEncoder; a zero threshold gets the default.
func NewMatcher(encoder Encoder, repo Repository, threshold float64) *Matcher {
	if encoder == nil {
		encoder = DisabledEncoder{}
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Matcher{
		encoder:   encoder,
		repo:      repo,
		threshold: threshold,
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the matcher.
func (m *Matcher) SetLogger(logger Logger) {
	if logger != nil {
		m.logger = logger
	}
}

// Available reports whether frame matching can do anything.
func (m *Matcher) Available() bool {
	return m.encoder.Available()
}

// Load populates the registry from the repository.
func (m *Matcher) Load(ctx context.Context) error {
	faces, err := m.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading known faces: %w", err)
	}

	m.mu.Lock()
	m.faces = faces
	m.mu.Unlock()

	m.logger.Info("known faces loaded", "count", len(faces))
	return nil
}

// Names returns the registered names in registration order.
func (m *Matcher) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, len(m.faces))
	for i, face := range m.faces {
		names[i] = face.Name
	}
	return names
}

// Add registers a face under the given name, computing its vector from
// the image. The first detected face in the image is used. An existing
// name is replaced.
func (m *Matcher) Add(ctx context.Context, name string, image []byte) error {
	if !m.encoder.Available() {
		return ErrEncoderUnavailable
	}
	if len(image) == 0 {
		return ErrEmptyImage
	}

	encodings, err := m.encoder.Encode(image)
	if err != nil {
		return fmt.Errorf("encoding image: %w", err)
	}
	if len(encodings) == 0 {
		return ErrNoFaceFound
	}

	face := KnownFace{Name: name, Encoding: encodings[0]}
	if err := m.repo.Save(ctx, face); err != nil {
		return err
	}

	m.mu.Lock()
	replaced := false
	for i := range m.faces {
		if m.faces[i].Name == name {
			m.faces[i] = face
			replaced = true
			break
		}
	}
	if !replaced {
		m.faces = append(m.faces, face)
	}
	m.mu.Unlock()

	m.logger.Info("known face added", "name", name, "features", len(face.Encoding), "replaced", replaced)
	return nil
}

// Remove deletes a face by name.
func (m *Matcher) Remove(ctx context.Context, name string) error {
	if err := m.repo.Delete(ctx, name); err != nil {
		return err
	}

	m.mu.Lock()
	kept := m.faces[:0]
	for _, face := range m.faces {
		if face.Name != name {
			kept = append(kept, face)
		}
	}
	m.faces = kept
	m.mu.Unlock()

	m.logger.Info("known face removed", "name", name)
	return nil
}

// Match looks for a known face in the frame. It returns nil when
// nothing matches, the encoder is disabled, the frame is empty or the
// registry is empty; only encoder failures produce an error.
func (m *Matcher) Match(frame []byte) (*Match, error) {
	if !m.encoder.Available() {
		m.disabledOnce.Do(func() {
			m.logger.Warn("face matching disabled: no encoder installed")
		})
		return nil, nil
	}
	if len(frame) == 0 {
		return nil, nil
	}

	m.mu.RLock()
	known := m.faces
	m.mu.RUnlock()
	if len(known) == 0 {
		return nil, nil
	}

	encodings, err := m.encoder.Encode(frame)
	if err != nil {
		return nil, fmt.Errorf("encoding frame: %w", err)
	}

	var best *Match
	for _, encoding := range encodings {
		for _, candidate := range known {
			distance := m.encoder.Distance(candidate.Encoding, encoding)
			if distance > m.threshold {
				continue
			}
			if best == nil || distance < best.Distance {
				best = &Match{Name: candidate.Name, Distance: distance}
			}
		}
	}

	if best != nil {
		m.logger.Debug("face matched", "name", best.Name, "distance", best.Distance)
	}
	return best, nil
}
