// Package face manages the known-face registry and frame matching.
//
// Feature extraction is a pluggable capability behind the Encoder
// interface; the process works without one. With the DisabledEncoder
// installed, matching degrades to a logged no-op and registry writes
// fail with ErrEncoderUnavailable, but nothing crashes.
//
// Matching semantics: a frame may contain several faces. Each detected
// encoding is compared against every known vector; a known face is a
// candidate when its distance is at or below the threshold, and the
// globally closest candidate across all detected faces wins. Ties keep
// the first-seen candidate.
//
// The registry is held in memory and persisted to SQLite. Names are
// unique; re-adding a name replaces its vector.
package face
