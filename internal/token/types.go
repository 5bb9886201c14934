package token

import "time"

// ExpiryMargin is subtracted from AccessEnd before comparing against the
// current time, so a token is treated as expired slightly early rather
// than failing mid-request.
const ExpiryMargin = 60 * time.Second

// Mobile is the primary identity credential for the mobile API.
// It is replaced wholesale on reauthorization, never partially mutated.
type Mobile struct {
	Token          string
	UserID         int
	ProfileID      int
	Phone          string
	UniqueDeviceID string
	AccessBegin    *time.Time
	AccessEnd      *time.Time

	// Raw preserves the original payload for persistence by the host.
	Raw map[string]any
}

// CRM is the secondary credential required for door-open commands.
// Derived from a valid Mobile token; invalidated and replaced whenever
// the CRM rejects it.
type CRM struct {
	Token       string
	UserID      *int
	AccessBegin *time.Time
	AccessEnd   *time.Time
	Raw         map[string]any
}

// ExpiredAt reports whether the mobile token is expired at the given time.
func (m *Mobile) ExpiredAt(now time.Time) bool {
	return expiredAt(m.AccessEnd, now)
}

// Expired reports whether the mobile token is expired now.
func (m *Mobile) Expired() bool {
	return m.ExpiredAt(time.Now().UTC())
}

// ExpiredAt reports whether the CRM token is expired at the given time.
func (c *CRM) ExpiredAt(now time.Time) bool {
	return expiredAt(c.AccessEnd, now)
}

// Expired reports whether the CRM token is expired now.
func (c *CRM) Expired() bool {
	return c.ExpiredAt(time.Now().UTC())
}

// expiredAt implements the shared expiry predicate:
// expired iff accessEnd is set and now >= accessEnd - margin.
func expiredAt(accessEnd *time.Time, now time.Time) bool {
	if accessEnd == nil {
		return false
	}
	return !now.Before(accessEnd.Add(-ExpiryMargin))
}
