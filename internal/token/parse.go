package token

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// timestampLayout is the format the cloud uses for ACCESS_BEGIN/ACCESS_END.
// Values are interpreted as UTC.
const timestampLayout = "2006-01-02 15:04:05"

// ParseMobile converts a raw get-token payload into a Mobile token.
//
// Required fields: TOKEN, USER_ID, PROFILE_ID. Timestamps are optional;
// when ACCESS_END is absent the expiry falls back to the token's JWT exp
// claim, if it has one.
func ParseMobile(payload map[string]any) (*Mobile, error) {
	tok := stringField(payload, "TOKEN")
	if tok == "" {
		return nil, ErrMissingToken
	}
	userID, err := intField(payload, "USER_ID")
	if err != nil {
		return nil, err
	}
	profileID, err := intField(payload, "PROFILE_ID")
	if err != nil {
		return nil, err
	}

	m := &Mobile{
		Token:          tok,
		UserID:         userID,
		ProfileID:      profileID,
		Phone:          stringField(payload, "PHONE"),
		UniqueDeviceID: stringField(payload, "UNIQUE_DEVICE_ID"),
		AccessBegin:    parseTimestamp(payload["ACCESS_BEGIN"]),
		AccessEnd:      parseTimestamp(payload["ACCESS_END"]),
		Raw:            clonePayload(payload),
	}
	if m.AccessEnd == nil {
		m.AccessEnd = jwtExpiry(tok)
	}
	return m, nil
}

// ParseCRM converts a raw auth-lk payload into a CRM token.
//
// Only TOKEN is required; USER_ID is optional for CRM tokens.
func ParseCRM(payload map[string]any) (*CRM, error) {
	tok := stringField(payload, "TOKEN")
	if tok == "" {
		return nil, ErrMissingToken
	}

	c := &CRM{
		Token:       tok,
		AccessBegin: parseTimestamp(payload["ACCESS_BEGIN"]),
		AccessEnd:   parseTimestamp(payload["ACCESS_END"]),
		Raw:         clonePayload(payload),
	}
	if _, ok := payload["USER_ID"]; ok {
		if id, err := intField(payload, "USER_ID"); err == nil {
			c.UserID = &id
		}
	}
	if c.AccessEnd == nil {
		c.AccessEnd = jwtExpiry(tok)
	}
	return c, nil
}

// jwtExpiry recovers the expiry from an unverified JWT exp claim.
// Returns nil when the token is not a JWT or carries no exp claim.
// The signature is deliberately not verified - we only need the hint,
// the cloud remains the authority on whether the token is accepted.
func jwtExpiry(raw string) *time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	t := exp.Time.UTC()
	return &t
}

// stringField extracts a field as a string, tolerating numeric values.
func stringField(payload map[string]any, key string) string {
	switch v := payload[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	default:
		return ""
	}
}

// intField extracts a field as an int. JSON decoding produces float64,
// but the cloud also returns numeric strings for some fields.
func intField(payload map[string]any, key string) (int, error) {
	switch v := payload[key].(type) {
	case int:
		return v, nil
	case float64:
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("%w: %s", ErrBadField, key)
		}
		return int(n), nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("%w: %s", ErrBadField, key)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrBadField, key)
	}
}

// parseTimestamp parses a cloud timestamp value. Unparseable or absent
// values yield nil, which the expiry predicate treats as "never expires".
func parseTimestamp(value any) *time.Time {
	s, ok := value.(string)
	if !ok || s == "" {
		return nil
	}
	t, err := time.ParseInLocation(timestampLayout, s, time.UTC)
	if err != nil {
		return nil
	}
	return &t
}

// clonePayload shallow-copies the raw payload so later mutation of the
// source map cannot alter the stored token.
func clonePayload(payload map[string]any) map[string]any {
	cpy := make(map[string]any, len(payload))
	for k, v := range payload {
		cpy[k] = v
	}
	return cpy
}
