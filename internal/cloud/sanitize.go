package cloud

import "strings"

// Keys whose values are masked completely in logs.
var fullMaskKeys = map[string]bool{
	"token":       true,
	"confirmcode": true,
	"code":        true,
	"password":    true,
	"authid":      true,
}

// Keys whose values keep their first and last characters as a debugging hint.
var partialMaskKeys = map[string]bool{
	"phone":            true,
	"x-device-id":      true,
	"unique_device_id": true,
}

// maskString hides part of a string value. With keepEnds the first and
// last two characters survive; short values are masked completely.
func maskString(value string, keepEnds bool) string {
	if value == "" {
		return "***"
	}
	if !keepEnds || len(value) <= 4 {
		return "***"
	}
	return value[:2] + "***" + value[len(value)-2:]
}

// sanitizeValue masks a single key/value pair for logging.
func sanitizeValue(key, value string) string {
	lowered := strings.ToLower(key)
	switch {
	case fullMaskKeys[lowered]:
		return maskString(value, false)
	case partialMaskKeys[lowered]:
		return maskString(value, true)
	case lowered == "authorization":
		// "Bearer <token>" - keep the scheme, mask the secret.
		scheme, secret, found := strings.Cut(value, " ")
		if found {
			return scheme + " " + maskString(secret, false)
		}
		return maskString(value, false)
	default:
		return value
	}
}

// sanitizeMap returns a copy of a string map safe for logging.
func sanitizeMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = sanitizeValue(k, v)
	}
	return out
}

// sanitizePayload returns a logging-safe copy of a JSON request body.
// Only string and numeric leaf values of sensitive keys are masked;
// nested structures are handled recursively.
func sanitizePayload(payload map[string]any) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		switch val := v.(type) {
		case string:
			out[k] = sanitizeValue(k, val)
		case map[string]any:
			out[k] = sanitizePayload(val)
		default:
			lowered := strings.ToLower(k)
			if fullMaskKeys[lowered] || partialMaskKeys[lowered] {
				out[k] = "***"
			} else {
				out[k] = v
			}
		}
	}
	return out
}
