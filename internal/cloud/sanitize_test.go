package cloud

import (
	"reflect"
	"testing"
)

func TestSanitizeValue(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
		want  string
	}{
		{"token fully masked", "token", "abcdef123456", "***"},
		{"confirm code fully masked", "confirmCode", "1234", "***"},
		{"auth id fully masked", "authId", "f3c2a4b1", "***"},
		{"phone keeps ends", "phone", "9001112233", "90***33"},
		{"device id keeps ends", "X-Device-Id", "A1B2C3D4-EEEE", "A1***EE"},
		{"short sensitive value fully masked", "phone", "9001", "***"},
		{"empty value masked", "token", "", "***"},
		{"bearer keeps scheme", "Authorization", "Bearer secrettoken", "Bearer ***"},
		{"authorization without scheme", "Authorization", "rawsecret", "***"},
		{"plain key untouched", "pageSize", "30", "30"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeValue(tt.key, tt.value); got != tt.want {
				t.Errorf("sanitizeValue(%q, %q) = %q, want %q", tt.key, tt.value, got, tt.want)
			}
		})
	}
}

func TestSanitizePayload(t *testing.T) {
	payload := map[string]any{
		"phone":       "9001112233",
		"confirmCode": "1234",
		"checkSkipAuth": 1,
		"nested": map[string]any{
			"token": "verysecretvalue",
			"page":  float64(2),
		},
	}

	got := sanitizePayload(payload)

	want := map[string]any{
		"phone":         "90***33",
		"confirmCode":   "***",
		"checkSkipAuth": 1,
		"nested": map[string]any{
			"token": "***",
			"page":  float64(2),
		},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("sanitizePayload() = %#v, want %#v", got, want)
	}

	// Original payload must not be mutated.
	if payload["phone"] != "9001112233" {
		t.Error("sanitizePayload mutated its input")
	}
}

func TestSanitizePayloadMasksNonStringSensitiveValues(t *testing.T) {
	got := sanitizePayload(map[string]any{"code": 123456})
	if got["code"] != "***" {
		t.Errorf("numeric sensitive value = %v, want masked", got["code"])
	}
}
