package cloud

import (
	"encoding/json"
	"strconv"
)

// ConfirmContext is the get-confirm response: how the subscriber will
// receive their confirmation code.
type ConfirmContext struct {
	AuthID      string
	Message     string
	ConfirmType int
	TimeoutMins int
}

// ConfirmAddress is one contract address attached to the phone number.
// A subscriber with several contracts picks one before token issuance.
type ConfirmAddress struct {
	UserID  string
	Address string
}

// CheckConfirmResult is the check-confirm response.
type CheckConfirmResult struct {
	AuthID    string
	Addresses []ConfirmAddress
	Message   string
}

// RelayQuery holds the pagination parameters for a relay listing fetch.
type RelayQuery struct {
	Pagination int
	PageSize   int
	MainFirst  int
	IsShared   int
}

// DefaultRelayQuery mirrors what the official mobile app sends.
func DefaultRelayQuery() RelayQuery {
	return RelayQuery{Pagination: 1, PageSize: 30, MainFirst: 1}
}

// asString extracts a payload field as a string, tolerating numbers.
func asString(payload map[string]any, key string) string {
	switch v := payload[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// asInt extracts a payload field as an int; zero when absent or malformed.
func asInt(payload map[string]any, key string) int {
	switch v := payload[key].(type) {
	case float64:
		return int(v)
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0
		}
		return int(n)
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}
