package relay

import (
	"fmt"
	"strconv"
	"strings"
)

// Opener is the relay controller sub-object some records carry. Its
// relay number is the most reliable door id source.
type Opener struct {
	RelayID  *int
	RelayNum *int
	MAC      string
}

// Record is one normalized door relay.
type Record struct {
	UID         string
	Address     string
	MAC         string
	DoorID      int
	IsMain      bool
	HasVideo    bool
	ImageURL    string
	OpenLink    string
	EntranceUID string
	PorchNum    string
	Opener      *Opener

	// BuyerID is the contract hint some records carry; see
	// Catalog.CoerceBuyerID for how it is (not) trusted.
	BuyerID *int
}

// parseRecord normalizes one raw relay payload. Records without a
// resolvable MAC cannot be commanded and are dropped (ok=false).
func parseRecord(payload map[string]any) (rec Record, ok bool) {
	rec.Address = stringAt(payload, "ADDRESS", "address")
	rec.IsMain = asBool(payload["IS_MAIN"])
	rec.HasVideo = asBool(payload["HAS_VIDEO"])
	rec.EntranceUID = stringAt(payload, "ENTRANCE_UID", "entranceUid")
	rec.PorchNum = stringAt(payload, "PORCH_NUM", "porchNum")
	rec.ImageURL = stringAt(payload, "IMAGE_URL", "imageUrl")
	rec.BuyerID = intAt(payload, "BUYER_ID", "buyerId")

	if links, isMap := payload["LINKS"].(map[string]any); isMap {
		rec.OpenLink = stringAt(links, "open")
	}

	if opener, isMap := payload["OPENER"].(map[string]any); isMap {
		rec.Opener = &Opener{
			RelayID:  intAt(opener, "relay_id", "relayId"),
			RelayNum: intAt(opener, "relay_num", "relayNum"),
			MAC:      stringAt(opener, "mac", "MAC_ADDR"),
		}
	}

	// The MAC lives either at the top level or on the opener; first
	// non-empty wins.
	mac := stringAt(payload, "MAC_ADDR", "mac")
	if mac == "" && rec.Opener != nil {
		mac = rec.Opener.MAC
	}
	rec.MAC = CanonicalMAC(mac)
	if rec.MAC == "" {
		return Record{}, false
	}

	rec.DoorID = resolveDoorID(rec.Opener, rec.PorchNum)
	return rec, true
}

// resolveDoorID picks the door id: opener relay number, then the porch
// number when it parses as an integer, then 1.
func resolveDoorID(opener *Opener, porchNum string) int {
	if opener != nil && opener.RelayNum != nil {
		return *opener.RelayNum
	}
	if n, err := strconv.Atoi(strings.TrimSpace(porchNum)); err == nil {
		return n
	}
	return 1
}

// dedupeKey identifies one physical relay across both category fetches.
func (r Record) dedupeKey() string {
	var relayID, relayNum string
	if r.Opener != nil {
		if r.Opener.RelayID != nil {
			relayID = strconv.Itoa(*r.Opener.RelayID)
		}
		if r.Opener.RelayNum != nil {
			relayNum = strconv.Itoa(*r.Opener.RelayNum)
		}
	}
	return strings.Join([]string{
		strings.ToLower(r.EntranceUID),
		strings.ToUpper(r.MAC),
		relayID,
		relayNum,
	}, "|")
}

// CanonicalMAC normalizes a MAC address to uppercase colon-separated
// form. Dash and dot separators and bare 12-digit forms are accepted;
// anything else is returned uppercased as-is.
func CanonicalMAC(raw string) string {
	mac := strings.ToUpper(strings.TrimSpace(raw))
	if mac == "" {
		return ""
	}
	mac = strings.NewReplacer("-", ":", ".", ":", " ", "").Replace(mac)
	if !strings.Contains(mac, ":") && len(mac) == 12 {
		var b strings.Builder
		for i := 0; i < 12; i += 2 {
			if i > 0 {
				b.WriteByte(':')
			}
			b.WriteString(mac[i : i+2])
		}
		return b.String()
	}
	return mac
}

// makeUID derives the stable door identity used across refreshes.
func makeUID(scopeID, mac string, doorID int) string {
	return fmt.Sprintf("%s:%s:%d", scopeID, mac, doorID)
}

// asBool normalizes the API's mixed boolean representations.
func asBool(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case float64:
		return val != 0
	case int:
		return val != 0
	case string:
		return val == "1" || strings.EqualFold(val, "true") || strings.EqualFold(val, "yes")
	default:
		return false
	}
}

// stringAt returns the first non-empty string value among the keys,
// tolerating numeric values.
func stringAt(payload map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := payload[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

// intAt returns the first value among the keys convertible to int,
// or nil.
func intAt(payload map[string]any, keys ...string) *int {
	for _, key := range keys {
		switch v := payload[key].(type) {
		case float64:
			n := int(v)
			return &n
		case int:
			n := v
			return &n
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				return &n
			}
		}
	}
	return nil
}
