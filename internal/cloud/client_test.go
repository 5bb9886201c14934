package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewClient(Options{
		APIBaseURL: srv.URL,
		CRMBaseURL: srv.URL,
		Device: Device{
			ID:             "A1B2C3D4-0000-4000-8000-ABCDEF012345",
			AppVersion:     "999.999.999",
			Platform:       "android",
			APISource:      "mobile",
			AcceptLanguage: "ru",
			UserAgent:      "test-agent",
		},
	})
	return client, srv
}

func TestRequestConfirmation(t *testing.T) {
	var captured *http.Request
	var body map[string]any

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		captured = r.Clone(r.Context())
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decoding request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"authId":"f3c2","message":"code sent","confirmType":1,"timeoutMins":5}`))
	})

	ctx, err := client.RequestConfirmation(context.Background(), "9001112233")
	if err != nil {
		t.Fatalf("RequestConfirmation() error = %v", err)
	}

	if captured.URL.Path != confirmPath {
		t.Errorf("path = %q, want %q", captured.URL.Path, confirmPath)
	}
	if captured.Method != http.MethodPost {
		t.Errorf("method = %q, want POST", captured.Method)
	}
	if got := captured.Header.Get("Accept"); got != "application/json; version=v2" {
		t.Errorf("Accept = %q", got)
	}
	if got := captured.Header.Get("X-Device-Id"); got != client.DeviceID() {
		t.Errorf("X-Device-Id = %q, want %q", got, client.DeviceID())
	}
	if body["phone"] != "9001112233" {
		t.Errorf("payload phone = %v", body["phone"])
	}
	if body["deviceId"] != client.DeviceID() {
		t.Errorf("payload deviceId = %v", body["deviceId"])
	}
	if body["checkSkipAuth"] != float64(1) {
		t.Errorf("payload checkSkipAuth = %v", body["checkSkipAuth"])
	}

	if ctx.AuthID != "f3c2" {
		t.Errorf("AuthID = %q", ctx.AuthID)
	}
	if ctx.TimeoutMins != 5 {
		t.Errorf("TimeoutMins = %d", ctx.TimeoutMins)
	}
}

func TestCheckConfirmation(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"authId": "f3c2",
			"addresses": [
				{"USER_ID": "42", "ADDRESS": "Lenina 1, kv 5"},
				{"USER_ID": "", "ADDRESS": "dropped"},
				{"USER_ID": "77", "ADDRESS": "Kirova 9"}
			]
		}`))
	})

	result, err := client.CheckConfirmation(context.Background(), "9001112233", "1234")
	if err != nil {
		t.Fatalf("CheckConfirmation() error = %v", err)
	}

	if result.AuthID != "f3c2" {
		t.Errorf("AuthID = %q", result.AuthID)
	}
	if len(result.Addresses) != 2 {
		t.Fatalf("addresses = %d, want 2 (incomplete entries dropped)", len(result.Addresses))
	}
	if result.Addresses[0].UserID != "42" || result.Addresses[0].Address != "Lenina 1, kv 5" {
		t.Errorf("first address = %+v", result.Addresses[0])
	}
}

func TestRelays(t *testing.T) {
	var captured *http.Request

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		captured = r.Clone(r.Context())
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"addressUid":"abc","mac":"08:13:cd:00:0d:7f"}, "junk", {"addressUid":"def"}]`))
	})

	q := DefaultRelayQuery()
	items, err := client.Relays(context.Background(), "mob-token", 42, 7, q)
	if err != nil {
		t.Fatalf("Relays() error = %v", err)
	}

	if len(items) != 2 {
		t.Fatalf("relays = %d, want 2 (non-object elements dropped)", len(items))
	}
	if got := captured.URL.Query().Get("pageSize"); got != "30" {
		t.Errorf("pageSize = %q", got)
	}
	if got := captured.URL.Query().Get("isShared"); got != "0" {
		t.Errorf("isShared = %q", got)
	}
	if got := captured.Header.Get("Authorization"); got != "Bearer mob-token" {
		t.Errorf("Authorization = %q", got)
	}
	if got := captured.Header.Get("X-Api-User-Id"); got != "42" {
		t.Errorf("X-Api-User-Id = %q", got)
	}
	if got := captured.Header.Get("X-Api-Profile-Id"); got != "7" {
		t.Errorf("X-Api-Profile-Id = %q", got)
	}
}

func TestRelaysRejectsNonArray(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"error":"not a list"}`))
	})

	_, err := client.Relays(context.Background(), "tok", 1, 0, DefaultRelayQuery())
	if !errors.Is(err, ErrBadPayload) {
		t.Errorf("error = %v, want ErrBadPayload", err)
	}
}

func TestAuthLK(t *testing.T) {
	var captured *http.Request
	var body map[string]any

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		captured = r.Clone(r.Context())
		json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"TOKEN":"crm-token","USER_ID":42}`))
	})

	payload, err := client.AuthLK(context.Background(), "mob-token", 1, 7)
	if err != nil {
		t.Fatalf("AuthLK() error = %v", err)
	}

	if captured.URL.Path != crmAuthPath {
		t.Errorf("path = %q, want %q", captured.URL.Path, crmAuthPath)
	}
	if got := captured.Header.Get("Authorization"); got != "Bearer mob-token" {
		t.Errorf("Authorization = %q (mobile token must be the bearer)", got)
	}
	if got := captured.Header.Get("Accept"); got != "application/json" {
		t.Errorf("Accept = %q (CRM takes plain accept, no version suffix)", got)
	}
	if body["token"] != "mob-token" {
		t.Errorf("payload token = %v", body["token"])
	}
	if body["buyerId"] != float64(1) {
		t.Errorf("payload buyerId = %v", body["buyerId"])
	}
	if payload["TOKEN"] != "crm-token" {
		t.Errorf("response TOKEN = %v", payload["TOKEN"])
	}
}

func TestOpenDoor(t *testing.T) {
	t.Run("templated endpoint", func(t *testing.T) {
		var captured *http.Request
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			captured = r.Clone(r.Context())
			w.WriteHeader(http.StatusNoContent)
		})

		err := client.OpenDoor(context.Background(), "crm-token", "08:13:CD:00:0D:7F", 1, "")
		if err != nil {
			t.Fatalf("OpenDoor() error = %v", err)
		}
		if !strings.HasPrefix(captured.URL.Path, "/api/open/") {
			t.Errorf("path = %q", captured.URL.Path)
		}
		if !strings.HasSuffix(captured.URL.Path, "/1") {
			t.Errorf("path = %q, want door id suffix", captured.URL.Path)
		}
		if got := captured.Header.Get("Authorization"); got != "Bearer crm-token" {
			t.Errorf("Authorization = %q", got)
		}
	})

	t.Run("relative open link joined to CRM base", func(t *testing.T) {
		var captured *http.Request
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			captured = r.Clone(r.Context())
			w.WriteHeader(http.StatusNoContent)
		})

		err := client.OpenDoor(context.Background(), "crm-token", "08:13:CD:00:0D:7F", 1, "/api/open/custom/3")
		if err != nil {
			t.Fatalf("OpenDoor() error = %v", err)
		}
		if captured.URL.Path != "/api/open/custom/3" {
			t.Errorf("path = %q", captured.URL.Path)
		}
	})

	t.Run("auth rejection surfaces as APIError", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"token expired"}`))
		})

		err := client.OpenDoor(context.Background(), "stale", "08:13:CD:00:0D:7F", 1, "")
		if err == nil {
			t.Fatal("OpenDoor() error = nil, want APIError")
		}
		if !IsAuthRejected(err) {
			t.Errorf("IsAuthRejected(%v) = false, want true", err)
		}
	})
}

func TestFetchFrame(t *testing.T) {
	t.Run("returns snapshot bytes", func(t *testing.T) {
		client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("Authorization"); got != "" {
				t.Errorf("Authorization = %q, want no credentials on frame fetch", got)
			}
			w.Write([]byte("jpeg-bytes"))
		})

		frame, err := client.FetchFrame(context.Background(), srv.URL+"/frame.jpg")
		if err != nil {
			t.Fatalf("FetchFrame() error = %v", err)
		}
		if string(frame) != "jpeg-bytes" {
			t.Errorf("frame = %q", frame)
		}
	})

	t.Run("non-200 rejected", func(t *testing.T) {
		client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		_, err := client.FetchFrame(context.Background(), srv.URL+"/frame.jpg")
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Status != 404 {
			t.Errorf("error = %v, want 404 APIError", err)
		}
	})
}

func TestDoMapsTransportErrors(t *testing.T) {
	client := NewClient(Options{
		APIBaseURL: "http://127.0.0.1:1", // nothing listens here
		CRMBaseURL: "http://127.0.0.1:1",
	})

	_, err := client.RequestConfirmation(context.Background(), "9001112233")
	if !errors.Is(err, ErrNetwork) {
		t.Errorf("error = %v, want ErrNetwork", err)
	}
}

func TestIsAuthRejected(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"401", &APIError{Status: 401}, true},
		{"403", &APIError{Status: 403}, true},
		{"500", &APIError{Status: 500}, false},
		{"network", ErrNetwork, false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsAuthRejected(tt.err); got != tt.want {
				t.Errorf("IsAuthRejected() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGenerateDeviceID(t *testing.T) {
	id := GenerateDeviceID()
	if id != strings.ToUpper(id) {
		t.Errorf("device id %q is not uppercase", id)
	}
	if len(id) != 36 {
		t.Errorf("device id length = %d, want 36", len(id))
	}
}
