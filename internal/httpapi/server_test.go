package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/smolnikov/domofon-core/internal/cloud"
	"github.com/smolnikov/domofon-core/internal/dispatch"
	"github.com/smolnikov/domofon-core/internal/face"
	"github.com/smolnikov/domofon-core/internal/infrastructure/config"
	"github.com/smolnikov/domofon-core/internal/infrastructure/logging"
	"github.com/smolnikov/domofon-core/internal/relay"
	"github.com/smolnikov/domofon-core/internal/session"
	"github.com/smolnikov/domofon-core/internal/token"
)

const testToken = "test-token-0123456789abcdef"

// ─── Mock Dependencies ───────────────────────────────────────────────

type mockCatalog struct {
	doors      []relay.Record
	refreshErr error
	refreshed  bool
}

func (m *mockCatalog) Refresh(_ context.Context) ([]relay.Record, error) {
	m.refreshed = true
	if m.refreshErr != nil {
		return nil, m.refreshErr
	}
	return m.doors, nil
}

func (m *mockCatalog) Doors() []relay.Record { return m.doors }

func (m *mockCatalog) Get(uid string) (relay.Record, error) {
	for _, rec := range m.doors {
		if rec.UID == uid {
			return rec, nil
		}
	}
	return relay.Record{}, relay.ErrNotFound
}

type openCall struct {
	mac      string
	doorID   int
	openLink string
}

type mockOpener struct {
	err   error
	calls []openCall
}

func (m *mockOpener) OpenDoor(_ context.Context, mac string, doorID int, openLink string) error {
	m.calls = append(m.calls, openCall{mac: mac, doorID: doorID, openLink: openLink})
	return m.err
}

type mockFaces struct {
	available bool
	names     []string
	addErr    error
	removeErr error
	added     map[string][]byte
	removed   []string
}

func (m *mockFaces) Available() bool { return m.available }
func (m *mockFaces) Names() []string { return m.names }

func (m *mockFaces) Add(_ context.Context, name string, image []byte) error {
	if m.addErr != nil {
		return m.addErr
	}
	if m.added == nil {
		m.added = make(map[string][]byte)
	}
	m.added[name] = image
	return nil
}

func (m *mockFaces) Remove(_ context.Context, name string) error {
	if m.removeErr != nil {
		return m.removeErr
	}
	m.removed = append(m.removed, name)
	return nil
}

type mockAccount struct {
	confirmErr   error
	checkResult  *cloud.CheckConfirmResult
	checkErr     error
	authMobile   *token.Mobile
	authErr      error
	ensureMobile *token.Mobile
	ensureErr    error
	mobileRaw    map[string]any
	crmRaw       map[string]any
}

func (m *mockAccount) RequestConfirmation(_ context.Context) (*cloud.ConfirmContext, error) {
	if m.confirmErr != nil {
		return nil, m.confirmErr
	}
	return &cloud.ConfirmContext{Message: "code sent", ConfirmType: 1, TimeoutMins: 5}, nil
}

func (m *mockAccount) CheckConfirmation(_ context.Context, _ string) (*cloud.CheckConfirmResult, error) {
	if m.checkErr != nil {
		return nil, m.checkErr
	}
	return m.checkResult, nil
}

func (m *mockAccount) Authenticate(_ context.Context, _ string) (*token.Mobile, error) {
	if m.authErr != nil {
		return nil, m.authErr
	}
	return m.authMobile, nil
}

func (m *mockAccount) EnsureMobileToken(_ context.Context) (*token.Mobile, error) {
	if m.ensureErr != nil {
		return nil, m.ensureErr
	}
	return m.ensureMobile, nil
}

func (m *mockAccount) Snapshot() (map[string]any, map[string]any) {
	return m.mobileRaw, m.crmRaw
}

type mockCloud struct {
	userInfo map[string]any
	balance  map[string]any
	err      error
}

func (m *mockCloud) UserInfo(_ context.Context, _ string, _, _ int) (map[string]any, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.userInfo, nil
}

func (m *mockCloud) Balance(_ context.Context, _ string, _, _ int) (map[string]any, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.balance, nil
}

type mockCycles struct {
	selected  []string
	triggered int
}

func (m *mockCycles) Trigger(_ context.Context)  { m.triggered++ }
func (m *mockCycles) Selected() []string         { return m.selected }
func (m *mockCycles) SetSelection(uids []string) { m.selected = uids }

// ─── Test Helpers ────────────────────────────────────────────────────

type testDeps struct {
	catalog *mockCatalog
	opener  *mockOpener
	faces   *mockFaces
	account *mockAccount
	cloud   *mockCloud
	watcher *mockCycles
}

func newTestServer(t *testing.T, deps testDeps) *Server {
	t.Helper()

	if deps.catalog == nil {
		deps.catalog = &mockCatalog{}
	}

	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")

	d := Deps{
		Config: config.APIConfig{
			Host:  "127.0.0.1",
			Port:  0,
			Token: testToken,
			Timeouts: config.APITimeoutConfig{
				Read:  5,
				Write: 5,
				Idle:  5,
			},
		},
		Logger:  log,
		Catalog: deps.catalog,
		Version: "test",
	}
	if deps.opener != nil {
		d.Opener = deps.opener
	}
	if deps.faces != nil {
		d.Faces = deps.faces
	}
	if deps.account != nil {
		d.Account = deps.account
	}
	if deps.cloud != nil {
		d.Cloud = deps.cloud
	}
	if deps.watcher != nil {
		d.Watcher = deps.watcher
	}

	srv, err := New(d)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	srv.hub = NewHub(log)
	return srv
}

// doRequest runs one request through the full router with the bearer
// token attached.
func doRequest(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+testToken)
	rec := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
	return m
}

func sampleDoor() relay.Record {
	return relay.Record{
		UID:      "9001112233:08:13:CD:00:0D:7F:1",
		Address:  "пр. Ленина, 10",
		MAC:      "08:13:CD:00:0D:7F",
		DoorID:   1,
		IsMain:   true,
		HasVideo: true,
		ImageURL: "https://cdn.example/frame.jpg",
	}
}

// ─── Auth Middleware ─────────────────────────────────────────────────

func TestHealthRequiresNoAuth(t *testing.T) {
	srv := newTestServer(t, testDeps{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
}

func TestAuthMiddleware(t *testing.T) {
	srv := newTestServer(t, testDeps{})

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + testToken, http.StatusUnauthorized},
		{"wrong token", "Bearer nope-nope-nope-nope", http.StatusUnauthorized},
		{"valid token", "Bearer " + testToken, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/doors/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			srv.buildRouter().ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

// ─── Doors ───────────────────────────────────────────────────────────

func TestListDoors(t *testing.T) {
	srv := newTestServer(t, testDeps{
		catalog: &mockCatalog{doors: []relay.Record{sampleDoor()}},
	})

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/doors/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := decodeBody(t, rec)
	if body["count"].(float64) != 1 {
		t.Errorf("count = %v, want 1", body["count"])
	}
	doors := body["doors"].([]any)
	door := doors[0].(map[string]any)
	if door["uid"] != "9001112233:08:13:CD:00:0D:7F:1" {
		t.Errorf("uid = %v", door["uid"])
	}
	if door["mac"] != "08:13:CD:00:0D:7F" {
		t.Errorf("mac = %v", door["mac"])
	}
}

func TestRefreshDoors(t *testing.T) {
	catalog := &mockCatalog{doors: []relay.Record{sampleDoor()}}
	srv := newTestServer(t, testDeps{catalog: catalog})

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/doors/refresh", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !catalog.refreshed {
		t.Error("catalog was not refreshed")
	}
}

func TestRefreshDoorsUpstreamFailure(t *testing.T) {
	catalog := &mockCatalog{refreshErr: relay.ErrNoRelays}
	srv := newTestServer(t, testDeps{catalog: catalog})

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/doors/refresh", nil)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}

func TestOpenDoor(t *testing.T) {
	door := sampleDoor()
	door.OpenLink = "/api/open/08:13:CD:00:0D:7F/1"
	opener := &mockOpener{}
	srv := newTestServer(t, testDeps{
		catalog: &mockCatalog{doors: []relay.Record{door}},
		opener:  opener,
	})

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/doors/"+door.UID+"/open", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
	}

	if len(opener.calls) != 1 {
		t.Fatalf("opener calls = %d, want 1", len(opener.calls))
	}
	call := opener.calls[0]
	if call.mac != door.MAC || call.doorID != door.DoorID || call.openLink != door.OpenLink {
		t.Errorf("open call = %+v", call)
	}
}

func TestOpenDoorUnknownUID(t *testing.T) {
	srv := newTestServer(t, testDeps{
		catalog: &mockCatalog{},
		opener:  &mockOpener{},
	})

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/doors/nope/open", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestOpenDoorCommandFailure(t *testing.T) {
	door := sampleDoor()
	opener := &mockOpener{
		err: &dispatch.CommandError{MAC: door.MAC, DoorID: door.DoorID, Err: cloud.ErrNetwork},
	}
	srv := newTestServer(t, testDeps{
		catalog: &mockCatalog{doors: []relay.Record{door}},
		opener:  opener,
	})

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/doors/"+door.UID+"/open", nil)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}

// ─── Faces ───────────────────────────────────────────────────────────

func TestListFaces(t *testing.T) {
	srv := newTestServer(t, testDeps{
		faces: &mockFaces{available: true, names: []string{"alice", "bob"}},
	})

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/faces/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["available"] != true {
		t.Errorf("available = %v, want true", body["available"])
	}
	names := body["names"].([]any)
	if len(names) != 2 || names[0] != "alice" {
		t.Errorf("names = %v", names)
	}
}

func TestAddFace(t *testing.T) {
	faces := &mockFaces{available: true}
	srv := newTestServer(t, testDeps{faces: faces})

	image := []byte("jpeg-bytes")
	rec := doRequest(t, srv, http.MethodPost, "/api/v1/faces/", addFaceRequest{
		Name:  "alice",
		Image: base64.StdEncoding.EncodeToString(image),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body %s", rec.Code, rec.Body.String())
	}
	if !bytes.Equal(faces.added["alice"], image) {
		t.Errorf("stored image = %q", faces.added["alice"])
	}
}

func TestAddFaceErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   any
		addErr error
		want   int
	}{
		{"missing name", addFaceRequest{Image: "aGk="}, nil, http.StatusBadRequest},
		{"bad base64", addFaceRequest{Name: "a", Image: "!!!"}, nil, http.StatusBadRequest},
		{"encoder unavailable", addFaceRequest{Name: "a", Image: "aGk="}, face.ErrEncoderUnavailable, http.StatusServiceUnavailable},
		{"no face in image", addFaceRequest{Name: "a", Image: "aGk="}, face.ErrNoFaceFound, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, testDeps{faces: &mockFaces{addErr: tt.addErr}})
			rec := doRequest(t, srv, http.MethodPost, "/api/v1/faces/", tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestRemoveFace(t *testing.T) {
	faces := &mockFaces{}
	srv := newTestServer(t, testDeps{faces: faces})

	rec := doRequest(t, srv, http.MethodDelete, "/api/v1/faces/alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(faces.removed) != 1 || faces.removed[0] != "alice" {
		t.Errorf("removed = %v", faces.removed)
	}
}

func TestRemoveFaceNotFound(t *testing.T) {
	srv := newTestServer(t, testDeps{faces: &mockFaces{removeErr: face.ErrFaceNotFound}})

	rec := doRequest(t, srv, http.MethodDelete, "/api/v1/faces/ghost", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

// ─── Login Flow ──────────────────────────────────────────────────────

func TestRequestConfirmation(t *testing.T) {
	srv := newTestServer(t, testDeps{account: &mockAccount{}})

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/auth/request-confirmation", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["message"] != "code sent" {
		t.Errorf("message = %v", body["message"])
	}
}

func TestCheckConfirmation(t *testing.T) {
	srv := newTestServer(t, testDeps{
		account: &mockAccount{
			checkResult: &cloud.CheckConfirmResult{
				Addresses: []cloud.ConfirmAddress{
					{UserID: "42", Address: "пр. Ленина, 10"},
				},
			},
		},
	})

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/auth/check-confirmation", checkConfirmRequest{Code: "1234"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	addresses := body["addresses"].([]any)
	if len(addresses) != 1 {
		t.Fatalf("addresses = %v", addresses)
	}
	addr := addresses[0].(map[string]any)
	if addr["user_id"] != "42" {
		t.Errorf("user_id = %v", addr["user_id"])
	}
}

func TestCheckConfirmationMissingCode(t *testing.T) {
	srv := newTestServer(t, testDeps{account: &mockAccount{}})

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/auth/check-confirmation", checkConfirmRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestIssueToken(t *testing.T) {
	srv := newTestServer(t, testDeps{
		account: &mockAccount{
			authMobile: &token.Mobile{Token: "tok", UserID: 42, ProfileID: 7},
		},
	})

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/auth/token", issueTokenRequest{UserID: "42"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["user_id"].(float64) != 42 {
		t.Errorf("user_id = %v, want 42", body["user_id"])
	}
}

func TestIssueTokenBeforeConfirmation(t *testing.T) {
	srv := newTestServer(t, testDeps{
		account: &mockAccount{authErr: session.ErrNotConfirmed},
	})

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/auth/token", issueTokenRequest{UserID: "42"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

// ─── Account Views ───────────────────────────────────────────────────

func TestAccountInfo(t *testing.T) {
	srv := newTestServer(t, testDeps{
		account: &mockAccount{
			ensureMobile: &token.Mobile{Token: "tok", UserID: 42, ProfileID: 7},
		},
		cloud: &mockCloud{userInfo: map[string]any{"NAME": "Ivan"}},
	})

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/account/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["NAME"] != "Ivan" {
		t.Errorf("NAME = %v", body["NAME"])
	}
}

func TestAccountInfoWithoutToken(t *testing.T) {
	srv := newTestServer(t, testDeps{
		account: &mockAccount{ensureErr: session.ErrNoToken},
		cloud:   &mockCloud{},
	})

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/account/", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestSessionSnapshot(t *testing.T) {
	srv := newTestServer(t, testDeps{
		account: &mockAccount{
			mobileRaw: map[string]any{"TOKEN": "m"},
			crmRaw:    map[string]any{"TOKEN": "c"},
		},
	})

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/account/session", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	mobile := body["mobile_token"].(map[string]any)
	if mobile["TOKEN"] != "m" {
		t.Errorf("mobile token = %v", mobile)
	}
}

// ─── Watcher Control ─────────────────────────────────────────────────

func TestWatcherCycle(t *testing.T) {
	cycles := &mockCycles{}
	srv := newTestServer(t, testDeps{watcher: cycles})

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/watcher/cycle", nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	if cycles.triggered != 1 {
		t.Errorf("triggered = %d, want 1", cycles.triggered)
	}
}

func TestWatcherCycleDisabled(t *testing.T) {
	srv := newTestServer(t, testDeps{})

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/watcher/cycle", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestWatcherSelection(t *testing.T) {
	cycles := &mockCycles{selected: []string{"a"}}
	srv := newTestServer(t, testDeps{watcher: cycles})

	rec := doRequest(t, srv, http.MethodPut, "/api/v1/watcher/doors", watcherSelectionRequest{Doors: []string{"b", "c"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(cycles.selected) != 2 || cycles.selected[0] != "b" {
		t.Errorf("selected = %v", cycles.selected)
	}
}

func TestWatcherStatusDisabled(t *testing.T) {
	srv := newTestServer(t, testDeps{})

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/watcher/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["enabled"] != false {
		t.Errorf("enabled = %v, want false", body["enabled"])
	}
}

// ─── Server Construction ─────────────────────────────────────────────

func TestNewRequiresToken(t *testing.T) {
	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")

	_, err := New(Deps{
		Config:  config.APIConfig{Host: "127.0.0.1", Port: 0},
		Logger:  log,
		Catalog: &mockCatalog{},
	})
	if err == nil {
		t.Fatal("expected error for missing token")
	}
}
