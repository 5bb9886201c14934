package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Mobile API and CRM endpoint paths. Hosts come from configuration.
const (
	confirmPath      = "/mobile/auth/get-confirm"
	checkConfirmPath = "/mobile/auth/check-confirm"
	issueTokenPath   = "/mobile/auth/get-token"
	relaysPath       = "/domofon/relays"
	userInfoPath     = "/mobile/user/info"
	balancePath      = "/mobile/user/balance"

	crmAuthPath = "/api/auth-lk"
)

// defaultTimeout applies when Options.Timeout is zero.
const defaultTimeout = 30 * time.Second

// Logger is the logging interface for the cloud client.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Device is the synthetic device identity sent with every request.
// The cloud profiles clients by these headers; they are static
// configuration, not protocol logic.
type Device struct {
	ID             string
	AppVersion     string
	Platform       string
	APISource      string
	AcceptLanguage string
	UserAgent      string
}

// GenerateDeviceID produces a device id in the format the official app
// uses: an uppercase UUID4 with dashes.
func GenerateDeviceID() string {
	return strings.ToUpper(uuid.NewString())
}

// Options configures a Client.
type Options struct {
	APIBaseURL string
	CRMBaseURL string
	Timeout    time.Duration
	Device     Device

	// HTTPClient overrides the internal client; used by tests.
	HTTPClient *http.Client
}

// Client talks to both cloud hosts. It is stateless apart from the
// device identity; all methods are safe for concurrent use.
type Client struct {
	http       *http.Client
	apiBaseURL string
	crmBaseURL string
	device     Device
	logger     Logger
}

// NewClient creates a cloud client. A missing device id is generated so
// the cloud always sees a stable identity for this process.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Device.ID == "" {
		opts.Device.ID = GenerateDeviceID()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{
		http:       httpClient,
		apiBaseURL: strings.TrimRight(opts.APIBaseURL, "/"),
		crmBaseURL: strings.TrimRight(opts.CRMBaseURL, "/"),
		device:     opts.Device,
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for the client.
func (c *Client) SetLogger(logger Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// DeviceID returns the device identity this client presents to the cloud.
func (c *Client) DeviceID() string {
	return c.device.ID
}

// ─── Mobile API ─────────────────────────────────────────────────────────────

// RequestConfirmation starts the phone-confirmation login: the cloud
// sends a code to the subscriber and returns the delivery context.
func (c *Client) RequestConfirmation(ctx context.Context, phone string) (*ConfirmContext, error) {
	payload := map[string]any{
		"deviceId":      c.device.ID,
		"phone":         phone,
		"checkSkipAuth": 1,
	}
	data, err := c.do(ctx, http.MethodPost, c.apiBaseURL+confirmPath, c.mobileHeaders(auth{}), payload)
	if err != nil {
		return nil, err
	}
	obj, err := decodeObject(data)
	if err != nil {
		return nil, err
	}
	return &ConfirmContext{
		AuthID:      asString(obj, "authId"),
		Message:     asString(obj, "message"),
		ConfirmType: asInt(obj, "confirmType"),
		TimeoutMins: asInt(obj, "timeoutMins"),
	}, nil
}

// CheckConfirmation verifies the confirmation code and returns the
// contract addresses attached to the phone number.
func (c *Client) CheckConfirmation(ctx context.Context, phone, code string) (*CheckConfirmResult, error) {
	payload := map[string]any{
		"phone":       phone,
		"confirmCode": code,
	}
	data, err := c.do(ctx, http.MethodPost, c.apiBaseURL+checkConfirmPath, c.mobileHeaders(auth{}), payload)
	if err != nil {
		return nil, err
	}
	obj, err := decodeObject(data)
	if err != nil {
		return nil, err
	}

	result := &CheckConfirmResult{
		AuthID:  asString(obj, "authId"),
		Message: asString(obj, "message"),
	}
	if rawAddresses, ok := obj["addresses"].([]any); ok {
		for _, item := range rawAddresses {
			entry, ok := item.(map[string]any)
			if !ok {
				continue
			}
			userID := asString(entry, "USER_ID")
			address := asString(entry, "ADDRESS")
			if userID == "" || address == "" {
				continue
			}
			result.Addresses = append(result.Addresses, ConfirmAddress{UserID: userID, Address: address})
		}
	}
	return result, nil
}

// IssueToken exchanges a confirmed authId and chosen contract for a
// mobile token payload. The raw payload is returned so the session can
// both parse and persist it.
func (c *Client) IssueToken(ctx context.Context, authID, userID string) (map[string]any, error) {
	payload := map[string]any{
		"authId": authID,
		"userId": userID,
	}
	data, err := c.do(ctx, http.MethodPost, c.apiBaseURL+issueTokenPath, c.mobileHeaders(auth{}), payload)
	if err != nil {
		return nil, err
	}
	return decodeObject(data)
}

// Relays fetches one category page of the relay listing. The response
// must be a JSON array; anything else is ErrBadPayload.
func (c *Client) Relays(ctx context.Context, bearer string, userID, profileID int, q RelayQuery) ([]map[string]any, error) {
	query := url.Values{}
	query.Set("pagination", strconv.Itoa(q.Pagination))
	query.Set("pageSize", strconv.Itoa(q.PageSize))
	query.Set("mainFirst", strconv.Itoa(q.MainFirst))
	query.Set("isShared", strconv.Itoa(q.IsShared))

	headers := c.mobileHeaders(auth{bearer: bearer, userID: userID, profileID: profileID})
	data, err := c.do(ctx, http.MethodGet, c.apiBaseURL+relaysPath+"?"+query.Encode(), headers, nil)
	if err != nil {
		return nil, err
	}
	return decodeArray(data)
}

// UserInfo fetches the subscriber profile for the status surface.
func (c *Client) UserInfo(ctx context.Context, bearer string, userID, profileID int) (map[string]any, error) {
	headers := c.mobileHeaders(auth{bearer: bearer, userID: userID, profileID: profileID})
	data, err := c.do(ctx, http.MethodGet, c.apiBaseURL+userInfoPath, headers, nil)
	if err != nil {
		return nil, err
	}
	return decodeObject(data)
}

// Balance fetches the contract balance for the status surface.
func (c *Client) Balance(ctx context.Context, bearer string, userID, profileID int) (map[string]any, error) {
	headers := c.mobileHeaders(auth{bearer: bearer, userID: userID, profileID: profileID})
	data, err := c.do(ctx, http.MethodGet, c.apiBaseURL+balancePath, headers, nil)
	if err != nil {
		return nil, err
	}
	return decodeObject(data)
}

// ─── CRM ────────────────────────────────────────────────────────────────────

// AuthLK performs CRM authorization. The mobile token travels both in
// the payload and as the bearer header - the CRM checks both.
func (c *Client) AuthLK(ctx context.Context, mobileToken string, buyerID, profileID int) (map[string]any, error) {
	payload := map[string]any{
		"token":   mobileToken,
		"buyerId": buyerID,
	}
	headers := c.crmHeaders(mobileToken, profileID)
	data, err := c.do(ctx, http.MethodPost, c.crmBaseURL+crmAuthPath, headers, payload)
	if err != nil {
		return nil, err
	}
	return decodeObject(data)
}

// OpenDoor issues the door-open command. The relay-supplied openLink
// wins over the templated endpoint when present. Success is an empty
// 2xx response (204 expected).
func (c *Client) OpenDoor(ctx context.Context, crmBearer, mac string, doorID int, openLink string) error {
	target := openLink
	switch {
	case target == "":
		target = fmt.Sprintf("%s/api/open/%s/%d", c.crmBaseURL, url.PathEscape(mac), doorID)
	case !strings.HasPrefix(target, "http"):
		target = c.crmBaseURL + "/" + strings.TrimLeft(target, "/")
	}

	_, err := c.do(ctx, http.MethodGet, target, c.crmHeaders(crmBearer, 0), nil)
	return err
}

// ─── Camera frames ──────────────────────────────────────────────────────────

// FetchFrame downloads one camera snapshot from a relay-supplied image
// URL. Snapshot URLs are pre-signed; no credential headers are sent.
func (c *Client) FetchFrame(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building frame request: %w", err)
	}
	req.Header.Set("User-Agent", c.device.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Body: "frame fetch rejected"}
	}
	return io.ReadAll(resp.Body)
}

// ─── Transport ──────────────────────────────────────────────────────────────

// auth carries the optional per-request identity for mobile API calls.
type auth struct {
	bearer    string
	userID    int
	profileID int
}

// mobileHeaders builds the header set the mobile API expects.
func (c *Client) mobileHeaders(a auth) http.Header {
	h := http.Header{}
	h.Set("Accept", "application/json; version=v2")
	h.Set("Content-Type", "application/json")
	h.Set("App-Version", c.device.AppVersion)
	h.Set("X-App-Version", c.device.AppVersion)
	h.Set("X-Api-Source", c.device.APISource)
	h.Set("X-Source", c.device.APISource)
	h.Set("Platform", c.device.Platform)
	h.Set("User-Agent", c.device.UserAgent)
	h.Set("X-Device-Id", c.device.ID)
	h.Set("Accept-Language", c.device.AcceptLanguage)
	if a.userID != 0 {
		h.Set("X-Api-User-Id", strconv.Itoa(a.userID))
	}
	if a.profileID != 0 {
		h.Set("X-Api-Profile-Id", strconv.Itoa(a.profileID))
	}
	if a.bearer != "" {
		h.Set("Authorization", "Bearer "+a.bearer)
	}
	return h
}

// crmHeaders builds the header set the CRM expects. Which token goes in
// the bearer depends on the call: the mobile token for auth-lk, the CRM
// token for door commands.
func (c *Client) crmHeaders(bearer string, profileID int) http.Header {
	h := http.Header{}
	h.Set("Accept", "application/json")
	h.Set("Content-Type", "application/json")
	h.Set("App-Version", c.device.AppVersion)
	h.Set("X-App-Version", c.device.AppVersion)
	h.Set("X-Api-Source", c.device.APISource)
	h.Set("X-Source", c.device.APISource)
	h.Set("Platform", c.device.Platform)
	h.Set("User-Agent", c.device.UserAgent)
	h.Set("X-Device-Id", c.device.ID)
	h.Set("Accept-Language", c.device.AcceptLanguage)
	if profileID != 0 {
		h.Set("X-Api-Profile-Id", strconv.Itoa(profileID))
	}
	if bearer != "" {
		h.Set("Authorization", "Bearer "+bearer)
	}
	return h
}

// do executes one HTTP request and applies the error taxonomy.
func (c *Client) do(ctx context.Context, method, rawURL string, headers http.Header, body map[string]any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header = headers

	c.logger.Debug("cloud request",
		"method", method,
		"url", rawURL,
		"headers", sanitizeMap(flattenHeaders(headers)),
		"body", sanitizePayload(body),
	)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrNetwork, err)
	}

	if resp.StatusCode >= 400 {
		c.logger.Error("cloud request rejected",
			"method", method,
			"url", rawURL,
			"status", resp.StatusCode,
		)
		return nil, &APIError{Status: resp.StatusCode, Body: string(data)}
	}

	c.logger.Debug("cloud response", "status", resp.StatusCode, "bytes", len(data))
	return data, nil
}

// decodeObject parses a response body as a JSON object.
// An empty body decodes to an empty map (the CRM returns 204s).
func decodeObject(data []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]any{}, nil
	}
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	return obj, nil
}

// decodeArray parses a response body as a JSON array of objects.
// Non-object elements are dropped.
func decodeArray(data []byte) ([]map[string]any, error) {
	var items []any
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if obj, ok := item.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out, nil
}

// flattenHeaders converts an http.Header to a single-valued map for logging.
func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}
