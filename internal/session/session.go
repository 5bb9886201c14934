package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/smolnikov/domofon-core/internal/cloud"
	"github.com/smolnikov/domofon-core/internal/token"
)

// Cloud is the subset of the cloud client the session needs.
type Cloud interface {
	RequestConfirmation(ctx context.Context, phone string) (*cloud.ConfirmContext, error)
	CheckConfirmation(ctx context.Context, phone, code string) (*cloud.CheckConfirmResult, error)
	IssueToken(ctx context.Context, authID, userID string) (map[string]any, error)
	AuthLK(ctx context.Context, mobileToken string, buyerID, profileID int) (map[string]any, error)
}

// BuyerIDSource resolves the contract buyer id presented to the CRM.
// The relay catalog implements it; without one the session falls back
// to its configured buyer id.
type BuyerIDSource interface {
	ResolveBuyerID(mobile *token.Mobile) int
}

// Logger is the logging interface for the session.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Session.
type Options struct {
	Cloud   Cloud
	Phone   string
	BuyerID int

	// Clock overrides time.Now for expiry checks; used by tests.
	Clock func() time.Time
}

// Session holds the account credentials and keeps them usable.
// All methods are safe for concurrent use.
type Session struct {
	cloud   Cloud
	phone   string
	buyerID int
	clock   func() time.Time
	logger  Logger
	buyers  BuyerIDSource

	mu     sync.RWMutex
	mobile *token.Mobile
	crm    *token.CRM
	authID string

	refresh singleflight.Group
}

// New creates a session. BuyerID defaults to 1, matching the CRM's
// expectation for ordinary subscriber contracts.
func New(opts Options) *Session {
	if opts.BuyerID == 0 {
		opts.BuyerID = 1
	}
	clock := opts.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &Session{
		cloud:   opts.Cloud,
		phone:   opts.Phone,
		buyerID: opts.BuyerID,
		clock:   clock,
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the session.
func (s *Session) SetLogger(logger Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// SetBuyerIDSource sets the buyer id resolver consulted on every CRM
// reauthorization. Set once during wiring, before the session is used.
func (s *Session) SetBuyerIDSource(buyers BuyerIDSource) {
	s.buyers = buyers
}

// Phone returns the account phone number.
func (s *Session) Phone() string {
	return s.phone
}

// BuyerID returns the configured buyer id, used for CRM auth when no
// BuyerIDSource is set.
func (s *Session) BuyerID() int {
	return s.buyerID
}

// ─── Interactive login ──────────────────────────────────────────────────────

// RequestConfirmation asks the cloud to send a confirmation code to the
// account phone. The returned context describes the delivery channel.
func (s *Session) RequestConfirmation(ctx context.Context) (*cloud.ConfirmContext, error) {
	result, err := s.cloud.RequestConfirmation(ctx, s.phone)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.authID = result.AuthID
	s.mu.Unlock()

	s.logger.Info("confirmation requested", "confirm_type", result.ConfirmType)
	return result, nil
}

// CheckConfirmation verifies the code the subscriber received and
// returns the contract addresses to choose from.
func (s *Session) CheckConfirmation(ctx context.Context, code string) (*cloud.CheckConfirmResult, error) {
	result, err := s.cloud.CheckConfirmation(ctx, s.phone, code)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if result.AuthID != "" {
		s.authID = result.AuthID
	}
	s.mu.Unlock()

	s.logger.Info("confirmation code accepted", "addresses", len(result.Addresses))
	return result, nil
}

// Authenticate exchanges the confirmed login for a mobile token, bound
// to the chosen contract. Any previous credentials are replaced and the
// derived CRM token is dropped.
func (s *Session) Authenticate(ctx context.Context, userID string) (*token.Mobile, error) {
	s.mu.RLock()
	authID := s.authID
	s.mu.RUnlock()
	if authID == "" {
		return nil, ErrNotConfirmed
	}

	payload, err := s.cloud.IssueToken(ctx, authID, userID)
	if err != nil {
		return nil, err
	}
	mobile, err := token.ParseMobile(payload)
	if err != nil {
		return nil, fmt.Errorf("parsing issued token: %w", err)
	}

	s.mu.Lock()
	s.mobile = mobile
	s.crm = nil
	s.authID = ""
	s.mu.Unlock()

	s.logger.Info("mobile token issued", "user_id", mobile.UserID, "profile_id", mobile.ProfileID)
	if mobile.AccessEnd == nil {
		s.logger.Warn("mobile token carries no expiry, treating as never-expiring")
	}
	return mobile, nil
}

// ─── Restoration ────────────────────────────────────────────────────────────

// RestoreMobileToken loads a previously persisted mobile token payload.
// Expired payloads are accepted; expiry is reported at use time.
func (s *Session) RestoreMobileToken(payload map[string]any) error {
	mobile, err := token.ParseMobile(payload)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.mobile = mobile
	s.mu.Unlock()

	s.logger.Debug("mobile token restored", "user_id", mobile.UserID)
	return nil
}

// RestoreCRMToken loads a previously persisted CRM token payload.
func (s *Session) RestoreCRMToken(payload map[string]any) error {
	crm, err := token.ParseCRM(payload)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.crm = crm
	s.mu.Unlock()

	s.logger.Debug("crm token restored")
	return nil
}

// ─── Token access ───────────────────────────────────────────────────────────

// MobileToken returns the current mobile token without expiry checks,
// or nil when none is held.
func (s *Session) MobileToken() *token.Mobile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mobile
}

// CRMToken returns the current CRM token without expiry checks, or nil.
func (s *Session) CRMToken() *token.CRM {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.crm
}

// EnsureMobileToken returns the mobile token if it is present and
// inside its access window. The mobile token cannot be refreshed here;
// an expired one means the subscriber must log in again.
func (s *Session) EnsureMobileToken(ctx context.Context) (*token.Mobile, error) {
	s.mu.RLock()
	mobile := s.mobile
	s.mu.RUnlock()

	if mobile == nil {
		return nil, ErrNoToken
	}
	if mobile.ExpiredAt(s.clock()) {
		return nil, ErrTokenExpired
	}
	return mobile, nil
}

// EnsureCRMToken returns a usable CRM token, deriving a fresh one from
// the mobile token when the held one is missing or stale. Concurrent
// callers share a single reauthorization.
func (s *Session) EnsureCRMToken(ctx context.Context) (*token.CRM, error) {
	s.mu.RLock()
	crm := s.crm
	s.mu.RUnlock()

	if crm != nil && !crm.ExpiredAt(s.clock()) {
		return crm, nil
	}
	return s.refreshCRMToken(ctx)
}

// AuthenticateCRM forces a CRM reauthorization regardless of the held
// token's state. Concurrent forced refreshes still collapse to one call.
func (s *Session) AuthenticateCRM(ctx context.Context) (*token.CRM, error) {
	return s.refreshCRMToken(ctx)
}

// InvalidateCRMToken drops the CRM token so the next EnsureCRMToken
// reauthorizes. Called when the CRM refuses a door command.
func (s *Session) InvalidateCRMToken() {
	s.mu.Lock()
	s.crm = nil
	s.mu.Unlock()
	s.logger.Debug("crm token invalidated")
}

func (s *Session) refreshCRMToken(ctx context.Context) (*token.CRM, error) {
	v, err, shared := s.refresh.Do("crm", func() (any, error) {
		mobile, err := s.EnsureMobileToken(ctx)
		if err != nil {
			return nil, err
		}

		buyerID := s.buyerID
		if s.buyers != nil {
			buyerID = s.buyers.ResolveBuyerID(mobile)
		}

		payload, err := s.cloud.AuthLK(ctx, mobile.Token, buyerID, mobile.ProfileID)
		if err != nil {
			if cloud.IsAuthRejected(err) {
				return nil, fmt.Errorf("%w: %v", ErrCRMRejected, err)
			}
			return nil, err
		}
		crm, err := token.ParseCRM(payload)
		if err != nil {
			return nil, fmt.Errorf("parsing crm token: %w", err)
		}

		s.mu.Lock()
		s.crm = crm
		s.mu.Unlock()

		s.logger.Info("crm token refreshed")
		return crm, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.Debug("crm refresh shared with concurrent caller")
	}
	return v.(*token.CRM), nil
}

// Snapshot returns copies of the raw token payloads for persistence.
// Either map is nil when the corresponding token is not held.
func (s *Session) Snapshot() (mobile, crm map[string]any) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.mobile != nil {
		mobile = cloneMap(s.mobile.Raw)
	}
	if s.crm != nil {
		crm = cloneMap(s.crm.Raw)
	}
	return mobile, crm
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
