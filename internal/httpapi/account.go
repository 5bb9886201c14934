package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/smolnikov/domofon-core/internal/session"
	"github.com/smolnikov/domofon-core/internal/token"
)

// handleRequestConfirmation starts the phone login flow by asking the
// cloud to send a confirmation code.
func (s *Server) handleRequestConfirmation(w http.ResponseWriter, r *http.Request) {
	if s.account == nil {
		writeUnavailable(w, "session not configured")
		return
	}

	confirm, err := s.account.RequestConfirmation(r.Context())
	if err != nil {
		s.logger.Error("confirmation request failed", "error", err)
		writeUpstreamError(w, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":      confirm.Message,
		"confirm_type": confirm.ConfirmType,
		"timeout_mins": confirm.TimeoutMins,
	})
}

// checkConfirmRequest carries the code the subscriber received.
type checkConfirmRequest struct {
	Code string `json:"code"`
}

// handleCheckConfirmation verifies the confirmation code and returns
// the contract addresses available to this phone number.
func (s *Server) handleCheckConfirmation(w http.ResponseWriter, r *http.Request) {
	if s.account == nil {
		writeUnavailable(w, "session not configured")
		return
	}

	var req checkConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Code == "" {
		writeBadRequest(w, "code is required")
		return
	}

	result, err := s.account.CheckConfirmation(r.Context(), req.Code)
	if err != nil {
		s.logger.Error("confirmation check failed", "error", err)
		writeUpstreamError(w, err.Error())
		return
	}

	addresses := make([]map[string]string, len(result.Addresses))
	for i, addr := range result.Addresses {
		addresses[i] = map[string]string{
			"user_id": addr.UserID,
			"address": addr.Address,
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":   result.Message,
		"addresses": addresses,
	})
}

// issueTokenRequest selects the contract to issue a token for.
type issueTokenRequest struct {
	UserID string `json:"user_id"`
}

// handleIssueToken completes the login flow by issuing the mobile token
// for the chosen contract.
func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	if s.account == nil {
		writeUnavailable(w, "session not configured")
		return
	}

	var req issueTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.UserID == "" {
		writeBadRequest(w, "user_id is required")
		return
	}

	mobile, err := s.account.Authenticate(r.Context(), req.UserID)
	if err != nil {
		if errors.Is(err, session.ErrNotConfirmed) {
			writeError(w, http.StatusConflict, ErrCodeConflict, "confirmation not completed")
			return
		}
		s.logger.Error("token issuance failed", "error", err)
		writeUpstreamError(w, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":    mobile.UserID,
		"profile_id": mobile.ProfileID,
	})
}

// handleAccountInfo returns the subscriber profile from the mobile API.
func (s *Server) handleAccountInfo(w http.ResponseWriter, r *http.Request) {
	s.serveAccountView(w, r, func(bearer string, mobile *token.Mobile) (map[string]any, error) {
		return s.cloud.UserInfo(r.Context(), bearer, mobile.UserID, mobile.ProfileID)
	})
}

// handleAccountBalance returns the account balance from the mobile API.
func (s *Server) handleAccountBalance(w http.ResponseWriter, r *http.Request) {
	s.serveAccountView(w, r, func(bearer string, mobile *token.Mobile) (map[string]any, error) {
		return s.cloud.Balance(r.Context(), bearer, mobile.UserID, mobile.ProfileID)
	})
}

// serveAccountView runs an authenticated mobile API read and writes the
// raw payload through. Both account views share the token guard and the
// error mapping.
func (s *Server) serveAccountView(w http.ResponseWriter, r *http.Request, fetch func(bearer string, mobile *token.Mobile) (map[string]any, error)) {
	if s.account == nil || s.cloud == nil {
		writeUnavailable(w, "session not configured")
		return
	}

	mobile, err := s.account.EnsureMobileToken(r.Context())
	if err != nil {
		if errors.Is(err, session.ErrNoToken) || errors.Is(err, session.ErrTokenExpired) {
			writeUnauthorized(w, "mobile token missing or expired, login required")
			return
		}
		writeInternalError(w, err.Error())
		return
	}

	payload, err := fetch(mobile.Token, mobile)
	if err != nil {
		s.logger.Error("account view fetch failed", "path", r.URL.Path, "error", err)
		writeUpstreamError(w, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, payload)
}

// handleSessionSnapshot returns the raw token payloads for persistence
// by the host. The payloads contain credentials; this route sits behind
// the same bearer gate as door commands.
func (s *Server) handleSessionSnapshot(w http.ResponseWriter, _ *http.Request) {
	if s.account == nil {
		writeUnavailable(w, "session not configured")
		return
	}

	mobile, crm := s.account.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"mobile_token": mobile,
		"crm_token":    crm,
	})
}
