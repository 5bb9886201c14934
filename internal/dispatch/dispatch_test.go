package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/smolnikov/domofon-core/internal/cloud"
	"github.com/smolnikov/domofon-core/internal/token"
)

// ─── Mock Dependencies ──────────────────────────────────────────────────────

type mockOpener struct {
	calls   int
	bearers []string
	errs    []error
}

func (m *mockOpener) OpenDoor(_ context.Context, crmBearer, _ string, _ int, _ string) error {
	m.calls++
	m.bearers = append(m.bearers, crmBearer)
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		return err
	}
	return nil
}

type mockCredentials struct {
	tokens      []string
	ensureCalls int
	invalidated int
	err         error
}

func (m *mockCredentials) EnsureCRMToken(context.Context) (*token.CRM, error) {
	m.ensureCalls++
	if m.err != nil {
		return nil, m.err
	}
	tok := m.tokens[0]
	if len(m.tokens) > 1 {
		m.tokens = m.tokens[1:]
	}
	return &token.CRM{Token: tok}, nil
}

func (m *mockCredentials) InvalidateCRMToken() {
	m.invalidated++
}

// ─── Tests ──────────────────────────────────────────────────────────────────

func TestOpenDoor(t *testing.T) {
	opener := &mockOpener{}
	creds := &mockCredentials{tokens: []string{"crm-1"}}
	d := New(opener, creds)

	err := d.OpenDoor(context.Background(), "08:13:CD:00:0D:7F", 1, "")
	if err != nil {
		t.Fatalf("OpenDoor() error = %v", err)
	}
	if opener.calls != 1 {
		t.Errorf("open calls = %d, want 1", opener.calls)
	}
	if opener.bearers[0] != "crm-1" {
		t.Errorf("bearer = %q", opener.bearers[0])
	}
	if creds.invalidated != 0 {
		t.Errorf("invalidations = %d, want 0", creds.invalidated)
	}
}

func TestOpenDoorReauthorizesOnce(t *testing.T) {
	opener := &mockOpener{errs: []error{&cloud.APIError{Status: 401, Body: "stale"}}}
	creds := &mockCredentials{tokens: []string{"crm-stale", "crm-fresh"}}
	d := New(opener, creds)

	err := d.OpenDoor(context.Background(), "08:13:CD:00:0D:7F", 1, "")
	if err != nil {
		t.Fatalf("OpenDoor() error = %v", err)
	}
	if opener.calls != 2 {
		t.Errorf("open calls = %d, want 2", opener.calls)
	}
	if creds.invalidated != 1 {
		t.Errorf("invalidations = %d, want 1", creds.invalidated)
	}
	if opener.bearers[1] != "crm-fresh" {
		t.Errorf("retry bearer = %q, want the refreshed token", opener.bearers[1])
	}
}

func TestOpenDoorSecondRejectionFails(t *testing.T) {
	opener := &mockOpener{errs: []error{
		&cloud.APIError{Status: 401, Body: "stale"},
		&cloud.APIError{Status: 403, Body: "still no"},
	}}
	creds := &mockCredentials{tokens: []string{"crm-1", "crm-2"}}
	d := New(opener, creds)

	err := d.OpenDoor(context.Background(), "08:13:CD:00:0D:7F", 1, "")
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("error = %v, want *CommandError", err)
	}
	if opener.calls != 2 {
		t.Errorf("open calls = %d, want exactly 2 (no retry loop)", opener.calls)
	}
	if !cloud.IsAuthRejected(cmdErr.Err) {
		t.Errorf("wrapped error = %v, want the CRM rejection", cmdErr.Err)
	}
}

func TestOpenDoorNonAuthErrorNoRetry(t *testing.T) {
	opener := &mockOpener{errs: []error{&cloud.APIError{Status: 500, Body: "boom"}}}
	creds := &mockCredentials{tokens: []string{"crm-1"}}
	d := New(opener, creds)

	err := d.OpenDoor(context.Background(), "08:13:CD:00:0D:7F", 1, "")
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("error = %v, want *CommandError", err)
	}
	if opener.calls != 1 {
		t.Errorf("open calls = %d, want 1", opener.calls)
	}
	if creds.invalidated != 0 {
		t.Errorf("invalidations = %d, want 0", creds.invalidated)
	}
}

func TestOpenDoorTokenFailure(t *testing.T) {
	wantErr := errors.New("no mobile token")
	creds := &mockCredentials{err: wantErr}
	d := New(&mockOpener{}, creds)

	err := d.OpenDoor(context.Background(), "08:13:CD:00:0D:7F", 1, "")
	if !errors.Is(err, wantErr) {
		t.Errorf("error = %v, want wrapped %v", err, wantErr)
	}
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Errorf("error = %v, want *CommandError", err)
	}
}
