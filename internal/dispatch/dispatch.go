package dispatch

import (
	"context"
	"fmt"

	"github.com/smolnikov/domofon-core/internal/cloud"
	"github.com/smolnikov/domofon-core/internal/token"
)

// Opener is the door-command subset of the cloud client.
type Opener interface {
	OpenDoor(ctx context.Context, crmBearer, mac string, doorID int, openLink string) error
}

// Credentials is the CRM-token subset of the session.
type Credentials interface {
	EnsureCRMToken(ctx context.Context) (*token.CRM, error)
	InvalidateCRMToken()
}

// Logger is the logging interface for the dispatcher.
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

// CommandError is a door-open command that failed after the recovery
// path was exhausted.
type CommandError struct {
	MAC    string
	DoorID int
	Err    error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("dispatch: opening door %s/%d: %v", e.MAC, e.DoorID, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Dispatcher issues door-open commands with the single-reauth recovery
// path. Safe for concurrent use.
type Dispatcher struct {
	opener      Opener
	credentials Credentials
	logger      Logger
}

// New creates a dispatcher.
func New(opener Opener, credentials Credentials) *Dispatcher {
	return &Dispatcher{
		opener:      opener,
		credentials: credentials,
		logger:      noopLogger{},
	}
}

// SetLogger sets the logger for the dispatcher.
func (d *Dispatcher) SetLogger(logger Logger) {
	if logger != nil {
		d.logger = logger
	}
}

// OpenDoor opens the door identified by MAC and door id, using the
// relay-supplied open link when present. On an auth rejection the CRM
// token is replaced and the command retried exactly once.
func (d *Dispatcher) OpenDoor(ctx context.Context, mac string, doorID int, openLink string) error {
	crm, err := d.credentials.EnsureCRMToken(ctx)
	if err != nil {
		return &CommandError{MAC: mac, DoorID: doorID, Err: err}
	}

	err = d.opener.OpenDoor(ctx, crm.Token, mac, doorID, openLink)
	if err == nil {
		d.logger.Info("door opened", "mac", mac, "door_id", doorID)
		return nil
	}
	if !cloud.IsAuthRejected(err) {
		return &CommandError{MAC: mac, DoorID: doorID, Err: err}
	}

	d.logger.Warn("crm rejected door command, reauthorizing once", "mac", mac, "door_id", doorID)
	d.credentials.InvalidateCRMToken()

	crm, err = d.credentials.EnsureCRMToken(ctx)
	if err != nil {
		return &CommandError{MAC: mac, DoorID: doorID, Err: err}
	}
	if err := d.opener.OpenDoor(ctx, crm.Token, mac, doorID, openLink); err != nil {
		return &CommandError{MAC: mac, DoorID: doorID, Err: err}
	}

	d.logger.Info("door opened after reauthorization", "mac", mac, "door_id", doorID)
	return nil
}
