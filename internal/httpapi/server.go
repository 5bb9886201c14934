package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/smolnikov/domofon-core/internal/cloud"
	"github.com/smolnikov/domofon-core/internal/infrastructure/config"
	"github.com/smolnikov/domofon-core/internal/infrastructure/logging"
	"github.com/smolnikov/domofon-core/internal/relay"
	"github.com/smolnikov/domofon-core/internal/token"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight
// requests to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Catalog provides the normalized door list.
type Catalog interface {
	Refresh(ctx context.Context) ([]relay.Record, error)
	Doors() []relay.Record
	Get(uid string) (relay.Record, error)
}

// Opener executes door-open commands with reauthorization handling.
type Opener interface {
	OpenDoor(ctx context.Context, mac string, doorID int, openLink string) error
}

// Faces is the known-face registry.
type Faces interface {
	Available() bool
	Names() []string
	Add(ctx context.Context, name string, image []byte) error
	Remove(ctx context.Context, name string) error
}

// Account is the dual-credential session the login and account routes
// drive.
type Account interface {
	RequestConfirmation(ctx context.Context) (*cloud.ConfirmContext, error)
	CheckConfirmation(ctx context.Context, code string) (*cloud.CheckConfirmResult, error)
	Authenticate(ctx context.Context, userID string) (*token.Mobile, error)
	EnsureMobileToken(ctx context.Context) (*token.Mobile, error)
	Snapshot() (mobile, crm map[string]any)
}

// CloudReader fetches account views from the mobile API.
type CloudReader interface {
	UserInfo(ctx context.Context, bearer string, userID, profileID int) (map[string]any, error)
	Balance(ctx context.Context, bearer string, userID, profileID int) (map[string]any, error)
}

// Cycles controls the background face-match watcher.
type Cycles interface {
	Trigger(ctx context.Context)
	Selected() []string
	SetSelection(uids []string)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	Logger  *logging.Logger
	Catalog Catalog
	Opener  Opener
	Faces   Faces
	Account Account
	Cloud   CloudReader
	Watcher Cycles // nil when the watcher is disabled

	// ExternalHub, when set, is used instead of creating a fresh hub.
	// The composition root needs the hub before the server exists so the
	// watcher sink can broadcast into it.
	ExternalHub *Hub
	Version     string
}

// Server is the local HTTP control API server.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg     config.APIConfig
	logger  *logging.Logger
	catalog Catalog
	opener  Opener
	faces   Faces
	account Account
	cloud   CloudReader
	watcher Cycles
	version string

	server      *http.Server
	hub         *Hub
	externalHub bool
	cancel      context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Catalog == nil {
		return nil, fmt.Errorf("door catalog is required")
	}
	if deps.Config.Token == "" {
		return nil, fmt.Errorf("api token is required")
	}

	s := &Server{
		cfg:     deps.Config,
		logger:  deps.Logger,
		catalog: deps.Catalog,
		opener:  deps.Opener,
		faces:   deps.Faces,
		account: deps.Account,
		cloud:   deps.Cloud,
		watcher: deps.Watcher,
		version: deps.Version,
	}

	if deps.ExternalHub != nil {
		s.hub = deps.ExternalHub
		s.externalHub = true
	}

	return s, nil
}

// Hub returns the WebSocket hub, creating it if necessary. It lets the
// composition root broadcast watcher events without importing the hub's
// internals.
func (s *Server) Hub() *Hub {
	if s.hub == nil {
		s.hub = NewHub(s.logger)
	}
	return s.hub
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub, and launches the
// HTTP listener in a background goroutine. The server is stopped with
// Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.hub == nil {
		s.hub = NewHub(s.logger)
	}
	if !s.externalHub {
		go s.hub.Run(srvCtx)
	}

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       s.cfg.ReadTimeout(),
		ReadHeaderTimeout: s.cfg.ReadTimeout(),
		WriteTimeout:      s.cfg.WriteTimeout(),
		IdleTimeout:       s.cfg.IdleTimeout(),
	}

	go func() {
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	s.logger.Info("API server started", "address", s.server.Addr)
	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete, then
// forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
