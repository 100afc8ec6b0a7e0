package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/gray-logic-locks/internal/audit"
	"github.com/nerrad567/gray-logic-locks/internal/bridges/smartlock"
	"github.com/nerrad567/gray-logic-locks/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-locks/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-locks/internal/lock"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// LockController is the bridge surface used by the handlers.
// Satisfied by *smartlock.Bridge.
type LockController interface {
	Statuses() []lock.DeviceStatus
	Status(deviceID string) (lock.DeviceStatus, bool)
	Command(ctx context.Context, deviceID, capability string, value bool, source string) error
	Sync(ctx context.Context, deviceID, source string) error
	Health() smartlock.HealthMessage
}

// Translator resolves localisation keys. Satisfied by *i18n.Catalog.
type Translator interface {
	T(lang, key string) string
}

// Pinger reports connectivity of a backing service.
type Pinger interface {
	IsConnected() bool
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.APIConfig
	WS         config.WebSocketConfig
	Security   config.SecurityConfig
	Logger     *logging.Logger
	Locks      LockController
	Audit      audit.Repository
	Translator Translator
	// Language is used when a request carries no Accept-Language.
	Language string
	MQTT     Pinger
	// Collectors are registered on the /metrics registry next to the Go
	// runtime collectors.
	Collectors []prometheus.Collector
	// Hub, if set, is used instead of creating one. The projector needs
	// the hub before the server starts.
	Hub     *Hub
	Version string
}

// Server is the HTTP API server for the lock bridge.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg        config.APIConfig
	wsCfg      config.WebSocketConfig
	secCfg     config.SecurityConfig
	logger     *logging.Logger
	locks      LockController
	auditRepo  audit.Repository
	translator Translator
	language   string
	mqtt       Pinger
	registry   *prometheus.Registry
	tickets    *ticketStore
	version    string
	startTime  time.Time
	server     *http.Server
	hub        *Hub
	ownHub     bool
	cancel     context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, lock controller)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Locks == nil {
		return nil, fmt.Errorf("lock controller is required")
	}

	registry, err := newMetricsRegistry(deps.Collectors)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		secCfg:     deps.Security,
		logger:     deps.Logger,
		locks:      deps.Locks,
		auditRepo:  deps.Audit,
		translator: deps.Translator,
		language:   deps.Language,
		mqtt:       deps.MQTT,
		registry:   registry,
		tickets:    newTicketStore(),
		version:    deps.Version,
		startTime:  time.Now(),
		hub:        deps.Hub,
	}
	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
		s.ownHub = true
	}
	return s, nil
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub { return s.hub }

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub (when owned), the ticket cleanup loop and the
// HTTP listener in background goroutines. The server can be stopped with
// Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.ownHub {
		go s.hub.Run(srvCtx)
	}
	go s.cleanTicketsLoop(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
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
