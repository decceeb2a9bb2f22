package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/account"
	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/auth"
	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/infrastructure/provider"
	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/ipledger"
	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/server"
	applogger "github.com/burhanmukhtar/Molly-Pro/internal/shared/logger"
)

// Orchestrator is the slice of the lifecycle service the API calls.
type Orchestrator interface {
	Create(ctx context.Context, userID string, class server.Class) (*server.Server, error)
	GetActive(ctx context.Context, userID string) ([]server.View, error)
	CheckStatus(ctx context.Context, serverID, userID string) (server.View, error)
	RotateIP(ctx context.Context, serverID, userID string) (server.View, error)
	Terminate(ctx context.Context, serverID, userID string) error
	ListUsedIPs(ctx context.Context, role account.Role) ([]*ipledger.UsedIP, error)
}

// Accounts authenticates users and manages balances.
type Accounts interface {
	FindByCredentials(ctx context.Context, username, password string) (*account.Account, error)
	GetBalance(ctx context.Context, id string) (int64, error)
	CreateUser(ctx context.Context, username, password string, points int64, role account.Role) (*account.Account, error)
}

// TokenVerifier validates bearer tokens.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// TokenIssuer issues and validates bearer tokens.
type TokenIssuer interface {
	TokenVerifier
	Issue(userID string, role account.Role) (string, error)
	TTL() time.Duration
}

// HealthChecker reports whether the backing store is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// ProviderMonitor exposes the provider circuit breaker.
type ProviderMonitor interface {
	Name() string
	GetState() provider.CircuitState
	GetMetrics() map[string]interface{}
}

// Server represents the HTTP API server with proper lifecycle management.
type Server struct {
	server       *http.Server
	orchestrator Orchestrator
	accounts     Accounts
	tokens       TokenIssuer
	health       HealthChecker
	monitor      ProviderMonitor
	logger       *applogger.Logger
	corsOrigins  []string
	adminKey     string
	version      string
	now          func() time.Time
}

// ServerConfig contains configuration for the API server.
type ServerConfig struct {
	Address     string
	CORSOrigins []string
	AdminKey    string
	Version     string
	// WriteTimeout must cover a full server creation.
	WriteTimeout time.Duration
}

// NewServer creates a new API server instance.
func NewServer(config ServerConfig, orchestrator Orchestrator, accounts Accounts, tokens TokenIssuer,
	health HealthChecker, logger *applogger.Logger) *Server {
	if logger == nil {
		logger = applogger.Discard()
	}
	writeTimeout := config.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 6 * time.Minute
	}

	s := &Server{
		orchestrator: orchestrator,
		accounts:     accounts,
		tokens:       tokens,
		health:       health,
		logger:       logger.WithComponent("api"),
		corsOrigins:  config.CORSOrigins,
		adminKey:     config.AdminKey,
		version:      config.Version,
		now:          time.Now,
	}
	s.server = &http.Server{
		Addr:              config.Address,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// SetProviderMonitor adds provider circuit state to the health report and
// enables the admin provider endpoint. Call before Start.
func (s *Server) SetProviderMonitor(m ProviderMonitor) {
	s.monitor = m
}

// Start binds the listener and serves requests in the background.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("api server failed to start: %w", err)
	}

	s.server.Handler = s.Handler()
	s.logger.InfoContext(ctx, "API server listening", "address", ln.Addr().String())

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.ErrorCtx(context.Background(), "api server stopped unexpectedly", err)
		}
	}()
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.InfoContext(ctx, "shutting down API server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api server shutdown failed: %w", err)
	}

	s.logger.InfoContext(ctx, "API server shut down successfully")
	return nil
}

// Handler builds the routed handler with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux)

	return Chain(
		Recovery(),
		RequestID(s.logger),
		Logging(),
		CORS(s.corsOrigins),
	)(mux)
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	authed := Authenticate(s.tokens)

	mux.HandleFunc("GET /api/healthcheck", s.healthHandler())
	mux.HandleFunc("POST /api/login", s.loginHandler())

	mux.Handle("GET /api/user/points", authed(s.pointsHandler()))

	mux.Handle("POST /api/servers", authed(s.createServerHandler()))
	mux.Handle("GET /api/servers", authed(s.listServersHandler()))
	mux.Handle("GET /api/servers/{id}/status", authed(s.serverStatusHandler()))
	mux.Handle("POST /api/servers/{id}/rotate-ip", authed(s.rotateIPHandler()))
	mux.Handle("DELETE /api/servers/{id}", authed(s.terminateHandler()))

	mux.Handle("GET /api/admin/used-ips", authed(s.usedIPsHandler()))
	mux.Handle("GET /api/admin/provider", authed(s.providerStatusHandler()))
	mux.Handle("POST /api/admin/users", RequireAdminKey(s.adminKey)(s.createUserHandler()))
}
