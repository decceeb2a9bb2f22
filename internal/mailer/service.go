// Package mailer wires the mailer service components and manages their lifecycle.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/account"
	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/api"
	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/auth"
	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/config"
	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/db"
	mailerevents "github.com/burhanmukhtar/Molly-Pro/internal/mailer/events"
	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/health"
	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/infrastructure/lease"
	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/infrastructure/provider"
	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/infrastructure/store"
	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/ipledger"
	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/orchestrator"
	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/scheduler"
	"github.com/burhanmukhtar/Molly-Pro/internal/shared/logger"
	"github.com/burhanmukhtar/Molly-Pro/pkg/events"
)

// SchedulerInterface defines the interface for scheduler operations
type SchedulerInterface interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// APIServerInterface defines the interface for API server operations
type APIServerInterface interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Service coordinates all mailer service components and manages their lifecycle
type Service struct {
	config       *config.Config
	version      string
	orchestrator *orchestrator.Orchestrator
	accounts     account.Service
	scheduler    SchedulerInterface
	apiServer    APIServerInterface
	logger       *logger.Logger

	// Component instances for cleanup
	store       *db.SQLStore
	adapter     *provider.CircuitBreakerAdapter
	bus         events.EventBus
	probes      *health.Registry
	closeLocker func() error
	closeOnce   sync.Once

	ctx    context.Context
	cancel context.CancelFunc

	stopped               chan struct{}
	signalChan            chan os.Signal
	shutdownWg            sync.WaitGroup
	isRunning             bool
	mu                    sync.RWMutex
	disableSignalHandling bool // For testing
}

// Option customises a Service.
type Option func(*Service)

// WithoutSignalHandling leaves SIGINT and SIGTERM to the caller.
func WithoutSignalHandling() Option {
	return func(s *Service) { s.disableSignalHandling = true }
}

// WithVersion sets the version reported by the health endpoint.
func WithVersion(version string) Option {
	return func(s *Service) { s.version = version }
}

// NewService creates a new Service instance and initializes all components in proper dependency order
func NewService(cfg *config.Config, log *logger.Logger, opts ...Option) (*Service, error) {
	ctx, cancel := context.WithCancel(context.Background())

	service := &Service{
		config:     cfg,
		version:    "dev",
		logger:     log,
		ctx:        ctx,
		cancel:     cancel,
		stopped:    make(chan struct{}),
		signalChan: make(chan os.Signal, 1),
	}
	for _, opt := range opts {
		opt(service)
	}

	if err := service.initializeComponents(); err != nil {
		service.closeResources()
		cancel()
		return nil, fmt.Errorf("failed to initialize service components: %w", err)
	}

	return service, nil
}

// initializeComponents creates and wires all service components in proper dependency order
func (s *Service) initializeComponents() error {
	s.logger.Info("initializing service components")

	// 1. Database store
	baseStore, err := db.NewStore(&db.Config{
		Path:            s.config.DB.Path,
		MaxOpenConns:    s.config.DB.MaxOpenConns,
		MaxIdleConns:    s.config.DB.MaxIdleConns,
		ConnMaxLifetime: s.config.DB.ConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize database store: %w", err)
	}
	s.store = baseStore

	serverRepo := store.NewServerRepository(s.store, time.Now, s.logger)
	accountRepo := store.NewAccountRepository(s.store, time.Now, s.logger)
	ipRepo := store.NewIPRepository(s.store, time.Now, s.logger)
	s.accounts = account.NewService(accountRepo, 0, s.logger)

	// 2. Cloud provider behind a circuit breaker
	s.adapter, err = provider.NewAdapter(s.ctx, s.config.Provider, s.config.CircuitBreaker, s.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize provider adapter: %w", err)
	}
	if s.config.Firewall.Ensure {
		s.ensureFirewall()
	}

	// 3. Per-server leases
	locker, closeLocker, err := lease.NewLocker(s.ctx, s.config.Lease, s.config.Redis, s.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize lease backend: %w", err)
	}
	s.closeLocker = closeLocker

	// 4. Address ledger and readiness probes
	ledger := ipledger.New(ipRepo, s.adapter, s.logger)

	checker := health.NewHTTPHealthChecker(health.HTTPCheckerConfig{
		Port:           s.config.Probe.Port,
		Path:           s.config.Probe.Path,
		AttemptTimeout: s.config.Probe.AttemptTimeout,
	})
	prober := health.NewProber(checker, s.logger)
	s.probes = health.NewRegistry(s.ctx, s.logger)

	// 5. Lifecycle events with an audit trail
	s.bus = events.NewGookitEventBus(events.DefaultEventBusConfig(), s.logger)
	publisher := mailerevents.NewPublisher(s.bus, s.logger)
	if err := publisher.SubscribeAudit(s.logger); err != nil {
		return fmt.Errorf("failed to subscribe audit log: %w", err)
	}

	// 6. Orchestrator
	script, err := loadStartupScript(s.config.Orchestrator.StartupScriptPath)
	if err != nil {
		return err
	}
	s.orchestrator, err = orchestrator.New(orchestrator.Deps{
		Servers:  serverRepo,
		Accounts: s.accounts,
		Ledger:   ledger,
		Adapter:  s.adapter,
		Prober:   prober,
		Probes:   s.probes,
		Locker:   locker,
		Events:   publisher,
		Logger:   s.logger,
	}, orchestrator.ConfigFrom(s.config, script))
	if err != nil {
		return fmt.Errorf("failed to initialize orchestrator: %w", err)
	}

	// 7. Scheduler
	schedulerManager, err := scheduler.NewManager(s.config.Scheduler, s.orchestrator, s.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize scheduler: %w", err)
	}
	s.scheduler = schedulerManager

	// 8. API server
	issuer, err := auth.NewIssuer(s.config.Auth.JWTSecret, s.config.Auth.TokenTTL, s.config.Auth.Issuer)
	if err != nil {
		return fmt.Errorf("failed to initialize token issuer: %w", err)
	}
	apiServer := api.NewServer(
		api.ServerConfig{
			Address:      s.config.API.ListenAddr,
			CORSOrigins:  s.config.API.CORSOrigins,
			AdminKey:     s.config.API.AdminKey,
			Version:      s.version,
			WriteTimeout: s.config.Orchestrator.ProviderCallTimeout + time.Minute,
		},
		s.orchestrator,
		s.accounts,
		issuer,
		s.store,
		s.logger,
	)
	apiServer.SetProviderMonitor(s.adapter)
	s.apiServer = apiServer

	s.logger.Info("all service components initialized successfully",
		"provider", s.adapter.Name(),
		"lease_backend", s.config.Lease.Backend)
	return nil
}

// ensureFirewall opens the configured ingress ports. Failure is logged only:
// the rules may already exist under another name.
func (s *Service) ensureFirewall() {
	rules := make([]provider.PortRule, 0, len(s.config.Firewall.Ports))
	for _, port := range s.config.Firewall.Ports {
		rules = append(rules, provider.PortRule{Protocol: "tcp", Port: port})
	}

	ctx, cancel := context.WithTimeout(s.ctx, time.Minute)
	defer cancel()
	if err := s.adapter.EnsureIngressRules(ctx, rules); err != nil {
		s.logger.WarnErr(ctx, "failed to ensure ingress rules", err)
	}
}

func loadStartupScript(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read startup script %s: %w", path, err)
	}
	return string(b), nil
}

// Start starts all service components in proper dependency order
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("service is already running")
	}
	if s.ctx.Err() != nil {
		return fmt.Errorf("service has been stopped")
	}

	s.logger.InfoContext(ctx, "starting mailer service")

	if !s.disableSignalHandling {
		s.setupSignalHandling()
	}

	if err := s.scheduler.Start(s.ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	if err := s.apiServer.Start(s.ctx); err != nil {
		if stopErr := s.scheduler.Stop(ctx); stopErr != nil {
			s.logger.ErrorCtx(ctx, "failed to stop scheduler during cleanup", stopErr)
		}
		return fmt.Errorf("failed to start API server: %w", err)
	}

	s.isRunning = true
	s.logger.InfoContext(ctx, "mailer service started successfully")
	return nil
}

// setupSignalHandling configures signal handling for graceful shutdown
func (s *Service) setupSignalHandling() {
	signal.Notify(s.signalChan, syscall.SIGINT, syscall.SIGTERM)

	s.shutdownWg.Add(1)
	go s.handleSignals()
}

// handleSignals processes shutdown signals and initiates graceful shutdown
func (s *Service) handleSignals() {
	defer s.shutdownWg.Done()

	select {
	case sig := <-s.signalChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout())
		defer cancel()

		// Stop waits on shutdownWg, which this goroutine holds
		go func() {
			if err := s.Stop(shutdownCtx); err != nil {
				s.logger.ErrorCtx(shutdownCtx, "error during graceful shutdown", err)
			}
		}()
		<-s.ctx.Done()

	case <-s.ctx.Done():
		s.logger.Debug("signal handler exiting due to service context cancellation")
	}
}

// WaitForShutdown blocks until Stop has finished, either after a shutdown
// signal or a direct call.
func (s *Service) WaitForShutdown() {
	s.logger.Info("service running, waiting for shutdown signal")
	<-s.stopped
	s.logger.Info("service shutdown complete")
}

// Stop gracefully shuts down all service components with proper cleanup order
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		s.logger.Warn("service is not running")
		return nil
	}

	s.logger.InfoContext(ctx, "stopping mailer service")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.shutdownTimeout())
	defer cancel()

	var errs []error

	if !s.disableSignalHandling {
		signal.Stop(s.signalChan)
	}

	// 1. API server first, so no new operations start
	if err := s.apiServer.Stop(shutdownCtx); err != nil {
		s.logger.ErrorCtx(shutdownCtx, "failed to stop API server", err)
		errs = append(errs, err)
	}

	// 2. Scheduler
	if err := s.scheduler.Stop(shutdownCtx); err != nil {
		s.logger.ErrorCtx(shutdownCtx, "failed to stop scheduler", err)
		errs = append(errs, err)
	}

	// 3. Cancel the service context. Running probes stop; servers they were
	// watching are picked up again by the reconcile job after restart.
	s.cancel()
	s.probes.Close()
	if err := s.probes.Wait(shutdownCtx); err != nil {
		s.logger.WarnErr(shutdownCtx, "readiness probes did not finish", err)
	}

	// 4. Remaining resources
	if err := s.closeResources(); err != nil {
		errs = append(errs, err)
	}

	done := make(chan struct{})
	go func() {
		s.shutdownWg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		s.logger.Warn("timeout waiting for background goroutines to finish")
		errs = append(errs, shutdownCtx.Err())
	}

	s.isRunning = false
	close(s.stopped)

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("service shutdown completed with errors: %w", err)
	}

	s.logger.InfoContext(ctx, "mailer service stopped successfully")
	return nil
}

// Close releases the resources of a service that was never started.
// Started services are released by Stop.
func (s *Service) Close() error {
	s.mu.RLock()
	running := s.isRunning
	s.mu.RUnlock()
	if running {
		return fmt.Errorf("service is running, use Stop")
	}

	s.cancel()
	if s.probes != nil {
		s.probes.Close()
	}
	return s.closeResources()
}

// closeResources releases connections in reverse dependency order. It runs once.
func (s *Service) closeResources() error {
	var errs []error
	s.closeOnce.Do(func() {
		if s.bus != nil {
			if err := s.bus.Close(); err != nil {
				errs = append(errs, fmt.Errorf("event bus: %w", err))
			}
		}
		if s.closeLocker != nil {
			if err := s.closeLocker(); err != nil {
				errs = append(errs, fmt.Errorf("lease backend: %w", err))
			}
		}
		if s.adapter != nil {
			if closer, ok := s.adapter.Unwrap().(io.Closer); ok {
				if err := closer.Close(); err != nil {
					errs = append(errs, fmt.Errorf("provider adapter: %w", err))
				}
			}
		}
		if s.store != nil {
			if err := s.store.Close(); err != nil {
				errs = append(errs, fmt.Errorf("database store: %w", err))
			}
		}
	})
	for _, err := range errs {
		s.logger.ErrorCtx(context.Background(), "failed to close resource", err)
	}
	return errors.Join(errs...)
}

func (s *Service) shutdownTimeout() time.Duration {
	if s.config != nil && s.config.Service.ShutdownTimeout > 0 {
		return s.config.Service.ShutdownTimeout
	}
	return 30 * time.Second
}

// Health checks the health of all service components
func (s *Service) Health(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return fmt.Errorf("service is not running")
	}

	select {
	case <-s.ctx.Done():
		return fmt.Errorf("service context cancelled")
	default:
	}
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// IsRunning returns whether the service is currently running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Orchestrator exposes the lifecycle service for one-shot commands.
func (s *Service) Orchestrator() *orchestrator.Orchestrator {
	return s.orchestrator
}

// Accounts exposes the account service for one-shot commands.
func (s *Service) Accounts() account.Service {
	return s.accounts
}
