// Package orchestrator drives the mailer server lifecycle: creation, status
// checks, address rotation, termination and expiry. It coordinates the cloud
// adapter, the server repository, the IP ledger, the points ledger and the
// background readiness probes.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/account"
	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/config"
	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/events"
	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/health"
	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/infrastructure/lease"
	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/infrastructure/provider"
	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/ipledger"
	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/server"
	apperrors "github.com/burhanmukhtar/Molly-Pro/internal/shared/errors"
	"github.com/burhanmukhtar/Molly-Pro/internal/shared/logger"
)

// Service defines the lifecycle operations exposed to the API and the scheduler.
type Service interface {
	Create(ctx context.Context, userID string, class server.Class) (*server.Server, error)
	GetActive(ctx context.Context, userID string) ([]server.View, error)
	CheckStatus(ctx context.Context, serverID, userID string) (server.View, error)
	RotateIP(ctx context.Context, serverID, userID string) (server.View, error)
	Terminate(ctx context.Context, serverID, userID string) error

	// Background maintenance
	ExpirySweep(ctx context.Context) (int, error)
	ReconcileStale(ctx context.Context) (int, error)

	SelectPlacement(ctx context.Context) (Placement, error)
	ListUsedIPs(ctx context.Context, role account.Role) ([]*ipledger.UsedIP, error)
}

// Accounts is the slice of the points ledger the orchestrator needs.
type Accounts interface {
	GetBalance(ctx context.Context, userID string) (int64, error)
	Debit(ctx context.Context, userID string, amount int64) error
}

// AddressLedger draws never-before-used floating addresses.
type AddressLedger interface {
	DrawFreshAddress(ctx context.Context, region, userID, instanceID string, maxAttempts int) (*provider.FloatingIP, error)
	Release(ctx context.Context, region string, fip *provider.FloatingIP)
	ListUsed(ctx context.Context) ([]*ipledger.UsedIP, error)
}

// ReadinessProber checks the mailer service on an address.
type ReadinessProber interface {
	Probe(ctx context.Context, address string, maxAttempts int, retryDelay time.Duration) bool
	Check(ctx context.Context, address string, timeout time.Duration) bool
}

// ProbeRunner supervises background probes, at most one per server.
type ProbeRunner interface {
	Run(serverID string, fn health.ProbeFunc) (<-chan bool, bool)
	InFlight(serverID string) bool
	Cancel(serverID string)
}

// Config holds the resolved lifecycle settings.
type Config struct {
	Classes          map[server.Class]server.ClassPolicy
	Zones            []string
	PerRegionUserCap int

	Image         string
	StartupScript string

	QuiescenceWindow      time.Duration
	IPRotationMaxAttempts int
	ProviderCallTimeout   time.Duration
	LeaseTTL              time.Duration

	ProbeAttempts   int
	ProbeDelay      time.Duration
	RecheckAttempts int
	RecheckDelay    time.Duration
	DirectTimeout   time.Duration
}

// DefaultConfig returns the stock class policies and probe timings.
func DefaultConfig() Config {
	return Config{
		Classes: map[server.Class]server.ClassPolicy{
			server.ClassEphemeral: {
				Cost: 100, Duration: 2 * time.Hour,
				MachineType: "e2-standard-2", DiskSizeGB: 10, DiskType: "pd-ssd",
			},
			server.ClassPersistent: {
				Cost: 2000, Duration: 12 * time.Hour,
				MachineType: "e2-standard-2", DiskSizeGB: 10, DiskType: "pd-ssd",
			},
		},
		Zones:                 []string{"us-central1-a"},
		QuiescenceWindow:      60 * time.Second,
		IPRotationMaxAttempts: ipledger.DefaultMaxAttempts,
		ProviderCallTimeout:   5 * time.Minute,
		LeaseTTL:              lease.DefaultTTL,
		ProbeAttempts:         30,
		ProbeDelay:            10 * time.Second,
		RecheckAttempts:       15,
		RecheckDelay:          5 * time.Second,
		DirectTimeout:         3 * time.Second,
	}
}

// ConfigFrom resolves the orchestrator settings from the service configuration.
// startupScript is the already loaded boot script.
func ConfigFrom(cfg *config.Config, startupScript string) Config {
	policy := func(c config.ClassConfig) server.ClassPolicy {
		return server.ClassPolicy{
			Cost:        c.Cost,
			Duration:    c.Duration,
			MachineType: c.MachineType,
			DiskSizeGB:  c.DiskSizeGB,
			DiskType:    c.DiskType,
		}
	}

	return Config{
		Classes: map[server.Class]server.ClassPolicy{
			server.ClassEphemeral:  policy(cfg.Classes.Ephemeral),
			server.ClassPersistent: policy(cfg.Classes.Persistent),
		},
		Zones:                 cfg.Placement.Zones,
		PerRegionUserCap:      cfg.Placement.PerRegionUserCap,
		Image:                 provider.ImageFor(cfg.Provider),
		StartupScript:         startupScript,
		QuiescenceWindow:      cfg.Orchestrator.QuiescenceWindow,
		IPRotationMaxAttempts: cfg.Orchestrator.IPRotationMaxAttempts,
		ProviderCallTimeout:   cfg.Orchestrator.ProviderCallTimeout,
		LeaseTTL:              cfg.Lease.TTL,
		ProbeAttempts:         cfg.Probe.MaxAttempts,
		ProbeDelay:            cfg.Probe.RetryDelay,
		RecheckAttempts:       cfg.Probe.RecheckAttempts,
		RecheckDelay:          cfg.Probe.RecheckDelay,
		DirectTimeout:         cfg.Probe.DirectTimeout,
	}
}

// Deps are the collaborators of the orchestrator. Events and Clock are optional.
type Deps struct {
	Servers  server.Repository
	Accounts Accounts
	Ledger   AddressLedger
	Adapter  provider.Adapter
	Prober   ReadinessProber
	Probes   ProbeRunner
	Locker   lease.Locker
	Events   *events.Publisher
	Clock    func() time.Time
	Logger   *logger.Logger
}

// Orchestrator implements Service.
type Orchestrator struct {
	servers  server.Repository
	accounts Accounts
	ledger   AddressLedger
	adapter  provider.Adapter
	prober   ReadinessProber
	probes   ProbeRunner
	locker   lease.Locker
	events   *events.Publisher
	now      func() time.Time
	cfg      Config
	logger   *logger.Logger
}

var _ Service = (*Orchestrator)(nil)

// New creates an orchestrator. Zero-valued settings in cfg fall back to DefaultConfig.
func New(deps Deps, cfg Config) (*Orchestrator, error) {
	if deps.Servers == nil || deps.Accounts == nil || deps.Ledger == nil || deps.Adapter == nil ||
		deps.Prober == nil || deps.Probes == nil || deps.Locker == nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeConfiguration,
			"orchestrator is missing a required dependency", false, nil)
	}
	if len(cfg.Classes) == 0 {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeConfiguration,
			"no server classes configured", false, nil)
	}

	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = logger.Discard()
	}

	return &Orchestrator{
		servers:  deps.Servers,
		accounts: deps.Accounts,
		ledger:   deps.Ledger,
		adapter:  deps.Adapter,
		prober:   deps.Prober,
		probes:   deps.Probes,
		locker:   deps.Locker,
		events:   deps.Events,
		now:      deps.Clock,
		cfg:      withDefaults(cfg),
		logger:   deps.Logger.WithComponent("server.orchestrator"),
	}, nil
}

func withDefaults(cfg Config) Config {
	def := DefaultConfig()
	if len(cfg.Zones) == 0 {
		cfg.Zones = def.Zones
	}
	if cfg.QuiescenceWindow <= 0 {
		cfg.QuiescenceWindow = def.QuiescenceWindow
	}
	if cfg.IPRotationMaxAttempts <= 0 {
		cfg.IPRotationMaxAttempts = def.IPRotationMaxAttempts
	}
	if cfg.ProviderCallTimeout <= 0 {
		cfg.ProviderCallTimeout = def.ProviderCallTimeout
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = def.LeaseTTL
	}
	if cfg.ProbeAttempts <= 0 {
		cfg.ProbeAttempts = def.ProbeAttempts
	}
	if cfg.ProbeDelay < 0 {
		cfg.ProbeDelay = def.ProbeDelay
	}
	if cfg.RecheckAttempts <= 0 {
		cfg.RecheckAttempts = def.RecheckAttempts
	}
	if cfg.RecheckDelay < 0 {
		cfg.RecheckDelay = def.RecheckDelay
	}
	if cfg.DirectTimeout <= 0 {
		cfg.DirectTimeout = def.DirectTimeout
	}
	return cfg
}

// ownedServer loads serverID and hides servers of other users behind NotFound.
func (o *Orchestrator) ownedServer(ctx context.Context, serverID, userID string) (*server.Server, error) {
	s, err := o.servers.Get(ctx, serverID)
	if err != nil {
		return nil, err
	}
	if !s.OwnedBy(userID) {
		return nil, server.ErrServerNotFound
	}
	return s, nil
}

// Provider-bounded calls made while a lease is held. Create may create the
// instance, attach a floating address and roll both back.
const (
	createProviderCalls = 3
	serverProviderCalls = 1
)

// acquire takes key for an operation making up to providerCalls calls bounded
// by ProviderCallTimeout. A held lease is reported as an operation in progress.
func (o *Orchestrator) acquire(ctx context.Context, key string, providerCalls int) (lease.Lease, error) {
	l, err := o.locker.Acquire(ctx, key, o.leaseTTL(providerCalls))
	if err != nil {
		if errors.Is(err, lease.ErrLeaseHeld) {
			return nil, server.NewInvalidOperationError("another operation is already in progress").
				WithMetadata("lease", key)
		}
		return nil, err
	}
	return l, nil
}

// leaseTTL outlasts providerCalls timed-out provider calls plus LeaseTTL of
// local work.
func (o *Orchestrator) leaseTTL(providerCalls int) time.Duration {
	return o.cfg.LeaseTTL + time.Duration(providerCalls)*o.cfg.ProviderCallTimeout
}

func (o *Orchestrator) release(ctx context.Context, l lease.Lease) {
	if err := l.Release(context.WithoutCancel(ctx)); err != nil {
		o.logger.WarnErr(ctx, "failed to release lease", err, slog.String("lease", l.Key()))
	}
}

// providerCtx bounds calls that wait on long-running provider jobs.
func (o *Orchestrator) providerCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, o.cfg.ProviderCallTimeout)
}
