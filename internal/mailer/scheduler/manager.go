// Package scheduler runs the periodic expiry sweep and probe reconciliation.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/config"
	"github.com/burhanmukhtar/Molly-Pro/internal/shared/logger"
	"github.com/robfig/cron/v3"
)

// DefaultJobTimeout bounds a single job run.
const DefaultJobTimeout = 10 * time.Minute

const (
	JobExpirySweep    = "expiry_sweep"
	JobProbeReconcile = "probe_reconcile"
)

// Jobs are the maintenance operations the scheduler drives.
type Jobs interface {
	ExpirySweep(ctx context.Context) (int, error)
	ReconcileStale(ctx context.Context) (int, error)
}

// Manager owns the cron runner and its lifecycle.
type Manager struct {
	cron       *cron.Cron
	jobs       Jobs
	jobTimeout time.Duration
	logger     *logger.Logger

	// Internal state for lifecycle management
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.RWMutex
	running bool

	// ctx is read by cron jobs and guarded separately so Stop can wait on them
	ctxMu sync.RWMutex
	ctx   context.Context
}

// NewManager registers both jobs. Invalid cron specs are reported here.
func NewManager(cfg config.SchedulerConfig, jobs Jobs, log *logger.Logger) (*Manager, error) {
	if log == nil {
		log = logger.Discard()
	}
	log = log.WithComponent("scheduler")

	cronLog := cronLogger{log}
	m := &Manager{
		cron: cron.New(cron.WithChain(
			cron.Recover(cronLog),
			cron.SkipIfStillRunning(cronLog),
		), cron.WithLogger(cronLog)),
		jobs:       jobs,
		jobTimeout: DefaultJobTimeout,
		logger:     log,
	}

	if _, err := m.cron.AddFunc(cfg.ExpirySchedule, func() { m.run(JobExpirySweep, jobs.ExpirySweep) }); err != nil {
		return nil, fmt.Errorf("invalid %s schedule %q: %w", JobExpirySweep, cfg.ExpirySchedule, err)
	}
	if _, err := m.cron.AddFunc(cfg.ReconcileSchedule, func() { m.run(JobProbeReconcile, jobs.ReconcileStale) }); err != nil {
		return nil, fmt.Errorf("invalid %s schedule %q: %w", JobProbeReconcile, cfg.ReconcileSchedule, err)
	}
	return m, nil
}

// Start launches the cron runner and an immediate expiry sweep.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		m.logger.Warn("scheduler is already running")
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.ctxMu.Lock()
	m.ctx = runCtx
	m.ctxMu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.run(JobExpirySweep, m.jobs.ExpirySweep)
	}()

	m.cron.Start()
	m.running = true

	m.logger.Info("scheduler started", slog.Int("jobs", len(m.cron.Entries())))
	return nil
}

// Stop cancels running jobs and waits for them, bounded by ctx.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}

	m.cancel()
	cronDone := m.cron.Stop()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		<-cronDone.Done()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("scheduler stopped")
	case <-ctx.Done():
		m.logger.Warn("scheduler stop timed out")
		return ctx.Err()
	}

	m.running = false
	return nil
}

// IsRunning returns whether the scheduler is currently running.
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

func (m *Manager) run(name string, job func(context.Context) (int, error)) {
	m.ctxMu.RLock()
	base := m.ctx
	m.ctxMu.RUnlock()
	if base == nil || base.Err() != nil {
		return
	}

	ctx, cancel := context.WithTimeout(logger.WithOperation(base, name), m.jobTimeout)
	defer cancel()

	start := time.Now()
	n, err := job(ctx)
	if err != nil {
		m.logger.ErrorCtx(ctx, "scheduled job failed", err, slog.String("job", name))
		return
	}
	m.logger.WithContext(ctx).Debug("scheduled job finished",
		slog.String("job", name),
		slog.Int("affected", n),
		slog.Duration("duration", time.Since(start)))
}

// cronLogger routes cron's own messages into the service logger.
type cronLogger struct {
	l *logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.ErrorCtx(context.Background(), "cron: "+msg, err, keysAndValues...)
}
