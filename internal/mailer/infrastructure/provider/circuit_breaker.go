package provider

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/server"
	apperrors "github.com/burhanmukhtar/Molly-Pro/internal/shared/errors"
	"github.com/burhanmukhtar/Molly-Pro/internal/shared/logger"
)

// CircuitState represents the state of the circuit breaker.
type CircuitState string

const (
	CircuitStateClosed   CircuitState = "closed"    // Normal operation
	CircuitStateOpen     CircuitState = "open"      // Failing, reject requests
	CircuitStateHalfOpen CircuitState = "half-open" // Testing if service recovered
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = apperrors.NewProviderError(apperrors.ErrCodeProviderUnavailable,
	"cloud provider temporarily unavailable", true, nil).WithMetadata("circuit", string(CircuitStateOpen))

// CircuitBreakerConfig contains configuration for the circuit breaker.
type CircuitBreakerConfig struct {
	// MaxAttempts bounds retries of read-only calls.
	MaxAttempts      int
	BaseDelay        time.Duration
	MaxDelay         time.Duration
	FailureThreshold int
	ResetTimeout     time.Duration
}

// DefaultCircuitBreakerConfig returns the default circuit breaker configuration.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		MaxAttempts:      3,
		BaseDelay:        500 * time.Millisecond,
		MaxDelay:         5 * time.Second,
		FailureThreshold: 5,
		ResetTimeout:     time.Minute,
	}
}

// CircuitBreakerAdapter wraps an Adapter. While open, calls fail fast with
// ErrCircuitOpen. Transient failures count toward the threshold; read-only
// calls are retried with jittered backoff.
type CircuitBreakerAdapter struct {
	next   Adapter
	config CircuitBreakerConfig
	logger *logger.Logger
	now    func() time.Time

	mu              sync.RWMutex
	state           CircuitState
	failureCount    int
	lastFailureTime time.Time
	nextStateChange time.Time
}

// NewCircuitBreakerAdapter creates a new circuit breaker around next.
func NewCircuitBreakerAdapter(next Adapter, config CircuitBreakerConfig, log *logger.Logger) *CircuitBreakerAdapter {
	def := DefaultCircuitBreakerConfig()
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = def.MaxAttempts
	}
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = def.FailureThreshold
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = def.ResetTimeout
	}

	return &CircuitBreakerAdapter{
		next:   next,
		config: config,
		logger: log.WithComponent("provider.breaker"),
		now:    time.Now,
		state:  CircuitStateClosed,
	}
}

func (cb *CircuitBreakerAdapter) Name() string                { return cb.next.Name() }
func (cb *CircuitBreakerAdapter) RegionOf(zone string) string { return cb.next.RegionOf(zone) }

// Unwrap returns the wrapped adapter.
func (cb *CircuitBreakerAdapter) Unwrap() Adapter { return cb.next }

func (cb *CircuitBreakerAdapter) CreateInstance(ctx context.Context, spec InstanceSpec) (*Instance, error) {
	var inst *Instance
	err := cb.call(ctx, false, func() error {
		var err error
		inst, err = cb.next.CreateInstance(ctx, spec)
		return err
	})
	return inst, err
}

func (cb *CircuitBreakerAdapter) GetInstanceState(ctx context.Context, instanceID, zone string) (server.ProviderState, error) {
	state := server.ProviderUnknown
	err := cb.call(ctx, true, func() error {
		var err error
		state, err = cb.next.GetInstanceState(ctx, instanceID, zone)
		return err
	})
	return state, err
}

func (cb *CircuitBreakerAdapter) DeleteInstance(ctx context.Context, instanceID, zone string) error {
	return cb.call(ctx, false, func() error {
		return cb.next.DeleteInstance(ctx, instanceID, zone)
	})
}

func (cb *CircuitBreakerAdapter) AllocateFloatingIP(ctx context.Context, region string) (*FloatingIP, error) {
	var fip *FloatingIP
	err := cb.call(ctx, false, func() error {
		var err error
		fip, err = cb.next.AllocateFloatingIP(ctx, region)
		return err
	})
	return fip, err
}

func (cb *CircuitBreakerAdapter) AssociateFloatingIP(ctx context.Context, instanceID, zone, handle string) error {
	return cb.call(ctx, false, func() error {
		return cb.next.AssociateFloatingIP(ctx, instanceID, zone, handle)
	})
}

func (cb *CircuitBreakerAdapter) ReleaseFloatingIP(ctx context.Context, region, handle string) error {
	return cb.call(ctx, false, func() error {
		return cb.next.ReleaseFloatingIP(ctx, region, handle)
	})
}

func (cb *CircuitBreakerAdapter) FindFloatingIPByAddress(ctx context.Context, region, address string) (string, error) {
	var handle string
	err := cb.call(ctx, true, func() error {
		var err error
		handle, err = cb.next.FindFloatingIPByAddress(ctx, region, address)
		return err
	})
	return handle, err
}

// EnsureIngressRules forwards to the wrapped adapter when it supports firewalls.
func (cb *CircuitBreakerAdapter) EnsureIngressRules(ctx context.Context, rules []PortRule) error {
	fw, ok := cb.next.(FirewallEnsurer)
	if !ok {
		return nil
	}
	return cb.call(ctx, false, func() error {
		return fw.EnsureIngressRules(ctx, rules)
	})
}

func (cb *CircuitBreakerAdapter) call(ctx context.Context, readOnly bool, fn func() error) error {
	if !cb.allowRequest() {
		cb.logger.WithContext(ctx).Warn("circuit breaker is open, rejecting provider call")
		return ErrCircuitOpen
	}

	attempts := 1
	if readOnly {
		attempts = cb.config.MaxAttempts
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		if err == nil || !isTransient(err) {
			break
		}
		if attempt == attempts {
			break
		}

		delay := backoffDelay(cb.config.BaseDelay, cb.config.MaxDelay, attempt)
		cb.logger.WithContext(ctx).Debug("retrying provider call after transient error",
			slog.Int("attempt", attempt),
			slog.Duration("backoff", delay),
			slog.String("error", err.Error()))
		if !sleep(ctx, delay) {
			return ctx.Err()
		}
	}

	switch {
	case err == nil:
		cb.onSuccess()
	case isTransient(err):
		cb.onFailure()
	default:
		// Permanent errors (bad input, not found) say nothing about provider health
		cb.onSuccess()
	}
	return err
}

func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	return apperrors.IsRetryable(err) || isNetworkTransient(err)
}

// allowRequest checks if a request should be allowed based on circuit state.
func (cb *CircuitBreakerAdapter) allowRequest() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitStateClosed:
		return true

	case CircuitStateOpen:
		if cb.now().After(cb.nextStateChange) {
			cb.logger.Info("circuit breaker entering half-open state")
			cb.state = CircuitStateHalfOpen
			return true
		}
		return false

	case CircuitStateHalfOpen:
		return true

	default:
		return false
	}
}

// onSuccess records a successful request.
func (cb *CircuitBreakerAdapter) onSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount = 0

	if cb.state == CircuitStateHalfOpen {
		cb.logger.Info("circuit breaker closing after successful request")
		cb.state = CircuitStateClosed
	}
}

// onFailure records a failed request.
func (cb *CircuitBreakerAdapter) onFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount++
	cb.lastFailureTime = cb.now()

	if cb.state == CircuitStateHalfOpen {
		cb.logger.Warn("circuit breaker reopening after failed half-open request")
		cb.state = CircuitStateOpen
		cb.nextStateChange = cb.now().Add(cb.config.ResetTimeout)
		return
	}

	if cb.failureCount >= cb.config.FailureThreshold {
		cb.logger.Warn("circuit breaker opening due to excessive failures",
			slog.Int("failure_count", cb.failureCount),
			slog.Int("threshold", cb.config.FailureThreshold),
			slog.Duration("reset_timeout", cb.config.ResetTimeout))
		cb.state = CircuitStateOpen
		cb.nextStateChange = cb.now().Add(cb.config.ResetTimeout)
	}
}

// GetState returns the current circuit state (for monitoring/debugging).
func (cb *CircuitBreakerAdapter) GetState() CircuitState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// GetMetrics returns circuit breaker metrics.
func (cb *CircuitBreakerAdapter) GetMetrics() map[string]interface{} {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	return map[string]interface{}{
		"state":             cb.state,
		"failure_count":     cb.failureCount,
		"last_failure_time": cb.lastFailureTime,
	}
}

func backoffDelay(base, max time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	delay := base << (attempt - 1)
	if max > 0 && delay > max {
		delay = max
	}
	return time.Duration(rand.Int63n(int64(delay) + 1))
}

func sleep(ctx context.Context, delay time.Duration) bool {
	if delay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
