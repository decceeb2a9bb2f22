package health

import (
	"context"
	"log/slog"
	"time"

	"github.com/burhanmukhtar/Molly-Pro/internal/shared/logger"
)

// Prober decides readiness by polling a HealthChecker. It never returns an
// error: every failure mode is "not ready".
type Prober struct {
	checker HealthChecker
	logger  *logger.Logger
}

// NewProber creates a prober over checker
func NewProber(checker HealthChecker, log *logger.Logger) *Prober {
	if log == nil {
		log = logger.Discard()
	}
	return &Prober{
		checker: checker,
		logger:  log.WithComponent("health.prober"),
	}
}

// Probe checks address up to maxAttempts times, waiting retryDelay between
// failures. It returns false early when ctx is cancelled.
func (p *Prober) Probe(ctx context.Context, address string, maxAttempts int, retryDelay time.Duration) bool {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	log := p.logger.WithContext(ctx)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return false
		}

		err := p.checker.Check(ctx, address)
		if err == nil {
			log.Info("service is ready",
				slog.String("address", address),
				slog.Int("attempt", attempt))
			return true
		}

		log.Debug("probe attempt failed",
			slog.String("address", address),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", maxAttempts),
			slog.String("error", err.Error()))

		if attempt < maxAttempts && !wait(ctx, retryDelay) {
			return false
		}
	}

	log.Warn("service did not become ready",
		slog.String("address", address),
		slog.Int("attempts", maxAttempts))
	return false
}

// Check makes one attempt bounded by timeout
func (p *Prober) Check(ctx context.Context, address string, timeout time.Duration) bool {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return p.checker.Check(ctx, address) == nil
}

func wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
