package ipledger

import (
	"context"
	"log/slog"
	"strings"

	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/infrastructure/provider"
	"github.com/burhanmukhtar/Molly-Pro/internal/shared/logger"
)

// DefaultMaxAttempts bounds DrawFreshAddress when the caller passes zero
const DefaultMaxAttempts = 10

// Ledger draws floating addresses that have never been assigned before and
// records every assignment.
type Ledger struct {
	repo      Repository
	allocator Allocator
	logger    *logger.Logger
}

// New creates a ledger over repo, drawing addresses from allocator
func New(repo Repository, allocator Allocator, log *logger.Logger) *Ledger {
	if log == nil {
		log = logger.Discard()
	}
	return &Ledger{
		repo:      repo,
		allocator: allocator,
		logger:    log.WithComponent("ipledger"),
	}
}

// IsUsed reports whether address was ever recorded
func (l *Ledger) IsUsed(ctx context.Context, address string) (bool, error) {
	return l.repo.IsUsed(ctx, normalize(address))
}

// MarkUsed records an assignment of address
func (l *Ledger) MarkUsed(ctx context.Context, address, userID, instanceID string) error {
	_, err := l.repo.MarkUsed(ctx, normalize(address), userID, instanceID)
	return err
}

// ListUsed returns every recorded address, most recent first
func (l *Ledger) ListUsed(ctx context.Context) ([]*UsedIP, error) {
	return l.repo.List(ctx)
}

// DrawFreshAddress allocates floating addresses in region until one is not in
// the ledger, releasing the used ones on the way. The fresh address is marked
// used for userID/instanceID before it is returned.
func (l *Ledger) DrawFreshAddress(ctx context.Context, region, userID, instanceID string, maxAttempts int) (*provider.FloatingIP, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	log := l.logger.WithContext(ctx)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		fip, err := l.allocator.AllocateFloatingIP(ctx, region)
		if err != nil {
			return nil, err
		}

		used, err := l.IsUsed(ctx, fip.Address)
		if err != nil {
			l.release(ctx, region, fip)
			return nil, err
		}

		if used {
			log.Debug("drew a previously used address, releasing",
				slog.String("address", fip.Address),
				slog.String("region", region),
				slog.Int("attempt", attempt))
			l.release(ctx, region, fip)
			continue
		}

		if err := l.MarkUsed(ctx, fip.Address, userID, instanceID); err != nil {
			l.release(ctx, region, fip)
			return nil, err
		}

		log.Info("drew fresh address",
			slog.String("address", fip.Address),
			slog.String("region", region),
			slog.Int("attempt", attempt))
		return fip, nil
	}

	err := NewExhaustedError(region, maxAttempts)
	log.Warn("ip pool exhausted", slog.String("region", region), slog.Int("attempts", maxAttempts))
	return nil, err
}

// Release returns a drawn address to the provider. Failures are logged only.
func (l *Ledger) Release(ctx context.Context, region string, fip *provider.FloatingIP) {
	l.release(ctx, region, fip)
}

func (l *Ledger) release(ctx context.Context, region string, fip *provider.FloatingIP) {
	if fip == nil || fip.Handle == "" {
		return
	}
	if err := l.allocator.ReleaseFloatingIP(ctx, region, fip.Handle); err != nil {
		l.logger.WarnErr(ctx, "failed to release floating address", err,
			slog.String("address", fip.Address),
			slog.String("handle", fip.Handle))
	}
}

func normalize(address string) string {
	return strings.TrimSpace(address)
}
