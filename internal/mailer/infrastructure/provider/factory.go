package provider

import (
	"context"
	"fmt"

	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/config"
	apperrors "github.com/burhanmukhtar/Molly-Pro/internal/shared/errors"
	"github.com/burhanmukhtar/Molly-Pro/internal/shared/logger"
)

// NewAdapter builds the configured provider adapter wrapped in a circuit breaker.
func NewAdapter(ctx context.Context, cfg config.ProviderConfig, cbCfg config.CircuitBreakerConfig, log *logger.Logger) (*CircuitBreakerAdapter, error) {
	scoped := log.WithComponent("provider.factory")

	var (
		adapter Adapter
		err     error
	)
	switch cfg.Type {
	case config.ProviderHetzner:
		adapter, err = NewHetznerAdapter(HetznerConfig{APIToken: cfg.Hetzner.APIToken}, log)
	case config.ProviderGCP:
		adapter, err = NewGCPAdapter(ctx, GCPConfig{
			ProjectID:       cfg.GCP.ProjectID,
			CredentialsFile: cfg.GCP.CredentialsFile,
			Network:         cfg.GCP.Network,
		}, log)
	default:
		return nil, apperrors.NewSystemError(apperrors.ErrCodeConfiguration,
			fmt.Sprintf("unsupported provider type: %s", cfg.Type), false, nil)
	}
	if err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeConfiguration,
			"failed to create provider adapter", false, err)
	}

	scoped.Info("provider adapter created", "provider", adapter.Name())

	breakerCfg := DefaultCircuitBreakerConfig()
	breakerCfg.FailureThreshold = cbCfg.FailureThreshold
	breakerCfg.ResetTimeout = cbCfg.ResetTimeout
	breakerCfg.MaxAttempts = cbCfg.MaxAttempts

	return NewCircuitBreakerAdapter(adapter, breakerCfg, log), nil
}

// ImageFor returns the configured boot image for the provider type.
func ImageFor(cfg config.ProviderConfig) string {
	if cfg.Type == config.ProviderHetzner {
		return cfg.Hetzner.Image
	}
	return cfg.GCP.Image
}
