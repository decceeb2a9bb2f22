package orchestrator

import (
	"context"
	"log/slog"

	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/infrastructure/lease"
	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/infrastructure/provider"
	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/server"
	apperrors "github.com/burhanmukhtar/Molly-Pro/internal/shared/errors"
	"github.com/burhanmukhtar/Molly-Pro/internal/shared/logger"
	"github.com/google/uuid"
)

// Create provisions a server of class for userID. It returns once the record
// is persisted in status starting; readiness is probed in the background.
func (o *Orchestrator) Create(ctx context.Context, userID string, class server.Class) (*server.Server, error) {
	ctx = logger.WithUserID(ctx, userID)
	op := o.logger.StartOp(ctx, "Create", slog.String("class", string(class)))
	ctx = op.Context()

	policy, ok := o.cfg.Classes[class]
	if !ok {
		return nil, server.NewInvalidOperationError("unknown server class").WithMetadata("class", string(class))
	}

	l, err := o.acquire(ctx, lease.UserKey(userID), createProviderCalls)
	if err != nil {
		return nil, err
	}
	defer o.release(ctx, l)

	balance, err := o.accounts.GetBalance(ctx, userID)
	if err != nil {
		op.Fail(err, "failed to read balance")
		return nil, err
	}
	if balance < policy.Cost {
		return nil, apperrors.DomainErrInsufficientBalance.
			WithMetadata("balance", balance).
			WithMetadata("required", policy.Cost)
	}

	existing, err := o.servers.ListByUser(ctx, userID)
	if err != nil {
		op.Fail(err, "failed to list user servers")
		return nil, err
	}
	now := o.now()
	for _, s := range existing {
		if !s.IsExpired(now) {
			return nil, server.NewAlreadyExistsError(s.ID)
		}
	}

	placement, err := o.SelectPlacement(ctx)
	if err != nil {
		op.Fail(err, "no placement available")
		return nil, err
	}

	inst, err := o.createInstance(ctx, userID, class, policy, placement)
	if err != nil {
		op.Fail(err, "instance creation failed", slog.String("zone", placement.Zone))
		return nil, err
	}

	address := inst.IP
	var fip *provider.FloatingIP
	if class == server.ClassPersistent {
		fip = o.attachFloatingIP(ctx, userID, inst.ID, placement)
		if fip != nil {
			address = fip.Address
		}
	}

	now = o.now()
	s := &server.Server{
		ID:                 uuid.NewString(),
		UserID:             userID,
		ProviderInstanceID: inst.ID,
		IP:                 address,
		Region:             placement.Region,
		Zone:               placement.Zone,
		Class:              class,
		Status:             server.StatusStarting,
		CreatedAt:          now,
		ExpiresAt:          now.Add(policy.Duration),
		UpdatedAt:          now,
	}

	if err := o.servers.Create(ctx, s); err != nil {
		op.Fail(err, "failed to persist server")
		o.rollbackInstance(ctx, inst.ID, placement, fip)
		return nil, err
	}

	if err := o.accounts.Debit(ctx, userID, policy.Cost); err != nil {
		op.Fail(err, "failed to debit account")
		if delErr := o.servers.Delete(ctx, s.ID); delErr != nil {
			o.logger.ErrorCtx(ctx, "failed to remove server record after debit failure", delErr,
				slog.String("server_id", s.ID))
		}
		o.rollbackInstance(ctx, inst.ID, placement, fip)
		return nil, err
	}

	o.events.ServerCreated(ctx, s)
	o.startProbe(s, o.cfg.ProbeAttempts, o.cfg.ProbeDelay, nil)

	op.Complete("server created",
		slog.String("server_id", s.ID),
		slog.String("ip", s.IP),
		slog.String("zone", s.Zone))
	return s, nil
}

// createInstance creates the VM. On failure the named instance is deleted
// best effort, since the provider may have created it before failing.
func (o *Orchestrator) createInstance(ctx context.Context, userID string, class server.Class,
	policy server.ClassPolicy, placement Placement) (*provider.Instance, error) {
	spec := provider.InstanceSpec{
		Name:          provider.InstanceName(userID),
		Region:        placement.Region,
		Zone:          placement.Zone,
		MachineType:   policy.MachineType,
		Image:         o.cfg.Image,
		DiskSizeGB:    policy.DiskSizeGB,
		DiskType:      policy.DiskType,
		StartupScript: o.cfg.StartupScript,
		Labels:        provider.Labels(userID, string(class)),
	}

	pctx, cancel := o.providerCtx(ctx)
	defer cancel()

	inst, err := o.adapter.CreateInstance(pctx, spec)
	if err == nil {
		return inst, nil
	}

	instanceID := spec.Name
	if inst != nil && inst.ID != "" {
		instanceID = inst.ID
	}
	o.rollbackInstance(ctx, instanceID, placement, nil)

	if apperrors.IsErrorCode(err, apperrors.ErrCodeProvisioningFailed) {
		return nil, err
	}
	return nil, provider.NewProvisioningFailed(o.adapter.Name(), err)
}

// attachFloatingIP gives a persistent server a fresh floating address. Any
// failure keeps the transient address: nil is returned and a warning logged.
func (o *Orchestrator) attachFloatingIP(ctx context.Context, userID, instanceID string, placement Placement) *provider.FloatingIP {
	pctx, cancel := o.providerCtx(ctx)
	defer cancel()

	fip, err := o.ledger.DrawFreshAddress(pctx, placement.Region, userID, instanceID, o.cfg.IPRotationMaxAttempts)
	if err != nil {
		o.logger.WarnErr(ctx, "no fresh floating address, keeping transient address", err,
			slog.String("region", placement.Region))
		return nil
	}

	if err := o.adapter.AssociateFloatingIP(pctx, instanceID, placement.Zone, fip.Handle); err != nil {
		o.logger.WarnErr(ctx, "failed to associate floating address, keeping transient address", err,
			slog.String("address", fip.Address))
		o.ledger.Release(context.WithoutCancel(ctx), placement.Region, fip)
		return nil
	}
	return fip
}

// rollbackInstance removes a VM (and its floating address) that will never be recorded.
func (o *Orchestrator) rollbackInstance(ctx context.Context, instanceID string, placement Placement, fip *provider.FloatingIP) {
	ctx = context.WithoutCancel(ctx)
	pctx, cancel := o.providerCtx(ctx)
	defer cancel()

	if fip != nil {
		o.ledger.Release(pctx, placement.Region, fip)
	}
	if err := o.adapter.DeleteInstance(pctx, instanceID, placement.Zone); err != nil {
		o.logger.ErrorCtx(ctx, "failed to clean up instance", err,
			slog.String("instance_id", instanceID),
			slog.String("zone", placement.Zone))
	}
}
