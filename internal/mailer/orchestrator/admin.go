package orchestrator

import (
	"context"

	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/account"
	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/ipledger"
	apperrors "github.com/burhanmukhtar/Molly-Pro/internal/shared/errors"
)

// ListUsedIPs returns every address ever handed out. Admins only.
func (o *Orchestrator) ListUsedIPs(ctx context.Context, role account.Role) ([]*ipledger.UsedIP, error) {
	if role != account.RoleAdmin {
		return nil, apperrors.DomainErrForbidden
	}
	return o.ledger.ListUsed(ctx)
}
