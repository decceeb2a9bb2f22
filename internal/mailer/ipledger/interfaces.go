package ipledger

import (
	"context"

	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/infrastructure/provider"
)

// Repository persists the set of addresses ever assigned
type Repository interface {
	IsUsed(ctx context.Context, address string) (bool, error)
	// MarkUsed upserts the entry and increments its usage count
	MarkUsed(ctx context.Context, address, userID, instanceID string) (*UsedIP, error)
	List(ctx context.Context) ([]*UsedIP, error)
}

// Allocator is the slice of provider.Adapter the ledger needs to draw addresses
type Allocator interface {
	AllocateFloatingIP(ctx context.Context, region string) (*provider.FloatingIP, error)
	ReleaseFloatingIP(ctx context.Context, region, handle string) error
}
