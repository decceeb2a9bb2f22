package account

import "context"

// Repository defines the persistence interface for accounts
type Repository interface {
	Create(ctx context.Context, a *Account) error
	Get(ctx context.Context, id string) (*Account, error)
	GetByUsername(ctx context.Context, username string) (*Account, error)
	// Debit subtracts amount only if the balance covers it.
	// It returns ErrInsufficientBalance otherwise.
	Debit(ctx context.Context, id string, amount int64) error
}

// Service is the account and points ledger
type Service interface {
	FindByCredentials(ctx context.Context, username, password string) (*Account, error)
	Get(ctx context.Context, id string) (*Account, error)
	GetBalance(ctx context.Context, id string) (int64, error)
	Debit(ctx context.Context, id string, amount int64) error
	CreateUser(ctx context.Context, username, password string, points int64, role Role) (*Account, error)
}
