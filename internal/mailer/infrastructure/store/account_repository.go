package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/account"
	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/db"
	"github.com/burhanmukhtar/Molly-Pro/internal/shared/logger"
	"github.com/mattn/go-sqlite3"
)

// accountRepository implements account.Repository using db.Store
type accountRepository struct {
	store  db.Store
	now    Clock
	logger *logger.Logger
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(store db.Store, clock Clock, log *logger.Logger) account.Repository {
	if clock == nil {
		clock = time.Now
	}
	if log == nil {
		log = logger.Discard()
	}
	return &accountRepository{
		store:  store,
		now:    clock,
		logger: log.WithComponent("store.accounts"),
	}
}

func (r *accountRepository) Create(ctx context.Context, a *account.Account) error {
	defer r.observe(ctx, "insert", time.Now())

	if a.CreatedAt.IsZero() {
		a.CreatedAt = r.now()
	}

	row, err := r.store.CreateAccount(ctx, db.CreateAccountParams{
		ID:           a.ID,
		Username:     a.Username,
		PasswordHash: a.PasswordHash,
		Points:       a.Points,
		Role:         string(a.Role),
		CreatedAt:    a.CreatedAt.UTC(),
	})
	if err != nil {
		if isUniqueViolation(err) {
			return account.ErrUsernameTaken
		}
		return dbError("failed to create account", err)
	}

	*a = *toDomainAccount(&row)
	return nil
}

func (r *accountRepository) Get(ctx context.Context, id string) (*account.Account, error) {
	defer r.observe(ctx, "select", time.Now())

	row, err := r.store.GetAccount(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, account.ErrAccountNotFound
		}
		return nil, dbError("failed to get account", err)
	}
	return toDomainAccount(&row), nil
}

func (r *accountRepository) GetByUsername(ctx context.Context, username string) (*account.Account, error) {
	defer r.observe(ctx, "select", time.Now())

	row, err := r.store.GetAccountByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, account.ErrAccountNotFound
		}
		return nil, dbError("failed to get account", err)
	}
	return toDomainAccount(&row), nil
}

// Debit is a single conditional UPDATE so concurrent debits cannot overdraw
func (r *accountRepository) Debit(ctx context.Context, id string, amount int64) error {
	defer r.observe(ctx, "update", time.Now())

	n, err := r.store.DebitAccount(ctx, db.DebitAccountParams{
		Amount:    amount,
		UpdatedAt: r.now().UTC(),
		ID:        id,
	})
	if err != nil {
		return dbError("failed to debit account", err)
	}
	if n > 0 {
		return nil
	}

	if _, err := r.store.GetAccount(ctx, id); errors.Is(err, sql.ErrNoRows) {
		return account.ErrAccountNotFound
	}
	return account.ErrInsufficientBalance
}

func (r *accountRepository) observe(ctx context.Context, op string, start time.Time) {
	r.logger.DBQuery(ctx, op, "accounts", time.Since(start))
}

func toDomainAccount(row *db.Account) *account.Account {
	return &account.Account{
		ID:           row.ID,
		Username:     row.Username,
		PasswordHash: row.PasswordHash,
		Points:       row.Points,
		Role:         account.Role(row.Role),
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
	}
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
