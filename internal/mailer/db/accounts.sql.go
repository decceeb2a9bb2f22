package db

import (
	"context"
	"time"
)

const accountColumns = `id, username, password_hash, points, role, created_at, updated_at`

func scanAccount(row rowScanner) (Account, error) {
	var i Account
	err := row.Scan(
		&i.ID,
		&i.Username,
		&i.PasswordHash,
		&i.Points,
		&i.Role,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createAccount = `-- name: CreateAccount :one
INSERT INTO accounts (id, username, password_hash, points, role, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
RETURNING ` + accountColumns

type CreateAccountParams struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	Points       int64     `json:"points"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

func (q *Queries) CreateAccount(ctx context.Context, arg CreateAccountParams) (Account, error) {
	row := q.db.QueryRowContext(ctx, createAccount,
		arg.ID,
		arg.Username,
		arg.PasswordHash,
		arg.Points,
		arg.Role,
		arg.CreatedAt,
		arg.CreatedAt,
	)
	return scanAccount(row)
}

const getAccount = `-- name: GetAccount :one
SELECT ` + accountColumns + ` FROM accounts
WHERE id = ?`

func (q *Queries) GetAccount(ctx context.Context, id string) (Account, error) {
	return scanAccount(q.db.QueryRowContext(ctx, getAccount, id))
}

const getAccountByUsername = `-- name: GetAccountByUsername :one
SELECT ` + accountColumns + ` FROM accounts
WHERE username = ?`

func (q *Queries) GetAccountByUsername(ctx context.Context, username string) (Account, error) {
	return scanAccount(q.db.QueryRowContext(ctx, getAccountByUsername, username))
}

const debitAccount = `-- name: DebitAccount :execrows
UPDATE accounts
SET points = points - ?, updated_at = ?
WHERE id = ? AND points >= ?`

type DebitAccountParams struct {
	Amount    int64     `json:"amount"`
	UpdatedAt time.Time `json:"updated_at"`
	ID        string    `json:"id"`
}

func (q *Queries) DebitAccount(ctx context.Context, arg DebitAccountParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, debitAccount,
		arg.Amount,
		arg.UpdatedAt,
		arg.ID,
		arg.Amount,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
