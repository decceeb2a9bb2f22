package db

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// NewTestDB creates a fresh in-memory SQLite database for testing.
// Each call gets its own named database so parallel tests do not share state.
func NewTestDB(t *testing.T) (*sql.DB, *SQLStore) {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=on"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	// One connection keeps the in-memory database alive and consistent
	db.SetMaxOpenConns(1)

	store := NewStoreFromDB(db)
	if err := store.Setup(context.Background()); err != nil {
		db.Close()
		t.Fatalf("failed to setup test database schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db, store
}

// SeedTestServer inserts a server row, filling unset fields with test values.
func SeedTestServer(t *testing.T, store Store, params CreateServerParams) Server {
	t.Helper()

	now := time.Now().UTC()
	if params.ID == "" {
		params.ID = uuid.NewString()
	}
	if params.ProviderInstanceID == "" {
		params.ProviderInstanceID = "instance-" + params.ID[:8]
	}
	if params.Region == "" {
		params.Region = "us-central1"
	}
	if params.Zone == "" {
		params.Zone = "us-central1-a"
	}
	if params.Class == "" {
		params.Class = "ephemeral"
	}
	if params.Status == "" {
		params.Status = "starting"
	}
	if params.CreatedAt.IsZero() {
		params.CreatedAt = now
	}
	if params.ExpiresAt.IsZero() {
		params.ExpiresAt = params.CreatedAt.Add(2 * time.Hour)
	}
	if params.UpdatedAt.IsZero() {
		params.UpdatedAt = params.CreatedAt
	}

	server, err := store.CreateServer(context.Background(), params)
	if err != nil {
		t.Fatalf("failed to seed test server: %v", err)
	}

	return server
}

// SeedTestAccount inserts an account with the given balance.
func SeedTestAccount(t *testing.T, store Store, username string, points int64) Account {
	t.Helper()

	account, err := store.CreateAccount(context.Background(), CreateAccountParams{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: "not-a-real-hash",
		Points:       points,
		Role:         "user",
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("failed to seed test account: %v", err)
	}

	return account
}
