package account

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/burhanmukhtar/Molly-Pro/internal/shared/logger"
	"github.com/burhanmukhtar/Molly-Pro/pkg/crypto"
	"github.com/google/uuid"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{3,64}$`)

type service struct {
	repo       Repository
	bcryptCost int
	now        func() time.Time
	logger     *logger.Logger
}

// NewService creates the account service. bcryptCost zero uses the bcrypt default.
func NewService(repo Repository, bcryptCost int, log *logger.Logger) Service {
	if log == nil {
		log = logger.Discard()
	}
	return &service{
		repo:       repo,
		bcryptCost: bcryptCost,
		now:        time.Now,
		logger:     log.WithComponent("account"),
	}
}

// FindByCredentials returns the account if password matches its stored hash
func (s *service) FindByCredentials(ctx context.Context, username, password string) (*Account, error) {
	acc, err := s.repo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := crypto.ComparePassword(acc.PasswordHash, password); err != nil {
		if !errors.Is(err, crypto.ErrPasswordMismatch) {
			s.logger.WarnErr(ctx, "stored password hash is unreadable", err, slog.String("user_id", acc.ID))
		}
		return nil, ErrInvalidCredentials
	}
	return acc, nil
}

func (s *service) Get(ctx context.Context, id string) (*Account, error) {
	return s.repo.Get(ctx, id)
}

func (s *service) GetBalance(ctx context.Context, id string) (int64, error) {
	acc, err := s.repo.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	return acc.Points, nil
}

// Debit charges amount points, refusing to go negative
func (s *service) Debit(ctx context.Context, id string, amount int64) error {
	if amount < 0 {
		return newValidationError("debit amount must not be negative")
	}
	if amount == 0 {
		return nil
	}
	if err := s.repo.Debit(ctx, id, amount); err != nil {
		return err
	}

	s.logger.WithContext(ctx).Info("points debited",
		slog.String("user_id", id),
		slog.Int64("amount", amount))
	return nil
}

// CreateUser registers a new account with a bcrypt-hashed password
func (s *service) CreateUser(ctx context.Context, username, password string, points int64, role Role) (*Account, error) {
	username = strings.TrimSpace(username)
	if !usernamePattern.MatchString(username) {
		return nil, newValidationError("username must be 3-64 characters of letters, digits, '.', '_' or '-'")
	}
	if points < 0 {
		return nil, newValidationError("points must not be negative")
	}
	if role == "" {
		role = RoleUser
	}
	if !role.IsValid() {
		return nil, newValidationError("unknown role " + string(role))
	}

	hash, err := crypto.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, newValidationError(err.Error())
	}

	now := s.now().UTC()
	acc := &Account{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		Points:       points,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, acc); err != nil {
		return nil, err
	}

	s.logger.WithContext(ctx).Info("account created",
		slog.String("user_id", acc.ID),
		slog.String("username", acc.Username),
		slog.String("role", string(acc.Role)))
	return acc, nil
}
