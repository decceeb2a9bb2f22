// Package auth issues and verifies the HS256 identity tokens carried by API callers.
package auth

import (
	"errors"
	"time"

	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/account"
	apperrors "github.com/burhanmukhtar/Molly-Pro/internal/shared/errors"
	jwtlib "github.com/golang-jwt/jwt/v5"
)

// MinSecretLength is the shortest signing secret accepted.
const MinSecretLength = 32

var (
	ErrInvalidToken = apperrors.NewAuthError(apperrors.ErrCodeUnauthorized, "invalid or expired token", nil)
	ErrWeakSecret   = apperrors.NewSystemError(apperrors.ErrCodeConfiguration,
		"jwt secret must be at least 32 bytes", false, nil)
)

// Claims defines the token payload.
type Claims struct {
	UserID string       `json:"user_id"`
	Role   account.Role `json:"role"`
	jwtlib.RegisteredClaims
}

// Issuer signs and verifies tokens with one shared secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// NewIssuer creates an issuer. ttl defaults to 24h.
func NewIssuer(secret string, ttl time.Duration, issuer string) (*Issuer, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrWeakSecret
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, issuer: issuer, now: time.Now}, nil
}

// Issue returns a signed token for userID.
func (i *Issuer) Issue(userID string, role account.Role) (string, error) {
	now := i.now()
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   userID,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(i.ttl)),
		},
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", apperrors.NewSystemError(apperrors.ErrCodeInternal, "failed to sign token", false, err)
	}
	return signed, nil
}

// TTL is how long issued tokens stay valid.
func (i *Issuer) TTL() time.Duration { return i.ttl }

// Verify validates token and returns its claims.
func (i *Issuer) Verify(token string) (*Claims, error) {
	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Name}),
		jwtlib.WithTimeFunc(i.now),
		jwtlib.WithExpirationRequired(),
	}
	if i.issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(i.issuer))
	}

	parsed, err := jwtlib.ParseWithClaims(token, &Claims{}, func(*jwtlib.Token) (interface{}, error) {
		return i.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return nil, ErrInvalidToken.WithMetadata("reason", "expired")
		}
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
