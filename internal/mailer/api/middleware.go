package api

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/account"
	apperrors "github.com/burhanmukhtar/Molly-Pro/internal/shared/errors"
	applogger "github.com/burhanmukhtar/Molly-Pro/internal/shared/logger"
	"github.com/google/uuid"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	loggerKey    contextKey = "logger"
	principalKey contextKey = "principal"
)

// AdminKeyHeader carries the shared key for account provisioning.
const AdminKeyHeader = "X-Admin-Key"

// Middleware wraps an http.Handler and returns a new http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain chains multiple middlewares together.
func Chain(middlewares ...Middleware) Middleware {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

// Principal is the authenticated caller.
type Principal struct {
	UserID string
	Role   account.Role
}

// IsAdmin reports whether the caller holds the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == account.RoleAdmin
}

// RequestID assigns a request ID and injects a request-scoped logger.
func RequestID(baseLogger *applogger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" || len(requestID) > 128 {
				requestID = uuid.New().String()
			}

			w.Header().Set("X-Request-ID", requestID)

			ctx := applogger.WithRequestID(r.Context(), requestID)
			ctx = context.WithValue(ctx, loggerKey, baseLogger)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	return applogger.GetRequestID(ctx)
}

// GetLogger retrieves the request-scoped logger from the context.
func GetLogger(ctx context.Context) *applogger.Logger {
	if logger, ok := ctx.Value(loggerKey).(*applogger.Logger); ok {
		return logger
	}
	return applogger.NewDevelopment("fallback")
}

// GetPrincipal returns the caller set by the auth middleware.
func GetPrincipal(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

func withPrincipal(ctx context.Context, p Principal) context.Context {
	ctx = context.WithValue(ctx, principalKey, p)
	return applogger.WithUserID(ctx, p.UserID)
}

// Logging logs HTTP requests and responses.
func Logging() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			logger := GetLogger(r.Context())

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			logger.WithContext(r.Context()).Debug("incoming request",
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)

			next.ServeHTTP(wrapped, r)

			logger.HTTPRequest(
				r.Context(),
				r.Method,
				r.URL.Path,
				wrapped.statusCode,
				time.Since(start),
				"bytes", wrapped.bytesWritten,
			)
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code and bytes written.
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
	written      bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.ResponseWriter.WriteHeader(code)
		rw.written = true
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// CORS adds CORS headers to responses.
func CORS(allowedOrigins []string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowed := false
			for _, allowedOrigin := range allowedOrigins {
				if allowedOrigin == "*" || allowedOrigin == origin {
					allowed = true
					break
				}
			}

			if allowed {
				if origin != "" {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Add("Vary", "Origin")
				} else if len(allowedOrigins) > 0 && allowedOrigins[0] == "*" {
					w.Header().Set("Access-Control-Allow-Origin", "*")
				}
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID, "+AdminKeyHeader)
				w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID, Retry-After")
				w.Header().Set("Access-Control-Max-Age", "3600")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Recovery recovers from panics and returns a 500 error.
func Recovery() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					panicErr := apperrors.NewSystemError(
						apperrors.ErrCodeInternal,
						"panic recovered",
						false,
						fmt.Errorf("%v", err),
					).WithMetadata("path", r.URL.Path).
						WithMetadata("method", r.Method)

					WriteErrorResponse(w, r, panicErr)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// Authenticate requires a valid bearer token and stores the caller in the
// request context.
func Authenticate(tokens TokenVerifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			scheme, token, found := strings.Cut(header, " ")
			if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				WriteErrorResponse(w, r, apperrors.DomainErrUnauthorized)
				return
			}

			claims, err := tokens.Verify(strings.TrimSpace(token))
			if err != nil {
				WriteErrorResponse(w, r, err)
				return
			}

			ctx := withPrincipal(r.Context(), Principal{UserID: claims.UserID, Role: claims.Role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdminKey guards operator endpoints with a shared key. An empty key
// disables the endpoints.
func RequireAdminKey(key string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				WriteErrorResponse(w, r, apperrors.NewAuthError(apperrors.ErrCodeForbidden,
					"admin key is not configured", nil))
				return
			}
			given := r.Header.Get(AdminKeyHeader)
			if given == "" || subtle.ConstantTimeCompare([]byte(given), []byte(key)) != 1 {
				WriteErrorResponse(w, r, apperrors.NewAuthError(apperrors.ErrCodeUnauthorized,
					"invalid admin key", nil))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
