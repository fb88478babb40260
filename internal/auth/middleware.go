package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/digitalis/digitalis/internal/models"
	pkghttp "github.com/digitalis/digitalis/pkg/http"
	pkglogger "github.com/digitalis/digitalis/pkg/logger"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// CallerContextKey is the key for storing the authenticated caller in context
	CallerContextKey contextKey = "caller"
)

// UserRepository loads the account a token was issued for
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

// AuthMiddleware validates bearer tokens and injects the caller into context.
// The token's user must exist and be neither deleted nor suspended.
func AuthMiddleware(tm *TokenManager, users UserRepository, auditLogger *pkglogger.AuditLogger, ipConfig *pkghttp.IPConfig, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			deny := func(callerID int64, reason string) {
				auditLogger.LogAccessDenied(r.Context(), callerID, r.URL.Path, pkghttp.ExtractClientIP(r, ipConfig), reason)
				pkghttp.WriteUnauthorized(w, reason)
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				deny(0, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				deny(0, "invalid authorization header format")
				return
			}

			claims, err := tm.ValidateToken(strings.TrimSpace(parts[1]))
			if err != nil {
				deny(0, "invalid or expired token")
				return
			}

			user, err := users.GetByID(r.Context(), claims.UserID)
			if err != nil {
				if errors.Is(err, models.ErrNotFound) {
					deny(claims.UserID, "token user not found")
					return
				}
				logger.Error("failed to load token user", slog.Int64("user_id", claims.UserID), slog.Any("error", err))
				pkghttp.WriteInternalError(w, "internal server error")
				return
			}

			if user.Deleted || user.Suspended {
				deny(user.ID, "account is not active")
				return
			}

			ctx := WithCaller(r.Context(), models.Caller{ID: user.ID, Username: user.Username})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithCaller returns a copy of ctx carrying caller
func WithCaller(ctx context.Context, caller models.Caller) context.Context {
	return context.WithValue(ctx, CallerContextKey, caller)
}

// CallerFromContext extracts the authenticated caller from context
func CallerFromContext(ctx context.Context) (models.Caller, bool) {
	caller, ok := ctx.Value(CallerContextKey).(models.Caller)
	return caller, ok
}
