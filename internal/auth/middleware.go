package auth

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/recipe-box/app/internal/database"
	"github.com/recipe-box/app/internal/logging"
	"github.com/recipe-box/app/internal/models"
	"go.uber.org/zap"
)

type contextKey struct{}

// ErrorWriter renders an authentication failure.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, message string)

// Middleware protects routes that require an authenticated, active user.
// The user is loaded from db on every request so deactivated or deleted
// accounts lose access immediately.
func Middleware(tokens *Tokens, db *sql.DB, unauthorized ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(r)
			if !ok {
				unauthorized(w, r, "Authentication credentials were not provided.")
				return
			}

			userID, err := tokens.Verify(tokenString)
			if err != nil {
				logging.FromContext(r.Context()).Debug("rejected token", zap.Error(err))
				unauthorized(w, r, "Invalid or expired token.")
				return
			}

			user, err := database.GetUserByID(r.Context(), db, userID)
			if err != nil {
				if !errors.Is(err, database.ErrNotFound) {
					logging.FromContext(r.Context()).Error("load authenticated user", zap.Int64("user_id", userID), zap.Error(err))
				}
				unauthorized(w, r, "Invalid or expired token.")
				return
			}
			if !user.IsActive {
				unauthorized(w, r, "User inactive or deleted.")
				return
			}

			ctx := WithUser(r.Context(), user)
			ctx = logging.WithLogger(ctx, logging.FromContext(ctx).With(zap.Int64("user_id", user.ID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// WithUser returns a copy of ctx carrying the authenticated user.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, contextKey{}, user)
}

// CurrentUser returns the authenticated user stored by Middleware.
func CurrentUser(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(contextKey{}).(*models.User)
	return user, ok && user != nil
}
