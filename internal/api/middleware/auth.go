package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/hugh/projectflow/internal/api/dto"
	"github.com/hugh/projectflow/internal/auth"
)

type contextKey string

const sessionKey contextKey = "session"

// Session resolves the request's session, creating an empty one for new
// visitors, and stores it in the request context.
func Session(sessions *auth.Manager, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := sessions.Load(r)
			if err != nil {
				logger.Error("failed to load session", "error", err)
				writeError(w, http.StatusInternalServerError, "Internal server error")
				return
			}
			ctx := context.WithValue(r.Context(), sessionKey, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser rejects requests whose session has no signed-in user.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !GetSession(r.Context()).IsAuthenticated() {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireGoogleLinked additionally requires unexpired Google tokens. Expired
// tokens are not refreshed here.
func RequireGoogleLinked(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := GetSession(r.Context())
		if !sess.IsAuthenticated() {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		if !sess.HasValidTokens(time.Now()) {
			writeError(w, http.StatusUnauthorized, "Google authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func GetSession(ctx context.Context) *auth.Session {
	if sess, ok := ctx.Value(sessionKey).(*auth.Session); ok {
		return sess
	}
	return nil
}

// GetUserID returns the signed-in user's id, or "".
func GetUserID(ctx context.Context) string {
	if sess := GetSession(ctx); sess.IsAuthenticated() {
		return sess.User.ID
	}
	return ""
}

// WithSession is used by tests to call handlers without the middleware.
func WithSession(ctx context.Context, sess *auth.Session) context.Context {
	return context.WithValue(ctx, sessionKey, sess)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(dto.ErrorResponse{Message: message})
}
