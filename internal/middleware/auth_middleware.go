package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"stickyboard-server/internal/repository"
	"stickyboard-server/pkg/jwt"
	"stickyboard-server/pkg/response"
)

type contextKey string

const (
	UserIDKey    contextKey = "userID"
	SessionIDKey contextKey = "sessionID"
)

// Authenticator turns an access token into claims, rejecting tokens of
// logged-out sessions.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*jwt.Claims, error)
}

// AuthMiddleware rejects requests without a valid access token.
func AuthMiddleware(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				response.Unauthorized(w, "Missing authorization header")
				return
			}

			token, ok := bearer(authHeader)
			if !ok {
				response.Unauthorized(w, "Invalid authorization header format")
				return
			}

			claims, err := auth.Authenticate(r.Context(), token)
			if errors.Is(err, repository.ErrStoreUnavailable) {
				response.ServiceUnavailable(w, "Session store unavailable", 5*time.Second)
				return
			}
			if err != nil {
				response.Unauthorized(w, "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// OptionalAuth attaches the user id when the request carries a valid token
// and passes every request through. An unreadable or logged-out token counts
// as signed out.
func OptionalAuth(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := RequestToken(r); token != "" {
				if claims, err := auth.Authenticate(r.Context(), token); err == nil {
					r = r.WithContext(WithClaims(r.Context(), claims))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestToken reads a bearer token from the Authorization header, falling
// back to the token query parameter used by browser websocket clients.
func RequestToken(r *http.Request) string {
	if token, ok := bearer(r.Header.Get("Authorization")); ok {
		return token
	}
	return r.URL.Query().Get("token")
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// WithClaims stores the user and login session of a validated token.
func WithClaims(ctx context.Context, claims *jwt.Claims) context.Context {
	ctx = context.WithValue(ctx, SessionIDKey, claims.SessionID)
	return WithUserID(ctx, claims.UserID)
}

func GetSessionID(r *http.Request) string {
	sessionID, _ := r.Context().Value(SessionIDKey).(string)
	return sessionID
}

func GetUserID(r *http.Request) string {
	userID, ok := r.Context().Value(UserIDKey).(string)
	if !ok {
		return ""
	}
	return userID
}

func bearer(header string) (string, bool) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
