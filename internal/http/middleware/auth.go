package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/princekumarofficial/chat-media-service/internal/utils/jwt"
	"github.com/princekumarofficial/chat-media-service/internal/utils/response"
)

type contextKey string

const UserIDKey contextKey = "userID"

var (
	errTokenMissing = errors.New("authorization token required")
	errTokenFormat  = errors.New("invalid authorization header format")
)

// TokenFromRequest reads a bearer token from the Authorization header, or
// from the token query parameter for websocket upgrades that cannot set headers.
func TokenFromRequest(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		if token := r.URL.Query().Get("token"); token != "" {
			return token, nil
		}
		return "", errTokenMissing
	}

	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", errTokenFormat
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", errTokenMissing
	}
	return token, nil
}

// AuthMiddleware validates the console session token and stores the user ID
// in the request context.
func AuthMiddleware(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := TokenFromRequest(r)
			if err != nil {
				response.WriteJSON(w, http.StatusUnauthorized, response.GeneralError(err))
				return
			}

			userID, err := jwt.ExtractUserIDFromToken(token, jwtSecret)
			if err != nil {
				response.WriteJSON(w, http.StatusUnauthorized, response.GeneralError(
					errors.New("invalid token")))
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserIDFromContext extracts the user ID from the request context
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok
}
