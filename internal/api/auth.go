package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
)

type contextKey string

const (
	userIDKey contextKey = "user_id"
	roleKey   contextKey = "role"
)

// RoleAdmin is the role claim that unlocks the moderation routes.
const RoleAdmin = "admin"

type identity struct {
	userID string
	role   string
}

// UserIDFromContext returns the authenticated user of a request.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

func mustUserID(r *http.Request) string {
	id, _ := UserIDFromContext(r.Context())
	return id
}

// authenticate verifies the bearer token and stores its user_id and role
// claims on the request context. Tokens are issued elsewhere; only
// verification happens here.
func authenticate(secret []byte) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := identityFromRequest(r, secret)
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			ctx := context.WithValue(r.Context(), userIDKey, id.userID)
			ctx = context.WithValue(ctx, roleKey, id.role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requireAdmin lets through only tokens carrying the admin role. It runs
// after authenticate.
func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if role, _ := r.Context().Value(roleKey).(string); role != RoleAdmin {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func identityFromRequest(r *http.Request, secret []byte) (identity, bool) {
	// Try Authorization header first
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return parseIdentityFromJWT(strings.TrimPrefix(h, "Bearer "), secret)
	}
	// Fallback: token query param for WS (browsers can't set headers)
	if q := r.URL.Query().Get("token"); q != "" {
		return parseIdentityFromJWT(q, secret)
	}
	return identity{}, false
}

func parseIdentityFromJWT(tokenStr string, secret []byte) (identity, bool) {
	claims := jwt.MapClaims{}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return identity{}, false
	}

	var id identity
	id.role, _ = claims["role"].(string)
	switch v := claims["user_id"].(type) {
	case string:
		id.userID = v
	case float64:
		// Numeric ids from older tokens.
		id.userID = strconv.FormatInt(int64(v), 10)
	}
	return id, id.userID != ""
}
