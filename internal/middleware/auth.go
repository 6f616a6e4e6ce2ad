// Package middleware hosts authentication, logging, and rate limiting middleware.
package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"cred/internal/admin"

	"github.com/golang-jwt/jwt/v5"
)

// contextKey avoids collisions when storing values in request contexts.
type contextKey string

const (
	ctxAdminIDKey contextKey = "admin_id"
	ctxRoleKey    contextKey = "role"
)

// AuthMiddleware validates bearer JWTs and injects the admin identity
// into the context.
type AuthMiddleware struct {
	jwtSecret string
}

// NewAuthMiddleware constructs an AuthMiddleware with the given secret.
func NewAuthMiddleware(secret string) *AuthMiddleware {
	return &AuthMiddleware{jwtSecret: secret}
}

// Authenticate enforces bearer auth and populates the admin identity on
// the request context.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if strings.TrimSpace(authHeader) == "" {
			jsonError(w, http.StatusUnauthorized, "Authorization header required")
			return
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			jsonError(w, http.StatusUnauthorized, "Invalid authorization format")
			return
		}
		tokenString := parts[1]

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(m.jwtSecret), nil
		})

		if err != nil || !token.Valid {
			jsonError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			jsonError(w, http.StatusUnauthorized, "Invalid token claims")
			return
		}

		if exp, ok := claims["exp"].(float64); ok {
			if time.Now().Unix() > int64(exp) {
				jsonError(w, http.StatusUnauthorized, "Token expired")
				return
			}
		}

		adminID, ok := claims["admin_id"].(string)
		if !ok || adminID == "" {
			jsonError(w, http.StatusUnauthorized, "Invalid admin ID in token")
			return
		}

		role, ok := claims["role"].(string)
		if !ok || role == "" {
			jsonError(w, http.StatusUnauthorized, "Invalid role in token")
			return
		}

		ctx := context.WithValue(r.Context(), ctxAdminIDKey, adminID)
		ctx = context.WithValue(ctx, ctxRoleKey, role)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ActorFromContext returns the authenticated admin identity from context.
func ActorFromContext(ctx context.Context) (admin.Actor, bool) {
	id, ok := ctx.Value(ctxAdminIDKey).(string)
	if !ok {
		return admin.Actor{}, false
	}
	role, ok := ctx.Value(ctxRoleKey).(string)
	if !ok {
		return admin.Actor{}, false
	}
	return admin.Actor{ID: id, Role: role}, true
}
