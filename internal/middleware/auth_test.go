package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cred/internal/admin"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "unit-test-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func protectedHandler(t *testing.T, captured *admin.Actor) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromContext(r.Context())
		require.True(t, ok)
		*captured = actor
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticateValidToken(t *testing.T) {
	var actor admin.Actor
	mw := NewAuthMiddleware(testSecret)
	handler := mw.Authenticate(protectedHandler(t, &actor))

	token := signToken(t, jwt.MapClaims{
		"admin_id": "admin-7",
		"role":     admin.RoleComplianceOfficer,
		"exp":      time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/subjects", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin-7", actor.ID)
	assert.Equal(t, admin.RoleComplianceOfficer, actor.Role)
}

func TestAuthenticateRejectsBadRequests(t *testing.T) {
	mw := NewAuthMiddleware(testSecret)
	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	expired := signToken(t, jwt.MapClaims{
		"admin_id": "admin-7",
		"role":     admin.RoleAnalyst,
		"exp":      time.Now().Add(-time.Hour).Unix(),
	})
	missingRole := signToken(t, jwt.MapClaims{
		"admin_id": "admin-7",
		"exp":      time.Now().Add(time.Hour).Unix(),
	})

	wrongKey := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"admin_id": "admin-7",
		"role":     admin.RoleAnalyst,
		"exp":      time.Now().Add(time.Hour).Unix(),
	})
	forged, err := wrongKey.SignedString([]byte("other-secret"))
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"malformed header", "Token abc"},
		{"forged signature", "Bearer " + forged},
		{"expired token", "Bearer " + expired},
		{"missing role claim", "Bearer " + missingRole},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/subjects", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}
