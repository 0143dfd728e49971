package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/surpluscoord/control-plane/internal/domain"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequestIDMiddlewareGeneratesAndPreservesID(t *testing.T) {
	var captured string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.NotEmpty(t, captured)
	assert.Equal(t, captured, rr.Header().Get(RequestIDHeader))

	req2 := httptest.NewRequest(http.MethodGet, "/test", nil)
	req2.Header.Set(RequestIDHeader, "fixed-id")
	rr2 := httptest.NewRecorder()
	handler.ServeHTTP(rr2, req2)
	assert.Equal(t, "fixed-id", rr2.Header().Get(RequestIDHeader))
}

func TestAuthMiddlewareRejectsMissingAndInvalidCredentials(t *testing.T) {
	config := AuthConfig{
		EnableAPIKey: true,
		APIKeys: map[string]*AuthenticatedUser{
			"good-key": {ID: "user-1", Roles: []domain.Role{domain.RoleOperator}, APIKey: "good-key"},
		},
	}
	handler := AuthMiddleware(config)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req2 := httptest.NewRequest(http.MethodGet, "/test", nil)
	req2.Header.Set(AuthorizationHeader, "ApiKey bad-key")
	rr2 := httptest.NewRecorder()
	handler.ServeHTTP(rr2, req2)
	assert.Equal(t, http.StatusUnauthorized, rr2.Code)

	req3 := httptest.NewRequest(http.MethodGet, "/test", nil)
	req3.Header.Set(AuthorizationHeader, "ApiKey good-key")
	rr3 := httptest.NewRecorder()
	handler.ServeHTTP(rr3, req3)
	assert.Equal(t, http.StatusOK, rr3.Code)
}

func TestRequireAnyRoleAllowsAdminRegardless(t *testing.T) {
	handler := RequireAnyRole(domain.RoleCompliance)(okHandler())

	reqWithRoles := func(roles ...domain.Role) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		user := &AuthenticatedUser{ID: "u", Roles: roles}
		ctx := context.WithValue(req.Context(), ActorContextKey, user)
		return req.WithContext(ctx)
	}

	rrAdmin := httptest.NewRecorder()
	handler.ServeHTTP(rrAdmin, reqWithRoles(domain.RoleAdmin))
	assert.Equal(t, http.StatusOK, rrAdmin.Code)

	rrWrong := httptest.NewRecorder()
	handler.ServeHTTP(rrWrong, reqWithRoles(domain.RoleDriver))
	assert.Equal(t, http.StatusForbidden, rrWrong.Code)
}
