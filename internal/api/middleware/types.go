// Package middleware holds the HTTP middleware chain shared by every route
// group: request id, structured logging, Prometheus metrics, CORS,
// compression, authentication and rate limiting. Adapted from the
// teacher's internal/api/middleware package, generalized from its
// viewer/operator/admin ladder to this system's multi-role domain.Role
// taxonomy.
package middleware

import "github.com/surpluscoord/control-plane/internal/domain"

// contextKey namespaces values middleware stores on the request context.
type contextKey string

const (
	RequestIDContextKey contextKey = "request_id"
	ActorContextKey     contextKey = "actor"
	StartTimeContextKey contextKey = "start_time"
)

// HTTP headers used across the middleware chain.
const (
	RequestIDHeader          = "X-Request-ID"
	AuthorizationHeader      = "Authorization"
	RateLimitLimitHeader     = "X-RateLimit-Limit"
	RateLimitRemainingHeader = "X-RateLimit-Remaining"
	RateLimitResetHeader     = "X-RateLimit-Reset"
)

// AuthenticatedUser is the identity AuthMiddleware attaches to the request
// context once an API key resolves to a known user.
type AuthenticatedUser struct {
	ID     string
	Email  string
	Roles  []domain.Role
	APIKey string
}
