package middleware

import (
	"net/http"

	"github.com/surpluscoord/control-plane/internal/apierr"
	"github.com/surpluscoord/control-plane/internal/domain"
)

// RequireAnyRole gates a route on the authenticated user holding at least
// one of roles, as a coarse defense-in-depth check before the command
// layer's own per-resource ownership/role authorization runs. Unlike the
// teacher's single-ladder RBACMiddleware, this system's roles are not
// totally ordered, so the check is "any of", not "at least this level".
func RequireAnyRole(roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := GetAuthenticatedUser(r.Context())
			if !ok || user == nil {
				apierr.WriteError(w, apierr.AuthenticationError("no authenticated user").WithRequestID(GetRequestID(r.Context())))
				return
			}
			if hasAnyRole(user.Roles, domain.RoleAdmin) || hasAnyRole(user.Roles, roles...) {
				next.ServeHTTP(w, r)
				return
			}
			apierr.WriteError(w, apierr.AuthorizationError("insufficient role for this endpoint").WithRequestID(GetRequestID(r.Context())))
		})
	}
}

func hasAnyRole(have []domain.Role, want ...domain.Role) bool {
	for _, h := range have {
		for _, w := range want {
			if h == w {
				return true
			}
		}
	}
	return false
}

// OperatorMiddleware is a convenience wrapper requiring operator or admin.
func OperatorMiddleware(next http.Handler) http.Handler {
	return RequireAnyRole(domain.RoleOperator)(next)
}

// AdminMiddleware is a convenience wrapper requiring admin.
func AdminMiddleware(next http.Handler) http.Handler {
	return RequireAnyRole()(next)
}
