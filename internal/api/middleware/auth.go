package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/surpluscoord/control-plane/internal/apierr"
)

// AuthConfig holds the API-key directory AuthMiddleware validates against.
// JWT is named but not implemented, mirroring the teacher's own
// not-yet-built Bearer path.
type AuthConfig struct {
	APIKeys      map[string]*AuthenticatedUser
	EnableAPIKey bool
	EnableJWT    bool
}

// AuthMiddleware validates the Authorization header and attaches the
// resolved AuthenticatedUser to the request context.
//
// Supported scheme: "ApiKey <key>". "Bearer <token>" is always rejected,
// whatever EnableJWT is set to: no identity provider is wired in.
func AuthMiddleware(config AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())
			header := r.Header.Get(AuthorizationHeader)
			if header == "" {
				writeAuthError(w, apierr.AuthenticationError("missing Authorization header").WithRequestID(requestID))
				return
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 {
				writeAuthError(w, apierr.AuthenticationError("invalid Authorization header format").WithRequestID(requestID))
				return
			}

			var user *AuthenticatedUser
			switch parts[0] {
			case "ApiKey":
				if !config.EnableAPIKey {
					writeAuthError(w, apierr.AuthenticationError("API key authentication disabled").WithRequestID(requestID))
					return
				}
				user = config.APIKeys[parts[1]]
			case "Bearer":
				writeAuthError(w, apierr.AuthenticationError("bearer token authentication is not yet supported").WithRequestID(requestID))
				return
			default:
				writeAuthError(w, apierr.AuthenticationError("unsupported authentication scheme").WithRequestID(requestID))
				return
			}

			if user == nil {
				writeAuthError(w, apierr.AuthenticationError("invalid credentials").WithRequestID(requestID))
				return
			}

			ctx := context.WithValue(r.Context(), ActorContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetAuthenticatedUser extracts the user AuthMiddleware attached to ctx.
func GetAuthenticatedUser(ctx context.Context) (*AuthenticatedUser, bool) {
	user, ok := ctx.Value(ActorContextKey).(*AuthenticatedUser)
	return user, ok
}

func writeAuthError(w http.ResponseWriter, err *apierr.Error) {
	apierr.WriteError(w, err)
}
