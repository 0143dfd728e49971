package commands

import (
	"context"

	"github.com/surpluscoord/control-plane/internal/apierr"
	"github.com/surpluscoord/control-plane/internal/domain"
)

// Actor is the authenticated caller of a command, extracted from the
// request context by the HTTP layer's auth middleware before the command
// function is ever invoked (envelope step 1).
type Actor struct {
	UserID    string
	Email     string
	Roles     []domain.Role
	RequestID string
}

// HasRole reports whether the actor holds role r.
func (a Actor) HasRole(r domain.Role) bool {
	for _, have := range a.Roles {
		if have == r {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the actor holds any of roles.
func (a Actor) HasAnyRole(roles ...domain.Role) bool {
	for _, r := range roles {
		if a.HasRole(r) {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the actor holds the admin role, which the
// envelope's authorization step always permits regardless of ownership or
// allowlist.
func (a Actor) IsAdmin() bool {
	return a.HasRole(domain.RoleAdmin)
}

// Authorize enforces envelope step 3: the actor must own the target entity
// (ownerID) or hold one of allowedRoles; admin always passes.
func Authorize(actor Actor, ownerID string, allowedRoles ...domain.Role) error {
	if actor.IsAdmin() {
		return nil
	}
	if ownerID != "" && actor.UserID == ownerID {
		return nil
	}
	if actor.HasAnyRole(allowedRoles...) {
		return nil
	}
	return apierr.AuthorizationError("you do not have permission to perform this action").WithRequestID(actor.RequestID)
}

type actorContextKey struct{}

// WithActor returns a context carrying actor, for handlers to thread
// through to command functions.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the Actor stored by WithActor. The second
// return value is false if no actor is present, which the caller should
// treat as CodeAuthenticationError.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}
