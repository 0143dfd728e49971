package commands

import (
	"context"

	"github.com/surpluscoord/control-plane/internal/apierr"
	"github.com/surpluscoord/control-plane/internal/audit"
	"github.com/surpluscoord/control-plane/internal/domain"
	"github.com/surpluscoord/control-plane/internal/eventbus"
	"github.com/surpluscoord/control-plane/internal/statemachine"
)

// publish fire-and-forgets a domain event, logging rather than failing the
// calling command if the bus's channel is saturated (SPEC_FULL.md §5:
// domain events are at-least-once, never a reason to fail a command).
func (s *Service) publish(eventType, entityID string, data map[string]any) {
	if s.Bus == nil {
		return
	}
	event := eventbus.New(eventType, entityID, data, eventbus.SourceCommands)
	if err := s.Bus.Publish(event); err != nil {
		s.Logger.Warn("failed to publish event", "event_type", eventType, "entity_id", entityID, "error", err)
	}
}

func auditInput(actor Actor, entityType, entityID, action string, before, after any) audit.WriteInput {
	return audit.WriteInput{
		EntityType: entityType,
		EntityID:   entityID,
		Actor:      actor.UserID,
		ActorRole:  primaryRole(actor),
		Action:     action,
		Before:     before,
		After:      after,
		RequestID:  actor.RequestID,
	}
}

func auditInputJustified(actor Actor, entityType, entityID, action string, before, after any, justification string) audit.WriteInput {
	in := auditInput(actor, entityType, entityID, action, before, after)
	in.Justification = justification
	return in
}

// primaryRole picks the role recorded against an audit event and evaluated
// by the state machine for an actor holding more than one role: admin takes
// precedence (its transitions are always permitted), then operator,
// compliance, driver, supplier and recipient in that order; any other role
// falls back to the first one the actor holds.
func primaryRole(actor Actor) domain.Role {
	precedence := []domain.Role{domain.RoleAdmin, domain.RoleOperator, domain.RoleCompliance, domain.RoleDriver, domain.RoleSupplier, domain.RoleRecipient}
	for _, r := range precedence {
		if actor.HasRole(r) {
			return r
		}
	}
	if len(actor.Roles) > 0 {
		return actor.Roles[0]
	}
	return ""
}

func statemachineCtx(justification string) statemachine.TransitionContext {
	return statemachine.TransitionContext{Justification: justification}
}

func transitionError(actor Actor, err error) error {
	switch err {
	case statemachine.ErrJustificationRequired:
		return apierr.ValidationError("this transition requires a justification").WithRequestID(actor.RequestID)
	case statemachine.ErrTransitionNotAllowed:
		return apierr.InvalidStateTransitionError("this transition is not allowed from the entity's current status").WithRequestID(actor.RequestID)
	default:
		return apierr.InvalidStateTransitionError(err.Error()).WithRequestID(actor.RequestID)
	}
}

// requireActor extracts the Actor from ctx, translating its absence into
// the envelope's authentication-failure step.
func requireActor(ctx context.Context) (Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return Actor{}, apierr.AuthenticationError("no authenticated actor in request context")
	}
	return actor, nil
}
