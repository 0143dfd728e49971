// Package commands implements the command-handler envelope shared by every
// state-changing operation the HTTP surface exposes (SPEC_FULL.md §4.8,
// component C12): authenticate, validate, authorize, state-check, persist,
// audit, publish, return.
//
// Grounded on the teacher's internal/api/router.go request lifecycle
// (middleware chain feeding a handler that loads, mutates and responds),
// generalized from HTTP-framework-bound handlers into framework-agnostic
// command functions the internal/api package's handlers call into.
package commands

import (
	"log/slog"

	"github.com/surpluscoord/control-plane/internal/audit"
	"github.com/surpluscoord/control-plane/internal/compliance"
	"github.com/surpluscoord/control-plane/internal/eventbus"
	"github.com/surpluscoord/control-plane/internal/matching"
	"github.com/surpluscoord/control-plane/internal/orchestrator"
	"github.com/surpluscoord/control-plane/internal/statemachine"
	"github.com/surpluscoord/control-plane/internal/store/storeset"
)

// Service bundles every collaborator a command handler needs. One Service
// is constructed at startup and shared by every handler in internal/api.
type Service struct {
	Stores       *storeset.Set
	Transitions  *statemachine.Table
	AuditLog     *audit.Log
	Bus          *eventbus.Bus
	Compliance   *compliance.Engine
	Matching     *matching.Engine
	Orchestrator *orchestrator.Orchestrator
	Logger       *slog.Logger
}

// New builds a Service from its collaborators.
func New(stores *storeset.Set, transitions *statemachine.Table, auditLog *audit.Log, bus *eventbus.Bus, complianceEngine *compliance.Engine, matchEngine *matching.Engine, orch *orchestrator.Orchestrator, logger *slog.Logger) *Service {
	return &Service{
		Stores:       stores,
		Transitions:  transitions,
		AuditLog:     auditLog,
		Bus:          bus,
		Compliance:   complianceEngine,
		Matching:     matchEngine,
		Orchestrator: orch,
		Logger:       logger.With("component", "commands"),
	}
}

func defaultListLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	return limit
}
