package statemachine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surpluscoord/control-plane/internal/domain"
	"github.com/surpluscoord/control-plane/internal/statemachine"
)

func mustTable(t *testing.T) *statemachine.Table {
	t.Helper()
	table, err := statemachine.Default()
	require.NoError(t, err)
	return table
}

func TestCanTransitionSystemPostedToMatched(t *testing.T) {
	table := mustTable(t)
	assert.True(t, table.CanTransition(domain.StatusPosted, domain.StatusMatched, domain.RoleSystem, false))
	assert.False(t, table.CanTransition(domain.StatusPosted, domain.StatusMatched, domain.RoleDriver, false))
}

func TestCanTransitionAdminAlwaysAllowedGivenExistingRow(t *testing.T) {
	table := mustTable(t)
	assert.True(t, table.CanTransition(domain.StatusPosted, domain.StatusMatched, domain.RoleAdmin, false))
	assert.False(t, table.CanTransition(domain.StatusPosted, domain.StatusDelivered, domain.RoleAdmin, false))
}

func TestCanTransitionRejectsSameState(t *testing.T) {
	table := mustTable(t)
	assert.False(t, table.CanTransition(domain.StatusPosted, domain.StatusPosted, domain.RoleAdmin, false))
}

func TestCanTransitionOwnerCancelRequiresOwnership(t *testing.T) {
	table := mustTable(t)
	assert.True(t, table.CanTransition(domain.StatusPosted, domain.StatusCanceled, domain.RoleSupplier, true))
	assert.False(t, table.CanTransition(domain.StatusPosted, domain.StatusCanceled, domain.RoleSupplier, false))
}

func TestTransitionRequiresJustificationWhenFlagged(t *testing.T) {
	table := mustTable(t)
	err := table.Transition(domain.StatusPosted, domain.StatusCanceled, domain.RoleSupplier, true, statemachine.TransitionContext{})
	assert.ErrorIs(t, err, statemachine.ErrJustificationRequired)

	err = table.Transition(domain.StatusPosted, domain.StatusCanceled, domain.RoleSupplier, true, statemachine.TransitionContext{Justification: "no longer available"})
	assert.NoError(t, err)
}

func TestTransitionRejectsDisallowedRole(t *testing.T) {
	table := mustTable(t)
	err := table.Transition(domain.StatusScheduled, domain.StatusPickedUp, domain.RoleRecipient, false, statemachine.TransitionContext{})
	assert.ErrorIs(t, err, statemachine.ErrTransitionNotAllowed)
}

func TestAllowedTransitionsListsEveryReachableStatus(t *testing.T) {
	table := mustTable(t)
	allowed := table.AllowedTransitions(domain.StatusPosted, domain.RoleOperator, false)
	assert.Contains(t, allowed, domain.StatusMatched)
	assert.Contains(t, allowed, domain.StatusExpired)
	assert.Contains(t, allowed, domain.StatusCanceled)
}

func TestIsTerminalMatchesDomain(t *testing.T) {
	table := mustTable(t)
	assert.True(t, table.IsTerminal(domain.StatusDelivered))
	assert.False(t, table.IsTerminal(domain.StatusPosted))
}

func TestNextActionsNamesVerbs(t *testing.T) {
	table := mustTable(t)
	actions := table.NextActions(domain.StatusMatched, domain.RoleOperator, false)
	assert.Equal(t, "schedule", actions[domain.StatusScheduled])
}

func TestDuplicateRowsUnionRoles(t *testing.T) {
	table, err := statemachine.Load([]byte(`
version: "test"
transitions:
  - from: posted
    to: matched
    roles: [system]
  - from: posted
    to: matched
    roles: [operator]
`))
	require.NoError(t, err)
	assert.True(t, table.CanTransition(domain.StatusPosted, domain.StatusMatched, domain.RoleSystem, false))
	assert.True(t, table.CanTransition(domain.StatusPosted, domain.StatusMatched, domain.RoleOperator, false))
	assert.True(t, table.CanTransition(domain.StatusPosted, domain.StatusMatched, domain.RoleAdmin, false))
}
