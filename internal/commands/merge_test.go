package commands_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surpluscoord/control-plane/internal/commands"
)

type mergeFixture struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Quantity    int    `json:"quantity"`
}

func TestApplyUpdateOverwritesPresentKeys(t *testing.T) {
	existing := &mergeFixture{Title: "Canned beans", Description: "day-old bread", Quantity: 10}

	err := commands.ApplyUpdate(existing, map[string]any{"quantity": float64(25)})
	require.NoError(t, err)

	assert.Equal(t, "Canned beans", existing.Title)
	assert.Equal(t, "day-old bread", existing.Description)
	assert.Equal(t, 25, existing.Quantity)
}

func TestApplyUpdateClearsFieldOnExplicitNull(t *testing.T) {
	existing := &mergeFixture{Title: "Canned beans", Description: "day-old bread", Quantity: 10}

	err := commands.ApplyUpdate(existing, map[string]any{"description": nil})
	require.NoError(t, err)

	assert.Empty(t, existing.Description)
	assert.Equal(t, "Canned beans", existing.Title)
}

func TestApplyUpdateLeavesAbsentKeysUntouched(t *testing.T) {
	existing := &mergeFixture{Title: "Canned beans", Quantity: 10}

	err := commands.ApplyUpdate(existing, map[string]any{"title": "Canned beans (case of 24)"})
	require.NoError(t, err)

	assert.Equal(t, "Canned beans (case of 24)", existing.Title)
	assert.Equal(t, 10, existing.Quantity)
}
