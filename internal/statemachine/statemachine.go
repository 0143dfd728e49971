// Package statemachine is the static lifecycle transition table shared by
// listings, demand posts, matches and delivery tasks (SPEC_FULL.md §4.3,
// component C8): a pure precondition checker over (from, to, role,
// isOwner, justification) that never itself mutates state.
//
// Grounded on the role-tiered RBAC subrouters of the teacher's
// internal/api/router.go (the same "does this role satisfy this gate"
// shape, generalized from a fixed admin/operator/viewer tier to a
// per-transition role table) and loaded from a versioned YAML fixture the
// way the teacher's config layer treats its own static YAML assets,
// using gopkg.in/yaml.v3.
package statemachine

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/surpluscoord/control-plane/internal/domain"
)

//go:embed transitions.yaml
var defaultTransitionsYAML []byte

// ErrJustificationRequired is returned by Transition when the entry
// requires a justification and the caller supplied none.
var ErrJustificationRequired = errors.New("statemachine: justification required for this transition")

// ErrTransitionNotAllowed is returned when no matching row grants the
// requested (from, to, role) combination.
var ErrTransitionNotAllowed = errors.New("statemachine: transition not allowed")

// Transition is one row of the canonical table.
type Transition struct {
	From                   domain.Status `yaml:"from"`
	To                     domain.Status `yaml:"to"`
	Roles                  []domain.Role `yaml:"roles"`
	OwnerAllowed           bool          `yaml:"ownerAllowed"`
	RequiresJustification  bool          `yaml:"requiresJustification"`
}

type fixture struct {
	Version     string       `yaml:"version"`
	Transitions []Transition `yaml:"transitions"`
}

// Table is the loaded, indexed transition table.
type Table struct {
	Version     string
	transitions []Transition
	byPair      map[pairKey][]Transition
}

type pairKey struct {
	from domain.Status
	to   domain.Status
}

// Load parses a YAML fixture in the shape of this package's transitions.yaml.
func Load(data []byte) (*Table, error) {
	var f fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("statemachine: parse transitions: %w", err)
	}
	t := &Table{
		Version:     f.Version,
		transitions: f.Transitions,
		byPair:      make(map[pairKey][]Transition),
	}
	for _, tr := range f.Transitions {
		key := pairKey{tr.From, tr.To}
		t.byPair[key] = append(t.byPair[key], tr)
	}
	return t, nil
}

// Default loads the table embedded at build time from this package's
// transitions.yaml.
func Default() (*Table, error) {
	return Load(defaultTransitionsYAML)
}

// rowsFor returns every row permitting from -> to. A loaded table may hold
// more than one row for the same pair (the embedded one does not); callers
// see the union.
func (t *Table) rowsFor(from, to domain.Status) []Transition {
	return t.byPair[pairKey{from, to}]
}

// CanTransition reports whether role (optionally as the entity owner) may
// move an entity from `from` to `to`. admin always succeeds given a
// matching row exists, regardless of whether it is explicitly listed.
func (t *Table) CanTransition(from, to domain.Status, role domain.Role, isOwner bool) bool {
	if from == to {
		return false
	}
	for _, row := range t.rowsFor(from, to) {
		if roleAllowed(row, role, isOwner) {
			return true
		}
	}
	return false
}

func roleAllowed(row Transition, role domain.Role, isOwner bool) bool {
	if role == domain.RoleAdmin {
		return true
	}
	if isOwner && row.OwnerAllowed {
		return true
	}
	for _, r := range row.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// TransitionContext carries the caller-supplied justification, if any.
type TransitionContext struct {
	Justification string
}

// Transition validates a requested transition as a pure precondition check:
// it never mutates entity state. The caller is responsible for persisting
// the new status after Transition returns nil.
func (t *Table) Transition(from, to domain.Status, role domain.Role, isOwner bool, ctx TransitionContext) error {
	matched := false
	requiresJustification := false
	for _, row := range t.rowsFor(from, to) {
		if roleAllowed(row, role, isOwner) {
			matched = true
			if row.RequiresJustification {
				requiresJustification = true
			} else {
				// A row satisfied by this role with no justification requirement
				// takes precedence over a justification-requiring row for the
				// same (from, to) pair (none exist in the canonical table, but
				// this keeps the contract well-defined if one is ever added).
				requiresJustification = false
				break
			}
		}
	}
	if !matched {
		return fmt.Errorf("%w: %s -> %s for role %s", ErrTransitionNotAllowed, from, to, role)
	}
	if requiresJustification && ctx.Justification == "" {
		return ErrJustificationRequired
	}
	return nil
}

// AllowedTransitions lists every status role (optionally as owner) may move
// an entity in `from` into, sorted for deterministic UI rendering.
func (t *Table) AllowedTransitions(from domain.Status, role domain.Role, isOwner bool) []domain.Status {
	seen := make(map[domain.Status]struct{})
	for _, row := range t.transitions {
		if row.From != from {
			continue
		}
		if roleAllowed(row, role, isOwner) {
			seen[row.To] = struct{}{}
		}
	}
	out := make([]domain.Status, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// IsTerminal delegates to domain.IsTerminal for symmetry with the rest of
// the package's status-centric API.
func (t *Table) IsTerminal(status domain.Status) bool {
	return domain.IsTerminal(status)
}

// NextActions names the action verb associated with each allowed outgoing
// transition, for UI affordance rendering.
func (t *Table) NextActions(from domain.Status, role domain.Role, isOwner bool) map[domain.Status]string {
	actions := map[domain.Status]string{
		domain.StatusMatched:   "match",
		domain.StatusScheduled: "schedule",
		domain.StatusPickedUp:  "pickup",
		domain.StatusDelivered: "deliver",
		domain.StatusExpired:   "expire",
		domain.StatusClosed:    "close",
		domain.StatusCanceled:  "cancel",
		domain.StatusFailed:    "fail",
	}
	out := make(map[domain.Status]string)
	for _, to := range t.AllowedTransitions(from, role, isOwner) {
		if verb, ok := actions[to]; ok {
			out[to] = verb
		}
	}
	return out
}
