// Package store defines the generic key-value store contract (SPEC_FULL.md
// §4.1, component C1): per-entity repositories with optimistic versioned
// writes and secondary indexes by status, owner and geohash prefix.
//
// Generalized from the teacher's internal/storage package, whose
// core.Repository[T any] interface and memory.MemoryStorage implementation
// this is grounded on — with optimistic versioning added, since the
// teacher's UpdateAlert is a pure overwrite with no compare-and-swap.
package store

import (
	"context"
	"errors"

	"github.com/surpluscoord/control-plane/internal/domain"
)

// ErrNotFound is returned by GetOrFail when no entity exists for the id.
var ErrNotFound = errors.New("entity not found")

// ErrConflict is returned by Put when the expected version does not match
// the stored version (or the entity already exists on an insert).
var ErrConflict = errors.New("optimistic version conflict")

// Filter narrows a query against a single entity type's index.
type Filter struct {
	Status       domain.Status
	OwnerID      string
	GeohashPrefix string
	Limit        int
}

// Record is the constraint satisfied by every entity pointer type the store
// can hold: the bookkeeping methods of domain.Entity plus the index
// accessors of domain.Indexed.
type Record interface {
	domain.Entity
	domain.Indexed
}

// Store is a generic per-entity-type repository. T must be a pointer type
// implementing Record (e.g. *domain.SurplusListing).
type Store[T Record] interface {
	// Put inserts (version == 0) or updates (version == stored version) an
	// entity. On success it mutates the in-memory copy's Version and
	// UpdatedAt/CreatedAt in place and returns nil. On conflict it returns
	// ErrConflict and leaves entity untouched.
	Put(ctx context.Context, entity T) error

	// Get returns the entity, or a freshly allocated zero-valued entity
	// (non-nil, empty ID) and a nil error if absent.
	Get(ctx context.Context, id string) (T, error)

	// GetOrFail returns the entity or ErrNotFound.
	GetOrFail(ctx context.Context, id string) (T, error)

	// UpdateFields loads the current entity, applies a field-merge function,
	// and persists it under the same optimistic contract as Put.
	// mutate must not change ID or Version; UpdateFields manages those.
	UpdateFields(ctx context.Context, id string, expectedVersion int, mutate func(T)) (T, error)

	// QueryByStatus, QueryByOwner and QueryByGeohashPrefix return up to
	// limit entities from the relevant secondary index, newest first. For
	// limit <= 0 memstore returns every match, while sqlstore returns at most
	// 200 (and also replaces a limit above 1000 with 200).
	QueryByStatus(ctx context.Context, status domain.Status, limit int) ([]T, error)
	QueryByOwner(ctx context.Context, ownerID string, limit int) ([]T, error)
	QueryByGeohashPrefix(ctx context.Context, prefix string, limit int) ([]T, error)

	// BatchGet is a best-effort lookup; missing ids are simply omitted.
	BatchGet(ctx context.Context, ids []string) ([]T, error)

	// Count returns the total number of entities of this type.
	Count(ctx context.Context) (int, error)

	// Health reports whether the backend is reachable.
	Health(ctx context.Context) error

	// Close releases any resources held by the backend.
	Close() error
}

// defaultQueryLimit and clampLimit are not called by either backend; each
// backend applies its own limit handling, as described on Store above.
const defaultQueryLimit = 200

func clampLimit(limit int) int {
	if limit <= 0 || limit > defaultQueryLimit {
		return defaultQueryLimit
	}
	return limit
}
