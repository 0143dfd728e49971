// Package memstore is the in-memory Store[T] backend: the default backend
// for tests and the graceful-degradation fallback when a SQL backend fails
// to initialize.
//
// Adapted from the teacher's internal/storage/memory/memory_storage.go
// (map + sync.RWMutex + deep-copy-on-read/write, FIFO capacity eviction),
// generalized from a single Alert type to any store.Record via generics,
// and given a real optimistic-version compare-and-swap, which the teacher's
// UpdateAlert (a pure CreateAlert overwrite) does not have.
package memstore

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/surpluscoord/control-plane/internal/domain"
	"github.com/surpluscoord/control-plane/internal/store"
)

// defaultCapacity bounds the number of entities held per type before the
// oldest (by CreatedAt) is evicted, mirroring the teacher's FIFO eviction.
const defaultCapacity = 50000

// Store is an in-memory, thread-safe implementation of store.Store[T].
//
// new must construct a fresh zero-valued *E (e.g. func() *domain.SurplusListing
// { return &domain.SurplusListing{} }); it backs the JSON-round-trip deep
// copy used on every read and write, since Go generics give no way to
// allocate a new T without one.
type Store[T store.Record] struct {
	mu       sync.RWMutex
	entities map[string]T
	logger   *slog.Logger
	capacity int
	newFn    func() T
}

// New creates an in-memory store for one entity type. newFn must return a
// freshly allocated zero value of T.
func New[T store.Record](logger *slog.Logger, newFn func() T) *Store[T] {
	return &Store[T]{
		entities: make(map[string]T),
		logger:   logger.With("component", "memstore"),
		capacity: defaultCapacity,
		newFn:    newFn,
	}
}

// clone performs a full deep copy of an entity via a JSON round-trip, so
// callers can never observe or corrupt the store's internal state through a
// returned pointer.
func (s *Store[T]) clone(entity T) T {
	data, err := json.Marshal(entity)
	if err != nil {
		s.logger.Warn("deep copy marshal failed, returning original reference")
		return entity
	}
	out := s.newFn()
	if err := json.Unmarshal(data, out); err != nil {
		s.logger.Warn("deep copy unmarshal failed, returning original reference")
		return entity
	}
	return out
}

func (s *Store[T]) Put(ctx context.Context, entity T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.entities[entity.EntityID()]

	if entity.EntityVersion() == 0 {
		if exists {
			return store.ErrConflict
		}
		now := time.Now().UTC()
		entity.SetTimestamps(now, now)
		entity.SetVersion(1)
		s.evictIfFullLocked()
		s.entities[entity.EntityID()] = s.clone(entity)
		return nil
	}

	if !exists || existing.EntityVersion() != entity.EntityVersion() {
		return store.ErrConflict
	}

	createdAt, _ := existing.Timestamps()
	entity.SetTimestamps(createdAt, time.Now().UTC())
	entity.SetVersion(entity.EntityVersion() + 1)
	s.entities[entity.EntityID()] = s.clone(entity)
	return nil
}

func (s *Store[T]) evictIfFullLocked() {
	if len(s.entities) < s.capacity {
		return
	}
	var oldestID string
	var oldestAt time.Time
	first := true
	for id, e := range s.entities {
		createdAt, _ := e.Timestamps()
		if first || createdAt.Before(oldestAt) {
			oldestID, oldestAt, first = id, createdAt, false
		}
	}
	if oldestID != "" {
		delete(s.entities, oldestID)
		s.logger.Warn("memstore capacity exceeded, evicted oldest entity", "id", oldestID)
	}
}

func (s *Store[T]) Get(ctx context.Context, id string) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[id]
	if !ok {
		return s.newFn(), nil
	}
	return s.clone(e), nil
}

func (s *Store[T]) GetOrFail(ctx context.Context, id string) (T, error) {
	s.mu.RLock()
	e, ok := s.entities[id]
	s.mu.RUnlock()
	if !ok {
		return s.newFn(), store.ErrNotFound
	}
	return s.clone(e), nil
}

func (s *Store[T]) UpdateFields(ctx context.Context, id string, expectedVersion int, mutate func(T)) (T, error) {
	s.mu.RLock()
	existing, ok := s.entities[id]
	s.mu.RUnlock()
	if !ok {
		return s.newFn(), store.ErrNotFound
	}
	if existing.EntityVersion() != expectedVersion {
		return s.newFn(), store.ErrConflict
	}

	updated := s.clone(existing)
	mutate(updated)
	if err := s.Put(ctx, updated); err != nil {
		return s.newFn(), err
	}
	return s.Get(ctx, id)
}

func (s *Store[T]) QueryByStatus(ctx context.Context, status domain.Status, limit int) ([]T, error) {
	return s.query(limit, func(e T) bool { return e.IndexStatus() == status })
}

func (s *Store[T]) QueryByOwner(ctx context.Context, ownerID string, limit int) ([]T, error) {
	return s.query(limit, func(e T) bool { return e.IndexOwner() == ownerID })
}

func (s *Store[T]) QueryByGeohashPrefix(ctx context.Context, prefix string, limit int) ([]T, error) {
	return s.query(limit, func(e T) bool {
		return strings.HasPrefix(e.IndexGeohash(), prefix) && e.IndexGeohash() != ""
	})
}

func (s *Store[T]) query(limit int, match func(T) bool) ([]T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]T, 0)
	for _, e := range s.entities {
		if match(e) {
			results = append(results, s.clone(e))
		}
	}
	sort.Slice(results, func(i, j int) bool {
		ci, _ := results[i].Timestamps()
		cj, _ := results[j].Timestamps()
		return ci.After(cj)
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *Store[T]) BatchGet(ctx context.Context, ids []string) ([]T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	results := make([]T, 0, len(ids))
	for _, id := range ids {
		if e, ok := s.entities[id]; ok {
			results = append(results, s.clone(e))
		}
	}
	return results, nil
}

func (s *Store[T]) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entities), nil
}

func (s *Store[T]) Health(ctx context.Context) error { return nil }

func (s *Store[T]) Close() error {
	s.logger.Info("memstore closed")
	return nil
}
