// Package sqlstore is the SQL-backed Store[T] implementation shared by the
// sqlite (lite profile) and Postgres (standard profile) backends. Both
// drivers are used through database/sql, so one query set serves both;
// backend-specific SQL stays confined to Open{SQLite,Postgres} and the
// dialect-sensitive parts of schema setup.
//
// Grounded on the teacher's internal/storage/sqlite/sqlite_storage.go query
// shape and internal/database/postgres/pool.go pooling shape, generalized
// from a single alerts table to a generic entities table keyed by
// (entity_type, id) so every SPEC_FULL.md entity type shares one schema.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/surpluscoord/control-plane/internal/domain"
	"github.com/surpluscoord/control-plane/internal/store"
)

// Store is a database/sql-backed implementation of store.Store[T] for one
// entity type, sharing the "entities" table with every other entity type
// (partitioned by the entity_type column).
type Store[T store.Record] struct {
	db         *sql.DB
	entityType string
	logger     *slog.Logger
	newFn      func() T
}

// New wraps an already-open, already-migrated *sql.DB for one entity type.
func New[T store.Record](db *sql.DB, entityType string, logger *slog.Logger, newFn func() T) *Store[T] {
	return &Store[T]{
		db:         db,
		entityType: entityType,
		logger:     logger.With("component", "sqlstore", "entity_type", entityType),
		newFn:      newFn,
	}
}

func (s *Store[T]) Put(ctx context.Context, entity T) error {
	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("sqlstore: marshal entity: %w", err)
	}

	origCreated, origUpdated := entity.Timestamps()
	if entity.EntityVersion() == 0 {
		now := time.Now().UTC()
		entity.SetTimestamps(now, now)
		entity.SetVersion(1)
		data, _ = json.Marshal(entity)

		res, err := s.db.ExecContext(ctx, `
			INSERT INTO entities (entity_type, id, version, status, owner_id, geohash, created_at, updated_at, data)
			SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?
			WHERE NOT EXISTS (SELECT 1 FROM entities WHERE entity_type = ? AND id = ?)`,
			s.entityType, entity.EntityID(), entity.EntityVersion(),
			string(entity.IndexStatus()), entity.IndexOwner(), entity.IndexGeohash(),
			now, now, string(data),
			s.entityType, entity.EntityID(),
		)
		if err != nil {
			entity.SetVersion(0)
			entity.SetTimestamps(origCreated, origUpdated)
			return fmt.Errorf("sqlstore: insert: %w", err)
		}
		affected, _ := res.RowsAffected()
		if affected == 0 {
			entity.SetVersion(0)
			entity.SetTimestamps(origCreated, origUpdated)
			return store.ErrConflict
		}
		return nil
	}

	expectedVersion := entity.EntityVersion()
	createdAt, _ := entity.Timestamps()
	if createdAt.IsZero() {
		row := s.db.QueryRowContext(ctx, `SELECT created_at FROM entities WHERE entity_type = ? AND id = ?`, s.entityType, entity.EntityID())
		_ = row.Scan(&createdAt)
	}
	now := time.Now().UTC()
	entity.SetTimestamps(createdAt, now)
	entity.SetVersion(expectedVersion + 1)
	data, _ = json.Marshal(entity)

	res, err := s.db.ExecContext(ctx, `
		UPDATE entities
		SET version = ?, status = ?, owner_id = ?, geohash = ?, updated_at = ?, data = ?
		WHERE entity_type = ? AND id = ? AND version = ?`,
		entity.EntityVersion(), string(entity.IndexStatus()), entity.IndexOwner(), entity.IndexGeohash(), now, string(data),
		s.entityType, entity.EntityID(), expectedVersion,
	)
	if err != nil {
		entity.SetVersion(expectedVersion)
		entity.SetTimestamps(origCreated, origUpdated)
		return fmt.Errorf("sqlstore: update: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		entity.SetVersion(expectedVersion)
		entity.SetTimestamps(origCreated, origUpdated)
		return store.ErrConflict
	}
	return nil
}

func (s *Store[T]) Get(ctx context.Context, id string) (T, error) {
	row := s.db.QueryRowContext(ctx, `SELECT data FROM entities WHERE entity_type = ? AND id = ?`, s.entityType, id)
	var raw string
	if err := row.Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return s.newFn(), nil
		}
		return s.newFn(), fmt.Errorf("sqlstore: get: %w", err)
	}
	out := s.newFn()
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return s.newFn(), fmt.Errorf("sqlstore: unmarshal: %w", err)
	}
	return out, nil
}

func (s *Store[T]) GetOrFail(ctx context.Context, id string) (T, error) {
	entity, err := s.Get(ctx, id)
	if err != nil {
		return entity, err
	}
	if entity.EntityID() == "" {
		return s.newFn(), store.ErrNotFound
	}
	return entity, nil
}

func (s *Store[T]) UpdateFields(ctx context.Context, id string, expectedVersion int, mutate func(T)) (T, error) {
	existing, err := s.GetOrFail(ctx, id)
	if err != nil {
		return existing, err
	}
	if existing.EntityVersion() != expectedVersion {
		return s.newFn(), store.ErrConflict
	}
	mutate(existing)
	if err := s.Put(ctx, existing); err != nil {
		return s.newFn(), err
	}
	return s.Get(ctx, id)
}

func (s *Store[T]) QueryByStatus(ctx context.Context, status domain.Status, limit int) ([]T, error) {
	return s.query(ctx, `SELECT data FROM entities WHERE entity_type = ? AND status = ? ORDER BY created_at DESC LIMIT ?`,
		s.entityType, string(status), normalizeLimit(limit))
}

func (s *Store[T]) QueryByOwner(ctx context.Context, ownerID string, limit int) ([]T, error) {
	return s.query(ctx, `SELECT data FROM entities WHERE entity_type = ? AND owner_id = ? ORDER BY created_at DESC LIMIT ?`,
		s.entityType, ownerID, normalizeLimit(limit))
}

func (s *Store[T]) QueryByGeohashPrefix(ctx context.Context, prefix string, limit int) ([]T, error) {
	return s.query(ctx, `SELECT data FROM entities WHERE entity_type = ? AND geohash LIKE ? ORDER BY created_at DESC LIMIT ?`,
		s.entityType, prefix+"%", normalizeLimit(limit))
}

func (s *Store[T]) query(ctx context.Context, q string, args ...any) ([]T, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: query: %w", err)
	}
	defer rows.Close()

	results := make([]T, 0)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("sqlstore: scan: %w", err)
		}
		out := s.newFn()
		if err := json.Unmarshal([]byte(raw), out); err != nil {
			return nil, fmt.Errorf("sqlstore: unmarshal: %w", err)
		}
		results = append(results, out)
	}
	return results, rows.Err()
}

func (s *Store[T]) BatchGet(ctx context.Context, ids []string) ([]T, error) {
	results := make([]T, 0, len(ids))
	for _, id := range ids {
		e, err := s.Get(ctx, id)
		if err != nil {
			s.logger.Warn("batch get: skipping id after error", "id", id, "error", err)
			continue
		}
		if e.EntityID() != "" {
			results = append(results, e)
		}
	}
	return results, nil
}

func (s *Store[T]) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entities WHERE entity_type = ?`, s.entityType).Scan(&count)
	return count, err
}

func (s *Store[T]) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store[T]) Close() error {
	return nil // the *sql.DB is owned and closed by whoever opened it (storeset.Build's caller).
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 1000 {
		return 200
	}
	return limit
}
