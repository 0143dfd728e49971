// Package storeset assembles one store.Store[T] per persisted entity type,
// choosing the in-memory or SQL backend per deployment profile. Grounded on
// the teacher's internal/storage/factory.go backend-selection pattern,
// generalized from a single alert store to the full entity set and with an
// explicit fallback to memory on SQL initialization failure rather than a
// startup abort.
package storeset

import (
	"database/sql"
	"log/slog"

	"github.com/surpluscoord/control-plane/internal/domain"
	"github.com/surpluscoord/control-plane/internal/store"
	"github.com/surpluscoord/control-plane/internal/store/memstore"
	"github.com/surpluscoord/control-plane/internal/store/sqlstore"
)

// Set holds the per-entity-type repositories the rest of the system depends
// on through the store.Store[T] interface, so callers never know whether
// they're backed by memory or SQL.
type Set struct {
	Users         store.Store[*domain.UserProfile]
	Listings      store.Store[*domain.SurplusListing]
	Demands       store.Store[*domain.DemandPost]
	Matches       store.Store[*domain.MatchRecommendation]
	Tasks         store.Store[*domain.DeliveryTask]
	Routes        store.Store[*domain.RoutePlan]
	Notifications store.Store[*domain.Notification]
	Events        store.Store[*domain.AuditEvent]
}

// NewMemory builds a Set backed entirely by memstore. Used for the lite
// profile's default, for tests, and as the fallback when SQL init fails.
func NewMemory(logger *slog.Logger) *Set {
	return &Set{
		Users:         memstore.New(logger, func() *domain.UserProfile { return &domain.UserProfile{} }),
		Listings:      memstore.New(logger, func() *domain.SurplusListing { return &domain.SurplusListing{} }),
		Demands:       memstore.New(logger, func() *domain.DemandPost { return &domain.DemandPost{} }),
		Matches:       memstore.New(logger, func() *domain.MatchRecommendation { return &domain.MatchRecommendation{} }),
		Tasks:         memstore.New(logger, func() *domain.DeliveryTask { return &domain.DeliveryTask{} }),
		Routes:        memstore.New(logger, func() *domain.RoutePlan { return &domain.RoutePlan{} }),
		Notifications: memstore.New(logger, func() *domain.Notification { return &domain.Notification{} }),
		Events:        memstore.New(logger, func() *domain.AuditEvent { return &domain.AuditEvent{} }),
	}
}

// NewSQL builds a Set backed by an already-open, already-migrated *sql.DB
// shared across every entity type's table partition.
func NewSQL(logger *slog.Logger, db *sql.DB) *Set {
	return &Set{
		Users:         sqlstore.New(db, "user_profile", logger, func() *domain.UserProfile { return &domain.UserProfile{} }),
		Listings:      sqlstore.New(db, "surplus_listing", logger, func() *domain.SurplusListing { return &domain.SurplusListing{} }),
		Demands:       sqlstore.New(db, "demand_post", logger, func() *domain.DemandPost { return &domain.DemandPost{} }),
		Matches:       sqlstore.New(db, "match_recommendation", logger, func() *domain.MatchRecommendation { return &domain.MatchRecommendation{} }),
		Tasks:         sqlstore.New(db, "delivery_task", logger, func() *domain.DeliveryTask { return &domain.DeliveryTask{} }),
		Routes:        sqlstore.New(db, "route_plan", logger, func() *domain.RoutePlan { return &domain.RoutePlan{} }),
		Notifications: sqlstore.New(db, "notification", logger, func() *domain.Notification { return &domain.Notification{} }),
		Events:        sqlstore.New(db, "audit_event", logger, func() *domain.AuditEvent { return &domain.AuditEvent{} }),
	}
}

// Build opens the SQL backend named by driver/dsn and falls back to memory
// with a logged warning if opening, pinging or schema setup fails, so a
// misconfigured database never prevents the process from starting in a
// degraded, memory-backed mode.
func Build(logger *slog.Logger, driver sqlstore.Driver, dsn string, maxOpenConns, maxIdleConns int) (*Set, *sql.DB) {
	var (
		db  *sql.DB
		err error
	)
	switch driver {
	case sqlstore.DriverSQLite:
		db, err = sqlstore.OpenSQLite(dsn)
	case sqlstore.DriverPostgres:
		db, err = sqlstore.OpenPostgres(dsn, maxOpenConns, maxIdleConns)
	default:
		logger.Warn("unknown storage driver, falling back to memory", "driver", driver)
		return NewMemory(logger), nil
	}
	if err != nil {
		logger.Error("failed to open sql storage, falling back to memory", "driver", driver, "error", err)
		return NewMemory(logger), nil
	}
	if err := db.Ping(); err != nil {
		logger.Error("sql storage unreachable, falling back to memory", "driver", driver, "error", err)
		_ = db.Close()
		return NewMemory(logger), nil
	}
	if err := sqlstore.RunMigrations(db, driver); err != nil {
		logger.Warn("goose migration run failed, falling back to idempotent DDL", "driver", driver, "error", err)
	}
	if err := sqlstore.EnsureSchema(db, driver); err != nil {
		logger.Error("schema setup failed, falling back to memory", "driver", driver, "error", err)
		_ = db.Close()
		return NewMemory(logger), nil
	}
	return NewSQL(logger, db), db
}

// Close closes every backend that holds its own resources (memstore's Close
// is a no-op; the shared *sql.DB, if any, is closed separately by the
// caller that opened it via Build).
func (s *Set) Close() {
	_ = s.Users.Close()
	_ = s.Listings.Close()
	_ = s.Demands.Close()
	_ = s.Matches.Close()
	_ = s.Tasks.Close()
	_ = s.Routes.Close()
	_ = s.Notifications.Close()
	_ = s.Events.Close()
}
