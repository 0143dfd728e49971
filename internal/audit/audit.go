// Package audit is the append-only event log (SPEC_FULL.md §4.2, component
// C2): every mutation to a tracked entity gets a computed before/after diff,
// an actor, and a retention deadline. Writes are fire-and-forget from the
// caller's perspective — a logging failure never fails the mutation that
// triggered it.
//
// Grounded on the teacher's internal/core/history.go query/response shapes
// (HistoryRequest/HistoryResponse/AggregatedStats/TopAlert), generalized
// from alert history to any tracked entity type and backed by the same
// generic store.Store used everywhere else instead of a dedicated
// Postgres-only repository.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"reflect"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/surpluscoord/control-plane/internal/domain"
	"github.com/surpluscoord/control-plane/internal/store"
)

// retentionPeriod is the TTL governing eventual physical deletion of audit
// events; the store never enforces this itself (it is append-only), so TTL
// is recorded on the event for a separate reaper to consult.
const retentionPeriod = 2 * 365 * 24 * time.Hour

// WriteInput is the payload for Log's fire-and-forget write.
type WriteInput struct {
	EntityType     string
	EntityID       string
	Actor          string
	ActorRole      domain.Role
	Action         string
	Before         any
	After          any
	Justification  string
	RequestID      string
}

// Log is the append-only audit event writer and reader, grounded on
// the teacher's AlertHistoryRepository.
type Log struct {
	events store.Store[*domain.AuditEvent]
	logger *slog.Logger
}

func New(events store.Store[*domain.AuditEvent], logger *slog.Logger) *Log {
	return &Log{events: events, logger: logger.With("component", "audit")}
}

// WriteEvent computes the field-wise diff between before and after and
// appends the event. Errors are logged, never returned, matching the
// fire-and-forget contract the orchestrator and command layer depend on.
func (l *Log) WriteEvent(ctx context.Context, in WriteInput) {
	event := &domain.AuditEvent{
		Base:           domain.Base{ID: uuid.NewString()},
		EntityTypeName: in.EntityType,
		EntityIDValue:  in.EntityID,
		Actor:          in.Actor,
		ActorRole:      in.ActorRole,
		Action:         in.Action,
		Before:         toMap(in.Before),
		After:          toMap(in.After),
		Diff:           computeDiff(toMap(in.Before), toMap(in.After)),
		Justification:  in.Justification,
		RequestID:      in.RequestID,
		RetainUntil:    time.Now().UTC().Add(retentionPeriod),
	}
	if err := l.events.Put(ctx, event); err != nil {
		l.logger.Error("failed to write audit event", "entity_type", in.EntityType, "entity_id", in.EntityID, "action", in.Action, "error", err)
	}
}

// GetEntityHistory returns events for one entity, descending by time. The
// store has no secondary index keyed by entity id (only by actor, via
// IndexOwner), so this scans the full status index (AuditEvent has no
// status either, making "" the full-table-scan query) and filters locally.
func (l *Log) GetEntityHistory(ctx context.Context, entityID string, from, to time.Time, limit int) ([]*domain.AuditEvent, error) {
	all, err := l.events.QueryByStatus(ctx, "", 0)
	if err != nil {
		return nil, err
	}
	filtered := filterByEntityAndRange(all, entityID, from, to)
	return clampEvents(filtered, limit), nil
}

// GetActorHistory returns events by actor, descending by time.
func (l *Log) GetActorHistory(ctx context.Context, actorID string, from, to time.Time, limit int) ([]*domain.AuditEvent, error) {
	all, err := l.events.QueryByOwner(ctx, actorID, 0)
	if err != nil {
		return nil, err
	}
	filtered := filterByActorAndRange(all, actorID, from, to)
	return clampEvents(filtered, limit), nil
}

// AggregatedStats mirrors the teacher's AggregatedStats, narrowed to what the
// append-only log can compute generically: the event count, counts by action,
// and the number of distinct entities and actors. It carries no
// time-in-status figures.
type AggregatedStats struct {
	EntityType     string           `json:"entityType"`
	From           time.Time        `json:"from"`
	To             time.Time        `json:"to"`
	TotalEvents    int64            `json:"totalEvents"`
	EventsByAction map[string]int64 `json:"eventsByAction"`
	UniqueEntities int64            `json:"uniqueEntities"`
	UniqueActors   int64            `json:"uniqueActors"`
}

// GetAggregatedStats scans every event of entityType in [from, to) and
// tallies counts by action plus distinct entity/actor counts.
func (l *Log) GetAggregatedStats(ctx context.Context, entityType string, from, to time.Time) (*AggregatedStats, error) {
	all, err := l.events.QueryByStatus(ctx, "", 0) // AuditEvent has no status index; full scan is the fallback index.
	if err != nil {
		return nil, err
	}
	stats := &AggregatedStats{
		EntityType:     entityType,
		From:           from,
		To:             to,
		EventsByAction: make(map[string]int64),
	}
	entities := make(map[string]struct{})
	actors := make(map[string]struct{})
	for _, e := range all {
		if e.EntityTypeName != entityType || !inRange(e.CreatedAt, from, to) {
			continue
		}
		stats.TotalEvents++
		stats.EventsByAction[e.Action]++
		entities[e.EntityIDValue] = struct{}{}
		actors[e.Actor] = struct{}{}
	}
	stats.UniqueEntities = int64(len(entities))
	stats.UniqueActors = int64(len(actors))
	return stats, nil
}

// TopActor mirrors the teacher's TopAlert shape, generalized to actors.
type TopActor struct {
	Actor        string    `json:"actor"`
	EventCount   int64     `json:"eventCount"`
	LastActionAt time.Time `json:"lastActionAt"`
}

// GetTopActors returns the most active actors for entityType in [from, to),
// ranked by event count descending, ties broken by actor id ascending.
func (l *Log) GetTopActors(ctx context.Context, entityType string, from, to time.Time, limit int) ([]TopActor, error) {
	all, err := l.events.QueryByStatus(ctx, "", 0)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64)
	lastSeen := make(map[string]time.Time)
	for _, e := range all {
		if e.EntityTypeName != entityType || !inRange(e.CreatedAt, from, to) {
			continue
		}
		counts[e.Actor]++
		if e.CreatedAt.After(lastSeen[e.Actor]) {
			lastSeen[e.Actor] = e.CreatedAt
		}
	}
	top := make([]TopActor, 0, len(counts))
	for actor, count := range counts {
		top = append(top, TopActor{Actor: actor, EventCount: count, LastActionAt: lastSeen[actor]})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].EventCount != top[j].EventCount {
			return top[i].EventCount > top[j].EventCount
		}
		return top[i].Actor < top[j].Actor
	})
	if limit > 0 && len(top) > limit {
		top = top[:limit]
	}
	return top, nil
}

func toMap(v any) map[string]any {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	return m
}

// computeDiff returns the field-wise symmetric difference between before
// and after. A key present in before but absent from after surfaces with
// newValue == nil.
func computeDiff(before, after map[string]any) []domain.FieldDiff {
	seen := make(map[string]struct{})
	diffs := make([]domain.FieldDiff, 0)
	for k, v := range before {
		seen[k] = struct{}{}
		nv, ok := after[k]
		if !ok || !reflect.DeepEqual(v, nv) {
			var newVal any
			if ok {
				newVal = nv
			}
			diffs = append(diffs, domain.FieldDiff{Field: k, OldValue: v, NewValue: newVal})
		}
	}
	for k, v := range after {
		if _, ok := seen[k]; ok {
			continue
		}
		diffs = append(diffs, domain.FieldDiff{Field: k, OldValue: nil, NewValue: v})
	}
	sort.Slice(diffs, func(i, j int) bool { return diffs[i].Field < diffs[j].Field })
	return diffs
}

func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}

func filterByEntityAndRange(events []*domain.AuditEvent, entityID string, from, to time.Time) []*domain.AuditEvent {
	out := make([]*domain.AuditEvent, 0, len(events))
	for _, e := range events {
		if e.EntityIDValue == entityID && inRange(e.CreatedAt, from, to) {
			out = append(out, e)
		}
	}
	return out
}

func filterByActorAndRange(events []*domain.AuditEvent, actorID string, from, to time.Time) []*domain.AuditEvent {
	out := make([]*domain.AuditEvent, 0, len(events))
	for _, e := range events {
		if e.Actor == actorID && inRange(e.CreatedAt, from, to) {
			out = append(out, e)
		}
	}
	return out
}

func clampEvents(events []*domain.AuditEvent, limit int) []*domain.AuditEvent {
	sort.Slice(events, func(i, j int) bool { return events[i].CreatedAt.After(events[j].CreatedAt) })
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events
}
