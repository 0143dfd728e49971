package audit_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surpluscoord/control-plane/internal/audit"
	"github.com/surpluscoord/control-plane/internal/domain"
	"github.com/surpluscoord/control-plane/internal/store/memstore"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newLog() *audit.Log {
	events := memstore.New(testLogger(), func() *domain.AuditEvent { return &domain.AuditEvent{} })
	return audit.New(events, testLogger())
}

func TestWriteEventComputesDiff(t *testing.T) {
	l := newLog()
	ctx := context.Background()

	l.WriteEvent(ctx, audit.WriteInput{
		EntityType: "listing",
		EntityID:   "listing-1",
		Actor:      "user-1",
		ActorRole:  domain.RoleSupplier,
		Action:     "status_changed",
		Before:     map[string]any{"status": "posted", "quantity": 10},
		After:      map[string]any{"status": "matched", "quantity": 10},
	})

	history, err := l.GetEntityHistory(ctx, "listing-1", time.Time{}, time.Time{}, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "status_changed", history[0].Action)
	require.Len(t, history[0].Diff, 1)
	assert.Equal(t, "status", history[0].Diff[0].Field)
	assert.Equal(t, "posted", history[0].Diff[0].OldValue)
	assert.Equal(t, "matched", history[0].Diff[0].NewValue)
}

func TestGetActorHistoryFiltersByActor(t *testing.T) {
	l := newLog()
	ctx := context.Background()

	l.WriteEvent(ctx, audit.WriteInput{EntityType: "listing", EntityID: "l1", Actor: "actor-a", Action: "created"})
	l.WriteEvent(ctx, audit.WriteInput{EntityType: "listing", EntityID: "l2", Actor: "actor-b", Action: "created"})
	l.WriteEvent(ctx, audit.WriteInput{EntityType: "listing", EntityID: "l3", Actor: "actor-a", Action: "updated"})

	history, err := l.GetActorHistory(ctx, "actor-a", time.Time{}, time.Time{}, 10)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestGetAggregatedStatsCountsByAction(t *testing.T) {
	l := newLog()
	ctx := context.Background()

	l.WriteEvent(ctx, audit.WriteInput{EntityType: "listing", EntityID: "l1", Actor: "a", Action: "created"})
	l.WriteEvent(ctx, audit.WriteInput{EntityType: "listing", EntityID: "l2", Actor: "b", Action: "created"})
	l.WriteEvent(ctx, audit.WriteInput{EntityType: "listing", EntityID: "l1", Actor: "a", Action: "matched"})
	l.WriteEvent(ctx, audit.WriteInput{EntityType: "demand", EntityID: "d1", Actor: "c", Action: "created"})

	stats, err := l.GetAggregatedStats(ctx, "listing", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.TotalEvents)
	assert.EqualValues(t, 2, stats.EventsByAction["created"])
	assert.EqualValues(t, 1, stats.EventsByAction["matched"])
	assert.EqualValues(t, 2, stats.UniqueEntities)
	assert.EqualValues(t, 2, stats.UniqueActors)
}

func TestGetTopActorsRanksByCountThenID(t *testing.T) {
	l := newLog()
	ctx := context.Background()

	l.WriteEvent(ctx, audit.WriteInput{EntityType: "listing", EntityID: "l1", Actor: "actor-a", Action: "created"})
	l.WriteEvent(ctx, audit.WriteInput{EntityType: "listing", EntityID: "l2", Actor: "actor-a", Action: "created"})
	l.WriteEvent(ctx, audit.WriteInput{EntityType: "listing", EntityID: "l3", Actor: "actor-b", Action: "created"})

	top, err := l.GetTopActors(ctx, "listing", time.Time{}, time.Time{}, 5)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "actor-a", top[0].Actor)
	assert.EqualValues(t, 2, top[0].EventCount)
}
