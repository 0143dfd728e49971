package memstore_test

import (
	"context"
	"log/slog"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surpluscoord/control-plane/internal/domain"
	"github.com/surpluscoord/control-plane/internal/store"
	"github.com/surpluscoord/control-plane/internal/store/memstore"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newListingStore() *memstore.Store[*domain.SurplusListing] {
	return memstore.New(testLogger(), func() *domain.SurplusListing { return &domain.SurplusListing{} })
}

func TestPutInsertAndVersionIncrement(t *testing.T) {
	s := newListingStore()
	ctx := context.Background()

	listing := &domain.SurplusListing{
		Base:     domain.Base{ID: uuid.NewString()},
		Status:   domain.StatusPosted,
		SupplierID: "supplier-1",
	}

	require.NoError(t, s.Put(ctx, listing))
	assert.Equal(t, 1, listing.Version)

	fetched, err := s.GetOrFail(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, fetched.Version)
	assert.False(t, fetched.CreatedAt.IsZero())
}

func TestPutConflictOnStaleVersion(t *testing.T) {
	s := newListingStore()
	ctx := context.Background()

	listing := &domain.SurplusListing{Base: domain.Base{ID: uuid.NewString()}, Status: domain.StatusPosted}
	require.NoError(t, s.Put(ctx, listing))

	stale := &domain.SurplusListing{Base: domain.Base{ID: listing.ID, Version: 1}, Status: domain.StatusCanceled}
	require.NoError(t, s.Put(ctx, stale))
	assert.Equal(t, 2, stale.Version)

	staleRetry := &domain.SurplusListing{Base: domain.Base{ID: listing.ID, Version: 1}, Status: domain.StatusExpired}
	err := s.Put(ctx, staleRetry)
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestPutConflictOnDuplicateInsert(t *testing.T) {
	s := newListingStore()
	ctx := context.Background()
	id := uuid.NewString()

	first := &domain.SurplusListing{Base: domain.Base{ID: id}}
	require.NoError(t, s.Put(ctx, first))

	second := &domain.SurplusListing{Base: domain.Base{ID: id}}
	err := s.Put(ctx, second)
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestGetOrFailNotFound(t *testing.T) {
	s := newListingStore()
	_, err := s.GetOrFail(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdateFieldsMergesAndVersions(t *testing.T) {
	s := newListingStore()
	ctx := context.Background()

	listing := &domain.SurplusListing{Base: domain.Base{ID: uuid.NewString()}, Status: domain.StatusPosted, QualityNotes: "fresh"}
	require.NoError(t, s.Put(ctx, listing))

	updated, err := s.UpdateFields(ctx, listing.ID, 1, func(l *domain.SurplusListing) {
		l.Status = domain.StatusMatched
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusMatched, updated.Status)
	assert.Equal(t, "fresh", updated.QualityNotes)
	assert.Equal(t, 2, updated.Version)

	_, err = s.UpdateFields(ctx, listing.ID, 1, func(l *domain.SurplusListing) {})
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestQueryByStatusOwnerAndGeohashPrefix(t *testing.T) {
	s := newListingStore()
	ctx := context.Background()

	a := &domain.SurplusListing{Base: domain.Base{ID: uuid.NewString()}, Status: domain.StatusPosted, SupplierID: "s1", Geohash: "9q8yy"}
	b := &domain.SurplusListing{Base: domain.Base{ID: uuid.NewString()}, Status: domain.StatusMatched, SupplierID: "s1", Geohash: "9q8zz"}
	c := &domain.SurplusListing{Base: domain.Base{ID: uuid.NewString()}, Status: domain.StatusPosted, SupplierID: "s2", Geohash: "dr5rt"}

	for _, l := range []*domain.SurplusListing{a, b, c} {
		require.NoError(t, s.Put(ctx, l))
	}

	byStatus, err := s.QueryByStatus(ctx, domain.StatusPosted, 10)
	require.NoError(t, err)
	assert.Len(t, byStatus, 2)

	byOwner, err := s.QueryByOwner(ctx, "s1", 10)
	require.NoError(t, err)
	assert.Len(t, byOwner, 2)

	byGeohash, err := s.QueryByGeohashPrefix(ctx, "9q8", 10)
	require.NoError(t, err)
	assert.Len(t, byGeohash, 2)
}

func TestBatchGetBestEffort(t *testing.T) {
	s := newListingStore()
	ctx := context.Background()

	a := &domain.SurplusListing{Base: domain.Base{ID: uuid.NewString()}}
	require.NoError(t, s.Put(ctx, a))

	results, err := s.BatchGet(ctx, []string{a.ID, "missing-id"})
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestCloneIsolatesCallerFromStoredState(t *testing.T) {
	s := newListingStore()
	ctx := context.Background()

	listing := &domain.SurplusListing{Base: domain.Base{ID: uuid.NewString()}, Handling: domain.HandlingFlags{HandlingRequirements: []string{"fragile"}}}
	require.NoError(t, s.Put(ctx, listing))

	fetched, err := s.GetOrFail(ctx, listing.ID)
	require.NoError(t, err)
	fetched.Handling.HandlingRequirements[0] = "mutated"

	refetched, err := s.GetOrFail(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, "fragile", refetched.Handling.HandlingRequirements[0])
}
