package commands_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surpluscoord/control-plane/internal/audit"
	"github.com/surpluscoord/control-plane/internal/commands"
	"github.com/surpluscoord/control-plane/internal/compliance"
	"github.com/surpluscoord/control-plane/internal/domain"
	"github.com/surpluscoord/control-plane/internal/eventbus"
	"github.com/surpluscoord/control-plane/internal/matching"
	"github.com/surpluscoord/control-plane/internal/statemachine"
	"github.com/surpluscoord/control-plane/internal/store/storeset"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestService(t *testing.T) *commands.Service {
	t.Helper()
	logger := testLogger()
	stores := storeset.NewMemory(logger)
	bus := eventbus.New(logger)
	auditLog := audit.New(stores.Events, logger)
	transitions, err := statemachine.Default()
	require.NoError(t, err)

	return commands.New(
		stores,
		transitions,
		auditLog,
		bus,
		compliance.New(compliance.DefaultThresholds()),
		matching.New(matching.DefaultConfig()),
		nil,
		logger,
	)
}

func supplierActor() commands.Actor {
	return commands.Actor{UserID: "supplier-1", Roles: []domain.Role{domain.RoleSupplier}, RequestID: "req-1"}
}

func recipientActor() commands.Actor {
	return commands.Actor{UserID: "recipient-1", Roles: []domain.Role{domain.RoleRecipient}, RequestID: "req-2"}
}

func operatorActor() commands.Actor {
	return commands.Actor{UserID: "operator-1", Roles: []domain.Role{domain.RoleOperator}, RequestID: "req-3"}
}

func validWindow() domain.TimeWindow {
	start := time.Now().Add(time.Hour)
	return domain.TimeWindow{Start: start, End: start.Add(2 * time.Hour)}
}

func TestCreateListingPersistsAndReturnsEntity(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	listing, err := svc.CreateListing(ctx, supplierActor(), commands.CreateListingInput{
		Title:        "Surplus bread",
		Category:     domain.CategoryNonPerishableFood,
		Quantity:     50,
		Unit:         "loaves",
		Address:      "1 Market St",
		PickupWindow: validWindow(),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, listing.ID)
	assert.Equal(t, domain.StatusPosted, listing.Status)
	assert.Equal(t, "supplier-1", listing.SupplierID)

	fetched, err := svc.GetListing(ctx, supplierActor(), listing.ID)
	require.NoError(t, err)
	assert.Equal(t, listing.ID, fetched.ID)
}

func TestCreateListingRejectsWrongRole(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.CreateListing(context.Background(), recipientActor(), commands.CreateListingInput{
		Title:        "Surplus bread",
		Category:     domain.CategoryNonPerishableFood,
		Quantity:     10,
		Unit:         "loaves",
		Address:      "1 Market St",
		PickupWindow: validWindow(),
	})
	require.Error(t, err)
}

func TestUpdateListingAppliesPartialMergeAndChecksVersion(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	actor := supplierActor()

	listing, err := svc.CreateListing(ctx, actor, commands.CreateListingInput{
		Title:        "Surplus bread",
		Category:     domain.CategoryNonPerishableFood,
		Quantity:     50,
		Unit:         "loaves",
		Address:      "1 Market St",
		PickupWindow: validWindow(),
	})
	require.NoError(t, err)

	updated, err := svc.UpdateListing(ctx, actor, listing.ID, listing.Version, map[string]any{"title": "Day-old bread"})
	require.NoError(t, err)
	assert.Equal(t, "Day-old bread", updated.Title)
	assert.Equal(t, domain.CategoryNonPerishableFood, updated.Category)

	_, err = svc.UpdateListing(ctx, actor, listing.ID, listing.Version, map[string]any{"title": "stale version"})
	assert.Error(t, err)
}

func TestCancelListingRequiresJustification(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	actor := supplierActor()

	listing, err := svc.CreateListing(ctx, actor, commands.CreateListingInput{
		Title:        "Surplus bread",
		Category:     domain.CategoryNonPerishableFood,
		Quantity:     50,
		Unit:         "loaves",
		Address:      "1 Market St",
		PickupWindow: validWindow(),
	})
	require.NoError(t, err)

	_, err = svc.CancelListing(ctx, actor, listing.ID, listing.Version, "")
	assert.Error(t, err)

	canceled, err := svc.CancelListing(ctx, actor, listing.ID, listing.Version, "spoiled before pickup")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCanceled, canceled.Status)
}

func TestCreateDemandAndCloseDemand(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	actor := recipientActor()

	demand, err := svc.CreateDemand(ctx, actor, commands.CreateDemandInput{
		Categories:       []domain.Category{domain.CategoryNonPerishableFood},
		QuantityNeeded:   20,
		Capacity:         100,
		Address:          "2 Relief Ave",
		AcceptanceWindow: validWindow(),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPosted, demand.Status)

	closed, err := svc.CloseDemand(ctx, actor, demand.ID, demand.Version, "need fulfilled elsewhere")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusClosed, closed.Status)
}

func TestUpdateProfileClearsExplicitNullField(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	profile := &domain.UserProfile{
		Base:    domain.Base{ID: "user-1"},
		Email:   "user@example.com",
		Name:    "Jordan Lee",
		Address: "10 Warehouse Rd",
		Roles:   []domain.Role{domain.RoleSupplier},
	}
	require.NoError(t, svc.Stores.Users.Put(ctx, profile))

	actor := commands.Actor{UserID: "user-1", Roles: []domain.Role{domain.RoleSupplier}, RequestID: "req-4"}
	updated, err := svc.UpdateProfile(ctx, actor, "user-1", profile.Version, map[string]any{"address": nil})
	require.NoError(t, err)
	assert.Empty(t, updated.Address)
	assert.Equal(t, "user@example.com", updated.Email)
}

func TestScheduleMatchIsIdempotentOnMatchAndKey(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	op := operatorActor()

	match := &domain.MatchRecommendation{
		Base:             domain.Base{ID: "match-1"},
		ListingID:        "listing-1",
		DemandID:         "demand-1",
		Status:           domain.StatusMatched,
		ComplianceStatus: domain.ComplianceStatusPassed,
	}
	require.NoError(t, svc.Stores.Matches.Put(ctx, match))

	task1, err := svc.ScheduleMatch(ctx, op, match.ID, commands.ScheduleMatchInput{
		DriverID:       "driver-1",
		IdempotencyKey: "key-abc",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusScheduled, task1.Status)

	task2, err := svc.ScheduleMatch(ctx, op, match.ID, commands.ScheduleMatchInput{
		DriverID:       "driver-1",
		IdempotencyKey: "key-abc",
	})
	require.NoError(t, err)
	assert.Equal(t, task1.ID, task2.ID)

	count, err := svc.Stores.Tasks.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestScheduleMatchBlockedByCompliance(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	op := operatorActor()

	match := &domain.MatchRecommendation{
		Base:             domain.Base{ID: "match-2"},
		ListingID:        "listing-2",
		DemandID:         "demand-2",
		Status:           domain.StatusMatched,
		ComplianceStatus: domain.ComplianceStatusBlocked,
	}
	require.NoError(t, svc.Stores.Matches.Put(ctx, match))

	_, err := svc.ScheduleMatch(ctx, op, match.ID, commands.ScheduleMatchInput{
		DriverID:       "driver-1",
		IdempotencyKey: "key-xyz",
	})
	assert.Error(t, err)
}

func TestApproveMatchOverridesBlockedCompliance(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	match := &domain.MatchRecommendation{
		Base:             domain.Base{ID: "match-3"},
		ListingID:        "listing-3",
		DemandID:         "demand-3",
		Status:           domain.StatusMatched,
		ComplianceStatus: domain.ComplianceStatusBlocked,
		ComplianceChecks: []domain.CheckResult{{RuleID: "refrigeration", Passed: false, Severity: domain.SeverityError}},
	}
	require.NoError(t, svc.Stores.Matches.Put(ctx, match))

	complianceActor := commands.Actor{UserID: "compliance-1", Roles: []domain.Role{domain.RoleCompliance}, RequestID: "req-5"}
	approved, err := svc.ApproveMatch(ctx, complianceActor, match.ID, match.Version, "manual inspection passed")
	require.NoError(t, err)
	assert.Equal(t, domain.ComplianceStatusPassed, approved.ComplianceStatus)
	assert.True(t, approved.ComplianceChecks[0].Overridden)
}

func TestUpdateTaskStatusFollowsLifecycleTable(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	task := &domain.DeliveryTask{
		Base:           domain.Base{ID: "task-1"},
		MatchID:        "match-4",
		ListingID:      "listing-4",
		DemandID:       "demand-4",
		DriverID:       "driver-2",
		IdempotencyKey: "key-task-1",
		Status:         domain.StatusScheduled,
	}
	require.NoError(t, svc.Stores.Tasks.Put(ctx, task))

	driverActor := commands.Actor{UserID: "driver-2", Roles: []domain.Role{domain.RoleDriver}, RequestID: "req-6"}
	updated, err := svc.UpdateTaskStatus(ctx, driverActor, task.ID, task.Version, domain.StatusPickedUp, "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPickedUp, updated.Status)
	assert.NotNil(t, updated.ActualPickupAt)

	_, err = svc.UpdateTaskStatus(ctx, driverActor, task.ID, updated.Version, domain.StatusScheduled, "")
	assert.Error(t, err)
}

func TestOpsStuckTasksRequiresOperatorRole(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.OpsStuckTasks(context.Background(), supplierActor())
	assert.Error(t, err)

	_, err = svc.OpsStuckTasks(context.Background(), operatorActor())
	assert.NoError(t, err)
}
