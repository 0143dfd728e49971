package compliance_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surpluscoord/control-plane/internal/compliance"
	"github.com/surpluscoord/control-plane/internal/domain"
)

func baseListing() *domain.SurplusListing {
	now := time.Now().UTC()
	return &domain.SurplusListing{
		Quantity: 10,
		PickupWindow: domain.TimeWindow{
			Start: now.Add(time.Hour),
			End:   now.Add(3 * time.Hour),
		},
		QualityNotes: "fresh and sealed",
	}
}

func baseDemand() *domain.DemandPost {
	return &domain.DemandPost{Capacity: 100}
}

func TestEvaluatePassesCleanPair(t *testing.T) {
	engine := compliance.New(compliance.DefaultThresholds())
	eval := engine.Evaluate(baseListing(), baseDemand(), 10)
	assert.True(t, eval.Passed)
	assert.Empty(t, eval.BlockedBy)
}

func TestRefrigerationBlocksWhenWindowTooLongAndNoToken(t *testing.T) {
	listing := baseListing()
	listing.Handling.RequiresRefrigeration = true
	listing.PickupWindow.End = listing.PickupWindow.Start.Add(5 * time.Hour)

	engine := compliance.New(compliance.DefaultThresholds())
	eval := engine.Evaluate(listing, baseDemand(), 10)
	assert.False(t, eval.Passed)
	assert.Contains(t, eval.BlockedBy, compliance.RuleRefrigeration)
}

func TestRefrigerationPassesWithTokenAndShortWindow(t *testing.T) {
	listing := baseListing()
	listing.Handling.RequiresRefrigeration = true
	listing.Handling.HandlingRequirements = []string{"refrigerated_transport"}
	listing.PickupWindow.End = listing.PickupWindow.Start.Add(time.Hour)

	engine := compliance.New(compliance.DefaultThresholds())
	eval := engine.Evaluate(listing, baseDemand(), 10)
	assert.True(t, eval.Passed)
}

func TestExpirationBlocksWhenTooSoon(t *testing.T) {
	listing := baseListing()
	soon := time.Now().UTC().Add(time.Hour)
	listing.ExpirationDate = &soon

	engine := compliance.New(compliance.DefaultThresholds())
	eval := engine.Evaluate(listing, baseDemand(), 10)
	assert.False(t, eval.Passed)
	assert.Contains(t, eval.BlockedBy, compliance.RuleExpiration)
}

func TestQualityNotesBlocksOnKeyword(t *testing.T) {
	listing := baseListing()
	listing.QualityNotes = "some items look moldy"

	engine := compliance.New(compliance.DefaultThresholds())
	eval := engine.Evaluate(listing, baseDemand(), 10)
	assert.False(t, eval.Passed)
	assert.Contains(t, eval.BlockedBy, compliance.RuleQualityNotes)
}

func TestPickupWindowBlocksWhenAlreadyStarted(t *testing.T) {
	listing := baseListing()
	listing.PickupWindow.Start = time.Now().UTC().Add(-time.Hour)
	listing.PickupWindow.End = listing.PickupWindow.Start.Add(2 * time.Hour)

	engine := compliance.New(compliance.DefaultThresholds())
	eval := engine.Evaluate(listing, baseDemand(), 10)
	assert.False(t, eval.Passed)
	assert.Contains(t, eval.BlockedBy, compliance.RulePickupWindow)
}

func TestCapacityBlocksWhenQuantityExceedsCapacity(t *testing.T) {
	listing := baseListing()
	listing.Quantity = 200

	engine := compliance.New(compliance.DefaultThresholds())
	eval := engine.Evaluate(listing, baseDemand(), 10)
	assert.False(t, eval.Passed)
	assert.Contains(t, eval.BlockedBy, compliance.RuleCapacity)
}

func TestCapacityWarnsBelowUtilizationThresholdWithoutBlocking(t *testing.T) {
	listing := baseListing()
	listing.Quantity = 5
	demand := &domain.DemandPost{Capacity: 100}

	engine := compliance.New(compliance.DefaultThresholds())
	eval := engine.Evaluate(listing, demand, 10)
	assert.True(t, eval.Passed)

	var capacityCheck *domain.CheckResult
	for i := range eval.Checks {
		if eval.Checks[i].RuleID == compliance.RuleCapacity {
			capacityCheck = &eval.Checks[i]
		}
	}
	require.NotNil(t, capacityCheck)
	assert.Equal(t, domain.SeverityWarning, capacityCheck.Severity)
}

func TestDistanceWarnsWithoutBlockingWhenOverLimit(t *testing.T) {
	engine := compliance.New(compliance.DefaultThresholds())
	eval := engine.Evaluate(baseListing(), baseDemand(), 500)
	assert.True(t, eval.Passed)

	var distanceCheck *domain.CheckResult
	for i := range eval.Checks {
		if eval.Checks[i].RuleID == compliance.RuleDistance {
			distanceCheck = &eval.Checks[i]
		}
	}
	require.NotNil(t, distanceCheck)
	assert.Equal(t, domain.SeverityWarning, distanceCheck.Severity)
}

func TestDistanceSkippedWhenNegative(t *testing.T) {
	engine := compliance.New(compliance.DefaultThresholds())
	eval := engine.Evaluate(baseListing(), baseDemand(), -1)
	for _, c := range eval.Checks {
		assert.NotEqual(t, compliance.RuleDistance, c.RuleID)
	}
}

func TestApproveOverrideForcesPassAndAnnotates(t *testing.T) {
	listing := baseListing()
	listing.Quantity = 200
	engine := compliance.New(compliance.DefaultThresholds())
	eval := engine.Evaluate(listing, baseDemand(), 10)
	require.False(t, eval.Passed)

	overridden := compliance.ApproveOverride(eval, "operator-1", "manual approval, supplier confirmed split shipment")
	assert.True(t, overridden.Passed)
	for _, c := range overridden.Checks {
		if c.RuleID == compliance.RuleCapacity {
			assert.True(t, c.Overridden)
			assert.Contains(t, c.Message, "operator-1")
		}
	}
}
