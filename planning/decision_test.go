package planning_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/replenishment-engine/planning"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func qty(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func qtyPtr(v int64) *decimal.Decimal {
	d := qty(v)
	return &d
}

func basePolicy(id planning.ItemID) planning.ItemPolicy {
	return planning.ItemPolicy{
		ItemID:       id,
		Name:         "Widget " + string(id),
		MinStock:     qty(100),
		MaxStock:     qty(500),
		SafetyStock:  qty(150),
		LeadTimeDays: 14,
		Active:       true,
	}
}

func position(available, reserved int64) planning.StockPosition {
	return planning.PositionOf(planning.StockSnapshot{
		ItemID:    "SKU-1",
		Available: qty(available),
		Reserved:  qty(reserved),
	})
}

// monthlyForecast returns a forecast whose points start at the month of
// planNow, one per given value.
func monthlyForecast(id planning.ItemID, perMonth ...float64) *planning.ForecastResult {
	return monthlyForecastFrom(id, planNow, perMonth...)
}

func monthlyForecastFrom(id planning.ItemID, first time.Time, perMonth ...float64) *planning.ForecastResult {
	g := planning.GranularityMonth
	start := g.BucketStart(first)
	f := &planning.ForecastResult{
		ID:          "fc-1",
		ItemID:      id,
		Granularity: g,
		SeriesEnd:   g.Key(g.Add(start, -1)),
	}
	for i, v := range perMonth {
		f.Points = append(f.Points, planning.ForecastPoint{
			PeriodOffset:  i + 1,
			Period:        g.Key(g.Add(start, i)),
			PointForecast: v,
			LowerBound:    v,
			UpperBound:    v,
		})
	}
	return f
}

var planNow = time.Date(2025, time.March, 10, 15, 30, 0, 0, time.UTC)

// =============================================================================
// RECOMMEND
// =============================================================================

func TestRecommend_ProjectedBelowMin_ProduceHigh(t *testing.T) {
	// GIVEN: min=100, max=500, safety=150, net available=400
	//        and 350 units of demand over the 90-day horizon
	// WHEN: recommending
	// THEN: projected=50 < min, so PRODUCE/HIGH for max - projected = 450

	policy := basePolicy("SKU-1")
	forecast := monthlyForecast("SKU-1", 100, 120, 130, 999)

	rec, err := planning.Recommend(policy, position(400, 0), forecast, planning.DefaultPlanningConfig(), planNow)
	require.NoError(t, err)

	assert.True(t, rec.ForecastedDemand.Equal(qty(350)), "demand %s", rec.ForecastedDemand)
	assert.True(t, rec.ProjectedStock.Equal(qty(50)), "projected %s", rec.ProjectedStock)
	assert.Equal(t, planning.ActionProduce, rec.Action)
	assert.Equal(t, planning.PriorityHigh, rec.Priority)
	assert.True(t, rec.RecommendedQuantity.Equal(qty(450)), "qty %s", rec.RecommendedQuantity)
	assert.Equal(t, planning.StatusPending, rec.Status)
	assert.Equal(t, planning.ForecastID("fc-1"), rec.ForecastID)
	assert.Equal(t, planNow, rec.GeneratedAt)
	assert.Equal(t, time.Date(2025, time.March, 24, 0, 0, 0, 0, time.UTC), rec.RecommendedDate)
}

func TestRecommend_NegativeProjection_Critical(t *testing.T) {
	policy := basePolicy("SKU-1")
	forecast := monthlyForecast("SKU-1", 200, 200, 200)

	rec, err := planning.Recommend(policy, position(500, 200), forecast, planning.DefaultPlanningConfig(), planNow)
	require.NoError(t, err)

	// net 300 - demand 600 = -300; qty = 300 + safety 150
	assert.True(t, rec.ProjectedStock.Equal(qty(-300)))
	assert.Equal(t, planning.ActionCritical, rec.Action)
	assert.Equal(t, planning.PriorityCritical, rec.Priority)
	assert.True(t, rec.RecommendedQuantity.Equal(qty(450)), "qty %s", rec.RecommendedQuantity)
	assert.True(t, rec.AvailableStock.Equal(qty(300)))
	assert.True(t, rec.ReservedStock.Equal(qty(200)))
}

func TestRecommend_BelowSafety_ProduceMedium(t *testing.T) {
	policy := basePolicy("SKU-1")
	forecast := monthlyForecast("SKU-1", 50, 50, 50)

	// net 270 - 150 = 120: above min (100), below safety (150)
	rec, err := planning.Recommend(policy, position(270, 0), forecast, planning.DefaultPlanningConfig(), planNow)
	require.NoError(t, err)

	assert.Equal(t, planning.ActionProduce, rec.Action)
	assert.Equal(t, planning.PriorityMedium, rec.Priority)
	assert.True(t, rec.RecommendedQuantity.Equal(qty(380)))
}

func TestRecommend_Overstock_Reduce(t *testing.T) {
	policy := basePolicy("SKU-1")
	forecast := monthlyForecast("SKU-1", 10, 10, 10)

	rec, err := planning.Recommend(policy, position(800, 100), forecast, planning.DefaultPlanningConfig(), planNow)
	require.NoError(t, err)

	assert.Equal(t, planning.ActionReduce, rec.Action)
	assert.Equal(t, planning.PriorityLow, rec.Priority)
	assert.True(t, rec.RecommendedQuantity.IsZero())
	assert.Contains(t, rec.Reason, "300")
}

func TestRecommend_WithinLimits_Hold(t *testing.T) {
	policy := basePolicy("SKU-1")
	forecast := monthlyForecast("SKU-1", 30, 30, 30)

	rec, err := planning.Recommend(policy, position(400, 0), forecast, planning.DefaultPlanningConfig(), planNow)
	require.NoError(t, err)

	assert.Equal(t, planning.ActionHold, rec.Action)
	assert.Equal(t, planning.PriorityLow, rec.Priority)
	assert.True(t, rec.RecommendedQuantity.IsZero())
}

func TestRecommend_NoForecast_ZeroDemand(t *testing.T) {
	// GIVEN: an item with no forecast at all
	// THEN: it is planned from stock alone

	rec, err := planning.Recommend(basePolicy("SKU-1"), position(60, 0), nil, planning.DefaultPlanningConfig(), planNow)
	require.NoError(t, err)

	assert.True(t, rec.ForecastedDemand.IsZero())
	assert.True(t, rec.ProjectedStock.Equal(qty(60)))
	assert.Equal(t, planning.ActionProduce, rec.Action)
	assert.Equal(t, planning.PriorityHigh, rec.Priority)
	assert.Empty(t, rec.ForecastID)
}

func TestRecommend_ReorderPointTakesPrecedence(t *testing.T) {
	tests := []struct {
		name         string
		reorderPoint int64
		available    int64
		wantAction   planning.Action
		wantPriority planning.Priority
	}{
		// projected 90 is below min 100, but reorder point 80 governs: MEDIUM via safety
		{"below min above reorder point", 80, 90, planning.ActionProduce, planning.PriorityMedium},
		// projected equals reorder point: HIGH
		{"at reorder point", 200, 200, planning.ActionProduce, planning.PriorityHigh},
		// projected above min but at or below a higher reorder point: HIGH
		{"above min below reorder point", 250, 240, planning.ActionProduce, planning.PriorityHigh},
		{"above reorder point and safety", 120, 300, planning.ActionHold, planning.PriorityLow},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			policy := basePolicy("SKU-1")
			policy.ReorderPoint = qtyPtr(tc.reorderPoint)

			rec, err := planning.Recommend(policy, position(tc.available, 0), nil, planning.DefaultPlanningConfig(), planNow)
			require.NoError(t, err)
			assert.Equal(t, tc.wantAction, rec.Action)
			assert.Equal(t, tc.wantPriority, rec.Priority)
		})
	}
}

func TestRecommend_InTransitNotCounted(t *testing.T) {
	pos := planning.PositionOf(planning.StockSnapshot{
		ItemID:    "SKU-1",
		Available: qty(50),
		InTransit: qty(1000),
	})

	rec, err := planning.Recommend(basePolicy("SKU-1"), pos, nil, planning.DefaultPlanningConfig(), planNow)
	require.NoError(t, err)

	assert.True(t, rec.AvailableStock.Equal(qty(50)))
	assert.True(t, rec.InTransitStock.Equal(qty(1000)))
	assert.Equal(t, planning.PriorityHigh, rec.Priority)
}

func TestRecommend_NegativeNetAvailable_PassesThrough(t *testing.T) {
	rec, err := planning.Recommend(basePolicy("SKU-1"), position(10, 40), nil, planning.DefaultPlanningConfig(), planNow)
	require.NoError(t, err)

	assert.True(t, rec.ProjectedStock.Equal(qty(-30)))
	assert.Equal(t, planning.ActionCritical, rec.Action)
	assert.True(t, rec.RecommendedQuantity.Equal(qty(180)))
}

func TestRecommend_HorizonSelectsPeriods(t *testing.T) {
	forecast := monthlyForecast("SKU-1", 10, 20, 40, 80)

	tests := []struct {
		days int
		want int64
	}{
		{1, 10},
		{30, 10},
		{31, 30},
		{90, 70},
		{365, 150},
	}
	for _, tc := range tests {
		cfg := planning.PlanningConfig{HorizonDays: tc.days, Workers: 1}
		rec, err := planning.Recommend(basePolicy("SKU-1"), position(1000, 0), forecast, cfg, planNow)
		require.NoError(t, err)
		assert.True(t, rec.ForecastedDemand.Equal(qty(tc.want)), "days=%d demand=%s", tc.days, rec.ForecastedDemand)
	}
}

func TestRecommend_StaleForecastIgnoresPastPeriods(t *testing.T) {
	// GIVEN: A forecast for Jan..Jun 2026 at 100/month, 400 units net available
	// WHEN: Planning on 2026-10-17 with the default 90-day horizon
	// THEN: Every point is in the past, so demand is 0 and the item holds

	now := time.Date(2026, time.October, 17, 9, 0, 0, 0, time.UTC)
	forecast := monthlyForecastFrom("SKU-1", time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
		100, 100, 100, 100, 100, 100)

	rec, err := planning.Recommend(basePolicy("SKU-1"), position(400, 0), forecast, planning.DefaultPlanningConfig(), now)
	require.NoError(t, err)

	assert.True(t, rec.ForecastedDemand.IsZero(), "demand %s", rec.ForecastedDemand)
	assert.True(t, rec.ProjectedStock.Equal(qty(400)))
	assert.Equal(t, planning.ActionHold, rec.Action)
	assert.Equal(t, planning.PriorityLow, rec.Priority)
	assert.Equal(t, planning.ForecastID("fc-1"), rec.ForecastID)
}

func TestRecommend_LaggingForecastSumsRemainingPeriods(t *testing.T) {
	// GIVEN: A forecast starting in January while planning in March
	// THEN: Only March, April and May count toward the 90-day horizon

	forecast := monthlyForecastFrom("SKU-1", time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		10, 20, 40, 80, 160, 320)

	rec, err := planning.Recommend(basePolicy("SKU-1"), position(1000, 0), forecast, planning.DefaultPlanningConfig(), planNow)
	require.NoError(t, err)
	assert.True(t, rec.ForecastedDemand.Equal(qty(280)), "demand %s", rec.ForecastedDemand)
}

func TestForecastResult_DemandOver(t *testing.T) {
	f := monthlyForecastFrom("SKU-1", planNow, 100, 120, 130, 500)
	f.Points = append(f.Points, planning.ForecastPoint{PeriodOffset: 5, Period: "not-a-month", PointForecast: 1000})

	assert.Equal(t, 0.0, f.DemandOver(planNow, 0))
	assert.Equal(t, 350.0, f.DemandOver(planNow, 3))
	assert.Equal(t, 850.0, f.DemandOver(planNow, 10))
	assert.Equal(t, 630.0, f.DemandOver(planNow.AddDate(0, 2, 0), 3), "window starts at the month of from")
	assert.Equal(t, 0.0, f.DemandOver(planNow.AddDate(1, 0, 0), 3))

	weekly := planning.ForecastResult{Granularity: planning.GranularityWeek, Points: []planning.ForecastPoint{
		{PeriodOffset: 1, Period: "2025-W10", PointForecast: 7},
		{PeriodOffset: 2, Period: "2025-W11", PointForecast: 9},
		{PeriodOffset: 3, Period: "2025-W12", PointForecast: 11},
	}}
	// planNow (Mon 2025-03-10) falls in ISO week 11.
	assert.Equal(t, 20.0, weekly.DemandOver(planNow, 2))
}

func TestRecommend_RejectsBadInput(t *testing.T) {
	t.Run("max below min", func(t *testing.T) {
		policy := basePolicy("SKU-1")
		policy.MaxStock = qty(50)
		_, err := planning.Recommend(policy, position(10, 0), nil, planning.DefaultPlanningConfig(), planNow)
		assert.ErrorIs(t, err, planning.ErrValidation)
	})

	t.Run("negative safety stock", func(t *testing.T) {
		policy := basePolicy("SKU-1")
		policy.SafetyStock = qty(-1)
		_, err := planning.Recommend(policy, position(10, 0), nil, planning.DefaultPlanningConfig(), planNow)
		assert.ErrorIs(t, err, planning.ErrValidation)
	})

	t.Run("forecast for another item", func(t *testing.T) {
		_, err := planning.Recommend(basePolicy("SKU-1"), position(10, 0), monthlyForecast("SKU-2", 1), planning.DefaultPlanningConfig(), planNow)
		assert.ErrorIs(t, err, planning.ErrValidation)
	})

	t.Run("zero horizon", func(t *testing.T) {
		_, err := planning.Recommend(basePolicy("SKU-1"), position(10, 0), nil, planning.PlanningConfig{}, planNow)
		assert.ErrorIs(t, err, planning.ErrValidation)
	})
}

// =============================================================================
// DECIDE
// =============================================================================

func TestDecide_QuantityNeverNegative(t *testing.T) {
	policy := basePolicy("SKU-1")
	for _, projected := range []int64{-1000, -1, 0, 1, 99, 100, 149, 150, 499, 500, 501, 10000} {
		d := planning.Decide(policy, position(projected, 0), qty(projected))
		assert.False(t, d.Quantity.IsNegative(), "projected=%d", projected)
		assert.NotEmpty(t, d.Reason)
	}
}

func TestDecide_FractionalQuantityRounded(t *testing.T) {
	d := planning.Decide(basePolicy("SKU-1"), position(0, 0), decimal.RequireFromString("-10.5"))

	assert.Equal(t, planning.ActionCritical, d.Action)
	assert.Equal(t, "161", d.Quantity.String())
}

func TestStockPosition_ReportedNetAvailable(t *testing.T) {
	assert.True(t, position(10, 40).ReportedNetAvailable().IsZero())
	assert.True(t, position(40, 10).ReportedNetAvailable().Equal(qty(30)))
}
