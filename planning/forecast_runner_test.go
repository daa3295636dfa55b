package planning_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/replenishment-engine/planning"
	"github.com/warp/replenishment-engine/planning/store"
)

var runnerNow = time.Date(2025, time.June, 15, 9, 0, 0, 0, time.UTC)

// seedMonthlyDemand records one fulfilled event per month for the given
// number of months ending the month before runnerNow.
func seedMonthlyDemand(t *testing.T, mem *store.Memory, id planning.ItemID, months int, values []float64) {
	t.Helper()
	g := planning.GranularityMonth
	end := g.BucketStart(runnerNow)
	for i := 0; i < months; i++ {
		start := g.Add(end, -(months - i))
		require.NoError(t, mem.AddDemandEvents(context.Background(), planning.DemandEvent{
			ItemID:    id,
			At:        start.Add(36 * time.Hour),
			Quantity:  values[i%len(values)],
			Fulfilled: true,
		}))
	}
}

func newTestRunner(mem *store.Memory) *planning.ForecastRunner {
	r := planning.NewForecastRunner(mem, mem, mem, planning.DefaultForecastSettings())
	r.Now = func() time.Time { return runnerNow }
	r.NewID = func() planning.ForecastID { return "fc-test" }
	r.Workers = 2
	return r
}

func TestForecastRunner_Run(t *testing.T) {
	// GIVEN: SKU-1 with 30 months of history, SKU-2 with only 6
	// WHEN: running the forecaster
	// THEN: SKU-1 gets a stored forecast; SKU-2 is reported as a failure

	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.PutItem(ctx, basePolicy("SKU-1")))
	require.NoError(t, mem.PutItem(ctx, basePolicy("SKU-2")))
	seedMonthlyDemand(t, mem, "SKU-1", 30, seasonalValues(12, 100, 0, 30))
	seedMonthlyDemand(t, mem, "SKU-2", 6, []float64{10})

	result, err := newTestRunner(mem).Run(ctx)
	require.NoError(t, err)

	require.Len(t, result.Forecasts, 1)
	f := result.Forecasts[0]
	assert.Equal(t, planning.ItemID("SKU-1"), f.ItemID)
	assert.Equal(t, planning.ForecastID("fc-test"), f.ID)
	assert.Equal(t, runnerNow, f.GeneratedAt)
	assert.Equal(t, "2025-05", f.SeriesEnd)
	assert.Equal(t, 30, f.Observations)
	require.Len(t, f.Points, 6)
	assert.Equal(t, "2025-06", f.Points[0].Period)

	require.Len(t, result.Failures, 1)
	assert.Equal(t, planning.ItemID("SKU-2"), result.Failures[0].ItemID)
	assert.ErrorIs(t, result.Failures[0].Err, planning.ErrInsufficientHistory)

	stored, err := mem.LatestForecast(ctx, "SKU-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, f.Points, stored.Points)

	missing, err := mem.LatestForecast(ctx, "SKU-2")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestForecastRunner_Series_ExcludesCurrentMonthAndPads(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.PutItem(ctx, basePolicy("SKU-1")))
	require.NoError(t, mem.AddDemandEvents(ctx,
		planning.DemandEvent{ItemID: "SKU-1", At: time.Date(2025, time.February, 10, 0, 0, 0, 0, time.UTC), Quantity: 4, Fulfilled: true},
		planning.DemandEvent{ItemID: "SKU-1", At: time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC), Quantity: 99, Fulfilled: true},
	))

	series, err := newTestRunner(mem).Series(ctx, "SKU-1", runnerNow)
	require.NoError(t, err)

	// February .. May; the in-progress June bucket is not history yet.
	assert.Equal(t, []float64{4, 0, 0, 0}, series.Values())
	assert.Equal(t, "2025-05", series[3].Period)
}

func TestForecastRunner_ForecastItem_UnknownItem(t *testing.T) {
	_, err := newTestRunner(store.NewMemory()).ForecastItem(context.Background(), "nope")
	assert.True(t, planning.IsNotFound(err))
}

func TestForecastThenPlan(t *testing.T) {
	// GIVEN: steady demand of ~100/month and 150 units on hand
	// WHEN: forecasting then planning
	// THEN: the planner sees ~300 units of demand and raises a CRITICAL action

	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.PutItem(ctx, basePolicy("SKU-1")))
	require.NoError(t, mem.PutStock(ctx, planning.StockSnapshot{ItemID: "SKU-1", Available: qty(150)}))
	seedMonthlyDemand(t, mem, "SKU-1", 24, []float64{100})

	_, err := newTestRunner(mem).Run(ctx)
	require.NoError(t, err)

	engine := newTestEngine(mem)
	rec, err := engine.PlanItem(ctx, "SKU-1")
	require.NoError(t, err)

	assert.Equal(t, planning.ForecastID("fc-test"), rec.ForecastID)
	assert.True(t, rec.ForecastedDemand.Equal(qty(300)), "demand %s", rec.ForecastedDemand)
	assert.Equal(t, planning.ActionCritical, rec.Action)
}

func TestForecastSettings_Validate(t *testing.T) {
	s := planning.DefaultForecastSettings()
	require.NoError(t, s.Validate())

	s.LookbackPeriods = 12
	assert.ErrorIs(t, s.Validate(), planning.ErrValidation)

	s = planning.DefaultForecastSettings()
	s.Granularity = "quarter"
	assert.ErrorIs(t, s.Validate(), planning.ErrValidation)
}

func TestForecastSettings_HistoryWindow(t *testing.T) {
	s := planning.DefaultForecastSettings()
	from, to := s.HistoryWindow(runnerNow)

	assert.Equal(t, time.Date(2022, time.June, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC), to)
}
