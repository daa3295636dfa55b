package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/replenishment-engine/planning"
	"github.com/warp/replenishment-engine/planning/store"
)

var t0 = time.Date(2025, time.March, 10, 8, 0, 0, 0, time.UTC)

func TestMemory_LatestForecastIsACopy(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()

	// GIVEN: A saved forecast
	require.NoError(t, mem.SaveForecast(ctx, planning.ForecastResult{
		ID: "f1", ItemID: "A", Granularity: planning.GranularityMonth, GeneratedAt: t0,
		Points: []planning.ForecastPoint{{PeriodOffset: 1, Period: "2025-03", PointForecast: 10}},
	}))

	// WHEN: A reader writes into the returned points
	got, err := mem.LatestForecast(ctx, "A")
	require.NoError(t, err)
	require.NotNil(t, got)
	got.Points[0].PointForecast = 9999

	// THEN: The stored forecast is unchanged
	again, err := mem.LatestForecast(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, 10.0, again.Points[0].PointForecast)
}

func TestMemory_AddDemandEventsKeepsOrder(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()

	// GIVEN: Two batches for two items, each out of order
	require.NoError(t, mem.AddDemandEvents(ctx,
		planning.DemandEvent{ItemID: "A", At: t0.Add(3 * time.Hour), Quantity: 3, Fulfilled: true},
		planning.DemandEvent{ItemID: "B", At: t0.Add(2 * time.Hour), Quantity: 20, Fulfilled: true},
		planning.DemandEvent{ItemID: "A", At: t0.Add(1 * time.Hour), Quantity: 1, Fulfilled: true},
	))
	require.NoError(t, mem.AddDemandEvents(ctx,
		planning.DemandEvent{ItemID: "A", At: t0.Add(2 * time.Hour), Quantity: 2, Fulfilled: true},
		planning.DemandEvent{ItemID: "B", At: t0, Quantity: 10, Fulfilled: true},
	))

	// THEN: Each item's history comes back in time order
	a, err := mem.DemandEvents(ctx, "A", t0, t0.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, a, 3)
	for i, e := range a {
		assert.Equal(t, float64(i+1), e.Quantity)
	}

	b, err := mem.DemandEvents(ctx, "B", t0, t0.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, b, 2)
	assert.Equal(t, 10.0, b[0].Quantity)
	assert.Equal(t, 20.0, b[1].Quantity)

	// Window end is exclusive.
	early, err := mem.DemandEvents(ctx, "A", t0, t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Len(t, early, 1)
}
