package planning_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/warp/replenishment-engine/planning"
	"github.com/warp/replenishment-engine/planning/store"
)

// =============================================================================
// MOCKS
// =============================================================================

type MockInventory struct {
	mock.Mock
}

func (m *MockInventory) StockSnapshot(ctx context.Context, id planning.ItemID) (planning.StockSnapshot, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(planning.StockSnapshot), args.Error(1)
}

// =============================================================================
// TEST HELPERS
// =============================================================================

func seedItems(t *testing.T, mem *store.Memory, n int) []planning.ItemID {
	t.Helper()
	ctx := context.Background()
	ids := make([]planning.ItemID, n)
	for i := 0; i < n; i++ {
		id := planning.ItemID(fmt.Sprintf("SKU-%d", i+1))
		ids[i] = id
		require.NoError(t, mem.PutItem(ctx, basePolicy(id)))
		require.NoError(t, mem.PutStock(ctx, planning.StockSnapshot{ItemID: id, Available: qty(int64(100 * (i + 1)))}))
	}
	return ids
}

func sequentialIDs() func() planning.RecommendationID {
	var n atomic.Int64
	return func() planning.RecommendationID {
		return planning.RecommendationID(fmt.Sprintf("rec-%d", n.Add(1)))
	}
}

func newTestEngine(mem *store.Memory) *planning.Engine {
	e := planning.NewEngine(mem, mem, mem, mem, planning.DefaultPlanningConfig())
	e.Now = func() time.Time { return planNow }
	e.NewID = sequentialIDs()
	return e
}

// =============================================================================
// RUN
// =============================================================================

func TestEngineRun_PlansEveryActiveItem(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	seedItems(t, mem, 3)

	inactive := basePolicy("SKU-OFF")
	inactive.Active = false
	require.NoError(t, mem.PutItem(ctx, inactive))

	result, err := newTestEngine(mem).Run(ctx)
	require.NoError(t, err)

	assert.Len(t, result.Recommendations, 3)
	assert.Empty(t, result.Failures)
	assert.False(t, result.Aborted)
	assert.Equal(t, planNow, result.StartedAt)

	// Catalog order is preserved.
	assert.Equal(t, planning.ItemID("SKU-1"), result.Recommendations[0].ItemID)
	assert.Equal(t, planning.ItemID("SKU-3"), result.Recommendations[2].ItemID)

	latest, err := mem.LatestByItem(ctx)
	require.NoError(t, err)
	assert.Len(t, latest, 3)
}

func TestEngineRun_MissingInventory_IsolatedFailure(t *testing.T) {
	// GIVEN: 5 active items; the inventory lookup for the third one fails
	// WHEN: running the planner
	// THEN: 4 recommendations are stored and one failure names SKU-3

	ctx := context.Background()
	mem := store.NewMemory()
	ids := seedItems(t, mem, 5)

	inv := new(MockInventory)
	for i, id := range ids {
		if i == 2 {
			inv.On("StockSnapshot", mock.Anything, id).
				Return(planning.StockSnapshot{}, &planning.NotFoundError{Kind: "inventory", ID: string(id)})
			continue
		}
		inv.On("StockSnapshot", mock.Anything, id).
			Return(planning.StockSnapshot{ItemID: id, Available: qty(300)}, nil)
	}

	engine := newTestEngine(mem)
	engine.Inventory = inv

	result, err := engine.Run(ctx)
	require.NoError(t, err)

	assert.Len(t, result.Recommendations, 4)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, planning.ItemID("SKU-3"), result.Failures[0].ItemID)
	assert.True(t, planning.IsNotFound(result.Failures[0].Err))

	stored, err := mem.LatestByItem(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, 4)
	for _, r := range stored {
		assert.NotEqual(t, planning.ItemID("SKU-3"), r.ItemID)
	}

	inv.AssertNumberOfCalls(t, "StockSnapshot", 5)
}

func TestEngineRun_Idempotent(t *testing.T) {
	// GIVEN: unchanged inputs and a fixed clock
	// WHEN: planning twice
	// THEN: both runs decide the same thing; the latest view stays one per item

	ctx := context.Background()
	mem := store.NewMemory()
	seedItems(t, mem, 4)
	engine := newTestEngine(mem)

	first, err := engine.Run(ctx)
	require.NoError(t, err)
	second, err := engine.Run(ctx)
	require.NoError(t, err)

	require.Len(t, second.Recommendations, len(first.Recommendations))
	for i := range first.Recommendations {
		a, b := first.Recommendations[i], second.Recommendations[i]
		assert.NotEqual(t, a.ID, b.ID)
		a.ID, b.ID = "", ""
		assert.Equal(t, a, b)
	}

	latest, err := mem.LatestByItem(ctx)
	require.NoError(t, err)
	assert.Len(t, latest, 4)

	history, err := mem.RecommendationsForItem(ctx, "SKU-1")
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestEngineRun_UsesLatestForecast(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.PutItem(ctx, basePolicy("SKU-1")))
	require.NoError(t, mem.PutStock(ctx, planning.StockSnapshot{ItemID: "SKU-1", Available: qty(400)}))

	old := monthlyForecast("SKU-1", 1, 1, 1)
	old.ID, old.GeneratedAt = "fc-old", planNow.Add(-48*time.Hour)
	fresh := monthlyForecast("SKU-1", 100, 120, 130)
	fresh.ID, fresh.GeneratedAt = "fc-new", planNow.Add(-time.Hour)
	require.NoError(t, mem.SaveForecast(ctx, *fresh))
	require.NoError(t, mem.SaveForecast(ctx, *old))

	r, err := newTestEngine(mem).PlanItem(ctx, "SKU-1")
	require.NoError(t, err)

	assert.Equal(t, planning.ForecastID("fc-new"), r.ForecastID)
	assert.Equal(t, planning.PriorityHigh, r.Priority)
	assert.True(t, r.RecommendedQuantity.Equal(qty(450)))
}

func TestEngineRun_Cancelled(t *testing.T) {
	mem := store.NewMemory()
	seedItems(t, mem, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := newTestEngine(mem).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, result.Aborted)
	assert.Empty(t, result.Recommendations)

	latest, err := mem.LatestByItem(context.Background())
	require.NoError(t, err)
	assert.Empty(t, latest)
}

func TestEngineRun_CatalogFailureAborts(t *testing.T) {
	engine := newTestEngine(store.NewMemory())
	engine.Catalog = failingCatalog{err: errors.New("connection refused")}

	_, err := engine.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list active items")
}

func TestEngineRun_InvalidConfig(t *testing.T) {
	engine := newTestEngine(store.NewMemory())
	engine.Config.Workers = 0

	_, err := engine.Run(context.Background())
	assert.ErrorIs(t, err, planning.ErrValidation)
}

func TestEnginePlanItem_UnknownItem(t *testing.T) {
	_, err := newTestEngine(store.NewMemory()).PlanItem(context.Background(), "nope")
	assert.True(t, planning.IsNotFound(err))
}

type failingCatalog struct{ err error }

func (f failingCatalog) ActiveItems(context.Context) ([]planning.ItemPolicy, error) { return nil, f.err }
func (f failingCatalog) GetItem(context.Context, planning.ItemID) (planning.ItemPolicy, error) {
	return planning.ItemPolicy{}, f.err
}

// =============================================================================
// RECOMMENDATION WORKFLOW (memory store)
// =============================================================================

func TestMemoryStore_StatusWorkflow(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	seedItems(t, mem, 1)

	r, err := newTestEngine(mem).PlanItem(ctx, "SKU-1")
	require.NoError(t, err)

	require.NoError(t, mem.UpdateStatus(ctx, r.ID, planning.StatusApproved))
	err = mem.UpdateStatus(ctx, r.ID, planning.StatusRejected)
	assert.ErrorIs(t, err, planning.ErrInvalidTransition)
	require.NoError(t, mem.UpdateStatus(ctx, r.ID, planning.StatusCompleted))

	got, err := mem.GetRecommendation(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, planning.StatusCompleted, got.Status)

	assert.True(t, planning.IsNotFound(mem.UpdateStatus(ctx, "missing", planning.StatusApproved)))
}
