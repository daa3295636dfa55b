package api

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/replenishment-engine/factory"
	"github.com/warp/replenishment-engine/planning"
	"github.com/warp/replenishment-engine/planning/store"
)

func newSchedulerHandler(t *testing.T) *Handler {
	t.Helper()
	h := NewHandler(store.NewMemory(), factory.DefaultSettings(), nil)
	h.SetClock(func() time.Time { return testNow })
	seedItem(t, h, "A", 120, 150, 30, 100)
	seedItem(t, h, "B", 400, 0, 3, 10)
	return h
}

func TestScheduler_RunNow(t *testing.T) {
	h := newSchedulerHandler(t)
	s := NewPlanningScheduler(h.Forecaster, h.Engine, nil)

	_, ok := s.LastRun()
	assert.False(t, ok)

	// WHEN: A cycle runs
	res, err := s.RunNow(context.Background())
	require.NoError(t, err)

	// THEN: Forecast failures do not block planning
	assert.Len(t, res.Forecast.Forecasts, 1)
	require.Len(t, res.Forecast.Failures, 1)
	assert.Equal(t, planning.ItemID("B"), res.Forecast.Failures[0].ItemID)
	assert.Len(t, res.Planning.Recommendations, 2)

	last, ok := s.LastRun()
	require.True(t, ok)
	assert.Equal(t, res.FinishedAt, last.FinishedAt)
}

func TestScheduler_StartStop(t *testing.T) {
	h := newSchedulerHandler(t)
	s := NewPlanningScheduler(h.Forecaster, h.Engine, nil)
	s.Interval = time.Hour

	// GIVEN: A started scheduler runs once immediately
	s.Start()
	require.Eventually(t, func() bool {
		_, ok := s.LastRun()
		return ok
	}, 5*time.Second, 10*time.Millisecond)

	// THEN: Stop returns and is idempotent
	s.Stop()
	s.Stop()

	recs, err := h.Store.LatestByItem(context.Background())
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestScheduler_Disabled(t *testing.T) {
	h := newSchedulerHandler(t)
	s := NewPlanningScheduler(h.Forecaster, h.Engine, nil)
	s.Enabled = false

	s.Start()
	s.Stop()

	_, ok := s.LastRun()
	assert.False(t, ok)
}

func TestRunCycle_CancelledContextStops(t *testing.T) {
	h := newSchedulerHandler(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := RunCycle(ctx, h.Forecaster, h.Engine)
	assert.ErrorIs(t, err, context.Canceled)
}
