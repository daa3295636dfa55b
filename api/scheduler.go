/*
scheduler.go - Automated forecast and planning scheduler

PURPOSE:
  Periodically regenerates forecasts for every active item and then runs
  the planning engine over the fresh forecasts, so the latest
  recommendations never lag demand by more than one interval.

DESIGN:
  - Runs a background goroutine with configurable interval
  - One cycle = ForecastRunner.Run then Engine.Run
  - Items with too little history fail the forecast step only; they are
    still planned (against their previous forecast, or none)
  - Each cycle is bounded by the interval so a slow store cannot stack runs

CONFIGURATION:
  - Interval: How often to run (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewPlanningScheduler(handler.Forecaster, handler.Engine, &logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RunCycle endpoint (manual cycle)
  - planning/engine.go: Engine.Run
*/
package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/warp/replenishment-engine/planning"
)

// CycleResult is the outcome of one forecast-then-plan cycle.
type CycleResult struct {
	Forecast   planning.ForecastRunResult
	Planning   planning.RunResult
	FinishedAt time.Time
}

// RunCycle forecasts every active item, then plans every active item.
// Per-item failures are carried in the result; only a run-level error
// (catalog unavailable, ctx cancelled) stops the cycle.
func RunCycle(ctx context.Context, forecaster *planning.ForecastRunner, engine *planning.Engine) (CycleResult, error) {
	var res CycleResult

	fr, err := forecaster.Run(ctx)
	res.Forecast = fr
	if err != nil {
		return res, fmt.Errorf("forecast run: %w", err)
	}

	pr, err := engine.Run(ctx)
	res.Planning = pr
	if err != nil {
		return res, fmt.Errorf("planning run: %w", err)
	}

	res.FinishedAt = time.Now().UTC()
	return res, nil
}

// PlanningScheduler runs RunCycle on a ticker.
type PlanningScheduler struct {
	Forecaster *planning.ForecastRunner
	Engine     *planning.Engine
	Interval   time.Duration
	Enabled    bool

	log     zerolog.Logger
	ticker  *time.Ticker
	stop    chan bool
	wg      sync.WaitGroup
	mu      sync.Mutex
	lastRun *CycleResult
}

// NewPlanningScheduler creates a new scheduler. A nil logger disables logging.
func NewPlanningScheduler(forecaster *planning.ForecastRunner, engine *planning.Engine, logger *zerolog.Logger) *PlanningScheduler {
	log := zerolog.Nop()
	if logger != nil {
		log = logger.With().Str("component", "scheduler").Logger()
	}
	return &PlanningScheduler{
		Forecaster: forecaster,
		Engine:     engine,
		Interval:   1 * time.Hour,
		Enabled:    true,
		log:        log,
	}
}

// Start begins the scheduler.
func (ps *PlanningScheduler) Start() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if !ps.Enabled {
		ps.log.Info().Msg("scheduler disabled, not starting")
		return
	}
	if ps.ticker != nil {
		return
	}

	ps.ticker = time.NewTicker(ps.Interval)
	ps.stop = make(chan bool)
	ps.wg.Add(1)

	go ps.run(ps.ticker, ps.stop)

	ps.log.Info().Dur("interval", ps.Interval).Msg("scheduler started")
}

// Stop stops the scheduler and waits for a running cycle to finish.
func (ps *PlanningScheduler) Stop() {
	ps.mu.Lock()
	ticker, stop := ps.ticker, ps.stop
	ps.ticker = nil
	ps.mu.Unlock()

	if ticker != nil {
		ticker.Stop()
		close(stop)
		ps.wg.Wait()
		ps.log.Info().Msg("scheduler stopped")
	}
}

func (ps *PlanningScheduler) run(ticker *time.Ticker, stop <-chan bool) {
	defer ps.wg.Done()

	// Run immediately on start
	ps.tick(stop)

	for {
		select {
		case <-ticker.C:
			ps.tick(stop)
		case <-stop:
			return
		}
	}
}

func (ps *PlanningScheduler) tick(stop <-chan bool) {
	ctx, cancel := context.WithTimeout(context.Background(), ps.Interval)
	defer cancel()

	// Stop must not wait a full interval for a long cycle.
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	if _, err := ps.RunNow(ctx); err != nil {
		ps.log.Error().Err(err).Msg("planning cycle failed")
	}
}

// RunNow runs one cycle immediately and records it as the last run.
func (ps *PlanningScheduler) RunNow(ctx context.Context) (CycleResult, error) {
	res, err := RunCycle(ctx, ps.Forecaster, ps.Engine)
	if err != nil {
		return res, err
	}

	ps.mu.Lock()
	ps.lastRun = &res
	ps.mu.Unlock()

	ps.log.Info().
		Int("forecasts", len(res.Forecast.Forecasts)).
		Int("forecast_failures", len(res.Forecast.Failures)).
		Int("recommendations", len(res.Planning.Recommendations)).
		Int("planning_failures", len(res.Planning.Failures)).
		Msg("planning cycle completed")

	return res, nil
}

// LastRun returns the most recent successful cycle, if any.
func (ps *PlanningScheduler) LastRun() (CycleResult, bool) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.lastRun == nil {
		return CycleResult{}, false
	}
	return *ps.lastRun, true
}
