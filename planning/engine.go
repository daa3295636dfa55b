/*
engine.go - Planning run orchestration

PURPOSE:
  Runs Recommend for one item (PlanItem) or for every active item (Run),
  reading stock and forecasts from collaborators and appending each
  recommendation to the RecommendationStore.

PARTIAL FAILURE:
  A batch run never fails because of one item. Missing inventory, a store
  error or an invalid policy is logged, recorded in RunResult.Failures and
  the run moves on. Only failing to list the catalog aborts the run.

CONCURRENCY:
  Items are independent. Run plans up to Config.Workers items at a time;
  results keep catalog order. Each recommendation write is independent, so
  cancelling ctx stops the run between items without touching anything
  already written. No per-item retries: re-plan a failed item with PlanItem.

EXAMPLE:
  engine := planning.NewEngine(store, store, store, store, planning.DefaultPlanningConfig())
  result, err := engine.Run(ctx)
  for _, f := range result.Failures {
      logger.Warn().Err(f.Err).Str("item_id", string(f.ItemID)).Msg("skipped")
  }
*/
package planning

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Engine struct {
	Catalog         Catalog
	Inventory       Inventory
	Forecasts       ForecastStore
	Recommendations RecommendationStore
	Config          PlanningConfig

	Now    func() time.Time
	NewID  func() RecommendationID
	Logger *zerolog.Logger
}

func NewEngine(catalog Catalog, inventory Inventory, forecasts ForecastStore, recs RecommendationStore, cfg PlanningConfig) *Engine {
	return &Engine{
		Catalog:         catalog,
		Inventory:       inventory,
		Forecasts:       forecasts,
		Recommendations: recs,
		Config:          cfg,
	}
}

// RunResult is the outcome of a batch planning run.
type RunResult struct {
	StartedAt       time.Time
	Recommendations []Recommendation
	Failures        []ItemFailure
	Aborted         bool // ctx ended before every item was planned
}

// PlanItem plans and persists a single item.
func (e *Engine) PlanItem(ctx context.Context, id ItemID) (Recommendation, error) {
	item, err := e.Catalog.GetItem(ctx, id)
	if err != nil {
		return Recommendation{}, err
	}
	return e.planItem(ctx, item, e.now())
}

// Run plans every active item. The returned error is non-nil only when the
// catalog cannot be listed or ctx was cancelled mid-run; in the latter case
// the result still holds everything planned before cancellation.
func (e *Engine) Run(ctx context.Context) (RunResult, error) {
	log := componentLogger(e.Logger, "planner")

	if err := e.Config.Validate(); err != nil {
		return RunResult{}, err
	}
	items, err := e.Catalog.ActiveItems(ctx)
	if err != nil {
		return RunResult{}, fmt.Errorf("list active items: %w", err)
	}

	started := time.Now()
	now := e.now()
	result := RunResult{StartedAt: now}

	outcomes := forEachItem(ctx, items, e.Config.Workers, func(ctx context.Context, item ItemPolicy) (Recommendation, error) {
		return e.planItem(ctx, item, now)
	})

	for _, o := range outcomes {
		switch {
		case !o.ran:
			result.Aborted = true
		case o.err != nil:
			log.Warn().Str("item_id", string(o.item)).Err(o.err).Msg("planning failed; item skipped")
			result.Failures = append(result.Failures, ItemFailure{ItemID: o.item, Err: o.err})
		default:
			result.Recommendations = append(result.Recommendations, o.value)
		}
	}

	log.Info().
		Int("items", len(items)).
		Int("planned", len(result.Recommendations)).
		Int("failed", len(result.Failures)).
		Bool("aborted", result.Aborted).
		Dur("took", time.Since(started)).
		Msg("planning run finished")

	if result.Aborted {
		return result, ctx.Err()
	}
	return result, nil
}

func (e *Engine) planItem(ctx context.Context, item ItemPolicy, now time.Time) (Recommendation, error) {
	snap, err := e.Inventory.StockSnapshot(ctx, item.ItemID)
	if err != nil {
		return Recommendation{}, fmt.Errorf("stock snapshot: %w", err)
	}

	forecast, err := e.Forecasts.LatestForecast(ctx, item.ItemID)
	if err != nil {
		return Recommendation{}, fmt.Errorf("latest forecast: %w", err)
	}

	rec, err := Recommend(item, PositionOf(snap), forecast, e.Config, now)
	if err != nil {
		return Recommendation{}, err
	}
	rec.ID = e.newID()

	if err := e.Recommendations.SaveRecommendation(ctx, rec); err != nil {
		return Recommendation{}, fmt.Errorf("save recommendation: %w", err)
	}
	return rec, nil
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

func (e *Engine) newID() RecommendationID {
	if e.NewID != nil {
		return e.NewID()
	}
	return RecommendationID(uuid.NewString())
}
