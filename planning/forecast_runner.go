package planning

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// =============================================================================
// FORECAST SETTINGS
// =============================================================================

// ForecastSettings configures forecast generation.
type ForecastSettings struct {
	Params          ForecastParams
	Horizon         int // periods to project
	LookbackPeriods int // history window, in buckets, ending before the current bucket
	Granularity     Granularity
}

func DefaultForecastSettings() ForecastSettings {
	return ForecastSettings{
		Params:          DefaultForecastParams(),
		Horizon:         6,
		LookbackPeriods: 36,
		Granularity:     GranularityMonth,
	}
}

func (s ForecastSettings) Validate() error {
	if err := s.Params.Validate(); err != nil {
		return err
	}
	if s.Horizon < 1 {
		return &ValidationError{Field: "horizon", Message: "must be positive"}
	}
	if s.LookbackPeriods < s.Params.MinObservations() {
		return &ValidationError{
			Field:   "lookback_periods",
			Message: fmt.Sprintf("must cover at least %d periods", s.Params.MinObservations()),
		}
	}
	if _, err := ParseGranularity(string(s.Granularity)); err != nil {
		return err
	}
	return nil
}

// =============================================================================
// FORECAST RUNNER - History -> series -> Holt-Winters -> store
// =============================================================================

// ForecastRunner generates and stores forecasts for catalog items.
type ForecastRunner struct {
	Catalog   Catalog
	History   DemandHistory
	Forecasts ForecastStore
	Settings  ForecastSettings
	Workers   int

	Now    func() time.Time
	NewID  func() ForecastID
	Logger *zerolog.Logger
}

func NewForecastRunner(catalog Catalog, history DemandHistory, forecasts ForecastStore, settings ForecastSettings) *ForecastRunner {
	return &ForecastRunner{
		Catalog:   catalog,
		History:   history,
		Forecasts: forecasts,
		Settings:  settings,
		Workers:   1,
	}
}

type ForecastRunResult struct {
	StartedAt time.Time
	Forecasts []ForecastResult
	Failures  []ItemFailure
	Aborted   bool
}

// HistoryWindow returns [from, to) covering LookbackPeriods complete buckets
// before the bucket that contains now.
func (s ForecastSettings) HistoryWindow(now time.Time) (time.Time, time.Time) {
	to := s.Granularity.BucketStart(now)
	return s.Granularity.Add(to, -s.LookbackPeriods), to
}

// Series loads and aggregates the demand history of one item over the
// lookback window, padded with zero buckets up to the window end.
func (r *ForecastRunner) Series(ctx context.Context, id ItemID, now time.Time) (DemandSeries, error) {
	from, to := r.Settings.HistoryWindow(now)
	events, err := r.History.DemandEvents(ctx, id, from, to)
	if err != nil {
		return nil, fmt.Errorf("demand events: %w", err)
	}
	series := AggregateDemand(events, r.Settings.Granularity)
	return PadSeries(series, r.Settings.Granularity, r.Settings.Granularity.Add(to, -1)), nil
}

// ForecastItem forecasts and stores a single item.
func (r *ForecastRunner) ForecastItem(ctx context.Context, id ItemID) (ForecastResult, error) {
	if _, err := r.Catalog.GetItem(ctx, id); err != nil {
		return ForecastResult{}, err
	}
	return r.forecastItem(ctx, id, r.now())
}

// Run forecasts every active item with the same isolation rules as Engine.Run.
func (r *ForecastRunner) Run(ctx context.Context) (ForecastRunResult, error) {
	log := componentLogger(r.Logger, "forecaster")

	if err := r.Settings.Validate(); err != nil {
		return ForecastRunResult{}, err
	}
	items, err := r.Catalog.ActiveItems(ctx)
	if err != nil {
		return ForecastRunResult{}, fmt.Errorf("list active items: %w", err)
	}

	now := r.now()
	result := ForecastRunResult{StartedAt: now}

	outcomes := forEachItem(ctx, items, r.Workers, func(ctx context.Context, item ItemPolicy) (ForecastResult, error) {
		return r.forecastItem(ctx, item.ItemID, now)
	})
	for _, o := range outcomes {
		switch {
		case !o.ran:
			result.Aborted = true
		case o.err != nil:
			log.Warn().Str("item_id", string(o.item)).Err(o.err).Msg("forecast failed; item skipped")
			result.Failures = append(result.Failures, ItemFailure{ItemID: o.item, Err: o.err})
		default:
			result.Forecasts = append(result.Forecasts, o.value)
		}
	}

	log.Info().
		Int("items", len(items)).
		Int("forecast", len(result.Forecasts)).
		Int("failed", len(result.Failures)).
		Msg("forecast run finished")

	if result.Aborted {
		return result, ctx.Err()
	}
	return result, nil
}

func (r *ForecastRunner) forecastItem(ctx context.Context, id ItemID, now time.Time) (ForecastResult, error) {
	series, err := r.Series(ctx, id, now)
	if err != nil {
		return ForecastResult{}, err
	}

	res, err := Forecast(id, series, r.Settings.Granularity, r.Settings.Params, r.Settings.Horizon)
	if err != nil {
		return ForecastResult{}, err
	}
	res.ID = r.newID()
	res.GeneratedAt = now

	if err := r.Forecasts.SaveForecast(ctx, res); err != nil {
		return ForecastResult{}, fmt.Errorf("save forecast: %w", err)
	}
	return res, nil
}

func (r *ForecastRunner) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

func (r *ForecastRunner) newID() ForecastID {
	if r.NewID != nil {
		return r.NewID()
	}
	return ForecastID(uuid.NewString())
}

// PadSeries appends zero-demand buckets after the last observation up to and
// including the bucket starting at through. Empty series stay empty: an item
// that never sold has no history to extend.
func PadSeries(s DemandSeries, g Granularity, through time.Time) DemandSeries {
	last, ok := s.Last()
	if !ok {
		return s
	}
	for cur := g.Next(last.Start); !cur.After(through); cur = g.Next(cur) {
		s = append(s, DemandObservation{Period: g.Key(cur), Start: cur})
	}
	return s
}
