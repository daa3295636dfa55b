/*
Package planning provides the forecasting and replenishment planning engine.

PURPOSE:
  Turns demand history into forward-looking forecasts and turns stock +
  reservations + forecast into a prioritized replenishment action for every
  active item in the catalog. Everything here is pure computation over data
  supplied by collaborators (catalog, inventory, demand history, forecast and
  recommendation stores); persistence and transport live elsewhere.

KEY CONCEPTS IN THIS FILE (types.go):
  - ItemPolicy: min/max/safety/reorder-point/lead-time thresholds for an item
  - StockSnapshot: on-hand, reserved and in-transit quantities
  - DemandEvent / DemandObservation / DemandSeries: raw and bucketed demand
  - ForecastPoint / ForecastResult: Holt-Winters output with interval bounds
  - Recommendation: one immutable planning decision for one item

DESIGN PRINCIPLES:
  1. Immutability: forecasts and recommendations are superseded, never mutated
     (the only exception is Recommendation.Status, owned by the approval workflow)
  2. Precision: stock quantities use decimal.Decimal; forecasting math is float64
     and rounded to whole units at the boundary
  3. Explicit collaborators: every I/O dependency is an interface in store.go

DATA FLOW:
  DemandHistory -> AggregateDemand -> Forecast -> ForecastStore
  Catalog + Inventory + ForecastStore -> Engine -> RecommendationStore

SEE ALSO:
  - forecast.go: Holt-Winters forecaster
  - engine.go: per-item planning and batch runs
  - store.go: collaborator interfaces
*/
package planning

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ItemID string
type RecommendationID string
type ForecastID string

// =============================================================================
// ITEM POLICY - Replenishment thresholds
// =============================================================================

// ItemPolicy holds the replenishment thresholds for one item.
// ReorderPoint is optional; when set it replaces MinStock as the PRODUCE trigger.
type ItemPolicy struct {
	ItemID       ItemID
	Name         string
	MinStock     decimal.Decimal
	MaxStock     decimal.Decimal
	SafetyStock  decimal.Decimal
	ReorderPoint *decimal.Decimal
	LeadTimeDays int
	Active       bool
}

// Validate checks that all thresholds are non-negative and MaxStock >= MinStock.
func (p ItemPolicy) Validate() error {
	if p.ItemID == "" {
		return &ValidationError{Field: "item_id", Message: "must not be empty"}
	}
	checks := []struct {
		field string
		value decimal.Decimal
	}{
		{"min_stock", p.MinStock},
		{"max_stock", p.MaxStock},
		{"safety_stock", p.SafetyStock},
	}
	for _, c := range checks {
		if c.value.IsNegative() {
			return &ValidationError{Field: c.field, Message: "must not be negative"}
		}
	}
	if p.ReorderPoint != nil && p.ReorderPoint.IsNegative() {
		return &ValidationError{Field: "reorder_point", Message: "must not be negative"}
	}
	if p.LeadTimeDays < 0 {
		return &ValidationError{Field: "lead_time_days", Message: "must not be negative"}
	}
	if p.MaxStock.LessThan(p.MinStock) {
		return &ValidationError{Field: "max_stock", Message: "must be greater than or equal to min_stock"}
	}
	return nil
}

// =============================================================================
// STOCK SNAPSHOT - Supplied by the inventory collaborator
// =============================================================================

type StockSnapshot struct {
	ItemID    ItemID
	Available decimal.Decimal
	Reserved  decimal.Decimal
	InTransit decimal.Decimal
	UpdatedAt time.Time
}

// =============================================================================
// DEMAND
// =============================================================================

// DemandEvent is one raw consumption record (delivery, shipment).
// Only fulfilled events count as demand.
type DemandEvent struct {
	ItemID    ItemID
	At        time.Time
	Quantity  float64
	Fulfilled bool
}

// DemandObservation is the total demand of one period bucket.
type DemandObservation struct {
	Period   string    // bucket key, e.g. "2025-03" or "2025-W10"
	Start    time.Time // first instant of the bucket (UTC)
	Quantity float64
}

// DemandSeries is ordered by Start ascending with no duplicate periods.
type DemandSeries []DemandObservation

// Values returns the quantities in order.
func (s DemandSeries) Values() []float64 {
	out := make([]float64, len(s))
	for i, o := range s {
		out[i] = o.Quantity
	}
	return out
}

// Last returns the final observation and false if the series is empty.
func (s DemandSeries) Last() (DemandObservation, bool) {
	if len(s) == 0 {
		return DemandObservation{}, false
	}
	return s[len(s)-1], true
}

// =============================================================================
// FORECAST
// =============================================================================

// ForecastParams are the Holt-Winters smoothing coefficients.
type ForecastParams struct {
	Alpha          float64 // level
	Beta           float64 // trend
	Gamma          float64 // seasonal
	SeasonalPeriod int
}

// DefaultForecastParams returns alpha=0.2, beta=0.1, gamma=0.3 over a 12-period season.
func DefaultForecastParams() ForecastParams {
	return ForecastParams{Alpha: 0.2, Beta: 0.1, Gamma: 0.3, SeasonalPeriod: 12}
}

// Validate checks coefficients are in (0,1] and the seasonal period is positive.
func (p ForecastParams) Validate() error {
	coeffs := []struct {
		field string
		value float64
	}{
		{"alpha", p.Alpha},
		{"beta", p.Beta},
		{"gamma", p.Gamma},
	}
	for _, c := range coeffs {
		if !(c.value > 0 && c.value <= 1) {
			return &ValidationError{Field: c.field, Message: "must be in (0, 1]"}
		}
	}
	if p.SeasonalPeriod < 1 {
		return &ValidationError{Field: "seasonal_period", Message: "must be positive"}
	}
	return nil
}

// MinObservations is the history needed to initialize one seasonal cycle and
// fit over at least one more.
func (p ForecastParams) MinObservations() int {
	return 2 * p.SeasonalPeriod
}

type ForecastPoint struct {
	PeriodOffset  int    // 1..H periods after the series end
	Period        string // calendar bucket key of the forecast period
	PointForecast float64
	LowerBound    float64
	UpperBound    float64
}

// ForecastResult is immutable once generated. Later runs save a new result.
type ForecastResult struct {
	ID             ForecastID
	ItemID         ItemID
	Params         ForecastParams
	Granularity    Granularity
	SeriesEnd      string // key of the last observed bucket
	Observations   int
	ResidualMean   float64
	ResidualStdDev float64
	Points         []ForecastPoint
	GeneratedAt    time.Time
}

// DemandOver sums the point forecasts whose calendar period is one of the n
// buckets starting with the bucket containing from. Points for periods that
// already passed, or with unreadable keys, do not count.
func (f ForecastResult) DemandOver(from time.Time, n int) float64 {
	if n <= 0 {
		return 0
	}
	start := f.Granularity.BucketStart(from)
	end := f.Granularity.Add(start, n)

	total := 0.0
	for _, p := range f.Points {
		at, err := f.Granularity.ParseKey(p.Period)
		if err != nil {
			continue
		}
		if !at.Before(start) && at.Before(end) {
			total += p.PointForecast
		}
	}
	return total
}

// =============================================================================
// RECOMMENDATION
// =============================================================================

type Action string

const (
	ActionHold     Action = "HOLD"
	ActionProduce  Action = "PRODUCE"
	ActionCritical Action = "CRITICAL"
	ActionReduce   Action = "REDUCE"
)

type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

// Rank orders priorities with CRITICAL first. Unknown priorities sort last.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

// Recommendation is one planning decision. A run appends new recommendations;
// it never rewrites old ones.
type Recommendation struct {
	ID                  RecommendationID
	ItemID              ItemID
	CurrentStock        decimal.Decimal
	ReservedStock       decimal.Decimal
	AvailableStock      decimal.Decimal // net of reservations
	InTransitStock      decimal.Decimal
	ForecastedDemand    decimal.Decimal
	ProjectedStock      decimal.Decimal
	Action              Action
	RecommendedQuantity decimal.Decimal
	RecommendedDate     time.Time
	Priority            Priority
	Reason              string
	Status              Status
	ForecastID          ForecastID // empty when no forecast was available
	GeneratedAt         time.Time
}
