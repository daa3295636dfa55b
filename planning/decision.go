/*
decision.go - Per-item replenishment decision

PURPOSE:
  Combines a StockPosition, the latest ForecastResult and an ItemPolicy into
  exactly one Recommendation. Pure: no I/O, no clock (the caller passes now).

DECISION (first match wins):
  projected = netAvailable - forecastedDemand

  projected < 0                    CRITICAL / CRITICAL  qty = |projected| + safety
  projected <= reorderPoint (set)  PRODUCE  / HIGH      qty = max - projected
  projected <  minStock (no RP)    PRODUCE  / HIGH      qty = max - projected
  projected <  safetyStock         PRODUCE  / MEDIUM    qty = max - projected
  onHand    >  maxStock            REDUCE   / LOW       qty = 0
  otherwise                        HOLD     / LOW       qty = 0

  Quantities are rounded to whole units and never negative.

THRESHOLD PRECEDENCE:
  When an item carries a reorder point it governs the HIGH trigger and
  minStock is not consulted for that rule. Items without one use minStock.

FORECASTED DEMAND:
  Sum of point forecasts for the ceil(horizonDays / bucketWidth) calendar
  buckets starting with the bucket containing now. Points of a stale forecast
  that fall before now are ignored. No forecast means zero demand: the item
  is still planned from stock alone.
*/
package planning

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PlanningConfig controls a planning run.
type PlanningConfig struct {
	HorizonDays int // forward window over which forecast demand is summed
	Workers     int // per-item parallelism of a batch run
}

func DefaultPlanningConfig() PlanningConfig {
	return PlanningConfig{HorizonDays: 90, Workers: 4}
}

func (c PlanningConfig) Validate() error {
	if c.HorizonDays < 1 {
		return &ValidationError{Field: "horizon_days", Message: "must be positive"}
	}
	if c.Workers < 1 {
		return &ValidationError{Field: "workers", Message: "must be positive"}
	}
	return nil
}

// Decision is the outcome of the threshold rules before it is dressed up as
// a Recommendation.
type Decision struct {
	Action   Action
	Priority Priority
	Quantity decimal.Decimal
	Reason   string
}

// Decide applies the threshold rules to a projected stock level.
func Decide(policy ItemPolicy, pos StockPosition, projected decimal.Decimal) Decision {
	switch {
	case projected.IsNegative():
		return Decision{
			Action:   ActionCritical,
			Priority: PriorityCritical,
			Quantity: wholeUnits(projected.Abs().Add(policy.SafetyStock)),
			Reason: fmt.Sprintf("Stock-out risk: projected stock %s is below zero; replenish shortfall plus safety stock %s",
				projected, policy.SafetyStock),
		}

	case policy.ReorderPoint != nil && projected.LessThanOrEqual(*policy.ReorderPoint):
		return Decision{
			Action:   ActionProduce,
			Priority: PriorityHigh,
			Quantity: wholeUnits(policy.MaxStock.Sub(projected)),
			Reason:   fmt.Sprintf("Projected stock %s at or below reorder point %s", projected, *policy.ReorderPoint),
		}

	case policy.ReorderPoint == nil && projected.LessThan(policy.MinStock):
		return Decision{
			Action:   ActionProduce,
			Priority: PriorityHigh,
			Quantity: wholeUnits(policy.MaxStock.Sub(projected)),
			Reason:   fmt.Sprintf("Projected stock %s below minimum stock %s", projected, policy.MinStock),
		}

	case projected.LessThan(policy.SafetyStock):
		return Decision{
			Action:   ActionProduce,
			Priority: PriorityMedium,
			Quantity: wholeUnits(policy.MaxStock.Sub(projected)),
			Reason:   fmt.Sprintf("Projected stock %s below safety stock %s", projected, policy.SafetyStock),
		}

	case pos.OnHand.GreaterThan(policy.MaxStock):
		return Decision{
			Action:   ActionReduce,
			Priority: PriorityLow,
			Quantity: decimal.Zero,
			Reason: fmt.Sprintf("Overstock: current stock %s exceeds maximum %s by %s",
				pos.OnHand, policy.MaxStock, pos.OnHand.Sub(policy.MaxStock)),
		}

	default:
		return Decision{
			Action:   ActionHold,
			Priority: PriorityLow,
			Quantity: decimal.Zero,
			Reason:   fmt.Sprintf("Projected stock %s within policy limits", projected),
		}
	}
}

// Recommend builds the recommendation for one item. forecast may be nil.
func Recommend(policy ItemPolicy, pos StockPosition, forecast *ForecastResult, cfg PlanningConfig, now time.Time) (Recommendation, error) {
	if err := policy.Validate(); err != nil {
		return Recommendation{}, err
	}
	if cfg.HorizonDays < 1 {
		return Recommendation{}, &ValidationError{Field: "horizon_days", Message: "must be positive"}
	}

	demand := decimal.Zero
	var forecastID ForecastID
	if forecast != nil {
		if forecast.ItemID != policy.ItemID {
			return Recommendation{}, &ValidationError{
				Field:   "forecast",
				Message: fmt.Sprintf("forecast for %s supplied for item %s", forecast.ItemID, policy.ItemID),
			}
		}
		periods := forecast.Granularity.PeriodsForDays(cfg.HorizonDays)
		demand = decimal.NewFromFloat(forecast.DemandOver(now, periods))
		forecastID = forecast.ID
	}

	projected := pos.NetAvailable.Sub(demand)
	d := Decide(policy, pos, projected)

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	return Recommendation{
		ItemID:              policy.ItemID,
		CurrentStock:        pos.OnHand,
		ReservedStock:       pos.Reserved,
		AvailableStock:      pos.NetAvailable,
		InTransitStock:      pos.InTransit,
		ForecastedDemand:    demand,
		ProjectedStock:      projected,
		Action:              d.Action,
		RecommendedQuantity: d.Quantity,
		RecommendedDate:     today.AddDate(0, 0, policy.LeadTimeDays),
		Priority:            d.Priority,
		Reason:              d.Reason,
		Status:              StatusPending,
		ForecastID:          forecastID,
		GeneratedAt:         now,
	}, nil
}

// wholeUnits rounds half away from zero and clamps at zero.
func wholeUnits(q decimal.Decimal) decimal.Decimal {
	q = q.Round(0)
	if q.IsNegative() {
		return decimal.Zero
	}
	return q
}
