/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario creates item policies, stock
	snapshots and monthly demand history, then runs one forecast-then-plan
	cycle so recommendations are available immediately.

AVAILABLE SCENARIOS:

	seasonal-demand: Winter-peaking coffee demand against thin stock
	overstock:       Slow movers sitting far above their max stock
	stock-out:       Over-reserved stock, a reorder point trigger and a
	                 new product without enough history to forecast

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create item policies via factory
 3. Set stock snapshots
 4. Add demand history, one event per month ending last month
 5. Run forecasts, then planning

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "stock-out"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx)
 3. Add case to LoadScenario handler

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Planning endpoints
  - factory/policy.go: Item JSON definitions
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/warp/replenishment-engine/planning"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "seasonal-demand",
		Name:        "Seasonal Demand",
		Description: "Coffee demand peaking every winter, forecast with Holt-Winters",
		Category:    "forecasting",
	},
	{
		ID:          "overstock",
		Name:        "Overstock",
		Description: "Slow-moving items stocked above max, flagged for reduction",
		Category:    "planning",
	},
	{
		ID:          "stock-out",
		Name:        "Stock-Out Risk",
		Description: "Reservations exceed stock, reorder point trigger, new product without history",
		Category:    "planning",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	current := h.currentScenario
	h.mu.RUnlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}

	writeJSON(w, http.StatusOK, ScenarioDTO{
		ID:          current,
		Name:        current,
		Description: "Currently loaded scenario",
	})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var load func(context.Context) error
	switch req.ScenarioID {
	case "seasonal-demand":
		load = h.loadSeasonalDemandScenario
	case "overstock":
		load = h.loadOverstockScenario
	case "stock-out":
		load = h.loadStockOutScenario
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	ctx := r.Context()

	// Reset first
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.setCurrentScenario("")

	if err := load(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	cycle, err := RunCycle(ctx, h.Forecaster, h.Engine)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to plan scenario", err)
		return
	}

	h.setCurrentScenario(req.ScenarioID)
	h.Logger.Info().Str("scenario", req.ScenarioID).Msg("scenario loaded")

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "loaded",
		"scenario": req.ScenarioID,
		"cycle": CycleDTO{
			Forecast: toForecastRunDTO(cycle.Forecast),
			Planning: toPlanningRunDTO(cycle.Planning),
		},
	})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.setCurrentScenario("")

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) setCurrentScenario(id string) {
	h.mu.Lock()
	h.currentScenario = id
	h.mu.Unlock()
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadSeasonalDemandScenario(ctx context.Context) error {
	// Winter peak: January sells 1.4x the baseline, July 0.6x.
	winterPeak := func(base float64) func(int) float64 {
		return func(month int) float64 {
			return math.Round(base * (1 + 0.4*math.Cos(2*math.Pi*float64(month-1)/12)))
		}
	}

	if err := h.seedItem(ctx,
		`{"item_id":"SKU-ESPRESSO","name":"Espresso beans 1kg","min_stock":"100","max_stock":"600","safety_stock":"150","lead_time_days":14}`,
		stock(420, 60, 0), 30, winterPeak(200)); err != nil {
		return err
	}
	if err := h.seedItem(ctx,
		`{"item_id":"SKU-DECAF","name":"Decaf beans 1kg","min_stock":"40","max_stock":"250","safety_stock":"50","reorder_point":"80","lead_time_days":21}`,
		stock(150, 10, 100), 30, winterPeak(40)); err != nil {
		return err
	}
	return h.seedItem(ctx,
		`{"item_id":"SKU-COLDBREW","name":"Cold brew concentrate","min_stock":"50","max_stock":"300","safety_stock":"60","lead_time_days":7}`,
		stock(280, 0, 0), 30, func(month int) float64 {
			// Summer peak
			return math.Round(80 * (1 - 0.5*math.Cos(2*math.Pi*float64(month-1)/12)))
		})
}

func (h *Handler) loadOverstockScenario(ctx context.Context) error {
	// 600 on hand against max 200 while selling 20 a month.
	if err := h.seedItem(ctx,
		`{"item_id":"SKU-MUG","name":"Ceramic mug","min_stock":"50","max_stock":"200","safety_stock":"30","lead_time_days":30}`,
		stock(600, 0, 0), 30, flat(20)); err != nil {
		return err
	}
	// Comfortably inside its band.
	if err := h.seedItem(ctx,
		`{"item_id":"SKU-PLATE","name":"Dinner plate","min_stock":"100","max_stock":"400","safety_stock":"50","lead_time_days":30}`,
		stock(300, 0, 0), 30, flat(50)); err != nil {
		return err
	}
	// Discontinued: inactive items are never planned.
	return h.seedItem(ctx,
		`{"item_id":"SKU-SAUCER","name":"Saucer (discontinued)","min_stock":"0","max_stock":"50","safety_stock":"0","active":false}`,
		stock(900, 0, 0), 30, flat(2))
}

func (h *Handler) loadStockOutScenario(ctx context.Context) error {
	// Reservations exceed on-hand stock: net available is -30.
	if err := h.seedItem(ctx,
		`{"item_id":"SKU-FILTER","name":"Paper filters x100","min_stock":"100","max_stock":"500","safety_stock":"80","lead_time_days":10}`,
		stock(120, 150, 200), 30, flat(100)); err != nil {
		return err
	}
	// Above min but at the reorder point once demand is projected.
	if err := h.seedItem(ctx,
		`{"item_id":"SKU-GRINDER","name":"Burr grinder","min_stock":"5","max_stock":"120","safety_stock":"10","reorder_point":"20","lead_time_days":45}`,
		stock(40, 0, 0), 30, flat(10)); err != nil {
		return err
	}
	// Six months of sales cannot be forecast; it is planned on stock alone.
	return h.seedItem(ctx,
		`{"item_id":"SKU-KETTLE","name":"Gooseneck kettle","min_stock":"10","max_stock":"60","safety_stock":"5","lead_time_days":20}`,
		stock(5, 0, 0), 6, flat(8))
}

// =============================================================================
// HELPERS
// =============================================================================

// seedItem creates the item from JSON, sets its stock and records one
// fulfilled demand event per month for the last `months` complete months.
func (h *Handler) seedItem(ctx context.Context, itemJSON string, snap planning.StockSnapshot, months int, demand func(month int) float64) error {
	policy, err := h.PolicyFactory.ParseItem(itemJSON)
	if err != nil {
		return err
	}
	if err := h.Store.PutItem(ctx, policy); err != nil {
		return err
	}

	now := h.now()
	snap.ItemID = policy.ItemID
	snap.UpdatedAt = now
	if err := h.Store.PutStock(ctx, snap); err != nil {
		return err
	}

	g := planning.GranularityMonth
	current := g.BucketStart(now)
	events := make([]planning.DemandEvent, 0, months)
	for k := months; k >= 1; k-- {
		start := g.Add(current, -k)
		events = append(events, planning.DemandEvent{
			ItemID:    policy.ItemID,
			At:        start.AddDate(0, 0, 14),
			Quantity:  demand(int(start.Month())),
			Fulfilled: true,
		})
	}
	return h.Store.AddDemandEvents(ctx, events...)
}

func stock(available, reserved, inTransit int64) planning.StockSnapshot {
	return planning.StockSnapshot{
		Available: decimal.NewFromInt(available),
		Reserved:  decimal.NewFromInt(reserved),
		InTransit: decimal.NewFromInt(inTransit),
	}
}

func flat(qty float64) func(int) float64 {
	return func(int) float64 { return qty }
}
