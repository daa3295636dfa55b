/*
handlers.go - HTTP API handlers for the replenishment planning engine

PURPOSE:
  Exposes the forecasting and planning engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to the planning
  package for everything else.

ENDPOINTS:
  Items:
    GET    /api/items                        List item policies
    POST   /api/items                        Create or replace an item policy
    GET    /api/items/{id}                   Get item policy
    PUT    /api/items/{id}/stock             Replace stock snapshot
    GET    /api/items/{id}/position          Current stock position

  Demand & forecasts:
    POST   /api/items/{id}/demand            Append demand events
    GET    /api/items/{id}/demand/series     Aggregated demand (?from=&to= bucket keys)
    POST   /api/items/{id}/forecast          Forecast one item
    GET    /api/items/{id}/forecast          Latest forecast
    POST   /api/forecasts/run                Forecast all active items

  Planning:
    POST   /api/items/{id}/plan              Re-plan one item
    GET    /api/items/{id}/recommendations   Recommendation history, newest first
    POST   /api/planning/run                 Plan all active items
    POST   /api/planning/cycle               Forecast then plan all active items
    GET    /api/recommendations/latest       Latest per item, priority-ordered
    GET    /api/recommendations/{id}         Single recommendation
    POST   /api/recommendations/{id}/approve|reject|complete

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: planning.Repository (SQLite, PostgreSQL or memory)
  - PolicyFactory: JSON to ItemPolicy conversion
  - Engine / Forecaster: the planning and forecast runners

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Item, stock, forecast or recommendation not found
  - 409: Illegal recommendation status transition
  - 422: Not enough demand history to forecast
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/warp/replenishment-engine/factory"
	"github.com/warp/replenishment-engine/planning"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store         planning.Repository
	PolicyFactory *factory.PolicyFactory
	Settings      factory.Settings
	Engine        *planning.Engine
	Forecaster    *planning.ForecastRunner
	Logger        zerolog.Logger

	now func() time.Time

	// Track currently loaded scenario
	mu              sync.RWMutex
	currentScenario string
}

// NewHandler wires the planning engine and forecast runner over store.
// A nil logger disables logging.
func NewHandler(store planning.Repository, settings factory.Settings, logger *zerolog.Logger) *Handler {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	engine := planning.NewEngine(store, store, store, store, settings.Planning)
	engine.Logger = logger

	forecaster := planning.NewForecastRunner(store, store, store, settings.Forecast)
	forecaster.Workers = settings.Planning.Workers
	forecaster.Logger = logger

	return &Handler{
		Store:         store,
		PolicyFactory: factory.NewPolicyFactory(),
		Settings:      settings,
		Engine:        engine,
		Forecaster:    forecaster,
		Logger:        logger.With().Str("component", "api").Logger(),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the clock used by the handler and both runners.
func (h *Handler) SetClock(now func() time.Time) {
	h.now = func() time.Time { return now().UTC() }
	h.Engine.Now = now
	h.Forecaster.Now = now
}

// =============================================================================
// ITEM ENDPOINTS
// =============================================================================

// ListItems returns every item policy, active or not.
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.Store.ListItems(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to list items", err)
		return
	}

	dtos := make([]ItemDTO, 0, len(items))
	for _, p := range items {
		dtos = append(dtos, ItemDTO{h.PolicyFactory.ToJSON(p)})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateItem creates or replaces an item policy.
func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req factory.ItemJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	policy, err := h.PolicyFactory.FromJSON(req)
	if err != nil {
		h.writeDomainError(w, "Invalid item policy", err)
		return
	}
	if err := h.Store.PutItem(r.Context(), policy); err != nil {
		h.writeDomainError(w, "Failed to save item", err)
		return
	}

	writeJSON(w, http.StatusCreated, ItemDTO{h.PolicyFactory.ToJSON(policy)})
}

// GetItem returns a single item policy.
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	policy, err := h.Store.GetItem(r.Context(), itemID(r))
	if err != nil {
		h.writeDomainError(w, "Item not found", err)
		return
	}
	writeJSON(w, http.StatusOK, ItemDTO{h.PolicyFactory.ToJSON(policy)})
}

// =============================================================================
// STOCK ENDPOINTS
// =============================================================================

// PutStock replaces the stock snapshot of an item.
func (h *Handler) PutStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := itemID(r)

	if _, err := h.Store.GetItem(ctx, id); err != nil {
		h.writeDomainError(w, "Item not found", err)
		return
	}

	var req StockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := validateStock(req); err != nil {
		h.writeDomainError(w, "Invalid stock snapshot", err)
		return
	}

	snap := planning.StockSnapshot{
		ItemID:    id,
		Available: req.Available,
		Reserved:  req.Reserved,
		InTransit: req.InTransit,
		UpdatedAt: h.now(),
	}
	if err := h.Store.PutStock(ctx, snap); err != nil {
		h.writeDomainError(w, "Failed to save stock", err)
		return
	}

	writeJSON(w, http.StatusOK, toPositionDTO(snap))
}

// GetPosition returns the stock position of an item. Net available is
// reported clamped at zero.
func (h *Handler) GetPosition(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Store.StockSnapshot(r.Context(), itemID(r))
	if err != nil {
		h.writeDomainError(w, "Stock not found", err)
		return
	}
	writeJSON(w, http.StatusOK, toPositionDTO(snap))
}

func validateStock(req StockRequest) error {
	fields := []struct {
		name  string
		value decimal.Decimal
	}{
		{"available", req.Available},
		{"reserved", req.Reserved},
		{"in_transit", req.InTransit},
	}
	for _, f := range fields {
		if f.value.IsNegative() {
			return &planning.ValidationError{Field: f.name, Message: "must not be negative"}
		}
	}
	return nil
}

// =============================================================================
// DEMAND ENDPOINTS
// =============================================================================

// RecordDemand appends demand events to an item's history.
func (h *Handler) RecordDemand(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := itemID(r)

	if _, err := h.Store.GetItem(ctx, id); err != nil {
		h.writeDomainError(w, "Item not found", err)
		return
	}

	var req DemandEventsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(req.Events) == 0 {
		h.writeDomainError(w, "Invalid demand events", &planning.ValidationError{Field: "events", Message: "must not be empty"})
		return
	}

	events := make([]planning.DemandEvent, 0, len(req.Events))
	for _, e := range req.Events {
		if e.At.IsZero() {
			h.writeDomainError(w, "Invalid demand events", &planning.ValidationError{Field: "at", Message: "is required"})
			return
		}
		if e.Quantity < 0 {
			h.writeDomainError(w, "Invalid demand events", &planning.ValidationError{Field: "quantity", Message: "must not be negative"})
			return
		}
		fulfilled := true
		if e.Fulfilled != nil {
			fulfilled = *e.Fulfilled
		}
		events = append(events, planning.DemandEvent{
			ItemID:    id,
			At:        e.At.UTC(),
			Quantity:  e.Quantity,
			Fulfilled: fulfilled,
		})
	}

	if err := h.Store.AddDemandEvents(ctx, events...); err != nil {
		h.writeDomainError(w, "Failed to record demand", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"item_id":  string(id),
		"recorded": len(events),
	})
}

// GetDemandSeries returns the aggregated demand series over the forecast
// lookback window. Optional from/to bucket keys (inclusive) narrow it.
func (h *Handler) GetDemandSeries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := itemID(r)
	g := h.Forecaster.Settings.Granularity

	if _, err := h.Store.GetItem(ctx, id); err != nil {
		h.writeDomainError(w, "Item not found", err)
		return
	}

	series, err := h.Forecaster.Series(ctx, id, h.now())
	if err != nil {
		h.writeDomainError(w, "Failed to load demand", err)
		return
	}

	fromKey, toKey := r.URL.Query().Get("from"), r.URL.Query().Get("to")
	if fromKey != "" || toKey != "" {
		from, to := time.Time{}, g.Add(g.BucketStart(h.now()), 1)
		if fromKey != "" {
			if from, err = g.ParseKey(fromKey); err != nil {
				h.writeDomainError(w, "Invalid from period", err)
				return
			}
		}
		if toKey != "" {
			last, err := g.ParseKey(toKey)
			if err != nil {
				h.writeDomainError(w, "Invalid to period", err)
				return
			}
			to = g.Next(last)
		}
		series = planning.TrimSeries(series, from, to)
	}

	writeJSON(w, http.StatusOK, toSeriesDTO(id, g, series))
}

// =============================================================================
// FORECAST ENDPOINTS
// =============================================================================

// ForecastItem generates and stores a forecast for one item.
func (h *Handler) ForecastItem(w http.ResponseWriter, r *http.Request) {
	res, err := h.Forecaster.ForecastItem(r.Context(), itemID(r))
	if err != nil {
		h.writeDomainError(w, "Forecast failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, toForecastDTO(res))
}

// GetForecast returns the latest stored forecast of an item.
func (h *Handler) GetForecast(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := itemID(r)

	if _, err := h.Store.GetItem(ctx, id); err != nil {
		h.writeDomainError(w, "Item not found", err)
		return
	}

	f, err := h.Store.LatestForecast(ctx, id)
	if err != nil {
		h.writeDomainError(w, "Failed to load forecast", err)
		return
	}
	if f == nil {
		h.writeDomainError(w, "No forecast for item", &planning.NotFoundError{Kind: "forecast", ID: string(id)})
		return
	}
	writeJSON(w, http.StatusOK, toForecastDTO(*f))
}

// RunForecasts forecasts every active item. Items with too little history
// are reported as failures.
func (h *Handler) RunForecasts(w http.ResponseWriter, r *http.Request) {
	res, err := h.Forecaster.Run(r.Context())
	if err != nil {
		h.writeDomainError(w, "Forecast run failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toForecastRunDTO(res))
}

// =============================================================================
// PLANNING ENDPOINTS
// =============================================================================

// PlanItem re-plans a single item.
func (h *Handler) PlanItem(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Engine.PlanItem(r.Context(), itemID(r))
	if err != nil {
		h.writeDomainError(w, "Planning failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRecommendationDTO(rec))
}

// GetItemRecommendations returns the recommendation history of an item.
func (h *Handler) GetItemRecommendations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := itemID(r)

	if _, err := h.Store.GetItem(ctx, id); err != nil {
		h.writeDomainError(w, "Item not found", err)
		return
	}

	recs, err := h.Store.RecommendationsForItem(ctx, id)
	if err != nil {
		h.writeDomainError(w, "Failed to load recommendations", err)
		return
	}
	writeJSON(w, http.StatusOK, toRecommendationDTOs(recs))
}

// RunPlanning plans every active item.
func (h *Handler) RunPlanning(w http.ResponseWriter, r *http.Request) {
	res, err := h.Engine.Run(r.Context())
	if err != nil {
		h.writeDomainError(w, "Planning run failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanningRunDTO(res))
}

// RunCycle forecasts then plans every active item.
func (h *Handler) RunCycle(w http.ResponseWriter, r *http.Request) {
	res, err := RunCycle(r.Context(), h.Forecaster, h.Engine)
	if err != nil {
		h.writeDomainError(w, "Planning cycle failed", err)
		return
	}
	writeJSON(w, http.StatusOK, CycleDTO{
		Forecast: toForecastRunDTO(res.Forecast),
		Planning: toPlanningRunDTO(res.Planning),
	})
}

// =============================================================================
// RECOMMENDATION ENDPOINTS
// =============================================================================

// LatestRecommendations returns the latest recommendation of every item,
// CRITICAL first.
func (h *Handler) LatestRecommendations(w http.ResponseWriter, r *http.Request) {
	recs, err := h.Store.LatestByItem(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to load recommendations", err)
		return
	}
	writeJSON(w, http.StatusOK, toRecommendationDTOs(recs))
}

// GetRecommendation returns a single recommendation.
func (h *Handler) GetRecommendation(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Store.GetRecommendation(r.Context(), planning.RecommendationID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, "Recommendation not found", err)
		return
	}
	writeJSON(w, http.StatusOK, toRecommendationDTO(rec))
}

// ApproveRecommendation moves a PENDING recommendation to APPROVED.
func (h *Handler) ApproveRecommendation(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, planning.StatusApproved)
}

// RejectRecommendation moves a PENDING recommendation to REJECTED.
func (h *Handler) RejectRecommendation(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, planning.StatusRejected)
}

// CompleteRecommendation moves an APPROVED recommendation to COMPLETED.
func (h *Handler) CompleteRecommendation(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, planning.StatusCompleted)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, to planning.Status) {
	ctx := r.Context()
	id := planning.RecommendationID(chi.URLParam(r, "id"))

	if err := h.Store.UpdateStatus(ctx, id, to); err != nil {
		h.writeDomainError(w, "Status change rejected", err)
		return
	}

	rec, err := h.Store.GetRecommendation(ctx, id)
	if err != nil {
		h.writeDomainError(w, "Failed to reload recommendation", err)
		return
	}

	h.Logger.Info().
		Str("recommendation_id", string(id)).
		Str("item_id", string(rec.ItemID)).
		Str("status", string(to)).
		Msg("recommendation status changed")

	writeJSON(w, http.StatusOK, toRecommendationDTO(rec))
}

// =============================================================================
// HELPERS
// =============================================================================

func itemID(r *http.Request) planning.ItemID {
	return planning.ItemID(chi.URLParam(r, "id"))
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps planning errors to HTTP status codes.
func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	resp := ErrorResponse{Error: message, Details: err.Error()}
	status := http.StatusInternalServerError

	var ih *planning.InsufficientHistoryError
	switch {
	case errors.As(err, &ih):
		status = http.StatusUnprocessableEntity
		resp.Code = "insufficient_history"
		resp.Details = map[string]int{"required": ih.Required, "provided": ih.Provided}
	case errors.Is(err, planning.ErrValidation):
		status = http.StatusBadRequest
		resp.Code = "validation_failed"
	case errors.Is(err, planning.ErrNotFound):
		status = http.StatusNotFound
		resp.Code = "not_found"
	case errors.Is(err, planning.ErrInvalidTransition):
		status = http.StatusConflict
		resp.Code = "invalid_transition"
	default:
		h.Logger.Error().Err(err).Msg(message)
	}

	writeJSON(w, status, resp)
}
