/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the planning domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Items:           ItemDTO (wraps factory.ItemJSON)
  Stock:           StockRequest, PositionDTO
  Demand:          DemandEventsRequest, DemandEventDTO, SeriesPointDTO
  Forecasts:       ForecastDTO, ForecastPointDTO, ForecastRunDTO
  Recommendations: RecommendationDTO, PlanningRunDTO, FailureDTO
  Scenarios:       ScenarioDTO

QUANTITIES:
  Stock quantities are decimal.Decimal and serialize as JSON strings
  ("150.5"). Requests accept either strings or numbers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/policy.go: ItemJSON type
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/replenishment-engine/factory"
	"github.com/warp/replenishment-engine/planning"
)

const dateLayout = "2006-01-02"

// =============================================================================
// ITEMS & STOCK
// =============================================================================

// ItemDTO represents an item policy in API responses.
type ItemDTO struct {
	factory.ItemJSON
}

// StockRequest replaces the stock snapshot of an item.
type StockRequest struct {
	Available decimal.Decimal `json:"available"`
	Reserved  decimal.Decimal `json:"reserved"`
	InTransit decimal.Decimal `json:"in_transit"`
}

// PositionDTO is the planning view of an item's stock.
type PositionDTO struct {
	ItemID       string          `json:"item_id"`
	OnHand       decimal.Decimal `json:"on_hand"`
	Reserved     decimal.Decimal `json:"reserved"`
	InTransit    decimal.Decimal `json:"in_transit"`
	NetAvailable decimal.Decimal `json:"net_available"`
	UpdatedAt    string          `json:"updated_at"`
}

// =============================================================================
// DEMAND
// =============================================================================

type DemandEventDTO struct {
	At        time.Time `json:"at"`
	Quantity  float64   `json:"quantity"`
	Fulfilled *bool     `json:"fulfilled,omitempty"` // default true
}

// DemandEventsRequest appends raw demand events to an item's history.
type DemandEventsRequest struct {
	Events []DemandEventDTO `json:"events"`
}

type SeriesPointDTO struct {
	Period   string  `json:"period"`
	Start    string  `json:"start"`
	Quantity float64 `json:"quantity"`
}

// SeriesDTO is the aggregated demand series of one item.
type SeriesDTO struct {
	ItemID      string           `json:"item_id"`
	Granularity string           `json:"granularity"`
	Points      []SeriesPointDTO `json:"points"`
}

// =============================================================================
// FORECASTS
// =============================================================================

type ForecastPointDTO struct {
	PeriodOffset  int     `json:"period_offset"`
	Period        string  `json:"period"`
	PointForecast float64 `json:"point_forecast"`
	LowerBound    float64 `json:"lower_bound"`
	UpperBound    float64 `json:"upper_bound"`
}

// ForecastDTO represents a stored forecast result.
type ForecastDTO struct {
	ID             string             `json:"id"`
	ItemID         string             `json:"item_id"`
	Alpha          float64            `json:"alpha"`
	Beta           float64            `json:"beta"`
	Gamma          float64            `json:"gamma"`
	SeasonalPeriod int                `json:"seasonal_period"`
	Granularity    string             `json:"granularity"`
	SeriesEnd      string             `json:"series_end"`
	Observations   int                `json:"observations"`
	ResidualMean   float64            `json:"residual_mean"`
	ResidualStdDev float64            `json:"residual_std_dev"`
	Points         []ForecastPointDTO `json:"points"`
	GeneratedAt    string             `json:"generated_at"`
}

// ForecastRunDTO summarizes a forecast run over all active items.
type ForecastRunDTO struct {
	StartedAt string        `json:"started_at"`
	Forecasts []ForecastDTO `json:"forecasts"`
	Failures  []FailureDTO  `json:"failures"`
}

// =============================================================================
// RECOMMENDATIONS
// =============================================================================

// RecommendationDTO represents a replenishment recommendation.
type RecommendationDTO struct {
	ID                  string          `json:"id"`
	ItemID              string          `json:"item_id"`
	CurrentStock        decimal.Decimal `json:"current_stock"`
	ReservedStock       decimal.Decimal `json:"reserved_stock"`
	AvailableStock      decimal.Decimal `json:"available_stock"`
	InTransitStock      decimal.Decimal `json:"in_transit_stock"`
	ForecastedDemand    decimal.Decimal `json:"forecasted_demand"`
	ProjectedStock      decimal.Decimal `json:"projected_stock"`
	Action              string          `json:"action"`
	RecommendedQuantity decimal.Decimal `json:"recommended_quantity"`
	RecommendedDate     string          `json:"recommended_date"`
	Priority            string          `json:"priority"`
	Reason              string          `json:"reason"`
	Status              string          `json:"status"`
	ForecastID          string          `json:"forecast_id,omitempty"`
	GeneratedAt         string          `json:"generated_at"`
}

// FailureDTO names an item skipped by a batch run.
type FailureDTO struct {
	ItemID string `json:"item_id"`
	Error  string `json:"error"`
}

// PlanningRunDTO is the outcome of a planning run.
type PlanningRunDTO struct {
	StartedAt       string              `json:"started_at"`
	Recommendations []RecommendationDTO `json:"recommendations"`
	Failures        []FailureDTO        `json:"failures"`
}

// CycleDTO is the outcome of a scheduled forecast-then-plan cycle.
type CycleDTO struct {
	Forecast ForecastRunDTO `json:"forecast"`
	Planning PlanningRunDTO `json:"planning"`
}

// =============================================================================
// SCENARIOS & ERRORS
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toPositionDTO(snap planning.StockSnapshot) PositionDTO {
	pos := planning.PositionOf(snap)
	return PositionDTO{
		ItemID:       string(pos.ItemID),
		OnHand:       pos.OnHand,
		Reserved:     pos.Reserved,
		InTransit:    pos.InTransit,
		NetAvailable: pos.ReportedNetAvailable(),
		UpdatedAt:    snap.UpdatedAt.Format(time.RFC3339),
	}
}

func toSeriesDTO(id planning.ItemID, g planning.Granularity, s planning.DemandSeries) SeriesDTO {
	points := make([]SeriesPointDTO, 0, len(s))
	for _, o := range s {
		points = append(points, SeriesPointDTO{
			Period:   o.Period,
			Start:    o.Start.Format(dateLayout),
			Quantity: o.Quantity,
		})
	}
	return SeriesDTO{ItemID: string(id), Granularity: string(g), Points: points}
}

func toForecastDTO(f planning.ForecastResult) ForecastDTO {
	points := make([]ForecastPointDTO, 0, len(f.Points))
	for _, p := range f.Points {
		points = append(points, ForecastPointDTO(p))
	}
	return ForecastDTO{
		ID:             string(f.ID),
		ItemID:         string(f.ItemID),
		Alpha:          f.Params.Alpha,
		Beta:           f.Params.Beta,
		Gamma:          f.Params.Gamma,
		SeasonalPeriod: f.Params.SeasonalPeriod,
		Granularity:    string(f.Granularity),
		SeriesEnd:      f.SeriesEnd,
		Observations:   f.Observations,
		ResidualMean:   f.ResidualMean,
		ResidualStdDev: f.ResidualStdDev,
		Points:         points,
		GeneratedAt:    f.GeneratedAt.Format(time.RFC3339),
	}
}

func toRecommendationDTO(r planning.Recommendation) RecommendationDTO {
	return RecommendationDTO{
		ID:                  string(r.ID),
		ItemID:              string(r.ItemID),
		CurrentStock:        r.CurrentStock,
		ReservedStock:       r.ReservedStock,
		AvailableStock:      r.AvailableStock,
		InTransitStock:      r.InTransitStock,
		ForecastedDemand:    r.ForecastedDemand,
		ProjectedStock:      r.ProjectedStock,
		Action:              string(r.Action),
		RecommendedQuantity: r.RecommendedQuantity,
		RecommendedDate:     r.RecommendedDate.Format(dateLayout),
		Priority:            string(r.Priority),
		Reason:              r.Reason,
		Status:              string(r.Status),
		ForecastID:          string(r.ForecastID),
		GeneratedAt:         r.GeneratedAt.Format(time.RFC3339),
	}
}

func toRecommendationDTOs(recs []planning.Recommendation) []RecommendationDTO {
	out := make([]RecommendationDTO, 0, len(recs))
	for _, r := range recs {
		out = append(out, toRecommendationDTO(r))
	}
	return out
}

func toFailureDTOs(failures []planning.ItemFailure) []FailureDTO {
	out := make([]FailureDTO, 0, len(failures))
	for _, f := range failures {
		out = append(out, FailureDTO{ItemID: string(f.ItemID), Error: f.Err.Error()})
	}
	return out
}

func toForecastRunDTO(res planning.ForecastRunResult) ForecastRunDTO {
	forecasts := make([]ForecastDTO, 0, len(res.Forecasts))
	for _, f := range res.Forecasts {
		forecasts = append(forecasts, toForecastDTO(f))
	}
	return ForecastRunDTO{
		StartedAt: res.StartedAt.Format(time.RFC3339),
		Forecasts: forecasts,
		Failures:  toFailureDTOs(res.Failures),
	}
}

func toPlanningRunDTO(res planning.RunResult) PlanningRunDTO {
	return PlanningRunDTO{
		StartedAt:       res.StartedAt.Format(time.RFC3339),
		Recommendations: toRecommendationDTOs(res.Recommendations),
		Failures:        toFailureDTOs(res.Failures),
	}
}
