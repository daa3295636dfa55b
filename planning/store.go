/*
store.go - Collaborator interfaces consumed by the planning engine

PURPOSE:
  The engine does no I/O of its own. Everything it reads or writes goes
  through these capability sets, passed in explicitly by the caller:

    Catalog             active items and their policies
    Inventory           stock snapshot per item
    DemandHistory       raw demand events per item and date range
    ForecastStore       append-only forecast results, latest per item
    RecommendationStore append-only recommendations, latest per item

APPEND-ONLY CONTRACT:
  SaveForecast and SaveRecommendation only ever insert. A later run
  supersedes earlier records; nothing is overwritten. The one mutable field
  is Recommendation.Status, changed through UpdateStatus by the approval
  workflow and validated against the status machine in status.go.

NOT FOUND:
  Lookups of a single record return *NotFoundError (errors.Is ErrNotFound).
  LatestForecast returns (nil, nil) when the item simply has no forecast yet;
  that is the documented "zero forecasted demand" case, not an error.

IMPLEMENTATIONS:
  - planning/store/memory.go: in-memory, for tests and development
  - store/sqlite/sqlite.go: SQLite
  - store/postgres/postgres.go: PostgreSQL via pgx
*/
package planning

import (
	"context"
	"time"
)

// Catalog lists the items that take part in planning.
type Catalog interface {
	ActiveItems(ctx context.Context) ([]ItemPolicy, error)
	GetItem(ctx context.Context, id ItemID) (ItemPolicy, error)
}

// Inventory returns the current stock snapshot of an item.
type Inventory interface {
	StockSnapshot(ctx context.Context, id ItemID) (StockSnapshot, error)
}

// DemandHistory returns demand events with At in [from, to).
type DemandHistory interface {
	DemandEvents(ctx context.Context, id ItemID, from, to time.Time) ([]DemandEvent, error)
}

type ForecastStore interface {
	SaveForecast(ctx context.Context, f ForecastResult) error
	LatestForecast(ctx context.Context, id ItemID) (*ForecastResult, error)
}

type RecommendationStore interface {
	SaveRecommendation(ctx context.Context, r Recommendation) error

	// LatestByItem returns the most recent recommendation of every item,
	// ordered by priority rank, newest first within a rank.
	LatestByItem(ctx context.Context) ([]Recommendation, error)

	// UpdateStatus moves a recommendation through the approval workflow.
	UpdateStatus(ctx context.Context, id RecommendationID, status Status) error
}

// RecommendationHistory extends RecommendationStore with per-item history.
type RecommendationHistory interface {
	RecommendationStore
	RecommendationsForItem(ctx context.Context, id ItemID) ([]Recommendation, error)
	GetRecommendation(ctx context.Context, id RecommendationID) (Recommendation, error)
}

// Repository is the full persistence surface behind the HTTP API and the
// scheduler: every collaborator plus the write side that feeds them.
type Repository interface {
	Catalog
	Inventory
	DemandHistory
	ForecastStore
	RecommendationHistory

	PutItem(ctx context.Context, p ItemPolicy) error
	ListItems(ctx context.Context) ([]ItemPolicy, error)
	PutStock(ctx context.Context, s StockSnapshot) error
	AddDemandEvents(ctx context.Context, events ...DemandEvent) error

	// Reset clears all data (for demos and tests).
	Reset(ctx context.Context) error
}
