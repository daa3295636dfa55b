/*
Package sqlite provides a SQLite-backed implementation of the planning collaborators.

PURPOSE:
  Implements planning.Repository (catalog, inventory, demand history,
  forecast and recommendation stores) on a single SQLite database. The
  PostgreSQL store in store/postgres carries the same schema with dialect
  differences only.

APPEND-ONLY ENFORCEMENT:
  - forecasts: INSERT only; the latest row per item wins
  - recommendations: INSERT only, except the status column which moves
    through the approval workflow (planning.CheckTransition)
  - demand_events: INSERT only

KEY TABLES:
  items:            Item policies (thresholds, lead time, active flag)
  stock_snapshots:  One current snapshot per item
  demand_events:    Raw demand records
  forecasts:        Forecast results, points stored as JSON
  recommendations:  Planning decisions and their approval status

INDEXES:
  - idx_demand_item_time: history window scans (hot path of forecasting)
  - idx_forecasts_item_time: latest forecast lookup
  - idx_recommendations_item: per-item history

STORAGE FORMATS:
  Quantities are stored as TEXT through decimal.Decimal's sql.Scanner and
  driver.Valuer so no precision is lost. Times are UTC TEXT in a fixed-width
  layout so that string comparison orders them correctly.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. With PostgreSQL the database handles
  this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time

USAGE:
  store, err := sqlite.New("./data/planning.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := planning.NewEngine(store, store, store, store, planning.DefaultPlanningConfig())

SEE ALSO:
  - planning/store.go: Interface definitions
  - planning/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/replenishment-engine/planning"
)

// timeLayout is RFC3339 with fixed nanosecond width; lexical order equals
// chronological order for UTC values.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements planning.Repository using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ planning.Repository = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS items (
		item_id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		min_stock TEXT NOT NULL,
		max_stock TEXT NOT NULL,
		safety_stock TEXT NOT NULL,
		reorder_point TEXT,
		lead_time_days INTEGER NOT NULL DEFAULT 0,
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS stock_snapshots (
		item_id TEXT PRIMARY KEY REFERENCES items(item_id),
		available TEXT NOT NULL,
		reserved TEXT NOT NULL,
		in_transit TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Raw demand (append-only)
	CREATE TABLE IF NOT EXISTS demand_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		item_id TEXT NOT NULL REFERENCES items(item_id),
		occurred_at TEXT NOT NULL,
		quantity REAL NOT NULL,
		fulfilled INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_demand_item_time
		ON demand_events(item_id, occurred_at);

	-- Forecast results (append-only)
	CREATE TABLE IF NOT EXISTS forecasts (
		id TEXT PRIMARY KEY,
		item_id TEXT NOT NULL,
		granularity TEXT NOT NULL,
		series_end TEXT NOT NULL,
		observations INTEGER NOT NULL,
		residual_mean REAL NOT NULL,
		residual_std_dev REAL NOT NULL,
		params_json TEXT NOT NULL,
		points_json TEXT NOT NULL,
		generated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_forecasts_item_time
		ON forecasts(item_id, generated_at);

	-- Recommendations (append-only except status)
	CREATE TABLE IF NOT EXISTS recommendations (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		item_id TEXT NOT NULL,
		current_stock TEXT NOT NULL,
		reserved_stock TEXT NOT NULL,
		available_stock TEXT NOT NULL,
		in_transit_stock TEXT NOT NULL,
		forecasted_demand TEXT NOT NULL,
		projected_stock TEXT NOT NULL,
		action TEXT NOT NULL,
		recommended_quantity TEXT NOT NULL,
		recommended_date TEXT NOT NULL,
		priority TEXT NOT NULL,
		reason TEXT NOT NULL,
		status TEXT NOT NULL,
		forecast_id TEXT,
		generated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_recommendations_item
		ON recommendations(item_id, seq);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// CATALOG (planning.Catalog)
// =============================================================================

const itemColumns = `item_id, name, min_stock, max_stock, safety_stock, reorder_point, lead_time_days, active`

// PutItem inserts or updates an item policy.
func (s *Store) PutItem(ctx context.Context, p planning.ItemPolicy) error {
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO items (` + itemColumns + `, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(item_id) DO UPDATE SET
			name = excluded.name,
			min_stock = excluded.min_stock,
			max_stock = excluded.max_stock,
			safety_stock = excluded.safety_stock,
			reorder_point = excluded.reorder_point,
			lead_time_days = excluded.lead_time_days,
			active = excluded.active,
			updated_at = excluded.updated_at
	`

	now := formatTime(time.Now())
	_, err := s.db.ExecContext(ctx, query,
		p.ItemID, p.Name, p.MinStock, p.MaxStock, p.SafetyStock,
		nullDecimal(p.ReorderPoint), p.LeadTimeDays, p.Active, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save item: %w", err)
	}
	return nil
}

func (s *Store) GetItem(ctx context.Context, id planning.ItemID) (planning.ItemPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, "SELECT "+itemColumns+" FROM items WHERE item_id = ?", id)
	p, err := scanItem(row)
	if err == sql.ErrNoRows {
		return planning.ItemPolicy{}, &planning.NotFoundError{Kind: "item", ID: string(id)}
	}
	return p, err
}

// ActiveItems returns active items in insertion order.
func (s *Store) ActiveItems(ctx context.Context) ([]planning.ItemPolicy, error) {
	return s.queryItems(ctx, "SELECT "+itemColumns+" FROM items WHERE active = 1 ORDER BY rowid")
}

// ListItems returns all items, active or not, in insertion order.
func (s *Store) ListItems(ctx context.Context) ([]planning.ItemPolicy, error) {
	return s.queryItems(ctx, "SELECT "+itemColumns+" FROM items ORDER BY rowid")
}

func (s *Store) queryItems(ctx context.Context, query string, args ...any) ([]planning.ItemPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []planning.ItemPolicy
	for rows.Next() {
		p, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (planning.ItemPolicy, error) {
	var p planning.ItemPolicy
	var reorder decimal.NullDecimal
	if err := row.Scan(
		&p.ItemID, &p.Name, &p.MinStock, &p.MaxStock, &p.SafetyStock,
		&reorder, &p.LeadTimeDays, &p.Active,
	); err != nil {
		return planning.ItemPolicy{}, err
	}
	if reorder.Valid {
		rp := reorder.Decimal
		p.ReorderPoint = &rp
	}
	return p, nil
}

// =============================================================================
// INVENTORY (planning.Inventory)
// =============================================================================

// PutStock replaces the current snapshot of an item.
func (s *Store) PutStock(ctx context.Context, snap planning.StockSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap.UpdatedAt.IsZero() {
		snap.UpdatedAt = time.Now()
	}

	query := `
		INSERT INTO stock_snapshots (item_id, available, reserved, in_transit, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(item_id) DO UPDATE SET
			available = excluded.available,
			reserved = excluded.reserved,
			in_transit = excluded.in_transit,
			updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		snap.ItemID, snap.Available, snap.Reserved, snap.InTransit, formatTime(snap.UpdatedAt),
	)
	if isForeignKeyError(err) {
		return &planning.NotFoundError{Kind: "item", ID: string(snap.ItemID)}
	}
	if err != nil {
		return fmt.Errorf("failed to save stock snapshot: %w", err)
	}
	return nil
}

func (s *Store) StockSnapshot(ctx context.Context, id planning.ItemID) (planning.StockSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var snap planning.StockSnapshot
	var updatedAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT item_id, available, reserved, in_transit, updated_at FROM stock_snapshots WHERE item_id = ?", id,
	).Scan(&snap.ItemID, &snap.Available, &snap.Reserved, &snap.InTransit, &updatedAt)

	if err == sql.ErrNoRows {
		return planning.StockSnapshot{}, &planning.NotFoundError{Kind: "inventory", ID: string(id)}
	}
	if err != nil {
		return planning.StockSnapshot{}, err
	}
	if snap.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return planning.StockSnapshot{}, err
	}
	return snap, nil
}

// =============================================================================
// DEMAND HISTORY (planning.DemandHistory)
// =============================================================================

// AddDemandEvents appends demand events atomically.
func (s *Store) AddDemandEvents(ctx context.Context, events ...planning.DemandEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	stmt, err := sqlTx.PrepareContext(ctx,
		"INSERT INTO demand_events (item_id, occurred_at, quantity, fulfilled) VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range events {
		if e.Quantity < 0 {
			return &planning.ValidationError{Field: "quantity", Message: "must not be negative"}
		}
		_, err := stmt.ExecContext(ctx, e.ItemID, formatTime(e.At), e.Quantity, e.Fulfilled)
		if isForeignKeyError(err) {
			return &planning.NotFoundError{Kind: "item", ID: string(e.ItemID)}
		}
		if err != nil {
			return fmt.Errorf("failed to append demand event: %w", err)
		}
	}

	return sqlTx.Commit()
}

// DemandEvents returns events with occurred_at in [from, to), oldest first.
func (s *Store) DemandEvents(ctx context.Context, id planning.ItemID, from, to time.Time) ([]planning.DemandEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT item_id, occurred_at, quantity, fulfilled FROM demand_events
		WHERE item_id = ? AND occurred_at >= ? AND occurred_at < ?
		ORDER BY occurred_at, id
	`, id, formatTime(from), formatTime(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []planning.DemandEvent
	for rows.Next() {
		var e planning.DemandEvent
		var at string
		if err := rows.Scan(&e.ItemID, &at, &e.Quantity, &e.Fulfilled); err != nil {
			return nil, err
		}
		if e.At, err = parseTime("at", at); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// =============================================================================
// FORECASTS (planning.ForecastStore)
// =============================================================================

func (s *Store) SaveForecast(ctx context.Context, f planning.ForecastResult) error {
	paramsJSON, err := json.Marshal(f.Params)
	if err != nil {
		return err
	}
	pointsJSON, err := json.Marshal(f.Points)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO forecasts
		(id, item_id, granularity, series_end, observations, residual_mean, residual_std_dev,
		 params_json, points_json, generated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		f.ID, f.ItemID, f.Granularity, f.SeriesEnd, f.Observations, f.ResidualMean, f.ResidualStdDev,
		string(paramsJSON), string(pointsJSON), formatTime(f.GeneratedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save forecast: %w", err)
	}
	return nil
}

// LatestForecast returns the newest forecast of an item, or nil if none exists.
func (s *Store) LatestForecast(ctx context.Context, id planning.ItemID) (*planning.ForecastResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var f planning.ForecastResult
	var paramsJSON, pointsJSON, generatedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, item_id, granularity, series_end, observations, residual_mean, residual_std_dev,
		       params_json, points_json, generated_at
		FROM forecasts WHERE item_id = ?
		ORDER BY generated_at DESC, rowid DESC LIMIT 1
	`, id).Scan(
		&f.ID, &f.ItemID, &f.Granularity, &f.SeriesEnd, &f.Observations, &f.ResidualMean, &f.ResidualStdDev,
		&paramsJSON, &pointsJSON, &generatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(paramsJSON), &f.Params); err != nil {
		return nil, fmt.Errorf("decode forecast params: %w", err)
	}
	if err := json.Unmarshal([]byte(pointsJSON), &f.Points); err != nil {
		return nil, fmt.Errorf("decode forecast points: %w", err)
	}
	if f.GeneratedAt, err = parseTime("generated_at", generatedAt); err != nil {
		return nil, err
	}
	return &f, nil
}

// =============================================================================
// RECOMMENDATIONS (planning.RecommendationHistory)
// =============================================================================

const recommendationColumns = `
	id, item_id, current_stock, reserved_stock, available_stock, in_transit_stock,
	forecasted_demand, projected_stock, action, recommended_quantity, recommended_date,
	priority, reason, status, forecast_id, generated_at`

func (s *Store) SaveRecommendation(ctx context.Context, r planning.Recommendation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO recommendations ("+recommendationColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		r.ID, r.ItemID, r.CurrentStock, r.ReservedStock, r.AvailableStock, r.InTransitStock,
		r.ForecastedDemand, r.ProjectedStock, r.Action, r.RecommendedQuantity, formatTime(r.RecommendedDate),
		r.Priority, r.Reason, r.Status, nullString(string(r.ForecastID)), formatTime(r.GeneratedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save recommendation: %w", err)
	}
	return nil
}

// LatestByItem returns the newest recommendation per item, highest priority first.
func (s *Store) LatestByItem(ctx context.Context) ([]planning.Recommendation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT "+recommendationColumns+" FROM recommendations ORDER BY seq")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	idx := planning.NewRecommendationIndex()
	for rows.Next() {
		r, err := scanRecommendation(rows)
		if err != nil {
			return nil, err
		}
		idx.Observe(r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	latest := idx.Values()
	planning.SortByPriority(latest)
	return latest, nil
}

// RecommendationsForItem returns the item's history, newest first.
func (s *Store) RecommendationsForItem(ctx context.Context, id planning.ItemID) ([]planning.Recommendation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+recommendationColumns+" FROM recommendations WHERE item_id = ? ORDER BY seq DESC", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []planning.Recommendation
	for rows.Next() {
		r, err := scanRecommendation(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

func (s *Store) GetRecommendation(ctx context.Context, id planning.RecommendationID) (planning.Recommendation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, "SELECT "+recommendationColumns+" FROM recommendations WHERE id = ?", id)
	r, err := scanRecommendation(row)
	if err == sql.ErrNoRows {
		return planning.Recommendation{}, &planning.NotFoundError{Kind: "recommendation", ID: string(id)}
	}
	return r, err
}

// UpdateStatus applies a workflow transition. The current status is read
// and written in one transaction so concurrent approvals cannot both win.
func (s *Store) UpdateStatus(ctx context.Context, id planning.RecommendationID, status planning.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	var current planning.Status
	err = sqlTx.QueryRowContext(ctx, "SELECT status FROM recommendations WHERE id = ?", id).Scan(&current)
	if err == sql.ErrNoRows {
		return &planning.NotFoundError{Kind: "recommendation", ID: string(id)}
	}
	if err != nil {
		return err
	}

	if err := planning.CheckTransition(current, status); err != nil {
		return err
	}

	if _, err := sqlTx.ExecContext(ctx, "UPDATE recommendations SET status = ? WHERE id = ?", status, id); err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	return sqlTx.Commit()
}

func scanRecommendation(row scanner) (planning.Recommendation, error) {
	var r planning.Recommendation
	var recommendedDate, generatedAt string
	var forecastID sql.NullString
	if err := row.Scan(
		&r.ID, &r.ItemID, &r.CurrentStock, &r.ReservedStock, &r.AvailableStock, &r.InTransitStock,
		&r.ForecastedDemand, &r.ProjectedStock, &r.Action, &r.RecommendedQuantity, &recommendedDate,
		&r.Priority, &r.Reason, &r.Status, &forecastID, &generatedAt,
	); err != nil {
		return planning.Recommendation{}, err
	}
	var err error
	if r.RecommendedDate, err = parseTime("recommended_date", recommendedDate); err != nil {
		return planning.Recommendation{}, err
	}
	if r.GeneratedAt, err = parseTime("generated_at", generatedAt); err != nil {
		return planning.Recommendation{}, err
	}
	r.ForecastID = planning.ForecastID(forecastID.String)
	return r, nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"recommendations", "forecasts", "demand_events", "stock_snapshots", "items"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime reads a column written by formatTime.
func parseTime(column, s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("corrupt %s %q: %w", column, s, err)
	}
	return t.UTC(), nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func isForeignKeyError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
