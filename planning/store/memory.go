// Package store provides in-memory implementations of the planning collaborators.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/replenishment-engine/planning"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu              sync.RWMutex
	items           map[planning.ItemID]planning.ItemPolicy
	itemOrder       []planning.ItemID
	stock           map[planning.ItemID]planning.StockSnapshot
	demand          map[planning.ItemID][]planning.DemandEvent
	forecasts       *planning.LatestIndex[planning.ForecastResult]
	recommendations []planning.Recommendation
	recIndex        map[planning.RecommendationID]int
}

var (
	_ planning.Catalog               = (*Memory)(nil)
	_ planning.Inventory             = (*Memory)(nil)
	_ planning.DemandHistory         = (*Memory)(nil)
	_ planning.ForecastStore         = (*Memory)(nil)
	_ planning.RecommendationHistory = (*Memory)(nil)
	_ planning.Repository            = (*Memory)(nil)
)

func NewMemory() *Memory {
	m := &Memory{}
	m.reset()
	return m
}

// Reset drops everything held by the store.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset()
	return nil
}

func (m *Memory) reset() {
	m.items = make(map[planning.ItemID]planning.ItemPolicy)
	m.itemOrder = nil
	m.stock = make(map[planning.ItemID]planning.StockSnapshot)
	m.demand = make(map[planning.ItemID][]planning.DemandEvent)
	m.forecasts = planning.NewForecastIndex()
	m.recommendations = nil
	m.recIndex = make(map[planning.RecommendationID]int)
}

// =============================================================================
// CATALOG
// =============================================================================

// PutItem inserts or replaces an item policy. Catalog order is first-insert order.
func (m *Memory) PutItem(_ context.Context, p planning.ItemPolicy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[p.ItemID]; !ok {
		m.itemOrder = append(m.itemOrder, p.ItemID)
	}
	m.items[p.ItemID] = p
	return nil
}

func (m *Memory) ActiveItems(_ context.Context) ([]planning.ItemPolicy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []planning.ItemPolicy
	for _, id := range m.itemOrder {
		if p := m.items[id]; p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}

// ListItems returns every item, active or not, in catalog order.
func (m *Memory) ListItems(_ context.Context) ([]planning.ItemPolicy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]planning.ItemPolicy, 0, len(m.itemOrder))
	for _, id := range m.itemOrder {
		out = append(out, m.items[id])
	}
	return out, nil
}

func (m *Memory) GetItem(_ context.Context, id planning.ItemID) (planning.ItemPolicy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.items[id]
	if !ok {
		return planning.ItemPolicy{}, &planning.NotFoundError{Kind: "item", ID: string(id)}
	}
	return p, nil
}

// =============================================================================
// INVENTORY
// =============================================================================

func (m *Memory) PutStock(_ context.Context, s planning.StockSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stock[s.ItemID] = s
	return nil
}

func (m *Memory) StockSnapshot(_ context.Context, id planning.ItemID) (planning.StockSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.stock[id]
	if !ok {
		return planning.StockSnapshot{}, &planning.NotFoundError{Kind: "inventory", ID: string(id)}
	}
	return s, nil
}

// =============================================================================
// DEMAND HISTORY
// =============================================================================

func (m *Memory) AddDemandEvents(_ context.Context, events ...planning.DemandEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	touched := make(map[planning.ItemID]bool)
	for _, e := range events {
		m.demand[e.ItemID] = append(m.demand[e.ItemID], e)
		touched[e.ItemID] = true
	}
	for id := range touched {
		evs := m.demand[id]
		sort.SliceStable(evs, func(i, j int) bool { return evs[i].At.Before(evs[j].At) })
	}
	return nil
}

func (m *Memory) DemandEvents(_ context.Context, id planning.ItemID, from, to time.Time) ([]planning.DemandEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []planning.DemandEvent
	for _, e := range m.demand[id] {
		if e.At.Before(from) || !e.At.Before(to) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// =============================================================================
// FORECASTS (append-only; only the latest per item is reachable)
// =============================================================================

func (m *Memory) SaveForecast(_ context.Context, f planning.ForecastResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f.Points = append([]planning.ForecastPoint(nil), f.Points...)
	m.forecasts.Observe(f)
	return nil
}

func (m *Memory) LatestForecast(_ context.Context, id planning.ItemID) (*planning.ForecastResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.forecasts.Get(id)
	if !ok {
		return nil, nil
	}
	f.Points = append([]planning.ForecastPoint(nil), f.Points...)
	return &f, nil
}

// =============================================================================
// RECOMMENDATIONS
// =============================================================================

func (m *Memory) SaveRecommendation(_ context.Context, r planning.Recommendation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recIndex[r.ID] = len(m.recommendations)
	m.recommendations = append(m.recommendations, r)
	return nil
}

func (m *Memory) LatestByItem(_ context.Context) ([]planning.Recommendation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return planning.LatestRecommendations(m.recommendations), nil
}

func (m *Memory) UpdateStatus(_ context.Context, id planning.RecommendationID, status planning.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.recIndex[id]
	if !ok {
		return &planning.NotFoundError{Kind: "recommendation", ID: string(id)}
	}
	if err := planning.CheckTransition(m.recommendations[i].Status, status); err != nil {
		return err
	}
	m.recommendations[i].Status = status
	return nil
}

// RecommendationsForItem returns the item's history, newest first.
func (m *Memory) RecommendationsForItem(_ context.Context, id planning.ItemID) ([]planning.Recommendation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []planning.Recommendation
	for i := len(m.recommendations) - 1; i >= 0; i-- {
		if m.recommendations[i].ItemID == id {
			out = append(out, m.recommendations[i])
		}
	}
	return out, nil
}

func (m *Memory) GetRecommendation(_ context.Context, id planning.RecommendationID) (planning.Recommendation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.recIndex[id]
	if !ok {
		return planning.Recommendation{}, &planning.NotFoundError{Kind: "recommendation", ID: string(id)}
	}
	return m.recommendations[i], nil
}
