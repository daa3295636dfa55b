/*
Package factory provides JSON to Go conversion for item policies and engine settings.

PURPOSE:
  Converts JSON item definitions into planning.ItemPolicy and JSON settings
  files into planning.ForecastSettings / planning.PlanningConfig. Planners
  edit thresholds in JSON (admin UI, seed files, the HTTP API) and the
  factory produces validated Go structs.

ITEM JSON SCHEMA:
  {
    "item_id": "SKU-1001",
    "name": "Espresso beans 1kg",
    "min_stock": "100",
    "max_stock": "500",
    "safety_stock": "150",
    "reorder_point": "180",
    "lead_time_days": 14,
    "active": true
  }

  Quantities are decimal strings so no precision is lost in transit.
  reorder_point is optional. active defaults to true.

USAGE:
  factory := NewPolicyFactory()

  policy, err := factory.ParseItem(jsonString)
  store.PutItem(ctx, policy)

SEE ALSO:
  - planning/types.go: ItemPolicy definition
  - factory/settings.go: engine settings file
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/replenishment-engine/planning"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// ItemJSON is the JSON representation of an item policy.
type ItemJSON struct {
	ItemID       string           `json:"item_id"`
	Name         string           `json:"name"`
	MinStock     decimal.Decimal  `json:"min_stock"`
	MaxStock     decimal.Decimal  `json:"max_stock"`
	SafetyStock  decimal.Decimal  `json:"safety_stock"`
	ReorderPoint *decimal.Decimal `json:"reorder_point,omitempty"`
	LeadTimeDays int              `json:"lead_time_days"`
	Active       *bool            `json:"active,omitempty"` // default true
}

// =============================================================================
// POLICY FACTORY
// =============================================================================

// PolicyFactory converts JSON item definitions to planning policies.
type PolicyFactory struct{}

// NewPolicyFactory creates a new policy factory.
func NewPolicyFactory() *PolicyFactory {
	return &PolicyFactory{}
}

// ParseItem parses a JSON string into a validated ItemPolicy.
func (f *PolicyFactory) ParseItem(jsonStr string) (planning.ItemPolicy, error) {
	var ij ItemJSON
	if err := json.Unmarshal([]byte(jsonStr), &ij); err != nil {
		return planning.ItemPolicy{}, fmt.Errorf("failed to parse item JSON: %w", err)
	}
	return f.FromJSON(ij)
}

// ParseItems parses a JSON array of items. The first invalid item fails the
// whole batch.
func (f *PolicyFactory) ParseItems(data []byte) ([]planning.ItemPolicy, error) {
	var ijs []ItemJSON
	if err := json.Unmarshal(data, &ijs); err != nil {
		return nil, fmt.Errorf("failed to parse items JSON: %w", err)
	}

	policies := make([]planning.ItemPolicy, 0, len(ijs))
	for i, ij := range ijs {
		p, err := f.FromJSON(ij)
		if err != nil {
			return nil, fmt.Errorf("item %d (%s): %w", i, ij.ItemID, err)
		}
		policies = append(policies, p)
	}
	return policies, nil
}

// FromJSON converts ItemJSON to a validated planning.ItemPolicy.
func (f *PolicyFactory) FromJSON(ij ItemJSON) (planning.ItemPolicy, error) {
	policy := planning.ItemPolicy{
		ItemID:       planning.ItemID(ij.ItemID),
		Name:         ij.Name,
		MinStock:     ij.MinStock,
		MaxStock:     ij.MaxStock,
		SafetyStock:  ij.SafetyStock,
		ReorderPoint: ij.ReorderPoint,
		LeadTimeDays: ij.LeadTimeDays,
		Active:       true,
	}
	if ij.Active != nil {
		policy.Active = *ij.Active
	}

	if err := policy.Validate(); err != nil {
		return planning.ItemPolicy{}, err
	}
	return policy, nil
}

// ToJSON converts an ItemPolicy to ItemJSON.
func (f *PolicyFactory) ToJSON(p planning.ItemPolicy) ItemJSON {
	active := p.Active
	return ItemJSON{
		ItemID:       string(p.ItemID),
		Name:         p.Name,
		MinStock:     p.MinStock,
		MaxStock:     p.MaxStock,
		SafetyStock:  p.SafetyStock,
		ReorderPoint: p.ReorderPoint,
		LeadTimeDays: p.LeadTimeDays,
		Active:       &active,
	}
}
