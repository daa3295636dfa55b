package planning

import "github.com/shopspring/decimal"

// StockPosition is the planning view of a StockSnapshot.
//
// NetAvailable = Available - Reserved. InTransit is informational only: it is
// not usable yet, so it is never added to NetAvailable. A transient negative
// NetAvailable from a racing caller is passed through unchanged so that the
// projection sees the true shortfall.
type StockPosition struct {
	ItemID       ItemID
	OnHand       decimal.Decimal
	Reserved     decimal.Decimal
	InTransit    decimal.Decimal
	NetAvailable decimal.Decimal
}

// PositionOf computes the StockPosition of a snapshot.
func PositionOf(s StockSnapshot) StockPosition {
	return StockPosition{
		ItemID:       s.ItemID,
		OnHand:       s.Available,
		Reserved:     s.Reserved,
		InTransit:    s.InTransit,
		NetAvailable: s.Available.Sub(s.Reserved),
	}
}

// ReportedNetAvailable clamps NetAvailable at zero for display.
func (p StockPosition) ReportedNetAvailable() decimal.Decimal {
	if p.NetAvailable.IsNegative() {
		return decimal.Zero
	}
	return p.NetAvailable
}
