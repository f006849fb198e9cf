package model

// Side is the direction of an open position.
type Side string

const (
	SideFlat Side = "FLAT"
	SideLong Side = "LONG"
)

// Position is the broker-side view of the instrument position.
// The engine only reads it; it changes through fills.
type Position struct {
	Symbol   string  `json:"symbol"`
	Side     Side    `json:"side"`
	Qty      int64   `json:"qty"`
	AvgPrice float64 `json:"avg_price"`
}

// IsFlat reports whether no contracts are held.
func (p Position) IsFlat() bool {
	return p.Side != SideLong || p.Qty == 0
}

// IsLong reports whether a long position is open.
func (p Position) IsLong() bool {
	return p.Side == SideLong && p.Qty > 0
}

// UnrealizedPnL returns open profit in points times contracts at the given price.
func (p Position) UnrealizedPnL(price float64) float64 {
	if !p.IsLong() {
		return 0
	}
	return (price - p.AvgPrice) * float64(p.Qty)
}
