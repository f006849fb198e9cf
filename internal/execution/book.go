package execution

import (
	"sync"

	"squeezetrader/internal/model"
)

// PositionBook tracks a single-instrument long position from broker order
// events. It implements model.PositionReader for live trading, where fills
// arrive on the orders stream rather than from the paper broker.
type PositionBook struct {
	mu  sync.RWMutex
	pos model.Position
}

// NewPositionBook creates a flat book for symbol.
func NewPositionBook(symbol string) *PositionBook {
	return &PositionBook{pos: model.Position{Symbol: symbol, Side: model.SideFlat}}
}

// Position implements model.PositionReader.
func (b *PositionBook) Position() model.Position {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.pos
}

// Apply folds a fill into the position. Non-fill events are ignored.
// It must run before the engine sees the same event.
func (b *PositionBook) Apply(ev model.OrderEvent) model.Position {
	b.mu.Lock()
	defer b.mu.Unlock()

	if (ev.State != model.OrderFilled && ev.State != model.OrderPartFilled) || ev.FillQty <= 0 {
		return b.pos
	}

	switch {
	case ev.Action == model.ActionBuy:
		total := b.pos.AvgPrice*float64(b.pos.Qty) + ev.FillPrice*float64(ev.FillQty)
		b.pos.Qty += ev.FillQty
		b.pos.AvgPrice = total / float64(b.pos.Qty)
		b.pos.Side = model.SideLong
	case ev.Action.Closing():
		b.pos.Qty -= ev.FillQty
		if b.pos.Qty <= 0 {
			b.pos.Qty = 0
			b.pos.AvgPrice = 0
			b.pos.Side = model.SideFlat
		}
	}
	return b.pos
}

// Reset forces the book flat.
func (b *PositionBook) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pos = model.Position{Symbol: b.pos.Symbol, Side: model.SideFlat}
}
