// Package execution implements the order side of the engine: a simulated
// broker for backtests, a stream router that turns engine calls into
// published intents, position tracking from order events, and the trade
// journal.
package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"squeezetrader/internal/model"
)

// Order names reported on events for the bracket legs.
const (
	NameStopLoss     = "Stop loss"
	NameProfitTarget = "Profit target"
)

var (
	// ErrEntryWorking is returned for an entry while one is working or filled.
	ErrEntryWorking = errors.New("execution: long entry already working or filled")
	// ErrNotLong is returned for an exit with no position and no working entry.
	ErrNotLong = errors.New("execution: no long position to exit")
)

// Fill represents a simulated order fill.
type Fill struct {
	OrderID  string            `json:"order_id"`
	Name     string            `json:"name"`
	Symbol   string            `json:"symbol"`
	Action   model.OrderAction `json:"action"`
	Qty      int64             `json:"qty"`
	Price    float64           `json:"price"`
	Slippage float64           `json:"slippage"` // points
	Reason   string            `json:"reason,omitempty"`
	FilledAt time.Time         `json:"filled_at"`
}

// PaperOptions configure the simulation.
type PaperOptions struct {
	// SlippageTicks is applied against the trader on market and stop fills.
	SlippageTicks int
	// EventBuffer sizes the Events channel.
	EventBuffer int
}

type paperOrder struct {
	id     string
	name   string
	action model.OrderAction
	qty    int64
	price  float64 // 0 for market
	reason string
}

// PaperBroker simulates a futures broker for one instrument.
//
// Market orders submitted while bar N is being evaluated fill at the open of
// bar N+1. Bracket orders (stop loss and profit target) are placed when the
// entry fills and are checked on every following bar, stop first. It enforces
// one long entry at a time. Order events are delivered on Events in the order
// they happen.
type PaperBroker struct {
	mu   sync.Mutex
	inst model.Instrument
	opts PaperOptions
	log  *slog.Logger

	pos model.Position

	entry *paperOrder // working market buy
	exit  *paperOrder // working market sell
	stop  *paperOrder // live bracket legs
	tgt   *paperOrder

	// Prices applied to the next bracket, updated by SetStopLoss/SetProfitTarget.
	stopPrice, targetPrice float64

	fills  []Fill
	events chan model.OrderEvent
	last   time.Time

	// OnFill is called for every fill, outside the broker lock.
	OnFill func(Fill)
}

// NewPaperBroker creates a paper broker for inst.
func NewPaperBroker(inst model.Instrument, opts PaperOptions, log *slog.Logger) *PaperBroker {
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 256
	}
	if log == nil {
		log = slog.Default()
	}
	return &PaperBroker{
		inst:   inst,
		opts:   opts,
		log:    log.With(slog.String("component", "paper"), slog.String("symbol", inst.Symbol)),
		pos:    model.Position{Symbol: inst.Symbol, Side: model.SideFlat},
		fills:  make([]Fill, 0, 256),
		events: make(chan model.OrderEvent, opts.EventBuffer),
	}
}

// Events returns the order event stream.
func (p *PaperBroker) Events() <-chan model.OrderEvent { return p.events }

// Position implements model.PositionReader.
func (p *PaperBroker) Position() model.Position {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pos
}

// GetFills returns a snapshot of all fills.
func (p *PaperBroker) GetFills() []Fill {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make([]Fill, len(p.fills))
	copy(cp, p.fills)
	return cp
}

// EnterLong submits a market buy for the next bar open.
func (p *PaperBroker) EnterLong(ctx context.Context, qty int64, tag string) error {
	p.mu.Lock()
	if p.entry != nil || !p.pos.IsFlat() {
		ev := p.event(&paperOrder{id: uuid.NewString(), name: tag, action: model.ActionBuy, qty: qty},
			model.OrderRejected, 0, 0, "entries per direction exceeded")
		p.mu.Unlock()
		p.emit(ctx, ev)
		return ErrEntryWorking
	}
	if qty <= 0 {
		p.mu.Unlock()
		return fmt.Errorf("execution: invalid entry quantity %d", qty)
	}
	p.entry = &paperOrder{id: uuid.NewString(), name: tag, action: model.ActionBuy, qty: qty}
	ev := p.event(p.entry, model.OrderWorking, 0, 0, "")
	p.mu.Unlock()

	p.emit(ctx, ev)
	return nil
}

// SetStopLoss sets the stop for the next entry and moves a live stop.
func (p *PaperBroker) SetStopLoss(ctx context.Context, _ string, price float64) error {
	return p.setBracket(ctx, &p.stopPrice, &p.stop, price)
}

// SetProfitTarget sets the target for the next entry and moves a live target.
func (p *PaperBroker) SetProfitTarget(ctx context.Context, _ string, price float64) error {
	return p.setBracket(ctx, &p.targetPrice, &p.tgt, price)
}

func (p *PaperBroker) setBracket(ctx context.Context, next *float64, leg **paperOrder, price float64) error {
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return fmt.Errorf("execution: invalid bracket price %v", price)
	}
	p.mu.Lock()
	*next = price
	var ev model.OrderEvent
	changed := *leg != nil && (*leg).price != price
	if changed {
		(*leg).price = price
		ev = p.event(*leg, model.OrderWorking, 0, 0, "")
	}
	p.mu.Unlock()

	if changed {
		p.emit(ctx, ev)
	}
	return nil
}

// ExitLong submits a market sell for the next bar open. A working entry that
// has not filled yet is cancelled instead.
func (p *PaperBroker) ExitLong(ctx context.Context, tag, reason string) error {
	p.mu.Lock()
	switch {
	case p.entry != nil:
		ev := p.event(p.entry, model.OrderCancelled, 0, 0, reason)
		p.entry = nil
		p.mu.Unlock()
		p.emit(ctx, ev)
		return nil
	case !p.pos.IsLong():
		p.mu.Unlock()
		return ErrNotLong
	case p.exit != nil:
		p.mu.Unlock()
		return nil
	}
	p.exit = &paperOrder{id: uuid.NewString(), name: reason, action: model.ActionSell, qty: p.pos.Qty, reason: reason}
	ev := p.event(p.exit, model.OrderWorking, 0, 0, "")
	p.mu.Unlock()

	p.emit(ctx, ev)
	return nil
}

// OnBar matches working orders against a new bar. Call it before the engine
// evaluates the same bar.
func (p *PaperBroker) OnBar(ctx context.Context, bar model.Bar) {
	p.mu.Lock()
	p.last = bar.Time
	var evs []model.OrderEvent
	var fills []Fill

	if o := p.entry; o != nil {
		p.entry = nil
		px := bar.Open + p.slip()
		f := p.fill(o, px, bar.Time)
		fills = append(fills, f)
		evs = append(evs, p.event(o, model.OrderFilled, o.qty, px, ""))
		p.pos = model.Position{Symbol: p.inst.Symbol, Side: model.SideLong, Qty: o.qty, AvgPrice: px}

		if p.stopPrice > 0 {
			p.stop = &paperOrder{id: uuid.NewString(), name: NameStopLoss, action: model.ActionSell, qty: o.qty, price: p.stopPrice}
			evs = append(evs, p.event(p.stop, model.OrderWorking, 0, 0, ""))
		}
		if p.targetPrice > 0 {
			p.tgt = &paperOrder{id: uuid.NewString(), name: NameProfitTarget, action: model.ActionSell, qty: o.qty, price: p.targetPrice}
			evs = append(evs, p.event(p.tgt, model.OrderWorking, 0, 0, ""))
		}
	}

	if o := p.exit; o != nil && p.pos.IsLong() {
		p.exit = nil
		px := bar.Open - p.slip()
		fills = append(fills, p.fill(o, px, bar.Time))
		evs = append(evs, p.closeLong(o, px)...)
	}

	if p.pos.IsLong() {
		switch {
		case p.stop != nil && bar.Low <= p.stop.price:
			// Gaps through the stop fill at the open.
			px := math.Min(bar.Open, p.stop.price) - p.slip()
			o := p.stop
			fills = append(fills, p.fill(o, px, bar.Time))
			evs = append(evs, p.closeLong(o, px)...)
		case p.tgt != nil && bar.High >= p.tgt.price:
			px := math.Max(bar.Open, p.tgt.price)
			o := p.tgt
			fills = append(fills, p.fill(o, px, bar.Time))
			evs = append(evs, p.closeLong(o, px)...)
		}
	}
	p.mu.Unlock()

	for _, f := range fills {
		p.log.Info("paper fill",
			slog.String("order_id", f.OrderID),
			slog.String("name", f.Name),
			slog.String("action", string(f.Action)),
			slog.Int64("qty", f.Qty),
			slog.Float64("price", f.Price),
		)
		if p.OnFill != nil {
			p.OnFill(f)
		}
	}
	for _, ev := range evs {
		p.emit(ctx, ev)
	}
}

// closeLong flattens the position filled by o and cancels the rest of the
// bracket. Caller holds the lock.
func (p *PaperBroker) closeLong(o *paperOrder, px float64) []model.OrderEvent {
	evs := []model.OrderEvent{p.event(o, model.OrderFilled, o.qty, px, o.reason)}
	for _, leg := range []*paperOrder{p.stop, p.tgt, p.exit} {
		if leg != nil && leg != o {
			evs = append(evs, p.event(leg, model.OrderCancelled, 0, 0, "position closed"))
		}
	}
	p.stop, p.tgt, p.exit = nil, nil, nil
	p.pos = model.Position{Symbol: p.inst.Symbol, Side: model.SideFlat}
	return evs
}

func (p *PaperBroker) fill(o *paperOrder, px float64, at time.Time) Fill {
	f := Fill{
		OrderID:  o.id,
		Name:     o.name,
		Symbol:   p.inst.Symbol,
		Action:   o.action,
		Qty:      o.qty,
		Price:    px,
		Reason:   o.reason,
		FilledAt: at,
	}
	if o.price == 0 || o.name == NameStopLoss {
		f.Slippage = p.slip()
	}
	p.fills = append(p.fills, f)
	return f
}

func (p *PaperBroker) slip() float64 {
	return float64(p.opts.SlippageTicks) * p.inst.TickSize
}

func (p *PaperBroker) event(o *paperOrder, st model.OrderState, qty int64, px float64, reason string) model.OrderEvent {
	return model.OrderEvent{
		OrderID:   o.id,
		Name:      o.name,
		Symbol:    p.inst.Symbol,
		State:     st,
		Action:    o.action,
		FillQty:   qty,
		FillPrice: px,
		Time:      p.last,
		Reason:    reason,
	}
}

func (p *PaperBroker) emit(ctx context.Context, ev model.OrderEvent) {
	select {
	case p.events <- ev:
	case <-ctx.Done():
		p.log.Warn("order event dropped on shutdown", slog.String("order_id", ev.OrderID), slog.String("state", string(ev.State)))
	}
}
