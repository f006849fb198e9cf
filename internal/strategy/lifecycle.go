package strategy

import (
	"context"
	"log/slog"

	"squeezetrader/internal/model"
)

// PositionApplier is a position source that folds fills in itself. When the
// engine's position reader implements it, OnOrderEvent applies every event on
// the engine goroutine before reconciling, so position and levels change in
// the same order the events arrive.
type PositionApplier interface {
	model.PositionReader
	Apply(ev model.OrderEvent) model.Position
}

// OnOrderEvent reconciles an order-state notification with the engine state.
//
// A filled closing order that leaves the position flat clears both trailing
// levels; this is the only place they are cleared. Cancels and rejects are
// reported but change nothing: the next bar re-derives and re-issues intents.
func (e *Engine) OnOrderEvent(ctx context.Context, ev model.OrderEvent) {
	if a, ok := e.positions.(PositionApplier); ok {
		a.Apply(ev)
	}

	attrs := []any{
		slog.String("order_id", ev.OrderID),
		slog.String("name", ev.Name),
		slog.String("state", string(ev.State)),
		slog.String("action", string(ev.Action)),
	}

	switch ev.State {
	case model.OrderFilled, model.OrderPartFilled:
		e.log.Info("order filled", append(attrs,
			slog.Int64("qty", ev.FillQty),
			slog.Float64("price", ev.FillPrice))...)
	case model.OrderCancelled, model.OrderRejected:
		e.log.Warn("order not filled", append(attrs, slog.String("reason", ev.Reason))...)
	default:
		e.log.Debug("order update", attrs...)
	}

	if e.Hooks.OnOrderEvent != nil {
		e.Hooks.OnOrderEvent(ev)
	}

	if ev.State != model.OrderFilled || !ev.Action.Closing() {
		return
	}
	pos := e.positions.Position()
	if !pos.IsFlat() {
		return
	}

	prev := e.state
	e.state = e.state.ClearLevels()
	if prev != e.state {
		e.log.Info("position flat, trailing levels reset",
			slog.String("stop", prev.TrailingStop.String()),
			slog.String("target", prev.TrailingTarget.String()))
		if e.Hooks.OnStateChange != nil {
			e.Hooks.OnStateChange(e.state)
		}
	}
}
