package gateway

import (
	"time"

	"squeezetrader/internal/model"
	"squeezetrader/internal/strategy"
)

// Event is one trade-management event on the events channel.
type Event struct {
	Type   string            `json:"type"` // entry, stop, target, exit, order
	Symbol string            `json:"symbol"`
	Time   time.Time         `json:"time"`
	Price  float64           `json:"price,omitempty"`
	Stop   float64           `json:"stop,omitempty"`
	Target float64           `json:"target,omitempty"`
	Reason string            `json:"reason,omitempty"`
	Order  *model.OrderEvent `json:"order,omitempty"`
}

// EngineHooks returns strategy hooks that publish entries, ratchets, exits
// and order events for symbol on the events channel.
func (h *Hub) EngineHooks(symbol string) strategy.Hooks {
	send := func(ev Event) {
		ev.Symbol = symbol
		if ev.Time.IsZero() {
			ev.Time = time.Now().UTC()
		}
		h.Broadcast(ChannelEvents, ev)
	}
	return strategy.Hooks{
		OnEntry: func(bar model.Bar, d strategy.EntryDecision) {
			send(Event{Type: "entry", Time: bar.Time, Price: bar.Close, Stop: d.Stop, Target: d.Target})
		},
		OnStopRatchet: func(price float64) {
			send(Event{Type: "stop", Stop: price})
		},
		OnTargetRatchet: func(price float64) {
			send(Event{Type: "target", Target: price})
		},
		OnExit: func(bar model.Bar, reason string) {
			send(Event{Type: "exit", Time: bar.Time, Price: bar.Close, Reason: reason})
		},
		OnOrderEvent: func(ev model.OrderEvent) {
			send(Event{Type: "order", Time: ev.Time, Price: ev.FillPrice, Reason: ev.Reason, Order: &ev})
		},
	}
}
