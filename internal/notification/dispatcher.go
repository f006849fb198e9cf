package notification

import (
	"context"
	"fmt"
	"log"

	"squeezetrader/internal/model"
	"squeezetrader/internal/strategy"
)

// Dispatcher queues alerts and delivers them on its own goroutine so the
// engine never waits on a slow webhook. A full queue drops the alert.
type Dispatcher struct {
	n  Notifier
	ch chan Alert

	// OnDrop is called when the queue is full.
	OnDrop func(Alert)
}

// NewDispatcher creates a dispatcher with the given queue size.
func NewDispatcher(n Notifier, queue int) *Dispatcher {
	if queue <= 0 {
		queue = 64
	}
	return &Dispatcher{n: n, ch: make(chan Alert, queue)}
}

// Notify enqueues an alert without blocking.
func (d *Dispatcher) Notify(a Alert) {
	select {
	case d.ch <- a:
	default:
		if d.OnDrop != nil {
			d.OnDrop(a)
		} else {
			log.Printf("[notify] queue full, dropping %q", a.Title)
		}
	}
}

// Run delivers queued alerts until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case a := <-d.ch:
			if err := d.n.Send(ctx, a); err != nil {
				log.Printf("[notify] send %q: %v", a.Title, err)
			}
		}
	}
}

// EngineHooks returns strategy hooks that raise alerts for entries, exits,
// rejected orders and routing failures on symbol.
func (d *Dispatcher) EngineHooks(symbol string) strategy.Hooks {
	return strategy.Hooks{
		OnEntry: func(bar model.Bar, e strategy.EntryDecision) {
			d.Notify(Alert{
				Level:   AlertInfo,
				Symbol:  symbol,
				Title:   "Long entry",
				Message: fmt.Sprintf("close %.2f stop %.2f target %.2f", bar.Close, e.Stop, e.Target),
				Time:    bar.Time,
			})
		},
		OnExit: func(bar model.Bar, reason string) {
			d.Notify(Alert{
				Level:   AlertInfo,
				Symbol:  symbol,
				Title:   "Exit " + reason,
				Message: fmt.Sprintf("close %.2f", bar.Close),
				Time:    bar.Time,
			})
		},
		OnOrderEvent: func(ev model.OrderEvent) {
			if ev.State != model.OrderRejected {
				return
			}
			d.Notify(Alert{
				Level:   AlertWarning,
				Symbol:  symbol,
				Title:   "Order rejected",
				Message: fmt.Sprintf("%s %s: %s", ev.Action, ev.Name, ev.Reason),
				Time:    ev.Time,
			})
		},
		OnIntentError: func(op string, err error) {
			d.Notify(Alert{
				Level:   AlertCritical,
				Symbol:  symbol,
				Title:   op + " failed",
				Message: err.Error(),
			})
		},
	}
}
