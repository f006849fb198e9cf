package indicator

import (
	"context"
	"fmt"

	"squeezetrader/internal/model"
	"squeezetrader/internal/strategy"
)

// Engine computes snapshots for many symbols, one Provider per symbol.
// Designed for single-goroutine usage, no locks needed.
type Engine struct {
	cfg       Config
	providers map[string]*Provider
}

// NewEngine validates cfg and returns an empty engine.
func NewEngine(cfg Config) (*Engine, error) {
	if _, err := NewProvider(cfg); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, providers: make(map[string]*Provider, 4)}, nil
}

// Process feeds a completed bar to its symbol's provider, creating it on
// first sight.
func (e *Engine) Process(bar model.Bar) (model.IndicatorSnapshot, bool) {
	p, ok := e.providers[bar.Symbol]
	if !ok {
		// cfg was validated in NewEngine
		p, _ = NewProvider(e.cfg)
		e.providers[bar.Symbol] = p
	}
	return p.Update(bar)
}

// Provider returns the provider for symbol, if any.
func (e *Engine) Provider(symbol string) (*Provider, bool) {
	p, ok := e.providers[symbol]
	return p, ok
}

// Run consumes bars and emits one BarEvent per bar, including not-ready bars
// with a NaN snapshot. Blocks until ctx is done or bars is closed, then
// closes out.
func (e *Engine) Run(ctx context.Context, bars <-chan model.Bar, out chan<- strategy.BarEvent) error {
	defer close(out)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case bar, ok := <-bars:
			if !ok {
				return nil
			}
			snap, _ := e.Process(bar)
			select {
			case out <- strategy.BarEvent{Bar: bar, Snapshot: snap}:
			case <-ctx.Done():
				return fmt.Errorf("indicator: emit %s seq %d: %w", bar.Symbol, bar.Seq, ctx.Err())
			}
		}
	}
}
