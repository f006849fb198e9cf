// Package strategy implements the ATR/EMA squeeze signal and trailing engine.
//
// The Engine receives completed bars with their indicator snapshot, tracks the
// squeeze latch, evaluates long entries while flat, ratchets the protective
// stop and profit target while long, and reconciles order events. It emits
// intents through a model.OrderRouter and never blocks on fills.
package strategy

import (
	"context"
	"log/slog"
	"time"

	"squeezetrader/internal/logger"
	"squeezetrader/internal/model"
)

// BarEvent pairs a completed bar with the indicator values computed for it.
type BarEvent struct {
	Bar      model.Bar
	Snapshot model.IndicatorSnapshot
}

// SessionClock reports whether a bar closes inside the pre-close exit window.
type SessionClock interface {
	NearClose(t time.Time) bool
}

// Hooks are optional callbacks for metrics and alerts. Nil hooks are skipped.
type Hooks struct {
	OnBar           func(elapsed time.Duration)
	OnSkip          func(reason string)
	OnEntry         func(bar model.Bar, d EntryDecision)
	OnStopRatchet   func(price float64)
	OnTargetRatchet func(price float64)
	OnExit          func(bar model.Bar, reason string)
	OnOrderEvent    func(ev model.OrderEvent)
	OnStateChange   func(s EngineState)
	OnIntentError   func(op string, err error)
}

// Engine is the per-instrument decision engine. It is not safe for concurrent
// use; Run serializes bars and order events onto one goroutine.
type Engine struct {
	params    Params
	inst      model.Instrument
	router    model.OrderRouter
	positions model.PositionReader
	session   SessionClock
	log       *slog.Logger

	Hooks Hooks

	state   EngineState
	bars    int64
	allowed bool
}

// NewEngine creates an engine for one instrument. session may be nil.
func NewEngine(p Params, inst model.Instrument, router model.OrderRouter, positions model.PositionReader, session SessionClock, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	if p.SignalTag == "" {
		p.SignalTag = DefaultSignalTag
	}
	e := &Engine{
		params:    p,
		inst:      inst,
		router:    router,
		positions: positions,
		session:   session,
		log:       log.With(slog.String("component", "strategy"), slog.String("symbol", inst.Symbol)),
		allowed:   inst.MatchesAny(p.AllowedSymbols),
	}
	if !e.allowed {
		e.log.Warn("instrument not in allowed symbols, engine will not trade",
			slog.Any("allowed", p.AllowedSymbols))
	}
	return e
}

// State returns a copy of the current engine state.
func (e *Engine) State() EngineState { return e.state }

// BarsSeen returns the number of bars received since start.
func (e *Engine) BarsSeen() int64 { return e.bars }

// OnBar evaluates one completed bar. Warm-up bars, disallowed instruments and
// bars with non-finite data produce no decision and leave state unchanged.
func (e *Engine) OnBar(ctx context.Context, bar model.Bar, snap model.IndicatorSnapshot) {
	start := time.Now()
	e.bars++
	defer func() {
		if e.Hooks.OnBar != nil {
			e.Hooks.OnBar(time.Since(start))
		}
	}()

	if e.bars-1 < int64(e.params.WarmupBars) {
		return
	}
	if !e.allowed {
		return
	}
	if !bar.Valid() || !snap.Valid() {
		e.log.Debug("skipping bar with invalid data", slog.Int64("seq", bar.Seq), slog.Time("time", bar.Time))
		if e.Hooks.OnSkip != nil {
			e.Hooks.OnSkip("invalid_data")
		}
		return
	}

	ctx = logger.WithTraceID(ctx, logger.GenerateTraceID(e.inst.Symbol, bar.Time))
	prev := e.state
	e.state = TrackSqueeze(e.state, snap.SqueezeOn)
	if !prev.SqueezeLatched && e.state.SqueezeLatched {
		e.log.Info("squeeze released, entries enabled", append(logger.LogWithTrace(ctx), slog.Time("time", bar.Time))...)
	}

	nearClose := e.params.ExitOnSessionClose && e.session != nil && e.session.NearClose(bar.Time)

	pos := e.positions.Position()
	switch {
	case pos.IsFlat():
		if !nearClose {
			e.checkEntry(ctx, bar, snap)
		}
	case pos.IsLong():
		e.manageLong(ctx, bar, snap, pos)
		if nearClose {
			e.exit(ctx, bar, ReasonSessionExit)
		}
	}

	if e.state != prev && e.Hooks.OnStateChange != nil {
		e.Hooks.OnStateChange(e.state)
	}
}

func (e *Engine) checkEntry(ctx context.Context, bar model.Bar, snap model.IndicatorSnapshot) {
	d := EvaluateEntry(e.params, bar, snap, e.state.SqueezeLatched)
	if !d.ShouldEnter {
		return
	}

	tag := e.params.SignalTag
	e.intentFailed(ctx, "enter long", e.router.EnterLong(ctx, e.params.ContractSize, tag))

	e.state.TrailingStop = At(d.Stop)
	e.state.TrailingTarget = At(d.Target)

	e.intentFailed(ctx, "set stop", e.router.SetStopLoss(ctx, tag, d.Stop))
	e.intentFailed(ctx, "set target", e.router.SetProfitTarget(ctx, tag, d.Target))

	e.log.Info("long entry",
		append(logger.LogWithTrace(ctx),
			slog.Time("time", bar.Time),
			slog.Float64("close", bar.Close),
			slog.Float64("trail_line", snap.TrailStopLine),
			slog.Float64("ema", snap.TrendAverage),
			slog.Float64("stop", d.Stop),
			slog.Float64("target", d.Target),
		)...)
	if e.Hooks.OnEntry != nil {
		e.Hooks.OnEntry(bar, d)
	}
}

func (e *Engine) manageLong(ctx context.Context, bar model.Bar, snap model.IndicatorSnapshot, pos model.Position) {
	d := ManageLong(e.params, e.state, bar, snap, pos)
	tag := e.params.SignalTag

	if d.StopChanged {
		e.state.TrailingStop = d.Stop
		e.intentFailed(ctx, "set stop", e.router.SetStopLoss(ctx, tag, d.Stop.Price))
		e.log.Info("trailing stop updated",
			append(logger.LogWithTrace(ctx),
				slog.Time("time", bar.Time),
				slog.Float64("stop", d.Stop.Price),
				slog.Float64("trail_line", snap.TrailStopLine),
			)...)
		if e.Hooks.OnStopRatchet != nil {
			e.Hooks.OnStopRatchet(d.Stop.Price)
		}
	}

	if d.TargetChanged {
		e.state.TrailingTarget = d.Target
		e.intentFailed(ctx, "set target", e.router.SetProfitTarget(ctx, tag, d.Target.Price))
		e.log.Info("trailing target updated",
			append(logger.LogWithTrace(ctx),
				slog.Time("time", bar.Time),
				slog.Float64("target", d.Target.Price),
				slog.Float64("channel_upper", snap.ChannelUpper),
			)...)
		if e.Hooks.OnTargetRatchet != nil {
			e.Hooks.OnTargetRatchet(d.Target.Price)
		}
	}

	if d.Exit {
		e.exit(ctx, bar, ReasonEMAExit)
	}
}

func (e *Engine) exit(ctx context.Context, bar model.Bar, reason string) {
	e.intentFailed(ctx, "exit long", e.router.ExitLong(ctx, e.params.SignalTag, reason))
	e.log.Info("manual exit",
		append(logger.LogWithTrace(ctx),
			slog.String("reason", reason),
			slog.Time("time", bar.Time),
			slog.Float64("close", bar.Close),
		)...)
	if e.Hooks.OnExit != nil {
		e.Hooks.OnExit(bar, reason)
	}
}

// intentFailed logs a router error. The bar carries on; intents are not retried.
func (e *Engine) intentFailed(ctx context.Context, op string, err error) {
	if err == nil {
		return
	}
	e.log.Error(op+" failed", append(logger.LogWithTrace(ctx), slog.Any("error", err))...)
	if e.Hooks.OnIntentError != nil {
		e.Hooks.OnIntentError(op, err)
	}
}

// Run consumes bar and order events until ctx is cancelled or both channels
// are closed. A nil orders channel is allowed.
func (e *Engine) Run(ctx context.Context, bars <-chan BarEvent, orders <-chan model.OrderEvent) {
	for bars != nil || orders != nil {
		if ctx.Err() != nil {
			return
		}
		// Queued order events are handled before the next bar so a bar never
		// sees a position that an unprocessed fill already changed.
		if orders != nil {
			select {
			case ev, ok := <-orders:
				if !ok {
					orders = nil
				} else {
					e.OnOrderEvent(ctx, ev)
				}
				continue
			default:
			}
		}
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-orders:
			if !ok {
				orders = nil
				continue
			}
			e.OnOrderEvent(ctx, ev)
		case be, ok := <-bars:
			if !ok {
				bars = nil
				continue
			}
			e.OnBar(ctx, be.Bar, be.Snapshot)
		}
	}
}
