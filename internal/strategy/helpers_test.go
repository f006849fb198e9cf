package strategy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"squeezetrader/internal/model"
)

var quietLog = slog.New(slog.NewTextHandler(io.Discard, nil))

var t0 = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

// recordingRouter captures intents in call order.
type recordingRouter struct {
	intents []model.Intent
	fail    bool
}

func (r *recordingRouter) record(i model.Intent) error {
	r.intents = append(r.intents, i)
	if r.fail {
		return errors.New("router down")
	}
	return nil
}

func (r *recordingRouter) EnterLong(_ context.Context, qty int64, tag string) error {
	return r.record(model.Intent{Kind: model.IntentEnterLong, Qty: qty, Tag: tag})
}

func (r *recordingRouter) SetStopLoss(_ context.Context, tag string, price float64) error {
	return r.record(model.Intent{Kind: model.IntentSetStop, Tag: tag, Price: price})
}

func (r *recordingRouter) SetProfitTarget(_ context.Context, tag string, price float64) error {
	return r.record(model.Intent{Kind: model.IntentSetTarget, Tag: tag, Price: price})
}

func (r *recordingRouter) ExitLong(_ context.Context, tag, reason string) error {
	return r.record(model.Intent{Kind: model.IntentExitLong, Tag: tag, Reason: reason})
}

func (r *recordingRouter) kinds() []model.IntentKind {
	out := make([]model.IntentKind, len(r.intents))
	for i, in := range r.intents {
		out[i] = in.Kind
	}
	return out
}

func (r *recordingRouter) reset() { r.intents = nil }

// fakePositions is a settable PositionReader.
type fakePositions struct {
	pos model.Position
}

func (f *fakePositions) Position() model.Position { return f.pos }

func (f *fakePositions) goLong(avg float64) {
	f.pos = model.Position{Symbol: "MES 12-26", Side: model.SideLong, Qty: 1, AvgPrice: avg}
}

func (f *fakePositions) goFlat() {
	f.pos = model.Position{Symbol: "MES 12-26", Side: model.SideFlat}
}

type fixedSession bool

func (s fixedSession) NearClose(time.Time) bool { return bool(s) }

func testParams() Params {
	p := DefaultParams()
	p.WarmupBars = 0
	p.ExitOnSessionClose = false
	return p
}

func testInstrument() model.Instrument {
	return model.Instrument{Symbol: "MES 12-26", TickSize: 0.25}
}

// entryBar and entrySnap reproduce the "all conditions hold" bar:
// low=4500 high=4510 trail=4495 ema=4505 upper=4520.
func entryBar() model.Bar {
	return model.Bar{Symbol: "MES 12-26", Time: t0, Open: 4504, High: 4510, Low: 4500, Close: 4508}
}

func entrySnap() model.IndicatorSnapshot {
	return model.IndicatorSnapshot{
		TrailStopLine: 4495,
		TrendAverage:  4505,
		ChannelUpper:  4520,
		ChannelLower:  4490,
		SqueezeOn:     true,
		MomentumSign:  1,
	}
}

func newTestEngine(p Params) (*Engine, *recordingRouter, *fakePositions) {
	router := &recordingRouter{}
	positions := &fakePositions{}
	positions.goFlat()
	return NewEngine(p, testInstrument(), router, positions, nil, quietLog), router, positions
}

// latch drives one squeeze on→off release through the engine.
func latch(e *Engine) {
	off := entrySnap()
	off.SqueezeOn = true
	off.MomentumSign = -1
	e.OnBar(context.Background(), entryBar(), off)
	off.SqueezeOn = false
	e.OnBar(context.Background(), entryBar(), off)
}
