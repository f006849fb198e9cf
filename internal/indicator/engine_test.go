package indicator

import (
	"context"
	"math"
	"testing"
	"time"

	"squeezetrader/internal/model"
	"squeezetrader/internal/strategy"
)

func makeBar(symbol string, i int, close float64) model.Bar {
	return model.Bar{
		Symbol: symbol,
		Seq:    int64(i),
		Time:   time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC).Add(time.Duration(i) * 2 * time.Minute),
		Open:   close - 0.5,
		High:   close + 1,
		Low:    close - 1,
		Close:  close,
		Volume: 100,
	}
}

// wave is a gently oscillating price path.
func wave(i int) float64 {
	return 4500 + 6*math.Sin(float64(i)/5)
}

func TestProvider_WarmupThenReady(t *testing.T) {
	p, err := NewProvider(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	// Squeeze momentum needs 2*21-1 bars.
	const need = 41
	for i := 1; i <= need; i++ {
		snap, ready := p.Update(makeBar("MES", i, wave(i)))
		if i < need {
			if ready {
				t.Fatalf("bar %d: ready too early", i)
			}
			if snap.Valid() {
				t.Fatalf("bar %d: expected NaN snapshot during warm-up", i)
			}
			continue
		}
		if !ready || !snap.Valid() {
			t.Fatalf("bar %d: expected valid ready snapshot, got %+v", i, snap)
		}
		if snap.ChannelUpper <= snap.ChannelLower {
			t.Errorf("channel inverted: %+v", snap)
		}
	}
	if p.Bars() != need {
		t.Errorf("Bars: got %d, want %d", p.Bars(), need)
	}
}

func TestProvider_UptrendShape(t *testing.T) {
	p, _ := NewProvider(DefaultConfig())
	var snap model.IndicatorSnapshot
	for i := 0; i < 80; i++ {
		snap, _ = p.Update(makeBar("MES", i, 4500+float64(i)*0.5))
	}
	last := 4500 + 79*0.5
	if snap.TrailStopLine >= last {
		t.Errorf("trail line %.2f should sit below close %.2f in an uptrend", snap.TrailStopLine, last)
	}
	if snap.TrendAverage >= last || snap.TrendAverage <= snap.TrailStopLine-20 {
		t.Errorf("unexpected ema %.2f", snap.TrendAverage)
	}
	if snap.MomentumSign != 1 {
		t.Errorf("expected positive momentum, got %d", snap.MomentumSign)
	}
}

func TestNewProvider_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EMAPeriod = 0
	if _, err := NewProvider(cfg); err == nil {
		t.Error("expected error for ema period 0")
	}
	cfg = DefaultConfig()
	cfg.ATRSmoothing = "bogus"
	if _, err := NewEngine(cfg); err == nil {
		t.Error("expected error for unknown atr smoothing")
	}
}

func TestEngine_PerSymbolProviders(t *testing.T) {
	e, err := NewEngine(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		e.Process(makeBar("MES", i, wave(i)))
	}
	e.Process(makeBar("MNQ", 0, 18000))

	mes, ok := e.Provider("MES")
	if !ok || mes.Bars() != 10 {
		t.Fatalf("MES provider: ok=%v", ok)
	}
	mnq, ok := e.Provider("MNQ")
	if !ok || mnq.Bars() != 1 {
		t.Fatalf("MNQ provider: ok=%v", ok)
	}
	if _, ok := e.Provider("ES"); ok {
		t.Error("unexpected provider for unseen symbol")
	}
}

func TestEngine_RunEmitsEveryBar(t *testing.T) {
	e, _ := NewEngine(DefaultConfig())
	in := make(chan model.Bar, 64)
	out := make(chan strategy.BarEvent, 64)

	for i := 0; i < 50; i++ {
		in <- makeBar("MES", i, wave(i))
	}
	close(in)

	if err := e.Run(context.Background(), in, out); err != nil {
		t.Fatalf("Run: %v", err)
	}

	n, valid := 0, 0
	for ev := range out {
		if ev.Bar.Seq != int64(n) {
			t.Fatalf("order: got seq %d at position %d", ev.Bar.Seq, n)
		}
		if ev.Snapshot.Valid() {
			valid++
		}
		n++
	}
	if n != 50 {
		t.Fatalf("expected 50 events, got %d", n)
	}
	if valid != 50-40 {
		t.Errorf("expected 10 ready snapshots, got %d", valid)
	}
}

func TestEngine_RunStopsOnCancel(t *testing.T) {
	e, _ := NewEngine(DefaultConfig())
	in := make(chan model.Bar)
	out := make(chan strategy.BarEvent)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx, in, out) }()
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Error("expected context error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}
	if _, ok := <-out; ok {
		t.Error("expected out closed")
	}
}
