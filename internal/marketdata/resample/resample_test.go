package resample

import (
	"context"
	"testing"
	"time"

	"squeezetrader/internal/model"
)

var t0 = time.Date(2026, 10, 19, 14, 0, 0, 0, time.UTC)

// minute returns a 60s input bar closing at t0 + n minutes.
func minute(n int, o, h, l, c float64) model.Bar {
	return model.Bar{Symbol: "MES 12-26", Time: t0.Add(time.Duration(n) * time.Minute), Open: o, High: h, Low: l, Close: c, Volume: 10}
}

func TestResampler_MergesTwoMinutes(t *testing.T) {
	r := New(120)

	if out := r.Process(minute(1, 4500, 4503, 4499, 4502)); len(out) != 0 {
		t.Fatalf("first half should not finalize, got %+v", out)
	}
	out := r.Process(minute(2, 4502, 4506, 4501, 4505))
	if len(out) != 1 {
		t.Fatalf("boundary close should finalize one bar, got %d", len(out))
	}
	b := out[0]
	if !b.Time.Equal(t0.Add(2*time.Minute)) {
		t.Errorf("bar time: got %v", b.Time)
	}
	if b.Open != 4500 || b.High != 4506 || b.Low != 4499 || b.Close != 4505 || b.Volume != 20 {
		t.Errorf("OHLCV: %+v", b)
	}
	if b.Seq != 0 {
		t.Errorf("seq: got %d", b.Seq)
	}

	r.Process(minute(3, 4505, 4507, 4504, 4506))
	out = r.Process(minute(4, 4506, 4508, 4502, 4503))
	if len(out) != 1 || out[0].Seq != 1 || out[0].Low != 4502 {
		t.Errorf("second bar: %+v", out)
	}
}

func TestResampler_GapFinalizesPrevious(t *testing.T) {
	r := New(120)
	r.Process(minute(1, 4500, 4501, 4499, 4500))
	// minute 2 missing; minute 5 opens [14:04, 14:06)
	out := r.Process(minute(5, 4510, 4511, 4509, 4510))
	if len(out) != 1 {
		t.Fatalf("expected the partial bucket to finalize, got %d", len(out))
	}
	if !out[0].Time.Equal(t0.Add(2*time.Minute)) || out[0].Close != 4500 {
		t.Errorf("partial bar: %+v", out[0])
	}
	rest := r.Flush()
	if len(rest) != 1 || !rest[0].Time.Equal(t0.Add(6*time.Minute)) {
		t.Errorf("flush: %+v", rest)
	}
}

func TestResampler_DropsLateInput(t *testing.T) {
	r := New(120)
	stale := 0
	r.OnStale = func() { stale++ }

	r.Process(minute(1, 4500, 4501, 4499, 4500))
	r.Process(minute(2, 4500, 4502, 4498, 4501))
	if out := r.Process(minute(2, 1, 1, 1, 1)); out != nil {
		t.Errorf("late input produced %+v", out)
	}
	r.Process(minute(3, 4501, 4503, 4500, 4502))
	if out := r.Process(minute(1, 1, 1, 1, 1)); out != nil {
		t.Errorf("late input produced %+v", out)
	}
	if stale != 2 {
		t.Errorf("expected 2 stale inputs, got %d", stale)
	}
}

func TestResampler_SymbolsIndependent(t *testing.T) {
	r := New(120)
	var finalized []string
	r.OnBar = func(b model.Bar) { finalized = append(finalized, b.Symbol) }

	a := minute(1, 4500, 4501, 4499, 4500)
	b := a
	b.Symbol = "MNQ 12-26"
	r.Process(a)
	r.Process(b)

	a2 := minute(2, 4500, 4501, 4499, 4500)
	if out := r.Process(a2); len(out) != 1 || out[0].Symbol != "MES 12-26" {
		t.Fatalf("MES bar: %+v", out)
	}
	if len(finalized) != 1 {
		t.Errorf("MNQ must still be forming, finalized=%v", finalized)
	}
}

func TestResampler_SkipsInvalid(t *testing.T) {
	r := New(120)
	bad := minute(1, 4500, 4490, 4495, 4500) // high < low
	if out := r.Process(bad); out != nil {
		t.Errorf("invalid input produced %+v", out)
	}
	if len(r.Flush()) != 0 {
		t.Error("invalid input must not open a bucket")
	}
}

func TestResampler_Run(t *testing.T) {
	r := New(120)
	in := make(chan model.Bar, 8)
	out := make(chan model.Bar, 8)
	for i := 1; i <= 5; i++ {
		p := 4500 + float64(i)
		in <- minute(i, p, p+1, p-1, p)
	}
	close(in)

	if err := r.Run(context.Background(), in, out); err != nil {
		t.Fatalf("Run: %v", err)
	}
	var got []model.Bar
	for b := range out {
		got = append(got, b)
	}
	// two complete buckets plus the flushed partial one
	if len(got) != 3 {
		t.Fatalf("expected 3 bars, got %d", len(got))
	}
	if got[2].Close != 4505 || got[2].Seq != 2 {
		t.Errorf("flushed bar: %+v", got[2])
	}
}
