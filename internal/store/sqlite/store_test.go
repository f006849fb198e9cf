package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"squeezetrader/internal/model"
)

var t0 = time.Date(2026, 10, 19, 14, 0, 0, 0, time.UTC)

func testBars(symbol string, n int) []model.Bar {
	out := make([]model.Bar, n)
	for i := range out {
		p := 4500 + float64(i)
		out[i] = model.Bar{
			Symbol: symbol, Seq: int64(i), Time: t0.Add(time.Duration(i) * 2 * time.Minute),
			Open: p, High: p + 1.25, Low: p - 0.75, Close: p + 0.5, Volume: int64(100 + i),
		}
	}
	return out
}

func writeAll(t *testing.T, w *Writer, bars []model.Bar) {
	t.Helper()
	ch := make(chan model.Bar, len(bars))
	for _, b := range bars {
		ch <- b
	}
	close(ch)
	w.Run(context.Background(), ch)
}

func TestWriterReader_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bars.db")
	w, err := New(WriterConfig{DBPath: path, BatchSize: 3})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()

	commits := 0
	w.OnCommit = func(n int, _ time.Duration) { commits++ }

	writeAll(t, w, append(testBars("MES 12-26", 7), testBars("MNQ 12-26", 2)...))
	if commits != 3 {
		t.Errorf("expected 3 commits (3+3+3), got %d", commits)
	}

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	bars, err := r.ReadBars("MES 12-26", 0)
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(bars) != 7 {
		t.Fatalf("expected 7 bars, got %d", len(bars))
	}
	want := testBars("MES 12-26", 7)
	for i := range bars {
		if !bars[i].Time.Equal(want[i].Time) || bars[i].Close != want[i].Close || bars[i].Volume != want[i].Volume {
			t.Errorf("bar %d: got %+v, want %+v", i, bars[i], want[i])
		}
	}

	after, err := r.ReadBars("MES 12-26", want[4].Time.Unix())
	if err != nil {
		t.Fatal(err)
	}
	if len(after) != 2 || after[0].Seq != 5 {
		t.Errorf("afterTS filter: got %d bars, first seq %v", len(after), after)
	}

	syms, err := r.Symbols()
	if err != nil {
		t.Fatal(err)
	}
	if len(syms) != 2 || syms[0] != "MES 12-26" || syms[1] != "MNQ 12-26" {
		t.Errorf("Symbols: %v", syms)
	}
}

func TestWriter_ReplaceOnDuplicate(t *testing.T) {
	w, err := New(WriterConfig{DBPath: filepath.Join(t.TempDir(), "bars.db")})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	b := testBars("MES 12-26", 1)
	writeAll(t, w, b)
	b[0].Close = 4600
	writeAll(t, w, b)

	var n int
	var closePx float64
	if err := w.DB().QueryRow(`SELECT COUNT(*), MAX(close) FROM bars`).Scan(&n, &closePx); err != nil {
		t.Fatal(err)
	}
	if n != 1 || closePx != 4600 {
		t.Errorf("expected one replaced row at 4600, got n=%d close=%v", n, closePx)
	}

	last, err := w.LastTimestamp("MES 12-26")
	if err != nil || last != t0.Unix() {
		t.Errorf("LastTimestamp: %d, %v", last, err)
	}
	if none, _ := w.LastTimestamp("ZZZ"); none != 0 {
		t.Errorf("LastTimestamp for unknown symbol: %d", none)
	}
}

func TestWriter_FlushesOnTimer(t *testing.T) {
	w, err := New(WriterConfig{DBPath: filepath.Join(t.TempDir(), "bars.db"), BatchSize: 100, FlushDelay: 20 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	committed := make(chan int, 4)
	w.OnCommit = func(n int, _ time.Duration) { committed <- n }

	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan model.Bar)
	done := make(chan struct{})
	go func() {
		w.Run(ctx, ch)
		close(done)
	}()

	ch <- testBars("MES 12-26", 1)[0]
	select {
	case n := <-committed:
		if n != 1 {
			t.Errorf("expected 1 bar committed, got %d", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timer flush did not happen")
	}
	cancel()
	<-done
}
