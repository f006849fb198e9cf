// Package resample aggregates finer bars into the strategy timeframe.
// Input bars carry their close time; a bar closing at t belongs to the bucket
// that contains t-1s, so a 60s bar closing at 14:02:00 lands in [14:00, 14:02)
// for a 120s timeframe. Output bars are stamped with the bucket close time.
package resample

import (
	"context"
	"time"

	"squeezetrader/internal/model"
)

// bucketState holds the forming bar for one symbol.
type bucketState struct {
	start int64 // bucket start, Unix seconds
	bar   model.Bar
}

// Resampler builds fixed-width bars per symbol. Not goroutine-safe: run it
// from a single goroutine, either through Run or by calling Process directly.
type Resampler struct {
	tf     int64
	states map[string]*bucketState
	seq    map[string]int64
	closed map[string]int64 // start of the last finalized bucket

	// OnBar is called for each finalized bar (optional).
	OnBar func(b model.Bar)
	// OnStale is called when input for an already finalized bucket is dropped (optional).
	OnStale func()
}

// New creates a Resampler for the given timeframe in seconds.
func New(tfSeconds int) *Resampler {
	if tfSeconds <= 0 {
		tfSeconds = 120
	}
	return &Resampler{
		tf:     int64(tfSeconds),
		states: make(map[string]*bucketState, 8),
		seq:    make(map[string]int64, 8),
		closed: make(map[string]int64, 8),
	}
}

// Timeframe returns the output bar width.
func (r *Resampler) Timeframe() time.Duration {
	return time.Duration(r.tf) * time.Second
}

// Process merges one input bar. It returns the bars finalized by this input:
// the previous bucket when the input opens a new one, and the current bucket
// when the input closes exactly on its boundary.
func (r *Resampler) Process(in model.Bar) []model.Bar {
	if !in.Valid() {
		return nil
	}
	ts := in.Time.Unix()
	start := (ts - 1) - floorMod(ts-1, r.tf)

	if done, ok := r.closed[in.Symbol]; ok && start <= done {
		if r.OnStale != nil {
			r.OnStale()
		}
		return nil
	}

	var out []model.Bar
	st, exists := r.states[in.Symbol]
	if exists && start < st.start {
		if r.OnStale != nil {
			r.OnStale()
		}
		return nil
	}

	if exists && start > st.start {
		out = append(out, r.finalize(in.Symbol, st))
		exists = false
	}

	if !exists {
		st = &bucketState{
			start: start,
			bar: model.Bar{
				Symbol: in.Symbol,
				Time:   time.Unix(start+r.tf, 0).UTC(),
				Open:   in.Open,
				High:   in.High,
				Low:    in.Low,
				Close:  in.Close,
				Volume: in.Volume,
			},
		}
		r.states[in.Symbol] = st
	} else {
		fb := &st.bar
		if in.High > fb.High {
			fb.High = in.High
		}
		if in.Low < fb.Low {
			fb.Low = in.Low
		}
		fb.Close = in.Close
		fb.Volume += in.Volume
	}

	if ts == start+r.tf {
		out = append(out, r.finalize(in.Symbol, st))
	}
	return out
}

func (r *Resampler) finalize(symbol string, st *bucketState) model.Bar {
	delete(r.states, symbol)
	r.closed[symbol] = st.start
	b := st.bar
	b.Seq = r.seq[symbol]
	r.seq[symbol]++
	if r.OnBar != nil {
		r.OnBar(b)
	}
	return b
}

// Flush finalizes every forming bar. Used at end of input.
func (r *Resampler) Flush() []model.Bar {
	var out []model.Bar
	for sym, st := range r.states {
		out = append(out, r.finalize(sym, st))
	}
	return out
}

// Run consumes input bars and sends finalized bars to out, closing out on return.
// Partial buckets are flushed when in is closed, but not on cancellation.
func (r *Resampler) Run(ctx context.Context, in <-chan model.Bar, out chan<- model.Bar) error {
	defer close(out)
	send := func(bars []model.Bar) error {
		for _, b := range bars {
			select {
			case out <- b:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case b, ok := <-in:
			if !ok {
				return send(r.Flush())
			}
			if err := send(r.Process(b)); err != nil {
				return err
			}
		}
	}
}

func floorMod(a, b int64) int64 {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
