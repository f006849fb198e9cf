// Package replay feeds historical bars through the live pipeline for backtesting.
package replay

import (
	"context"
	"log"
	"slices"
	"time"

	"squeezetrader/internal/model"
)

// Replayer reads stored bars and replays them at a configurable speed.
type Replayer struct {
	reader model.BarReader
}

// New creates a Replayer backed by a bar store.
func New(reader model.BarReader) *Replayer {
	return &Replayer{reader: reader}
}

// Load reads bars for every symbol after fromTS (Unix seconds, 0 = all),
// merged into one time-ordered slice.
func (r *Replayer) Load(symbols []string, fromTS int64) ([]model.Bar, error) {
	var all []model.Bar
	for _, sym := range symbols {
		bars, err := r.reader.ReadBars(sym, fromTS)
		if err != nil {
			return nil, err
		}
		all = append(all, bars...)
	}
	SortBars(all)
	return all, nil
}

// SortBars orders bars by close time, keeping input order for equal times.
func SortBars(bars []model.Bar) {
	slices.SortStableFunc(bars, func(a, b model.Bar) int {
		return a.Time.Compare(b.Time)
	})
}

// Play emits bars into out, closing out when done.
// speed controls the playback rate: 1.0 = real-time, 10.0 = 10x, 0 = as fast as possible.
func Play(ctx context.Context, bars []model.Bar, speed float64, out chan<- model.Bar) error {
	defer close(out)
	if len(bars) == 0 {
		log.Println("[replay] no bars to replay")
		return nil
	}
	log.Printf("[replay] replaying %d bars, speed=%.1fx", len(bars), speed)

	var prev time.Time
	emitted := 0
	for _, b := range bars {
		// Simulate time gaps between bars
		if speed > 0 && !prev.IsZero() {
			if gap := b.Time.Sub(prev); gap > 0 {
				scaled := time.Duration(float64(gap) / speed)
				// Cap max sleep to avoid very long waits over weekends
				if scaled > 5*time.Second {
					scaled = 5 * time.Second
				}
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(scaled):
				}
			}
		}
		prev = b.Time

		select {
		case out <- b:
		case <-ctx.Done():
			log.Printf("[replay] cancelled after %d bars", emitted)
			return ctx.Err()
		}
		emitted++
	}

	log.Printf("[replay] completed: %d bars replayed", emitted)
	return nil
}
