package model

import (
	"encoding/json"
	"math"
	"time"
)

// Bar is one completed OHLC interval for a single instrument.
// Prices are in instrument points (e.g. 4500.25 for MES), not ticks.
type Bar struct {
	Symbol string    `json:"symbol"`
	Seq    int64     `json:"seq"`  // sequence index assigned by the feed
	Time   time.Time `json:"time"` // bar close time (UTC)
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Valid reports whether all prices are finite and the range is well-formed.
func (b Bar) Valid() bool {
	for _, v := range [...]float64{b.Open, b.High, b.Low, b.Close} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b.High >= b.Low
}

// JSON returns the JSON-encoded bar (ignoring errors for hot-path usage).
func (b *Bar) JSON() []byte {
	data, _ := json.Marshal(b)
	return data
}
