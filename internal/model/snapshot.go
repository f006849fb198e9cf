package model

import "math"

// IndicatorSnapshot holds the derived indicator values for one bar.
// It is produced by an external provider and never mutated by the engine.
type IndicatorSnapshot struct {
	TrailStopLine float64 `json:"trail_stop_line"` // ATR trailing-stop reference line
	TrendAverage  float64 `json:"trend_average"`   // trend EMA
	ChannelUpper  float64 `json:"channel_upper"`   // Keltner upper band
	ChannelLower  float64 `json:"channel_lower"`   // Keltner lower band
	SqueezeOn     bool    `json:"squeeze_on"`      // Bollinger bands inside the Keltner channel
	MomentumSign  int     `json:"momentum_sign"`   // +1, 0 or -1
}

// NaNSnapshot returns a snapshot whose prices are all NaN.
// Providers return it while their indicators are still warming up.
func NaNSnapshot() IndicatorSnapshot {
	nan := math.NaN()
	return IndicatorSnapshot{
		TrailStopLine: nan,
		TrendAverage:  nan,
		ChannelUpper:  nan,
		ChannelLower:  nan,
	}
}

// Valid reports false if any price field is NaN or infinite.
func (s IndicatorSnapshot) Valid() bool {
	for _, v := range [...]float64{s.TrailStopLine, s.TrendAverage, s.ChannelUpper, s.ChannelLower} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return s.MomentumSign >= -1 && s.MomentumSign <= 1
}
