package strategy

import "squeezetrader/internal/model"

// EntryDecision is the outcome of one entry evaluation.
type EntryDecision struct {
	ShouldEnter bool
	Stop        float64
	Target      float64

	// Individual gates, kept for logging.
	Latched       bool
	AboveTrail    bool
	EMAAboveTrail bool
	SqueezeUp     bool
	TouchingEMA   bool
}

// EvaluateEntry checks the long entry conditions for a bar.
// Flat/warm-up/symbol preconditions are the caller's responsibility.
func EvaluateEntry(p Params, bar model.Bar, snap model.IndicatorSnapshot, latched bool) EntryDecision {
	d := EntryDecision{
		Latched:       latched,
		AboveTrail:    bar.Low > snap.TrailStopLine,
		EMAAboveTrail: snap.TrendAverage > snap.TrailStopLine,
		SqueezeUp:     snap.SqueezeOn && snap.MomentumSign > 0,
		TouchingEMA:   IsPriceTouchingEMA(bar.High, bar.Low, snap.TrendAverage, p.Tolerance()),
	}
	d.ShouldEnter = d.Latched && d.AboveTrail && d.EMAAboveTrail && d.SqueezeUp && d.TouchingEMA
	if d.ShouldEnter {
		d.Stop = snap.TrailStopLine - p.StopOffset
		d.Target = snap.ChannelUpper - p.TargetOffset
	}
	return d
}

// IsPriceTouchingEMA reports whether the bar range reaches ema within tol.
// Both bounds are inclusive.
func IsPriceTouchingEMA(high, low, ema, tol float64) bool {
	return low <= ema+tol && high >= ema-tol
}
