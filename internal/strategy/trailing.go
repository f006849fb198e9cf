package strategy

import "squeezetrader/internal/model"

// TrailDecision is the outcome of managing an open long for one bar.
// A changed level is already the new value to apply and send.
type TrailDecision struct {
	Stop          Level
	StopChanged   bool
	Target        Level
	TargetChanged bool
	Exit          bool // close fell below the trend average

	CandidateStop   float64
	CandidateTarget float64
}

// ManageLong recomputes the trailing levels for an open long position.
//
// The stop only moves up. The target only moves down, toward price, and only
// while it stays above avg price + MinProfitPoints and below the close. The
// strict close > candidate test can leave the target unchanged for good if
// price dips through the candidate once; that behaviour is intentional.
func ManageLong(p Params, s EngineState, bar model.Bar, snap model.IndicatorSnapshot, pos model.Position) TrailDecision {
	d := TrailDecision{
		Stop:            s.TrailingStop,
		Target:          s.TrailingTarget,
		CandidateStop:   snap.TrailStopLine - p.StopOffset,
		CandidateTarget: snap.ChannelUpper - p.TrailingProfitBuffer,
	}

	if p.UseTrailingStop && (!s.TrailingStop.Set || d.CandidateStop > s.TrailingStop.Price) {
		d.Stop = At(d.CandidateStop)
		d.StopChanged = true
	}

	if p.UseTrailingProfit {
		minProfit := pos.AvgPrice + p.MinProfitPoints
		if d.CandidateTarget > minProfit && bar.Close > d.CandidateTarget &&
			(!s.TrailingTarget.Set || d.CandidateTarget < s.TrailingTarget.Price) {
			d.Target = At(d.CandidateTarget)
			d.TargetChanged = true
		}
	}

	d.Exit = bar.Close < snap.TrendAverage
	return d
}
