package indicator

import (
	"math"
	"strconv"

	"squeezetrader/internal/model"
)

// TrueRange returns the bar's true range against the previous close.
// Without a previous close it is the bar range.
func TrueRange(bar model.Bar, prevClose float64, hasPrev bool) float64 {
	tr := bar.High - bar.Low
	if !hasPrev {
		return tr
	}
	return math.Max(tr, math.Max(math.Abs(bar.High-prevClose), math.Abs(bar.Low-prevClose)))
}

// ATR is the Average True Range smoothed by a configurable moving average.
type ATR struct {
	period    int
	avg       Average
	prevClose float64
	hasPrev   bool
}

// NewATR creates an ATR. smoothing is an average type accepted by NewAverage.
func NewATR(period int, smoothing string) (*ATR, error) {
	avg, err := NewAverage(smoothing, period)
	if err != nil {
		return nil, err
	}
	return &ATR{period: period, avg: avg}, nil
}

func (a *ATR) Name() string { return "ATR_" + strconv.Itoa(a.period) }

func (a *ATR) Update(bar model.Bar) {
	a.avg.Add(TrueRange(bar, a.prevClose, a.hasPrev))
	a.prevClose = bar.Close
	a.hasPrev = true
}

func (a *ATR) Value() float64 { return a.avg.Value() }
func (a *ATR) Ready() bool    { return a.avg.Ready() }

// ATRTrail is a volatility trailing-stop line at factor × ATR from the close.
// While price stays above the line it only rises; while below it only falls;
// a cross flips it to the other side.
//
// Lower is the long-side view of the line: it follows the line while the line
// sits below the close and holds its last value while the line is above it.
type ATRTrail struct {
	atr    *ATR
	factor float64

	current   float64
	lower     float64
	prevClose float64
	started   bool
}

// NewATRTrail creates an ATR trailing-stop line.
func NewATRTrail(period int, factor float64, smoothing string) (*ATRTrail, error) {
	atr, err := NewATR(period, smoothing)
	if err != nil {
		return nil, err
	}
	return &ATRTrail{atr: atr, factor: factor}, nil
}

func (t *ATRTrail) Name() string { return "ATRTrail_" + strconv.Itoa(t.atr.period) }

func (t *ATRTrail) Update(bar model.Bar) {
	t.atr.Update(bar)
	if !t.atr.Ready() {
		t.prevClose = bar.Close
		return
	}

	loss := t.factor * t.atr.Value()
	c := bar.Close
	prev := t.current

	switch {
	case !t.started:
		t.current = c - loss
		t.started = true
	case c > prev && t.prevClose > prev:
		t.current = math.Max(prev, c-loss)
	case c < prev && t.prevClose < prev:
		t.current = math.Min(prev, c+loss)
	case c > prev:
		t.current = c - loss
	default:
		t.current = c + loss
	}
	if t.current < c {
		t.lower = t.current
	}
	t.prevClose = c
}

func (t *ATRTrail) Value() float64 { return t.current }
func (t *ATRTrail) Lower() float64 { return t.lower }
func (t *ATRTrail) Ready() bool    { return t.started }
