package indicator

import (
	"strconv"

	"squeezetrader/internal/model"
)

// Squeeze detects Bollinger bands contracting inside a Keltner channel and
// measures momentum as the linear-regression value of close minus the
// Donchian/SMA midline.
type Squeeze struct {
	period int
	bb     *Bollinger
	kc     *Keltner

	highs, lows *Window
	close       *SMA
	delta       *Window

	on bool
}

// NewSqueeze creates a squeeze detector.
func NewSqueeze(period int, bbMult, kcMult float64) *Squeeze {
	return &Squeeze{
		period: period,
		bb:     NewBollinger(period, bbMult),
		kc:     NewKeltner(period, kcMult),
		highs:  NewWindow(period),
		lows:   NewWindow(period),
		close:  NewSMA(period),
		delta:  NewWindow(period),
	}
}

func (s *Squeeze) Name() string { return "Squeeze_" + strconv.Itoa(s.period) }

func (s *Squeeze) Update(bar model.Bar) {
	s.bb.Update(bar)
	s.kc.Update(bar)
	s.highs.Push(bar.High)
	s.lows.Push(bar.Low)
	s.close.Add(bar.Close)

	if s.bb.Ready() && s.kc.Ready() {
		s.on = s.bb.Lower() > s.kc.Lower() && s.bb.Upper() < s.kc.Upper()
	}
	if s.close.Ready() {
		donchian := (s.highs.Max() + s.lows.Min()) / 2
		s.delta.Push(bar.Close - (donchian+s.close.Value())/2)
	}
}

// Value returns the momentum histogram value.
func (s *Squeeze) Value() float64 {
	if !s.delta.Full() {
		return 0
	}
	return s.delta.LinRegLast()
}

// On reports whether the bands are inside the channel.
func (s *Squeeze) On() bool { return s.on }

// MomentumSign returns -1, 0 or +1.
func (s *Squeeze) MomentumSign() int {
	switch v := s.Value(); {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func (s *Squeeze) Ready() bool { return s.bb.Ready() && s.kc.Ready() && s.delta.Full() }
