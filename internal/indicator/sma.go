package indicator

import (
	"strconv"

	"squeezetrader/internal/model"
)

// SMA calculates Simple Moving Average over a rolling window.
type SMA struct {
	win     *Window
	current float64
}

// NewSMA creates a new SMA indicator with the given period.
func NewSMA(period int) *SMA {
	return &SMA{win: NewWindow(period)}
}

func (s *SMA) Name() string { return "SMA_" + strconv.Itoa(s.win.Size()) }

func (s *SMA) Update(bar model.Bar) { s.Add(bar.Close) }

func (s *SMA) Add(price float64) {
	s.win.Push(price)
	if s.win.Full() {
		s.current = s.win.Mean()
	}
}

func (s *SMA) Value() float64 { return s.current }
func (s *SMA) Ready() bool    { return s.win.Full() }

// Reset clears the SMA state for reuse.
func (s *SMA) Reset() {
	s.win.Reset()
	s.current = 0
}
