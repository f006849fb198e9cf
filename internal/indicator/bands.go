package indicator

import (
	"strconv"

	"squeezetrader/internal/model"
)

// Keltner is a channel around the SMA of the typical price, offset by
// multiplier × SMA of the bar range.
type Keltner struct {
	period     int
	multiplier float64
	mid        *SMA
	rng        *SMA

	upper, lower float64
}

// NewKeltner creates a Keltner channel.
func NewKeltner(period int, multiplier float64) *Keltner {
	return &Keltner{
		period:     period,
		multiplier: multiplier,
		mid:        NewSMA(period),
		rng:        NewSMA(period),
	}
}

func (k *Keltner) Name() string { return "Keltner_" + strconv.Itoa(k.period) }

func (k *Keltner) Update(bar model.Bar) {
	k.mid.Add((bar.High + bar.Low + bar.Close) / 3)
	k.rng.Add(bar.High - bar.Low)
	if k.Ready() {
		off := k.multiplier * k.rng.Value()
		k.upper = k.mid.Value() + off
		k.lower = k.mid.Value() - off
	}
}

// Value returns the midline.
func (k *Keltner) Value() float64 { return k.mid.Value() }
func (k *Keltner) Upper() float64 { return k.upper }
func (k *Keltner) Lower() float64 { return k.lower }
func (k *Keltner) Ready() bool    { return k.mid.Ready() }

// Bollinger bands: SMA of close ± multiplier × population standard deviation.
type Bollinger struct {
	multiplier float64
	win        *Window

	upper, lower float64
}

// NewBollinger creates Bollinger bands.
func NewBollinger(period int, multiplier float64) *Bollinger {
	return &Bollinger{multiplier: multiplier, win: NewWindow(period)}
}

func (b *Bollinger) Name() string { return "Bollinger_" + strconv.Itoa(b.win.Size()) }

func (b *Bollinger) Update(bar model.Bar) {
	b.win.Push(bar.Close)
	if b.Ready() {
		mid := b.win.Mean()
		off := b.multiplier * b.win.StdDev()
		b.upper = mid + off
		b.lower = mid - off
	}
}

// Value returns the midline.
func (b *Bollinger) Value() float64 { return b.win.Mean() }
func (b *Bollinger) Upper() float64 { return b.upper }
func (b *Bollinger) Lower() float64 { return b.lower }
func (b *Bollinger) Ready() bool    { return b.win.Full() }
