package indicator

import (
	"fmt"

	"squeezetrader/internal/model"
)

// Config holds indicator parameters for one Provider.
type Config struct {
	ATRPeriod    int
	ATRFactor    float64
	ATRSmoothing string // SMA, EMA or SMMA

	EMAPeriod int

	KeltnerPeriod     int
	KeltnerMultiplier float64

	SqueezePeriod int
	BBMultiplier  float64
	KCMultiplier  float64
}

// DefaultConfig returns the 2-minute MES/MNQ settings.
func DefaultConfig() Config {
	return Config{
		ATRPeriod:         9,
		ATRFactor:         2.9,
		ATRSmoothing:      "EMA",
		EMAPeriod:         21,
		KeltnerPeriod:     21,
		KeltnerMultiplier: 3.0,
		SqueezePeriod:     21,
		BBMultiplier:      2.0,
		KCMultiplier:      1.5,
	}
}

// Provider computes the IndicatorSnapshot for one instrument, bar by bar.
// Not safe for concurrent use.
type Provider struct {
	trail   *ATRTrail
	ema     *EMA
	keltner *Keltner
	squeeze *Squeeze
	bars    int
}

// NewProvider builds a provider from cfg.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.EMAPeriod < 1 || cfg.KeltnerPeriod < 1 || cfg.SqueezePeriod < 1 {
		return nil, fmt.Errorf("indicator: periods must be >= 1 (ema=%d keltner=%d squeeze=%d)",
			cfg.EMAPeriod, cfg.KeltnerPeriod, cfg.SqueezePeriod)
	}
	trail, err := NewATRTrail(cfg.ATRPeriod, cfg.ATRFactor, cfg.ATRSmoothing)
	if err != nil {
		return nil, fmt.Errorf("atr trail: %w", err)
	}
	return &Provider{
		trail:   trail,
		ema:     NewEMA(cfg.EMAPeriod),
		keltner: NewKeltner(cfg.KeltnerPeriod, cfg.KeltnerMultiplier),
		squeeze: NewSqueeze(cfg.SqueezePeriod, cfg.BBMultiplier, cfg.KCMultiplier),
	}, nil
}

// Update feeds a completed bar. Until every indicator has enough history the
// returned snapshot is NaN and ready is false.
func (p *Provider) Update(bar model.Bar) (model.IndicatorSnapshot, bool) {
	p.bars++
	p.trail.Update(bar)
	p.ema.Update(bar)
	p.keltner.Update(bar)
	p.squeeze.Update(bar)

	if !p.Ready() {
		return model.NaNSnapshot(), false
	}
	return model.IndicatorSnapshot{
		TrailStopLine: p.trail.Lower(),
		TrendAverage:  p.ema.Value(),
		ChannelUpper:  p.keltner.Upper(),
		ChannelLower:  p.keltner.Lower(),
		SqueezeOn:     p.squeeze.On(),
		MomentumSign:  p.squeeze.MomentumSign(),
	}, true
}

// Ready reports whether every component has warmed up.
func (p *Provider) Ready() bool {
	return p.trail.Ready() && p.ema.Ready() && p.keltner.Ready() && p.squeeze.Ready()
}

// Bars returns the number of bars fed so far.
func (p *Provider) Bars() int { return p.bars }
