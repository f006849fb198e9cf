// Package indicator provides technical indicator calculations over bar data.
//
// Moving averages accept raw values through Add so they can smooth derived
// series (true range, typical price, bar range) as well as closes. Composite
// indicators are built from them and fed whole bars through Update.
package indicator

import (
	"fmt"
	"strings"

	"squeezetrader/internal/model"
)

// Indicator is the interface for bar-driven indicators.
type Indicator interface {
	// Name returns the indicator name (e.g., "EMA_21", "ATR_9").
	Name() string

	// Update feeds a completed bar and recalculates.
	Update(bar model.Bar)

	// Value returns the current primary value. Returns 0 if not enough data.
	Value() float64

	// Ready returns true when enough data has been accumulated.
	Ready() bool
}

// Average is a moving average over an arbitrary float series.
type Average interface {
	Indicator
	Add(v float64)
	Reset()
}

// NewAverage builds a moving average by type name: "SMA", "EMA" or "SMMA".
func NewAverage(kind string, period int) (Average, error) {
	if period < 1 {
		return nil, fmt.Errorf("indicator: period must be >= 1, got %d", period)
	}
	switch strings.ToUpper(kind) {
	case "SMA":
		return NewSMA(period), nil
	case "EMA", "":
		return NewEMA(period), nil
	case "SMMA", "WILDER":
		return NewSMMA(period), nil
	}
	return nil, fmt.Errorf("indicator: unknown average type %q", kind)
}
