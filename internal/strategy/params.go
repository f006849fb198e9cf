package strategy

// Signal and exit names used on every intent the engine issues.
const (
	DefaultSignalTag  = "ATR_EMA_Long"
	ReasonEMAExit     = "EMA_Exit"
	ReasonSessionExit = "SessionClose"
)

// Params are the validated, engine-facing strategy settings.
// Prices and offsets are in instrument points.
type Params struct {
	SignalTag    string
	ContractSize int64

	TickSize      float64 // instrument tick size in points
	TickTolerance float64 // EMA touch tolerance in ticks

	StopOffset           float64 // points below the trail line for the stop
	TargetOffset         float64 // points below the upper channel for the initial target
	TrailingProfitBuffer float64 // points below the upper channel for the trailing target
	MinProfitPoints      float64 // trailing target must stay above avg price + this

	UseTrailingStop   bool
	UseTrailingProfit bool

	WarmupBars     int      // bars to skip before any evaluation
	AllowedSymbols []string // substring filter on the instrument symbol

	ExitOnSessionClose bool
}

// DefaultParams returns the defaults for 2-minute MES/MNQ trading.
func DefaultParams() Params {
	return Params{
		SignalTag:            DefaultSignalTag,
		ContractSize:         1,
		TickSize:             0.25,
		TickTolerance:        2.0,
		StopOffset:           2.0,
		TargetOffset:         2.0,
		TrailingProfitBuffer: 2.0,
		MinProfitPoints:      4.0,
		UseTrailingStop:      true,
		UseTrailingProfit:    true,
		WarmupBars:           50,
		AllowedSymbols:       []string{"MES", "MNQ"},
		ExitOnSessionClose:   true,
	}
}

// Tolerance returns the EMA touch tolerance in points.
func (p Params) Tolerance() float64 {
	return p.TickTolerance * p.TickSize
}
