package strategy

import "fmt"

// Level is a price that may be unset.
type Level struct {
	Price float64 `json:"price"`
	Set   bool    `json:"set"`
}

// At returns a set level at price.
func At(price float64) Level {
	return Level{Price: price, Set: true}
}

func (l Level) String() string {
	if !l.Set {
		return "none"
	}
	return fmt.Sprintf("%.2f", l.Price)
}

// EngineState is everything the engine remembers between bars.
// It is owned by one Engine and only changed by the engine's components.
type EngineState struct {
	// SqueezeLatched becomes true on the first squeeze on→off transition
	// and stays true for the rest of the session.
	SqueezeLatched bool `json:"squeeze_latched"`
	// WasInSqueeze is the previous bar's squeeze reading.
	WasInSqueeze bool `json:"was_in_squeeze"`

	TrailingStop   Level `json:"trailing_stop"`
	TrailingTarget Level `json:"trailing_target"`
}

// ClearLevels drops both trailing levels.
func (s EngineState) ClearLevels() EngineState {
	s.TrailingStop = Level{}
	s.TrailingTarget = Level{}
	return s
}
