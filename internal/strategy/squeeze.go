package strategy

// TrackSqueeze feeds one bar's squeeze reading into the state.
// A release (on→off) sets the latch; nothing ever clears it.
func TrackSqueeze(s EngineState, squeezeOn bool) EngineState {
	if s.WasInSqueeze && !squeezeOn {
		s.SqueezeLatched = true
	}
	s.WasInSqueeze = squeezeOn
	return s
}
