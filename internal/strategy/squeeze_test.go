package strategy

import "testing"

func TestTrackSqueeze_ReleaseSetsLatch(t *testing.T) {
	s := EngineState{}
	s = TrackSqueeze(s, true)
	if s.SqueezeLatched {
		t.Fatal("latch must not be set while squeeze is on")
	}
	s = TrackSqueeze(s, false)
	if !s.SqueezeLatched {
		t.Fatal("expected latch after on→off")
	}
	if s.WasInSqueeze {
		t.Error("expected WasInSqueeze=false after off reading")
	}
}

func TestTrackSqueeze_OffOnlyNeverLatches(t *testing.T) {
	s := EngineState{}
	for i := 0; i < 10; i++ {
		s = TrackSqueeze(s, false)
	}
	if s.SqueezeLatched {
		t.Fatal("latch set without a squeeze")
	}
}

func TestTrackSqueeze_LatchIffReleaseForAllSequences(t *testing.T) {
	// Enumerate every on/off sequence up to length 10.
	for n := 1; n <= 10; n++ {
		for mask := 0; mask < 1<<n; mask++ {
			s := EngineState{}
			released := false
			prev := false
			for i := 0; i < n; i++ {
				on := mask&(1<<i) != 0
				if prev && !on {
					released = true
				}
				wasLatched := s.SqueezeLatched
				s = TrackSqueeze(s, on)
				if wasLatched && !s.SqueezeLatched {
					t.Fatalf("n=%d mask=%b step %d: latch reverted", n, mask, i)
				}
				if s.SqueezeLatched != released {
					t.Fatalf("n=%d mask=%b step %d: latched=%v, want %v", n, mask, i, s.SqueezeLatched, released)
				}
				prev = on
			}
		}
	}
}

func TestTrackSqueeze_RecurrenceKeepsLatch(t *testing.T) {
	s := EngineState{}
	for _, on := range []bool{true, false, true, true} {
		s = TrackSqueeze(s, on)
	}
	if !s.SqueezeLatched {
		t.Fatal("latch must survive a new squeeze")
	}
	if !s.WasInSqueeze {
		t.Error("expected WasInSqueeze to follow the last reading")
	}
}
