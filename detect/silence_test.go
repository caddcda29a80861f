package detect

import "testing"

// hop 250ms: warn window 32 ticks (8s), pause window 120 ticks (30s)

func quietMonitor() *SilenceMonitor  { return NewSilenceMonitor(250, false) }
func pausedMonitor() *SilenceMonitor { return NewSilenceMonitor(250, true) }

func feedTicks(m *SilenceMonitor, active bool, n int) SilenceEvent {
	var last SilenceEvent
	for i := 0; i < n; i++ {
		last = m.Tick(active)
	}
	return last
}

func TestSilenceWarnAfterShortWindow(t *testing.T) {
	m := quietMonitor()
	for i := 0; i < 31; i++ {
		if ev := m.Tick(false); ev != SilenceNone {
			t.Fatalf("unexpected event at tick %d: %d", i, ev)
		}
	}
	if ev := m.Tick(false); ev != SilenceWarn {
		t.Fatalf("expected SilenceWarn at tick 32, got %d", ev)
	}
}

func TestSilenceWarnClearsOnActivity(t *testing.T) {
	m := quietMonitor()
	feedTicks(m, false, 32)

	// Sustained activity clears the warning once 25% of the short window
	// is active.
	for i := 0; i < 32; i++ {
		if ev := m.Tick(true); ev == SilenceWarnClear {
			return
		}
	}
	t.Fatal("expected SilenceWarnClear after activity resumed")
}

func TestSilenceNoWarnDuringActivity(t *testing.T) {
	m := quietMonitor()
	for i := 0; i < 200; i++ {
		if ev := m.Tick(true); ev == SilenceWarn {
			t.Fatalf("unexpected warn during activity at tick %d", i)
		}
	}
}

func TestSilenceWarnOnlyOnce(t *testing.T) {
	m := quietMonitor()
	warns := 0
	for i := 0; i < 300; i++ {
		if ev := m.Tick(false); ev == SilenceWarn {
			warns++
		}
	}
	if warns != 1 {
		t.Fatalf("expected exactly 1 SilenceWarn, got %d", warns)
	}
}

func TestSilenceAutoPauseAfterLongWindow(t *testing.T) {
	m := pausedMonitor()
	for i := 0; i < 200; i++ {
		if ev := m.Tick(false); ev == SilenceAutoPause {
			if i < 119 {
				t.Fatalf("auto-pause fired early at tick %d", i)
			}
			return
		}
	}
	t.Fatal("expected SilenceAutoPause within 200 ticks")
}

func TestSilenceNoAutoPauseWhenDisabled(t *testing.T) {
	m := quietMonitor()
	for i := 0; i < 400; i++ {
		if ev := m.Tick(false); ev == SilenceAutoPause {
			t.Fatalf("unexpected auto-pause with autoPause off at tick %d", i)
		}
	}
}

func TestSilenceAutoPauseFiresOnce(t *testing.T) {
	m := pausedMonitor()
	fired := 0
	for i := 0; i < 400; i++ {
		if m.Tick(false) == SilenceAutoPause {
			fired++
		}
	}
	if fired != 1 {
		t.Fatalf("auto-pause fired %d times over one silent stretch, want 1", fired)
	}
}

func TestSilenceAutoPauseRearmsAfterActivity(t *testing.T) {
	m := pausedMonitor()
	feedTicks(m, false, 130) // first auto-pause fires in here
	feedTicks(m, true, 40)   // recovery clears the latch

	fired := 0
	for i := 0; i < 400; i++ {
		if m.Tick(false) == SilenceAutoPause {
			fired++
		}
	}
	if fired != 1 {
		t.Fatalf("auto-pause after recovery fired %d times, want 1", fired)
	}
}

func TestSilenceAutoPausePreventedByActivity(t *testing.T) {
	m := pausedMonitor()
	for i := 0; i < 500; i++ {
		active := i%10 < 7
		if ev := m.Tick(active); ev == SilenceAutoPause {
			t.Fatalf("unexpected auto-pause with 70%% activity at tick %d", i)
		}
	}
}

func TestSilenceWarnStaysDuringSparseActivity(t *testing.T) {
	m := quietMonitor()
	feedTicks(m, false, 32)

	// Occasional blips below the 25% clear threshold must not clear.
	for i := 0; i < 32; i++ {
		active := i%10 == 0
		if ev := m.Tick(active); ev == SilenceWarnClear {
			t.Fatalf("warning cleared by 10%% activity at tick %d", i)
		}
	}
}

func TestSilenceReset(t *testing.T) {
	m := pausedMonitor()
	feedTicks(m, false, 130) // warned and auto-pause territory
	m.Reset()
	for i := 0; i < 31; i++ {
		if ev := m.Tick(false); ev != SilenceNone {
			t.Fatalf("history survived reset, event %d at tick %d", ev, i)
		}
	}
}
