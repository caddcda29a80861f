package detect

import (
	"math"
	"testing"
)

// stepCfg removes smoothing so assertions can reason about raw probabilities.
func stepCfg() Config {
	cfg := DefaultConfig()
	cfg.EMAAlpha = 1.0
	return cfg
}

func feed(m *TriggerStateMachine, p, pSpeech float64, atMs int64) TriggerOutput {
	return m.Process(TriggerInput{
		PSinging:    p,
		PSpeech:     pSpeech,
		HasPSpeech:  true,
		TimestampMs: atMs,
	})
}

func TestTriggerFiresAfterHold(t *testing.T) {
	m := NewTriggerStateMachine(stepCfg())

	out := feed(m, 0.8, 0.1, 0)
	if out.State != TriggerAccumulating || out.ShouldTrigger {
		t.Fatalf("tick 0: got state=%v trigger=%v, want accumulating/false", out.State, out.ShouldTrigger)
	}
	out = feed(m, 0.8, 0.1, 250)
	if out.ShouldTrigger {
		t.Fatalf("250ms elapsed < 300ms hold, must not trigger")
	}
	if out.HoldProgress < 0.8 || out.HoldProgress >= 1.0 {
		t.Fatalf("hold progress = %v, want 250/300", out.HoldProgress)
	}
	out = feed(m, 0.8, 0.1, 500)
	if !out.ShouldTrigger {
		t.Fatalf("500ms elapsed >= 300ms hold, must trigger")
	}
	if out.State != TriggerCooldown {
		t.Fatalf("post-fire state = %v, want cooldown", out.State)
	}
}

func TestTriggerDipResetsAccumulation(t *testing.T) {
	m := NewTriggerStateMachine(stepCfg())

	feed(m, 0.8, 0.1, 0)
	out := feed(m, 0.1, 0.1, 250)
	if out.State != TriggerIdle || out.HoldProgress != 0 {
		t.Fatalf("dip: got state=%v progress=%v, want idle/0", out.State, out.HoldProgress)
	}

	// Accumulation restarts from scratch; 250ms of prior credit is gone.
	feed(m, 0.8, 0.1, 500)
	out = feed(m, 0.8, 0.1, 750)
	if out.ShouldTrigger {
		t.Fatalf("only 250ms since restart, must not trigger")
	}
	out = feed(m, 0.8, 0.1, 850)
	if !out.ShouldTrigger {
		t.Fatalf("350ms since restart, must trigger")
	}
}

func TestTriggerSpeechGateBlocks(t *testing.T) {
	m := NewTriggerStateMachine(stepCfg())

	out := feed(m, 0.9, 0.9, 0)
	if out.State != TriggerIdle {
		t.Fatalf("high speech must block accumulation, state = %v", out.State)
	}
	// Speech drops below the gate: accumulation may begin.
	out = feed(m, 0.9, 0.2, 250)
	if out.State != TriggerAccumulating {
		t.Fatalf("speech cleared, state = %v, want accumulating", out.State)
	}
	// Speech returns mid-hold: partial credit is discarded.
	out = feed(m, 0.9, 0.9, 400)
	if out.State != TriggerIdle {
		t.Fatalf("speech mid-hold must reset, state = %v", out.State)
	}
}

func TestTriggerSpeechGateDisabled(t *testing.T) {
	cfg := stepCfg()
	cfg.RejectSpeech = false
	m := NewTriggerStateMachine(cfg)

	feed(m, 0.9, 0.9, 0)
	out := feed(m, 0.9, 0.9, 350)
	if !out.ShouldTrigger {
		t.Fatalf("with rejection off, high speech must not block the trigger")
	}
}

func TestTriggerNoPSpeech(t *testing.T) {
	m := NewTriggerStateMachine(stepCfg())

	// Without a speech probability the gate cannot engage, even with
	// rejection enabled.
	m.Process(TriggerInput{PSinging: 0.9, TimestampMs: 0})
	out := m.Process(TriggerInput{PSinging: 0.9, TimestampMs: 350})
	if !out.ShouldTrigger {
		t.Fatalf("missing speech probability must not block the trigger")
	}
}

func TestTriggerCooldownSuppressesRefire(t *testing.T) {
	m := NewTriggerStateMachine(stepCfg())

	feed(m, 0.8, 0.1, 0)
	out := feed(m, 0.8, 0.1, 350)
	if !out.ShouldTrigger {
		t.Fatalf("setup fire failed")
	}
	for _, at := range []int64{600, 900, 1200} {
		out = feed(m, 0.9, 0.1, at)
		if out.ShouldTrigger {
			t.Fatalf("t=%d inside 1000ms cooldown, must not re-fire", at)
		}
		if out.State != TriggerCooldown {
			t.Fatalf("t=%d state = %v, want cooldown", at, out.State)
		}
	}
}

func TestTriggerCooldownExitLoud(t *testing.T) {
	m := NewTriggerStateMachine(stepCfg())

	feed(m, 0.8, 0.1, 0)
	feed(m, 0.8, 0.1, 350) // fires, cooldown starts at 350

	// Cooldown over, probability still above the stop threshold: straight
	// back to triggered, no fresh hold cycle and no second fire.
	out := feed(m, 0.8, 0.1, 1400)
	if out.State != TriggerTriggered || out.ShouldTrigger {
		t.Fatalf("loud cooldown exit: got state=%v trigger=%v, want triggered/false", out.State, out.ShouldTrigger)
	}
}

func TestTriggerCooldownExitQuiet(t *testing.T) {
	m := NewTriggerStateMachine(stepCfg())

	feed(m, 0.8, 0.1, 0)
	feed(m, 0.8, 0.1, 350)

	out := feed(m, 0.1, 0.1, 1400)
	if out.State != TriggerIdle {
		t.Fatalf("quiet cooldown exit: state = %v, want idle", out.State)
	}
}

func TestTriggerHysteresis(t *testing.T) {
	m := NewTriggerStateMachine(stepCfg())

	feed(m, 0.8, 0.1, 0)
	feed(m, 0.8, 0.1, 350)
	feed(m, 0.8, 0.1, 1400) // back to triggered after cooldown

	// Between stop (0.4) and start (0.6): stays triggered.
	out := feed(m, 0.5, 0.1, 1650)
	if out.State != TriggerTriggered {
		t.Fatalf("0.5 >= stop threshold, state = %v, want triggered", out.State)
	}
	// Below stop: releases.
	out = feed(m, 0.3, 0.1, 1900)
	if out.State != TriggerIdle {
		t.Fatalf("0.3 < stop threshold, state = %v, want idle", out.State)
	}
}

func TestTriggerZeroHoldFiresImmediately(t *testing.T) {
	cfg := stepCfg()
	cfg.HoldMs = 0
	m := NewTriggerStateMachine(cfg)

	out := feed(m, 0.8, 0.1, 0)
	if !out.ShouldTrigger {
		t.Fatalf("zero hold time must fire on the first qualifying tick")
	}
}

func TestTriggerEMASmoothing(t *testing.T) {
	cfg := DefaultConfig() // alpha 0.3
	m := NewTriggerStateMachine(cfg)

	out := feed(m, 1.0, 0.0, 0)
	if math.Abs(out.SmoothedProbability-0.3) > 1e-9 {
		t.Fatalf("first smoothed = %v, want 0.3", out.SmoothedProbability)
	}
	prev := out.SmoothedProbability
	for i := 1; i < 20; i++ {
		out = feed(m, 1.0, 0.0, int64(i)*250)
		if out.SmoothedProbability <= prev || out.SmoothedProbability > 1.0 {
			t.Fatalf("tick %d: smoothed = %v, want monotonic rise toward 1", i, out.SmoothedProbability)
		}
		prev = out.SmoothedProbability
	}
}

// TestTriggerDefaultTuning walks the shipped config through a realistic
// burst of steady singing at hop cadence and checks when the fire lands.
func TestTriggerDefaultTuning(t *testing.T) {
	m := NewTriggerStateMachine(DefaultConfig())

	// Smoothed sequence for p=0.9, alpha 0.3:
	// 0.27, 0.459, 0.591, 0.684, ... — crosses the 0.6 start threshold on
	// the 4th tick (t=750), so the 300ms hold is satisfied on the 6th
	// (t=1250).
	var firedAt int64 = -1
	for i := 0; i < 8; i++ {
		at := int64(i) * 250
		out := feed(m, 0.9, 0.1, at)
		if out.ShouldTrigger {
			firedAt = at
			break
		}
	}
	if firedAt != 1250 {
		t.Fatalf("fired at t=%d, want t=1250", firedAt)
	}
}

func TestTriggerSmoothingRunsDuringCooldown(t *testing.T) {
	cfg := stepCfg()
	cfg.EMAAlpha = 0.5
	m := NewTriggerStateMachine(cfg)

	feed(m, 1.0, 0.1, 0)   // smoothed 0.5, below start
	feed(m, 1.0, 0.1, 350) // smoothed 0.75, accumulating from 350
	out := feed(m, 1.0, 0.1, 700)
	if !out.ShouldTrigger {
		t.Fatalf("setup fire failed, smoothed = %v", out.SmoothedProbability)
	}
	// Silence during cooldown decays the EMA even though the state is
	// frozen, so the exit decision sees the decayed value.
	feed(m, 0.0, 0.1, 950)  // 0.375
	feed(m, 0.0, 0.1, 1200) // 0.1875
	out = feed(m, 0.0, 0.1, 1800)
	if out.State != TriggerIdle {
		t.Fatalf("decayed exit: state = %v (smoothed %v), want idle", out.State, out.SmoothedProbability)
	}
}

func TestTriggerReset(t *testing.T) {
	m := NewTriggerStateMachine(stepCfg())
	feed(m, 0.8, 0.1, 0)
	feed(m, 0.8, 0.1, 350)
	m.Reset()
	if m.State() != TriggerIdle || m.SmoothedProbability() != 0 {
		t.Fatalf("reset left state=%v smoothed=%v", m.State(), m.SmoothedProbability())
	}
	// A fresh fire still honors the full hold time.
	out := feed(m, 0.8, 0.1, 400)
	if out.ShouldTrigger {
		t.Fatalf("post-reset tick must not trigger immediately")
	}
}
