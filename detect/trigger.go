package detect

// TriggerState is the decision phase of one TriggerStateMachine.
type TriggerState int

const (
	// TriggerIdle: smoothed probability below the start threshold.
	TriggerIdle TriggerState = iota
	// TriggerAccumulating: above threshold, waiting out the hold time.
	TriggerAccumulating
	// TriggerTriggered: a trigger fired and probability is still above the
	// stop threshold.
	TriggerTriggered
	// TriggerCooldown: refractory period immediately after a fire.
	TriggerCooldown
)

func (s TriggerState) String() string {
	switch s {
	case TriggerIdle:
		return "idle"
	case TriggerAccumulating:
		return "accumulating"
	case TriggerTriggered:
		return "triggered"
	case TriggerCooldown:
		return "cooldown"
	}
	return "unknown"
}

// TriggerInput is one classification tick's worth of evidence.
type TriggerInput struct {
	PSinging float64
	// PSpeech is only meaningful when HasPSpeech is set; the energy detector
	// path has no separate speech probability.
	PSpeech     float64
	HasPSpeech  bool
	TimestampMs int64
}

// TriggerOutput is the synchronous result of one Process call.
type TriggerOutput struct {
	State               TriggerState
	SmoothedProbability float64
	ShouldTrigger       bool
	// HoldProgress is 0..1 fraction of the hold time accumulated so far.
	HoldProgress float64
}

// TriggerStateMachine turns noisy per-tick probabilities into a single
// debounced trigger decision using EMA smoothing, hysteresis, hold time,
// cooldown and an optional speech gate. It performs no I/O and must only be
// called from one goroutine; each detector owns exactly one instance and
// drives it from its classification tick.
type TriggerStateMachine struct {
	cfg Config

	state             TriggerState
	smoothed          float64
	accumulateStartAt int64 // unix ms; negative when unset
	lastTriggerAt     int64 // unix ms; negative when unset
}

func NewTriggerStateMachine(cfg Config) *TriggerStateMachine {
	return &TriggerStateMachine{
		cfg:               cfg,
		accumulateStartAt: -1,
		lastTriggerAt:     -1,
	}
}

// Process advances the machine by one tick.
func (m *TriggerStateMachine) Process(in TriggerInput) TriggerOutput {
	now := in.TimestampMs

	// Smoothing runs unconditionally, including during cooldown, so the
	// cooldown-exit decision sees an up-to-date value.
	a := m.cfg.EMAAlpha
	m.smoothed = (1-a)*m.smoothed + a*in.PSinging

	if m.state == TriggerCooldown {
		if now-m.lastTriggerAt < int64(m.cfg.CooldownMs) {
			return m.output(false, 0)
		}
		// Cooldown elapsed. A still-loud singer goes straight back to
		// Triggered without a fresh hold cycle; otherwise start over from
		// Idle. Intentionally asymmetric.
		if m.smoothed >= m.cfg.StopThreshold {
			m.state = TriggerTriggered
		} else {
			m.state = TriggerIdle
		}
	}

	speechBlocking := m.cfg.RejectSpeech && in.HasPSpeech && in.PSpeech > m.cfg.SpeechMax

	if m.state == TriggerTriggered {
		if m.smoothed < m.cfg.StopThreshold {
			m.state = TriggerIdle
			m.accumulateStartAt = -1
		}
		// Never re-fires without first leaving the triggered state.
		return m.output(false, 1)
	}

	if m.smoothed >= m.cfg.StartThreshold && !speechBlocking {
		if m.state == TriggerIdle {
			m.state = TriggerAccumulating
			m.accumulateStartAt = now
		}
		elapsed := now - m.accumulateStartAt
		if elapsed >= int64(m.cfg.HoldMs) {
			m.state = TriggerCooldown
			m.lastTriggerAt = now
			m.accumulateStartAt = -1
			return m.output(true, 1)
		}
		progress := 1.0
		if m.cfg.HoldMs > 0 {
			progress = float64(elapsed) / float64(m.cfg.HoldMs)
			if progress > 1 {
				progress = 1
			}
		}
		return m.output(false, progress)
	}

	// Below threshold or speech-blocked: accumulation restarts from scratch,
	// no partial credit survives a dip.
	if m.state == TriggerAccumulating {
		m.state = TriggerIdle
		m.accumulateStartAt = -1
	}
	return m.output(false, 0)
}

// Reset returns the machine to its initial state without changing config.
func (m *TriggerStateMachine) Reset() {
	m.state = TriggerIdle
	m.smoothed = 0
	m.accumulateStartAt = -1
	m.lastTriggerAt = -1
}

func (m *TriggerStateMachine) State() TriggerState { return m.state }

func (m *TriggerStateMachine) SmoothedProbability() float64 { return m.smoothed }

func (m *TriggerStateMachine) output(trigger bool, progress float64) TriggerOutput {
	return TriggerOutput{
		State:               m.state,
		SmoothedProbability: m.smoothed,
		ShouldTrigger:       trigger,
		HoldProgress:        progress,
	}
}
