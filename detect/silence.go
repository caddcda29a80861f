package detect

const (
	silenceWarnTicks   = 32   // ~8s at the default 250ms hop
	silencePauseTicks  = 120  // ~30s
	activityMinRatio   = 0.10
	activityClearRatio = 0.25 // higher threshold to clear warning (hysteresis)
)

type SilenceEvent int

const (
	SilenceNone      SilenceEvent = iota
	SilenceWarn                   // no singing activity detected
	SilenceWarnClear              // activity resumed after warning
	SilenceAutoPause              // prolonged silence, host may pause following
)

// SilenceMonitor watches the per-tick activity signal (smoothed probability
// above the stop threshold) and tells the host when nothing has been heard
// for a while, so it can dim the UI or pause lyrics following instead of
// scrolling into the void.
type SilenceMonitor struct {
	warnAt   int
	windowSz int

	autoPause bool

	ticks       int
	window      []bool
	activeCount int
	warned      bool
	paused      bool
}

// NewSilenceMonitor builds a monitor sized for the given tick cadence.
// autoPause enables the long-window pause event.
func NewSilenceMonitor(hopMs int, autoPause bool) *SilenceMonitor {
	warnAt := silenceWarnTicks
	windowSz := silencePauseTicks
	if hopMs > 0 {
		warnAt = (8000 + hopMs - 1) / hopMs
		windowSz = (30000 + hopMs - 1) / hopMs
	}
	return &SilenceMonitor{
		warnAt:    warnAt,
		windowSz:  windowSz,
		autoPause: autoPause,
		window:    make([]bool, windowSz),
	}
}

func (m *SilenceMonitor) ratio(n int) float64 {
	if m.ticks < n {
		n = m.ticks
	}
	if n == 0 {
		return 1.0
	}
	count := 0
	for i := 0; i < n; i++ {
		if m.window[(m.ticks-1-i+m.windowSz)%m.windowSz] {
			count++
		}
	}
	return float64(count) / float64(n)
}

// Tick records one activity sample and returns the event to act on, if any.
func (m *SilenceMonitor) Tick(active bool) SilenceEvent {
	idx := m.ticks % m.windowSz
	if m.ticks >= m.windowSz && m.window[idx] {
		m.activeCount--
	}
	m.window[idx] = active
	if active {
		m.activeCount++
	}
	m.ticks++

	r := m.ratio(m.warnAt)

	// Warn: short window below threshold
	if m.ticks >= m.warnAt && r < activityMinRatio && !m.warned {
		m.warned = true
		return SilenceWarn
	}
	// Clear: activity ratio above clear threshold
	if m.warned && r >= activityClearRatio {
		m.warned = false
		return SilenceWarnClear
	}

	if !m.autoPause {
		return SilenceNone
	}

	// Re-arm once activity recovers so the next silent stretch can pause
	// again.
	if m.paused && r >= activityClearRatio {
		m.paused = false
	}

	// Auto-pause: long window below threshold. Latched: sustained silence is
	// the normal state here, so the event fires once per silent stretch, not
	// per tick.
	if !m.paused && m.ticks >= m.windowSz && float64(m.activeCount)/float64(m.windowSz) < activityMinRatio {
		m.paused = true
		return SilenceAutoPause
	}

	return SilenceNone
}

// Reset clears all history, used when listening restarts.
func (m *SilenceMonitor) Reset() {
	m.ticks = 0
	m.activeCount = 0
	m.warned = false
	m.paused = false
	for i := range m.window {
		m.window[i] = false
	}
}
