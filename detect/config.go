// Package detect implements singing-activation detection: an audio capture
// loop feeding a classifier at a fixed cadence, detectors that turn classifier
// output into typed events, and a debounced trigger decision state machine.
package detect

// Mode selects the detector variant a session runs.
type Mode string

const (
	ModeEnergyVAD Mode = "energy_vad"
	ModeSinging   Mode = "singing"
)

// Config holds the activation decision parameters. It is treated as an
// immutable value: a config change builds a fresh trigger state machine
// rather than mutating a live one.
//
// Out-of-range values are not rejected here; validation and clamping is the
// caller's concern (prefs package). The state machine degrades gracefully —
// HoldMs of 0 means "trigger on the first qualifying sample".
type Config struct {
	// StartThreshold is the smoothed probability needed to begin hold-time
	// accumulation. StopThreshold is the lower bar to remain triggered
	// (hysteresis); it must not exceed StartThreshold.
	StartThreshold float64
	StopThreshold  float64

	// EMAAlpha is the exponential moving average smoothing factor in (0, 1].
	EMAAlpha float64

	// HoldMs is how long the smoothed probability must stay above
	// StartThreshold before a trigger fires.
	HoldMs int

	// CooldownMs is the refractory period after a trigger.
	CooldownMs int

	// SpeechMax is the speech probability above which hold accumulation is
	// blocked when RejectSpeech is set.
	SpeechMax    float64
	RejectSpeech bool

	// WindowMs is the audio span analyzed per classification; HopMs the
	// interval between classifications. HopMs <= WindowMs gives overlap.
	WindowMs int
	HopMs    int

	Debug bool
}

// DefaultConfig returns the tuning shipped with the app. Thresholds assume a
// general-purpose audio event classifier scoring in [0, 1].
func DefaultConfig() Config {
	return Config{
		StartThreshold: 0.6,
		StopThreshold:  0.4,
		EMAAlpha:       0.3,
		HoldMs:         300,
		CooldownMs:     1000,
		SpeechMax:      0.5,
		RejectSpeech:   true,
		WindowMs:       975,
		HopMs:          250,
	}
}

// adjustedForSpeechTolerance returns the tuning used when speech rejection is
// off. A cappella singing is frequently misclassified as speech by general
// classifiers, so this mode trades a tighter entry threshold, faster
// smoothing and a shorter hold for accepting speech-like vocal sound.
func adjustedForSpeechTolerance(cfg Config) Config {
	out := cfg
	out.StartThreshold = min(cfg.StartThreshold+0.1, 0.95)
	if out.StopThreshold > out.StartThreshold {
		out.StopThreshold = out.StartThreshold
	}
	out.EMAAlpha = min(cfg.EMAAlpha*1.5, 1.0)
	out.HoldMs = cfg.HoldMs * 2 / 3
	return out
}
