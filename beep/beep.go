// Package beep plays short audible cues: a rising chime when activation
// triggers, a low double-beep for the silence warning, and an error tone.
// Playback failures are silent; a missing output device must never affect
// detection.
package beep

var disabled bool

func Disable() { disabled = true }

const (
	sampleRate = 44100

	// Trigger chime: two rising notes (A5 -> E6)
	triggerFreq1  = 880
	triggerFreq2  = 1320
	triggerVolume = 0.4
	triggerDecay  = 25

	// Silence warning: low double-beep
	warnFreq   = 350
	warnVolume = 0.5
	warnDecay  = 30

	// Error: lower single tone
	errorFreq   = 220
	errorVolume = 0.6
	errorDecay  = 20
)
