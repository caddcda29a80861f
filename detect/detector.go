package detect

import (
	"errors"
	"fmt"
	"sync"

	"attacca/audio"
)

// DetectorState is the externally visible lifecycle state of a detector.
type DetectorState int

const (
	// StateIdle: not capturing.
	StateIdle DetectorState = iota
	// StateListening: capturing, no trigger active.
	StateListening
	// StateTriggered: a trigger fired and is still active per hysteresis.
	StateTriggered
)

func (s DetectorState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateTriggered:
		return "triggered"
	}
	return "unknown"
}

// EventKind tags an Event.
type EventKind int

const (
	EventProbability EventKind = iota
	EventStateChange
	EventTrigger
	EventError
)

// Event is the fan-out payload detectors emit to subscribers. Fields beyond
// Kind are populated per kind: Probability fills PSinging/PSpeech,
// StateChange fills State, Error fills Err.
type Event struct {
	Kind       EventKind
	PSinging   float64
	PSpeech    float64
	HasPSpeech bool
	// Smoothed and HoldProgress mirror the trigger machine's view at the
	// tick that produced a Probability event; UI conveniences.
	Smoothed     float64
	HoldProgress float64
	State        DetectorState
	// Window and SampleRate accompany Trigger events from the classifier
	// detector: a copy of the audio that fired, for clip capture.
	Window     []float32
	SampleRate int
	Err        error
}

// Detector is the common contract of the two activation strategies.
// Start is a no-op when already non-idle; Stop and Dispose are no-ops when
// already idle. Start/Stop are not safe for concurrent invocation; the
// session serializes them.
type Detector interface {
	Start() error
	Stop()
	State() DetectorState
	// OnEvent registers a callback and returns its unsubscribe func.
	// Callbacks run on the detector's tick goroutine and must be quick.
	OnEvent(fn func(Event)) (unsubscribe func())
	// Dispose stops the detector and releases held resources (classifier,
	// device callback) and clears all subscribers.
	Dispose()
}

// ErrorKind classifies detector failures.
type ErrorKind int

const (
	// ErrMicrophonePermission: the OS denied microphone access. Fatal for
	// the session until the user intervenes; never retried automatically.
	ErrMicrophonePermission ErrorKind = iota
	// ErrClassifierInit: the model failed to load. The caller may retry
	// Start.
	ErrClassifierInit
	// ErrAudioCapture: device failure, possibly mid-session.
	ErrAudioCapture
)

func (k ErrorKind) String() string {
	switch k {
	case ErrMicrophonePermission:
		return "microphone_permission"
	case ErrClassifierInit:
		return "classifier_init"
	case ErrAudioCapture:
		return "audio_capture"
	}
	return "unknown"
}

// DetectorError carries the failure taxonomy callers branch on.
type DetectorError struct {
	Kind    ErrorKind
	Message string
	cause   error
}

func newDetectorError(kind ErrorKind, cause error, format string, args ...any) *DetectorError {
	return &DetectorError{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}

// captureErrorKind classifies a device start failure: an OS microphone
// denial is fatal until the user intervenes, anything else is a retryable
// capture error.
func captureErrorKind(err error) ErrorKind {
	if errors.Is(err, audio.ErrPermissionDenied) {
		return ErrMicrophonePermission
	}
	return ErrAudioCapture
}

func (e *DetectorError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *DetectorError) Unwrap() error { return e.cause }

// fanout is a small callback registry shared by detectors and the session.
type fanout[T any] struct {
	mu   sync.Mutex
	next int
	subs map[int]func(T)
}

func (f *fanout[T]) subscribe(fn func(T)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subs == nil {
		f.subs = make(map[int]func(T))
	}
	id := f.next
	f.next++
	f.subs[id] = fn
	return func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
	}
}

func (f *fanout[T]) emit(v T) {
	f.mu.Lock()
	fns := make([]func(T), 0, len(f.subs))
	for _, fn := range f.subs {
		fns = append(fns, fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(v)
	}
}

func (f *fanout[T]) clear() {
	f.mu.Lock()
	f.subs = nil
	f.mu.Unlock()
}
