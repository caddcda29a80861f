package detect

import (
	"fmt"
	"sync"
	"time"

	"attacca/log"
)

// Snapshot is the session state callers poll or receive on every change.
type Snapshot struct {
	Listening       bool
	Mode            Mode
	State           DetectorState
	LastProbability float64
	Smoothed        float64
	HoldProgress    float64
	TriggerCount    int
	LastTriggerAt   time.Time // zero when none
	SilenceWarned   bool
	LastError       string
}

// DetectorFactory builds the detector for a mode. The session owns exactly
// one live detector at a time and exhaustively matches on mode.
type DetectorFactory func(mode Mode, cfg Config) (Detector, error)

// Session is the top-level activation lifecycle: it holds the current mode
// and config, owns the active detector, re-creates it on mode change, and
// fans detector events out to snapshot and trigger subscribers.
//
// Sessions are driven by infrequent user-facing events; a single transition
// mutex serializes Start/Stop/mode changes.
type Session struct {
	factory DetectorFactory

	transition sync.Mutex // serializes lifecycle operations

	mu        sync.Mutex // guards the fields below
	mode      Mode
	cfg       Config
	det       Detector
	unsub     func()
	listening bool
	silence   *SilenceMonitor
	snap      Snapshot

	snapshotSubs fanout[Snapshot]
	triggerSubs  fanout[time.Time]
	silenceSubs  fanout[SilenceEvent]
}

func NewSession(mode Mode, cfg Config, factory DetectorFactory) *Session {
	s := &Session{factory: factory}
	s.mode = mode
	s.cfg = cfg
	s.snap = Snapshot{Mode: mode, State: StateIdle}
	return s
}

// StartListening builds and starts the detector for the current mode.
// No-op when already listening. On failure the detector reference is cleared
// and the error surfaced; the session does not retry.
func (s *Session) StartListening() error {
	s.transition.Lock()
	defer s.transition.Unlock()
	return s.startLocked()
}

func (s *Session) startLocked() error {
	s.mu.Lock()
	if s.listening {
		s.mu.Unlock()
		return nil
	}
	mode, cfg := s.mode, s.cfg
	s.mu.Unlock()

	det, err := s.factory(mode, cfg)
	if err != nil {
		return fmt.Errorf("building %s detector: %w", mode, err)
	}

	unsub := det.OnEvent(s.handleEvent)

	if err := det.Start(); err != nil {
		unsub()
		det.Dispose()
		s.mu.Lock()
		s.snap.LastError = err.Error()
		snap := s.snap
		s.mu.Unlock()
		s.snapshotSubs.emit(snap)
		return err
	}

	s.mu.Lock()
	s.det = det
	s.unsub = unsub
	s.listening = true
	s.silence = NewSilenceMonitor(cfg.HopMs, true)
	s.snap.Listening = true
	s.snap.Mode = mode
	s.snap.State = det.State()
	s.snap.LastError = ""
	snap := s.snap
	s.mu.Unlock()

	s.snapshotSubs.emit(snap)
	return nil
}

// StopListening unsubscribes, stops and disposes the detector, and resets
// the snapshot to the idle default. No-op when not listening.
func (s *Session) StopListening() {
	s.transition.Lock()
	defer s.transition.Unlock()
	s.stopLocked()
}

func (s *Session) stopLocked() {
	s.mu.Lock()
	det, unsub := s.det, s.unsub
	s.det, s.unsub = nil, nil
	wasListening := s.listening
	s.listening = false
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	if det != nil {
		det.Stop()
		det.Dispose()
	}
	if !wasListening {
		return
	}

	s.mu.Lock()
	s.silence = nil
	s.snap.Listening = false
	s.snap.State = StateIdle
	s.snap.LastProbability = 0
	s.snap.Smoothed = 0
	s.snap.HoldProgress = 0
	s.snap.SilenceWarned = false
	snap := s.snap
	s.mu.Unlock()
	s.snapshotSubs.emit(snap)
}

// OnModeChange swaps the detector variant. Always routes through the
// not-listening state; if the session was listening it restarts with the new
// mode, and a restart failure leaves it idle rather than half-started.
func (s *Session) OnModeChange(mode Mode, cfg Config) error {
	s.transition.Lock()
	defer s.transition.Unlock()

	s.mu.Lock()
	oldMode := s.mode
	wasListening := s.listening
	s.mu.Unlock()

	if mode == oldMode {
		s.mu.Lock()
		s.cfg = cfg
		s.mu.Unlock()
		return s.applyConfigLocked(cfg)
	}

	if wasListening {
		s.stopLocked()
	}

	s.mu.Lock()
	s.mode = mode
	s.cfg = cfg
	s.snap.Mode = mode
	s.mu.Unlock()
	log.ModeChange(string(oldMode), string(mode))

	if !wasListening {
		return nil
	}
	if err := s.startLocked(); err != nil {
		log.Errorf("restart after mode change failed: %v", err)
		return err
	}
	return nil
}

// OnConfigChange applies new decision parameters. For the classifier-based
// detector this happens in place — only the trigger state machine is
// rebuilt, the audio pipeline is not torn down.
func (s *Session) OnConfigChange(cfg Config) error {
	s.transition.Lock()
	defer s.transition.Unlock()

	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	return s.applyConfigLocked(cfg)
}

func (s *Session) applyConfigLocked(cfg Config) error {
	s.mu.Lock()
	det := s.det
	listening := s.listening
	s.mu.Unlock()

	if !listening || det == nil {
		return nil
	}
	if sd, ok := det.(*SingingDetector); ok {
		sd.SetConfig(cfg)
		return nil
	}
	// The VAD engine carries its own fixed tuning; a restart picks up the
	// new hop cadence.
	s.stopLocked()
	return s.startLocked()
}

// Snapshot returns the current session state for polling.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Mode returns the currently configured detector mode.
func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// OnSnapshot subscribes to state snapshots, emitted on every change.
func (s *Session) OnSnapshot(fn func(Snapshot)) func() {
	return s.snapshotSubs.subscribe(fn)
}

// OnTrigger subscribes to trigger firings only. The host wires this to its
// playback controller.
func (s *Session) OnTrigger(fn func(time.Time)) func() {
	return s.triggerSubs.subscribe(fn)
}

// OnSilence subscribes to silence monitor events.
func (s *Session) OnSilence(fn func(SilenceEvent)) func() {
	return s.silenceSubs.subscribe(fn)
}

// handleEvent folds detector events into the snapshot and fans out.
func (s *Session) handleEvent(ev Event) {
	var silenceEv SilenceEvent
	s.mu.Lock()
	switch ev.Kind {
	case EventProbability:
		s.snap.LastProbability = ev.PSinging
		s.snap.Smoothed = ev.Smoothed
		s.snap.HoldProgress = ev.HoldProgress
		if s.silence != nil {
			silenceEv = s.silence.Tick(ev.Smoothed >= s.cfg.StopThreshold)
			switch silenceEv {
			case SilenceWarn:
				s.snap.SilenceWarned = true
			case SilenceWarnClear:
				s.snap.SilenceWarned = false
			}
		}
	case EventStateChange:
		s.snap.State = ev.State
	case EventTrigger:
		s.snap.TriggerCount++
		s.snap.LastTriggerAt = time.Now()
	case EventError:
		if ev.Err != nil {
			s.snap.LastError = ev.Err.Error()
			log.Errorf("detector error: %v", ev.Err)
		}
	}
	snap := s.snap
	s.mu.Unlock()

	s.snapshotSubs.emit(snap)
	if ev.Kind == EventTrigger {
		s.triggerSubs.emit(snap.LastTriggerAt)
	}
	if silenceEv != SilenceNone {
		s.silenceSubs.emit(silenceEv)
	}
}
