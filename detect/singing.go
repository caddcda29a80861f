package detect

import (
	"sync"
	"time"

	"attacca/audio"
	"attacca/classifier"
	"attacca/log"
)

// ClassifierFactory builds the audio event classifier on first use. Model
// load is slow (hundreds of ms to seconds); the detector gates start on it.
type ClassifierFactory func() (classifier.Classifier, error)

// statsEvery is how many classification ticks pass between tick_stats log
// lines (~1 minute at the default 250ms hop).
const statsEvery = 240

// SingingDetector runs a multi-class audio event classifier on each hop
// window, maps the classifier's categories to singing and speech
// probabilities, and drives one TriggerStateMachine to decide when the user
// started singing.
type SingingDetector struct {
	device  audio.CaptureDevice
	factory ClassifierFactory

	mu      sync.Mutex
	state   DetectorState
	cfg     Config
	cls     classifier.Classifier
	trigger *TriggerStateMachine
	loop    *CaptureLoop
	initCh  chan struct{} // non-nil while a Start is initializing
	initErr error
	gen     int64 // bumped on every stop; stale ticks check it

	ticks      int
	tickErrs   int
	classifyMs float64

	events fanout[Event]
}

func NewSingingDetector(device audio.CaptureDevice, cfg Config, factory ClassifierFactory) *SingingDetector {
	return &SingingDetector{
		device:  device,
		factory: factory,
		cfg:     cfg,
	}
}

// Start loads the classifier if needed and begins capture. No-op when
// already listening. A concurrent Start during initialization awaits the
// in-flight attempt instead of starting a duplicate.
func (d *SingingDetector) Start() error {
	d.mu.Lock()
	if d.state != StateIdle {
		d.mu.Unlock()
		return nil
	}
	if ch := d.initCh; ch != nil {
		d.mu.Unlock()
		<-ch
		d.mu.Lock()
		err := d.initErr
		d.mu.Unlock()
		return err
	}
	ch := make(chan struct{})
	d.initCh = ch
	startGen := d.gen
	d.mu.Unlock()

	err := d.doStart(startGen)

	d.mu.Lock()
	d.initErr = err
	d.initCh = nil
	close(ch)
	started := d.state == StateListening
	d.mu.Unlock()

	if started {
		d.events.emit(Event{Kind: EventStateChange, State: StateListening})
	}
	return err
}

func (d *SingingDetector) doStart(startGen int64) error {
	d.mu.Lock()
	cls := d.cls
	cfg := d.cfg
	d.mu.Unlock()

	if cls == nil {
		loadStart := time.Now()
		var err error
		cls, err = d.factory()
		if err != nil {
			return newDetectorError(ErrClassifierInit, err, "loading classifier")
		}
		log.ClassifierLoad("singing", float64(time.Since(loadStart).Milliseconds()))
	}

	eff := cfg
	if !cfg.RejectSpeech {
		eff = adjustedForSpeechTolerance(cfg)
	}

	d.mu.Lock()
	if d.gen != startGen {
		// Superseded by a Stop while the model was loading. Keep the loaded
		// classifier for the next attempt but do not touch the device.
		d.cls = cls
		d.mu.Unlock()
		return nil
	}
	d.cls = cls
	d.trigger = NewTriggerStateMachine(eff)
	d.ticks, d.tickErrs, d.classifyMs = 0, 0, 0
	gen := d.gen
	loop := NewCaptureLoop(d.device, cfg.WindowMs, cfg.HopMs, func(w []float32, rate int) {
		d.tick(gen, w, rate)
	})
	d.loop = loop
	d.mu.Unlock()

	if err := loop.Start(); err != nil {
		d.mu.Lock()
		d.loop = nil
		d.mu.Unlock()
		return newDetectorError(captureErrorKind(err), err, "starting audio capture")
	}

	d.mu.Lock()
	if d.gen != startGen {
		d.loop = nil
		d.mu.Unlock()
		loop.Stop()
		return nil
	}
	d.state = StateListening
	d.mu.Unlock()
	return nil
}

// tick is the per-hop classification step. Runs on the capture loop's tick
// goroutine; the generation check discards results that arrive after Stop.
func (d *SingingDetector) tick(gen int64, window []float32, sampleRate int) {
	d.mu.Lock()
	if gen != d.gen || d.state == StateIdle {
		d.mu.Unlock()
		return
	}
	cls := d.cls
	cfg := d.cfg
	trig := d.trigger
	d.mu.Unlock()

	classifyStart := time.Now()
	scores, err := cls.Classify(window, sampleRate)
	elapsed := time.Since(classifyStart)

	d.mu.Lock()
	d.ticks++
	d.classifyMs += float64(elapsed.Milliseconds())
	if err != nil {
		d.tickErrs++
	}
	if d.ticks%statsEvery == 0 {
		log.TickStats(d.ticks, d.tickErrs, d.classifyMs/float64(d.ticks))
	}
	d.mu.Unlock()

	if err != nil {
		// A single failed classification is "no signal this tick" — report
		// and keep the loop alive.
		log.Warnf("classification error: %v", err)
		d.events.emit(Event{Kind: EventError, Err: err})
		return
	}

	pSinging := classifier.MaxScore(scores, classifier.Singing)
	pSpeech := classifier.MaxScore(scores, classifier.Speech)

	effective := pSinging
	if !cfg.RejectSpeech && pSpeech > pSinging {
		// With rejection off, ambiguous speech-like vocal sound counts as
		// singing: a cappella voice often lands in the speech classes.
		effective = pSpeech
	}

	out := trig.Process(TriggerInput{
		PSinging:    effective,
		PSpeech:     pSpeech,
		HasPSpeech:  true,
		TimestampMs: time.Now().UnixMilli(),
	})

	d.events.emit(Event{
		Kind:         EventProbability,
		PSinging:     pSinging,
		PSpeech:      pSpeech,
		HasPSpeech:   true,
		Smoothed:     out.SmoothedProbability,
		HoldProgress: out.HoldProgress,
	})

	d.mu.Lock()
	if gen != d.gen {
		d.mu.Unlock()
		return
	}
	var emits []Event
	switch {
	case out.ShouldTrigger:
		d.state = StateTriggered
		clip := make([]float32, len(window))
		copy(clip, window)
		emits = append(emits,
			Event{Kind: EventStateChange, State: StateTriggered},
			Event{Kind: EventTrigger, Window: clip, SampleRate: sampleRate})
	case d.state == StateTriggered && out.State == TriggerIdle:
		d.state = StateListening
		emits = append(emits, Event{Kind: EventStateChange, State: StateListening})
	}
	debug := cfg.Debug
	d.mu.Unlock()

	if out.ShouldTrigger {
		log.Trigger(string(ModeSinging), out.SmoothedProbability, pSinging, pSpeech)
	}
	if debug && len(emits) > 0 {
		log.Info("detector_state: " + emits[0].State.String())
	}
	for _, e := range emits {
		d.events.emit(e)
	}
}

// Stop halts capture and discards any in-flight tick. No-op when idle unless
// an initialization is in flight, which it cancels.
func (d *SingingDetector) Stop() {
	d.mu.Lock()
	if d.state == StateIdle && d.initCh == nil {
		d.mu.Unlock()
		return
	}
	d.gen++
	loop := d.loop
	d.loop = nil
	wasActive := d.state != StateIdle
	d.state = StateIdle
	d.mu.Unlock()

	if loop != nil {
		loop.Stop()
	}
	if wasActive {
		d.events.emit(Event{Kind: EventStateChange, State: StateIdle})
	}
}

func (d *SingingDetector) State() DetectorState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *SingingDetector) OnEvent(fn func(Event)) func() {
	return d.events.subscribe(fn)
}

// SetConfig swaps the decision parameters in place: only the trigger state
// machine is rebuilt, the audio pipeline keeps running. Window and hop
// changes take effect on the next Start.
func (d *SingingDetector) SetConfig(cfg Config) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cfg = cfg
	if d.trigger != nil {
		eff := cfg
		if !cfg.RejectSpeech {
			eff = adjustedForSpeechTolerance(cfg)
		}
		d.trigger = NewTriggerStateMachine(eff)
	}
}

// Dispose stops the detector, releases the classifier and drops subscribers.
func (d *SingingDetector) Dispose() {
	d.Stop()
	d.mu.Lock()
	cls := d.cls
	d.cls = nil
	d.mu.Unlock()
	if cls != nil {
		cls.Close()
	}
	d.events.clear()
}
