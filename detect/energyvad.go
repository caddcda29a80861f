package detect

import (
	"sync"
	"time"

	"attacca/audio"
	"attacca/log"
	"attacca/vad"
)

// EnergyVADDetector adapts the WebRTC voice-activity engine to the Detector
// contract. The engine performs its own debouncing (entry run + release
// hangover), so no TriggerStateMachine sits behind it: the upstream speaking
// signal maps 1:1 to the Triggered state.
type EnergyVADDetector struct {
	device audio.CaptureDevice
	hop    time.Duration

	mu    sync.Mutex
	state DetectorState
	proc  *vad.Processor
	stop  chan struct{}
	done  chan struct{}

	events fanout[Event]
}

func NewEnergyVADDetector(device audio.CaptureDevice, cfg Config) *EnergyVADDetector {
	return &EnergyVADDetector{
		device: device,
		hop:    time.Duration(cfg.HopMs) * time.Millisecond,
	}
}

func (d *EnergyVADDetector) Start() error {
	d.mu.Lock()
	if d.state != StateIdle {
		d.mu.Unlock()
		return nil
	}

	proc, err := vad.New(int(d.device.SampleRate()))
	if err != nil {
		d.mu.Unlock()
		return newDetectorError(ErrClassifierInit, err, "initializing VAD engine")
	}

	d.device.SetCallback(func(data []byte, _ uint32) {
		proc.Process(data)
	})
	if err := d.device.Start(); err != nil {
		d.device.ClearCallback()
		d.mu.Unlock()
		return newDetectorError(captureErrorKind(err), err, "starting audio capture")
	}

	d.proc = proc
	d.stop = make(chan struct{})
	d.done = make(chan struct{})
	d.state = StateListening

	go d.run(proc, d.stop, d.done)
	d.mu.Unlock()

	d.events.emit(Event{Kind: EventStateChange, State: StateListening})
	return nil
}

func (d *EnergyVADDetector) run(proc *vad.Processor, stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(d.hop)
	defer ticker.Stop()

	speaking := false
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ratio := proc.TickRatio()
			now := proc.Speaking()

			d.events.emit(Event{
				Kind:     EventProbability,
				PSinging: ratio,
				Smoothed: ratio,
			})

			if now == speaking {
				continue
			}
			speaking = now

			d.mu.Lock()
			if d.state == StateIdle {
				d.mu.Unlock()
				return
			}
			if speaking {
				d.state = StateTriggered
			} else {
				d.state = StateListening
			}
			state := d.state
			d.mu.Unlock()

			d.events.emit(Event{Kind: EventStateChange, State: state})
			if speaking {
				log.Trigger(string(ModeEnergyVAD), ratio, ratio, 0)
				d.events.emit(Event{Kind: EventTrigger})
			}
		}
	}
}

func (d *EnergyVADDetector) Stop() {
	d.mu.Lock()
	if d.state == StateIdle {
		d.mu.Unlock()
		return
	}
	stop, done := d.stop, d.done
	d.stop, d.done = nil, nil
	d.proc = nil
	d.state = StateIdle
	d.mu.Unlock()

	close(stop)
	<-done
	d.device.ClearCallback()
	d.device.Stop()
	d.events.emit(Event{Kind: EventStateChange, State: StateIdle})
}

func (d *EnergyVADDetector) State() DetectorState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *EnergyVADDetector) OnEvent(fn func(Event)) func() {
	return d.events.subscribe(fn)
}

func (d *EnergyVADDetector) Dispose() {
	d.Stop()
	d.events.clear()
}
