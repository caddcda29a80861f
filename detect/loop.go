package detect

import (
	"fmt"
	"sync"
	"time"

	"attacca/audio"
)

// WindowFunc receives one chronological analysis window per hop tick.
// It runs on the loop's tick goroutine.
type WindowFunc func(window []float32, sampleRate int)

// CaptureLoop owns a capture device and a ring buffer: the device callback
// writes incoming samples into the ring, and an independent periodic tick
// reads a window and hands it to the window func. The callback path does no
// allocation and no locking beyond the ring's atomic cursor.
type CaptureLoop struct {
	device     audio.CaptureDevice
	sampleRate int
	hop        time.Duration
	ring       *RingBuffer
	onWindow   WindowFunc

	scratch []float32 // callback conversion buffer, grown once

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// NewCaptureLoop sizes the ring for windowMs at the device's negotiated rate.
func NewCaptureLoop(device audio.CaptureDevice, windowMs, hopMs int, fn WindowFunc) *CaptureLoop {
	rate := int(device.SampleRate())
	capacity := (windowMs*rate + 999) / 1000
	return &CaptureLoop{
		device:     device,
		sampleRate: rate,
		hop:        time.Duration(hopMs) * time.Millisecond,
		ring:       NewRingBuffer(capacity),
		onWindow:   fn,
		scratch:    make([]float32, 0, 4096),
	}
}

// SampleRate returns the negotiated capture rate the windows are delivered at.
func (l *CaptureLoop) SampleRate() int { return l.sampleRate }

// Start registers the audio callback, starts the device, and launches the
// hop ticker. No-op when already running.
func (l *CaptureLoop) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return nil
	}

	l.device.SetCallback(func(data []byte, _ uint32) {
		l.ring.Write(l.convert(data))
	})

	if err := l.device.Start(); err != nil {
		l.device.ClearCallback()
		return fmt.Errorf("starting capture: %w", err)
	}

	l.stop = make(chan struct{})
	l.done = make(chan struct{})
	l.running = true

	go func(stop, done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(l.hop)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				l.onWindow(l.ring.ReadWindow(), l.sampleRate)
			}
		}
	}(l.stop, l.done)

	return nil
}

// Stop tears down in order: cancel the tick, disconnect the callback, stop
// the device. Idempotent, safe after a failed Start.
func (l *CaptureLoop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.running {
		return
	}
	close(l.stop)
	<-l.done
	l.device.ClearCallback()
	l.device.Stop()
	l.running = false
}

// convert turns PCM s16le bytes into float32 samples in [-1, 1), reusing the
// scratch buffer. Divides by 32768 so the full int16 range stays within
// [-1, 1].
func (l *CaptureLoop) convert(data []byte) []float32 {
	n := len(data) / 2
	if cap(l.scratch) < n {
		l.scratch = make([]float32, 0, n)
	}
	samples := l.scratch[:n]
	for i := 0; i < n; i++ {
		u := uint16(data[2*i]) | uint16(data[2*i+1])<<8
		samples[i] = float32(int16(u)) / 32768.0
	}
	return samples
}
