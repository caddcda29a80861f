// Package vad wraps the WebRTC voice activity detector behind a chunked
// byte-feed processor with its own debouncing: a short run of consecutive
// speech frames is required to enter the speaking state, and a hangover of
// silent frames is required to leave it.
package vad

import (
	"fmt"
	"sync"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"
)

const (
	vadMode     = 3  // most aggressive filtering of non-speech
	vadFrameMs  = 20
	enterFrames = 3  // consecutive speech frames to confirm voice (60ms)
	releaseHang = 25 // silent frames before the speaking signal clears (500ms)
)

// Processor accumulates PCM s16le bytes, slices them into 20ms frames and
// tracks a debounced speaking state. Safe for one feeding goroutine plus
// concurrent readers.
type Processor struct {
	vad        *webrtcvad.VAD
	sampleRate int
	frameBytes int

	mu           sync.Mutex
	buf          []byte
	speaking     bool
	speechRun    int
	silenceRun   int
	totalFrames  int
	speechFrames int
	tickTotal    int
	tickSpeech   int
}

// New creates a Processor for the given capture rate. WebRTC VAD supports
// 8000, 16000, 32000 and 48000 Hz.
func New(sampleRate int) (*Processor, error) {
	switch sampleRate {
	case 8000, 16000, 32000, 48000:
	default:
		return nil, fmt.Errorf("vad: unsupported sample rate %d", sampleRate)
	}
	v, err := webrtcvad.New()
	if err != nil {
		return nil, err
	}
	if err := v.SetMode(vadMode); err != nil {
		return nil, err
	}
	return &Processor{
		vad:        v,
		sampleRate: sampleRate,
		frameBytes: sampleRate * vadFrameMs / 1000 * 2,
	}, nil
}

// Process feeds a PCM chunk of any length; complete frames are classified,
// the remainder is buffered for the next call.
func (p *Processor) Process(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.buf = append(p.buf, data...)
	for len(p.buf) >= p.frameBytes {
		frame := p.buf[:p.frameBytes]
		p.buf = p.buf[p.frameBytes:]

		active, err := p.vad.Process(p.sampleRate, frame)
		if err != nil {
			continue
		}
		p.totalFrames++
		if active {
			p.speechFrames++
			p.speechRun++
			p.silenceRun = 0
			if !p.speaking && p.speechRun >= enterFrames {
				p.speaking = true
			}
		} else {
			p.speechRun = 0
			p.silenceRun++
			if p.speaking && p.silenceRun >= releaseHang {
				p.speaking = false
			}
		}
	}
}

// Speaking returns the debounced voice-present signal.
func (p *Processor) Speaking() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.speaking
}

// Stats returns cumulative frame counts.
func (p *Processor) Stats() (total, speech int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totalFrames, p.speechFrames
}

// TickRatio returns the fraction of speech frames since the previous call.
// Returns 0 when no frames arrived in the interval.
func (p *Processor) TickRatio() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	t := p.totalFrames - p.tickTotal
	s := p.speechFrames - p.tickSpeech
	p.tickTotal, p.tickSpeech = p.totalFrames, p.speechFrames
	if t == 0 {
		return 0
	}
	return float64(s) / float64(t)
}

// Reset clears the frame buffer and debounce state.
func (p *Processor) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buf = p.buf[:0]
	p.speaking = false
	p.speechRun = 0
	p.silenceRun = 0
}
