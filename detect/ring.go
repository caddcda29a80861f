package detect

import "sync/atomic"

// RingBuffer is a fixed-capacity circular buffer of mono float32 samples with
// a single writer (the audio callback) and occasional readers (the
// classification tick). The write path takes no lock and allocates nothing;
// readers snapshot via the atomic cursor and copy. A read racing a wrap may
// see a single stale or duplicated boundary sample, which is harmless at
// window lengths of hundreds of milliseconds.
type RingBuffer struct {
	data   []float32
	cursor atomic.Int64 // total samples ever written
}

// NewRingBuffer creates a buffer holding capacity samples. The buffer starts
// zero-filled, so early reads return leading silence.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer{data: make([]float32, capacity)}
}

func (b *RingBuffer) Cap() int { return len(b.data) }

// Write appends samples, wrapping modulo capacity and overwriting the oldest
// data. Chunks larger than the capacity keep only their most recent samples.
func (b *RingBuffer) Write(samples []float32) {
	capacity := len(b.data)
	if len(samples) == 0 {
		return
	}
	advance := len(samples)
	if advance > capacity {
		samples = samples[advance-capacity:]
	}
	// Offset by any trimmed prefix so the kept samples land where the full
	// chunk's tail would have.
	pos := int((b.cursor.Load() + int64(advance-len(samples))) % int64(capacity))
	n := copy(b.data[pos:], samples)
	copy(b.data, samples[n:])
	b.cursor.Add(int64(advance))
}

// ReadWindow returns the most recent Cap() samples in chronological order
// (oldest first), reconstructed by reading from the write cursor and
// wrapping. The returned slice is a fresh copy.
func (b *RingBuffer) ReadWindow() []float32 {
	capacity := len(b.data)
	pos := int(b.cursor.Load() % int64(capacity))
	out := make([]float32, capacity)
	n := copy(out, b.data[pos:])
	copy(out[n:], b.data[:pos])
	return out
}
