package detect

import "testing"

func TestRingBufferStartsSilent(t *testing.T) {
	b := NewRingBuffer(8)
	for i, v := range b.ReadWindow() {
		if v != 0 {
			t.Fatalf("sample %d = %v, want 0", i, v)
		}
	}
}

func TestRingBufferKeepsMostRecent(t *testing.T) {
	b := NewRingBuffer(1000)
	chunk := make([]float32, 0, 128)
	for i := 0; i < 2000; i++ {
		chunk = append(chunk, float32(i))
		if len(chunk) == 128 || i == 1999 {
			b.Write(chunk)
			chunk = chunk[:0]
		}
	}
	w := b.ReadWindow()
	if len(w) != 1000 {
		t.Fatalf("window length = %d, want 1000", len(w))
	}
	for i, v := range w {
		if v != float32(1000+i) {
			t.Fatalf("sample %d = %v, want %v", i, v, 1000+i)
		}
	}
}

func TestRingBufferWrapMidChunk(t *testing.T) {
	b := NewRingBuffer(10)
	b.Write([]float32{0, 1, 2, 3, 4, 5, 6})
	b.Write([]float32{7, 8, 9, 10, 11, 12}) // wraps after 3
	w := b.ReadWindow()
	for i, v := range w {
		if v != float32(3+i) {
			t.Fatalf("sample %d = %v, want %v", i, v, 3+i)
		}
	}
}

func TestRingBufferOversizedWrite(t *testing.T) {
	b := NewRingBuffer(4)
	in := []float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	b.Write(in)
	w := b.ReadWindow()
	want := []float32{7, 8, 9, 10}
	for i, v := range w {
		if v != want[i] {
			t.Fatalf("sample %d = %v, want %v", i, v, want[i])
		}
	}
	// The cursor advanced by the full input length, keeping subsequent
	// writes aligned.
	b.Write([]float32{11})
	w = b.ReadWindow()
	want = []float32{8, 9, 10, 11}
	for i, v := range w {
		if v != want[i] {
			t.Fatalf("after follow-up write: sample %d = %v, want %v", i, v, want[i])
		}
	}
}

func TestRingBufferEmptyWrite(t *testing.T) {
	b := NewRingBuffer(4)
	b.Write([]float32{1, 2})
	b.Write(nil)
	w := b.ReadWindow()
	want := []float32{0, 0, 1, 2}
	for i, v := range w {
		if v != want[i] {
			t.Fatalf("sample %d = %v, want %v", i, v, want[i])
		}
	}
}

func TestRingBufferMinimumCapacity(t *testing.T) {
	b := NewRingBuffer(0)
	if b.Cap() != 1 {
		t.Fatalf("cap = %d, want 1", b.Cap())
	}
	b.Write([]float32{5})
	if w := b.ReadWindow(); w[0] != 5 {
		t.Fatalf("sample = %v, want 5", w[0])
	}
}
