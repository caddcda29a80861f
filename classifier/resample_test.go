package classifier

import (
	"math"
	"testing"
)

func TestResampleSameRate(t *testing.T) {
	in := []float32{1, 2, 3}
	out := resampleLinear(in, 16000, 16000)
	if &out[0] != &in[0] {
		t.Error("same-rate resample should return input unchanged")
	}
}

func TestResampleHalvesLength(t *testing.T) {
	in := make([]float32, 480) // 10ms at 48k
	out := resampleLinear(in, 48000, 16000)
	if len(out) != 160 {
		t.Errorf("len = %d, want 160", len(out))
	}
}

func TestResamplePreservesDC(t *testing.T) {
	in := make([]float32, 441)
	for i := range in {
		in[i] = 0.5
	}
	out := resampleLinear(in, 44100, 16000)
	for i, v := range out {
		if math.Abs(float64(v)-0.5) > 1e-6 {
			t.Fatalf("sample %d = %v, want 0.5", i, v)
		}
	}
}

func TestResampleSineFrequencyPreserved(t *testing.T) {
	// A 100 Hz sine at 48k resampled to 16k should still cross zero
	// roughly every 80 output samples (half period).
	const freq = 100.0
	in := make([]float32, 4800)
	for i := range in {
		in[i] = float32(math.Sin(2 * math.Pi * freq * float64(i) / 48000))
	}
	out := resampleLinear(in, 48000, 16000)

	crossings := 0
	for i := 1; i < len(out); i++ {
		if (out[i-1] < 0) != (out[i] < 0) {
			crossings++
		}
	}
	// 100ms of 100Hz has ~20 zero crossings.
	if crossings < 18 || crossings > 22 {
		t.Errorf("zero crossings = %d, want ~20", crossings)
	}
}

func TestResampleEmpty(t *testing.T) {
	if out := resampleLinear(nil, 48000, 16000); len(out) != 0 {
		t.Errorf("expected empty output, got %d samples", len(out))
	}
}
