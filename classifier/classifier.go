// Package classifier provides the multi-class audio event classifier the
// singing detector runs on each analysis window, together with the fixed
// label sets that map classifier categories to singing and speech
// probabilities.
package classifier

// Score is one classifier category with its confidence.
type Score struct {
	Label string
	Value float64
}

// Classifier scores one audio window. Window samples are float32 in [-1, 1],
// mono, at the given rate; implementations resample internally when they need
// a specific rate. Classify is called from a single goroutine at the hop
// cadence and may block for the duration of one inference.
type Classifier interface {
	Classify(window []float32, sampleRate int) ([]Score, error)
	Close() error
}

// Func adapts a plain function to the Classifier interface. Used by tests
// and by callers that script classification results.
type Func func(window []float32, sampleRate int) ([]Score, error)

func (f Func) Classify(window []float32, sampleRate int) ([]Score, error) {
	return f(window, sampleRate)
}

func (f Func) Close() error { return nil }
