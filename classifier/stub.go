package classifier

import "fmt"

// Stub replays a scripted sequence of score sets, one per Classify call,
// repeating the final entry once the script is exhausted. It ignores audio
// data entirely; tests use it to drive the detector deterministically.
type Stub struct {
	script [][]Score
	failAt map[int]struct{}
	calls  int
	closed bool
}

// NewStub creates a Stub from the given per-call score sets.
func NewStub(script ...[]Score) *Stub {
	return &Stub{script: script, failAt: make(map[int]struct{})}
}

// FailAt makes the n-th Classify call (0-based) return an error instead of a
// result, for exercising per-tick error handling.
func (s *Stub) FailAt(n int) *Stub {
	s.failAt[n] = struct{}{}
	return s
}

// Calls returns how many times Classify has been invoked.
func (s *Stub) Calls() int { return s.calls }

// Closed reports whether Close has been called.
func (s *Stub) Closed() bool { return s.closed }

func (s *Stub) Classify(_ []float32, _ int) ([]Score, error) {
	n := s.calls
	s.calls++
	if _, ok := s.failAt[n]; ok {
		return nil, fmt.Errorf("stub: scripted failure at call %d", n)
	}
	if len(s.script) == 0 {
		return nil, nil
	}
	if n >= len(s.script) {
		n = len(s.script) - 1
	}
	return s.script[n], nil
}

func (s *Stub) Close() error {
	s.closed = true
	return nil
}
