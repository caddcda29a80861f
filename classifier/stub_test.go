package classifier

import "testing"

func TestStubReplaysScript(t *testing.T) {
	s := NewStub(
		[]Score{{Label: "Speech", Value: 0.1}},
		[]Score{{Label: "Singing", Value: 0.9}},
	)

	first, err := s.Classify(nil, 16000)
	if err != nil {
		t.Fatal(err)
	}
	if first[0].Label != "Speech" {
		t.Errorf("call 0: got %q", first[0].Label)
	}

	second, err := s.Classify(nil, 16000)
	if err != nil {
		t.Fatal(err)
	}
	if second[0].Label != "Singing" {
		t.Errorf("call 1: got %q", second[0].Label)
	}

	// Script exhausted: last entry repeats.
	third, err := s.Classify(nil, 16000)
	if err != nil {
		t.Fatal(err)
	}
	if third[0].Label != "Singing" {
		t.Errorf("call 2: got %q, want repeated last entry", third[0].Label)
	}
}

func TestStubFailAt(t *testing.T) {
	s := NewStub([]Score{{Label: "Singing", Value: 0.9}}).FailAt(1)

	if _, err := s.Classify(nil, 16000); err != nil {
		t.Fatalf("call 0: unexpected error: %v", err)
	}
	if _, err := s.Classify(nil, 16000); err == nil {
		t.Fatal("call 1: expected scripted failure")
	}
	if _, err := s.Classify(nil, 16000); err != nil {
		t.Fatalf("call 2: unexpected error: %v", err)
	}
	if s.Calls() != 3 {
		t.Errorf("calls = %d, want 3", s.Calls())
	}
}

func TestStubClose(t *testing.T) {
	s := NewStub()
	if s.Closed() {
		t.Fatal("closed before Close")
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if !s.Closed() {
		t.Fatal("not closed after Close")
	}
}
