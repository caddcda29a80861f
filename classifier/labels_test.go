package classifier

import "testing"

func TestMaxScoreSinging(t *testing.T) {
	scores := []Score{
		{Label: "Speech", Value: 0.7},
		{Label: "Singing", Value: 0.4},
		{Label: "Choir", Value: 0.6},
		{Label: "Guitar", Value: 0.9},
	}
	if got := MaxScore(scores, Singing); got != 0.6 {
		t.Errorf("singing max = %v, want 0.6", got)
	}
	if got := MaxScore(scores, Speech); got != 0.7 {
		t.Errorf("speech max = %v, want 0.7", got)
	}
}

func TestMaxScoreCaseInsensitive(t *testing.T) {
	scores := []Score{{Label: "VOCAL MUSIC", Value: 0.5}}
	if got := MaxScore(scores, Singing); got != 0.5 {
		t.Errorf("got %v, want 0.5", got)
	}
}

func TestMaxScoreNoMatch(t *testing.T) {
	scores := []Score{
		{Label: "Dog", Value: 0.9},
		{Label: "Vehicle horn", Value: 0.8},
	}
	if got := MaxScore(scores, Singing); got != 0 {
		t.Errorf("got %v, want 0 for no singing labels", got)
	}
}

func TestMaxScoreEmpty(t *testing.T) {
	if got := MaxScore(nil, Singing); got != 0 {
		t.Errorf("got %v, want 0 for empty scores", got)
	}
}

func TestSingingAndSpeechDisjoint(t *testing.T) {
	for l := range Singing {
		if _, ok := Speech[l]; ok {
			t.Errorf("label %q in both singing and speech sets", l)
		}
	}
}

func TestMultiLabelSpeechCategories(t *testing.T) {
	// AudioSet uses comma-containing display names; they must match whole.
	scores := []Score{{Label: "Narration, monologue", Value: 0.3}}
	if got := MaxScore(scores, Speech); got != 0.3 {
		t.Errorf("got %v, want 0.3", got)
	}
}
