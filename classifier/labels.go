package classifier

import "strings"

// LabelSet is a case-insensitive set of classifier category names.
type LabelSet map[string]struct{}

func newLabelSet(labels ...string) LabelSet {
	s := make(LabelSet, len(labels))
	for _, l := range labels {
		s[strings.ToLower(l)] = struct{}{}
	}
	return s
}

// Contains reports whether the set holds the label, ignoring case.
func (s LabelSet) Contains(label string) bool {
	_, ok := s[strings.ToLower(label)]
	return ok
}

// Singing holds the AudioSet-style categories treated as singing. General
// audio classifiers split vocal music across several sibling classes, so all
// of them count.
var Singing = newLabelSet(
	"singing",
	"choir",
	"chant",
	"mantra",
	"yodeling",
	"humming",
	"a capella",
	"vocal music",
	"male singing",
	"female singing",
	"child singing",
	"synthetic singing",
	"rapping",
)

// Speech holds the categories treated as plain speech for the rejection gate.
var Speech = newLabelSet(
	"speech",
	"male speech, man speaking",
	"female speech, woman speaking",
	"child speech, kid speaking",
	"conversation",
	"narration, monologue",
	"speech synthesizer",
)

// MaxScore returns the highest confidence among scores whose label is in the
// set, or 0 when none match.
func MaxScore(scores []Score, set LabelSet) float64 {
	var best float64
	for _, s := range scores {
		if s.Value > best && set.Contains(s.Label) {
			best = s.Value
		}
	}
	return best
}
