// Package analyzer provides the built-in lexical content analyzer.
//
// It is the default implementation behind the engine's Analyzer capability:
// a pure, dependency-free marker scan. Deployments with a real NLP service
// swap it out; the engine degrades gracefully when a replacement fails.
package analyzer

import (
	"strings"
	"unicode"

	"github.com/lazypower/retain/internal/model"
)

// Lexical is a stateless marker-based analyzer. The zero value is usable.
type Lexical struct{}

// New returns the default lexical analyzer.
func New() *Lexical {
	return &Lexical{}
}

const (
	emotionalWordWeight = 0.4
	emotionalWeightCap  = 2.0

	identityWeight   = 2.5
	preferenceWeight = 2.0
	beliefWeight     = 2.0
	factualWeight    = 1.5
	pronounWeight    = 0.5
	pronounCap       = 2.0
)

var emotionalWords = []string{
	"love", "hate", "excited", "worried", "happy", "sad",
	"angry", "afraid", "thrilled", "anxious", "scared", "proud",
}

var correctionMarkers = []string{
	"actually", "no,", "that's wrong", "that is wrong",
	"i meant", "correction", "not anymore",
}

var importanceMarkers = []string{
	"remember this", "don't forget", "important", "make sure",
}

var identityMarkers = []string{
	"my name is", "i was born", "call me", "i'm from",
}

var preferenceMarkers = []string{
	"i like", "i love", "i prefer", "i enjoy", "i hate", "my favorite",
}

var beliefMarkers = []string{
	"i believe", "i think that", "i always", "i never",
}

// factualMarkers are first-person declaratives about the owner's life.
// They intentionally overlap the preference markers: "i love X" is both a
// preference and a fact about the owner, and scores as both.
var factualMarkers = []string{
	"i work", "i live", "i am", "i have", "i love", "i use",
	"i own", "i speak", "i studied", "i grew up",
}

// EmotionalWeight returns the emotional loading of text: a fixed weight
// per distinct emotional word, capped.
func (l *Lexical) EmotionalWeight(text string) (float64, error) {
	tokens := tokenize(text)
	var weight float64
	for _, w := range emotionalWords {
		if tokens[w] {
			weight += emotionalWordWeight
		}
	}
	if weight > emotionalWeightCap {
		weight = emotionalWeightCap
	}
	return weight, nil
}

// DetectCorrection reports whether text reads as the owner correcting an
// earlier statement.
func (l *Lexical) DetectCorrection(text string) (bool, error) {
	return containsAny(strings.ToLower(text), correctionMarkers), nil
}

// DetectImportance reports whether text carries an explicit importance mark.
func (l *Lexical) DetectImportance(text string) (bool, error) {
	return containsAny(strings.ToLower(text), importanceMarkers), nil
}

// ContentWeights scans text for semantic markers. Each category contributes
// its fixed weight at most once; the pronoun weight scales with count up to
// a cap.
func (l *Lexical) ContentWeights(text string) (model.ContentWeights, error) {
	lower := strings.ToLower(text)
	tokens := tokenize(text)

	var w model.ContentWeights
	if containsAny(lower, identityMarkers) {
		w.Identity = identityWeight
	}
	if containsAny(lower, preferenceMarkers) {
		w.Preference = preferenceWeight
	}
	if containsAny(lower, beliefMarkers) {
		w.Belief = beliefWeight
	}
	if containsAny(lower, factualMarkers) {
		w.Factual = factualWeight
	}

	var pronouns int
	for _, p := range []string{"i", "my", "me", "mine", "we"} {
		if tokens[p] {
			pronouns++
		}
	}
	w.Pronoun = float64(pronouns) * pronounWeight
	if w.Pronoun > pronounCap {
		w.Pronoun = pronounCap
	}
	return w, nil
}

func containsAny(lower string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// tokenize lowercases text and splits on non-letter runes, returning the
// distinct token set. Apostrophes stay inside tokens so contractions survive.
func tokenize(text string) map[string]bool {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[strings.Trim(f, "'")] = true
	}
	return set
}
