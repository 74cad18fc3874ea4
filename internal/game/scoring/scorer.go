// Package scoring grades a typed answer against the reference transcript of a
// clip.
//
// Accuracy is the normalised indel similarity of the two strings after
// trailing punctuation is dropped and both are lower-cased:
//
//	accuracy = round(100 * 2*LCS(a, b) / (len(a) + len(b)))
//
// where LCS is the longest common subsequence in runes. Identical strings
// score 100 and strings sharing no rune score 0. The same ratio drives the
// word-level [Highlight] shown after a wrong answer.
package scoring

import (
	"math"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
)

// DefaultThreshold is the minimum accuracy counted as a correct answer.
const DefaultThreshold = 90

// trailingMarks are stripped once from the end of both strings before scoring.
const trailingMarks = ".;:,!?"

// Option is a functional option for configuring a [Scorer].
type Option func(*Scorer)

// WithThreshold sets the minimum accuracy counted as correct. Default: 90.
func WithThreshold(threshold int) Option {
	return func(s *Scorer) {
		s.threshold.Store(int32(threshold))
	}
}

// Scorer grades answers. The threshold can be changed at runtime with
// [Scorer.SetThreshold]; all methods are safe for concurrent use.
type Scorer struct {
	threshold atomic.Int32
}

// New returns a [Scorer] configured with the supplied options.
func New(opts ...Option) *Scorer {
	s := &Scorer{}
	s.threshold.Store(DefaultThreshold)
	for _, o := range opts {
		o(s)
	}
	return s
}

// Threshold returns the current pass mark.
func (s *Scorer) Threshold() int {
	return int(s.threshold.Load())
}

// SetThreshold replaces the pass mark. Values are clamped to [0, 100].
func (s *Scorer) SetThreshold(threshold int) {
	s.threshold.Store(int32(max(0, min(100, threshold))))
}

// Score returns the accuracy in [0, 100] of submitted against reference.
func (s *Scorer) Score(submitted, reference string) int {
	return Ratio(Normalize(submitted), Normalize(reference))
}

// Correct reports whether accuracy reaches the pass mark.
func (s *Scorer) Correct(accuracy int) bool {
	return accuracy >= s.Threshold()
}

// Grade scores submitted and reports whether it passes.
func (s *Scorer) Grade(submitted, reference string) (accuracy int, correct bool) {
	accuracy = s.Score(submitted, reference)
	return accuracy, s.Correct(accuracy)
}

// Normalize drops one trailing punctuation mark and lower-cases s.
func Normalize(s string) string {
	if r, size := utf8.DecodeLastRuneInString(s); size > 0 && strings.ContainsRune(trailingMarks, r) {
		s = s[:len(s)-size]
	}
	return strings.ToLower(s)
}

// Ratio returns the similarity of a and b in [0, 100], compared rune by rune
// and case-sensitively. Two empty strings are identical.
func Ratio(a, b string) int {
	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	if total == 0 {
		return 100
	}
	lcs := matchr.LongestCommonSubsequence(a, b)
	return int(math.RoundToEven(100 * float64(2*lcs) / float64(total)))
}
