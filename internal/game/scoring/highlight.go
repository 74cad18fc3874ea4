package scoring

import "strings"

// WordThreshold is the minimum per-word ratio for a submitted word to count
// as present in the reference.
const WordThreshold = 89

// markup is removed from words so that player input cannot break the
// rendered highlight.
var markup = strings.NewReplacer("*", "", "~", "", "`", "", "_", "", "|", "")

// Words splits s on whitespace and strips chat markup from every word.
// Words left empty after stripping are dropped.
func Words(s string) []string {
	fields := strings.Fields(s)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if w := markup.Replace(f); w != "" {
			out = append(out, w)
		}
	}
	return out
}

// Highlight renders submitted against reference for display:
//   - a word found verbatim in the reference is left plain,
//   - a near miss (ratio 89-99) is rendered in bold,
//   - a word with no close reference word is struck through.
//
// Reference words beyond the length of the submission that no submitted word
// matched are appended struck through. Each submitted word is matched against
// the first reference word, scanning left to right, whose case-insensitive
// ratio reaches [WordThreshold].
func Highlight(submitted, reference []string) string {
	matched := make([]bool, len(reference))
	out := make([]string, 0, max(len(submitted), len(reference)))

	for _, word := range submitted {
		idx, ratio := firstMatch(word, reference)
		switch {
		case idx < 0:
			out = append(out, strike(word))
		case ratio < 100:
			matched[idx] = true
			out = append(out, "**"+word+"**")
		default:
			matched[idx] = true
			out = append(out, word)
		}
	}

	for i := len(submitted); i < len(reference); i++ {
		if !matched[i] {
			out = append(out, strike(reference[i]))
		}
	}
	return strings.Join(out, " ")
}

// firstMatch returns the index and ratio of the first reference word whose
// ratio against word reaches [WordThreshold], or -1.
func firstMatch(word string, reference []string) (int, int) {
	lw := strings.ToLower(word)
	for i, ref := range reference {
		if r := Ratio(lw, strings.ToLower(ref)); r >= WordThreshold {
			return i, r
		}
	}
	return -1, 0
}

func strike(word string) string {
	return "~~`" + word + "`~~"
}
