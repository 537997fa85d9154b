package indicator

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// partialSimilarity is the minimum similarity at which a partial transcript
// is treated as a repeat of the previous one.
const partialSimilarity = 0.9

func nearDuplicate(prev string, next string) bool {
	a, b := normalizeTranscript(prev), normalizeTranscript(next)
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}

	longest := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > longest {
		longest = n
	}
	distance := levenshtein.ComputeDistance(a, b)
	return 1-float64(distance)/float64(longest) >= partialSimilarity
}

func normalizeTranscript(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}
