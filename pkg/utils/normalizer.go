package utils

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// TextNormalizer folds text into a comparable form: accents stripped, lowercased,
// whitespace compressed. It is not safe for concurrent use.
type TextNormalizer struct {
	transformer transform.Transformer
}

// NewTextNormalizer creates a new TextNormalizer instance.
func NewTextNormalizer() *TextNormalizer {
	return &TextNormalizer{
		transformer: transform.Chain(
			norm.NFKD,
			runes.Remove(runes.In(unicode.Mn)),
			runes.Map(unicode.ToLower),
			norm.NFKC,
		),
	}
}

// Normalize returns the folded form of s, or an empty string on failure.
func (n *TextNormalizer) Normalize(s string) string {
	s = CompressAllWhitespace(s)
	if s == "" {
		return ""
	}

	result, _, err := transform.String(n.transformer, s)
	if err != nil {
		return ""
	}

	return result
}

// Contains reports whether substr occurs in s after both are normalized.
func (n *TextNormalizer) Contains(s, substr string) bool {
	if s == "" || substr == "" {
		return false
	}

	normalizedS := n.Normalize(s)
	normalizedSubstr := n.Normalize(substr)

	if normalizedS == "" || normalizedSubstr == "" {
		return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
	}

	return strings.Contains(normalizedS, normalizedSubstr)
}

// Similarity returns a score in [0, 1] where 1 means the normalized inputs are identical.
// The score is 1 - levenshtein(a, b) / max(len(a), len(b)).
func (n *TextNormalizer) Similarity(a, b string) float64 {
	na, nb := n.Normalize(a), n.Normalize(b)

	longest := max(utf8.RuneCountInString(na), utf8.RuneCountInString(nb))
	if longest == 0 {
		return 1
	}

	distance := fuzzy.LevenshteinDistance(na, nb)

	return 1 - float64(distance)/float64(longest)
}
