// Package textmatch holds the text normalization and fuzzy similarity
// functions shared by the trigger resolver and the knowledge matcher.
package textmatch

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

const (
	katakanaFirst = 'ァ'
	katakanaLast  = 'ヶ'
	kanaOffset    = 'ァ' - 'ぁ'
)

// Normalize folds s into the form used for every comparison: compatibility
// composed, half/full width folded, katakana mapped to hiragana, lower-cased,
// with symbols replaced by spaces and whitespace collapsed. It is idempotent.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	s = norm.NFKC.String(s)
	s = width.Fold.String(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= katakanaFirst && r <= katakanaLast:
			b.WriteRune(r - kanaOffset)
		case unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsMark(r):
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(norm.NFKC.String(b.String())), " ")
}

// Tokens splits a normalized string on whitespace.
func Tokens(s string) []string {
	return strings.Fields(s)
}
