package textmatch

import (
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// Ratio is the edit-distance similarity of a and b on a 0-100 scale.
func Ratio(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := max(la, lb)
	if longest == 0 {
		return 100
	}
	d := levenshtein.ComputeDistance(a, b)
	return 100 * (1 - float64(d)/float64(longest))
}

// PartialRatio is the best Ratio of the shorter string against every
// equally long window of the longer one.
func PartialRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) > len(rb) {
		ra, rb = rb, ra
	}
	if len(ra) == 0 {
		if len(rb) == 0 {
			return 100
		}
		return 0
	}
	if len(ra) == len(rb) {
		return Ratio(a, b)
	}

	short := string(ra)
	best := 0.0
	for start := 0; start+len(ra) <= len(rb); start++ {
		r := Ratio(short, string(rb[start:start+len(ra)]))
		if r > best {
			best = r
			if best == 100 {
				break
			}
		}
	}
	return best
}

// TokenSortRatio compares a and b after sorting their whitespace tokens.
func TokenSortRatio(a, b string) float64 {
	return Ratio(sortedJoin(Tokens(a)), sortedJoin(Tokens(b)))
}

// TokenSetRatio compares the shared tokens of a and b against each side's
// full token set and returns the best score. A string whose tokens are a
// subset of the other's scores 100.
func TokenSetRatio(a, b string) float64 {
	ta, tb := uniq(Tokens(a)), uniq(Tokens(b))
	if len(ta) == 0 || len(tb) == 0 {
		if len(ta) == len(tb) {
			return 100
		}
		return 0
	}

	var inter, onlyA, onlyB []string
	inB := make(map[string]bool, len(tb))
	for _, t := range tb {
		inB[t] = true
	}
	inA := make(map[string]bool, len(ta))
	for _, t := range ta {
		inA[t] = true
		if inB[t] {
			inter = append(inter, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for _, t := range tb {
		if !inA[t] {
			onlyB = append(onlyB, t)
		}
	}

	base := sortedJoin(inter)
	withA := strings.TrimSpace(base + " " + sortedJoin(onlyA))
	withB := strings.TrimSpace(base + " " + sortedJoin(onlyB))

	if base != "" && (len(onlyA) == 0 || len(onlyB) == 0) {
		return 100
	}
	best := Ratio(withA, withB)
	if base != "" {
		best = max(best, Ratio(base, withA), Ratio(base, withB))
	}
	return best
}

// Blend is the mean of PartialRatio and TokenSortRatio scaled to [0,1].
func Blend(a, b string) float64 {
	return (PartialRatio(a, b) + TokenSortRatio(a, b)) / 200
}

func sortedJoin(tokens []string) string {
	s := slices.Clone(tokens)
	slices.Sort(s)
	return strings.Join(s, " ")
}

func uniq(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	out := tokens[:0:0]
	for _, t := range tokens {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
