// Package textmatch provides comparison-stable text normalization and a
// bounded Levenshtein distance used for catalog entity resolution.
package textmatch

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Normalize produces a comparison key for fuzzy matching: NFKD compatibility
// decomposition, case folding, and removal of whitespace, punctuation and
// combining marks. The result is stable across Latin, Hebrew, Cyrillic and
// Arabic inputs with minor formatting differences.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	// cases.Caser is stateful; build one per call.
	decomposed := norm.NFKD.String(cases.Fold().String(s))
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Distance computes the Levenshtein edit distance between a and b, clamped at
// maxDistance. Any true distance greater than maxDistance returns
// maxDistance+1; callers only ever compare against the bound.
//
// Two shortcuts keep catalog scans cheap: a length-difference check before any
// matrix work, and a per-row minimum cutoff that abandons the computation as
// soon as no cell in the current row can recover to within the bound.
func Distance(a, b string, maxDistance int) int {
	if maxDistance < 0 {
		maxDistance = 0
	}
	if a == b {
		return 0
	}

	ra := []rune(a)
	rb := []rune(b)
	la, lb := len(ra), len(rb)

	diff := la - lb
	if diff < 0 {
		diff = -diff
	}
	if diff > maxDistance {
		return maxDistance + 1
	}
	if la == 0 {
		return clamp(lb, maxDistance)
	}
	if lb == 0 {
		return clamp(la, maxDistance)
	}

	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}

	for i := 1; i <= la; i++ {
		curr[0] = i
		rowMin := curr[0]
		for j := 1; j <= lb; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost

			best := del
			if ins < best {
				best = ins
			}
			if sub < best {
				best = sub
			}
			curr[j] = best
			if best < rowMin {
				rowMin = best
			}
		}
		if rowMin > maxDistance {
			return maxDistance + 1
		}
		prev, curr = curr, prev
	}

	return clamp(prev[lb], maxDistance)
}

func clamp(d, maxDistance int) int {
	if d > maxDistance {
		return maxDistance + 1
	}
	return d
}
