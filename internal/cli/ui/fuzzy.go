package ui

import (
	"sort"
	"strings"
)

// MaxSuggestions bounds the names FindSimilar returns
const MaxSuggestions = 3

// FindSimilar returns up to MaxSuggestions candidates within maxDistance edits of
// target, closest first, ignoring case. A zero maxDistance allows a third of the
// target's length, at least one edit.
func FindSimilar(target string, candidates []string, maxDistance int) []string {
	if maxDistance <= 0 {
		maxDistance = len(target) / 3
		if maxDistance < 1 {
			maxDistance = 1
		}
	}

	type match struct {
		name     string
		distance int
	}
	var matches []match
	lower := strings.ToLower(target)
	for _, c := range candidates {
		if d := Levenshtein(lower, strings.ToLower(c)); d <= maxDistance {
			matches = append(matches, match{c, d})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].distance < matches[j].distance
	})

	var out []string
	for i := 0; i < len(matches) && i < MaxSuggestions; i++ {
		out = append(out, matches[i].name)
	}
	return out
}

// Levenshtein returns the edit distance between a and b, counted in bytes
func Levenshtein(a, b string) int {
	if a == "" {
		return len(b)
	}
	if b == "" {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
