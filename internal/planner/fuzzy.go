package planner

import "strings"

// Similarity scores two strings on a 0-100 scale from the Levenshtein
// distance over their lower-cased runes. 100 means equal; 0 means the
// strings share no usable overlap.
func Similarity(a, b string) int {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == b {
		if a == "" {
			return 0
		}
		return 100
	}
	ra, rb := []rune(a), []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	if longest == 0 {
		return 0
	}
	d := levenshtein(ra, rb)
	return (longest - d) * 100 / longest
}

// BestMatch returns the catalog term most similar to the candidate together
// with its score. Ties keep the earlier catalog term. An empty catalog
// returns ("", 0).
func BestMatch(candidate string, catalog []string) (string, int) {
	best, bestScore := "", -1
	for _, term := range catalog {
		if score := Similarity(candidate, term); score > bestScore {
			best, bestScore = term, score
		}
	}
	if bestScore < 0 {
		return "", 0
	}
	return best, bestScore
}

// levenshtein computes the edit distance between two rune slices using two
// rolling rows, O(min(m,n)) space.
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}
	if len(a) < len(b) {
		a, b = b, a
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = minOf(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}

func minOf(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
