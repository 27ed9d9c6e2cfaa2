// Package planner turns free-text questions about the capability graph into
// executable query plans.
//
// It resolves entity anchors against the catalog of known names, classifies
// the question's intent and the caller's persona, and composes both into an
// immutable QueryPlan. Everything in this package is pure computation over
// the provided catalog; no store access happens here.
package planner

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// capitalizedRun matches the longest runs of capitalized words, the usual
// shape of entity names quoted inside a question ("Portfolio Management").
var capitalizedRun = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*\b`)

// Resolver finds which catalog entities a free-text query talks about.
//
// Three strategies run in order, stopping at the first that produces at
// least one anchor: an exact word-boundary scan over the length-sorted
// catalog with matched spans consumed, a fuzzy match of the longest
// capitalized phrase, and a fuzzy sweep of word n-grams from four words
// down to one. Output order is deterministic and duplicates are dropped,
// first occurrence kept.
type Resolver struct {
	// FuzzyThreshold is the minimum similarity for the capitalized-phrase
	// strategy; NgramThreshold for the n-gram sweep. Both on the 0-100
	// scale.
	FuzzyThreshold int
	NgramThreshold int
}

// NewResolver returns a resolver with the given similarity thresholds.
func NewResolver(fuzzyThreshold, ngramThreshold int) *Resolver {
	return &Resolver{FuzzyThreshold: fuzzyThreshold, NgramThreshold: ngramThreshold}
}

// Resolve returns the catalog names the query mentions. An empty catalog or
// a query mentioning nothing resolvable yields an empty result, never an
// error.
func (r *Resolver) Resolve(query string, catalog []string) []string {
	var anchors []string
	seen := make(map[string]bool)
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			anchors = append(anchors, name)
		}
	}

	// Longest names first so "Portfolio Management Reporting" wins over
	// "Portfolio Management"; consumed spans cannot match again.
	sorted := make([]string, 0, len(catalog))
	for _, term := range catalog {
		if term != "" {
			sorted = append(sorted, term)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })

	remaining := query
	for _, term := range sorted {
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(term) + `\b`)
		if err != nil {
			continue
		}
		if re.MatchString(remaining) {
			add(term)
			remaining = re.ReplaceAllString(remaining, " ")
		}
	}
	if len(anchors) > 0 {
		return anchors
	}

	// Fallback: the longest capitalized phrase, fuzzily matched.
	if runs := capitalizedRun.FindAllString(query, -1); len(runs) > 0 {
		longest := runs[0]
		for _, run := range runs[1:] {
			if len(run) > len(longest) {
				longest = run
			}
		}
		if best, score := BestMatch(longest, catalog); best != "" && score >= r.FuzzyThreshold {
			add(best)
		}
	}
	if len(anchors) > 0 {
		return anchors
	}

	// Last resort: sweep word n-grams, widest first.
	words := tokenize(query)
	for n := 4; n >= 1; n-- {
		for i := 0; i+n <= len(words); i++ {
			gram := strings.Join(words[i:i+n], " ")
			if best, score := BestMatch(gram, catalog); best != "" && score >= r.NgramThreshold {
				add(best)
			}
		}
	}
	return anchors
}

// Suggestion is a near-miss catalog name offered when nothing resolved.
type Suggestion struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// Suggest scores every catalog term against the query's n-grams and
// returns up to limit terms above the threshold, best first. Used to build
// the "did you mean" part of a no-anchor response.
func (r *Resolver) Suggest(query string, catalog []string, threshold, limit int) []Suggestion {
	words := tokenize(query)
	var out []Suggestion
	for _, term := range catalog {
		best := 0
		for n := 1; n <= 4; n++ {
			for i := 0; i+n <= len(words); i++ {
				if score := Similarity(strings.Join(words[i:i+n], " "), term); score > best {
					best = score
				}
			}
		}
		if best >= threshold {
			out = append(out, Suggestion{Name: term, Score: best})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Name < out[j].Name
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
