// Package categorization flags category titles that look like near duplicates
// of titles already in the store, such as "transport" next to "Transport".
// Titles are still matched exactly by the importer; hints are advisory.
package categorization

import (
	"sort"
	"strings"
	"sync"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// DefaultThreshold is the minimum similarity score reported as a hint
const DefaultThreshold = 80

// TitleMatch is an existing title similar to a candidate
type TitleMatch struct {
	Title    string // The existing title
	Score    int    // Similarity score (higher = better match, max 100)
	Distance int    // Levenshtein distance over case-folded titles
}

// TitleMatcher scores candidate titles against a set of known titles
type TitleMatcher struct {
	titles []string
	mu     sync.RWMutex
}

// NewTitleMatcher creates a matcher over titles
func NewTitleMatcher(titles []string) *TitleMatcher {
	tm := &TitleMatcher{}
	tm.Build(titles)
	return tm
}

// Build replaces the known titles. Empty titles are ignored.
func (tm *TitleMatcher) Build(titles []string) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	tm.titles = make([]string, 0, len(titles))
	for _, title := range titles {
		if strings.TrimSpace(title) != "" {
			tm.titles = append(tm.titles, title)
		}
	}
}

// Match returns known titles scoring at least threshold against title,
// best first. The title itself is never reported.
func (tm *TitleMatcher) Match(title string, threshold int) []TitleMatch {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	if strings.TrimSpace(title) == "" {
		return nil
	}

	folded := strings.ToUpper(title)
	var matches []TitleMatch
	for _, known := range tm.titles {
		if known == title {
			continue
		}

		knownFolded := strings.ToUpper(known)
		score := similarity(folded, knownFolded)
		if score >= threshold {
			matches = append(matches, TitleMatch{
				Title:    known,
				Score:    score,
				Distance: levenshteinDistance(folded, knownFolded),
			})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Title < matches[j].Title
	})
	return matches
}

// SimilarTitles maps every candidate to the existing titles it resembles.
// Candidates without a match are left out.
func SimilarTitles(candidates, existing []string) map[string][]string {
	tm := NewTitleMatcher(existing)

	hints := make(map[string][]string)
	for _, candidate := range candidates {
		matches := tm.Match(candidate, DefaultThreshold)
		if len(matches) == 0 {
			continue
		}
		titles := make([]string, len(matches))
		for i, m := range matches {
			titles[i] = m.Title
		}
		hints[candidate] = titles
	}
	return hints
}

// Hinter reports near-duplicate titles for the import service
type Hinter struct {
	Threshold int
}

// NewHinter creates a hinter using DefaultThreshold
func NewHinter() *Hinter {
	return &Hinter{Threshold: DefaultThreshold}
}

// SimilarTitles maps each created title to similar existing ones
func (h *Hinter) SimilarTitles(created, existing []string) map[string][]string {
	if h.Threshold == DefaultThreshold || h.Threshold <= 0 {
		return SimilarTitles(created, existing)
	}

	tm := NewTitleMatcher(existing)
	hints := make(map[string][]string)
	for _, title := range created {
		for _, m := range tm.Match(title, h.Threshold) {
			hints[title] = append(hints[title], m.Title)
		}
	}
	return hints
}

// similarity scores two upper-cased titles from 0 to 100
func similarity(s1, s2 string) int {
	if s1 == s2 {
		return 100 // Same title in a different case
	}

	// One title containing the other ("FOOD" in "FAST FOOD")
	if strings.Contains(s1, s2) {
		return 75 + (25 * len(s2) / len(s1))
	}
	if strings.Contains(s2, s1) {
		return 75 + (25 * len(s1) / len(s2))
	}

	distance := levenshteinDistance(s1, s2)
	maxLen := max(len([]rune(s1)), len([]rune(s2)))
	if maxLen == 0 {
		return 0
	}
	levenshteinScore := 100 * (maxLen - distance) / maxLen

	// Subsequence match, e.g. "GROCRIES" within "GROCERIES"
	subsequenceScore := 0
	if rank := fuzzy.RankMatchNormalizedFold(s1, s2); rank >= 0 && rank < len(s2) {
		subsequenceScore = 60 - (rank * 40 / len(s2))
	}

	return max(levenshteinScore, subsequenceScore)
}

// levenshteinDistance calculates the edit distance between two strings
func levenshteinDistance(s1, s2 string) int {
	r1 := []rune(s1)
	r2 := []rune(s2)
	if len(r1) == 0 {
		return len(r2)
	}
	if len(r2) == 0 {
		return len(r1)
	}

	prev := make([]int, len(r2)+1)
	curr := make([]int, len(r2)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(r1); i++ {
		curr[0] = i
		for j := 1; j <= len(r2); j++ {
			cost := 1
			if r1[i-1] == r2[j-1] {
				cost = 0
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(r2)]
}
