// Package ngram counts word n-grams in plain text.
package ngram

import (
	"regexp"
	"sort"
	"strings"
)

var (
	digits = regexp.MustCompile(`[0-9]`)
	words  = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)
)

// Gram is an n-gram with its number of occurrences.
type Gram struct {
	Text  string
	Count int
}

// Clean strips ASCII digits, which removes verse numbers from scripture.
func Clean(text string) string {
	return digits.ReplaceAllString(text, "")
}

// Tokenize lower-cases text and returns every maximal run of two or more
// word characters. Single-character words are dropped.
func Tokenize(text string) []string {
	return words.FindAllString(strings.ToLower(text), -1)
}

// Count tallies the space-joined n-grams of consecutive tokens.
func Count(tokens []string, n int) map[string]int {
	counts := make(map[string]int)
	if n <= 0 {
		return counts
	}
	for i := 0; i+n <= len(tokens); i++ {
		counts[strings.Join(tokens[i:i+n], " ")]++
	}
	return counts
}

// Top returns the k most frequent grams, most frequent first. Equal counts
// are ordered alphabetically.
func Top(counts map[string]int, k int) []Gram {
	grams := make([]Gram, 0, len(counts))
	for text, c := range counts {
		grams = append(grams, Gram{Text: text, Count: c})
	}
	sort.Slice(grams, func(i, j int) bool {
		if grams[i].Count != grams[j].Count {
			return grams[i].Count > grams[j].Count
		}
		return grams[i].Text < grams[j].Text
	})
	if k >= 0 && k < len(grams) {
		grams = grams[:k]
	}
	return grams
}

// Analyze runs Clean, Tokenize, Count and Top over text.
func Analyze(text string, n, k int) []Gram {
	return Top(Count(Tokenize(Clean(text)), n), k)
}
