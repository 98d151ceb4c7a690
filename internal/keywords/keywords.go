// Package keywords provides deterministic, concurrency-safe keyword
// extraction over user-authored text. It backs the reproducible metrics of an
// insight report: keyword sets for coherence scoring and frequency-ranked
// top keywords.
//
//   - No logging in the library (callers decide how/what to log)
//   - Functional options (Option pattern) over an immutable Extractor
//   - Unicode-aware tokenization with case folding and stop-word removal
//   - Deterministic ordering for ties
//
// Set overlap uses Jaccard similarity: |A ∩ B| / |A ∪ B|.
package keywords

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// Option configures an Extractor.
type Option func(*config)

type config struct {
	minRunes  int
	stopwords map[string]struct{}
}

func defaultConfig() config {
	return config{
		minRunes:  3,
		stopwords: toSet(englishStopwords),
	}
}

// WithMinRunes drops tokens shorter than n runes. Negative values are ignored.
func WithMinRunes(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.minRunes = n
		}
	}
}

// WithStopwords replaces the default stop-word list. An empty list keeps the default.
func WithStopwords(words []string) Option {
	return func(c *config) {
		if m := toSet(words); len(m) > 0 {
			c.stopwords = m
		}
	}
}

// Extractor tokenizes text into keywords. The zero value is not usable; build
// one with New. An Extractor is read-only after construction.
type Extractor struct {
	cfg config
}

// New returns an Extractor with defaults overridden by opts.
func New(opts ...Option) *Extractor {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return &Extractor{cfg: cfg}
}

var wordRE = regexp.MustCompile(`\p{L}+[\p{L}\p{N}'’]*`)

// Tokens returns the keywords of s in order of appearance, duplicates kept.
func (e *Extractor) Tokens(s string) []string {
	words := wordRE.FindAllString(s, -1)
	if len(words) == 0 {
		return nil
	}
	fold := cases.Fold()
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.TrimRight(fold.String(w), "'’")
		if w == "" || utf8.RuneCountInString(w) < e.cfg.minRunes {
			continue
		}
		if _, skip := e.cfg.stopwords[w]; skip {
			continue
		}
		out = append(out, w)
	}
	return out
}

// Set returns the distinct keywords of all texts.
func (e *Extractor) Set(texts ...string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, t := range texts {
		for _, w := range e.Tokens(t) {
			out[w] = struct{}{}
		}
	}
	return out
}

// Top returns up to k keywords across texts ranked by frequency, ties broken
// alphabetically.
func (e *Extractor) Top(k int, texts ...string) []string {
	if k <= 0 {
		return []string{}
	}
	freq := make(map[string]int)
	for _, t := range texts {
		for _, w := range e.Tokens(t) {
			freq[w]++
		}
	}
	words := make([]string, 0, len(freq))
	for w := range freq {
		words = append(words, w)
	}
	sort.Slice(words, func(a, b int) bool {
		if freq[words[a]] != freq[words[b]] {
			return freq[words[a]] > freq[words[b]]
		}
		return words[a] < words[b]
	})
	if k > len(words) {
		k = len(words)
	}
	return words[:k]
}

// Jaccard returns |a ∩ b| / |a ∪ b|, or 0 when either set is empty.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	over := overlap(a, b)
	union := len(a) + len(b) - over
	if union <= 0 {
		return 0
	}
	return float64(over) / float64(union)
}

// Round4 rounds x to four decimal places so ratios serialize identically for
// identical inputs.
func Round4(x float64) float64 {
	return math.Round(x*10000) / 10000
}

// WordCount counts whitespace-separated words in s.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

func overlap(a, b map[string]struct{}) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	n := 0
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}

func toSet(words []string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			m[w] = struct{}{}
		}
	}
	return m
}

var englishStopwords = []string{
	"a", "about", "above", "after", "again", "against", "all", "also", "am", "an", "and", "any",
	"are", "as", "at", "be", "because", "been", "before", "being", "below", "between", "both",
	"but", "by", "can", "could", "did", "do", "does", "doing", "down", "during", "each", "even",
	"few", "for", "from", "further", "get", "got", "had", "has", "have", "having", "he", "her",
	"here", "hers", "herself", "him", "himself", "his", "how", "i", "if", "in", "into", "is",
	"it", "its", "itself", "just", "like", "me", "more", "most", "much", "my", "myself", "no",
	"nor", "not", "now", "of", "off", "on", "once", "only", "or", "other", "our", "ours",
	"ourselves", "out", "over", "own", "really", "same", "she", "should", "so", "some", "still",
	"such", "than", "that", "the", "their", "theirs", "them", "themselves", "then", "there",
	"these", "they", "this", "those", "through", "to", "today", "too", "under", "until", "up",
	"very", "was", "we", "were", "what", "when", "where", "which", "while", "who", "whom", "why",
	"will", "with", "would", "you", "your", "yours", "yourself", "yourselves",
}
