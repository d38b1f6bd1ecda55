// Package analysis counts recurring words across translated titles.
package analysis

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Defaults match "words appearing more than twice, ignoring single letters".
const (
	DefaultMinOccurrences = 2
	DefaultMinTokenLength = 2
)

// DefaultStopWords are English function words that would otherwise top
// every report.
var DefaultStopWords = []string{
	"a", "an", "and", "are", "as", "at", "be", "but", "by", "for", "from",
	"has", "have", "he", "her", "his", "in", "is", "it", "its", "not", "of",
	"on", "or", "she", "that", "the", "their", "they", "this", "to", "was",
	"we", "were", "what", "who", "will", "with", "you",
}

// Entry is a word and the number of times it occurs.
type Entry struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// Analyzer tokenizes titles and counts words. The zero value keeps every
// word occurring at least once; use New for the defaults.
type Analyzer struct {
	// MinOccurrences is the count a word must strictly exceed to be kept.
	MinOccurrences int
	// MinTokenLength drops shorter tokens, in characters.
	MinTokenLength int
	// StopWords are dropped after normalization.
	StopWords []string
	// FoldDiacritics strips combining marks, so "economía" and "economia"
	// count as the same word.
	FoldDiacritics bool
}

// New returns an analyzer with the default thresholds and stop words.
func New() *Analyzer {
	return &Analyzer{
		MinOccurrences: DefaultMinOccurrences,
		MinTokenLength: DefaultMinTokenLength,
		StopWords:      append([]string(nil), DefaultStopWords...),
	}
}

// Analyze returns the words occurring more than MinOccurrences times,
// ordered by count descending and then by first appearance.
func (a *Analyzer) Analyze(titles []string) []Entry {
	var out []Entry
	for _, e := range a.Counts(titles) {
		if e.Count > a.MinOccurrences {
			out = append(out, e)
		}
	}
	return out
}

// Counts returns every word with its count, in the same order as Analyze.
func (a *Analyzer) Counts(titles []string) []Entry {
	stop := make(map[string]bool, len(a.StopWords))
	for _, w := range a.StopWords {
		if w = a.normalize(w); w != "" {
			stop[w] = true
		}
	}

	index := make(map[string]int)
	var entries []Entry
	for _, title := range titles {
		for _, token := range a.Tokenize(title) {
			if stop[token] {
				continue
			}
			if i, ok := index[token]; ok {
				entries[i].Count++
				continue
			}
			index[token] = len(entries)
			entries = append(entries, Entry{Word: token, Count: 1})
		}
	}

	// Stable sort keeps first-seen order among equal counts.
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Count > entries[j].Count
	})
	return entries
}

// Tokenize lowercases text and splits it on anything that is not a letter
// or digit, dropping tokens shorter than MinTokenLength.
func (a *Analyzer) Tokenize(text string) []string {
	fields := strings.FieldsFunc(a.normalize(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) < a.MinTokenLength {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

func (a *Analyzer) normalize(s string) string {
	s = cases.Lower(language.Und).String(s)
	if !a.FoldDiacritics {
		return norm.NFC.String(s)
	}
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err != nil {
		return s
	}
	return folded
}
