package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestAnalyze_StrictThreshold verifies a word seen exactly twice is dropped
// and one seen three times is kept
func TestAnalyze_StrictThreshold(t *testing.T) {
	a := New()

	got := a.Analyze([]string{
		"Climate policy now",
		"Climate and policy",
		"The climate question",
	})

	assert.Equal(t, []Entry{{Word: "climate", Count: 3}}, got)
}

// TestAnalyze_EconomyBoundary verifies two titles sharing "economy" produce
// an empty report
func TestAnalyze_EconomyBoundary(t *testing.T) {
	a := New()

	got := a.Analyze([]string{"The global economy", "The future of the economy"})
	assert.Empty(t, got)

	counts := a.Counts([]string{"The global economy", "The future of the economy"})
	assert.Equal(t, []Entry{
		{Word: "economy", Count: 2},
		{Word: "global", Count: 1},
		{Word: "future", Count: 1},
	}, counts)
}

// TestAnalyze_TieOrder verifies equal counts keep first-seen order
func TestAnalyze_TieOrder(t *testing.T) {
	a := &Analyzer{MinOccurrences: 1, MinTokenLength: 2}

	got := a.Analyze([]string{
		"war peace war",
		"peace trade war",
		"trade peace",
	})

	assert.Equal(t, []Entry{
		{Word: "war", Count: 3},
		{Word: "peace", Count: 3},
		{Word: "trade", Count: 2},
	}, got)
}

// TestAnalyze_Idempotent verifies repeated runs give identical output
func TestAnalyze_Idempotent(t *testing.T) {
	a := &Analyzer{MinOccurrences: 1, MinTokenLength: 2}
	titles := []string{"Europe's crisis", "Europe, again: crisis!", "A new Europe"}

	first := a.Analyze(titles)
	second := a.Analyze(titles)

	assert.Equal(t, first, second)
	assert.Equal(t, []Entry{{Word: "europe", Count: 3}, {Word: "crisis", Count: 2}}, first)
}

// TestTokenize verifies lowercasing, punctuation splitting and length filter
func TestTokenize(t *testing.T) {
	a := New()

	assert.Equal(t,
		[]string{"the", "president", "speech", "2024", "isn", "enough"},
		a.Tokenize("The President's speech (2024) isn't enough."),
	)
	assert.Empty(t, a.Tokenize("— ... !!"))
	assert.Empty(t, a.Tokenize(""))
}

// TestAnalyze_NoStopWords verifies function words count when no stop list
// is set
func TestAnalyze_NoStopWords(t *testing.T) {
	a := &Analyzer{MinOccurrences: DefaultMinOccurrences, MinTokenLength: DefaultMinTokenLength}

	got := a.Analyze([]string{"The global economy", "The future of the economy"})
	assert.Equal(t, []Entry{{Word: "the", Count: 3}}, got)
}

// TestAnalyze_StopWords verifies stop words never count
func TestAnalyze_StopWords(t *testing.T) {
	a := &Analyzer{MinOccurrences: 1, MinTokenLength: 2, StopWords: []string{"The", "of"}}

	got := a.Analyze([]string{"The end of the road", "The road of life"})
	assert.Equal(t, []Entry{{Word: "road", Count: 2}}, got)
}

// TestAnalyze_FoldDiacritics verifies accented and plain spellings merge
// only when folding is on
func TestAnalyze_FoldDiacritics(t *testing.T) {
	titles := []string{"Economía", "economia", "ECONOMÍA"}

	plain := &Analyzer{MinOccurrences: 1, MinTokenLength: 2}
	assert.Equal(t, []Entry{{Word: "economía", Count: 2}}, plain.Analyze(titles))

	folded := &Analyzer{MinOccurrences: 2, MinTokenLength: 2, FoldDiacritics: true}
	assert.Equal(t, []Entry{{Word: "economia", Count: 3}}, folded.Analyze(titles))
}

// TestAnalyze_Empty verifies no titles means no entries
func TestAnalyze_Empty(t *testing.T) {
	assert.Empty(t, New().Analyze(nil))
	assert.Empty(t, New().Counts([]string{}))
}
