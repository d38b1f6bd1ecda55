package translate

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/pevans/opinions/article"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend translates from a dictionary and fails on everything else.
type fakeBackend struct {
	mu    sync.Mutex
	words map[string]string
	// failures makes the first n calls for a text fail.
	failures map[string]int
	calls    map[string]int
}

func newFakeBackend(words map[string]string) *fakeBackend {
	return &fakeBackend{words: words, failures: map[string]int{}, calls: map[string]int{}}
}

func (f *fakeBackend) Translate(_ context.Context, text, _, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[text]++
	if f.calls[text] <= f.failures[text] {
		return "", errors.New("rate limited")
	}
	out, ok := f.words[text]
	if !ok {
		return "", errors.New("service unavailable")
	}
	return out, nil
}

func (f *fakeBackend) callCount(text string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[text]
}

// memoryCache is an in-memory Cache.
type memoryCache struct {
	entries map[string]string
	puts    int
}

func (m *memoryCache) Get(_ context.Context, source, target, text string) (string, bool, error) {
	v, ok := m.entries[source+"|"+target+"|"+text]
	return v, ok, nil
}

func (m *memoryCache) Put(_ context.Context, source, target, text, translated string) error {
	m.entries[source+"|"+target+"|"+text] = translated
	m.puts++
	return nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RetryWait = 0
	cfg.Rate = 0
	return cfg
}

// TestTranslateTitles_Alignment verifies a failed title keeps its position
func TestTranslateTitles_Alignment(t *testing.T) {
	backend := newFakeBackend(map[string]string{"Mundo": "World"})
	tr := New(backend, testConfig())

	results := tr.TranslateTitles(context.Background(), []string{"Hola", "Mundo"})

	require.Len(t, results, 2)
	assert.False(t, results[0].OK())
	assert.Empty(t, results[0].Value)
	assert.True(t, results[1].OK())
	assert.Equal(t, "World", results[1].Value)

	var translationErr *article.TranslationError
	require.ErrorAs(t, results[0].Err, &translationErr)
	assert.Equal(t, 0, translationErr.Index)
	assert.Equal(t, "Hola", translationErr.Text)
	assert.ErrorIs(t, results[0].Err, article.ErrTranslation)
}

// TestTranslateTitles_Retries verifies transient failures are retried up to
// the configured attempts
func TestTranslateTitles_Retries(t *testing.T) {
	backend := newFakeBackend(map[string]string{"Hola": "Hello", "Adiós": "Goodbye"})
	backend.failures["Hola"] = 2
	backend.failures["Adiós"] = 3
	tr := New(backend, testConfig())

	results := tr.TranslateTitles(context.Background(), []string{"Hola", "Adiós"})

	assert.True(t, results[0].OK())
	assert.Equal(t, "Hello", results[0].Value)
	assert.Equal(t, 3, backend.callCount("Hola"))

	assert.False(t, results[1].OK())
	assert.Equal(t, 3, backend.callCount("Adiós"))
}

// TestTranslateTitles_EmptyText verifies empty and placeholder titles fail
// without calling the backend
func TestTranslateTitles_EmptyText(t *testing.T) {
	backend := newFakeBackend(map[string]string{})
	tr := New(backend, testConfig())

	results := tr.TranslateTitles(context.Background(), []string{"", "   ", article.NoTitle})

	require.Len(t, results, 3)
	for _, r := range results {
		assert.ErrorIs(t, r.Err, article.ErrEmptyText)
		assert.ErrorIs(t, r.Err, article.ErrTranslation)
	}
	assert.Empty(t, backend.calls)
}

// TestTranslateTitles_EmptyInput verifies an empty batch yields no results
func TestTranslateTitles_EmptyInput(t *testing.T) {
	tr := New(newFakeBackend(nil), testConfig())
	assert.Empty(t, tr.TranslateTitles(context.Background(), nil))
}

// TestTranslateTitles_EmptyResponse verifies a blank translation is a
// failure
func TestTranslateTitles_EmptyResponse(t *testing.T) {
	backend := BackendFunc(func(context.Context, string, string, string) (string, error) {
		return "  ", nil
	})
	tr := New(backend, testConfig())

	results := tr.TranslateTitles(context.Background(), []string{"Hola"})
	assert.ErrorIs(t, results[0].Err, ErrEmptyResponse)
}

// TestTranslateTitles_Cancelled verifies a cancelled context fails every
// remaining title without dropping any
func TestTranslateTitles_Cancelled(t *testing.T) {
	backend := newFakeBackend(map[string]string{"Hola": "Hello", "Mundo": "World"})
	cfg := testConfig()
	cfg.Rate = 1
	tr := New(backend, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := tr.TranslateTitles(ctx, []string{"Hola", "Mundo"})
	require.Len(t, results, 2)
	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
	assert.Zero(t, backend.callCount("Hola"))
}

// TestTranslateTitles_Cache verifies cached translations skip the backend
// and new ones are stored
func TestTranslateTitles_Cache(t *testing.T) {
	backend := newFakeBackend(map[string]string{"Mundo": "World"})
	cache := &memoryCache{entries: map[string]string{"es|en|Hola": "Hello"}}
	tr := New(backend, testConfig(), WithCache(cache))

	results := tr.TranslateTitles(context.Background(), []string{"Hola", "Mundo"})

	assert.Equal(t, "Hello", results[0].Value)
	assert.Equal(t, "World", results[1].Value)
	assert.Zero(t, backend.callCount("Hola"))
	assert.Equal(t, 1, cache.puts)
	assert.Equal(t, "World", cache.entries["es|en|Mundo"])
}

// TestApply verifies translations land on the matching articles
func TestApply(t *testing.T) {
	articles := []article.Article{{Title: "Hola"}, {Title: "Mundo"}}
	results := []article.Result[string]{
		article.Failed[string](&article.TranslationError{Index: 0, Text: "Hola", Err: errors.New("boom")}),
		article.Succeed("World"),
	}

	require.NoError(t, Apply(articles, results))

	assert.Nil(t, articles[0].TranslatedTitle)
	require.Len(t, articles[0].Errors, 1)
	assert.ErrorIs(t, articles[0].Errors[0], article.ErrTranslation)
	require.NotNil(t, articles[1].TranslatedTitle)
	assert.Equal(t, "World", *articles[1].TranslatedTitle)
	assert.Empty(t, articles[1].Errors)

	assert.Equal(t, []string{"Hola", "Mundo"}, Titles(articles))
}

// TestApply_Mismatch verifies misaligned results are rejected
func TestApply_Mismatch(t *testing.T) {
	err := Apply([]article.Article{{Title: "Hola"}}, nil)
	assert.ErrorIs(t, err, ErrResultMismatch)
}
