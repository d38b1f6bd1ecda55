package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate runs the test from an empty directory so no config, .env or
// output from elsewhere leaks in.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("OPINIONS_LOG_LEVEL", "error")
	return dir
}

// TestRun_UnsupportedBrowser verifies safari exits non-zero and writes no
// files, the translation cache included
func TestRun_UnsupportedBrowser(t *testing.T) {
	dir := isolate(t)
	t.Setenv("OPINIONS_CACHE_PATH", "cache.db")
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), []string{"--browser", "safari", "--report", "report.json"}, &stdout, &stderr)

	assert.Equal(t, exitFailed, code)
	assert.Contains(t, stderr.String(), "unsupported browser")
	assert.Empty(t, stdout.String())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no output files")
}

// TestRun_UsageErrors verifies bad flags and invalid values exit with the
// usage code
func TestRun_UsageErrors(t *testing.T) {
	isolate(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown flag", []string{"--colour"}, "unknown flag"},
		{"zero articles", []string{"--max-articles", "0"}, "max_articles"},
		{"relative listing", []string{"--listing-url", "elpais.com/opinion"}, "listing_url"},
		{"positional argument", []string{"extra"}, "unknown command"},
		{"missing config file", []string{"--config", "missing.yaml"}, "config file"},
		{"http remote", []string{"--remote-url", "https://grid.example.com"}, "remote_url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := run(context.Background(), tt.args, &stdout, &stderr)
			assert.Equal(t, exitUsage, code)
			assert.Contains(t, stderr.String(), tt.want)
		})
	}
}

// TestRun_InvalidEnvironment verifies a malformed variable is a usage error
func TestRun_InvalidEnvironment(t *testing.T) {
	isolate(t)
	t.Setenv("OPINIONS_MAX_ARTICLES", "five")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), nil, &stdout, &stderr)

	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr.String(), "OPINIONS_MAX_ARTICLES")
}

// TestRun_Help verifies --help succeeds and lists the browser flags
func TestRun_Help(t *testing.T) {
	isolate(t)
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), []string{"--help"}, &stdout, &stderr)

	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout.String(), "--browser")
	assert.Contains(t, stdout.String(), "--headless")
	assert.Contains(t, stdout.String(), "--mobile")
}

// TestRun_Static verifies a complete run over plain HTTP exits zero and
// writes the images and the JSON report
func TestRun_Static(t *testing.T) {
	dir := isolate(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/opinion/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
			<article><a href="/opinion/2026-03-01/crisis.html">1</a></article>
			<article><a href="/opinion/2026-03-02/otra-crisis.html">2</a></article>
			<article><a href="/opinion/2026-03-03/ultima-crisis.html">3</a></article>
		</body></html>`)
	})
	pages := map[string]string{
		"/opinion/2026-03-01/crisis.html":        "La crisis",
		"/opinion/2026-03-02/otra-crisis.html":   "Otra crisis",
		"/opinion/2026-03-03/ultima-crisis.html": "Última crisis",
	}
	for path, title := range pages {
		title := title
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintf(w, `<html><body><article><h1>%s</h1><img src="/img/cover.png"><p>Texto.</p></article></body></html>`, title)
		})
	}
	mux.HandleFunc("/img/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"))
	})
	translations := map[string]string{
		"La crisis":     "The crisis",
		"Otra crisis":   "Another crisis",
		"Última crisis": "Last crisis",
	}
	mux.HandleFunc("/translate_a/single", func(w http.ResponseWriter, r *http.Request) {
		out, ok := translations[r.URL.Query().Get("q")]
		if !ok {
			http.Error(w, "unknown text", http.StatusBadRequest)
			return
		}
		body, _ := json.Marshal([]any{[]any{[]any{out, r.URL.Query().Get("q")}}})
		_, _ = w.Write(body)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	t.Setenv("OPINIONS_TRANSLATION_ENDPOINT", server.URL)
	t.Setenv("OPINIONS_TRANSLATION_RATE", "0")
	t.Setenv("OPINIONS_PAGE_DELAY", "0s")
	t.Setenv("OPINIONS_CACHE_PATH", "cache.db")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{
		"--browser", "static",
		"--listing-url", server.URL + "/opinion/",
		"--image-dir", "images",
		"--report", "report.json",
	}, &stdout, &stderr)

	require.Equal(t, exitOK, code, stderr.String())
	assert.Contains(t, stdout.String(), "Another crisis")
	assert.Contains(t, stdout.String(), "WORD FREQUENCY ANALYSIS")

	assert.FileExists(t, filepath.Join(dir, "images", "La_crisis.png"))
	assert.FileExists(t, filepath.Join(dir, "images", "Última_crisis.png"))
	assert.FileExists(t, filepath.Join(dir, "cache.db"))

	data, err := os.ReadFile(filepath.Join(dir, "report.json"))
	require.NoError(t, err)
	var rep struct {
		State       string `json:"state"`
		Frequencies []struct {
			Word  string `json:"word"`
			Count int    `json:"count"`
		} `json:"frequencies"`
	}
	require.NoError(t, json.Unmarshal(data, &rep))
	assert.Equal(t, "reported", rep.State)
	require.Len(t, rep.Frequencies, 1)
	assert.Equal(t, "crisis", rep.Frequencies[0].Word)
	assert.Equal(t, 3, rep.Frequencies[0].Count)
}
