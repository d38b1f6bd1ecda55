package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pevans/opinions/analysis"
	"github.com/pevans/opinions/article"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func sampleReport() *Report {
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return &Report{
		RunID:      uuid.MustParse("6f1c2d3e-4a5b-4c6d-8e7f-8091a2b3c4d5"),
		StartedAt:  started,
		FinishedAt: started.Add(1500 * time.Millisecond),
		Browser:    "chrome",
		Headless:   true,
		ListingURL: "https://elpais.com/opinion/",
		State:      "reported",
		Articles: []article.Article{
			{
				URL:             "https://elpais.com/opinion/2026-03-01/economia.html",
				Title:           "La economía global",
				Body:            "Un texto.",
				ImageURL:        "https://imagenes.elpais.com/a.jpg",
				ImagePath:       "output/images/La_economía_global.jpg",
				TranslatedTitle: strPtr("The global economy"),
			},
			{
				URL:      "https://elpais.com/opinion/2026-03-01/futuro.html",
				Title:    "El futuro de la economía",
				ImageURL: "https://imagenes.elpais.com/b.jpg",
				Errors: []error{
					&article.ImageDownloadError{URL: "https://imagenes.elpais.com/b.jpg", Err: errors.New("HTTP error: 404 Not Found")},
					&article.TranslationError{Index: 1, Text: "El futuro de la economía", Err: errors.New("timeout")},
				},
			},
		},
		Frequencies:    []analysis.Entry{{Word: "economy", Count: 3}},
		MinOccurrences: 2,
		ImageDir:       "output/images",
	}
}

// TestRender verifies every section appears with per-article details in
// order
func TestRender(t *testing.T) {
	var buf bytes.Buffer
	Render(&buf, sampleReport())
	out := buf.String()

	assert.Contains(t, out, "6f1c2d3e-4a5b-4c6d-8e7f-8091a2b3c4d5")
	assert.Contains(t, out, "[Article 1]")
	assert.Contains(t, out, "[Article 2]")
	assert.Less(t, strings.Index(out, "La economía global"), strings.Index(out, "El futuro de la economía"))

	assert.Contains(t, out, "Translated: The global economy")
	assert.Contains(t, out, "Translated: "+Untranslated)
	assert.Contains(t, out, "download failed")
	assert.Contains(t, out, "output/images/La_economía_global.jpg")
	assert.Contains(t, out, "HTTP error: 404 Not Found")
	assert.Contains(t, out, "Content:")
	assert.Contains(t, out, "(none)")

	assert.Contains(t, out, "economy")
	assert.Contains(t, out, "Translated 1 of 2 titles")
	assert.Contains(t, out, "Found 1 words appearing more than 2 times")
	assert.Contains(t, out, "Saved 1 images to output/images")
	assert.Contains(t, out, "Finished in state reported after 1.5s")
}

// TestRender_NoFrequencies verifies the empty-table message
func TestRender_NoFrequencies(t *testing.T) {
	r := sampleReport()
	r.Frequencies = nil

	var buf bytes.Buffer
	Render(&buf, r)

	assert.Contains(t, buf.String(), "No words appear more than 2 times.")
}

// TestRender_NoArticles verifies an empty run still renders
func TestRender_NoArticles(t *testing.T) {
	r := sampleReport()
	r.Articles = nil
	r.Frequencies = nil

	var buf bytes.Buffer
	Render(&buf, r)

	assert.Contains(t, buf.String(), "No articles found.")
	assert.Contains(t, buf.String(), "Scraped 0 articles")
}

// TestImageStatus verifies each image outcome
func TestImageStatus(t *testing.T) {
	assert.Equal(t, "out/a.jpg", ImageStatus(&article.Article{ImagePath: "out/a.jpg", Image: []byte{1}}))
	assert.Equal(t, "downloaded", ImageStatus(&article.Article{ImageURL: "https://x/a.jpg", Image: []byte{1}}))
	assert.Equal(t, "download failed", ImageStatus(&article.Article{ImageURL: "https://x/a.jpg"}))
	assert.Equal(t, "no image", ImageStatus(&article.Article{}))
}

// TestReport_Counters verifies the summary counters
func TestReport_Counters(t *testing.T) {
	r := sampleReport()
	assert.Equal(t, 1, r.Translated())
	assert.Equal(t, 1, r.ImagesSaved())
	assert.Equal(t, 1500*time.Millisecond, r.Duration())

	assert.Zero(t, (&Report{StartedAt: time.Now()}).Duration())
}

// TestReport_MarshalJSON verifies errors are rendered as strings and image
// bytes are left out
func TestReport_MarshalJSON(t *testing.T) {
	r := sampleReport()
	r.Articles[0].Image = []byte("binary")

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var decoded struct {
		RunID       string           `json:"run_id"`
		State       string           `json:"state"`
		DurationMS  int64            `json:"duration_ms"`
		Frequencies []analysis.Entry `json:"frequencies"`
		Articles    []struct {
			Title           string   `json:"title"`
			TranslatedTitle *string  `json:"translated_title"`
			Image           any      `json:"image"`
			Errors          []string `json:"errors"`
		} `json:"articles"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "6f1c2d3e-4a5b-4c6d-8e7f-8091a2b3c4d5", decoded.RunID)
	assert.Equal(t, "reported", decoded.State)
	assert.Equal(t, int64(1500), decoded.DurationMS)
	assert.Equal(t, []analysis.Entry{{Word: "economy", Count: 3}}, decoded.Frequencies)

	require.Len(t, decoded.Articles, 2)
	assert.Equal(t, "La economía global", decoded.Articles[0].Title)
	assert.Nil(t, decoded.Articles[0].Image)
	assert.Empty(t, decoded.Articles[0].Errors)
	assert.Nil(t, decoded.Articles[1].TranslatedTitle)
	assert.Len(t, decoded.Articles[1].Errors, 2)
	assert.NotContains(t, string(data), "binary")
}

// TestReport_MarshalJSON_EmptyFrequencies verifies an empty list, not null
func TestReport_MarshalJSON_EmptyFrequencies(t *testing.T) {
	data, err := json.Marshal(&Report{State: "reported"})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"frequencies":[]`)
	assert.Contains(t, string(data), `"articles":[]`)
}
