// Package report holds the outcome of one scraper run and renders it for
// the console.
package report

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pevans/opinions/analysis"
	"github.com/pevans/opinions/article"
)

// Report is the result of a run. Articles are in discovery order.
type Report struct {
	RunID      uuid.UUID
	StartedAt  time.Time
	FinishedAt time.Time

	Browser    string
	Headless   bool
	Mobile     bool
	ListingURL string

	// State is the last state the run reached.
	State string
	// Error is the fatal error message of a failed run.
	Error string

	Articles       []article.Article
	Frequencies    []analysis.Entry
	MinOccurrences int
	ImageDir       string
}

// Translated returns how many articles have a translated title.
func (r *Report) Translated() int {
	n := 0
	for i := range r.Articles {
		if r.Articles[i].Translated() {
			n++
		}
	}
	return n
}

// ImagesSaved returns how many images were written to the image directory.
func (r *Report) ImagesSaved() int {
	n := 0
	for i := range r.Articles {
		if r.Articles[i].ImagePath != "" {
			n++
		}
	}
	return n
}

// Duration returns how long the run took.
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

type articleJSON struct {
	article.Article
	Errors []string `json:"errors,omitempty"`
}

type reportJSON struct {
	RunID          uuid.UUID        `json:"run_id"`
	StartedAt      time.Time        `json:"started_at"`
	FinishedAt     time.Time        `json:"finished_at"`
	DurationMS     int64            `json:"duration_ms"`
	Browser        string           `json:"browser"`
	Headless       bool             `json:"headless"`
	Mobile         bool             `json:"mobile"`
	ListingURL     string           `json:"listing_url"`
	State          string           `json:"state"`
	Error          string           `json:"error,omitempty"`
	Articles       []articleJSON    `json:"articles"`
	Frequencies    []analysis.Entry `json:"frequencies"`
	MinOccurrences int              `json:"min_occurrences"`
	ImageDir       string           `json:"image_dir,omitempty"`
}

// MarshalJSON renders article errors as strings.
func (r *Report) MarshalJSON() ([]byte, error) {
	out := reportJSON{
		RunID:          r.RunID,
		StartedAt:      r.StartedAt,
		FinishedAt:     r.FinishedAt,
		DurationMS:     r.Duration().Milliseconds(),
		Browser:        r.Browser,
		Headless:       r.Headless,
		Mobile:         r.Mobile,
		ListingURL:     r.ListingURL,
		State:          r.State,
		Error:          r.Error,
		Articles:       make([]articleJSON, 0, len(r.Articles)),
		Frequencies:    r.Frequencies,
		MinOccurrences: r.MinOccurrences,
		ImageDir:       r.ImageDir,
	}
	if out.Frequencies == nil {
		out.Frequencies = []analysis.Entry{}
	}
	for _, a := range r.Articles {
		entry := articleJSON{Article: a}
		if len(a.Errors) > 0 {
			entry.Errors = a.ErrorStrings()
		}
		out.Articles = append(out.Articles, entry)
	}
	return json.Marshal(out)
}
