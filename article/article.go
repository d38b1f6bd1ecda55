// Package article holds the data shared by the scraper, translator and
// report: the scraped Article, per-item results and the recoverable errors
// that can be attached to a single article.
package article

// NoTitle replaces a title the page did not yield, so every reported article
// carries a non-empty title.
const NoTitle = "(No title)"

// Article is one opinion piece discovered on the listing page. Articles are
// created by the scraper in discovery order; the translator only ever sets
// TranslatedTitle.
type Article struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Body  string `json:"body"`

	// ImageURL is empty when the page has no cover image.
	ImageURL string `json:"image_url,omitempty"`
	// Image holds the downloaded cover image. Nil when there is no image or
	// the download failed.
	Image []byte `json:"-"`
	// ImagePath is where the image was written, set once the sink has
	// flushed it.
	ImagePath string `json:"image_path,omitempty"`

	// TranslatedTitle is nil when the title could not be translated.
	TranslatedTitle *string `json:"translated_title,omitempty"`

	// Errors are the recoverable failures scoped to this article.
	Errors []error `json:"-"`
}

// HasImage reports whether cover image bytes are available.
func (a *Article) HasImage() bool {
	return len(a.Image) > 0
}

// Translated reports whether a translation is available.
func (a *Article) Translated() bool {
	return a.TranslatedTitle != nil
}

// Fail records a recoverable error against the article.
func (a *Article) Fail(err error) {
	if err != nil {
		a.Errors = append(a.Errors, err)
	}
}

// ErrorStrings returns the recorded errors as strings, for reports.
func (a *Article) ErrorStrings() []string {
	out := make([]string, 0, len(a.Errors))
	for _, err := range a.Errors {
		out = append(out, err.Error())
	}
	return out
}

// Result is the outcome of one item of a batch operation. Batches return a
// slice of results aligned with their input, so failed items keep their
// position instead of being dropped.
type Result[T any] struct {
	Value T
	Err   error
}

// OK reports whether the item succeeded.
func (r Result[T]) OK() bool {
	return r.Err == nil
}

// Succeed builds a successful result.
func Succeed[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

// Failed builds a failed result.
func Failed[T any](err error) Result[T] {
	return Result[T]{Err: err}
}
