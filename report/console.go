package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-runewidth"
	"github.com/pevans/opinions/article"
)

// Untranslated is shown in place of a title that could not be translated.
const Untranslated = "(untranslated)"

const (
	separatorWidth = 80
	labelWidth     = 18
	titleWidth     = 60
)

// Render writes the human-readable report: articles, translations, the
// word frequency table and a summary.
func Render(w io.Writer, r *Report) {
	separator(w, "=")
	fmt.Fprintln(w, "EL PAÍS OPINION SCRAPER")
	separator(w, "=")
	field(w, "Run", r.RunID.String())
	field(w, "Browser", r.Browser)
	field(w, "Headless", fmt.Sprint(r.Headless))
	field(w, "Mobile", fmt.Sprint(r.Mobile))
	field(w, "Listing", r.ListingURL)
	fmt.Fprintln(w)

	renderArticles(w, r.Articles)
	renderTranslations(w, r.Articles)
	renderFrequencies(w, r)
	renderSummary(w, r)
}

func renderArticles(w io.Writer, articles []article.Article) {
	separator(w, "=")
	fmt.Fprintln(w, "SCRAPED ARTICLES")
	separator(w, "=")

	if len(articles) == 0 {
		fmt.Fprintln(w, "\nNo articles found.")
	}

	for i := range articles {
		a := &articles[i]
		fmt.Fprintf(w, "\n[Article %d]\n", i+1)
		field(w, "Title", a.Title)
		field(w, "Content", orNone(a.Body))
		field(w, "Image", ImageStatus(a))
		field(w, "URL", a.URL)
		for _, msg := range a.ErrorStrings() {
			field(w, "Error", msg)
		}
		separator(w, "-")
	}
	fmt.Fprintln(w)
}

func renderTranslations(w io.Writer, articles []article.Article) {
	separator(w, "=")
	fmt.Fprintln(w, "TRANSLATED TITLES")
	separator(w, "=")

	for i := range articles {
		a := &articles[i]
		fmt.Fprintf(w, "\n[%d] Original:   %s\n", i+1, a.Title)
		fmt.Fprintf(w, "    Translated: %s\n", TranslatedTitle(a))
	}
	fmt.Fprintln(w)
}

func renderFrequencies(w io.Writer, r *Report) {
	separator(w, "=")
	fmt.Fprintln(w, "WORD FREQUENCY ANALYSIS")
	separator(w, "=")
	fmt.Fprintf(w, "\nWords appearing more than %d times:\n\n", r.MinOccurrences)

	if len(r.Frequencies) == 0 {
		fmt.Fprintf(w, "No words appear more than %d times.\n\n", r.MinOccurrences)
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Word", "Count"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignRight},
	})
	for _, e := range r.Frequencies {
		t.AppendRow(table.Row{e.Word, e.Count})
	}
	t.Render()
	fmt.Fprintln(w)
}

func renderSummary(w io.Writer, r *Report) {
	separator(w, "=")
	fmt.Fprintln(w, "SUMMARY")
	separator(w, "=")

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Title", "Translated", "Image"})
	for i := range r.Articles {
		a := &r.Articles[i]
		t.AppendRow(table.Row{
			i + 1,
			runewidth.Truncate(a.Title, titleWidth, "..."),
			runewidth.Truncate(TranslatedTitle(a), titleWidth, "..."),
			ImageStatus(a),
		})
	}
	if len(r.Articles) > 0 {
		t.Render()
	}

	fmt.Fprintf(w, "Scraped %d articles\n", len(r.Articles))
	fmt.Fprintf(w, "Translated %d of %d titles\n", r.Translated(), len(r.Articles))
	fmt.Fprintf(w, "Found %d words appearing more than %d times\n", len(r.Frequencies), r.MinOccurrences)
	if r.ImageDir != "" {
		fmt.Fprintf(w, "Saved %d images to %s\n", r.ImagesSaved(), r.ImageDir)
	}
	fmt.Fprintf(w, "Finished in state %s after %s\n", r.State, r.Duration().Round(time.Millisecond))
	separator(w, "=")
}

// TranslatedTitle returns the translation or Untranslated.
func TranslatedTitle(a *article.Article) string {
	if a.TranslatedTitle == nil {
		return Untranslated
	}
	return *a.TranslatedTitle
}

// ImageStatus describes what happened to an article's cover image.
func ImageStatus(a *article.Article) string {
	switch {
	case a.ImagePath != "":
		return a.ImagePath
	case a.HasImage():
		return "downloaded"
	case a.ImageURL != "":
		return "download failed"
	default:
		return "no image"
	}
}

func field(w io.Writer, label, value string) {
	fmt.Fprintf(w, "%s %s\n", runewidth.FillRight(label+":", labelWidth), value)
}

func separator(w io.Writer, char string) {
	fmt.Fprintln(w, strings.Repeat(char, separatorWidth))
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
