package scraper

import "time"

// Selectors define how to find articles on the listing page and how to
// extract fields from each article page. Every list is tried in order and
// the first selector that yields a value wins.
type Selectors struct {
	// ListingReady must match before links are collected.
	ListingReady string   `yaml:"listing_ready" json:"listing_ready"`
	Links        []string `yaml:"links" json:"links"`
	// LinkPattern is a regular expression a link must match to count as an
	// article. Empty accepts every link.
	LinkPattern   string   `yaml:"link_pattern" json:"link_pattern,omitempty"`
	ArticleReady  string   `yaml:"article_ready" json:"article_ready"`
	Title         []string `yaml:"title" json:"title"`
	Body          []string `yaml:"body" json:"body"`
	Image         []string `yaml:"image" json:"image"`
	CookieConsent []string `yaml:"cookie_consent" json:"cookie_consent,omitempty"`
}

// DefaultSelectors returns selectors for the El País opinion section.
func DefaultSelectors() Selectors {
	return Selectors{
		ListingReady: "article",
		Links: []string{
			"article a[href*='/opinion/']",
			"a[href*='/opinion/']",
			".c_h a[href*='/opinion/']",
		},
		LinkPattern:  `/opinion/\d{4}-\d{2}-\d{2}/`,
		ArticleReady: "h1",
		Title:        []string{"h1", "h1.a_t", ".article_header h1", "header h1"},
		Body: []string{
			"article p",
			".a_c p",
			".article_body p",
			"div[itemprop='articleBody'] p",
		},
		Image: []string{
			"article img",
			".a_m img",
			"figure img",
			"img[itemprop='image']",
			".article_header img",
		},
		CookieConsent: []string{
			"#didomi-notice-agree-button",
			"button.didomi-button",
			"button[id*='accept']",
			"button[id*='consent']",
			"button[aria-label*='Accept']",
		},
	}
}

// Config holds extractor settings.
type Config struct {
	Selectors Selectors
	// WaitTimeout bounds waiting for the listing (fatal) and for each
	// article page (not fatal).
	WaitTimeout  time.Duration
	ImageTimeout time.Duration
	// PageDelay is slept between article visits.
	PageDelay time.Duration
	// BodyParagraphs is how many non-empty paragraphs form the snippet.
	BodyParagraphs int
	// SnippetLength caps the snippet, in characters.
	SnippetLength int
	// UserAgent is sent with image downloads.
	UserAgent string
}

// DefaultConfig returns the default extractor settings.
func DefaultConfig() Config {
	return Config{
		Selectors:      DefaultSelectors(),
		WaitTimeout:    15 * time.Second,
		ImageTimeout:   10 * time.Second,
		PageDelay:      time.Second,
		BodyParagraphs: 3,
		SnippetLength:  300,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
	}
}
