// Package scraper discovers opinion articles on a listing page and extracts
// title, body snippet and cover image from each one through a browser
// session.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
	"github.com/mmcdole/gofeed"
	"github.com/pevans/opinions/article"
	"github.com/pevans/opinions/browser"
	"github.com/pevans/opinions/logger"
)

// consentTimeout bounds the click on a cookie banner button.
const consentTimeout = 3 * time.Second

// Extractor turns a listing page into articles.
type Extractor struct {
	cfg         Config
	linkPattern *regexp.Regexp
	client      *resty.Client
	feedParser  *gofeed.Parser
	log         logger.Logger
}

// New creates an extractor. It fails only when the link pattern does not
// compile.
func New(cfg Config, log logger.Logger) (*Extractor, error) {
	if log == nil {
		log = logger.NewNop()
	}

	defaults := DefaultConfig()
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = defaults.WaitTimeout
	}
	if cfg.ImageTimeout <= 0 {
		cfg.ImageTimeout = defaults.ImageTimeout
	}
	if cfg.BodyParagraphs <= 0 {
		cfg.BodyParagraphs = defaults.BodyParagraphs
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaults.UserAgent
	}

	var pattern *regexp.Regexp
	if cfg.Selectors.LinkPattern != "" {
		p, err := regexp.Compile(cfg.Selectors.LinkPattern)
		if err != nil {
			return nil, fmt.Errorf("invalid link pattern: %w", err)
		}
		pattern = p
	}

	feedParser := gofeed.NewParser()
	feedParser.UserAgent = cfg.UserAgent

	return &Extractor{
		cfg:         cfg,
		linkPattern: pattern,
		client:      resty.New().SetHeader("User-Agent", cfg.UserAgent),
		feedParser:  feedParser,
		log:         log,
	}, nil
}

// Extract navigates to listingURL, collects up to limit distinct article
// links in document order and visits each one. Failing to load the listing
// is fatal; every other failure is recorded on the affected article, so the
// result always holds one article per discovered link.
func (e *Extractor) Extract(ctx context.Context, session browser.Session, listingURL string, limit int) ([]article.Article, error) {
	links, err := e.DiscoverLinks(ctx, session, listingURL, limit)
	if err != nil {
		return nil, err
	}
	return e.VisitAll(ctx, session, links)
}

// ExtractFromFeed behaves like Extract but discovers links from an RSS or
// Atom feed instead of a listing page.
func (e *Extractor) ExtractFromFeed(ctx context.Context, session browser.Session, feedURL string, limit int) ([]article.Article, error) {
	links, err := e.DiscoverFeedLinks(ctx, feedURL, limit)
	if err != nil {
		return nil, err
	}
	return e.VisitAll(ctx, session, links)
}

// DiscoverLinks loads the listing page and returns up to limit article URLs.
func (e *Extractor) DiscoverLinks(ctx context.Context, session browser.Session, listingURL string, limit int) ([]string, error) {
	e.log.Info("Navigating to listing", logger.String("url", listingURL))

	if err := session.Navigate(ctx, listingURL); err != nil {
		return nil, &NavigationError{URL: listingURL, Err: err}
	}

	if sel := e.cfg.Selectors.ListingReady; sel != "" {
		if err := session.WaitFor(ctx, sel, e.cfg.WaitTimeout); err != nil {
			if errors.Is(err, browser.ErrTimeout) {
				return nil, &PageLoadTimeoutError{URL: listingURL, Timeout: e.cfg.WaitTimeout, Err: err}
			}
			return nil, &NavigationError{URL: listingURL, Err: err}
		}
	}

	e.acceptCookies(ctx, session)

	links := e.collectLinks(ctx, session, limit)
	e.log.Info("Found article links", logger.Int("count", len(links)), logger.Int("limit", limit))
	return links, nil
}

// DiscoverFeedLinks returns up to limit distinct item links from a feed, in
// feed order. The fetch is bounded by WaitTimeout.
func (e *Extractor) DiscoverFeedLinks(ctx context.Context, feedURL string, limit int) ([]string, error) {
	e.log.Info("Fetching feed", logger.String("url", feedURL))

	fetchCtx, cancel := context.WithTimeout(ctx, e.cfg.WaitTimeout)
	defer cancel()

	feed, err := e.feedParser.ParseURLWithContext(feedURL, fetchCtx)
	if err != nil {
		if ctx.Err() == nil && errors.Is(fetchCtx.Err(), context.DeadlineExceeded) {
			return nil, &PageLoadTimeoutError{URL: feedURL, Timeout: e.cfg.WaitTimeout, Err: browser.ErrTimeout}
		}
		return nil, &NavigationError{URL: feedURL, Err: fmt.Errorf("failed to parse feed: %w", err)}
	}

	seen := make(map[string]bool)
	var links []string
	for _, item := range feed.Items {
		if len(links) >= limit {
			break
		}
		link := normalizeLink(item.Link)
		if link == "" || seen[link] {
			continue
		}
		seen[link] = true
		links = append(links, link)
	}

	e.log.Info("Found feed links", logger.Int("count", len(links)), logger.Int("limit", limit))
	return links, nil
}

// acceptCookies clicks the first consent button present. Failures only
// matter in that the banner may hide content, so they are logged and
// ignored.
func (e *Extractor) acceptCookies(ctx context.Context, session browser.Session) {
	for _, sel := range e.cfg.Selectors.CookieConsent {
		elements, err := session.FindElements(ctx, sel)
		if err != nil || len(elements) == 0 {
			continue
		}
		if err := session.Click(ctx, sel, consentTimeout); err != nil {
			if errors.Is(err, browser.ErrNotSupported) {
				return
			}
			e.log.Debug("Cookie consent click failed", logger.String("selector", sel), logger.Error(err))
			continue
		}
		e.log.Info("Accepted cookie consent", logger.String("selector", sel))
		return
	}
}

// collectLinks walks the link selectors in order and keeps the first limit
// distinct URLs that match the link pattern.
func (e *Extractor) collectLinks(ctx context.Context, session browser.Session, limit int) []string {
	seen := make(map[string]bool)
	var links []string

	for _, sel := range e.cfg.Selectors.Links {
		if len(links) >= limit {
			break
		}

		elements, err := session.FindElements(ctx, sel)
		if err != nil {
			e.log.Warn("Link selector failed", logger.String("selector", sel), logger.Error(err))
			continue
		}

		for _, el := range elements {
			if len(links) >= limit {
				break
			}
			href, err := el.Attribute("href")
			if err != nil {
				continue
			}
			href = normalizeLink(href)
			if href == "" || seen[href] {
				continue
			}
			if e.linkPattern != nil && !e.linkPattern.MatchString(href) {
				continue
			}
			seen[href] = true
			links = append(links, href)
		}
	}

	return links
}

// VisitAll extracts every link in order. Only context cancellation stops
// the batch early.
func (e *Extractor) VisitAll(ctx context.Context, session browser.Session, links []string) ([]article.Article, error) {
	articles := make([]article.Article, 0, len(links))

	for i, link := range links {
		if i > 0 {
			if err := sleep(ctx, e.cfg.PageDelay); err != nil {
				return articles, err
			}
		}
		if err := ctx.Err(); err != nil {
			return articles, err
		}

		e.log.Info("Scraping article",
			logger.Int("index", i+1),
			logger.Int("total", len(links)),
			logger.String("url", link),
		)
		a := e.Visit(ctx, session, link)
		if len(a.Errors) > 0 {
			e.log.Warn("Article scraped with errors", logger.String("url", link), logger.Any("errors", a.ErrorStrings()))
		}
		articles = append(articles, a)
	}

	return articles, nil
}

// Visit extracts a single article. It never fails: problems are recorded
// in the article's Errors and missing fields are left empty (the title falls
// back to article.NoTitle).
func (e *Extractor) Visit(ctx context.Context, session browser.Session, link string) article.Article {
	a := article.Article{URL: link, Title: article.NoTitle}

	if err := session.Navigate(ctx, link); err != nil {
		a.Fail(&article.ExtractionError{URL: link, Field: "page", Err: err})
		return a
	}

	if sel := e.cfg.Selectors.ArticleReady; sel != "" {
		if err := session.WaitFor(ctx, sel, e.cfg.WaitTimeout); err != nil {
			e.log.Debug("Article not ready, extracting anyway", logger.String("url", link), logger.Error(err))
		}
	}

	if title, err := e.firstText(ctx, session, e.cfg.Selectors.Title); err != nil {
		a.Fail(&article.ExtractionError{URL: link, Field: "title", Err: err})
	} else {
		a.Title = title
	}

	if body, err := e.body(ctx, session); err != nil {
		a.Fail(&article.ExtractionError{URL: link, Field: "body", Err: err})
	} else {
		a.Body = body
	}

	imageURL, err := e.imageURL(ctx, session)
	if err != nil {
		// A missing cover image is normal; only lookup failures are recorded.
		if !errors.Is(err, ErrNoMatch) {
			a.Fail(&article.ExtractionError{URL: link, Field: "image", Err: err})
		}
		return a
	}
	a.ImageURL = imageURL

	data, err := e.DownloadImage(ctx, imageURL)
	if err != nil {
		a.Fail(&article.ImageDownloadError{URL: imageURL, Err: err})
		return a
	}
	a.Image = data

	return a
}

// firstText returns the first non-empty text found by selectors.
func (e *Extractor) firstText(ctx context.Context, session browser.Session, selectors []string) (string, error) {
	var lastErr error
	for _, sel := range selectors {
		elements, err := session.FindElements(ctx, sel)
		if err != nil {
			lastErr = err
			continue
		}
		for _, el := range elements {
			text, err := el.Text()
			if err != nil {
				lastErr = err
				continue
			}
			if text = normalizeSpace(text); text != "" {
				return text, nil
			}
		}
	}
	if lastErr != nil {
		return "", lastErr
	}
	return "", ErrNoMatch
}

// body joins the first non-empty paragraphs of the first body selector that
// yields any, then caps the result at SnippetLength characters.
func (e *Extractor) body(ctx context.Context, session browser.Session) (string, error) {
	var lastErr error
	for _, sel := range e.cfg.Selectors.Body {
		elements, err := session.FindElements(ctx, sel)
		if err != nil {
			lastErr = err
			continue
		}

		var paragraphs []string
		for _, el := range elements {
			if len(paragraphs) >= e.cfg.BodyParagraphs {
				break
			}
			text, err := el.Text()
			if err != nil {
				continue
			}
			if text = normalizeSpace(text); text != "" {
				paragraphs = append(paragraphs, text)
			}
		}
		if len(paragraphs) > 0 {
			return truncate(strings.Join(paragraphs, " "), e.cfg.SnippetLength), nil
		}
	}
	if lastErr != nil {
		return "", lastErr
	}
	return "", ErrNoMatch
}

// imageURL returns the first absolute http(s) image source.
func (e *Extractor) imageURL(ctx context.Context, session browser.Session) (string, error) {
	var lastErr error
	for _, sel := range e.cfg.Selectors.Image {
		elements, err := session.FindElements(ctx, sel)
		if err != nil {
			lastErr = err
			continue
		}
		for _, el := range elements {
			src, err := el.Attribute("src")
			if err != nil {
				lastErr = err
				continue
			}
			if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
				return src, nil
			}
		}
	}
	if lastErr != nil {
		return "", lastErr
	}
	return "", ErrNoMatch
}

// DownloadImage fetches an image, bounded by the image timeout.
func (e *Extractor) DownloadImage(ctx context.Context, imageURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.ImageTimeout)
	defer cancel()

	e.log.Debug("Downloading image", logger.String("url", imageURL))
	resp, err := e.client.R().SetContext(ctx).Get(imageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("HTTP error: %s", resp.Status())
	}
	if len(resp.Body()) == 0 {
		return nil, errors.New("empty response body")
	}
	return resp.Body(), nil
}

// normalizeLink trims the link and drops its fragment so the same article
// linked twice (e.g. to its comments) is only visited once.
func normalizeLink(link string) string {
	link = strings.TrimSpace(link)
	if link == "" {
		return ""
	}
	u, err := url.Parse(link)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}
	u.Fragment = ""
	return u.String()
}

// normalizeSpace collapses runs of whitespace into single spaces.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate caps s at limit characters, appending "..." when it cuts.
func truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + "..."
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
