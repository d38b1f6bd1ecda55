package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pevans/opinions/article"
	"github.com/pevans/opinions/logger"
	"golang.org/x/time/rate"
)

// Config holds translator settings.
type Config struct {
	Source string
	Target string
	// Retries is the number of attempts per title.
	Retries   int
	RetryWait time.Duration
	// Rate is the maximum number of backend requests per second. Zero
	// disables pacing.
	Rate float64
	// Timeout bounds each backend request.
	Timeout time.Duration
}

// DefaultConfig returns Spanish to English with three attempts per title.
func DefaultConfig() Config {
	return Config{
		Source:    "es",
		Target:    "en",
		Retries:   3,
		RetryWait: time.Second,
		Rate:      2,
		Timeout:   10 * time.Second,
	}
}

// Translator translates titles one by one.
type Translator struct {
	cfg     Config
	backend Backend
	cache   Cache
	limiter *rate.Limiter
	log     logger.Logger
}

// Option configures a Translator.
type Option func(*Translator)

// WithCache makes the translator consult and fill cache.
func WithCache(cache Cache) Option {
	return func(t *Translator) { t.cache = cache }
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(t *Translator) {
		if log != nil {
			t.log = log
		}
	}
}

// New creates a translator over backend.
func New(backend Backend, cfg Config, opts ...Option) *Translator {
	if cfg.Retries <= 0 {
		cfg.Retries = 1
	}

	t := &Translator{
		cfg:     cfg,
		backend: backend,
		limiter: rate.NewLimiter(rate.Inf, 1),
		log:     logger.NewNop(),
	}
	if cfg.Rate > 0 {
		t.limiter = rate.NewLimiter(rate.Limit(cfg.Rate), 1)
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// TranslateTitles returns one result per title, in input order. A failed
// title yields a result whose Err is an *article.TranslationError; it never
// shifts or drops the results around it. Once ctx is done the remaining
// titles fail with the context error.
func (t *Translator) TranslateTitles(ctx context.Context, titles []string) []article.Result[string] {
	t.log.Info("Translating titles",
		logger.Int("count", len(titles)),
		logger.String("source", t.cfg.Source),
		logger.String("target", t.cfg.Target),
	)

	results := make([]article.Result[string], len(titles))
	failed := 0
	for i, title := range titles {
		translated, err := t.translateOne(ctx, title)
		if err != nil {
			failed++
			t.log.Warn("Translation failed", logger.Int("index", i), logger.Error(err))
			results[i] = article.Failed[string](&article.TranslationError{Index: i, Text: title, Err: err})
			continue
		}
		results[i] = article.Succeed(translated)
	}

	t.log.Info("Translation finished",
		logger.Int("translated", len(titles)-failed),
		logger.Int("failed", failed),
	)
	return results
}

// Translate translates a single text with retries.
func (t *Translator) Translate(ctx context.Context, text string) (string, error) {
	return t.translateOne(ctx, text)
}

func (t *Translator) translateOne(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" || text == article.NoTitle {
		return "", article.ErrEmptyText
	}

	if t.cache != nil {
		cached, ok, err := t.cache.Get(ctx, t.cfg.Source, t.cfg.Target, text)
		if err != nil {
			t.log.Warn("Translation cache lookup failed", logger.Error(err))
		} else if ok {
			t.log.Debug("Translation cache hit", logger.String("text", text))
			return cached, nil
		}
	}

	var lastErr error
	for attempt := 1; attempt <= t.cfg.Retries; attempt++ {
		if attempt > 1 {
			if err := wait(ctx, t.cfg.RetryWait); err != nil {
				return "", err
			}
		}

		translated, err := t.attempt(ctx, text)
		if err == nil {
			t.store(ctx, text, translated)
			return translated, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		lastErr = err
		t.log.Debug("Translation attempt failed",
			logger.Int("attempt", attempt),
			logger.Int("retries", t.cfg.Retries),
			logger.Error(err),
		)
	}

	return "", fmt.Errorf("after %d attempts: %w", t.cfg.Retries, lastErr)
}

func (t *Translator) attempt(ctx context.Context, text string) (string, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return "", err
	}

	if t.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.Timeout)
		defer cancel()
	}

	translated, err := t.backend.Translate(ctx, text, t.cfg.Source, t.cfg.Target)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(translated) == "" {
		return "", ErrEmptyResponse
	}
	return translated, nil
}

func (t *Translator) store(ctx context.Context, text, translated string) {
	if t.cache == nil {
		return
	}
	if err := t.cache.Put(ctx, t.cfg.Source, t.cfg.Target, text, translated); err != nil {
		t.log.Warn("Translation cache store failed", logger.Error(err))
	}
}

// ErrResultMismatch is returned by Apply when results do not line up with
// articles.
var ErrResultMismatch = errors.New("translation results do not match articles")

// Titles returns the original titles of articles, in order.
func Titles(articles []article.Article) []string {
	titles := make([]string, len(articles))
	for i := range articles {
		titles[i] = articles[i].Title
	}
	return titles
}

// Apply sets TranslatedTitle on each article whose result succeeded and
// records the error on the others.
func Apply(articles []article.Article, results []article.Result[string]) error {
	if len(articles) != len(results) {
		return fmt.Errorf("%w: %d articles, %d results", ErrResultMismatch, len(articles), len(results))
	}
	for i, r := range results {
		if !r.OK() {
			articles[i].Fail(r.Err)
			continue
		}
		translated := r.Value
		articles[i].TranslatedTitle = &translated
	}
	return nil
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
