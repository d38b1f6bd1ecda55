package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment variable read by ApplyEnv.
const EnvPrefix = "OPINIONS_"

// LookupFunc reads an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// LoadDotEnv loads variables from the given .env files (".env" when none
// are given) without overriding variables already set. Missing files are
// ignored.
func LoadDotEnv(files ...string) error {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// ApplyEnv overlays OPINIONS_* variables. Malformed values are errors.
// BROWSERSTACK_USERNAME and BROWSERSTACK_ACCESS_KEY also supply the remote
// credentials; the OPINIONS_ names win when both are set.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	env := envReader{lookup: lookup}

	env.str("LISTING_URL", &c.ListingURL)
	env.str("FEED_URL", &c.FeedURL)
	env.int("MAX_ARTICLES", &c.MaxArticles)

	env.str("BROWSER", &c.Browser.Kind)
	env.bool("HEADLESS", &c.Browser.Headless)
	env.bool("MOBILE", &c.Browser.Mobile)
	env.str("DEVICE", &c.Browser.Device)
	env.int("WINDOW_WIDTH", &c.Browser.WindowWidth)
	env.int("WINDOW_HEIGHT", &c.Browser.WindowHeight)
	env.str("USER_AGENT", &c.Browser.UserAgent)
	env.bool("INSTALL_BROWSERS", &c.Browser.InstallBrowsers)
	env.str("REMOTE_URL", &c.Browser.RemoteURL)
	env.plain("BROWSERSTACK_USERNAME", &c.Browser.RemoteUsername)
	env.plain("BROWSERSTACK_ACCESS_KEY", &c.Browser.RemoteAccessKey)
	env.str("REMOTE_USERNAME", &c.Browser.RemoteUsername)
	env.str("REMOTE_ACCESS_KEY", &c.Browser.RemoteAccessKey)

	env.duration("NAVIGATION_TIMEOUT", &c.Timeouts.Navigation)
	env.duration("WAIT_TIMEOUT", &c.Timeouts.Wait)
	env.duration("IMAGE_TIMEOUT", &c.Timeouts.Image)
	env.duration("PAGE_DELAY", &c.Timeouts.PageDelay)

	env.str("TRANSLATION_BACKEND", &c.Translation.Backend)
	env.str("TRANSLATION_API_KEY", &c.Translation.APIKey)
	env.str("TRANSLATION_ENDPOINT", &c.Translation.Endpoint)
	env.str("SOURCE_LANG", &c.Translation.Source)
	env.str("TARGET_LANG", &c.Translation.Target)
	env.int("TRANSLATION_RETRIES", &c.Translation.Retries)
	env.float("TRANSLATION_RATE", &c.Translation.Rate)
	env.duration("TRANSLATION_TIMEOUT", &c.Translation.Timeout)
	env.str("CACHE_PATH", &c.Translation.CachePath)

	env.int("MIN_WORD_OCCURRENCES", &c.Analysis.MinOccurrences)
	env.int("MIN_TOKEN_LENGTH", &c.Analysis.MinTokenLength)
	env.list("STOP_WORDS", &c.Analysis.StopWords)
	env.bool("FOLD_DIACRITICS", &c.Analysis.FoldDiacritics)

	env.str("IMAGE_DIR", &c.Output.ImageDir)
	env.str("REPORT_PATH", &c.Output.ReportPath)

	env.str("LOG_LEVEL", &c.Log.Level)
	env.str("LOG_FORMAT", &c.Log.Format)

	return errors.Join(env.errs...)
}

// envReader collects parse errors so every malformed variable is reported
// at once.
type envReader struct {
	lookup LookupFunc
	errs   []error
}

func (e *envReader) get(key string) (string, bool) {
	value, ok := e.lookup(EnvPrefix + key)
	if !ok || strings.TrimSpace(value) == "" {
		return "", false
	}
	return strings.TrimSpace(value), true
}

func (e *envReader) fail(key, value string, err error) {
	e.errs = append(e.errs, fmt.Errorf("invalid %s%s %q: %w", EnvPrefix, key, value, err))
}

// plain reads an unprefixed variable, for names set by other tools.
func (e *envReader) plain(key string, dst *string) {
	if v, ok := e.lookup(key); ok && strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) int(key string, dst *int) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, v, err)
		return
	}
	*dst = n
}

func (e *envReader) float(key string, dst *float64) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(key, v, err)
		return
	}
	*dst = f
}

func (e *envReader) bool(key string, dst *bool) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, v, err)
		return
	}
	*dst = b
}

func (e *envReader) duration(key string, dst *time.Duration) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, v, err)
		return
	}
	*dst = d
}

// list reads a comma-separated list. "-" clears it.
func (e *envReader) list(key string, dst *[]string) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	if v == "-" {
		*dst = nil
		return
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
}
