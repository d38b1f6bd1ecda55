// Package config holds the run configuration: built-in defaults, overridden
// by an optional YAML file, then by OPINIONS_* environment variables, then
// by command-line flags.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/pevans/opinions/analysis"
	"github.com/pevans/opinions/browser"
	"github.com/pevans/opinions/logger"
	"github.com/pevans/opinions/scraper"
	"github.com/pevans/opinions/translate"
	"gopkg.in/yaml.v3"
)

// DefaultFile is read from the working directory when no file is given.
const DefaultFile = "opinions.yaml"

// DefaultListingURL is the El País opinion section.
const DefaultListingURL = "https://elpais.com/opinion/"

// Validation errors.
var (
	ErrInvalidMaxArticles    = errors.New("max_articles must be at least 1")
	ErrInvalidListingURL     = errors.New("listing_url must be an absolute http(s) URL")
	ErrInvalidFeedURL        = errors.New("feed_url must be an absolute http(s) URL")
	ErrInvalidWindowSize     = errors.New("window size must be positive")
	ErrInvalidTimeout        = errors.New("timeouts must be positive")
	ErrInvalidLanguage       = errors.New("source and target languages are required")
	ErrInvalidMinOccurrences = errors.New("min_occurrences must be at least 2")
	ErrInvalidBackend        = errors.New("translation backend must be google or cloud")
	ErrMissingAPIKey         = errors.New("cloud translation requires an API key")
	ErrMissingImageDir       = errors.New("image_dir is required")
	ErrInvalidRemoteURL      = errors.New("remote_url must be a ws or wss URL")
)

// Browser configures the browser session.
type Browser struct {
	Kind            string `yaml:"kind"`
	Headless        bool   `yaml:"headless"`
	Mobile          bool   `yaml:"mobile"`
	Device          string `yaml:"device"`
	WindowWidth     int    `yaml:"window_width"`
	WindowHeight    int    `yaml:"window_height"`
	UserAgent       string `yaml:"user_agent"`
	InstallBrowsers bool   `yaml:"install_browsers"`
	// RemoteURL runs the browser on a remote playwright grid.
	RemoteURL       string `yaml:"remote_url"`
	RemoteUsername  string `yaml:"remote_username"`
	RemoteAccessKey string `yaml:"remote_access_key"`
}

// Timeouts bound the blocking steps of a run.
type Timeouts struct {
	Navigation time.Duration `yaml:"navigation"`
	Wait       time.Duration `yaml:"wait"`
	Image      time.Duration `yaml:"image"`
	PageDelay  time.Duration `yaml:"page_delay"`
}

// Translation configures the translator.
type Translation struct {
	Backend string `yaml:"backend"`
	APIKey  string `yaml:"api_key"`
	// Endpoint overrides the backend's base URL.
	Endpoint  string        `yaml:"endpoint"`
	Source    string        `yaml:"source"`
	Target    string        `yaml:"target"`
	Retries   int           `yaml:"retries"`
	RetryWait time.Duration `yaml:"retry_wait"`
	Rate      float64       `yaml:"rate"`
	Timeout   time.Duration `yaml:"timeout"`
	// CachePath enables the SQLite translation cache when set.
	CachePath string `yaml:"cache_path"`
}

// Analysis configures the word frequency analyzer.
type Analysis struct {
	MinOccurrences int      `yaml:"min_occurrences"`
	MinTokenLength int      `yaml:"min_token_length"`
	StopWords      []string `yaml:"stop_words"`
	FoldDiacritics bool     `yaml:"fold_diacritics"`
}

// Output configures where artifacts are written.
type Output struct {
	ImageDir string `yaml:"image_dir"`
	// ReportPath enables the JSON report when set.
	ReportPath string `yaml:"report_path"`
}

// Log configures logging.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the complete run configuration.
type Config struct {
	ListingURL string `yaml:"listing_url"`
	// FeedURL switches link discovery to an RSS or Atom feed.
	FeedURL string `yaml:"feed_url"`

	MaxArticles int               `yaml:"max_articles"`
	Browser     Browser           `yaml:"browser"`
	Timeouts    Timeouts          `yaml:"timeouts"`
	Translation Translation       `yaml:"translation"`
	Analysis    Analysis          `yaml:"analysis"`
	Output      Output            `yaml:"output"`
	Log         Log               `yaml:"log"`
	Selectors   scraper.Selectors `yaml:"selectors"`
}

// Default returns the built-in configuration.
func Default() *Config {
	scraperDefaults := scraper.DefaultConfig()
	translateDefaults := translate.DefaultConfig()

	return &Config{
		ListingURL:  DefaultListingURL,
		MaxArticles: 5,
		Browser: Browser{
			Kind:         string(browser.Chrome),
			Device:       browser.DefaultDevice,
			WindowWidth:  browser.DefaultWindowSize.Width,
			WindowHeight: browser.DefaultWindowSize.Height,
		},
		Timeouts: Timeouts{
			Navigation: browser.DefaultNavigationTimeout,
			Wait:       scraperDefaults.WaitTimeout,
			Image:      scraperDefaults.ImageTimeout,
			PageDelay:  scraperDefaults.PageDelay,
		},
		Translation: Translation{
			Backend:   translate.BackendGoogle,
			Source:    translateDefaults.Source,
			Target:    translateDefaults.Target,
			Retries:   translateDefaults.Retries,
			RetryWait: translateDefaults.RetryWait,
			Rate:      translateDefaults.Rate,
			Timeout:   translateDefaults.Timeout,
		},
		Analysis: Analysis{
			MinOccurrences: analysis.DefaultMinOccurrences,
			MinTokenLength: analysis.DefaultMinTokenLength,
			StopWords:      append([]string(nil), analysis.DefaultStopWords...),
		},
		Output: Output{
			ImageDir: "output/images",
		},
		Log: Log{
			Level:  "info",
			Format: "console",
		},
		Selectors: scraper.DefaultSelectors(),
	}
}

// Load builds the configuration from defaults, the YAML file at path and
// the environment. An empty path reads DefaultFile if it exists; a named
// file must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFile overlays the YAML file at path. Keys absent from the file keep
// their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// Validate checks the configuration. The browser kind is not checked here:
// unsupported browsers are rejected when the session is acquired.
func (c *Config) Validate() error {
	var errs []error

	if c.MaxArticles < 1 {
		errs = append(errs, ErrInvalidMaxArticles)
	}
	if !isHTTPURL(c.ListingURL) {
		errs = append(errs, ErrInvalidListingURL)
	}
	if c.FeedURL != "" && !isHTTPURL(c.FeedURL) {
		errs = append(errs, ErrInvalidFeedURL)
	}
	if c.Browser.WindowWidth <= 0 || c.Browser.WindowHeight <= 0 {
		errs = append(errs, ErrInvalidWindowSize)
	}
	if c.Timeouts.Navigation <= 0 || c.Timeouts.Wait <= 0 || c.Timeouts.Image <= 0 || c.Timeouts.PageDelay < 0 {
		errs = append(errs, ErrInvalidTimeout)
	}
	if strings.TrimSpace(c.Translation.Source) == "" || strings.TrimSpace(c.Translation.Target) == "" {
		errs = append(errs, ErrInvalidLanguage)
	}
	switch strings.ToLower(c.Translation.Backend) {
	case translate.BackendGoogle:
	case translate.BackendCloud:
		if c.Translation.APIKey == "" {
			errs = append(errs, ErrMissingAPIKey)
		}
	default:
		errs = append(errs, ErrInvalidBackend)
	}
	if c.Analysis.MinOccurrences < 2 {
		errs = append(errs, ErrInvalidMinOccurrences)
	}
	if strings.TrimSpace(c.Output.ImageDir) == "" {
		errs = append(errs, ErrMissingImageDir)
	}
	if c.Browser.RemoteURL != "" && !isWebSocketURL(c.Browser.RemoteURL) {
		errs = append(errs, ErrInvalidRemoteURL)
	}

	return errors.Join(errs...)
}

// BrowserOptions returns the session options.
func (c *Config) BrowserOptions() browser.Options {
	return browser.Options{
		Kind:              browser.Kind(strings.ToLower(strings.TrimSpace(c.Browser.Kind))),
		Headless:          c.Browser.Headless,
		Mobile:            c.Browser.Mobile,
		Device:            c.Browser.Device,
		WindowSize:        browser.Size{Width: c.Browser.WindowWidth, Height: c.Browser.WindowHeight},
		NavigationTimeout: c.Timeouts.Navigation,
		UserAgent:         c.Browser.UserAgent,
		InstallBrowsers:   c.Browser.InstallBrowsers,
		Remote: browser.Remote{
			URL:       c.Browser.RemoteURL,
			Username:  c.Browser.RemoteUsername,
			AccessKey: c.Browser.RemoteAccessKey,
		},
	}
}

// ScraperConfig returns the extractor settings.
func (c *Config) ScraperConfig() scraper.Config {
	cfg := scraper.DefaultConfig()
	cfg.Selectors = c.Selectors
	cfg.WaitTimeout = c.Timeouts.Wait
	cfg.ImageTimeout = c.Timeouts.Image
	cfg.PageDelay = c.Timeouts.PageDelay
	if c.Browser.UserAgent != "" {
		cfg.UserAgent = c.Browser.UserAgent
	}
	return cfg
}

// TranslateConfig returns the translator settings.
func (c *Config) TranslateConfig() translate.Config {
	return translate.Config{
		Source:    c.Translation.Source,
		Target:    c.Translation.Target,
		Retries:   c.Translation.Retries,
		RetryWait: c.Translation.RetryWait,
		Rate:      c.Translation.Rate,
		Timeout:   c.Translation.Timeout,
	}
}

// Analyzer returns the configured analyzer.
func (c *Config) Analyzer() *analysis.Analyzer {
	return &analysis.Analyzer{
		MinOccurrences: c.Analysis.MinOccurrences,
		MinTokenLength: c.Analysis.MinTokenLength,
		StopWords:      c.Analysis.StopWords,
		FoldDiacritics: c.Analysis.FoldDiacritics,
	}
}

// LoggerConfig returns the logger settings.
func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{
		Level:  c.Log.Level,
		Format: c.Log.Format,
	}
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func isWebSocketURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "ws" || u.Scheme == "wss") && u.Host != ""
}
