package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/pevans/opinions/browser"
	"github.com/pevans/opinions/config"
	"github.com/pevans/opinions/logger"
	"github.com/pevans/opinions/output"
	"github.com/pevans/opinions/pipeline"
	"github.com/pevans/opinions/scraper"
	"github.com/pevans/opinions/translate"
	"github.com/spf13/cobra"
)

// Exit codes.
const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

// exitError carries the process exit code for an error.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

func usageError(err error) error {
	return &exitError{code: exitUsage, err: err}
}

// flags holds the command-line values. They override the configuration only
// when set explicitly.
type flags struct {
	configPath      string
	browser         string
	headless        bool
	mobile          bool
	device          string
	maxArticles     int
	listingURL      string
	feedURL         string
	imageDir        string
	reportPath      string
	logLevel        string
	installBrowsers bool
	remoteURL       string
}

// run executes the command line and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCommand(stdout)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}

	fmt.Fprintf(stderr, "Error: %v\n", err)

	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	var stageErr *pipeline.StageError
	if errors.As(err, &stageErr) {
		return exitFailed
	}
	// Anything else comes from cobra's own argument parsing.
	return exitUsage
}

func newRootCommand(stdout io.Writer) *cobra.Command {
	f := &flags{}

	cmd := &cobra.Command{
		Use:   "opinions",
		Short: "Scrape El País opinion articles and analyze their translated titles",
		Long: `opinions opens the El País opinion section in a browser, extracts the
newest articles (title, opening paragraphs and cover image), translates the
titles from Spanish to English and reports the words that appear more than
twice across the translated titles.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return usageError(err)
			}
			return execute(cmd.Context(), cfg, stdout)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.configPath, "config", "c", "", "path to a YAML config file (default ./"+config.DefaultFile+" when present)")
	fl.StringVarP(&f.browser, "browser", "b", string(browser.Chrome), "browser to drive: chrome, firefox or edge")
	fl.BoolVar(&f.headless, "headless", false, "run the browser without a window")
	fl.BoolVar(&f.mobile, "mobile", false, "emulate a mobile device")
	fl.StringVar(&f.device, "device", browser.DefaultDevice, "device profile used with --mobile")
	fl.IntVarP(&f.maxArticles, "max-articles", "n", 5, "number of articles to extract")
	fl.StringVar(&f.listingURL, "listing-url", config.DefaultListingURL, "opinion listing page")
	fl.StringVar(&f.feedURL, "feed-url", "", "discover articles from an RSS or Atom feed instead of the listing page")
	fl.StringVar(&f.imageDir, "image-dir", "", "directory for downloaded cover images")
	fl.StringVar(&f.reportPath, "report", "", "write a JSON report to this path")
	fl.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn or error")
	fl.BoolVar(&f.installBrowsers, "install-browsers", false, "download the browser driver and binaries before launching")
	fl.StringVar(&f.remoteURL, "remote-url", "", "run the browser on a remote playwright grid (ws or wss URL)")

	return cmd
}

// loadConfig resolves the configuration: .env, defaults, the YAML file and
// the environment, then any flag given on the command line.
func loadConfig(cmd *cobra.Command, f *flags) (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}

	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("browser") {
		cfg.Browser.Kind = f.browser
	}
	if changed("headless") {
		cfg.Browser.Headless = f.headless
	}
	if changed("mobile") {
		cfg.Browser.Mobile = f.mobile
	}
	if changed("device") {
		cfg.Browser.Device = f.device
	}
	if changed("install-browsers") {
		cfg.Browser.InstallBrowsers = f.installBrowsers
	}
	if changed("remote-url") {
		cfg.Browser.RemoteURL = f.remoteURL
	}
	if changed("max-articles") {
		cfg.MaxArticles = f.maxArticles
	}
	if changed("listing-url") {
		cfg.ListingURL = f.listingURL
	}
	if changed("feed-url") {
		cfg.FeedURL = f.feedURL
	}
	if changed("image-dir") {
		cfg.Output.ImageDir = f.imageDir
	}
	if changed("report") {
		cfg.Output.ReportPath = f.reportPath
	}
	if changed("log-level") {
		cfg.Log.Level = f.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// execute builds the components from cfg and runs the pipeline once.
func execute(ctx context.Context, cfg *config.Config, stdout io.Writer) error {
	log, err := logger.New(cfg.LoggerConfig())
	if err != nil {
		return usageError(err)
	}
	defer log.Sync()

	extractor, err := scraper.New(cfg.ScraperConfig(), log.With(logger.String("component", "scraper")))
	if err != nil {
		return usageError(err)
	}

	backend, err := translate.NewBackend(ctx, cfg.Translation.Backend, cfg.Translation.APIKey, cfg.Translation.Endpoint)
	if err != nil {
		return usageError(err)
	}

	translatorLog := log.With(logger.String("component", "translator"))
	opts := []translate.Option{translate.WithLogger(translatorLog)}
	if cfg.Translation.CachePath != "" {
		// Opened on first lookup, so a run that fails earlier writes nothing.
		cache := translate.NewLazySQLiteCache(cfg.Translation.CachePath)
		defer func() {
			if err := cache.Close(); err != nil {
				log.Warn("Failed to close translation cache", logger.Error(err))
			}
		}()
		opts = append(opts, translate.WithCache(cache))
	}

	p := pipeline.New(pipeline.Options{
		ListingURL:     cfg.ListingURL,
		FeedURL:        cfg.FeedURL,
		MaxArticles:    cfg.MaxArticles,
		Browser:        cfg.BrowserOptions(),
		MinOccurrences: cfg.Analysis.MinOccurrences,
		ReportPath:     cfg.Output.ReportPath,
	}, pipeline.Deps{
		Factory:    browser.NewFactory(log.With(logger.String("component", "browser"))),
		Extractor:  extractor,
		Translator: translate.New(backend, cfg.TranslateConfig(), opts...),
		Analyzer:   cfg.Analyzer(),
		Sink:       output.NewImageSink(cfg.Output.ImageDir, log.With(logger.String("component", "output"))),
		Console:    stdout,
		Logger:     log,
	})

	_, err = p.Run(ctx)
	return err
}
