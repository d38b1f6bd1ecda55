package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pevans/opinions/logger"
	"github.com/playwright-community/playwright-go"
)

// PlaywrightLauncher launches chrome, firefox and edge through playwright.
type PlaywrightLauncher struct {
	log logger.Logger
}

// NewPlaywrightLauncher creates a launcher.
func NewPlaywrightLauncher(log logger.Logger) *PlaywrightLauncher {
	if log == nil {
		log = logger.NewNop()
	}
	return &PlaywrightLauncher{log: log}
}

// engineName maps a Kind to the playwright engine that drives it. Chrome and
// Edge are both chromium; Edge selects the msedge channel.
func engineName(kind Kind) (string, error) {
	switch kind {
	case Chrome, Edge:
		return "chromium", nil
	case Firefox:
		return "firefox", nil
	default:
		return "", &UnsupportedBrowserError{Kind: string(kind)}
	}
}

// Launch starts playwright, the browser, and a single page. With a remote
// URL the browser runs on the remote grid and only the driver runs locally.
func (l *PlaywrightLauncher) Launch(ctx context.Context, opts Options) (Session, error) {
	engine, err := engineName(opts.Kind)
	if err != nil {
		return nil, err
	}

	var endpoint string
	if opts.Remote.URL != "" {
		if endpoint, err = remoteEndpoint(opts); err != nil {
			return nil, &DriverInitError{Kind: opts.Kind, Err: err}
		}
	}

	if opts.InstallBrowsers {
		l.log.Info("Installing browser driver", logger.String("engine", engine))
		install := &playwright.RunOptions{Browsers: []string{engine}, SkipInstallBrowsers: endpoint != ""}
		if err := playwright.Install(install); err != nil {
			return nil, &DriverInitError{Kind: opts.Kind, Err: fmt.Errorf("failed to install driver: %w", err)}
		}
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, &DriverInitError{Kind: opts.Kind, Err: fmt.Errorf("failed to start playwright: %w", err)}
	}

	browserType := pw.Chromium
	if engine == "firefox" {
		browserType = pw.Firefox
	}

	var b playwright.Browser
	if endpoint != "" {
		l.log.Info("Connecting to remote browser", logger.String("host", remoteHost(opts.Remote.URL)))
		b, err = browserType.Connect(endpoint, playwright.BrowserTypeConnectOptions{
			Timeout: playwright.Float(float64(opts.NavigationTimeout.Milliseconds())),
		})
	} else {
		b, err = browserType.Launch(launchOptions(opts))
	}
	if err != nil {
		_ = pw.Stop()
		return nil, &DriverInitError{Kind: opts.Kind, Err: fmt.Errorf("failed to launch browser: %w", err)}
	}

	// Emulation must be part of the context: it cannot be retrofitted once
	// pages have loaded.
	ctxOpts, err := contextOptions(pw, opts)
	if err != nil {
		_ = b.Close()
		_ = pw.Stop()
		return nil, &DriverInitError{Kind: opts.Kind, Err: err}
	}
	bctx, err := b.NewContext(ctxOpts)
	if err != nil {
		_ = b.Close()
		_ = pw.Stop()
		return nil, &DriverInitError{Kind: opts.Kind, Err: fmt.Errorf("failed to create browser context: %w", err)}
	}

	page, err := bctx.NewPage()
	if err != nil {
		_ = b.Close()
		_ = pw.Stop()
		return nil, &DriverInitError{Kind: opts.Kind, Err: fmt.Errorf("failed to open page: %w", err)}
	}

	timeoutMs := float64(opts.NavigationTimeout.Milliseconds())
	page.SetDefaultNavigationTimeout(timeoutMs)
	page.SetDefaultTimeout(timeoutMs)

	return &playwrightSession{
		pw:      pw,
		browser: b,
		page:    page,
		timeout: opts.NavigationTimeout,
	}, nil
}

func launchOptions(opts Options) playwright.BrowserTypeLaunchOptions {
	launch := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	}

	switch opts.Kind {
	case Chrome, Edge:
		launch.Args = []string{
			fmt.Sprintf("--window-size=%d,%d", opts.WindowSize.Width, opts.WindowSize.Height),
			"--disable-gpu",
			"--no-sandbox",
			"--disable-dev-shm-usage",
			"--disable-blink-features=AutomationControlled",
		}
		if opts.Kind == Edge {
			launch.Channel = playwright.String("msedge")
		}
	}

	return launch
}

// remoteBrowsers maps a Kind to the grid's browser capability.
var remoteBrowsers = map[Kind]string{
	Chrome:  "chrome",
	Firefox: "playwright-firefox",
	Edge:    "edge",
}

// remoteEndpoint builds the websocket URL for a remote grid. Credentials and
// the browser name are merged into the JSON "caps" query parameter,
// keeping any capabilities the URL already carries.
func remoteEndpoint(opts Options) (string, error) {
	u, err := url.Parse(opts.Remote.URL)
	if err != nil {
		return "", fmt.Errorf("invalid remote URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("remote URL must use ws or wss, got %q", u.Scheme)
	}

	query := u.Query()
	caps := map[string]any{}
	if raw := query.Get("caps"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &caps); err != nil {
			return "", fmt.Errorf("invalid remote capabilities: %w", err)
		}
	}
	if _, ok := caps["browser"]; !ok {
		caps["browser"] = remoteBrowsers[opts.Kind]
	}
	if opts.Remote.Username != "" {
		caps["browserstack.username"] = opts.Remote.Username
	}
	if opts.Remote.AccessKey != "" {
		caps["browserstack.accessKey"] = opts.Remote.AccessKey
	}

	encoded, err := json.Marshal(caps)
	if err != nil {
		return "", fmt.Errorf("failed to encode remote capabilities: %w", err)
	}
	query.Set("caps", string(encoded))
	u.RawQuery = query.Encode()
	return u.String(), nil
}

// remoteHost is logged instead of the endpoint, which carries credentials.
func remoteHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Host
}

func contextOptions(pw *playwright.Playwright, opts Options) (playwright.BrowserNewContextOptions, error) {
	if !opts.Mobile {
		return playwright.BrowserNewContextOptions{
			Viewport:  &playwright.Size{Width: opts.WindowSize.Width, Height: opts.WindowSize.Height},
			UserAgent: playwright.String(opts.UserAgent),
		}, nil
	}

	device, err := resolveDevice(pw, opts.Device)
	if err != nil {
		return playwright.BrowserNewContextOptions{}, err
	}
	ctxOpts := playwright.BrowserNewContextOptions{
		Viewport:          &playwright.Size{Width: device.Viewport.Width, Height: device.Viewport.Height},
		UserAgent:         playwright.String(device.UserAgent),
		DeviceScaleFactor: playwright.Float(device.ScaleFactor),
		HasTouch:          playwright.Bool(device.HasTouch),
	}
	// Firefox rejects isMobile; viewport, user agent and touch still apply.
	if opts.Kind != Firefox {
		ctxOpts.IsMobile = playwright.Bool(device.IsMobile)
	}
	return ctxOpts, nil
}

// resolveDevice prefers playwright's own descriptor and falls back to the
// built-in profiles. An unknown name is an error.
func resolveDevice(pw *playwright.Playwright, name string) (Device, error) {
	if pw != nil {
		for key, d := range pw.Devices {
			if !strings.EqualFold(key, name) || d == nil || d.Viewport == nil {
				continue
			}
			return Device{
				Name:        key,
				UserAgent:   d.UserAgent,
				Viewport:    Size{Width: d.Viewport.Width, Height: d.Viewport.Height},
				ScaleFactor: d.DeviceScaleFactor,
				IsMobile:    d.IsMobile,
				HasTouch:    d.HasTouch,
			}, nil
		}
	}
	if d, ok := LookupDevice(name); ok {
		return d, nil
	}
	return Device{}, fmt.Errorf("unknown device profile %q", name)
}

type playwrightSession struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page
	timeout time.Duration
}

func (s *playwrightSession) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	resp, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(s.timeout.Milliseconds())),
	})
	if err != nil {
		return wrapTimeout(fmt.Errorf("failed to navigate to %s: %w", url, err))
	}
	if resp != nil && resp.Status() >= 400 {
		return fmt.Errorf("HTTP error: %d %s", resp.Status(), resp.StatusText())
	}
	return nil
}

func (s *playwrightSession) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return wrapTimeout(fmt.Errorf("waiting for %q: %w", selector, err))
	}
	return nil
}

func (s *playwrightSession) FindElements(ctx context.Context, selector string) ([]Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	locators, err := s.page.Locator(selector).All()
	if err != nil {
		return nil, fmt.Errorf("failed to find %q: %w", selector, err)
	}

	elements := make([]Element, 0, len(locators))
	for _, loc := range locators {
		elements = append(elements, &playwrightElement{locator: loc, page: s.page})
	}
	return elements, nil
}

func (s *playwrightSession) Click(ctx context.Context, selector string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.page.Locator(selector).First().Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return wrapTimeout(fmt.Errorf("failed to click %q: %w", selector, err))
	}
	return nil
}

func (s *playwrightSession) CurrentURL() string {
	return s.page.URL()
}

// Close shuts the browser (and with it every context and page) and stops
// the playwright driver process.
func (s *playwrightSession) Close() error {
	var errs []error
	if err := s.browser.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
	}
	if err := s.pw.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
	}
	return errors.Join(errs...)
}

type playwrightElement struct {
	locator playwright.Locator
	page    playwright.Page
}

func (e *playwrightElement) Text() (string, error) {
	return e.locator.InnerText()
}

func (e *playwrightElement) Attribute(name string) (string, error) {
	value, err := e.locator.GetAttribute(name)
	if err != nil {
		return "", err
	}
	if isURLAttribute(name) {
		value = resolveURL(e.page.URL(), value)
	}
	return value, nil
}

func wrapTimeout(err error) error {
	if errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}
