// Package browser provides browser-automation sessions behind a single
// capability interface. Callers depend on Session and Element only; the
// Factory picks the adapter for the requested browser kind.
package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"
)

// Kind identifies a browser engine.
type Kind string

const (
	Chrome  Kind = "chrome"
	Firefox Kind = "firefox"
	Edge    Kind = "edge"
	// Static fetches pages over plain HTTP and queries the returned HTML.
	// No JavaScript runs, so it only suits server-rendered pages.
	Static Kind = "static"
)

// Kinds lists every supported browser kind.
var Kinds = []Kind{Chrome, Firefox, Edge, Static}

// ParseKind converts a user-supplied browser name to a Kind.
func ParseKind(name string) (Kind, error) {
	kind := Kind(strings.ToLower(strings.TrimSpace(name)))
	if !slices.Contains(Kinds, kind) {
		return "", &UnsupportedBrowserError{Kind: name}
	}
	return kind, nil
}

// Size is a viewport or window size in CSS pixels.
type Size struct {
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Options configure a new session. Emulation settings are fixed when the
// session is created; they cannot be changed on a live session.
type Options struct {
	Kind     Kind
	Headless bool
	Mobile   bool
	// Device names the emulation profile used when Mobile is set.
	Device            string
	WindowSize        Size
	NavigationTimeout time.Duration
	// UserAgent overrides the desktop user agent. Ignored when Mobile is set.
	UserAgent string
	// InstallBrowsers downloads the automation driver and browser binaries
	// before launching.
	InstallBrowsers bool
	// Remote runs chrome, firefox and edge on a remote grid.
	Remote Remote
}

// Remote locates a remote playwright grid such as BrowserStack. Username and
// AccessKey are sent as BrowserStack capabilities.
type Remote struct {
	// URL is the ws or wss endpoint. Empty launches a local browser.
	URL       string
	Username  string
	AccessKey string
}

// Defaults used when Options leave a field unset.
const (
	DefaultDevice            = "iPhone 12 Pro"
	DefaultNavigationTimeout = 30 * time.Second
	DefaultUserAgent         = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
)

// DefaultWindowSize is the desktop window size.
var DefaultWindowSize = Size{Width: 1920, Height: 1080}

func (o Options) withDefaults() Options {
	if o.WindowSize.Width <= 0 || o.WindowSize.Height <= 0 {
		o.WindowSize = DefaultWindowSize
	}
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = DefaultNavigationTimeout
	}
	if o.Device == "" {
		o.Device = DefaultDevice
	}
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	return o
}

// Session is a live browser context. A session drives one navigation at a
// time and must not be shared between goroutines.
type Session interface {
	// Navigate loads url and waits for the DOM to be ready.
	Navigate(ctx context.Context, url string) error
	// WaitFor blocks until selector matches at least one element, or fails
	// with ErrTimeout once timeout elapses.
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error
	// FindElements returns the elements matching selector in document
	// order. No match is not an error.
	FindElements(ctx context.Context, selector string) ([]Element, error)
	// Click clicks the first element matching selector.
	Click(ctx context.Context, selector string, timeout time.Duration) error
	// CurrentURL returns the URL of the loaded page after redirects.
	CurrentURL() string
	// Close releases the session. Calling it more than once is safe.
	Close() error
}

// Element is a node found on the current page.
type Element interface {
	// Text returns the rendered text of the element.
	Text() (string, error)
	// Attribute returns the named attribute, or "" when absent. href and
	// src values are resolved against the page URL.
	Attribute(name string) (string, error)
}

// Errors returned by sessions and the factory.
var (
	ErrUnsupportedBrowser   = errors.New("unsupported browser")
	ErrDriverInitialization = errors.New("driver initialization failed")
	ErrSessionClosed        = errors.New("session closed")
	ErrTimeout              = errors.New("browser operation timed out")
	ErrNoPage               = errors.New("no page loaded")
	ErrNotSupported         = errors.New("operation not supported by this browser")
)

// UnsupportedBrowserError is returned for an unknown browser kind.
type UnsupportedBrowserError struct {
	Kind string
}

func (e *UnsupportedBrowserError) Error() string {
	names := make([]string, len(Kinds))
	for i, k := range Kinds {
		names[i] = string(k)
	}
	return fmt.Sprintf("unsupported browser %q (supported: %s)", e.Kind, strings.Join(names, ", "))
}

func (e *UnsupportedBrowserError) Is(target error) bool { return target == ErrUnsupportedBrowser }

// DriverInitError is returned when the engine for Kind cannot start.
type DriverInitError struct {
	Kind Kind
	Err  error
}

func (e *DriverInitError) Error() string {
	return fmt.Sprintf("failed to start %s driver: %v", e.Kind, e.Err)
}

func (e *DriverInitError) Unwrap() error { return e.Err }

func (e *DriverInitError) Is(target error) bool { return target == ErrDriverInitialization }

// resolveURL resolves ref against base. Unparseable references are returned
// unchanged.
func resolveURL(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || base == "" {
		return ref
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

func isURLAttribute(name string) bool {
	switch strings.ToLower(name) {
	case "href", "src":
		return true
	}
	return false
}
