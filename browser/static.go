package browser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

// StaticLauncher creates sessions that fetch pages over HTTP and query the
// HTML with goquery.
type StaticLauncher struct {
	// Client is used as the base HTTP client when set; tests point it at
	// httptest servers.
	Client *resty.Client
}

// NewStaticLauncher creates a launcher with a fresh resty client per
// session.
func NewStaticLauncher() *StaticLauncher {
	return &StaticLauncher{}
}

// Launch creates a static session. Mobile emulation is limited to the device
// user agent, which is enough for sites that serve a different mobile
// layout.
func (l *StaticLauncher) Launch(_ context.Context, opts Options) (Session, error) {
	client := l.Client
	if client == nil {
		client = resty.New()
	}

	userAgent := opts.UserAgent
	if opts.Mobile {
		device, ok := LookupDevice(opts.Device)
		if !ok {
			return nil, fmt.Errorf("unknown device profile %q", opts.Device)
		}
		userAgent = device.UserAgent
	}

	client.
		SetTimeout(opts.NavigationTimeout).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml").
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))

	return &staticSession{client: client}, nil
}

type staticSession struct {
	client *resty.Client
	doc    *goquery.Document
	url    string
}

func (s *staticSession) Navigate(ctx context.Context, url string) error {
	resp, err := s.client.R().SetContext(ctx).Get(url)
	if err != nil {
		var netErr net.Error
		if ctx.Err() == nil && errors.As(err, &netErr) && netErr.Timeout() {
			return fmt.Errorf("%w: failed to fetch %s: %w", ErrTimeout, url, err)
		}
		return fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	if resp.IsError() {
		return fmt.Errorf("HTTP error: %s", resp.Status())
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err != nil {
		return fmt.Errorf("failed to parse HTML: %w", err)
	}

	s.doc = doc
	s.url = url
	if raw := resp.RawResponse; raw != nil && raw.Request != nil && raw.Request.URL != nil {
		s.url = raw.Request.URL.String()
	}
	return nil
}

// WaitFor checks the loaded document once. Nothing renders after load, so
// a missing element is reported as a timeout straight away.
func (s *staticSession) WaitFor(ctx context.Context, selector string, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.doc == nil {
		return ErrNoPage
	}
	if s.doc.Find(selector).Length() == 0 {
		return fmt.Errorf("%w: no element matches %q", ErrTimeout, selector)
	}
	return nil
}

func (s *staticSession) FindElements(ctx context.Context, selector string) ([]Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.doc == nil {
		return nil, ErrNoPage
	}

	var elements []Element
	s.doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		elements = append(elements, &staticElement{sel: sel, base: s.url})
	})
	return elements, nil
}

func (s *staticSession) Click(context.Context, string, time.Duration) error {
	return fmt.Errorf("click: %w", ErrNotSupported)
}

func (s *staticSession) CurrentURL() string {
	return s.url
}

func (s *staticSession) Close() error {
	s.doc = nil
	return nil
}

type staticElement struct {
	sel  *goquery.Selection
	base string
}

func (e *staticElement) Text() (string, error) {
	return strings.TrimSpace(e.sel.Text()), nil
}

func (e *staticElement) Attribute(name string) (string, error) {
	value, ok := e.sel.Attr(name)
	if !ok {
		return "", nil
	}
	if isURLAttribute(name) {
		value = resolveURL(e.base, value)
	}
	return value, nil
}
