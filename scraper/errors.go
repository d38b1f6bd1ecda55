package scraper

import (
	"errors"
	"fmt"
	"time"
)

// Errors returned by the extractor. ErrNavigation and ErrPageLoadTimeout
// are fatal to a run; ErrNoMatch only ever ends up inside an
// article.ExtractionError.
var (
	ErrNavigation      = errors.New("listing navigation failed")
	ErrPageLoadTimeout = errors.New("page load timed out")
	ErrNoMatch         = errors.New("no element matched")
)

// NavigationError is returned when the listing page (or feed) cannot be
// loaded.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("failed to load listing %s: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

func (e *NavigationError) Is(target error) bool { return target == ErrNavigation }

// PageLoadTimeoutError is returned when the listing's article elements do
// not appear within the wait timeout.
type PageLoadTimeoutError struct {
	URL     string
	Timeout time.Duration
	Err     error
}

func (e *PageLoadTimeoutError) Error() string {
	return fmt.Sprintf("listing %s not ready after %v: %v", e.URL, e.Timeout, e.Err)
}

func (e *PageLoadTimeoutError) Unwrap() error { return e.Err }

func (e *PageLoadTimeoutError) Is(target error) bool { return target == ErrPageLoadTimeout }
