package browser

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pevans/opinions/logger"
)

// Launcher starts a session for one browser kind.
type Launcher interface {
	Launch(ctx context.Context, opts Options) (Session, error)
}

// LauncherFunc adapts a function to Launcher.
type LauncherFunc func(ctx context.Context, opts Options) (Session, error)

func (f LauncherFunc) Launch(ctx context.Context, opts Options) (Session, error) {
	return f(ctx, opts)
}

// Factory produces configured sessions.
type Factory struct {
	launchers map[Kind]Launcher
	log       logger.Logger
}

// NewFactory creates a factory with the playwright launcher registered for
// chrome, firefox and edge, and the HTTP launcher for static.
func NewFactory(log logger.Logger) *Factory {
	if log == nil {
		log = logger.NewNop()
	}

	f := &Factory{
		launchers: make(map[Kind]Launcher),
		log:       log,
	}

	pw := NewPlaywrightLauncher(log)
	f.Register(Chrome, pw)
	f.Register(Firefox, pw)
	f.Register(Edge, pw)
	f.Register(Static, NewStaticLauncher())

	return f
}

// Register installs (or replaces) the launcher for kind.
func (f *Factory) Register(kind Kind, l Launcher) {
	f.launchers[kind] = l
}

// Acquire starts a session. It never returns a nil session without an
// error: an unknown kind yields *UnsupportedBrowserError and any launch
// failure yields *DriverInitError. The caller owns the session and must
// Close it.
func (f *Factory) Acquire(ctx context.Context, opts Options) (Session, error) {
	launcher, ok := f.launchers[opts.Kind]
	if !ok {
		return nil, &UnsupportedBrowserError{Kind: string(opts.Kind)}
	}

	opts = opts.withDefaults()
	f.log.Info("Starting browser session",
		logger.String("browser", string(opts.Kind)),
		logger.Bool("headless", opts.Headless),
		logger.Bool("mobile", opts.Mobile),
	)

	if err := ctx.Err(); err != nil {
		return nil, &DriverInitError{Kind: opts.Kind, Err: err}
	}

	session, err := launcher.Launch(ctx, opts)
	if err != nil {
		var initErr *DriverInitError
		if errors.As(err, &initErr) {
			return nil, err
		}
		return nil, &DriverInitError{Kind: opts.Kind, Err: err}
	}
	if session == nil {
		return nil, &DriverInitError{Kind: opts.Kind, Err: errors.New("launcher returned no session")}
	}

	f.log.Info("Browser session started", logger.String("browser", string(opts.Kind)))
	return &managedSession{inner: session, kind: opts.Kind, log: f.log}, nil
}

// managedSession enforces the session lifecycle: the engine is released
// exactly once and a closed session rejects every further call.
type managedSession struct {
	mu       sync.Mutex
	inner    Session
	kind     Kind
	log      logger.Logger
	closed   bool
	closeErr error
}

func (s *managedSession) live() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	return nil
}

func (s *managedSession) Navigate(ctx context.Context, url string) error {
	if err := s.live(); err != nil {
		return err
	}
	return s.inner.Navigate(ctx, url)
}

func (s *managedSession) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	if err := s.live(); err != nil {
		return err
	}
	return s.inner.WaitFor(ctx, selector, timeout)
}

func (s *managedSession) FindElements(ctx context.Context, selector string) ([]Element, error) {
	if err := s.live(); err != nil {
		return nil, err
	}
	return s.inner.FindElements(ctx, selector)
}

func (s *managedSession) Click(ctx context.Context, selector string, timeout time.Duration) error {
	if err := s.live(); err != nil {
		return err
	}
	return s.inner.Click(ctx, selector, timeout)
}

func (s *managedSession) CurrentURL() string {
	if s.live() != nil {
		return ""
	}
	return s.inner.CurrentURL()
}

func (s *managedSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return s.closeErr
	}
	s.closed = true
	s.closeErr = s.inner.Close()
	if s.closeErr != nil {
		s.log.Error("Failed to close browser session", logger.String("browser", string(s.kind)), logger.Error(s.closeErr))
	} else {
		s.log.Info("Browser session closed", logger.String("browser", string(s.kind)))
	}
	return s.closeErr
}
