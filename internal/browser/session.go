package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/copyleftdev/scryshot/internal/config"
	"github.com/copyleftdev/scryshot/internal/scenariotypes"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Compile-time check to ensure Manager implements the interface
var _ scenariotypes.SessionManager = (*Manager)(nil)

// Manager launches one Chromium per session through a chromedp exec allocator.
type Manager struct {
	cfg          config.BrowserConfig
	pollInterval time.Duration
	fs           afero.Fs
	logger       *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(cfg *config.Config, fs afero.Fs, logger *zap.Logger) *Manager {
	return &Manager{
		cfg:          cfg.Browser,
		pollInterval: cfg.Readiness.PollInterval,
		fs:           fs,
		logger:       logger.Named("browser"),
		sessions:     make(map[string]*Session),
	}
}

// AllocatorOptions builds the Chromium command line for a session.
func (m *Manager) AllocatorOptions(headless bool) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("mute-audio", true),
		chromedp.IgnoreCertErrors,
	)

	if m.cfg.WindowWidth > 0 && m.cfg.WindowHeight > 0 {
		opts = append(opts, chromedp.WindowSize(m.cfg.WindowWidth, m.cfg.WindowHeight))
	}
	if m.cfg.WebGL {
		// Software GL so canvas scenes render without a GPU.
		opts = append(opts,
			chromedp.Flag("use-angle", "swiftshader"),
			chromedp.Flag("enable-unsafe-swiftshader", true),
			chromedp.Flag("ignore-gpu-blocklist", true),
		)
	} else {
		opts = append(opts, chromedp.Flag("disable-gpu", true))
	}
	if m.cfg.ExecutablePath != "" {
		opts = append(opts, chromedp.ExecPath(m.cfg.ExecutablePath))
	}
	if m.cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(m.cfg.UserDataDir))
	} else {
		opts = append(opts, chromedp.Flag("guest", true))
	}
	for _, arg := range m.cfg.ExtraArgs {
		name, value := ParseFlag(arg)
		if name != "" {
			opts = append(opts, chromedp.Flag(name, value))
		}
	}
	return opts
}

// ParseFlag turns "--name=value" or "--name" into a chromedp flag pair.
func ParseFlag(arg string) (string, interface{}) {
	arg = strings.TrimLeft(strings.TrimSpace(arg), "-")
	if arg == "" {
		return "", nil
	}
	if name, value, ok := strings.Cut(arg, "="); ok {
		return name, value
	}
	return arg, true
}

// Acquire starts a browser and its first tab. The process is forced up with
// an empty Run so launch failures surface here as *LaunchError.
func (m *Manager) Acquire(ctx context.Context, headless bool) (scenariotypes.Session, error) {
	id := uuid.NewString()
	logger := m.logger.With(zap.String("session", id))
	sugar := logger.Sugar()

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, m.AllocatorOptions(headless)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Debugf),
	)

	launchTimeout := m.cfg.LaunchTimeout
	if launchTimeout <= 0 {
		launchTimeout = 30 * time.Second
	}

	errc := make(chan error, 1)
	go func() { errc <- chromedp.Run(browserCtx) }()

	var err error
	timer := time.NewTimer(launchTimeout)
	defer timer.Stop()
	select {
	case err = <-errc:
	case <-timer.C:
		err = fmt.Errorf("browser did not start within %s", launchTimeout)
	}
	if err != nil {
		browserCancel()
		allocCancel()
		logger.Error("Browser launch failed", zap.Error(err))
		return nil, &scenariotypes.LaunchError{Err: err}
	}

	s := &Session{
		id:            id,
		headless:      headless,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
		logger:        logger,
	}
	s.alive.Store(true)
	s.page = &Page{
		session:            s,
		ctx:                browserCtx,
		fs:                 m.fs,
		pollInterval:       m.pollInterval,
		navigationTimeout:  m.cfg.NavigationTimeout,
		interactionTimeout: m.cfg.InteractionTimeout,
		fullPage:           m.cfg.FullPage,
		logger:             logger.Named("page"),
	}

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	logger.Info("Browser session acquired", zap.Bool("headless", headless))
	return s, nil
}

// Release closes the session's browser. It is idempotent and accepts nil or
// sessions it did not create.
func (m *Manager) Release(session scenariotypes.Session) error {
	s, ok := session.(*Session)
	if !ok || s == nil {
		return nil
	}
	m.mu.Lock()
	delete(m.sessions, s.id)
	m.mu.Unlock()
	return s.close()
}

// Shutdown releases every session still open, e.g. on SIGTERM in serve mode.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	open := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		open = append(open, s)
	}
	m.mu.Unlock()

	var errs []error
	for _, s := range open {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		m.logger.Warn("Closing leftover browser session", zap.String("session", s.id))
		if err := m.Release(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ActiveSessions reports how many sessions are still open.
func (m *Manager) ActiveSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Session owns one browser process and its single page.
type Session struct {
	id            string
	headless      bool
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
	page          *Page
	logger        *zap.Logger

	alive     atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func (s *Session) ID() string     { return s.id }
func (s *Session) Headless() bool { return s.headless }

func (s *Session) Alive() bool {
	return s.alive.Load() && s.browserCtx != nil && s.browserCtx.Err() == nil
}

func (s *Session) Page(ctx context.Context) (scenariotypes.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !s.Alive() || s.page == nil {
		return nil, fmt.Errorf("session %s is closed", s.id)
	}
	if c := chromedp.FromContext(s.browserCtx); c == nil || c.Target == nil {
		return nil, fmt.Errorf("session %s has no page target", s.id)
	}
	return s.page, nil
}

func (s *Session) close() error {
	s.closeOnce.Do(func() {
		s.alive.Store(false)
		if s.browserCtx != nil {
			// Graceful close first so Chromium can flush and exit cleanly.
			if err := chromedp.Cancel(s.browserCtx); err != nil && !errors.Is(err, context.Canceled) {
				s.closeErr = fmt.Errorf("failed to close browser: %w", err)
			}
		}
		if s.browserCancel != nil {
			s.browserCancel()
		}
		if s.allocCancel != nil {
			s.allocCancel()
		}
		if s.logger != nil {
			s.logger.Info("Browser session released")
		}
	})
	return s.closeErr
}
