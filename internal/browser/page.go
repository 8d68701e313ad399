package browser

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/copyleftdev/scryshot/internal/dom"
	"github.com/copyleftdev/scryshot/internal/readiness"
	"github.com/copyleftdev/scryshot/internal/scenariotypes"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

var (
	_ scenariotypes.Page           = (*Page)(nil)
	_ scenariotypes.DOMSnapshotter = (*Page)(nil)
)

var errPageClosed = errors.New("page is closed")

const (
	defaultNavigationTimeout  = 30 * time.Second
	defaultInteractionTimeout = 5 * time.Second
)

// Page drives the session's tab. All operations run on the tab's chromedp
// context and are also cancelled when the caller's context ends.
type Page struct {
	session            *Session
	ctx                context.Context
	fs                 afero.Fs
	pollInterval       time.Duration
	navigationTimeout  time.Duration
	interactionTimeout time.Duration
	fullPage           bool
	logger             *zap.Logger

	mu  sync.Mutex
	url string
}

func (p *Page) Live() bool {
	return p.ctx.Err() == nil && (p.session == nil || p.session.Alive())
}

// URL returns the last URL observed after navigation.
func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

// linked derives a context from the tab context that also ends with parent.
func (p *Page) linked(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	var ctx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(p.ctx, timeout)
	} else {
		ctx, cancel = context.WithCancel(p.ctx)
	}
	stop := context.AfterFunc(parent, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (p *Page) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = p.navigationTimeout
	}
	if timeout <= 0 {
		timeout = defaultNavigationTimeout
	}
	if !p.Live() {
		return &scenariotypes.NavigationError{URL: url, Err: errPageClosed}
	}

	runCtx, cancel := p.linked(ctx, timeout)
	defer cancel()

	var location string
	if err := chromedp.Run(runCtx, chromedp.Navigate(url), chromedp.Location(&location)); err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			err = fmt.Errorf("load event not fired within %s: %w", timeout, err)
		}
		return &scenariotypes.NavigationError{URL: url, Err: err}
	}

	p.mu.Lock()
	p.url = location
	p.mu.Unlock()
	return nil
}

func (p *Page) WaitFor(ctx context.Context, cond scenariotypes.Condition) (scenariotypes.Outcome, error) {
	if err := cond.Validate(); err != nil {
		return scenariotypes.OutcomeTimedOut, err
	}
	if !p.Live() {
		return scenariotypes.OutcomeTimedOut, errPageClosed
	}

	var check func(ctx context.Context) (bool, error)
	switch cond.Kind {
	case scenariotypes.ConditionElement:
		q, err := ParseSelector(cond.Selector)
		if err != nil {
			return scenariotypes.OutcomeTimedOut, err
		}
		check = func(ctx context.Context) (bool, error) {
			var present bool
			if err := chromedp.Run(ctx, dom.IsElementPresentAction(q.Value, q.By(), &present)); err != nil {
				return false, p.checkErr(err)
			}
			return present, nil
		}
	case scenariotypes.ConditionText:
		check = func(ctx context.Context) (bool, error) {
			var rendered string
			if err := chromedp.Run(ctx, dom.GetTextContentAction(&rendered)); err != nil {
				return false, p.checkErr(err)
			}
			return dom.MatchText(rendered, cond.Text), nil
		}
	}

	runCtx, cancel := p.linked(ctx, 0)
	defer cancel()

	outcome, err := readiness.Poll(runCtx, cond.Timeout, p.pollInterval, check)
	if err != nil && ctx.Err() == nil && !p.Live() {
		err = errPageClosed
	}
	return outcome, err
}

// checkErr hides transient evaluation errors (document mid-navigation) while
// the tab is alive.
func (p *Page) checkErr(err error) error {
	if !p.Live() {
		return errPageClosed
	}
	p.logger.Debug("Readiness check failed, retrying", zap.Error(err))
	return nil
}

func (p *Page) Click(ctx context.Context, selector string) error {
	q, err := ParseSelector(selector)
	if err != nil {
		return &scenariotypes.InteractionError{Selector: selector, Action: scenariotypes.ActionClick, Err: err}
	}
	if !p.Live() {
		return &scenariotypes.InteractionError{Selector: selector, Action: scenariotypes.ActionClick, Err: errPageClosed}
	}

	timeout := p.interactionTimeout
	if timeout <= 0 {
		timeout = defaultInteractionTimeout
	}
	runCtx, cancel := p.linked(ctx, timeout)
	defer cancel()

	err = chromedp.Run(runCtx,
		chromedp.WaitVisible(q.Value, q.By()),
		chromedp.Click(q.Value, q.By(), chromedp.NodeVisible),
	)
	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			err = fmt.Errorf("no visible element within %s", timeout)
		}
		return &scenariotypes.InteractionError{Selector: selector, Action: scenariotypes.ActionClick, Err: err}
	}
	return nil
}

// Screenshot captures the viewport (or full page) as PNG and writes it to
// path, creating parent directories. A page that never became ready is
// still captured.
func (p *Page) Screenshot(ctx context.Context, path string) error {
	if !p.Live() {
		return &scenariotypes.CaptureError{Path: path, Op: scenariotypes.CaptureOpCapture, Err: errPageClosed}
	}

	runCtx, cancel := p.linked(ctx, p.captureTimeout())
	defer cancel()

	var buf []byte
	var action chromedp.Action = chromedp.CaptureScreenshot(&buf)
	if p.fullPage {
		action = chromedp.FullScreenshot(&buf, 100)
	}
	if err := chromedp.Run(runCtx, action); err != nil {
		return &scenariotypes.CaptureError{Path: path, Op: scenariotypes.CaptureOpCapture, Err: err}
	}

	if err := writeFile(p.fs, path, buf); err != nil {
		return &scenariotypes.CaptureError{Path: path, Op: scenariotypes.CaptureOpWrite, Err: err}
	}
	p.logger.Debug("Screenshot written", zap.String("path", path), zap.Int("bytes", len(buf)))
	return nil
}

// SaveDOM writes a simplified HTML snapshot of the current document.
func (p *Page) SaveDOM(ctx context.Context, path string) error {
	if !p.Live() {
		return errPageClosed
	}
	runCtx, cancel := p.linked(ctx, p.captureTimeout())
	defer cancel()

	var html string
	if err := chromedp.Run(runCtx, dom.GetFullHTMLAction(&html)); err != nil {
		return fmt.Errorf("failed to read document: %w", err)
	}
	simplified, err := dom.GetSimplifiedDOM(html)
	if err != nil {
		return fmt.Errorf("failed to simplify document: %w", err)
	}
	return writeFile(p.fs, path, []byte(simplified))
}

func (p *Page) captureTimeout() time.Duration {
	if p.navigationTimeout > 0 {
		return p.navigationTimeout
	}
	return defaultNavigationTimeout
}

// writeFile overwrites path, creating its parent directories.
func writeFile(fs afero.Fs, path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return afero.WriteFile(fs, path, data, 0o644)
}
