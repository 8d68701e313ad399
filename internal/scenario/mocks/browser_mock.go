package mocks

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/copyleftdev/scryshot/internal/scenariotypes"
	"github.com/spf13/afero"
)

var (
	_ scenariotypes.SessionManager = (*MockSessionManager)(nil)
	_ scenariotypes.Page           = (*MockPage)(nil)
	_ scenariotypes.DOMSnapshotter = (*MockPage)(nil)
)

// MockSessionManager counts acquisitions and releases and hands out one
// MockPage per session.
type MockSessionManager struct {
	mu         sync.Mutex
	acquireErr error
	pageErr    error
	newPage    func() *MockPage
	acquired   int
	released   int
	sessions   []*MockSession
}

// NewMockSessionManager creates a manager whose sessions use pages built by
// newPage. A nil newPage yields empty pages on an in-memory filesystem.
func NewMockSessionManager(newPage func() *MockPage) *MockSessionManager {
	if newPage == nil {
		newPage = func() *MockPage { return NewMockPage(afero.NewMemMapFs()) }
	}
	return &MockSessionManager{newPage: newPage}
}

func (m *MockSessionManager) SetAcquireError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acquireErr = err
}

// SetPageError makes Session.Page fail, simulating an unusable page handle.
func (m *MockSessionManager) SetPageError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pageErr = err
}

func (m *MockSessionManager) Acquire(ctx context.Context, headless bool) (scenariotypes.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.acquireErr != nil {
		return nil, &scenariotypes.LaunchError{Err: m.acquireErr}
	}
	m.acquired++
	s := &MockSession{headless: headless, page: m.newPage(), pageErr: m.pageErr}
	s.alive = true
	m.sessions = append(m.sessions, s)
	return s, nil
}

func (m *MockSessionManager) Release(session scenariotypes.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.released++
	if s, ok := session.(*MockSession); ok && s != nil {
		s.mu.Lock()
		s.alive = false
		s.mu.Unlock()
		s.page.Close()
	}
	return nil
}

func (m *MockSessionManager) Acquired() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acquired
}

func (m *MockSessionManager) Released() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.released
}

// LastPage returns the page of the most recent session.
func (m *MockSessionManager) LastPage() *MockPage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sessions) == 0 {
		return nil
	}
	return m.sessions[len(m.sessions)-1].page
}

type MockSession struct {
	mu       sync.Mutex
	headless bool
	alive    bool
	page     *MockPage
	pageErr  error
}

func (s *MockSession) Page(ctx context.Context) (scenariotypes.Page, error) {
	if s.pageErr != nil {
		return nil, s.pageErr
	}
	if !s.Alive() {
		return nil, errors.New("session closed")
	}
	return s.page, nil
}

func (s *MockSession) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alive
}

func (s *MockSession) Headless() bool { return s.headless }

// MockPage is an in-memory application: a set of present elements and
// texts, clickable controls with side effects, and screenshots written as
// text describing the visible state.
type MockPage struct {
	mu               sync.Mutex
	fs               afero.Fs
	url              string
	closed           bool
	elements         map[string]bool
	texts            []string
	controls         map[string]func(p *MockPage)
	navErr           error
	dieOnNavErr      bool
	captureErr       error
	panicOn          scenariotypes.StepKind
	calls            []string
	accessAfterClose bool
}

func NewMockPage(fs afero.Fs) *MockPage {
	return &MockPage{
		fs:       fs,
		elements: make(map[string]bool),
		controls: make(map[string]func(p *MockPage)),
	}
}

// WithElement marks selector as present.
func (p *MockPage) WithElement(selector string) *MockPage {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elements[selector] = true
	return p
}

// WithText adds visible text.
func (p *MockPage) WithText(text string) *MockPage {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.texts = append(p.texts, text)
	return p
}

// WithControl registers a clickable selector and what clicking it reveals.
func (p *MockPage) WithControl(selector string, reveals ...string) *MockPage {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.controls[selector] = func(mp *MockPage) {
		mp.texts = append(mp.texts, reveals...)
	}
	return p
}

// WithNavigateError makes every navigation fail; dead also closes the page.
func (p *MockPage) WithNavigateError(err error, dead bool) *MockPage {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navErr = err
	p.dieOnNavErr = dead
	return p
}

func (p *MockPage) WithCaptureError(err error) *MockPage {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.captureErr = err
	return p
}

// WithPanic makes the operation backing the given step kind panic.
func (p *MockPage) WithPanic(kind scenariotypes.StepKind) *MockPage {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.panicOn = kind
	return p
}

func (p *MockPage) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
}

// Calls lists the operations performed, in order.
func (p *MockPage) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// UsedAfterClose reports whether any operation ran on a closed page.
func (p *MockPage) UsedAfterClose() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.accessAfterClose
}

func (p *MockPage) record(call string, kind scenariotypes.StepKind) {
	p.calls = append(p.calls, call)
	if p.closed {
		p.accessAfterClose = true
	}
	if p.panicOn == kind {
		panic(fmt.Sprintf("mock page: %s exploded", call))
	}
}

func (p *MockPage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("navigate "+url, scenariotypes.StepNavigate)

	if p.navErr != nil {
		if p.dieOnNavErr {
			p.closed = true
		}
		return &scenariotypes.NavigationError{URL: url, Err: p.navErr}
	}
	p.url = url
	return nil
}

func (p *MockPage) WaitFor(ctx context.Context, cond scenariotypes.Condition) (scenariotypes.Outcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("wait "+cond.String(), scenariotypes.StepAwait)

	if p.closed {
		return scenariotypes.OutcomeTimedOut, errors.New("page closed")
	}
	switch cond.Kind {
	case scenariotypes.ConditionElement:
		if p.elements[cond.Selector] {
			return scenariotypes.OutcomeSatisfied, nil
		}
	case scenariotypes.ConditionText:
		for _, text := range p.texts {
			if strings.Contains(strings.ToLower(text), strings.ToLower(cond.Text)) {
				return scenariotypes.OutcomeSatisfied, nil
			}
		}
	}
	return scenariotypes.OutcomeTimedOut, nil
}

func (p *MockPage) Click(ctx context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("click "+selector, scenariotypes.StepInteract)

	effect, ok := p.controls[selector]
	if !ok {
		return &scenariotypes.InteractionError{
			Selector: selector,
			Action:   scenariotypes.ActionClick,
			Err:      errors.New("no matching element"),
		}
	}
	effect(p)
	return nil
}

// Screenshot writes a textual rendering of the visible state to path.
func (p *MockPage) Screenshot(ctx context.Context, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("capture "+path, scenariotypes.StepCapture)

	if p.captureErr != nil {
		return &scenariotypes.CaptureError{Path: path, Op: scenariotypes.CaptureOpWrite, Err: p.captureErr}
	}
	if err := p.write(path, p.renderLocked()); err != nil {
		return &scenariotypes.CaptureError{Path: path, Op: scenariotypes.CaptureOpWrite, Err: err}
	}
	return nil
}

func (p *MockPage) SaveDOM(ctx context.Context, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, "dom "+path)
	return p.write(path, "<html>"+strings.Join(p.texts, " ")+"</html>")
}

func (p *MockPage) write(path, content string) error {
	if err := p.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return afero.WriteFile(p.fs, path, []byte(content), 0o644)
}

// Render describes what a screenshot taken now would show.
func (p *MockPage) Render() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.renderLocked()
}

func (p *MockPage) renderLocked() string {
	return fmt.Sprintf("url=%s texts=%s", p.url, strings.Join(p.texts, "|"))
}

func (p *MockPage) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *MockPage) Live() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.closed
}
