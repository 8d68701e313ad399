package scenariotypes

import (
	"context"
	"time"
)

// SessionManager acquires and releases browser sessions.
// Release must be idempotent and must not fail on a session whose
// acquisition or use already failed.
type SessionManager interface {
	Acquire(ctx context.Context, headless bool) (Session, error)
	Release(session Session) error
}

// Session is an owned handle to one browser process/context.
type Session interface {
	// Page returns the session's single navigable page.
	Page(ctx context.Context) (Page, error)
	Alive() bool
	Headless() bool
}

// Page drives one browsing context. It never outlives its Session.
type Page interface {
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	// WaitFor performs the structural wait only. A timeout yields
	// OutcomeTimedOut and a nil error.
	WaitFor(ctx context.Context, cond Condition) (Outcome, error)
	Click(ctx context.Context, selector string) error
	Screenshot(ctx context.Context, path string) error
	URL() string
	Live() bool
}

// DOMSnapshotter is implemented by pages that can persist a DOM snapshot
// next to a screenshot.
type DOMSnapshotter interface {
	SaveDOM(ctx context.Context, path string) error
}
