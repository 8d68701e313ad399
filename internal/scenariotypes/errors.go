package scenariotypes

import "fmt"

// LaunchError reports that the browser runtime could not be started.
type LaunchError struct {
	Err error
}

func (e *LaunchError) Error() string { return fmt.Sprintf("browser launch failed: %v", e.Err) }
func (e *LaunchError) Unwrap() error { return e.Err }

// NavigationError reports that the target did not respond or the load event
// did not fire in time.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation to %s failed: %v", e.URL, e.Err)
}
func (e *NavigationError) Unwrap() error { return e.Err }

// InteractionError reports that an interaction target could not be found or used.
type InteractionError struct {
	Selector string
	Action   InteractAction
	Err      error
}

func (e *InteractionError) Error() string {
	return fmt.Sprintf("%s on %q failed: %v", e.Action, e.Selector, e.Err)
}
func (e *InteractionError) Unwrap() error { return e.Err }

// Capture error operations
const (
	CaptureOpCapture = "capture"
	CaptureOpWrite   = "write"
)

// CaptureError reports a screenshot failure. Op is CaptureOpWrite for
// filesystem failures.
type CaptureError struct {
	Path string
	Op   string
	Err  error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("screenshot %s %s failed: %v", e.Op, e.Path, e.Err)
}
func (e *CaptureError) Unwrap() error { return e.Err }
