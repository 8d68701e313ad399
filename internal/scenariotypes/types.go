package scenariotypes

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Condition kinds
type ConditionKind string

const (
	ConditionElement ConditionKind = "element"
	ConditionText    ConditionKind = "text"
)

// Condition is a declarative readiness predicate over a page plus its bounds.
// A zero Timeout means "use the configured default". A nil Settle means
// "use the configured default settle"; an explicit zero disables settling.
type Condition struct {
	Kind     ConditionKind  `json:"kind"`
	Selector string         `json:"selector,omitempty"`
	Text     string         `json:"text,omitempty"`
	Timeout  time.Duration  `json:"timeout,omitempty"`
	Settle   *time.Duration `json:"settle,omitempty"`
}

// ElementPresent builds a condition satisfied once selector matches a node.
func ElementPresent(selector string, timeout time.Duration) Condition {
	return Condition{Kind: ConditionElement, Selector: selector, Timeout: timeout}
}

// TextPresent builds a condition satisfied once text appears in the document.
func TextPresent(text string, timeout time.Duration) Condition {
	return Condition{Kind: ConditionText, Text: text, Timeout: timeout}
}

// WithSettle returns a copy of c with an explicit settle delay.
func (c Condition) WithSettle(d time.Duration) Condition {
	c.Settle = &d
	return c
}

func (c Condition) Validate() error {
	switch c.Kind {
	case ConditionElement:
		if strings.TrimSpace(c.Selector) == "" {
			return fmt.Errorf("element condition requires a selector")
		}
	case ConditionText:
		if strings.TrimSpace(c.Text) == "" {
			return fmt.Errorf("text condition requires non-empty text")
		}
	default:
		return fmt.Errorf("unknown condition kind: %q", c.Kind)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("condition timeout cannot be negative")
	}
	if c.Settle != nil && *c.Settle < 0 {
		return fmt.Errorf("condition settle cannot be negative")
	}
	return nil
}

func (c Condition) String() string {
	if c.Kind == ConditionText {
		return fmt.Sprintf("text %q", c.Text)
	}
	return fmt.Sprintf("element %q", c.Selector)
}

// Outcome of a readiness wait. A timeout is an outcome, not an error.
type Outcome string

const (
	OutcomeSatisfied Outcome = "satisfied"
	OutcomeTimedOut  Outcome = "timed_out"
)

// Step kinds
type StepKind string

const (
	StepNavigate StepKind = "navigate"
	StepAwait    StepKind = "await"
	StepInteract StepKind = "interact"
	StepCapture  StepKind = "capture"
)

// Interaction actions
type InteractAction string

const (
	ActionClick InteractAction = "click"
)

// Step is one element of a scenario. Only the payload fields matching Kind
// are meaningful.
type Step struct {
	Kind      StepKind       `json:"kind"`
	URL       string         `json:"url,omitempty"`
	Timeout   time.Duration  `json:"timeout,omitempty"`
	Condition *Condition     `json:"condition,omitempty"`
	Selector  string         `json:"selector,omitempty"`
	Action    InteractAction `json:"action,omitempty"`
	Path      string         `json:"path,omitempty"`
}

func Navigate(url string) Step {
	return Step{Kind: StepNavigate, URL: url}
}

func Await(cond Condition) Step {
	return Step{Kind: StepAwait, Condition: &cond}
}

func Click(selector string) Step {
	return Step{Kind: StepInteract, Selector: selector, Action: ActionClick}
}

func Capture(path string) Step {
	return Step{Kind: StepCapture, Path: path}
}

func (s Step) Validate() error {
	switch s.Kind {
	case StepNavigate:
		if s.URL == "" {
			return fmt.Errorf("navigate step requires a URL")
		}
		if s.Timeout < 0 {
			return fmt.Errorf("navigate timeout cannot be negative")
		}
	case StepAwait:
		if s.Condition == nil {
			return fmt.Errorf("await step requires a condition")
		}
		return s.Condition.Validate()
	case StepInteract:
		if s.Selector == "" {
			return fmt.Errorf("interact step requires a selector")
		}
		if s.Action != ActionClick {
			return fmt.Errorf("unsupported interaction: %q", s.Action)
		}
	case StepCapture:
		if s.Path == "" {
			return fmt.Errorf("capture step requires an output path")
		}
	default:
		return fmt.Errorf("unknown step kind: %q", s.Kind)
	}
	return nil
}

func (s Step) String() string {
	switch s.Kind {
	case StepNavigate:
		return "navigate " + s.URL
	case StepAwait:
		if s.Condition != nil {
			return "await " + s.Condition.String()
		}
	case StepInteract:
		return fmt.Sprintf("%s %q", s.Action, s.Selector)
	case StepCapture:
		return "capture " + s.Path
	}
	return string(s.Kind)
}

// Scenario is a named, ordered sequence of steps.
type Scenario struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Headless    *bool  `json:"headless,omitempty"`
	Steps       []Step `json:"steps"`
}

// Validate checks every step and rejects page steps that would run before the
// first navigation.
func (s Scenario) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("scenario name cannot be empty")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("scenario %s has no steps", s.Name)
	}
	navigated := false
	for i, step := range s.Steps {
		if err := step.Validate(); err != nil {
			return fmt.Errorf("scenario %s step %d: %w", s.Name, i+1, err)
		}
		if step.Kind == StepNavigate {
			navigated = true
		} else if !navigated {
			return fmt.Errorf("scenario %s step %d: %s before any navigation", s.Name, i+1, step.Kind)
		}
	}
	return nil
}

// Run status constants
type Status string

const (
	StatusSucceeded       Status = "succeeded"
	StatusPartiallyFailed Status = "partially_failed"
	StatusFailed          Status = "failed"
)

// ExitCode maps a status onto a process exit code.
func (s Status) ExitCode() int {
	switch s {
	case StatusSucceeded:
		return 0
	case StatusPartiallyFailed:
		return 1
	default:
		return 2
	}
}

// Worse returns the more severe of two statuses.
func (s Status) Worse(other Status) Status {
	if other.ExitCode() > s.ExitCode() {
		return other
	}
	return s
}

// Step status constants
type StepStatus string

const (
	StepOK       StepStatus = "ok"
	StepTimedOut StepStatus = "timed_out"
	StepFailed   StepStatus = "failed"
	StepSkipped  StepStatus = "skipped"
)

// Runner states
type State string

const (
	StateIdle            State = "idle"
	StateSessionAcquired State = "session_acquired"
	StateNavigated       State = "navigated"
	StateInteracting     State = "interacting"
	StateReady           State = "ready"
	StateTimedOut        State = "timed_out"
	StateCaptured        State = "captured"
	StateReported        State = "reported"
	StateClosed          State = "closed"
)

type StepResult struct {
	Index    int           `json:"index"`
	Step     Step          `json:"step"`
	Status   StepStatus    `json:"status"`
	Outcome  Outcome       `json:"outcome,omitempty"`
	Error    string        `json:"error,omitempty"`
	Path     string        `json:"path,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Result is the outcome record of one scenario run.
type Result struct {
	RunID      uuid.UUID    `json:"run_id"`
	Scenario   string       `json:"scenario"`
	Status     Status       `json:"status"`
	Steps      []StepResult `json:"steps"`
	Captures   []string     `json:"captures,omitempty"`
	Error      string       `json:"error,omitempty"`
	States     []State      `json:"states"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
}

func NewResult(sc Scenario) *Result {
	res := &Result{
		RunID:     uuid.New(),
		Scenario:  sc.Name,
		Steps:     make([]StepResult, len(sc.Steps)),
		StartedAt: time.Now().UTC(),
	}
	for i, step := range sc.Steps {
		res.Steps[i] = StepResult{Index: i, Step: step, Status: StepSkipped}
	}
	return res
}

// Degraded returns every step that did not complete ok.
func (r *Result) Degraded() []StepResult {
	var out []StepResult
	for _, sr := range r.Steps {
		if sr.Status != StepOK {
			out = append(out, sr)
		}
	}
	return out
}

// Duration of the whole run.
func (r *Result) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
