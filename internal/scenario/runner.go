package scenario

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/copyleftdev/scryshot/internal/config"
	"github.com/copyleftdev/scryshot/internal/readiness"
	"github.com/copyleftdev/scryshot/internal/scenariotypes"
	"go.uber.org/zap"
)

// Options control how scenario steps are resolved.
type Options struct {
	BaseURL           string
	OutputDir         string
	Headless          bool
	NavigationTimeout time.Duration
	DOMSnapshots      bool
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		BaseURL:           cfg.Target.BaseURL,
		OutputDir:         cfg.Output.Dir,
		Headless:          cfg.Browser.Headless,
		NavigationTimeout: cfg.Browser.NavigationTimeout,
		DOMSnapshots:      cfg.Output.DOMSnapshots,
	}
}

// Runner executes scenarios one step at a time inside a session it owns.
type Runner struct {
	sessions scenariotypes.SessionManager
	detector *readiness.Detector
	opts     Options
	logger   *zap.Logger
}

func NewRunner(sessions scenariotypes.SessionManager, detector *readiness.Detector, opts Options, logger *zap.Logger) *Runner {
	return &Runner{
		sessions: sessions,
		detector: detector,
		opts:     opts,
		logger:   logger.Named("runner"),
	}
}

// Run executes sc and always returns a result. The session is released
// exactly once on every path, after the result has been reported.
func (r *Runner) Run(ctx context.Context, sc scenariotypes.Scenario) *scenariotypes.Result {
	res := scenariotypes.NewResult(sc)
	ex := &execution{
		runner: r,
		res:    res,
		logger: r.logger.With(zap.String("scenario", sc.Name), zap.String("run_id", res.RunID.String())),
	}
	ex.transition(scenariotypes.StateIdle)

	if err := sc.Validate(); err != nil {
		res.Error = err.Error()
		ex.report(scenariotypes.StatusFailed)
		ex.transition(scenariotypes.StateClosed)
		return res
	}

	headless := r.opts.Headless
	if sc.Headless != nil {
		headless = *sc.Headless
	}

	ex.logger.Info("Starting scenario", zap.Int("steps", len(sc.Steps)), zap.Bool("headless", headless))
	session, err := r.sessions.Acquire(ctx, headless)
	if err != nil {
		res.Error = err.Error()
		ex.logger.Error("Could not acquire browser session", zap.Error(err))
		ex.report(scenariotypes.StatusFailed)
		ex.transition(scenariotypes.StateClosed)
		return res
	}

	released := false
	release := func() {
		if released {
			return
		}
		released = true
		if err := r.sessions.Release(session); err != nil {
			ex.logger.Warn("Browser session release reported an error", zap.Error(err))
		}
		ex.transition(scenariotypes.StateClosed)
	}
	defer release()
	ex.transition(scenariotypes.StateSessionAcquired)

	page, err := session.Page(ctx)
	if err != nil {
		res.Error = fmt.Sprintf("page handle unavailable: %v", err)
		ex.logger.Error("Could not obtain a page", zap.Error(err))
		ex.report(scenariotypes.StatusFailed)
		release()
		return res
	}
	ex.page = page

	for i := range res.Steps {
		ex.runStep(ctx, i)
	}

	ex.report(ex.finalStatus())
	release()
	return res
}

// ResolveURL resolves relative navigation targets against the base URL.
func (r *Runner) ResolveURL(raw string) string {
	target, err := url.Parse(raw)
	if err != nil || target.IsAbs() || r.opts.BaseURL == "" {
		return raw
	}
	base, err := url.Parse(r.opts.BaseURL)
	if err != nil {
		return raw
	}
	return base.ResolveReference(target).String()
}

// ResolvePath places relative capture paths under the output directory.
func (r *Runner) ResolvePath(path string) string {
	if filepath.IsAbs(path) || r.opts.OutputDir == "" {
		return path
	}
	return filepath.Join(r.opts.OutputDir, path)
}

// execution is the mutable state of one Run.
type execution struct {
	runner *Runner
	res    *scenariotypes.Result
	page   scenariotypes.Page
	logger *zap.Logger

	navigated       bool
	navFailed       bool
	diagnosticTaken bool
	pageLost        bool
}

func (ex *execution) transition(s scenariotypes.State) {
	ex.res.States = append(ex.res.States, s)
	ex.logger.Debug("State transition", zap.String("state", string(s)))
}

func (ex *execution) runStep(ctx context.Context, i int) {
	sr := &ex.res.Steps[i]
	step := sr.Step
	logger := ex.logger.With(zap.Int("step", i+1), zap.String("kind", string(step.Kind)))
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			sr.Status = scenariotypes.StepFailed
			sr.Error = fmt.Sprintf("panic: %v", rec)
			logger.Error("Step panicked", zap.Any("panic", rec))
			if !ex.page.Live() {
				ex.pageLost = true
			}
		}
		sr.Duration = time.Since(start)
	}()

	if reason := ex.skipReason(ctx, step); reason != "" {
		sr.Status = scenariotypes.StepSkipped
		sr.Error = reason
		logger.Info("Skipping step", zap.Stringer("step", step), zap.String("reason", reason))
		return
	}

	switch step.Kind {
	case scenariotypes.StepNavigate:
		ex.navigate(ctx, sr, logger)
	case scenariotypes.StepAwait:
		ex.await(ctx, sr, logger)
	case scenariotypes.StepInteract:
		ex.interact(ctx, sr, logger)
	case scenariotypes.StepCapture:
		ex.capture(ctx, sr, logger)
	}
}

// skipReason returns why a step cannot run, or "" when it should run.
func (ex *execution) skipReason(ctx context.Context, step scenariotypes.Step) string {
	if err := ctx.Err(); err != nil {
		return "scenario cancelled: " + err.Error()
	}
	if ex.pageLost || !ex.page.Live() {
		ex.pageLost = true
		return "page handle is no longer usable"
	}
	if ex.navFailed {
		if step.Kind == scenariotypes.StepCapture && !ex.diagnosticTaken {
			return ""
		}
		return "navigation failed"
	}
	if !ex.navigated && step.Kind != scenariotypes.StepNavigate {
		return "page has not been navigated"
	}
	return ""
}

func (ex *execution) navigate(ctx context.Context, sr *scenariotypes.StepResult, logger *zap.Logger) {
	target := ex.runner.ResolveURL(sr.Step.URL)
	timeout := sr.Step.Timeout
	if timeout <= 0 {
		timeout = ex.runner.opts.NavigationTimeout
	}

	logger.Info("Navigating to " + target)
	if err := ex.page.Navigate(ctx, target, timeout); err != nil {
		sr.Status = scenariotypes.StepFailed
		sr.Error = err.Error()
		ex.navFailed = true
		if !ex.page.Live() {
			ex.pageLost = true
		}
		logger.Error("Navigation failed", zap.Error(err))
		return
	}
	sr.Status = scenariotypes.StepOK
	ex.navigated = true
	ex.transition(scenariotypes.StateNavigated)
}

func (ex *execution) await(ctx context.Context, sr *scenariotypes.StepResult, logger *zap.Logger) {
	cond := ex.runner.detector.Resolve(*sr.Step.Condition)
	logger.Info("Waiting for "+cond.String(), zap.Duration("timeout", cond.Timeout), zap.Duration("settle", *cond.Settle))

	outcome, err := ex.runner.detector.Await(ctx, ex.page, cond)
	sr.Outcome = outcome
	switch {
	case err != nil:
		sr.Status = scenariotypes.StepFailed
		sr.Error = err.Error()
		if !ex.page.Live() {
			ex.pageLost = true
		}
		ex.transition(scenariotypes.StateTimedOut)
		logger.Error("Readiness wait failed", zap.Error(err))
	case outcome == scenariotypes.OutcomeSatisfied:
		sr.Status = scenariotypes.StepOK
		ex.transition(scenariotypes.StateReady)
		logger.Info("Ready: " + cond.String())
	default:
		sr.Status = scenariotypes.StepTimedOut
		sr.Error = fmt.Sprintf("%s not present after %s", cond, cond.Timeout)
		ex.transition(scenariotypes.StateTimedOut)
		logger.Warn("Timed out waiting for " + cond.String())
	}
}

func (ex *execution) interact(ctx context.Context, sr *scenariotypes.StepResult, logger *zap.Logger) {
	ex.transition(scenariotypes.StateInteracting)
	logger.Info(fmt.Sprintf("Clicking %q", sr.Step.Selector))
	if err := ex.page.Click(ctx, sr.Step.Selector); err != nil {
		sr.Status = scenariotypes.StepFailed
		sr.Error = err.Error()
		logger.Warn("Interaction failed", zap.Error(err))
		return
	}
	sr.Status = scenariotypes.StepOK
}

func (ex *execution) capture(ctx context.Context, sr *scenariotypes.StepResult, logger *zap.Logger) {
	path := ex.runner.ResolvePath(sr.Step.Path)
	sr.Path = path
	if ex.navFailed {
		ex.diagnosticTaken = true
		logger.Info("Taking diagnostic screenshot after failed navigation")
	} else {
		logger.Info("Taking screenshot...")
	}

	if err := ex.page.Screenshot(ctx, path); err != nil {
		sr.Status = scenariotypes.StepFailed
		sr.Error = err.Error()
		logger.Error("Screenshot failed", zap.Error(err))
		return
	}
	sr.Status = scenariotypes.StepOK
	ex.res.Captures = append(ex.res.Captures, path)
	ex.transition(scenariotypes.StateCaptured)
	logger.Info("Screenshot saved to " + path)

	if snap, ok := ex.page.(scenariotypes.DOMSnapshotter); ok && ex.runner.opts.DOMSnapshots {
		domPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".html"
		if err := snap.SaveDOM(ctx, domPath); err != nil {
			logger.Warn("DOM snapshot failed", zap.String("path", domPath), zap.Error(err))
		}
	}
}

func (ex *execution) finalStatus() scenariotypes.Status {
	if ex.navFailed || !ex.navigated {
		return scenariotypes.StatusFailed
	}
	for _, sr := range ex.res.Steps {
		if sr.Status != scenariotypes.StepOK {
			return scenariotypes.StatusPartiallyFailed
		}
	}
	return scenariotypes.StatusSucceeded
}

func (ex *execution) report(status scenariotypes.Status) {
	ex.res.Status = status
	ex.res.FinishedAt = time.Now().UTC()
	ex.transition(scenariotypes.StateReported)

	fields := []zap.Field{
		zap.String("status", string(status)),
		zap.Duration("duration", ex.res.Duration()),
		zap.Strings("captures", ex.res.Captures),
	}
	if status == scenariotypes.StatusSucceeded {
		ex.logger.Info("Scenario succeeded", fields...)
		return
	}
	for _, sr := range ex.res.Degraded() {
		fields = append(fields, zap.String(fmt.Sprintf("step_%d", sr.Index+1), fmt.Sprintf("%s: %s", sr.Status, sr.Error)))
	}
	if ex.res.Error != "" {
		fields = append(fields, zap.String("error", ex.res.Error))
	}
	ex.logger.Warn("Scenario did not succeed", fields...)
}
