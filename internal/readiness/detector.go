// Package readiness decides when a page has reached a verifiable visual state.
//
// A condition is reduced to one structural wait on the page (element present,
// text present) followed, when satisfied, by a fixed settle delay. Rendering
// completion of a canvas scene is not observable as a DOM event, so the settle
// delay is a bounded, tunable approximation: a precision/robustness trade-off
// rather than a completion signal. One await is bounded by timeout + settle.
package readiness

import (
	"context"
	"time"

	"github.com/copyleftdev/scryshot/internal/config"
	"github.com/copyleftdev/scryshot/internal/scenariotypes"
	"go.uber.org/zap"
)

// Waiter performs the structural part of a readiness wait.
type Waiter interface {
	WaitFor(ctx context.Context, cond scenariotypes.Condition) (scenariotypes.Outcome, error)
}

type Detector struct {
	defaultTimeout time.Duration
	defaultSettle  time.Duration
	logger         *zap.Logger
	sleep          func(ctx context.Context, d time.Duration) error
}

func NewDetector(cfg config.ReadinessConfig, logger *zap.Logger) *Detector {
	return &Detector{
		defaultTimeout: cfg.DefaultTimeout,
		defaultSettle:  cfg.DefaultSettle,
		logger:         logger.Named("readiness"),
		sleep:          sleepContext,
	}
}

// Resolve fills unset timeout and settle values from the configured defaults.
func (d *Detector) Resolve(cond scenariotypes.Condition) scenariotypes.Condition {
	if cond.Timeout <= 0 {
		cond.Timeout = d.defaultTimeout
	}
	if cond.Settle == nil {
		cond = cond.WithSettle(d.defaultSettle)
	}
	return cond
}

// Await waits for cond on w. A timeout yields OutcomeTimedOut with a nil
// error; an error is returned only when the page itself failed.
func (d *Detector) Await(ctx context.Context, w Waiter, cond scenariotypes.Condition) (scenariotypes.Outcome, error) {
	cond = d.Resolve(cond)
	start := time.Now()

	outcome, err := w.WaitFor(ctx, cond)
	if err != nil {
		return scenariotypes.OutcomeTimedOut, err
	}
	if outcome != scenariotypes.OutcomeSatisfied {
		d.logger.Warn("Readiness condition timed out",
			zap.Stringer("condition", cond), zap.Duration("timeout", cond.Timeout))
		return scenariotypes.OutcomeTimedOut, nil
	}

	settle := *cond.Settle
	d.logger.Debug("Structural condition met",
		zap.Stringer("condition", cond), zap.Duration("after", time.Since(start)), zap.Duration("settle", settle))
	if settle > 0 {
		if err := d.sleep(ctx, settle); err != nil {
			// Cancelled mid-settle: the structure was there but rendering was
			// not given its grace period.
			return scenariotypes.OutcomeTimedOut, err
		}
	}
	return scenariotypes.OutcomeSatisfied, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Poll evaluates check every interval until it reports true, the timeout
// elapses (OutcomeTimedOut, nil) or the parent context ends. check errors are
// returned immediately.
func Poll(ctx context.Context, timeout, interval time.Duration, check func(ctx context.Context) (bool, error)) (scenariotypes.Outcome, error) {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		ok, err := check(waitCtx)
		if ok {
			return scenariotypes.OutcomeSatisfied, nil
		}
		if err != nil && waitCtx.Err() == nil {
			return scenariotypes.OutcomeTimedOut, err
		}

		select {
		case <-ticker.C:
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return scenariotypes.OutcomeTimedOut, ctx.Err()
			}
			return scenariotypes.OutcomeTimedOut, nil
		}
	}
}
