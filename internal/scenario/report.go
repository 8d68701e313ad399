package scenario

import (
	"fmt"
	"io"
	"time"

	"github.com/copyleftdev/scryshot/internal/scenariotypes"
	"github.com/fatih/color"
)

const (
	SuccMark = "✓"
	FailMark = "✗"
	WarnMark = "!"
	SkipMark = "-"
)

var (
	SuccColor = color.New(color.FgGreen)
	WarnColor = color.New(color.FgYellow)
	FailColor = color.New(color.FgRed)
	GrayColor = color.New(color.Faint)
	PathColor = color.New(color.FgCyan)
)

func statusStyle(s scenariotypes.Status) (string, *color.Color) {
	switch s {
	case scenariotypes.StatusSucceeded:
		return SuccMark, SuccColor
	case scenariotypes.StatusPartiallyFailed:
		return WarnMark, WarnColor
	default:
		return FailMark, FailColor
	}
}

func stepStyle(s scenariotypes.StepStatus) (string, *color.Color) {
	switch s {
	case scenariotypes.StepOK:
		return SuccMark, SuccColor
	case scenariotypes.StepTimedOut:
		return WarnMark, WarnColor
	case scenariotypes.StepSkipped:
		return SkipMark, GrayColor
	default:
		return FailMark, FailColor
	}
}

// PrintReport writes a human-readable report of one run.
func PrintReport(w io.Writer, res *scenariotypes.Result) {
	mark, c := statusStyle(res.Status)
	_, _ = c.Fprintf(w, "%s %s: %s", mark, res.Scenario, res.Status)
	_, _ = GrayColor.Fprintf(w, " (%s)\n", res.Duration().Round(time.Millisecond))

	for _, sr := range res.Steps {
		mark, c := stepStyle(sr.Status)
		_, _ = c.Fprintf(w, "  %s %d. %s", mark, sr.Index+1, sr.Step)
		if sr.Status != scenariotypes.StepOK {
			_, _ = fmt.Fprintf(w, " [%s]", sr.Status)
		}
		_, _ = fmt.Fprintln(w)
		if sr.Error != "" && sr.Status != scenariotypes.StepSkipped {
			_, _ = GrayColor.Fprintf(w, "      %s\n", sr.Error)
		}
	}

	if res.Error != "" {
		_, _ = FailColor.Fprintf(w, "  error: %s\n", res.Error)
	}
	for _, path := range res.Captures {
		_, _ = fmt.Fprint(w, "  screenshot: ")
		_, _ = PathColor.Fprintln(w, path)
	}
	if res.Status != scenariotypes.StatusSucceeded {
		for _, degraded := range degradingSteps(res) {
			_, _ = c.Fprintf(w, "  degraded by step %d: %s\n", degraded.Index+1, degraded.Step)
		}
	}
}

// degradingSteps returns every step that failed or timed out, in order.
// Skipped steps are a consequence rather than a cause.
func degradingSteps(res *scenariotypes.Result) []scenariotypes.StepResult {
	var out []scenariotypes.StepResult
	for _, sr := range res.Steps {
		switch sr.Status {
		case scenariotypes.StepFailed, scenariotypes.StepTimedOut:
			out = append(out, sr)
		}
	}
	return out
}

// PrintSummary writes one line per run followed by the overall status, and
// returns that status.
func PrintSummary(w io.Writer, results []*scenariotypes.Result) scenariotypes.Status {
	overall := scenariotypes.StatusSucceeded
	if len(results) == 0 {
		overall = scenariotypes.StatusFailed
	}
	_, _ = fmt.Fprintln(w)
	for _, res := range results {
		overall = overall.Worse(res.Status)
		mark, c := statusStyle(res.Status)
		_, _ = c.Fprintf(w, "%s %-24s %s\n", mark, res.Scenario, res.Status)
	}
	mark, c := statusStyle(overall)
	_, _ = c.Fprintf(w, "%s %d scenario(s): %s\n", mark, len(results), overall)
	return overall
}
