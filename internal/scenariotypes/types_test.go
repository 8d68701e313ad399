package scenariotypes

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenario_Creation(t *testing.T) {
	sc := Scenario{
		Name: "verify",
		Steps: []Step{
			Navigate("http://localhost:3000"),
			Await(ElementPresent("canvas", 10*time.Second).WithSettle(5 * time.Second)),
			Capture("verification.png"),
		},
	}

	require.NoError(t, sc.Validate())
	assert.Equal(t, StepNavigate, sc.Steps[0].Kind)
	assert.Equal(t, "http://localhost:3000", sc.Steps[0].URL)
	assert.Equal(t, ConditionElement, sc.Steps[1].Condition.Kind)
	assert.Equal(t, 5*time.Second, *sc.Steps[1].Condition.Settle)
	assert.Equal(t, "capture verification.png", sc.Steps[2].String())
}

func TestCondition_WithSettleCopies(t *testing.T) {
	base := TextPresent("VOXEL WALKER", time.Second)
	settled := base.WithSettle(0)

	assert.Nil(t, base.Settle)
	require.NotNil(t, settled.Settle)
	assert.Equal(t, time.Duration(0), *settled.Settle)
	assert.Equal(t, `text "VOXEL WALKER"`, settled.String())
}

func TestScenario_Validate(t *testing.T) {
	tests := []struct {
		name    string
		sc      Scenario
		wantErr string
	}{
		{"empty name", Scenario{Steps: []Step{Navigate("/")}}, "name cannot be empty"},
		{"no steps", Scenario{Name: "x"}, "no steps"},
		{"capture first", Scenario{Name: "x", Steps: []Step{Capture("a.png")}}, "before any navigation"},
		{"await first", Scenario{Name: "x", Steps: []Step{Await(ElementPresent("canvas", 0)), Navigate("/")}}, "before any navigation"},
		{"empty selector", Scenario{Name: "x", Steps: []Step{Navigate("/"), Click("")}}, "requires a selector"},
		{"empty text", Scenario{Name: "x", Steps: []Step{Navigate("/"), Await(TextPresent(" ", 0))}}, "non-empty text"},
		{"negative timeout", Scenario{Name: "x", Steps: []Step{Navigate("/"), Await(ElementPresent("canvas", -time.Second))}}, "negative"},
		{"negative settle", Scenario{Name: "x", Steps: []Step{Navigate("/"), Await(ElementPresent("canvas", 0).WithSettle(-1))}}, "negative"},
		{"empty path", Scenario{Name: "x", Steps: []Step{Navigate("/"), Capture("")}}, "output path"},
		{"unknown kind", Scenario{Name: "x", Steps: []Step{Navigate("/"), {Kind: "scroll"}}}, "unknown step kind"},
		{"bad action", Scenario{Name: "x", Steps: []Step{Navigate("/"), {Kind: StepInteract, Selector: "#a", Action: "hover"}}}, "unsupported interaction"},
		{"nil condition", Scenario{Name: "x", Steps: []Step{Navigate("/"), {Kind: StepAwait}}}, "requires a condition"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sc.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestStatus_ExitCodeAndWorse(t *testing.T) {
	assert.Equal(t, 0, StatusSucceeded.ExitCode())
	assert.Equal(t, 1, StatusPartiallyFailed.ExitCode())
	assert.Equal(t, 2, StatusFailed.ExitCode())
	assert.Equal(t, 2, Status("").ExitCode())

	assert.Equal(t, StatusPartiallyFailed, StatusSucceeded.Worse(StatusPartiallyFailed))
	assert.Equal(t, StatusFailed, StatusFailed.Worse(StatusSucceeded))
	assert.Equal(t, StatusSucceeded, StatusSucceeded.Worse(StatusSucceeded))
}

func TestResult_Lifecycle(t *testing.T) {
	sc := Scenario{Name: "ui-split", Steps: []Step{Navigate("/"), Capture("main_ui.png")}}
	res := NewResult(sc)

	assert.NotEqual(t, res.RunID.String(), NewResult(sc).RunID.String())
	assert.Equal(t, "ui-split", res.Scenario)
	assert.Equal(t, time.Duration(0), res.Duration())
	require.Len(t, res.Steps, 2)
	for i, sr := range res.Steps {
		assert.Equal(t, i, sr.Index)
		assert.Equal(t, StepSkipped, sr.Status)
	}

	res.Steps[0].Status = StepOK
	res.FinishedAt = res.StartedAt.Add(time.Second)
	assert.Equal(t, time.Second, res.Duration())

	degraded := res.Degraded()
	require.Len(t, degraded, 1)
	assert.Equal(t, 1, degraded[0].Index)
}

func TestErrors_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	errs := []error{
		&LaunchError{Err: cause},
		&NavigationError{URL: "http://localhost:3000", Err: cause},
		&InteractionError{Selector: "text=Research Lab", Action: ActionClick, Err: cause},
		&CaptureError{Path: "main_ui.png", Op: CaptureOpWrite, Err: cause},
	}
	for _, err := range errs {
		wrapped := fmt.Errorf("step 3: %w", err)
		assert.ErrorIs(t, wrapped, cause)
		assert.Contains(t, err.Error(), "boom")
	}

	var navErr *NavigationError
	require.ErrorAs(t, fmt.Errorf("wrapped: %w", errs[1]), &navErr)
	assert.Equal(t, "http://localhost:3000", navErr.URL)
}
