package scenario

import (
	"testing"
	"time"

	"github.com/copyleftdev/scryshot/internal/config"
	"github.com/copyleftdev/scryshot/internal/readiness"
	"github.com/copyleftdev/scryshot/internal/scenariotypes"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const scenarioFile = `
scenarios:
  - name: ui-split
    description: open the lab from a file
    steps:
      - navigate: /
      - await: {text: VOXEL WALKER, timeout: 15s}
      - capture: main_ui.png
      - click: text=Research Lab
      - await: {text: "Research & Development", settle: 0s}
      - capture: shop_modal.png
  - name: slow-world
    headless: false
    steps:
      - navigate: {url: "http://localhost:5173/world", timeout: 45s}
      - await: {element: canvas, timeout: 30000, settle: 2500}
      - capture: world.png
`

func TestParse(t *testing.T) {
	scenarios, err := Parse([]byte(scenarioFile))
	require.NoError(t, err)
	require.Len(t, scenarios, 2)

	split := scenarios[0]
	assert.Equal(t, "ui-split", split.Name)
	assert.Equal(t, "open the lab from a file", split.Description)
	assert.Nil(t, split.Headless)
	require.Len(t, split.Steps, 6)
	assert.Equal(t, scenariotypes.Navigate("/"), split.Steps[0])
	assert.Equal(t, scenariotypes.ConditionText, split.Steps[1].Condition.Kind)
	assert.Equal(t, 15*time.Second, split.Steps[1].Condition.Timeout)
	assert.Nil(t, split.Steps[1].Condition.Settle)
	assert.Equal(t, scenariotypes.Click("text=Research Lab"), split.Steps[3])
	require.NotNil(t, split.Steps[4].Condition.Settle)
	assert.Equal(t, time.Duration(0), *split.Steps[4].Condition.Settle)
	assert.Equal(t, scenariotypes.Capture("shop_modal.png"), split.Steps[5])

	world := scenarios[1]
	require.NotNil(t, world.Headless)
	assert.False(t, *world.Headless)
	assert.Equal(t, "http://localhost:5173/world", world.Steps[0].URL)
	assert.Equal(t, 45*time.Second, world.Steps[0].Timeout)
	assert.Equal(t, "canvas", world.Steps[1].Condition.Selector)
	assert.Equal(t, 30*time.Second, world.Steps[1].Condition.Timeout)
	assert.Equal(t, 2500*time.Millisecond, *world.Steps[1].Condition.Settle)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"malformed", "scenarios: [", "failed to parse"},
		{"two kinds in one step", "scenarios:\n  - name: a\n    steps:\n      - {navigate: /, capture: x.png}\n", "exactly one"},
		{"empty step", "scenarios:\n  - name: a\n    steps:\n      - {}\n", "exactly one"},
		{"await without target", "scenarios:\n  - name: a\n    steps:\n      - navigate: /\n      - await: {timeout: 1s}\n", "element or text"},
		{"await with both", "scenarios:\n  - name: a\n    steps:\n      - navigate: /\n      - await: {element: canvas, text: hi}\n", "not both"},
		{"bad duration", "scenarios:\n  - name: a\n    steps:\n      - navigate: /\n      - await: {element: canvas, timeout: soon}\n", "await timeout"},
		{"negative settle", "scenarios:\n  - name: a\n    steps:\n      - navigate: /\n      - await: {element: canvas, settle: -1s}\n", "negative"},
		{"capture before navigate", "scenarios:\n  - name: a\n    steps:\n      - capture: x.png\n", "before any navigation"},
		{"duplicate", "scenarios:\n  - name: a\n    steps: [{navigate: /}]\n  - name: a\n    steps: [{navigate: /}]\n", "duplicate"},
		{"no steps", "scenarios:\n  - name: a\n", "no steps"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"0", 0},
		{"1500", 1500 * time.Millisecond},
		{"5s", 5 * time.Second},
		{" 250ms ", 250 * time.Millisecond},
	}
	for _, tt := range tests {
		got, err := parseDuration(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := parseDuration("-5")
	assert.Error(t, err)
}

func TestLoadCatalog(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "scenarios.yaml", []byte(scenarioFile), 0o644))

	catalog, err := LoadCatalog(fs, "scenarios.yaml")
	require.NoError(t, err)

	assert.Equal(t, []string{"slow-world", "ui-split", "verify", "visual-enhancements", "voxel-layer"}, catalog.Names())

	split, ok := catalog.Get("ui-split")
	require.True(t, ok)
	assert.Equal(t, "open the lab from a file", split.Description, "file scenarios override built-ins")

	list := catalog.List()
	require.Len(t, list, 5)
	assert.Equal(t, "slow-world", list[0].Name)

	_, ok = catalog.Get("missing")
	assert.False(t, ok)
}

func TestLoadCatalog_BuiltinsOnly(t *testing.T) {
	catalog, err := LoadCatalog(afero.NewMemMapFs(), "")
	require.NoError(t, err)
	assert.Len(t, catalog.Names(), len(Builtins()))
}

func TestLoadCatalog_MissingFile(t *testing.T) {
	_, err := LoadCatalog(afero.NewMemMapFs(), "nope.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope.yaml")
}

func TestBuiltins_Valid(t *testing.T) {
	want := map[string][]string{
		"verify":              {"verification.png"},
		"visual-enhancements": {"visual_enhancements.png"},
		"voxel-layer":         {"voxel_layer.png"},
		"ui-split":            {"main_ui.png", "shop_modal.png"},
	}
	for _, sc := range Builtins() {
		require.NoError(t, sc.Validate(), sc.Name)

		var captures []string
		for _, step := range sc.Steps {
			if step.Kind == scenariotypes.StepCapture {
				captures = append(captures, step.Path)
			}
		}
		assert.Equal(t, want[sc.Name], captures, sc.Name)
	}
}

func TestBuiltins_CanvasSettleFollowsConfig(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, 5*time.Second, cfg.Readiness.DefaultSettle)

	cfg.Readiness.DefaultSettle = time.Second
	detector := readiness.NewDetector(cfg.Readiness, zap.NewNop())

	canvasWaits := 0
	for _, sc := range Builtins() {
		for _, step := range sc.Steps {
			if step.Kind != scenariotypes.StepAwait || step.Condition.Kind != scenariotypes.ConditionElement {
				continue
			}
			canvasWaits++
			assert.Equal(t, "canvas", step.Condition.Selector, sc.Name)
			assert.Nil(t, step.Condition.Settle, sc.Name)

			resolved := detector.Resolve(*step.Condition)
			require.NotNil(t, resolved.Settle)
			assert.Equal(t, time.Second, *resolved.Settle, sc.Name)
		}
	}
	assert.Equal(t, 3, canvasWaits)

	verify, ok := NewCatalog(Builtins()...).Get("verify")
	require.True(t, ok)
	assert.Equal(t, 10*time.Second, verify.Steps[1].Condition.Timeout)
}
