package scenario

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/copyleftdev/scryshot/internal/scenariotypes"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// fileSpec is the top level of a scenario file.
type fileSpec struct {
	Scenarios []scenarioSpec `yaml:"scenarios"`
}

type scenarioSpec struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	Headless    *bool     `yaml:"headless,omitempty"`
	Steps       []rawStep `yaml:"steps"`
}

// rawStep holds exactly one of its step keys.
type rawStep struct {
	Navigate *navigateSpec  `yaml:"navigate,omitempty"`
	Await    *conditionSpec `yaml:"await,omitempty"`
	Click    *string        `yaml:"click,omitempty"`
	Capture  *string        `yaml:"capture,omitempty"`
}

// navigateSpec accepts either a bare URL or {url, timeout}.
type navigateSpec struct {
	URL     string `yaml:"url"`
	Timeout string `yaml:"timeout"`
}

func (n *navigateSpec) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		n.URL = value.Value
		return nil
	}
	type plain navigateSpec
	return value.Decode((*plain)(n))
}

type conditionSpec struct {
	Element string `yaml:"element"`
	Text    string `yaml:"text"`
	Timeout string `yaml:"timeout"`
	Settle  string `yaml:"settle"`
}

// Parse decodes scenario definitions from YAML.
func Parse(data []byte) ([]scenariotypes.Scenario, error) {
	var spec fileSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse scenario file: %w", err)
	}

	seen := make(map[string]bool, len(spec.Scenarios))
	out := make([]scenariotypes.Scenario, 0, len(spec.Scenarios))
	for _, s := range spec.Scenarios {
		if seen[s.Name] {
			return nil, fmt.Errorf("duplicate scenario name: %s", s.Name)
		}
		seen[s.Name] = true

		sc := scenariotypes.Scenario{Name: s.Name, Description: s.Description, Headless: s.Headless}
		for i, raw := range s.Steps {
			step, err := raw.toStep()
			if err != nil {
				return nil, fmt.Errorf("scenario %s step %d: %w", s.Name, i+1, err)
			}
			sc.Steps = append(sc.Steps, step)
		}
		if err := sc.Validate(); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, nil
}

// ParseSteps decodes a bare step list in the scenario file syntax. JSON input
// is accepted since it is valid YAML.
func ParseSteps(data []byte) ([]scenariotypes.Step, error) {
	var raw []rawStep
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse steps: %w", err)
	}
	steps := make([]scenariotypes.Step, 0, len(raw))
	for i, r := range raw {
		step, err := r.toStep()
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// LoadFile reads and parses a scenario file.
func LoadFile(fs afero.Fs, path string) ([]scenariotypes.Scenario, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file %s: %w", path, err)
	}
	return Parse(data)
}

func (r rawStep) toStep() (scenariotypes.Step, error) {
	set := 0
	for _, present := range []bool{r.Navigate != nil, r.Await != nil, r.Click != nil, r.Capture != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return scenariotypes.Step{}, fmt.Errorf("expected exactly one of navigate, await, click, capture (got %d)", set)
	}

	switch {
	case r.Navigate != nil:
		step := scenariotypes.Navigate(r.Navigate.URL)
		timeout, err := parseDuration(r.Navigate.Timeout)
		if err != nil {
			return step, fmt.Errorf("navigate timeout: %w", err)
		}
		step.Timeout = timeout
		return step, nil
	case r.Await != nil:
		cond, err := r.Await.toCondition()
		if err != nil {
			return scenariotypes.Step{}, err
		}
		return scenariotypes.Await(cond), nil
	case r.Click != nil:
		return scenariotypes.Click(*r.Click), nil
	default:
		return scenariotypes.Capture(*r.Capture), nil
	}
}

func (c conditionSpec) toCondition() (scenariotypes.Condition, error) {
	var cond scenariotypes.Condition
	switch {
	case c.Element != "" && c.Text != "":
		return cond, fmt.Errorf("await takes either element or text, not both")
	case c.Element != "":
		cond = scenariotypes.Condition{Kind: scenariotypes.ConditionElement, Selector: c.Element}
	case c.Text != "":
		cond = scenariotypes.Condition{Kind: scenariotypes.ConditionText, Text: c.Text}
	default:
		return cond, fmt.Errorf("await requires element or text")
	}

	timeout, err := parseDuration(c.Timeout)
	if err != nil {
		return cond, fmt.Errorf("await timeout: %w", err)
	}
	cond.Timeout = timeout

	if c.Settle != "" {
		settle, err := parseDuration(c.Settle)
		if err != nil {
			return cond, fmt.Errorf("await settle: %w", err)
		}
		cond = cond.WithSettle(settle)
	}
	return cond, nil
}

// parseDuration accepts Go durations and bare integers in milliseconds.
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		if ms < 0 {
			return 0, fmt.Errorf("duration cannot be negative: %s", s)
		}
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration cannot be negative: %s", s)
	}
	return d, nil
}

// Catalog is a name-indexed set of scenarios.
type Catalog struct {
	mu        sync.RWMutex
	scenarios map[string]scenariotypes.Scenario
}

// NewCatalog creates a catalog seeded with the given scenarios.
func NewCatalog(scenarios ...scenariotypes.Scenario) *Catalog {
	c := &Catalog{scenarios: make(map[string]scenariotypes.Scenario)}
	for _, sc := range scenarios {
		c.Add(sc)
	}
	return c
}

// LoadCatalog returns the built-in scenarios overlaid with those defined in
// path. An empty path yields only the built-ins.
func LoadCatalog(fs afero.Fs, path string) (*Catalog, error) {
	c := NewCatalog(Builtins()...)
	if path == "" {
		return c, nil
	}
	scenarios, err := LoadFile(fs, path)
	if err != nil {
		return nil, err
	}
	for _, sc := range scenarios {
		c.Add(sc)
	}
	return c, nil
}

// Add registers sc, replacing any scenario with the same name.
func (c *Catalog) Add(sc scenariotypes.Scenario) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scenarios[sc.Name] = sc
}

func (c *Catalog) Get(name string) (scenariotypes.Scenario, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sc, ok := c.scenarios[name]
	return sc, ok
}

// Names returns the scenario names in sorted order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.scenarios))
	for name := range c.scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns every scenario sorted by name.
func (c *Catalog) List() []scenariotypes.Scenario {
	names := c.Names()
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]scenariotypes.Scenario, 0, len(names))
	for _, name := range names {
		out = append(out, c.scenarios[name])
	}
	return out
}
