package harness

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// DefaultLocal is the local peer id when a scenario names none.
const DefaultLocal = "me"

// Scenario is a scripted collaboration session with expectations.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name" json:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description" json:"description"`

	// Local is the local peer id. Defaults to DefaultLocal.
	Local string `yaml:"local,omitempty" json:"local,omitempty"`

	// Graph lists the node ids of the canonical graph. When absent every
	// target is accepted.
	Graph []string `yaml:"graph,omitempty" json:"graph,omitempty"`

	// ChangedPulse and EditingPulse override the presence timings, as
	// Go durations.
	ChangedPulse string `yaml:"changed_pulse,omitempty" json:"changed_pulse,omitempty"`
	EditingPulse string `yaml:"editing_pulse,omitempty" json:"editing_pulse,omitempty"`

	Steps      []Step      `yaml:"steps" json:"steps"`
	Assertions []Assertion `yaml:"assertions" json:"assertions"`
}

// Step does exactly one thing to the session.
type Step struct {
	// Note is free text carried into the trace.
	Note string `yaml:"note,omitempty" json:"note,omitempty"`

	Presence      *PresenceStep `yaml:"presence,omitempty" json:"presence,omitempty"`
	Leave         string        `yaml:"leave,omitempty" json:"leave,omitempty"`
	Remove        []string      `yaml:"remove,omitempty" json:"remove,omitempty"`
	Advance       string        `yaml:"advance,omitempty" json:"advance,omitempty"`
	Sweep         bool          `yaml:"sweep,omitempty" json:"sweep,omitempty"`
	Shadow        string        `yaml:"shadow,omitempty" json:"shadow,omitempty"`
	StopShadowing bool          `yaml:"stop_shadowing,omitempty" json:"stop_shadowing,omitempty"`

	// Snapshot is the new local document state. A null snapshot counts
	// as absent.
	Snapshot any `yaml:"snapshot,omitempty" json:"snapshot,omitempty"`
}

// PresenceStep is a remote peer publishing its presence state.
type PresenceStep struct {
	Peer  string         `yaml:"peer" json:"peer"`
	State map[string]any `yaml:"state" json:"state"`
}

// kinds lists the actions set on the step.
func (s Step) kinds() []string {
	var out []string
	if s.Presence != nil {
		out = append(out, "presence")
	}
	if s.Leave != "" {
		out = append(out, "leave")
	}
	if len(s.Remove) > 0 {
		out = append(out, "remove")
	}
	if s.Advance != "" {
		out = append(out, "advance")
	}
	if s.Sweep {
		out = append(out, "sweep")
	}
	if s.Shadow != "" {
		out = append(out, "shadow")
	}
	if s.StopShadowing {
		out = append(out, "stop_shadowing")
	}
	if s.Snapshot != nil {
		out = append(out, "snapshot")
	}
	return out
}

// Assertion validates the trace or the final session state.
type Assertion struct {
	// Type specifies the assertion type, see the Assert* constants.
	Type string `yaml:"type" json:"type"`

	// Effect is the rendered effect, e.g. "AddHighlight(p1, op-1, red)"
	// (effect_contains, effect_count).
	Effect string `yaml:"effect,omitempty" json:"effect,omitempty"`

	// Effects is the expected effect order (effect_order).
	Effects []string `yaml:"effects,omitempty" json:"effects,omitempty"`

	// Count is the expected number of occurrences (effect_count, op_count).
	Count int `yaml:"count,omitempty" json:"count,omitempty"`

	// Peer is the expected shadow target, empty for none (shadow).
	Peer string `yaml:"peer,omitempty" json:"peer,omitempty"`

	// Peers is the expected set of tracked peers (tracked).
	Peers []string `yaml:"peers,omitempty" json:"peers,omitempty"`

	// Expect is the expected mirrored state (mirror).
	Expect any `yaml:"expect,omitempty" json:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertEffectContains = "effect_contains"
	AssertEffectOrder    = "effect_order"
	AssertEffectCount    = "effect_count"
	AssertOpCount        = "op_count"
	AssertShadow         = "shadow"
	AssertTracked        = "tracked"
	AssertMirror         = "mirror"
)

// LoadScenario reads and parses a scenario file. Files ending in .cue are
// checked against the embedded CUE schema; anything else is parsed as YAML.
// Unknown fields (typos) are rejected either way.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario *Scenario
	if filepath.Ext(path) == ".cue" {
		scenario, err = parseCUE(path, data)
	} else {
		scenario, err = parseYAML(data)
	}
	if err != nil {
		return nil, err
	}

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return scenario, nil
}

// LoadDir loads every .yaml, .yml and .cue scenario in dir, sorted by file
// name. It stops at the first invalid file.
func LoadDir(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".yaml", ".yml", ".cue":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	scenarios := make([]*Scenario, 0, len(names))
	for _, name := range names {
		s, err := LoadScenario(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

func parseYAML(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &scenario, nil
}

func parseCUE(path string, data []byte) (*Scenario, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile scenario schema: %w", err)
	}

	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse CUE: %w", err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Scenario")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("scenario does not match schema: %w", err)
	}

	var scenario Scenario
	if err := unified.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to decode CUE: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Local == "" {
		s.Local = DefaultLocal
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for _, field := range []struct{ name, value string }{
		{"changed_pulse", s.ChangedPulse},
		{"editing_pulse", s.EditingPulse},
	} {
		if field.value == "" {
			continue
		}
		if _, err := time.ParseDuration(field.value); err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, s.Local, step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, local string, step Step) error {
	kinds := step.kinds()
	switch len(kinds) {
	case 0:
		return fmt.Errorf("steps[%d]: no action given", index)
	case 1:
	default:
		return fmt.Errorf("steps[%d]: exactly one action allowed, got %s", index, strings.Join(kinds, ", "))
	}

	switch {
	case step.Presence != nil:
		if step.Presence.Peer == "" {
			return fmt.Errorf("steps[%d].presence: peer is required", index)
		}
		if step.Presence.Peer == local {
			return fmt.Errorf("steps[%d].presence: peer %q is the local peer", index, local)
		}
	case step.Advance != "":
		d, err := time.ParseDuration(step.Advance)
		if err != nil {
			return fmt.Errorf("steps[%d].advance: %w", index, err)
		}
		if d < 0 {
			return fmt.Errorf("steps[%d].advance: negative duration %s", index, d)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertEffectContains:
		if a.Effect == "" {
			return fmt.Errorf("assertions[%d]: effect is required for effect_contains", index)
		}
	case AssertEffectOrder:
		if len(a.Effects) == 0 {
			return fmt.Errorf("assertions[%d]: effects list is required for effect_order", index)
		}
	case AssertEffectCount:
		if a.Effect == "" {
			return fmt.Errorf("assertions[%d]: effect is required for effect_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for effect_count", index)
		}
	case AssertOpCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for op_count", index)
		}
	case AssertShadow, AssertTracked:
	case AssertMirror:
		if a.Expect == nil {
			return fmt.Errorf("assertions[%d]: expect is required for mirror", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
