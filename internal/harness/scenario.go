package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario defines a stack test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Model is the model name, loaded from ModelDir.
	Model string `yaml:"model"`

	// ModelDir is resolved relative to the scenario file by LoadScenario.
	// Empty means the scenario file's directory.
	ModelDir string `yaml:"model_dir,omitempty"`

	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and store state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one scenario action. Exactly one of the type fields is set:
// Insert and Fetch name an entity, Set and Delete name a ref, Child names
// the new context, Save and Rollback name an existing context. The
// remaining fields parameterize it.
type Step struct {
	Insert    string       `yaml:"insert,omitempty"`
	Set       string       `yaml:"set,omitempty"`
	Fetch     string       `yaml:"fetch,omitempty"`
	Delete    string       `yaml:"delete,omitempty"`
	DeleteAll bool         `yaml:"delete_all,omitempty"`
	Child     string       `yaml:"child,omitempty"`
	Save      string       `yaml:"save,omitempty"`
	Rollback  string       `yaml:"rollback,omitempty"`
	Persist   *PersistStep `yaml:"persist,omitempty"`

	// Context names the context the step runs in. Default "foreground".
	Context string `yaml:"context,omitempty"`

	// Parent is the parent of a new child context. Default "foreground".
	Parent string `yaml:"parent,omitempty"`

	// Ref names the object an insert creates.
	Ref string `yaml:"ref,omitempty"`

	Values map[string]any `yaml:"values,omitempty"`

	Where []string `yaml:"where,omitempty"` // "age>=21"
	Sort  []string `yaml:"sort,omitempty"`  // "name", "age:desc"
	Limit int      `yaml:"limit,omitempty"`

	Expect *Expect `yaml:"expect,omitempty"`
}

// PersistStep parameterizes a persist step.
type PersistStep struct {
	Async bool `yaml:"async,omitempty"`
}

// Expect specifies the expected outcome of a step.
type Expect struct {
	// Count is the expected number of fetched objects.
	Count *int `yaml:"count,omitempty"`

	// Refs is the expected fetch result, in order. Objects without a ref
	// are written as their ID.
	Refs []string `yaml:"refs,omitempty"`

	// Error expects the step to fail.
	Error bool `yaml:"error,omitempty"`
}

// Assertion validates the final trace or store state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_count": Check a step type appears exactly N times
	// - "trace_order": Check step types appear in order
	// - "final_count": Check the store holds N instances of an entity
	// - "final_state": Check a stored instance's values
	Type string `yaml:"type"`

	// Step is the step type (used by trace_count).
	Step string `yaml:"step,omitempty"`

	// Steps is the expected step type order (used by trace_order).
	Steps []string `yaml:"steps,omitempty"`

	// Entity is the entity name (used by final_count and final_state).
	Entity string `yaml:"entity,omitempty"`

	// Where specifies attribute equality filters (used by final_state).
	Where map[string]any `yaml:"where,omitempty"`

	// Expect contains expected attribute values (used by final_state).
	// Subset match - only specified attributes are validated.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Count is the expected number (used by trace_count and final_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceCount = "trace_count"
	AssertTraceOrder = "trace_order"
	AssertFinalCount = "final_count"
	AssertFinalState = "final_state"
)

// Type returns the step's type name, or "" when no type field is set.
func (s Step) Type() string {
	types := s.types()
	if len(types) != 1 {
		return ""
	}
	return types[0]
}

func (s Step) types() []string {
	var out []string
	if s.Insert != "" {
		out = append(out, StepInsert)
	}
	if s.Set != "" {
		out = append(out, StepSet)
	}
	if s.Fetch != "" {
		out = append(out, StepFetch)
	}
	if s.Delete != "" {
		out = append(out, StepDelete)
	}
	if s.DeleteAll {
		out = append(out, StepDeleteAll)
	}
	if s.Child != "" {
		out = append(out, StepChild)
	}
	if s.Save != "" {
		out = append(out, StepSave)
	}
	if s.Rollback != "" {
		out = append(out, StepRollback)
	}
	if s.Persist != nil {
		out = append(out, StepPersist)
	}
	return out
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// ModelDir is resolved relative to the file's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	base := filepath.Dir(path)
	switch {
	case scenario.ModelDir == "":
		scenario.ModelDir = base
	case !filepath.IsAbs(scenario.ModelDir):
		scenario.ModelDir = filepath.Join(base, scenario.ModelDir)
	}
	return scenario, nil
}

// ParseScenario parses and validates scenario YAML. ModelDir is left as
// written.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every *.yaml / *.yml file in dir as a scenario,
// sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if !e.IsDir() && (ext == ".yaml" || ext == ".yml") {
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

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Model == "" {
		return fmt.Errorf("model is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
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

func validateStep(index int, s Step) error {
	types := s.types()
	switch len(types) {
	case 0:
		return fmt.Errorf("steps[%d]: one of insert, set, fetch, delete, delete_all, child, save, rollback, persist is required", index)
	case 1:
	default:
		return fmt.Errorf("steps[%d]: only one step type allowed, got %s", index, strings.Join(types, ", "))
	}

	switch types[0] {
	case StepSet:
		if len(s.Values) == 0 {
			return fmt.Errorf("steps[%d]: set requires values", index)
		}
	case StepFetch:
		if s.Limit < 0 {
			return fmt.Errorf("steps[%d]: limit must be non-negative", index)
		}
	case StepChild:
		if s.Child == "root" || s.Child == "foreground" {
			return fmt.Errorf("steps[%d]: context name %q is reserved", index, s.Child)
		}
	}

	if s.Expect != nil && types[0] != StepFetch && (s.Expect.Count != nil || s.Expect.Refs != nil) {
		return fmt.Errorf("steps[%d]: expect.count and expect.refs only apply to fetch", index)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceCount:
		if a.Step == "" {
			return fmt.Errorf("assertions[%d]: step is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertTraceOrder:
		if len(a.Steps) == 0 {
			return fmt.Errorf("assertions[%d]: steps list is required for trace_order", index)
		}
	case AssertFinalCount:
		if a.Entity == "" {
			return fmt.Errorf("assertions[%d]: entity is required for final_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for final_count", index)
		}
	case AssertFinalState:
		if a.Entity == "" {
			return fmt.Errorf("assertions[%d]: entity is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
