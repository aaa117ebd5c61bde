// Package steps provides the versioned registry of onboarding steps: which
// main steps gate submission and which sub-steps each main step requires.
package steps

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jonathan/bond-onboarding/internal/progress"
)

//go:embed default_registry.yaml
var defaultRegistryYAML []byte

// StepDefinition defines a required main step
type StepDefinition struct {
	ID       string   `yaml:"id" json:"id"`
	Name     string   `yaml:"name" json:"name"`
	SubSteps []string `yaml:"sub_steps,omitempty" json:"sub_steps,omitempty"`
}

// Registry is an ordered set of required main steps.
type Registry struct {
	Version string           `yaml:"version" json:"version"`
	Steps   []StepDefinition `yaml:"steps" json:"steps"`

	byID map[string]int
}

// Default returns the registry compiled into the binary.
func Default() *Registry {
	r, err := Parse(defaultRegistryYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded step registry is invalid: %v", err))
	}
	return r
}

// Load reads a registry from a YAML file.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read step registry %s: %w", path, err)
	}
	r, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("step registry %s: %w", path, err)
	}
	return r, nil
}

// Parse decodes and validates a YAML registry.
func Parse(data []byte) (*Registry, error) {
	var r Registry
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse step registry: %w", err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// Validate checks ids are well formed and unique, and that every sub-step
// belongs to its main step.
func (r *Registry) Validate() error {
	if r.Version == "" {
		return fmt.Errorf("registry version is required")
	}
	if len(r.Steps) == 0 {
		return fmt.Errorf("registry has no steps")
	}

	r.byID = make(map[string]int, len(r.Steps))
	for i, def := range r.Steps {
		id, err := progress.ParseStepID(def.ID)
		if err != nil {
			return err
		}
		if id.IsSubStep() {
			return fmt.Errorf("step %s: main step ids cannot contain a dot", def.ID)
		}
		if _, dup := r.byID[def.ID]; dup {
			return fmt.Errorf("duplicate step id: %s", def.ID)
		}
		r.byID[def.ID] = i

		seen := make(map[string]bool, len(def.SubSteps))
		for _, s := range def.SubSteps {
			sid, err := progress.ParseStepID(s)
			if err != nil {
				return err
			}
			if sid.Main != def.ID || !sid.IsSubStep() {
				return fmt.Errorf("step %s: sub-step %s does not belong to it", def.ID, s)
			}
			if seen[s] {
				return fmt.Errorf("step %s: duplicate sub-step %s", def.ID, s)
			}
			seen[s] = true
		}
	}
	return nil
}

// RequiredMainSteps returns the main step ids that gate submission, in order.
func (r *Registry) RequiredMainSteps() []string {
	ids := make([]string, len(r.Steps))
	for i, def := range r.Steps {
		ids[i] = def.ID
	}
	return ids
}

// Lookup returns the definition of a main step.
func (r *Registry) Lookup(mainID string) (StepDefinition, bool) {
	i, ok := r.byID[mainID]
	if !ok {
		return StepDefinition{}, false
	}
	return r.Steps[i], true
}

// UnknownStepError reports a main step that the registry does not define.
type UnknownStepError struct {
	Step    string
	Version string
}

func (e *UnknownStepError) Error() string {
	return fmt.Sprintf("unknown step %s in registry %s", e.Step, e.Version)
}

// RequiredSubSteps returns the sub-steps a main step requires.
func (r *Registry) RequiredSubSteps(mainID string) ([]string, error) {
	def, ok := r.Lookup(mainID)
	if !ok {
		return nil, &UnknownStepError{Step: mainID, Version: r.Version}
	}
	return append([]string{}, def.SubSteps...), nil
}
