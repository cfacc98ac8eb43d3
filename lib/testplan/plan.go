// Package testplan models the tmt/fmf plan that enumerates the install
// scenarios and the image they are provisioned on.
package testplan

import (
	"errors"
	"fmt"
	"os"

	"github.com/ghodss/yaml"
)

var (
	// ErrNoScenarios is returned when a plan discovers no tests
	ErrNoScenarios = errors.New("plan has no test scenarios")

	// ErrNoProvisionImage is returned when a plan has no provisioning image
	ErrNoProvisionImage = errors.New("plan has no provision image")
)

// Plan is a tmt plan manifest.
type Plan struct {
	Summary   string    `json:"summary,omitempty"`
	Discover  Discover  `json:"discover"`
	Provision Provision `json:"provision"`
	Execute   Execute   `json:"execute"`
}

// Discover selects the tests the plan runs.
type Discover struct {
	How  string   `json:"how"`
	Test []string `json:"test,omitempty"`
}

// Provision names the image the scenarios run against.
type Provision struct {
	How   string `json:"how,omitempty"`
	Image string `json:"image"`
}

// Execute selects the execution method.
type Execute struct {
	How string `json:"how"`
}

// Load reads a plan from an fmf file.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}

	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse plan %s: %w", path, err)
	}
	return &p, nil
}

// Write serializes the plan to path.
func (p *Plan) Write(path string) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write plan: %w", err)
	}
	return nil
}

// Scenarios returns the discovered test names.
func (p *Plan) Scenarios() []string {
	return p.Discover.Test
}

// Validate checks the plan is runnable.
func (p *Plan) Validate() error {
	if len(p.Discover.Test) == 0 {
		return ErrNoScenarios
	}
	for _, name := range p.Discover.Test {
		if name == "" {
			return fmt.Errorf("%w: empty scenario name", ErrNoScenarios)
		}
	}
	if p.Provision.Image == "" {
		return ErrNoProvisionImage
	}
	return nil
}
