// SPDX-License-Identifier: Apache-2.0

// Package scenario loads sets of injection points to attach at startup.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/pgtest/injection-points/injection/core"
)

// ErrInvalidScenario is returned for documents that parse but cannot be applied.
var ErrInvalidScenario = errors.New("invalid scenario")

// Point is one point of a scenario.
type Point struct {
	Name   string      `yaml:"name"`
	Action core.Action `yaml:"action"`
}

// Scenario is a preload document.
type Scenario struct {
	// Local enables process scoping before any point is attached.
	Local  bool    `yaml:"local"`
	Points []Point `yaml:"points"`
}

// Target receives the points of a scenario.
type Target interface {
	SetLocal() error
	Attach(name string, action core.Action) error
}

// Load reads and validates the scenario at path.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes and validates a scenario document. Unknown keys are rejected.
func Parse(data []byte) (*Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var s Scenario
	if err := dec.Decode(&s); err != nil && err != io.EOF {
		return nil, fmt.Errorf("yaml unmarshal: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks that every point has a name and a known action.
func (s *Scenario) Validate() error {
	for i, p := range s.Points {
		if p.Name == "" {
			return fmt.Errorf("%w: point %d has no name", ErrInvalidScenario, i)
		}
		if _, ok := p.Action.Function(); !ok {
			return fmt.Errorf("%w: point %s has unknown action %q", ErrInvalidScenario, p.Name, p.Action)
		}
	}
	return nil
}

// Apply enables process scoping if requested, then attaches the points in
// order. It stops at the first failure.
func (s *Scenario) Apply(t Target) error {
	if s.Local {
		if err := t.SetLocal(); err != nil {
			return err
		}
	}

	for _, p := range s.Points {
		if err := t.Attach(p.Name, p.Action); err != nil {
			return fmt.Errorf("preload of injection point %s: %w", p.Name, err)
		}
	}

	log.WithField("points", len(s.Points)).WithField("local", s.Local).Info("Applied injection point scenario")
	return nil
}
