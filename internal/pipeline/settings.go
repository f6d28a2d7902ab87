package pipeline

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/dyluth/downlink/pkg/status"
)

// Settings configures one stage instance. Params holds the stage-specific
// section exactly as written in the YAML file; each stage decodes it into its
// own struct.
type Settings struct {
	Type   string    `yaml:"type"`
	Name   string    `yaml:"name"`
	Params yaml.Node `yaml:"params,omitempty"`
}

// NewSettings builds Settings from a Go value, mainly for tests and
// programmatic assembly.
func NewSettings(stageType, name string, params any) (Settings, error) {
	s := Settings{Type: stageType, Name: name}
	if params != nil {
		if err := s.Params.Encode(params); err != nil {
			return Settings{}, fmt.Errorf("failed to encode params for stage %s: %w", name, err)
		}
	}
	return s, nil
}

// Validate checks the identifying fields.
func (s Settings) Validate() error {
	if err := status.ValidateSegment("stage type", s.Type); err != nil {
		return err
	}
	if err := status.ValidateSegment("stage name", s.Name); err != nil {
		return err
	}
	return nil
}

// Decode unmarshals Params into v. Absent params leave v untouched.
func (s Settings) Decode(v any) error {
	if s.Params.Kind == 0 {
		return nil
	}
	if err := s.Params.Decode(v); err != nil {
		return fmt.Errorf("failed to decode params for stage %s.%s: %w", s.Type, s.Name, err)
	}
	return nil
}

// ID returns the stage's "{type}.{name}" identifier.
func (s Settings) ID() string {
	return status.BlockID(s.Type, s.Name)
}
