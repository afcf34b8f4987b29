// Package preset loads saved export selections from YAML.
package preset

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"asanapdf/internal/selection"
)

// Preset describes a non-interactive export.
//
//	project: Marketing
//	tasks: ["1", "3-5"]
//	fields: {notes: false}
//	custom_fields: {Priority: false}
//	introduction: |
//	  Quarterly summary.
type Preset struct {
	// Project is a project gid or name.
	Project string `yaml:"project"`

	// Tasks are task references as accepted on the command line.
	Tasks []string `yaml:"tasks,omitempty"`

	// All selects every task of the project.
	All bool `yaml:"all,omitempty"`

	// Fields toggles standard fields by name.
	Fields map[string]bool `yaml:"fields,omitempty"`

	// CustomFields toggles custom fields by gid or name.
	CustomFields map[string]bool `yaml:"custom_fields,omitempty"`

	Introduction string `yaml:"introduction,omitempty"`
}

// Load reads and validates a preset file.
func Load(path string) (*Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read preset: %w", err)
	}
	p, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("invalid preset %s: %w", path, err)
	}
	return p, nil
}

// Parse decodes a preset. Unknown keys are rejected so typos do not
// silently export everything.
func Parse(r io.Reader) (*Preset, error) {
	var p Preset
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks the standard field names and that tasks and all are
// not combined.
func (p *Preset) Validate() error {
	for name := range p.Fields {
		if _, err := selection.ParseField(name); err != nil {
			return err
		}
	}
	if p.All && len(p.Tasks) > 0 {
		return errors.New("tasks and all are mutually exclusive")
	}
	for _, ref := range p.Tasks {
		if strings.TrimSpace(ref) == "" {
			return errors.New("empty task reference")
		}
	}
	return nil
}

// Apply sets the preset's field toggles on a selection.
func (p *Preset) Apply(s *selection.State) error {
	return s.ApplyToggles(p.Fields, p.CustomFields)
}

// Save writes the preset to path with mode 0644.
func (p *Preset) Save(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to save preset: %w", err)
	}
	if err := p.Write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to save preset %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to save preset %s: %w", path, err)
	}
	return nil
}

// Write encodes the preset as YAML.
func (p *Preset) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return err
	}
	return enc.Close()
}
