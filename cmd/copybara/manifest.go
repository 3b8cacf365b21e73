package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/grailbio/copybara/glob"
	"github.com/grailbio/copybara/transform"
)

// Manifest is a data carrier for an already-evaluated workflow: unlike
// Copybara's own Starlark-like configuration language (explicitly out
// of scope here), it holds no logic, only the glob and step shapes the
// core operates on directly — analogous to grit's "-config k=v,..."
// flag, just with enough structure for a full pipeline.
type Manifest struct {
	Origin      string   `yaml:"origin"`
	Destination string   `yaml:"destination"`
	Include     []string `yaml:"include"`
	Exclude     []string `yaml:"exclude,omitempty"`
	Steps       []Step   `yaml:"steps"`
	IgnoreNoop  bool     `yaml:"ignoreNoop,omitempty"`
}

// Step is one entry of the manifest's transformation list. Exactly one
// of its fields should be set; Build dispatches on whichever is
// non-nil.
type Step struct {
	Move    *MoveStep    `yaml:"move,omitempty"`
	Rename  *RenameStep  `yaml:"rename,omitempty"`
	Replace *ReplaceStep `yaml:"replace,omitempty"`
	Remove  *RemoveStep  `yaml:"remove,omitempty"`
}

type MoveStep struct {
	Before string `yaml:"before"`
	After  string `yaml:"after"`
}

type RenameStep struct {
	Before string `yaml:"before"`
	After  string `yaml:"after"`
	Suffix bool   `yaml:"suffix,omitempty"`
}

type ReplaceStep struct {
	Before string            `yaml:"before"`
	After  string            `yaml:"after"`
	Groups map[string]string `yaml:"groups,omitempty"`
}

type RemoveStep struct {
	Include []string `yaml:"include"`
}

// LoadManifest reads and decodes a workflow manifest from path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return &m, nil
}

// Build compiles the manifest's steps into a transform.Pipeline.
func (m *Manifest) Build() (*transform.Pipeline, error) {
	var steps []transform.Transformation
	for i, s := range m.Steps {
		t, err := s.build()
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		steps = append(steps, t)
	}
	p := transform.NewPipeline(transform.IgnoreNoop, steps...)
	p.IgnoreNoop = m.IgnoreNoop
	return p, nil
}

func (s Step) build() (transform.Transformation, error) {
	switch {
	case s.Move != nil:
		return transform.Move(s.Move.Before, s.Move.After)
	case s.Rename != nil:
		var opts []transform.RenameOption
		if s.Rename.Suffix {
			opts = append(opts, transform.WithSuffix(true))
		}
		return transform.Rename(s.Rename.Before, s.Rename.After, opts...), nil
	case s.Replace != nil:
		return transform.Replace(s.Replace.Before, s.Replace.After, s.Replace.Groups)
	case s.Remove != nil:
		g, err := glob.Leaf(s.Remove.Include, nil)
		if err != nil {
			return nil, err
		}
		return transform.Remove(g), nil
	default:
		return nil, fmt.Errorf("empty step")
	}
}
