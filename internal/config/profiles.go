package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/FabG/chainlit-ui/pkg/types"
)

// Profiles is the declarative starters/chat-profiles file. Deployments that
// do not register starter or profile provider hooks can ship a YAML file
// instead:
//
//	starters:
//	  - label: Summarize
//	    message: Summarize the following document
//	    icon: /icons/summarize.svg
//	profiles:
//	  - name: gpt-4
//	    description: Slow and careful
//	    default: true
type Profiles struct {
	Starters []types.Starter     `yaml:"starters"`
	Profiles []types.ChatProfile `yaml:"profiles"`
}

// LoadProfiles reads and validates a profiles YAML file.
func LoadProfiles(path string) (*Profiles, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var p Profiles
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profiles file %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("profiles file %s: %w", path, err)
	}
	return &p, nil
}

// Validate checks the starter and profile lists. Malformed lists fail at
// startup, before any session exists.
func (p *Profiles) Validate() error {
	for i, s := range p.Starters {
		if s.Label == "" {
			return fmt.Errorf("starter %d: label is required", i)
		}
		if s.Message == "" {
			return fmt.Errorf("starter %q: message is required", s.Label)
		}
	}

	seen := make(map[string]bool)
	defaults := 0
	for i, cp := range p.Profiles {
		if cp.Name == "" {
			return fmt.Errorf("profile %d: name is required", i)
		}
		if seen[cp.Name] {
			return fmt.Errorf("profile %q: duplicate name", cp.Name)
		}
		seen[cp.Name] = true
		if cp.Default {
			defaults++
		}
	}
	if defaults > 1 {
		return fmt.Errorf("profiles: at most one default profile allowed, got %d", defaults)
	}
	return nil
}
