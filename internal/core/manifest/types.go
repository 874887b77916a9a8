package manifest

import "gopkg.in/yaml.v3"

// =============================================================================
// Manifest Types
// =============================================================================

// Manifest is the subset of a Swarm stack file the updater acts on.
type Manifest struct {
	Networks map[string]Network    `yaml:"networks,omitempty"`
	Configs  map[string]FileObject `yaml:"configs,omitempty"`
	Secrets  map[string]FileObject `yaml:"secrets,omitempty"`
}

// Network is a top-level network entry.
type Network struct {
	Name     string   `yaml:"name,omitempty"`
	Driver   string   `yaml:"driver,omitempty"`
	External External `yaml:"external,omitempty"`
}

// FileObject is a top-level config or secret entry.
type FileObject struct {
	Name     string   `yaml:"name,omitempty"`
	File     string   `yaml:"file,omitempty"`
	External External `yaml:"external,omitempty"`
}

// External is the `external` flag of a network, config or secret.
// Both `external: true` and the legacy `external: {name: x}` form are accepted.
type External struct {
	Enabled bool
	Name    string // legacy name override
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (e *External) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var enabled bool
		if err := node.Decode(&enabled); err != nil {
			return NewParseError("external", "must be a boolean or a mapping", ErrInvalidManifest)
		}
		e.Enabled = enabled
		e.Name = ""
	case yaml.MappingNode:
		var legacy struct {
			Name string `yaml:"name"`
		}
		if err := node.Decode(&legacy); err != nil {
			return NewParseError("external", "must be a boolean or a mapping", ErrInvalidManifest)
		}
		e.Enabled = true
		e.Name = legacy.Name
	default:
		return NewParseError("external", "must be a boolean or a mapping", ErrInvalidManifest)
	}
	return nil
}

// =============================================================================
// Derived Types
// =============================================================================

// NetworkRef is an external network the stack expects to exist.
type NetworkRef struct {
	Key  string // key in the networks mapping
	Name string // effective network name
}

// Section names a top-level file object mapping.
type Section string

const (
	SectionConfigs Section = "configs"
	SectionSecrets Section = "secrets"
)

// FileRef is a config or secret backed by a file.
type FileRef struct {
	Section Section
	Key     string
	File    string // as written in the manifest
}
