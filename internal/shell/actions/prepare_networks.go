package actions

import (
	"os"
	"path/filepath"

	"github.com/artpar/stack-updater/internal/core/manifest"
	"github.com/artpar/stack-updater/internal/shell/docker"
)

// PrepareNetworksName is the registration name of PrepareNetworksAction.
const PrepareNetworksName = "stack-prepare-networks"

// DefaultStackFile is the manifest file name used when none is configured.
const DefaultStackFile = "stack.yml"

// PrepareNetworksConfig holds the rendered parameters of a
// stack-prepare-networks step.
type PrepareNetworksConfig struct {
	ConfigDir string `mapstructure:"config_dir"`
	StackFile string `mapstructure:"stack_file"`
}

// Validate checks the required fields.
func (c PrepareNetworksConfig) Validate() error {
	if c.ConfigDir == "" {
		return invalidParams(PrepareNetworksName, "config_dir is required")
	}
	return nil
}

// PrepareNetworksAction makes sure every external network in a stack
// manifest exists as an attachable overlay network.
type PrepareNetworksAction struct {
	cfg  PrepareNetworksConfig
	deps Deps
}

// NewPrepareNetworksAction creates a PrepareNetworksAction.
func NewPrepareNetworksAction(cfg PrepareNetworksConfig, deps Deps) (*PrepareNetworksAction, error) {
	if cfg.StackFile == "" {
		cfg.StackFile = DefaultStackFile
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &PrepareNetworksAction{cfg: cfg, deps: deps.withDefaults()}, nil
}

func newPrepareNetworksFromParams(params map[string]any, deps Deps) (Action, error) {
	var cfg PrepareNetworksConfig
	if err := decodeParams(PrepareNetworksName, params, &cfg); err != nil {
		return nil, err
	}
	return NewPrepareNetworksAction(cfg, deps)
}

// Name implements Action.
func (a *PrepareNetworksAction) Name() string {
	return PrepareNetworksName
}

// Run implements Action.
// Existing networks are left alone, so running it repeatedly is safe.
func (a *PrepareNetworksAction) Run() error {
	m, err := readManifest(filepath.Join(a.cfg.ConfigDir, a.cfg.StackFile))
	if err != nil {
		return err
	}

	for _, ref := range manifest.ExternalNetworks(m) {
		existing, err := a.deps.Docker.ListNetworks(ref.Name)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			a.deps.Logger.Debug("external network exists", "network", ref.Name, "id", existing[0].ID)
			continue
		}

		a.deps.Logger.Info("creating external overlay network", "network", ref.Name)

		id, err := a.deps.Docker.CreateNetwork(docker.NetworkSpec{
			Name:       ref.Name,
			Driver:     "overlay",
			Attachable: true,
			Labels:     map[string]string{docker.LabelManaged: "true"},
		})
		if err != nil {
			return err
		}

		a.deps.Logger.Info("network created", "network", ref.Name, "id", id)
	}

	return nil
}

// readManifest reads and parses a stack manifest.
// Read errors are returned unmodified.
func readManifest(path string) (*manifest.Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return manifest.Parse(data)
}
