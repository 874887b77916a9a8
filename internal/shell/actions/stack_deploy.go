package actions

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/artpar/stack-updater/internal/core/manifest"
	"github.com/artpar/stack-updater/internal/shell/docker"
)

// StackDeployName is the registration name of StackDeployAction.
const StackDeployName = "stack-deploy"

const (
	stackDeployImage = "stack-deploy"

	// The host's docker binary is bind-mounted into the container, so only
	// its runtime library is installed here.
	stackDeployDockerfile = `FROM debian:stable-slim
RUN apt-get update \
 && apt-get install -y --no-install-recommends libltdl7 ca-certificates \
 && rm -rf /var/lib/apt/lists/*
`
)

// StackDeployConfig holds the rendered parameters of a stack-deploy step.
type StackDeployConfig struct {
	StackName string `mapstructure:"stack_name"`
	// WorkingDir is mounted read-only at the same path and used as the
	// container's working directory.
	WorkingDir string `mapstructure:"working_dir"`
	// ConfigDir holds the manifest on the host.
	ConfigDir string   `mapstructure:"config_dir"`
	Volumes   []string `mapstructure:"volumes"`
	StackFile string   `mapstructure:"stack_file"`
	User      *string  `mapstructure:"user"`
}

// Validate checks the required fields.
func (c StackDeployConfig) Validate() error {
	if c.StackName == "" {
		return invalidParams(StackDeployName, "stack_name is required")
	}
	if c.WorkingDir == "" {
		return invalidParams(StackDeployName, "working_dir is required")
	}
	if c.ConfigDir == "" {
		return invalidParams(StackDeployName, "config_dir is required")
	}
	return nil
}

// StackDeployAction deploys a Swarm stack with `docker stack deploy`.
//
// Every file-backed config and secret in the manifest is fingerprinted and
// passed to the deploy as an environment variable, so a manifest that
// references ${APP_CONFIG} in a config name rolls the config whenever the
// file content changes.
type StackDeployAction struct {
	cfg  StackDeployConfig
	deps Deps
}

// NewStackDeployAction creates a StackDeployAction.
func NewStackDeployAction(cfg StackDeployConfig, deps Deps) (*StackDeployAction, error) {
	if cfg.StackFile == "" {
		cfg.StackFile = DefaultStackFile
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &StackDeployAction{cfg: cfg, deps: deps.withDefaults()}, nil
}

func newStackDeployFromParams(params map[string]any, deps Deps) (Action, error) {
	var cfg StackDeployConfig
	if err := decodeParams(StackDeployName, params, &cfg); err != nil {
		return nil, err
	}
	return NewStackDeployAction(cfg, deps)
}

// Name implements Action.
func (a *StackDeployAction) Name() string {
	return StackDeployName
}

// Run implements Action.
func (a *StackDeployAction) Run() error {
	versions, err := a.fileVersions()
	if err != nil {
		return err
	}

	if err := buildHelperImage(a.deps, StackDeployName, stackDeployImage, stackDeployDockerfile); err != nil {
		return err
	}

	env := make(map[string]string, len(versions)+1)
	for name, version := range versions {
		env[name] = version
	}
	if host := a.deps.Getenv("DOCKER_HOST"); host != "" {
		env["DOCKER_HOST"] = host
	}

	volumes := make([]string, 0, len(a.cfg.Volumes)+1)
	volumes = append(volumes, a.cfg.Volumes...)
	volumes = append(volumes, fmt.Sprintf("%s:%s:ro", a.cfg.WorkingDir, a.cfg.WorkingDir))

	a.deps.Logger.Info("deploying stack",
		"stack", a.cfg.StackName,
		"stack_file", a.cfg.StackFile,
		"versions", len(versions),
	)

	return runHelper(a.deps, StackDeployName, docker.ContainerSpec{
		Image:      stackDeployImage,
		Command:    deployCommand(a.cfg.StackFile, a.cfg.StackName),
		Env:        env,
		Volumes:    volumes,
		WorkingDir: a.cfg.WorkingDir,
		User:       valueOf(a.cfg.User),
	})
}

// fileVersions fingerprints the files behind the manifest's configs and
// secrets. Relative paths resolve against the manifest's directory. Files
// missing on disk are skipped.
func (a *StackDeployAction) fileVersions() (map[string]string, error) {
	manifestPath := filepath.Join(a.cfg.ConfigDir, a.cfg.StackFile)
	m, err := readManifest(manifestPath)
	if err != nil {
		return nil, err
	}

	baseDir := filepath.Dir(manifestPath)
	versions := make(map[string]string)

	for _, ref := range manifest.FileRefs(m) {
		path := ref.File
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}

		content, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			a.deps.Logger.Warn("referenced file not found, skipping",
				"section", string(ref.Section),
				"key", ref.Key,
				"path", path,
			)
			continue
		}
		if err != nil {
			return nil, err
		}

		name := manifest.VariableName(path)
		if _, dup := versions[name]; dup {
			a.deps.Logger.Warn("fingerprint variable reused, later file wins",
				"variable", name,
				"path", path,
			)
		}
		versions[name] = manifest.Fingerprint(content)
	}

	return versions, nil
}

func deployCommand(stackFile, stackName string) []string {
	return []string{
		"docker", "stack", "deploy",
		"-c", stackFile,
		"--resolve-image=always",
		"--with-registry-auth",
		stackName,
	}
}
