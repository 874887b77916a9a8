package actions

import (
	"os"
	"path/filepath"

	"github.com/artpar/stack-updater/internal/shell/docker"
)

// GitUpdateName is the registration name of GitUpdateAction.
const GitUpdateName = "git-update"

const (
	gitUpdaterImage   = "git-updater"
	gitUpdaterWorkDir = "/workdir"

	gitUpdaterDockerfile = `FROM debian:stable-slim
RUN apt-get update \
 && apt-get install -y --no-install-recommends git git-crypt openssl ca-certificates \
 && rm -rf /var/lib/apt/lists/*
`
)

// GitUpdateConfig holds the rendered parameters of a git-update step.
type GitUpdateConfig struct {
	// Volumes must mount the working tree on /workdir.
	Volumes  []string `mapstructure:"volumes"`
	CloneURL *string  `mapstructure:"clone_url"`
	// CheckDir is the host path checked for a .git directory.
	CheckDir *string `mapstructure:"check_dir"`
	CryptKey *string `mapstructure:"crypt_key"`
	User     *string `mapstructure:"user"`
}

// Validate checks the required fields.
func (c GitUpdateConfig) Validate() error {
	if len(c.Volumes) == 0 {
		return invalidParams(GitUpdateName, "volumes is required")
	}
	return nil
}

// GitUpdateAction updates a Git working tree on a mounted volume.
//
// The tree is cloned when CheckDir has no repository yet, pulled, and
// optionally unlocked with git-crypt. Every command runs in a throwaway
// container of the git-updater image.
type GitUpdateAction struct {
	cfg  GitUpdateConfig
	deps Deps
}

// NewGitUpdateAction creates a GitUpdateAction.
func NewGitUpdateAction(cfg GitUpdateConfig, deps Deps) (*GitUpdateAction, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &GitUpdateAction{cfg: cfg, deps: deps.withDefaults()}, nil
}

func newGitUpdateFromParams(params map[string]any, deps Deps) (Action, error) {
	var cfg GitUpdateConfig
	if err := decodeParams(GitUpdateName, params, &cfg); err != nil {
		return nil, err
	}
	return NewGitUpdateAction(cfg, deps)
}

// Name implements Action.
func (a *GitUpdateAction) Name() string {
	return GitUpdateName
}

// Run implements Action.
func (a *GitUpdateAction) Run() error {
	checkDir := valueOf(a.cfg.CheckDir)
	cloneURL := valueOf(a.cfg.CloneURL)

	needsClone := checkDir != "" && !hasRepository(checkDir)
	if needsClone && cloneURL == "" {
		return Fail(GitUpdateName, "working directory does not contain a Git repository and no clone_url is set")
	}

	if err := buildHelperImage(a.deps, GitUpdateName, gitUpdaterImage, gitUpdaterDockerfile); err != nil {
		return err
	}

	if needsClone {
		a.deps.Logger.Info("cloning repository", "check_dir", checkDir)
		if err := a.run("git", "clone", cloneURL, "."); err != nil {
			return err
		}
	}

	if err := a.run("git", "pull"); err != nil {
		return err
	}

	if key := valueOf(a.cfg.CryptKey); key != "" {
		if err := a.run("git-crypt", "unlock", key); err != nil {
			return err
		}
	}

	return nil
}

func (a *GitUpdateAction) run(command ...string) error {
	return runHelper(a.deps, GitUpdateName, docker.ContainerSpec{
		Image:      gitUpdaterImage,
		Command:    command,
		Volumes:    a.cfg.Volumes,
		WorkingDir: gitUpdaterWorkDir,
		User:       valueOf(a.cfg.User),
	})
}

// hasRepository reports whether dir holds Git metadata.
func hasRepository(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}
