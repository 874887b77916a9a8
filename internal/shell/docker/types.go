package docker

import (
	"context"
	"io"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/build"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// =============================================================================
// Image Types
// =============================================================================

// BuildSpec defines an image built from an inline Dockerfile.
type BuildSpec struct {
	Tag        string
	Dockerfile string
	Labels     map[string]string
}

// =============================================================================
// Container Types
// =============================================================================

// ContainerSpec defines a one-shot helper container.
// The container runs Command to completion and is removed afterwards.
type ContainerSpec struct {
	Name       string // "" for a generated name
	Image      string
	Command    []string
	Env        map[string]string
	Volumes    []string // hostPath:containerPath[:mode]
	WorkingDir string
	User       string
	Labels     map[string]string
}

// =============================================================================
// Network Types
// =============================================================================

// NetworkSpec defines the specification for creating a network.
type NetworkSpec struct {
	Name       string
	Driver     string // "bridge", "overlay", etc.
	Attachable bool
	Labels     map[string]string
}

// NetworkInfo contains information about a network.
type NetworkInfo struct {
	ID     string
	Name   string
	Driver string
	Scope  string
}

// =============================================================================
// Client Interface
// =============================================================================

// Client defines the runtime client consumed by the actions.
type Client interface {
	// Image operations
	BuildImage(spec BuildSpec) error

	// Container operations
	RunContainer(spec ContainerSpec) (output string, err error)

	// Network operations
	ListNetworks(name string) ([]NetworkInfo, error)
	CreateNetwork(spec NetworkSpec) (networkID string, err error)

	// Health operations
	Ping() error
	Close() error
}

// engineAPI is the subset of the Docker SDK client used by DockerClient.
// *client.Client satisfies it.
type engineAPI interface {
	ImageBuild(ctx context.Context, buildContext io.Reader, options build.ImageBuildOptions) (build.ImageBuildResponse, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	NetworkList(ctx context.Context, options network.ListOptions) ([]network.Summary, error)
	NetworkCreate(ctx context.Context, name string, options network.CreateOptions) (network.CreateResponse, error)
	Ping(ctx context.Context) (types.Ping, error)
	Close() error
}

// =============================================================================
// Label Constants
// =============================================================================

const (
	LabelManaged = "com.stack-updater.managed"
	LabelAction  = "com.stack-updater.action"
	LabelRun     = "com.stack-updater.run"
)
