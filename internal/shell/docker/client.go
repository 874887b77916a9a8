// Package docker provides the Docker engine client used by the updater actions.
package docker

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/docker/docker/api/types/build"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/google/uuid"
)

// =============================================================================
// Docker Client Implementation
// =============================================================================

// DockerClient implements the Client interface using the Docker SDK.
type DockerClient struct {
	api         engineAPI
	buildOutput io.Writer
}

// NewDockerClient creates a new Docker client.
// If host is empty, it uses the default Docker host from environment.
// On macOS with Docker Desktop, it automatically detects the correct socket.
func NewDockerClient(host string) (*DockerClient, error) {
	var opts []client.Opt
	opts = append(opts, client.FromEnv)
	opts = append(opts, client.WithAPIVersionNegotiation())

	if host != "" {
		opts = append(opts, client.WithHost(host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, NewDockerError("NewDockerClient", "", "", "failed to create client", ErrConnectionFailed)
	}

	// Try to ping with default settings
	ctx := context.Background()
	if _, pingErr := cli.Ping(ctx); pingErr != nil && host == "" {
		// If default socket fails, try Docker Desktop socket on macOS
		homeDir, _ := os.UserHomeDir()
		dockerDesktopSocket := "unix://" + homeDir + "/.docker/run/docker.sock"

		cli2, err2 := client.NewClientWithOpts(
			client.WithHost(dockerDesktopSocket),
			client.WithAPIVersionNegotiation(),
		)
		if err2 == nil {
			if _, pingErr2 := cli2.Ping(ctx); pingErr2 == nil {
				cli.Close()
				return newDockerClient(cli2), nil
			}
			cli2.Close()
		}
	}

	return newDockerClient(cli), nil
}

func newDockerClient(api engineAPI) *DockerClient {
	return &DockerClient{api: api, buildOutput: io.Discard}
}

// SetBuildOutput sets where image build progress is written.
// Build progress is discarded by default.
func (d *DockerClient) SetBuildOutput(w io.Writer) {
	if w == nil {
		w = io.Discard
	}
	d.buildOutput = w
}

// Ping checks if Docker daemon is reachable.
func (d *DockerClient) Ping() error {
	ctx := context.Background()
	_, err := d.api.Ping(ctx)
	if err != nil {
		return NewDockerError("Ping", "", "", fmt.Sprintf("failed to ping docker: %v", err), ErrConnectionFailed)
	}
	return nil
}

// Close closes the Docker client connection.
func (d *DockerClient) Close() error {
	return d.api.Close()
}

// =============================================================================
// Image Operations
// =============================================================================

// BuildImage builds and tags an image from an inline Dockerfile.
// Unchanged Dockerfiles hit the build cache, so rebuilding is cheap.
func (d *DockerClient) BuildImage(spec BuildSpec) error {
	ctx := context.Background()

	buildContext, err := dockerfileContext(spec.Dockerfile)
	if err != nil {
		return NewDockerError("BuildImage", "image", spec.Tag, err.Error(), ErrImageBuildFailed)
	}

	resp, err := d.api.ImageBuild(ctx, buildContext, build.ImageBuildOptions{
		Tags:        []string{spec.Tag},
		Dockerfile:  "Dockerfile",
		Labels:      spec.Labels,
		Remove:      true,
		ForceRemove: true,
	})
	if err != nil {
		return NewDockerError("BuildImage", "image", spec.Tag, err.Error(), ErrImageBuildFailed)
	}
	defer resp.Body.Close()

	// The build only finishes once the progress stream is drained; errors
	// reported by the daemon arrive inside the stream.
	if err := jsonmessage.DisplayJSONMessagesStream(resp.Body, d.buildOutput, 0, false, nil); err != nil {
		return NewDockerError("BuildImage", "image", spec.Tag, err.Error(), ErrImageBuildFailed)
	}

	return nil
}

// dockerfileContext returns a tar build context holding a single Dockerfile.
func dockerfileContext(dockerfile string) (io.Reader, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	content := []byte(dockerfile)
	hdr := &tar.Header{
		Name:    "Dockerfile",
		Mode:    0644,
		Size:    int64(len(content)),
		ModTime: time.Unix(0, 0),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return nil, fmt.Errorf("write build context header: %w", err)
	}
	if _, err := tw.Write(content); err != nil {
		return nil, fmt.Errorf("write build context: %w", err)
	}
	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("close build context: %w", err)
	}

	return &buf, nil
}

// =============================================================================
// Container Operations
// =============================================================================

// RunContainer creates a helper container, runs its command to completion and
// returns the combined stdout/stderr output.
// The container is removed exactly once, whether the command succeeded or not.
// A non-zero exit status is reported as an *ExitError wrapped in a DockerError.
func (d *DockerClient) RunContainer(spec ContainerSpec) (output string, err error) {
	ctx := context.Background()

	name := spec.Name
	if name == "" {
		name = "stack-updater-" + uuid.NewString()
	}

	config := &container.Config{
		Image:      spec.Image,
		Cmd:        spec.Command,
		WorkingDir: spec.WorkingDir,
		User:       spec.User,
		Labels:     spec.Labels,
		Env:        envList(spec.Env),
	}

	hostConfig := &container.HostConfig{
		Binds: spec.Volumes,
	}

	resp, err := d.api.ContainerCreate(ctx, config, hostConfig, nil, nil, name)
	if err != nil {
		return "", NewDockerError("RunContainer", "container", name, err.Error(), err)
	}

	defer func() {
		removeErr := d.api.ContainerRemove(ctx, resp.ID, container.RemoveOptions{
			Force:         true,
			RemoveVolumes: true,
		})
		if removeErr != nil && err == nil {
			err = NewDockerError("RunContainer", "container", resp.ID, "failed to remove container: "+removeErr.Error(), removeErr)
		}
	}()

	// Register the wait before starting so a fast exit is not missed.
	waitCh, waitErrCh := d.api.ContainerWait(ctx, resp.ID, container.WaitConditionNextExit)

	if err := d.api.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return "", NewDockerError("RunContainer", "container", resp.ID, err.Error(), err)
	}

	var statusCode int64
	select {
	case waitErr := <-waitErrCh:
		return "", NewDockerError("RunContainer", "container", resp.ID, waitErr.Error(), waitErr)
	case result := <-waitCh:
		if result.Error != nil {
			return "", NewDockerError("RunContainer", "container", resp.ID, result.Error.Message, fmt.Errorf("%s", result.Error.Message))
		}
		statusCode = result.StatusCode
	}

	output, logErr := d.containerOutput(ctx, resp.ID)

	if statusCode != 0 {
		exitErr := &ExitError{
			Command:    spec.Command,
			StatusCode: statusCode,
			Output:     output,
		}
		return output, errors.Join(
			NewDockerError("RunContainer", "container", resp.ID, exitErr.Error(), exitErr),
			logErr,
		)
	}
	if logErr != nil {
		return "", logErr
	}

	return output, nil
}

// containerOutput collects the demultiplexed stdout and stderr of a container.
func (d *DockerClient) containerOutput(ctx context.Context, containerID string) (string, error) {
	reader, err := d.api.ContainerLogs(ctx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return "", NewDockerError("RunContainer", "container", containerID, "failed to read logs: "+err.Error(), err)
	}
	defer reader.Close()

	var out bytes.Buffer
	if _, err := stdcopy.StdCopy(&out, &out, reader); err != nil {
		return "", NewDockerError("RunContainer", "container", containerID, "failed to read logs: "+err.Error(), err)
	}

	return out.String(), nil
}

// envList converts an environment map into sorted KEY=value pairs.
func envList(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}

	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	list := make([]string, 0, len(keys))
	for _, k := range keys {
		list = append(list, fmt.Sprintf("%s=%s", k, env[k]))
	}
	return list
}

// =============================================================================
// Network Operations
// =============================================================================

// ListNetworks returns the networks whose name is exactly name.
// The engine's name filter matches substrings, so results are narrowed here.
func (d *DockerClient) ListNetworks(name string) ([]NetworkInfo, error) {
	ctx := context.Background()

	networks, err := d.api.NetworkList(ctx, network.ListOptions{
		Filters: filters.NewArgs(filters.Arg("name", name)),
	})
	if err != nil {
		return nil, NewDockerError("ListNetworks", "network", name, err.Error(), err)
	}

	var result []NetworkInfo
	for _, n := range networks {
		if n.Name != name {
			continue
		}
		result = append(result, NetworkInfo{
			ID:     n.ID,
			Name:   n.Name,
			Driver: n.Driver,
			Scope:  n.Scope,
		})
	}

	return result, nil
}

// CreateNetwork creates a new Docker network.
func (d *DockerClient) CreateNetwork(spec NetworkSpec) (string, error) {
	ctx := context.Background()

	driver := spec.Driver
	if driver == "" {
		driver = "bridge"
	}

	resp, err := d.api.NetworkCreate(ctx, spec.Name, network.CreateOptions{
		Driver:     driver,
		Attachable: spec.Attachable,
		Labels:     spec.Labels,
	})
	if err != nil {
		if strings.Contains(err.Error(), "already exists") {
			return "", NewDockerError("CreateNetwork", "network", spec.Name, "network already exists", ErrNetworkAlreadyExists)
		}
		return "", NewDockerError("CreateNetwork", "network", spec.Name, err.Error(), err)
	}

	return resp.ID, nil
}
