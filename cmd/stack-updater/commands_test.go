package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/artpar/stack-updater/internal/shell/docker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Helpers
// =============================================================================

type fakeClient struct {
	pingErr  error
	networks map[string]bool
	created  []docker.NetworkSpec
	closed   bool
}

func (f *fakeClient) BuildImage(spec docker.BuildSpec) error { return nil }

func (f *fakeClient) RunContainer(spec docker.ContainerSpec) (string, error) { return "", nil }

func (f *fakeClient) ListNetworks(name string) ([]docker.NetworkInfo, error) {
	if f.networks[name] {
		return []docker.NetworkInfo{{ID: name + "-id", Name: name}}, nil
	}
	return nil, nil
}

func (f *fakeClient) CreateNetwork(spec docker.NetworkSpec) (string, error) {
	f.created = append(f.created, spec)
	return spec.Name + "-id", nil
}

func (f *fakeClient) Ping() error  { return f.pingErr }
func (f *fakeClient) Close() error { f.closed = true; return nil }

func testApp(t *testing.T, cli *fakeClient) (*app, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	clearEnv(t)

	var stdout, stderr bytes.Buffer
	a := newApp(&stdout, &stderr)
	a.newClient = func(host string) (docker.Client, error) {
		if cli == nil {
			return nil, errors.New("no daemon")
		}
		return cli, nil
	}
	return a, &stdout, &stderr
}

const manifestContent = `
version: "3.8"
networks:
  proxy:
    external: true
  backend:
    driver: overlay
`

func networksConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stack.yml"), []byte(manifestContent), 0644))

	return writeConfig(t, `
steps:
  - name: networks
    action: stack-prepare-networks
    params:
      config_dir: "`+dir+`"
`)
}

// =============================================================================
// Command Tests
// =============================================================================

func TestVersionCommand(t *testing.T) {
	a, stdout, _ := testApp(t, nil)

	code := a.execute([]string{"version"})

	assert.Equal(t, ExitSuccess, code)
	assert.Equal(t, "stack-updater dev (built unknown)\n", stdout.String())
}

func TestActionsCommand(t *testing.T) {
	a, stdout, _ := testApp(t, nil)

	code := a.execute([]string{"actions"})

	assert.Equal(t, ExitSuccess, code)
	out := stdout.String()
	assert.Contains(t, out, "git-update")
	assert.Contains(t, out, "stack-deploy")
	assert.Contains(t, out, "stack-prepare-networks")
}

func TestRunCommand_PreparesNetworks(t *testing.T) {
	cli := &fakeClient{networks: map[string]bool{}}
	a, _, _ := testApp(t, cli)

	code := a.execute([]string{"run", "-c", networksConfig(t)})

	assert.Equal(t, ExitSuccess, code)
	require.Len(t, cli.created, 1)
	assert.Equal(t, "proxy", cli.created[0].Name)
	assert.Equal(t, "overlay", cli.created[0].Driver)
	assert.True(t, cli.closed)
}

func TestRunCommand_SelectsSteps(t *testing.T) {
	cli := &fakeClient{networks: map[string]bool{}}
	a, _, _ := testApp(t, cli)

	code := a.execute([]string{"run", "-c", networksConfig(t), "missing-step"})

	assert.Equal(t, ExitConfigError, code)
	assert.Empty(t, cli.created)
}

func TestRunCommand_NoSteps(t *testing.T) {
	cli := &fakeClient{}
	a, _, stderr := testApp(t, cli)

	code := a.execute([]string{"run", "-c", writeConfig(t, "log:\n  level: info\n")})

	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, stderr.String(), "no steps configured")
	assert.False(t, cli.closed, "docker is not contacted without steps")
}

func TestRunCommand_ConfigError(t *testing.T) {
	a, _, stderr := testApp(t, &fakeClient{})

	code := a.execute([]string{"run", "-c", "/nonexistent/config.yaml"})

	assert.Equal(t, ExitConfigError, code)
	assert.Contains(t, stderr.String(), "load config")
}

func TestRunCommand_DockerUnavailable(t *testing.T) {
	a, _, _ := testApp(t, nil)

	code := a.execute([]string{"run", "-c", networksConfig(t)})

	assert.Equal(t, ExitDockerError, code)
}

func TestRunCommand_PingFails(t *testing.T) {
	cli := &fakeClient{pingErr: docker.ErrConnectionFailed}
	a, _, _ := testApp(t, cli)

	code := a.execute([]string{"run", "-c", networksConfig(t)})

	assert.Equal(t, ExitDockerError, code)
	assert.Empty(t, cli.created)
	assert.True(t, cli.closed)
}

func TestRunCommand_ActionError(t *testing.T) {
	cli := &fakeClient{}
	a, _, stderr := testApp(t, cli)

	path := writeConfig(t, `
steps:
  - name: networks
    action: stack-prepare-networks
    params:
      config_dir: /nonexistent/stack
`)
	code := a.execute([]string{"run", "-c", path})

	assert.Equal(t, ExitActionError, code)
	assert.Contains(t, stderr.String(), "networks")
}

func TestRunCommand_ConfigErrorsInSteps(t *testing.T) {
	tests := []struct {
		name  string
		steps string
	}{
		{"unknown action", "  - action: no-such-action\n"},
		{"unknown param", "  - action: stack-prepare-networks\n    params:\n      config_dir: /srv\n      colour: blue\n"},
		{"bad template", "  - action: stack-prepare-networks\n    params:\n      config_dir: \"{{ .Env.HOME \"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cli := &fakeClient{}
			a, _, _ := testApp(t, cli)

			code := a.execute([]string{"run", "-c", writeConfig(t, "steps:\n"+tt.steps)})

			assert.Equal(t, ExitConfigError, code)
			assert.Empty(t, cli.created)
		})
	}
}

func TestValidateCommand(t *testing.T) {
	a, stdout, _ := testApp(t, nil)

	code := a.execute([]string{"validate", "-c", networksConfig(t)})

	assert.Equal(t, ExitSuccess, code)
	assert.Equal(t, "1 step(s) valid\n", stdout.String())
}

func TestValidateCommand_BadParams(t *testing.T) {
	a, _, stderr := testApp(t, nil)

	path := writeConfig(t, `
steps:
  - action: stack-deploy
    params:
      stack_name: app
`)
	code := a.execute([]string{"validate", "-c", path})

	assert.Equal(t, ExitConfigError, code)
	assert.Contains(t, stderr.String(), "stack-deploy")
}

func TestUnknownCommand(t *testing.T) {
	a, _, stderr := testApp(t, nil)

	code := a.execute([]string{"deploy-everything"})

	assert.Equal(t, ExitConfigError, code)
	assert.Contains(t, stderr.String(), "unknown command")
}

func TestHostEnv(t *testing.T) {
	t.Setenv("DOCKER_HOST", "unix:///var/run/docker.sock")
	t.Setenv("STACK_UPDATER_TEST_VALUE", "kept")

	assert.Equal(t, "tcp://manager:2376", hostEnv("tcp://manager:2376")("DOCKER_HOST"))
	assert.Equal(t, "unix:///var/run/docker.sock", hostEnv("")("DOCKER_HOST"))
	assert.Equal(t, "kept", hostEnv("tcp://manager:2376")("STACK_UPDATER_TEST_VALUE"))
}
