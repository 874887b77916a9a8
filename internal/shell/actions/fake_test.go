package actions

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/artpar/stack-updater/internal/shell/docker"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Fake Docker Client
// =============================================================================

// fakeDocker records every call made by an action.
type fakeDocker struct {
	calls    []string
	builds   []docker.BuildSpec
	runs     []docker.ContainerSpec
	creates  []docker.NetworkSpec
	networks map[string]string // name -> id

	buildErr  error
	runOutput map[string]string // first command word -> output
	runErr    map[string]error  // first command word -> error
	listErr   error
	closed    bool
}

func newFakeDocker() *fakeDocker {
	return &fakeDocker{
		networks:  map[string]string{},
		runOutput: map[string]string{},
		runErr:    map[string]error{},
	}
}

func (f *fakeDocker) BuildImage(spec docker.BuildSpec) error {
	f.calls = append(f.calls, "build "+spec.Tag)
	f.builds = append(f.builds, spec)
	return f.buildErr
}

func (f *fakeDocker) RunContainer(spec docker.ContainerSpec) (string, error) {
	f.calls = append(f.calls, "run "+strings.Join(spec.Command, " "))
	f.runs = append(f.runs, spec)
	key := ""
	if len(spec.Command) > 0 {
		key = spec.Command[0]
	}
	return f.runOutput[key], f.runErr[key]
}

func (f *fakeDocker) ListNetworks(name string) ([]docker.NetworkInfo, error) {
	f.calls = append(f.calls, "list "+name)
	if f.listErr != nil {
		return nil, f.listErr
	}
	if id, ok := f.networks[name]; ok {
		return []docker.NetworkInfo{{ID: id, Name: name, Driver: "overlay"}}, nil
	}
	return nil, nil
}

func (f *fakeDocker) CreateNetwork(spec docker.NetworkSpec) (string, error) {
	f.calls = append(f.calls, "create "+spec.Name)
	f.creates = append(f.creates, spec)
	id := "net-" + spec.Name
	f.networks[spec.Name] = id
	return id, nil
}

func (f *fakeDocker) Ping() error { return nil }

func (f *fakeDocker) Close() error {
	f.closed = true
	return nil
}

// =============================================================================
// Test Helpers
// =============================================================================

var errDaemon = errors.New("Cannot connect to the Docker daemon")

func testDeps(f *fakeDocker) (Deps, *bytes.Buffer) {
	var out bytes.Buffer
	return Deps{
		Docker: f,
		Logger: slog.New(slog.DiscardHandler),
		Out:    &out,
		Getenv: func(string) string { return "" },
	}, &out
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func strPtr(s string) *string {
	return &s
}
