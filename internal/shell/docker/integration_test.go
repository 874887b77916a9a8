package docker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Helpers
// =============================================================================

func skipIfNoDocker(t *testing.T) Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping Docker integration test in short mode")
	}
	cli, err := NewDockerClient("")
	if err != nil {
		t.Skip("Docker not available:", err)
	}
	if err := cli.Ping(); err != nil {
		cli.Close()
		t.Skip("Docker not reachable:", err)
	}
	return cli
}

// Test image tag to identify test images
const testImage = "stack-updater-test"

// =============================================================================
// Integration Tests
// =============================================================================

func TestIntegration_Ping(t *testing.T) {
	cli := skipIfNoDocker(t)
	defer cli.Close()

	assert.NoError(t, cli.Ping())
}

func TestIntegration_BuildAndRun(t *testing.T) {
	cli := skipIfNoDocker(t)
	defer cli.Close()

	err := cli.BuildImage(BuildSpec{
		Tag:        testImage,
		Dockerfile: "FROM alpine:latest\n",
		Labels:     map[string]string{LabelManaged: "true"},
	})
	require.NoError(t, err)

	output, err := cli.RunContainer(ContainerSpec{
		Image:   testImage,
		Command: []string{"sh", "-c", "echo $GREETING"},
		Env:     map[string]string{"GREETING": "hello"},
		Labels:  map[string]string{LabelManaged: "true"},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello\n", output)
}

func TestIntegration_RunNonZeroExit(t *testing.T) {
	cli := skipIfNoDocker(t)
	defer cli.Close()

	require.NoError(t, cli.BuildImage(BuildSpec{Tag: testImage, Dockerfile: "FROM alpine:latest\n"}))

	_, err := cli.RunContainer(ContainerSpec{
		Image:   testImage,
		Command: []string{"sh", "-c", "echo failing >&2; exit 3"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrContainerExit)
}
