// Package actions implements the updater's named deployment actions.
//
// Each action is a linear sequence: build or reuse a helper image, run one or
// more commands in throwaway containers, report their output. Actions receive
// fully rendered parameters; template rendering happens in the Runner before
// an action is constructed.
package actions

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/artpar/stack-updater/internal/shell/docker"
	"github.com/go-viper/mapstructure/v2"
)

// =============================================================================
// Action Contract
// =============================================================================

// Action is a registered unit of work executed once.
type Action interface {
	// Name returns the name the action is registered under.
	Name() string
	// Run performs the action's effect. Errors from the Docker client are
	// returned unmodified.
	Run() error
}

// Deps are the collaborators shared by all actions.
type Deps struct {
	Docker docker.Client
	Logger *slog.Logger
	Out    io.Writer                // command output and progress lines
	Getenv func(key string) string // lookup in the invoking environment

	// RunID labels helper containers started during one Runner.Run.
	RunID string
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = slog.New(slog.DiscardHandler)
	}
	if d.Out == nil {
		d.Out = io.Discard
	}
	if d.Getenv == nil {
		d.Getenv = os.Getenv
	}
	return d
}

// =============================================================================
// Helpers
// =============================================================================

// decodeParams decodes rendered params into a typed config.
// Unknown keys are rejected.
func decodeParams(action string, params map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      out,
		ErrorUnused: true,
		TagName:     "mapstructure",
	})
	if err != nil {
		return invalidParams(action, err.Error())
	}
	if err := dec.Decode(params); err != nil {
		return invalidParams(action, err.Error())
	}
	return nil
}

// valueOf returns the value of an optional parameter, "" when absent.
func valueOf(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// runHelper runs one command in a throwaway helper container and prints its
// output. The output is printed even when the command fails.
func runHelper(deps Deps, action string, spec docker.ContainerSpec) error {
	spec.Labels = map[string]string{
		docker.LabelManaged: "true",
		docker.LabelAction:  action,
	}
	if deps.RunID != "" {
		spec.Labels[docker.LabelRun] = deps.RunID
	}

	deps.Logger.Info("running helper container",
		"action", action,
		"image", spec.Image,
		"command", strings.Join(spec.Command, " "),
		"working_dir", spec.WorkingDir,
	)

	output, err := deps.Docker.RunContainer(spec)
	if output != "" {
		fmt.Fprint(deps.Out, output)
		if !strings.HasSuffix(output, "\n") {
			fmt.Fprintln(deps.Out)
		}
	}
	return err
}

// buildHelperImage builds (or reuses from cache) a helper image.
func buildHelperImage(deps Deps, action, tag, dockerfile string) error {
	deps.Logger.Debug("building helper image", "action", action, "tag", tag)

	err := deps.Docker.BuildImage(docker.BuildSpec{
		Tag:        tag,
		Dockerfile: dockerfile,
		Labels:     map[string]string{docker.LabelManaged: "true"},
	})
	if err != nil {
		return err
	}

	deps.Logger.Info("helper image ready", "action", action, "tag", tag)
	return nil
}
