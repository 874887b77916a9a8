package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/artpar/stack-updater/internal/core/render"
	"github.com/artpar/stack-updater/internal/shell/actions"
	"github.com/artpar/stack-updater/internal/shell/docker"
	"github.com/spf13/cobra"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess     = 0
	ExitConfigError = 1
	ExitDockerError = 3
	ExitActionError = 4
)

// CommandError carries the exit code a failed command maps to.
type CommandError struct {
	Op       string
	Err      error
	ExitCode int
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// =============================================================================
// Application
// =============================================================================

// app holds the process-level wiring shared by all commands.
type app struct {
	stdout io.Writer
	stderr io.Writer

	newClient func(host string) (docker.Client, error)

	configPath string
	logger     *slog.Logger
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		stdout: stdout,
		stderr: stderr,
		newClient: func(host string) (docker.Client, error) {
			return docker.NewDockerClient(host)
		},
	}
}

// execute runs the command line and returns the process exit code.
func (a *app) execute(args []string) int {
	root := a.rootCommand()
	root.SetArgs(args)

	err := root.Execute()
	if err == nil {
		return ExitSuccess
	}

	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		if a.logger != nil {
			a.logger.Error("command failed", "operation", cmdErr.Op, "error", cmdErr.Err)
		} else {
			fmt.Fprintf(a.stderr, "%s: %v\n", cmdErr.Op, cmdErr.Err)
		}
		return cmdErr.ExitCode
	}

	// Usage errors from cobra itself.
	fmt.Fprintf(a.stderr, "error: %v\n", err)
	return ExitConfigError
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "stack-updater",
		Short:         "Run deployment steps against a Docker Swarm host",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "Path to config file")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("log-format", "text", "Log format (text, json)")
	flags.String("docker-host", "", "Docker daemon address (defaults to DOCKER_HOST)")

	root.AddCommand(
		a.runCommand(),
		a.validateCommand(),
		a.actionsCommand(),
		a.versionCommand(),
	)
	return root
}

// loadConfig reads configuration and sets up the logger for cmd.
func (a *app) loadConfig(cmd *cobra.Command) (*Config, error) {
	cfg, err := LoadConfig(a.configPath, cmd.Flags())
	if err != nil {
		return nil, &CommandError{Op: "load config", Err: err, ExitCode: ExitConfigError}
	}
	a.logger = SetupLogger(cfg, a.stderr)
	return cfg, nil
}

// =============================================================================
// Commands
// =============================================================================

func (a *app) runCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run [step-name...]",
		Short: "Run the configured steps, or only the named ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}

			steps, err := actions.Select(cfg.Steps, args)
			if err != nil {
				return &CommandError{Op: "select steps", Err: err, ExitCode: ExitConfigError}
			}
			if len(steps) == 0 {
				a.logger.Warn("no steps configured")
				return nil
			}

			a.logger.Info("starting stack-updater",
				"version", Version,
				"config", a.configPath,
				"steps", len(steps),
			)

			cli, err := a.newClient(cfg.Docker.Host)
			if err != nil {
				return &CommandError{Op: "connect docker", Err: err, ExitCode: ExitDockerError}
			}
			defer cli.Close()

			if err := cli.Ping(); err != nil {
				return &CommandError{Op: "connect docker", Err: err, ExitCode: ExitDockerError}
			}

			if out, ok := cli.(interface{ SetBuildOutput(io.Writer) }); ok && ParseLevel(cfg.Log.Level) <= slog.LevelDebug {
				out.SetBuildOutput(a.stderr)
			}

			runner := actions.NewRunner(actions.NewRegistry(), actions.Deps{
				Docker: cli,
				Logger: a.logger,
				Out:    cmd.OutOrStdout(),
				Getenv: hostEnv(cfg.Docker.Host),
			}, cfg.Vars)

			if err := runner.Run(steps); err != nil {
				code := ExitActionError
				if isConfigError(err) {
					code = ExitConfigError
				}
				return &CommandError{Op: "run", Err: err, ExitCode: code}
			}

			a.logger.Info("all steps completed")
			return nil
		},
	}
}

// isConfigError reports whether a step failed before its action ran because
// of the configuration: an unknown action, bad params or a bad template.
func isConfigError(err error) bool {
	return errors.Is(err, actions.ErrUnknownAction) ||
		errors.Is(err, actions.ErrInvalidParams) ||
		errors.Is(err, render.ErrRender)
}

// hostEnv looks up the process environment, reporting the configured
// daemon address as DOCKER_HOST so helper containers reach the same daemon.
func hostEnv(host string) func(string) string {
	return func(key string) string {
		if key == "DOCKER_HOST" && host != "" {
			return host
		}
		return os.Getenv(key)
	}
}

func (a *app) validateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [step-name...]",
		Short: "Check config, templates and step params without touching Docker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}

			steps, err := actions.Select(cfg.Steps, args)
			if err != nil {
				return &CommandError{Op: "select steps", Err: err, ExitCode: ExitConfigError}
			}

			runner := actions.NewRunner(actions.NewRegistry(), actions.Deps{Logger: a.logger}, cfg.Vars)
			if err := runner.Validate(steps); err != nil {
				return &CommandError{Op: "validate", Err: err, ExitCode: ExitConfigError}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%d step(s) valid\n", len(steps))
			return nil
		},
	}
}

func (a *app) actionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "actions",
		Short: "List the available actions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, reg := range actions.NewRegistry().List() {
				fmt.Fprintf(w, "%s\t%s\n", reg.Name, reg.Description)
			}
			return w.Flush()
		},
	}
}

func (a *app) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "stack-updater %s (built %s)\n", Version, BuildTime)
			return nil
		},
	}
}
