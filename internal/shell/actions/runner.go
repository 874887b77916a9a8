package actions

import (
	"log/slog"
	"os"
	"time"

	"github.com/artpar/stack-updater/internal/core/render"
	"github.com/google/uuid"
)

// =============================================================================
// Steps
// =============================================================================

// Step is one configured action invocation.
type Step struct {
	Name   string         `mapstructure:"name"`
	Action string         `mapstructure:"action"`
	Params map[string]any `mapstructure:"params"`
}

// Label returns the step name, falling back to the action name.
func (s Step) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Action
}

// =============================================================================
// Runner
// =============================================================================

// Runner renders and executes steps in order, stopping at the first failure.
type Runner struct {
	registry *Registry
	deps     Deps
	vars     map[string]string

	environ func() []string
	now     func() time.Time
	newID   func() string
}

// NewRunner creates a Runner. vars are exposed to templates as .Vars and to
// ${VAR} interpolation ahead of the environment.
func NewRunner(registry *Registry, deps Deps, vars map[string]string) *Runner {
	return &Runner{
		registry: registry,
		deps:     deps.withDefaults(),
		vars:     vars,
		environ:  os.Environ,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Run executes steps. The returned error is a *StepError wrapping the
// failing step's error.
func (r *Runner) Run(steps []Step) error {
	runID := r.newID()
	logger := r.deps.Logger.With("run", runID)

	for i, step := range steps {
		label := step.Label()
		stepLogger := logger.With("step", label, "action", step.Action)

		action, err := r.prepare(runID, step, stepLogger)
		if err != nil {
			return &StepError{Index: i, Step: label, Action: step.Action, Err: err}
		}

		stepLogger.Info("step started", "index", i+1, "total", len(steps))
		start := time.Now()

		if err := action.Run(); err != nil {
			stepLogger.Error("step failed", "error", err, "duration", time.Since(start))
			return &StepError{Index: i, Step: label, Action: step.Action, Err: err}
		}

		stepLogger.Info("step completed", "duration", time.Since(start))
	}

	return nil
}

// Validate renders and constructs every step without running any of them.
func (r *Runner) Validate(steps []Step) error {
	runID := r.newID()
	for i, step := range steps {
		if _, err := r.prepare(runID, step, r.deps.Logger); err != nil {
			return &StepError{Index: i, Step: step.Label(), Action: step.Action, Err: err}
		}
	}
	return nil
}

// prepare renders a step's params and constructs its action.
func (r *Runner) prepare(runID string, step Step, logger *slog.Logger) (Action, error) {
	renderer := render.New(render.Context{
		Env:  render.EnvMap(r.environ()),
		Vars: r.vars,
		Run: render.RunInfo{
			ID:      runID,
			Action:  step.Action,
			Step:    step.Label(),
			Started: r.now(),
		},
	})

	params, err := renderer.RenderParams(step.Params)
	if err != nil {
		return nil, err
	}

	deps := r.deps
	deps.Logger = logger
	deps.RunID = runID

	return r.registry.New(step.Action, params, deps)
}

// Select returns the steps whose name or action matches one of names, in
// configured order. With no names every step is returned.
func Select(steps []Step, names []string) ([]Step, error) {
	if len(names) == 0 {
		return steps, nil
	}

	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}

	matched := make(map[string]bool, len(names))
	var selected []Step
	for _, s := range steps {
		hit := false
		if s.Name != "" && wanted[s.Name] {
			matched[s.Name] = true
			hit = true
		}
		if wanted[s.Action] {
			matched[s.Action] = true
			hit = true
		}
		if hit {
			selected = append(selected, s)
		}
	}

	for _, n := range names {
		if !matched[n] {
			return nil, &Error{Action: n, Message: "no configured step with this name or action", Err: ErrUnknownAction}
		}
	}

	return selected, nil
}
