package actions

import (
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// Registry
// =============================================================================

// Factory constructs an action from rendered params.
type Factory func(params map[string]any, deps Deps) (Action, error)

// Registration describes a named action.
type Registration struct {
	Name        string
	Description string
	Factory     Factory
}

// Registry maps action names to factories. It is populated once at startup
// and only read afterwards.
type Registry struct {
	entries map[string]Registration
}

// NewRegistry returns a registry holding the built-in actions.
func NewRegistry() *Registry {
	r := &Registry{entries: make(map[string]Registration)}
	for _, reg := range builtinActions() {
		if err := r.Register(reg); err != nil {
			panic(err)
		}
	}
	return r
}

func builtinActions() []Registration {
	return []Registration{
		{
			Name:        GitUpdateName,
			Description: "Clone or pull a Git repository into a mounted directory, optionally unlocking git-crypt",
			Factory:     newGitUpdateFromParams,
		},
		{
			Name:        PrepareNetworksName,
			Description: "Create the external overlay networks a stack manifest expects",
			Factory:     newPrepareNetworksFromParams,
		},
		{
			Name:        StackDeployName,
			Description: "Deploy a Swarm stack with config and secret fingerprints in the environment",
			Factory:     newStackDeployFromParams,
		},
	}
}

// Register adds an action. Names must be unique.
func (r *Registry) Register(reg Registration) error {
	if reg.Name == "" || reg.Factory == nil {
		return fmt.Errorf("register action %q: name and factory are required", reg.Name)
	}
	if _, exists := r.entries[reg.Name]; exists {
		return fmt.Errorf("register action %q: %w", reg.Name, ErrDuplicateAction)
	}
	r.entries[reg.Name] = reg
	return nil
}

// New constructs the action registered under name.
func (r *Registry) New(name string, params map[string]any, deps Deps) (Action, error) {
	reg, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w %q (available: %s)", ErrUnknownAction, name, strings.Join(r.Names(), ", "))
	}
	return reg.Factory(params, deps.withDefaults())
}

// Lookup returns the registration for name.
func (r *Registry) Lookup(name string) (Registration, bool) {
	reg, ok := r.entries[name]
	return reg, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns the registrations sorted by name.
func (r *Registry) List() []Registration {
	list := make([]Registration, 0, len(r.entries))
	for _, name := range r.Names() {
		list = append(list, r.entries[name])
	}
	return list
}
