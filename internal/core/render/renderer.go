// Package render resolves templated configuration values.
//
// A value is a Go text/template with the sprig function library
// (`{{ .Vars.branch | default "main" }}`) whose literal text may also use
// compose-style interpolation (`${VAR}`, `${VAR:-default}`, `$$` escapes)
// resolved against the user variables and then the environment. Substituted
// values are never interpreted again.
package render

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"text/template"
	"text/template/parse"
	"time"

	"github.com/Masterminds/sprig/v3"
	interpolation "github.com/compose-spec/compose-go/v2/template"
)

// =============================================================================
// Context
// =============================================================================

// RunInfo describes the step being rendered.
type RunInfo struct {
	ID      string
	Action  string
	Step    string
	Started time.Time
}

// Context is the data a template is executed against.
type Context struct {
	Env  map[string]string
	Vars map[string]string
	Run  RunInfo
}

// EnvMap converts KEY=value pairs (as returned by os.Environ) into a map.
func EnvMap(environ []string) map[string]string {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			continue
		}
		env[key] = value
	}
	return env
}

// =============================================================================
// Renderer
// =============================================================================

// Renderer renders strings against a fixed Context.
type Renderer struct {
	ctx   Context
	funcs template.FuncMap
}

// New creates a Renderer for ctx.
func New(ctx Context) *Renderer {
	if ctx.Env == nil {
		ctx.Env = map[string]string{}
	}
	if ctx.Vars == nil {
		ctx.Vars = map[string]string{}
	}
	return &Renderer{
		ctx:   ctx,
		funcs: sprig.TxtFuncMap(),
	}
}

// Render returns value with every placeholder substituted.
// Missing keys inside {{ }} and unset ${VAR} without a default both render
// as the empty string. Interpolation only applies to the literal text of the
// value: whatever a {{ }} action produces is emitted as is, even when it
// contains "$".
func (r *Renderer) Render(value string) (string, error) {
	if !strings.Contains(value, "{{") {
		if !strings.Contains(value, "$") {
			return value, nil
		}
		substituted, err := interpolation.Substitute(value, r.lookup)
		if err != nil {
			return "", NewRenderError(value, "invalid interpolation", err)
		}
		return substituted, nil
	}

	tmpl, err := template.New("value").Funcs(r.funcs).Option("missingkey=zero").Parse(value)
	if err != nil {
		return "", NewRenderError(value, "invalid template", err)
	}

	for _, t := range tmpl.Templates() {
		if t.Tree == nil {
			continue
		}
		if err := r.interpolateText(t.Tree.Root); err != nil {
			return "", NewRenderError(value, "invalid interpolation", err)
		}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, r.ctx); err != nil {
		return "", NewRenderError(value, "template execution failed", err)
	}
	return buf.String(), nil
}

// interpolateText substitutes ${VAR} in the text nodes below node.
func (r *Renderer) interpolateText(node parse.Node) error {
	switch n := node.(type) {
	case *parse.ListNode:
		if n == nil {
			return nil
		}
		for _, child := range n.Nodes {
			if err := r.interpolateText(child); err != nil {
				return err
			}
		}
	case *parse.TextNode:
		if !bytes.Contains(n.Text, []byte("$")) {
			return nil
		}
		substituted, err := interpolation.Substitute(string(n.Text), r.lookup)
		if err != nil {
			return err
		}
		n.Text = []byte(substituted)
	case *parse.IfNode:
		return r.interpolateBranch(&n.BranchNode)
	case *parse.RangeNode:
		return r.interpolateBranch(&n.BranchNode)
	case *parse.WithNode:
		return r.interpolateBranch(&n.BranchNode)
	}
	return nil
}

func (r *Renderer) interpolateBranch(b *parse.BranchNode) error {
	if err := r.interpolateText(b.List); err != nil {
		return err
	}
	return r.interpolateText(b.ElseList)
}

// RenderOptional renders value when set; nil stays nil.
func (r *Renderer) RenderOptional(value *string) (*string, error) {
	if value == nil {
		return nil, nil
	}
	rendered, err := r.Render(*value)
	if err != nil {
		return nil, err
	}
	return &rendered, nil
}

// RenderAll renders every element of values.
func (r *Renderer) RenderAll(values []string) ([]string, error) {
	if values == nil {
		return nil, nil
	}
	rendered := make([]string, len(values))
	for i, v := range values {
		out, err := r.Render(v)
		if err != nil {
			return nil, err
		}
		rendered[i] = out
	}
	return rendered, nil
}

// RenderParams renders every string found in params, descending into nested
// lists and mappings. Non-string scalars and nil values pass through.
func (r *Renderer) RenderParams(params map[string]any) (map[string]any, error) {
	if params == nil {
		return nil, nil
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rendered := make(map[string]any, len(params))
	for _, k := range keys {
		v, err := r.renderValue(params[k])
		if err != nil {
			return nil, fmt.Errorf("param %s: %w", k, err)
		}
		rendered[k] = v
	}
	return rendered, nil
}

func (r *Renderer) renderValue(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return r.Render(v)
	case []string:
		return r.RenderAll(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			rendered, err := r.renderValue(item)
			if err != nil {
				return nil, err
			}
			out[i] = rendered
		}
		return out, nil
	case map[string]any:
		return r.RenderParams(v)
	default:
		return value, nil
	}
}

// lookup resolves ${VAR}: user variables first, then the environment.
func (r *Renderer) lookup(name string) (string, bool) {
	if v, ok := r.ctx.Vars[name]; ok {
		return v, true
	}
	v, ok := r.ctx.Env[name]
	return v, ok
}
