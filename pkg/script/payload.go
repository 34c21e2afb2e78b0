package script

import (
	"context"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"gopkg.in/yaml.v3"
)

// Payload is the opaque executable unit a step carries. It is bound at
// tree-construction time and invoked through the fixed Env capability
// surface; the execution core never inspects it.
type Payload interface {
	Invoke(ctx context.Context, env *Env) error
}

// PayloadFunc adapts a closure to Payload. Hosts that build trees
// programmatically use it directly.
type PayloadFunc func(ctx context.Context, env *Env) error

func (f PayloadFunc) Invoke(ctx context.Context, env *Env) error { return f(ctx, env) }

// ExprPayload evaluates a compiled expr program against the merged variable
// bags. An evaluation error or a false boolean result fails the step; any
// other result passes.
type ExprPayload struct {
	Source string
	prog   *vm.Program
}

// CompilePayload compiles an expr source into a payload.
func CompilePayload(source string) (*ExprPayload, error) {
	prog, err := expr.Compile(source, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", source, err)
	}
	return &ExprPayload{Source: source, prog: prog}, nil
}

func (p *ExprPayload) Invoke(_ context.Context, env *Env) error {
	out, err := expr.Run(p.prog, env.merged())
	if err != nil {
		return fmt.Errorf("eval %q: %w", p.Source, err)
	}
	if b, ok := out.(bool); ok && !b {
		return Failf("expression %q evaluated to false", p.Source)
	}
	return nil
}

// Assignment binds one variable in the active local frame to the result of
// an expression evaluated when the owning step runs.
type Assignment struct {
	Name string `json:"name"`
	Expr string `json:"expr"`
	prog *vm.Program
}

func (a *Assignment) compile() error {
	prog, err := expr.Compile(a.Expr, expr.AllowUndefinedVariables())
	if err != nil {
		return fmt.Errorf("set %s: %w", a.Name, err)
	}
	a.prog = prog
	return nil
}

// Apply evaluates the assignment and writes the result into the local frame.
func (a *Assignment) Apply(env *Env) error {
	if a.prog == nil {
		if err := a.compile(); err != nil {
			return err
		}
	}
	out, err := expr.Run(a.prog, env.merged())
	if err != nil {
		return fmt.Errorf("set %s: %w", a.Name, err)
	}
	env.Local[a.Name] = out
	return nil
}

// Assignments preserves the document order of a step's set: mapping.
// Assignment order is observable (later expressions may read earlier
// results), so the default map decoding is not usable here.
type Assignments []Assignment

func (as *Assignments) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: set must be a mapping of name to expression", value.Line)
	}
	for i := 0; i+1 < len(value.Content); i += 2 {
		*as = append(*as, Assignment{
			Name: value.Content[i].Value,
			Expr: value.Content[i+1].Value,
		})
	}
	return nil
}

func (as Assignments) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, a := range as {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: a.Name},
			&yaml.Node{Kind: yaml.ScalarNode, Value: a.Expr},
		)
	}
	return node, nil
}

// Compile binds the step's executable content and stamps its source file.
// Steps that already carry a Payload (programmatic trees) keep it.
func (s *Step) Compile(file string) error {
	s.File = file
	if s.Payload == nil && s.Run != "" {
		p, err := CompilePayload(s.Run)
		if err != nil {
			return fmt.Errorf("%s:%d: %w", file, s.Line, err)
		}
		s.Payload = p
	}
	for i := range s.Assigns {
		if err := s.Assigns[i].compile(); err != nil {
			return fmt.Errorf("%s:%d: %w", file, s.Line, err)
		}
	}
	return nil
}
