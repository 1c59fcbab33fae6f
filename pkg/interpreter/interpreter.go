// Package interpreter applies query definitions to a squirrel select
// builder. Every action passes through the same pipeline, in order: gate,
// parameter resolution, normalization, policy check, then apply.
package interpreter

import (
	"errors"
	"fmt"

	"github.com/txn2/mcp-querydsl/pkg/action"
	"github.com/txn2/mcp-querydsl/pkg/condition"
	"github.com/txn2/mcp-querydsl/pkg/params"
	"github.com/txn2/mcp-querydsl/pkg/policy"
	"github.com/txn2/mcp-querydsl/pkg/query"
)

var (
	// ErrMaxDepth is returned when nested definitions exceed Config.MaxDepth.
	ErrMaxDepth = errors.New("maximum nesting depth exceeded")

	// ErrNoExecutor is returned by Run when the definition has no executor.
	ErrNoExecutor = errors.New("definition has no executor action")
)

const (
	// DefaultMaxDepth bounds nesting when Config.MaxDepth is zero.
	DefaultMaxDepth = 32

	// DefaultMaxRows is the page size when neither the action nor the
	// configuration sets one.
	DefaultMaxRows = 25
)

// Config is the read-only environment shared by every interpretation.
type Config struct {
	Policies policy.Policies
	Aliases  policy.AliasMap
	Dialect  query.Dialect
	MaxDepth int
	MaxRows  int
}

func (c *Config) maxDepth() int {
	if c.MaxDepth > 0 {
		return c.MaxDepth
	}
	return DefaultMaxDepth
}

func (c *Config) maxRows() int {
	if c.MaxRows > 0 {
		return c.MaxRows
	}
	return DefaultMaxRows
}

// mode limits which kinds a definition may contain.
type mode int

const (
	modeQuery mode = iota
	modeWhere      // body of whereNested
	modeOn         // a join's on list
)

// Interpreter applies one definition. Create one per call; it is not safe
// for concurrent use.
type Interpreter struct {
	cfg    *Config
	params params.Map
	scope  *policy.Scope
	mode   mode
	nested bool
	st     *state
	exec   *executor
}

type executor struct {
	kind    action.Kind
	args    action.Args
	options map[string]any
}

// New creates an interpreter for a top-level definition.
func New(cfg *Config, p params.Map) *Interpreter {
	return &Interpreter{
		cfg:    cfg,
		params: p,
		scope:  policy.NewScope(cfg.Aliases),
		st:     &state{},
	}
}

// child creates an interpreter for a nested definition one level deeper.
func (in *Interpreter) child(m mode) (*Interpreter, error) {
	scope := in.scope.Child()
	if scope.Depth() > in.cfg.maxDepth() {
		return nil, fmt.Errorf("%w: limit is %d", ErrMaxDepth, in.cfg.maxDepth())
	}
	return &Interpreter{
		cfg:    in.cfg,
		params: in.params,
		scope:  scope,
		mode:   m,
		nested: true,
		st:     &state{},
	}, nil
}

// Build applies every action of def and returns the result. Nothing is
// executed; a definition without an executor still builds.
func (in *Interpreter) Build(def action.Definition) (*Built, error) {
	if err := in.apply(def); err != nil {
		return nil, err
	}
	b := &Built{
		state:   in.st,
		dialect: in.cfg.Dialect,
		maxRows: in.cfg.maxRows(),
		Journal: in.scope.Journal(),
	}
	if in.exec != nil {
		b.Executor = in.exec.kind
		b.args = in.exec.args
		b.Options = in.exec.options
	}
	return b, nil
}

func (in *Interpreter) apply(def action.Definition) error {
	for _, a := range def {
		if in.exec != nil {
			return malformed(a, "follows executor %q", in.exec.kind)
		}
		if err := in.step(a); err != nil {
			return err
		}
	}
	return nil
}

func (in *Interpreter) step(a action.Action) error {
	a, ok, err := in.gate(a)
	if err != nil || !ok {
		return err
	}
	raw, err := params.Resolve(a.Args, in.params)
	if err != nil {
		return fmt.Errorf("%s at position %d: %w", a.Kind, a.Position, err)
	}
	args, err := action.Normalize(a.Kind, raw, a.Position)
	if err != nil {
		return err
	}
	if err := in.check(a, args); err != nil {
		return err
	}
	return in.dispatch(a, args)
}

// gate evaluates a's when condition against leniently resolved arguments.
// A false gate substitutes the else action, which is gated in turn, or
// skips the step.
func (in *Interpreter) gate(a action.Action) (action.Action, bool, error) {
	for a.HasWhen {
		args := action.Positional(a.Kind, params.ResolveLenient(a.Args, in.params))
		ok, err := condition.Evaluate(a.When, args, in.params)
		if err != nil {
			return a, false, fmt.Errorf("%s at position %d: %w", a.Kind, a.Position, err)
		}
		if ok {
			return a, true, nil
		}
		if a.Else == nil {
			return a, false, nil
		}
		a = *a.Else
	}
	return a, true, nil
}

// check applies the access policies to a normalized action.
func (in *Interpreter) check(a action.Action, args action.Args) error {
	pol := in.cfg.Policies
	if a.Kind.IsExecutor() {
		if err := policy.Check(policy.CategoryExecutors, string(a.Kind), pol.Executors); err != nil {
			return err
		}
	} else if err := policy.Check(policy.CategoryActions, string(a.Kind), pol.Actions); err != nil {
		return err
	}

	switch v := args.(type) {
	case action.TableArgs:
		return in.scope.CheckTable(pol.Tables, v.Table)
	case action.JoinArgs:
		if v.Table != "" {
			return in.scope.CheckTable(pol.Tables, v.Table)
		}
	case action.RawArgs:
		return policy.CheckRaw(string(a.Kind), v.SQL)
	}
	return nil
}

func malformed(a action.Action, format string, args ...any) error {
	return &action.MalformedError{
		Kind:     string(a.Kind),
		Position: a.Position,
		Reason:   fmt.Sprintf(format, args...),
	}
}
