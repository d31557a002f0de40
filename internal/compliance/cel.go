package compliance

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// celEvaluator compiles and caches CEL programs for custom rules.
// Expressions see `declared` (the applicant's declared data as a string
// map) and `doc_types` (the submitted document type names).
type celEvaluator struct {
	mu       sync.RWMutex
	env      *cel.Env
	programs map[string]cel.Program
}

func newCELEvaluator() (*celEvaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("declared", cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable("doc_types", cel.ListType(cel.StringType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &celEvaluator{
		env:      env,
		programs: make(map[string]cel.Program),
	}, nil
}

// Compile validates an expression and caches the compiled program under key.
// The expression must produce a boolean.
func (e *celEvaluator) Compile(key, expression string) error {
	program, err := e.compile(expression)
	if err != nil {
		return fmt.Errorf("rule %s: %w", key, err)
	}

	e.mu.Lock()
	e.programs[key] = program
	e.mu.Unlock()
	return nil
}

// Eval runs the cached program for key, compiling on first use.
func (e *celEvaluator) Eval(key, expression string, declared map[string]string, docTypes []string) (bool, error) {
	e.mu.RLock()
	program, ok := e.programs[key]
	e.mu.RUnlock()

	if !ok {
		if err := e.Compile(key, expression); err != nil {
			return false, err
		}
		e.mu.RLock()
		program = e.programs[key]
		e.mu.RUnlock()
	}

	out, _, err := program.Eval(map[string]any{
		"declared":  declared,
		"doc_types": docTypes,
	})
	if err != nil {
		return false, fmt.Errorf("evaluation error: %w", err)
	}
	return toBool(out), nil
}

func (e *celEvaluator) compile(expression string) (cel.Program, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile expression: %w", issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("expression must return bool, got %s", ast.OutputType())
	}
	return e.env.Program(ast)
}

func toBool(val ref.Val) bool {
	if b, ok := val.(types.Bool); ok {
		return bool(b)
	}
	return false
}
