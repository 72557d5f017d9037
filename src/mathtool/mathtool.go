// Package mathtool evaluates the numeric deliverables of math subtasks.
// Expressions come from the plan, variables from gathered evidence; nothing
// here does I/O.
package mathtool

import (
	"fmt"
	"math"
	"strconv"

	"github.com/expr-lang/expr"
)

// Evaluator compiles and runs arithmetic expressions.
type Evaluator struct{}

func New() *Evaluator { return &Evaluator{} }

// Evaluate runs one expression with optional named variables and formats
// the result. Non-numeric results are rejected; a research answer's math
// step yields a number or it failed.
func (e *Evaluator) Evaluate(expression string, vars map[string]any) (string, error) {
	if expression == "" {
		return "", fmt.Errorf("mathtool: empty expression")
	}
	env := make(map[string]any, len(vars))
	for k, v := range vars {
		env[k] = v
	}
	program, err := expr.Compile(expression, expr.Env(env), expr.AllowUndefinedVariables())
	if err != nil {
		return "", fmt.Errorf("mathtool: compile %q: %w", expression, err)
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return "", fmt.Errorf("mathtool: evaluate %q: %w", expression, err)
	}
	return formatResult(out)
}

func formatResult(out any) (string, error) {
	switch v := out.(type) {
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return "", fmt.Errorf("mathtool: result is not finite")
		}
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("mathtool: non-numeric result %T", out)
	}
}
