package guard

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// RuleEnv is exposed to rule expressions, for example
//
//	provisioned && role in ["lawyer", "employee"] && lawyerStatus != "rejected"
type RuleEnv struct {
	Authenticated bool   `expr:"authenticated"`
	Provisioned   bool   `expr:"provisioned"`
	Role          string `expr:"role"`
	LawyerStatus  string `expr:"lawyerStatus"`
	Email         string `expr:"email"`
}

// Rule is a compiled boolean access expression.
type Rule struct {
	source  string
	program *vm.Program
}

// CompileRule type checks expression against RuleEnv. Unknown variables and
// non boolean results are compile errors.
func CompileRule(expression string) (*Rule, error) {
	if strings.TrimSpace(expression) == "" {
		return nil, fmt.Errorf("[guard.CompileRule] expression must not be empty")
	}
	program, err := expr.Compile(expression, expr.Env(RuleEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("[guard.CompileRule] %q: %w", expression, err)
	}
	return &Rule{source: expression, program: program}, nil
}

func (r *Rule) String() string {
	return r.source
}

func (r *Rule) Eval(env RuleEnv) (bool, error) {
	out, err := expr.Run(r.program, env)
	if err != nil {
		return false, fmt.Errorf("[Rule.Eval] %q: %w", r.source, err)
	}
	ok, _ := out.(bool)
	return ok, nil
}
