// Package rules provides a configurable posting guard evaluated before
// balance-affecting transitions. Rules are CEL expressions over document
// facts, so operations teams can tighten posting policy without a
// redeploy (e.g. forbid backdated adjustments).
package rules

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"stockpost/internal/core/apperror"
)

// Facts are the document attributes visible to guard expressions.
type Facts struct {
	DocType       string
	LineCount     int
	TotalQuantity float64
	Backdated     bool
	AutoGenerated bool
}

// PostingGuard evaluates a boolean CEL expression against document facts.
// An expression result of false blocks the posting.
type PostingGuard struct {
	program cel.Program
	expr    string
}

// NewPostingGuard compiles the expression once. An empty expression
// returns a guard that always allows.
func NewPostingGuard(expr string) (*PostingGuard, error) {
	if expr == "" {
		return &PostingGuard{}, nil
	}

	env, err := cel.NewEnv(
		cel.Variable("doc_type", cel.StringType),
		cel.Variable("line_count", cel.IntType),
		cel.Variable("total_quantity", cel.DoubleType),
		cel.Variable("backdated", cel.BoolType),
		cel.Variable("auto_generated", cel.BoolType),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile posting rule %q: %w", expr, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("posting rule %q must evaluate to bool, got %s", expr, ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build posting rule program: %w", err)
	}

	return &PostingGuard{program: program, expr: expr}, nil
}

// Check returns a business rule violation when the guard denies posting.
func (g *PostingGuard) Check(facts Facts) error {
	if g == nil || g.program == nil {
		return nil
	}

	out, _, err := g.program.Eval(map[string]any{
		"doc_type":       facts.DocType,
		"line_count":     facts.LineCount,
		"total_quantity": facts.TotalQuantity,
		"backdated":      facts.Backdated,
		"auto_generated": facts.AutoGenerated,
	})
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("evaluate posting rule: %w", err))
	}

	allowed, ok := out.Value().(bool)
	if !ok {
		return apperror.NewInternal(fmt.Errorf("posting rule returned non-bool: %v", out.Value()))
	}
	if !allowed {
		return apperror.NewBusinessRule(
			"POSTING_RULE_VIOLATION",
			"Posting is blocked by a posting rule",
		).WithDetail("rule", g.expr).
			WithDetail("document_type", facts.DocType)
	}

	return nil
}
