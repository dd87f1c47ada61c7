package expressions

import "context"

// Engine evaluates auxiliary expressions over result records.
// Three implementations: CEL (history predicates), GoJQ (record projections),
// Expr (independent re-evaluation of a function for verification).
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}
