package store

import (
	"encoding/json"
	"time"

	"github.com/rendis/rootfinder/pkg/schema"
)

// Calculation is the persisted representation of a single-method run.
type Calculation struct {
	ID               string             `json:"id"`
	Expression       string             `json:"function"`
	Method           schema.Method      `json:"method"`
	MethodName       string             `json:"method_name"`
	Parameters       map[string]float64 `json:"params"`
	Root             schema.Real        `json:"root"`
	Iterations       int                `json:"iterations"`
	Error            schema.Real        `json:"error"`
	Converged        bool               `json:"converged"`
	ExecutionTime    float64            `json:"execution_time"`
	ConvergenceRate  schema.Real        `json:"convergence_rate"`
	FailureReason    string             `json:"failure_reason,omitempty"`
	IterationHistory json.RawMessage    `json:"iteration_history"`
	Tolerance        float64            `json:"tolerance"`
	MaxIterations    int                `json:"max_iterations"`
	CreatedAt        time.Time          `json:"created_at"`
}

// NewCalculation flattens a method result into a row.
func NewCalculation(id, expression string, params map[string]float64, tol float64, maxIter int, r schema.MethodResult) (*Calculation, error) {
	rec := r.Record()
	history, err := json.Marshal(rec.IterationHistory)
	if err != nil {
		return nil, err
	}
	return &Calculation{
		ID:               id,
		Expression:       expression,
		Method:           rec.Method,
		MethodName:       rec.MethodName,
		Parameters:       params,
		Root:             rec.Root,
		Iterations:       rec.Iterations,
		Error:            rec.Error,
		Converged:        rec.Converged,
		ExecutionTime:    rec.ExecutionTime,
		ConvergenceRate:  rec.ConvergenceRate,
		FailureReason:    rec.FailureReason,
		IterationHistory: history,
		Tolerance:        tol,
		MaxIterations:    maxIter,
	}, nil
}

// ComparisonSession is the persisted representation of a comparison. Results
// holds one flat record per method that ran.
type ComparisonSession struct {
	ID            string                          `json:"id"`
	Expression    string                          `json:"function"`
	Tolerance     float64                         `json:"tolerance"`
	MaxIterations int                             `json:"max_iterations"`
	Params        schema.MethodParams             `json:"params"`
	Results       map[schema.Method]schema.Record `json:"results_summary"`
	CreatedAt     time.Time                       `json:"created_at"`
}

// NewComparisonSession converts a comparison result into a row.
func NewComparisonSession(res *schema.ComparisonResult) *ComparisonSession {
	records := make(map[schema.Method]schema.Record, len(res.Results))
	for m, r := range res.Results {
		records[m] = r.Record()
	}
	return &ComparisonSession{
		ID:            res.ID,
		Expression:    res.Expression,
		Tolerance:     res.Tolerance,
		MaxIterations: res.MaxIterations,
		Params:        res.Params,
		Results:       records,
	}
}

// CalculationFilter narrows ListCalculations. Zero values match everything.
type CalculationFilter struct {
	Method     schema.Method
	Converged  *bool
	Expression string
	Since      *time.Time
	Limit      int
	Offset     int
}

// ComparisonFilter narrows ListComparisons.
type ComparisonFilter struct {
	Expression string
	Since      *time.Time
	Limit      int
	Offset     int
}

// Counts reports how many rows a bulk operation removed.
type Counts struct {
	Calculations int64 `json:"deleted_results"`
	Comparisons  int64 `json:"deleted_comparisons"`
}
