package schema

// ComparisonResult is the fan-in of one comparison request.
type ComparisonResult struct {
	ID            string                  `json:"id,omitempty"`
	Expression    string                  `json:"function"`
	Tolerance     float64                 `json:"tolerance"`
	MaxIterations int                     `json:"max_iterations"`
	Params        MethodParams            `json:"params"`
	Results       map[Method]MethodResult `json:"results"`
	Summary       ComparisonSummary       `json:"summary"`
	Verification  map[Method]Verification `json:"verification,omitempty"`
}

// Result returns the result of one method and whether it ran.
func (c *ComparisonResult) Result(m Method) (MethodResult, bool) {
	r, ok := c.Results[m]
	return r, ok
}

// ComparisonSummary holds aggregate statistics over the method results.
type ComparisonSummary struct {
	ConvergedCount int                      `json:"converged_count"`
	AllConverged   bool                     `json:"all_converged"`
	Fastest        Method                   `json:"fastest,omitempty"`
	MostAccurate   Method                   `json:"most_accurate,omitempty"`
	RootSpread     Real                     `json:"root_spread"`
	TotalTime      float64                  `json:"total_time"`
	Metrics        map[Method]MethodMetrics `json:"metrics"`
}

// MethodMetrics is the per-method row of a summary. Iterations are counted
// only for converged runs.
type MethodMetrics struct {
	Iterations    int     `json:"iterations"`
	Error         Real    `json:"error"`
	ExecutionTime float64 `json:"execution_time"`
	Converged     bool    `json:"converged"`
}

// Verification is the independent re-evaluation of f at a reported root.
type Verification struct {
	Residual Real   `json:"residual"`
	Verified bool   `json:"verified"`
	Note     string `json:"note,omitempty"`
}
