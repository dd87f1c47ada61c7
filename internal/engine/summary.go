package engine

import (
	"math"

	"github.com/rendis/rootfinder/pkg/schema"
)

// Summarize aggregates the per-method results of a comparison. Ties for
// fastest and most accurate go to the method listed first in schema.Methods.
func Summarize(results map[schema.Method]schema.MethodResult) schema.ComparisonSummary {
	s := schema.ComparisonSummary{
		Metrics:    make(map[schema.Method]schema.MethodMetrics, len(results)),
		RootSpread: schema.Undefined(),
	}

	bestIters := math.MaxInt
	bestErr := math.Inf(1)
	lo, hi := math.Inf(1), math.Inf(-1)

	for _, m := range schema.Methods {
		r, ok := results[m]
		if !ok {
			continue
		}
		secs := r.ExecutionTime.Seconds()
		s.TotalTime += secs

		metrics := schema.MethodMetrics{
			Error:         r.Error,
			ExecutionTime: secs,
			Converged:     r.Converged,
		}
		if r.Converged {
			metrics.Iterations = r.Iterations
			s.ConvergedCount++

			if r.Iterations < bestIters {
				bestIters = r.Iterations
				s.Fastest = m
			}
			if e, ok := r.Error.Value(); ok && e < bestErr {
				bestErr = e
				s.MostAccurate = m
			}
			if root, ok := r.Root.Value(); ok {
				lo, hi = math.Min(lo, root), math.Max(hi, root)
			}
		}
		s.Metrics[m] = metrics
	}

	s.AllConverged = len(results) > 0 && s.ConvergedCount == len(results)
	if lo <= hi {
		s.RootSpread = schema.Defined(hi - lo)
	}
	return s
}
