package catalog

import "github.com/rendis/rootfinder/pkg/schema"

// PlotPoints is the default number of samples for a function plot.
const PlotPoints = 1000

// PlotRange picks the x range for plotting a result: one unit beyond the
// bracket for bisection, otherwise three units around the root (or the
// origin when the root is undefined).
func PlotRange(m schema.Method, p schema.MethodParams, root schema.Real) (lo, hi float64) {
	if m == schema.MethodBisection && p.Bisection != nil {
		return p.Bisection.A - 1, p.Bisection.B + 1
	}
	center, ok := root.Value()
	if !ok {
		center = 0
	}
	return center - 3, center + 3
}
