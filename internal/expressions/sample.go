package expressions

import "math"

// PlotClip bounds sampled values so that poles do not dominate a plot.
const PlotClip = 1e10

// Sampler evaluates a function over many points at once.
type Sampler interface {
	EvalMany(xs []float64) []float64
}

// Linspace returns n evenly spaced points from lo to hi inclusive.
func Linspace(lo, hi float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{lo}
	}
	xs := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range xs {
		xs[i] = lo + float64(i)*step
	}
	xs[n-1] = hi
	return xs
}

// Sample evaluates f at n evenly spaced points of [lo, hi]. Values are
// clipped to ±PlotClip; points that cannot be evaluated are NaN.
func Sample(f Sampler, lo, hi float64, n int) (xs, ys []float64) {
	xs = Linspace(lo, hi, n)
	ys = f.EvalMany(xs)
	for i, y := range ys {
		if !math.IsNaN(y) {
			ys[i] = math.Max(-PlotClip, math.Min(PlotClip, y))
		}
	}
	return xs, ys
}
