package main

import (
	"errors"
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"github.com/rendis/rootfinder/internal/catalog"
	"github.com/rendis/rootfinder/internal/expressions"
)

var sampleFlags struct {
	lo, hi  float64
	points  int
	catalog string
}

var sampleCmd = &cobra.Command{
	Use:   "sample [function]",
	Short: "Sample f(x) over a range, for plotting",
	Example: `  rootfinder sample "sin(x) - x/2" --lo -1 --hi 3 --points 200
  rootfinder sample --catalog polynomial`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSample,
}

func init() {
	f := sampleCmd.Flags()
	f.Float64Var(&sampleFlags.lo, "lo", -3, "Range start")
	f.Float64Var(&sampleFlags.hi, "hi", 3, "Range end")
	f.IntVar(&sampleFlags.points, "points", catalog.PlotPoints, "Number of samples")
	f.StringVar(&sampleFlags.catalog, "catalog", "", "Sample a built-in test function over its domain")
}

// samplePoint is one row of sample output. Y is null where f is undefined.
type samplePoint struct {
	X float64  `json:"x"`
	Y *float64 `json:"y"`
}

func runSample(cmd *cobra.Command, args []string) error {
	lo, hi := sampleFlags.lo, sampleFlags.hi
	var function string
	if sampleFlags.catalog != "" {
		f, err := catalog.Get(sampleFlags.catalog)
		if err != nil {
			return err
		}
		function = f.Expression
		if !cmd.Flags().Changed("lo") {
			lo = f.Domain[0]
		}
		if !cmd.Flags().Changed("hi") {
			hi = f.Domain[1]
		}
	}
	if len(args) == 1 {
		function = args[0]
	}
	if function == "" {
		return errors.New("a function or --catalog is required")
	}
	if !(lo < hi) {
		return fmt.Errorf("--lo (%g) must be less than --hi (%g)", lo, hi)
	}
	if sampleFlags.points < 2 {
		return fmt.Errorf("--points must be at least 2, got %d", sampleFlags.points)
	}

	compiled, err := expressions.Compile(function, false)
	if err != nil {
		return err
	}
	xs, ys := expressions.Sample(compiled.F, lo, hi, sampleFlags.points)
	points := make([]samplePoint, len(xs))
	for i := range xs {
		points[i].X = xs[i]
		if !math.IsNaN(ys[i]) {
			points[i].Y = &ys[i]
		}
	}
	return writeJSON(cmd.OutOrStdout(), map[string]any{"function": function, "points": points})
}
