package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rendis/rootfinder/pkg/schema"
)

// paramFlags are the starting-parameter flags shared by solve and compare.
type paramFlags struct {
	bracket []float64
	x0      float64
	secant  []float64
}

func (p *paramFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Float64SliceVar(&p.bracket, "bracket", nil, "Bisection bracket a,b")
	f.Float64Var(&p.x0, "x0", 0, "Newton-Raphson initial guess")
	f.Float64SliceVar(&p.secant, "secant", nil, "Secant initial points x0,x1")
}

// build returns the params for the flags that were set.
func (p *paramFlags) build(changed func(string) bool) (schema.MethodParams, error) {
	var out schema.MethodParams
	if changed("bracket") {
		if len(p.bracket) != 2 {
			return out, fmt.Errorf("--bracket takes two values a,b, got %d", len(p.bracket))
		}
		out.Bisection = &schema.BisectionParams{A: p.bracket[0], B: p.bracket[1]}
	}
	if changed("x0") {
		out.Newton = &schema.NewtonParams{X0: p.x0}
	}
	if changed("secant") {
		if len(p.secant) != 2 {
			return out, fmt.Errorf("--secant takes two values x0,x1, got %d", len(p.secant))
		}
		out.Secant = &schema.SecantParams{X0: p.secant[0], X1: p.secant[1]}
	}
	return out, nil
}

// readRequest reads a request document from path, or stdin when path is "-".
func readRequest(cmd *cobra.Command, path string) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read request: %w", err)
	}
	return data, nil
}
