package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/rendis/rootfinder/internal/validation"
	"github.com/rendis/rootfinder/pkg/schema"
)

var solveFlags struct {
	method  string
	request string
	params  paramFlags
}

var solveCmd = &cobra.Command{
	Use:   "solve [function]",
	Short: "Find a root with a single method",
	Example: `  rootfinder solve "cos(x) - x" --method bisection --bracket 0,1
  rootfinder solve "x**2 - 2" --method newton --x0 1
  rootfinder solve --request solve.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSolve,
}

func init() {
	f := solveCmd.Flags()
	f.StringVarP(&solveFlags.method, "method", "m", "", "Method: bisection, newton or secant")
	f.StringVar(&solveFlags.request, "request", "", "Read a JSON solve request from a file (- for stdin)")
	solveFlags.params.register(solveCmd)
}

// solveOutput is what solve prints.
type solveOutput struct {
	ID     string               `json:"id,omitempty"`
	Result *schema.MethodResult `json:"result"`
}

func runSolve(cmd *cobra.Command, args []string) error {
	var doc any
	if solveFlags.request != "" {
		data, err := readRequest(cmd, solveFlags.request)
		if err != nil {
			return err
		}
		doc = data
	} else {
		if len(args) == 0 {
			return errors.New("a function is required: rootfinder solve \"<f(x)>\" --method <method> ...")
		}
		params, err := solveFlags.params.build(cmd.Flags().Changed)
		if err != nil {
			return err
		}
		doc = schema.SolveRequest{
			Expression: args[0],
			Method:     schema.Method(solveFlags.method),
			Params:     params,
		}
	}

	req, err := validation.DecodeSolve(cli.validator, doc)
	if err != nil {
		return err
	}
	if req.Tolerance == 0 {
		req.Tolerance = cli.cfg.Tolerance
	}
	if req.MaxIterations == 0 {
		req.MaxIterations = cli.cfg.MaxIterations
	}

	ctx := cmd.Context()
	result, err := cli.comparator.Solve(ctx, *req)
	if err != nil {
		return err
	}

	out := solveOutput{Result: result}
	if svc, err := cli.openHistory(ctx); err != nil {
		cli.logger.WarnContext(ctx, "history unavailable", "error", err)
	} else if svc != nil {
		if calc, err := svc.RecordCalculation(ctx, *req, *result); err != nil {
			cli.logger.WarnContext(ctx, "failed to record calculation", "error", err)
		} else {
			out.ID = calc.ID
		}
	}
	return writeJSON(cmd.OutOrStdout(), out)
}
