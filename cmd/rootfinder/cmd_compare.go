package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/rendis/rootfinder/internal/catalog"
	"github.com/rendis/rootfinder/internal/validation"
	"github.com/rendis/rootfinder/pkg/schema"
)

var compareFlags struct {
	name    string
	catalog string
	request string
	params  paramFlags
}

var compareCmd = &cobra.Command{
	Use:   "compare [function]",
	Short: "Run several methods on the same function and compare them",
	Long: "Runs every method whose parameters are given. With --catalog the\n" +
		"built-in test function supplies the function and any parameters not\n" +
		"set on the command line.",
	Example: `  rootfinder compare "x*exp(x) - 1" --bracket 0,1 --x0 0.5 --secant 0,1
  rootfinder compare --catalog transcendental1 --tolerance 1e-10
  rootfinder compare --request compare.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCompare,
}

func init() {
	f := compareCmd.Flags()
	f.StringVar(&compareFlags.name, "name", "", "Label for this comparison")
	f.StringVar(&compareFlags.catalog, "catalog", "", "Use a built-in test function (see: rootfinder functions)")
	f.StringVar(&compareFlags.request, "request", "", "Read a JSON compare request from a file (- for stdin)")
	compareFlags.params.register(compareCmd)
}

func runCompare(cmd *cobra.Command, args []string) error {
	var doc any
	if compareFlags.request != "" {
		data, err := readRequest(cmd, compareFlags.request)
		if err != nil {
			return err
		}
		doc = data
	} else {
		req, err := compareRequestFromFlags(cmd, args)
		if err != nil {
			return err
		}
		doc = req
	}

	req, err := validation.DecodeCompare(cli.validator, doc)
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
	result, err := cli.comparator.CompareAll(ctx, *req)
	if err != nil {
		return err
	}

	if svc, err := cli.openHistory(ctx); err != nil {
		cli.logger.WarnContext(ctx, "history unavailable", "error", err)
	} else if svc != nil {
		if _, err := svc.RecordComparison(ctx, result); err != nil {
			cli.logger.WarnContext(ctx, "failed to record comparison", "id", result.ID, "error", err)
		}
	}
	return writeJSON(cmd.OutOrStdout(), result)
}

func compareRequestFromFlags(cmd *cobra.Command, args []string) (schema.ComparisonRequest, error) {
	params, err := compareFlags.params.build(cmd.Flags().Changed)
	if err != nil {
		return schema.ComparisonRequest{}, err
	}
	req := schema.ComparisonRequest{Name: compareFlags.name, Params: params}

	if compareFlags.catalog != "" {
		f, err := catalog.Get(compareFlags.catalog)
		if err != nil {
			return schema.ComparisonRequest{}, err
		}
		req.Expression = f.Expression
		if req.Name == "" {
			req.Name = f.Name
		}
		if req.Params.Bisection == nil {
			req.Params.Bisection = f.Defaults.Bisection
		}
		if req.Params.Newton == nil {
			req.Params.Newton = f.Defaults.Newton
		}
		if req.Params.Secant == nil {
			req.Params.Secant = f.Defaults.Secant
		}
	}
	if len(args) == 1 {
		req.Expression = args[0]
	}
	if req.Expression == "" {
		return schema.ComparisonRequest{}, errors.New("a function or --catalog is required")
	}
	return req, nil
}
