package main

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rendis/rootfinder/internal/engine"
	"github.com/rendis/rootfinder/internal/validation"
	"github.com/rendis/rootfinder/pkg/schema"
)

var batchFlags struct {
	concurrency int
	strict      bool
}

var batchCmd = &cobra.Command{
	Use:   "batch <problems.yaml>",
	Short: "Compare methods on every problem of a YAML problem set",
	Example: `  rootfinder batch problems.yaml
  rootfinder batch - --concurrency 8 < problems.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	f := batchCmd.Flags()
	f.IntVar(&batchFlags.concurrency, "concurrency", 4, "Problems solved at once")
	f.BoolVar(&batchFlags.strict, "strict", false, "Exit with an error if any problem fails")
}

// batchOutput is what batch prints.
type batchOutput struct {
	Name     string               `json:"name,omitempty"`
	Results  []engine.BatchResult `json:"results"`
	Failed   int                  `json:"failed"`
	Recorded int                  `json:"recorded"`
}

func runBatch(cmd *cobra.Command, args []string) error {
	data, err := readRequest(cmd, args[0])
	if err != nil {
		return err
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return schema.NewErrorf(schema.ErrCodeValidation, "problem set is not valid YAML: %v", err).WithCause(err)
	}
	if err := cli.validator.Validate(validation.KindProblemSet, doc); err != nil {
		return err
	}
	set, err := engine.LoadProblemSet(bytes.NewReader(data))
	if err != nil {
		return err
	}
	for i := range set.Problems {
		p := &set.Problems[i]
		if p.Tolerance == 0 {
			p.Tolerance = cli.cfg.Tolerance
		}
		if p.MaxIterations == 0 {
			p.MaxIterations = cli.cfg.MaxIterations
		}
	}

	ctx := cmd.Context()
	results, err := engine.NewBatchRunner(cli.comparator, batchFlags.concurrency, cli.logger).Run(ctx, set)
	if err != nil {
		return err
	}

	out := batchOutput{Name: set.Name, Results: results}
	svc, err := cli.openHistory(ctx)
	if err != nil {
		cli.logger.WarnContext(ctx, "history unavailable", "error", err)
	}
	for _, r := range results {
		if r.Err != nil {
			out.Failed++
			continue
		}
		if svc == nil {
			continue
		}
		if _, err := svc.RecordComparison(ctx, r.Result); err != nil {
			cli.logger.WarnContext(ctx, "failed to record comparison", "problem", r.Name, "error", err)
			continue
		}
		out.Recorded++
	}

	if err := writeJSON(cmd.OutOrStdout(), out); err != nil {
		return err
	}
	if batchFlags.strict && out.Failed > 0 {
		return fmt.Errorf("%d of %d problems failed", out.Failed, len(results))
	}
	return nil
}
