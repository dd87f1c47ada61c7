package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/rendis/rootfinder/internal/logging"
	"github.com/rendis/rootfinder/pkg/schema"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// ProblemSet is a named list of comparison problems, read from YAML:
//
//	name: textbook
//	tolerance: 1e-8
//	problems:
//	  - name: cubic
//	    function: x^3 - 6*x^2 + 11*x - 6
//	    params:
//	      bisection: {a: 0.5, b: 1.5}
//	      newton: {x0: 0.5}
//
// Set-level tolerance and max_iterations apply to problems that leave them
// unset.
type ProblemSet struct {
	Name          string                     `yaml:"name" json:"name"`
	Tolerance     float64                    `yaml:"tolerance,omitempty" json:"tolerance,omitempty"`
	MaxIterations int                        `yaml:"max_iterations,omitempty" json:"max_iterations,omitempty"`
	Problems      []schema.ComparisonRequest `yaml:"problems" json:"problems"`
}

// LoadProblemSet decodes a YAML problem set. Unknown keys are rejected.
func LoadProblemSet(r io.Reader) (*ProblemSet, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var set ProblemSet
	if err := dec.Decode(&set); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, schema.NewError(schema.ErrCodeValidation, "empty problem set")
		}
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "decode problem set: %v", err).WithCause(err)
	}
	if len(set.Problems) == 0 {
		return nil, schema.NewError(schema.ErrCodeValidation, "problem set has no problems")
	}
	for i := range set.Problems {
		p := &set.Problems[i]
		if p.Name == "" {
			p.Name = fmt.Sprintf("problem-%d", i+1)
		}
		if p.Tolerance == 0 {
			p.Tolerance = set.Tolerance
		}
		if p.MaxIterations == 0 {
			p.MaxIterations = set.MaxIterations
		}
	}
	return &set, nil
}

// BatchResult is the outcome of one problem. Exactly one of Result and
// Error is set.
type BatchResult struct {
	Name   string                   `json:"name"`
	Result *schema.ComparisonResult `json:"result,omitempty"`
	Error  string                   `json:"error,omitempty"`
	Err    error                    `json:"-"`
}

// BatchRunner runs the problems of a set concurrently through a Comparator.
type BatchRunner struct {
	comparator *Comparator
	limit      int
	logger     *slog.Logger
}

// NewBatchRunner creates a runner solving at most limit problems at once.
func NewBatchRunner(c *Comparator, limit int, logger *slog.Logger) *BatchRunner {
	if limit <= 0 {
		limit = 1
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &BatchRunner{comparator: c, limit: limit, logger: logger}
}

// Run solves every problem and returns the results in input order. A failing
// problem does not stop the others; only cancellation of ctx fails the run.
func (b *BatchRunner) Run(ctx context.Context, set *ProblemSet) ([]BatchResult, error) {
	out := make([]BatchResult, len(set.Problems))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.limit)

	for i, p := range set.Problems {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			pctx := logging.WithProblem(gctx, p.Name)
			res, err := b.comparator.CompareAll(pctx, p)
			out[i] = BatchResult{Name: p.Name, Result: res}
			if err != nil {
				out[i].Err = err
				out[i].Error = err.Error()
				b.logger.WarnContext(pctx, "problem failed", "error", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return out, fmt.Errorf("batch %s: %w", set.Name, err)
	}
	return out, nil
}
