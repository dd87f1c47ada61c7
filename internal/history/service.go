// Package history records solver runs and answers queries over them.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/rendis/rootfinder/internal/expressions"
	"github.com/rendis/rootfinder/internal/logging"
	"github.com/rendis/rootfinder/internal/store"
	"github.com/rendis/rootfinder/pkg/schema"
)

// DefaultLimit caps list queries that set no limit.
const DefaultLimit = 20

// DefaultPageSize is how many rows a predicate query reads per store call.
const DefaultPageSize = 100

// Query selects calculations. Method, Converged and Limit are pushed down to
// the store; Where is a CEL predicate over the flat record and Project a jq
// program applied to every match.
type Query struct {
	Method    schema.Method `json:"method,omitempty"`
	Converged *bool         `json:"converged,omitempty"`
	Limit     int           `json:"limit,omitempty"`
	Where     string        `json:"where,omitempty"`
	Project   string        `json:"project,omitempty"`
}

// Listing is the answer to a calculation query. Projected is set instead of
// Calculations when the query carries a projection.
type Listing struct {
	Calculations []*store.Calculation `json:"calculations,omitempty"`
	Projected    []any                `json:"projected,omitempty"`
	Count        int                  `json:"count"`
}

// Service wraps a Store with query engines and write retries.
type Service struct {
	store  store.Store
	cel    *expressions.CELEngine
	jq     *expressions.GoJQEngine
	retry  RetryPolicy
	logger *slog.Logger
	now    func() time.Time
	page   int
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithRetryPolicy overrides DefaultRetryPolicy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(s *Service) { s.retry = p }
}

// WithPageSize sets how many rows a Where query scans per store call.
func WithPageSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.page = n
		}
	}
}

// WithClock overrides time.Now, used by Prune.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a history service over st.
func NewService(st store.Store, opts ...Option) (*Service, error) {
	cel, err := expressions.NewCELEngine()
	if err != nil {
		return nil, err
	}
	s := &Service{
		store:  st,
		cel:    cel,
		jq:     expressions.NewGoJQEngine(),
		retry:  DefaultRetryPolicy,
		logger: logging.Discard(),
		now:    time.Now,
		page:   DefaultPageSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RecordCalculation persists a single-method run.
func (s *Service) RecordCalculation(ctx context.Context, req schema.SolveRequest, r schema.MethodResult) (*store.Calculation, error) {
	req.ApplyDefaults()
	c, err := store.NewCalculation(uuid.NewString(), req.Expression, req.Params.For(r.Method), req.Tolerance, req.MaxIterations, r)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "encode calculation: %v", err).WithCause(err)
	}
	if err := s.retry.do(ctx, func() error { return s.store.CreateCalculation(ctx, c) }); err != nil {
		return nil, storeError("record calculation", err)
	}
	s.logger.DebugContext(ctx, "calculation recorded", "id", c.ID, "method", c.Method)
	return c, nil
}

// RecordComparison persists a comparison session under the result's ID.
func (s *Service) RecordComparison(ctx context.Context, res *schema.ComparisonResult) (*store.ComparisonSession, error) {
	c := store.NewComparisonSession(res)
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if err := s.retry.do(ctx, func() error { return s.store.CreateComparison(ctx, c) }); err != nil {
		return nil, storeError("record comparison", err)
	}
	s.logger.DebugContext(ctx, "comparison recorded", "id", c.ID, "methods", len(c.Results))
	return c, nil
}

// ListCalculations returns matching calculations, newest first.
func (s *Service) ListCalculations(ctx context.Context, q Query) (*Listing, error) {
	if q.Method != "" && !q.Method.Valid() {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "unknown method %q", q.Method)
	}
	if q.Where != "" {
		if err := s.cel.Check(q.Where); err != nil {
			return nil, err
		}
	}
	if q.Project != "" {
		if err := s.jq.Check(q.Project); err != nil {
			return nil, err
		}
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	filter := store.CalculationFilter{Method: q.Method, Converged: q.Converged}
	out := &Listing{}
	if q.Where == "" {
		filter.Limit = limit
		rows, err := s.store.ListCalculations(ctx, filter)
		if err != nil {
			return nil, storeError("list calculations", err)
		}
		out.Calculations = rows
	} else {
		matched, err := s.scan(ctx, filter, q.Where, limit)
		if err != nil {
			return nil, err
		}
		out.Calculations = matched
	}
	out.Count = len(out.Calculations)

	if q.Project != "" {
		out.Projected = make([]any, 0, len(out.Calculations))
		for _, c := range out.Calculations {
			data, err := RecordMap(c)
			if err != nil {
				return nil, err
			}
			v, err := s.jq.Evaluate(ctx, q.Project, data)
			if err != nil {
				return nil, err
			}
			out.Projected = append(out.Projected, v)
		}
		out.Calculations = nil
	}
	return out, nil
}

// scan pages through the store newest first until limit rows satisfy where
// or the rows run out.
func (s *Service) scan(ctx context.Context, filter store.CalculationFilter, where string, limit int) ([]*store.Calculation, error) {
	var out []*store.Calculation
	filter.Limit = s.page
	for {
		rows, err := s.store.ListCalculations(ctx, filter)
		if err != nil {
			return nil, storeError("list calculations", err)
		}
		for _, c := range rows {
			ok, err := s.matches(ctx, where, c)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			out = append(out, c)
			if len(out) == limit {
				return out, nil
			}
		}
		if len(rows) < filter.Limit {
			return out, nil
		}
		filter.Offset += len(rows)
	}
}

// matches evaluates a CEL predicate. A record the predicate cannot be
// evaluated on (a null root compared with a number) does not match.
func (s *Service) matches(ctx context.Context, where string, c *store.Calculation) (bool, error) {
	data, err := RecordMap(c)
	if err != nil {
		return false, err
	}
	ok, err := s.cel.Matches(ctx, where, data)
	if err != nil {
		if schema.IsCode(err, schema.ErrCodeValidation) {
			return false, err
		}
		s.logger.DebugContext(ctx, "predicate skipped record", "id", c.ID, "error", err)
		return false, nil
	}
	return ok, nil
}

// ListComparisons returns the newest comparison sessions.
func (s *Service) ListComparisons(ctx context.Context, expression string, limit int) ([]*store.ComparisonSession, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := s.store.ListComparisons(ctx, store.ComparisonFilter{Expression: expression, Limit: limit})
	if err != nil {
		return nil, storeError("list comparisons", err)
	}
	return rows, nil
}

// GetCalculation returns one calculation by ID.
func (s *Service) GetCalculation(ctx context.Context, id string) (*store.Calculation, error) {
	c, err := s.store.GetCalculation(ctx, id)
	if err != nil {
		return nil, storeError("get calculation", err)
	}
	return c, nil
}

// GetComparison returns one comparison session by ID.
func (s *Service) GetComparison(ctx context.Context, id string) (*store.ComparisonSession, error) {
	c, err := s.store.GetComparison(ctx, id)
	if err != nil {
		return nil, storeError("get comparison", err)
	}
	return c, nil
}

// Delete removes a calculation or, failing that, a comparison with the given ID.
func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.retry.do(ctx, func() error { return s.store.DeleteCalculation(ctx, id) })
	if err == nil {
		return nil
	}
	if !schema.IsCode(err, schema.ErrCodeNotFound) {
		return storeError("delete calculation", err)
	}
	err = s.retry.do(ctx, func() error { return s.store.DeleteComparison(ctx, id) })
	if schema.IsCode(err, schema.ErrCodeNotFound) {
		return schema.NewErrorf(schema.ErrCodeNotFound, "no calculation or comparison %q", id)
	}
	if err != nil {
		return storeError("delete comparison", err)
	}
	return nil
}

// Clear removes all history and reports how much was deleted.
func (s *Service) Clear(ctx context.Context) (store.Counts, error) {
	var counts store.Counts
	err := s.retry.do(ctx, func() error {
		var err error
		counts, err = s.store.Clear(ctx)
		return err
	})
	if err != nil {
		return store.Counts{}, storeError("clear history", err)
	}
	s.logger.InfoContext(ctx, "history cleared",
		"calculations", counts.Calculations, "comparisons", counts.Comparisons)
	return counts, nil
}

// Prune removes history older than olderThan.
func (s *Service) Prune(ctx context.Context, olderThan time.Duration) (store.Counts, error) {
	if olderThan <= 0 {
		return store.Counts{}, schema.NewErrorf(schema.ErrCodeValidation, "retention must be positive, got %s", olderThan)
	}
	cutoff := s.now().Add(-olderThan)
	var counts store.Counts
	err := s.retry.do(ctx, func() error {
		var err error
		counts, err = s.store.PruneBefore(ctx, cutoff)
		return err
	})
	if err != nil {
		return store.Counts{}, storeError("prune history", err)
	}
	s.logger.InfoContext(ctx, "history pruned", "cutoff", cutoff,
		"calculations", counts.Calculations, "comparisons", counts.Comparisons)
	return counts, nil
}

// RecordMap flattens a calculation into the shape seen by CEL predicates and
// jq projections: JSON types only, undefined reals as null.
func RecordMap(c *store.Calculation) (map[string]any, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	for _, key := range []string{"root", "error", "convergence_rate"} {
		if m[key] == schema.UndefinedMarker {
			m[key] = nil
		}
	}
	return m, nil
}

// storeError keeps structured errors and wraps everything else as STORE_ERROR.
func storeError(op string, err error) error {
	if _, ok := err.(*schema.SolverError); ok {
		return err
	}
	return schema.NewErrorf(schema.ErrCodeStore, "%s: %v", op, err).WithCause(err)
}
