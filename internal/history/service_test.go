package history

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rendis/rootfinder/internal/engine"
	"github.com/rendis/rootfinder/internal/store"
	"github.com/rendis/rootfinder/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory Store. Unused methods fall through to the
// embedded nil interface and panic.
type memStore struct {
	store.Store

	mu           sync.Mutex
	calculations []*store.Calculation
	comparisons  []*store.ComparisonSession
	failWrites   int
	writeErr     error
	writes       int
	pruneCutoff  time.Time
	listFilters  []store.CalculationFilter
}

func (m *memStore) write() error {
	m.writes++
	if m.failWrites > 0 {
		m.failWrites--
		return m.writeErr
	}
	return nil
}

func (m *memStore) CreateCalculation(_ context.Context, c *store.Calculation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write(); err != nil {
		return err
	}
	c.CreatedAt = time.Now().UTC()
	m.calculations = append([]*store.Calculation{c}, m.calculations...)
	return nil
}

func (m *memStore) GetCalculation(_ context.Context, id string) (*store.Calculation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.calculations {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, schema.NewErrorf(schema.ErrCodeNotFound, "calculation %q not found", id)
}

func (m *memStore) ListCalculations(_ context.Context, f store.CalculationFilter) ([]*store.Calculation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listFilters = append(m.listFilters, f)
	var out []*store.Calculation
	skip := f.Offset
	for _, c := range m.calculations {
		if f.Method != "" && c.Method != f.Method {
			continue
		}
		if f.Converged != nil && c.Converged != *f.Converged {
			continue
		}
		if skip > 0 {
			skip--
			continue
		}
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
		out = append(out, c)
	}
	return out, nil
}

func (m *memStore) DeleteCalculation(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write(); err != nil {
		return err
	}
	for i, c := range m.calculations {
		if c.ID == id {
			m.calculations = append(m.calculations[:i], m.calculations[i+1:]...)
			return nil
		}
	}
	return schema.NewErrorf(schema.ErrCodeNotFound, "calculation %q not found", id)
}

func (m *memStore) CreateComparison(_ context.Context, c *store.ComparisonSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write(); err != nil {
		return err
	}
	m.comparisons = append([]*store.ComparisonSession{c}, m.comparisons...)
	return nil
}

func (m *memStore) ListComparisons(_ context.Context, f store.ComparisonFilter) ([]*store.ComparisonSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f.Limit > 0 && len(m.comparisons) > f.Limit {
		return m.comparisons[:f.Limit], nil
	}
	return m.comparisons, nil
}

func (m *memStore) DeleteComparison(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, c := range m.comparisons {
		if c.ID == id {
			m.comparisons = append(m.comparisons[:i], m.comparisons[i+1:]...)
			return nil
		}
	}
	return schema.NewErrorf(schema.ErrCodeNotFound, "comparison %q not found", id)
}

func (m *memStore) Clear(context.Context) (store.Counts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write(); err != nil {
		return store.Counts{}, err
	}
	counts := store.Counts{Calculations: int64(len(m.calculations)), Comparisons: int64(len(m.comparisons))}
	m.calculations, m.comparisons = nil, nil
	return counts, nil
}

func (m *memStore) PruneBefore(_ context.Context, cutoff time.Time) (store.Counts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneCutoff = cutoff
	return store.Counts{Calculations: 1}, nil
}

func newTestService(t *testing.T, st *memStore, opts ...Option) *Service {
	t.Helper()
	opts = append([]Option{WithRetryPolicy(RetryPolicy{Attempts: 3})}, opts...)
	s, err := NewService(st, opts...)
	require.NoError(t, err)
	return s
}

func solve(t *testing.T, req schema.SolveRequest) schema.MethodResult {
	t.Helper()
	pool := engine.NewWorkerPool(1)
	t.Cleanup(pool.Shutdown)
	r, err := engine.NewComparator(pool).Solve(context.Background(), req)
	require.NoError(t, err)
	return *r
}

func seed(t *testing.T, s *Service) {
	t.Helper()
	ctx := context.Background()
	reqs := []schema.SolveRequest{
		{Expression: "cos(x) - x", Method: schema.MethodBisection,
			Params: schema.MethodParams{Bisection: &schema.BisectionParams{A: 0, B: 1}}},
		{Expression: "cos(x) - x", Method: schema.MethodNewton,
			Params: schema.MethodParams{Newton: &schema.NewtonParams{X0: 0.5}}},
		{Expression: "x^2 + 1", Method: schema.MethodNewton, MaxIterations: 5,
			Params: schema.MethodParams{Newton: &schema.NewtonParams{X0: 0.5}}},
	}
	for _, req := range reqs {
		_, err := s.RecordCalculation(ctx, req, solve(t, req))
		require.NoError(t, err)
	}
}

func TestRecordCalculation(t *testing.T) {
	st := &memStore{}
	s := newTestService(t, st)
	req := schema.SolveRequest{Expression: "x*exp(x) - 1", Method: schema.MethodSecant,
		Params: schema.MethodParams{Secant: &schema.SecantParams{X0: 0, X1: 1}}}

	c, err := s.RecordCalculation(context.Background(), req, solve(t, req))
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "Secant", c.MethodName)
	assert.Equal(t, map[string]float64{"x0": 0, "x1": 1}, c.Parameters)
	assert.Equal(t, schema.DefaultTolerance, c.Tolerance)
	assert.True(t, c.Converged)
	assert.InDelta(t, 0.5671432904, c.Root.Float64(), 1e-6)
}

func TestRecordComparison_KeepsResultID(t *testing.T) {
	st := &memStore{}
	s := newTestService(t, st)

	res := &schema.ComparisonResult{
		ID: "cmp-1", Expression: "x", Tolerance: 1e-6, MaxIterations: 100,
		Results: map[schema.Method]schema.MethodResult{
			schema.MethodNewton: {Method: schema.MethodNewton, Converged: true, Root: schema.Defined(0)},
		},
	}
	c, err := s.RecordComparison(context.Background(), res)
	require.NoError(t, err)
	assert.Equal(t, "cmp-1", c.ID)
	require.Contains(t, c.Results, schema.MethodNewton)

	list, err := s.ListComparisons(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestListCalculations_Filters(t *testing.T) {
	s := newTestService(t, &memStore{})
	seed(t, s)
	ctx := context.Background()

	all, err := s.ListCalculations(ctx, Query{})
	require.NoError(t, err)
	assert.Equal(t, 3, all.Count)

	newton, err := s.ListCalculations(ctx, Query{Method: schema.MethodNewton})
	require.NoError(t, err)
	assert.Equal(t, 2, newton.Count)

	converged := false
	failed, err := s.ListCalculations(ctx, Query{Converged: &converged})
	require.NoError(t, err)
	require.Equal(t, 1, failed.Count)
	assert.Equal(t, "x^2 + 1", failed.Calculations[0].Expression)

	one, err := s.ListCalculations(ctx, Query{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, one.Count)
}

func TestListCalculations_Where(t *testing.T) {
	s := newTestService(t, &memStore{})
	seed(t, s)
	ctx := context.Background()

	fast, err := s.ListCalculations(ctx, Query{Where: `converged && iterations < 10`})
	require.NoError(t, err)
	require.Equal(t, 1, fast.Count)
	assert.Equal(t, schema.MethodNewton, fast.Calculations[0].Method)

	byFunc, err := s.ListCalculations(ctx, Query{Where: `function == "cos(x) - x"`, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, byFunc.Count)

	// the non-converged x^2 + 1 run still reports its last iterate
	positive, err := s.ListCalculations(ctx, Query{Where: `root > 0.7`})
	require.NoError(t, err)
	assert.Equal(t, 3, positive.Count)
}

func TestListCalculations_WherePages(t *testing.T) {
	ctx := context.Background()

	t.Run("stops at limit", func(t *testing.T) {
		st := &memStore{}
		s := newTestService(t, st, WithPageSize(1))
		seed(t, s)

		got, err := s.ListCalculations(ctx, Query{Where: `converged`, Limit: 1})
		require.NoError(t, err)
		require.Equal(t, 1, got.Count)
		assert.Equal(t, "cos(x) - x", got.Calculations[0].Expression)
		assert.Equal(t, schema.MethodNewton, got.Calculations[0].Method)

		require.Len(t, st.listFilters, 2, "the newest row fails the predicate, the second matches")
		for i, f := range st.listFilters {
			assert.Equal(t, 1, f.Limit)
			assert.Equal(t, i, f.Offset)
		}
	})

	t.Run("reads until rows run out", func(t *testing.T) {
		st := &memStore{}
		s := newTestService(t, st, WithPageSize(2))
		seed(t, s)

		got, err := s.ListCalculations(ctx, Query{Where: `root > 0.7`})
		require.NoError(t, err)
		assert.Equal(t, 3, got.Count)

		require.Len(t, st.listFilters, 2)
		assert.Equal(t, 0, st.listFilters[0].Offset)
		assert.Equal(t, 2, st.listFilters[1].Offset)
		for _, f := range st.listFilters {
			assert.Equal(t, 2, f.Limit, "a predicate query never reads the whole table")
		}
	})
}

func TestListCalculations_Project(t *testing.T) {
	s := newTestService(t, &memStore{})
	seed(t, s)

	out, err := s.ListCalculations(context.Background(), Query{
		Method:  schema.MethodBisection,
		Project: `{method, steps: (.iteration_history | length)}`,
	})
	require.NoError(t, err)
	assert.Nil(t, out.Calculations)
	require.Len(t, out.Projected, 1)
	assert.Equal(t, map[string]any{"method": "bisection", "steps": 20}, out.Projected[0])
}

func TestListCalculations_InvalidQueries(t *testing.T) {
	s := newTestService(t, &memStore{})

	_, err := s.ListCalculations(context.Background(), Query{Where: "converged &&"})
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))

	_, err = s.ListCalculations(context.Background(), Query{Project: "{"})
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))

	_, err = s.ListCalculations(context.Background(), Query{Method: "regula-falsi"})
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
}

func TestRecordMap_UndefinedBecomesNull(t *testing.T) {
	m, err := RecordMap(&store.Calculation{
		ID: "a", Method: schema.MethodSecant, Root: schema.Undefined(), Error: schema.Defined(0.5),
	})
	require.NoError(t, err)
	assert.Nil(t, m["root"])
	assert.Contains(t, m, "root")
	assert.Equal(t, 0.5, m["error"])
	assert.Nil(t, m["convergence_rate"])
}

func TestDelete(t *testing.T) {
	st := &memStore{}
	s := newTestService(t, st)
	seed(t, s)
	ctx := context.Background()

	id := st.calculations[0].ID
	require.NoError(t, s.Delete(ctx, id))
	_, err := s.GetCalculation(ctx, id)
	assert.True(t, schema.IsCode(err, schema.ErrCodeNotFound))

	_, err = s.RecordComparison(ctx, &schema.ComparisonResult{ID: "cmp-2"})
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, "cmp-2"))

	err = s.Delete(ctx, "missing")
	assert.True(t, schema.IsCode(err, schema.ErrCodeNotFound))
}

func TestClear(t *testing.T) {
	st := &memStore{}
	s := newTestService(t, st)
	seed(t, s)

	counts, err := s.Clear(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), counts.Calculations)
	assert.Empty(t, st.calculations)
}

func TestPrune(t *testing.T) {
	st := &memStore{}
	now := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	s := newTestService(t, st, WithClock(func() time.Time { return now }))

	_, err := s.Prune(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), st.pruneCutoff)

	_, err = s.Prune(context.Background(), 0)
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
}

func TestRetry_LockedDatabase(t *testing.T) {
	st := &memStore{failWrites: 2, writeErr: errors.New("database is locked")}
	s := newTestService(t, st)

	_, err := s.RecordComparison(context.Background(), &schema.ComparisonResult{ID: "c"})
	require.NoError(t, err)
	assert.Equal(t, 3, st.writes)
}

func TestRetry_GivesUp(t *testing.T) {
	st := &memStore{failWrites: 10, writeErr: errors.New("SQLITE_BUSY")}
	s := newTestService(t, st)

	_, err := s.RecordComparison(context.Background(), &schema.ComparisonResult{ID: "c"})
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeStore))
	assert.Equal(t, 4, st.writes)
}

func TestRetry_PermanentErrorNotRetried(t *testing.T) {
	st := &memStore{failWrites: 1, writeErr: errors.New("UNIQUE constraint failed")}
	s := newTestService(t, st)

	_, err := s.RecordComparison(context.Background(), &schema.ComparisonResult{ID: "c"})
	require.Error(t, err)
	assert.Equal(t, 1, st.writes)
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, isRetryable(nil))
	assert.False(t, isRetryable(context.Canceled))
	assert.True(t, isRetryable(context.DeadlineExceeded))
	assert.True(t, isRetryable(errors.New("database is locked")))
	assert.True(t, isRetryable(errors.New("database table is locked: calculations")))
	assert.True(t, isRetryable(errors.New("SQLITE_BUSY: cannot commit")))
	assert.False(t, isRetryable(errors.New("resource busy: device mount")))
	assert.False(t, isRetryable(schema.NewError(schema.ErrCodeNotFound, "busy")))
	assert.False(t, isRetryable(errors.New("no such table: calculations")))
}

func TestBackoff(t *testing.T) {
	p := RetryPolicy{Delay: 10 * time.Millisecond, MaxDelay: 50 * time.Millisecond}
	assert.Equal(t, 10*time.Millisecond, p.backoff(0))
	assert.Equal(t, 20*time.Millisecond, p.backoff(1))
	assert.Equal(t, 40*time.Millisecond, p.backoff(2))
	assert.Equal(t, 50*time.Millisecond, p.backoff(3))
	assert.Equal(t, time.Duration(0), RetryPolicy{}.backoff(5))
}

func TestWaitForBackoff_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, waitForBackoff(ctx, time.Hour), context.Canceled)
}
