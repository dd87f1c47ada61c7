package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/rootfinder/pkg/schema"
)

func newTestStore(t *testing.T) *LibSQLStore {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	s, err := NewLibSQLStore("file:" + dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() {
		_ = s.Close()
		_ = os.RemoveAll(dir)
	})
	return s
}

func TestDSN(t *testing.T) {
	tests := []struct {
		in, dsn, local string
		isLocal        bool
	}{
		{"/tmp/rootfinder.db", "file:/tmp/rootfinder.db", "/tmp/rootfinder.db", true},
		{"data/history.db", "file:data/history.db", "data/history.db", true},
		{"file:/tmp/h.db?_journal=wal", "file:/tmp/h.db?_journal=wal", "/tmp/h.db", true},
		{"libsql://db.example.turso.io", "libsql://db.example.turso.io", "", false},
		{"https://db.example.com", "https://db.example.com", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.dsn, DSN(tc.in))
			local, ok := LocalPath(tc.in)
			assert.Equal(t, tc.isLocal, ok)
			assert.Equal(t, tc.local, local)
		})
	}
}

func TestNewLibSQLStore_PlainPath(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "rootfinder.db")
	s, err := NewLibSQLStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))

	c := seedCalculation(t, s, schema.MethodBisection, true, time.Now().UTC())
	got, err := s.GetCalculation(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "the database is created at the plain path")
}

func seedCalculation(t *testing.T, s *LibSQLStore, method schema.Method, converged bool, createdAt time.Time) *Calculation {
	t.Helper()
	c := &Calculation{
		ID:               uuid.New().String(),
		Expression:       "cos(x) - x",
		Method:           method,
		MethodName:       method.DisplayName(),
		Parameters:       map[string]float64{"x0": 0.5},
		Root:             schema.Defined(0.7390851332),
		Iterations:       4,
		Error:            schema.Defined(1e-10),
		Converged:        converged,
		ExecutionTime:    0.0001,
		ConvergenceRate:  schema.Undefined(),
		IterationHistory: json.RawMessage(`[{"iteration":1,"x":0.5}]`),
		Tolerance:        1e-6,
		MaxIterations:    100,
		CreatedAt:        createdAt,
	}
	require.NoError(t, s.CreateCalculation(context.Background(), c))
	return c
}

func seedComparison(t *testing.T, s *LibSQLStore, createdAt time.Time) *ComparisonSession {
	t.Helper()
	c := &ComparisonSession{
		ID:            uuid.New().String(),
		Expression:    "x^2 - 2",
		Tolerance:     1e-6,
		MaxIterations: 100,
		Params: schema.MethodParams{
			Bisection: &schema.BisectionParams{A: 1, B: 2},
			Secant:    &schema.SecantParams{X0: 1, X1: 2},
		},
		Results: map[schema.Method]schema.Record{
			schema.MethodBisection: {Method: schema.MethodBisection, Root: schema.Defined(1.4142135), Iterations: 20, Converged: true},
			schema.MethodSecant:    {Method: schema.MethodSecant, Root: schema.Undefined(), Error: schema.Undefined()},
		},
		CreatedAt: createdAt,
	}
	require.NoError(t, s.CreateComparison(context.Background(), c))
	return c
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Migrate(context.Background()))

	var version int
	require.NoError(t, s.db.QueryRow(`SELECT MAX(version) FROM schema_version`).Scan(&version))
	assert.Equal(t, 1, version)
}

func TestLoadMigrations(t *testing.T) {
	ms, err := loadMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, ms)
	assert.Equal(t, 1, ms[0].Version)
	assert.Equal(t, "initial_schema", ms[0].Name)
}

func TestSplitStatements(t *testing.T) {
	stmts := splitStatements("-- only a comment;\nCREATE TABLE a (x INT);\n\n-- lead\nCREATE TABLE b (y INT);")
	require.Len(t, stmts, 2)
	assert.Contains(t, stmts[1], "CREATE TABLE b")
}

// --- Calculation Tests ---

func TestCreateAndGetCalculation(t *testing.T) {
	s := newTestStore(t)
	c := seedCalculation(t, s, schema.MethodNewton, true, time.Time{})

	got, err := s.GetCalculation(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
	assert.Equal(t, schema.MethodNewton, got.Method)
	assert.Equal(t, "Newton-Raphson", got.MethodName)
	assert.Equal(t, 0.5, got.Parameters["x0"])
	assert.Equal(t, schema.Defined(0.7390851332), got.Root)
	assert.False(t, got.ConvergenceRate.IsDefined())
	assert.True(t, got.Converged)
	assert.JSONEq(t, `[{"iteration":1,"x":0.5}]`, string(got.IterationHistory))
	assert.False(t, got.CreatedAt.IsZero())
}

func TestCalculation_UndefinedRootIsNull(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := &Calculation{
		ID: uuid.New().String(), Expression: "x^2 + 1", Method: schema.MethodSecant,
		MethodName: "Secant", Root: schema.Undefined(), Error: schema.Undefined(),
		FailureReason: "function values too close", Tolerance: 1e-6, MaxIterations: 100,
	}
	require.NoError(t, s.CreateCalculation(ctx, c))

	var isNull bool
	require.NoError(t, s.db.QueryRow(`SELECT root IS NULL FROM calculations WHERE id = ?`, c.ID).Scan(&isNull))
	assert.True(t, isNull)

	got, err := s.GetCalculation(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, got.Root.IsDefined())
	assert.False(t, got.Error.IsDefined())
	assert.Equal(t, "function values too close", got.FailureReason)
	assert.JSONEq(t, `[]`, string(got.IterationHistory))
}

func TestGetCalculation_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetCalculation(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeNotFound))
}

func TestListCalculations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	first := seedCalculation(t, s, schema.MethodBisection, true, base)
	seedCalculation(t, s, schema.MethodNewton, false, base.Add(time.Minute))
	last := seedCalculation(t, s, schema.MethodNewton, true, base.Add(2*time.Minute))

	list, err := s.ListCalculations(ctx, CalculationFilter{})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, last.ID, list[0].ID, "newest first")
	assert.Equal(t, first.ID, list[2].ID)

	list, err = s.ListCalculations(ctx, CalculationFilter{Method: schema.MethodNewton})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	converged := true
	list, err = s.ListCalculations(ctx, CalculationFilter{Method: schema.MethodNewton, Converged: &converged})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, last.ID, list[0].ID)

	list, err = s.ListCalculations(ctx, CalculationFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	since := base.Add(90 * time.Second)
	list, err = s.ListCalculations(ctx, CalculationFilter{Since: &since})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestDeleteCalculation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	c := seedCalculation(t, s, schema.MethodSecant, true, time.Time{})

	require.NoError(t, s.DeleteCalculation(ctx, c.ID))
	_, err := s.GetCalculation(ctx, c.ID)
	require.Error(t, err)

	err = s.DeleteCalculation(ctx, c.ID)
	assert.True(t, schema.IsCode(err, schema.ErrCodeNotFound))
}

// --- Comparison Tests ---

func TestCreateAndGetComparison(t *testing.T) {
	s := newTestStore(t)
	c := seedComparison(t, s, time.Time{})

	got, err := s.GetComparison(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, "x^2 - 2", got.Expression)
	require.NotNil(t, got.Params.Bisection)
	assert.Equal(t, 2.0, got.Params.Bisection.B)
	assert.Nil(t, got.Params.Newton)
	require.NotNil(t, got.Params.Secant)

	require.Len(t, got.Results, 2)
	assert.Equal(t, 20, got.Results[schema.MethodBisection].Iterations)
	assert.False(t, got.Results[schema.MethodSecant].Root.IsDefined())
}

func TestListAndDeleteComparisons(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	older := seedComparison(t, s, base)
	newer := seedComparison(t, s, base.Add(time.Minute))

	list, err := s.ListComparisons(ctx, ComparisonFilter{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)

	list, err = s.ListComparisons(ctx, ComparisonFilter{Expression: "cos(x)"})
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, s.DeleteComparison(ctx, older.ID))
	_, err = s.GetComparison(ctx, older.ID)
	assert.True(t, schema.IsCode(err, schema.ErrCodeNotFound))
}

// --- Bulk Tests ---

func TestClear(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedCalculation(t, s, schema.MethodNewton, true, time.Time{})
	seedCalculation(t, s, schema.MethodSecant, true, time.Time{})
	seedComparison(t, s, time.Time{})

	counts, err := s.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counts{Calculations: 2, Comparisons: 1}, counts)

	counts, err = s.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counts{}, counts)
}

func TestPruneBefore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seedCalculation(t, s, schema.MethodNewton, true, now.Add(-48*time.Hour))
	keep := seedCalculation(t, s, schema.MethodNewton, true, now.Add(-time.Hour))
	seedComparison(t, s, now.Add(-72*time.Hour))

	counts, err := s.PruneBefore(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, Counts{Calculations: 1, Comparisons: 1}, counts)

	list, err := s.ListCalculations(ctx, CalculationFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, keep.ID, list[0].ID)
}

func TestVacuum(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.Vacuum(context.Background()))
}
