package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/rendis/rootfinder/pkg/schema"
)

// LibSQLStore implements the Store interface using libSQL (embedded SQLite fork).
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens a libSQL database and returns a Store. dbPath is a
// plain filesystem path or a libSQL URL (file:, libsql://, http(s)://).
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", DSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

var dsnSchemes = []string{"file:", "libsql://", "http://", "https://"}

// DSN turns a plain path into the file: URL the libSQL driver requires.
// Values that already carry a supported scheme are returned unchanged.
func DSN(dbPath string) string {
	for _, scheme := range dsnSchemes {
		if strings.HasPrefix(dbPath, scheme) {
			return dbPath
		}
	}
	return "file:" + dbPath
}

// LocalPath returns the filesystem path behind a database location and false
// for remote databases.
func LocalPath(dbPath string) (string, bool) {
	dsn := DSN(dbPath)
	if !strings.HasPrefix(dsn, "file:") {
		return "", false
	}
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return path, true
}

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db)
}

// Vacuum runs VACUUM on the database.
func (s *LibSQLStore) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// --- Calculations ---

const calculationColumns = `id, expression, method, method_name, parameters, root, iterations, error, converged,
	execution_time, convergence_rate, failure_reason, iteration_history, tolerance, max_iterations, created_at`

func (s *LibSQLStore) CreateCalculation(ctx context.Context, c *Calculation) error {
	params, err := json.Marshal(paramsOrEmpty(c.Parameters))
	if err != nil {
		return fmt.Errorf("marshal parameters: %w", err)
	}
	history := c.IterationHistory
	if len(history) == 0 {
		history = json.RawMessage("[]")
	}
	c.CreatedAt = timeOrNow(c.CreatedAt)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO calculations (`+calculationColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Expression, string(c.Method), c.MethodName, string(params),
		nullReal(c.Root), c.Iterations, nullReal(c.Error), c.Converged,
		c.ExecutionTime, nullReal(c.ConvergenceRate), nullStr(c.FailureReason), string(history),
		c.Tolerance, c.MaxIterations, c.CreatedAt,
	)
	return err
}

func (s *LibSQLStore) GetCalculation(ctx context.Context, id string) (*Calculation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+calculationColumns+` FROM calculations WHERE id = ?`, id)
	c, err := scanCalculation(row)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("calculation", id)
	}
	return c, err
}

func (s *LibSQLStore) ListCalculations(ctx context.Context, filter CalculationFilter) ([]*Calculation, error) {
	var where []string
	var args []any

	if filter.Method != "" {
		where = append(where, "method = ?")
		args = append(args, string(filter.Method))
	}
	if filter.Converged != nil {
		where = append(where, "converged = ?")
		args = append(args, *filter.Converged)
	}
	if filter.Expression != "" {
		where = append(where, "expression = ?")
		args = append(args, filter.Expression)
	}
	if filter.Since != nil {
		where = append(where, "created_at >= ?")
		args = append(args, filter.Since.UTC())
	}

	query := "SELECT " + calculationColumns + " FROM calculations"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC" + limitClause(filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Calculation
	for rows.Next() {
		c, err := scanCalculation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *LibSQLStore) DeleteCalculation(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM calculations WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "calculation", id)
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCalculation(row rowScanner) (*Calculation, error) {
	c := &Calculation{}
	var (
		method, params, history string
		root, errVal, rate      sql.NullFloat64
		reason                  sql.NullString
	)
	if err := row.Scan(&c.ID, &c.Expression, &method, &c.MethodName, &params, &root, &c.Iterations, &errVal,
		&c.Converged, &c.ExecutionTime, &rate, &reason, &history, &c.Tolerance, &c.MaxIterations, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.Method = schema.Method(method)
	c.Root = realOrUndefined(root)
	c.Error = realOrUndefined(errVal)
	c.ConvergenceRate = realOrUndefined(rate)
	c.FailureReason = reason.String
	c.IterationHistory = json.RawMessage(history)
	if params != "" {
		if err := json.Unmarshal([]byte(params), &c.Parameters); err != nil {
			return nil, fmt.Errorf("unmarshal parameters: %w", err)
		}
	}
	return c, nil
}

// --- Comparison sessions ---

const comparisonColumns = `id, expression, tolerance, max_iterations, bisection_params, newton_params, secant_params,
	results_summary, created_at`

func (s *LibSQLStore) CreateComparison(ctx context.Context, c *ComparisonSession) error {
	bisection, err := nullableJSON(c.Params.Bisection)
	if err != nil {
		return fmt.Errorf("marshal bisection params: %w", err)
	}
	newton, err := nullableJSON(c.Params.Newton)
	if err != nil {
		return fmt.Errorf("marshal newton params: %w", err)
	}
	secant, err := nullableJSON(c.Params.Secant)
	if err != nil {
		return fmt.Errorf("marshal secant params: %w", err)
	}
	summary, err := json.Marshal(c.Results)
	if err != nil {
		return fmt.Errorf("marshal results summary: %w", err)
	}
	c.CreatedAt = timeOrNow(c.CreatedAt)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO comparison_sessions (`+comparisonColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Expression, c.Tolerance, c.MaxIterations, bisection, newton, secant,
		string(summary), c.CreatedAt,
	)
	return err
}

func (s *LibSQLStore) GetComparison(ctx context.Context, id string) (*ComparisonSession, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+comparisonColumns+` FROM comparison_sessions WHERE id = ?`, id)
	c, err := scanComparison(row)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("comparison", id)
	}
	return c, err
}

func (s *LibSQLStore) ListComparisons(ctx context.Context, filter ComparisonFilter) ([]*ComparisonSession, error) {
	var where []string
	var args []any

	if filter.Expression != "" {
		where = append(where, "expression = ?")
		args = append(args, filter.Expression)
	}
	if filter.Since != nil {
		where = append(where, "created_at >= ?")
		args = append(args, filter.Since.UTC())
	}

	query := "SELECT " + comparisonColumns + " FROM comparison_sessions"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC" + limitClause(filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ComparisonSession
	for rows.Next() {
		c, err := scanComparison(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *LibSQLStore) DeleteComparison(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM comparison_sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "comparison", id)
}

func scanComparison(row rowScanner) (*ComparisonSession, error) {
	c := &ComparisonSession{}
	var (
		bisection, newton, secant sql.NullString
		summary                   string
	)
	if err := row.Scan(&c.ID, &c.Expression, &c.Tolerance, &c.MaxIterations,
		&bisection, &newton, &secant, &summary, &c.CreatedAt); err != nil {
		return nil, err
	}
	if bisection.Valid {
		c.Params.Bisection = &schema.BisectionParams{}
		if err := json.Unmarshal([]byte(bisection.String), c.Params.Bisection); err != nil {
			return nil, fmt.Errorf("unmarshal bisection params: %w", err)
		}
	}
	if newton.Valid {
		c.Params.Newton = &schema.NewtonParams{}
		if err := json.Unmarshal([]byte(newton.String), c.Params.Newton); err != nil {
			return nil, fmt.Errorf("unmarshal newton params: %w", err)
		}
	}
	if secant.Valid {
		c.Params.Secant = &schema.SecantParams{}
		if err := json.Unmarshal([]byte(secant.String), c.Params.Secant); err != nil {
			return nil, fmt.Errorf("unmarshal secant params: %w", err)
		}
	}
	if err := json.Unmarshal([]byte(summary), &c.Results); err != nil {
		return nil, fmt.Errorf("unmarshal results summary: %w", err)
	}
	return c, nil
}

// --- Bulk removal ---

// Clear deletes every calculation and comparison in one transaction.
func (s *LibSQLStore) Clear(ctx context.Context) (Counts, error) {
	return s.deleteAll(ctx, "", nil)
}

// PruneBefore deletes rows created strictly before cutoff.
func (s *LibSQLStore) PruneBefore(ctx context.Context, cutoff time.Time) (Counts, error) {
	return s.deleteAll(ctx, " WHERE created_at < ?", []any{cutoff.UTC()})
}

func (s *LibSQLStore) deleteAll(ctx context.Context, where string, args []any) (Counts, error) {
	var counts Counts

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return counts, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM calculations"+where, args...)
	if err != nil {
		return counts, fmt.Errorf("delete calculations: %w", err)
	}
	if counts.Calculations, err = res.RowsAffected(); err != nil {
		return counts, err
	}

	res, err = tx.ExecContext(ctx, "DELETE FROM comparison_sessions"+where, args...)
	if err != nil {
		return counts, fmt.Errorf("delete comparisons: %w", err)
	}
	if counts.Comparisons, err = res.RowsAffected(); err != nil {
		return counts, err
	}

	if err := tx.Commit(); err != nil {
		return Counts{}, fmt.Errorf("commit delete: %w", err)
	}
	return counts, nil
}

// --- Helpers ---

func storeNotFound(resource, id string) *schema.SolverError {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s %q not found", resource, id)
}

func checkRowsAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storeNotFound(resource, id)
	}
	return nil
}

func limitClause(limit, offset int) string {
	if limit <= 0 {
		return ""
	}
	clause := fmt.Sprintf(" LIMIT %d", limit)
	if offset > 0 {
		clause += fmt.Sprintf(" OFFSET %d", offset)
	}
	return clause
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullReal(r schema.Real) any {
	if p := r.Ptr(); p != nil {
		return *p
	}
	return nil
}

func realOrUndefined(n sql.NullFloat64) schema.Real {
	if !n.Valid {
		return schema.Undefined()
	}
	return schema.Defined(n.Float64)
}

// nullableJSON marshals v, mapping a nil pointer to SQL NULL.
func nullableJSON[T any](v *T) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func paramsOrEmpty(m map[string]float64) map[string]float64 {
	if m == nil {
		return map[string]float64{}
	}
	return m
}

var _ Store = (*LibSQLStore)(nil)
