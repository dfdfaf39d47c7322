// Package sqlstore appends result tables to a SQLite database. Tables are
// created and widened on demand, the way a dataframe append would.
package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/newthinker/btsweep/internal/core"
	"github.com/newthinker/btsweep/internal/result"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store is a results database.
type Store struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
	mu     sync.Mutex
}

// Batch is the metadata recorded for one sweep.
type Batch struct {
	Name       string
	Runtime    string
	StartedAt  time.Time
	Scenes     int
	Completed  int
	WithTrades int
	Failed     int
	FinalValue float64
	Elapsed    time.Duration
}

// Open opens (or creates) the database at path and applies migrations.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("creating %s: %w", dir, err))
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path, logger: logger}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	return s, nil
}

func (s *Store) migrateUp() error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	// m is not closed: closing it would close the shared connection.
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Reset deletes the database file at path. A missing file is not an error.
func Reset(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return core.WrapError(core.ErrStorageFailed, err)
	}
	return nil
}

// Sanitize turns a column or table name into the stored identifier.
func Sanitize(name string) string {
	return strings.NewReplacer(" ", "_", "%", "_pct").Replace(name)
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// Append writes every table of agg. Each table is written in its own
// transaction. It returns the rows written per table and the joined errors
// of the tables that failed.
func (s *Store) Append(ctx context.Context, agg *result.Aggregate) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	written := make(map[string]int, len(agg.Tables))
	var errs []error
	for _, t := range agg.Tables {
		if err := s.appendTable(ctx, t); err != nil {
			s.logger.Warn("appending table",
				zap.String("table", t.Name),
				zap.String("test_number", agg.TestNumber),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", t.Name, err))
			continue
		}
		written[t.Name] = len(t.Rows)
	}
	if len(errs) > 0 {
		return written, core.WrapError(core.ErrStorageFailed, errors.Join(errs...))
	}
	return written, nil
}

func (s *Store) appendTable(ctx context.Context, t result.Table) error {
	name := Sanitize(t.Name)
	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = Sanitize(c)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	existing, err := columns(ctx, tx, name)
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		defs := make([]string, len(cols))
		for i, c := range cols {
			defs[i] = quote(c) + " " + sqlType(t.Rows, i)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", quote(name), strings.Join(defs, ", "))); err != nil {
			return fmt.Errorf("creating table: %w", err)
		}
	} else {
		for i, c := range cols {
			if existing[c] {
				continue
			}
			stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", quote(name), quote(c), sqlType(t.Rows, i))
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("adding column %s: %w", c, err)
			}
		}
	}

	if len(t.Rows) > 0 {
		quoted := make([]string, len(cols))
		marks := make([]string, len(cols))
		for i, c := range cols {
			quoted[i] = quote(c)
			marks[i] = "?"
		}
		stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			quote(name), strings.Join(quoted, ", "), strings.Join(marks, ", ")))
		if err != nil {
			return err
		}
		defer stmt.Close()

		args := make([]any, len(cols))
		for _, r := range t.Rows {
			for i := range args {
				args[i] = nil
				if i < len(r) {
					args[i] = value(r[i])
				}
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return fmt.Errorf("inserting row: %w", err)
			}
		}
	}
	return tx.Commit()
}

func columns(ctx context.Context, tx *sql.Tx, table string) (map[string]bool, error) {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quote(table)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		out[name] = true
	}
	return out, rows.Err()
}

// sqlType infers a column type from the first non-nil value.
func sqlType(rows [][]any, col int) string {
	for _, r := range rows {
		if col >= len(r) || r[col] == nil {
			continue
		}
		switch r[col].(type) {
		case float32, float64:
			return "REAL"
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, bool:
			return "INTEGER"
		case time.Time:
			return "TIMESTAMP"
		default:
			return "TEXT"
		}
	}
	return "TEXT"
}

func value(v any) any {
	switch x := v.(type) {
	case time.Time:
		return x.Format(result.TimeLayout)
	case bool:
		if x {
			return 1
		}
		return 0
	case string, int, int64, float64, nil:
		return v
	default:
		return result.Cell(v)
	}
}

// ReadTable reads the rows of one test number back from a table.
func (s *Store) ReadTable(ctx context.Context, name, testNumber string) (result.Table, error) {
	name = Sanitize(name)
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT * FROM %s WHERE test_number = ?", quote(name)), testNumber)
	if err != nil {
		return result.Table{}, core.WrapError(core.ErrStorageFailed, fmt.Errorf("reading %s: %w", name, err))
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return result.Table{}, err
	}
	t := result.Table{Name: name, Columns: cols}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return result.Table{}, err
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		t.Rows = append(t.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return result.Table{}, err
	}
	if len(t.Rows) == 0 {
		return t, core.WrapError(core.ErrNoData, fmt.Errorf("%s has no rows for %s", name, testNumber))
	}
	return t, nil
}

// TestNumbers lists the test numbers recorded in the dimension table.
func (s *Store) TestNumbers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT test_number FROM %s", quote(result.TableDimension)))
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var tn string
		if err := rows.Scan(&tn); err != nil {
			return nil, err
		}
		out = append(out, tn)
	}
	return out, rows.Err()
}

// RecordBatch stores the metadata of a finished sweep.
func (s *Store) RecordBatch(ctx context.Context, b Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO batches (batchname, batch_runtime, started_at, scenes, completed,
			with_trades, failed, final_value, elapsed_seconds)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.Name, b.Runtime, b.StartedAt.UTC().Format(result.TimeLayout), b.Scenes, b.Completed,
		b.WithTrades, b.Failed, b.FinalValue, b.Elapsed.Seconds())
	if err != nil {
		return core.WrapError(core.ErrStorageFailed, fmt.Errorf("recording batch: %w", err))
	}
	return nil
}

// Batches returns recorded batches, newest first.
func (s *Store) Batches(ctx context.Context) ([]Batch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT batchname, batch_runtime, started_at, scenes, completed, with_trades,
			failed, COALESCE(final_value, 0), COALESCE(elapsed_seconds, 0)
		FROM batches ORDER BY id DESC`)
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	defer rows.Close()

	var out []Batch
	for rows.Next() {
		var (
			b       Batch
			started any
			elapsed float64
		)
		if err := rows.Scan(&b.Name, &b.Runtime, &started, &b.Scenes, &b.Completed,
			&b.WithTrades, &b.Failed, &b.FinalValue, &elapsed); err != nil {
			return nil, err
		}
		b.StartedAt = result.AsTime(started)
		b.Elapsed = time.Duration(elapsed * float64(time.Second))
		out = append(out, b)
	}
	return out, rows.Err()
}
