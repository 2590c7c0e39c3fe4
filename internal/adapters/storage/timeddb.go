package storage

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"console/internal/adapters/http/perf"
)

// SQLDB is the database interface used by all stores.
// Both *sql.DB and *TimedDB satisfy this interface.
type SQLDB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var _ SQLDB = (*sql.DB)(nil)
var _ SQLDB = (*TimedDB)(nil)

// DefaultSlowQueryMs is the default threshold for slow query warnings.
const DefaultSlowQueryMs = 50

// SlowQueryThreshold reads CONSOLE_SLOW_QUERY_MS, falling back to the default.
func SlowQueryThreshold() float64 {
	if v := os.Getenv("CONSOLE_SLOW_QUERY_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return float64(n)
		}
	}
	return DefaultSlowQueryMs
}

// TimedDB wraps a *sql.DB to log slow queries and record them to a collector.
type TimedDB struct {
	db        *sql.DB
	collector *perf.Collector
	threshold float64
}

// NewTimedDB wraps db with timing instrumentation.
// PRE: db is a valid database connection
// POST: Returns a TimedDB; a nil collector only disables recording
func NewTimedDB(db *sql.DB, collector *perf.Collector) *TimedDB {
	return &TimedDB{db: db, collector: collector, threshold: SlowQueryThreshold()}
}

// RawDB returns the underlying *sql.DB.
func (t *TimedDB) RawDB() *sql.DB {
	return t.db
}

// Close closes the underlying database.
func (t *TimedDB) Close() error {
	return t.db.Close()
}

// ExecContext wraps sql.DB.ExecContext with timing.
func (t *TimedDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	result, err := t.db.ExecContext(ctx, query, args...)
	t.observe("exec", query, start, err)
	return result, err
}

// QueryContext wraps sql.DB.QueryContext with timing.
func (t *TimedDB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := t.db.QueryContext(ctx, query, args...)
	t.observe("query", query, start, err)
	return rows, err
}

// QueryRowContext wraps sql.DB.QueryRowContext with timing.
// Scan errors surface later and are not seen here.
func (t *TimedDB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	start := time.Now()
	row := t.db.QueryRowContext(ctx, query, args...)
	t.observe("query_row", query, start, row.Err())
	return row
}

// observe logs and records one statement, labelled by its SQL verb and table.
func (t *TimedDB) observe(op, query string, start time.Time, err error) {
	durationMs := float64(time.Since(start).Microseconds()) / 1000.0
	label := op + " " + statementLabel(query)

	switch {
	case err != nil && err != sql.ErrNoRows:
		slog.Warn("query_failed", "op", label, "duration_ms", durationMs, "error", err)
	case durationMs >= t.threshold:
		slog.Warn("slow_query", "op", label, "duration_ms", durationMs)
	default:
		slog.Debug("query", "op", label, "duration_ms", durationMs)
	}

	t.collector.Record(perf.Entry{
		Kind:       perf.KindQuery,
		Path:       label,
		Failed:     err != nil && err != sql.ErrNoRows,
		DurationMs: durationMs,
		Timestamp:  start,
	})
}

// statementLabel returns "VERB table" for a statement, e.g. "SELECT member".
func statementLabel(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return "?"
	}
	verb := strings.ToUpper(fields[0])
	var keyword string
	switch verb {
	case "SELECT", "DELETE":
		keyword = "FROM"
	case "INSERT", "REPLACE":
		keyword = "INTO"
	case "UPDATE":
		return verb + " " + tableAt(fields, 1)
	default:
		return verb
	}
	for i, f := range fields {
		if strings.EqualFold(f, keyword) {
			return verb + " " + tableAt(fields, i+1)
		}
	}
	return verb
}

func tableAt(fields []string, i int) string {
	if i >= len(fields) {
		return "?"
	}
	name, _, _ := strings.Cut(fields[i], "(")
	return strings.Trim(name, "`\"")
}
