package storage

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"console/internal/adapters/http/perf"
)

func openTimedTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db := openTestDB(t)
	if _, err := db.Exec("CREATE TABLE test (id TEXT PRIMARY KEY, val TEXT)"); err != nil {
		t.Fatalf("create: %v", err)
	}
	return db
}

// TestTimedDB_RecordsEveryStatement verifies each call lands in the collector.
func TestTimedDB_RecordsEveryStatement(t *testing.T) {
	collector := perf.NewCollector(100)
	tdb := NewTimedDB(openTimedTestDB(t), collector)
	ctx := context.Background()

	if _, err := tdb.ExecContext(ctx, "INSERT INTO test (id, val) VALUES (?, ?)", "1", "hello"); err != nil {
		t.Fatalf("ExecContext: %v", err)
	}
	rows, err := tdb.QueryContext(ctx, "SELECT id FROM test")
	if err != nil {
		t.Fatalf("QueryContext: %v", err)
	}
	rows.Close()
	var val string
	if err := tdb.QueryRowContext(ctx, "SELECT val FROM test WHERE id = ?", "1").Scan(&val); err != nil || val != "hello" {
		t.Fatalf("QueryRowContext: %q %v", val, err)
	}

	if collector.TotalRecorded() != 3 {
		t.Errorf("TotalRecorded = %d, want 3", collector.TotalRecorded())
	}
}

// TestTimedDB_ErrorPassthrough verifies SQL errors are returned unchanged and still timed.
func TestTimedDB_ErrorPassthrough(t *testing.T) {
	collector := perf.NewCollector(100)
	tdb := NewTimedDB(openTimedTestDB(t), collector)

	if _, err := tdb.ExecContext(context.Background(), "INSERT INTO nonexistent_table VALUES (?)", 1); err == nil {
		t.Fatal("expected error from invalid SQL, got nil")
	}
	var val string
	err := tdb.QueryRowContext(context.Background(), "SELECT val FROM test WHERE id = ?", "missing").Scan(&val)
	if err != sql.ErrNoRows {
		t.Errorf("expected sql.ErrNoRows, got %v", err)
	}
	if collector.TotalRecorded() != 2 {
		t.Errorf("TotalRecorded = %d, want 2 (must record even on error)", collector.TotalRecorded())
	}
}

// TestTimedDB_CancelledContext verifies a cancelled context errors and is still timed.
func TestTimedDB_CancelledContext(t *testing.T) {
	collector := perf.NewCollector(100)
	tdb := NewTimedDB(openTimedTestDB(t), collector)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := tdb.ExecContext(ctx, "INSERT INTO test (id, val) VALUES (?, ?)", "1", "x"); err == nil {
		t.Fatal("expected error from cancelled context, got nil")
	}
	if collector.TotalRecorded() != 1 {
		t.Errorf("TotalRecorded = %d, want 1", collector.TotalRecorded())
	}
}

// TestTimedDB_NilCollector verifies TimedDB works without a collector.
func TestTimedDB_NilCollector(t *testing.T) {
	db := openTimedTestDB(t)
	tdb := NewTimedDB(db, nil)
	if _, err := tdb.ExecContext(context.Background(), "INSERT INTO test (id, val) VALUES (?, ?)", "1", "x"); err != nil {
		t.Fatalf("ExecContext with nil collector: %v", err)
	}
	if tdb.RawDB() != db {
		t.Error("RawDB() should return the original *sql.DB")
	}
}

func TestStatementLabel(t *testing.T) {
	tests := map[string]string{
		"SELECT id, name FROM member WHERE id = ?":   "SELECT member",
		"insert into member (id) values (?)":         "INSERT member",
		"UPDATE member SET name = ? WHERE id = ?":    "UPDATE member",
		"DELETE FROM member WHERE id = ?":            "DELETE member",
		"PRAGMA journal_mode=WAL":                    "PRAGMA",
		"   ":                                        "?",
		"INSERT OR REPLACE INTO test(id) VALUES (?)": "INSERT test",
	}
	for query, want := range tests {
		if got := statementLabel(query); got != want {
			t.Errorf("statementLabel(%q) = %q, want %q", query, got, want)
		}
	}
}

// TestTimedDB_ConcurrentMixedOps verifies no races under concurrent calls.
func TestTimedDB_ConcurrentMixedOps(t *testing.T) {
	collector := perf.NewCollector(1000)
	tdb := NewTimedDB(openTimedTestDB(t), collector)
	ctx := context.Background()
	tdb.ExecContext(ctx, "INSERT INTO test (id, val) VALUES (?, ?)", "seed", "data")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var v string
			tdb.QueryRowContext(ctx, "SELECT val FROM test WHERE id = ?", "seed").Scan(&v)
			tdb.ExecContext(ctx, "INSERT OR REPLACE INTO test (id, val) VALUES (?, ?)", "w", "v")
		}()
	}
	wg.Wait()

	if collector.TotalRecorded() != 21 {
		t.Errorf("TotalRecorded = %d, want 21", collector.TotalRecorded())
	}
}

// BenchmarkTimedDB_ExecContext measures per-call overhead of the timing wrapper.
func BenchmarkTimedDB_ExecContext(b *testing.B) {
	db, _ := sql.Open("sqlite", ":memory:")
	defer db.Close()
	db.SetMaxOpenConns(1)
	db.Exec("CREATE TABLE bench (id INTEGER PRIMARY KEY, val TEXT)")
	tdb := NewTimedDB(db, perf.NewCollector(perf.DefaultRingSize))

	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tdb.ExecContext(ctx, "INSERT OR REPLACE INTO bench (id, val) VALUES (?, ?)", 1, "x")
	}
}
