package sqlite_test

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/BrandonDHaskell/parkgate/internal/db"
)

// openTestDB returns an in-memory SQLite connection with the same PRAGMAs
// and schema as production. The connection is closed automatically when the
// test finishes.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	// Each test gets its own named in-memory database. The shared-cache URI
	// keeps it alive for the lifetime of the pool.
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf(
		"file:test_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)&_pragma=synchronous(FULL)&_pragma=busy_timeout(5000)",
		name,
	)

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("openTestDB: sql.Open: %v", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	if err := conn.Ping(); err != nil {
		conn.Close()
		t.Fatalf("openTestDB: ping: %v", err)
	}

	if err := db.Migrate(context.Background(), conn); err != nil {
		conn.Close()
		t.Fatalf("openTestDB: migrate: %v", err)
	}

	t.Cleanup(func() { conn.Close() })
	return conn
}

// newTestWriter returns a db.Worker backed by conn. The worker is closed
// automatically when the test finishes.
func newTestWriter(t *testing.T, conn *sql.DB) *db.Worker {
	t.Helper()

	w := db.NewWorker(conn)
	t.Cleanup(func() { w.Close() })
	return w
}

// seedVisit inserts a parking_records row the way the entry-registration
// side would and returns its record_id.
func seedVisit(t *testing.T, conn *sql.DB, plate string, entry time.Time, paid bool) int64 {
	t.Helper()

	nowMs := time.Now().UTC().UnixMilli()
	var (
		status  int
		exitMs  any
		dueAmnt any
	)
	if paid {
		status = 1
		exitMs = entry.Add(time.Hour).UnixMilli()
		dueAmnt = 200
	}

	res, err := conn.ExecContext(context.Background(), `
INSERT INTO parking_records(plate, entry_at_ms, exit_at_ms, due_amount, payment_status, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?);`, plate, entry.UTC().UnixMilli(), exitMs, dueAmnt, status, nowMs, nowMs)
	if err != nil {
		t.Fatalf("seedVisit(%s): %v", plate, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		t.Fatalf("seedVisit(%s) id: %v", plate, err)
	}
	return id
}
