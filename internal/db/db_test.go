package db_test

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/parkgate/internal/db"
)

func openFileDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "parkgate.db")
	conn, err := db.Open(context.Background(), db.Config{Path: path, Env: "dev"})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestOpen_AppliesMigrations(t *testing.T) {
	conn := openFileDB(t)

	var n int
	err := conn.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&n)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, table := range []string{"parking_records", "settlement_events"} {
		var name string
		err := conn.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		require.NoError(t, err, "table %s", table)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	conn := openFileDB(t)

	require.NoError(t, db.Migrate(context.Background(), conn))

	var n int
	require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&n))
	assert.Equal(t, 2, n)
}

func TestSchema_PaidRequiresDueAndExit(t *testing.T) {
	conn := openFileDB(t)
	nowMs := time.Now().UTC().UnixMilli()

	_, err := conn.Exec(`
INSERT INTO parking_records(plate, entry_at_ms, payment_status, created_at_ms, updated_at_ms)
VALUES ('RAB123X', ?, 1, ?, ?)`, nowMs, nowMs, nowMs)
	assert.Error(t, err, "paid row without due amount must violate the CHECK constraint")
}

func TestSeedDev_SkipsExistingActiveVisits(t *testing.T) {
	conn := openFileDB(t)
	ctx := context.Background()
	opt := db.SeedDevOptions{Plates: []string{"RAB123A", "RAC456B"}}

	require.NoError(t, db.SeedDev(ctx, conn, opt))
	require.NoError(t, db.SeedDev(ctx, conn, opt))

	var n int
	require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM parking_records`).Scan(&n))
	assert.Equal(t, 2, n)
}

func TestSeedDev_NormalizesPlates(t *testing.T) {
	conn := openFileDB(t)
	ctx := context.Background()

	require.NoError(t, db.SeedDev(ctx, conn, db.SeedDevOptions{Plates: []string{"rab 123-a"}}))
	// Same visit spelled differently is not seeded twice.
	require.NoError(t, db.SeedDev(ctx, conn, db.SeedDevOptions{Plates: []string{"RAB123A"}}))

	rows, err := conn.Query(`SELECT plate FROM parking_records`)
	require.NoError(t, err)
	defer rows.Close()

	var plates []string
	for rows.Next() {
		var p string
		require.NoError(t, rows.Scan(&p))
		plates = append(plates, p)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"RAB123A"}, plates)
}

func TestWorker_CommitsAndRollsBack(t *testing.T) {
	conn := openFileDB(t)
	w := db.NewWorker(conn)
	defer w.Close()
	ctx := context.Background()
	nowMs := time.Now().UTC().UnixMilli()

	insert := func(plate string) db.TxFn {
		return func(ctx context.Context, tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, `
INSERT INTO parking_records(plate, entry_at_ms, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?)`, plate, nowMs, nowMs, nowMs)
			return err
		}
	}

	require.NoError(t, w.Do(ctx, insert("KEEP")))

	boom := fmt.Errorf("boom")
	err := w.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := insert("DROP")(ctx, tx); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var n int
	require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM parking_records`).Scan(&n))
	assert.Equal(t, 2, n)
}

func TestWorker_CloseIsIdempotent(t *testing.T) {
	conn := openFileDB(t)
	w := db.NewWorker(conn)

	w.Close()
	w.Close()

	err := w.Do(context.Background(), func(context.Context, *sql.Tx) error { return nil })
	assert.ErrorIs(t, err, db.ErrWorkerClosed)
}
