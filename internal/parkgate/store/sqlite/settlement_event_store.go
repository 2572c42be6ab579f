package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	dbpkg "github.com/BrandonDHaskell/parkgate/internal/db"
	"github.com/BrandonDHaskell/parkgate/internal/parkgate/store"
	"github.com/BrandonDHaskell/parkgate/internal/parkgate/types"
)

type SettlementEventStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewSettlementEventStore(db *sql.DB, writer *dbpkg.Worker) *SettlementEventStore {
	return &SettlementEventStore{db: db, writer: writer}
}

func (s *SettlementEventStore) RecordEvent(ctx context.Context, rec store.SettlementEventRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.DecidedAt.IsZero() {
		rec.DecidedAt = time.Now().UTC()
	}

	var recordID any
	if rec.RecordID != nil {
		recordID = *rec.RecordID
	}
	var due any
	if rec.DueAmount != nil {
		due = *rec.DueAmount
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO settlement_events(
  event_id, record_id, plate, due_amount, outcome, reply, detail, decided_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?);
`,
			rec.ID, recordID, rec.Plate, due, string(rec.Outcome),
			nullString(rec.Reply), nullString(rec.Detail), rec.DecidedAt.UTC().UnixMilli(),
		); err != nil {
			return fmt.Errorf("RecordEvent insert: %w", err)
		}
		return nil
	})
}

func (s *SettlementEventStore) ListByPlate(ctx context.Context, plate string, limit int) ([]store.SettlementEventRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT event_id, record_id, plate, due_amount, outcome, reply, detail, decided_at_ms
FROM settlement_events
WHERE plate = ?
ORDER BY decided_at_ms DESC, rowid DESC
LIMIT ?;
`, plate, limit)
	if err != nil {
		return nil, fmt.Errorf("ListByPlate query: %w", err)
	}
	defer rows.Close()

	var out []store.SettlementEventRecord
	for rows.Next() {
		var (
			rec       store.SettlementEventRecord
			recordID  sql.NullInt64
			due       sql.NullInt64
			outcome   string
			reply     sql.NullString
			detail    sql.NullString
			decidedMs int64
		)
		if err := rows.Scan(&rec.ID, &recordID, &rec.Plate, &due, &outcome, &reply, &detail, &decidedMs); err != nil {
			return nil, fmt.Errorf("ListByPlate scan: %w", err)
		}
		if recordID.Valid {
			id := recordID.Int64
			rec.RecordID = &id
		}
		if due.Valid {
			d := due.Int64
			rec.DueAmount = &d
		}
		rec.Outcome = types.Outcome(outcome)
		rec.Reply = reply.String
		rec.Detail = detail.String
		rec.DecidedAt = time.UnixMilli(decidedMs).UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByPlate rows: %w", err)
	}
	return out, nil
}

// PruneOlderThan deletes audit rows decided before cutoff and returns the
// number of rows deleted. Uses idx_settlement_events_time.
func (s *SettlementEventStore) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	cutoffMs := cutoff.UTC().UnixMilli()

	var deleted int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
DELETE FROM settlement_events
WHERE decided_at_ms < ?;
`, cutoffMs)
		if err != nil {
			return fmt.Errorf("PruneOlderThan: %w", err)
		}
		deleted, _ = res.RowsAffected()
		return nil
	})
	return deleted, err
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
