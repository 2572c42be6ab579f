package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	dbpkg "github.com/BrandonDHaskell/parkgate/internal/db"
	"github.com/BrandonDHaskell/parkgate/internal/parkgate/store"
	"github.com/BrandonDHaskell/parkgate/internal/parkgate/types"
)

type RecordStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

// plateKeyExpr normalizes the stored plate the way types.NormalizePlate
// does, so rows written un-normalized by entry registration still match.
const plateKeyExpr = `REPLACE(REPLACE(UPPER(TRIM(plate)), ' ', ''), '-', '')`

func NewRecordStore(db *sql.DB, writer *dbpkg.Worker) *RecordStore {
	return &RecordStore{db: db, writer: writer}
}

func (s *RecordStore) FindActiveByPlate(ctx context.Context, plate string) (*store.ParkingRecord, error) {
	plate = types.NormalizePlate(plate)

	rows, err := s.db.QueryContext(ctx, `
SELECT record_id, plate, entry_at_ms, exit_at_ms, due_amount, payment_status
FROM parking_records
WHERE `+plateKeyExpr+` = ? AND payment_status = 0
ORDER BY record_id;
`, plate)
	if err != nil {
		return nil, fmt.Errorf("FindActiveByPlate query active: %w", err)
	}
	active, err := scanRecords(rows)
	if err != nil {
		return nil, fmt.Errorf("FindActiveByPlate scan active: %w", err)
	}

	switch len(active) {
	case 0:
	case 1:
		return &active[0], nil
	default:
		return nil, fmt.Errorf("%w: %s (%d unpaid rows)", store.ErrDuplicateActive, plate, len(active))
	}

	rows, err = s.db.QueryContext(ctx, `
SELECT record_id, plate, entry_at_ms, exit_at_ms, due_amount, payment_status
FROM parking_records
WHERE `+plateKeyExpr+` = ? AND payment_status = 1
ORDER BY entry_at_ms DESC, record_id DESC
LIMIT 1;
`, plate)
	if err != nil {
		return nil, fmt.Errorf("FindActiveByPlate query paid: %w", err)
	}
	paid, err := scanRecords(rows)
	if err != nil {
		return nil, fmt.Errorf("FindActiveByPlate scan paid: %w", err)
	}
	if len(paid) == 0 {
		return nil, nil
	}
	return &paid[0], nil
}

// Save overwrites the row's mutable columns. entry_at_ms and plate are owned
// by entry registration and are never rewritten here.
func (s *RecordStore) Save(ctx context.Context, rec store.ParkingRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	var exitMs any
	if rec.ExitTime != nil {
		exitMs = rec.ExitTime.UTC().UnixMilli()
	}
	var due any
	if rec.DueAmount != nil {
		due = *rec.DueAmount
	}
	nowMs := time.Now().UTC().UnixMilli()

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var status int
		err := tx.QueryRowContext(ctx, `
SELECT payment_status FROM parking_records WHERE record_id = ?;
`, rec.ID).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("Save %d: %w", rec.ID, store.ErrRecordNotFound)
		}
		if err != nil {
			return fmt.Errorf("Save lookup: %w", err)
		}
		if types.PaymentStatus(status) == types.Paid {
			return fmt.Errorf("Save %d: %w", rec.ID, store.ErrRecordPaid)
		}

		if _, err := tx.ExecContext(ctx, `
UPDATE parking_records
SET exit_at_ms     = ?,
    due_amount     = ?,
    payment_status = ?,
    updated_at_ms  = ?
WHERE record_id = ?;
`, exitMs, due, int(rec.PaymentStatus), nowMs, rec.ID); err != nil {
			return fmt.Errorf("Save update: %w", err)
		}
		return nil
	})
}

func scanRecords(rows *sql.Rows) ([]store.ParkingRecord, error) {
	defer rows.Close()

	var out []store.ParkingRecord
	for rows.Next() {
		var (
			rec     store.ParkingRecord
			entryMs int64
			exitMs  sql.NullInt64
			due     sql.NullInt64
			status  int
		)
		if err := rows.Scan(&rec.ID, &rec.Plate, &entryMs, &exitMs, &due, &status); err != nil {
			return nil, err
		}
		rec.Plate = types.NormalizePlate(rec.Plate)
		rec.EntryTime = time.UnixMilli(entryMs).UTC()
		if exitMs.Valid {
			t := time.UnixMilli(exitMs.Int64).UTC()
			rec.ExitTime = &t
		}
		if due.Valid {
			d := due.Int64
			rec.DueAmount = &d
		}
		rec.PaymentStatus = types.PaymentStatus(status)
		out = append(out, rec)
	}
	return out, rows.Err()
}
