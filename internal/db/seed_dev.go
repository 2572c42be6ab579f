package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/BrandonDHaskell/parkgate/internal/parkgate/types"
)

type SeedDevOptions struct {
	// Plates to register as unpaid visits. Defaults to a small sample set.
	Plates []string

	// EntryAgo is how long before now the seeded visits entered.
	EntryAgo time.Duration
}

// SeedDev registers sample unpaid visits so a bench kiosk has something to
// look up. Plates that already have an unpaid visit are skipped, so it is
// safe to run on every start.
func SeedDev(ctx context.Context, db *sql.DB, opt SeedDevOptions) error {
	plates := opt.Plates
	if len(plates) == 0 {
		plates = []string{"RAB123A", "RAC456B", "RAD789C"}
	}
	ago := opt.EntryAgo
	if ago <= 0 {
		ago = 95 * time.Minute
	}

	now := time.Now().UTC()
	nowMs := now.UnixMilli()
	entryMs := now.Add(-ago).UnixMilli()

	for _, plate := range plates {
		plate = types.NormalizePlate(plate)
		if _, err := db.ExecContext(ctx, `
INSERT INTO parking_records(plate, entry_at_ms, payment_status, created_at_ms, updated_at_ms)
SELECT ?, ?, 0, ?, ?
WHERE NOT EXISTS (
  SELECT 1 FROM parking_records
  WHERE REPLACE(REPLACE(UPPER(TRIM(plate)), ' ', ''), '-', '') = ? AND payment_status = 0
);`, plate, entryMs, nowMs, nowMs, plate); err != nil {
			return fmt.Errorf("seed visit %s: %w", plate, err)
		}
	}

	return nil
}
