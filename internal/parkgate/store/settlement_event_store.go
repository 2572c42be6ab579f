package store

import (
	"context"
	"time"

	"github.com/BrandonDHaskell/parkgate/internal/parkgate/types"
)

// SettlementEventRecord captures one processed plate event for the audit log.
type SettlementEventRecord struct {
	ID        string // UUID
	RecordID  *int64 // nil when no visit matched
	Plate     string
	DueAmount *int64
	Outcome   types.Outcome
	Reply     string // raw settlement token from the device, if any
	Detail    string // error text for CLOCK_ERROR, UNCONFIRMED and ABANDONED
	DecidedAt time.Time
}

// SettlementEventStore persists settlement outcomes as an append-only log.
type SettlementEventStore interface {
	RecordEvent(ctx context.Context, rec SettlementEventRecord) error

	// ListByPlate returns up to limit entries for plate, newest first.
	ListByPlate(ctx context.Context, plate string, limit int) ([]SettlementEventRecord, error)

	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
