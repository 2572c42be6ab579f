package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BrandonDHaskell/parkgate/internal/parkgate/types"
)

var (
	// ErrRecordNotFound is returned by Save when no row has the record's ID.
	ErrRecordNotFound = errors.New("parking record not found")

	// ErrRecordPaid is returned by Save when the stored row is already PAID.
	// PAID is terminal; nothing may overwrite it.
	ErrRecordPaid = errors.New("parking record already paid")

	// ErrDuplicateActive means more than one unpaid visit exists for a plate.
	// The entry registration side owns that data; the lane refuses to guess.
	ErrDuplicateActive = errors.New("multiple active records for plate")

	ErrInvalidRecord = errors.New("invalid parking record")
)

// ParkingRecord is one vehicle visit.
type ParkingRecord struct {
	ID            int64
	Plate         string
	EntryTime     time.Time
	ExitTime      *time.Time // nil until a due amount is computed
	DueAmount     *int64     // nil until computed
	PaymentStatus types.PaymentStatus
}

// Validate checks the row-level invariants every store enforces on Save.
func (r ParkingRecord) Validate() error {
	if !r.PaymentStatus.Valid() {
		return fmt.Errorf("%w: payment status %d", ErrInvalidRecord, r.PaymentStatus)
	}
	if r.DueAmount != nil && *r.DueAmount < 0 {
		return fmt.Errorf("%w: negative due amount %d", ErrInvalidRecord, *r.DueAmount)
	}
	if r.PaymentStatus == types.Paid && (r.DueAmount == nil || r.ExitTime == nil) {
		return fmt.Errorf("%w: paid record without due amount and exit time", ErrInvalidRecord)
	}
	return nil
}

// RecordStore is the lane's view of visit persistence. Implementations
// assume exclusive access by one lane; concurrent lanes against the same
// backing store need external locking.
type RecordStore interface {
	// FindActiveByPlate returns the plate's unpaid visit if there is one,
	// otherwise its most recent paid visit, otherwise (nil, nil).
	FindActiveByPlate(ctx context.Context, plate string) (*ParkingRecord, error)

	// Save overwrites the full row identified by rec.ID. It must be durable
	// when it returns.
	Save(ctx context.Context, rec ParkingRecord) error
}

// SelectCurrent applies the FindActiveByPlate rule to an already-filtered
// set of rows for one plate. Stores that cannot express it in a query use it.
func SelectCurrent(rows []ParkingRecord) (*ParkingRecord, error) {
	var active, latestPaid *ParkingRecord
	for i := range rows {
		r := &rows[i]
		if r.PaymentStatus == types.Unpaid {
			if active != nil {
				return nil, fmt.Errorf("%w: %s (records %d and %d)", ErrDuplicateActive, r.Plate, active.ID, r.ID)
			}
			active = r
			continue
		}
		if latestPaid == nil || r.EntryTime.After(latestPaid.EntryTime) ||
			(r.EntryTime.Equal(latestPaid.EntryTime) && r.ID > latestPaid.ID) {
			latestPaid = r
		}
	}
	if active != nil {
		out := active.Clone()
		return &out, nil
	}
	if latestPaid != nil {
		out := latestPaid.Clone()
		return &out, nil
	}
	return nil, nil
}

// Clone returns a deep copy so callers cannot alias a store's pointers.
func (r ParkingRecord) Clone() ParkingRecord {
	out := r
	if r.ExitTime != nil {
		t := *r.ExitTime
		out.ExitTime = &t
	}
	if r.DueAmount != nil {
		d := *r.DueAmount
		out.DueAmount = &d
	}
	return out
}
