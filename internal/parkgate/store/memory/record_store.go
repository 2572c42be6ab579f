package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/BrandonDHaskell/parkgate/internal/parkgate/store"
	"github.com/BrandonDHaskell/parkgate/internal/parkgate/types"
)

// RecordStore keeps parking visits in a map. It is intended for tests and
// dev environments; nothing survives a restart.
type RecordStore struct {
	mu     sync.RWMutex
	nextID int64
	rows   map[int64]store.ParkingRecord
	saves  int
}

func NewRecordStore() *RecordStore {
	return &RecordStore{
		rows: make(map[int64]store.ParkingRecord),
	}
}

// Insert adds a visit and returns it with its assigned ID. It stands in for
// the entry-registration side, which lives outside the lane.
func (s *RecordStore) Insert(rec store.ParkingRecord) store.ParkingRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	rec = rec.Clone()
	rec.ID = s.nextID
	rec.Plate = types.NormalizePlate(rec.Plate)
	s.rows[rec.ID] = rec
	return rec.Clone()
}

func (s *RecordStore) FindActiveByPlate(_ context.Context, plate string) (*store.ParkingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []store.ParkingRecord
	for _, r := range s.rows {
		if r.Plate == plate {
			matches = append(matches, r)
		}
	}
	return store.SelectCurrent(matches)
}

func (s *RecordStore) Save(_ context.Context, rec store.ParkingRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.rows[rec.ID]
	if !ok {
		return store.ErrRecordNotFound
	}
	if cur.PaymentStatus == types.Paid {
		return store.ErrRecordPaid
	}
	s.rows[rec.ID] = rec.Clone()
	s.saves++
	return nil
}

// Get returns a copy of the row with the given ID. Test-only helper.
func (s *RecordStore) Get(id int64) (store.ParkingRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rows[id]
	return r.Clone(), ok
}

// Records returns copies of all rows ordered by ID. Test-only helper.
func (s *RecordStore) Records() []store.ParkingRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.ParkingRecord, 0, len(s.rows))
	for _, r := range s.rows {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Saves reports how many Save calls succeeded. Test-only helper.
func (s *RecordStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}
