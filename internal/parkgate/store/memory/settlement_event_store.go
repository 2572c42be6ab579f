package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/BrandonDHaskell/parkgate/internal/parkgate/store"
)

// SettlementEventStore is an in-memory append-only log of settlement
// outcomes. It is intended for use in tests and dev environments.
type SettlementEventStore struct {
	mu     sync.Mutex
	events []store.SettlementEventRecord
}

func NewSettlementEventStore() *SettlementEventStore {
	return &SettlementEventStore{}
}

func (s *SettlementEventStore) RecordEvent(_ context.Context, rec store.SettlementEventRecord) error {
	if rec.DecidedAt.IsZero() {
		rec.DecidedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, rec)
	return nil
}

func (s *SettlementEventStore) ListByPlate(_ context.Context, plate string, limit int) ([]store.SettlementEventRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.SettlementEventRecord
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].Plate == plate {
			out = append(out, s.events[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DecidedAt.After(out[j].DecidedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *SettlementEventStore) PruneOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.events[:0]
	var deleted int64
	for _, ev := range s.events {
		if ev.DecidedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, ev)
	}
	s.events = kept
	return deleted, nil
}

// Events returns a copy of all recorded events. Test-only helper.
func (s *SettlementEventStore) Events() []store.SettlementEventRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.SettlementEventRecord, len(s.events))
	copy(out, s.events)
	return out
}
