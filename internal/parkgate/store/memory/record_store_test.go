package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/parkgate/internal/parkgate/store"
	"github.com/BrandonDHaskell/parkgate/internal/parkgate/store/memory"
	"github.com/BrandonDHaskell/parkgate/internal/parkgate/types"
)

var entry = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

func TestRecordStore_FindActiveByPlate(t *testing.T) {
	s := memory.NewRecordStore()
	ctx := context.Background()

	rec, err := s.FindActiveByPlate(ctx, "RAB123X")
	require.NoError(t, err)
	assert.Nil(t, rec)

	inserted := s.Insert(store.ParkingRecord{Plate: "rab 123x", EntryTime: entry})

	rec, err = s.FindActiveByPlate(ctx, "RAB123X")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, inserted.ID, rec.ID)
	assert.Equal(t, types.Unpaid, rec.PaymentStatus)
}

func TestRecordStore_SaveOverwritesRow(t *testing.T) {
	s := memory.NewRecordStore()
	ctx := context.Background()
	rec := s.Insert(store.ParkingRecord{Plate: "RAB123X", EntryTime: entry})

	exit := entry.Add(90 * time.Minute)
	due := int64(400)
	rec.ExitTime = &exit
	rec.DueAmount = &due
	require.NoError(t, s.Save(ctx, rec))

	got, ok := s.Get(rec.ID)
	require.True(t, ok)
	require.NotNil(t, got.DueAmount)
	assert.Equal(t, int64(400), *got.DueAmount)
	assert.True(t, got.ExitTime.Equal(exit))
	assert.Equal(t, 1, s.Saves())
}

func TestRecordStore_PaidIsTerminal(t *testing.T) {
	s := memory.NewRecordStore()
	ctx := context.Background()
	exit := entry.Add(time.Hour)
	due := int64(200)
	rec := s.Insert(store.ParkingRecord{
		Plate: "RAB123X", EntryTime: entry,
		ExitTime: &exit, DueAmount: &due, PaymentStatus: types.Paid,
	})

	rec.DueAmount = nil
	rec.PaymentStatus = types.Unpaid
	err := s.Save(ctx, rec)
	assert.True(t, errors.Is(err, store.ErrRecordPaid))
	assert.Equal(t, 0, s.Saves())
}

func TestRecordStore_SaveUnknownID(t *testing.T) {
	s := memory.NewRecordStore()
	err := s.Save(context.Background(), store.ParkingRecord{ID: 42, Plate: "X"})
	assert.True(t, errors.Is(err, store.ErrRecordNotFound))
}

func TestRecordStore_SaveRejectsInvalid(t *testing.T) {
	s := memory.NewRecordStore()
	rec := s.Insert(store.ParkingRecord{Plate: "RAB123X", EntryTime: entry})
	rec.PaymentStatus = types.Paid

	err := s.Save(context.Background(), rec)
	assert.True(t, errors.Is(err, store.ErrInvalidRecord))
}

func TestRecordStore_DuplicateActive(t *testing.T) {
	s := memory.NewRecordStore()
	s.Insert(store.ParkingRecord{Plate: "RAB123X", EntryTime: entry})
	s.Insert(store.ParkingRecord{Plate: "RAB123X", EntryTime: entry.Add(time.Minute)})

	_, err := s.FindActiveByPlate(context.Background(), "RAB123X")
	assert.True(t, errors.Is(err, store.ErrDuplicateActive))
}

func TestSettlementEventStore_ListAndPrune(t *testing.T) {
	s := memory.NewSettlementEventStore()
	ctx := context.Background()
	now := time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC)

	for i, daysAgo := range []int{40, 10, 1} {
		require.NoError(t, s.RecordEvent(ctx, store.SettlementEventRecord{
			ID:        string(rune('a' + i)),
			Plate:     "RAB123X",
			Outcome:   types.OutcomeDeclined,
			DecidedAt: now.AddDate(0, 0, -daysAgo),
		}))
	}
	require.NoError(t, s.RecordEvent(ctx, store.SettlementEventRecord{
		ID: "z", Plate: "OTHER", Outcome: types.OutcomeNotFound, DecidedAt: now,
	}))

	got, err := s.ListByPlate(ctx, "RAB123X", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].ID)
	assert.Equal(t, "b", got[1].ID)

	deleted, err := s.PruneOlderThan(ctx, now.AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	assert.Len(t, s.Events(), 3)
}
