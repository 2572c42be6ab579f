package service_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/BrandonDHaskell/parkgate/internal/devicelink"
	"github.com/BrandonDHaskell/parkgate/internal/logging"
	"github.com/BrandonDHaskell/parkgate/internal/parkgate/store"
)

func silentLogger() *slog.Logger {
	return logging.Discard()
}

// fakeLink is a scripted device. Each ReadFrame pops the next reply; an
// empty script reads as a timeout.
type fakeLink struct {
	mu      sync.Mutex
	replies []string
	readErr error
	stale   []string
	sent    []string
	sendErr error
	timeout time.Duration
	onRead  func() // runs after each reply is handed out
}

func newFakeLink(replies ...string) *fakeLink {
	return &fakeLink{replies: replies}
}

func (f *fakeLink) Send(_ context.Context, line string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, line)
	return nil
}

func (f *fakeLink) ReadFrame(_ context.Context, timeout time.Duration) (devicelink.Frame, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timeout = timeout
	if f.readErr != nil {
		return devicelink.Frame{}, f.readErr
	}
	if len(f.replies) == 0 {
		return devicelink.Frame{}, devicelink.ErrReadTimeout
	}
	line := f.replies[0]
	f.replies = f.replies[1:]
	if f.onRead != nil {
		f.onRead()
	}
	return devicelink.Parse(line), nil
}

func (f *fakeLink) Drain() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.stale
	f.stale = nil
	return out
}

func (f *fakeLink) Sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

var errDiskGone = errors.New("disk gone")

// flakyRecordStore fails Save from the failOnSave-th call on (1-based).
// Zero never fails.
type flakyRecordStore struct {
	store.RecordStore
	failFind   bool
	failOnSave int
	saves      int
}

func (s *flakyRecordStore) FindActiveByPlate(ctx context.Context, plate string) (*store.ParkingRecord, error) {
	if s.failFind {
		return nil, errDiskGone
	}
	return s.RecordStore.FindActiveByPlate(ctx, plate)
}

func (s *flakyRecordStore) Save(ctx context.Context, rec store.ParkingRecord) error {
	s.saves++
	if s.failOnSave > 0 && s.saves >= s.failOnSave {
		return errDiskGone
	}
	return s.RecordStore.Save(ctx, rec)
}

// ctxRecordStore refuses work on a cancelled context, like the SQLite
// writer queue does.
type ctxRecordStore struct {
	store.RecordStore
}

func (s ctxRecordStore) Save(ctx context.Context, rec store.ParkingRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.RecordStore.Save(ctx, rec)
}

type capturePublisher struct {
	mu     sync.Mutex
	events []store.SettlementEventRecord
	err    error
}

func (c *capturePublisher) Publish(_ context.Context, ev store.SettlementEventRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return c.err
}

func (c *capturePublisher) Events() []store.SettlementEventRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]store.SettlementEventRecord(nil), c.events...)
}

func ptr[T any](v T) *T { return &v }
