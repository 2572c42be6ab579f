// Package csvfile stores parking visits in the flat CSV log the kiosk
// hardware was first deployed with. Column names and the timestamp layout
// match that file so existing logs keep working.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BrandonDHaskell/parkgate/internal/parkgate/store"
	"github.com/BrandonDHaskell/parkgate/internal/parkgate/types"
)

const (
	ColPlate         = "Plate Number"
	ColEntryTime     = "Timestamp"
	ColPaymentStatus = "Payment Status"
	ColExitTime      = "Exit Time"
	ColDueAmount     = "Due Amount"

	// TimeLayout is the timestamp format used in the log.
	TimeLayout = "2006-01-02 15:04:05"
)

var ErrMissingColumn = errors.New("csv log missing required column")

// RecordStore reads and rewrites the whole file on every call. Record IDs
// are 1-based data row numbers; rows are only ever appended by the entry
// side, so a row keeps its ID.
type RecordStore struct {
	mu   sync.Mutex
	path string
	loc  *time.Location
}

// NewRecordStore returns a store over path. Timestamps in the file carry no
// zone and are read and written in loc (time.Local when nil).
func NewRecordStore(path string, loc *time.Location) *RecordStore {
	if loc == nil {
		loc = time.Local
	}
	return &RecordStore{path: path, loc: loc}
}

type table struct {
	header []string
	cols   map[string]int
	rows   [][]string
}

func (s *RecordStore) FindActiveByPlate(_ context.Context, plate string) (*store.ParkingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.load()
	if err != nil {
		return nil, err
	}

	var matches []store.ParkingRecord
	for i, row := range t.rows {
		if types.NormalizePlate(t.cell(row, ColPlate)) != plate {
			continue
		}
		rec, err := t.record(int64(i+1), row, s.loc)
		if err != nil {
			return nil, err
		}
		matches = append(matches, rec)
	}
	return store.SelectCurrent(matches)
}

func (s *RecordStore) Save(_ context.Context, rec store.ParkingRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.load()
	if err != nil {
		return err
	}
	if rec.ID < 1 || rec.ID > int64(len(t.rows)) {
		return fmt.Errorf("Save %d: %w", rec.ID, store.ErrRecordNotFound)
	}

	t.ensureColumn(ColPaymentStatus)
	t.ensureColumn(ColExitTime)
	t.ensureColumn(ColDueAmount)

	n := int(rec.ID - 1)
	cur, err := parseStatus(t.cell(t.rows[n], ColPaymentStatus))
	if err != nil {
		return fmt.Errorf("Save %d: %w", rec.ID, err)
	}
	if cur == types.Paid {
		return fmt.Errorf("Save %d: %w", rec.ID, store.ErrRecordPaid)
	}

	exit := ""
	if rec.ExitTime != nil {
		exit = rec.ExitTime.In(s.loc).Format(TimeLayout)
	}
	due := ""
	if rec.DueAmount != nil {
		due = strconv.FormatInt(*rec.DueAmount, 10)
	}
	t.set(n, ColExitTime, exit)
	t.set(n, ColDueAmount, due)
	t.set(n, ColPaymentStatus, strconv.Itoa(int(rec.PaymentStatus)))

	return s.write(t)
}

func (s *RecordStore) load() (*table, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open csv log: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty file", ErrMissingColumn)
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	t := &table{header: header, cols: make(map[string]int, len(header))}
	for i, h := range header {
		t.cols[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, c := range []string{ColPlate, ColEntryTime} {
		if _, ok := t.cols[c]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingColumn, c)
		}
	}

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv rows: %w", err)
	}
	t.rows = rows
	return t, nil
}

// write replaces the log atomically: temp file, fsync, rename, fsync dir.
func (s *RecordStore) write(t *table) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".plates_log-*.csv")
	if err != nil {
		return fmt.Errorf("create temp csv: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	w := csv.NewWriter(tmp)
	if err := w.Write(t.header); err != nil {
		tmp.Close()
		return fmt.Errorf("write csv header: %w", err)
	}
	if err := w.WriteAll(t.rows); err != nil {
		tmp.Close()
		return fmt.Errorf("write csv rows: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp csv: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp csv: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace csv log: %w", err)
	}

	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("open csv dir: %w", err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("sync csv dir: %w", err)
	}
	return nil
}

func (t *table) cell(row []string, col string) string {
	i, ok := t.cols[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func (t *table) ensureColumn(col string) {
	if _, ok := t.cols[col]; ok {
		return
	}
	t.cols[col] = len(t.header)
	t.header = append(t.header, col)
}

func (t *table) set(n int, col, v string) {
	i := t.cols[col]
	for len(t.rows[n]) <= i {
		t.rows[n] = append(t.rows[n], "")
	}
	t.rows[n][i] = v
}

func (t *table) record(id int64, row []string, loc *time.Location) (store.ParkingRecord, error) {
	rec := store.ParkingRecord{
		ID:    id,
		Plate: types.NormalizePlate(t.cell(row, ColPlate)),
	}

	entry, err := time.ParseInLocation(TimeLayout, t.cell(row, ColEntryTime), loc)
	if err != nil {
		return rec, fmt.Errorf("row %d entry time: %w", id, err)
	}
	rec.EntryTime = entry

	if v := t.cell(row, ColExitTime); v != "" {
		exit, err := time.ParseInLocation(TimeLayout, v, loc)
		if err != nil {
			return rec, fmt.Errorf("row %d exit time: %w", id, err)
		}
		rec.ExitTime = &exit
	}

	if v := t.cell(row, ColDueAmount); v != "" && !strings.EqualFold(v, "nan") {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return rec, fmt.Errorf("row %d due amount: %w", id, err)
		}
		d := int64(math.Round(f))
		rec.DueAmount = &d
	}

	status, err := parseStatus(t.cell(row, ColPaymentStatus))
	if err != nil {
		return rec, fmt.Errorf("row %d: %w", id, err)
	}
	rec.PaymentStatus = status
	return rec, nil
}

// parseStatus accepts the 0/1 flag, including the "1.0" form a float column
// round-trips to.
func parseStatus(v string) (types.PaymentStatus, error) {
	if v == "" || strings.EqualFold(v, "nan") {
		return types.Unpaid, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return types.Unpaid, fmt.Errorf("payment status %q: %w", v, err)
	}
	switch f {
	case 0:
		return types.Unpaid, nil
	case 1:
		return types.Paid, nil
	default:
		return types.Unpaid, fmt.Errorf("payment status %q out of range", v)
	}
}
