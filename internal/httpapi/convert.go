package httpapi

import (
	"time"

	"github.com/goccy/go-json"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/BrandonDHaskell/parkgate/internal/parkgate/store"
	"github.com/BrandonDHaskell/parkgate/internal/parkgate/types"
)

// ── Views ────────────────────────────────────────────────────────────────────

func recordView(r store.ParkingRecord) types.RecordView {
	v := types.RecordView{
		ID:            r.ID,
		Plate:         r.Plate,
		EntryTime:     r.EntryTime.UTC().Format(time.RFC3339),
		DueAmount:     r.DueAmount,
		PaymentStatus: r.PaymentStatus.String(),
	}
	if r.ExitTime != nil {
		v.ExitTime = r.ExitTime.UTC().Format(time.RFC3339)
	}
	return v
}

func settlementView(ev store.SettlementEventRecord) types.SettlementView {
	return types.SettlementView{
		ID:        ev.ID,
		RecordID:  ev.RecordID,
		Plate:     ev.Plate,
		DueAmount: ev.DueAmount,
		Outcome:   string(ev.Outcome),
		Reply:     ev.Reply,
		Detail:    ev.Detail,
		DecidedAt: ev.DecidedAt.UTC().Format(time.RFC3339Nano),
	}
}

// ── Protobuf ─────────────────────────────────────────────────────────────────

// toStruct converts a JSON-tagged view into a google.protobuf.Struct with
// the same field names. Numbers become doubles.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}
