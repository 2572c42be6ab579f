package types

// RecordView is the ops API rendering of a parking visit.
type RecordView struct {
	ID            int64  `json:"id"`
	Plate         string `json:"plate"`
	EntryTime     string `json:"entry_time"`
	ExitTime      string `json:"exit_time,omitempty"`
	DueAmount     *int64 `json:"due_amount,omitempty"`
	PaymentStatus string `json:"payment_status"`
}

// SettlementView is the ops API rendering of one audit log entry.
type SettlementView struct {
	ID        string `json:"id"`
	RecordID  *int64 `json:"record_id,omitempty"`
	Plate     string `json:"plate"`
	DueAmount *int64 `json:"due_amount,omitempty"`
	Outcome   string `json:"outcome"`
	Reply     string `json:"reply,omitempty"`
	Detail    string `json:"detail,omitempty"`
	DecidedAt string `json:"decided_at"`
}

type SettlementListResponse struct {
	Plate       string           `json:"plate"`
	Settlements []SettlementView `json:"settlements"`
}

type HealthResponse struct {
	OK         bool   `json:"ok"`
	LinkUp     bool   `json:"link_up"`
	ServerTime string `json:"server_time"`
}
