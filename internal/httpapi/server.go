package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/BrandonDHaskell/parkgate/internal/parkgate/store"
	"github.com/BrandonDHaskell/parkgate/internal/parkgate/types"
)

const (
	defaultSettlementLimit = 50
	maxSettlementLimit     = 500
)

type Dependencies struct {
	Logger      *slog.Logger
	Addr        string
	Records     store.RecordStore
	Settlements store.SettlementEventStore

	// LinkUp reports the lane's device link state for /healthz.
	LinkUp func() bool
}

// Server is the read-only ops API. It never mutates visit records; the lane
// is their only writer.
type Server struct {
	httpServer  *http.Server
	logger      *slog.Logger
	mux         *http.ServeMux
	records     store.RecordStore
	settlements store.SettlementEventStore
	linkUp      func() bool
}

func NewServer(d Dependencies) *Server {
	mux := http.NewServeMux()

	s := &Server{
		logger:      d.Logger,
		mux:         mux,
		records:     d.Records,
		settlements: d.Settlements,
		linkUp:      d.LinkUp,
	}

	mux.HandleFunc("GET /v1/records/{plate}", s.handleRecord)
	mux.HandleFunc("GET /v1/settlements", s.handleSettlements)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	handler := loggingMiddleware(d.Logger, mux)

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	plate := types.NormalizePlate(r.PathValue("plate"))
	if plate == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_plate", "plate is required")
		return
	}

	rec, err := s.records.FindActiveByPlate(r.Context(), plate)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateActive) {
			writeError(w, r, http.StatusConflict, "duplicate_active", err.Error())
			return
		}
		s.logger.Error("record lookup failed", "plate", plate, "err", err)
		writeError(w, r, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}
	if rec == nil {
		writeError(w, r, http.StatusNotFound, "record_not_found", "no visit for plate "+plate)
		return
	}

	write(w, r, http.StatusOK, recordView(*rec))
}

func (s *Server) handleSettlements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	plate := types.NormalizePlate(q.Get("plate"))
	if plate == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_plate", "plate query parameter is required")
		return
	}

	limit := defaultSettlementLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxSettlementLimit {
			writeError(w, r, http.StatusBadRequest, "invalid_limit",
				"limit must be between 1 and "+strconv.Itoa(maxSettlementLimit))
			return
		}
		limit = n
	}

	evs, err := s.settlements.ListByPlate(r.Context(), plate, limit)
	if err != nil {
		s.logger.Error("settlement listing failed", "plate", plate, "err", err)
		writeError(w, r, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}

	resp := types.SettlementListResponse{Plate: plate, Settlements: make([]types.SettlementView, 0, len(evs))}
	for _, ev := range evs {
		resp.Settlements = append(resp.Settlements, settlementView(ev))
	}
	write(w, r, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	up := s.linkUp != nil && s.linkUp()
	resp := types.HealthResponse{
		OK:         up,
		LinkUp:     up,
		ServerTime: time.Now().UTC().Format(time.RFC3339Nano),
	}

	status := http.StatusOK
	if !up {
		status = http.StatusServiceUnavailable
	}
	write(w, r, status, resp)
}
