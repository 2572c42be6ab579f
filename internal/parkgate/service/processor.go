package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/BrandonDHaskell/parkgate/internal/devicelink"
	"github.com/BrandonDHaskell/parkgate/internal/parkgate/store"
	"github.com/BrandonDHaskell/parkgate/internal/parkgate/types"
	"github.com/BrandonDHaskell/parkgate/internal/pkg/clock"
	"github.com/BrandonDHaskell/parkgate/internal/pkg/errs"
)

var (
	ErrClockSkew         = errs.New("entry time is in the future")
	ErrSettlementTimeout = errs.New("settlement reply timed out")
	ErrMalformedReply    = errs.New("malformed settlement reply")
	ErrStore             = errs.New("record store failure")
)

// DeviceLink is the part of the kiosk link the processor drives.
// *devicelink.Link satisfies it.
type DeviceLink interface {
	Send(ctx context.Context, line string) error
	ReadFrame(ctx context.Context, timeout time.Duration) (devicelink.Frame, error)
	Drain() []string
}

// Publisher receives every audit entry after it is written.
type Publisher interface {
	Publish(ctx context.Context, ev store.SettlementEventRecord) error
}

type ProcessorConfig struct {
	RatePerHour       int64
	SettlementTimeout time.Duration
}

// Processor drives one plate event at a time through lookup, fee
// computation, settlement and persistence. It assumes it is the only writer
// of the record store.
type Processor struct {
	records   store.RecordStore
	events    store.SettlementEventStore
	publisher Publisher
	clock     clock.Clock
	cfg       ProcessorConfig
	logger    *slog.Logger
}

// NewProcessor wires a processor. events and pub may be nil.
func NewProcessor(
	records store.RecordStore,
	events store.SettlementEventStore,
	pub Publisher,
	clk clock.Clock,
	cfg ProcessorConfig,
	logger *slog.Logger,
) *Processor {
	if clk == nil {
		clk = clock.NewRealClock()
	}
	return &Processor{
		records:   records,
		events:    events,
		publisher: pub,
		clock:     clk,
		cfg:       cfg,
		logger:    logger,
	}
}

// HandlePlateEvent runs the settlement transaction for plate over link.
//
// The error is nil for the business outcomes NOT_FOUND, ALREADY_PAID,
// SETTLED and DECLINED. CLOCK_ERROR carries ErrClockSkew, ABANDONED carries
// ErrStore, and UNCONFIRMED carries ErrSettlementTimeout, ErrMalformedReply
// or the link error that interrupted the exchange. A non-nil error may also
// accompany a business outcome when the final status frame could not be
// written.
func (p *Processor) HandlePlateEvent(ctx context.Context, link DeviceLink, plate string) (types.Outcome, error) {
	plate = types.NormalizePlate(plate)
	ev := store.SettlementEventRecord{Plate: plate}

	outcome, err := p.handle(ctx, link, plate, &ev)

	ev.Outcome = outcome
	if err != nil && ev.Detail == "" {
		ev.Detail = err.Error()
	}
	p.recordEvent(ctx, ev)
	return outcome, err
}

func (p *Processor) handle(ctx context.Context, link DeviceLink, plate string, ev *store.SettlementEventRecord) (types.Outcome, error) {
	rec, err := p.records.FindActiveByPlate(ctx, plate)
	if err != nil {
		return types.OutcomeAbandoned, errs.Mark(errs.Wrapf(err, "find record for %s", plate), ErrStore)
	}
	if rec == nil {
		return types.OutcomeNotFound, p.sendStatus(ctx, link, devicelink.StatusNotFound)
	}

	id := rec.ID
	ev.RecordID = &id

	if rec.PaymentStatus == types.Paid {
		ev.DueAmount = rec.DueAmount
		return types.OutcomeAlreadyPaid, p.sendStatus(ctx, link, devicelink.StatusPaid)
	}

	now := p.clock.Now()
	hours, due, err := Fee(rec.EntryTime, now, p.cfg.RatePerHour)
	if err != nil {
		ev.Detail = err.Error()
		if sendErr := p.sendStatus(ctx, link, devicelink.StatusFailed); sendErr != nil {
			p.logger.Warn("status frame not sent", "plate", plate, "err", sendErr)
		}
		return types.OutcomeClockError, err
	}

	exit := now
	rec.ExitTime = &exit
	rec.DueAmount = &due
	rec.PaymentStatus = types.Unpaid
	ev.DueAmount = &due

	if err := p.records.Save(ctx, *rec); err != nil {
		return types.OutcomeAbandoned, errs.Mark(errs.Wrapf(err, "persist due for record %d", rec.ID), ErrStore)
	}
	p.logger.Debug("due amount persisted", "plate", plate, "record_id", rec.ID, "hours", hours, "due", due)

	reply, err := p.settle(ctx, link, due)
	if err != nil {
		ev.Reply = reply.Raw
		if sendErr := p.sendStatus(context.WithoutCancel(ctx), link, devicelink.StatusFailed); sendErr != nil {
			p.logger.Warn("status frame not sent", "plate", plate, "err", sendErr)
		}
		return types.OutcomeUnconfirmed, err
	}
	ev.Reply = reply.Raw

	// The device has answered; finish even if shutdown starts now.
	ctx = context.WithoutCancel(ctx)

	switch reply.Kind {
	case devicelink.KindDone:
		rec.PaymentStatus = types.Paid
		if err := p.records.Save(ctx, *rec); err != nil {
			return types.OutcomeAbandoned, errs.Mark(errs.Wrapf(err, "persist payment for record %d", rec.ID), ErrStore)
		}
		return types.OutcomeSettled, p.sendStatus(ctx, link, devicelink.StatusPaid)

	default: // KindInsufficient; settle rejects everything else
		return types.OutcomeDeclined, p.sendStatus(ctx, link, devicelink.StatusInsufficient)
	}
}

// settle sends the due amount and waits for DONE or INSUFFICIENT. Lines
// buffered before the DUE frame belong to an earlier exchange and are
// discarded.
func (p *Processor) settle(ctx context.Context, link DeviceLink, due int64) (devicelink.Frame, error) {
	if stale := link.Drain(); len(stale) > 0 {
		p.logger.Warn("discarded stale device lines", "lines", stale)
	}
	if err := link.Send(ctx, devicelink.DueLine(due)); err != nil {
		return devicelink.Frame{}, errs.Wrap(err, "send due amount")
	}

	reply, err := link.ReadFrame(ctx, p.cfg.SettlementTimeout)
	if err != nil {
		if errs.Is(err, devicelink.ErrReadTimeout) {
			return devicelink.Frame{}, errs.Mark(
				fmt.Errorf("no reply within %s", p.cfg.SettlementTimeout), ErrSettlementTimeout)
		}
		return devicelink.Frame{}, errs.Wrap(err, "await settlement reply")
	}

	switch reply.Kind {
	case devicelink.KindDone, devicelink.KindInsufficient:
		return reply, nil
	default:
		return reply, errs.Mark(fmt.Errorf("unexpected reply %q", reply.Raw), ErrMalformedReply)
	}
}

func (p *Processor) sendStatus(ctx context.Context, link DeviceLink, s devicelink.Status) error {
	if err := link.Send(ctx, devicelink.StatusLine(s)); err != nil {
		return errs.Wrapf(err, "send status %s", s)
	}
	return nil
}

// recordEvent writes the audit entry and publishes it. Failures are logged
// only; the device has already been answered.
func (p *Processor) recordEvent(ctx context.Context, ev store.SettlementEventRecord) {
	ctx = context.WithoutCancel(ctx)
	ev.ID = uuid.NewString()
	ev.DecidedAt = p.clock.Now().UTC()

	if p.events != nil {
		if err := p.events.RecordEvent(ctx, ev); err != nil {
			p.logger.Error("settlement audit write failed", "plate", ev.Plate, "outcome", ev.Outcome, "err", err)
		}
	}
	if p.publisher != nil {
		if err := p.publisher.Publish(ctx, ev); err != nil {
			p.logger.Warn("settlement event not published", "plate", ev.Plate, "outcome", ev.Outcome, "err", err)
		}
	}
}
