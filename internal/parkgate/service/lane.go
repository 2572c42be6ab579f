package service

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/BrandonDHaskell/parkgate/internal/devicelink"
	"github.com/BrandonDHaskell/parkgate/internal/parkgate/types"
	"github.com/BrandonDHaskell/parkgate/internal/pkg/errs"
)

// LaneLink is a device link the lane owns and closes.
type LaneLink interface {
	DeviceLink
	io.Closer
}

// LinkOpener opens a fresh device link. The lane calls it at startup and
// after every link failure.
type LinkOpener func(ctx context.Context) (LaneLink, error)

type LaneConfig struct {
	// ResetDelay is how long to wait after opening the link before reading.
	// Arduino-class boards reboot when the port opens.
	ResetDelay time.Duration

	// IdleReadTimeout bounds each wait for the next plate frame.
	IdleReadTimeout time.Duration

	// ReconnectDelay is the pause between a link failure and the next open.
	ReconnectDelay time.Duration

	// OnLinkState, if set, is called whenever the link goes up or down.
	OnLinkState func(up bool)
}

// Lane is the kiosk's processing loop: one link, one event at a time.
type Lane struct {
	proc   *Processor
	open   LinkOpener
	cfg    LaneConfig
	logger *slog.Logger
	linkUp atomic.Bool
}

func NewLane(proc *Processor, open LinkOpener, cfg LaneConfig, logger *slog.Logger) *Lane {
	if cfg.IdleReadTimeout <= 0 {
		cfg.IdleReadTimeout = time.Second
	}
	return &Lane{proc: proc, open: open, cfg: cfg, logger: logger}
}

// LinkUp reports whether the lane currently holds an open device link.
func (l *Lane) LinkUp() bool {
	return l.linkUp.Load()
}

// Run processes plate events until ctx is cancelled. Per-event failures and
// link failures are logged and never end the loop. It returns nil on
// cancellation.
func (l *Lane) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		link, err := l.open(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			l.logger.Error("device link open failed", "err", err, "retry_in", l.cfg.ReconnectDelay)
			if !sleepCtx(ctx, l.cfg.ReconnectDelay) {
				return nil
			}
			continue
		}

		err = l.serve(ctx, link)
		l.setLinkUp(false)
		if cerr := link.Close(); cerr != nil {
			l.logger.Warn("device link close failed", "err", cerr)
		}

		if ctx.Err() != nil {
			l.logger.Info("lane stopped")
			return nil
		}
		l.logger.Error("device link lost", "err", err, "retry_in", l.cfg.ReconnectDelay)
		if !sleepCtx(ctx, l.cfg.ReconnectDelay) {
			return nil
		}
	}
}

// serve reads frames from one open link until it fails or ctx ends.
func (l *Lane) serve(ctx context.Context, link LaneLink) error {
	if !sleepCtx(ctx, l.cfg.ResetDelay) {
		return ctx.Err()
	}
	if boot := link.Drain(); len(boot) > 0 {
		l.logger.Debug("discarded device boot output", "lines", boot)
	}
	l.setLinkUp(true)
	l.logger.Info("lane ready")

	for {
		f, err := link.ReadFrame(ctx, l.cfg.IdleReadTimeout)
		if err != nil {
			if errs.Is(err, devicelink.ErrReadTimeout) {
				continue
			}
			return err
		}

		if f.Kind != devicelink.KindPlate {
			l.logger.Debug("ignoring device line", "line", f.Raw, "kind", f.Kind.String())
			continue
		}

		outcome, err := l.proc.HandlePlateEvent(ctx, link, f.Plate)
		l.logEvent(f.Plate, outcome, err)
		if err != nil && errs.Is(err, devicelink.ErrLinkClosed) {
			return err
		}
	}
}

func (l *Lane) logEvent(plate string, outcome types.Outcome, err error) {
	switch {
	case err == nil:
		l.logger.Info("plate event", "plate", plate, "outcome", outcome)
	case outcome == types.OutcomeUnconfirmed:
		l.logger.Warn("plate event unconfirmed", "plate", plate, "outcome", outcome,
			"timeout", errs.Is(err, ErrSettlementTimeout),
			"malformed", errs.Is(err, ErrMalformedReply),
			"err", err)
	default:
		l.logger.Error("plate event failed", "plate", plate, "outcome", outcome, "err", err)
	}
}

func (l *Lane) setLinkUp(up bool) {
	if l.linkUp.Swap(up) == up {
		return
	}
	if l.cfg.OnLinkState != nil {
		l.cfg.OnLinkState(up)
	}
}

// sleepCtx waits for d or ctx, reporting false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
