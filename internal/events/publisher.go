// Package events publishes settlement outcomes for back-office consumers.
// Publication is best effort: the lane never waits on a subscriber.
package events

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"

	"github.com/BrandonDHaskell/parkgate/internal/parkgate/store"
	"github.com/BrandonDHaskell/parkgate/internal/pkg/errs"
)

// Message is the JSON payload published per settlement event.
type Message struct {
	ID        string `json:"id"`
	RecordID  *int64 `json:"record_id,omitempty"`
	Plate     string `json:"plate"`
	DueAmount *int64 `json:"due_amount,omitempty"`
	Outcome   string `json:"outcome"`
	Reply     string `json:"reply,omitempty"`
	Detail    string `json:"detail,omitempty"`
	DecidedAt string `json:"decided_at"`
}

func NewMessage(ev store.SettlementEventRecord) Message {
	return Message{
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

// Conn is the subset of *nats.Conn the publisher uses.
type Conn interface {
	Publish(subj string, data []byte) error
}

// NATSPublisher publishes each event on <subject>.<outcome>, for example
// parkgate.settlements.settled.
type NATSPublisher struct {
	conn    Conn
	subject string
}

func NewNATSPublisher(conn Conn, subject string) *NATSPublisher {
	return &NATSPublisher{conn: conn, subject: subject}
}

func (p *NATSPublisher) Subject(ev store.SettlementEventRecord) string {
	return p.subject + "." + strings.ToLower(string(ev.Outcome))
}

func (p *NATSPublisher) Publish(ctx context.Context, ev store.SettlementEventRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(NewMessage(ev))
	if err != nil {
		return errs.Wrap(err, "encode settlement event")
	}
	subj := p.Subject(ev)
	if err := p.conn.Publish(subj, data); err != nil {
		return errs.Wrapf(err, "publish %s", subj)
	}
	return nil
}

// Noop drops every event. Used when no NATS URL is configured.
type Noop struct{}

func (Noop) Publish(context.Context, store.SettlementEventRecord) error { return nil }

// Connect dials NATS with unlimited reconnects and logs connection state
// changes.
func Connect(url string, logger *slog.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("parkgate-kiosk"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "err", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, errs.Wrapf(err, "connect nats %s", url)
	}
	logger.Info("nats connected", "url", nc.ConnectedUrl())
	return nc, nil
}
