package devicelink

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"go.bug.st/serial"
)

// OpenSerial opens a serial port in 8N1 at baud and discards anything left
// in the input buffer.
func OpenSerial(port string, baud int, logger *slog.Logger) (*Link, error) {
	p, err := serial.Open(port, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", port, err)
	}
	if err := p.ResetInputBuffer(); err != nil {
		closeOrLog(p, logger)
		return nil, fmt.Errorf("reset serial %s: %w", port, err)
	}
	logger.Info("serial link open", "port", port, "baud", baud)
	return New(p), nil
}

// DialTCP connects to a serial-over-TCP bridge (ser2net and similar) or a
// bench simulator.
func DialTCP(ctx context.Context, addr string, logger *slog.Logger) (*Link, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	logger.Info("tcp link open", "remote_addr", conn.RemoteAddr().String())
	return New(conn), nil
}
