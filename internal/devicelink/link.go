package devicelink

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

var (
	ErrReadTimeout = errors.New("device link read timed out")
	ErrLinkClosed  = errors.New("device link closed")
)

// maxLineBytes bounds one inbound line. Plate frames are a few dozen bytes;
// longer lines are line noise and are dropped whole.
const maxLineBytes = 1024

// Link speaks the newline-framed kiosk protocol over any byte stream. A
// single reader goroutine feeds lines into a channel so reads can be
// bounded by a timeout without polling.
type Link struct {
	rwc io.ReadWriteCloser

	lines  chan string
	failed chan struct{} // closed when the reader goroutine exits
	err    error         // set before failed is closed

	wmu       sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

func New(rwc io.ReadWriteCloser) *Link {
	l := &Link{
		rwc:    rwc,
		lines:  make(chan string, 16),
		failed: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go l.readLoop()
	return l
}

func (l *Link) readLoop() {
	defer close(l.failed)

	r := bufio.NewReaderSize(l.rwc, maxLineBytes)
	oversized := false
	for {
		chunk, err := r.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			// Skip to the end of the line.
			oversized = true
			continue
		}
		if err != nil {
			if !oversized && len(chunk) > 0 {
				l.deliver(string(chunk))
			}
			l.err = fmt.Errorf("%w: %v", ErrLinkClosed, err)
			return
		}
		if oversized {
			oversized = false
			continue
		}
		if !l.deliver(strings.TrimRight(string(chunk), "\r\n")) {
			l.err = ErrLinkClosed
			return
		}
	}
}

// deliver queues one line, reporting false if the link was closed first.
func (l *Link) deliver(line string) bool {
	select {
	case l.lines <- line:
		return true
	case <-l.done:
		return false
	}
}

func (l *Link) isClosed() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

// ReadFrame waits for the next line. timeout <= 0 waits until ctx is done.
// Lines already buffered are returned even after the peer has gone away.
func (l *Link) ReadFrame(ctx context.Context, timeout time.Duration) (Frame, error) {
	select {
	case line := <-l.lines:
		return Parse(line), nil
	default:
	}

	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	select {
	case line := <-l.lines:
		return Parse(line), nil
	case <-l.failed:
		select {
		case line := <-l.lines:
			return Parse(line), nil
		default:
		}
		return Frame{}, l.err
	case <-timer:
		return Frame{}, ErrReadTimeout
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

// Send writes one newline-terminated line.
func (l *Link) Send(ctx context.Context, line string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if l.isClosed() {
		return ErrLinkClosed
	}

	l.wmu.Lock()
	defer l.wmu.Unlock()
	if _, err := io.WriteString(l.rwc, line+"\n"); err != nil {
		// A failed write leaves the stream unusable.
		return fmt.Errorf("%w: write %q: %v", ErrLinkClosed, line, err)
	}
	return nil
}

// Drain discards lines that arrived before the caller started waiting for a
// reply, such as a late DONE from an earlier timed-out settlement. It
// returns the discarded lines.
func (l *Link) Drain() []string {
	var out []string
	for {
		select {
		case line := <-l.lines:
			out = append(out, line)
		default:
			return out
		}
	}
}

// Close closes the underlying stream and stops the reader. Safe to call more
// than once.
func (l *Link) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.done)
		err = l.rwc.Close()
	})
	return err
}

// closeOrLog closes c and logs a failure instead of returning it.
func closeOrLog(c io.Closer, logger *slog.Logger) {
	if err := c.Close(); err != nil {
		logger.Error("error closing device link", "err", err)
	}
}
