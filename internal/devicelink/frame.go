package devicelink

import (
	"strconv"
	"strings"

	"github.com/BrandonDHaskell/parkgate/internal/parkgate/types"
)

// Kind classifies an inbound line.
type Kind int

const (
	KindUnknown Kind = iota
	KindPlate
	KindDone
	KindInsufficient
)

func (k Kind) String() string {
	switch k {
	case KindPlate:
		return "PLATE"
	case KindDone:
		return "DONE"
	case KindInsufficient:
		return "INSUFFICIENT"
	default:
		return "UNKNOWN"
	}
}

const platePrefix = "PLATE:"

// Frame is one parsed inbound line.
type Frame struct {
	Kind  Kind
	Plate string // normalized, set for KindPlate
	Raw   string // trimmed line as received
}

// Parse classifies a line. A PLATE frame whose identifier is empty after
// normalization is reported as KindUnknown.
func Parse(line string) Frame {
	raw := strings.TrimSpace(line)
	f := Frame{Kind: KindUnknown, Raw: raw}

	switch {
	case strings.HasPrefix(raw, platePrefix):
		plate := types.NormalizePlate(strings.TrimPrefix(raw, platePrefix))
		if plate != "" {
			f.Kind = KindPlate
			f.Plate = plate
		}
	case raw == "DONE":
		f.Kind = KindDone
	case raw == "INSUFFICIENT":
		f.Kind = KindInsufficient
	}
	return f
}

// Status is the payload of an outbound STATUS frame.
type Status string

const (
	StatusNotFound     Status = "NOT_FOUND"
	StatusPaid         Status = "PAID"
	StatusInsufficient Status = "INSUFFICIENT"
	StatusFailed       Status = "FAILED"
)

func StatusLine(s Status) string {
	return "STATUS:" + string(s)
}

func DueLine(amount int64) string {
	return "DUE:" + strconv.FormatInt(amount, 10)
}
