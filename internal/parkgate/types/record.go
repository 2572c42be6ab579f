package types

import "strings"

// PaymentStatus mirrors the 0/1 "Payment Status" column kept by the lane.
type PaymentStatus int

const (
	Unpaid PaymentStatus = 0
	Paid   PaymentStatus = 1
)

func (s PaymentStatus) String() string {
	switch s {
	case Unpaid:
		return "UNPAID"
	case Paid:
		return "PAID"
	default:
		return "UNKNOWN"
	}
}

func (s PaymentStatus) Valid() bool {
	return s == Unpaid || s == Paid
}

// NormalizePlate strips whitespace and dashes and upper-cases the result so
// "rab 123-x" and "RAB123X" resolve to the same visit.
func NormalizePlate(plate string) string {
	plate = strings.TrimSpace(plate)
	plate = strings.ReplaceAll(plate, " ", "")
	plate = strings.ReplaceAll(plate, "-", "")
	return strings.ToUpper(plate)
}
