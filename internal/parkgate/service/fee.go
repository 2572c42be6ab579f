package service

import (
	"fmt"
	"time"

	"github.com/BrandonDHaskell/parkgate/internal/pkg/errs"
)

// DurationHours returns the billable hours between entry and now. Any
// partial hour counts as a full one, exact hours do not round up, and the
// minimum is one hour. now before entry is ErrClockSkew.
func DurationHours(entry, now time.Time) (int64, error) {
	elapsed := now.Sub(entry)
	if elapsed < 0 {
		return 0, errs.Mark(
			fmt.Errorf("now %s is before entry %s", now.Format(time.RFC3339), entry.Format(time.RFC3339)),
			ErrClockSkew,
		)
	}

	hours := int64(elapsed / time.Hour)
	if elapsed%time.Hour != 0 {
		hours++
	}
	if hours < 1 {
		hours = 1
	}
	return hours, nil
}

// Fee computes billable hours and the amount due at ratePerHour.
func Fee(entry, now time.Time, ratePerHour int64) (hours, due int64, err error) {
	hours, err = DurationHours(entry, now)
	if err != nil {
		return 0, 0, err
	}
	return hours, hours * ratePerHour, nil
}
