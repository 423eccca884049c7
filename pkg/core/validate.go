package core

import (
	"errors"
	"fmt"
	"time"

	"github.com/ishayyemini/yieldx-redmite-dashboard/pkg/models"
)

var errCycleTooLong = errors.New("total daily cycle mustn't be over 24 hours")

// ValidateCycle checks the detection-cycle wall-clock fields before they
// are pushed to a device. Close must follow open and detection start
// must follow close, rolling past midnight when needed; the full daily
// cycle, detection duration included, has to fit in 24 hours.
func ValidateCycle(conf models.DetectionConf) error {
	open, err := parseClock(conf.Open1)
	if err != nil {
		return fmt.Errorf("invalid open time: %w", err)
	}

	closeAt, err := parseClock(conf.Close1)
	if err != nil {
		return fmt.Errorf("invalid close time: %w", err)
	}

	start, err := parseClock(conf.StartDet)
	if err != nil {
		return fmt.Errorf("invalid detection start time: %w", err)
	}

	if closeAt.Before(open) {
		closeAt = closeAt.Add(24 * time.Hour)
	}

	if start.Before(closeAt) {
		start = start.Add(24 * time.Hour)
	}

	daily := start.Sub(open) + time.Duration(conf.Detect)*time.Minute
	if daily > 24*time.Hour {
		return errCycleTooLong
	}

	return nil
}

// parseClock reads an "HH:MM" wall-clock value onto a reference day.
func parseClock(v string) (time.Time, error) {
	t, err := time.Parse("15:04", v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is not HH:MM", v)
	}

	return t, nil
}
