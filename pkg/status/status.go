// Package status derives human-readable device status from a record's
// mode and timestamps. Everything here is pure; the underlying data is
// never touched.
package status

import (
	"fmt"
	"time"

	"github.com/ishayyemini/yieldx-redmite-dashboard/pkg/models"
)

// Mode is the lifecycle state of a device, derived from which cycle
// timestamps have occurred.
type Mode string

const (
	ModeIdle          Mode = "idle"
	ModeTraining      Mode = "training"
	ModeTrainingDone  Mode = "training_done"
	ModeDetecting     Mode = "detecting"
	ModeDetectionDone Mode = "detection_done"
)

// Info is the derived presentation state of one device.
type Info struct {
	Mode  Mode
	Text  string
	Stale bool
}

// ModeOf walks the cycle timestamp ladder: a device with no start is
// idle, one with a start but no end is training, and so on.
func ModeOf(rec models.DeviceRecord) Mode {
	switch {
	case rec.Status.Start.IsZero():
		return ModeIdle
	case rec.Status.End.IsZero():
		return ModeTraining
	case rec.Status.Trained.IsZero():
		return ModeTrainingDone
	case rec.Status.Detection.IsZero():
		return ModeDetecting
	default:
		return ModeDetectionDone
	}
}

// Derive computes the status line and staleness flag for a record at the
// given instant. A record is stale when the clock has run more than
// window past its predicted next update.
func Derive(rec models.DeviceRecord, now time.Time, window time.Duration) Info {
	mode := ModeOf(rec)

	if isStale(rec, now, window) {
		return Info{Mode: mode, Text: staleText(mode), Stale: true}
	}

	return Info{Mode: mode, Text: liveText(rec, mode, now)}
}

func isStale(rec models.DeviceRecord, now time.Time, window time.Duration) bool {
	if rec.NextUpdate.IsZero() {
		return false
	}

	return now.After(rec.NextUpdate.Add(window))
}

func liveText(rec models.DeviceRecord, mode Mode, now time.Time) string {
	switch mode {
	case ModeTraining:
		return fmt.Sprintf("In training for %s", Ago(rec.Status.Start, now))
	case ModeTrainingDone:
		return "Training data done"
	case ModeDetecting:
		return fmt.Sprintf("System in detection for %s", Ago(rec.Status.Trained, now))
	case ModeDetectionDone:
		return fmt.Sprintf("Last detection attempt %s ago", Ago(rec.Status.Detection, now))
	default:
		return "Idle"
	}
}

func staleText(mode Mode) string {
	switch mode {
	case ModeTraining:
		return "Device stopped reporting during training"
	case ModeTrainingDone:
		return "Device did not move on to detection as expected"
	case ModeDetecting:
		return "Device stopped reporting during detection"
	case ModeDetectionDone:
		return "Device did not attempt detection as expected"
	default:
		return "Device did not update as expected"
	}
}

// Ago formats the elapsed time since t in coarse units for table
// display.
func Ago(t, now time.Time) string {
	d := now.Sub(t)

	switch {
	case d < time.Minute:
		return "moments"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
