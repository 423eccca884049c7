package models

import "time"

// BatteryLevel is the reported battery state of a unit.
type BatteryLevel string

const (
	BatteryOk  BatteryLevel = "Ok"
	BatteryLow BatteryLevel = "Low"
)

// DeviceStatus carries the cycle timestamps and counters pushed by a
// device. A zero time.Time means the event has not occurred yet.
type DeviceStatus struct {
	Battery     BatteryLevel `json:"battery,omitempty"`
	Start       time.Time    `json:"start"`
	End         time.Time    `json:"end"`
	Trained     time.Time    `json:"trained"`
	Detection   time.Time    `json:"detection"`
	Cycle       int          `json:"cycle"`
	TotalCycles int          `json:"totalCycles"`
}

// TrainingConf holds the training-cycle parameters, durations in minutes
// except VentDur which is in seconds.
type TrainingConf struct {
	PreOpen int `json:"preOpen"`
	VentDur int `json:"ventDur"`
	On1     int `json:"on1"`
	Sleep1  int `json:"sleep1"`
	Train   int `json:"train"`
}

// DetectionConf holds the detection-cycle parameters. Open1, Close1 and
// StartDet are wall-clock times in "HH:MM" form.
type DetectionConf struct {
	Open1    string `json:"open1"`
	Close1   string `json:"close1"`
	StartDet string `json:"startDet"`
	Vent2    int    `json:"vent2"`
	On2      int    `json:"on2"`
	Sleep2   int    `json:"sleep2"`
	Detect   int    `json:"detect"`
}

// DeviceConf is the full configuration block of a device.
type DeviceConf struct {
	Training  TrainingConf  `json:"training"`
	Detection DetectionConf `json:"detection"`
}

// HistoryEntry is one row of a device's operation log, fetched on demand.
type HistoryEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Details   string    `json:"details,omitempty"`
}

// Detection is one point of a device's sensor trace, fetched on demand.
type Detection struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// DeviceRecord is the last-known state of one physical device. Records
// are merged field-by-field from partial telemetry, never replaced
// wholesale, and are never deleted, only hidden.
type DeviceRecord struct {
	ID string `json:"id"`

	Location   string `json:"location,omitempty"`
	House      string `json:"house,omitempty"`
	InHouseLoc string `json:"inHouseLoc,omitempty"`
	Customer   string `json:"customer,omitempty"`
	Contact    string `json:"contact,omitempty"`
	Comment    string `json:"comment,omitempty"`
	Version    string `json:"version,omitempty"`

	Status DeviceStatus `json:"status"`
	Conf   DeviceConf   `json:"conf"`

	LastUpdated     time.Time `json:"lastUpdated"`
	NextUpdate      time.Time `json:"nextUpdate"`
	AfterNextUpdate time.Time `json:"afterNextUpdate"`

	Hidden bool `json:"hidden,omitempty"`

	History    []HistoryEntry `json:"history,omitempty"`
	Detections []Detection    `json:"detections,omitempty"`
}

// DeviceUpdate is one decoded partial telemetry message. Nil pointer
// fields were absent from the wire payload and must leave the prior
// record value untouched; a non-nil pointer to a zero time explicitly
// resets that timestamp to "unset".
type DeviceUpdate struct {
	ID string

	Location   *string
	House      *string
	InHouseLoc *string
	Customer   *string
	Contact    *string
	Comment    *string
	Version    *string

	Battery     *BatteryLevel
	Start       *time.Time
	End         *time.Time
	Trained     *time.Time
	Detection   *time.Time
	Cycle       *int
	TotalCycles *int

	Conf *DeviceConf

	LastUpdated     *time.Time
	NextUpdate      *time.Time
	AfterNextUpdate *time.Time

	Hidden *bool
}

// DeviceConfigUpdate is the mutation body for the device-config route.
type DeviceConfigUpdate struct {
	Location   string `json:"location"`
	House      string `json:"house"`
	InHouseLoc string `json:"inHouseLoc"`
	Contact    string `json:"contact"`
	Comment    string `json:"comment"`

	TrainingConf
	DetectionConf
}
