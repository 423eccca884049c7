// Package telemetry parses raw push-channel frames into typed partial
// device updates.
package telemetry

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ishayyemini/yieldx-redmite-dashboard/pkg/models"
)

// Decoder turns raw frame payloads into DeviceUpdate batches. Malformed
// payloads are reported as models.ErrDecode; they never reach the
// registry.
type Decoder struct {
	logger zerolog.Logger
	now    func() time.Time
}

// NewDecoder creates a Decoder using the wall clock for receipt stamps.
func NewDecoder(log zerolog.Logger) *Decoder {
	return &Decoder{
		logger: log.With().Str("component", "telemetry").Logger(),
		now:    time.Now,
	}
}

// wireDevice is the partial per-device payload as it appears on the
// wire. Pointer fields distinguish "absent" from "present but zero".
type wireDevice struct {
	Location   *string `json:"location"`
	House      *string `json:"house"`
	InHouseLoc *string `json:"inHouseLoc"`
	Customer   *string `json:"customer"`
	Contact    *string `json:"contact"`
	Comment    *string `json:"comment"`
	Version    *string `json:"version"`

	Battery     *models.BatteryLevel `json:"battery"`
	Start       *instant             `json:"start"`
	End         *instant             `json:"end"`
	Trained     *instant             `json:"trained"`
	Detection   *instant             `json:"detection"`
	Cycle       *int                 `json:"cycle"`
	TotalCycles *int                 `json:"totalCycles"`

	Conf *models.DeviceConf `json:"conf"`

	LastUpdated     *instant `json:"lastUpdated"`
	NextUpdate      *instant `json:"nextUpdate"`
	AfterNextUpdate *instant `json:"afterNextUpdate"`

	Hidden *bool `json:"hidden"`
}

// Decode parses one frame. The payload is a JSON object keyed by device
// id, each value a partial record. Records missing a lastUpdated field
// are stamped with the receipt time.
func (d *Decoder) Decode(payload []byte) ([]models.DeviceUpdate, error) {
	var frame map[string]wireDevice

	if err := json.Unmarshal(payload, &frame); err != nil {
		d.logger.Warn().Err(err).Int("bytes", len(payload)).Msg("Dropping malformed telemetry frame")
		return nil, fmt.Errorf("%w: %s", models.ErrDecode, err)
	}

	received := d.now()
	updates := make([]models.DeviceUpdate, 0, len(frame))

	for id, dev := range frame {
		if id == "" {
			d.logger.Warn().Msg("Dropping telemetry record with empty device id")
			continue
		}

		u := models.DeviceUpdate{
			ID:          id,
			Location:    dev.Location,
			House:       dev.House,
			InHouseLoc:  dev.InHouseLoc,
			Customer:    dev.Customer,
			Contact:     dev.Contact,
			Comment:     dev.Comment,
			Version:     dev.Version,
			Battery:     dev.Battery,
			Start:       dev.Start.timePtr(),
			End:         dev.End.timePtr(),
			Trained:     dev.Trained.timePtr(),
			Detection:   dev.Detection.timePtr(),
			Cycle:       dev.Cycle,
			TotalCycles: dev.TotalCycles,
			Conf:        dev.Conf,
			NextUpdate:  dev.NextUpdate.timePtr(),
			Hidden:      dev.Hidden,
		}

		u.AfterNextUpdate = dev.AfterNextUpdate.timePtr()

		if lu := dev.LastUpdated.timePtr(); lu != nil {
			u.LastUpdated = lu
		} else {
			stamp := received
			u.LastUpdated = &stamp
		}

		updates = append(updates, u)
	}

	return updates, nil
}
