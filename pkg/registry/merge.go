package registry

import "github.com/ishayyemini/yieldx-redmite-dashboard/pkg/models"

// mergeUpdate overlays a partial telemetry update onto an existing
// record. Fields absent from the update (nil pointers) keep their prior
// value; present fields overwrite, last write wins per field. The id is
// immutable and never touched here.
func mergeUpdate(rec *models.DeviceRecord, u *models.DeviceUpdate) {
	if u.Location != nil {
		rec.Location = *u.Location
	}

	if u.House != nil {
		rec.House = *u.House
	}

	if u.InHouseLoc != nil {
		rec.InHouseLoc = *u.InHouseLoc
	}

	if u.Customer != nil {
		rec.Customer = *u.Customer
	}

	if u.Contact != nil {
		rec.Contact = *u.Contact
	}

	if u.Comment != nil {
		rec.Comment = *u.Comment
	}

	if u.Version != nil {
		rec.Version = *u.Version
	}

	if u.Battery != nil {
		rec.Status.Battery = *u.Battery
	}

	if u.Start != nil {
		rec.Status.Start = *u.Start
	}

	if u.End != nil {
		rec.Status.End = *u.End
	}

	if u.Trained != nil {
		rec.Status.Trained = *u.Trained
	}

	if u.Detection != nil {
		rec.Status.Detection = *u.Detection
	}

	if u.Cycle != nil {
		rec.Status.Cycle = *u.Cycle
	}

	if u.TotalCycles != nil {
		rec.Status.TotalCycles = *u.TotalCycles
	}

	if u.Conf != nil {
		rec.Conf = *u.Conf
	}

	if u.LastUpdated != nil {
		rec.LastUpdated = *u.LastUpdated
	}

	if u.NextUpdate != nil {
		rec.NextUpdate = *u.NextUpdate
	}

	if u.AfterNextUpdate != nil {
		rec.AfterNextUpdate = *u.AfterNextUpdate
	}

	if u.Hidden != nil {
		rec.Hidden = *u.Hidden
	}
}
