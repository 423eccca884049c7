// Package registry holds the authoritative in-memory device state and
// publishes immutable snapshots to consumers.
package registry

import (
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ishayyemini/yieldx-redmite-dashboard/pkg/models"
)

// Snapshot is an immutable copy of the registry handed to consumers.
// Consumers must treat it as read-only once received.
type Snapshot map[string]models.DeviceRecord

// Registry maps device id to the last-known DeviceRecord. It is only
// mutated by the channel's reconcile loop and by REST responses that
// embed device data; consumers read snapshots.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]*models.DeviceRecord

	subMu sync.RWMutex
	subs  []func(Snapshot)

	// pubMu serializes snapshot clone + delivery so subscribers always
	// observe mutations in the order they happened.
	pubMu sync.Mutex

	logger zerolog.Logger
}

// New creates an empty device registry.
func New(log zerolog.Logger) *Registry {
	return &Registry{
		devices: make(map[string]*models.DeviceRecord),
		logger:  log.With().Str("component", "registry").Logger(),
	}
}

// Subscribe registers a callback invoked with a fresh snapshot after
// every registry mutation. Snapshots arrive in mutation order. The
// callback runs outside the data lock but must not mutate the registry;
// it should hand the snapshot off and return.
func (r *Registry) Subscribe(fn func(Snapshot)) {
	if fn == nil {
		return
	}

	r.subMu.Lock()
	defer r.subMu.Unlock()

	r.subs = append(r.subs, fn)
}

// Apply merges a batch of partial updates and publishes a single
// snapshot once all of them have been applied, so consumers never see a
// half-applied telemetry frame.
func (r *Registry) Apply(updates []models.DeviceUpdate) {
	if len(updates) == 0 {
		return
	}

	r.mu.Lock()

	for i := range updates {
		u := &updates[i]
		if strings.TrimSpace(u.ID) == "" {
			continue
		}

		rec, ok := r.devices[u.ID]
		if !ok {
			rec = &models.DeviceRecord{ID: u.ID}
			r.devices[u.ID] = rec
			r.logger.Debug().Str("device_id", u.ID).Msg("New device record created")
		}

		mergeUpdate(rec, u)
	}

	r.mu.Unlock()

	r.publish()
}

// Get returns a copy of one device record.
func (r *Registry) Get(deviceID string) (models.DeviceRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.devices[deviceID]
	if !ok {
		return models.DeviceRecord{}, false
	}

	return cloneRecord(rec), true
}

// Snapshot returns a copy of the whole registry.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.snapshotLocked()
}

// SetHidden flips the soft-delete flag of a device. Unknown ids are
// ignored.
func (r *Registry) SetHidden(deviceID string, hidden bool) {
	r.mutateRecord(deviceID, func(rec *models.DeviceRecord) {
		rec.Hidden = hidden
	})
}

// SetHistory attaches a lazily-fetched operation log to a device.
func (r *Registry) SetHistory(deviceID string, history []models.HistoryEntry) {
	r.mutateRecord(deviceID, func(rec *models.DeviceRecord) {
		rec.History = append([]models.HistoryEntry(nil), history...)
	})
}

// SetDetections attaches a lazily-fetched sensor trace to a device.
func (r *Registry) SetDetections(deviceID string, detections []models.Detection) {
	r.mutateRecord(deviceID, func(rec *models.DeviceRecord) {
		rec.Detections = append([]models.Detection(nil), detections...)
	})
}

// Reset drops every record. Called when a fresh channel authorization
// begins a new broker epoch and on sign-out.
func (r *Registry) Reset() {
	r.mu.Lock()
	r.devices = make(map[string]*models.DeviceRecord)
	r.mu.Unlock()

	r.publish()
}

// Len reports the number of known devices, hidden included.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.devices)
}

func (r *Registry) mutateRecord(deviceID string, fn func(*models.DeviceRecord)) {
	r.mu.Lock()

	rec, ok := r.devices[deviceID]
	if !ok {
		r.mu.Unlock()
		return
	}

	fn(rec)
	r.mu.Unlock()

	r.publish()
}

func (r *Registry) snapshotLocked() Snapshot {
	snap := make(Snapshot, len(r.devices))
	for id, rec := range r.devices {
		snap[id] = cloneRecord(rec)
	}

	return snap
}

func (r *Registry) publish() {
	// Clone and deliver under one lock: two racing mutations may publish
	// in either order, but each delivery carries the state that was
	// current when its turn came, so subscribers never regress.
	r.pubMu.Lock()
	defer r.pubMu.Unlock()

	r.mu.RLock()
	snap := r.snapshotLocked()
	r.mu.RUnlock()

	r.subMu.RLock()
	subs := make([]func(Snapshot), len(r.subs))
	copy(subs, r.subs)
	r.subMu.RUnlock()

	for _, fn := range subs {
		fn(snap)
	}
}

func cloneRecord(rec *models.DeviceRecord) models.DeviceRecord {
	out := *rec

	if rec.History != nil {
		out.History = append([]models.HistoryEntry(nil), rec.History...)
	}

	if rec.Detections != nil {
		out.Detections = append([]models.Detection(nil), rec.Detections...)
	}

	return out
}
