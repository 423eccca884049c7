package core

import (
	"context"
	"fmt"

	"github.com/ishayyemini/yieldx-redmite-dashboard/pkg/models"
)

// UpdateDeviceConfig validates and pushes a configuration block to one
// device.
func (s *Service) UpdateDeviceConfig(ctx context.Context, deviceID string, conf models.DeviceConfigUpdate) error {
	if err := ValidateCycle(conf.DetectionConf); err != nil {
		return err
	}

	if err := s.gateway.UpdateDeviceConfig(ctx, deviceID, conf); err != nil {
		return err
	}

	s.logger.Info().Str("device_id", deviceID).Msg("Device configuration updated")

	return nil
}

// PushOTA sets a device's firmware target version.
func (s *Service) PushOTA(ctx context.Context, deviceID, version string) error {
	if version == "" {
		return models.ServerErrorf("no firmware version selected")
	}

	if err := s.gateway.UpdateDeviceOTA(ctx, deviceID, version); err != nil {
		return err
	}

	s.logger.Info().Str("device_id", deviceID).Str("version", version).Msg("OTA update pushed")

	return nil
}

// ListOTAVersions lists the firmware versions available for push.
func (s *Service) ListOTAVersions(ctx context.Context) ([]string, error) {
	return s.gateway.ListOTAVersions(ctx)
}

// HideDevice toggles a device's soft-delete flag; the record itself
// stays in the registry.
func (s *Service) HideDevice(ctx context.Context, deviceID string, hidden bool) error {
	if err := s.gateway.HideDevice(ctx, deviceID, hidden); err != nil {
		return err
	}

	s.registry.SetHidden(deviceID, hidden)

	return nil
}

// FetchHistory loads a device's operation log on demand and folds it
// into the registry snapshot.
func (s *Service) FetchHistory(ctx context.Context, deviceID string) ([]models.HistoryEntry, error) {
	history, err := s.gateway.FetchHistory(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	s.registry.SetHistory(deviceID, history)

	return history, nil
}

// FetchDetections loads a device's sensor trace on demand and folds it
// into the registry snapshot.
func (s *Service) FetchDetections(ctx context.Context, deviceID string) ([]models.Detection, error) {
	detections, err := s.gateway.FetchDetections(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	s.registry.SetDetections(deviceID, detections)

	return detections, nil
}

// UpdateSettings pushes new user settings (admin only) and reconnects
// the channel at the new stream endpoint.
func (s *Service) UpdateSettings(ctx context.Context, settings models.UserSettings) error {
	user := s.store.User()
	if user == nil {
		return models.ErrUnauthorized
	}

	if !user.IsAdmin {
		return fmt.Errorf("%w: settings are admin-only", models.ErrUnauthorized)
	}

	updated, err := s.gateway.UpdateSettings(ctx, settings)
	if err != nil {
		return err
	}

	s.store.SetUser(updated)

	// Retarget the stream at the new endpoint.
	s.channel.Close()

	return s.connectChannel(ctx)
}

// RegisterPushSubscription stores the push subscription and registers it
// with the backend. The refresher re-registers it after every token
// refresh.
func (s *Service) RegisterPushSubscription(ctx context.Context, sub models.PushSubscription) error {
	s.store.SetSubscription(&sub)

	return s.gateway.RegisterSubscription(ctx, sub)
}
