package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ishayyemini/yieldx-redmite-dashboard/pkg/models"
)

func conf(open, closeAt, start string, detect int) models.DetectionConf {
	return models.DetectionConf{
		Open1:    open,
		Close1:   closeAt,
		StartDet: start,
		Detect:   detect,
	}
}

func TestValidateCycle(t *testing.T) {
	tests := []struct {
		name    string
		conf    models.DetectionConf
		wantErr string
	}{
		{
			name: "simple daytime cycle",
			conf: conf("08:00", "18:00", "20:00", 60),
		},
		{
			name: "close rolls past midnight",
			conf: conf("22:00", "04:00", "06:00", 30),
		},
		{
			name: "detection start rolls past midnight",
			conf: conf("08:00", "18:00", "01:00", 30),
		},
		{
			name: "exactly 24 hours is allowed",
			conf: conf("08:00", "18:00", "07:00", 60),
		},
		{
			name:    "over 24 hours",
			conf:    conf("08:00", "18:00", "07:30", 60),
			wantErr: "over 24 hours",
		},
		{
			name:    "long detection pushes over the limit",
			conf:    conf("08:00", "18:00", "06:00", 180),
			wantErr: "over 24 hours",
		},
		{
			name:    "malformed open time",
			conf:    conf("8am", "18:00", "20:00", 30),
			wantErr: "invalid open time",
		},
		{
			name:    "malformed close time",
			conf:    conf("08:00", "25:61", "20:00", 30),
			wantErr: "invalid close time",
		},
		{
			name:    "malformed detection start",
			conf:    conf("08:00", "18:00", "", 30),
			wantErr: "invalid detection start time",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCycle(tt.conf)

			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
