package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ishayyemini/yieldx-redmite-dashboard/pkg/logger"
	"github.com/ishayyemini/yieldx-redmite-dashboard/pkg/models"
)

func newTestDecoder(now time.Time) *Decoder {
	d := NewDecoder(logger.NewTestLogger())
	d.now = func() time.Time { return now }

	return d
}

func TestDecodeEpochMillis(t *testing.T) {
	received := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	d := newTestDecoder(received)

	updates, err := d.Decode([]byte(`{"dev-1":{"start":1700000000000}}`))
	require.NoError(t, err)
	require.Len(t, updates, 1)

	u := updates[0]
	assert.Equal(t, "dev-1", u.ID)
	require.NotNil(t, u.Start)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), *u.Start)

	// Fields absent from the frame stay nil so the merge keeps prior
	// values.
	assert.Nil(t, u.End)
	assert.Nil(t, u.Battery)
}

func TestDecodeISOString(t *testing.T) {
	d := newTestDecoder(time.Now())

	updates, err := d.Decode([]byte(`{"dev-1":{"trained":"2024-03-01T10:30:00Z"}}`))
	require.NoError(t, err)
	require.Len(t, updates, 1)

	require.NotNil(t, updates[0].Trained)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC), *updates[0].Trained)
}

func TestDecodeZeroMeansUnset(t *testing.T) {
	d := newTestDecoder(time.Now())

	updates, err := d.Decode([]byte(`{"dev-1":{"end":0}}`))
	require.NoError(t, err)
	require.Len(t, updates, 1)

	// Present-but-zero decodes to an explicit unset, distinct from
	// absent.
	require.NotNil(t, updates[0].End)
	assert.True(t, updates[0].End.IsZero())
}

func TestDecodeMalformedFrame(t *testing.T) {
	d := newTestDecoder(time.Now())

	for _, payload := range []string{
		`not json at all`,
		`{"dev-1":{"start":"yesterday"}}`,
		`[1,2,3]`,
	} {
		_, err := d.Decode([]byte(payload))
		assert.ErrorIs(t, err, models.ErrDecode, "payload %q", payload)
	}
}

func TestDecodeStampsReceiptTime(t *testing.T) {
	received := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	d := newTestDecoder(received)

	updates, err := d.Decode([]byte(`{"dev-1":{"battery":"Low"}}`))
	require.NoError(t, err)
	require.Len(t, updates, 1)

	require.NotNil(t, updates[0].LastUpdated)
	assert.Equal(t, received, *updates[0].LastUpdated)
	require.NotNil(t, updates[0].Battery)
	assert.Equal(t, models.BatteryLow, *updates[0].Battery)
}

func TestDecodeExplicitLastUpdatedWins(t *testing.T) {
	d := newTestDecoder(time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC))

	updates, err := d.Decode([]byte(`{"dev-1":{"lastUpdated":1700000000000}}`))
	require.NoError(t, err)
	require.Len(t, updates, 1)

	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), *updates[0].LastUpdated)
}

func TestDecodeMultipleDevices(t *testing.T) {
	d := newTestDecoder(time.Now())

	updates, err := d.Decode([]byte(`{"dev-1":{"battery":"Ok"},"dev-2":{"house":"H2"}}`))
	require.NoError(t, err)
	assert.Len(t, updates, 2)
}

func TestDecodeConfBlock(t *testing.T) {
	d := newTestDecoder(time.Now())

	payload := `{"dev-1":{"conf":{"training":{"preOpen":5,"ventDur":30,"on1":10,"sleep1":20,"train":1440},
		"detection":{"open1":"06:00","close1":"18:00","startDet":"19:00","vent2":30,"on2":10,"sleep2":20,"detect":60}}}}`

	updates, err := d.Decode([]byte(payload))
	require.NoError(t, err)
	require.Len(t, updates, 1)

	require.NotNil(t, updates[0].Conf)
	assert.Equal(t, 5, updates[0].Conf.Training.PreOpen)
	assert.Equal(t, "06:00", updates[0].Conf.Detection.Open1)
}

func TestDecodeSkipsEmptyID(t *testing.T) {
	d := newTestDecoder(time.Now())

	updates, err := d.Decode([]byte(`{"":{"battery":"Ok"}}`))
	require.NoError(t, err)
	assert.Empty(t, updates)
}
