package telemetry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// instant is a temporal wire value. Devices report instants either as
// epoch milliseconds or as ISO-8601 strings; zero and empty mean "not
// yet occurred" and decode to the zero time.
type instant struct {
	t time.Time
}

func (i *instant) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)

	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		i.t = time.Time{}
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}

		if s == "" {
			i.t = time.Time{}
			return nil
		}

		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("invalid instant %q: %w", s, err)
		}

		i.t = t

		return nil
	}

	millis, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(string(data), 64)
		if ferr != nil {
			return fmt.Errorf("invalid instant %s: %w", data, err)
		}

		millis = int64(f)
	}

	if millis == 0 {
		i.t = time.Time{}
		return nil
	}

	i.t = time.UnixMilli(millis).UTC()

	return nil
}

// timePtr converts an optional wire instant to the merge representation:
// nil when the field was absent, a pointer to the (possibly zero) time
// when it was present.
func (i *instant) timePtr() *time.Time {
	if i == nil {
		return nil
	}

	t := i.t

	return &t
}
