package models

import (
	"errors"
	"fmt"
)

// Error taxonomy for the sync core. Transport and parsing failures are
// handled inside the core; only these business-meaningful errors cross
// package boundaries.
var (
	// ErrUnauthorized means the token is missing or expired and refresh
	// failed. Consumers redirect to login.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrServer means the backend returned an error envelope or a shape
	// that is not the `{data}` / `{error:{message}}` contract.
	ErrServer = errors.New("server error")

	// ErrConnection means the live channel failed to connect or dropped
	// abnormally.
	ErrConnection = errors.New("connection error")

	// ErrDecode means a telemetry frame could not be parsed. Dropped at
	// the data layer, never propagated to consumers.
	ErrDecode = errors.New("decode error")
)

// ServerErrorf wraps ErrServer with the backend-supplied message so the
// calling form can show it verbatim.
func ServerErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrServer, fmt.Sprintf(format, args...))
}
