package channel

// Event is a typed notification from the channel manager to the single
// reconcile loop that owns the device registry.
type Event interface {
	isEvent()
}

// ConnectedEvent fires on transport-level connect, before the server has
// acknowledged the credential frame.
type ConnectedEvent struct{}

// AuthorizedEvent fires when the server acknowledges the credential
// frame. The consumer resets the registry before applying frames from
// the new broker epoch.
type AuthorizedEvent struct{}

// TelemetryEvent carries one raw frame received after authorization.
type TelemetryEvent struct {
	Payload []byte
}

// ClosedEvent fires when the connection is gone. Normal marks an
// intentional teardown; Terminal marks reconnect exhaustion, after which
// the manager makes no further attempts.
type ClosedEvent struct {
	Code     int
	Err      error
	Normal   bool
	Terminal bool
}

func (ConnectedEvent) isEvent()  {}
func (AuthorizedEvent) isEvent() {}
func (TelemetryEvent) isEvent()  {}
func (ClosedEvent) isEvent()     {}
