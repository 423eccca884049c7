package channel

// State is the connection lifecycle of the push channel.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateAwaitingAuthorization
	StateAuthorized
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAwaitingAuthorization:
		return "awaiting_authorization"
	case StateAuthorized:
		return "authorized"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}
