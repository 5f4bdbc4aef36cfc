package session

// State is the position of a session in its lifecycle.
type State int32

const (
	Connecting State = iota
	Registering
	Active
	Closing
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "CONNECTING"
	case Registering:
		return "REGISTERING"
	case Active:
		return "ACTIVE"
	case Closing:
		return "CLOSING"
	case Closed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}
