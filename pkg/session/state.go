package session

// State is the lifecycle state of a session.
type State int

const (
	Running State = iota
	Ended
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Ended:
		return "ended"
	default:
		return "unknown"
	}
}
