package player

// State is the single authoritative playback state of a Controller.
type State uint8

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StatePlaying
	StatePaused
	StateEnded
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateLoading:
		return "Loading"
	case StateReady:
		return "Ready"
	case StatePlaying:
		return "Playing"
	case StatePaused:
		return "Paused"
	case StateEnded:
		return "Ended"
	case StateError:
		return "Error"
	default:
		return "Unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Loaded reports whether a container has been indexed in this state.
func (s State) Loaded() bool {
	switch s {
	case StateReady, StatePlaying, StatePaused, StateEnded:
		return true
	}
	return false
}

// canPump reports whether the decode driver may run.
func (s State) canPump() bool {
	switch s {
	case StateReady, StatePlaying, StatePaused:
		return true
	}
	return false
}

// active reports whether playback has started and can therefore end.
func (s State) active() bool {
	return s == StatePlaying || s == StatePaused
}
