package player

import "time"

// State is the dynamic playback state of a player.
type State int

const (
	StateDisconnected State = iota
	StateConnected
	StatePlaying
	StatePaused
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Status is the dynamic status of a player, updated by STAT frames and by
// the session's own transport methods.
type Status struct {
	State                 State
	Volume                int // [0,100]
	Muted                 bool
	ElapsedSeconds        uint32
	ElapsedMilliseconds   uint32
	DecoderBufferFullness uint32
	OutputBufferFullness  uint32
	SignalStrength        uint16
	LastSeen              time.Time
}

// clampVolume clamps v to [0,100].
func clampVolume(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
