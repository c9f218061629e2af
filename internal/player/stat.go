package player

import "encoding/binary"

// STAT event codes, the 4-byte ASCII tag at the start of every STAT payload.
const (
	EventStreamEstablished = "STMr" // playback resumed/started
	EventStreamPaused      = "STMp"
	EventStopped           = "STMs" // player has stopped playback
	EventTimer             = "STMt" // periodic status tick while playing
	EventTrackFinished     = "STMd"
)

// StatFrame is a parsed STAT payload. Fields beyond what the payload's
// length covers default to zero rather than erroring: real players send
// STAT bodies of varying length depending on firmware revision.
type StatFrame struct {
	Event               string
	BufferFullness      uint32
	BytesReceived       uint64
	SignalStrength      uint16
	ElapsedSeconds      uint32
	ElapsedMilliseconds uint32
}

// ParseStat decodes a STAT payload. The event code occupies the first 4
// bytes; every other field is read only if the payload is long enough to
// contain it.
func ParseStat(data []byte) StatFrame {
	var sf StatFrame
	if len(data) >= 4 {
		sf.Event = string(data[0:4])
	}
	if len(data) >= 15 {
		sf.BufferFullness = binary.BigEndian.Uint32(data[11:15])
	}
	if len(data) >= 23 {
		sf.BytesReceived = binary.BigEndian.Uint64(data[15:23])
	}
	if len(data) >= 25 {
		sf.SignalStrength = binary.BigEndian.Uint16(data[23:25])
	}
	if len(data) >= 41 {
		sf.ElapsedSeconds = binary.BigEndian.Uint32(data[37:41])
	}
	if len(data) >= 47 {
		sf.ElapsedMilliseconds = binary.BigEndian.Uint32(data[43:47])
	}
	return sf
}

// ApplyStat folds a parsed STAT frame into the session's status and
// playback state, and reports whether a track-finished event should be
// published. A spurious STMd carrying zero elapsed time (a player sending
// STMd before it has actually started a track) is not treated as a real
// completion.
func (s *Session) ApplyStat(sf StatFrame) (trackFinished bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.touchLastSeenLocked()
	s.Status.DecoderBufferFullness = sf.BufferFullness
	s.Status.SignalStrength = sf.SignalStrength
	s.Status.ElapsedSeconds = sf.ElapsedSeconds
	s.Status.ElapsedMilliseconds = sf.ElapsedMilliseconds

	switch sf.Event {
	case EventStreamEstablished:
		s.Status.State = StatePlaying
	case EventStreamPaused:
		s.Status.State = StatePaused
	case EventStopped:
		s.Status.State = StateStopped
	case EventTimer:
		if sf.BufferFullness > 0 && s.Status.State != StatePlaying && s.Status.State != StatePaused {
			s.Status.State = StatePlaying
		}
	case EventTrackFinished:
		if sf.ElapsedSeconds == 0 && sf.ElapsedMilliseconds == 0 {
			return false
		}
		return true
	}
	return false
}
