package player

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// buildStatPayload assembles a minimal synthetic STAT body with fields at
// the real offsets, padding with zeros up to the longest field requested.
func buildStatPayload(event string, bufferFullness uint32, bytesReceived uint64, signal uint16, elapsedSec, elapsedMS uint32) []byte {
	buf := make([]byte, 47)
	copy(buf[0:4], event)
	binary.BigEndian.PutUint32(buf[11:15], bufferFullness)
	binary.BigEndian.PutUint64(buf[15:23], bytesReceived)
	binary.BigEndian.PutUint16(buf[23:25], signal)
	binary.BigEndian.PutUint32(buf[37:41], elapsedSec)
	binary.BigEndian.PutUint32(buf[43:47], elapsedMS)
	return buf
}

func TestParseStat_fullPayload(t *testing.T) {
	payload := buildStatPayload(EventTimer, 1000, 50000, 80, 12, 345)
	sf := ParseStat(payload)
	if sf.Event != EventTimer {
		t.Fatalf("event = %q, want %q", sf.Event, EventTimer)
	}
	if sf.BufferFullness != 1000 {
		t.Fatalf("bufferFullness = %d, want 1000", sf.BufferFullness)
	}
	if sf.BytesReceived != 50000 {
		t.Fatalf("bytesReceived = %d, want 50000", sf.BytesReceived)
	}
	if sf.SignalStrength != 80 {
		t.Fatalf("signal = %d, want 80", sf.SignalStrength)
	}
	if sf.ElapsedSeconds != 12 {
		t.Fatalf("elapsedSeconds = %d, want 12", sf.ElapsedSeconds)
	}
	if sf.ElapsedMilliseconds != 345 {
		t.Fatalf("elapsedMilliseconds = %d, want 345", sf.ElapsedMilliseconds)
	}
}

func TestParseStat_shortPayload_defaultsToZero(t *testing.T) {
	sf := ParseStat([]byte("STMr"))
	if sf.Event != "STMr" {
		t.Fatalf("event = %q, want STMr", sf.Event)
	}
	if sf.BufferFullness != 0 || sf.BytesReceived != 0 || sf.SignalStrength != 0 {
		t.Fatalf("expected zeroed trailing fields for short payload, got %+v", sf)
	}
}

func TestParseStat_emptyPayload(t *testing.T) {
	sf := ParseStat(nil)
	if sf.Event != "" {
		t.Fatalf("event = %q, want empty", sf.Event)
	}
}

func TestSession_ApplyStat_transitions(t *testing.T) {
	var buf bytes.Buffer
	s := newTestSession(&buf)

	cases := []struct {
		event string
		want  State
	}{
		{EventStreamEstablished, StatePlaying},
		{EventStreamPaused, StatePaused},
		{EventStopped, StateStopped},
	}
	for _, c := range cases {
		finished := s.ApplyStat(ParseStat(buildStatPayload(c.event, 0, 0, 0, 0, 0)))
		if finished {
			t.Fatalf("%s: unexpected trackFinished=true", c.event)
		}
		if s.State() != c.want {
			t.Fatalf("%s: state = %v, want %v", c.event, s.State(), c.want)
		}
	}
}

func TestSession_ApplyStat_timerPromotesFromConnected(t *testing.T) {
	var buf bytes.Buffer
	s := newTestSession(&buf)
	if s.State() != StateConnected {
		t.Fatalf("precondition: state = %v, want Connected", s.State())
	}
	s.ApplyStat(ParseStat(buildStatPayload(EventTimer, 500, 0, 0, 0, 0)))
	if s.State() != StatePlaying {
		t.Fatalf("state after STMt with buffer>0 = %v, want Playing", s.State())
	}
}

func TestSession_ApplyStat_timerDoesNotDemotePaused(t *testing.T) {
	var buf bytes.Buffer
	s := newTestSession(&buf)
	s.ApplyStat(ParseStat(buildStatPayload(EventStreamPaused, 0, 0, 0, 0, 0)))
	s.ApplyStat(ParseStat(buildStatPayload(EventTimer, 500, 0, 0, 0, 0)))
	if s.State() != StatePaused {
		t.Fatalf("state = %v, want to remain Paused across STMt", s.State())
	}
}

func TestSession_ApplyStat_trackFinished(t *testing.T) {
	var buf bytes.Buffer
	s := newTestSession(&buf)
	finished := s.ApplyStat(ParseStat(buildStatPayload(EventTrackFinished, 0, 0, 0, 180, 250)))
	if !finished {
		t.Fatal("expected trackFinished=true for STMd with nonzero elapsed time")
	}
}

func TestSession_ApplyStat_spuriousTrackFinishedIgnored(t *testing.T) {
	var buf bytes.Buffer
	s := newTestSession(&buf)
	finished := s.ApplyStat(ParseStat(buildStatPayload(EventTrackFinished, 0, 0, 0, 0, 0)))
	if finished {
		t.Fatal("expected trackFinished=false for STMd with zero elapsed time")
	}
}
