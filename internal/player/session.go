// Package player models a connected Slimproto player: its static Info (from
// HELO), its dynamic Status (from STAT frames), and the Session that owns
// the connection's write half and the transport methods used to drive it.
package player

import (
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/srosecker/resonance-slimproto/internal/command"
	"github.com/srosecker/resonance-slimproto/internal/frame"
)

// ConnectionError wraps a write failure that has disconnected a session.
type ConnectionError struct {
	MAC MAC
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("player %s disconnected: %v", e.MAC, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// StreamFormatResolver resolves a (formatHint, deviceClass) pair to the strm
// format byte to advertise. Server.StartStream in internal/slimserver adapts
// internal/policy.Resolve to it; declared here as a function type so this
// package does not import policy (policy already imports player for
// DeviceClass).
type StreamFormatResolver func(formatHint string, class DeviceClass) command.AudioFormat

// Session is a single connected player: identity, static info, dynamic
// status, and the write half of its connection. The registry holds a shared
// handle to a Session for concurrent lookup/dispatch; only the session's own
// read loop reads from the connection.
type Session struct {
	mu sync.Mutex

	Info     Info
	Status   Status
	RemoteIP string

	writer  io.Writer
	limiter *rate.Limiter
}

// NewSession creates a nascent session for an accepted connection, before
// HELO has been read. frameRate/frameBurst configure the per-session inbound
// frame rate limiter (0 rate disables limiting).
func NewSession(writer io.Writer, remoteIP string, frameRate float64, frameBurst int) *Session {
	s := &Session{
		writer:   writer,
		RemoteIP: remoteIP,
		Status:   Status{State: StateDisconnected, Volume: 50, LastSeen: time.Now()},
	}
	if frameRate > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(frameRate), frameBurst)
	}
	return s
}

// MarkConnected promotes a nascent session to Connected with the identity
// parsed from HELO. Called once, immediately after a successful HELO parse.
func (s *Session) MarkConnected(info Info) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Info = info
	s.Status.State = StateConnected
	s.touchLastSeenLocked()
}

// AllowFrame reports whether the per-session rate limiter permits processing
// one more inbound frame right now. A denied frame should be dropped, not
// treated as a disconnect.
func (s *Session) AllowFrame() bool {
	if s.limiter == nil {
		return true
	}
	return s.limiter.Allow()
}

// TouchLastSeen refreshes the liveness timestamp; called on every inbound
// frame, not only STAT.
func (s *Session) TouchLastSeen() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLastSeenLocked()
}

func (s *Session) touchLastSeenLocked() {
	s.Status.LastSeen = time.Now()
}

// SecondsSinceLastSeen returns the liveness gap used by the heartbeat
// supervisor's timeout check.
func (s *Session) SecondsSinceLastSeen() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.Status.LastSeen).Seconds()
}

// MAC returns the session's immutable identity (empty before HELO).
func (s *Session) MAC() MAC {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Info.MAC
}

// State returns the current playback state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Status.State
}

// InfoSnapshot returns a copy of the session's static identity, safe to
// read without racing MarkConnected.
func (s *Session) InfoSnapshot() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Info
}

// Model returns the static model name parsed from HELO.
func (s *Session) Model() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Info.Model
}

// StatusSnapshot returns a copy of the session's current dynamic status,
// safe to read without racing the read loop's STAT-driven mutations.
func (s *Session) StatusSnapshot() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Status
}

// DisplayName returns the capability name, MAC, or a synthesized fallback.
func (s *Session) DisplayName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Info.DisplayName(s.RemoteIP)
}

// StreamingURL builds the HTTP URL a player would use to fetch its stream,
// for diagnostics/admin surfaces.
func (s *Session) StreamingURL(host string, port int) string {
	s.mu.Lock()
	mac := s.Info.MAC
	s.mu.Unlock()
	return fmt.Sprintf("http://%s:%d/stream.mp3?player=%s", host, port, mac)
}

// send writes one frame and, on failure, marks the session Disconnected and
// returns a *ConnectionError. The registry is never mutated here; sessions
// are evicted by the read loop's cleanup (see Server.handleConnection) or by
// the heartbeat supervisor's timeout sweep.
func (s *Session) send(tag string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := frame.WriteServer(s.writer, tag, payload); err != nil {
		s.Status.State = StateDisconnected
		return &ConnectionError{MAC: s.Info.MAC, Err: err}
	}
	return nil
}

// Play sends strm 'u' (unpause) and sets Playing.
func (s *Session) Play() error {
	if err := s.send("strm", command.BuildStreamUnpause(0)); err != nil {
		return err
	}
	s.mu.Lock()
	s.Status.State = StatePlaying
	s.mu.Unlock()
	return nil
}

// Pause sends strm 'p' and sets Paused.
func (s *Session) Pause() error {
	if err := s.send("strm", command.BuildStreamPause(0)); err != nil {
		return err
	}
	s.mu.Lock()
	s.Status.State = StatePaused
	s.mu.Unlock()
	return nil
}

// Stop sends strm 'q' and sets Stopped.
func (s *Session) Stop() error {
	if err := s.send("strm", command.BuildStreamStop()); err != nil {
		return err
	}
	s.mu.Lock()
	s.Status.State = StateStopped
	s.mu.Unlock()
	return nil
}

// Flush sends strm 'f'; state is unchanged (used before a track switch).
func (s *Session) Flush() error {
	return s.send("strm", command.BuildStreamFlush())
}

// TogglePause: Paused -> play, Playing -> pause, anything else -> play.
func (s *Session) TogglePause() error {
	switch s.State() {
	case StatePaused:
		return s.Play()
	case StatePlaying:
		return s.Pause()
	default:
		return s.Play()
	}
}

// SetVolume clamps v to [0,100], sends audg, and updates status.
func (s *Session) SetVolume(v int, muted bool) error {
	v = clampVolume(v)
	if err := s.send("audg", command.BuildVolumeFrame(v, muted)); err != nil {
		return err
	}
	s.mu.Lock()
	s.Status.Volume = v
	s.Status.Muted = muted
	s.mu.Unlock()
	return nil
}

// VolumeUp increases volume by step (default 5), clamped at 100.
func (s *Session) VolumeUp(step int) error {
	if step <= 0 {
		step = 5
	}
	s.mu.Lock()
	next := clampVolume(s.Status.Volume + step)
	muted := s.Status.Muted
	s.mu.Unlock()
	return s.SetVolume(next, muted)
}

// VolumeDown decreases volume by step (default 5), clamped at 0.
func (s *Session) VolumeDown(step int) error {
	if step <= 0 {
		step = 5
	}
	s.mu.Lock()
	next := clampVolume(s.Status.Volume - step)
	muted := s.Status.Muted
	s.mu.Unlock()
	return s.SetVolume(next, muted)
}

// Mute mutes at the last known volume (preserved, not zeroed).
func (s *Session) Mute() error {
	s.mu.Lock()
	v := s.Status.Volume
	s.mu.Unlock()
	return s.SetVolume(v, true)
}

// Unmute unmutes at the last known volume.
func (s *Session) Unmute() error {
	s.mu.Lock()
	v := s.Status.Volume
	s.mu.Unlock()
	return s.SetVolume(v, false)
}

// StartStream resolves the format via resolve, sends strm 's', and
// optimistically sets Playing; the actual state is later confirmed by a
// STMr STAT event.
func (s *Session) StartStream(trackPath string, serverPort uint16, serverIP uint32, formatHint string, bufferThresholdKB byte, resolve StreamFormatResolver) error {
	s.mu.Lock()
	class := s.Info.DeviceClass
	mac := s.Info.MAC
	s.mu.Unlock()

	format := resolve(formatHint, class)
	if bufferThresholdKB == 0 {
		bufferThresholdKB = 255
	}
	request := fmt.Sprintf("GET /stream.mp3?player=%s HTTP/1.0\r\n\r\n", mac)
	if trackPath != "" {
		request = fmt.Sprintf("GET %s HTTP/1.0\r\n\r\n", trackPath)
	}

	payload := command.BuildStreamStart(format, serverPort, serverIP, bufferThresholdKB, request)
	if err := s.send("strm", payload); err != nil {
		return err
	}
	s.mu.Lock()
	s.Status.State = StatePlaying
	s.mu.Unlock()
	return nil
}

// SendRaw sends an arbitrary server->client frame; used by the protocol
// server for vers/setd and the heartbeat strm-t status request.
func (s *Session) SendRaw(tag string, payload []byte) error {
	return s.send(tag, payload)
}

// Disconnect marks the session Disconnected. Idempotent. It does not close
// the underlying connection (that belongs to whoever owns the net.Conn);
// it exists so timeout eviction and BYE! can converge on one terminal state
// before the registry removes the session.
func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Status.State = StateDisconnected
}

// IsConnected reports whether the session is in any state other than
// Disconnected.
func (s *Session) IsConnected() bool {
	return s.State() != StateDisconnected
}
