// Package slimserver is the Slimproto protocol server: the TCP listener,
// accept loop, handshake orchestration, per-session dispatch loop, and the
// heartbeat/timeout supervisor. It is the one component that ties the frame
// codec, command builder, player session, registry, and streaming-policy
// shim together.
package slimserver

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"time"

	"golang.org/x/net/netutil"

	"github.com/srosecker/resonance-slimproto/internal/command"
	"github.com/srosecker/resonance-slimproto/internal/events"
	"github.com/srosecker/resonance-slimproto/internal/frame"
	"github.com/srosecker/resonance-slimproto/internal/metrics"
	"github.com/srosecker/resonance-slimproto/internal/player"
	"github.com/srosecker/resonance-slimproto/internal/policy"
	"github.com/srosecker/resonance-slimproto/internal/registry"
)

// GenerationLookup is the optional collaborator that owns the per-player
// stream generation counter. A nil GenerationLookup (or one that reports
// !ok) yields a null generation on TrackFinished.
type GenerationLookup interface {
	GenerationOf(mac player.MAC) (generation uint64, ok bool)
}

// Options configures a Server. Zero values of the address, port,
// connection-limit and timing fields are replaced with the spec's documented
// defaults by New; a zero FrameRateLimit disables per-session rate limiting.
type Options struct {
	BindHost string
	Port     int

	StreamingPort int

	MaxConnections int

	HeloDeadline        time.Duration
	ClientTimeout       time.Duration
	ClientCheckInterval time.Duration

	FrameRateLimit float64
	FrameRateBurst int

	TraceFrames bool
}

func (o *Options) setDefaults() {
	if o.BindHost == "" {
		o.BindHost = "0.0.0.0"
	}
	if o.Port == 0 {
		o.Port = 3483
	}
	if o.StreamingPort == 0 {
		o.StreamingPort = 9000
	}
	if o.MaxConnections == 0 {
		o.MaxConnections = 512
	}
	if o.HeloDeadline == 0 {
		o.HeloDeadline = 5 * time.Second
	}
	if o.ClientTimeout == 0 {
		o.ClientTimeout = 60 * time.Second
	}
	if o.ClientCheckInterval == 0 {
		o.ClientCheckInterval = 5 * time.Second
	}
}

// Server is a running (or not-yet-started) Slimproto protocol server.
type Server struct {
	opts Options

	registry *registry.Registry
	bus      *events.Bus
	metrics  *metrics.Collectors
	gen      GenerationLookup

	listener net.Listener

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New constructs a Server. metricsCollectors and gen may be nil: a nil
// metrics.Collectors disables metric recording, a nil GenerationLookup
// yields a null generation on every TrackFinished event.
func New(opts Options, reg *registry.Registry, bus *events.Bus, metricsCollectors *metrics.Collectors, gen GenerationLookup) *Server {
	opts.setDefaults()
	return &Server{
		opts:     opts,
		registry: reg,
		bus:      bus,
		metrics:  metricsCollectors,
		gen:      gen,
	}
}

// ListenAndServe binds the listener, wraps it with a connection-count limit,
// spawns the heartbeat supervisor, and blocks the accept loop until ctx is
// cancelled. On return every session goroutine and the supervisor have
// finished their cleanup.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.opts.BindHost, s.opts.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("slimserver: listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the accept loop against an already-bound listener, wrapping it
// with a connection-count limit. Exposed separately from ListenAndServe so
// tests can bind an ephemeral port themselves.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.listener = netutil.LimitListener(ln, s.opts.MaxConnections)

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	log.Printf("slimserver: listening on %s", ln.Addr())

	s.wg.Add(1)
	go s.runHeartbeat(ctx)

	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				s.wg.Wait()
				s.registry.DisconnectAll()
				log.Printf("slimserver: stopped")
				return nil
			default:
				log.Printf("slimserver: accept error: %v", err)
				continue
			}
		}
		s.wg.Add(1)
		go s.handleConnection(ctx, conn)
	}
}

// Shutdown cancels the accept loop and every session/supervisor goroutine.
// It returns without waiting; Serve (and ListenAndServe) returns once they
// have all finished their cleanup.
func (s *Server) Shutdown() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	remoteIP := hostOf(conn.RemoteAddr())
	sess := player.NewSession(conn, remoteIP, s.opts.FrameRateLimit, s.opts.FrameRateBurst)

	info, err := s.awaitHelo(conn, sess)
	if err != nil {
		log.Printf("slimserver: handshake failed from %s: %v", remoteIP, err)
		if s.metrics != nil {
			s.metrics.HeloFailures.Inc()
		}
		return
	}

	sess.MarkConnected(info)
	replaced := s.registry.Register(sess)
	if replaced != nil {
		log.Printf("slimserver: %s reconnected, replacing prior session", info.MAC)
	}
	s.publishConnected(sess)
	s.updateConnectedGauge()

	if err := s.sendGreeting(sess); err != nil {
		log.Printf("slimserver: greeting failed for %s: %v", info.MAC, err)
	}

	s.messageLoop(ctx, conn, sess)

	sess.Disconnect()
	s.registry.Unregister(sess.MAC())
	s.publishDisconnected(sess.MAC())
	s.updateConnectedGauge()
}

// awaitHelo reads the first frame with a deadline and requires it to be a
// well-formed HELO.
func (s *Server) awaitHelo(conn net.Conn, sess *player.Session) (player.Info, error) {
	conn.SetReadDeadline(time.Now().Add(s.opts.HeloDeadline))
	defer conn.SetReadDeadline(time.Time{})

	tag, payload, err := frame.ReadClient(conn)
	if err != nil {
		return player.Info{}, fmt.Errorf("reading first frame: %w", err)
	}
	if tag != "HELO" {
		return player.Info{}, fmt.Errorf("expected HELO, got %q", tag)
	}
	info, err := player.ParseHELO(payload)
	if err != nil {
		return player.Info{}, err
	}
	sess.TouchLastSeen()
	return info, nil
}

// sendGreeting sends the fixed post-HELO sequence: vers, setd, strm t.
func (s *Server) sendGreeting(sess *player.Session) error {
	if err := sess.SendRaw("vers", []byte("8.5.0")); err != nil {
		return err
	}
	s.countCommand("vers")

	setd := append([]byte{0x00}, []byte(sess.MAC())...)
	if err := sess.SendRaw("setd", setd); err != nil {
		return err
	}
	s.countCommand("setd")

	return s.sendHeartbeat(sess)
}

// sendHeartbeat builds and sends a strm 't' status request using the
// advertised server IP computed for this session's peer.
func (s *Server) sendHeartbeat(sess *player.Session) error {
	ip := s.advertisedIP(sess.RemoteIP)
	payload, err := command.BuildStreamStatus(uint16(s.opts.StreamingPort), ip)
	if err != nil {
		return err
	}
	if err := sess.SendRaw("strm", payload); err != nil {
		return err
	}
	s.countCommand("strm")
	return nil
}

// clientFrame is one decoded frame (or terminal error) handed from the
// background reader goroutine to messageLoop.
type clientFrame struct {
	tag     string
	payload []byte
	err     error
}

// messageLoop dispatches inbound frames until the connection ends or ctx is
// cancelled. Reading happens on a dedicated goroutine so frame.ReadClient's
// io.ReadFull calls are never interrupted mid-frame by a deadline: a
// deadline re-armed on every loop iteration can fire between the header read
// and the payload read, leaving ReadClient's next call starting in the
// middle of a frame. Cancellation instead closes the connection, which
// unblocks the goroutine's in-flight Read immediately.
func (s *Server) messageLoop(ctx context.Context, conn net.Conn, sess *player.Session) {
	frames := make(chan clientFrame, 1)
	go func() {
		tag, payload, err := frame.ReadClient(conn)
		for {
			frames <- clientFrame{tag, payload, err}
			if err != nil {
				return
			}
			tag, payload, err = frame.ReadClient(conn)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			conn.Close()
			return
		case cf := <-frames:
			if cf.err != nil {
				if cf.err != io.EOF {
					log.Printf("slimserver: %s read error: %v", sess.MAC(), cf.err)
				}
				return
			}

			sess.TouchLastSeen()
			s.countFrame(cf.tag)

			if !sess.AllowFrame() {
				if s.metrics != nil {
					s.metrics.FramesRateLimited.Inc()
				}
				continue
			}

			if s.opts.TraceFrames {
				traceInbound(sess.MAC(), cf.tag, cf.payload)
			}

			switch cf.tag {
			case "STAT":
				s.handleStat(sess, cf.payload)
			case "BYE!":
				log.Printf("slimserver: %s sent BYE!", sess.MAC())
				return
			case "IR  ", "RESP", "META", "DSCO", "BUTN", "KNOB", "SETD", "ANIC":
				// No behavioral effect in this core; last_seen already refreshed.
			default:
				log.Printf("slimserver: unknown tag %q from %s", cf.tag, sess.MAC())
			}
		}
	}
}

// StartStream looks up mac in the registry and instructs its session to
// begin streaming trackPath, resolving formatHint through the streaming-
// policy shim and advertising this server's own reachable address.
// ErrPlayerNotFound is returned if mac is not currently registered.
func (s *Server) StartStream(mac player.MAC, trackPath, formatHint string, bufferThresholdKB byte) error {
	sess := s.registry.GetByMAC(mac)
	if sess == nil {
		return fmt.Errorf("slimserver: %w: %s", ErrPlayerNotFound, mac)
	}
	ip := s.advertisedIP(sess.RemoteIP)
	resolve := func(hint string, class player.DeviceClass) command.AudioFormat {
		return policy.Resolve(hint, class).Format
	}
	if err := sess.StartStream(trackPath, uint16(s.opts.StreamingPort), ip, formatHint, bufferThresholdKB, resolve); err != nil {
		return err
	}
	s.countCommand("strm")
	return nil
}

// ErrPlayerNotFound is returned by StartStream (and other future
// MAC-addressed control operations) when the MAC is not registered.
var ErrPlayerNotFound = fmt.Errorf("slimserver: player not found")

func (s *Server) handleStat(sess *player.Session, payload []byte) {
	sf := player.ParseStat(payload)
	trackFinished := sess.ApplyStat(sf)

	switch sf.Event {
	case player.EventStreamEstablished, player.EventStreamPaused, player.EventStopped:
		s.publishStatus(sess)
	}

	if trackFinished {
		s.publishTrackFinished(sess.MAC())
	}
}

func (s *Server) runHeartbeat(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.opts.ClientCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Server) sweep() {
	for _, sess := range s.registry.GetAll() {
		if sess.SecondsSinceLastSeen() > s.opts.ClientTimeout.Seconds() {
			mac := sess.MAC()
			log.Printf("slimserver: %s timed out (no heartbeat for %.1fs)", mac, sess.SecondsSinceLastSeen())
			sess.Disconnect()
			s.registry.Unregister(mac)
			if s.metrics != nil {
				s.metrics.HeartbeatEvictions.Inc()
			}
			s.publishDisconnected(mac)
			s.updateConnectedGauge()
			continue
		}
		if err := s.sendHeartbeat(sess); err != nil {
			log.Printf("slimserver: heartbeat send failed for %s: %v", sess.MAC(), err)
		}
	}
}

// advertisedIP computes the IPv4 to place in a strm frame, per the rules in
// the component design: a concrete bound host wins, then loopback peers,
// then a UDP-connect trick to discover the local interface used to reach
// the peer, then a 127.0.0.1 fallback. The result is never 0 (0.0.0.0).
func (s *Server) advertisedIP(peerIP string) uint32 {
	if ip := net.ParseIP(s.opts.BindHost); ip != nil {
		if v4 := ip.To4(); v4 != nil && !v4.Equal(net.IPv4zero) {
			return binary.BigEndian.Uint32(v4)
		}
	}

	if peerIP == "127.0.0.1" || peerIP == "::1" {
		return loopbackIPv4
	}

	if peerIP != "" {
		if conn, err := net.Dial("udp", net.JoinHostPort(peerIP, "9")); err == nil {
			defer conn.Close()
			if local, ok := conn.LocalAddr().(*net.UDPAddr); ok {
				if v4 := local.IP.To4(); v4 != nil {
					return binary.BigEndian.Uint32(v4)
				}
			}
		}
	}

	return loopbackIPv4
}

var loopbackIPv4 = binary.BigEndian.Uint32(net.IPv4(127, 0, 0, 1).To4())

func hostOf(addr net.Addr) string {
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}

func (s *Server) countFrame(tag string) {
	if s.metrics != nil {
		s.metrics.FramesReceived.WithLabelValues(tag).Inc()
	}
}

func (s *Server) countCommand(tag string) {
	if s.metrics != nil {
		s.metrics.CommandsSent.WithLabelValues(tag).Inc()
	}
}

func (s *Server) updateConnectedGauge() {
	if s.metrics != nil {
		s.metrics.ConnectedPlayers.Set(float64(s.registry.Len()))
	}
}

func (s *Server) publishConnected(sess *player.Session) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.Event{
		Kind:     events.KindPlayerConnected,
		PlayerID: sess.MAC(),
		Name:     sess.DisplayName(),
		Model:    sess.Model(),
	})
}

func (s *Server) publishDisconnected(mac player.MAC) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.Event{Kind: events.KindPlayerDisconnected, PlayerID: mac})
}

func (s *Server) publishStatus(sess *player.Session) {
	if s.bus == nil {
		return
	}
	st := sess.StatusSnapshot()
	s.bus.Publish(events.Event{
		Kind:                events.KindPlayerStatus,
		PlayerID:            sess.MAC(),
		State:               st.State,
		Volume:              st.Volume,
		Muted:               st.Muted,
		ElapsedSeconds:      st.ElapsedSeconds,
		ElapsedMilliseconds: st.ElapsedMilliseconds,
	})
}

func (s *Server) publishTrackFinished(mac player.MAC) {
	if s.bus == nil {
		return
	}
	var gen *uint64
	if s.gen != nil {
		if g, ok := s.gen.GenerationOf(mac); ok {
			gen = &g
		}
	}
	s.bus.Publish(events.Event{Kind: events.KindPlayerTrackFinished, PlayerID: mac, StreamGeneration: gen})
}

func traceInbound(mac player.MAC, tag string, payload []byte) {
	limit := len(payload)
	if limit > 32 {
		limit = 32
	}
	log.Printf("slimserver: trace %s <- %s (%d bytes) % x", mac, tag, len(payload), payload[:limit])
}
