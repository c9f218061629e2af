// Package registry is the central, MAC-keyed repository of connected
// players. It mirrors the protocol server's view of "who is online" and is
// the one place the slimserver and the admin HTTP surface consult to find a
// player's session or count the connected players.
package registry

import (
	"log"
	"strings"
	"sync"

	"github.com/srosecker/resonance-slimproto/internal/player"
)

// Registry is the central repository of connected players, indexed by MAC
// address. Safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	players map[player.MAC]*player.Session
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{players: make(map[player.MAC]*player.Session)}
}

// Register adds a session under its MAC, replacing and disconnecting any
// existing session with the same MAC (a reconnect). The old session's
// Disconnect is called while the lock is held, since it only flips local
// state; any I/O to actually tear down its connection is the caller's
// responsibility (the accept loop that owned the stale net.Conn).
func (r *Registry) Register(s *player.Session) (replaced *player.Session) {
	mac := s.MAC()

	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.players[mac]; ok {
		old.Disconnect()
		replaced = old
		log.Printf("registry: player reconnected: %s (replacing old connection)", mac)
	} else {
		log.Printf("registry: player registered: %s (%s)", mac, s.DisplayName())
	}
	r.players[mac] = s
	return replaced
}

// Unregister removes a session by MAC and returns it, or nil if not found.
func (r *Registry) Unregister(mac player.MAC) *player.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.players[mac]
	if !ok {
		return nil
	}
	delete(r.players, mac)
	log.Printf("registry: player unregistered: %s", mac)
	return s
}

// GetByMAC looks up a session by its exact MAC.
func (r *Registry) GetByMAC(mac player.MAC) *player.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.players[mac]
}

// GetByIP returns the first session whose RemoteIP matches ip. Multiple
// players can share an IP (NAT); ordering among them is unspecified.
func (r *Registry) GetByIP(ip string) *player.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.players {
		if s.RemoteIP == ip {
			return s
		}
	}
	return nil
}

// GetByName returns the first session whose display name matches name,
// case-insensitively.
func (r *Registry) GetByName(name string) *player.Session {
	needle := strings.ToLower(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.players {
		if strings.ToLower(s.DisplayName()) == needle {
			return s
		}
	}
	return nil
}

// GetAll returns a snapshot slice of every registered session, safe to
// range over without holding the registry lock.
func (r *Registry) GetAll() []*player.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*player.Session, 0, len(r.players))
	for _, s := range r.players {
		out = append(out, s)
	}
	return out
}

// Len reports the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

// DisconnectAll marks every session Disconnected and empties the registry.
// The snapshot is taken under the lock and the lock released before the
// per-session work, so a slow or buggy Disconnect can never block a
// concurrent lookup. Used during server shutdown.
func (r *Registry) DisconnectAll() {
	r.mu.Lock()
	sessions := make([]*player.Session, 0, len(r.players))
	for mac, s := range r.players {
		sessions = append(sessions, s)
		delete(r.players, mac)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		s.Disconnect()
	}
	log.Printf("registry: all players disconnected (%d total)", len(sessions))
}
