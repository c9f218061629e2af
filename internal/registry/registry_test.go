package registry

import (
	"bytes"
	"testing"

	"github.com/srosecker/resonance-slimproto/internal/player"
)

func newSession(mac, ip string) *player.Session {
	var buf bytes.Buffer
	s := player.NewSession(&buf, ip, 0, 0)
	s.MarkConnected(player.Info{MAC: player.MAC(mac), Capabilities: map[string]string{"Name": "Kitchen"}})
	return s
}

func TestRegistry_RegisterAndGetByMAC(t *testing.T) {
	r := New()
	s := newSession("aa:aa:aa:aa:aa:aa", "10.0.0.5")
	if replaced := r.Register(s); replaced != nil {
		t.Fatalf("expected no replacement on first register, got %v", replaced)
	}
	if got := r.GetByMAC("aa:aa:aa:aa:aa:aa"); got != s {
		t.Fatalf("GetByMAC returned %v, want %v", got, s)
	}
	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}
}

func TestRegistry_ReconnectReplaces(t *testing.T) {
	r := New()
	first := newSession("bb:bb:bb:bb:bb:bb", "10.0.0.5")
	second := newSession("bb:bb:bb:bb:bb:bb", "10.0.0.6")

	r.Register(first)
	replaced := r.Register(second)

	if replaced != first {
		t.Fatalf("expected replaced == first session")
	}
	if first.State() != player.StateDisconnected {
		t.Fatalf("old session state = %v, want Disconnected", first.State())
	}
	if r.GetByMAC("bb:bb:bb:bb:bb:bb") != second {
		t.Fatal("expected new session to be registered under the same MAC")
	}
	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 (replace, not append)", r.Len())
	}
}

func TestRegistry_Unregister(t *testing.T) {
	r := New()
	s := newSession("cc:cc:cc:cc:cc:cc", "10.0.0.7")
	r.Register(s)

	removed := r.Unregister("cc:cc:cc:cc:cc:cc")
	if removed != s {
		t.Fatalf("Unregister returned %v, want %v", removed, s)
	}
	if r.GetByMAC("cc:cc:cc:cc:cc:cc") != nil {
		t.Fatal("expected session gone after Unregister")
	}
	if r.Unregister("cc:cc:cc:cc:cc:cc") != nil {
		t.Fatal("expected nil on double unregister")
	}
}

func TestRegistry_GetByIP(t *testing.T) {
	r := New()
	s := newSession("dd:dd:dd:dd:dd:dd", "10.0.0.9")
	r.Register(s)

	if got := r.GetByIP("10.0.0.9"); got != s {
		t.Fatalf("GetByIP returned %v, want %v", got, s)
	}
	if r.GetByIP("10.0.0.99") != nil {
		t.Fatal("expected nil for unknown IP")
	}
}

func TestRegistry_GetByName_caseInsensitive(t *testing.T) {
	r := New()
	s := newSession("ee:ee:ee:ee:ee:ee", "10.0.0.10")
	r.Register(s)

	if got := r.GetByName("kitchen"); got != s {
		t.Fatalf("GetByName returned %v, want %v", got, s)
	}
	if got := r.GetByName("KITCHEN"); got != s {
		t.Fatalf("GetByName (upper) returned %v, want %v", got, s)
	}
	if r.GetByName("bedroom") != nil {
		t.Fatal("expected nil for unknown name")
	}
}

func TestRegistry_GetAll_isSnapshot(t *testing.T) {
	r := New()
	r.Register(newSession("11:11:11:11:11:11", "10.0.0.1"))
	r.Register(newSession("22:22:22:22:22:22", "10.0.0.2"))

	all := r.GetAll()
	if len(all) != 2 {
		t.Fatalf("GetAll() returned %d sessions, want 2", len(all))
	}

	r.Register(newSession("33:33:33:33:33:33", "10.0.0.3"))
	if len(all) != 2 {
		t.Fatal("snapshot slice should not observe later registrations")
	}
}

func TestRegistry_DisconnectAll(t *testing.T) {
	r := New()
	a := newSession("44:44:44:44:44:44", "10.0.0.4")
	b := newSession("55:55:55:55:55:55", "10.0.0.5")
	r.Register(a)
	r.Register(b)

	r.DisconnectAll()

	if r.Len() != 0 {
		t.Fatalf("Len() after DisconnectAll = %d, want 0", r.Len())
	}
	if a.State() != player.StateDisconnected || b.State() != player.StateDisconnected {
		t.Fatal("expected both sessions marked Disconnected")
	}
}
