package policy

import (
	"testing"

	"github.com/srosecker/resonance-slimproto/internal/command"
	"github.com/srosecker/resonance-slimproto/internal/player"
)

func TestResolve(t *testing.T) {
	cases := []struct {
		hint string
		want command.AudioFormat
	}{
		{"flac", command.FormatFLAC},
		{"FLAC", command.FormatFLAC},
		{"wav", command.FormatPCM},
		{"pcm", command.FormatPCM},
		{"ogg", command.FormatOgg},
		{"mp3", command.FormatMP3},
		{"", command.FormatMP3},
		{"aiff", command.FormatMP3},
		{"  mp3  ", command.FormatMP3},
	}
	for _, c := range cases {
		got := Resolve(c.hint, player.DeviceUnknown)
		if got.Format != c.want {
			t.Errorf("Resolve(%q) = %q, want %q", c.hint, got.Format, c.want)
		}
		if !got.SelfDescribing {
			t.Errorf("Resolve(%q): SelfDescribing = false, want true", c.hint)
		}
	}
}
