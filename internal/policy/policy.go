// Package policy maps a file-extension/format hint and device class to the
// strm format byte and PCM self-description the player should expect. It is
// the one seam where server-side transcoding decisions are signalled: if the
// resolved hint differs from the input hint, the server is transcoding, and
// the strm frame must still advertise the format the player will actually
// receive.
package policy

import (
	"strings"

	"github.com/srosecker/resonance-slimproto/internal/command"
	"github.com/srosecker/resonance-slimproto/internal/player"
)

// Resolved is the outcome of resolving a format hint: the strm format byte
// to advertise, and whether the PCM sub-fields should be self-describing.
type Resolved struct {
	Format         command.AudioFormat
	SelfDescribing bool
}

// Resolve maps (formatHint, deviceClass) to the format byte used in a strm
// start frame. deviceClass is accepted for forward compatibility (some
// device classes may one day get different policy) but the current policy
// does not vary by it.
func Resolve(formatHint string, _ player.DeviceClass) Resolved {
	switch strings.ToLower(strings.TrimSpace(formatHint)) {
	case "flac":
		return Resolved{Format: command.FormatFLAC, SelfDescribing: true}
	case "wav", "pcm":
		return Resolved{Format: command.FormatPCM, SelfDescribing: true}
	case "ogg":
		return Resolved{Format: command.FormatOgg, SelfDescribing: true}
	case "mp3":
		return Resolved{Format: command.FormatMP3, SelfDescribing: true}
	default:
		return Resolved{Format: command.FormatMP3, SelfDescribing: true}
	}
}
