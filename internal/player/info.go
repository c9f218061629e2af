package player

import (
	"fmt"
	"strings"
)

// MAC is a stable player identity: six octets rendered lower-case,
// colon-separated. Empty before HELO, immutable afterward.
type MAC string

// Info is the static information about a player, fixed by its HELO handshake.
type Info struct {
	MAC          MAC
	DeviceClass  DeviceClass
	Model        string
	Firmware     string // opaque revision string
	UUID         string // optional 32-char hex
	Capabilities map[string]string
}

// DisplayName returns the capability "Name", else the MAC, else a
// synthesized "Player-<ip>".
func (i Info) DisplayName(ip string) string {
	if name, ok := i.Capabilities["Name"]; ok && name != "" {
		return name
	}
	if i.MAC != "" {
		return string(i.MAC)
	}
	return fmt.Sprintf("Player-%s", ip)
}

// ErrHeloTooShort is returned when a HELO payload is shorter than the
// 10-byte minimum needed to extract device ID, firmware, and MAC.
var ErrHeloTooShort = fmt.Errorf("player: HELO payload too short")

// ParseHELO decodes a HELO payload into an Info. Payloads shorter than 10
// bytes are a hard protocol error. UUID is present only when the payload is
// at least 36 bytes; the capability string starts at byte 36 in that case,
// else at byte 20.
func ParseHELO(data []byte) (Info, error) {
	if len(data) < 10 {
		return Info{}, fmt.Errorf("%w: %d bytes", ErrHeloTooShort, len(data))
	}

	deviceID := int(data[0])
	firmware := fmt.Sprintf("%d", data[1])
	mac := formatMAC(data[2:8])

	class, model := classAndModelFromID(deviceID)

	capsOffset := 20
	var uuid string
	if len(data) >= 36 {
		uuid = fmt.Sprintf("%x", data[8:24])
		capsOffset = 36
	}

	var caps map[string]string
	if len(data) > capsOffset {
		caps = parseCapabilities(string(data[capsOffset:]))
	} else {
		caps = map[string]string{}
	}

	return Info{
		MAC:          MAC(mac),
		DeviceClass:  class,
		Model:        model,
		Firmware:     firmware,
		UUID:         uuid,
		Capabilities: caps,
	}, nil
}

func formatMAC(b []byte) string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = fmt.Sprintf("%02x", v)
	}
	return strings.Join(parts, ":")
}

// parseCapabilities splits a comma-separated capability string. Each token
// is either "Key=Value" (first '=' splits; the value may itself contain '=')
// or a bare "Flag" token, stored as Flag="1".
func parseCapabilities(s string) map[string]string {
	caps := make(map[string]string)
	for _, part := range strings.Split(s, ",") {
		if part == "" {
			continue
		}
		if idx := strings.Index(part, "="); idx >= 0 {
			key := strings.TrimSpace(part[:idx])
			val := strings.TrimSpace(part[idx+1:])
			if key != "" {
				caps[key] = val
			}
			continue
		}
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			caps[trimmed] = "1"
		}
	}
	return caps
}
