// Package command builds the fixed-layout binary frames the Slimproto server
// sends to players: the 24-byte-header "strm" stream-control frame and the
// 18-byte "audg" audio-gain frame. Every byte in these layouts is
// semantically significant to real hardware players; field order and width
// must not change.
package command

import (
	"encoding/binary"
	"fmt"
)

// StreamAction is the one-byte action sub-selector for a strm frame.
type StreamAction byte

const (
	ActionStart   StreamAction = 's'
	ActionPause   StreamAction = 'p'
	ActionUnpause StreamAction = 'u'
	ActionStop    StreamAction = 'q'
	ActionFlush   StreamAction = 'f'
	ActionStatus  StreamAction = 't'
	// ActionSkip is reserved: no builder or consumer in this server uses it.
	ActionSkip StreamAction = 'a'
)

// Autostart mode byte.
type Autostart byte

const (
	AutostartOff        Autostart = '0'
	AutostartAuto       Autostart = '1'
	AutostartDirect     Autostart = '2'
	AutostartDirectAuto Autostart = '3'
)

// AudioFormat is the format byte advertised in a strm frame.
type AudioFormat byte

const (
	FormatMP3     AudioFormat = 'm'
	FormatPCM     AudioFormat = 'p'
	FormatFLAC    AudioFormat = 'f'
	FormatOgg     AudioFormat = 'o'
	FormatAAC     AudioFormat = 'a'
	FormatWMA     AudioFormat = 'w'
	FormatALAC    AudioFormat = 'l'
	FormatDSD     AudioFormat = 'd'
	FormatUnknown AudioFormat = '?'
)

// PCM sub-fields; '?' means self-describing in all four.
const (
	PCMSelfDescribing byte = '?'
)

// Transition type byte ('0'..'5').
type Transition byte

const (
	TransitionNone              Transition = '0'
	TransitionCrossfade         Transition = '1'
	TransitionFadeIn            Transition = '2'
	TransitionFadeOut           Transition = '3'
	TransitionFadeInOut         Transition = '4'
	TransitionCrossfadeImmed    Transition = '5'
)

// SPDIF mode, an unsigned byte (not ASCII).
type SpdifMode byte

const (
	SpdifAuto SpdifMode = 0
	SpdifOn   SpdifMode = 1
	SpdifOff  SpdifMode = 2
)

// Flag bits for the strm flags byte.
const (
	FlagLoopInfinite     = 0x80
	FlagNoRestartDecoder = 0x40
	FlagUseSSL           = 0x20
	FlagDirectProtocol   = 0x10
	FlagMonoRight        = 0x08
	FlagMonoLeft         = 0x04
	FlagInvertRight      = 0x02
	FlagInvertLeft       = 0x01
)

// StrmHeaderSize is the fixed portion of a strm frame, before the optional
// trailing request string.
const StrmHeaderSize = 24

// StreamParams holds every field of the strm fixed header.
type StreamParams struct {
	Action             StreamAction
	Autostart          Autostart
	Format             AudioFormat
	PCMSampleSize      byte // '0'..'3', or AAC container type '1'..'6', or '?'
	PCMSampleRate      byte // '0'..'9' or '?'
	PCMChannels        byte // '1', '2', or '?'
	PCMEndianness      byte // '0' big, '1' little, or '?'
	BufferThresholdKB  byte
	SpdifMode          SpdifMode
	TransitionDuration byte
	TransitionType     Transition
	Flags              byte
	OutputThreshold    byte
	SlaveStreams       byte
	ReplayGainOrMS     uint32 // 16.16 fixed point gain, or a ms timestamp for pause/unpause
	ServerPort         uint16
	ServerIP           uint32 // big-endian IPv4
}

// defaultStreamParams returns a StreamParams with the self-describing PCM
// fields and no gain/threshold set, matching the original command builders'
// defaults.
func defaultStreamParams() StreamParams {
	return StreamParams{
		Autostart:     AutostartAuto,
		Format:        FormatMP3,
		PCMSampleSize: PCMSelfDescribing,
		PCMSampleRate: PCMSelfDescribing,
		PCMChannels:   PCMSelfDescribing,
		PCMEndianness: PCMSelfDescribing,
	}
}

// BuildStrm packs the 24-byte strm fixed header followed by request, the raw
// (ASCII/latin-1) request string appended verbatim.
func BuildStrm(p StreamParams, request string) []byte {
	buf := make([]byte, StrmHeaderSize+len(request))
	buf[0] = byte(p.Action)
	buf[1] = byte(p.Autostart)
	buf[2] = byte(p.Format)
	buf[3] = p.PCMSampleSize
	buf[4] = p.PCMSampleRate
	buf[5] = p.PCMChannels
	buf[6] = p.PCMEndianness
	buf[7] = p.BufferThresholdKB
	buf[8] = byte(p.SpdifMode)
	buf[9] = p.TransitionDuration
	buf[10] = byte(p.TransitionType)
	buf[11] = p.Flags
	buf[12] = p.OutputThreshold
	buf[13] = p.SlaveStreams
	binary.BigEndian.PutUint32(buf[14:18], p.ReplayGainOrMS)
	binary.BigEndian.PutUint16(buf[18:20], p.ServerPort)
	binary.BigEndian.PutUint32(buf[20:24], p.ServerIP)
	copy(buf[StrmHeaderSize:], request)
	return buf
}

// BuildStreamStart builds a strm 's' frame with the given request string
// (the HTTP GET the player will issue back to the server for audio).
func BuildStreamStart(format AudioFormat, serverPort uint16, serverIP uint32, bufferThresholdKB byte, request string) []byte {
	p := defaultStreamParams()
	p.Action = ActionStart
	p.Format = format
	p.ServerPort = serverPort
	p.ServerIP = serverIP
	p.BufferThresholdKB = bufferThresholdKB
	return BuildStrm(p, request)
}

// BuildStreamPause builds a strm 'p' frame. intervalMS, if non-zero, is an
// optional pause-at timestamp carried in the replay-gain slot.
func BuildStreamPause(intervalMS uint32) []byte {
	p := StreamParams{Action: ActionPause, Autostart: AutostartOff, Format: FormatMP3, ReplayGainOrMS: intervalMS}
	return BuildStrm(p, "")
}

// BuildStreamUnpause builds a strm 'u' frame.
func BuildStreamUnpause(intervalMS uint32) []byte {
	p := StreamParams{Action: ActionUnpause, Autostart: AutostartOff, Format: FormatMP3, ReplayGainOrMS: intervalMS}
	return BuildStrm(p, "")
}

// BuildStreamStop builds a strm 'q' frame.
func BuildStreamStop() []byte {
	p := StreamParams{Action: ActionStop, Autostart: AutostartOff, Format: FormatMP3}
	return BuildStrm(p, "")
}

// BuildStreamFlush builds a strm 'f' frame.
func BuildStreamFlush() []byte {
	p := StreamParams{Action: ActionFlush, Autostart: AutostartOff, Format: FormatMP3}
	return BuildStrm(p, "")
}

// BuildStreamStatus builds a strm 't' status-request frame. serverPort and
// serverIP must be a reachable address; callers must never pass an IP of 0
// (0.0.0.0), which players interpret as "server 0" and refuse.
func BuildStreamStatus(serverPort uint16, serverIP uint32) ([]byte, error) {
	if serverIP == 0 {
		return nil, fmt.Errorf("command: strm status requires a non-zero server IP")
	}
	p := StreamParams{Action: ActionStatus, Autostart: AutostartOff, Format: FormatMP3, ServerPort: serverPort, ServerIP: serverIP}
	return BuildStrm(p, ""), nil
}

// AudgHeaderSize is the fixed size of an audg frame.
const AudgHeaderSize = 18

// BuildVolumeFrame builds the 18-byte audg frame. Volume is clamped to
// [0,100] by the caller (player.Session does this before calling in); gain is
// 16.16 fixed point, equal on both channels, 0 when muted.
func BuildVolumeFrame(volume int, muted bool) []byte {
	buf := make([]byte, AudgHeaderSize)
	// bytes 0-7: two deprecated 32-bit zero fields, left as zero.
	buf[8] = 1 // digital_volume
	buf[9] = 0 // preamp

	var gain uint32
	if !muted {
		// gain = round((volume/100)*256) << 8, computed in integer arithmetic.
		rounded := (uint32(volume)*256 + 50) / 100
		gain = rounded << 8
	}
	binary.BigEndian.PutUint32(buf[10:14], gain)
	binary.BigEndian.PutUint32(buf[14:18], gain)
	return buf
}
