// Package frame implements the two Slimproto wire framings: the client->server
// header (4-byte tag, 4-byte big-endian length) and the server->client header
// (2-byte big-endian length-including-tag, 4-byte tag). The two are not
// interchangeable; a server frame written with the client framing will not
// parse on a real player.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxPayload is the largest payload length accepted from a client. Declared
// lengths above this are rejected before any read is attempted.
const MaxPayload = 65536

// ErrFrameTooLarge is returned when a client declares a payload longer than MaxPayload.
var ErrFrameTooLarge = errors.New("frame: declared payload exceeds maximum")

// ErrIncompleteRead is returned when the connection is closed mid-frame.
var ErrIncompleteRead = errors.New("frame: incomplete read")

// ErrBadTag is returned when a tag is not exactly 4 bytes.
var ErrBadTag = errors.New("frame: tag must be exactly 4 bytes")

// ReadClient reads one client->server frame: 4-byte ASCII tag, 4-byte
// big-endian length, then length payload bytes. Partial reads are retried
// internally via io.ReadFull until the exact length is satisfied.
func ReadClient(r io.Reader) (tag string, payload []byte, err error) {
	var header [8]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return "", nil, wrapIncomplete(err)
	}

	tag = string(header[:4])
	length := binary.BigEndian.Uint32(header[4:8])
	if length > MaxPayload {
		return "", nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, length)
	}

	if length == 0 {
		return tag, nil, nil
	}

	payload = make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return "", nil, wrapIncomplete(err)
	}
	return tag, payload, nil
}

// WriteServer writes one server->client frame: 2-byte big-endian length
// (len(payload)+4), 4-byte ASCII tag, then payload.
func WriteServer(w io.Writer, tag string, payload []byte) error {
	if len(tag) != 4 {
		return fmt.Errorf("%w: got %d bytes (%q)", ErrBadTag, len(tag), tag)
	}

	buf := make([]byte, 2+4+len(payload))
	binary.BigEndian.PutUint16(buf[0:2], uint16(len(payload)+4))
	copy(buf[2:6], tag)
	copy(buf[6:], payload)

	_, err := w.Write(buf)
	return err
}

func wrapIncomplete(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %v", ErrIncompleteRead, err)
	}
	return err
}
