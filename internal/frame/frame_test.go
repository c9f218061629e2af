package frame

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestReadClient_roundTrip(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("HELO")
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], 3)
	buf.Write(lenBuf[:])
	buf.WriteString("abc")

	tag, payload, err := ReadClient(&buf)
	if err != nil {
		t.Fatalf("ReadClient: %v", err)
	}
	if tag != "HELO" {
		t.Errorf("tag = %q, want HELO", tag)
	}
	if string(payload) != "abc" {
		t.Errorf("payload = %q, want abc", payload)
	}
}

func TestReadClient_zeroLength(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("BYE!")
	var lenBuf [4]byte
	buf.Write(lenBuf[:])

	tag, payload, err := ReadClient(&buf)
	if err != nil {
		t.Fatalf("ReadClient: %v", err)
	}
	if tag != "BYE!" || len(payload) != 0 {
		t.Errorf("got tag=%q payload=%v", tag, payload)
	}
}

func TestReadClient_tooLarge(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("STAT")
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], 1048576)
	buf.Write(lenBuf[:])

	_, _, err := ReadClient(&buf)
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("want ErrFrameTooLarge, got %v", err)
	}
}

func TestReadClient_incompleteHeader(t *testing.T) {
	buf := bytes.NewBufferString("HE")
	_, _, err := ReadClient(buf)
	if !errors.Is(err, ErrIncompleteRead) {
		t.Fatalf("want ErrIncompleteRead, got %v", err)
	}
}

func TestReadClient_incompletePayload(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("STAT")
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], 36)
	buf.Write(lenBuf[:])
	buf.WriteString("short")

	_, _, err := ReadClient(&buf)
	if !errors.Is(err, ErrIncompleteRead) {
		t.Fatalf("want ErrIncompleteRead, got %v", err)
	}
}

func TestWriteServer_framing(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteServer(&buf, "vers", []byte("8.5.0")); err != nil {
		t.Fatalf("WriteServer: %v", err)
	}

	got := buf.Bytes()
	wantLen := uint16(len("8.5.0") + 4)
	gotLen := binary.BigEndian.Uint16(got[0:2])
	if gotLen != wantLen {
		t.Errorf("length = %d, want %d", gotLen, wantLen)
	}
	if string(got[2:6]) != "vers" {
		t.Errorf("tag = %q, want vers", got[2:6])
	}
	if string(got[6:]) != "8.5.0" {
		t.Errorf("payload = %q, want 8.5.0", got[6:])
	}
}

func TestWriteServer_badTag(t *testing.T) {
	var buf bytes.Buffer
	err := WriteServer(&buf, "ab", nil)
	if !errors.Is(err, ErrBadTag) {
		t.Fatalf("want ErrBadTag, got %v", err)
	}
}

func TestWriteServer_emptyPayload(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteServer(&buf, "DSCO", nil); err != nil {
		t.Fatalf("WriteServer: %v", err)
	}
	got := buf.Bytes()
	if len(got) != 6 {
		t.Fatalf("len = %d, want 6", len(got))
	}
	if binary.BigEndian.Uint16(got[0:2]) != 4 {
		t.Errorf("length = %d, want 4", binary.BigEndian.Uint16(got[0:2]))
	}
}

// asymmetry: a server frame is not parseable as a client frame and vice versa.
func TestFraming_asymmetry(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteServer(&buf, "strm", []byte{1, 2, 3}); err != nil {
		t.Fatalf("WriteServer: %v", err)
	}
	// Client framing expects 4-byte tag then 4-byte length; reading the
	// 2-byte-length server frame as a client frame must not silently succeed
	// with the same semantics (it reads garbage length bytes instead).
	tag, _, err := ReadClient(bytes.NewReader(buf.Bytes()))
	if err == nil && tag == "strm" {
		t.Fatalf("server-framed bytes parsed cleanly as a client frame: got tag %q", tag)
	}
}
