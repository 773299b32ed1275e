package ws

import (
	"bytes"
	"testing"

	"github.com/momentics/manet-ws/api"
)

func TestEncodeParseRoundTrip(t *testing.T) {
	payload := []byte("hello reactor")
	dst := make([]byte, 256)
	n, err := EncodeFrame(dst, OpcodeText, true, payload)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}

	// A client frame is masked; a server frame must not be, so flip the
	// mask bit off before ParseFrame to simulate what the server would
	// actually send back (parsing our own wire bytes is only valid once
	// we pretend to be the unmasked peer side).
	encoded := dst[:n]
	unmasked := unmaskForTest(encoded)

	frame, consumed, status := ParseFrame(unmasked)
	if status != api.FrameOK {
		t.Fatalf("expected FrameOK, got %v", status)
	}
	if consumed != len(unmasked) {
		t.Fatalf("expected to consume %d bytes, consumed %d", len(unmasked), consumed)
	}
	if !frame.Fin || frame.Opcode != OpcodeText {
		t.Fatalf("unexpected frame metadata: %+v", frame)
	}
	if !bytes.Equal(frame.Payload, payload) {
		t.Fatalf("payload mismatch: got %q want %q", frame.Payload, payload)
	}
}

// unmaskForTest rewrites a masked client-style frame into an unmasked
// server-style frame with the same payload, for round-trip assertions.
func unmaskForTest(frame []byte) []byte {
	b0 := frame[0]
	b1 := frame[1] &^ maskBit
	lenCode := frame[1] & lenMask
	offset := 2
	switch lenCode {
	case 126:
		offset = 4
	case 127:
		offset = 10
	}
	key := [4]byte{frame[offset], frame[offset+1], frame[offset+2], frame[offset+3]}
	payloadStart := offset + 4
	payload := make([]byte, len(frame)-payloadStart)
	for i := range payload {
		payload[i] = frame[payloadStart+i] ^ key[i%4]
	}
	out := append([]byte{b0, b1}, frame[2:offset]...)
	out = append(out, payload...)
	return out
}

func TestParseFrameNeedsMoreOnShortHeader(t *testing.T) {
	_, _, status := ParseFrame([]byte{0x81})
	if status != api.FrameNeedMore {
		t.Fatalf("expected FrameNeedMore, got %v", status)
	}
}

func TestParseFrameRejectsMaskedServerFrame(t *testing.T) {
	buf := []byte{0x81, 0x85, 0, 0, 0, 0, 'h', 'e', 'l', 'l', 'o'}
	_, _, status := ParseFrame(buf)
	if status != api.FrameMaskedServer {
		t.Fatalf("expected FrameMaskedServer, got %v", status)
	}
}

func TestParseFrameRejectsReservedBits(t *testing.T) {
	buf := []byte{0x81 | 0x40, 0x00}
	_, _, status := ParseFrame(buf)
	if status != api.FrameBadReserved {
		t.Fatalf("expected FrameBadReserved, got %v", status)
	}
}

func TestEncodeFrameShortWindow(t *testing.T) {
	dst := make([]byte, 4)
	_, err := EncodeFrame(dst, OpcodeText, true, []byte("too long for this buffer"))
	if err == nil {
		t.Fatal("expected errShortWindow")
	}
}

func TestParseFrameExtended16LengthServerFrame(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 200)
	var hdr [4]byte
	hdr[0] = finBit | OpcodeBinary
	hdr[1] = 126
	hdr[2] = byte(len(payload) >> 8)
	hdr[3] = byte(len(payload))
	buf := append(hdr[:], payload...)

	frame, consumed, status := ParseFrame(buf)
	if status != api.FrameOK {
		t.Fatalf("expected FrameOK, got %v", status)
	}
	if consumed != len(buf) {
		t.Fatalf("expected to consume %d, got %d", len(buf), consumed)
	}
	if !bytes.Equal(frame.Payload, payload) {
		t.Fatal("payload mismatch for 16-bit extended length")
	}
}
