package transport

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestSendUDPBytesSetsTruncationOnOverflow(t *testing.T) {
	big := make([]byte, 600)
	out := sendUDPBytes(big)
	if len(out) != 512 {
		t.Fatalf("expected 512-byte datagram, got %d", len(out))
	}
	if out[2]&truncationBit == 0 {
		t.Error("expected TC bit set on truncated response")
	}
}

func TestSendUDPBytesClearsTruncationUnderLimit(t *testing.T) {
	small := make([]byte, 30)
	small[2] = truncationBit // simulate a stray bit from a reused buffer
	out := sendUDPBytes(small)
	if len(out) != len(small) {
		t.Fatalf("expected output length unchanged, got %d", len(out))
	}
	if out[2]&truncationBit != 0 {
		t.Error("expected TC bit cleared on a payload under the limit")
	}
}

func TestSendTCPBytesPrependsLength(t *testing.T) {
	payload := []byte{1, 2, 3, 4}
	out := sendTCPBytes(payload)
	if len(out) != 2+len(payload) {
		t.Fatalf("expected 2-byte prefix plus payload, got %d bytes", len(out))
	}
	n := binary.BigEndian.Uint16(out[:2])
	if int(n) != len(payload) {
		t.Fatalf("expected length prefix %d, got %d", len(payload), n)
	}
	if !bytes.Equal(out[2:], payload) {
		t.Error("payload mismatch after length prefix")
	}
}

func TestReadTCPBytesRoundTrips(t *testing.T) {
	payload := []byte("a DNS message would go here")
	framed := sendTCPBytes(payload)

	got, err := readTCPBytes(bytes.NewReader(framed))
	if err != nil {
		t.Fatalf("readTCPBytes: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("readTCPBytes = %q, want %q", got, payload)
	}
}

func TestReadTCPBytesErrorsOnShortPrefix(t *testing.T) {
	if _, err := readTCPBytes(bytes.NewReader([]byte{0x01})); err == nil {
		t.Fatal("expected an error reading a truncated length prefix")
	}
}
