package message

import (
	"net"
	"testing"

	"github.com/kelanmoore/homedns/internal/name"
	"github.com/kelanmoore/homedns/internal/protocol"
)

func mustName(t *testing.T, s string) name.Name {
	t.Helper()
	n, err := name.Parse(s)
	if err != nil {
		t.Fatalf("name.Parse(%q) error: %v", s, err)
	}
	return n
}

func TestRoundTripSimpleAnswer(t *testing.T) {
	owner := mustName(t, "a.example.com.")
	m := &Message{
		Header: Header{
			ID:                 0x1234,
			IsResponse:         true,
			Opcode:             protocol.OpcodeQuery,
			IsAuthoritative:    true,
			RecursionDesired:   false,
			RecursionAvailable: false,
			Rcode:              protocol.RcodeNoError,
		},
		Questions: []Question{{Name: owner, Type: protocol.TypeA, Class: protocol.ClassIN}},
		Answers: []ResourceRecord{
			{Name: owner, Data: RDATA_A{Addr: net.IPv4(1, 1, 1, 1)}, Class: protocol.ClassIN, TTL: 300},
		},
	}

	wire, err := Serialise(m)
	if err != nil {
		t.Fatalf("Serialise error: %v", err)
	}

	got, err := Deserialise(wire)
	if err != nil {
		t.Fatalf("Deserialise error: %v", err)
	}

	if got.Header.ID != m.Header.ID || !got.Header.IsAuthoritative || !got.Header.IsResponse {
		t.Errorf("header mismatch: %+v", got.Header)
	}
	if len(got.Answers) != 1 {
		t.Fatalf("expected 1 answer, got %d", len(got.Answers))
	}
	a, ok := got.Answers[0].Data.(RDATA_A)
	if !ok {
		t.Fatalf("expected RDATA_A, got %T", got.Answers[0].Data)
	}
	if !a.Addr.Equal(net.IPv4(1, 1, 1, 1)) {
		t.Errorf("A record address = %v, want 1.1.1.1", a.Addr)
	}
	if !got.Answers[0].Name.Equal(owner) {
		t.Errorf("answer name = %v, want %v", got.Answers[0].Name, owner)
	}
}

func TestCompressionReusesOwnerName(t *testing.T) {
	owner := mustName(t, "www.example.com.")
	m := &Message{
		Header:    Header{ID: 1, IsResponse: true},
		Questions: []Question{{Name: owner, Type: protocol.TypeA, Class: protocol.ClassIN}},
		Answers: []ResourceRecord{
			{Name: owner, Data: RDATA_A{Addr: net.IPv4(2, 2, 2, 2)}, Class: protocol.ClassIN, TTL: 60},
		},
	}
	wire, err := Serialise(m)
	if err != nil {
		t.Fatalf("Serialise error: %v", err)
	}

	// The answer's owner name should be a 2-byte pointer back to the
	// question's name, not a second full copy of the labels.
	uncompressedNameLen := 1 + len("www") + 1 + len("example") + 1 + len("com") + 1
	maxExpected := protocol.HeaderSize + uncompressedNameLen + 4 /* qtype/qclass */ + 2 /* pointer */ + 2 + 2 + 4 + 2 + 4
	if len(wire) > maxExpected {
		t.Errorf("serialised message is %d bytes, expected compression to keep it <= %d", len(wire), maxExpected)
	}

	got, err := Deserialise(wire)
	if err != nil {
		t.Fatalf("Deserialise error: %v", err)
	}
	if !got.Answers[0].Name.Equal(owner) {
		t.Errorf("decompressed answer name = %v, want %v", got.Answers[0].Name, owner)
	}
}

func TestSRVTargetNeverCompressed(t *testing.T) {
	owner := mustName(t, "_svc._tcp.example.com.")
	target := mustName(t, "example.com.") // same labels as a suffix already written
	m := &Message{
		Header:    Header{ID: 2, IsResponse: true},
		Questions: []Question{{Name: owner, Type: protocol.TypeSRV, Class: protocol.ClassIN}},
		Answers: []ResourceRecord{
			{Name: owner, Data: RDATA_SRV{Priority: 1, Weight: 1, Port: 80, Target: target}, Class: protocol.ClassIN, TTL: 60},
		},
	}
	wire, err := Serialise(m)
	if err != nil {
		t.Fatalf("Serialise error: %v", err)
	}
	got, err := Deserialise(wire)
	if err != nil {
		t.Fatalf("Deserialise error: %v", err)
	}
	srv, ok := got.Answers[0].Data.(RDATA_SRV)
	if !ok {
		t.Fatalf("expected RDATA_SRV, got %T", got.Answers[0].Data)
	}
	if !srv.Target.Equal(target) {
		t.Errorf("SRV target = %v, want %v", srv.Target, target)
	}
}

func TestDeserialiseRejectsForwardPointer(t *testing.T) {
	// A name at offset 12 pointing forward to offset 20 (not yet written)
	// must be rejected.
	msg := make([]byte, 12)
	msg = append(msg, 0xC0, 0x14) // pointer to offset 20, forward from offset 12
	msg = append(msg, 0, 0, 0, 0) // padding only; the pointer is rejected before its target is read
	binEncodeHeader(msg, 1, 0, 0, 0)

	_, err := Deserialise(msg)
	if err == nil {
		t.Fatal("expected error for forward-pointing compression pointer")
	}
}

func TestDeserialiseRejectsTruncatedHeader(t *testing.T) {
	_, err := Deserialise([]byte{0x00, 0x01, 0x02})
	if err == nil {
		t.Fatal("expected error for truncated header")
	}
}

func TestDeserialiseRejectsInvalidLabelLength(t *testing.T) {
	msg := make([]byte, 12)
	binEncodeHeader(msg, 1, 1, 0, 0)
	msg = append(msg, 0x40) // 64: reserved bit pattern (between label and pointer)
	_, err := Deserialise(msg)
	if err == nil {
		t.Fatal("expected error for invalid label length byte")
	}
}

// binEncodeHeader fills in the QDCOUNT/ANCOUNT/etc portion of a 12-byte
// header buffer for hand-built malformed-message tests.
func binEncodeHeader(msg []byte, qd, an, ns, ar uint16) {
	msg[4], msg[5] = byte(qd>>8), byte(qd)
	msg[6], msg[7] = byte(an>>8), byte(an)
	msg[8], msg[9] = byte(ns>>8), byte(ns)
	msg[10], msg[11] = byte(ar>>8), byte(ar)
}

func TestResponseMatchesRequest(t *testing.T) {
	q := mustName(t, "host.example.com.")
	req := NewQuery(q, protocol.TypeA, protocol.ClassIN, true)

	resp := &Message{
		Header: Header{
			ID:               req.Header.ID,
			IsResponse:       true,
			Opcode:           protocol.OpcodeQuery,
			RecursionDesired: true,
			Rcode:            protocol.RcodeNoError,
		},
		Questions: req.Questions,
	}
	if !ResponseMatchesRequest(req, resp) {
		t.Error("expected matching response to validate")
	}

	mismatched := *resp
	mismatched.Header.ID = req.Header.ID + 1
	if ResponseMatchesRequest(req, &mismatched) {
		t.Error("expected id mismatch to fail validation")
	}
}
