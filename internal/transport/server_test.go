package transport

import (
	"net"
	"testing"

	"github.com/kelanmoore/homedns/internal/cache"
	"github.com/kelanmoore/homedns/internal/message"
	dnsname "github.com/kelanmoore/homedns/internal/name"
	"github.com/kelanmoore/homedns/internal/protocol"
	"github.com/kelanmoore/homedns/internal/zone"
)

func mustName(t *testing.T, s string) dnsname.Name {
	t.Helper()
	n, err := dnsname.Parse(s)
	if err != nil {
		t.Fatalf("name.Parse(%q): %v", s, err)
	}
	return n
}

func exampleZones(t *testing.T) *zone.Zones {
	t.Helper()
	apex := mustName(t, "example.com.")
	z := zone.New(apex)
	if err := z.AddRecord(message.ResourceRecord{
		Name: apex, Class: protocol.ClassIN, TTL: 3600,
		Data: message.RDATA_SOA{MName: mustName(t, "ns.example.com."), RName: mustName(t, "hostmaster.example.com.")},
	}); err != nil {
		t.Fatalf("AddRecord SOA: %v", err)
	}
	if err := z.AddRecord(message.ResourceRecord{
		Name: mustName(t, "a.example.com."), Class: protocol.ClassIN, TTL: 300,
		Data: message.RDATA_A{Addr: net.ParseIP("1.1.1.1")},
	}); err != nil {
		t.Fatalf("AddRecord A: %v", err)
	}
	zs := zone.NewZones()
	if err := zs.InsertMerge(z); err != nil {
		t.Fatalf("InsertMerge: %v", err)
	}
	return zs
}

func newLocalTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := New(
		WithZones(exampleZones(t)),
		WithCache(cache.NewShared(512)),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

// S1 — local A hit in an authoritative zone.
func TestHandleLocalAHit(t *testing.T) {
	s := newLocalTestServer(t)
	req := message.NewQuery(mustName(t, "a.example.com."), protocol.TypeA, protocol.ClassIN, false)
	raw, err := message.Serialise(req)
	if err != nil {
		t.Fatalf("Serialise: %v", err)
	}

	respRaw := s.handle(nil, "udp", raw)
	resp, err := message.Deserialise(respRaw)
	if err != nil {
		t.Fatalf("Deserialise response: %v", err)
	}

	if resp.Header.Rcode != protocol.RcodeNoError {
		t.Errorf("rcode = %v, want NoError", resp.Header.Rcode)
	}
	if !resp.Header.IsAuthoritative {
		t.Error("expected AA=1")
	}
	if resp.Header.RecursionAvailable {
		t.Error("local-only server must not advertise recursion available")
	}
	if len(resp.Answers) != 1 {
		t.Fatalf("expected 1 answer, got %d", len(resp.Answers))
	}
	if len(resp.Authority) != 0 {
		t.Errorf("expected no authority records, got %d", len(resp.Authority))
	}
}

// S2 — NXDOMAIN with a single question.
func TestHandleLocalNXDOMAIN(t *testing.T) {
	s := newLocalTestServer(t)
	req := message.NewQuery(mustName(t, "missing.example.com."), protocol.TypeA, protocol.ClassIN, false)
	raw, _ := message.Serialise(req)

	resp, err := message.Deserialise(s.handle(nil, "udp", raw))
	if err != nil {
		t.Fatalf("Deserialise response: %v", err)
	}

	if resp.Header.Rcode != protocol.RcodeNameError {
		t.Errorf("rcode = %v, want NameError", resp.Header.Rcode)
	}
	if !resp.Header.IsAuthoritative {
		t.Error("expected AA=1 for an authoritative NXDOMAIN")
	}
	if len(resp.Authority) != 1 {
		t.Fatalf("expected SOA in authority, got %d records", len(resp.Authority))
	}
}

func TestHandleResponseFlagGetsFormatError(t *testing.T) {
	s := newLocalTestServer(t)
	req := message.NewQuery(mustName(t, "a.example.com."), protocol.TypeA, protocol.ClassIN, false)
	req.Header.IsResponse = true
	raw, _ := message.Serialise(req)

	resp, err := message.Deserialise(s.handle(nil, "udp", raw))
	if err != nil {
		t.Fatalf("Deserialise response: %v", err)
	}
	if resp.Header.Rcode != protocol.RcodeFormatError {
		t.Errorf("rcode = %v, want FormatError", resp.Header.Rcode)
	}
	if resp.Header.ID != req.Header.ID {
		t.Error("expected the id to be echoed")
	}
}

func TestHandleNonStandardOpcodeGetsNotImplemented(t *testing.T) {
	s := newLocalTestServer(t)
	req := message.NewQuery(mustName(t, "a.example.com."), protocol.TypeA, protocol.ClassIN, false)
	req.Header.Opcode = protocol.OpcodeStatus
	raw, _ := message.Serialise(req)

	resp, err := message.Deserialise(s.handle(nil, "udp", raw))
	if err != nil {
		t.Fatalf("Deserialise response: %v", err)
	}
	if resp.Header.Rcode != protocol.RcodeNotImplemented {
		t.Errorf("rcode = %v, want NotImplemented", resp.Header.Rcode)
	}
}

func TestHandleUnknownQTypeGetsRefused(t *testing.T) {
	s := newLocalTestServer(t)
	req := message.NewQuery(mustName(t, "a.example.com."), protocol.RecordType(9999), protocol.ClassIN, false)
	raw, _ := message.Serialise(req)

	resp, err := message.Deserialise(s.handle(nil, "udp", raw))
	if err != nil {
		t.Fatalf("Deserialise response: %v", err)
	}
	if resp.Header.Rcode != protocol.RcodeRefused {
		t.Errorf("rcode = %v, want Refused", resp.Header.Rcode)
	}
	if resp.Header.IsAuthoritative {
		t.Error("expected AA cleared on Refused")
	}
}

func TestHandleTooShortDatagramIsDropped(t *testing.T) {
	s := newLocalTestServer(t)
	if out := s.handle(nil, "udp", []byte{0x01}); out != nil {
		t.Errorf("expected nil response for a 1-byte datagram, got %d bytes", len(out))
	}
}

// S6 — truncation: serve a response over UDP that exceeds 512 octets.
func TestHandleUDPTruncation(t *testing.T) {
	apex := mustName(t, "big.example.")
	z := zone.New(apex)
	if err := z.AddRecord(message.ResourceRecord{
		Name: apex, Class: protocol.ClassIN, TTL: 3600,
		Data: message.RDATA_SOA{MName: mustName(t, "ns.big.example."), RName: mustName(t, "hostmaster.big.example.")},
	}); err != nil {
		t.Fatalf("AddRecord SOA: %v", err)
	}
	// TXT records with identical rdata collapse under AddRecord's dedup
	// rule, so the rdata is varied (26 distinct strings; the last 14 records
	// collapse into earlier ones) to build a genuinely oversized answer set.
	for i := 0; i < 40; i++ {
		z.AddRecord(message.ResourceRecord{
			Name: apex, Class: protocol.ClassIN, TTL: 300,
			Data: message.RDATA_TXT{Strings: []string{string(rune('a'+i%26)) + "-padding-to-exceed-the-512-octet-udp-payload-limit-by-quite-a-margin"}},
		})
	}
	zs := zone.NewZones()
	if err := zs.InsertMerge(z); err != nil {
		t.Fatalf("InsertMerge: %v", err)
	}

	s, err := New(WithZones(zs), WithCache(cache.NewShared(512)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	req := message.NewQuery(apex, protocol.TypeTXT, protocol.ClassIN, false)
	raw, _ := message.Serialise(req)
	fullResp := s.handle(nil, "tcp", raw)
	if len(fullResp) <= protocol.MaxUDPPayload {
		t.Skip("fixture did not grow the response past 512 octets; adjust record count")
	}

	udpOut := sendUDPBytes(fullResp)
	if len(udpOut) != protocol.MaxUDPPayload {
		t.Fatalf("expected a %d-octet datagram, got %d", protocol.MaxUDPPayload, len(udpOut))
	}
	if udpOut[2]&truncationBit == 0 {
		t.Error("expected TC bit set on the truncated UDP datagram")
	}

	tcpResp, err := message.Deserialise(fullResp)
	if err != nil {
		t.Fatalf("Deserialise full TCP response: %v", err)
	}
	if tcpResp.Header.IsTruncated {
		t.Error("the untruncated TCP response must not carry TC=1")
	}
}
