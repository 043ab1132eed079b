package zonefile

import (
	"net"
	"testing"

	"github.com/kelanmoore/homedns/internal/message"
	"github.com/kelanmoore/homedns/internal/name"
	"github.com/kelanmoore/homedns/internal/protocol"
	"github.com/kelanmoore/homedns/internal/zone"
)

func mustName(t *testing.T, s string) name.Name {
	t.Helper()
	n, err := name.Parse(s)
	if err != nil {
		t.Fatalf("name.Parse(%q): %v", s, err)
	}
	return n
}

func buildExampleZone(t *testing.T) *zone.Zone {
	t.Helper()
	apex := mustName(t, "example.com.")
	z := zone.New(apex)

	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("AddRecord: %v", err)
		}
	}

	must(z.AddRecord(message.ResourceRecord{
		Name: apex, Class: protocol.ClassIN, TTL: 3600,
		Data: message.RDATA_SOA{
			MName: mustName(t, "ns1.example.com."), RName: mustName(t, "hostmaster.example.com."),
			Serial: 2026073101, Refresh: 3600, Retry: 900, Expire: 604800, Minimum: 3600,
		},
	}))
	must(z.AddRecord(message.ResourceRecord{
		Name: apex, Class: protocol.ClassIN, TTL: 3600,
		Data: message.RDATA_Name{RRType: protocol.TypeNS, Name: mustName(t, "ns1.example.com.")},
	}))
	must(z.AddRecord(message.ResourceRecord{
		Name: mustName(t, "www.example.com."), Class: protocol.ClassIN, TTL: 300,
		Data: message.RDATA_A{Addr: net.ParseIP("192.0.2.10").To4()},
	}))
	must(z.AddRecord(message.ResourceRecord{
		Name: mustName(t, "www.example.com."), Class: protocol.ClassIN, TTL: 300,
		Data: message.RDATA_AAAA{Addr: net.ParseIP("2001:db8::10")},
	}))
	must(z.AddRecord(message.ResourceRecord{
		Name: mustName(t, "mail.example.com."), Class: protocol.ClassIN, TTL: 300,
		Data: message.RDATA_MX{Preference: 10, Exchange: mustName(t, "mx.example.com.")},
	}))
	must(z.AddRecord(message.ResourceRecord{
		Name: mustName(t, "notes.example.com."), Class: protocol.ClassIN, TTL: 60,
		Data: message.RDATA_TXT{Strings: []string{`has "quotes" and spaces`, `a second string`}},
	}))
	must(z.AddRecord(message.ResourceRecord{
		Name: mustName(t, "*.example.com."), Class: protocol.ClassIN, TTL: 120,
		Data: message.RDATA_A{Addr: net.ParseIP("192.0.2.99").To4()},
	}))
	must(z.AddRecord(message.ResourceRecord{
		Name: mustName(t, "_sip._tcp.example.com."), Class: protocol.ClassIN, TTL: 300,
		Data: message.RDATA_SRV{Priority: 10, Weight: 20, Port: 5060, Target: mustName(t, "sip.example.com.")},
	}))

	return z
}

func TestWriteReadRoundTrip(t *testing.T) {
	z := buildExampleZone(t)
	text := Write(z)

	got, err := Read(text)
	if err != nil {
		t.Fatalf("Read: %v\n--- text ---\n%s", err, text)
	}

	if !got.Apex().Equal(z.Apex()) {
		t.Errorf("apex = %v, want %v", got.Apex(), z.Apex())
	}
	if got.IsAuthoritative() != z.IsAuthoritative() {
		t.Fatalf("IsAuthoritative = %v, want %v", got.IsAuthoritative(), z.IsAuthoritative())
	}

	wantSOA, _ := z.SOA()
	gotSOA, ok := got.SOA()
	if !ok {
		t.Fatal("expected a round-tripped SOA record")
	}
	wantData := wantSOA.Data.(message.RDATA_SOA)
	gotData := gotSOA.Data.(message.RDATA_SOA)
	if !gotData.MName.Equal(wantData.MName) || !gotData.RName.Equal(wantData.RName) ||
		gotData.Serial != wantData.Serial || gotData.Refresh != wantData.Refresh ||
		gotData.Retry != wantData.Retry || gotData.Expire != wantData.Expire || gotData.Minimum != wantData.Minimum {
		t.Errorf("SOA rdata = %+v, want %+v", gotData, wantData)
	}

	var wantCount, gotCount int
	z.ForEachRecord(func(rr message.ResourceRecord, isWildcard bool) bool { wantCount++; return true })
	got.ForEachRecord(func(rr message.ResourceRecord, isWildcard bool) bool { gotCount++; return true })
	if gotCount != wantCount {
		t.Errorf("record count = %d, want %d", gotCount, wantCount)
	}
}

func TestWriteProducesBINDStyleRelativeNames(t *testing.T) {
	z := buildExampleZone(t)
	text := Write(z)

	if !containsLine(text, "$ORIGIN example.com.") {
		t.Errorf("expected a $ORIGIN line, got:\n%s", text)
	}
	if !containsToken(text, "www 300 IN A 192.0.2.10") {
		t.Errorf("expected a relative owner name for www, got:\n%s", text)
	}
}

func TestReadAcceptsAbsoluteAndRelativeOwners(t *testing.T) {
	text := "$ORIGIN example.com.\n\n" +
		"@ IN SOA ns1 hostmaster 1 3600 900 604800 3600\n\n" +
		"www 300 IN A 192.0.2.10\n" +
		"other.example.com. 300 IN A 192.0.2.11\n"

	z, err := Read(text)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	outcome := lookupA(z, "www.example.com.")
	if len(outcome) != 1 {
		t.Fatalf("expected a record for www.example.com., got %d", len(outcome))
	}
	outcome = lookupA(z, "other.example.com.")
	if len(outcome) != 1 {
		t.Fatalf("expected a record for other.example.com., got %d", len(outcome))
	}
}

func TestReadRejectsMalformedTTL(t *testing.T) {
	text := "example.com. notanumber IN A 192.0.2.1\n"
	if _, err := Read(text); err == nil {
		t.Fatal("expected an error for a non-numeric ttl")
	}
}

func TestReadRejectsUnterminatedQuote(t *testing.T) {
	text := "a.example.com. 300 IN TXT \"unterminated\n"
	if _, err := Read(text); err == nil {
		t.Fatal("expected an error for an unterminated quoted string")
	}
}

func lookupA(z *zone.Zone, owner string) []message.ResourceRecord {
	var out []message.ResourceRecord
	z.ForEachRecord(func(rr message.ResourceRecord, isWildcard bool) bool {
		if rr.Name.String() == owner {
			out = append(out, rr)
		}
		return true
	})
	return out
}

func containsLine(text, line string) bool {
	for _, l := range splitLines(text) {
		if l == line {
			return true
		}
	}
	return false
}

func containsToken(text, substr string) bool {
	for _, l := range splitLines(text) {
		if len(l) >= len(substr) {
			for i := 0; i+len(substr) <= len(l); i++ {
				if l[i:i+len(substr)] == substr {
					return true
				}
			}
		}
	}
	return false
}

func splitLines(text string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			lines = append(lines, text[start:i])
			start = i + 1
		}
	}
	if start < len(text) {
		lines = append(lines, text[start:])
	}
	return lines
}
