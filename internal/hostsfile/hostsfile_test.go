package hostsfile

import (
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

func TestReadParsesIPv4WithMultipleNames(t *testing.T) {
	h, err := Read("1.2.3.4 one two three four\n")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	for _, owner := range []string{"one.", "two.", "three.", "four."} {
		out := zoneLookup(t, h, owner)
		if len(out) != 1 {
			t.Errorf("owner %q: expected 1 record, got %d", owner, len(out))
		}
	}
}

func TestReadSkipsComments(t *testing.T) {
	h, err := Read("# hark, a comment!\n1.2.3.4 one\n")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(zoneLookup(t, h, "one.")) != 1 {
		t.Fatal("expected one. to resolve")
	}
}

func TestReadIgnoresAddressOnlyLine(t *testing.T) {
	h, err := Read("1.2.3.4\n")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(zoneLookup(t, h, "1.2.3.4.")) != 0 {
		t.Error("expected an address-only line to contribute nothing")
	}
}

func TestReadParsesPlainIPv6(t *testing.T) {
	h, err := Read("::1 localhost\n")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	out := zoneLookupType(t, h, "localhost.", protocol.TypeAAAA)
	if len(out) != 1 {
		t.Fatalf("expected a plain IPv6 address to parse, got %d records", len(out))
	}
}

func TestReadSkipsIPv6ZoneIdentifier(t *testing.T) {
	h, err := Read("fe80::1%lo0 linklocal\n")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(zoneLookup(t, h, "linklocal.")) != 0 {
		t.Error("expected a zone-id-qualified IPv6 line to be skipped")
	}
}

func TestReadRejectsMalformedAddress(t *testing.T) {
	if _, err := Read("not-an-address somehost\n"); err == nil {
		t.Fatal("expected an error for an unparseable address")
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	original, err := Read("1.2.3.4 one two\n0.0.0.0 blocked\n::1 localhost\n")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	text := Write(original)
	again, err := Read(text)
	if err != nil {
		t.Fatalf("Read(Write(h)): %v\n--- text ---\n%s", err, text)
	}

	for _, owner := range []string{"one.", "two.", "blocked.", "localhost."} {
		want := zoneLookup(t, original, owner)
		got := zoneLookup(t, again, owner)
		if len(got) != len(want) {
			t.Errorf("owner %q: got %d records, want %d", owner, len(got), len(want))
		}
	}
}

func zoneLookup(t *testing.T, h interface{ ToZone() *zone.Zone }, owner string) []message.ResourceRecord {
	t.Helper()
	return zoneLookupType(t, h, owner, protocol.TypeA)
}

func zoneLookupType(t *testing.T, h interface{ ToZone() *zone.Zone }, owner string, qtype protocol.RecordType) []message.ResourceRecord {
	t.Helper()
	zs := zone.NewZones()
	if err := zs.InsertMerge(h.ToZone()); err != nil {
		t.Fatalf("InsertMerge: %v", err)
	}
	out := zs.Lookup(mustName(t, owner), qtype)
	if out.Kind != zone.OutcomeAnswer {
		return nil
	}
	return out.RRs
}
