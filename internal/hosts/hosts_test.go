package hosts

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

// S4 — Blocked host.
func TestToZoneBlockedHost(t *testing.T) {
	h := New()
	h.AddV4(mustName(t, "ads.example."), net.ParseIP("0.0.0.0"))

	z := h.ToZone()
	zs := zone.NewZones()
	if err := zs.InsertMerge(z); err != nil {
		t.Fatalf("InsertMerge: %v", err)
	}

	out := zs.Lookup(mustName(t, "ads.example."), protocol.TypeA)
	if out.Kind != zone.OutcomeAnswer {
		t.Fatalf("expected OutcomeAnswer, got %v", out.Kind)
	}
	if out.Authoritative {
		t.Error("hosts-derived zone must be non-authoritative")
	}
	if len(out.RRs) != 1 {
		t.Fatalf("expected 1 RR, got %d", len(out.RRs))
	}
	a, ok := out.RRs[0].Data.(message.RDATA_A)
	if !ok || !a.Addr.Equal(net.ParseIP("0.0.0.0")) {
		t.Errorf("expected 0.0.0.0 A record, got %+v", out.RRs[0].Data)
	}
	if out.RRs[0].TTL != TTL {
		t.Errorf("TTL = %d, want %d", out.RRs[0].TTL, TTL)
	}
}

func TestFromZoneLossyDropsWildcard(t *testing.T) {
	z := zone.New(name.Root)
	z.AddRecord(message.ResourceRecord{
		Name:  mustName(t, "*.example.com."),
		Class: protocol.ClassIN,
		TTL:   60,
		Data:  message.RDATA_A{Addr: net.ParseIP("1.2.3.4")},
	})
	z.AddRecord(message.ResourceRecord{
		Name:  mustName(t, "host.example.com."),
		Class: protocol.ClassIN,
		TTL:   60,
		Data:  message.RDATA_A{Addr: net.ParseIP("5.6.7.8")},
	})

	h, err := FromZone(z, Lossy)
	if err != nil {
		t.Fatalf("FromZone lossy: %v", err)
	}
	if len(h.v4["host.example.com."]) != 1 {
		t.Errorf("expected host.example.com. to survive lossy conversion")
	}
	if _, ok := h.v4["*.example.com."]; ok {
		t.Error("expected wildcard owner to be dropped")
	}
}

func TestFromZoneStrictRejectsWildcard(t *testing.T) {
	z := zone.New(name.Root)
	z.AddRecord(message.ResourceRecord{
		Name:  mustName(t, "*.example.com."),
		Class: protocol.ClassIN,
		TTL:   60,
		Data:  message.RDATA_A{Addr: net.ParseIP("1.2.3.4")},
	})

	if _, err := FromZone(z, Strict); err == nil {
		t.Fatal("expected strict conversion to fail on wildcard owner")
	}
}
