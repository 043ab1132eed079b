// Package hosts implements the name→address model described in spec §4.3:
// a simple mapping convertible, lossily, to and from a Zone.
package hosts

import (
	"net"

	homeerrors "github.com/kelanmoore/homedns/internal/errors"
	"github.com/kelanmoore/homedns/internal/message"
	"github.com/kelanmoore/homedns/internal/name"
	"github.com/kelanmoore/homedns/internal/protocol"
	"github.com/kelanmoore/homedns/internal/zone"
)

// TTL is the fixed TTL given to records synthesised from a hosts file.
const TTL = 5

// Hosts is a name→IPv4/IPv6 mapping.
type Hosts struct {
	v4 map[string][]net.IP
	v6 map[string][]net.IP
}

// New creates an empty Hosts mapping.
func New() *Hosts {
	return &Hosts{v4: make(map[string][]net.IP), v6: make(map[string][]net.IP)}
}

// AddV4 records an IPv4 address for n.
func (h *Hosts) AddV4(n name.Name, ip net.IP) {
	key := n.String()
	h.v4[key] = append(h.v4[key], ip)
}

// AddV6 records an IPv6 address for n.
func (h *Hosts) AddV6(n name.Name, ip net.IP) {
	key := n.String()
	h.v6[key] = append(h.v6[key], ip)
}

// ForEachV4 visits every IPv4 mapping, owner followed by address.
func (h *Hosts) ForEachV4(fn func(owner name.Name, ip net.IP)) {
	for owner, ips := range h.v4 {
		n, err := name.Parse(owner)
		if err != nil {
			continue
		}
		for _, ip := range ips {
			fn(n, ip)
		}
	}
}

// ForEachV6 visits every IPv6 mapping, owner followed by address.
func (h *Hosts) ForEachV6(fn func(owner name.Name, ip net.IP)) {
	for owner, ips := range h.v6 {
		n, err := name.Parse(owner)
		if err != nil {
			continue
		}
		for _, ip := range ips {
			fn(n, ip)
		}
	}
}

// ToZone converts the mapping into a non-authoritative Zone rooted at the
// root apex, with every record given the fixed hosts TTL.
func (h *Hosts) ToZone() *zone.Zone {
	z := zone.New(name.Root)
	for owner, ips := range h.v4 {
		n := name.FromLabels(splitOwner(owner))
		for _, ip := range ips {
			_ = z.AddRecord(message.ResourceRecord{
				Name:  n,
				Class: protocol.ClassIN,
				TTL:   TTL,
				Data:  message.RDATA_A{Addr: ip},
			})
		}
	}
	for owner, ips := range h.v6 {
		n := name.FromLabels(splitOwner(owner))
		for _, ip := range ips {
			_ = z.AddRecord(message.ResourceRecord{
				Name:  n,
				Class: protocol.ClassIN,
				TTL:   TTL,
				Data:  message.RDATA_AAAA{Addr: ip},
			})
		}
	}
	return z
}

// splitOwner turns a name.String() dotted form back into labels. Since
// owners here always come from name.Name.String() (lowercase, trailing
// dot), this is a direct re-parse.
func splitOwner(owner string) []string {
	n, err := name.Parse(owner)
	if err != nil {
		return nil
	}
	return n.Labels()
}

// FromZoneMode selects strict or lossy conversion in FromZone.
type FromZoneMode int

const (
	// Strict fails if the zone contains a wildcard owner or a non-A/AAAA
	// record.
	Strict FromZoneMode = iota
	// Lossy silently drops wildcards and non-A/AAAA records.
	Lossy
)

// FromZone builds a Hosts mapping from z's exact records. Only A and AAAA
// records are representable; Strict mode errors if anything else (a
// wildcard owner, or a non-address record) is present, Lossy mode drops it.
func FromZone(z *zone.Zone, mode FromZoneMode) (*Hosts, error) {
	h := New()
	// zone.Zone does not expose its internal maps directly; callers needing
	// FromZone construct it via ForEachRecord, which zone.Zone implements.
	var convErr error
	z.ForEachRecord(func(rr message.ResourceRecord, isWildcard bool) bool {
		if isWildcard {
			if mode == Strict {
				convErr = &homeerrors.ValidationError{
					Field:   "owner",
					Value:   rr.Name.String(),
					Message: "hosts files cannot represent wildcard owners",
				}
				return false
			}
			return true
		}
		switch d := rr.Data.(type) {
		case message.RDATA_A:
			h.AddV4(rr.Name, d.Addr)
		case message.RDATA_AAAA:
			h.AddV6(rr.Name, d.Addr)
		default:
			if mode == Strict {
				convErr = &homeerrors.ValidationError{
					Field:   "type",
					Value:   rr.Data.Type().String(),
					Message: "hosts files can only represent A/AAAA records",
				}
				return false
			}
		}
		return true
	})
	if convErr != nil {
		return nil, convErr
	}
	return h, nil
}
