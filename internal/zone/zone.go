// Package zone implements the in-memory authoritative/non-authoritative
// zone data model and the apex-keyed lookup algorithm described in spec
// section 4.2: exact, wildcard, delegation, and NXDOMAIN resolution over a
// set of zones.
package zone

import (
	homeerrors "github.com/kelanmoore/homedns/internal/errors"
	"github.com/kelanmoore/homedns/internal/message"
	"github.com/kelanmoore/homedns/internal/name"
	"github.com/kelanmoore/homedns/internal/protocol"
)

// Zone is a set of resource records sharing a common apex. If soa is
// non-nil the zone is authoritative and every record's owner must be equal
// to or a subdomain of the apex; otherwise the zone is non-authoritative.
// New accepts any apex for a zone without an SOA, and such a zone's
// records are not checked against its apex.
type Zone struct {
	apex     name.Name
	soa      *message.ResourceRecord
	exact    map[string]map[protocol.RecordType][]message.ResourceRecord
	wildcard map[string]map[protocol.RecordType][]message.ResourceRecord
}

// New creates an empty zone rooted at apex.
func New(apex name.Name) *Zone {
	return &Zone{
		apex:     apex,
		exact:    make(map[string]map[protocol.RecordType][]message.ResourceRecord),
		wildcard: make(map[string]map[protocol.RecordType][]message.ResourceRecord),
	}
}

// Apex returns the zone's apex name.
func (z *Zone) Apex() name.Name { return z.apex }

// IsAuthoritative reports whether the zone has an SOA.
func (z *Zone) IsAuthoritative() bool { return z.soa != nil }

// SOA returns the zone's SOA record, if any.
func (z *Zone) SOA() (message.ResourceRecord, bool) {
	if z.soa == nil {
		return message.ResourceRecord{}, false
	}
	return *z.soa, true
}

// AddRecord inserts rr into the zone, collapsing an exact (name, type,
// rdata) duplicate by keeping the maximum TTL. Authoritative zones reject
// records whose owner falls outside the apex and reject a second SOA that
// differs from the first (an identical one collapses like any duplicate).
func (z *Zone) AddRecord(rr message.ResourceRecord) error {
	if z.soa != nil && !rr.Name.IsSubdomainOf(z.apex) {
		return &homeerrors.ValidationError{
			Field:   "owner",
			Value:   rr.Name.String(),
			Message: "record owner is not a subdomain of the zone apex",
		}
	}

	if _, ok := rr.Data.(message.RDATA_SOA); ok {
		if z.soa != nil && !soaEqual(*z.soa, rr) {
			return &homeerrors.ValidationError{
				Field:   "soa",
				Value:   rr.Name.String(),
				Message: "zone already has a conflicting SOA record",
			}
		}
		if z.soa == nil {
			// Records added before the SOA have not been checked against the apex yet.
			outside := !rr.Name.IsSubdomainOf(z.apex)
			z.ForEachRecord(func(e message.ResourceRecord, _ bool) bool {
				outside = outside || !e.Name.IsSubdomainOf(z.apex)
				return !outside
			})
			if outside {
				return &homeerrors.ValidationError{Field: "owner", Value: rr.Name.String(), Message: "zone has a record owner that is not a subdomain of the apex"}
			}
		}
		cp := rr
		z.soa = &cp
	}

	bucket := z.exact
	if rr.Name.IsWildcard() {
		bucket = z.wildcard
	}

	owner := rr.Name.String()
	byType, ok := bucket[owner]
	if !ok {
		byType = make(map[protocol.RecordType][]message.ResourceRecord)
		bucket[owner] = byType
	}

	rtype := rr.Data.Type()
	existing := byType[rtype]
	for i, e := range existing {
		if rdataEqual(e.Data, rr.Data) {
			if rr.TTL > e.TTL {
				existing[i].TTL = rr.TTL
			}
			return nil
		}
	}
	byType[rtype] = append(existing, rr)
	return nil
}

// Merge unifies z2's records into z, per insert_merge: duplicates collapse
// keeping the max TTL, and conflicting SOAs fail the merge.
func (z *Zone) Merge(z2 *Zone) error {
	if z.soa != nil && z2.soa != nil && !soaEqual(*z.soa, *z2.soa) {
		return &homeerrors.ValidationError{
			Field:   "soa",
			Value:   z2.apex.String(),
			Message: "cannot merge zones with conflicting SOA records",
		}
	}
	for _, bucket := range []map[string]map[protocol.RecordType][]message.ResourceRecord{z2.exact, z2.wildcard} {
		for _, byType := range bucket {
			for _, rrs := range byType {
				for _, rr := range rrs {
					if err := z.AddRecord(rr); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

// ForEachRecord visits every stored record (exact, then wildcard), stopping
// early if fn returns false.
func (z *Zone) ForEachRecord(fn func(rr message.ResourceRecord, isWildcard bool) bool) {
	for _, byType := range z.exact {
		for _, rrs := range byType {
			for _, rr := range rrs {
				if !fn(rr, false) {
					return
				}
			}
		}
	}
	for _, byType := range z.wildcard {
		for _, rrs := range byType {
			for _, rr := range rrs {
				if !fn(rr, true) {
					return
				}
			}
		}
	}
}

func soaEqual(a, b message.ResourceRecord) bool {
	sa, ok1 := a.Data.(message.RDATA_SOA)
	sb, ok2 := b.Data.(message.RDATA_SOA)
	if !ok1 || !ok2 {
		return false
	}
	return a.Name.Equal(b.Name) && sa.MName.Equal(sb.MName) && sa.RName.Equal(sb.RName) &&
		sa.Serial == sb.Serial && sa.Refresh == sb.Refresh && sa.Retry == sb.Retry &&
		sa.Expire == sb.Expire && sa.Minimum == sb.Minimum
}
