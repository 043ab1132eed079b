package zone

import (
	"github.com/kelanmoore/homedns/internal/message"
	"github.com/kelanmoore/homedns/internal/name"
	"github.com/kelanmoore/homedns/internal/protocol"
)

// Zones is a collection of Zone values indexed by apex, supporting
// longest-apex-suffix lookup.
type Zones struct {
	byApex map[string]*Zone
}

// NewZones creates an empty zone set.
func NewZones() *Zones {
	return &Zones{byApex: make(map[string]*Zone)}
}

// InsertMerge adds z into the set. If a zone with the same apex already
// exists, their record sets are unified (see Zone.Merge); otherwise z is
// added directly.
func (zs *Zones) InsertMerge(z *Zone) error {
	key := z.apex.String()
	if existing, ok := zs.byApex[key]; ok {
		return existing.Merge(z)
	}
	zs.byApex[key] = z
	return nil
}

// findZone returns the zone whose apex is the longest suffix of n, if any.
func (zs *Zones) findZone(n name.Name) (*Zone, bool) {
	var best *Zone
	bestLen := -1
	for _, z := range zs.byApex {
		if !n.IsSubdomainOf(z.apex) {
			continue
		}
		l := len(z.apex.Labels())
		if l > bestLen {
			best = z
			bestLen = l
		}
	}
	return best, best != nil
}

// OutcomeKind selects what a zone Lookup found, and so which of Outcome's
// fields are meaningful (noted beside each field).
type OutcomeKind int

const (
	OutcomeNoZone OutcomeKind = iota
	OutcomeAnswer
	OutcomeCNAME
	OutcomeDelegation
	OutcomeNameError
)

type Outcome struct {
	Kind OutcomeKind

	// OutcomeAnswer / OutcomeCNAME / OutcomeDelegation
	RRs            []message.ResourceRecord
	Authoritative  bool

	// OutcomeCNAME
	Target name.Name

	// OutcomeNameError
	SOA message.ResourceRecord
}

// Lookup implements the 6-step algorithm of spec §4.2 for (qname, qtype)
// against this zone set.
func (zs *Zones) Lookup(qname name.Name, qtype protocol.RecordType) Outcome {
	z, ok := zs.findZone(qname)
	if !ok {
		return Outcome{Kind: OutcomeNoZone}
	}

	owner := qname.String()

	// Step 2: exact match.
	if byType, ok := z.exact[owner]; ok {
		if cnames, ok := byType[protocol.TypeCNAME]; ok && len(cnames) > 0 {
			cname := cnames[0].Data.(message.RDATA_Name)
			return Outcome{Kind: OutcomeCNAME, Target: cname.Name, RRs: []message.ResourceRecord{cnames[0]}, Authoritative: z.IsAuthoritative()}
		}

		var rrs []message.ResourceRecord
		if qtype == protocol.TypeAny {
			for _, list := range byType {
				rrs = append(rrs, list...)
			}
		} else {
			rrs = append(rrs, byType[qtype]...)
		}
		// NODATA: owner exists (byType non-empty) even if rrs is empty for
		// this specific qtype.
		return Outcome{Kind: OutcomeAnswer, RRs: rrs, Authoritative: z.IsAuthoritative()}
	}

	// Step 3: delegation via a non-apex ancestor with NS records.
	if delegation, ok := findDelegation(z, qname); ok {
		return Outcome{Kind: OutcomeDelegation, RRs: delegation, Authoritative: false}
	}

	// Step 4: wildcard synthesis.
	if rrs, ok := findWildcard(z, qname, qtype); ok {
		return Outcome{Kind: OutcomeAnswer, RRs: rrs, Authoritative: z.IsAuthoritative()}
	}

	// Step 5: authoritative NXDOMAIN.
	if z.IsAuthoritative() {
		soa, _ := z.SOA()
		return Outcome{Kind: OutcomeNameError, SOA: soa, Authoritative: true}
	}

	// Step 6: no zone (the zone matched by apex exists, but is
	// non-authoritative and has nothing to say about this name).
	return Outcome{Kind: OutcomeNoZone}
}

// findDelegation walks from qname's parent up to (but not including) the
// zone apex, returning the NS RRset of the closest ancestor that has one.
func findDelegation(z *Zone, qname name.Name) ([]message.ResourceRecord, bool) {
	cur, ok := qname.Parent()
	for ok && !cur.Equal(z.apex) {
		if byType, exists := z.exact[cur.String()]; exists {
			if ns, hasNS := byType[protocol.TypeNS]; hasNS && len(ns) > 0 {
				return ns, true
			}
		}
		cur, ok = cur.Parent()
	}
	return nil, false
}

// findWildcard locates a wildcard owner whose parent is an ancestor of
// qname (inclusive of the apex) with no closer exact node between them,
// and synthesises records from it for qtype.
func findWildcard(z *Zone, qname name.Name, qtype protocol.RecordType) ([]message.ResourceRecord, bool) {
	cur, ok := qname.Parent()
	for {
		wildcardOwner := cur.WithLabelPrepended("*")
		if byType, exists := z.wildcard[wildcardOwner.String()]; exists {
			var rrs []message.ResourceRecord
			if qtype == protocol.TypeAny {
				for _, list := range byType {
					rrs = append(rrs, synthesise(list, qname)...)
				}
			} else {
				rrs = append(rrs, synthesise(byType[qtype], qname)...)
			}
			return rrs, true
		}
		if !ok || cur.Equal(z.apex) {
			break
		}
		// stop if a closer exact node exists between qname and cur
		if _, exists := z.exact[cur.String()]; exists {
			break
		}
		cur, ok = cur.Parent()
	}
	return nil, false
}

func synthesise(rrs []message.ResourceRecord, qname name.Name) []message.ResourceRecord {
	out := make([]message.ResourceRecord, len(rrs))
	for i, rr := range rrs {
		cp := rr
		cp.Name = qname
		out[i] = cp
	}
	return out
}
