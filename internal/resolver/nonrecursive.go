package resolver

import (
	"net"

	"github.com/kelanmoore/homedns/internal/cache"
	homeerrors "github.com/kelanmoore/homedns/internal/errors"
	"github.com/kelanmoore/homedns/internal/message"
	dnsname "github.com/kelanmoore/homedns/internal/name"
	"github.com/kelanmoore/homedns/internal/protocol"
	"github.com/kelanmoore/homedns/internal/zone"
)

// localKind distinguishes the non-terminal outcomes of resolveLocal from
// the terminal ones, since a CNAME partial or a delegation must be handled
// specially by the recursive/forwarding callers (spec §4.4.1 step 2-4).
type localKind int

const (
	localNothing localKind = iota
	localTerminal
	localCNAME
	localDelegation
)

type localResult struct {
	kind localKind

	// localTerminal
	record ResolvedRecord

	// localCNAME
	target dnsname.Name

	// localCNAME / localDelegation
	rrs []message.ResourceRecord
}

// resolveLocal implements spec §4.4.1: non-recursive (local) resolution.
// It is the shared entry point every strategy calls first.
func resolveLocal(ctx *Context, q message.Question) (localResult, error) {
	if err := ctx.guard(q); err != nil {
		return localResult{}, err
	}

	// Step 2: zone lookup.
	zoneOutcome := ctx.Zones.Lookup(q.Name, q.Type)
	switch zoneOutcome.Kind {
	case zone.OutcomeAnswer:
		recordHitMetrics(ctx, q, zoneOutcome.RRs, zoneOutcome.Authoritative)
		if zoneOutcome.Authoritative {
			return localResult{kind: localTerminal, record: ResolvedRecord{Kind: Authoritative, RRs: zoneOutcome.RRs}}, nil
		}
		return localResult{kind: localTerminal, record: ResolvedRecord{Kind: NonAuthoritative, RRs: zoneOutcome.RRs}}, nil
	case zone.OutcomeCNAME:
		if zoneOutcome.Authoritative {
			ctx.Metrics.AuthoritativeHits++
		} else {
			ctx.Metrics.OverrideHits++
		}
		return localResult{kind: localCNAME, target: zoneOutcome.Target, rrs: zoneOutcome.RRs}, nil
	case zone.OutcomeNameError:
		ctx.Metrics.AuthoritativeHits++
		soa := zoneOutcome.SOA
		return localResult{kind: localTerminal, record: ResolvedRecord{Kind: AuthoritativeNameError, SOA: &soa}}, nil
	case zone.OutcomeDelegation:
		return localResult{kind: localDelegation, rrs: zoneOutcome.RRs}, nil
	}

	// Step 3: cache lookup. A CNAME at this name always takes priority
	// over any other cached type, so fetch across every inner key rather
	// than just qtype's — mirroring the zone lookup's own exact-match
	// step, which checks for a CNAME before anything else.
	now := ctx.now()
	all := ctx.Cache.GetAll(now, q.Name)
	var cnameEntry *cache.Entry
	var matching []cache.Entry
	for i := range all {
		e := all[i]
		if cn, ok := e.Value.Data.(message.RDATA_Name); ok && cn.RRType == protocol.TypeCNAME {
			cnameEntry = &e
			continue
		}
		if q.Type == protocol.TypeAny || e.Value.Data.Type() == q.Type {
			matching = append(matching, e)
		}
	}

	if cnameEntry != nil && q.Type != protocol.TypeCNAME && q.Type != protocol.TypeAny {
		cnTarget := cnameEntry.Value.Data.(message.RDATA_Name).Name
		cnameRR := message.ResourceRecord{Name: q.Name, Data: cnameEntry.Value.Data, Class: cnameEntry.Value.Class, TTL: ttlFromExpiry(now, cnameEntry.ExpiresAt)}
		ctx.Metrics.CacheHits++
		return localResult{kind: localCNAME, target: cnTarget, rrs: []message.ResourceRecord{cnameRR}}, nil
	}

	entries := matching
	if cnameEntry != nil && (q.Type == protocol.TypeCNAME || q.Type == protocol.TypeAny) {
		entries = append(entries, *cnameEntry)
	}
	if len(entries) > 0 {
		rrs := make([]message.ResourceRecord, 0, len(entries))
		for _, e := range entries {
			rrs = append(rrs, message.ResourceRecord{Name: q.Name, Data: e.Value.Data, Class: e.Value.Class, TTL: ttlFromExpiry(now, e.ExpiresAt)})
		}
		ctx.Metrics.CacheHits++
		return localResult{kind: localTerminal, record: ResolvedRecord{Kind: NonAuthoritative, RRs: rrs}}, nil
	}
	ctx.Metrics.CacheMisses++

	// Step 4: nothing found locally.
	return localResult{kind: localNothing}, nil
}

// recordHitMetrics implements the blocked/authoritative/override hit
// distinction of spec §4.4.1 and §4.6: an A/AAAA answer to a non-wildcard
// query whose rdata is the unspecified address counts as blocked; otherwise
// the hit is attributed to the authoritative-zone category when it came
// from a true authoritative (SOA-bearing) zone, or the override category
// when it came from a non-authoritative zone such as a hosts-derived one.
func recordHitMetrics(ctx *Context, q message.Question, rrs []message.ResourceRecord, authoritative bool) {
	if !q.Name.IsWildcard() {
		for _, rr := range rrs {
			if isUnspecifiedAddress(rr.Data) {
				ctx.Metrics.Blocked++
				return
			}
		}
	}
	if authoritative {
		ctx.Metrics.AuthoritativeHits++
	} else {
		ctx.Metrics.OverrideHits++
	}
}

func isUnspecifiedAddress(d message.RDATA) bool {
	switch v := d.(type) {
	case message.RDATA_A:
		return v.Addr.Equal(net.IPv4zero)
	case message.RDATA_AAAA:
		return v.Addr.Equal(net.IPv6unspecified)
	default:
		return false
	}
}

var errDeadEnd = &homeerrors.ResolutionError{Kind: homeerrors.ResolutionDeadEnd, Message: "no nameserver answered"}
