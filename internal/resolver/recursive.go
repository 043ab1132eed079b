package resolver

import (
	"context"
	"net"
	"time"

	"github.com/kelanmoore/homedns/internal/cache"
	homeerrors "github.com/kelanmoore/homedns/internal/errors"
	"github.com/kelanmoore/homedns/internal/message"
	dnsname "github.com/kelanmoore/homedns/internal/name"
	"github.com/kelanmoore/homedns/internal/protocol"
)

// nameserverSet is a candidate set of nameserver addresses and the number
// of labels they share with the queried name — the delegation's "match
// count" from spec §4.4.2 step 3, used to decide whether a later response
// offers a tighter delegation.
type nameserverSet struct {
	ips        []net.IP
	matchCount int
}

// ResolveRecursive implements spec §4.4.2: the non-recursive strategy,
// CNAME chasing across iterative queries, and delegation following from
// root hints, under a 60-second total timeout.
func ResolveRecursive(parent context.Context, ctx *Context, q message.Question) (ResolvedRecord, error) {
	qctx, cancel := context.WithTimeout(parent, RecursiveTimeout)
	defer cancel()
	return resolveRecursive(qctx, ctx, q)
}

func resolveRecursive(qctx context.Context, ctx *Context, q message.Question) (ResolvedRecord, error) {
	local, err := resolveLocal(ctx, q)
	if err != nil {
		return ResolvedRecord{}, err
	}

	switch local.kind {
	case localTerminal:
		return local.record, nil
	case localCNAME:
		return chaseCNAME(qctx, ctx, q, local, resolveRecursive)
	}

	var delegationRRs []message.ResourceRecord
	if local.kind == localDelegation {
		delegationRRs = local.rrs
	}
	servers := bestNameservers(ctx, q.Name, delegationRRs)
	if len(servers.ips) == 0 {
		servers = nameserverSet{ips: ctx.RootHints, matchCount: 0}
	}

	for {
		if qctx.Err() != nil {
			return ResolvedRecord{}, &homeerrors.ResolutionError{Kind: homeerrors.ResolutionTimeout, Message: "recursive resolution exceeded its deadline"}
		}

		answered := false
		for _, ip := range servers.ips {
			resp, err := ctx.Querier.Query(qctx, ip, q, false)
			if err != nil || resp == nil {
				ctx.Metrics.NameserverMisses++
				continue
			}
			ctx.Metrics.NameserverHits++

			if matching := answersFor(resp, q); len(matching) > 0 {
				cacheAnswers(ctx, matching)
				return ResolvedRecord{Kind: NonAuthoritative, RRs: matching}, nil
			}

			if cnameRR, target, ok := firstCNAME(resp, q.Name); ok {
				cacheAnswers(ctx, []message.ResourceRecord{cnameRR})
				partial := localResult{kind: localCNAME, target: target, rrs: []message.ResourceRecord{cnameRR}}
				return chaseCNAME(qctx, ctx, q, partial, resolveRecursive)
			}

			if delegation, ok := closerDelegation(resp, q.Name, servers.matchCount); ok {
				cacheAnswers(ctx, delegation.rrs)
				cacheAnswers(ctx, resp.Additional)
				servers = bestNameservers(ctx, q.Name, delegation.rrs)
				answered = true
				break
			}

			if isAuthoritativeNameError(resp) {
				if len(resp.Authority) > 0 {
					cacheAnswers(ctx, resp.Authority)
					soa := resp.Authority[0]
					return ResolvedRecord{Kind: AuthoritativeNameError, SOA: &soa}, nil
				}
				return ResolvedRecord{Kind: AuthoritativeNameError}, nil
			}
			// Otherwise: try the next nameserver.
		}
		if !answered {
			return ResolvedRecord{}, errDeadEnd
		}
	}
}

// bestNameservers implements spec §4.4.2 step 3 for a known delegation: it
// collects the cached glue addresses of delegationRRs' nameservers, with the
// delegation's match count. It returns an empty set when there is no
// delegation or no cached glue; resolveRecursive falls back to root hints
// only for the first set, not after following a referral.
func bestNameservers(ctx *Context, qname dnsname.Name, delegationRRs []message.ResourceRecord) nameserverSet {
	if len(delegationRRs) == 0 {
		return nameserverSet{}
	}
	owner := delegationRRs[0].Name
	matchCount := len(owner.Labels())

	var ips []net.IP
	now := ctx.now()
	for _, rr := range delegationRRs {
		ns, ok := rr.Data.(message.RDATA_Name)
		if !ok {
			continue
		}
		for _, glue := range ctx.Cache.GetAll(now, ns.Name) {
			switch v := glue.Value.Data.(type) {
			case message.RDATA_A:
				ips = append(ips, v.Addr)
			case message.RDATA_AAAA:
				ips = append(ips, v.Addr)
			}
		}
	}
	if len(ips) == 0 {
		return nameserverSet{}
	}
	return nameserverSet{ips: ips, matchCount: matchCount}
}

func answersFor(resp *message.Message, q message.Question) []message.ResourceRecord {
	var out []message.ResourceRecord
	for _, rr := range resp.Answers {
		if !rr.Name.Equal(q.Name) {
			continue
		}
		if q.Type == protocol.TypeAny || rr.Data.Type() == q.Type {
			out = append(out, rr)
		}
	}
	return out
}

func firstCNAME(resp *message.Message, owner dnsname.Name) (message.ResourceRecord, dnsname.Name, bool) {
	for _, rr := range resp.Answers {
		if rr.Name.Equal(owner) {
			if cn, ok := rr.Data.(message.RDATA_Name); ok && cn.RRType == protocol.TypeCNAME {
				return rr, cn.Name, true
			}
		}
	}
	return message.ResourceRecord{}, dnsname.Root, false
}

type delegationFound struct {
	rrs []message.ResourceRecord
}

// closerDelegation looks for an NS RRset in the authority section whose
// owner shares strictly more labels with qname than currentMatchCount.
func closerDelegation(resp *message.Message, qname dnsname.Name, currentMatchCount int) (delegationFound, bool) {
	byOwner := make(map[string][]message.ResourceRecord)
	for _, rr := range resp.Authority {
		if _, ok := rr.Data.(message.RDATA_Name); !ok {
			continue
		}
		if rr.Data.Type() != protocol.TypeNS {
			continue
		}
		byOwner[rr.Name.String()] = append(byOwner[rr.Name.String()], rr)
	}
	var best []message.ResourceRecord
	bestCount := currentMatchCount
	for _, rrs := range byOwner {
		owner := rrs[0].Name
		if !qname.IsSubdomainOf(owner) && !qname.Equal(owner) {
			continue
		}
		count := len(owner.Labels())
		if count > bestCount {
			bestCount = count
			best = rrs
		}
	}
	if best == nil {
		return delegationFound{}, false
	}
	return delegationFound{rrs: best}, true
}

func isAuthoritativeNameError(resp *message.Message) bool {
	return resp.Header.IsAuthoritative && resp.Header.Rcode == protocol.RcodeNameError
}

// cacheAnswers inserts every non-zero-TTL RR into the shared cache with
// expires_at = now + ttl, per spec §4.4.2 step 5. An insert that pushes the
// cache's current_size past its desired_size is folded into the request's
// cache_overflow_count (spec §4.6).
func cacheAnswers(ctx *Context, rrs []message.ResourceRecord) {
	now := ctx.now()
	for _, rr := range rrs {
		if rr.TTL == 0 {
			continue
		}
		expiresAt := now.Add(time.Duration(rr.TTL) * time.Second)
		if ctx.Cache.Insert(now, rr.Name, rr.Data.Type(), cache.Value{Data: rr.Data, Class: rr.Class}, expiresAt) {
			ctx.Metrics.CacheOverflows++
		}
	}
}
