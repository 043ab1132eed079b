package resolver

import (
	"context"

	"github.com/kelanmoore/homedns/internal/message"
)

// ResolveForwarding implements spec §4.4.3: the same shape as recursion,
// but delegations are ignored and every upstream query targets a single
// configured forwarder with recursion desired.
func ResolveForwarding(parent context.Context, ctx *Context, q message.Question) (ResolvedRecord, error) {
	qctx, cancel := context.WithTimeout(parent, RecursiveTimeout)
	defer cancel()
	return resolveForwarding(qctx, ctx, q)
}

func resolveForwarding(qctx context.Context, ctx *Context, q message.Question) (ResolvedRecord, error) {
	local, err := resolveLocal(ctx, q)
	if err != nil {
		return ResolvedRecord{}, err
	}

	switch local.kind {
	case localTerminal:
		return local.record, nil
	case localCNAME:
		return chaseCNAME(qctx, ctx, q, local, resolveForwarding)
	}
	// localDelegation is ignored by the forwarder (spec §4.4.3); fall
	// through to querying the upstream regardless.

	resp, err := ctx.Querier.Query(qctx, ctx.Forward, q, true)
	if err != nil || resp == nil {
		ctx.Metrics.NameserverMisses++
		return ResolvedRecord{}, errDeadEnd
	}
	ctx.Metrics.NameserverHits++

	cacheAnswers(ctx, resp.Answers)
	cacheAnswers(ctx, resp.Additional)

	if isAuthoritativeNameError(resp) {
		if len(resp.Authority) > 0 {
			cacheAnswers(ctx, resp.Authority)
			soa := resp.Authority[0]
			return ResolvedRecord{Kind: AuthoritativeNameError, SOA: &soa}, nil
		}
		return ResolvedRecord{Kind: AuthoritativeNameError}, nil
	}

	if matching := answersFor(resp, q); len(matching) > 0 {
		return ResolvedRecord{Kind: NonAuthoritative, RRs: matching}, nil
	}
	if cnameRR, target, ok := firstCNAME(resp, q.Name); ok {
		partial := localResult{kind: localCNAME, target: target, rrs: []message.ResourceRecord{cnameRR}}
		return chaseCNAME(qctx, ctx, q, partial, resolveForwarding)
	}

	var soa *message.ResourceRecord
	if len(resp.Authority) > 0 {
		s := resp.Authority[0]
		soa = &s
	}
	return ResolvedRecord{Kind: NonAuthoritative, NegativeSOA: soa}, nil
}
