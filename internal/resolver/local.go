package resolver

import (
	"context"

	"github.com/kelanmoore/homedns/internal/message"
)

// ResolveLocalOnly implements the non-recursive local resolution mode named
// in spec §1 as one of the three top-level strategies: it answers strictly
// from zones and the cache, chasing in-zone/in-cache CNAME chains, and never
// contacts an upstream nameserver. A delegation discovered along the way has
// nothing to consume it (there is no querier in this mode), so it falls
// through to a dead end, matching the "local-only server" deployment shape
// (a LAN/ad-blocking resolver with no recursion and no forwarder).
func ResolveLocalOnly(parent context.Context, ctx *Context, q message.Question) (ResolvedRecord, error) {
	return resolveLocalOnly(parent, ctx, q)
}

func resolveLocalOnly(qctx context.Context, ctx *Context, q message.Question) (ResolvedRecord, error) {
	local, err := resolveLocal(ctx, q)
	if err != nil {
		return ResolvedRecord{}, err
	}

	switch local.kind {
	case localTerminal:
		return local.record, nil
	case localCNAME:
		return chaseCNAME(qctx, ctx, q, local, resolveLocalOnly)
	}
	// localNothing or localDelegation: nothing more this mode can do.
	return ResolvedRecord{}, errDeadEnd
}
