package resolver

import (
	"context"

	"github.com/kelanmoore/homedns/internal/message"
)

// resolveFunc is the shape shared by ResolveRecursive and ResolveForwarding,
// letting chaseCNAME recurse into whichever strategy invoked it.
type resolveFunc func(context.Context, *Context, message.Question) (ResolvedRecord, error)

// chaseCNAME implements the CNAME-chasing invariants shared by every
// strategy (spec §4.4, "CNAME chasing invariants"): push the current
// question, resolve the target, pop, and prepend the CNAME RR to
// whatever the sub-resolution returned. If the target turns out to be a
// duplicate question already on the stack, or the recursion limit is
// reached, answer with just what has been accumulated so far rather than
// surfacing the error to the caller.
func chaseCNAME(qctx context.Context, ctx *Context, q message.Question, local localResult, resolve resolveFunc) (ResolvedRecord, error) {
	sub := message.Question{Name: local.target, Type: q.Type, Class: q.Class}

	if ctx.IsDuplicateQuestion(sub) || ctx.AtRecursionLimit() {
		return ResolvedRecord{Kind: NonAuthoritative, RRs: local.rrs}, nil
	}

	ctx.PushQuestion(q)
	subResult, err := resolve(qctx, ctx, sub)
	ctx.PopQuestion()
	if err != nil {
		return ResolvedRecord{Kind: NonAuthoritative, RRs: local.rrs}, nil
	}

	// The CNAME RR always precedes the target's RRs (spec §4.4 "CNAME
	// chasing invariants"); prioritisingMerge gives it priority so nothing
	// the sub-resolution turned up can ever displace it.
	subResult.RRs = prioritisingMerge(local.rrs, subResult.RRs)
	return subResult, nil
}
