// Package resolver implements the three resolution strategies of spec
// §4.4: non-recursive (local) lookup, recursive descent from root hints,
// and forwarding to a single upstream, sharing a common per-request
// Context, CNAME chasing, and prioritising_merge.
package resolver

import (
	"context"
	"net"
	"time"

	"github.com/kelanmoore/homedns/internal/cache"
	homeerrors "github.com/kelanmoore/homedns/internal/errors"
	"github.com/kelanmoore/homedns/internal/message"
	"github.com/kelanmoore/homedns/internal/metrics"
	"github.com/kelanmoore/homedns/internal/zone"
)

// DefaultRecursionLimit bounds both the question stack depth and the
// maximum CNAME chain length, per spec §4.4.
const DefaultRecursionLimit = 32

// RecursiveTimeout is the total deadline for one top-level recursive or
// forwarding resolution (spec §4.4.2, §5).
const RecursiveTimeout = 60 * time.Second

// Querier performs a single upstream query (spec §4.7). Implementations
// live in internal/transport; Context depends only on this interface so
// the two packages don't import each other.
type Querier interface {
	Query(ctx context.Context, addr net.IP, q message.Question, recursionDesired bool) (*message.Message, error)
}

// Context is the per-request resolution state: a bounded question stack
// guarding against CNAME loops and runaway recursion, a metrics
// accumulator, and references to the shared zones/cache/root-hints.
type Context struct {
	Zones     *zone.Zones
	Cache     *cache.Shared
	Querier   Querier
	RootHints []net.IP
	Forward   net.IP // non-nil only when this Context is used for forwarding mode

	RecursionLimit int
	Metrics        *metrics.Counters
	Now            func() time.Time

	stack []message.Question
}

// NewContext creates a Context with the default recursion limit and a
// fresh Counters accumulator.
func NewContext(zones *zone.Zones, c *cache.Shared, querier Querier, rootHints []net.IP) *Context {
	return &Context{
		Zones:          zones,
		Cache:          c,
		Querier:        querier,
		RootHints:      rootHints,
		RecursionLimit: DefaultRecursionLimit,
		Metrics:        &metrics.Counters{},
		Now:            time.Now,
	}
}

func (c *Context) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// AtRecursionLimit reports whether the question stack is full.
func (c *Context) AtRecursionLimit() bool {
	limit := c.RecursionLimit
	if limit <= 0 {
		limit = DefaultRecursionLimit
	}
	return len(c.stack) >= limit
}

// IsDuplicateQuestion reports whether q is already on the stack.
func (c *Context) IsDuplicateQuestion(q message.Question) bool {
	for _, s := range c.stack {
		if s.Name.Equal(q.Name) && s.Type == q.Type && s.Class == q.Class {
			return true
		}
	}
	return false
}

// PushQuestion pushes q onto the stack. Callers must check AtRecursionLimit
// first.
func (c *Context) PushQuestion(q message.Question) {
	c.stack = append(c.stack, q)
}

// PopQuestion removes the most recently pushed question.
func (c *Context) PopQuestion() {
	if len(c.stack) == 0 {
		return
	}
	c.stack = c.stack[:len(c.stack)-1]
}

// guard implements the shared recursion/loop guard used at the entry of
// non-recursive resolution and CNAME chasing.
func (c *Context) guard(q message.Question) error {
	if c.AtRecursionLimit() {
		return &homeerrors.ResolutionError{Kind: homeerrors.ResolutionRecursionLimit, Message: "recursion stack is full"}
	}
	if c.IsDuplicateQuestion(q) {
		return &homeerrors.ResolutionError{Kind: homeerrors.ResolutionDuplicateQuestion, Message: "question already on the resolution stack"}
	}
	return nil
}
