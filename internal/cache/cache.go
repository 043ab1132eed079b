// Package cache implements the bounded, TTL-aware, namespace+inner-key
// indexed cache described in spec §4.5: an LRU priority queue and a
// next-expiry priority queue kept in lockstep with the namespace map.
package cache

import (
	"container/heap"
	"time"

	"github.com/kelanmoore/homedns/internal/message"
	"github.com/kelanmoore/homedns/internal/name"
	"github.com/kelanmoore/homedns/internal/protocol"
)

// DefaultDesiredSize is the soft cap on total cached entries.
const DefaultDesiredSize = 512

// Value is the cached payload for one (namespace-key, inner-key) slot: a
// typed rdata plus its class.
type Value struct {
	Data  message.RDATA
	Class protocol.RecordClass
}

// Entry is one cached (value, expiry) pair returned to callers.
type Entry struct {
	Value     Value
	ExpiresAt time.Time
}

type cacheEntry struct {
	value     Value
	expiresAt time.Time
}

// namespaceEntry is the per-name bucket: last_read/next_expiry/size plus
// its entries grouped by record type, and the two heap indices that let
// Cache reposition it in O(log n) when its priority changes.
type namespaceEntry struct {
	key        name.Name
	lastRead   time.Time
	nextExpiry time.Time
	size       int
	entries    map[protocol.RecordType][]cacheEntry

	accessIdx int
	expiryIdx int
}

// Cache is the bounded LRU+TTL cache. It is not safe for concurrent use by
// itself; see Shared for a mutex-guarded wrapper.
type Cache struct {
	namespaces  map[string]*namespaceEntry
	accessPQ    *accessHeap
	expiryPQ    *expiryHeap
	currentSize int
	desiredSize int
}

// New creates an empty cache with the given soft size cap.
func New(desiredSize int) *Cache {
	if desiredSize <= 0 {
		desiredSize = DefaultDesiredSize
	}
	c := &Cache{
		namespaces:  make(map[string]*namespaceEntry, desiredSize+32),
		accessPQ:    &accessHeap{},
		expiryPQ:    &expiryHeap{},
		desiredSize: desiredSize,
	}
	heap.Init(c.accessPQ)
	heap.Init(c.expiryPQ)
	return c
}

// CurrentSize returns the total number of cached entries.
func (c *Cache) CurrentSize() int { return c.currentSize }

// DesiredSize returns the configured soft cap.
func (c *Cache) DesiredSize() int { return c.desiredSize }

// Get returns copies of the entries for (nsKey, inKey) whose ExpiresAt is
// strictly after now, bumping the namespace's LRU priority. If any stored
// entry under (nsKey, inKey) had already expired, a full remove_expired pass
// runs first.
func (c *Cache) Get(now time.Time, nsKey name.Name, inKey protocol.RecordType) []Entry {
	key := nsKey.String()
	ns, ok := c.namespaces[key]
	if !ok {
		return nil
	}

	if hasExpired(ns.entries[inKey], now) {
		c.RemoveExpired(now)
		ns, ok = c.namespaces[key]
		if !ok {
			return nil
		}
	}

	ns.lastRead = now
	heap.Fix(c.accessPQ, ns.accessIdx)

	return toEntries(ns.entries[inKey], now)
}

// GetAll returns copies of every live entry in nsKey's namespace, across all
// inner keys, with the same LRU-bump and expiry-purge behaviour as Get.
func (c *Cache) GetAll(now time.Time, nsKey name.Name) []Entry {
	key := nsKey.String()
	ns, ok := c.namespaces[key]
	if !ok {
		return nil
	}

	expired := false
	for _, list := range ns.entries {
		if hasExpired(list, now) {
			expired = true
			break
		}
	}
	if expired {
		c.RemoveExpired(now)
		ns, ok = c.namespaces[key]
		if !ok {
			return nil
		}
	}

	ns.lastRead = now
	heap.Fix(c.accessPQ, ns.accessIdx)

	var out []Entry
	for _, list := range ns.entries {
		out = append(out, toEntries(list, now)...)
	}
	return out
}

func hasExpired(list []cacheEntry, now time.Time) bool {
	for _, e := range list {
		if !e.expiresAt.After(now) {
			return true
		}
	}
	return false
}

func toEntries(list []cacheEntry, now time.Time) []Entry {
	var out []Entry
	for _, e := range list {
		if e.expiresAt.After(now) {
			out = append(out, Entry{Value: e.value, ExpiresAt: e.expiresAt})
		}
	}
	return out
}

// Insert records value under (nsKey, inKey) with the given absolute expiry.
// If an entry with an equal value already exists there, its expiry is
// updated in place and current_size does not grow; otherwise a new slot is
// appended and current_size grows by one. The returned bool reports whether
// this insert grew current_size past desired_size, i.e. whether the cache is
// now over its soft cap and due for the next prune.
func (c *Cache) Insert(now time.Time, nsKey name.Name, inKey protocol.RecordType, value Value, expiresAt time.Time) bool {
	key := nsKey.String()
	ns, ok := c.namespaces[key]
	if !ok {
		ns = &namespaceEntry{
			key:        nsKey,
			lastRead:   now,
			nextExpiry: expiresAt,
			entries:    make(map[protocol.RecordType][]cacheEntry),
		}
		c.namespaces[key] = ns
		heap.Push(c.accessPQ, ns)
		heap.Push(c.expiryPQ, ns)
	}

	list := ns.entries[inKey]
	grew := true
	for i, e := range list {
		if valueEqual(e.value, value) {
			list[i].expiresAt = expiresAt
			grew = false
			break
		}
	}
	if grew {
		list = append(list, cacheEntry{value: value, expiresAt: expiresAt})
		ns.size++
		c.currentSize++
	}
	ns.entries[inKey] = list

	ns.lastRead = now
	if grew {
		if ns.nextExpiry.IsZero() || expiresAt.Before(ns.nextExpiry) {
			ns.nextExpiry = expiresAt
		}
	} else {
		// An in-place update may have moved the earliest expiry later, so
		// the minimum is recomputed over every entry in the namespace.
		ns.nextExpiry = time.Time{}
		for _, l := range ns.entries {
			for _, e := range l {
				if ns.nextExpiry.IsZero() || e.expiresAt.Before(ns.nextExpiry) {
					ns.nextExpiry = e.expiresAt
				}
			}
		}
	}

	heap.Fix(c.accessPQ, ns.accessIdx)
	heap.Fix(c.expiryPQ, ns.expiryIdx)

	return grew && c.currentSize > c.desiredSize
}

func valueEqual(a, b Value) bool {
	if a.Class != b.Class {
		return false
	}
	return rdataEqual(a.Data, b.Data)
}

// RemoveExpired pops namespaces in ascending next-expiry order, purging
// entries that have expired as of now, and returns the count of entries
// removed. It stops as soon as the earliest-expiry namespace is not yet due.
func (c *Cache) RemoveExpired(now time.Time) int {
	removed := 0
	for c.expiryPQ.Len() > 0 {
		ns := (*c.expiryPQ)[0]
		if ns.nextExpiry.After(now) {
			break
		}
		heap.Pop(c.expiryPQ)

		newNextExpiry := time.Time{}
		for rtype, list := range ns.entries {
			kept := list[:0]
			for _, e := range list {
				if e.expiresAt.After(now) {
					kept = append(kept, e)
					if newNextExpiry.IsZero() || e.expiresAt.Before(newNextExpiry) {
						newNextExpiry = e.expiresAt
					}
				} else {
					removed++
					ns.size--
					c.currentSize--
				}
			}
			if len(kept) == 0 {
				delete(ns.entries, rtype)
			} else {
				ns.entries[rtype] = kept
			}
		}

		if ns.size == 0 {
			delete(c.namespaces, ns.key.String())
			heap.Remove(c.accessPQ, ns.accessIdx)
			continue
		}

		ns.nextExpiry = newNextExpiry
		heap.Push(c.expiryPQ, ns)
	}
	return removed
}

// Prune enforces desired_size: if current_size already fits, it is a no-op;
// otherwise it removes expired entries first, then evicts whole namespaces
// in LRU order until back under the cap.
func (c *Cache) Prune(now time.Time) (expiredRemoved, namespacesEvicted int) {
	if c.currentSize <= c.desiredSize {
		return 0, 0
	}
	expiredRemoved = c.RemoveExpired(now)
	for c.currentSize > c.desiredSize && c.accessPQ.Len() > 0 {
		ns := heap.Pop(c.accessPQ).(*namespaceEntry)
		delete(c.namespaces, ns.key.String())
		heap.Remove(c.expiryPQ, ns.expiryIdx)
		c.currentSize -= ns.size
		namespacesEvicted++
	}
	return expiredRemoved, namespacesEvicted
}
