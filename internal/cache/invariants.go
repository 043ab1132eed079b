package cache

import (
	"fmt"
	"time"
)

// timeValue tracks a running minimum time.Time without needing a sentinel
// zero-value comparison (time.Time's zero value sorts before everything,
// which would otherwise corrupt the minimum).
type timeValue struct {
	t   time.Time
	set bool
}

func (v timeValue) updateMin(t time.Time) timeValue {
	if !v.set || t.Before(v.t) {
		return timeValue{t: t, set: true}
	}
	return v
}

// checkInvariants asserts the four structural invariants spec §4.5 names:
// key-set agreement between namespaces/access_pq/expiry_pq, per-namespace
// size consistency, global size consistency, and next_expiry correctness.
// It returns a description of every violation found (empty when the cache
// is consistent).
func checkInvariants(c *Cache) []string {
	var problems []string

	accessKeys := make(map[string]bool, len(*c.accessPQ))
	for _, ns := range *c.accessPQ {
		accessKeys[ns.key.String()] = true
	}
	expiryKeys := make(map[string]bool, len(*c.expiryPQ))
	for _, ns := range *c.expiryPQ {
		expiryKeys[ns.key.String()] = true
	}

	if len(accessKeys) != len(c.namespaces) {
		problems = append(problems, fmt.Sprintf("access_pq has %d keys, namespaces has %d", len(accessKeys), len(c.namespaces)))
	}
	if len(expiryKeys) != len(c.namespaces) {
		problems = append(problems, fmt.Sprintf("expiry_pq has %d keys, namespaces has %d", len(expiryKeys), len(c.namespaces)))
	}

	totalSize := 0
	for key, ns := range c.namespaces {
		if !accessKeys[key] {
			problems = append(problems, fmt.Sprintf("namespace %s missing from access_pq", key))
		}
		if !expiryKeys[key] {
			problems = append(problems, fmt.Sprintf("namespace %s missing from expiry_pq", key))
		}

		sumLen := 0
		var minExpiry timeValue
		for _, list := range ns.entries {
			sumLen += len(list)
			for _, e := range list {
				minExpiry = minExpiry.updateMin(e.expiresAt)
			}
		}
		if sumLen != ns.size {
			problems = append(problems, fmt.Sprintf("namespace %s size=%d but entries total %d", key, ns.size, sumLen))
		}
		if minExpiry.set && !minExpiry.t.Equal(ns.nextExpiry) {
			problems = append(problems, fmt.Sprintf("namespace %s next_expiry=%v but minimum entry expiry is %v", key, ns.nextExpiry, minExpiry.t))
		}
		totalSize += ns.size
	}

	if totalSize != c.currentSize {
		problems = append(problems, fmt.Sprintf("current_size=%d but sum of namespace sizes=%d", c.currentSize, totalSize))
	}

	return problems
}
