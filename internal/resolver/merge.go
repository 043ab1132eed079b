package resolver

import "github.com/kelanmoore/homedns/internal/message"

// prioritisingMerge implements spec §4.4's merge rule: everything in a is
// kept as-is; an RR from b is only added if a has no record with the same
// (name, type) already. This never mutates or removes anything from a
// (invariant #6).
func prioritisingMerge(a, b []message.ResourceRecord) []message.ResourceRecord {
	out := make([]message.ResourceRecord, len(a), len(a)+len(b))
	copy(out, a)

	present := make(map[string]bool, len(a))
	for _, rr := range a {
		present[rrKey(rr)] = true
	}
	for _, rr := range b {
		k := rrKey(rr)
		if present[k] {
			continue
		}
		present[k] = true
		out = append(out, rr)
	}
	return out
}

func rrKey(rr message.ResourceRecord) string {
	return rr.Name.String() + "/" + rr.Data.Type().String()
}
