package cache

// accessHeap orders namespaces by ascending last_read (the least-recently
// read namespace is at the head), giving O(log n) LRU eviction.
type accessHeap []*namespaceEntry

func (h accessHeap) Len() int { return len(h) }
func (h accessHeap) Less(i, j int) bool {
	return h[i].lastRead.Before(h[j].lastRead)
}
func (h accessHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].accessIdx = i
	h[j].accessIdx = j
}
func (h *accessHeap) Push(x interface{}) {
	ns := x.(*namespaceEntry)
	ns.accessIdx = len(*h)
	*h = append(*h, ns)
}
func (h *accessHeap) Pop() interface{} {
	old := *h
	n := len(old)
	ns := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	ns.accessIdx = -1
	return ns
}

// expiryHeap orders namespaces by ascending next_expiry (the soonest to
// expire is at the head).
type expiryHeap []*namespaceEntry

func (h expiryHeap) Len() int { return len(h) }
func (h expiryHeap) Less(i, j int) bool {
	return h[i].nextExpiry.Before(h[j].nextExpiry)
}
func (h expiryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].expiryIdx = i
	h[j].expiryIdx = j
}
func (h *expiryHeap) Push(x interface{}) {
	ns := x.(*namespaceEntry)
	ns.expiryIdx = len(*h)
	*h = append(*h, ns)
}
func (h *expiryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	ns := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	ns.expiryIdx = -1
	return ns
}
