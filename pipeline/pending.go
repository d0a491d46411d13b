package pipeline

import (
	"net/netip"
	"sync"
	"time"

	"github.com/flier/asyncdns/timewheel"
)

// pendingEntry is one in-flight request, keyed by (nameserver, transaction
// ID). This is the adopted resolution of spec.md §9's third open question:
// rather than linear-scanning every pending request for a nameserver and
// matching the first whose predicate is satisfied, each outbound packet
// carries its own [dns.Msg.Id], and the response table is indexed directly
// by that ID.
type pendingEntry struct {
	callback   ResultFunc
	nameServer netip.AddrPort
	timer      *timewheel.Timer
	sentAt     time.Time
}

// pendingTable correlates inbound datagrams with outstanding requests. It is
// indexed first by the nameserver that a request was sent to (a packet
// arriving from an address with no bucket is always unexpected), then by
// the 16-bit DNS transaction ID.
type pendingTable struct {
	mu      sync.Mutex
	buckets map[netip.AddrPort]map[uint16]*pendingEntry
}

func newPendingTable() *pendingTable {
	return &pendingTable{
		buckets: make(map[netip.AddrPort]map[uint16]*pendingEntry),
	}
}

// put registers a new pending entry. It panics if an entry already exists
// for (ns, id); the caller is responsible for assigning unique IDs via
// [dns.Id].
func (t *pendingTable) put(ns netip.AddrPort, id uint16, e *pendingEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	bucket, ok := t.buckets[ns]
	if !ok {
		bucket = make(map[uint16]*pendingEntry)
		t.buckets[ns] = bucket
	}

	bucket[id] = e
}

// take removes and returns the entry for (ns, id), reporting false if none
// exists — either because no request is outstanding for ns at all, or none
// with that transaction ID.
func (t *pendingTable) take(ns netip.AddrPort, id uint16) (*pendingEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	bucket, ok := t.buckets[ns]
	if !ok {
		return nil, false
	}

	e, ok := bucket[id]
	if !ok {
		return nil, false
	}

	delete(bucket, id)
	if len(bucket) == 0 {
		delete(t.buckets, ns)
	}

	return e, true
}

// hasBucket reports whether any request is outstanding for ns, used to
// distinguish [ErrUnexpectedSource] from [ErrNoMatch].
func (t *pendingTable) hasBucket(ns netip.AddrPort) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, ok := t.buckets[ns]

	return ok
}

// len reports the total number of outstanding requests across all
// nameservers.
func (t *pendingTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, bucket := range t.buckets {
		n += len(bucket)
	}

	return n
}
