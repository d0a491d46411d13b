package pipeline

import (
	"net/netip"
	"sync"
	"time"

	"github.com/miekg/dns"
)

// task is one (request, timeout, callback, nameserver) tuple awaiting a
// write, per spec.md §3's TaskQueue.
type task struct {
	request    *dns.Msg
	timeout    time.Duration
	callback   ResultFunc
	nameServer netip.AddrPort
}

// taskQueue is an unbounded FIFO of [task]s. The producer is [Pipeline.Query];
// the consumer is the event loop's writable handler, which pops exactly one
// task per pass, per spec.md §4.5.
type taskQueue struct {
	mu    sync.Mutex
	items []task
}

// push enqueues t.
func (q *taskQueue) push(t task) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = append(q.items, t)
}

// pop dequeues the oldest task, reporting false if the queue is empty.
func (q *taskQueue) pop() (t task, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return task{}, false
	}

	t = q.items[0]
	q.items = q.items[1:]

	return t, true
}

// len reports the number of queued tasks.
func (q *taskQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}
