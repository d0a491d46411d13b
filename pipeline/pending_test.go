package pipeline

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustAddrPort(t *testing.T, s string) netip.AddrPort {
	t.Helper()

	ap, err := netip.ParseAddrPort(s)
	require.NoError(t, err)

	return ap
}

func TestPendingTablePutTakeRemove(t *testing.T) {
	pt := newPendingTable()
	ns := mustAddrPort(t, "127.0.0.1:53")

	pt.put(ns, 42, &pendingEntry{})
	assert.Equal(t, 1, pt.len())
	assert.True(t, pt.hasBucket(ns))

	_, ok := pt.take(ns, 41)
	assert.False(t, ok, "mismatched transaction ID must not match")

	e, ok := pt.take(ns, 42)
	assert.True(t, ok)
	assert.NotNil(t, e)
	assert.Equal(t, 0, pt.len())
	assert.False(t, pt.hasBucket(ns), "bucket is removed once empty")
}

func TestPendingTableUnexpectedSource(t *testing.T) {
	pt := newPendingTable()
	other := mustAddrPort(t, "127.0.0.1:53")

	assert.False(t, pt.hasBucket(other))

	_, ok := pt.take(other, 1)
	assert.False(t, ok)
}

func TestPendingTableDistinctNameServersIndependent(t *testing.T) {
	pt := newPendingTable()
	ns1 := mustAddrPort(t, "127.0.0.1:53")
	ns2 := mustAddrPort(t, "127.0.0.1:5353")

	pt.put(ns1, 1, &pendingEntry{})
	pt.put(ns2, 1, &pendingEntry{})

	assert.Equal(t, 2, pt.len())

	_, ok := pt.take(ns1, 1)
	assert.True(t, ok)
	assert.Equal(t, 1, pt.len())
	assert.True(t, pt.hasBucket(ns2))
}

func TestTaskQueueFIFO(t *testing.T) {
	q := &taskQueue{}

	q.push(task{nameServer: mustAddrPort(t, "127.0.0.1:1")})
	q.push(task{nameServer: mustAddrPort(t, "127.0.0.1:2")})

	assert.Equal(t, 2, q.len())

	first, ok := q.pop()
	assert.True(t, ok)
	assert.Equal(t, uint16(1), first.nameServer.Port())

	second, ok := q.pop()
	assert.True(t, ok)
	assert.Equal(t, uint16(2), second.nameServer.Port())

	_, ok = q.pop()
	assert.False(t, ok)
}
