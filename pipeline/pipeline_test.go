package pipeline

import (
	"context"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flier/asyncdns/timewheel"
)

// fakeNameServer is a minimal UDP server used to control exactly how and
// when a response (or no response at all) comes back to the Pipeline under
// test.
type fakeNameServer struct {
	conn *net.UDPConn
	addr netip.AddrPort
}

func newFakeNameServer(t *testing.T) *fakeNameServer {
	t.Helper()

	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	require.NoError(t, err)

	t.Cleanup(func() { _ = conn.Close() })

	addr := conn.LocalAddr().(*net.UDPAddr).AddrPort()

	return &fakeNameServer{conn: conn, addr: addr}
}

// respondA answers every inbound query with a single A record.
func (s *fakeNameServer) respondA(t *testing.T, ip string) {
	t.Helper()

	go func() {
		buf := make([]byte, 512)
		for {
			n, from, err := s.conn.ReadFromUDPAddrPort(buf)
			if err != nil {
				return
			}

			req := new(dns.Msg)
			if err = req.Unpack(buf[:n]); err != nil {
				continue
			}

			resp := new(dns.Msg)
			resp.SetReply(req)
			resp.Answer = append(resp.Answer, &dns.A{
				Hdr: dns.RR_Header{Name: req.Question[0].Name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 60},
				A:   net.ParseIP(ip),
			})

			wire, err := resp.Pack()
			if err != nil {
				return
			}

			_, _ = s.conn.WriteToUDPAddrPort(wire, from)
		}
	}()
}

func newTestPipeline(t *testing.T, nameServers []netip.AddrPort) *Pipeline {
	t.Helper()

	wheel := timewheel.New(&timewheel.Config{Slots: 360})
	t.Cleanup(wheel.Terminate)

	p, err := New(context.Background(), &Config{
		NameServers: nameServers,
		Wheel:       wheel,
	})
	require.NoError(t, err)

	require.NoError(t, p.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		_ = p.Shutdown(ctx)
	})

	return p
}

func newQuestion(qname string) *dns.Msg {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(qname), dns.TypeA)

	return msg
}

// TestPipelineFanOut matches spec.md §8 scenario 4: two configured name
// servers, one of which answers; the blocking caller gets the answer as
// soon as it arrives.
func TestPipelineFanOut(t *testing.T) {
	answering := newFakeNameServer(t)
	answering.respondA(t, "203.0.113.7")

	silent := newFakeNameServer(t)

	p := newTestPipeline(t, []netip.AddrPort{answering.addr, silent.addr})

	assert.Equal(t, 0, p.Len())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ns, resp, err := p.Query(ctx, newQuestion("example.com"), QueryOptions{Timeout: 5 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, answering.addr, ns)
	require.Len(t, resp.Answer, 1)

	a, ok := resp.Answer[0].(*dns.A)
	require.True(t, ok)
	assert.Equal(t, "203.0.113.7", a.A.String())
}

// TestPipelineTimeout matches spec.md §8 scenario 5: a name server that
// never answers causes a blocking query to return a *TimeoutError.
func TestPipelineTimeout(t *testing.T) {
	silent := newFakeNameServer(t)
	p := newTestPipeline(t, []netip.AddrPort{silent.addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, _, err := p.Query(ctx, newQuestion("example.com"), QueryOptions{Timeout: 2 * time.Second})
	require.Error(t, err)

	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, silent.addr, timeoutErr.NameServer)
}

// TestPipelineTimeoutCallback matches spec.md §8 scenario 5's non-blocking
// form: exactly one timeout callback fires.
func TestPipelineTimeoutCallback(t *testing.T) {
	silent := newFakeNameServer(t)
	p := newTestPipeline(t, []netip.AddrPort{silent.addr})

	calls := make(chan error, 4)
	p.Query(context.Background(), newQuestion("example.com"), QueryOptions{
		Timeout: 2 * time.Second,
		Callback: func(_ netip.AddrPort, _ *dns.Msg, err error) {
			calls <- err
		},
	})

	select {
	case err := <-calls:
		require.Error(t, err)

		var timeoutErr *TimeoutError
		require.ErrorAs(t, err, &timeoutErr)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout callback never fired")
	}

	select {
	case <-calls:
		t.Fatal("callback fired more than once")
	case <-time.After(200 * time.Millisecond):
	}
}

// TestPipelineQueuedThenPending matches the counting half of spec.md §8
// scenario 4: queued transitions to pending once the loop has written the
// tasks, even before any response arrives.
func TestPipelineQueuedThenPending(t *testing.T) {
	ns1 := newFakeNameServer(t)
	ns2 := newFakeNameServer(t)

	p := newTestPipeline(t, []netip.AddrPort{ns1.addr, ns2.addr})

	p.Query(context.Background(), newQuestion("example.com"), QueryOptions{
		Timeout:  5 * time.Second,
		Callback: func(netip.AddrPort, *dns.Msg, error) {},
	})

	assert.Eventually(t, func() bool {
		return p.pending.len() == 2 && p.queue.len() == 0
	}, time.Second, 10*time.Millisecond)
}
