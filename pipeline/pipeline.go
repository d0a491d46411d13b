package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/service"
	"github.com/miekg/dns"

	"github.com/flier/asyncdns/internal/errcoll"
	"github.com/flier/asyncdns/internal/optslog"
	"github.com/flier/asyncdns/latch"
	"github.com/flier/asyncdns/socks5"
	"github.com/flier/asyncdns/timewheel"
)

// DefaultTimeout is the per-(request, nameserver) deadline used when neither
// [Config.Timeout] nor a [QueryOptions.Timeout] is set.
const DefaultTimeout = 30 * time.Second

// pollInterval bounds how long the event loop blocks on a read when the
// task queue is empty, mirroring the 1 s poll timeout of
// asyncore.loop(timeout=1, use_poll=True) in the original implementation.
const pollInterval = 1 * time.Second

// maxUDPSize is large enough for any DNS-over-UDP datagram, including
// EDNS0-sized responses, plus the largest SOCKS5 UDP request header.
const maxUDPSize = 65535 + 262

// ResultFunc is the callback surface for a query: it is invoked exactly
// once per (request, nameserver) pair with either a response or a non-nil
// error, per spec.md §6.
type ResultFunc func(nameServer netip.AddrPort, resp *dns.Msg, err error)

// Result is a tagged-union query outcome, used by callers that prefer a
// single value to a three-argument callback.
type Result struct {
	NameServer netip.AddrPort
	Response   *dns.Msg
	Err        error
}

// Config configures a [Pipeline].
type Config struct {
	// Timeout is the default per-(request, nameserver) deadline used when a
	// [Pipeline.Query] call doesn't specify its own. Zero means
	// [DefaultTimeout].
	Timeout time.Duration

	// NameServers is the default target list used when a [Pipeline.Query]
	// call doesn't specify its own. If empty, the host's configured
	// resolvers are used.
	NameServers []netip.AddrPort

	// Port overrides the port used with the host's configured resolvers
	// when NameServers is empty. Zero means 53. Has no effect when
	// NameServers is set explicitly, since those already carry a port.
	Port uint16

	// Wheel schedules per-(request, nameserver) timeouts. Must be non-nil.
	Wheel *timewheel.Wheel

	// Proxy, if non-nil, routes every outbound and inbound datagram through
	// a SOCKS5 UDP-ASSOCIATE relay instead of talking to name servers
	// directly.
	Proxy *socks5.Config

	// Logger is used for diagnostics. If nil, [slog.Default] is used.
	Logger *slog.Logger

	// Metrics, if non-nil, receives query lifecycle events.
	Metrics MetricsListener

	// ErrColl, if non-nil, additionally receives send-time failures and
	// inbound packets that fail to parse.  Packets dropped for an unexpected
	// source or an unmatched transaction ID, and socket read errors, are
	// only logged and are not passed to ErrColl.
	ErrColl errcoll.Interface
}

// Pipeline is a single-socket UDP DNS query multiplexer. It fans one
// question out to N name servers, correlates inbound datagrams to
// outstanding requests by (nameserver, transaction ID), and fires
// per-(request, nameserver) timeouts via a [timewheel.Wheel]. A Pipeline
// owns exactly one goroutine, its event loop; construct one with [New] and
// start it with [Pipeline.Start].
type Pipeline struct {
	logger  *slog.Logger
	wheel   *timewheel.Wheel
	metrics MetricsListener
	errColl errcoll.Interface

	transport   udpTransport
	proxyClient *socks5.Client

	queue   *taskQueue
	pending *pendingTable

	defaultTimeout     time.Duration
	defaultNameServers []netip.AddrPort

	done     chan struct{}
	loopDone chan struct{}
}

// type check
var _ service.Interface = (*Pipeline)(nil)

// New opens a UDP socket (optionally behind a SOCKS5 relay per c.Proxy) and
// returns a ready-to-[Pipeline.Start] Pipeline. ctx governs only the
// initial socket/proxy setup.
func New(ctx context.Context, c *Config) (p *Pipeline, err error) {
	if c.Wheel == nil {
		return nil, errors.Error("pipeline: Config.Wheel must not be nil")
	}

	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	metrics := c.Metrics
	if metrics == nil {
		metrics = noopMetricsListener{}
	}

	errColl := c.ErrColl
	if errColl == nil {
		errColl = errcoll.NoopErrorCollector{}
	}

	nameServers, err := resolveDefaultNameServers(c)
	if err != nil {
		return nil, fmt.Errorf("pipeline: resolving default name servers: %w", err)
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	transport, proxyClient, err := newTransport(ctx, c.Proxy)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		logger:             logger,
		wheel:              c.Wheel,
		metrics:            metrics,
		errColl:            errColl,
		transport:          transport,
		proxyClient:        proxyClient,
		queue:              &taskQueue{},
		pending:            newPendingTable(),
		defaultTimeout:     timeout,
		defaultNameServers: nameServers,
		done:               make(chan struct{}),
		loopDone:           make(chan struct{}),
	}, nil
}

// resolveDefaultNameServers applies c.NameServers/c.Port over the host's
// resolver configuration, per spec.md §9 ("read once and cached").
func resolveDefaultNameServers(c *Config) ([]netip.AddrPort, error) {
	if len(c.NameServers) > 0 {
		return c.NameServers, nil
	}

	servers, err := systemNameServers()
	if err != nil {
		return nil, err
	}

	if c.Port != 0 && c.Port != 53 {
		overridden := make([]netip.AddrPort, len(servers))
		for i, s := range servers {
			overridden[i] = netip.AddrPortFrom(s.Addr(), c.Port)
		}

		return overridden, nil
	}

	return servers, nil
}

// newTransport opens the UDP socket and, if proxyCfg is non-nil, tunnels it
// through a SOCKS5 UDP-ASSOCIATE relay.
func newTransport(ctx context.Context, proxyCfg *socks5.Config) (udpTransport, *socks5.Client, error) {
	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return nil, nil, fmt.Errorf("pipeline: opening udp socket: %w", err)
	}

	if proxyCfg == nil {
		return &plainTransport{conn: conn}, nil, nil
	}

	client, err := socks5.Dial(ctx, proxyCfg)
	if err != nil {
		_ = conn.Close()

		return nil, nil, fmt.Errorf("pipeline: dialing socks5 proxy: %w", err)
	}

	return &socksTransport{wrapped: client.Wrap(conn), conn: conn}, client, nil
}

// Start implements the [service.Interface] interface for *Pipeline. err is
// always nil.
func (p *Pipeline) Start(_ context.Context) (err error) {
	go p.loop()

	return nil
}

// Shutdown implements the [service.Interface] interface for *Pipeline. It
// closes the socket (and, if proxied, the SOCKS5 control connection),
// which unblocks the event loop, then waits for it to exit or ctx to
// expire.
func (p *Pipeline) Shutdown(ctx context.Context) (err error) {
	close(p.done)

	_ = p.transport.close()
	if p.proxyClient != nil {
		_ = p.proxyClient.Close()
	}

	select {
	case <-p.loopDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len reports the total number of tasks currently queued or pending,
// intended for tests and diagnostics (spec.md §8 scenario 4).
func (p *Pipeline) Len() int {
	return p.queue.len() + p.pending.len()
}

// QueryOptions overrides a [Pipeline]'s defaults for a single [Pipeline.Query]
// call.
type QueryOptions struct {
	// Timeout overrides [Config.Timeout] for this query. Zero means "use
	// the pipeline default."
	Timeout time.Duration

	// NameServers overrides [Config.NameServers] for this query. Nil means
	// "use the pipeline default."
	NameServers []netip.AddrPort

	// Callback, if non-nil, switches Query to the non-blocking calling
	// convention: Query enqueues one task per target and returns
	// immediately, and callback fires exactly once per nameserver.
	Callback ResultFunc
}

// Query sends request to every target name server and either blocks for the
// first successful response (if opts.Callback is nil) or returns
// immediately after enqueuing (if opts.Callback is set), per spec.md §4.5.
//
// In blocking mode, Query returns the first successful (nameserver,
// response) pair; otherwise it returns the last error recorded, or ctx.Err()
// if ctx expired before any error was recorded.
func (p *Pipeline) Query(
	ctx context.Context,
	request *dns.Msg,
	opts QueryOptions,
) (nameServer netip.AddrPort, resp *dns.Msg, err error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = p.defaultTimeout
	}

	nameServers := opts.NameServers
	if len(nameServers) == 0 {
		nameServers = p.defaultNameServers
	}

	if opts.Callback != nil {
		p.enqueue(request, timeout, nameServers, opts.Callback)

		return netip.AddrPort{}, nil, nil
	}

	collector := latch.NewCollector[netip.AddrPort, *dns.Msg](len(nameServers), true)

	p.enqueue(request, timeout, nameServers, func(ns netip.AddrPort, resp *dns.Msg, err error) {
		if err != nil {
			collector.RecordError(err)

			return
		}

		collector.Record(ns, resp)
	})

	collector.Wait(ctx)

	if !collector.Succeeded() {
		err = collector.LastError()
		if err == nil {
			err = ctx.Err()
		}

		return netip.AddrPort{}, nil, err
	}

	for ns, responses := range collector.Results() {
		return ns, responses[0], nil
	}

	// Unreachable: Succeeded is only true after at least one Record call.
	return netip.AddrPort{}, nil, errors.Error("pipeline: no result recorded")
}

// enqueue pushes one task per target name server, cloning request and
// assigning each a fresh transaction ID so the pending table can key
// purely on (nameserver, id), per spec.md §9's adopted resolution of the
// transaction-ID-collision open question.
func (p *Pipeline) enqueue(request *dns.Msg, timeout time.Duration, nameServers []netip.AddrPort, cb ResultFunc) {
	for _, ns := range nameServers {
		msg := request.Copy()
		msg.Id = dns.Id()

		p.queue.push(task{
			request:    msg,
			timeout:    timeout,
			callback:   cb,
			nameServer: ns,
		})

		p.metrics.OnQueued()
	}
}

// loop is the Pipeline's single I/O goroutine. It alternates a non-blocking
// drain of the task queue ("writable") with a read of the socket
// ("readable"), using a zero deadline when work is queued and a 1 s
// deadline otherwise, per spec.md §4.5 and §5.
func (p *Pipeline) loop() {
	ctx := context.Background()
	defer slogutil.RecoverAndLog(ctx, p.logger)
	defer close(p.loopDone)

	buf := make([]byte, maxUDPSize)

	for {
		select {
		case <-p.done:
			return
		default:
		}

		p.drainOneTask()
		p.readOnce(buf)
	}
}

// drainOneTask pops and sends at most one task, matching spec.md §4.5's
// "dequeues one task" writable-handler semantics: the loop revisits the
// queue every pass, so a backlog still drains at one task per iteration
// rather than stalling the read side.
func (p *Pipeline) drainOneTask() {
	t, ok := p.queue.pop()
	if !ok {
		return
	}

	wire, err := t.request.Pack()
	if err != nil {
		p.deliverError(t, fmt.Errorf("pipeline: packing request: %w", err))

		return
	}

	_, err = p.transport.sendTo(wire, t.nameServer)
	if err != nil {
		// Go's net package hides EWOULDBLOCK behind the runtime netpoller:
		// WriteToUDP only returns once the datagram is sent or a genuine
		// failure occurs, so the "retry on would-block" branch of the
		// original asyncore writable handler has no analogue here — every
		// error reaching this point is a real send failure.
		p.deliverError(t, &SendFailureError{NameServer: t.nameServer, Err: err})

		return
	}

	p.metrics.OnSent()

	id := t.request.Id
	nameServer, timeout, callback := t.nameServer, t.timeout, t.callback

	timer := p.wheel.Schedule(func() {
		p.onTimeout(nameServer, id)
	}, timewheel.After(timeout))

	p.pending.put(nameServer, id, &pendingEntry{
		callback:   callback,
		nameServer: nameServer,
		timer:      timer,
		sentAt:     time.Now(),
	})
}

// deliverError reports a send-time failure to errColl and the task's
// callback, per spec.md §9's adopted resolution of the send-failure open
// question (the Python original drops this silently).
func (p *Pipeline) deliverError(t task, err error) {
	p.metrics.OnDropped()
	errcoll.Collect(context.Background(), p.errColl, p.logger, "pipeline: send failed", err)
	p.invokeCallback(t.callback, t.nameServer, nil, err)
}

// onTimeout is invoked by the timewheel when a pending request's deadline
// elapses. If the entry is gone — because the matching response already
// arrived and was processed first — this is a no-op, per spec.md §4.5's
// race-resolution rule ("what must never happen is a double-callback").
func (p *Pipeline) onTimeout(ns netip.AddrPort, id uint16) {
	entry, ok := p.pending.take(ns, id)
	if !ok {
		return
	}

	p.metrics.OnTimedOut()
	p.invokeCallback(entry.callback, ns, nil, &TimeoutError{
		NameServer: ns,
		Timeout:    time.Since(entry.sentAt),
	})
}

// readOnce attempts one read from the transport. If the queue has work
// waiting it polls non-blockingly; otherwise it blocks for up to
// pollInterval, matching the original asyncore loop's 1 s poll timeout.
func (p *Pipeline) readOnce(buf []byte) {
	deadline := time.Now().Add(pollInterval)
	if p.queue.len() > 0 {
		deadline = time.Now()
	}

	_ = p.transport.file().SetReadDeadline(deadline)

	data, origin, err := p.transport.receiveFrom(buf)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return
		}

		if errors.Is(err, net.ErrClosed) {
			return
		}

		optslog.Trace1(context.Background(), p.logger, "pipeline: read error", "error", err)

		return
	}

	p.handleInbound(origin, data)
}

// handleInbound parses one inbound datagram and correlates it to a pending
// request, per spec.md §4.5's readable-handler semantics.
func (p *Pipeline) handleInbound(origin netip.AddrPort, data []byte) {
	ctx := context.Background()

	msg := new(dns.Msg)
	if err := msg.Unpack(data); err != nil {
		p.metrics.OnDropped()
		errcoll.Collect(ctx, p.errColl, p.logger, "pipeline: unpacking response",
			fmt.Errorf("%w: %s", ErrWireFormat, err))

		return
	}

	if !p.pending.hasBucket(origin) {
		p.metrics.OnDropped()
		p.logger.WarnContext(ctx, "pipeline: dropping response from unexpected source",
			"source", origin, slogutil.KeyError, ErrUnexpectedSource)

		return
	}

	entry, ok := p.pending.take(origin, msg.Id)
	if !ok {
		p.metrics.OnDropped()
		p.logger.WarnContext(ctx, "pipeline: dropping unmatched response",
			"source", origin, "id", msg.Id, slogutil.KeyError, ErrNoMatch)

		return
	}

	entry.timer.Cancel()
	p.metrics.OnCompleted()
	p.invokeCallback(entry.callback, origin, msg, nil)
}

// invokeCallback runs cb, recovering and logging a panic rather than
// letting it escape the event loop goroutine, per spec.md §4.5 ("callback
// exceptions are logged and swallowed").
func (p *Pipeline) invokeCallback(cb ResultFunc, ns netip.AddrPort, resp *dns.Msg, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("pipeline: callback panicked", "panic", r, "name_server", ns)
		}
	}()

	cb(ns, resp, err)
}
