package socks5

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"

	"github.com/AdguardTeam/golibs/netutil"
)

// Credentials holds an optional RFC 1929 username/password pair.  A zero
// Credentials means "no authentication" is acceptable.
type Credentials struct {
	Username string
	Password string
}

// Config configures a [Dial] call.
type Config struct {
	// Addr is the proxy's TCP control-channel address, "host:port".
	Addr string

	// Credentials, if non-zero, is offered for RFC 1929 authentication if
	// the proxy selects [MethodUsernamePassword].
	Credentials Credentials

	// Logger is used for handshake diagnostics.  If nil, [slog.Default] is
	// used.
	Logger *slog.Logger
}

// Client is an open SOCKS5 UDP-ASSOCIATE session: a live TCP control
// connection plus the relay endpoint the proxy assigned.  Its lifecycle
// spans the lifetime of the UDP socket it wraps; closing it invalidates the
// association, per spec.md §3.
type Client struct {
	ctrl   net.Conn
	logger *slog.Logger
	relay  netAddr
	method byte
}

// netAddr is a resolved host/port pair, kept as strings because the relay
// endpoint may itself be a domain name in principle (RFC 1928 allows ATYP
// DOMAIN in replies, even though real proxies normally reply with an IP).
type netAddr struct {
	host string
	port uint16
}

func (a netAddr) String() string {
	return netutil.JoinHostPort(a.host, a.port)
}

// Dial opens a TCP connection to c.Addr, performs method negotiation, the
// optional RFC 1929 sub-handshake, and a UDP_ASSOCIATE request, and returns
// a ready-to-[Client.Wrap] client. The context governs only the initial TCP
// dial; the handshake itself runs to completion or failure synchronously,
// per spec.md §4.4 ("raised synchronously... before any UDP traffic").
func Dial(ctx context.Context, c *Config) (client *Client, err error) {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var d net.Dialer

	conn, err := d.DialContext(ctx, "tcp", c.Addr)
	if err != nil {
		return nil, fmt.Errorf("socks5: dialing proxy %s: %w", c.Addr, err)
	}

	client = &Client{ctrl: conn, logger: logger}

	if err = client.handshake(c.Credentials); err != nil {
		_ = conn.Close()

		return nil, err
	}

	return client, nil
}

// handshake drives method negotiation, optional authentication, and
// UDP_ASSOCIATE over the already-open control connection.
func (c *Client) handshake(creds Credentials) (err error) {
	methods := DefaultMethods
	if creds == (Credentials{}) {
		methods = []byte{MethodNoAuth}
	}

	if _, err = c.ctrl.Write(EncodeMethodRequest(methods)); err != nil {
		return fmt.Errorf("socks5: sending method request: %w", err)
	}

	selBuf := make([]byte, 2)
	if _, err = io.ReadFull(c.ctrl, selBuf); err != nil {
		return fmt.Errorf("socks5: reading method selection: %w", err)
	}

	c.method, err = DecodeMethodSelection(selBuf)
	if err != nil {
		return err
	}

	if c.method == MethodUsernamePassword {
		if err = c.authenticate(creds); err != nil {
			return err
		}
	}

	return c.associate()
}

// authenticate runs the RFC 1929 username/password sub-negotiation.
func (c *Client) authenticate(creds Credentials) (err error) {
	if _, err = c.ctrl.Write(EncodeUsernamePassword(creds.Username, creds.Password)); err != nil {
		return fmt.Errorf("socks5: sending auth request: %w", err)
	}

	replyBuf := make([]byte, 2)
	if _, err = io.ReadFull(c.ctrl, replyBuf); err != nil {
		return fmt.Errorf("socks5: reading auth reply: %w", err)
	}

	if err = DecodeUsernamePasswordReply(replyBuf); err != nil {
		_ = c.ctrl.Close()

		return err
	}

	return nil
}

// associate sends the UDP_ASSOCIATE request, using a best-effort
// "0.0.0.0:0" client endpoint since the UDP socket to be wrapped is not
// necessarily bound yet, per spec.md §4.4.
func (c *Client) associate() (err error) {
	req := EncodeRequest(CmdUDPAssociate, "0.0.0.0", 0)
	if _, err = c.ctrl.Write(req); err != nil {
		return fmt.Errorf("socks5: sending udp associate request: %w", err)
	}

	host, port, err := DecodeReply(&connReader{conn: c.ctrl})
	if err != nil {
		return fmt.Errorf("socks5: udp associate: %w", err)
	}

	c.relay = netAddr{host: host, port: port}
	c.logger.Info("socks5: associated udp relay", "relay", c.relay.String())

	return nil
}

// Close closes the TCP control connection, implicitly revoking the UDP
// association.
func (c *Client) Close() error {
	return c.ctrl.Close()
}

// Wrap rewires conn's send/receive so that every datagram is transparently
// prefixed (on send) or parsed (on receive) with the SOCKS5 UDP request
// header, per spec.md §4.4.  conn must not be used directly once wrapped.
func (c *Client) Wrap(conn *net.UDPConn) *WrappedConn {
	return &WrappedConn{client: c, conn: conn}
}

// WrappedConn is a [*net.UDPConn] tunneled through a SOCKS5 UDP-ASSOCIATE
// relay.  It exposes SendTo/ReceiveFrom instead of overriding sendto/recvfrom
// in place, since Go has no attribute rebinding on a socket object — the
// wrapper type is the idiomatic substitute (the same pattern the teacher
// uses for dnsserver.ResponseWriter implementations over a shared
// net.UDPConn).
type WrappedConn struct {
	client *Client
	conn   *net.UDPConn
}

// SendTo encodes a UDP request header addressed to destHost:destPort,
// concatenates data, and sends the result to the relay endpoint. The
// returned byte count is the number of bytes of the original payload sent
// (i.e. bytes written minus the header length), per spec.md §4.4.
func (w *WrappedConn) SendTo(data []byte, destHost string, destPort uint16) (n int, err error) {
	packet := EncodeUDPPacket(destHost, destPort, data)

	relayAddr, err := net.ResolveUDPAddr("udp", w.client.relay.String())
	if err != nil {
		return 0, fmt.Errorf("socks5: resolving relay addr: %w", err)
	}

	sent, err := w.conn.WriteToUDP(packet, relayAddr)
	if err != nil {
		return 0, err
	}

	return sent - (len(packet) - len(data)), nil
}

// ReceiveFrom reads one raw datagram from the underlying socket and returns
// its decoded payload plus the origin host/port the relay reports. A
// fragmented datagram (FRAG != 0) is dropped and reported as
// [ErrFragmentedPacket], per spec.md §9.
func (w *WrappedConn) ReceiveFrom(buf []byte) (data []byte, originHost string, originPort uint16, err error) {
	n, _, err := w.conn.ReadFromUDP(buf)
	if err != nil {
		return nil, "", 0, err
	}

	originHost, originPort, data, err = DecodeUDPPacket(buf[:n])
	if err != nil {
		return nil, "", 0, err
	}

	return data, originHost, originPort, nil
}

// connReader adapts a net.Conn to [byteReader] by reading exactly n bytes at
// a time with io.ReadFull.
type connReader struct {
	conn net.Conn
}

func (r *connReader) readN(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.conn, buf); err != nil {
		return nil, err
	}

	return buf, nil
}

// type check
var _ byteReader = (*connReader)(nil)
