package pipeline

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/flier/asyncdns/socks5"
)

// udpTransport abstracts sending to and receiving from name servers over a
// single UDP socket, so the event loop does not need to know whether it is
// talking directly to the network or tunneling through a [socks5.Client]
// UDP-ASSOCIATE relay, per spec.md §4.4.
type udpTransport interface {
	// sendTo sends data to dst and returns the number of payload bytes sent.
	sendTo(data []byte, dst netip.AddrPort) (int, error)

	// receiveFrom reads one datagram into buf and reports the true origin of
	// the payload (which, for the SOCKS5 transport, is the address the proxy
	// relayed from — not the relay's own address).
	receiveFrom(buf []byte) (data []byte, origin netip.AddrPort, err error)

	// file returns the underlying connection, for use with an event-ready
	// poll.
	file() *net.UDPConn

	close() error
}

// plainTransport sends and receives directly over an unwrapped UDP socket.
type plainTransport struct {
	conn *net.UDPConn
}

// type check
var _ udpTransport = (*plainTransport)(nil)

func (t *plainTransport) sendTo(data []byte, dst netip.AddrPort) (int, error) {
	return t.conn.WriteToUDP(data, net.UDPAddrFromAddrPort(dst))
}

func (t *plainTransport) receiveFrom(buf []byte) (data []byte, origin netip.AddrPort, err error) {
	n, addr, err := t.conn.ReadFromUDPAddrPort(buf)
	if err != nil {
		return nil, netip.AddrPort{}, err
	}

	return buf[:n], addr, nil
}

func (t *plainTransport) file() *net.UDPConn { return t.conn }

func (t *plainTransport) close() error { return t.conn.Close() }

// socksTransport routes every datagram through a SOCKS5 UDP-ASSOCIATE relay.
type socksTransport struct {
	wrapped *socks5.WrappedConn
	conn    *net.UDPConn
}

// type check
var _ udpTransport = (*socksTransport)(nil)

func (t *socksTransport) sendTo(data []byte, dst netip.AddrPort) (int, error) {
	return t.wrapped.SendTo(data, dst.Addr().String(), dst.Port())
}

func (t *socksTransport) receiveFrom(buf []byte) (data []byte, origin netip.AddrPort, err error) {
	data, host, port, err := t.wrapped.ReceiveFrom(buf)
	if err != nil {
		return nil, netip.AddrPort{}, err
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		return nil, netip.AddrPort{}, fmt.Errorf("pipeline: parsing relayed origin %q: %w", host, err)
	}

	return data, netip.AddrPortFrom(addr, port), nil
}

func (t *socksTransport) file() *net.UDPConn { return t.conn }

func (t *socksTransport) close() error { return t.conn.Close() }
