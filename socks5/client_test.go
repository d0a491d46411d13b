package socks5

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeServer is a minimal SOCKS5 server sufficient to exercise Dial and
// Wrap: it accepts one control connection, negotiates NO_AUTH, replies to
// UDP_ASSOCIATE with the address of a real UDP relay socket it owns, and
// then echoes every datagram it receives back to its sender, unwrapped and
// rewrapped, so a test can drive a full round trip through the codec.
type fakeServer struct {
	t        *testing.T
	ctrlAddr string
	udpConn  *net.UDPConn
}

func startFakeServer(t *testing.T) *fakeServer {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	udpConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	require.NoError(t, err)

	s := &fakeServer{t: t, ctrlAddr: ln.Addr().String(), udpConn: udpConn}

	go s.acceptOne(ln)
	go s.echoLoop()

	t.Cleanup(func() {
		_ = ln.Close()
		_ = udpConn.Close()
	})

	return s
}

func (s *fakeServer) acceptOne(ln net.Listener) {
	conn, err := ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	methodReq := make([]byte, 2)
	if _, err = io.ReadFull(conn, methodReq); err != nil {
		return
	}

	nMethods := int(methodReq[1])
	if _, err = io.ReadFull(conn, make([]byte, nMethods)); err != nil {
		return
	}

	if _, err = conn.Write([]byte{Version, MethodNoAuth}); err != nil {
		return
	}

	// UDP_ASSOCIATE request: [VER][CMD][RSV][ATYP][ADDR][PORT].
	hdr := make([]byte, 4)
	if _, err = io.ReadFull(conn, hdr); err != nil {
		return
	}

	if _, err = io.ReadFull(conn, make([]byte, 4+2)); err != nil { // IPv4 addr + port
		return
	}

	relayAddr := s.udpConn.LocalAddr().(*net.UDPAddr)

	// The reply shares EncodeRequest's wire shape ([VER][REP][RSV][ATYP]...)
	// with REP in the CMD slot; 0 means success.
	reply := EncodeRequest(0, relayAddr.IP.String(), uint16(relayAddr.Port))

	_, _ = conn.Write(reply)

	// Keep the control connection open for the lifetime of the test.
	_, _ = io.Copy(io.Discard, conn)
}

func (s *fakeServer) echoLoop() {
	buf := make([]byte, 65535)

	for {
		n, addr, err := s.udpConn.ReadFromUDP(buf)
		if err != nil {
			return
		}

		host, port, data, err := DecodeUDPPacket(buf[:n])
		if err != nil {
			continue
		}

		// Echo back through the same UDP header shape, addressed as if it
		// came from the original destination.
		resp := EncodeUDPPacket(host, port, append([]byte("echo:"), data...))
		_, _ = s.udpConn.WriteToUDP(resp, addr)
	}
}

func TestDialAndWrapRoundTrip(t *testing.T) {
	srv := startFakeServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := Dial(ctx, &Config{Addr: srv.ctrlAddr})
	require.NoError(t, err)
	defer client.Close()

	localUDP, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	require.NoError(t, err)
	defer localUDP.Close()

	wrapped := client.Wrap(localUDP)

	_, err = wrapped.SendTo([]byte("hello"), "8.8.8.8", 53)
	require.NoError(t, err)

	require.NoError(t, localUDP.SetReadDeadline(time.Now().Add(5*time.Second)))

	buf := make([]byte, 65535)
	data, originHost, originPort, err := wrapped.ReceiveFrom(buf)
	require.NoError(t, err)
	require.Equal(t, "echo:hello", string(data))
	require.Equal(t, "8.8.8.8", originHost)
	require.EqualValues(t, 53, originPort)
}
