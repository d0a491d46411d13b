// Package socks5 implements the client side of a SOCKS5 UDP-ASSOCIATE
// tunnel (RFC 1928, plus the username/password sub-negotiation of
// RFC 1929), sufficient to transparently encapsulate outbound UDP
// datagrams through a SOCKS5 proxy.
//
// The codec functions are pure and allocation-light; [Dial] and [Client] drive
// the TCP control-channel handshake and wrap a UDP socket so that every send
// and receive is transparently prefixed/parsed with the SOCKS5 UDP request
// header.
package socks5
