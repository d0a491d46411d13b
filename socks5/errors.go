package socks5

import "github.com/AdguardTeam/golibs/errors"

// Sentinel errors for the SOCKS5 control-channel handshake, checked with
// errors.Is.  These mirror the SocksProtocolError subkinds of spec.md §7.
const (
	// ErrInvalidVersion signals that the peer reported a SOCKS version other
	// than 5.
	ErrInvalidVersion errors.Error = "socks5: invalid version"

	// ErrNoAcceptableAuthMethod signals that the proxy rejected every
	// authentication method offered (METHOD byte 0xFF).
	ErrNoAcceptableAuthMethod errors.Error = "socks5: no acceptable authentication method"

	// ErrAuthenticationFailed signals that the RFC 1929 username/password
	// sub-negotiation reported a non-zero status.
	ErrAuthenticationFailed errors.Error = "socks5: authentication failed"

	// ErrUnsupportedAddressType signals an ATYP byte other than IPv4,
	// domain, or IPv6.
	ErrUnsupportedAddressType errors.Error = "socks5: unsupported address type"

	// ErrFragmentedPacket signals a UDP request header with a nonzero FRAG
	// field.  Fragment reassembly is not implemented; per spec.md §9 such
	// datagrams are dropped.
	ErrFragmentedPacket errors.Error = "socks5: fragmented packet not supported"
)

// replyMessages maps a SOCKS5 REP byte (1..8) to the fixed textual message
// from RFC 1928 §6.  Index 0 ("succeeded") is never used to build an error.
var replyMessages = [...]string{
	"succeeded",
	"general SOCKS server failure",
	"connection not allowed by ruleset",
	"network unreachable",
	"host unreachable",
	"connection refused",
	"TTL expired",
	"command not supported",
	"address type not supported",
}

// ReplyError is returned when the proxy's reply to a CONNECT, BIND, or
// UDP_ASSOCIATE request carries a non-zero REP code.
type ReplyError struct {
	// Code is the raw REP byte from the proxy's reply.
	Code byte
}

// type check
var _ error = (*ReplyError)(nil)

// Error implements the error interface for *ReplyError.
func (e *ReplyError) Error() string {
	if int(e.Code) < len(replyMessages) {
		return "socks5: " + replyMessages[e.Code]
	}

	return "socks5: unknown reply code"
}
