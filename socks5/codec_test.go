package socks5

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hexBytes(t *testing.T, s string) []byte {
	t.Helper()

	b, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
	require.NoError(t, err)

	return b
}

// TestEncodeRequestConnect matches spec.md §8 scenario 6.
func TestEncodeRequestConnect(t *testing.T) {
	got := EncodeRequest(CmdConnect, "127.0.0.1", 8080)
	assert.Equal(t, hexBytes(t, "05 01 00 01 7F 00 00 01 1F 90"), got)
}

func TestEncodeRequestUDPAssociateDomain(t *testing.T) {
	got := EncodeRequest(CmdUDPAssociate, "localhost", 8080)

	want := append([]byte{0x05, 0x03, 0x00, 0x03, 0x09}, "localhost"...)
	want = append(want, 0x1F, 0x90)

	assert.Equal(t, want, got)
}

// TestEncodeAndDecodeUDPPacket matches spec.md §8 scenario 6's make_packet /
// parse_packet round trip.
func TestEncodeAndDecodeUDPPacket(t *testing.T) {
	packet := EncodeUDPPacket("127.0.0.1", 53, []byte("test"))

	want := append(hexBytes(t, "00 00 00 01 7F 00 00 01 00 35"), "test"...)
	assert.Equal(t, want, packet)

	host, port, data, err := DecodeUDPPacket(packet)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", host)
	assert.EqualValues(t, 53, port)
	assert.Equal(t, "test", string(data))
}

// TestUDPPacketRoundTripDomain exercises the round-trip property for a
// domain-name destination.
func TestUDPPacketRoundTripDomain(t *testing.T) {
	packet := EncodeUDPPacket("example.com", 443, []byte("payload"))

	host, port, data, err := DecodeUDPPacket(packet)
	require.NoError(t, err)
	assert.Equal(t, "example.com", host)
	assert.EqualValues(t, 443, port)
	assert.Equal(t, "payload", string(data))
}

func TestDecodeUDPPacketFragmented(t *testing.T) {
	packet := EncodeUDPPacket("127.0.0.1", 53, []byte("test"))
	packet[2] = 1 // set FRAG != 0

	_, _, _, err := DecodeUDPPacket(packet)
	assert.ErrorIs(t, err, ErrFragmentedPacket)
}

func TestDecodeMethodSelectionNoAcceptable(t *testing.T) {
	_, err := DecodeMethodSelection([]byte{Version, MethodNoAcceptable})
	assert.ErrorIs(t, err, ErrNoAcceptableAuthMethod)
}

func TestDecodeMethodSelectionBadVersion(t *testing.T) {
	_, err := DecodeMethodSelection([]byte{4, MethodNoAuth})
	assert.ErrorIs(t, err, ErrInvalidVersion)
}

func TestEncodeMethodRequestDefault(t *testing.T) {
	got := EncodeMethodRequest(nil)
	assert.Equal(t, []byte{Version, 1, MethodNoAuth}, got)
}

func TestEncodeUsernamePassword(t *testing.T) {
	got := EncodeUsernamePassword("user", "pass")
	assert.Equal(t, append([]byte{1, 4}, append([]byte("user"), 4, 'p', 'a', 's', 's')...), got)
}

func TestDecodeUsernamePasswordReplyFailure(t *testing.T) {
	err := DecodeUsernamePasswordReply([]byte{1, 1})
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}
