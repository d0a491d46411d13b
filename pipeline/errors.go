package pipeline

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/AdguardTeam/golibs/errors"
)

// Error taxonomy, per spec.md §7.  These are sentinel kinds, checked with
// errors.Is; TimeoutError and SendFailureError additionally carry the
// nameserver that failed.
const (
	// ErrWireFormat signals that an inbound packet failed to parse as a DNS
	// message.  Logged and dropped; never delivered to a callback.
	ErrWireFormat errors.Error = "pipeline: wire format error"

	// ErrUnexpectedSource signals an inbound packet from an endpoint with no
	// pending bucket.  Logged and dropped.
	ErrUnexpectedSource errors.Error = "pipeline: unexpected source"

	// ErrNoMatch signals an inbound packet that did not correlate to any
	// pending request for its source endpoint.  Dropped.
	ErrNoMatch errors.Error = "pipeline: no matching request"

	// ErrTimeout is delivered to a callback when its timer fires before a
	// matching response arrives.
	ErrTimeout errors.Error = "pipeline: timeout"

	// ErrSendFailure is delivered to a callback when sendto fails with a
	// non-transient error.  This is the adopted behavior from spec.md §9's
	// open question: the Python original drops this silently; here, the
	// caller learns about it instead of waiting out the full timeout.
	ErrSendFailure errors.Error = "pipeline: send failure"
)

// TimeoutError is returned/delivered when a query to a specific name server
// times out.  It wraps [ErrTimeout] so callers can use errors.Is.
type TimeoutError struct {
	NameServer netip.AddrPort
	Timeout    time.Duration
}

// type check
var _ error = (*TimeoutError)(nil)

// Error implements the error interface for *TimeoutError.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("pipeline: query to %s timed out after %s", e.NameServer, e.Timeout)
}

// Unwrap implements the errors.Wrapper interface for *TimeoutError.
func (e *TimeoutError) Unwrap() error { return ErrTimeout }

// SendFailureError is delivered when sendto fails for a specific name
// server.
type SendFailureError struct {
	NameServer netip.AddrPort
	Err        error
}

// type check
var _ error = (*SendFailureError)(nil)

// Error implements the error interface for *SendFailureError.
func (e *SendFailureError) Error() string {
	return fmt.Sprintf("pipeline: send to %s failed: %s", e.NameServer, e.Err)
}

// Unwrap lets errors.Is/errors.As match both [ErrSendFailure] and the
// underlying transport error.
func (e *SendFailureError) Unwrap() []error { return []error{ErrSendFailure, e.Err} }
