package errcoll

import (
	"context"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/getsentry/sentry-go"
)

// SentryErrorCollector is an [Interface] implementation that sends errors to
// a Sentry-compatible HTTP API.
type SentryErrorCollector struct {
	sentry *sentry.Client
}

// NewSentryErrorCollector returns a new *SentryErrorCollector.  cli must be
// non-nil.
func NewSentryErrorCollector(cli *sentry.Client) (c *SentryErrorCollector) {
	return &SentryErrorCollector{
		sentry: cli,
	}
}

// type check
var _ Interface = (*SentryErrorCollector)(nil)

// Collect implements the [Interface] interface for *SentryErrorCollector.
func (c *SentryErrorCollector) Collect(ctx context.Context, err error) {
	if !isReportable(err) {
		return
	}

	c.sentry.CaptureException(err, &sentry.EventHint{
		Context: ctx,
	}, sentry.NewScope())
}

// ErrorFlushCollector collects errors and additionally allows flushing the
// underlying transport before process exit.
type ErrorFlushCollector interface {
	Interface

	// Flush waits until the underlying transport sends any buffered events
	// to the sentry server, blocking for at most the predefined timeout.
	Flush()
}

// type check
var _ ErrorFlushCollector = (*SentryErrorCollector)(nil)

// flushTimeout is the timeout for flushing sentry errors.
const flushTimeout = 1 * time.Second

// Flush implements the [ErrorFlushCollector] interface for
// *SentryErrorCollector.
func (c *SentryErrorCollector) Flush() {
	c.sentry.Flush(flushTimeout)
}

// isReportable returns false for transient network conditions that are
// expected in normal operation of a UDP query pipeline: timeouts, closed
// sockets, and unreachable destinations are not programming errors.
func isReportable(err error) (ok bool) {
	if isConnectionBreak(err) {
		return false
	}

	var netErr net.Error

	return !errors.As(err, &netErr) || !netErr.Timeout()
}

// isConnectionBreak reports whether err is one of the expected transport
// failure modes of an outbound UDP/TCP client.
func isConnectionBreak(err error) (ok bool) {
	switch {
	case
		errors.Is(err, io.EOF),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, os.ErrDeadlineExceeded):
		return true
	default:
		return strings.Contains(err.Error(), "connection refused")
	}
}
