// Package errcoll contains implementations of error collectors for
// non-fatal, logged-and-forwarded errors raised by the pipeline and
// resolver packages.
package errcoll

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
)

// Interface is the interface for error collectors that process information
// about errors, possibly sending them to a remote location.
type Interface interface {
	Collect(ctx context.Context, err error)
}

// Collect writes msg and err into l and also forwards a wrapped error to
// errColl.  It is the standard call site for every "log AND forward"
// non-fatal error path in this module.
func Collect(ctx context.Context, errColl Interface, l *slog.Logger, msg string, err error) {
	l.ErrorContext(ctx, msg, slogutil.KeyError, err)
	errColl.Collect(ctx, fmt.Errorf("%s: %w", msg, err))
}

// NoopErrorCollector implements [Interface] by discarding every error.  It
// is the default used when a pipeline.Config leaves its ErrColl unset.
type NoopErrorCollector struct{}

// type check
var _ Interface = NoopErrorCollector{}

// Collect implements the [Interface] interface for NoopErrorCollector.
func (NoopErrorCollector) Collect(_ context.Context, _ error) {}
