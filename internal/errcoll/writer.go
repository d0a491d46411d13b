package errcoll

import (
	"context"
	"fmt"
	"io"
	"time"
)

// WriterErrorCollector is an [Interface] that writes errors to an io.Writer,
// useful for tests and small deployments that don't run a Sentry-compatible
// collector.
type WriterErrorCollector struct {
	w io.Writer
}

// NewWriterErrorCollector returns a new *WriterErrorCollector writing to w.
func NewWriterErrorCollector(w io.Writer) (c *WriterErrorCollector) {
	return &WriterErrorCollector{
		w: w,
	}
}

// type check
var _ Interface = (*WriterErrorCollector)(nil)

// Collect implements the [Interface] interface for *WriterErrorCollector.
func (c *WriterErrorCollector) Collect(_ context.Context, err error) {
	_, _ = fmt.Fprintf(c.w, "%s: caught error: %s\n", time.Now(), err)
}
