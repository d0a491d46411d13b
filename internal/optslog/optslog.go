// Package optslog contains optimizations making debug logs using log/slog
// allocate less when debug mode is not enabled.  All such optimizations must
// be added here to make sure that we keep track of them.
package optslog

import (
	"context"
	"log/slog"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
)

// Trace1 is an optimized version of [slog.Logger.Log] that prevents it from
// allocating when tracing is not enabled.
func Trace1[T1 any](ctx context.Context, l *slog.Logger, msg, name1 string, arg1 T1) {
	if l.Enabled(ctx, slogutil.LevelTrace) {
		l.Log(ctx, slogutil.LevelTrace, msg, name1, arg1)
	}
}

// Debug2 is an optimized version of [slog.Logger.DebugContext] that prevents
// it from allocating when debugging is not necessary.
func Debug2[T1, T2 any](
	ctx context.Context,
	l *slog.Logger,
	msg string,
	name1 string, arg1 T1,
	name2 string, arg2 T2,
) {
	if l.Enabled(ctx, slog.LevelDebug) {
		l.DebugContext(ctx, msg, name1, arg1, name2, arg2)
	}
}
