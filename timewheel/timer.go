package timewheel

import (
	"context"
	"log/slog"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
)

// Timer is a single cancelable one-shot timer owned by exactly one [Slot] at
// a time.  Its zero value is not usable; Timers are created exclusively by
// [Wheel.Schedule].
type Timer struct {
	callback func()
	logger   *slog.Logger
	metrics  MetricsListener

	// slot is a back reference to the [Slot] currently holding this timer,
	// used for O(1) cancellation.  It is read and written exclusively while
	// holding slot's mutex, which makes the back reference itself
	// race-free even though Timer has no lock of its own.
	slot *Slot

	// remainingTicks counts down the number of additional full revolutions
	// of the wheel the timer must survive before it actually fires.  It is
	// mutated only by the owning Slot's check, which holds the slot's
	// mutex.
	remainingTicks int
}

// newTimer returns a Timer that is not yet attached to any slot.
func newTimer(callback func(), logger *slog.Logger, remainingTicks int) *Timer {
	if logger == nil {
		logger = slog.Default()
	}

	return &Timer{
		callback:       callback,
		logger:         logger,
		remainingTicks: remainingTicks,
	}
}

// Cancel detaches the timer from its slot, if any, preventing it from ever
// firing.  Cancel is idempotent: calling it again, or calling it after the
// timer has already fired, is a harmless no-op.
func (t *Timer) Cancel() {
	slot := t.currentSlot()
	if slot == nil {
		return
	}

	if slot.remove(t) && t.metrics != nil {
		t.metrics.OnCanceled()
	}
}

// currentSlot returns the slot currently holding t, synchronizing with any
// concurrent insert/remove through that slot's own mutex is the caller's
// responsibility to arrange by calling through [Slot] methods only.
func (t *Timer) currentSlot() *Slot {
	return t.slot
}

// fire invokes the timer's callback.  Panics are recovered and logged, never
// propagated to the wheel's tick goroutine or a pooled worker, per spec.md
// §4.1's "any exception thrown by the callback is logged and swallowed".
func (t *Timer) fire() {
	ctx := context.Background()
	defer slogutil.RecoverAndLog(ctx, t.logger)

	t.callback()
}
