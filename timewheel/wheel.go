package timewheel

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/panjf2000/ants/v2"
)

// DefaultSlots is the default number of slots in a [Wheel], matching
// spec.md §4.2's default of 360 (one full revolution every six minutes at a
// 1 s tick).
const DefaultSlots = 360

// ErrAlreadyTerminated is the error value for a wheel that has been
// terminated.  [Wheel.Schedule] has no error result and does not check for
// termination: a timer scheduled after [Wheel.Terminate] is placed in its
// slot but never fires.
const ErrAlreadyTerminated errors.Error = "timewheel: wheel already terminated"

// Config configures a [Wheel].
type Config struct {
	// Logger is used to log panicking callbacks and pool errors.  If nil,
	// [slog.Default] is used.
	Logger *slog.Logger

	// Slots is the number of slots in the wheel.  Zero means [DefaultSlots].
	Slots int

	// WorkerPoolSize, if greater than zero, causes fired timers to be
	// dispatched to a pool of this many goroutines instead of being invoked
	// inline by the tick goroutine (spec.md §4.2 "Pooled" delivery mode).
	WorkerPoolSize int

	// Metrics, if non-nil, receives scheduling/firing/cancellation events.
	Metrics MetricsListener
}

// Wheel is a hashed timing wheel.  It is immutable after [New] except for its
// terminated flag and its internal last-tick bookkeeping.  The zero value is
// not usable; construct one with [New].
type Wheel struct {
	logger  *slog.Logger
	slots   []*Slot
	pool    *ants.Pool
	metrics MetricsListener

	terminated atomic.Bool
	done       chan struct{}

	// lastTick is the unix-second timestamp of the last slot visited by the
	// tick goroutine.  It is owned exclusively by that goroutine.
	lastTick int64
}

// New creates and starts a [Wheel] per c.  c may be nil, in which case all
// defaults apply (360 slots, inline delivery, [slog.Default] logging).
func New(c *Config) *Wheel {
	if c == nil {
		c = &Config{}
	}

	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	slots := c.Slots
	if slots <= 0 {
		slots = DefaultSlots
	}

	w := &Wheel{
		logger:  logger,
		slots:   make([]*Slot, slots),
		done:    make(chan struct{}),
		metrics: c.Metrics,
	}

	for i := range w.slots {
		w.slots[i] = &Slot{}
	}

	if c.WorkerPoolSize > 0 {
		w.pool = mustNewDispatchPool(c.WorkerPoolSize, logger)
	}

	w.lastTick = time.Now().Unix()

	go w.tickLoop()

	return w
}

// Len reports the total number of timers currently scheduled across every
// slot.  It is intended for tests and diagnostics, not hot-path use.
func (w *Wheel) Len() (n int) {
	for _, s := range w.slots {
		n += s.len()
	}

	return n
}

// Schedule places a new [Timer] invoking callback at expiry and returns it.
// Schedule is O(1).
func (w *Wheel) Schedule(callback func(), expiry Expiry) *Timer {
	secs := expiry.Seconds()

	t := newTimer(callback, w.logger, secs/len(w.slots))
	t.metrics = w.metrics

	now := time.Now().Unix()
	slotIndex := (int(now) + secs) % len(w.slots)

	w.slots[slotIndex].insert(t)

	if w.metrics != nil {
		w.metrics.OnScheduled()
	}

	return t
}

// Check returns the fired timers from the slot that owns wall-clock second
// t, per the same (t mod len(slots)) placement rule used by Schedule.  Check
// is exported to let tests exercise individual slot visits deterministically
// (spec.md §8, scenario 3 "Long-range timer").
func (w *Wheel) Check(t int64) []*Timer {
	return w.slots[int(t)%len(w.slots)].check()
}

// Terminate signals the tick goroutine to stop and releases the pooled
// dispatch workers, if any.  It returns without waiting: it does not block
// until the tick goroutine or a pooled callback already running has exited.
func (w *Wheel) Terminate() {
	if !w.terminated.CompareAndSwap(false, true) {
		return
	}

	close(w.done)

	if w.pool != nil {
		w.pool.Release()
	}
}

// tickLoop is the wheel's own goroutine.  It sleeps up to one second, then
// catches up from lastTick to now inclusive, visiting every intervening
// slot so that a delayed tick (GC pause, scheduler latency, or an NTP step
// forward) never skips a wall-clock second, per spec.md §3's invariant.
func (w *Wheel) tickLoop() {
	ctx := context.Background()
	defer slogutil.RecoverAndLog(ctx, w.logger)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.advance()
		}
	}
}

// advance performs one or more slot visits to catch the wheel up to the
// current wall-clock second.
func (w *Wheel) advance() {
	now := time.Now().Unix()

	if now < w.lastTick {
		// Clock went backward (NTP step).  Treat this as "no ticks advanced
		// this cycle" per spec.md §4.2's failure policy, and resynchronize
		// so we don't replay a huge range once the clock catches back up.
		w.lastTick = now

		return
	}

	for t := w.lastTick + 1; t <= now; t++ {
		for _, timer := range w.Check(t) {
			w.deliver(timer)
		}
	}

	w.lastTick = now
}

// deliver fires timer either inline or via the pool, per spec.md §4.2's two
// delivery modes.
func (w *Wheel) deliver(timer *Timer) {
	if w.metrics != nil {
		w.metrics.OnFired()
	}

	if w.pool == nil {
		timer.fire()

		return
	}

	err := w.pool.Submit(timer.fire)
	if err != nil {
		// The pool is saturated or closed; firing inline still upholds the
		// "fires at some time >= expiry, never skipped" invariant, it just
		// loses the "never delays the tick goroutine" property for this one
		// timer. This is logged rather than silently falling back.
		w.logger.Warn("timewheel: dispatch pool rejected timer, firing inline", "error", err)
		timer.fire()
	}
}

// mustNewDispatchPool builds an [*ants.Pool] configured for pooled timer
// dispatch.  It panics if the pool cannot be constructed, mirroring
// internal/dnsserver/task.go's mustNewTaskPool in the teacher repository.
func mustNewDispatchPool(size int, logger *slog.Logger) *ants.Pool {
	p, err := ants.NewPool(size, ants.WithOptions(ants.Options{
		ExpiryDuration: time.Minute,
		PreAlloc:       false,
		Nonblocking:    true,
		DisablePurge:   false,
		Logger:         &antsLogger{logger: logger},
	}))
	errors.Check(err)

	return p
}

// antsLogger adapts a [*slog.Logger] to the [ants.Logger] interface.
type antsLogger struct {
	logger *slog.Logger
}

// type check
var _ ants.Logger = (*antsLogger)(nil)

// Printf implements the [ants.Logger] interface for *antsLogger.
func (l *antsLogger) Printf(format string, args ...any) {
	l.logger.Info("timewheel: dispatch pool", slogutil.KeyMessage, fmt.Sprintf(format, args...))
}
