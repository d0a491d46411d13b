// Package timewheel implements a hashed timing wheel (Varghese & Lauck,
// 1996) capable of tracking tens of thousands of in-flight timeouts with
// O(1) amortized scheduling and cancellation and a single goroutine ticking
// once per wall-clock second.
//
// A [Wheel] is a fixed array of [Slot] buckets.  A timer with an expiration
// of T seconds is placed in slot (now+T) mod len(slots), with a revolution
// counter of floor(T / len(slots)) ticks remaining once that slot is next
// visited.  This gives O(1) insertion while still supporting expirations
// longer than one full revolution of the wheel.
package timewheel
