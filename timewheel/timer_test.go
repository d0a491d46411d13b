package timewheel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTimerCancelIdempotent(t *testing.T) {
	slot := &Slot{}
	timer := newTimer(func() {}, nil, 0)
	slot.insert(timer)

	assert.Equal(t, 1, slot.len())

	timer.Cancel()
	assert.Equal(t, 0, slot.len())

	// Canceling again must be a harmless no-op.
	assert.NotPanics(t, timer.Cancel)
	assert.Equal(t, 0, slot.len())
}

func TestTimerFireRecoversPanic(t *testing.T) {
	timer := newTimer(func() { panic("boom") }, nil, 0)

	assert.NotPanics(t, timer.fire)
}

func TestTimerFireInvokesCallback(t *testing.T) {
	called := false
	timer := newTimer(func() { called = true }, nil, 0)

	timer.fire()

	assert.True(t, called)
}
