package process

import (
	"testing"

	"github.com/antpln/continuumos/kernel/event"
	"github.com/stretchr/testify/require"
)

func TestNewProcessIsAlive(t *testing.T) {
	p := New(1, "shell", nil, false, 4096)
	require.True(t, p.Alive)
	require.Equal(t, 1, p.PID)
	require.Len(t, p.Current.Stack, 4096)
}

func TestKillMarksDead(t *testing.T) {
	p := New(1, "shell", nil, false, 4096)
	p.Kill()
	require.False(t, p.Alive)
}

func TestSaveRestoreContinuationRoundTrips(t *testing.T) {
	p := New(1, "shell", nil, false, 4096)
	p.Current.Context.EIP = 0xdeadbeef
	saved := p.SaveContinuation()
	p.Current.Context.EIP = 0
	p.RestoreContinuation(saved)
	require.EqualValues(t, 0xdeadbeef, p.Current.Context.EIP)
}

func TestEventQueueFIFO(t *testing.T) {
	p := New(1, "shell", nil, false, 4096)
	require.True(t, p.PushEvent(event.NewKeyboard(event.KeyboardEvent{Scancode: 1})))
	require.True(t, p.PushEvent(event.NewKeyboard(event.KeyboardEvent{Scancode: 2})))

	ev, ok := p.PopEvent()
	require.True(t, ok)
	require.EqualValues(t, 1, ev.Keyboard.Scancode)

	ev, ok = p.PopEvent()
	require.True(t, ok)
	require.EqualValues(t, 2, ev.Keyboard.Scancode)

	_, ok = p.PopEvent()
	require.False(t, ok)
}

// TestEventQueueBoundDropsLastPush is spec.md §8 testable property 7:
// push capacity+1 events; the last push is dropped; pop yields the
// oldest `capacity` events in order.
func TestEventQueueBoundDropsLastPush(t *testing.T) {
	p := New(1, "shell", nil, false, 4096)
	for i := 0; i < EventQueueCapacity; i++ {
		require.True(t, p.PushEvent(event.NewKeyboard(event.KeyboardEvent{Scancode: uint8(i)})))
	}
	// one more than capacity: dropped.
	require.False(t, p.PushEvent(event.NewKeyboard(event.KeyboardEvent{Scancode: 0xff})))
	require.Equal(t, EventQueueCapacity, p.PendingEvents())

	for i := 0; i < EventQueueCapacity; i++ {
		ev, ok := p.PopEvent()
		require.True(t, ok)
		require.EqualValues(t, i, ev.Keyboard.Scancode)
	}
	_, ok := p.PopEvent()
	require.False(t, ok)
}

func TestRegisterKeyboardHandler(t *testing.T) {
	p := New(1, "shell", nil, false, 4096)
	var got event.KeyboardEvent
	p.RegisterKeyboardHandler(func(ke event.KeyboardEvent) { got = ke })
	p.KeyboardHandler(event.KeyboardEvent{ASCII: 'x'})
	require.Equal(t, byte('x'), got.ASCII)
}
