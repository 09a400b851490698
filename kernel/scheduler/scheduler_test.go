package scheduler

import (
	"testing"

	"github.com/antpln/continuumos/kernel/event"
	"github.com/antpln/continuumos/kernel/hooks"
	"github.com/antpln/continuumos/kernel/kerr"
	"github.com/antpln/continuumos/kernel/process"
	"github.com/stretchr/testify/require"
)

func TestAddRejectsWhenFull(t *testing.T) {
	tbl := New()
	for i := 1; i <= MaxProcesses; i++ {
		require.NoError(t, tbl.Add(process.New(i, "p", nil, false, 64)))
	}
	err := tbl.Add(process.New(MaxProcesses+1, "overflow", nil, false, 64))
	require.ErrorIs(t, err, kerr.NoSpace)
}

func TestRemoveUnknownPidFails(t *testing.T) {
	tbl := New()
	err := tbl.Remove(99)
	require.ErrorIs(t, err, kerr.NotFound)
}

func TestRoundRobinCyclesAliveProcesses(t *testing.T) {
	tbl := New()
	a := process.New(1, "a", nil, false, 64)
	b := process.New(2, "b", nil, false, 64)
	c := process.New(3, "c", nil, false, 64)
	require.NoError(t, tbl.Add(a))
	require.NoError(t, tbl.Add(b))
	require.NoError(t, tbl.Add(c))

	require.Equal(t, a, tbl.Current())
	require.Equal(t, b, tbl.NextProcess())
	require.Equal(t, c, tbl.NextProcess())
	require.Equal(t, a, tbl.NextProcess())
}

func TestRoundRobinSkipsBlockedProcesses(t *testing.T) {
	tbl := New()
	a := process.New(1, "a", nil, false, 64)
	b := process.New(2, "b", nil, false, 64)
	require.NoError(t, tbl.Add(a))
	require.NoError(t, tbl.Add(b))

	b.WaitHook = &hooks.Hook{Kind: hooks.TimeReached, Value: 10}
	require.Equal(t, a, tbl.NextProcess())
	require.Equal(t, a, tbl.NextProcess())
}

func TestRemoveAdvancesCursorWhenCurrentRemoved(t *testing.T) {
	tbl := New()
	a := process.New(1, "a", nil, false, 64)
	b := process.New(2, "b", nil, false, 64)
	require.NoError(t, tbl.Add(a))
	require.NoError(t, tbl.Add(b))

	require.NoError(t, tbl.Remove(1))
	require.Equal(t, b, tbl.Current())
}

// TestEventGating is spec.md §8 testable property 6: process P
// yield_for_event(TIME_REACHED, now+5): resume_for_event(TIME_REACHED,
// now+4) leaves P blocked; resume_for_event(TIME_REACHED, now+5) makes P
// eligible.
func TestEventGating(t *testing.T) {
	tbl := New()
	p := process.New(1, "p", nil, false, 64)
	require.NoError(t, tbl.Add(p))

	p.WaitHook = &hooks.Hook{Kind: hooks.TimeReached, Value: 105}

	tbl.ResumeForEvent(hooks.TimeReached, 104)
	require.NotNil(t, p.WaitHook, "must remain blocked on a non-matching tick")

	tbl.ResumeForEvent(hooks.TimeReached, 105)
	require.Nil(t, p.WaitHook, "must become eligible once the matching tick arrives")
}

func TestNextEligiblePrefersMatchingHookOverPlainWait(t *testing.T) {
	tbl := New()
	a := process.New(1, "a", nil, false, 64)
	b := process.New(2, "b", nil, false, 64)
	a.WaitHook = &hooks.Hook{Kind: hooks.Signal, Value: 7}
	b.WaitHook = &hooks.Hook{Kind: hooks.Signal, Value: 8}
	require.NoError(t, tbl.Add(a))
	require.NoError(t, tbl.Add(b))

	got := tbl.NextEligible(hooks.Signal, 8)
	require.Equal(t, b, got)
}

func TestOnTickPreemptsAndResumesWaiters(t *testing.T) {
	tbl := New()
	a := process.New(1, "a", nil, false, 64)
	b := process.New(2, "b", nil, false, 64)
	require.NoError(t, tbl.Add(a))
	require.NoError(t, tbl.Add(b))
	b.WaitHook = &hooks.Hook{Kind: hooks.TimeReached, Value: 50}

	next := tbl.OnTick(50)
	require.Nil(t, b.WaitHook)
	require.Equal(t, b, next)
}

func TestSetForegroundDeliversFocusEvents(t *testing.T) {
	tbl := New()
	a := process.New(1, "a", nil, false, 64)
	b := process.New(2, "b", nil, false, 64)
	require.NoError(t, tbl.Add(a))
	require.NoError(t, tbl.Add(b))

	tbl.SetForeground(1)
	ev, ok := a.PopEvent()
	require.True(t, ok)
	require.Equal(t, event.FocusGained, ev.Process.Code)
	require.Equal(t, 1, tbl.Foreground())

	tbl.SetForeground(2)
	lost, ok := a.PopEvent()
	require.True(t, ok)
	require.Equal(t, event.FocusLost, lost.Process.Code)

	gained, ok := b.PopEvent()
	require.True(t, ok)
	require.Equal(t, event.FocusGained, gained.Process.Code)
}
