// Package scheduler implements the process table and run-selection logic
// of spec.md §4.1/§4.2: a fixed 32-slot table, round-robin selection over
// runnable processes, hook-gated suspension/resumption, and foreground
// focus tracking.
//
// Grounded on the original's kernel/scheduler.h + scheduler.cpp (table
// shape, add/remove/next_process) generalised per spec.md's corrected
// contract: next_process only considers processes with no pending
// WaitHook, and a separate next_eligible_process serves the event-gated
// path scheduler.cpp's header declares but never defines.
package scheduler

import (
	"sync"

	"github.com/antpln/continuumos/kernel/event"
	"github.com/antpln/continuumos/kernel/hooks"
	"github.com/antpln/continuumos/kernel/kerr"
	"github.com/antpln/continuumos/kernel/process"
)

// MaxProcesses is the original's MAX_PROCESSES.
const MaxProcesses = 32

// Table is the scheduler's process table plus run-selection state. The
// zero value is not ready for use; call New.
type Table struct {
	mu         sync.Mutex
	slots      [MaxProcesses]*process.Process
	count      int
	currentIdx int // -1 when empty, mirrors current_process_idx
	foreground int // pid, 0 if none
}

// New returns an empty, initialised Table (the original's scheduler_init).
func New() *Table {
	return &Table{currentIdx: -1}
}

// Add inserts proc into the first free slot. Returns kerr.NoSpace if the
// table is full (spec.md §4.1 "add(proc) → ok | full").
func (t *Table) Add(proc *process.Process) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.count >= MaxProcesses {
		return kerr.New(kerr.NoSpace, "process table full")
	}
	for i := range t.slots {
		if t.slots[i] == nil {
			t.slots[i] = proc
			t.count++
			if t.currentIdx == -1 {
				t.currentIdx = i
			}
			return nil
		}
	}
	return kerr.New(kerr.NoSpace, "process table full")
}

// Remove drops the process with the given pid. If it was the current
// process, the cursor advances to the next runnable one. Returns
// kerr.NotFound if no such pid is present.
func (t *Table) Remove(pid int) error {
	t.mu.Lock()
	wasCurrent := false
	idx := -1
	for i, p := range t.slots {
		if p != nil && p.PID == pid {
			idx = i
			break
		}
	}
	if idx == -1 {
		t.mu.Unlock()
		return kerr.New(kerr.NotFound, "no such pid")
	}
	t.slots[idx] = nil
	t.count--
	wasCurrent = t.currentIdx == idx
	t.mu.Unlock()

	if wasCurrent {
		t.NextProcess()
	}
	return nil
}

func eligibleForRoundRobin(p *process.Process) bool {
	return p != nil && p.Alive && p.WaitHook == nil
}

// NextProcess advances the round-robin cursor to the next alive process
// with no pending WaitHook (spec.md §4.1), wrapping the table once. Returns
// nil if no process qualifies.
func (t *Table) NextProcess() *process.Process {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.nextProcessLocked()
}

func (t *Table) nextProcessLocked() *process.Process {
	if t.count == 0 {
		return nil
	}
	start := t.currentIdx
	if start < 0 {
		start = MaxProcesses - 1
	}
	idx := start
	for i := 0; i < MaxProcesses; i++ {
		idx = (idx + 1) % MaxProcesses
		if eligibleForRoundRobin(t.slots[idx]) {
			t.currentIdx = idx
			return t.slots[idx]
		}
		if idx == start {
			break
		}
	}
	return nil
}

// Current returns the currently selected process, or nil if the table is
// empty or the cursor is unset.
func (t *Table) Current() *process.Process {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.currentIdx < 0 || t.currentIdx >= MaxProcesses {
		return nil
	}
	return t.slots[t.currentIdx]
}

// IsEligible reports whether proc may run given an incoming (kind, value)
// event: either it has no pending hook at all, or its pending hook
// matches the event (spec.md §4.1 process_is_eligible).
func IsEligible(proc *process.Process, kind hooks.Kind, value uint64) bool {
	if proc == nil || !proc.Alive {
		return false
	}
	if proc.WaitHook == nil {
		return true
	}
	return proc.WaitHook.Matches(kind, value)
}

// NextEligible returns the first alive process whose WaitHook matches the
// given event, or whose WaitHook is nil (spec.md §4.1: "first match is
// acceptable; lottery among ties is explicitly permitted" — this
// implementation takes the deterministic first-match option).
func (t *Table) NextEligible(kind hooks.Kind, value uint64) *process.Process {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, p := range t.slots {
		if IsEligible(p, kind, value) {
			return p
		}
	}
	return nil
}

// YieldForEvent saves the calling process's continuation, installs hook
// as its WaitHook, and reschedules. A nil hook is a plain yield (clears
// any pending hook instead of setting one). yield_for_event(TIME_REACHED,
// t) with t already reached is handled by the caller choosing not to set
// a hook at all (spec.md §4.1 failure case: "a no-op that reschedules
// immediately").
func (t *Table) YieldForEvent(proc *process.Process, hook *hooks.Hook) *process.Process {
	if proc != nil {
		proc.Saved = proc.SaveContinuation()
		proc.WaitHook = hook
	}
	return t.NextProcess()
}

// ResumeForEvent clears WaitHook on every process whose hook matches
// (kind, value), making them runnable again (spec.md §4.1/§4.2).
func (t *Table) ResumeForEvent(kind hooks.Kind, value uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, p := range t.slots {
		if p != nil && p.WaitHook != nil && p.WaitHook.Matches(kind, value) {
			p.WaitHook = nil
		}
	}
}

// OnTick is the scheduler's timer-interrupt entry point: it resumes any
// process waiting on TIME_REACHED(tick), saves the current process's
// continuation, and selects the next runnable process (preemption).
func (t *Table) OnTick(tick uint64) *process.Process {
	t.ResumeForEvent(hooks.TimeReached, tick)
	if cur := t.Current(); cur != nil {
		cur.Saved = cur.SaveContinuation()
		cur.LogicalTime = tick
	}
	return t.NextProcess()
}

// SetForeground records pid as the foreground process, delivering
// PROCESS_FOCUS_LOST to the previous foreground and PROCESS_FOCUS_GAINED
// to the new one (spec.md §4.1).
func (t *Table) SetForeground(pid int) {
	t.mu.Lock()
	prev := t.foreground
	t.foreground = pid
	var prevProc, nextProc *process.Process
	for _, p := range t.slots {
		if p == nil {
			continue
		}
		if p.PID == prev {
			prevProc = p
		}
		if p.PID == pid {
			nextProc = p
		}
	}
	t.mu.Unlock()

	if prevProc != nil && prev != pid {
		prevProc.PushEvent(event.NewProcess(event.ProcessEvent{Code: event.FocusLost, Value: prev}))
	}
	if nextProc != nil {
		nextProc.PushEvent(event.NewProcess(event.ProcessEvent{Code: event.FocusGained, Value: pid}))
	}
}

// Foreground returns the current foreground pid, or 0 if none is set.
func (t *Table) Foreground() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.foreground
}

// Count returns the number of live table entries.
func (t *Table) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

// Snapshot returns a stable copy of the table's occupied slots, in slot
// order, for test and debug introspection (spec.md's debug dump, recovered
// from the original's debug.cpp process-table printer — see SPEC_FULL.md).
func (t *Table) Snapshot() []*process.Process {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*process.Process, 0, t.count)
	for _, p := range t.slots {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}
