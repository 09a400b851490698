// Package process implements the kernel's process descriptor (spec.md §3
// "Process", §4.1): identity, saved execution context, and the bounded
// per-process event queue that keyboard/mouse/PCI producers push into and
// that wait_event/poll_event drain.
//
// Grounded on the original's kernel/process.h + process.cpp. The original
// runs real x86 machine code per process; here a Process instead carries
// an Entry closure driven cooperatively by the scheduler (see
// SPEC_FULL.md's host-process re-implementation stance) — CPUContext is
// kept as a struct purely so save/restore semantics and the context
// switch contract still have a concrete shape to copy.
package process

import (
	"sync"

	"github.com/antpln/continuumos/kernel/event"
	"github.com/antpln/continuumos/kernel/hooks"
)

// EventQueueCapacity is the number of events a process's ring buffer can
// hold before pushes are dropped (spec.md §8 testable property 7).
const EventQueueCapacity = 16

// CPUContext mirrors the original's CPUContext: general registers, stack
// and frame pointers, instruction pointer, and flags. Nothing here reads
// or writes real registers; it exists so SaveContinuation/RestoreContinuation
// have a faithful shallow-copy payload.
type CPUContext struct {
	EIP, ESP, EBP      uint32
	EAX, EBX, ECX, EDX uint32
	ESI, EDI           uint32
	EFLAGS             uint32
}

// Entry is the Go stand-in for a process's machine-code entry point: a
// closure the scheduler invokes cooperatively. It receives the process so
// it can read its own event queue, pid, and so on.
type Entry func(p *Process)

// State is the original's ProcessState: a context plus the stack region a
// process owns outright. No page directory field: this kernel has no
// demand paging (spec.md Non-goals), so there is nothing to swap.
type State struct {
	Context   CPUContext
	Stack     []byte
	StackSize uint32
}

// ring is the bounded FIFO queue of input events a process owns
// (spec.md §3 "Event queue"). Producers run on separate goroutines
// (kbps2, mouseps2, pci), so pushes and pops are mutex-guarded — the
// host stand-in for the original's "interrupts masked" discipline
// (spec.md §5).
type ring struct {
	mu    sync.Mutex
	buf   [EventQueueCapacity]event.Event
	count int
	head  int // next slot to pop
}

func (r *ring) push(ev event.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.count == EventQueueCapacity {
		return false
	}
	tail := (r.head + r.count) % EventQueueCapacity
	r.buf[tail] = ev
	r.count++
	return true
}

func (r *ring) pop() (event.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.count == 0 {
		return event.Event{}, false
	}
	ev := r.buf[r.head]
	r.head = (r.head + 1) % EventQueueCapacity
	r.count--
	return ev, true
}

// Process is the kernel-wide process descriptor (spec.md §3).
type Process struct {
	PID         int
	Name        string
	Entry       Entry
	Current     State
	Saved       *State
	Alive       bool
	Speculative bool
	LogicalTime uint64
	WaitHook    *hooks.Hook

	// KeyboardHandler is the per-process callback register_keyboard_handler
	// installs; nil means the process only consumes keyboard input via its
	// event queue.
	KeyboardHandler func(event.KeyboardEvent)

	// Window is set by the compositor (kernel/gfx) when this process owns
	// a window; left untyped here so kernel/process has no dependency on
	// kernel/gfx (the original's Process only ever holds a pointer, never
	// interprets it).
	Window any

	events ring
}

// New constructs a process in the running (Alive) state. stackSize
// reserves a backing buffer the way the original's loader reserves a
// stack region per process (spec.md §4.8).
func New(pid int, name string, entry Entry, speculative bool, stackSize uint32) *Process {
	return &Process{
		PID:         pid,
		Name:        name,
		Entry:       entry,
		Speculative: speculative,
		Alive:       true,
		Current: State{
			Stack:     make([]byte, stackSize),
			StackSize: stackSize,
		},
	}
}

// Kill marks the process dead; the scheduler drops it on its next visit
// (spec.md §5 "Cancellation & timeouts").
func (p *Process) Kill() {
	p.Alive = false
}

// SaveContinuation snapshots the process's current state, mirroring the
// original's save_continuation (a shallow copy onto the kernel heap).
func (p *Process) SaveContinuation() *State {
	saved := p.Current
	return &saved
}

// RestoreContinuation installs a previously saved state as current.
func (p *Process) RestoreContinuation(state *State) {
	if state == nil {
		return
	}
	p.Current = *state
}

// RegisterKeyboardHandler installs the per-process keyboard callback.
func (p *Process) RegisterKeyboardHandler(h func(event.KeyboardEvent)) {
	p.KeyboardHandler = h
}

// PushEvent enqueues ev, dropping it and returning false if the queue is
// full (spec.md §8 testable property 7: "last push is dropped").
func (p *Process) PushEvent(ev event.Event) bool {
	return p.events.push(ev)
}

// PopEvent dequeues the oldest pending event, oldest-first.
func (p *Process) PopEvent() (event.Event, bool) {
	return p.events.pop()
}

// PendingEvents reports how many events are queued, for poll_event and
// introspection.
func (p *Process) PendingEvents() int {
	p.events.mu.Lock()
	defer p.events.mu.Unlock()
	return p.events.count
}
