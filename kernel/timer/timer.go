// Package timer implements spec.md §4.10's PIT-driven preemption clock:
// a monotonic tick counter advanced at a configured frequency, each tick
// driving the scheduler's preemption decision and waking processes
// blocked on TIME_REACHED.
//
// Grounded on the original's PIT programming described in spec.md §6
// ("Channel 0, mode 3, divisor = 1193180 / frequency_hz, IRQ 0") and
// §4.10's prose ("Timer programs the PIT to a given Hz, increments a
// monotonic 32-bit tick counter in its ISR, and calls scheduler.on_tick
// plus resume_for_event(TIME_REACHED, tick)"). Programming a real PIT
// channel is a HAL concern left at its interface (spec.md's "OUT of
// scope"); Timer instead advances its tick counter from a Go ticker at
// the equivalent period, so scheduler.OnTick still fires at the
// requested rate.
package timer

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/antpln/continuumos/kernel/scheduler"
)

// PITBaseFrequency is the PIT's input clock (spec.md §6's divisor
// formula: divisor = PITBaseFrequency / frequency_hz).
const PITBaseFrequency = 1193180

// Divisor returns the PIT channel-0 divisor for hz, clamped to the
// 16-bit counter the original's hardware register holds.
func Divisor(hz uint32) uint16 {
	if hz == 0 {
		return 0xFFFF
	}
	d := PITBaseFrequency / hz
	if d > 0xFFFF {
		return 0xFFFF
	}
	if d == 0 {
		return 1
	}
	return uint16(d)
}

// Timer drives scheduler.Table.OnTick at a configured Hz.
type Timer struct {
	sched *scheduler.Table
	hz    uint32
	tick  atomic.Uint64

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// New constructs a Timer that will drive sched once Start is called.
func New(sched *scheduler.Table, hz uint32) *Timer {
	return &Timer{sched: sched, hz: hz}
}

// Tick returns the current tick count (the original's monotonic 32-bit
// counter, widened to 64 bits since nothing here needs it to wrap).
func (t *Timer) Tick() uint64 {
	return t.tick.Load()
}

// Hz reports the configured frequency.
func (t *Timer) Hz() uint32 {
	return t.hz
}

// Fire advances the tick counter by one and drives the scheduler (the
// original's PIT ISR body). Exposed directly so tests and a
// deterministic simulation can step the timer without waiting on a real
// clock.
func (t *Timer) Fire() {
	tick := t.tick.Add(1)
	t.sched.OnTick(tick)
}

// Start begins firing Fire once per tick period on a background
// goroutine, stopping when ctx-equivalent Stop is called or the period
// is zero. Calling Start while already running is a no-op.
func (t *Timer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running || t.hz == 0 {
		return
	}
	t.running = true
	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	period := time.Second / time.Duration(t.hz)

	go func() {
		defer close(t.done)
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-t.stop:
				return
			case <-ticker.C:
				t.Fire()
			}
		}
	}()
}

// Stop halts the background ticking goroutine, blocking until it has
// exited. Safe to call even if Start was never called.
func (t *Timer) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	stop := t.stop
	done := t.done
	t.running = false
	t.mu.Unlock()

	close(stop)
	<-done
}
