// Package boot brings spec.md §4.10's three independent kernel services —
// the PIT-driven timer, the PCI enumerator, and the PS/2 keyboard/mouse
// decoders — up concurrently and tears them down together, the Go
// equivalent of the original's sequential kernel_main initialization
// list with no ordering dependency between these particular steps.
//
// Grounded on _examples/original_source/src/kernel/kernel.cpp's boot
// sequence (timer_init, pci_init, keyboard/mouse polling all happening
// before the scheduler's first pick), re-expressed with
// golang.org/x/sync/errgroup driving each service's polling loop on its
// own goroutine under one cancelable context instead of one big
// interrupt-driven main loop.
package boot

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/antpln/continuumos/internal/kserial"
	"github.com/antpln/continuumos/kernel/event"
	"github.com/antpln/continuumos/kernel/gfx"
	"github.com/antpln/continuumos/kernel/kbps2"
	"github.com/antpln/continuumos/kernel/mouseps2"
	"github.com/antpln/continuumos/kernel/pci"
	"github.com/antpln/continuumos/kernel/scheduler"
	"github.com/antpln/continuumos/kernel/timer"
)

// KeyboardPort is the HAL seam boot polls for raw PS/2 scancodes off the
// controller's data port (0x60), the keyboard-side counterpart of
// mouseps2.Port: a real kernel backs it with inb against that port,
// tests and cmd/continuumctl supply a simulated stream instead.
type KeyboardPort interface {
	HasScancode() bool
	ReadScancode() uint8
}

// Config bundles every subsystem a boot sequence may bring up. Any
// pointer may be nil to leave that service unstarted: a headless test
// kernel might wire only Sched, while cmd/continuumctl wires all of
// them.
type Config struct {
	Sched      *scheduler.Table
	Compositor *gfx.Compositor

	Timer *timer.Timer

	PCI               *pci.Bus
	PCIRescanInterval time.Duration

	Keyboard        KeyboardPort
	KeyboardDecoder *kbps2.Decoder

	Mouse        mouseps2.Port
	MouseDecoder *mouseps2.Decoder

	PollInterval time.Duration
	Log          *kserial.Logger
}

// System is a running boot sequence: the timer's own background ticker
// (started and stopped directly, since timer.Timer already manages its
// own goroutine) plus this package's keyboard/mouse/PCI polling
// goroutines, all canceled together by Stop.
type System struct {
	cfg    Config
	cancel context.CancelFunc
	group  *errgroup.Group
}

// Start brings every configured service up concurrently and returns
// immediately; services run until Stop is called or one of them returns
// a non-nil error, which cancels the rest (errgroup.WithContext).
func Start(cfg Config) *System {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = time.Millisecond
	}
	if cfg.PCIRescanInterval == 0 {
		cfg.PCIRescanInterval = time.Second
	}
	if cfg.Log == nil {
		cfg.Log = kserial.NewDiscard()
	}

	ctx, cancel := context.WithCancel(context.Background())
	group, gctx := errgroup.WithContext(ctx)
	sys := &System{cfg: cfg, cancel: cancel, group: group}

	if cfg.Timer != nil {
		cfg.Timer.Start()
	}
	if cfg.PCI != nil {
		cfg.PCI.Init()
		group.Go(func() error { return sys.runPCIRescan(gctx) })
	}
	if cfg.Keyboard != nil && cfg.KeyboardDecoder != nil {
		group.Go(func() error { return sys.runKeyboard(gctx) })
	}
	if cfg.Mouse != nil && cfg.MouseDecoder != nil {
		group.Go(func() error { return sys.runMouse(gctx) })
	}
	return sys
}

// Stop cancels every running service's context and blocks until each has
// exited, then stops the timer's own goroutine. Returns the first
// non-nil error any service reported, if any.
func (s *System) Stop() error {
	s.cancel()
	err := s.group.Wait()
	if s.cfg.Timer != nil {
		s.cfg.Timer.Stop()
	}
	return err
}

func (s *System) runPCIRescan(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.PCIRescanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.cfg.PCI.ScanBus()
		}
	}
}

func (s *System) runKeyboard(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for s.cfg.Keyboard.HasScancode() {
				ke := s.cfg.KeyboardDecoder.Feed(s.cfg.Keyboard.ReadScancode())
				s.deliverToForeground(event.NewKeyboard(ke))
			}
		}
	}
}

func (s *System) runMouse(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for mouseDataReady(s.cfg.Mouse) {
				me, ok := s.cfg.MouseDecoder.Feed(s.cfg.Mouse.ReadData())
				if !ok {
					continue
				}
				s.deliverMouse(me)
			}
		}
	}
}

// mouseDataReady reports whether the controller's status register
// currently has an AUX (mouse) byte waiting, the same check the
// original's IRQ12 handler makes before routing a byte to the mouse
// packet accumulator instead of the keyboard decoder.
func mouseDataReady(port mouseps2.Port) bool {
	return mouseps2.AuxDataPending(port.ReadStatus())
}

// deliverToForeground pushes ev onto whichever process the scheduler
// currently treats as foreground, the routing the original's keyboard
// ISR performs by writing directly into that process's event queue.
func (s *System) deliverToForeground(ev event.Event) {
	if s.cfg.Sched == nil {
		return
	}
	fg := s.cfg.Sched.Foreground()
	if fg == 0 {
		return
	}
	for _, p := range s.cfg.Sched.Snapshot() {
		if p.PID == fg {
			p.PushEvent(ev)
			return
		}
	}
}

// deliverMouse runs the event through the compositor's hit-testing
// first (a click may retarget focus before the motion/button event
// itself is queued), matching the original's mouse ISR calling into the
// window manager before enqueuing to the focused process.
func (s *System) deliverMouse(me event.MouseEvent) {
	if s.cfg.Compositor != nil {
		if focusPID := s.cfg.Compositor.HandleMouseEvent(me); focusPID > 0 && s.cfg.Sched != nil {
			if focusPID != s.cfg.Sched.Foreground() {
				s.cfg.Sched.SetForeground(focusPID)
			}
		}
	}
	s.deliverToForeground(event.NewMouse(me))
}
