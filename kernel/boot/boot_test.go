package boot

import (
	"sync"
	"testing"
	"time"

	"github.com/antpln/continuumos/kernel/event"
	"github.com/antpln/continuumos/kernel/gfx"
	"github.com/antpln/continuumos/kernel/kbps2"
	"github.com/antpln/continuumos/kernel/mouseps2"
	"github.com/antpln/continuumos/kernel/pci"
	"github.com/antpln/continuumos/kernel/process"
	"github.com/antpln/continuumos/kernel/scheduler"
	"github.com/stretchr/testify/require"
)

// fakeKeyboard is a KeyboardPort double feeding a fixed scancode queue.
type fakeKeyboard struct {
	mu    sync.Mutex
	queue []uint8
}

func (f *fakeKeyboard) push(scancodes ...uint8) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, scancodes...)
}

func (f *fakeKeyboard) HasScancode() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue) > 0
}

func (f *fakeKeyboard) ReadScancode() uint8 {
	f.mu.Lock()
	defer f.mu.Unlock()
	sc := f.queue[0]
	f.queue = f.queue[1:]
	return sc
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func TestKeyboardScancodesReachForegroundProcess(t *testing.T) {
	sched := scheduler.New()
	p := process.New(1, "shell", func(*process.Process) {}, false, 4096)
	require.NoError(t, sched.Add(p))
	sched.SetForeground(1)
	p.PopEvent() // drain the FOCUS_GAINED SetForeground pushed

	kb := &fakeKeyboard{}
	sys := Start(Config{
		Sched:           sched,
		Keyboard:        kb,
		KeyboardDecoder: kbps2.NewDecoder(),
		PollInterval:    time.Millisecond,
	})
	defer sys.Stop()

	kb.push(0x1E) // 'a'
	waitUntil(t, func() bool {
		ev, ok := p.PopEvent()
		if ok && ev.Type == event.Keyboard && ev.Keyboard.ASCII == 'a' {
			return true
		}
		return false
	})
}

// fakeMouse is a mouseps2.Port double reporting one pending AUX byte at a
// time from a fixed packet queue.
type fakeMouse struct {
	mu     sync.Mutex
	packet []uint8
}

func (f *fakeMouse) pushPacket(b ...uint8) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.packet = append(f.packet, b...)
}
func (f *fakeMouse) ReadStatus() uint8 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.packet) == 0 {
		return 0
	}
	return 0x21 // output-full + AUX-data, matching the original's IRQ12 gate
}
func (f *fakeMouse) ReadData() uint8 {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := f.packet[0]
	f.packet = f.packet[1:]
	return b
}
func (f *fakeMouse) WriteCommand(cmd uint8) {}
func (f *fakeMouse) WriteData(data uint8)   {}

func TestMouseClickRetargetsForeground(t *testing.T) {
	sched := scheduler.New()
	fb := gfx.New(640, 480, 32)
	comp := gfx.Init(fb)

	owner := comp.RequestNewWindow(2, "app")
	owner.FrameX, owner.FrameY = 0, 0
	p := process.New(2, "app", func(*process.Process) {}, false, 4096)
	p.Window = owner
	require.NoError(t, sched.Add(p))

	mouse := &fakeMouse{}
	decoder := mouseps2.NewDecoder(640, 480)
	sys := Start(Config{
		Sched:        sched,
		Compositor:   comp,
		Mouse:        mouse,
		MouseDecoder: decoder,
		PollInterval: time.Millisecond,
	})
	defer sys.Stop()

	row, col := owner.FrameY+1, owner.FrameX+1
	mouse.pushPacket(0x08|0x01, uint8(col), uint8(-row&0xFF))

	waitUntil(t, func() bool { return sched.Foreground() == 2 })
}

func TestPCIRescanPopulatesDevices(t *testing.T) {
	cfg := &fakeConfigSpace{}
	bus := pci.New(cfg, nil)
	sys := Start(Config{PCI: bus, PCIRescanInterval: 2 * time.Millisecond})
	defer sys.Stop()

	waitUntil(t, func() bool { return bus.DeviceCount() > 0 })
}

// fakeConfigSpace reports exactly one device at bus 0 device 0 function 0.
type fakeConfigSpace struct{}

func (f *fakeConfigSpace) ReadConfigDword(bus, device, function uint8, offset uint8) uint32 {
	if bus != 0 || device != 0 || function != 0 {
		return 0xFFFFFFFF
	}
	switch offset {
	case 0x00:
		return 0x00011234 // device=0x0001, vendor=0x1234
	default:
		return 0
	}
}

func TestStopIsIdempotentWithNoServicesConfigured(t *testing.T) {
	sys := Start(Config{})
	require.NoError(t, sys.Stop())
}
