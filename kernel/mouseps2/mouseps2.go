// Package mouseps2 implements spec.md's PS/2 AUX mouse packet decoding:
// the scroll-wheel negotiation handshake, 3/4-byte packet assembly, and
// the overflow/sign/clamp arithmetic that turns a raw packet into an
// event.MouseEvent plus a queryable absolute MouseState.
//
// Grounded on the original's kernel/mouse.cpp: mouse_initialize's AUX
// enable/status-register/streaming sequence, try_enable_scroll_wheel's
// magic sample-rate sequence (200, 100, 80) followed by a device-ID
// probe (0x03/0x04 selects 4-byte packets), and handle_packet's
// decode — x/y overflow bits in byte 0 (0x40, 0x80) discard the whole
// packet, dx is a sign-extended int8 from byte 1, dy is the *negation*
// of a sign-extended int8 from byte 2 (PS/2's y axis increases upward,
// the framebuffer's increases downward), and buttons occupy the low 3
// bits of byte 0. Port I/O (0x64 command, 0x60 data) is a HAL concern
// left at the Port interface below, same as pci.ConfigSpace stands in
// for 0xCF8/0xCFC.
package mouseps2

import (
	"sync"

	"github.com/antpln/continuumos/kernel/event"
)

// Status register bits read back from the command port (the original's
// mouse_wait poll loop).
const (
	statusOutputFull uint8 = 0x01
	statusInputFull  uint8 = 0x02
	statusAuxData    uint8 = 0x20
)

// Packet byte-0 bits (handle_packet's overflow/button decode).
const (
	packetAlwaysOne uint8 = 0x08
	packetXOverflow uint8 = 0x40
	packetYOverflow uint8 = 0x80
	packetButtons   uint8 = 0x07
)

// scrollWheelMagicRates is the "magic sequence" try_enable_scroll_wheel
// writes via the set-sample-rate command before probing the device ID;
// a mouse that supports the Intellimouse extension switches to 4-byte
// packets and reports device ID 3 (or 4 with the 5-button extension)
// afterward.
var scrollWheelMagicRates = [3]uint8{200, 100, 80}

// Port is the command/data port pair mouse_wait/mouse_write/mouse_read
// drive (0x64 and 0x60). A real kernel implements it with inb/outb
// against those I/O ports; tests and cmd/continuumctl supply a
// simulated controller instead.
type Port interface {
	ReadStatus() uint8
	ReadData() uint8
	WriteCommand(cmd uint8)
	WriteData(data uint8)
}

// MouseState is the queryable absolute-position snapshot the original's
// mouse_get_state() returns.
type MouseState struct {
	X, Y      int32
	Buttons   uint8
	Available bool
}

// Decoder accumulates PS/2 AUX bytes into packets and decodes them into
// MouseEvents, tracking absolute position and button state across
// calls. Unlike the original's file-static g_packet/g_mouse_x/..., each
// Decoder owns its own state so tests and multiple simulated devices
// never share one.
type Decoder struct {
	mu sync.Mutex

	screenW, screenH int32
	hasScrollWheel   bool
	bytesPerPacket   int

	packet      [4]uint8
	packetIndex int

	x, y    int32
	buttons uint8

	available bool
}

// NewDecoder returns a Decoder clamping positions to a screenW x
// screenH framebuffer. A zero width or height disables clamping to an
// upper bound (positions are still clamped to be non-negative).
func NewDecoder(screenW, screenH int32) *Decoder {
	return &Decoder{
		screenW:        screenW,
		screenH:        screenH,
		bytesPerPacket: 3,
	}
}

// EnableScrollWheel switches the decoder to 4-byte packets, the state
// try_enable_scroll_wheel puts the driver into once the device ID probe
// (performed by the caller against Port, mirroring the original's
// sequence) comes back 3 or 4.
func (d *Decoder) EnableScrollWheel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hasScrollWheel = true
	d.bytesPerPacket = 4
}

// HasScrollWheel reports whether 4-byte packets are active.
func (d *Decoder) HasScrollWheel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hasScrollWheel
}

// ScrollWheelMagicSequence returns the sample-rate bytes a caller
// should write via Port (set-sample-rate command 0xF3 before each) to
// negotiate the Intellimouse extension, and the device-ID values that
// indicate success once probed afterward with 0xF2.
func ScrollWheelMagicSequence() [3]uint8 { return scrollWheelMagicRates }

// IsScrollWheelDeviceID reports whether a device-ID probe result
// indicates the Intellimouse (3) or 5-button Intellimouse (4)
// extension is active.
func IsScrollWheelDeviceID(id uint8) bool { return id == 0x03 || id == 0x04 }

// Reset clears packet-assembly state (the original does this on
// initialization and whenever a malformed byte stream is detected).
func (d *Decoder) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.packetIndex = 0
	d.available = true
}

// Feed appends one raw byte to the in-progress packet, returning a
// decoded MouseEvent and true once a full packet has been assembled
// and it passed the overflow check. The first byte of a packet must
// have bit 0x08 set (the original's implicit framing byte); a
// desynced stream is resynchronized by discarding bytes that show up
// as a would-be first byte without that bit set.
func (d *Decoder) Feed(b uint8) (event.MouseEvent, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.packetIndex == 0 && b&packetAlwaysOne == 0 {
		return event.MouseEvent{}, false
	}

	d.packet[d.packetIndex] = b
	d.packetIndex++
	if d.packetIndex < d.bytesPerPacket {
		return event.MouseEvent{}, false
	}
	d.packetIndex = 0

	return d.handlePacketLocked()
}

func (d *Decoder) handlePacketLocked() (event.MouseEvent, bool) {
	status := d.packet[0]
	if status&(packetXOverflow|packetYOverflow) != 0 {
		// handle_packet: an overflowed axis makes the whole packet
		// untrustworthy, drop it rather than apply a corrupt delta.
		return event.MouseEvent{}, false
	}

	dx := int32(int8(d.packet[1]))
	dy := -int32(int8(d.packet[2])) // PS/2 y grows upward, the screen's grows downward

	prevX, prevY := d.x, d.y
	d.x = clamp(d.x+dx, 0, d.screenW-1, d.screenW > 0)
	d.y = clamp(d.y+dy, 0, d.screenH-1, d.screenH > 0)
	d.available = true

	buttons := status & packetButtons
	changed := buttons ^ d.buttons
	d.buttons = buttons

	var scrollY int8
	if d.hasScrollWheel && d.bytesPerPacket == 4 {
		scrollY = int8(d.packet[3])
	}

	ev := event.MouseEvent{
		X:         d.x,
		Y:         d.y,
		DX:        int16(d.x - prevX),
		DY:        int16(d.y - prevY),
		ScrollY:   scrollY,
		Buttons:   buttons,
		Changed:   changed,
		TargetPID: -1,
	}
	return ev, true
}

// clamp restricts v to [lo, hi] when bounded is true, and to [lo, +inf)
// otherwise (clamp_position falls back to non-negative-only when no
// framebuffer is attached yet).
func clamp(v, lo, hi int32, bounded bool) int32 {
	if v < lo {
		return lo
	}
	if bounded && v > hi {
		return hi
	}
	return v
}

// SetPosition forces the absolute position, e.g. to center the cursor
// at startup before any packets have arrived.
func (d *Decoder) SetPosition(x, y int32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.x = clamp(x, 0, d.screenW-1, d.screenW > 0)
	d.y = clamp(y, 0, d.screenH-1, d.screenH > 0)
}

// State returns the original's mouse_get_state() snapshot.
func (d *Decoder) State() MouseState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return MouseState{X: d.x, Y: d.y, Buttons: d.buttons, Available: d.available}
}

// Initialize runs the original's mouse_initialize enable sequence
// against port: enable the auxiliary device (0xA8), enable interrupts
// in the controller configuration byte, tell the mouse to use default
// settings (0xF6), and start streaming (0xF4). Returns false if the
// mouse never acknowledges (0xFA) the streaming command, mirroring the
// original's failure path of leaving the mouse disabled.
func Initialize(port Port) bool {
	const (
		cmdEnableAux        = 0xA8
		cmdReadConfig       = 0x20
		cmdWriteConfig      = 0x60
		cmdWriteToMouse     = 0xD4
		mouseSetDefaults    = 0xF6
		mouseEnableStream   = 0xF4
		mouseAck            = 0xFA
		configEnableIRQMask = 0x02
	)

	port.WriteCommand(cmdEnableAux)

	port.WriteCommand(cmdReadConfig)
	cfg := waitAndReadData(port)
	cfg |= configEnableIRQMask
	port.WriteCommand(cmdWriteConfig)
	port.WriteData(cfg)

	if !sendMouseCommand(port, mouseSetDefaults) {
		return false
	}
	return sendMouseCommand(port, mouseEnableStream)
}

// sendMouseCommand writes cmd to the mouse (routed through the
// controller's "next byte is for the AUX device" prefix) and waits for
// the 0xFA acknowledgment.
func sendMouseCommand(port Port, cmd uint8) bool {
	const cmdWriteToMouse = 0xD4
	const mouseAck = 0xFA
	port.WriteCommand(cmdWriteToMouse)
	port.WriteData(cmd)
	return waitAndReadData(port) == mouseAck
}

// waitAndReadData spins on the status register's output-full bit
// before reading the data port, the original's mouse_wait(true) +
// inb(0x60) pairing.
func waitAndReadData(port Port) uint8 {
	for i := 0; i < 100000; i++ {
		if port.ReadStatus()&statusOutputFull != 0 {
			break
		}
	}
	return port.ReadData()
}

// AuxDataPending reports whether the status register indicates the
// next output byte belongs to the AUX device rather than the keyboard
// (the original's IRQ12 dispatch check before routing a byte to the
// mouse packet accumulator instead of the keyboard decoder).
func AuxDataPending(status uint8) bool {
	return status&statusAuxData != 0
}
