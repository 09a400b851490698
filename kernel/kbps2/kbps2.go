// Package kbps2 implements the scancode-set-1-to-ASCII translation and
// modifier-state tracking spec.md §3's Event shape needs a producer for:
// keyboard.h/keyboard.cpp is out of scope as a real PS/2 ISR (spec.md's
// "OUT of scope" boundary), but the *translation table* itself — the
// original's scancode_to_ascii array, kb_to_ascii's shift/caps folding,
// and read_keyboard's release/extended/modifier bookkeeping — is pure
// logic with no port I/O in it, so it gets a home here for the
// shell/editor layer to consume real KeyboardEvent values from instead
// of hand-built fakes everywhere.
//
// Grounded on the original's kernel/keyboard.cpp. keyboard.h itself did
// not survive retrieval; the named scancode constants below
// (KBD_SCANCODE_SHIFT_LEFT=0x2A, _RIGHT=0x36, _CAPS_LOCK=0x3A,
// _ENTER=0x1C, _BACKSPACE=0x0E, _RELEASE=0x80) are the standard PC
// scancode-set-1 values keyboard.cpp's logic implies (the release bit
// convention `scancode | KBD_SCANCODE_RELEASE` only makes sense for the
// well-known set-1 layout), not values invented for this repository.
package kbps2

import "github.com/antpln/continuumos/kernel/event"

const (
	scancodeShiftLeft  = 0x2A
	scancodeShiftRight = 0x36
	scancodeCapsLock   = 0x3A
	scancodeEnter      = 0x1C
	scancodeBackspace  = 0x0E
	scancodeRelease    = 0x80

	scancodeExtendedPrefix = 0xE0
	scancodeUpArrow        = 0x48
	scancodeDownArrow      = 0x50
	scancodeLeftArrow      = 0x4B
	scancodeRightArrow     = 0x4D
)

// scancodeToASCII is the original's scancode_to_ascii[128]: unshifted US
// QWERTY set-1 mappings, 0 where a scancode has no direct ASCII value.
var scancodeToASCII = [128]byte{
	0, 0, '1', '2', '3', '4', '5', '6', '7', '8', '9', '0', '-', '=', 0, 0,
	'q', 'w', 'e', 'r', 't', 'y', 'u', 'i', 'o', 'p', '[', ']', '\n', 0,
	'a', 's', 'd', 'f', 'g', 'h', 'j', 'k', 'l', ';', '\'', '`', 0, '\\',
	'z', 'x', 'c', 'v', 'b', 'n', 'm', ',', '.', '/', 0, '*', 0, ' ',
}

func toUpper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - ('a' - 'A')
	}
	return c
}

// ToASCII folds a scancode through the unshifted table, upper-casing
// letters when shift or caps lock is active (the original's
// kb_to_ascii). Returns 0 for scancodes with no ASCII mapping or out of
// the table's range.
func ToASCII(scancode uint8, shift, capsLock bool) byte {
	if scancode >= 128 {
		return 0
	}
	ascii := scancodeToASCII[scancode]
	if (shift || capsLock) && ascii >= 'a' && ascii <= 'z' {
		ascii = toUpper(ascii)
	}
	return ascii
}

// Decoder tracks the modifier state a bare scancode stream needs folded
// in (shift latch, caps-lock toggle, extended-prefix pending) — the
// original's static shift_pressed/caps_lock_active/extended locals in
// read_keyboard, made instance state instead of process-global so tests
// and multiple simulated keyboards don't share it.
type Decoder struct {
	shiftPressed   bool
	capsLockActive bool
	extendedNext   bool
}

// NewDecoder returns a Decoder with every modifier released.
func NewDecoder() *Decoder { return &Decoder{} }

// Feed translates one raw scancode byte into a KeyboardEvent, updating
// and consulting modifier state exactly as the original's read_keyboard
// does: an 0xE0 prefix byte only arms the "next scancode is extended"
// flag and returns immediately; the following byte carries Special plus
// whichever arrow flag it maps to.
func (d *Decoder) Feed(scancode uint8) event.KeyboardEvent {
	ev := event.KeyboardEvent{
		Scancode: scancode,
		Shift:    d.shiftPressed,
		CapsLock: d.capsLockActive,
	}

	if scancode == scancodeExtendedPrefix {
		d.extendedNext = true
		ev.Special = true
		return ev
	}

	if d.extendedNext {
		switch scancode {
		case scancodeUpArrow:
			ev.UpArrow = true
		case scancodeDownArrow:
			ev.DownArrow = true
		case scancodeLeftArrow:
			ev.LeftArrow = true
		case scancodeRightArrow:
			ev.RightArrow = true
		}
		ev.Special = true
		d.extendedNext = false
	}

	switch scancode {
	case scancodeShiftLeft, scancodeShiftRight:
		d.shiftPressed = true
	case scancodeShiftLeft | scancodeRelease, scancodeShiftRight | scancodeRelease:
		d.shiftPressed = false
	}
	ev.Shift = d.shiftPressed

	ev.Release = scancode&scancodeRelease != 0
	if scancode == scancodeCapsLock {
		d.capsLockActive = !d.capsLockActive
	}
	ev.CapsLock = d.capsLockActive
	ev.Enter = scancode == scancodeEnter
	ev.Backspace = scancode == scancodeBackspace
	ev.ASCII = ToASCII(scancode, ev.Shift, ev.CapsLock)

	return ev
}
