package kbps2

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToASCIIBasicLetter(t *testing.T) {
	require.Equal(t, byte('q'), ToASCII(0x10, false, false))
	require.Equal(t, byte('Q'), ToASCII(0x10, true, false))
	require.Equal(t, byte('Q'), ToASCII(0x10, false, true))
}

func TestToASCIIOutOfRangeReturnsZero(t *testing.T) {
	require.Equal(t, byte(0), ToASCII(200, false, false))
}

func TestDecoderTracksShiftLatch(t *testing.T) {
	d := NewDecoder()
	ev := d.Feed(0x10) // 'q' unshifted
	require.Equal(t, byte('q'), ev.ASCII)
	require.False(t, ev.Shift)

	d.Feed(scancodeShiftLeft) // press shift
	ev = d.Feed(0x10)
	require.True(t, ev.Shift)
	require.Equal(t, byte('Q'), ev.ASCII)

	d.Feed(scancodeShiftLeft | scancodeRelease) // release shift
	ev = d.Feed(0x10)
	require.False(t, ev.Shift)
	require.Equal(t, byte('q'), ev.ASCII)
}

func TestDecoderTogglesCapsLock(t *testing.T) {
	d := NewDecoder()
	ev := d.Feed(scancodeCapsLock)
	require.True(t, ev.CapsLock)
	ev = d.Feed(0x10)
	require.Equal(t, byte('Q'), ev.ASCII)

	d.Feed(scancodeCapsLock)
	ev = d.Feed(0x10)
	require.False(t, ev.CapsLock)
	require.Equal(t, byte('q'), ev.ASCII)
}

func TestDecoderExtendedArrowSequence(t *testing.T) {
	d := NewDecoder()
	prefix := d.Feed(scancodeExtendedPrefix)
	require.True(t, prefix.Special)

	arrow := d.Feed(scancodeUpArrow)
	require.True(t, arrow.UpArrow)
	require.True(t, arrow.Special)
}

func TestDecoderEnterAndBackspaceFlags(t *testing.T) {
	d := NewDecoder()
	enter := d.Feed(scancodeEnter)
	require.True(t, enter.Enter)
	require.Equal(t, byte('\n'), enter.ASCII)

	bs := d.Feed(scancodeBackspace)
	require.True(t, bs.Backspace)
}

func TestDecoderReleaseFlag(t *testing.T) {
	d := NewDecoder()
	ev := d.Feed(0x10 | scancodeRelease)
	require.True(t, ev.Release)
}
