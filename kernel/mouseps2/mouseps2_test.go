package mouseps2

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFeedAssemblesThreeBytePacketAndMovesPosition(t *testing.T) {
	d := NewDecoder(640, 480)
	d.SetPosition(100, 100)

	d.Feed(packetAlwaysOne) // byte 0: sync bit only, no buttons, no overflow
	d.Feed(10)              // dx = +10
	ev, ok := d.Feed(5)     // dy raw = +5 -> screen dy = -5
	require.True(t, ok)
	require.Equal(t, int32(110), ev.X)
	require.Equal(t, int32(95), ev.Y)
	require.Equal(t, int16(10), ev.DX)
	require.Equal(t, int16(-5), ev.DY)
}

func TestFeedReturnsFalseUntilPacketComplete(t *testing.T) {
	d := NewDecoder(640, 480)
	_, ok := d.Feed(packetAlwaysOne)
	require.False(t, ok)
	_, ok = d.Feed(0)
	require.False(t, ok)
}

func TestFeedDiscardsLeadingByteMissingSyncBit(t *testing.T) {
	d := NewDecoder(640, 480)
	_, ok := d.Feed(0x00) // no 0x08 bit: resync, should not arm packetIndex
	require.False(t, ok)

	// next three bytes now form a fresh, valid packet
	d.Feed(packetAlwaysOne)
	d.Feed(0)
	ev, ok := d.Feed(0)
	require.True(t, ok)
	require.Equal(t, int16(0), ev.DX)
}

func TestFeedDropsPacketOnAxisOverflow(t *testing.T) {
	d := NewDecoder(640, 480)
	d.SetPosition(100, 100)

	d.Feed(packetAlwaysOne | packetXOverflow)
	d.Feed(50)
	_, ok := d.Feed(0)
	require.False(t, ok, "overflowed packet must be discarded, not applied")
	require.Equal(t, int32(100), d.State().X, "position must be unchanged after a discarded packet")
}

func TestFeedClampsPositionToScreenBounds(t *testing.T) {
	d := NewDecoder(640, 480)
	d.SetPosition(635, 475)

	d.Feed(packetAlwaysOne)
	d.Feed(127) // large positive dx
	ev, ok := d.Feed(0x80) // int8(0x80) == -128, screen dy = +128
	require.True(t, ok)
	require.Equal(t, int32(639), ev.X)
	require.Equal(t, int32(479), ev.Y)
}

func TestFeedDecodesButtonsAndChanged(t *testing.T) {
	d := NewDecoder(640, 480)

	ev, ok := d.Feed(packetAlwaysOne | 0x01) // left button down
	require.False(t, ok)
	d.Feed(0)
	ev, ok = d.Feed(0)
	require.True(t, ok)
	require.Equal(t, uint8(0x01), ev.Buttons)
	require.Equal(t, uint8(0x01), ev.Changed, "button transitioned from released to pressed")

	d.Feed(packetAlwaysOne | 0x01) // still held: no change
	d.Feed(0)
	ev, ok = d.Feed(0)
	require.True(t, ok)
	require.Equal(t, uint8(0x00), ev.Changed)

	d.Feed(packetAlwaysOne) // released
	d.Feed(0)
	ev, ok = d.Feed(0)
	require.True(t, ok)
	require.Equal(t, uint8(0x01), ev.Changed)
	require.Equal(t, uint8(0x00), ev.Buttons)
}

func TestEnableScrollWheelSwitchesToFourBytePackets(t *testing.T) {
	d := NewDecoder(640, 480)
	require.False(t, d.HasScrollWheel())
	d.EnableScrollWheel()
	require.True(t, d.HasScrollWheel())

	d.Feed(packetAlwaysOne)
	d.Feed(0)
	_, ok := d.Feed(0)
	require.False(t, ok, "4-byte mode should not complete a packet after only 3 bytes")

	ev, ok := d.Feed(3) // scroll byte
	require.True(t, ok)
	require.Equal(t, int8(3), ev.ScrollY)
}

func TestIsScrollWheelDeviceID(t *testing.T) {
	require.True(t, IsScrollWheelDeviceID(0x03))
	require.True(t, IsScrollWheelDeviceID(0x04))
	require.False(t, IsScrollWheelDeviceID(0x00))
}

func TestScrollWheelMagicSequenceIsTheKnownThreeRates(t *testing.T) {
	require.Equal(t, [3]uint8{200, 100, 80}, ScrollWheelMagicSequence())
}

func TestStateReflectsAvailabilityOnlyAfterFirstPacket(t *testing.T) {
	d := NewDecoder(640, 480)
	require.False(t, d.State().Available)

	d.Feed(packetAlwaysOne)
	d.Feed(0)
	d.Feed(0)
	require.True(t, d.State().Available)
}

// fakePort is a simulated PS/2 controller: WriteCommand/WriteData just
// append to a log, ReadStatus always reports output-full so waits
// never spin, and ReadData returns queued acknowledgment bytes in
// order.
type fakePort struct {
	commands []uint8
	data     []uint8
	acks     []uint8
	ackIdx   int
}

func (f *fakePort) ReadStatus() uint8 { return statusOutputFull }
func (f *fakePort) ReadData() uint8 {
	if f.ackIdx >= len(f.acks) {
		return 0
	}
	v := f.acks[f.ackIdx]
	f.ackIdx++
	return v
}
func (f *fakePort) WriteCommand(cmd uint8) { f.commands = append(f.commands, cmd) }
func (f *fakePort) WriteData(d uint8)      { f.data = append(f.data, d) }

func TestInitializeSucceedsWhenMouseAcknowledges(t *testing.T) {
	port := &fakePort{acks: []uint8{0x00, 0xFA, 0xFA}}
	require.True(t, Initialize(port))
	require.Contains(t, port.commands, uint8(0xA8))
}

func TestInitializeFailsWithoutAcknowledgment(t *testing.T) {
	port := &fakePort{acks: []uint8{0x00, 0x00, 0x00}}
	require.False(t, Initialize(port))
}

func TestAuxDataPending(t *testing.T) {
	require.True(t, AuxDataPending(statusAuxData))
	require.False(t, AuxDataPending(0x00))
}
