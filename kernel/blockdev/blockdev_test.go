package blockdev

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func makeImage(t *testing.T, sectors int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "disk.img")
	require.NoError(t, os.WriteFile(path, make([]byte, sectors*SectorSize), 0644))
	return path
}

func TestWriteThenReadSectorsRoundTrip(t *testing.T) {
	path := makeImage(t, 4)
	dev, err := Open(path, nil)
	require.NoError(t, err)
	defer dev.Close()

	payload := make([]byte, SectorSize)
	for i := range payload {
		payload[i] = byte(i)
	}
	require.NoError(t, dev.WriteSectors(2, 1, payload))

	out := make([]byte, SectorSize)
	require.NoError(t, dev.ReadSectors(2, 1, out))
	require.Equal(t, payload, out)
}

func TestSectorCountMatchesFileSize(t *testing.T) {
	path := makeImage(t, 10)
	dev, err := Open(path, nil)
	require.NoError(t, err)
	defer dev.Close()

	count, err := dev.SectorCount()
	require.NoError(t, err)
	require.EqualValues(t, 10, count)
}

func TestOpenTwiceFailsAdvisoryLock(t *testing.T) {
	path := makeImage(t, 2)
	dev, err := Open(path, nil)
	require.NoError(t, err)
	defer dev.Close()

	_, err = Open(path, nil)
	require.Error(t, err)
}

func TestReadBufferTooSmallFails(t *testing.T) {
	path := makeImage(t, 2)
	dev, err := Open(path, nil)
	require.NoError(t, err)
	defer dev.Close()

	err = dev.ReadSectors(0, 1, make([]byte, SectorSize-1))
	require.Error(t, err)
}

func TestCloseIsIdempotentAndBlocksFurtherIO(t *testing.T) {
	path := makeImage(t, 2)
	dev, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, dev.Close())
	require.NoError(t, dev.Close())

	err = dev.ReadSectors(0, 1, make([]byte, SectorSize))
	require.Error(t, err)
}
