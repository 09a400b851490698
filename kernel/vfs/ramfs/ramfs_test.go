package ramfs

import (
	"testing"

	"github.com/antpln/continuumos/kernel/kerr"
	"github.com/antpln/continuumos/kernel/vfs"
	"github.com/stretchr/testify/require"
)

func mustMount(t *testing.T) (*vfs.VFS, *FS) {
	t.Helper()
	v := vfs.New()
	fs := New()
	require.NoError(t, v.Mount("/", vfs.FSRamFS, 0, fs))
	return v, fs
}

// TestWriteReadRoundTrip is spec.md §8's RAM-FS round trip property.
func TestWriteReadRoundTrip(t *testing.T) {
	v, _ := mustMount(t)
	require.NoError(t, v.Create("/greeting"))

	fd, err := v.Open("/greeting")
	require.NoError(t, err)
	n, err := v.Write(fd, []byte("hello ramfs"))
	require.NoError(t, err)
	require.Equal(t, 11, n)
	require.NoError(t, v.Seek(fd, 0))

	buf := make([]byte, 11)
	n, err = v.Read(fd, buf)
	require.NoError(t, err)
	require.Equal(t, 11, n)
	require.Equal(t, "hello ramfs", string(buf))
	require.NoError(t, v.Close(fd))
}

func TestFileSizeIsHighWaterMark(t *testing.T) {
	v, _ := mustMount(t)
	require.NoError(t, v.Create("/f"))
	fd, err := v.Open("/f")
	require.NoError(t, err)
	_, err = v.Write(fd, []byte("0123456789"))
	require.NoError(t, err)
	require.NoError(t, v.Seek(fd, 2))
	_, err = v.Write(fd, []byte("ab"))
	require.NoError(t, err)
	require.NoError(t, v.Close(fd))

	info, err := v.Stat("/f")
	require.NoError(t, err)
	require.EqualValues(t, 10, info.Size)
}

func TestMkdirAndReaddir(t *testing.T) {
	v, _ := mustMount(t)
	require.NoError(t, v.Mkdir("/dir"))
	require.NoError(t, v.Create("/dir/a"))
	require.NoError(t, v.Create("/dir/b"))

	entries, err := v.Readdir("/dir")
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestRemoveRequiresNoOpenHandles(t *testing.T) {
	v, _ := mustMount(t)
	require.NoError(t, v.Create("/f"))
	fd, err := v.Open("/f")
	require.NoError(t, err)

	err = v.Remove("/f")
	require.Error(t, err)

	require.NoError(t, v.Close(fd))
	require.NoError(t, v.Remove("/f"))
}

func TestRmdirRequiresEmptyAndNoOpenHandlesInSubtree(t *testing.T) {
	v, _ := mustMount(t)
	require.NoError(t, v.Mkdir("/dir"))
	require.NoError(t, v.Create("/dir/f"))

	require.Error(t, v.Rmdir("/dir"), "not empty")

	fd, err := v.Open("/dir/f")
	require.NoError(t, err)
	require.Error(t, v.Rmdir("/dir"), "open handle in subtree")

	require.NoError(t, v.Close(fd))
	require.NoError(t, v.Remove("/dir/f"))
	require.NoError(t, v.Rmdir("/dir"))
}

func TestRootCannotBeRemoved(t *testing.T) {
	v, _ := mustMount(t)
	require.ErrorIs(t, v.Rmdir("/"), kerr.InvalidPath)
}

func TestOpenDirectoryAsFileFails(t *testing.T) {
	v, _ := mustMount(t)
	require.NoError(t, v.Mkdir("/dir"))
	_, err := v.Open("/dir")
	require.Error(t, err)
}
