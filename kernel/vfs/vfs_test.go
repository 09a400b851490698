package vfs

import (
	"testing"

	"github.com/antpln/continuumos/kernel/kerr"
	"github.com/stretchr/testify/require"
)

// memHandle/memBackend is a minimal in-memory Backend used only to
// exercise the core dispatch logic (mount resolution, handle table,
// path normalisation) independent of ramfs/fat32.
type memHandle struct {
	data []byte
	pos  uint32
}

type memBackend struct {
	files map[string][]byte
	dirs  map[string]bool
}

func newMemBackend() *memBackend {
	return &memBackend{files: map[string][]byte{}, dirs: map[string]bool{"/": true}}
}

func (b *memBackend) Open(mount *Mount, path string) (Handle, error) {
	data, ok := b.files[path]
	if !ok {
		return nil, kerr.New(kerr.NotFound, path)
	}
	return &memHandle{data: data}, nil
}
func (b *memBackend) Read(h Handle, buf []byte) (int, error) {
	mh := h.(*memHandle)
	n := copy(buf, mh.data[mh.pos:])
	mh.pos += uint32(n)
	return n, nil
}
func (b *memBackend) Write(h Handle, buf []byte) (int, error) {
	mh := h.(*memHandle)
	mh.data = append(mh.data[:mh.pos], buf...)
	mh.pos += uint32(len(buf))
	return len(buf), nil
}
func (b *memBackend) Seek(h Handle, position uint32) error {
	h.(*memHandle).pos = position
	return nil
}
func (b *memBackend) Close(h Handle) {}
func (b *memBackend) Readdir(mount *Mount, path string) ([]Dirent, error) { return nil, nil }
func (b *memBackend) Mkdir(mount *Mount, path string) error {
	b.dirs[path] = true
	return nil
}
func (b *memBackend) Rmdir(mount *Mount, path string) error { delete(b.dirs, path); return nil }
func (b *memBackend) Create(mount *Mount, path string) error {
	b.files[path] = nil
	return nil
}
func (b *memBackend) Remove(mount *Mount, path string) error { delete(b.files, path); return nil }
func (b *memBackend) Stat(mount *Mount, path string) (Dirent, error) {
	if b.dirs[path] {
		return Dirent{Name: path, Type: TypeDirectory}, nil
	}
	if data, ok := b.files[path]; ok {
		return Dirent{Name: path, Type: TypeFile, Size: uint32(len(data))}, nil
	}
	return Dirent{}, kerr.New(kerr.NotFound, path)
}
func (b *memBackend) Unmount(mount *Mount) error { return nil }

func TestNormalizePathCollapsesAndResolvesDots(t *testing.T) {
	cases := map[string]string{
		"/a/b/../c":  "/a/c",
		"/a//b//":    "/a/b",
		"..":         "/",
		"/":          "/",
		"a/b":        "/home/a/b",
		"/a/../../b": "/b",
	}
	for in, want := range cases {
		got, err := NormalizePath("/home", in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
}

func TestNormalizePathRejectsOverlong(t *testing.T) {
	long := make([]byte, MaxPath+10)
	for i := range long {
		long[i] = 'a'
	}
	_, err := NormalizePath("/", "/"+string(long))
	require.ErrorIs(t, err, kerr.InvalidPath)
}

func TestMountLongestPrefixWins(t *testing.T) {
	v := New()
	require.NoError(t, v.Mount("/", FSRamFS, 0, newMemBackend()))
	sub := newMemBackend()
	require.NoError(t, v.Mount("/mnt/fat32", FSFat32, 0, sub))

	mount, rel, err := v.Resolve("/mnt/fat32/dir/file.txt")
	require.NoError(t, err)
	require.Equal(t, "/mnt/fat32", mount.MountPoint)
	require.Equal(t, "/dir/file.txt", rel)

	mount, rel, err = v.Resolve("/other/file.txt")
	require.NoError(t, err)
	require.Equal(t, "/", mount.MountPoint)
	require.Equal(t, "/other/file.txt", rel)
}

func TestMountRejectsDuplicateAndFull(t *testing.T) {
	v := New()
	require.NoError(t, v.Mount("/", FSRamFS, 0, newMemBackend()))
	require.ErrorIs(t, v.Mount("/", FSRamFS, 0, newMemBackend()), kerr.AlreadyMounted)

	for i := 0; i < MaxMounts-1; i++ {
		require.NoError(t, v.Mount("/m"+string(rune('a'+i)), FSRamFS, 0, newMemBackend()))
	}
	require.ErrorIs(t, v.Mount("/overflow", FSRamFS, 0, newMemBackend()), kerr.NoSpace)
}

func TestUnmountUnknownIsNotFound(t *testing.T) {
	v := New()
	require.ErrorIs(t, v.Unmount("/nope"), kerr.NotFound)
}

func TestOpenReadWriteCloseRoundTrip(t *testing.T) {
	v := New()
	be := newMemBackend()
	require.NoError(t, v.Mount("/", FSRamFS, 0, be))
	be.files["/hello.txt"] = []byte("hi")

	fd, err := v.Open("/hello.txt")
	require.NoError(t, err)

	buf := make([]byte, 2)
	n, err := v.Read(fd, buf)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, "hi", string(buf))

	require.NoError(t, v.Close(fd))
	_, err = v.Read(fd, buf)
	require.ErrorIs(t, err, kerr.NotFound)
}

func TestOpenMissingFileFails(t *testing.T) {
	v := New()
	require.NoError(t, v.Mount("/", FSRamFS, 0, newMemBackend()))
	_, err := v.Open("/missing")
	require.ErrorIs(t, err, kerr.NotFound)
}

func TestUnmountForceClosesOpenHandles(t *testing.T) {
	v := New()
	be := newMemBackend()
	be.files["/a"] = []byte("x")
	require.NoError(t, v.Mount("/", FSRamFS, 0, be))
	fd, err := v.Open("/a")
	require.NoError(t, err)

	require.NoError(t, v.Unmount("/"))
	_, err = v.Read(fd, make([]byte, 1))
	require.ErrorIs(t, err, kerr.NotFound)
}

func TestChdirRequiresDirectory(t *testing.T) {
	v := New()
	be := newMemBackend()
	be.files["/f"] = []byte("x")
	require.NoError(t, v.Mount("/", FSRamFS, 0, be))

	require.NoError(t, v.Chdir("/"))
	require.Equal(t, "/", v.Getcwd())
	require.Error(t, v.Chdir("/f"))
}
