package syscall

import (
	"testing"

	"github.com/antpln/continuumos/kernel/event"
	"github.com/antpln/continuumos/kernel/gfx"
	"github.com/antpln/continuumos/kernel/hooks"
	"github.com/antpln/continuumos/kernel/process"
	"github.com/antpln/continuumos/kernel/scheduler"
	"github.com/antpln/continuumos/kernel/vfs"
	"github.com/stretchr/testify/require"
)

func newTestKernel() (*Kernel, *scheduler.Table) {
	sched := scheduler.New()
	fb := gfx.New(640, 480, 32)
	comp := gfx.Init(fb)
	v := vfs.New()
	k := New(v, sched, comp, nil, nil, nil)
	return k, sched
}

func TestYieldReschedulesWithoutHook(t *testing.T) {
	k, sched := newTestKernel()
	p := process.New(1, "p", func(*process.Process) {}, false, 4096)
	require.NoError(t, sched.Add(p))

	_, err := k.Dispatch(p, Yield, Args{})
	require.NoError(t, err)
	require.Nil(t, p.WaitHook)
}

func TestYieldForEventInstallsHook(t *testing.T) {
	k, sched := newTestKernel()
	p := process.New(1, "p", func(*process.Process) {}, false, 4096)
	require.NoError(t, sched.Add(p))

	_, err := k.Dispatch(p, YieldForEvent, Args{Hook: &hooks.Hook{Kind: hooks.TimeReached, Value: 5}})
	require.NoError(t, err)
	require.NotNil(t, p.WaitHook)
	require.Equal(t, uint64(5), p.WaitHook.Value)
}

func TestStartProcessAssignsIncrementingPIDs(t *testing.T) {
	k, sched := newTestKernel()
	res1, err := k.Dispatch(nil, StartProcess, Args{Name: "a", Entry: func(*process.Process) {}})
	require.NoError(t, err)
	res2, err := k.Dispatch(nil, StartProcess, Args{Name: "b", Entry: func(*process.Process) {}})
	require.NoError(t, err)
	require.NotEqual(t, res1.Value, res2.Value)
	require.Equal(t, 2, sched.Count())
}

func TestExitKillsProcessAndRemovesFromScheduler(t *testing.T) {
	k, sched := newTestKernel()
	p := process.New(7, "p", func(*process.Process) {}, false, 4096)
	require.NoError(t, sched.Add(p))

	_, err := k.Dispatch(p, Exit, Args{ExitStatus: 0})
	require.NoError(t, err)
	require.False(t, p.Alive)
	require.Equal(t, 0, sched.Count())
}

func TestPollEventDrainsQueueNonBlocking(t *testing.T) {
	k, _ := newTestKernel()
	p := process.New(1, "p", func(*process.Process) {}, false, 4096)
	res, err := k.Dispatch(p, PollEvent, Args{})
	require.NoError(t, err)
	require.Equal(t, 0, res.Value)
	require.False(t, res.HasSwap)

	p.PushEvent(event.NewKeyboard(event.KeyboardEvent{ASCII: 'x'}))
	res, err = k.Dispatch(p, PollEvent, Args{})
	require.NoError(t, err)
	require.Equal(t, 1, res.Value)
	require.True(t, res.HasSwap)
	require.Equal(t, byte('x'), res.Event.Keyboard.ASCII)
}

func TestWaitEventParksOnOwnPIDSignalWhenQueueEmpty(t *testing.T) {
	k, sched := newTestKernel()
	p := process.New(3, "p", func(*process.Process) {}, false, 4096)
	require.NoError(t, sched.Add(p))

	res, err := k.Dispatch(p, WaitEvent, Args{})
	require.NoError(t, err)
	require.False(t, res.HasSwap)
	require.NotNil(t, p.WaitHook)
	require.Equal(t, hooks.Signal, p.WaitHook.Kind)
	require.Equal(t, uint64(3), p.WaitHook.Value)
}

func TestVFSOpenReadWriteCloseRoundTrip(t *testing.T) {
	k, _ := newTestKernel()
	backend := &memBackend{files: map[string][]byte{}}
	require.NoError(t, k.VFS.Mount("/", vfs.FSRamFS, 0, backend))
	require.NoError(t, backend.touch("/hello.txt"))

	openRes, err := k.Dispatch(nil, VFSOpen, Args{Path: "/hello.txt"})
	require.NoError(t, err)
	fd := openRes.Value

	_, err = k.Dispatch(nil, VFSWrite, Args{FD: fd, Buf: []byte("hi")})
	require.NoError(t, err)
	_, err = k.Dispatch(nil, VFSSeek, Args{FD: fd, Pos: 0})
	require.NoError(t, err)

	readBuf := make([]byte, 2)
	readRes, err := k.Dispatch(nil, VFSRead, Args{FD: fd, Buf: readBuf})
	require.NoError(t, err)
	require.Equal(t, 2, readRes.Value)
	require.Equal(t, "hi", string(readBuf))

	_, err = k.Dispatch(nil, VFSClose, Args{FD: fd})
	require.NoError(t, err)
}

func TestVFSNormalizePathResolvesDotDot(t *testing.T) {
	k, _ := newTestKernel()
	res, err := k.Dispatch(nil, VFSNormalizePath, Args{Path: "/a/b/../c"})
	require.NoError(t, err)
	require.Equal(t, "/a/c", res.Path)
}

func TestEnsureWindowAssignsWindowOnFirstUse(t *testing.T) {
	k, _ := newTestKernel()
	p := process.New(1, "shell", func(*process.Process) {}, false, 4096)

	_, err := k.Dispatch(p, GraphicsEnsureWindow, Args{})
	require.NoError(t, err)
	_, ok := p.Window.(*gfx.Window)
	require.True(t, ok)
}

func TestPutCharWritesIntoOwnWindow(t *testing.T) {
	k, _ := newTestKernel()
	p := process.New(1, "shell", func(*process.Process) {}, false, 4096)

	_, err := k.Dispatch(p, GraphicsPutChar, Args{Row: 2, Col: 3, Ch: 'Q', Attr: 7})
	require.NoError(t, err)
	w := p.Window.(*gfx.Window)
	require.Equal(t, byte('Q'), w.Grid[2][3].Ch)
}

func TestGetCursorReturnsWindowCursor(t *testing.T) {
	k, _ := newTestKernel()
	p := process.New(1, "shell", func(*process.Process) {}, false, 4096)
	_, err := k.Dispatch(p, GraphicsSetCursor, Args{Row: 4, Col: 5, Active: true})
	require.NoError(t, err)

	res, err := k.Dispatch(p, GraphicsGetCursor, Args{})
	require.NoError(t, err)
	require.True(t, res.Cursor)
	require.Equal(t, 4, res.Row)
	require.Equal(t, 5, res.Col)
}

func TestColumnsAndRowsReportFixedGridSize(t *testing.T) {
	k, _ := newTestKernel()
	res, err := k.Dispatch(nil, GraphicsColumns, Args{})
	require.NoError(t, err)
	require.Equal(t, gfx.Cols, res.Value)

	res, err = k.Dispatch(nil, GraphicsRows, Args{})
	require.NoError(t, err)
	require.Equal(t, gfx.Rows, res.Value)
}

func TestGUICommandRequestNewWindowAssignsDistinctWindow(t *testing.T) {
	k, _ := newTestKernel()
	p := process.New(9, "app", func(*process.Process) {}, false, 4096)
	_, err := k.Dispatch(p, GUICommand, Args{GUIKind: GUIRequestNewWindow})
	require.NoError(t, err)
	require.NotNil(t, p.Window)
}

func TestSchedulerGetSetForegroundRoundTrip(t *testing.T) {
	k, sched := newTestKernel()
	p := process.New(4, "p", func(*process.Process) {}, false, 4096)
	require.NoError(t, sched.Add(p))

	_, err := k.Dispatch(nil, SchedulerSetForeground, Args{TargetPID: 4})
	require.NoError(t, err)
	res, err := k.Dispatch(nil, SchedulerGetForeground, Args{})
	require.NoError(t, err)
	require.Equal(t, 4, res.Value)
}

func TestGetPIDReportsCallingProcess(t *testing.T) {
	k, _ := newTestKernel()
	p := process.New(42, "p", func(*process.Process) {}, false, 4096)
	res, err := k.Dispatch(p, SchedulerGetPID, Args{})
	require.NoError(t, err)
	require.Equal(t, 42, res.Value)
}

func TestUnknownSyscallNumberReturnsError(t *testing.T) {
	k, _ := newTestKernel()
	_, err := k.Dispatch(nil, Number(9999), Args{})
	require.Error(t, err)
}

// memBackend is a minimal vfs.Backend double exercising just open/read/
// write/close/create, enough to drive the VFS syscalls above without
// pulling in the full ramfs package as a test dependency.
type memBackend struct {
	files map[string][]byte
}

type memHandle struct {
	path string
	pos  int
}

func (m *memBackend) touch(path string) error {
	m.files[path] = nil
	return nil
}

func (m *memBackend) Open(mount *vfs.Mount, path string) (vfs.Handle, error) {
	return &memHandle{path: path}, nil
}
func (m *memBackend) Read(h vfs.Handle, buf []byte) (int, error) {
	mh := h.(*memHandle)
	data := m.files[mh.path]
	n := copy(buf, data[mh.pos:])
	mh.pos += n
	return n, nil
}
func (m *memBackend) Write(h vfs.Handle, buf []byte) (int, error) {
	mh := h.(*memHandle)
	m.files[mh.path] = append(m.files[mh.path][:mh.pos], buf...)
	mh.pos += len(buf)
	return len(buf), nil
}
func (m *memBackend) Seek(h vfs.Handle, position uint32) error {
	h.(*memHandle).pos = int(position)
	return nil
}
func (m *memBackend) Close(h vfs.Handle) {}
func (m *memBackend) Readdir(mount *vfs.Mount, path string) ([]vfs.Dirent, error) {
	return nil, nil
}
func (m *memBackend) Mkdir(mount *vfs.Mount, path string) error  { return nil }
func (m *memBackend) Rmdir(mount *vfs.Mount, path string) error  { return nil }
func (m *memBackend) Create(mount *vfs.Mount, path string) error { return m.touch(path) }
func (m *memBackend) Remove(mount *vfs.Mount, path string) error {
	delete(m.files, path)
	return nil
}
func (m *memBackend) Stat(mount *vfs.Mount, path string) (vfs.Dirent, error) {
	return vfs.Dirent{Name: path, Type: vfs.TypeFile, Size: uint32(len(m.files[path]))}, nil
}
func (m *memBackend) Unmount(mount *vfs.Mount) error { return nil }
