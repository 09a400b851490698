package editor

import (
	"strings"
	"testing"

	"github.com/antpln/continuumos/kernel/event"
	"github.com/antpln/continuumos/kernel/gfx"
	"github.com/antpln/continuumos/kernel/process"
	"github.com/antpln/continuumos/kernel/scheduler"
	"github.com/antpln/continuumos/kernel/syscall"
	"github.com/antpln/continuumos/kernel/vfs"
	"github.com/antpln/continuumos/kernel/vfs/ramfs"
	"github.com/stretchr/testify/require"
)

func newTestEditor(t *testing.T, path string) *Editor {
	t.Helper()
	sched := scheduler.New()
	fb := gfx.New(640, 480, 32)
	comp := gfx.Init(fb)
	v := vfs.New()
	require.NoError(t, v.Mount("/", vfs.FSRamFS, 0, ramfs.New()))

	k := syscall.New(v, sched, comp, nil, nil, nil)
	p := process.New(1, "editor", func(*process.Process) {}, false, 8192)
	require.NoError(t, sched.Add(p))

	e := &Editor{kernel: k, proc: p, path: path, focused: true}
	e.load()
	return e
}

func windowGridLine(e *Editor, row int) string {
	w, _ := e.proc.Window.(*gfx.Window)
	if w == nil {
		return ""
	}
	buf := make([]byte, 0, gfx.Cols)
	for c := 0; c < gfx.Cols; c++ {
		buf = append(buf, w.Grid[row][c].Ch)
	}
	return strings.TrimRight(string(buf), " ")
}

func TestLoadMissingFileStartsWithOneEmptyLine(t *testing.T) {
	e := newTestEditor(t, "/scratch.txt")
	require.Equal(t, []string{""}, e.lines)
	require.Equal(t, "new file", e.message)
}

func TestLoadSplitsExistingContentOnNewlines(t *testing.T) {
	sched := scheduler.New()
	fb := gfx.New(640, 480, 32)
	comp := gfx.Init(fb)
	v := vfs.New()
	require.NoError(t, v.Mount("/", vfs.FSRamFS, 0, ramfs.New()))
	k := syscall.New(v, sched, comp, nil, nil, nil)
	require.NoError(t, k.VFS.Create("/doc.txt"))
	fd, err := k.VFS.Open("/doc.txt")
	require.NoError(t, err)
	_, err = k.VFS.Write(fd, []byte("alpha\nbeta\ngamma"))
	require.NoError(t, err)
	require.NoError(t, k.VFS.Close(fd))

	p := process.New(1, "editor", func(*process.Process) {}, false, 8192)
	e := &Editor{kernel: k, proc: p, path: "/doc.txt", focused: true}
	e.load()

	require.Equal(t, []string{"alpha", "beta", "gamma"}, e.lines)
}

func TestHandleCharInsertsAtCursor(t *testing.T) {
	e := newTestEditor(t, "/a.txt")
	e.handleChar('h')
	e.handleChar('i')
	require.Equal(t, "hi", e.lines[0])
	require.Equal(t, 2, e.cursorCol)
}

func TestHandleEnterSplitsLineAtCursor(t *testing.T) {
	e := newTestEditor(t, "/a.txt")
	e.lines[0] = "hello"
	e.cursorCol = 2
	e.handleEnter()
	require.Equal(t, []string{"he", "llo"}, e.lines)
	require.Equal(t, 1, e.cursorRow)
	require.Equal(t, 0, e.cursorCol)
}

func TestHandleBackspaceMergesWithPreviousLine(t *testing.T) {
	e := newTestEditor(t, "/a.txt")
	e.lines = []string{"foo", "bar"}
	e.cursorRow = 1
	e.cursorCol = 0
	e.handleBackspace()
	require.Equal(t, []string{"foobar"}, e.lines)
	require.Equal(t, 0, e.cursorRow)
	require.Equal(t, 3, e.cursorCol)
}

func TestHandleBackspaceWithinLineRemovesChar(t *testing.T) {
	e := newTestEditor(t, "/a.txt")
	e.lines[0] = "abc"
	e.cursorCol = 3
	e.handleBackspace()
	require.Equal(t, "ab", e.lines[0])
	require.Equal(t, 2, e.cursorCol)
}

func TestArrowRightWrapsToNextLine(t *testing.T) {
	e := newTestEditor(t, "/a.txt")
	e.lines = []string{"ab", "cd"}
	e.cursorRow, e.cursorCol = 0, 2
	e.handleArrowRight()
	require.Equal(t, 1, e.cursorRow)
	require.Equal(t, 0, e.cursorCol)
}

func TestArrowLeftWrapsToPreviousLineEnd(t *testing.T) {
	e := newTestEditor(t, "/a.txt")
	e.lines = []string{"ab", "cd"}
	e.cursorRow, e.cursorCol = 1, 0
	e.handleArrowLeft()
	require.Equal(t, 0, e.cursorRow)
	require.Equal(t, 2, e.cursorCol)
}

func TestDotSaveLineSavesAndClearsLine(t *testing.T) {
	e := newTestEditor(t, "/save.txt")
	e.lines = []string{"content", ".save"}
	e.cursorRow = 1
	e.handleEnter()
	require.Equal(t, "", e.lines[1])
	require.Equal(t, "saved", e.message)

	openRes, err := e.kernel.Dispatch(nil, syscall.VFSOpen, syscall.Args{Path: "/save.txt"})
	require.NoError(t, err)
	buf := make([]byte, 64)
	readRes, err := e.kernel.Dispatch(nil, syscall.VFSRead, syscall.Args{FD: openRes.Value, Buf: buf})
	require.NoError(t, err)
	require.Equal(t, "content\n", string(buf[:readRes.Value]))
}

func TestDotExitLineExitsWithoutSaving(t *testing.T) {
	e := newTestEditor(t, "/x.txt")
	e.lines = []string{".exit"}
	e.handleEnter()
	require.False(t, e.active)
	require.False(t, e.proc.Alive)
}

func TestFocusLostIgnoresKeysUntilFocusGained(t *testing.T) {
	e := newTestEditor(t, "/a.txt")
	e.handleEvent(event.NewProcess(event.ProcessEvent{Code: event.FocusLost}))
	e.handleKey(event.KeyboardEvent{ASCII: 'z'})
	require.Equal(t, "", e.lines[0])

	e.handleEvent(event.NewProcess(event.ProcessEvent{Code: event.FocusGained}))
	e.handleKey(event.KeyboardEvent{ASCII: 'z'})
	require.Equal(t, "z", e.lines[0])
}

func TestStatusBarReportsFilenameAndPosition(t *testing.T) {
	e := newTestEditor(t, "/docs/note.txt")
	e.lines = []string{"one", "two"}
	e.cursorRow, e.cursorCol = 1, 1
	e.render()
	line := windowGridLine(e, gfx.Rows-1)
	require.Contains(t, line, "note.txt")
	require.Contains(t, line, "Ln 2/2")
	require.Contains(t, line, "Col 2")
}
