// Package editor implements the full-screen line-buffer text editor
// spec.md's shell spawns for its edit command: a 128-line by 128-column
// buffer, a scrolling viewport over it, and a status bar reporting the
// filename, cursor position, and last action.
//
// Grounded on the original's kernel/editor.h + editor.cpp: the Editor
// class's buffer/cursor/viewport/status-message fields survive below as
// the Editor struct, and handle_char/handle_enter/handle_backspace/
// handle_arrows/handle_key keep the same split. ".save" and ".exit" as
// magic lines triggered on Enter, and save-on-exit, are kept verbatim
// from editor_handle_enter/editor_exit. Like the shell, rendering goes
// directly through gfx.Window while process lifecycle and VFS access go
// through kernel/syscall's Dispatch.
package editor

import (
	"fmt"
	"strings"
	"time"

	"github.com/antpln/continuumos/kernel/event"
	"github.com/antpln/continuumos/kernel/gfx"
	"github.com/antpln/continuumos/kernel/process"
	"github.com/antpln/continuumos/kernel/syscall"
)

// maxLines and maxLineLen are the original's EDITOR_MAX_LINES and
// EDITOR_MAX_LINE_LENGTH.
const (
	maxLines   = 128
	maxLineLen = 128
)

// viewportRows leaves the grid's last row for the status bar.
const viewportRows = gfx.Rows - 1

var defaultAttr = gfx.PackAttr(7, 0)

// Editor is one running editor process's state.
type Editor struct {
	kernel *syscall.Kernel
	proc   *process.Process
	path   string

	lines       []string
	cursorRow   int
	cursorCol   int
	viewportTop int
	message     string

	focused bool
	active  bool
}

// NewEntry returns a process.Entry that edits the file at path against
// k's VFS, creating it if it does not already exist.
func NewEntry(k *syscall.Kernel, path string) process.Entry {
	return func(p *process.Process) {
		e := &Editor{kernel: k, proc: p, path: path, focused: true}
		e.run()
	}
}

func (e *Editor) run() {
	e.active = true
	e.load()
	e.render()

	for e.active {
		res, err := e.kernel.Dispatch(e.proc, syscall.PollEvent, syscall.Args{})
		if err != nil {
			return
		}
		if !res.HasSwap {
			res, err = e.kernel.Dispatch(e.proc, syscall.WaitEvent, syscall.Args{})
			if err != nil {
				return
			}
			if !res.HasSwap {
				e.parkUntilWoken()
				continue
			}
		}
		e.handleEvent(res.Event)
	}
}

// parkUntilWoken busy-waits for the scheduler to clear this process's
// WaitHook, the same stand-in the shell uses for real suspend/resume.
func (e *Editor) parkUntilWoken() {
	for e.proc != nil && e.proc.WaitHook != nil {
		time.Sleep(2 * time.Millisecond)
	}
}

func (e *Editor) handleEvent(ev event.Event) {
	switch ev.Type {
	case event.Keyboard:
		e.handleKey(ev.Keyboard)
	case event.Process:
		switch ev.Process.Code {
		case event.FocusLost:
			e.focused = false
		case event.FocusGained:
			e.focused = true
			e.render()
		}
	}
}

// --- file I/O ---

func (e *Editor) load() {
	openRes, err := e.kernel.Dispatch(nil, syscall.VFSOpen, syscall.Args{Path: e.path})
	if err != nil {
		if _, cerr := e.kernel.Dispatch(nil, syscall.VFSCreate, syscall.Args{Path: e.path}); cerr != nil {
			e.lines = []string{""}
			e.message = fmt.Sprintf("failed to create file: %v", cerr)
			return
		}
		e.lines = []string{""}
		e.message = "new file"
		return
	}
	fd := openRes.Value

	var content []byte
	buf := make([]byte, 256)
	for {
		readRes, err := e.kernel.Dispatch(nil, syscall.VFSRead, syscall.Args{FD: fd, Buf: buf})
		if err != nil || readRes.Value <= 0 {
			break
		}
		content = append(content, buf[:readRes.Value]...)
	}
	e.kernel.Dispatch(nil, syscall.VFSClose, syscall.Args{FD: fd})

	lines := strings.Split(string(content), "\n")
	if len(lines) > maxLines {
		lines = lines[:maxLines]
	}
	for i, l := range lines {
		if len(l) >= maxLineLen {
			lines[i] = l[:maxLineLen-1]
		}
	}
	if len(lines) == 0 {
		lines = []string{""}
	}
	e.lines = lines
	e.message = fmt.Sprintf("%d lines loaded", len(lines))
}

func (e *Editor) save() error {
	e.kernel.Dispatch(nil, syscall.VFSRemove, syscall.Args{Path: e.path})
	if _, err := e.kernel.Dispatch(nil, syscall.VFSCreate, syscall.Args{Path: e.path}); err != nil {
		return err
	}
	openRes, err := e.kernel.Dispatch(nil, syscall.VFSOpen, syscall.Args{Path: e.path})
	if err != nil {
		return err
	}
	fd := openRes.Value
	defer e.kernel.Dispatch(nil, syscall.VFSClose, syscall.Args{FD: fd})

	data := []byte(strings.Join(e.lines, "\n"))
	_, err = e.kernel.Dispatch(nil, syscall.VFSWrite, syscall.Args{FD: fd, Buf: data})
	return err
}

func (e *Editor) exit(save bool) {
	if save {
		if err := e.save(); err != nil {
			e.message = fmt.Sprintf("save failed: %v", err)
			e.render()
			return
		}
	}
	e.active = false
	if e.proc != nil {
		e.kernel.Dispatch(e.proc, syscall.Exit, syscall.Args{ExitStatus: 0})
	}
}

// --- editing ---

func (e *Editor) handleChar(c byte) {
	line := e.lines[e.cursorRow]
	if len(line) >= maxLineLen-1 {
		e.message = "line full"
		e.render()
		return
	}
	e.lines[e.cursorRow] = line[:e.cursorCol] + string(c) + line[e.cursorCol:]
	e.cursorCol++
	e.message = ""
	e.render()
}

// handleEnter implements editor_handle_enter: ".save"/".exit" on a line
// by themselves act as commands rather than text, otherwise the line
// splits at the cursor.
func (e *Editor) handleEnter() {
	trimmed := strings.TrimSpace(e.lines[e.cursorRow])
	switch trimmed {
	case ".save":
		e.lines[e.cursorRow] = ""
		e.message = "saved"
		e.exit(true)
		return
	case ".exit":
		e.exit(false)
		return
	}

	if len(e.lines) >= maxLines {
		e.message = "buffer full"
		e.render()
		return
	}

	line := e.lines[e.cursorRow]
	before, after := line[:e.cursorCol], line[e.cursorCol:]
	newLines := make([]string, 0, len(e.lines)+1)
	newLines = append(newLines, e.lines[:e.cursorRow]...)
	newLines = append(newLines, before, after)
	newLines = append(newLines, e.lines[e.cursorRow+1:]...)
	e.lines = newLines

	e.cursorRow++
	e.cursorCol = 0
	e.message = ""
	e.render()
}

func (e *Editor) handleBackspace() {
	if e.cursorCol > 0 {
		line := e.lines[e.cursorRow]
		e.lines[e.cursorRow] = line[:e.cursorCol-1] + line[e.cursorCol:]
		e.cursorCol--
	} else if e.cursorRow > 0 {
		prev, cur := e.lines[e.cursorRow-1], e.lines[e.cursorRow]
		if len(prev)+len(cur) >= maxLineLen {
			e.message = "lines too long to merge"
			e.render()
			return
		}
		e.cursorCol = len(prev)
		e.lines[e.cursorRow-1] = prev + cur
		e.lines = append(e.lines[:e.cursorRow], e.lines[e.cursorRow+1:]...)
		e.cursorRow--
	}
	e.message = ""
	e.render()
}

func (e *Editor) clampCol() {
	if e.cursorCol > len(e.lines[e.cursorRow]) {
		e.cursorCol = len(e.lines[e.cursorRow])
	}
}

func (e *Editor) handleArrowUp() {
	if e.cursorRow > 0 {
		e.cursorRow--
		e.clampCol()
	}
	e.render()
}

func (e *Editor) handleArrowDown() {
	if e.cursorRow < len(e.lines)-1 {
		e.cursorRow++
		e.clampCol()
	}
	e.render()
}

func (e *Editor) handleArrowLeft() {
	if e.cursorCol > 0 {
		e.cursorCol--
	} else if e.cursorRow > 0 {
		e.cursorRow--
		e.cursorCol = len(e.lines[e.cursorRow])
	}
	e.render()
}

func (e *Editor) handleArrowRight() {
	if e.cursorCol < len(e.lines[e.cursorRow]) {
		e.cursorCol++
	} else if e.cursorRow < len(e.lines)-1 {
		e.cursorRow++
		e.cursorCol = 0
	}
	e.render()
}

func (e *Editor) handleKey(ke event.KeyboardEvent) {
	if ke.Release || !e.focused {
		return
	}
	switch {
	case ke.UpArrow:
		e.handleArrowUp()
	case ke.DownArrow:
		e.handleArrowDown()
	case ke.LeftArrow:
		e.handleArrowLeft()
	case ke.RightArrow:
		e.handleArrowRight()
	case ke.Backspace:
		e.handleBackspace()
	case ke.Enter:
		e.handleEnter()
	default:
		if ke.ASCII != 0 {
			e.handleChar(ke.ASCII)
		}
	}
}

// --- rendering ---

func (e *Editor) window() (*gfx.Window, error) {
	if _, err := e.kernel.Dispatch(e.proc, syscall.GraphicsEnsureWindow, syscall.Args{}); err != nil {
		return nil, err
	}
	w, _ := e.proc.Window.(*gfx.Window)
	return w, nil
}

func (e *Editor) present() {
	e.kernel.Dispatch(e.proc, syscall.GraphicsPresent, syscall.Args{})
}

func (e *Editor) drawLine(w *gfx.Window, screenRow int, text string) {
	padded := text
	switch {
	case len(padded) > gfx.Cols:
		padded = padded[:gfx.Cols]
	case len(padded) < gfx.Cols:
		padded += strings.Repeat(" ", gfx.Cols-len(padded))
	}
	w.WriteText(screenRow, 0, padded, defaultAttr)
}

func (e *Editor) drawStatusBar(w *gfx.Window) {
	name := e.path
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	status := fmt.Sprintf("editing: %s  |  Ln %d/%d  Col %d  |  %s",
		name, e.cursorRow+1, len(e.lines), e.cursorCol+1, e.message)
	e.drawLine(w, gfx.Rows-1, status)
}

// scrollToCursor keeps cursorRow inside [viewportTop, viewportTop+viewportRows).
func (e *Editor) scrollToCursor() {
	if e.cursorRow < e.viewportTop {
		e.viewportTop = e.cursorRow
	} else if e.cursorRow >= e.viewportTop+viewportRows {
		e.viewportTop = e.cursorRow - viewportRows + 1
	}
}

func (e *Editor) render() {
	w, err := e.window()
	if err != nil {
		return
	}
	e.scrollToCursor()

	for row := 0; row < viewportRows; row++ {
		idx := e.viewportTop + row
		if idx < len(e.lines) {
			e.drawLine(w, row, e.lines[idx])
		} else {
			e.drawLine(w, row, "")
		}
	}
	e.drawStatusBar(w)

	screenRow := e.cursorRow - e.viewportTop
	if screenRow < 0 {
		screenRow = 0
	}
	w.SetCursor(screenRow, e.cursorCol)
	w.CursorVisible = true
	e.present()
}
