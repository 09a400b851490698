package gfx

import (
	"sync"

	"github.com/antpln/continuumos/kernel/event"
	"github.com/antpln/continuumos/kernel/kerr"
)

// Compositor owns every live Window, their back-to-front z-order, the
// software mouse cursor overlay, and drag state. Grounded on
// terminal_windows.cpp: init, draw_windows, request_new_window,
// activate_process, set_active_window_origin, on_process_exit,
// handle_mouse_event, plus the window_* accessor family that forwards
// into a specific Window.
type Compositor struct {
	mu sync.Mutex

	fb      *FrameBuffer
	windows map[uint32]*Window
	zOrder  []uint32 // back (index 0) to front (last index)
	nextID  uint32

	cursorX, cursorY int
	dragging         *dragState

	backgroundTop, backgroundBottom RGB

	// OnCloseRequested is invoked with a window's owner PID when the
	// close button is clicked (spec.md §8 testable property 10: "click
	// on close_button_center ... issues kill_process(owner)"). The
	// compositor removes the window itself regardless, since
	// kernel/gfx has no dependency on kernel/process or
	// kernel/scheduler to call kill_process directly; kernel/syscall
	// wires this hook to the real process table.
	OnCloseRequested func(owner int)
}

type dragState struct {
	windowID       uint32
	grabDX, grabDY int // cursor offset from the window's frame origin
}

// Init constructs a Compositor painting into fb (the original's
// compositor::init, which seeds the workspace background and resets the
// z-order stack).
func Init(fb *FrameBuffer) *Compositor {
	return &Compositor{
		fb:             fb,
		windows:        map[uint32]*Window{},
		backgroundTop:    RGB{0, 40, 80},
		backgroundBottom: RGB{0, 10, 30},
	}
}

// RequestNewWindow allocates a window for owner at the next cascade
// position and raises it to the front (the original's
// request_new_window). The cascade slot is the number of open windows
// modulo 8, so it wraps back to the top-left every 8 windows; the
// framebuffer size is not consulted.
func (c *Compositor) RequestNewWindow(owner int, title string) *Window {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID

	slot := len(c.zOrder)
	fx := (slot % 8) * CascadeStepX
	fy := (slot % 8) * CascadeStepY

	w := NewWindow(id, owner, title, fx, fy)
	c.windows[id] = w
	c.zOrder = append(c.zOrder, id)
	return w
}

// ActivateProcess raises owner's topmost window to the front of the
// z-order (the original's activate_process), reporting whether a window
// was found.
func (c *Compositor) ActivateProcess(owner int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.raiseOwner(owner)
}

func (c *Compositor) raiseOwner(owner int) bool {
	for i := len(c.zOrder) - 1; i >= 0; i-- {
		if w, ok := c.windows[c.zOrder[i]]; ok && w.Owner == owner {
			c.raiseIndex(i)
			return true
		}
	}
	return false
}

func (c *Compositor) raiseIndex(i int) {
	id := c.zOrder[i]
	c.zOrder = append(c.zOrder[:i], c.zOrder[i+1:]...)
	c.zOrder = append(c.zOrder, id)
}

func (c *Compositor) raiseID(id uint32) {
	for i, zid := range c.zOrder {
		if zid == id {
			c.raiseIndex(i)
			return
		}
	}
}

// SetActiveWindowOrigin repositions owner's topmost window's frame (the
// original's set_active_window_origin), used when a process restores a
// remembered position rather than accepting the cascade default.
func (c *Compositor) SetActiveWindowOrigin(owner int, x, y int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.zOrder) - 1; i >= 0; i-- {
		if w, ok := c.windows[c.zOrder[i]]; ok && w.Owner == owner {
			w.FrameX, w.FrameY = x, y
			w.MarkFullDirty()
			return nil
		}
	}
	return kerr.New(kerr.NotFound, "compositor: no window owned by process")
}

// OnProcessExit removes every window owner owns (the original's
// on_process_exit), so a dead process doesn't leave a dangling frame on
// screen.
func (c *Compositor) OnProcessExit(owner int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var kept []uint32
	for _, id := range c.zOrder {
		if w, ok := c.windows[id]; ok {
			if w.Owner == owner {
				delete(c.windows, id)
				continue
			}
		}
		kept = append(kept, id)
	}
	c.zOrder = kept
	if c.dragging != nil && c.windows[c.dragging.windowID] == nil {
		c.dragging = nil
	}
}

// windowByID is a locked lookup convenience for the window_* forwarders.
func (c *Compositor) windowByID(id uint32) (*Window, error) {
	w, ok := c.windows[id]
	if !ok {
		return nil, kerr.New(kerr.NotFound, "compositor: no such window")
	}
	return w, nil
}

// WindowPutChar forwards to Window.PutChar (the original's window_put_char).
func (c *Compositor) WindowPutChar(id uint32, row, col int, ch byte, attr uint8) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, err := c.windowByID(id)
	if err != nil {
		return err
	}
	w.PutChar(row, col, ch, attr)
	return nil
}

// WindowSetCursor forwards to Window.SetCursor (window_set_cursor).
func (c *Compositor) WindowSetCursor(id uint32, row, col int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, err := c.windowByID(id)
	if err != nil {
		return err
	}
	w.SetCursor(row, col)
	return nil
}

// WindowGetCursor forwards to Window.GetCursor (window_get_cursor).
func (c *Compositor) WindowGetCursor(id uint32) (row, col int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, err := c.windowByID(id)
	if err != nil {
		return 0, 0, err
	}
	row, col = w.GetCursor()
	return row, col, nil
}

// WindowPresent marks a window fully dirty so the next DrawWindows
// repaints it in full (window_present).
func (c *Compositor) WindowPresent(id uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, err := c.windowByID(id)
	if err != nil {
		return err
	}
	w.MarkFullDirty()
	return nil
}

// drawWorkspaceBackground fills the framebuffer with a vertical gradient
// between backgroundTop and backgroundBottom (the original's
// draw_workspace_background).
func (c *Compositor) drawWorkspaceBackground() {
	info := c.fb.Info()
	for y := uint32(0); y < info.Height; y++ {
		t := float64(y) / float64(maxU32(info.Height-1, 1))
		r := lerp(c.backgroundTop.R, c.backgroundBottom.R, t)
		g := lerp(c.backgroundTop.G, c.backgroundBottom.G, t)
		b := lerp(c.backgroundTop.B, c.backgroundBottom.B, t)
		color := c.fb.PackColor(r, g, b)
		c.fb.FillRect(0, y, info.Width, 1, color, Draw)
	}
}

func lerp(a, b uint8, t float64) uint8 {
	return uint8(float64(a) + (float64(b)-float64(a))*t)
}

func maxU32(v, floor uint32) uint32 {
	if v < floor {
		return floor
	}
	return v
}

// DrawWindows repaints the background plus every window back-to-front,
// then the mouse cursor overlay, and flips the framebuffer (the
// original's draw_windows). Every window is redrawn in full each pass;
// the per-window DirtyRegion is exposed for callers (e.g. a terminal
// visualizer) that want to repaint only changed rows on their own
// surface, but the in-memory framebuffer itself is repainted wholesale
// since there is no hardware scanout cost to amortize host-side.
func (c *Compositor) DrawWindows() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.drawWorkspaceBackground()
	for _, id := range c.zOrder {
		w, ok := c.windows[id]
		if !ok {
			continue
		}
		c.drawWindow(w)
		w.ClearDirty()
	}
	c.drawCursor()
	c.fb.Present()
}

func (c *Compositor) drawWindow(w *Window) {
	outerW := uint32(w.OuterWidth())
	outerH := uint32(w.OuterHeight())
	frameColor := c.fb.PackColor(60, 60, 70)
	titleColor := c.fb.PackColor(30, 30, 40)
	closeColor := c.fb.PackColor(170, 0, 0)
	contentBG := c.fb.PackColor(0, 0, 0)

	c.fb.FillRect(uint32(w.FrameX), uint32(w.FrameY), outerW, outerH, frameColor, Draw)
	c.fb.FillRect(uint32(w.FrameX+FrameBorder), uint32(w.FrameY+FrameBorder), outerW-2*FrameBorder, TitleBarHeight, titleColor, Draw)

	closeX0 := w.FrameX + w.OuterWidth() - CloseButtonMargin - CloseButtonSize
	closeY0 := w.FrameY + (TitleBarHeight-CloseButtonSize)/2 + FrameBorder
	c.fb.FillRect(uint32(closeX0), uint32(closeY0), CloseButtonSize, CloseButtonSize, closeColor, Draw)

	contentX0, contentY0 := w.ContentOrigin()
	contentX := uint32(w.FrameX + contentX0)
	contentY := uint32(w.FrameY + contentY0)
	c.fb.FillRect(contentX, contentY, Cols*FontWidth, Rows*FontHeight, contentBG, Draw)

	for row := 0; row < Rows; row++ {
		for col := 0; col < Cols; col++ {
			cell := w.Grid[row][col]
			if cell.Ch == ' ' || cell.Ch == 0 {
				continue
			}
			g := GlyphFor(cell.Ch)
			fg, bg := SplitAttr(cell.Attr)
			fgColor := c.fb.PackColor(Palette16[fg].R, Palette16[fg].G, Palette16[fg].B)
			bgColor := c.fb.PackColor(Palette16[bg].R, Palette16[bg].G, Palette16[bg].B)
			px := contentX + uint32(col*FontWidth)
			py := contentY + uint32(row*FontHeight)
			c.fb.DrawMonoBitmap(px, py, FontWidth, FontHeight, g[:], 1, fgColor, bgColor, false, Draw)
		}
	}

	if w.CursorVisible {
		cx := contentX + uint32(w.CursorCol*FontWidth)
		cy := contentY + uint32(w.CursorRow*FontHeight) + FontHeight - 2
		c.fb.FillRect(cx, cy, FontWidth, 2, c.fb.PackColor(200, 200, 200), Draw)
	}
}

func (c *Compositor) drawCursor() {
	cursorColor := c.fb.PackColor(255, 255, 0)
	c.fb.FillRect(uint32(maxInt(c.cursorX, 0)), uint32(maxInt(c.cursorY, 0)), 8, 8, cursorColor, Draw)
}

func maxInt(v, floor int) int {
	if v < floor {
		return floor
	}
	return v
}

// HandleMouseEvent updates the cursor position, drags a grabbed window,
// and raises/closes windows on click (the original's handle_mouse_event).
// It returns the PID a click should be routed to as focus, or -1 if the
// click landed on the background.
func (c *Compositor) HandleMouseEvent(ev event.MouseEvent) (focusPID int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cursorX += int(ev.DX)
	c.cursorY += int(ev.DY)
	if info := c.fb.Info(); info.Width > 0 && info.Height > 0 {
		c.cursorX = clampInt(c.cursorX, 0, int(info.Width)-1)
		c.cursorY = clampInt(c.cursorY, 0, int(info.Height)-1)
	}

	leftDown := ev.Buttons&event.MouseButtonLeft != 0
	leftChanged := ev.Changed&event.MouseButtonLeft != 0

	if c.dragging != nil {
		if !leftDown {
			c.dragging = nil
		} else {
			if w, ok := c.windows[c.dragging.windowID]; ok {
				w.FrameX = c.cursorX - c.dragging.grabDX
				w.FrameY = c.cursorY - c.dragging.grabDY
				w.MarkFullDirty()
			}
			return -1
		}
	}

	if leftChanged && leftDown {
		return c.handleClick()
	}
	return -1
}

func (c *Compositor) handleClick() int {
	for i := len(c.zOrder) - 1; i >= 0; i-- {
		id := c.zOrder[i]
		w, ok := c.windows[id]
		if !ok {
			continue
		}
		switch w.hitTest(c.cursorX, c.cursorY) {
		case hitCloseButton:
			owner := w.Owner
			delete(c.windows, id)
			c.zOrder = append(c.zOrder[:i], c.zOrder[i+1:]...)
			if c.OnCloseRequested != nil {
				c.OnCloseRequested(owner)
			}
			return -1
		case hitTitleBar:
			c.raiseIndex(i)
			c.dragging = &dragState{windowID: id, grabDX: c.cursorX - w.FrameX, grabDY: c.cursorY - w.FrameY}
			return w.Owner
		case hitContent:
			c.raiseIndex(i)
			return w.Owner
		}
	}
	return -1
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ZOrder returns a front-to-back snapshot of live window IDs, for
// introspection and tests.
func (c *Compositor) ZOrder() []uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]uint32, len(c.zOrder))
	for i, id := range c.zOrder {
		out[len(c.zOrder)-1-i] = id
	}
	return out
}

// Window returns the live Window for id, for callers (syscall dispatch,
// tests) that need direct field access beyond the window_* forwarders.
func (c *Compositor) Window(id uint32) (*Window, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, ok := c.windows[id]
	return w, ok
}
