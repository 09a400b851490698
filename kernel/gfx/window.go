package gfx

import "github.com/google/uuid"

// Window frame geometry constants, grounded on terminal_windows.cpp's
// layout constants — the border, title bar, and content padding every
// window frame shares.
const (
	FrameBorder          = 2
	TitleBarHeight       = 24
	ContentPaddingX      = 12
	ContentPaddingBottom = 12
	CascadeStepX         = 28
	CascadeStepY         = 28
	CloseButtonSize      = 14
	CloseButtonMargin    = 8
)

// Cols and Rows are the fixed text-cell grid every window presents
// (spec.md §4.7 "80x25 character grid").
const (
	Cols = 80
	Rows = 25
)

// Cell is one character cell: a glyph plus its packed VGA attribute byte.
type Cell struct {
	Ch   byte
	Attr uint8
}

// DirtyRegion tracks the span of rows a Window has touched since its last
// repaint, the Go shape of terminal_windows.cpp's DirtyRegion: a
// min/max row range, or a full-refresh flag when too much changed to
// bother tracking precisely (e.g. after a scroll).
type DirtyRegion struct {
	MinRow, MaxRow int
	Full           bool
	dirty          bool
}

func (d *DirtyRegion) markRow(row int) {
	if row < 0 || row >= Rows {
		return
	}
	if !d.dirty {
		d.MinRow, d.MaxRow = row, row
		d.dirty = true
		return
	}
	if row < d.MinRow {
		d.MinRow = row
	}
	if row > d.MaxRow {
		d.MaxRow = row
	}
}

func (d *DirtyRegion) markFull() {
	d.Full = true
	d.MinRow, d.MaxRow = 0, Rows-1
	d.dirty = true
}

// HasUpdates reports whether any row is pending repaint (the original's
// dirty_region_has_updates).
func (d *DirtyRegion) HasUpdates() bool { return d.dirty }

func (d *DirtyRegion) clear() {
	*d = DirtyRegion{}
}

// Window is one compositor-managed terminal surface: a cell grid, its
// frame origin, a cursor, and the dirty-region bookkeeping the compositor
// uses to avoid repainting untouched rows. Grounded on
// terminal_windows.cpp's Window struct (in_use, owner, snapshot,
// frame_x, frame_y, dirty).
type Window struct {
	ID         uint32
	InstanceID uuid.UUID // random per-window identity assigned at creation, alongside the sequential ID
	Owner      int       // owning process PID
	InUse      bool
	Title      string

	FrameX, FrameY int // top-left of the outer frame, in pixels

	Grid   [Rows][Cols]Cell
	Dirty  DirtyRegion

	CursorRow, CursorCol int
	CursorVisible        bool

	DefaultAttr uint8
}

// NewWindow constructs a window at the given cascade position, blank and
// ready for a process to write into.
func NewWindow(id uint32, owner int, title string, frameX, frameY int) *Window {
	w := &Window{
		ID:            id,
		InstanceID:    uuid.New(),
		Owner:         owner,
		InUse:         true,
		Title:         title,
		FrameX:        frameX,
		FrameY:        frameY,
		CursorVisible: true,
		DefaultAttr:   PackAttr(7, 0), // light grey on black
	}
	for r := 0; r < Rows; r++ {
		for c := 0; c < Cols; c++ {
			w.Grid[r][c] = Cell{Ch: ' ', Attr: w.DefaultAttr}
		}
	}
	return w
}

// OuterWidth and OuterHeight are this window's full frame footprint in
// pixels, content grid plus border/title bar/padding.
func (w *Window) OuterWidth() int {
	return Cols*FontWidth + 2*FrameBorder + 2*ContentPaddingX
}

func (w *Window) OuterHeight() int {
	return Rows*FontHeight + 2*FrameBorder + TitleBarHeight + ContentPaddingBottom
}

// ContentOrigin returns the pixel offset (from FrameX, FrameY) of cell
// (0,0), accounting for the border, title bar, and left padding.
func (w *Window) ContentOrigin() (x, y int) {
	return FrameBorder + ContentPaddingX, FrameBorder + TitleBarHeight
}

// PutChar writes ch with attr at (row, col), marking that row dirty (the
// original's window_put_char). Out-of-bounds writes are ignored.
func (w *Window) PutChar(row, col int, ch byte, attr uint8) {
	if row < 0 || row >= Rows || col < 0 || col >= Cols {
		return
	}
	w.Grid[row][col] = Cell{Ch: ch, Attr: attr}
	w.Dirty.markRow(row)
}

// WriteText writes a run of text starting at (row, col) using attr,
// wrapping to the next row at the grid's right edge and scrolling the
// grid up when it overflows the bottom row — the original's write_text
// plus its implicit scroll-on-overflow behavior.
func (w *Window) WriteText(row, col int, text string, attr uint8) (endRow, endCol int) {
	for i := 0; i < len(text); i++ {
		ch := text[i]
		if ch == '\n' {
			row++
			col = 0
			if row >= Rows {
				w.scroll()
				row = Rows - 1
			}
			continue
		}
		if col >= Cols {
			row++
			col = 0
			if row >= Rows {
				w.scroll()
				row = Rows - 1
			}
		}
		w.PutChar(row, col, ch, attr)
		col++
	}
	return row, col
}

// scroll shifts every row up by one, blanking the new bottom row, and
// marks the whole window dirty (cheaper to repaint everything than to
// track a shifted dirty range).
func (w *Window) scroll() {
	for r := 0; r < Rows-1; r++ {
		w.Grid[r] = w.Grid[r+1]
	}
	for c := 0; c < Cols; c++ {
		w.Grid[Rows-1][c] = Cell{Ch: ' ', Attr: w.DefaultAttr}
	}
	w.Dirty.markFull()
}

// SetCursor repositions the blinking cursor (the original's
// window_set_cursor). Out-of-range coordinates clamp to the grid.
func (w *Window) SetCursor(row, col int) {
	if row < 0 {
		row = 0
	}
	if row >= Rows {
		row = Rows - 1
	}
	if col < 0 {
		col = 0
	}
	if col >= Cols {
		col = Cols - 1
	}
	w.CursorRow, w.CursorCol = row, col
}

// GetCursor reports the current cursor position (the original's
// window_get_cursor).
func (w *Window) GetCursor() (row, col int) {
	return w.CursorRow, w.CursorCol
}

// ClearDirty resets the dirty-region tracker after the compositor has
// repainted this window.
func (w *Window) ClearDirty() {
	w.Dirty.clear()
}

// MarkFullDirty forces a full repaint on the next compositor pass (the
// original's mark_full_dirty), used after a resize, a scroll, or the
// window first appearing.
func (w *Window) MarkFullDirty() {
	w.Dirty.markFull()
}

// containsPoint reports whether the absolute pixel point (px, py) falls
// within this window's outer frame.
func (w *Window) containsPoint(px, py int) bool {
	return px >= w.FrameX && px < w.FrameX+w.OuterWidth() &&
		py >= w.FrameY && py < w.FrameY+w.OuterHeight()
}

// hitRegion classifies a point already known to be inside the frame into
// which interactive region it falls: close button, title bar (draggable),
// or content.
type hitRegion int

const (
	hitNone hitRegion = iota
	hitCloseButton
	hitTitleBar
	hitContent
)

func (w *Window) hitTest(px, py int) hitRegion {
	if !w.containsPoint(px, py) {
		return hitNone
	}
	localX := px - w.FrameX
	localY := py - w.FrameY

	closeX0 := w.OuterWidth() - CloseButtonMargin - CloseButtonSize
	closeY0 := (TitleBarHeight - CloseButtonSize) / 2
	if localX >= closeX0 && localX < closeX0+CloseButtonSize &&
		localY >= closeY0 && localY < closeY0+CloseButtonSize {
		return hitCloseButton
	}
	if localY < FrameBorder+TitleBarHeight {
		return hitTitleBar
	}
	return hitContent
}
