package main

import (
	"os"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/antpln/continuumos/kernel/event"
	"github.com/antpln/continuumos/kernel/gfx"
	"github.com/antpln/continuumos/kernel/scheduler"
)

// frameInterval is the visualizer's own redraw cadence, independent of
// the timer's PIT rate — a developer watching the terminal cares about
// a smooth picture, not kernel tick granularity.
const frameInterval = 33 * time.Millisecond

// runVisualizer mirrors the compositor's frontmost window into a real
// terminal with tview/tcell instead of a framebuffer sink, forwarding
// every keystroke to whichever process the scheduler currently treats
// as foreground. Grounded on migrate/gui.go's pattern of a custom-drawn
// tview.Box redrawn from a background ticker via app.Draw().
func runVisualizer(comp *gfx.Compositor, sched *scheduler.Table, quit <-chan os.Signal) {
	app := tview.NewApplication()

	box := tview.NewBox().SetBorder(false)
	box.SetDrawFunc(func(screen tcell.Screen, x, y, width, height int) (int, int, int, int) {
		drawCompositor(screen, comp, x, y)
		return x, y, width, height
	})

	app.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		if ev.Key() == tcell.KeyCtrlC {
			app.Stop()
			return nil
		}
		deliverKey(sched, translateKey(ev))
		return nil
	})

	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()
	go func() {
		for range ticker.C {
			app.Draw()
		}
	}()
	go func() {
		<-quit
		app.Stop()
	}()

	if err := app.SetRoot(box, true).Run(); err != nil {
		panic(err)
	}
}

// drawCompositor paints the frontmost window's 80x25 text grid onto
// screen, translating each cell's packed VGA attribute byte through
// gfx.TCellStyle. With no windows up yet it prints a placeholder so the
// terminal isn't left blank.
func drawCompositor(screen tcell.Screen, comp *gfx.Compositor, originX, originY int) {
	front := comp.ZOrder()
	if len(front) == 0 {
		emitString(screen, originX, originY, "no windows", tcell.StyleDefault)
		return
	}
	w, ok := comp.Window(front[0])
	if !ok {
		return
	}
	for row := 0; row < gfx.Rows; row++ {
		for col := 0; col < gfx.Cols; col++ {
			cell := w.Grid[row][col]
			ch := rune(cell.Ch)
			if ch == 0 {
				ch = ' '
			}
			screen.SetContent(originX+col, originY+row, ch, nil, gfx.TCellStyle(cell.Attr))
		}
	}
	if w.CursorVisible {
		screen.ShowCursor(originX+w.CursorCol, originY+w.CursorRow)
	}
}

func emitString(screen tcell.Screen, x, y int, s string, style tcell.Style) {
	for i, r := range s {
		screen.SetContent(x+i, y, r, nil, style)
	}
}

// translateKey turns one terminal key event into the KeyboardEvent shape
// kernel/event expects, the visualizer's direct substitute for a real
// PS/2 scancode stream (kernel/kbps2 already has its own grounded home
// in kernel/boot's service loop and its own tests).
func translateKey(ev *tcell.EventKey) event.KeyboardEvent {
	ke := event.KeyboardEvent{
		Shift: ev.Modifiers()&tcell.ModShift != 0,
		Ctrl:  ev.Modifiers()&tcell.ModCtrl != 0,
		Alt:   ev.Modifiers()&tcell.ModAlt != 0,
	}
	switch ev.Key() {
	case tcell.KeyEnter:
		ke.Enter = true
		ke.ASCII = '\n'
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		ke.Backspace = true
	case tcell.KeyUp:
		ke.UpArrow = true
		ke.Special = true
	case tcell.KeyDown:
		ke.DownArrow = true
		ke.Special = true
	case tcell.KeyLeft:
		ke.LeftArrow = true
		ke.Special = true
	case tcell.KeyRight:
		ke.RightArrow = true
		ke.Special = true
	case tcell.KeyRune:
		if r := ev.Rune(); r > 0 && r < 128 {
			ke.ASCII = byte(r)
		}
	}
	return ke
}

// deliverKey pushes ke onto the scheduler's current foreground process,
// the same routing kernel/boot.System.deliverToForeground performs for
// a real PS/2 stream.
func deliverKey(sched *scheduler.Table, ke event.KeyboardEvent) {
	fg := sched.Foreground()
	if fg == 0 {
		return
	}
	for _, p := range sched.Snapshot() {
		if p.PID == fg {
			p.PushEvent(event.NewKeyboard(ke))
			return
		}
	}
}
