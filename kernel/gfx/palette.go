package gfx

import "github.com/gdamore/tcell/v2"

// RGB is a packed-free color triple, the Go shape of the original's
// anonymous RGB struct in terminal_windows.cpp.
type RGB struct {
	R, G, B uint8
}

// Palette16 is the legacy 16-colour CGA/VGA text-mode palette spec.md
// §4.7 attribute bytes index into ("Attribute byte = (bg<<4) | fg from
// the legacy 16-colour palette").
var Palette16 = [16]RGB{
	{0, 0, 0},       // 0 black
	{0, 0, 170},     // 1 blue
	{0, 170, 0},     // 2 green
	{0, 170, 170},   // 3 cyan
	{170, 0, 0},     // 4 red
	{170, 0, 170},   // 5 magenta
	{170, 85, 0},    // 6 brown
	{170, 170, 170}, // 7 light grey
	{85, 85, 85},    // 8 dark grey
	{85, 85, 255},   // 9 light blue
	{85, 255, 85},   // 10 light green
	{85, 255, 255},  // 11 light cyan
	{255, 85, 85},   // 12 light red
	{255, 85, 255},  // 13 light magenta
	{255, 255, 85},  // 14 yellow
	{255, 255, 255}, // 15 white
}

// PackColor composes a framebuffer pixel value for r,g,b at the given
// bits-per-pixel, the original's pack_color.
func PackColor(bpp uint32, r, g, b uint8) uint32 {
	switch bpp {
	case 32, 24:
		return uint32(r)<<16 | uint32(g)<<8 | uint32(b)
	case 16:
		return uint32(r&0xF8)<<8 | uint32(g&0xFC)<<3 | uint32(b&0xF8)>>3
	default:
		return uint32(r)<<16 | uint32(g)<<8 | uint32(b)
	}
}

// SplitAttr decomposes a VGA-style attribute byte into (fg, bg) palette
// indices (spec.md §4.7: "Attribute byte = (bg<<4) | fg").
func SplitAttr(attr uint8) (fg, bg uint8) {
	return attr & 0x0F, (attr >> 4) & 0x0F
}

// PackAttr is SplitAttr's inverse.
func PackAttr(fg, bg uint8) uint8 {
	return (bg&0x0F)<<4 | (fg & 0x0F)
}

// TCellStyle projects a legacy (fg, bg) attribute pair onto a tcell.Style
// carrying the true-color equivalents from Palette16, for the host
// terminal visualizer (cmd/continuumctl) to paint a window's cell grid
// without re-deriving the palette itself.
func TCellStyle(attr uint8) tcell.Style {
	fg, bg := SplitAttr(attr)
	fgc := Palette16[fg]
	bgc := Palette16[bg]
	return tcell.StyleDefault.
		Foreground(tcell.NewRGBColor(int32(fgc.R), int32(fgc.G), int32(fgc.B))).
		Background(tcell.NewRGBColor(int32(bgc.R), int32(bgc.G), int32(bgc.B)))
}
