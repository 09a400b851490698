// Package gfx implements spec.md §4.7: the framebuffer abstraction and the
// window compositor processes render text cells through.
//
// Grounded on the original's kernel/framebuffer.h+.cpp (pack_color,
// fill_rect, draw_mono_bitmap, peek_pixel, Draw/Display buffer targets,
// present/flip), kernel/terminal_windows.h+.cpp (window frame geometry,
// z-order, dirty-region protocol, hit testing, drag), and
// kernel/font8x16.h (the bundled 8x16 glyph lookup interface).
package gfx

// FontWidth and FontHeight are the bundled bitmap font's fixed cell size
// (the original's gui::FONT_WIDTH/FONT_HEIGHT).
const (
	FontWidth  = 8
	FontHeight = 16
)

// Glyph is one bundled character's 8x16 monochrome bitmap: 16 rows, each
// row's high bit is the glyph's leftmost pixel (matching draw_mono_bitmap's
// "0x80 >> (col & 7)" bit convention).
type Glyph [FontHeight]byte

// font8x16.h only declares glyph_for's interface; the original's actual
// glyph bitmap table is a large generated data file that did not survive
// retrieval. The table below reproduces the interface faithfully — fixed
// 8x16 cells, '?' fallback for anything not covered — with synthesized
// block-letter bitmaps for space, digits, uppercase letters, and common
// punctuation. Lowercase letters render as their uppercase glyph, a
// deliberate simplification noted in DESIGN.md rather than hand-authoring
// a second 26-glyph case.
var fontTable [256]Glyph

func init() {
	fontTable[' '] = Glyph{}
	fontTable['?'] = glyph(
		0x3C, 0x66, 0x66, 0x0C, 0x18, 0x18, 0x00, 0x18,
		0x18, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00)
	fontTable['.'] = glyph(
		0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x18, 0x18, 0, 0, 0)
	fontTable['!'] = glyph(
		0x18, 0x18, 0x18, 0x18, 0x18, 0x18, 0x18, 0x18,
		0x18, 0, 0x18, 0x18, 0, 0, 0, 0)
	fontTable[','] = glyph(
		0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x18, 0x18, 0x18, 0x30, 0, 0)
	fontTable['-'] = glyph(
		0, 0, 0, 0, 0, 0, 0x7E, 0x7E, 0, 0, 0, 0, 0, 0, 0, 0)
	fontTable['_'] = glyph(
		0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x7E, 0)
	fontTable['/'] = glyph(
		0x03, 0x06, 0x0C, 0x18, 0x30, 0x60, 0x40, 0,
		0, 0, 0, 0, 0, 0, 0, 0)
	fontTable['('] = glyph(
		0x0C, 0x18, 0x30, 0x30, 0x30, 0x30, 0x30, 0x18, 0x0C, 0, 0, 0, 0, 0, 0, 0)
	fontTable[')'] = glyph(
		0x30, 0x18, 0x0C, 0x0C, 0x0C, 0x0C, 0x0C, 0x18, 0x30, 0, 0, 0, 0, 0, 0, 0)

	digits := [10]Glyph{
		glyph(0x3C, 0x66, 0x6E, 0x76, 0x66, 0x66, 0x3C, 0, 0, 0, 0, 0, 0, 0, 0, 0), // 0
		glyph(0x18, 0x38, 0x18, 0x18, 0x18, 0x18, 0x7E, 0, 0, 0, 0, 0, 0, 0, 0, 0), // 1
		glyph(0x3C, 0x66, 0x06, 0x0C, 0x30, 0x60, 0x7E, 0, 0, 0, 0, 0, 0, 0, 0, 0), // 2
		glyph(0x3C, 0x66, 0x06, 0x1C, 0x06, 0x66, 0x3C, 0, 0, 0, 0, 0, 0, 0, 0, 0), // 3
		glyph(0x0C, 0x1C, 0x3C, 0x6C, 0x7E, 0x0C, 0x0C, 0, 0, 0, 0, 0, 0, 0, 0, 0), // 4
		glyph(0x7E, 0x60, 0x7C, 0x06, 0x06, 0x66, 0x3C, 0, 0, 0, 0, 0, 0, 0, 0, 0), // 5
		glyph(0x3C, 0x66, 0x60, 0x7C, 0x66, 0x66, 0x3C, 0, 0, 0, 0, 0, 0, 0, 0, 0), // 6
		glyph(0x7E, 0x06, 0x0C, 0x18, 0x30, 0x30, 0x30, 0, 0, 0, 0, 0, 0, 0, 0, 0), // 7
		glyph(0x3C, 0x66, 0x66, 0x3C, 0x66, 0x66, 0x3C, 0, 0, 0, 0, 0, 0, 0, 0, 0), // 8
		glyph(0x3C, 0x66, 0x66, 0x3E, 0x06, 0x66, 0x3C, 0, 0, 0, 0, 0, 0, 0, 0, 0), // 9
	}
	for i, g := range digits {
		fontTable['0'+byte(i)] = g
	}

	letters := map[byte]Glyph{
		'A': glyph(0x18, 0x3C, 0x66, 0x66, 0x7E, 0x66, 0x66, 0, 0, 0, 0, 0, 0, 0, 0, 0),
		'B': glyph(0x7C, 0x66, 0x66, 0x7C, 0x66, 0x66, 0x7C, 0, 0, 0, 0, 0, 0, 0, 0, 0),
		'C': glyph(0x3C, 0x66, 0x60, 0x60, 0x60, 0x66, 0x3C, 0, 0, 0, 0, 0, 0, 0, 0, 0),
		'D': glyph(0x78, 0x6C, 0x66, 0x66, 0x66, 0x6C, 0x78, 0, 0, 0, 0, 0, 0, 0, 0, 0),
		'E': glyph(0x7E, 0x60, 0x60, 0x7C, 0x60, 0x60, 0x7E, 0, 0, 0, 0, 0, 0, 0, 0, 0),
		'F': glyph(0x7E, 0x60, 0x60, 0x7C, 0x60, 0x60, 0x60, 0, 0, 0, 0, 0, 0, 0, 0, 0),
		'G': glyph(0x3C, 0x66, 0x60, 0x6E, 0x66, 0x66, 0x3C, 0, 0, 0, 0, 0, 0, 0, 0, 0),
		'H': glyph(0x66, 0x66, 0x66, 0x7E, 0x66, 0x66, 0x66, 0, 0, 0, 0, 0, 0, 0, 0, 0),
		'I': glyph(0x3C, 0x18, 0x18, 0x18, 0x18, 0x18, 0x3C, 0, 0, 0, 0, 0, 0, 0, 0, 0),
		'J': glyph(0x1E, 0x0C, 0x0C, 0x0C, 0x0C, 0x6C, 0x38, 0, 0, 0, 0, 0, 0, 0, 0, 0),
		'K': glyph(0x66, 0x6C, 0x78, 0x70, 0x78, 0x6C, 0x66, 0, 0, 0, 0, 0, 0, 0, 0, 0),
		'L': glyph(0x60, 0x60, 0x60, 0x60, 0x60, 0x60, 0x7E, 0, 0, 0, 0, 0, 0, 0, 0, 0),
		'M': glyph(0x63, 0x77, 0x7F, 0x6B, 0x63, 0x63, 0x63, 0, 0, 0, 0, 0, 0, 0, 0, 0),
		'N': glyph(0x66, 0x76, 0x7E, 0x7E, 0x6E, 0x66, 0x66, 0, 0, 0, 0, 0, 0, 0, 0, 0),
		'O': glyph(0x3C, 0x66, 0x66, 0x66, 0x66, 0x66, 0x3C, 0, 0, 0, 0, 0, 0, 0, 0, 0),
		'P': glyph(0x7C, 0x66, 0x66, 0x7C, 0x60, 0x60, 0x60, 0, 0, 0, 0, 0, 0, 0, 0, 0),
		'Q': glyph(0x3C, 0x66, 0x66, 0x66, 0x6E, 0x6C, 0x36, 0, 0, 0, 0, 0, 0, 0, 0, 0),
		'R': glyph(0x7C, 0x66, 0x66, 0x7C, 0x6C, 0x66, 0x66, 0, 0, 0, 0, 0, 0, 0, 0, 0),
		'S': glyph(0x3C, 0x66, 0x60, 0x3C, 0x06, 0x66, 0x3C, 0, 0, 0, 0, 0, 0, 0, 0, 0),
		'T': glyph(0x7E, 0x18, 0x18, 0x18, 0x18, 0x18, 0x18, 0, 0, 0, 0, 0, 0, 0, 0, 0),
		'U': glyph(0x66, 0x66, 0x66, 0x66, 0x66, 0x66, 0x3C, 0, 0, 0, 0, 0, 0, 0, 0, 0),
		'V': glyph(0x66, 0x66, 0x66, 0x66, 0x66, 0x3C, 0x18, 0, 0, 0, 0, 0, 0, 0, 0, 0),
		'W': glyph(0x63, 0x63, 0x63, 0x6B, 0x7F, 0x77, 0x63, 0, 0, 0, 0, 0, 0, 0, 0, 0),
		'X': glyph(0x66, 0x66, 0x3C, 0x18, 0x3C, 0x66, 0x66, 0, 0, 0, 0, 0, 0, 0, 0, 0),
		'Y': glyph(0x66, 0x66, 0x66, 0x3C, 0x18, 0x18, 0x18, 0, 0, 0, 0, 0, 0, 0, 0, 0),
		'Z': glyph(0x7E, 0x06, 0x0C, 0x18, 0x30, 0x60, 0x7E, 0, 0, 0, 0, 0, 0, 0, 0, 0),
	}
	for ch, g := range letters {
		fontTable[ch] = g
		fontTable[ch-'A'+'a'] = g
	}
}

func glyph(rows ...byte) Glyph {
	var g Glyph
	copy(g[:], rows)
	return g
}

// GlyphFor returns the bitmap for ch, falling back to '?' for anything not
// bundled (spec.md §4.7 "unprintable characters render as ?").
func GlyphFor(ch byte) Glyph {
	if ch > 0x7E {
		ch = '?'
	}
	g := fontTable[ch]
	if g == (Glyph{}) && ch != ' ' {
		return fontTable['?']
	}
	return g
}
