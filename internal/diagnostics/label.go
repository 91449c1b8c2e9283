package diagnostics

import (
	"image"
	"image/color"
)

// 3x5 pixel digits, enough for hull indices.
var glyphs = map[rune][5]string{
	'0': {"111", "101", "101", "101", "111"},
	'1': {"010", "110", "010", "010", "111"},
	'2': {"111", "001", "111", "100", "111"},
	'3': {"111", "001", "111", "001", "111"},
	'4': {"101", "101", "111", "001", "001"},
	'5': {"111", "100", "111", "001", "111"},
	'6': {"111", "100", "111", "101", "111"},
	'7': {"111", "001", "001", "001", "001"},
	'8': {"111", "101", "111", "101", "111"},
	'9': {"111", "101", "111", "001", "111"},
	'-': {"000", "000", "111", "000", "000"},
}

const (
	glyphAdvance = 4
	labelHeight  = 7
)

// drawLabel writes text at (x, y) on a filled background box. Unknown runes
// leave a gap. Pixels outside img are skipped.
func drawLabel(img *image.NRGBA, x, y int, text string, fg, bg color.RGBA) {
	bounds := img.Bounds()
	set := func(px, py int, c color.Color) {
		if image.Pt(px, py).In(bounds) {
			img.Set(px, py, c)
		}
	}

	w := len(text) * glyphAdvance
	for dy := -1; dy < labelHeight-1; dy++ {
		for dx := -1; dx < w; dx++ {
			set(x+dx, y+dy, bg)
		}
	}

	cx := x
	for _, ch := range text {
		if g, ok := glyphs[ch]; ok {
			for row, line := range g {
				for col, bit := range line {
					if bit == '1' {
						set(cx+col, y+row, fg)
					}
				}
			}
		}
		cx += glyphAdvance
	}
}
