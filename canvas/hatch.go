package canvas

import (
	"image"
	"image/color"
)

const hatchSpacing = 8

func mod(a, n int) int {
	r := a % n
	if r < 0 {
		r += n
	}
	return r
}

// hatched reports whether pixel (x, y) belongs to the hatch lines of kind.
func hatched(kind BrushKind, x, y int) bool {
	switch kind {
	case BrushSolid:
		return true
	case BrushHorizontal:
		return mod(y, hatchSpacing) == 0
	case BrushVertical:
		return mod(x, hatchSpacing) == 0
	case BrushCross:
		return mod(x, hatchSpacing) == 0 || mod(y, hatchSpacing) == 0
	case BrushFDiagonal:
		return mod(x-y, hatchSpacing) == 0
	case BrushBDiagonal:
		return mod(x+y, hatchSpacing) == 0
	case BrushCrossDiag:
		return mod(x-y, hatchSpacing) == 0 || mod(x+y, hatchSpacing) == 0
	}
	return false
}

// hatchPattern is an unbounded image painting the hatch of a brush.
type hatchPattern struct {
	brush Brush
}

func (h hatchPattern) ColorModel() color.Model { return color.RGBAModel }

func (h hatchPattern) Bounds() image.Rectangle {
	return image.Rect(-1e9, -1e9, 1e9, 1e9)
}

func (h hatchPattern) At(x, y int) color.Color {
	if hatched(h.brush.Kind, x, y) {
		return h.brush.Color
	}
	return color.RGBA{}
}
