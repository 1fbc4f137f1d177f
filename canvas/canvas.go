// Package canvas defines the immediate-mode drawing surface the renderers
// paint on, with raster, SVG and terminal implementations.
//
// Coordinates are pixel-line: x grows right, y grows down. Drawing goes to a
// back buffer that reaches the output only on Flush.
package canvas

import (
	"errors"
	"image"
	"image/color"
)

var (
	ErrTooFewPoints = errors.New("canvas: too few points")
	ErrBadCounts    = errors.New("canvas: contour counts do not match points")
)

// Point is a position in pixel-line space.
type Point struct {
	X, Y float64
}

type PenKind int

const (
	PenNone PenKind = iota
	PenSolid
	PenDot
	PenLongDash
	PenShortDash
	PenDotDash
)

type Pen struct {
	Kind  PenKind
	Color color.RGBA
	Width float64
}

type BrushKind int

const (
	BrushNone BrushKind = iota
	BrushSolid
	BrushBDiagonal
	BrushCrossDiag
	BrushFDiagonal
	BrushCross
	BrushHorizontal
	BrushVertical
)

type Brush struct {
	Kind  BrushKind
	Color color.RGBA
}

// Font sets the text size in pixels and its colors. A zero BackColor draws
// no background.
type Font struct {
	Size      float64
	Color     color.RGBA
	BackColor color.RGBA
}

// Canvas is a 2D drawing surface.
type Canvas interface {
	// Size returns the surface size in pixels.
	Size() (width, height int)

	SetPen(p Pen)
	SetBrush(b Brush)
	SetFont(f Font)

	// DrawPolygon fills with the brush and outlines with the pen.
	DrawPolygon(pts []Point) error
	// DrawPolyPolygon draws several contours as one even-odd shape; counts
	// holds the number of points of each contour.
	DrawPolyPolygon(pts []Point, counts []int) error
	// DrawLines strokes an open polyline with the pen.
	DrawLines(pts []Point) error
	DrawCircle(center Point, radius float64) error

	// TextExtent returns the unrotated size of text in the current font.
	TextExtent(text string) (width, height float64)
	// DrawRotatedText draws text with its upper-left corner at origin,
	// rotated angle degrees counter-clockwise around it.
	DrawRotatedText(text string, origin Point, angle float64) error

	// InvertRect inverts the coverage of the back buffer inside the rectangle.
	InvertRect(x, y, width, height float64) error

	// Flush composites the back buffer onto the output. Only pixels where
	// mask is not transparent are written; a nil mask writes everything.
	Flush(mask image.Image) error
}

// state coalesces pen, brush and font changes so implementations only touch
// their drawing context when the value really changes.
type state struct {
	pen   Pen
	brush Brush
	font  Font

	penSet, brushSet, fontSet bool
	changes                   int
}

func (s *state) setPen(p Pen) bool {
	if s.penSet && s.pen == p {
		return false
	}
	s.pen, s.penSet = p, true
	s.changes++
	return true
}

func (s *state) setBrush(b Brush) bool {
	if s.brushSet && s.brush == b {
		return false
	}
	s.brush, s.brushSet = b, true
	s.changes++
	return true
}

func (s *state) setFont(f Font) bool {
	if s.fontSet && s.font == f {
		return false
	}
	s.font, s.fontSet = f, true
	s.changes++
	return true
}

func (s *state) strokes() bool {
	return s.pen.Kind != PenNone && s.pen.Color.A > 0
}

func (s *state) fills() bool {
	return s.brush.Kind != BrushNone && s.brush.Color.A > 0
}

func (s *state) penWidth() float64 {
	if s.pen.Width < 1 {
		return 1
	}
	return s.pen.Width
}

// dashes returns the on/off pattern of the pen, nil for solid lines.
func dashes(kind PenKind, width float64) []float64 {
	if width < 1 {
		width = 1
	}
	switch kind {
	case PenDot:
		return []float64{width, 2 * width}
	case PenLongDash:
		return []float64{8 * width, 4 * width}
	case PenShortDash:
		return []float64{4 * width, 4 * width}
	case PenDotDash:
		return []float64{6 * width, 3 * width, width, 3 * width}
	}
	return nil
}

// contours splits pts by counts, validating that they match.
func contours(pts []Point, counts []int) ([][]Point, error) {
	total := 0
	for _, c := range counts {
		if c < 0 {
			return nil, ErrBadCounts
		}
		total += c
	}
	if total != len(pts) {
		return nil, ErrBadCounts
	}
	out := make([][]Point, 0, len(counts))
	start := 0
	for _, c := range counts {
		out = append(out, pts[start:start+c])
		start += c
	}
	return out, nil
}

func maskAllows(mask image.Image, x, y int) bool {
	if mask == nil {
		return true
	}
	if !(image.Point{X: x, Y: y}.In(mask.Bounds())) {
		return false
	}
	_, _, _, a := mask.At(x, y).RGBA()
	return a > 0
}
