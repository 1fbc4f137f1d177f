package canvas

import (
	"bytes"
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	red  = color.RGBA{R: 255, A: 255}
	blue = color.RGBA{B: 255, A: 255}
)

func square(x0, y0, x1, y1 float64) []Point {
	return []Point{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}}
}

func TestStateCoalescesChanges(t *testing.T) {
	c := NewRGBA(10, 10)
	pen := Pen{Kind: PenSolid, Color: red, Width: 1}

	c.SetPen(pen)
	c.SetPen(pen)
	c.SetBrush(Brush{Kind: BrushSolid, Color: blue})
	c.SetBrush(Brush{Kind: BrushSolid, Color: blue})
	c.SetFont(Font{Size: 10})
	c.SetFont(Font{Size: 10})
	assert.Equal(t, 3, c.changes)

	c.SetPen(Pen{Kind: PenDot, Color: red, Width: 1})
	assert.Equal(t, 4, c.changes)
}

func TestImageDrawsOnlyOnFlush(t *testing.T) {
	out := image.NewRGBA(image.Rect(0, 0, 20, 20))
	c := NewImage(out)
	c.SetPen(Pen{Kind: PenNone})
	c.SetBrush(Brush{Kind: BrushSolid, Color: red})

	require.NoError(t, c.DrawPolygon(square(2, 2, 18, 18)))
	assert.Equal(t, color.RGBA{}, out.RGBAAt(10, 10))

	require.NoError(t, c.Flush(nil))
	assert.Equal(t, red, out.RGBAAt(10, 10))
	assert.Equal(t, color.RGBA{}, out.RGBAAt(0, 0))
}

func TestImageFlushHonorsMask(t *testing.T) {
	out := image.NewRGBA(image.Rect(0, 0, 20, 20))
	c := NewImage(out)
	c.SetPen(Pen{Kind: PenNone})
	c.SetBrush(Brush{Kind: BrushSolid, Color: red})
	require.NoError(t, c.DrawPolygon(square(0, 0, 20, 20)))

	mask := image.NewAlpha(image.Rect(0, 0, 20, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 10; x++ {
			mask.SetAlpha(x, y, color.Alpha{A: 255})
		}
	}
	require.NoError(t, c.Flush(mask))

	assert.Equal(t, red, out.RGBAAt(5, 10))
	assert.Equal(t, color.RGBA{}, out.RGBAAt(15, 10))
}

func TestImagePolyPolygonHole(t *testing.T) {
	out := image.NewRGBA(image.Rect(0, 0, 30, 30))
	c := NewImage(out)
	c.SetPen(Pen{Kind: PenNone})
	c.SetBrush(Brush{Kind: BrushSolid, Color: blue})

	pts := append(square(0, 0, 30, 30), square(10, 10, 20, 20)...)
	require.NoError(t, c.DrawPolyPolygon(pts, []int{4, 4}))
	require.NoError(t, c.Flush(nil))

	assert.Equal(t, blue, out.RGBAAt(5, 5))
	assert.Equal(t, color.RGBA{}, out.RGBAAt(15, 15))

	assert.ErrorIs(t, c.DrawPolyPolygon(pts, []int{4, 3}), ErrBadCounts)
}

func TestImageInvertRect(t *testing.T) {
	out := image.NewRGBA(image.Rect(0, 0, 20, 20))
	c := NewImage(out)
	c.SetPen(Pen{Kind: PenNone})
	c.SetBrush(Brush{Kind: BrushSolid, Color: red})
	require.NoError(t, c.DrawPolygon(square(0, 0, 10, 20)))
	require.NoError(t, c.InvertRect(0, 0, 20, 20))
	require.NoError(t, c.Flush(nil))

	assert.Equal(t, uint8(0), out.RGBAAt(5, 10).A)
	assert.Equal(t, red, out.RGBAAt(15, 10))
}

func TestTooFewPoints(t *testing.T) {
	for _, c := range []Canvas{NewRGBA(5, 5), NewBraille(5, 5), NewSVG(&bytes.Buffer{}, 5, 5)} {
		assert.ErrorIs(t, c.DrawPolygon([]Point{{0, 0}, {1, 1}}), ErrTooFewPoints)
		assert.ErrorIs(t, c.DrawLines([]Point{{0, 0}}), ErrTooFewPoints)
	}
}

func TestTextExtentScalesWithFont(t *testing.T) {
	c := NewRGBA(10, 10)
	c.SetFont(Font{Size: 13})
	w1, h1 := c.TextExtent("abc")
	c.SetFont(Font{Size: 26})
	w2, h2 := c.TextExtent("abc")

	assert.Equal(t, 13.0, h1)
	assert.InDelta(t, 2*w1, w2, 1e-9)
	assert.InDelta(t, 2*h1, h2, 1e-9)
}

func TestSVGFlushWritesGroup(t *testing.T) {
	var buf bytes.Buffer
	c := NewSVG(&buf, 100, 50)
	c.SetPen(Pen{Kind: PenLongDash, Color: red, Width: 2})
	c.SetBrush(Brush{Kind: BrushCross, Color: blue})

	require.NoError(t, c.DrawPolygon(square(10, 10, 40, 40)))
	require.NoError(t, c.DrawRotatedText("hi & bye", Point{5, 5}, 45))
	assert.NotContains(t, buf.String(), "<path")

	require.NoError(t, c.Flush(nil))
	c.End()

	doc := buf.String()
	assert.Contains(t, doc, "<path")
	assert.Contains(t, doc, `stroke-dasharray="16,8"`)
	assert.Contains(t, doc, `fill="url(#hatch0)"`)
	assert.Contains(t, doc, "<pattern")
	assert.Contains(t, doc, `rotate(-45 5 5)`)
	assert.Contains(t, doc, "hi &amp; bye")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(doc), "</svg>"))

	assert.Error(t, c.Flush(nil))
}

func TestSVGMask(t *testing.T) {
	var buf bytes.Buffer
	c := NewSVG(&buf, 4, 4)
	c.SetBrush(Brush{Kind: BrushSolid, Color: red})
	require.NoError(t, c.DrawCircle(Point{2, 2}, 1))
	require.NoError(t, c.Flush(image.NewAlpha(image.Rect(0, 0, 4, 4))))
	c.End()

	assert.Contains(t, buf.String(), `mask="url(#mask0)"`)
	assert.Contains(t, buf.String(), "data:image/png;base64,")
}

func TestBrailleLine(t *testing.T) {
	c := NewBraille(4, 1)
	c.SetPen(Pen{Kind: PenSolid, Color: red})
	require.NoError(t, c.DrawLines([]Point{{0, 0}, {7, 0}}))
	assert.Equal(t, "    ", c.Plain())

	require.NoError(t, c.Flush(nil))
	// top row dots of both columns in every cell
	assert.Equal(t, strings.Repeat(string(rune(0x2800+0x09)), 4), c.Plain())
}

func TestBrailleFillAndInvert(t *testing.T) {
	c := NewBraille(2, 1)
	c.SetPen(Pen{Kind: PenNone})
	c.SetBrush(Brush{Kind: BrushSolid, Color: blue})
	require.NoError(t, c.DrawPolygon(square(0, 0, 2, 4)))
	require.NoError(t, c.InvertRect(0, 0, 4, 4))
	require.NoError(t, c.Flush(nil))

	assert.Equal(t, " "+string(rune(0x28FF)), c.Plain())
}

func TestBrailleText(t *testing.T) {
	c := NewBraille(6, 2)
	c.SetFont(Font{Color: red})
	require.NoError(t, c.DrawRotatedText("abc", Point{2, 4}, 30))
	require.NoError(t, c.Flush(nil))

	assert.Equal(t, "      \n abc  ", c.Plain())
	w, h := c.TextExtent("abc")
	assert.Equal(t, 6.0, w)
	assert.Equal(t, 4.0, h)
}

func TestHatched(t *testing.T) {
	assert.True(t, hatched(BrushHorizontal, 3, 16))
	assert.False(t, hatched(BrushHorizontal, 3, 17))
	assert.True(t, hatched(BrushVertical, -8, 1))
	assert.True(t, hatched(BrushFDiagonal, 5, 5))
	assert.True(t, hatched(BrushBDiagonal, 5, 3))
	assert.False(t, hatched(BrushNone, 0, 0))
}

func TestRotate(t *testing.T) {
	x, y := Rotate(10, 0, 90)
	assert.InDelta(t, 0, x, 1e-9)
	assert.InDelta(t, -10, y, 1e-9)

	x, y = Rotate(3, 4, 0)
	assert.Equal(t, 3.0, x)
	assert.Equal(t, 4.0, y)
}
