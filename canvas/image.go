package canvas

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"

	"github.com/llgcode/draw2d"
	"github.com/llgcode/draw2d/draw2dimg"
	"github.com/llgcode/draw2d/draw2dkit"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// Image is a raster canvas. Primitives are rasterized with draw2d into a
// back buffer of the output size.
type Image struct {
	state
	out  draw.Image
	back *image.RGBA
	gc   *draw2dimg.GraphicContext
}

// NewImage creates a canvas that flushes onto out.
func NewImage(out draw.Image) *Image {
	b := out.Bounds()
	back := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	gc := draw2dimg.NewGraphicContext(back)
	gc.SetFillRule(draw2d.FillRuleEvenOdd)
	gc.SetLineCap(draw2d.RoundCap)
	gc.SetLineJoin(draw2d.RoundJoin)
	return &Image{out: out, back: back, gc: gc}
}

// NewRGBA creates a canvas over a new transparent image of the given size.
func NewRGBA(width, height int) *Image {
	return NewImage(image.NewRGBA(image.Rect(0, 0, width, height)))
}

// Output returns the image the canvas flushes onto.
func (c *Image) Output() draw.Image { return c.out }

// EncodePNG writes the flushed output as PNG.
func (c *Image) EncodePNG(w io.Writer) error {
	return png.Encode(w, c.out)
}

func (c *Image) Size() (int, int) {
	b := c.back.Bounds()
	return b.Dx(), b.Dy()
}

func (c *Image) SetPen(p Pen) {
	if !c.setPen(p) {
		return
	}
	c.gc.SetStrokeColor(p.Color)
	c.gc.SetLineWidth(c.penWidth())
	c.gc.SetLineDash(dashes(p.Kind, c.penWidth()), 0)
}

func (c *Image) SetBrush(b Brush) {
	if !c.setBrush(b) {
		return
	}
	c.gc.SetFillColor(b.Color)
}

func (c *Image) SetFont(f Font) {
	c.setFont(f)
}

func pathOf(closed bool, contours ...[]Point) *draw2d.Path {
	path := new(draw2d.Path)
	for _, pts := range contours {
		for i, p := range pts {
			if i == 0 {
				path.MoveTo(p.X, p.Y)
			} else {
				path.LineTo(p.X, p.Y)
			}
		}
		if closed {
			path.Close()
		}
	}
	return path
}

func (c *Image) fill(path *draw2d.Path) {
	if !c.fills() {
		return
	}
	if c.brush.Kind == BrushSolid {
		c.gc.Fill(path)
		return
	}

	coverage := image.NewRGBA(c.back.Bounds())
	mgc := draw2dimg.NewGraphicContext(coverage)
	mgc.SetFillRule(draw2d.FillRuleEvenOdd)
	mgc.SetFillColor(color.White)
	mgc.Fill(path)
	draw.DrawMask(c.back, c.back.Bounds(), hatchPattern{brush: c.brush}, image.Point{}, coverage, image.Point{}, draw.Over)
}

func (c *Image) stroke(path *draw2d.Path) {
	if c.strokes() {
		c.gc.Stroke(path)
	}
}

func (c *Image) DrawPolygon(pts []Point) error {
	if len(pts) < 3 {
		return ErrTooFewPoints
	}
	path := pathOf(true, pts)
	c.fill(path)
	c.stroke(path)
	return nil
}

func (c *Image) DrawPolyPolygon(pts []Point, counts []int) error {
	parts, err := contours(pts, counts)
	if err != nil {
		return err
	}
	valid := parts[:0:0]
	for _, p := range parts {
		if len(p) >= 3 {
			valid = append(valid, p)
		}
	}
	if len(valid) == 0 {
		return ErrTooFewPoints
	}
	path := pathOf(true, valid...)
	c.fill(path)
	c.stroke(path)
	return nil
}

func (c *Image) DrawLines(pts []Point) error {
	if len(pts) < 2 {
		return ErrTooFewPoints
	}
	c.stroke(pathOf(false, pts))
	return nil
}

func (c *Image) DrawCircle(center Point, radius float64) error {
	path := new(draw2d.Path)
	draw2dkit.Circle(path, center.X, center.Y, radius)
	c.fill(path)
	c.stroke(path)
	return nil
}

func (c *Image) TextExtent(text string) (float64, float64) {
	return measure(c.font, text)
}

func (c *Image) DrawRotatedText(text string, origin Point, angle float64) error {
	if text == "" {
		return nil
	}
	src := rasterText(c.font, text)
	s := fontScale(c.font)
	cos, sin := rotation(angle)
	m := f64.Aff3{
		s * cos, s * sin, origin.X,
		-s * sin, s * cos, origin.Y,
	}
	xdraw.BiLinear.Transform(c.back, m, src, src.Bounds(), xdraw.Over, nil)
	return nil
}

// InvertRect flips the coverage of the back buffer: covered pixels become
// transparent and uncovered ones take the brush color (the pen color when
// the brush is empty).
func (c *Image) InvertRect(x, y, width, height float64) error {
	paint := c.brush.Color
	if !c.fills() {
		paint = c.pen.Color
	}
	r := image.Rect(int(x), int(y), int(x+width), int(y+height)).Intersect(c.back.Bounds())
	for py := r.Min.Y; py < r.Max.Y; py++ {
		for px := r.Min.X; px < r.Max.X; px++ {
			a := 255 - uint32(c.back.RGBAAt(px, py).A)
			alpha := a * uint32(paint.A) / 255
			c.back.SetRGBA(px, py, color.RGBA{
				R: uint8(uint32(paint.R) * alpha / 255),
				G: uint8(uint32(paint.G) * alpha / 255),
				B: uint8(uint32(paint.B) * alpha / 255),
				A: uint8(alpha),
			})
		}
	}
	return nil
}

func (c *Image) Flush(mask image.Image) error {
	b := c.out.Bounds()
	if mask == nil {
		draw.Draw(c.out, b, c.back, image.Point{}, draw.Over)
	} else {
		draw.DrawMask(c.out, b, c.back, image.Point{}, mask, mask.Bounds().Min, draw.Over)
	}
	draw.Draw(c.back, c.back.Bounds(), image.Transparent, image.Point{}, draw.Src)
	return nil
}
