package canvas

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"strings"

	svg "github.com/ajstarks/svgo"
)

// SVG is a vector canvas. Drawing goes to an in-memory layer that is copied
// into the document as a group on every Flush.
type SVG struct {
	state
	out           *svg.SVG
	back          bytes.Buffer
	layer         *svg.SVG
	width, height int
	patterns      map[Brush]string
	flushes       int
	ended         bool
}

// NewSVG starts an SVG document of the given size on w. Call End to close it.
func NewSVG(w io.Writer, width, height int) *SVG {
	c := &SVG{
		out:      svg.New(w),
		width:    width,
		height:   height,
		patterns: make(map[Brush]string),
	}
	c.layer = svg.New(&c.back)
	c.out.Start(width, height)
	return c
}

// End closes the document. Unflushed drawing is discarded.
func (c *SVG) End() {
	if c.ended {
		return
	}
	c.ended = true
	c.out.End()
}

func (c *SVG) Size() (int, int) { return c.width, c.height }

func (c *SVG) SetPen(p Pen)     { c.setPen(p) }
func (c *SVG) SetBrush(b Brush) { c.setBrush(b) }
func (c *SVG) SetFont(f Font)   { c.setFont(f) }

func rgb(c color.RGBA) string {
	return fmt.Sprintf("rgb(%d,%d,%d)", c.R, c.G, c.B)
}

func opacity(c color.RGBA) string {
	return fnum(float64(c.A) / 255)
}

func fnum(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.3f", v), "0"), ".")
}

func (c *SVG) strokeAttrs() []string {
	if !c.strokes() {
		return []string{`stroke="none"`}
	}
	attrs := []string{
		fmt.Sprintf(`stroke="%s"`, rgb(c.pen.Color)),
		fmt.Sprintf(`stroke-opacity="%s"`, opacity(c.pen.Color)),
		fmt.Sprintf(`stroke-width="%s"`, fnum(c.penWidth())),
		`stroke-linecap="round"`,
		`stroke-linejoin="round"`,
	}
	if d := dashes(c.pen.Kind, c.penWidth()); d != nil {
		parts := make([]string, len(d))
		for i, v := range d {
			parts[i] = fnum(v)
		}
		attrs = append(attrs, fmt.Sprintf(`stroke-dasharray="%s"`, strings.Join(parts, ",")))
	}
	return attrs
}

func (c *SVG) fillAttrs() []string {
	if !c.fills() {
		return []string{`fill="none"`}
	}
	if c.brush.Kind == BrushSolid {
		return []string{
			fmt.Sprintf(`fill="%s"`, rgb(c.brush.Color)),
			fmt.Sprintf(`fill-opacity="%s"`, opacity(c.brush.Color)),
			`fill-rule="evenodd"`,
		}
	}
	return []string{fmt.Sprintf(`fill="url(#%s)"`, c.pattern()), `fill-rule="evenodd"`}
}

// pattern declares the hatch of the current brush once and returns its id.
func (c *SVG) pattern() string {
	if id, ok := c.patterns[c.brush]; ok {
		return id
	}
	id := fmt.Sprintf("hatch%d", len(c.patterns))
	c.patterns[c.brush] = id

	c.out.Def()
	c.out.Pattern(id, 0, 0, hatchSpacing, hatchSpacing, "user")
	for y := 0; y < hatchSpacing; y++ {
		for x := 0; x < hatchSpacing; x++ {
			if hatched(c.brush.Kind, x, y) {
				c.out.Rect(x, y, 1, 1, fmt.Sprintf(`fill="%s"`, rgb(c.brush.Color)),
					fmt.Sprintf(`fill-opacity="%s"`, opacity(c.brush.Color)))
			}
		}
	}
	c.out.PatternEnd()
	c.out.DefEnd()
	return id
}

func pathData(closed bool, contours ...[]Point) string {
	var b strings.Builder
	for _, pts := range contours {
		for i, p := range pts {
			cmd := "L"
			if i == 0 {
				cmd = "M"
			}
			fmt.Fprintf(&b, "%s%s %s ", cmd, fnum(p.X), fnum(p.Y))
		}
		if closed {
			b.WriteString("Z ")
		}
	}
	return strings.TrimSpace(b.String())
}

func (c *SVG) shape(d string) {
	attrs := append(c.fillAttrs(), c.strokeAttrs()...)
	c.layer.Path(d, attrs...)
}

func (c *SVG) DrawPolygon(pts []Point) error {
	if len(pts) < 3 {
		return ErrTooFewPoints
	}
	c.shape(pathData(true, pts))
	return nil
}

func (c *SVG) DrawPolyPolygon(pts []Point, counts []int) error {
	parts, err := contours(pts, counts)
	if err != nil {
		return err
	}
	var valid [][]Point
	for _, p := range parts {
		if len(p) >= 3 {
			valid = append(valid, p)
		}
	}
	if len(valid) == 0 {
		return ErrTooFewPoints
	}
	c.shape(pathData(true, valid...))
	return nil
}

func (c *SVG) DrawLines(pts []Point) error {
	if len(pts) < 2 {
		return ErrTooFewPoints
	}
	if !c.strokes() {
		return nil
	}
	c.layer.Path(pathData(false, pts), append([]string{`fill="none"`}, c.strokeAttrs()...)...)
	return nil
}

func (c *SVG) DrawCircle(center Point, radius float64) error {
	r := int(math.Max(1, math.Round(radius)))
	attrs := append(c.fillAttrs(), c.strokeAttrs()...)
	c.layer.Circle(int(math.Round(center.X)), int(math.Round(center.Y)), r, attrs...)
	return nil
}

func (c *SVG) TextExtent(text string) (float64, float64) {
	return measure(c.font, text)
}

func (c *SVG) DrawRotatedText(text string, origin Point, angle float64) error {
	if text == "" {
		return nil
	}
	ox, oy := int(math.Round(origin.X)), int(math.Round(origin.Y))
	transform := fmt.Sprintf(`transform="rotate(%s %d %d)"`, fnum(-angle), ox, oy)

	if c.font.BackColor.A > 0 {
		w, h := measure(c.font, text)
		c.layer.Rect(ox, oy, int(math.Ceil(w)), int(math.Ceil(h)), transform,
			fmt.Sprintf(`fill="%s"`, rgb(c.font.BackColor)),
			fmt.Sprintf(`fill-opacity="%s"`, opacity(c.font.BackColor)))
	}

	s := fontScale(c.font)
	baseline := oy + int(math.Round(float64(face.Metrics().Ascent.Ceil())*s))
	c.layer.Text(ox, baseline, text, transform,
		fmt.Sprintf(`font-size="%s"`, fnum(faceHeight*s)),
		`font-family="monospace"`,
		fmt.Sprintf(`fill="%s"`, rgb(c.font.Color)),
		fmt.Sprintf(`fill-opacity="%s"`, opacity(c.font.Color)))
	return nil
}

// InvertRect draws a white difference-blended rectangle, which inverts what
// lies beneath it when the document is rendered.
func (c *SVG) InvertRect(x, y, width, height float64) error {
	c.layer.Rect(int(x), int(y), int(math.Ceil(width)), int(math.Ceil(height)),
		`fill="white"`, `style="mix-blend-mode:difference"`)
	return nil
}

func (c *SVG) Flush(mask image.Image) error {
	if c.ended {
		return fmt.Errorf("canvas: svg document already ended")
	}
	if c.back.Len() == 0 {
		return nil
	}
	defer c.back.Reset()

	if mask == nil {
		c.out.Group()
	} else {
		uri, err := maskURI(mask)
		if err != nil {
			return err
		}
		id := fmt.Sprintf("mask%d", c.flushes)
		c.out.Def()
		c.out.Mask(id, 0, 0, c.width, c.height)
		c.out.Image(0, 0, c.width, c.height, uri)
		c.out.MaskEnd()
		c.out.DefEnd()
		c.out.Group(fmt.Sprintf(`mask="url(#%s)"`, id))
	}
	c.flushes++
	if _, err := c.out.Writer.Write(c.back.Bytes()); err != nil {
		return err
	}
	c.out.Gend()
	return nil
}

// maskURI encodes the alpha of mask as a luminance PNG data URI.
func maskURI(mask image.Image) (string, error) {
	b := mask.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			_, _, _, a := mask.At(x, y).RGBA()
			gray.SetGray(x-b.Min.X, y-b.Min.Y, color.Gray{Y: uint8(a >> 8)})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, gray); err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
