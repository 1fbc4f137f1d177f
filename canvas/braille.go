package canvas

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// brailleBuf is a grid of terminal cells, each holding a 2x4 micro-pixel
// braille mask, the color of its last write and an optional text rune.
type brailleBuf struct {
	w, h int
	m    [][]uint8
	col  [][]color.RGBA
	txt  [][]rune
}

func newBrailleBuf(w, h int) *brailleBuf {
	b := &brailleBuf{w: w, h: h}
	b.m = make([][]uint8, h)
	b.col = make([][]color.RGBA, h)
	b.txt = make([][]rune, h)
	for i := 0; i < h; i++ {
		b.m[i] = make([]uint8, w)
		b.col[i] = make([]color.RGBA, w)
		b.txt[i] = make([]rune, w)
	}
	return b
}

var brailleBits = [2][4]uint8{
	{0x01, 0x02, 0x04, 0x40},
	{0x08, 0x10, 0x20, 0x80},
}

// cell locates micro-pixel (mx, my), reporting false when out of the grid.
func (b *brailleBuf) cell(mx, my int) (cx, cy int, bit uint8, ok bool) {
	if mx < 0 || my < 0 {
		return 0, 0, 0, false
	}
	cx, cy = mx/2, my/4
	if cx >= b.w || cy >= b.h {
		return 0, 0, 0, false
	}
	return cx, cy, brailleBits[mx%2][my%4], true
}

func (b *brailleBuf) setPixel(mx, my int, c color.RGBA) {
	cx, cy, bit, ok := b.cell(mx, my)
	if !ok {
		return
	}
	b.m[cy][cx] |= bit
	b.col[cy][cx] = c
}

func (b *brailleBuf) isSet(mx, my int) bool {
	cx, cy, bit, ok := b.cell(mx, my)
	return ok && b.m[cy][cx]&bit != 0
}

func (b *brailleBuf) flipPixel(mx, my int, c color.RGBA) {
	cx, cy, bit, ok := b.cell(mx, my)
	if !ok {
		return
	}
	b.m[cy][cx] ^= bit
	if b.m[cy][cx]&bit != 0 {
		b.col[cy][cx] = c
	}
}

func (b *brailleBuf) reset() {
	for y := 0; y < b.h; y++ {
		for x := 0; x < b.w; x++ {
			b.m[y][x] = 0
			b.col[y][x] = color.RGBA{}
			b.txt[y][x] = 0
		}
	}
}

// drawLine draws a Bresenham line on the micro grid. pattern alternates on and
// off lengths in micro-pixels, empty for a solid line; phase carries the
// dash position across segments.
func (b *brailleBuf) drawLine(x0, y0, x1, y1 int, c color.RGBA, pattern []int, phase *int) {
	dx := abs(x1 - x0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	dy := -abs(y1 - y0)
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx + dy
	for {
		if dashOn(pattern, *phase) {
			b.setPixel(x0, y0, c)
		}
		*phase++
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func dashOn(pattern []int, step int) bool {
	if len(pattern) == 0 {
		return true
	}
	period := 0
	for _, v := range pattern {
		period += v
	}
	step %= period
	for i, v := range pattern {
		if step < v {
			return i%2 == 0
		}
		step -= v
	}
	return true
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Braille is a terminal canvas drawing with unicode braille characters.
// Every cell covers 2x4 pixels, so a canvas of w x h cells has a pixel size
// of 2w x 4h.
type Braille struct {
	state
	back  *brailleBuf
	front *brailleBuf
}

// NewBraille creates a terminal canvas of cols x rows cells.
func NewBraille(cols, rows int) *Braille {
	return &Braille{back: newBrailleBuf(cols, rows), front: newBrailleBuf(cols, rows)}
}

func (c *Braille) Size() (int, int) { return c.back.w * 2, c.back.h * 4 }

func (c *Braille) SetPen(p Pen)     { c.setPen(p) }
func (c *Braille) SetBrush(b Brush) { c.setBrush(b) }
func (c *Braille) SetFont(f Font)   { c.setFont(f) }

func (c *Braille) dashPattern() []int {
	d := dashes(c.pen.Kind, 1)
	out := make([]int, len(d))
	for i, v := range d {
		out[i] = int(math.Max(1, math.Round(v)))
	}
	return out
}

func (c *Braille) outline(pts []Point, closed bool) {
	if !c.strokes() || len(pts) == 0 {
		return
	}
	pattern := c.dashPattern()
	phase := 0
	n := len(pts)
	if !closed {
		n--
	}
	for i := 0; i < n; i++ {
		a, b := pts[i], pts[(i+1)%len(pts)]
		c.back.drawLine(int(a.X), int(a.Y), int(b.X), int(b.Y), c.pen.Color, pattern, &phase)
	}
	if len(pts) == 1 {
		c.back.setPixel(int(pts[0].X), int(pts[0].Y), c.pen.Color)
	}
}

// fill scan-converts the contours with the even-odd rule.
func (c *Braille) fill(contours [][]Point) {
	if !c.fills() {
		return
	}
	_, h := c.Size()
	for y := 0; y < h; y++ {
		sy := float64(y) + 0.5
		var xs []float64
		for _, pts := range contours {
			for i := range pts {
				a, b := pts[i], pts[(i+1)%len(pts)]
				if a.Y == b.Y {
					continue
				}
				if (sy >= a.Y && sy < b.Y) || (sy >= b.Y && sy < a.Y) {
					t := (sy - a.Y) / (b.Y - a.Y)
					xs = append(xs, a.X+t*(b.X-a.X))
				}
			}
		}
		sort.Float64s(xs)
		for i := 0; i+1 < len(xs); i += 2 {
			for x := int(math.Ceil(xs[i] - 0.5)); float64(x)+0.5 <= xs[i+1]; x++ {
				if hatched(c.brush.Kind, x, y) {
					c.back.setPixel(x, y, c.brush.Color)
				}
			}
		}
	}
}

func (c *Braille) DrawPolygon(pts []Point) error {
	if len(pts) < 3 {
		return ErrTooFewPoints
	}
	c.fill([][]Point{pts})
	c.outline(pts, true)
	return nil
}

func (c *Braille) DrawPolyPolygon(pts []Point, counts []int) error {
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
	c.fill(valid)
	for _, p := range valid {
		c.outline(p, true)
	}
	return nil
}

func (c *Braille) DrawLines(pts []Point) error {
	if len(pts) < 2 {
		return ErrTooFewPoints
	}
	c.outline(pts, false)
	return nil
}

func (c *Braille) DrawCircle(center Point, radius float64) error {
	r := math.Max(radius, 0.5)
	x0, x1 := int(math.Floor(center.X-r)), int(math.Ceil(center.X+r))
	y0, y1 := int(math.Floor(center.Y-r)), int(math.Ceil(center.Y+r))
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			d := math.Hypot(float64(x)-center.X, float64(y)-center.Y)
			switch {
			case c.strokes() && math.Abs(d-r) <= 0.5:
				c.back.setPixel(x, y, c.pen.Color)
			case c.fills() && d < r && hatched(c.brush.Kind, x, y):
				c.back.setPixel(x, y, c.brush.Color)
			}
		}
	}
	return nil
}

// TextExtent counts one cell per rune; terminal text does not scale.
func (c *Braille) TextExtent(text string) (float64, float64) {
	return float64(len([]rune(text)) * 2), 4
}

// DrawRotatedText writes the runes on the cell row of origin. Terminal cells
// cannot be rotated, so angle is ignored.
func (c *Braille) DrawRotatedText(text string, origin Point, angle float64) error {
	cx, cy := int(origin.X)/2, int(origin.Y)/4
	if cy < 0 || cy >= c.back.h {
		return nil
	}
	for i, r := range []rune(text) {
		x := cx + i
		if x < 0 || x >= c.back.w {
			continue
		}
		c.back.txt[cy][x] = r
		c.back.col[cy][x] = c.font.Color
	}
	return nil
}

func (c *Braille) InvertRect(x, y, width, height float64) error {
	paint := c.brush.Color
	if !c.fills() {
		paint = c.pen.Color
	}
	w, h := c.Size()
	r := image.Rect(int(x), int(y), int(x+width), int(y+height)).Intersect(image.Rect(0, 0, w, h))
	for py := r.Min.Y; py < r.Max.Y; py++ {
		for px := r.Min.X; px < r.Max.X; px++ {
			c.back.flipPixel(px, py, paint)
		}
	}
	return nil
}

func (c *Braille) Flush(mask image.Image) error {
	for cy := 0; cy < c.back.h; cy++ {
		for cx := 0; cx < c.back.w; cx++ {
			if t := c.back.txt[cy][cx]; t != 0 && maskAllows(mask, cx*2, cy*4) {
				c.front.txt[cy][cx] = t
				c.front.col[cy][cx] = c.back.col[cy][cx]
			}
			if c.back.m[cy][cx] == 0 {
				continue
			}
			for dx := 0; dx < 2; dx++ {
				for dy := 0; dy < 4; dy++ {
					mx, my := cx*2+dx, cy*4+dy
					if c.back.isSet(mx, my) && maskAllows(mask, mx, my) {
						c.front.setPixel(mx, my, c.back.col[cy][cx])
					}
				}
			}
		}
	}
	c.back.reset()
	return nil
}

func hexColor(c color.RGBA) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B))
}

// Lines returns the flushed content, one string per row, colored with ANSI
// sequences.
func (c *Braille) Lines() []string {
	out := make([]string, c.front.h)
	styles := make(map[color.RGBA]lipgloss.Style)
	for y := 0; y < c.front.h; y++ {
		var row strings.Builder
		for x := 0; x < c.front.w; x++ {
			r := ' '
			switch {
			case c.front.txt[y][x] != 0:
				r = c.front.txt[y][x]
			case c.front.m[y][x] != 0:
				r = rune(0x2800 + int(c.front.m[y][x]))
			}
			if r == ' ' {
				row.WriteRune(r)
				continue
			}
			col := c.front.col[y][x]
			st, ok := styles[col]
			if !ok {
				st = lipgloss.NewStyle().Foreground(hexColor(col))
				styles[col] = st
			}
			row.WriteString(st.Render(string(r)))
		}
		out[y] = row.String()
	}
	return out
}

// String joins Lines with newlines.
func (c *Braille) String() string {
	return strings.Join(c.Lines(), "\n")
}

// Plain returns the flushed content without colors.
func (c *Braille) Plain() string {
	out := make([]string, c.front.h)
	for y := 0; y < c.front.h; y++ {
		row := make([]rune, c.front.w)
		for x := 0; x < c.front.w; x++ {
			switch {
			case c.front.txt[y][x] != 0:
				row[x] = c.front.txt[y][x]
			case c.front.m[y][x] != 0:
				row[x] = rune(0x2800 + int(c.front.m[y][x]))
			default:
				row[x] = ' '
			}
		}
		out[y] = string(row)
	}
	return strings.Join(out, "\n")
}
