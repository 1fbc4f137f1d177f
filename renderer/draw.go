package renderer

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"go.uber.org/zap"

	"github.com/tingold/orb-render/canvas"
	"github.com/tingold/orb-render/log"
	"github.com/tingold/orb-render/style"
	"github.com/tingold/orb-render/world"
)

func penOf(p *style.Pen) canvas.Pen {
	if p == nil {
		return canvas.Pen{Kind: canvas.PenNone}
	}
	kind := canvas.PenSolid
	switch p.ID {
	case style.PenTransparent:
		kind = canvas.PenNone
	case style.PenDot:
		kind = canvas.PenDot
	case style.PenLongDash:
		kind = canvas.PenLongDash
	case style.PenShortDash:
		kind = canvas.PenShortDash
	case style.PenDotDash:
		kind = canvas.PenDotDash
	}
	return canvas.Pen{Kind: kind, Color: p.Color, Width: p.Width}
}

func brushOf(b *style.Brush) canvas.Brush {
	if b == nil {
		return canvas.Brush{Kind: canvas.BrushNone}
	}
	kind := canvas.BrushSolid
	switch b.ID {
	case style.BrushTransparent:
		kind = canvas.BrushNone
	case style.BrushBDiagonalHatch:
		kind = canvas.BrushBDiagonal
	case style.BrushCrossDiagHatch:
		kind = canvas.BrushCrossDiag
	case style.BrushFDiagonalHatch:
		kind = canvas.BrushFDiagonal
	case style.BrushCrossHatch:
		kind = canvas.BrushCross
	case style.BrushHorizontalHatch:
		kind = canvas.BrushHorizontal
	case style.BrushVerticalHatch:
		kind = canvas.BrushVertical
	}
	return canvas.Brush{Kind: kind, Color: b.Color}
}

func fontOf(l *style.Label) canvas.Font {
	return canvas.Font{Size: l.Size, Color: l.Color, BackColor: l.BackColor}
}

// labelled reports whether s asks for labels.
func labelled(s *style.VectorStyle) bool {
	return s != nil && s.Label != nil && s.Label.ID != style.LabelNone && s.Label.Expression != ""
}

// painter draws world geometries onto a canvas.
type painter struct {
	world  *world.World
	canvas canvas.Canvas
}

func (p painter) pixel(pt orb.Point) (canvas.Point, bool) {
	px, ok := p.world.TransformPoint(pt)
	if !ok {
		return canvas.Point{}, false
	}
	return canvas.Point{X: px[0], Y: px[1]}, true
}

func (p painter) pixels(ls []orb.Point) ([]canvas.Point, bool) {
	out := make([]canvas.Point, len(ls))
	for i, pt := range ls {
		px, ok := p.pixel(pt)
		if !ok {
			return nil, false
		}
		out[i] = px
	}
	return out, true
}

// polygon fills and outlines all rings as one shape, then traces the holes
// so their edges show. The exterior ring is closed if needed.
func (p painter) polygon(poly orb.Polygon) bool {
	if len(poly) == 0 || len(poly[0]) < 3 {
		return false
	}
	var all []canvas.Point
	var counts []int
	var holes [][]canvas.Point
	for i, ring := range poly {
		if i == 0 {
			ring = closed(ring)
		}
		pts, ok := p.pixels(ring)
		if !ok {
			return false
		}
		all = append(all, pts...)
		counts = append(counts, len(pts))
		if i > 0 && len(pts) >= 2 {
			holes = append(holes, pts)
		}
	}
	if err := p.canvas.DrawPolyPolygon(all, counts); err != nil {
		log.Debug("draw polygon failed", zap.Error(err))
		return false
	}
	for _, h := range holes {
		if err := p.canvas.DrawLines(h); err != nil {
			log.Debug("trace hole failed", zap.Error(err))
		}
	}
	return true
}

// ring paints a single closed ring.
func (p painter) ring(r orb.Ring) bool {
	pts, ok := p.pixels(closed(r))
	if !ok || len(pts) < 3 {
		return false
	}
	if err := p.canvas.DrawPolygon(pts); err != nil {
		log.Debug("draw ring failed", zap.Error(err))
		return false
	}
	return true
}

func (p painter) line(ls orb.LineString) bool {
	pts, ok := p.pixels(ls)
	if !ok || len(pts) < 2 {
		return false
	}
	if err := p.canvas.DrawLines(pts); err != nil {
		log.Debug("draw line failed", zap.Error(err))
		return false
	}
	return true
}

// mark draws the symbol of s centered on pt. The symbol color is used for
// both outline and fill.
func (p painter) mark(pt orb.Point, s *style.Symbol) bool {
	if s == nil || s.ID == style.SymbolNone {
		return true
	}
	c, ok := p.pixel(pt)
	if !ok {
		return false
	}
	p.canvas.SetPen(canvas.Pen{Kind: canvas.PenSolid, Color: s.Color, Width: 1})
	p.canvas.SetBrush(canvas.Brush{Kind: canvas.BrushSolid, Color: s.Color})

	r := s.Size / 2
	if r < 1 {
		r = 1
	}
	var err error
	switch s.ID {
	case style.SymbolCircle:
		err = p.canvas.DrawCircle(c, r)
	case style.SymbolSquare:
		err = p.canvas.DrawPolygon([]canvas.Point{
			{X: c.X - r, Y: c.Y - r}, {X: c.X + r, Y: c.Y - r},
			{X: c.X + r, Y: c.Y + r}, {X: c.X - r, Y: c.Y + r},
		})
	case style.SymbolTriangle:
		err = p.canvas.DrawPolygon([]canvas.Point{
			{X: c.X, Y: c.Y - r}, {X: c.X + r, Y: c.Y + r}, {X: c.X - r, Y: c.Y + r},
		})
	case style.SymbolCross:
		err = p.canvas.DrawLines([]canvas.Point{{X: c.X - r, Y: c.Y}, {X: c.X + r, Y: c.Y}})
		if err == nil {
			err = p.canvas.DrawLines([]canvas.Point{{X: c.X, Y: c.Y - r}, {X: c.X, Y: c.Y + r}})
		}
	}
	if err != nil {
		log.Debug("draw symbol failed", zap.Error(err))
		return false
	}
	return true
}

// label draws text at the world position pt. The anchor offsets turn with
// the label.
func (p painter) label(text string, pt orb.Point, l *style.Label) bool {
	if text == "" {
		return true
	}
	at, ok := p.pixel(pt)
	if !ok {
		return false
	}
	p.canvas.SetFont(fontOf(l))
	w, h := p.canvas.TextExtent(text)
	ax, ay := l.Anchor.Offsets()
	dx, dy := canvas.Rotate(ax*w, ay*h, l.Angle)
	origin := canvas.Point{X: at.X - dx, Y: at.Y - dy}
	if err := p.canvas.DrawRotatedText(text, origin, l.Angle); err != nil {
		log.Debug("draw label failed", zap.Error(err))
		return false
	}
	return true
}

func closed(r orb.Ring) orb.Ring {
	if n := len(r); n > 0 && r[0] != r[n-1] {
		out := make(orb.Ring, n, n+1)
		copy(out, r)
		return append(out, r[0])
	}
	return r
}

// labelPoint returns where the label of g goes: the area centroid of a
// polygon, the point halfway along a line or the point itself. Multi
// geometries use their first part.
func labelPoint(g orb.Geometry) (orb.Point, bool) {
	switch v := g.(type) {
	case orb.Point:
		return v, true
	case orb.MultiPoint:
		if len(v) > 0 {
			return v[0], true
		}
	case orb.LineString:
		return halfway(v)
	case orb.MultiLineString:
		if len(v) > 0 {
			return halfway(v[0])
		}
	case orb.Ring:
		return labelPoint(orb.Polygon{v})
	case orb.Polygon:
		if len(v) == 0 || len(v[0]) == 0 {
			return orb.Point{}, false
		}
		c, area := planar.CentroidArea(v)
		if area == 0 {
			return v.Bound().Center(), true
		}
		return c, true
	case orb.MultiPolygon:
		if len(v) > 0 {
			return labelPoint(v[0])
		}
	case orb.Collection:
		if len(v) > 0 {
			return labelPoint(v[0])
		}
	}
	return orb.Point{}, false
}

// halfway returns the point at half the arclength of ls.
func halfway(ls orb.LineString) (orb.Point, bool) {
	switch len(ls) {
	case 0:
		return orb.Point{}, false
	case 1:
		return ls[0], true
	}
	target := planar.Length(ls) / 2
	for i := 1; i < len(ls); i++ {
		seg := planar.Distance(ls[i-1], ls[i])
		if seg >= target && seg > 0 {
			t := target / seg
			return orb.Point{
				ls[i-1][0] + t*(ls[i][0]-ls[i-1][0]),
				ls[i-1][1] + t*(ls[i][1]-ls[i-1][1]),
			}, true
		}
		target -= seg
	}
	return ls[len(ls)-1], true
}

// explode splits g into simple geometries.
func explode(g orb.Geometry) []orb.Geometry {
	switch v := g.(type) {
	case nil:
		return nil
	case orb.MultiPoint:
		out := make([]orb.Geometry, len(v))
		for i, p := range v {
			out[i] = p
		}
		return out
	case orb.MultiLineString:
		out := make([]orb.Geometry, len(v))
		for i, l := range v {
			out[i] = l
		}
		return out
	case orb.MultiPolygon:
		out := make([]orb.Geometry, len(v))
		for i, p := range v {
			out[i] = p
		}
		return out
	case orb.Collection:
		var out []orb.Geometry
		for _, part := range v {
			out = append(out, explode(part)...)
		}
		return out
	case orb.Bound:
		return []orb.Geometry{v.ToPolygon()}
	case orb.Ring:
		return []orb.Geometry{orb.Polygon{v}}
	}
	return []orb.Geometry{g}
}
