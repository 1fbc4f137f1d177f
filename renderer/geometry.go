package renderer

import (
	"image"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/tingold/orb-render/canvas"
	"github.com/tingold/orb-render/editor"
	"github.com/tingold/orb-render/geometry"
	"github.com/tingold/orb-render/log"
	"github.com/tingold/orb-render/srs"
	"github.com/tingold/orb-render/style"
	"github.com/tingold/orb-render/world"
)

// GeometryRenderer draws in-memory geometries, such as the one being edited,
// straight onto a canvas.
type GeometryRenderer struct {
	world   *world.World
	canvas  canvas.Canvas
	factory srs.Factory
	session Session
}

// Session is an editing session over one geometry. Its editor holds the
// point styles of the session, which the renderer uses for that geometry.
// *editor.GuiEditor implements it.
type Session interface {
	Geometry() geometry.Geometry
	Editor() *editor.SimpleEditor
}

func NewGeometryRenderer(w *world.World, c canvas.Canvas) *GeometryRenderer {
	return &GeometryRenderer{world: w, canvas: c, factory: srs.DefaultFactory}
}

// SetTransformationFactory replaces the factory used to reach the world SRS.
func (r *GeometryRenderer) SetTransformationFactory(f srs.Factory) {
	if f != nil {
		r.factory = f
	}
}

// SetSession makes the renderer draw the geometry of s with the session
// point styles. A nil session drops it.
func (r *GeometryRenderer) SetSession(s Session) {
	r.session = s
}

// fillOp paints poly, or ring when poly is empty.
type fillOp struct {
	poly  orb.Polygon
	ring  orb.Ring
	brush *style.Brush
}

type traceOp struct {
	line orb.LineString
	pen  *style.Pen
}

type markOp struct {
	at     orb.Point
	symbol *style.Symbol
}

// batch collects the drawing operations of one Render call in world
// coordinates.
type batch struct {
	session Session

	fills  []fillOp
	traces []traceOp
	marks  []markOp
}

// Render draws geoms with def as the fallback style. Every geometry is taken
// to be in the SRS of the first one. Fills are drawn first, then outlines,
// then point markers, and the canvas is flushed once.
func (r *GeometryRenderer) Render(geoms []geometry.Geometry, def *style.VectorStyle, mask image.Image) bool {
	if r.world == nil || r.canvas == nil {
		log.Debug("geometry render without world or canvas")
		return false
	}
	if len(geoms) == 0 {
		return true
	}

	t, err := r.transformation(geoms[0].SpatialReference())
	if err != nil {
		log.Debug("no transformation to world", zap.String("srs", geoms[0].SpatialReference()), zap.Error(err))
		return false
	}

	b := batch{session: r.session}
	ok := true
	for _, g := range geoms {
		if g == nil {
			continue
		}
		if err := b.add(g, def, t); err != nil {
			log.Debug("geometry skipped", zap.String("id", string(g.ID())), zap.Error(err))
			ok = false
		}
	}

	p := painter{world: r.world, canvas: r.canvas}
	for _, f := range b.fills {
		p.canvas.SetPen(canvas.Pen{Kind: canvas.PenNone})
		p.canvas.SetBrush(brushOf(f.brush))
		if f.poly != nil {
			p.polygon(f.poly)
		} else {
			p.ring(f.ring)
		}
	}
	p.canvas.SetBrush(canvas.Brush{Kind: canvas.BrushNone})
	for _, tr := range b.traces {
		p.canvas.SetPen(penOf(tr.pen))
		p.line(tr.line)
	}
	for _, m := range b.marks {
		p.mark(m.at, m.symbol)
	}

	if err := r.canvas.Flush(mask); err != nil {
		log.Warn("canvas flush failed", zap.Error(err))
		return false
	}
	return ok
}

func (r *GeometryRenderer) transformation(geomSRS string) (*srs.Transformation, error) {
	worldSRS := r.world.SpatialReference()
	if geomSRS == "" || worldSRS == "" || geomSRS == worldSRS {
		return nil, nil
	}
	return r.factory.Create(geomSRS, worldSRS)
}

// add queues the operations of one geometry. The rings of a polygon are
// painted together and traced one by one; their points fall back to the
// polygon style before def.
func (b *batch) add(g geometry.Geometry, def *style.VectorStyle, t *srs.Transformation) error {
	if poly, ok := g.(*geometry.Polygon); ok {
		st := style.Merge(poly.Style(), def, style.DefaultPolygonStyle())
		ringDef := style.Merge(poly.Style(), def)
		var out orb.Polygon
		for _, ring := range poly.Rings() {
			pts, err := b.points(ring, ringDef, t)
			if err != nil {
				return err
			}
			out = append(out, closed(orb.Ring(pts)))
		}
		if len(out) == 0 {
			return nil
		}
		b.fills = append(b.fills, fillOp{poly: out, brush: st.Brush})
		for _, ring := range out {
			b.traces = append(b.traces, traceOp{line: orb.LineString(ring), pen: st.Pen})
		}
		return nil
	}

	pts, err := b.points(g, def, t)
	if err != nil {
		return err
	}
	st := style.Merge(g.Style(), def, defaultFor(g.Type()))
	switch g.Type() {
	case geometry.TypeRing:
		ring := closed(orb.Ring(pts))
		b.fills = append(b.fills, fillOp{ring: ring, brush: st.Brush})
		b.traces = append(b.traces, traceOp{line: orb.LineString(ring), pen: st.Pen})
	case geometry.TypeLine:
		b.traces = append(b.traces, traceOp{line: orb.LineString(pts), pen: st.Pen})
	}
	return nil
}

// points queues a marker for every point of g and returns the point
// coordinates in the world SRS.
func (b *batch) points(g geometry.Geometry, def *style.VectorStyle, t *srs.Transformation) ([]orb.Point, error) {
	ed, release, err := b.editorFor(g)
	if err != nil {
		return nil, err
	}
	defer release()

	ids := ed.Points()
	out := make([]orb.Point, 0, len(ids))
	marks := make([]markOp, 0, len(ids))
	for _, id := range ids {
		c, _ := ed.Coordinate(id)
		if t != nil {
			if c, err = t.Forward(c); err != nil {
				return nil, err
			}
		}
		out = append(out, c)
		if st := ed.Style(def, id); st != nil && st.Symbol != nil {
			marks = append(marks, markOp{at: c, symbol: st.Symbol})
		}
	}
	b.marks = append(b.marks, marks...)
	return out, nil
}

// editorFor returns the session editor when g is the session geometry, and
// a throwaway editor otherwise.
func (b *batch) editorFor(g geometry.Geometry) (*editor.SimpleEditor, func(), error) {
	if b.session != nil {
		if ed := b.session.Editor(); ed != nil && b.session.Geometry() == g {
			return ed, func() {}, nil
		}
	}
	ed, err := editor.NewSimpleEditor(g)
	if err != nil {
		return nil, nil, err
	}
	return ed, ed.Close, nil
}

func defaultFor(t geometry.Type) *style.VectorStyle {
	switch t {
	case geometry.TypePoint:
		return style.DefaultPointStyle()
	case geometry.TypeLine:
		return style.DefaultLineStyle()
	}
	return style.DefaultPolygonStyle()
}
