// Package editor implements point level editing of geometries: SimpleEditor
// gives uniform indexed access to the vertices of a point, line or ring, and
// GuiEditor runs an interactive session on top of it with phantom insertion
// points.
package editor

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/tingold/orb-render/geometry"
	"github.com/tingold/orb-render/log"
	"github.com/tingold/orb-render/srs"
	"github.com/tingold/orb-render/style"
	"github.com/tingold/orb-render/world"
)

var (
	ErrUnsupportedGeometry = errors.New("editor: geometry type cannot be edited point by point")
	ErrNilGeometry         = errors.New("editor: nil geometry")
)

// SimpleEditor edits the vertices of a Point, Line or Ring. A Point is
// wrapped in a one point line so every geometry is seen as a point sequence;
// only lines and rings can change size.
type SimpleEditor struct {
	geom      geometry.Geometry
	kind      geometry.Type
	line      *geometry.Line
	synthetic bool
	factory   srs.Factory
	closed    bool

	// styles set through SetPointStyle; the points themselves are not touched
	styles map[geometry.ID]*style.VectorStyle
}

// NewSimpleEditor wraps g. Polygons must be edited ring by ring.
func NewSimpleEditor(g geometry.Geometry) (*SimpleEditor, error) {
	if g == nil {
		return nil, ErrNilGeometry
	}
	e := &SimpleEditor{
		geom:    g,
		kind:    g.Type(),
		factory: srs.DefaultFactory,
		styles:  make(map[geometry.ID]*style.VectorStyle),
	}
	switch v := g.(type) {
	case *geometry.Point:
		e.line = geometry.NewLine(v.SpatialReference())
		e.line.Append(v)
		e.synthetic = true
	case *geometry.Line:
		e.line = v
	case *geometry.Ring:
		e.line = &v.Line
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedGeometry, g.Type())
	}
	return e, nil
}

// SetTransformationFactory replaces the factory used by FindPoints.
func (e *SimpleEditor) SetTransformationFactory(f srs.Factory) {
	if f != nil {
		e.factory = f
	}
}

func (e *SimpleEditor) Geometry() geometry.Geometry { return e.geom }
func (e *SimpleEditor) Type() geometry.Type         { return e.kind }
func (e *SimpleEditor) SpatialReference() string    { return e.geom.SpatialReference() }

// CanChangeLineSize reports whether points can be inserted or deleted.
func (e *SimpleEditor) CanChangeLineSize() bool {
	return !e.closed && e.kind != geometry.TypePoint
}

// Points returns the point identifiers in sequence order.
func (e *SimpleEditor) Points() []geometry.ID {
	if e.closed {
		return nil
	}
	pts := e.line.Points()
	out := make([]geometry.ID, len(pts))
	for i, p := range pts {
		out[i] = p.ID()
	}
	return out
}

func (e *SimpleEditor) Len() int {
	if e.closed {
		return 0
	}
	return e.line.Len()
}

// Point returns the point with id, nil when absent.
func (e *SimpleEditor) Point(id geometry.ID) *geometry.Point {
	if i := e.Index(id); i >= 0 {
		return e.line.At(i)
	}
	return nil
}

// Index returns the position of id in the sequence, -1 when absent.
func (e *SimpleEditor) Index(id geometry.ID) int {
	if e.closed || id == geometry.NullID {
		return -1
	}
	return e.line.Index(id)
}

// Coordinate returns the position of a point in the geometry SRS.
func (e *SimpleEditor) Coordinate(id geometry.ID) (orb.Point, bool) {
	p := e.Point(id)
	if p == nil {
		return orb.Point{}, false
	}
	return p.Coordinate(), true
}

// InsertPointBefore inserts a point at c ahead of the point before and
// returns its identifier, NullID when the geometry cannot grow or before is
// unknown.
func (e *SimpleEditor) InsertPointBefore(before geometry.ID, c orb.Point) geometry.ID {
	if !e.CanChangeLineSize() {
		log.Debug("insert refused", zap.Stringer("type", e.kind))
		return geometry.NullID
	}
	i := e.line.Index(before)
	if i < 0 {
		return geometry.NullID
	}
	p := geometry.NewPoint(c, e.line.SpatialReference())
	e.line.Insert(i, p)
	return p.ID()
}

// AppendPoint adds a point at the end of the sequence.
func (e *SimpleEditor) AppendPoint(c orb.Point) geometry.ID {
	if !e.CanChangeLineSize() {
		log.Debug("append refused", zap.Stringer("type", e.kind))
		return geometry.NullID
	}
	p := geometry.NewPoint(c, e.line.SpatialReference())
	e.line.Append(p)
	return p.ID()
}

// DeletePoint removes a point from a line or ring.
func (e *SimpleEditor) DeletePoint(id geometry.ID) bool {
	if !e.CanChangeLineSize() {
		log.Debug("delete refused", zap.Stringer("type", e.kind))
		return false
	}
	i := e.line.Index(id)
	if i < 0 {
		return false
	}
	e.line.Remove(i)
	delete(e.styles, id)
	return true
}

// MovePoint sets the coordinate of a point, in the geometry SRS.
func (e *SimpleEditor) MovePoint(id geometry.ID, c orb.Point) bool {
	p := e.Point(id)
	if p == nil {
		return false
	}
	p.SetCoordinate(c)
	return true
}

// FindPoints returns the points inside subset, given in subsetSRS. A subset
// that cannot be brought into the geometry SRS finds nothing.
func (e *SimpleEditor) FindPoints(subset world.Subset, subsetSRS string) []geometry.ID {
	if e.closed {
		return nil
	}
	b := subset.Bound()
	if geomSRS := e.SpatialReference(); subsetSRS != geomSRS {
		t, err := e.factory.Create(subsetSRS, geomSRS)
		if err != nil {
			log.Debug("find points: no transformation", zap.String("from", subsetSRS),
				zap.String("to", geomSRS), zap.Error(err))
			return nil
		}
		if b, err = t.ForwardBound(b); err != nil {
			log.Debug("find points: subset not transformable", zap.Error(err))
			return nil
		}
	}

	var out []geometry.ID
	for _, p := range e.line.Points() {
		if b.Contains(p.Coordinate()) {
			out = append(out, p.ID())
		}
	}
	return out
}

// Style resolves the style of a point: the style set with SetPointStyle, the
// point's own style, the geometry style, def and finally the library default
// for the geometry type, merging missing sub-styles from each lower tier.
// With NullID it resolves the style of the geometry itself. The result is a
// fresh copy.
func (e *SimpleEditor) Style(def *style.VectorStyle, id geometry.ID) *style.VectorStyle {
	var set, own *style.VectorStyle
	if p := e.Point(id); p != nil {
		set, own = e.styles[id], p.Style()
	}
	return style.Merge(set, own, e.geom.Style(), def, libraryDefault(e.kind))
}

// PointStyle returns the style set with SetPointStyle, nil when none is.
func (e *SimpleEditor) PointStyle(id geometry.ID) *style.VectorStyle {
	if e.Point(id) == nil {
		return nil
	}
	return e.styles[id].Clone()
}

// SetPointStyle sets or, with nil, clears the editor style of one point. The
// style is kept by the editor and never written to the point, so the
// geometry comes out of an editing session with its styles untouched.
func (e *SimpleEditor) SetPointStyle(id geometry.ID, s *style.VectorStyle) bool {
	if e.Point(id) == nil {
		return false
	}
	if s == nil {
		delete(e.styles, id)
		return true
	}
	e.styles[id] = s.Clone()
	return true
}

// Close releases the editor. A point wrapped for editing is detached first so
// it keeps living on its own.
func (e *SimpleEditor) Close() {
	if e.closed {
		return
	}
	if e.synthetic {
		e.line.Remove(0)
	}
	e.styles = nil
	e.closed = true
}

func libraryDefault(t geometry.Type) *style.VectorStyle {
	switch t {
	case geometry.TypePoint:
		return style.DefaultPointStyle()
	case geometry.TypeLine:
		return style.DefaultLineStyle()
	}
	return style.DefaultPolygonStyle()
}
