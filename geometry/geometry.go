// Package geometry provides the editable, identified geometries that the
// editors and the geometry renderer work on.
package geometry

import (
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/paulmach/orb"

	"github.com/tingold/orb-render/style"
)

var ErrUnsupportedGeometry = errors.New("geometry: unsupported geometry type")

// ID identifies a geometry or one of its points within the process.
type ID string

// NullID is the identifier of nothing.
const NullID ID = ""

var lastID atomic.Uint64

// NewID returns a process-unique identifier.
func NewID() ID {
	return ID("g" + strconv.FormatUint(lastID.Add(1), 10))
}

type Type int

const (
	TypePoint Type = iota
	TypeLine
	TypeRing
	TypePolygon
)

func (t Type) String() string {
	switch t {
	case TypePoint:
		return "Point"
	case TypeLine:
		return "Line"
	case TypeRing:
		return "Ring"
	case TypePolygon:
		return "Polygon"
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// Geometry is implemented by Point, Line, Ring and Polygon.
type Geometry interface {
	ID() ID
	Type() Type
	SpatialReference() string
	SetSpatialReference(srs string)
	// Style returns a clone of the geometry style, nil when it has none.
	Style() *style.VectorStyle
	// SetStyle stores a clone of s.
	SetStyle(s *style.VectorStyle)
	Orb() orb.Geometry
}

type base struct {
	id    ID
	srs   string
	style *style.VectorStyle
}

func newBase(srs string) base {
	return base{id: NewID(), srs: srs}
}

func (b *base) ID() ID                         { return b.id }
func (b *base) SpatialReference() string       { return b.srs }
func (b *base) SetSpatialReference(srs string) { b.srs = srs }
func (b *base) Style() *style.VectorStyle      { return b.style.Clone() }
func (b *base) SetStyle(s *style.VectorStyle)  { b.style = s.Clone() }

type Point struct {
	base
	coord orb.Point
}

func NewPoint(c orb.Point, srs string) *Point {
	return &Point{base: newBase(srs), coord: c}
}

func (p *Point) Type() Type                { return TypePoint }
func (p *Point) Coordinate() orb.Point     { return p.coord }
func (p *Point) SetCoordinate(c orb.Point) { p.coord = c }
func (p *Point) Orb() orb.Geometry         { return p.coord }

// Line is an ordered sequence of points.
type Line struct {
	base
	points []*Point
}

func NewLine(srs string, coords ...orb.Point) *Line {
	l := &Line{base: newBase(srs)}
	for _, c := range coords {
		l.Append(NewPoint(c, srs))
	}
	return l
}

func (l *Line) Type() Type { return TypeLine }

// SetSpatialReference changes the reference of the line and its points.
func (l *Line) SetSpatialReference(srs string) {
	l.srs = srs
	for _, p := range l.points {
		p.srs = srs
	}
}

func (l *Line) Len() int { return len(l.points) }

// Points returns the points in order. The slice is a copy; the points are not.
func (l *Line) Points() []*Point {
	out := make([]*Point, len(l.points))
	copy(out, l.points)
	return out
}

// At returns the point at i, nil when out of range.
func (l *Line) At(i int) *Point {
	if i < 0 || i >= len(l.points) {
		return nil
	}
	return l.points[i]
}

// Index returns the position of the point with id, -1 when absent.
func (l *Line) Index(id ID) int {
	for i, p := range l.points {
		if p.id == id {
			return i
		}
	}
	return -1
}

// Insert places p before position i. i == Len appends.
func (l *Line) Insert(i int, p *Point) bool {
	if i < 0 || i > len(l.points) || p == nil {
		return false
	}
	p.srs = l.srs
	l.points = append(l.points, nil)
	copy(l.points[i+1:], l.points[i:])
	l.points[i] = p
	return true
}

func (l *Line) Append(p *Point) bool {
	return l.Insert(len(l.points), p)
}

// Remove detaches and returns the point at i.
func (l *Line) Remove(i int) *Point {
	if i < 0 || i >= len(l.points) {
		return nil
	}
	p := l.points[i]
	l.points = append(l.points[:i], l.points[i+1:]...)
	return p
}

func (l *Line) coords() []orb.Point {
	out := make([]orb.Point, len(l.points))
	for i, p := range l.points {
		out[i] = p.coord
	}
	return out
}

func (l *Line) Orb() orb.Geometry { return orb.LineString(l.coords()) }

// Ring is a line whose export repeats the first point at the end.
type Ring struct {
	Line
}

func NewRing(srs string, coords ...orb.Point) *Ring {
	if n := len(coords); n > 1 && coords[0] == coords[n-1] {
		coords = coords[:n-1]
	}
	return &Ring{Line: *NewLine(srs, coords...)}
}

func (r *Ring) Type() Type { return TypeRing }

// Closed returns the ring coordinates with the closing point.
func (r *Ring) Closed() orb.Ring {
	c := r.coords()
	if len(c) > 0 && c[0] != c[len(c)-1] {
		c = append(c, c[0])
	}
	return orb.Ring(c)
}

func (r *Ring) Orb() orb.Geometry { return r.Closed() }

// Polygon holds an exterior ring followed by its holes.
type Polygon struct {
	base
	rings []*Ring
}

func NewPolygon(srs string, rings ...*Ring) *Polygon {
	p := &Polygon{base: newBase(srs)}
	for _, r := range rings {
		r.SetSpatialReference(srs)
		p.rings = append(p.rings, r)
	}
	return p
}

func (p *Polygon) Type() Type { return TypePolygon }

func (p *Polygon) SetSpatialReference(srs string) {
	p.srs = srs
	for _, r := range p.rings {
		r.SetSpatialReference(srs)
	}
}

func (p *Polygon) Rings() []*Ring {
	out := make([]*Ring, len(p.rings))
	copy(out, p.rings)
	return out
}

func (p *Polygon) Orb() orb.Geometry {
	out := make(orb.Polygon, len(p.rings))
	for i, r := range p.rings {
		out[i] = r.Closed()
	}
	return out
}

// FromOrb builds an editable geometry from an orb geometry.
func FromOrb(g orb.Geometry, srs string) (Geometry, error) {
	switch v := g.(type) {
	case orb.Point:
		return NewPoint(v, srs), nil
	case orb.LineString:
		return NewLine(srs, v...), nil
	case orb.Ring:
		return NewRing(srs, v...), nil
	case orb.Polygon:
		rings := make([]*Ring, len(v))
		for i, r := range v {
			rings[i] = NewRing(srs, r...)
		}
		return NewPolygon(srs, rings...), nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedGeometry, g)
}
