package editor

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tingold/orb-render/geometry"
	"github.com/tingold/orb-render/style"
	"github.com/tingold/orb-render/world"
)

const merc = "EPSG:3857"

func TestNewSimpleEditor(t *testing.T) {
	_, err := NewSimpleEditor(nil)
	assert.ErrorIs(t, err, ErrNilGeometry)

	poly := geometry.NewPolygon(merc, geometry.NewRing(merc, orb.Point{0, 0}, orb.Point{1, 0}, orb.Point{1, 1}))
	_, err = NewSimpleEditor(poly)
	assert.ErrorIs(t, err, ErrUnsupportedGeometry)

	ring := geometry.NewRing(merc, orb.Point{0, 0}, orb.Point{1, 0}, orb.Point{1, 1}, orb.Point{0, 0})
	ed, err := NewSimpleEditor(ring)
	require.NoError(t, err)
	assert.Equal(t, geometry.TypeRing, ed.Type())
	assert.Equal(t, 3, ed.Len())
	assert.True(t, ed.CanChangeLineSize())
}

func TestPointEditorCannotResize(t *testing.T) {
	p := geometry.NewPoint(orb.Point{5, 5}, merc)
	ed, err := NewSimpleEditor(p)
	require.NoError(t, err)

	assert.False(t, ed.CanChangeLineSize())
	assert.Equal(t, []geometry.ID{p.ID()}, ed.Points())
	assert.Equal(t, geometry.NullID, ed.AppendPoint(orb.Point{1, 1}))
	assert.Equal(t, geometry.NullID, ed.InsertPointBefore(p.ID(), orb.Point{1, 1}))
	assert.False(t, ed.DeletePoint(p.ID()))

	require.True(t, ed.MovePoint(p.ID(), orb.Point{7, 8}))
	assert.Equal(t, orb.Point{7, 8}, p.Coordinate())

	ed.Close()
	assert.Nil(t, ed.Points())
	assert.False(t, ed.MovePoint(p.ID(), orb.Point{0, 0}))
	// the point outlives the editor
	assert.Equal(t, orb.Point{7, 8}, p.Coordinate())
}

func TestLineEditing(t *testing.T) {
	l := geometry.NewLine(merc, orb.Point{0, 0}, orb.Point{10, 0})
	ed, err := NewSimpleEditor(l)
	require.NoError(t, err)

	pts := ed.Points()
	mid := ed.InsertPointBefore(pts[1], orb.Point{5, 5})
	require.NotEqual(t, geometry.NullID, mid)
	end := ed.AppendPoint(orb.Point{20, 0})
	require.NotEqual(t, geometry.NullID, end)

	assert.Equal(t, orb.LineString{{0, 0}, {5, 5}, {10, 0}, {20, 0}}, l.Orb())
	assert.Equal(t, 1, ed.Index(mid))
	assert.Equal(t, -1, ed.Index(geometry.NullID))
	assert.Equal(t, geometry.NullID, ed.InsertPointBefore("missing", orb.Point{}))

	require.True(t, ed.DeletePoint(pts[0]))
	assert.False(t, ed.DeletePoint(pts[0]))
	assert.Equal(t, orb.LineString{{5, 5}, {10, 0}, {20, 0}}, l.Orb())

	c, ok := ed.Coordinate(end)
	require.True(t, ok)
	assert.Equal(t, orb.Point{20, 0}, c)
}

func TestFindPoints(t *testing.T) {
	l := geometry.NewLine(merc, orb.Point{0, 0}, orb.Point{5, 5}, orb.Point{10, 10})
	ed, err := NewSimpleEditor(l)
	require.NoError(t, err)
	pts := ed.Points()

	found := ed.FindPoints(world.NewSubset(-1, 6, 6, -1), merc)
	assert.Equal(t, pts[:2], found)

	// a subset in an unknown reference finds nothing
	assert.Empty(t, ed.FindPoints(world.NewSubset(-1, 6, 6, -1), "EPSG:9999"))
}

func TestStylePriority(t *testing.T) {
	l := geometry.NewLine(merc, orb.Point{0, 0}, orb.Point{1, 1})
	ed, err := NewSimpleEditor(l)
	require.NoError(t, err)
	id := ed.Points()[0]

	// nothing set: the library line default fills in
	got := ed.Style(nil, id)
	require.NotNil(t, got)
	assert.Equal(t, style.DefaultLineStyle().Pen, got.Pen)
	assert.Nil(t, got.Brush)

	def := &style.VectorStyle{Brush: &style.Brush{System: style.BrushSystem, ID: style.BrushCrossHatch}}
	got = ed.Style(def, id)
	assert.Equal(t, style.BrushCrossHatch, got.Brush.ID)

	l.SetStyle(&style.VectorStyle{Pen: &style.Pen{System: style.PenSystem, ID: style.PenDot, Width: 3}})
	got = ed.Style(def, id)
	assert.Equal(t, style.PenDot, got.Pen.ID)

	require.True(t, ed.SetPointStyle(id, style.SelectedPointStyle()))
	got = ed.Style(def, id)
	assert.Equal(t, style.SymbolSquare, got.Symbol.ID)
	assert.Equal(t, style.PenDot, got.Pen.ID)
	assert.Nil(t, ed.Point(id).Style())

	// the point's own style sits between the editor style and the geometry
	ed.Point(id).SetStyle(&style.VectorStyle{Pen: &style.Pen{System: style.PenSystem, ID: style.PenLongDash, Width: 1}})
	assert.Equal(t, style.PenLongDash, ed.Style(def, id).Pen.ID)
	assert.Equal(t, style.SymbolSquare, ed.Style(def, id).Symbol.ID)
	require.True(t, ed.SetPointStyle(id, nil))
	assert.Nil(t, ed.PointStyle(id))
	assert.Equal(t, style.PenLongDash, ed.Style(def, id).Pen.ID)
	ed.Point(id).SetStyle(nil)
	require.True(t, ed.SetPointStyle(id, style.SelectedPointStyle()))

	// geometry level resolution ignores point styles
	assert.Nil(t, ed.Style(def, geometry.NullID).Symbol)

	got.Pen.Width = 99
	assert.Equal(t, 3.0, ed.Style(def, id).Pen.Width)
}
