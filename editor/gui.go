package editor

import (
	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/tingold/orb-render/geometry"
	"github.com/tingold/orb-render/log"
	"github.com/tingold/orb-render/srs"
	"github.com/tingold/orb-render/style"
	"github.com/tingold/orb-render/world"
)

// GuiEditor is an interactive editing session over one geometry. Between
// every two consecutive real points of a line or ring it keeps a phantom
// point at their midpoint; dragging a phantom turns it into a real vertex.
// Coordinates passed in and out are in the world SRS.
type GuiEditor struct {
	world   *world.World
	factory srs.Factory

	editor   *SimpleEditor
	selected geometry.ID
	phantoms map[geometry.ID]bool
	changed  bool
}

func NewGuiEditor(w *world.World) *GuiEditor {
	return &GuiEditor{world: w, factory: srs.DefaultFactory}
}

// SetTransformationFactory replaces the factory used between the geometry
// and the world SRS.
func (g *GuiEditor) SetTransformationFactory(f srs.Factory) {
	if f != nil {
		g.factory = f
	}
}

// Start opens a session on geom. It fails while another session is running
// and for geometries that cannot be edited point by point.
func (g *GuiEditor) Start(geom geometry.Geometry) bool {
	if g.editor != nil {
		log.Debug("edit session already running")
		return false
	}
	ed, err := NewSimpleEditor(geom)
	if err != nil {
		log.Debug("cannot edit geometry", zap.Error(err))
		return false
	}
	ed.SetTransformationFactory(g.factory)

	g.editor = ed
	g.selected = geometry.NullID
	g.phantoms = make(map[geometry.ID]bool)
	g.changed = false
	g.createPhantomPoints()
	g.updatePointStyles()
	return true
}

// End closes the session. Phantom points are removed from the geometry,
// which is returned as edited with its own styles untouched.
func (g *GuiEditor) End() geometry.Geometry {
	if g.editor == nil {
		return nil
	}
	g.deletePhantomPoints()
	geom := g.editor.Geometry()
	g.editor.Close()
	g.editor = nil
	g.selected = geometry.NullID
	g.phantoms = nil
	return geom
}

func (g *GuiEditor) IsEditing() bool { return g.editor != nil }

// Geometry returns the geometry being edited, nil outside a session.
func (g *GuiEditor) Geometry() geometry.Geometry {
	if g.editor == nil {
		return nil
	}
	return g.editor.Geometry()
}

// Editor exposes the underlying point editor, nil outside a session.
func (g *GuiEditor) Editor() *SimpleEditor { return g.editor }

// HasChanged reports whether a point was moved, added or deleted during the
// session.
func (g *GuiEditor) HasChanged() bool { return g.changed }

// SelectPoint selects a real or phantom point.
func (g *GuiEditor) SelectPoint(id geometry.ID) bool {
	if g.editor == nil || g.editor.Index(id) < 0 {
		return false
	}
	g.selected = id
	g.updatePointStyles()
	return true
}

func (g *GuiEditor) ClearSelection() {
	if g.editor == nil {
		return
	}
	g.selected = geometry.NullID
	g.updatePointStyles()
}

func (g *GuiEditor) SelectedPoint() geometry.ID { return g.selected }

func (g *GuiEditor) IsPhantom(id geometry.ID) bool { return g.phantoms[id] }

// RealPoints lists the authored points in sequence order.
func (g *GuiEditor) RealPoints() []geometry.ID {
	return g.filter(false)
}

// PhantomPoints lists the insertion handles in sequence order.
func (g *GuiEditor) PhantomPoints() []geometry.ID {
	return g.filter(true)
}

func (g *GuiEditor) filter(phantom bool) []geometry.ID {
	if g.editor == nil {
		return nil
	}
	var out []geometry.ID
	for _, id := range g.editor.Points() {
		if g.phantoms[id] == phantom {
			out = append(out, id)
		}
	}
	return out
}

// FindPoints returns the points inside a world subset.
func (g *GuiEditor) FindPoints(subset world.Subset) []geometry.ID {
	if g.editor == nil {
		return nil
	}
	return g.editor.FindPoints(subset, g.world.SpatialReference())
}

// MoveSelectedPoint moves the selected point to c. A moved phantom becomes a
// real point with new phantoms on both sides.
func (g *GuiEditor) MoveSelectedPoint(c world.Coordinates) bool {
	if g.editor == nil || g.selected == geometry.NullID {
		return false
	}
	p, ok := g.toGeometry(c.Point())
	if !ok {
		return false
	}
	if !g.editor.MovePoint(g.selected, p) {
		return false
	}

	if g.phantoms[g.selected] {
		delete(g.phantoms, g.selected)
		pts := g.editor.Points()
		i := g.editor.Index(g.selected)
		// the promoted point sits between two reals, add a phantom on each side
		if i > 0 {
			g.insertPhantom(g.selected)
		}
		if i < len(pts)-1 {
			g.insertPhantom(pts[i+1])
		}
	}

	g.changed = true
	g.updatePhantomPoints()
	g.updatePointStyles()
	return true
}

// DeleteSelectedPoint deletes the selected real point together with the
// phantom that follows it, or precedes it for the last point. Phantoms
// cannot be deleted, and nothing changes when the expected phantom is
// missing.
func (g *GuiEditor) DeleteSelectedPoint() bool {
	if g.editor == nil || g.selected == geometry.NullID {
		return false
	}
	if g.phantoms[g.selected] {
		log.Debug("phantom points cannot be deleted")
		return false
	}
	if !g.editor.CanChangeLineSize() {
		return false
	}

	pts := g.editor.Points()
	i := g.editor.Index(g.selected)
	if i < 0 {
		return false
	}

	companion := geometry.NullID
	switch {
	case i+1 < len(pts):
		companion = pts[i+1]
	case i > 0:
		companion = pts[i-1]
	}
	if companion != geometry.NullID && !g.phantoms[companion] {
		log.Debug("missing phantom next to deleted point", zap.String("point", string(g.selected)))
		return false
	}

	g.editor.DeletePoint(g.selected)
	if companion != geometry.NullID {
		g.editor.DeletePoint(companion)
		delete(g.phantoms, companion)
	}
	g.selected = geometry.NullID
	g.changed = true
	g.updatePhantomPoints()
	g.updatePointStyles()
	return true
}

// AddPoint appends a real point at c, with a phantom between it and the
// previous last point. The new point is selected.
func (g *GuiEditor) AddPoint(c world.Coordinates) geometry.ID {
	if g.editor == nil || !g.editor.CanChangeLineSize() {
		return geometry.NullID
	}
	p, ok := g.toGeometry(c.Point())
	if !ok {
		return geometry.NullID
	}
	hadPoints := g.editor.Len() > 0
	id := g.editor.AppendPoint(p)
	if id == geometry.NullID {
		return id
	}
	if hadPoints {
		g.insertPhantom(id)
	}
	g.selected = id
	g.changed = true
	g.updatePhantomPoints()
	g.updatePointStyles()
	return id
}

// createPhantomPoints inserts a phantom between every two consecutive real
// points.
func (g *GuiEditor) createPhantomPoints() {
	if !g.editor.CanChangeLineSize() {
		return
	}
	reals := g.RealPoints()
	for i := 1; i < len(reals); i++ {
		g.insertPhantom(reals[i])
	}
	g.updatePhantomPoints()
}

// insertPhantom places a phantom right before the point before. Its position
// is set by updatePhantomPoints.
func (g *GuiEditor) insertPhantom(before geometry.ID) {
	c, _ := g.editor.Coordinate(before)
	if id := g.editor.InsertPointBefore(before, c); id != geometry.NullID {
		g.phantoms[id] = true
	}
}

// updatePhantomPoints moves every phantom to the midpoint of its real
// neighbors, computed in the world SRS.
func (g *GuiEditor) updatePhantomPoints() {
	pts := g.editor.Points()
	for i, id := range pts {
		if !g.phantoms[id] {
			continue
		}
		prev, next := g.realNeighbor(pts, i, -1), g.realNeighbor(pts, i, 1)
		if prev == geometry.NullID || next == geometry.NullID {
			continue
		}
		a, _ := g.editor.Coordinate(prev)
		b, _ := g.editor.Coordinate(next)
		g.editor.MovePoint(id, g.midpoint(a, b))
	}
}

func (g *GuiEditor) realNeighbor(pts []geometry.ID, i, step int) geometry.ID {
	for j := i + step; j >= 0 && j < len(pts); j += step {
		if !g.phantoms[pts[j]] {
			return pts[j]
		}
	}
	return geometry.NullID
}

// midpoint of a and b in the world SRS, brought back to the geometry SRS.
// Without a usable transformation the midpoint is taken in the geometry SRS.
func (g *GuiEditor) midpoint(a, b orb.Point) orb.Point {
	plain := orb.Point{(a[0] + b[0]) / 2, (a[1] + b[1]) / 2}
	t, ok := g.transformation()
	if !ok {
		return plain
	}
	wa, errA := t.Forward(a)
	wb, errB := t.Forward(b)
	if errA != nil || errB != nil {
		return plain
	}
	m, err := t.Inverse(orb.Point{(wa[0] + wb[0]) / 2, (wa[1] + wb[1]) / 2})
	if err != nil {
		return plain
	}
	return m
}

// updatePointStyles gives the selected point the selected style, phantoms
// the phantom style and every other point the real point style.
func (g *GuiEditor) updatePointStyles() {
	selected, phantom, real := style.SelectedPointStyle(), style.PhantomPointStyle(), style.RealPointStyle()
	for _, id := range g.editor.Points() {
		switch {
		case id == g.selected:
			g.editor.SetPointStyle(id, selected)
		case g.phantoms[id]:
			g.editor.SetPointStyle(id, phantom)
		default:
			g.editor.SetPointStyle(id, real)
		}
	}
}

func (g *GuiEditor) deletePhantomPoints() {
	if g.phantoms[g.selected] {
		g.selected = geometry.NullID
	}
	for id := range g.phantoms {
		g.editor.DeletePoint(id)
	}
	g.phantoms = make(map[geometry.ID]bool)
}

// transformation maps geometry coordinates (Forward) to world coordinates.
func (g *GuiEditor) transformation() (*srs.Transformation, bool) {
	src, dst := g.editor.SpatialReference(), g.world.SpatialReference()
	if src == dst || src == "" || dst == "" {
		return nil, false
	}
	t, err := g.factory.Create(src, dst)
	if err != nil {
		log.Debug("no transformation to world", zap.String("from", src), zap.String("to", dst), zap.Error(err))
		return nil, false
	}
	return t, true
}

// toGeometry converts a world position to the geometry SRS.
func (g *GuiEditor) toGeometry(p orb.Point) (orb.Point, bool) {
	src, dst := g.editor.SpatialReference(), g.world.SpatialReference()
	if src == dst || src == "" || dst == "" {
		return p, true
	}
	t, ok := g.transformation()
	if !ok {
		return orb.Point{}, false
	}
	out, err := t.Inverse(p)
	if err != nil {
		log.Debug("world position not transformable", zap.Error(err))
		return orb.Point{}, false
	}
	return out, true
}
