package world

import "github.com/paulmach/orb"

// World ties together a spatial reference, the full extent of the data, the
// window currently visible and the viewport (pixel) size of the surface the
// window is drawn onto.
type World struct {
	srs      string
	extent   Subset
	window   Subset
	viewport [2]int
}

// New creates a world with the given spatial reference.
func New(srs string) *World {
	return &World{srs: srs}
}

// SpatialReference returns the SRS of world coordinates.
func (w *World) SpatialReference() string { return w.srs }

// SetSpatialReference changes the SRS of world coordinates.
func (w *World) SetSpatialReference(srs string) { w.srs = srs }

// SetWorld sets the full extent of the data.
func (w *World) SetWorld(s Subset) { w.extent = s }

// World returns the full extent.
func (w *World) World() Subset { return w.extent }

// SetWindow sets the visible subset.
func (w *World) SetWindow(s Subset) { w.window = s }

// Window returns the visible subset.
func (w *World) Window() Subset { return w.window }

// SetViewport sets the pixel size of the drawing surface.
func (w *World) SetViewport(width, height int) { w.viewport = [2]int{width, height} }

// Viewport returns the pixel size of the drawing surface.
func (w *World) Viewport() (width, height int) { return w.viewport[0], w.viewport[1] }

func (w *World) scale() (sx, sy float64, ok bool) {
	dx := w.window.LR.X - w.window.UL.X
	dy := w.window.LR.Y - w.window.UL.Y
	if dx == 0 || dy == 0 || w.viewport[0] <= 0 || w.viewport[1] <= 0 {
		return 0, 0, false
	}
	return float64(w.viewport[0]) / dx, float64(w.viewport[1]) / dy, true
}

// Transform maps world coordinates to pixel-line coordinates. The window's UL
// corner maps to (0,0) and LR to the viewport size.
func (w *World) Transform(c Coordinates) (px, py float64, ok bool) {
	sx, sy, ok := w.scale()
	if !ok {
		return 0, 0, false
	}
	return (c.X - w.window.UL.X) * sx, (c.Y - w.window.UL.Y) * sy, true
}

// InverseTransform maps pixel-line coordinates back to world coordinates.
func (w *World) InverseTransform(px, py float64) (Coordinates, bool) {
	sx, sy, ok := w.scale()
	if !ok {
		return Coordinates{}, false
	}
	return Coordinates{X: w.window.UL.X + px/sx, Y: w.window.UL.Y + py/sy}, true
}

// TransformPoint is Transform over orb points.
func (w *World) TransformPoint(p orb.Point) (orb.Point, bool) {
	x, y, ok := w.Transform(FromPoint(p))
	return orb.Point{x, y}, ok
}
