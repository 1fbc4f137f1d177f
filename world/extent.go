// Package world describes the visible mapping between world coordinates and
// the pixel-line space of a drawing surface.
package world

import (
	"math"

	"github.com/paulmach/orb"
)

// Coordinates is a position in world units.
type Coordinates struct {
	X float64
	Y float64
	Z float64
}

// Point converts the coordinates to an orb.Point, dropping Z.
func (c Coordinates) Point() orb.Point {
	return orb.Point{c.X, c.Y}
}

// FromPoint builds Coordinates from an orb.Point.
func FromPoint(p orb.Point) Coordinates {
	return Coordinates{X: p[0], Y: p[1]}
}

// Subset is a rectangle given by two arbitrary corners. UL usually holds the
// maximum Y (north up), but nothing enforces it.
type Subset struct {
	UL Coordinates
	LR Coordinates
}

// NewSubset builds a subset from its corners.
func NewSubset(ulx, uly, lrx, lry float64) Subset {
	return Subset{UL: Coordinates{X: ulx, Y: uly}, LR: Coordinates{X: lrx, Y: lry}}
}

// Width is the absolute horizontal size.
func (s Subset) Width() float64 {
	return math.Abs(s.LR.X - s.UL.X)
}

// Height is the absolute vertical size.
func (s Subset) Height() float64 {
	return math.Abs(s.LR.Y - s.UL.Y)
}

// Bound returns the normalized orb.Bound of the subset.
func (s Subset) Bound() orb.Bound {
	return NewExtent(s).Bound()
}

// Extent is an axis-aligned rectangle with ordered corners:
// Min.X <= Max.X and Min.Y <= Max.Y.
type Extent struct {
	Min Coordinates
	Max Coordinates
}

// NewExtent normalizes a subset into an extent.
func NewExtent(s Subset) Extent {
	return ExtentFromCorners(s.UL, s.LR)
}

// ExtentFromCorners builds an extent from any two opposite corners.
func ExtentFromCorners(a, b Coordinates) Extent {
	return Extent{
		Min: Coordinates{X: math.Min(a.X, b.X), Y: math.Min(a.Y, b.Y)},
		Max: Coordinates{X: math.Max(a.X, b.X), Y: math.Max(a.Y, b.Y)},
	}
}

// ExtentFromBound converts an orb.Bound.
func ExtentFromBound(b orb.Bound) Extent {
	return ExtentFromCorners(FromPoint(b.Min), FromPoint(b.Max))
}

// Width of the extent.
func (e Extent) Width() float64 {
	return e.Max.X - e.Min.X
}

// Height of the extent.
func (e Extent) Height() float64 {
	return e.Max.Y - e.Min.Y
}

// IsValid reports whether the corners are ordered and finite.
func (e Extent) IsValid() bool {
	for _, v := range []float64{e.Min.X, e.Min.Y, e.Max.X, e.Max.Y} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return e.Min.X <= e.Max.X && e.Min.Y <= e.Max.Y
}

// Contains reports whether c lies inside the extent, borders included.
func (e Extent) Contains(c Coordinates) bool {
	return c.X >= e.Min.X && c.X <= e.Max.X && c.Y >= e.Min.Y && c.Y <= e.Max.Y
}

// Expand grows the extent by d on every side.
func (e Extent) Expand(d float64) Extent {
	return Extent{
		Min: Coordinates{X: e.Min.X - d, Y: e.Min.Y - d},
		Max: Coordinates{X: e.Max.X + d, Y: e.Max.Y + d},
	}
}

// Subset returns the extent as a north-up subset.
func (e Extent) Subset() Subset {
	return NewSubset(e.Min.X, e.Max.Y, e.Max.X, e.Min.Y)
}

// Bound converts the extent to an orb.Bound.
func (e Extent) Bound() orb.Bound {
	return orb.Bound{Min: e.Min.Point(), Max: e.Max.Point()}
}

// Intersect returns the overlap of two extents. The result is false when they
// do not overlap. Touching extents intersect in a degenerate extent.
func Intersect(a, b Extent) (Extent, bool) {
	out := Extent{
		Min: Coordinates{X: math.Max(a.Min.X, b.Min.X), Y: math.Max(a.Min.Y, b.Min.Y)},
		Max: Coordinates{X: math.Min(a.Max.X, b.Max.X), Y: math.Min(a.Max.Y, b.Max.Y)},
	}
	if out.Min.X > out.Max.X || out.Min.Y > out.Max.Y {
		return Extent{}, false
	}
	return out, true
}
