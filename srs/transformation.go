package srs

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// Transformation converts coordinates from Source to Target (Forward) and back
// (Inverse).
type Transformation struct {
	Source string
	Target string

	forward  Func
	inverse  Func
	identity bool
}

// Factory creates transformations between two references.
type Factory interface {
	Create(source, target string) (*Transformation, error)
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(source, target string) (*Transformation, error)

func (f FactoryFunc) Create(source, target string) (*Transformation, error) {
	return f(source, target)
}

// DefaultFactory is the factory used when none is configured.
var DefaultFactory Factory = FactoryFunc(NewTransformation)

// NewTransformation builds the transformation from source to target.
func NewTransformation(source, target string) (*Transformation, error) {
	src, err := Canonical(source)
	if err != nil {
		return nil, err
	}
	dst, err := Canonical(target)
	if err != nil {
		return nil, err
	}

	t := &Transformation{Source: source, Target: target}
	switch {
	case src == dst:
		t.forward, t.inverse, t.identity = identity, identity, true
	case src == proj4WGS84 && dst == proj4WebMercator:
		t.forward = projectionFunc(project.WGS84.ToMercator)
		t.inverse = projectionFunc(project.Mercator.ToWGS84)
	case src == proj4WebMercator && dst == proj4WGS84:
		t.forward = projectionFunc(project.Mercator.ToWGS84)
		t.inverse = projectionFunc(project.WGS84.ToMercator)
	default:
		srcSR, err := Parse(source)
		if err != nil {
			return nil, err
		}
		dstSR, err := Parse(target)
		if err != nil {
			return nil, err
		}
		fwd, err := srcSR.NewTransform(dstSR)
		if err != nil {
			return nil, fmt.Errorf("srs: transform %q -> %q: %w", source, target, err)
		}
		inv, err := dstSR.NewTransform(srcSR)
		if err != nil {
			return nil, fmt.Errorf("srs: transform %q -> %q: %w", target, source, err)
		}
		t.forward, t.inverse = transformerFunc(fwd), transformerFunc(inv)
	}
	return t, nil
}

// IsIdentity reports whether both references are the same.
func (t *Transformation) IsIdentity() bool { return t.identity }

// Forward maps a point from Source to Target.
func (t *Transformation) Forward(p orb.Point) (orb.Point, error) {
	return checked(t.forward(p))
}

// Inverse maps a point from Target to Source.
func (t *Transformation) Inverse(p orb.Point) (orb.Point, error) {
	return checked(t.inverse(p))
}

// ForwardGeometry returns a transformed copy of g.
func (t *Transformation) ForwardGeometry(g orb.Geometry) (orb.Geometry, error) {
	return transformGeometry(g, t.forward)
}

// InverseGeometry returns a copy of g transformed from Target to Source.
func (t *Transformation) InverseGeometry(g orb.Geometry) (orb.Geometry, error) {
	return transformGeometry(g, t.inverse)
}

// ForwardBound reprojects the four corners of b and returns their envelope.
func (t *Transformation) ForwardBound(b orb.Bound) (orb.Bound, error) {
	return transformBound(b, t.forward)
}

// InverseBound is ForwardBound in the opposite direction.
func (t *Transformation) InverseBound(b orb.Bound) (orb.Bound, error) {
	return transformBound(b, t.inverse)
}

func checked(p orb.Point, err error) (orb.Point, error) {
	if err != nil {
		return orb.Point{}, err
	}
	if math.IsNaN(p[0]) || math.IsNaN(p[1]) || math.IsInf(p[0], 0) || math.IsInf(p[1], 0) {
		return orb.Point{}, fmt.Errorf("srs: point %v has no valid projection", p)
	}
	return p, nil
}

func transformGeometry(g orb.Geometry, fn Func) (orb.Geometry, error) {
	if g == nil {
		return nil, nil
	}
	var firstErr error
	out := project.Geometry(orb.Clone(g), func(p orb.Point) orb.Point {
		q, err := checked(fn(p))
		if err != nil && firstErr == nil {
			firstErr = err
		}
		return q
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

func transformBound(b orb.Bound, fn Func) (orb.Bound, error) {
	corners := []orb.Point{
		b.Min,
		{b.Min[0], b.Max[1]},
		b.Max,
		{b.Max[0], b.Min[1]},
	}
	var out orb.Bound
	for i, c := range corners {
		p, err := checked(fn(c))
		if err != nil {
			return orb.Bound{}, err
		}
		if i == 0 {
			out = orb.Bound{Min: p, Max: p}
			continue
		}
		out = out.Extend(p)
	}
	return out, nil
}
