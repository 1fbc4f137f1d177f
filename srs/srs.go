// Package srs builds coordinate transformations between spatial reference
// systems.
//
// A spatial reference is a string: an EPSG code ("EPSG:4326"), a PROJ4
// definition or WKT. Identity and WGS84/Web-Mercator pairs are served by orb;
// everything else goes through ctessum/geom/proj.
package srs

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ctessum/geom/proj"
	"github.com/paulmach/orb"
)

var (
	ErrEmptyReference   = errors.New("srs: empty spatial reference")
	ErrUnknownReference = errors.New("srs: unknown spatial reference")
)

const (
	WGS84       = "EPSG:4326"
	WebMercator = "EPSG:3857"

	proj4WGS84       = "+proj=longlat +datum=WGS84 +no_defs"
	proj4WebMercator = "+proj=merc +a=6378137 +b=6378137 +lat_ts=0 +lon_0=0 +x_0=0 +y_0=0 +k=1 +units=m +nadgrids=@null +no_defs"
)

// Canonical resolves a spatial reference string into the definition used to
// compare and build transformations. EPSG codes become PROJ4 strings.
func Canonical(ref string) (string, error) {
	s := strings.TrimSpace(ref)
	if s == "" {
		return "", ErrEmptyReference
	}

	upper := strings.ToUpper(s)
	if strings.HasPrefix(upper, "EPSG:") {
		code, err := strconv.Atoi(strings.TrimSpace(s[5:]))
		if err != nil {
			return "", fmt.Errorf("%w: %q", ErrUnknownReference, ref)
		}
		def, ok := epsgDefinition(code)
		if !ok {
			return "", fmt.Errorf("%w: EPSG:%d", ErrUnknownReference, code)
		}
		return def, nil
	}

	// Plain geographic WGS84 WKT is common enough in dataset headers to short-circuit.
	if strings.HasPrefix(upper, "GEOGCS[") && (strings.Contains(upper, "WGS 84") || strings.Contains(upper, "WGS_1984")) {
		return proj4WGS84, nil
	}

	return s, nil
}

func epsgDefinition(code int) (string, bool) {
	switch {
	case code == 4326:
		return proj4WGS84, true
	case code == 3857 || code == 900913:
		return proj4WebMercator, true
	case code > 32600 && code <= 32660:
		return fmt.Sprintf("+proj=utm +zone=%d +datum=WGS84 +units=m +no_defs", code-32600), true
	case code > 32700 && code <= 32760:
		return fmt.Sprintf("+proj=utm +zone=%d +south +datum=WGS84 +units=m +no_defs", code-32700), true
	}
	return "", false
}

// Equal reports whether two references resolve to the same definition.
func Equal(a, b string) bool {
	ca, err := Canonical(a)
	if err != nil {
		return false
	}
	cb, err := Canonical(b)
	if err != nil {
		return false
	}
	return ca == cb
}

// Parse validates a reference with the projection library.
func Parse(ref string) (*proj.SR, error) {
	def, err := Canonical(ref)
	if err != nil {
		return nil, err
	}
	sr, err := proj.Parse(def)
	if err != nil {
		return nil, fmt.Errorf("srs: parse %q: %w", ref, err)
	}
	return sr, nil
}

// Func maps a point from one reference to another.
type Func func(orb.Point) (orb.Point, error)

func projectionFunc(p orb.Projection) Func {
	return func(pt orb.Point) (orb.Point, error) {
		return p(pt), nil
	}
}

func transformerFunc(t proj.Transformer) Func {
	return func(pt orb.Point) (orb.Point, error) {
		x, y, err := t(pt[0], pt[1])
		if err != nil {
			return orb.Point{}, err
		}
		return orb.Point{x, y}, nil
	}
}

func identity(pt orb.Point) (orb.Point, error) {
	return pt, nil
}
