package vector

import (
	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/flatgeobuf/flatgeobuf/src/go/writer"
	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/paulmach/orb"
)

func fgbGeometryType(g orb.Geometry) flattypes.GeometryType {
	switch g.(type) {
	case orb.Point:
		return flattypes.GeometryTypePoint
	case orb.MultiPoint:
		return flattypes.GeometryTypeMultiPoint
	case orb.LineString:
		return flattypes.GeometryTypeLineString
	case orb.MultiLineString:
		return flattypes.GeometryTypeMultiLineString
	case orb.Ring, orb.Polygon, orb.Bound:
		return flattypes.GeometryTypePolygon
	case orb.MultiPolygon:
		return flattypes.GeometryTypeMultiPolygon
	case orb.Collection:
		return flattypes.GeometryTypeGeometryCollection
	}
	return flattypes.GeometryTypeUnknown
}

// layerTypeOf maps a header geometry type to the layer type. Unknown headers
// leave the layer type to be inferred from the features.
func layerTypeOf(t flattypes.GeometryType) GeometryType {
	switch t {
	case flattypes.GeometryTypePoint, flattypes.GeometryTypeMultiPoint:
		return GeometryPoint
	case flattypes.GeometryTypeLineString, flattypes.GeometryTypeMultiLineString:
		return GeometryLine
	case flattypes.GeometryTypePolygon, flattypes.GeometryTypeMultiPolygon:
		return GeometryPolygon
	case flattypes.GeometryTypeGeometryCollection:
		return GeometryCollection
	}
	return GeometryUndefined
}

// geometryToFGB encodes g, nil for types FlatGeobuf cannot hold.
func geometryToFGB(g orb.Geometry, b *flatbuffers.Builder) *writer.Geometry {
	out := writer.NewGeometry(b)
	switch v := g.(type) {
	case orb.Point:
		out.SetType(flattypes.GeometryTypePoint)
		out.SetXY([]float64{v[0], v[1]})
	case orb.MultiPoint:
		out.SetType(flattypes.GeometryTypeMultiPoint)
		out.SetXY(flatXY(v))
	case orb.LineString:
		out.SetType(flattypes.GeometryTypeLineString)
		out.SetXY(flatXY(v))
	case orb.MultiLineString:
		parts := make([][]orb.Point, len(v))
		for i, ls := range v {
			parts[i] = ls
		}
		out.SetType(flattypes.GeometryTypeMultiLineString)
		xy, ends := flatParts(parts)
		out.SetXY(xy)
		out.SetEnds(ends)
	case orb.Ring:
		return geometryToFGB(orb.Polygon{v}, b)
	case orb.Bound:
		return geometryToFGB(v.ToPolygon(), b)
	case orb.Polygon:
		out.SetType(flattypes.GeometryTypePolygon)
		xy, ends := flatParts(ringParts(v))
		out.SetXY(xy)
		out.SetEnds(ends)
	case orb.MultiPolygon:
		out.SetType(flattypes.GeometryTypeMultiPolygon)
		parts := make([]writer.Geometry, 0, len(v))
		for _, poly := range v {
			if pg := geometryToFGB(poly, b); pg != nil {
				parts = append(parts, *pg)
			}
		}
		out.SetParts(parts)
	case orb.Collection:
		out.SetType(flattypes.GeometryTypeGeometryCollection)
		parts := make([]writer.Geometry, 0, len(v))
		for _, child := range v {
			if cg := geometryToFGB(child, b); cg != nil {
				parts = append(parts, *cg)
			}
		}
		out.SetParts(parts)
	default:
		return nil
	}
	return out
}

func ringParts(p orb.Polygon) [][]orb.Point {
	out := make([][]orb.Point, len(p))
	for i, r := range p {
		out[i] = r
	}
	return out
}

func flatXY(pts []orb.Point) []float64 {
	xy := make([]float64, 0, 2*len(pts))
	for _, p := range pts {
		xy = append(xy, p[0], p[1])
	}
	return xy
}

// flatParts concatenates the parts and records the cumulative end of each.
func flatParts(parts [][]orb.Point) ([]float64, []uint32) {
	var xy []float64
	ends := make([]uint32, 0, len(parts))
	var n uint32
	for _, part := range parts {
		xy = append(xy, flatXY(part)...)
		n += uint32(len(part))
		ends = append(ends, n)
	}
	return xy, ends
}

func geometryFromFGB(g *flattypes.Geometry) orb.Geometry {
	switch g.Type() {
	case flattypes.GeometryTypePoint:
		if g.XyLength() < 2 {
			return nil
		}
		return orb.Point{g.Xy(0), g.Xy(1)}
	case flattypes.GeometryTypeMultiPoint:
		return orb.MultiPoint(readXY(g, 0, g.XyLength()/2))
	case flattypes.GeometryTypeLineString:
		return orb.LineString(readXY(g, 0, g.XyLength()/2))
	case flattypes.GeometryTypeMultiLineString:
		parts := readParts(g)
		out := make(orb.MultiLineString, len(parts))
		for i, p := range parts {
			out[i] = p
		}
		return out
	case flattypes.GeometryTypePolygon:
		return polygonFromFGB(g)
	case flattypes.GeometryTypeMultiPolygon:
		var out orb.MultiPolygon
		if g.PartsLength() == 0 {
			if p := polygonFromFGB(g); len(p) > 0 {
				out = append(out, p)
			}
			return out
		}
		for i := 0; i < g.PartsLength(); i++ {
			var part flattypes.Geometry
			if g.Parts(&part, i) {
				if p := polygonFromFGB(&part); len(p) > 0 {
					out = append(out, p)
				}
			}
		}
		return out
	case flattypes.GeometryTypeGeometryCollection:
		var out orb.Collection
		for i := 0; i < g.PartsLength(); i++ {
			var part flattypes.Geometry
			if g.Parts(&part, i) {
				if child := geometryFromFGB(&part); child != nil {
					out = append(out, child)
				}
			}
		}
		return out
	}
	return nil
}

func polygonFromFGB(g *flattypes.Geometry) orb.Polygon {
	parts := readParts(g)
	out := make(orb.Polygon, len(parts))
	for i, p := range parts {
		out[i] = p
	}
	return out
}

// readXY reads the points with indexes [from, to).
func readXY(g *flattypes.Geometry, from, to int) []orb.Point {
	if n := g.XyLength() / 2; to > n {
		to = n
	}
	if from >= to {
		return nil
	}
	out := make([]orb.Point, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, orb.Point{g.Xy(2 * i), g.Xy(2*i + 1)})
	}
	return out
}

// readParts splits the coordinates at the ends array; without ends the whole
// coordinate list is one part.
func readParts(g *flattypes.Geometry) [][]orb.Point {
	n := g.XyLength() / 2
	if n == 0 {
		return nil
	}
	if g.EndsLength() == 0 {
		return [][]orb.Point{readXY(g, 0, n)}
	}
	out := make([][]orb.Point, 0, g.EndsLength())
	start := 0
	for i := 0; i < g.EndsLength(); i++ {
		end := int(g.Ends(i))
		out = append(out, readXY(g, start, end))
		start = end
	}
	return out
}
