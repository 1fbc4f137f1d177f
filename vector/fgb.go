package vector

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	flatgeobuf "github.com/flatgeobuf/flatgeobuf/src/go"
	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/flatgeobuf/flatgeobuf/src/go/writer"
	flatbuffers "github.com/google/flatbuffers/go"
	"go.uber.org/zap"

	"github.com/tingold/orb-render/log"
	"github.com/tingold/orb-render/srs"
)

// decodeFlatGeobuf loads every feature of a FlatGeobuf file into a layer.
// Features can only be enumerated through the packed R-tree, so a non-empty
// file without an index is rejected.
func decodeFlatGeobuf(data []byte, name string) (*Layer, error) {
	fgb, err := flatgeobuf.NewWithData(data)
	if err != nil {
		return nil, err
	}
	h := fgb.Header()
	if h == nil {
		return nil, fmt.Errorf("flatgeobuf: missing header")
	}
	if n := string(h.Name()); n != "" {
		name = n
	}

	layer := newLayer(name, crsOf(h), layerTypeOf(h.GeometryType()), fieldsOf(h))
	if h.FeaturesCount() == 0 {
		return layer, nil
	}
	if h.IndexNodeSize() == 0 {
		return nil, ErrNoIndex
	}
	if h.EnvelopeLength() < 4 {
		return nil, fmt.Errorf("flatgeobuf: indexed file has no envelope")
	}

	found, err := fgb.Search(h.Envelope(0), h.Envelope(1), h.Envelope(2), h.Envelope(3))
	if err != nil {
		return nil, err
	}
	for _, ff := range found {
		var g flattypes.Geometry
		f := &Feature{FID: -1}
		if geom := ff.Geometry(&g); geom != nil {
			f.Geometry = geometryFromFGB(geom)
		}
		if n := ff.PropertiesLength(); n > 0 {
			raw := make([]byte, n)
			for i := 0; i < n; i++ {
				raw[i] = byte(ff.Properties(i))
			}
			f.Properties = decodeProperties(raw, h)
		}
		layer.add(f)
	}
	log.Debug("decoded flatgeobuf", zap.String("layer", name), zap.Int("features", len(layer.features)))
	return layer, nil
}

// crsOf renders the header CRS as an "EPSG:code" reference, falling back to
// the description, where other references are stored. Files without a CRS
// are assumed to be WGS84.
func crsOf(h *flattypes.Header) string {
	var crs flattypes.Crs
	if h.Crs(&crs) == nil {
		return srs.WGS84
	}
	if code := crs.Code(); code > 0 {
		org := string(crs.Org())
		if org == "" {
			org = "EPSG"
		}
		return org + ":" + strconv.Itoa(int(code))
	}
	if d := string(crs.Description()); d != "" {
		return d
	}
	return srs.WGS84
}

func fieldsOf(h *flattypes.Header) []Field {
	out := make([]Field, 0, h.ColumnsLength())
	for i := 0; i < h.ColumnsLength(); i++ {
		var col flattypes.Column
		if !h.Columns(&col, i) {
			continue
		}
		out = append(out, Field{Name: string(col.Name()), Type: fieldTypeOf(col.Type())})
	}
	return out
}

// encodeFlatGeobuf writes the layer with a spatial index so it can be read
// back. Features without geometry are not representable and are skipped.
func encodeFlatGeobuf(w io.Writer, l *Layer) error {
	builder := flatbuffers.NewBuilder(4096)

	header := writer.NewHeader(builder)
	header.SetName(l.name)
	header.SetGeometryType(headerGeometryType(l))

	columns := make([]*writer.Column, len(l.fields))
	for i, fd := range l.fields {
		col := writer.NewColumn(builder)
		col.SetName(fd.Name)
		col.SetTitle(fd.Name)
		col.SetType(columnTypeOf(fd.Type))
		col.SetNullable(true)
		columns[i] = col
	}
	if len(columns) > 0 {
		header.SetColumns(columns)
	}

	if l.srs != "" {
		crs := writer.NewCrs(builder)
		if org, code, ok := epsgCode(l.srs); ok {
			crs.SetOrg(org)
			crs.SetCode(int32(code))
		} else {
			crs.SetDescription(l.srs)
		}
		header.SetCrs(crs)
	}

	gen := &layerFeatureGenerator{layer: l}
	indexed := gen.count() > 0
	if _, err := writer.NewWriter(header, indexed, gen, nil).Write(w); err != nil {
		return err
	}
	return nil
}

// epsgCode splits "ORG:code" references.
func epsgCode(ref string) (string, int, bool) {
	org, code, ok := strings.Cut(ref, ":")
	if !ok || org == "" {
		return "", 0, false
	}
	n, err := strconv.Atoi(code)
	if err != nil || n <= 0 {
		return "", 0, false
	}
	return strings.ToUpper(org), n, true
}

// headerGeometryType is the common FlatGeobuf type of all features, Unknown
// when they differ.
func headerGeometryType(l *Layer) flattypes.GeometryType {
	t := flattypes.GeometryTypeUnknown
	first := true
	for _, f := range l.features {
		if f.Geometry == nil {
			continue
		}
		ft := fgbGeometryType(f.Geometry)
		if first {
			t, first = ft, false
			continue
		}
		if ft != t {
			return flattypes.GeometryTypeUnknown
		}
	}
	return t
}

// layerFeatureGenerator feeds the layer features to the FlatGeobuf writer.
type layerFeatureGenerator struct {
	layer *Layer
	next  int
}

func (g *layerFeatureGenerator) count() int {
	n := 0
	for _, f := range g.layer.features {
		if f.Geometry != nil {
			n++
		}
	}
	return n
}

func (g *layerFeatureGenerator) Generate() *writer.Feature {
	for g.next < len(g.layer.features) {
		f := g.layer.features[g.next]
		g.next++
		if f.Geometry == nil {
			continue
		}

		builder := flatbuffers.NewBuilder(1024)
		geom := geometryToFGB(f.Geometry, builder)
		if geom == nil {
			log.Warn("skipping unsupported geometry", zap.Int64("fid", f.FID),
				zap.String("type", f.Geometry.GeoJSONType()))
			continue
		}
		out := writer.NewFeature(builder)
		out.SetGeometry(geom)
		if raw := encodeProperties(f.Properties, g.layer.fields); len(raw) > 0 {
			out.SetProperties(raw)
		}
		return out
	}
	return nil
}
