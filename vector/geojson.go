package vector

import (
	"encoding/json"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/paulmach/orb/geojson"

	"github.com/tingold/orb-render/srs"
)

// decodeGeoJSON loads a FeatureCollection. The schema is inferred from the
// property values; a legacy "crs" member selects the spatial reference.
func decodeGeoJSON(data []byte, name string) (*Layer, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, err
	}

	layer := newLayer(name, crsMember(fc.ExtraMembers), GeometryUndefined, inferFields(fc.Features))
	for _, gf := range fc.Features {
		f := &Feature{FID: -1, Geometry: gf.Geometry}
		if id, ok := toInt64(gf.ID); ok && id >= 0 {
			if _, taken := layer.byFID[id]; !taken {
				f.FID = id
			}
		}
		props, err := layer.conform(gf.Properties)
		if err != nil {
			return nil, err
		}
		f.Properties = props
		layer.add(f)
	}
	return layer, nil
}

func crsMember(extra geojson.Properties) string {
	crs, ok := extra["crs"].(map[string]interface{})
	if !ok {
		return srs.WGS84
	}
	props, _ := crs["properties"].(map[string]interface{})
	name, _ := props["name"].(string)
	switch {
	case name == "", strings.HasSuffix(name, "CRS84"):
		return srs.WGS84
	case strings.HasPrefix(name, "urn:ogc:def:crs:EPSG:"):
		// urn:ogc:def:crs:EPSG::3857, the version part may be empty
		return "EPSG:" + name[strings.LastIndex(name, ":")+1:]
	}
	return name
}

// inferFields derives a schema from the values of every feature: integral
// numbers make Integer fields, other numbers Real, booleans Bool, and
// anything else or a mix of kinds String. Fields are sorted by name.
func inferFields(features []*geojson.Feature) []Field {
	types := make(map[string]FieldType)
	for _, f := range features {
		for k, v := range f.Properties {
			if v == nil {
				if _, ok := types[k]; !ok {
					types[k] = -1
				}
				continue
			}
			t := valueFieldType(v)
			prev, ok := types[k]
			switch {
			case !ok || prev == -1:
				types[k] = t
			case prev == FieldInteger && t == FieldReal, prev == FieldReal && t == FieldInteger:
				types[k] = FieldReal
			case prev != t:
				types[k] = FieldString
			}
		}
	}

	names := make([]string, 0, len(types))
	for k := range types {
		names = append(names, k)
	}
	sort.Strings(names)

	out := make([]Field, len(names))
	for i, k := range names {
		t := types[k]
		if t == -1 {
			t = FieldString
		}
		out[i] = Field{Name: k, Type: t}
	}
	return out
}

func valueFieldType(v interface{}) FieldType {
	switch n := v.(type) {
	case bool:
		return FieldBool
	case float64:
		if n == math.Trunc(n) && math.Abs(n) < 1<<53 {
			return FieldInteger
		}
		return FieldReal
	case int, int32, int64:
		return FieldInteger
	}
	return FieldString
}

func encodeGeoJSON(w io.Writer, l *Layer) error {
	fc := geojson.NewFeatureCollection()
	if l.srs != "" && !srs.Equal(l.srs, srs.WGS84) {
		fc.ExtraMembers = geojson.Properties{
			"crs": map[string]interface{}{
				"type":       "name",
				"properties": map[string]interface{}{"name": l.srs},
			},
		}
	}
	for _, f := range l.features {
		gf := geojson.NewFeature(f.Geometry)
		gf.ID = f.FID
		if f.Properties != nil {
			gf.Properties = f.Properties.Clone()
		}
		fc.Append(gf)
	}

	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
