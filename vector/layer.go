package vector

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

type FieldType int

const (
	FieldString FieldType = iota
	FieldInteger
	FieldReal
	FieldBool
)

func (t FieldType) String() string {
	switch t {
	case FieldInteger:
		return "Integer"
	case FieldReal:
		return "Real"
	case FieldBool:
		return "Bool"
	}
	return "String"
}

// Field describes one attribute column of a layer.
type Field struct {
	Name string
	Type FieldType
}

// Layer is a named collection of features sharing a spatial reference and a
// field schema. Reading honors the attribute and spatial filters currently
// set on the layer.
type Layer struct {
	name   string
	srs    string
	gtype  GeometryType
	fields []Field

	features []*Feature
	byFID    map[int64]int
	nextFID  int64

	index      *spatialIndex
	indexDirty bool

	attrFilter string
	filter     expr
	spatial    *orb.Bound

	candidates []*Feature
	cursor     int
	reading    bool

	ds *dataset
}

func newLayer(name, srs string, gtype GeometryType, fields []Field) *Layer {
	l := &Layer{
		name:       name,
		srs:        srs,
		gtype:      gtype,
		fields:     append([]Field(nil), fields...),
		byFID:      make(map[int64]int),
		indexDirty: true,
	}
	return l
}

func (l *Layer) Name() string             { return l.name }
func (l *Layer) SpatialReference() string { return l.srs }

// GeometryType returns the declared type, or the type inferred from the
// features when none was declared.
func (l *Layer) GeometryType() GeometryType {
	if l.gtype != GeometryUndefined {
		return l.gtype
	}
	t := GeometryUndefined
	for _, f := range l.features {
		t = mergeType(t, GeometryTypeOf(f.Geometry))
	}
	return t
}

// Fields returns a copy of the schema.
func (l *Layer) Fields() []Field {
	return append([]Field(nil), l.fields...)
}

// FieldIndex returns the position of the named field, -1 when absent.
func (l *Layer) FieldIndex(name string) int {
	for i, f := range l.fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// FeatureCount returns the number of features passing the current filters.
func (l *Layer) FeatureCount() int {
	if l.filter == nil && l.spatial == nil {
		return len(l.features)
	}
	return len(l.selection())
}

// Feature returns a copy of the feature with fid, ignoring filters.
func (l *Layer) Feature(fid int64) (*Feature, bool) {
	i, ok := l.byFID[fid]
	if !ok {
		return nil, false
	}
	return l.features[i].Clone(), true
}

// ResetReading restarts NextFeature from the first matching feature.
func (l *Layer) ResetReading() {
	l.reading = false
	l.candidates = nil
	l.cursor = 0
}

// NextFeature returns a copy of the next feature passing the filters, nil at
// the end of the layer.
func (l *Layer) NextFeature() *Feature {
	if !l.reading {
		l.candidates = l.selection()
		l.cursor = 0
		l.reading = true
	}
	if l.cursor >= len(l.candidates) {
		return nil
	}
	f := l.candidates[l.cursor]
	l.cursor++
	return f.Clone()
}

// selection lists the features passing both filters in FID order.
func (l *Layer) selection() []*Feature {
	var pool []*Feature
	if l.spatial != nil {
		pool = l.spatialIndex().search(*l.spatial)
		sort.Slice(pool, func(i, j int) bool { return pool[i].FID < pool[j].FID })
	} else {
		pool = l.features
	}
	if l.filter == nil {
		return append([]*Feature(nil), pool...)
	}
	out := make([]*Feature, 0, len(pool))
	for _, f := range pool {
		if truthy(l.filter.eval(f.Properties)) {
			out = append(out, f)
		}
	}
	return out
}

func (l *Layer) spatialIndex() *spatialIndex {
	if l.index == nil || l.indexDirty {
		l.index = newSpatialIndex(l.features)
		l.indexDirty = false
	}
	return l.index
}

// SetAttributeFilter restricts reading to features matching a WHERE-style
// expression such as `population > 1000 AND name LIKE 'San%'`. An empty
// expression clears the filter.
func (l *Layer) SetAttributeFilter(where string) error {
	if where == "" {
		l.attrFilter, l.filter = "", nil
		l.ResetReading()
		return nil
	}
	e, err := parseFilter(where)
	if err != nil {
		return err
	}
	for _, name := range fieldRefs(e) {
		if l.FieldIndex(name) < 0 {
			return fmt.Errorf("%w: %q in filter %q", ErrNoField, name, where)
		}
	}
	l.attrFilter, l.filter = where, e
	l.ResetReading()
	return nil
}

func (l *Layer) AttributeFilter() string { return l.attrFilter }

// SetSpatialFilterRect restricts reading to features whose bounds intersect
// the rectangle. Corners may be given in any order.
func (l *Layer) SetSpatialFilterRect(x0, y0, x1, y1 float64) {
	b := orb.Bound{
		Min: orb.Point{math.Min(x0, x1), math.Min(y0, y1)},
		Max: orb.Point{math.Max(x0, x1), math.Max(y0, y1)},
	}
	l.spatial = &b
	l.ResetReading()
}

// SetSpatialFilter filters by the bounds of g; nil clears the filter.
func (l *Layer) SetSpatialFilter(g orb.Geometry) {
	if g == nil {
		l.ClearSpatialFilter()
		return
	}
	b := g.Bound()
	l.spatial = &b
	l.ResetReading()
}

// SpatialFilter returns the current spatial filter rectangle.
func (l *Layer) SpatialFilter() (orb.Bound, bool) {
	if l.spatial == nil {
		return orb.Bound{}, false
	}
	return *l.spatial, true
}

func (l *Layer) ClearSpatialFilter() {
	l.spatial = nil
	l.ResetReading()
}

// Extent returns the bounds of all features, ignoring filters.
func (l *Layer) Extent() (orb.Bound, bool) {
	var out orb.Bound
	found := false
	for _, f := range l.features {
		if f.Geometry == nil {
			continue
		}
		b := f.Geometry.Bound()
		if !found {
			out, found = b, true
			continue
		}
		out = out.Union(b)
	}
	return out, found
}

func (l *Layer) changed() {
	l.indexDirty = true
	l.ResetReading()
	if l.ds != nil {
		l.ds.touch()
	}
}

// add stores f, assigning the next FID when f.FID is negative.
func (l *Layer) add(f *Feature) int64 {
	if f.FID < 0 {
		f.FID = l.nextFID
	}
	if f.FID >= l.nextFID {
		l.nextFID = f.FID + 1
	}
	l.byFID[f.FID] = len(l.features)
	l.features = append(l.features, f)
	return f.FID
}

func (l *Layer) remove(fid int64) bool {
	i, ok := l.byFID[fid]
	if !ok {
		return false
	}
	l.features = append(l.features[:i], l.features[i+1:]...)
	delete(l.byFID, fid)
	for j := i; j < len(l.features); j++ {
		l.byFID[l.features[j].FID] = j
	}
	return true
}

// normalize converts v to the Go type stored for fields of type t: string,
// int64, float64 or bool. nil stays nil.
func normalize(v interface{}, t FieldType) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case FieldString:
		switch s := v.(type) {
		case string:
			return s, nil
		case []byte:
			return string(s), nil
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTypeMismatch, err)
		}
		return string(b), nil
	case FieldInteger:
		if s, ok := v.(string); ok {
			i, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %q is not an integer", ErrTypeMismatch, s)
			}
			return i, nil
		}
		if i, ok := toInt64(v); ok {
			return i, nil
		}
	case FieldReal:
		if s, ok := v.(string); ok {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %q is not a number", ErrTypeMismatch, s)
			}
			return f, nil
		}
		if f, ok := toFloat64(v); ok {
			return f, nil
		}
	case FieldBool:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			pb, err := strconv.ParseBool(b)
			if err != nil {
				return nil, fmt.Errorf("%w: %q is not a boolean", ErrTypeMismatch, b)
			}
			return pb, nil
		}
		if i, ok := toInt64(v); ok {
			return i != 0, nil
		}
	}
	return nil, fmt.Errorf("%w: %T for %s field", ErrTypeMismatch, v, t)
}

// conform returns props restricted to the layer schema with values
// normalized to the field types.
func (l *Layer) conform(props geojson.Properties) (geojson.Properties, error) {
	out := make(geojson.Properties, len(l.fields))
	for _, fd := range l.fields {
		v, ok := props[fd.Name]
		if !ok {
			continue
		}
		nv, err := normalize(v, fd.Type)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", fd.Name, err)
		}
		out[fd.Name] = nv
	}
	return out, nil
}
