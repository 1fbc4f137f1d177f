package vector

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"github.com/tingold/orb-render/log"
)

// Editor performs layer, field and feature changes on a vector. Feature and
// field operations act on the layer opened with OpenLayer.
type Editor struct {
	v     *Vector
	layer *Layer
}

func NewEditor(v *Vector) *Editor {
	return &Editor{v: v}
}

func (e *Editor) Vector() *Vector { return e.v }

// Layer returns the open layer, nil when none is open.
func (e *Editor) Layer() *Layer { return e.layer }

func (e *Editor) OpenLayer(i int) error {
	l := e.v.Layer(i)
	if l == nil {
		return fmt.Errorf("%w: index %d", ErrNoLayer, i)
	}
	e.layer = l
	return nil
}

func (e *Editor) OpenLayerByName(name string) error {
	l := e.v.LayerByName(name)
	if l == nil {
		return fmt.Errorf("%w: %q", ErrNoLayer, name)
	}
	e.layer = l
	return nil
}

func (e *Editor) CloseLayer() {
	e.layer = nil
}

func (e *Editor) writable() error {
	if e.v.closed {
		return ErrClosed
	}
	if e.v.mode != ReadWrite {
		return ErrReadOnly
	}
	return nil
}

func (e *Editor) openLayer() (*Layer, error) {
	if err := e.writable(); err != nil {
		return nil, err
	}
	if e.layer == nil {
		return nil, ErrNoLayer
	}
	return e.layer, nil
}

// CreateLayer adds an empty layer and opens it. Its index is returned.
func (e *Editor) CreateLayer(name, srs string, gtype GeometryType, fields ...Field) (int, error) {
	if err := e.writable(); err != nil {
		return -1, err
	}
	if e.v.LayerIndex(name) >= 0 {
		return -1, fmt.Errorf("%w: layer %q", ErrDuplicate, name)
	}
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if seen[f.Name] {
			return -1, fmt.Errorf("%w: field %q", ErrDuplicate, f.Name)
		}
		seen[f.Name] = true
	}

	l := newLayer(name, srs, gtype, fields)
	l.ds = e.v.ds
	e.v.ds.layers = append(e.v.ds.layers, l)
	e.v.ds.touch()
	e.layer = l
	log.Debug("created layer", zap.String("url", e.v.url), zap.String("layer", name))
	return len(e.v.ds.layers) - 1, nil
}

// DeleteLayer removes the layer at index i, closing it when it is open.
func (e *Editor) DeleteLayer(i int) error {
	if err := e.writable(); err != nil {
		return err
	}
	l := e.v.Layer(i)
	if l == nil {
		return fmt.Errorf("%w: index %d", ErrNoLayer, i)
	}
	e.v.ds.layers = append(e.v.ds.layers[:i], e.v.ds.layers[i+1:]...)
	e.v.ds.touch()
	if e.layer == l {
		e.layer = nil
	}
	return nil
}

// CreateField appends a field to the open layer schema. Existing features
// get no value for it.
func (e *Editor) CreateField(name string, t FieldType) error {
	l, err := e.openLayer()
	if err != nil {
		return err
	}
	if l.FieldIndex(name) >= 0 {
		return fmt.Errorf("%w: field %q", ErrDuplicate, name)
	}
	l.fields = append(l.fields, Field{Name: name, Type: t})
	l.changed()
	return nil
}

// DeleteField drops a field and its values from every feature.
func (e *Editor) DeleteField(name string) error {
	l, err := e.openLayer()
	if err != nil {
		return err
	}
	i := l.FieldIndex(name)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrNoField, name)
	}
	l.fields = append(l.fields[:i], l.fields[i+1:]...)
	for _, f := range l.features {
		delete(f.Properties, name)
	}
	if l.filter != nil {
		for _, ref := range fieldRefs(l.filter) {
			if ref == name {
				l.attrFilter, l.filter = "", nil
				break
			}
		}
	}
	l.changed()
	return nil
}

// CreateFeature adds a feature with a copy of g and props and returns its
// FID. Properties outside the schema are dropped.
func (e *Editor) CreateFeature(g orb.Geometry, props geojson.Properties) (int64, error) {
	l, err := e.openLayer()
	if err != nil {
		return -1, err
	}
	if g == nil {
		return -1, ErrGeometryMissing
	}
	p, err := l.conform(props)
	if err != nil {
		return -1, err
	}
	fid := l.add(&Feature{FID: -1, Geometry: orb.Clone(g), Properties: p})
	l.changed()
	return fid, nil
}

// UpdateFeature replaces the geometry of a feature.
func (e *Editor) UpdateFeature(fid int64, g orb.Geometry) error {
	l, err := e.openLayer()
	if err != nil {
		return err
	}
	if g == nil {
		return ErrGeometryMissing
	}
	i, ok := l.byFID[fid]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNoFeature, fid)
	}
	l.features[i].Geometry = orb.Clone(g)
	l.changed()
	return nil
}

// SetValue sets one attribute of a feature; nil clears it.
func (e *Editor) SetValue(fid int64, field string, value interface{}) error {
	l, err := e.openLayer()
	if err != nil {
		return err
	}
	fi := l.FieldIndex(field)
	if fi < 0 {
		return fmt.Errorf("%w: %q", ErrNoField, field)
	}
	i, ok := l.byFID[fid]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNoFeature, fid)
	}
	v, err := normalize(value, l.fields[fi].Type)
	if err != nil {
		return fmt.Errorf("field %s: %w", field, err)
	}
	f := l.features[i]
	if v == nil {
		delete(f.Properties, field)
	} else {
		if f.Properties == nil {
			f.Properties = make(geojson.Properties)
		}
		f.Properties[field] = v
	}
	l.changed()
	return nil
}

func (e *Editor) DeleteFeature(fid int64) error {
	l, err := e.openLayer()
	if err != nil {
		return err
	}
	if !l.remove(fid) {
		return fmt.Errorf("%w: %d", ErrNoFeature, fid)
	}
	l.changed()
	return nil
}
