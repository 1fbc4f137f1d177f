// Package vector is the vector dataset backend used by the renderers and the
// editors: datasets made of layers of features with attribute and spatial
// filtering, stored as FlatGeobuf, GeoJSON or kept in memory.
package vector

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/tingold/orb-render/log"
)

var (
	ErrUnknownFormat   = errors.New("vector: unknown dataset format")
	ErrClosed          = errors.New("vector: dataset is closed")
	ErrReadOnly        = errors.New("vector: dataset opened read-only")
	ErrNoLayer         = errors.New("vector: no such layer")
	ErrNoFeature       = errors.New("vector: no such feature")
	ErrNoField         = errors.New("vector: no such field")
	ErrDuplicate       = errors.New("vector: name already in use")
	ErrSingleLayer     = errors.New("vector: format holds a single layer")
	ErrNoIndex         = errors.New("vector: flatgeobuf file has no spatial index")
	ErrNotFound        = errors.New("vector: dataset not found")
	ErrTypeMismatch    = errors.New("vector: value does not match field type")
	ErrGeometryMissing = errors.New("vector: feature has no geometry")
)

// MemoryScheme prefixes the URL of in-memory datasets.
const MemoryScheme = "mem://"

type AccessMode int

const (
	ReadOnly AccessMode = iota
	ReadWrite
)

func (m AccessMode) String() string {
	if m == ReadWrite {
		return "ReadWrite"
	}
	return "ReadOnly"
}

// GeometryType classifies the geometries of a layer. Multi geometries share
// the type of their parts.
type GeometryType int

const (
	GeometryUndefined GeometryType = iota
	GeometryPoint
	GeometryLine
	GeometryPolygon
	GeometryCollection
)

func (t GeometryType) String() string {
	switch t {
	case GeometryPoint:
		return "Point"
	case GeometryLine:
		return "Line"
	case GeometryPolygon:
		return "Polygon"
	case GeometryCollection:
		return "GeometryCollection"
	}
	return "Undefined"
}

// GeometryTypeOf returns the layer geometry type matching g.
func GeometryTypeOf(g orb.Geometry) GeometryType {
	switch g.(type) {
	case orb.Point, orb.MultiPoint:
		return GeometryPoint
	case orb.LineString, orb.MultiLineString:
		return GeometryLine
	case orb.Ring, orb.Polygon, orb.MultiPolygon, orb.Bound:
		return GeometryPolygon
	case orb.Collection:
		return GeometryCollection
	}
	return GeometryUndefined
}

// mergeType combines the running layer type with the type of one more
// feature; mixed kinds make a collection layer.
func mergeType(current, next GeometryType) GeometryType {
	switch {
	case next == GeometryUndefined:
		return current
	case current == GeometryUndefined:
		return next
	case current != next:
		return GeometryCollection
	}
	return current
}

type format int

const (
	formatMemory format = iota
	formatFlatGeobuf
	formatGeoJSON
)

func formatOf(url string) (format, error) {
	if strings.HasPrefix(url, MemoryScheme) {
		return formatMemory, nil
	}
	switch strings.ToLower(filepath.Ext(url)) {
	case ".fgb":
		return formatFlatGeobuf, nil
	case ".geojson", ".json":
		return formatGeoJSON, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownFormat, url)
}

// dataset is the content shared by every handle opened on the same source.
type dataset struct {
	layers   []*Layer
	modified bool
}

func (d *dataset) touch() {
	d.modified = true
}

// Vector is an open handle on a dataset.
type Vector struct {
	url    string
	mode   AccessMode
	format format
	ds     *dataset
	closed bool
}

// Open opens a file dataset. The format is chosen by extension: .fgb for
// FlatGeobuf, .geojson or .json for GeoJSON. A ReadWrite handle on a missing
// file starts an empty dataset that is created on Close.
func Open(url string, mode AccessMode) (*Vector, error) {
	f, err := formatOf(url)
	if err != nil {
		return nil, err
	}
	if f == formatMemory {
		return nil, fmt.Errorf("%w: %s (memory datasets need a MemoryOpener)", ErrNotFound, url)
	}

	data, err := os.ReadFile(url)
	if errors.Is(err, os.ErrNotExist) && mode == ReadWrite {
		log.Debug("creating dataset", zap.String("url", url))
		return &Vector{url: url, mode: mode, format: f, ds: &dataset{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("vector: open %s: %w", url, err)
	}

	var layer *Layer
	switch f {
	case formatFlatGeobuf:
		layer, err = decodeFlatGeobuf(data, layerName(url))
	case formatGeoJSON:
		layer, err = decodeGeoJSON(data, layerName(url))
	}
	if err != nil {
		return nil, fmt.Errorf("vector: open %s: %w", url, err)
	}

	ds := &dataset{layers: []*Layer{layer}}
	layer.ds = ds
	log.Debug("opened dataset", zap.String("url", url), zap.Stringer("mode", mode),
		zap.Int("features", len(layer.features)))
	return &Vector{url: url, mode: mode, format: f, ds: ds}, nil
}

// NewMemory creates an empty, writable in-memory dataset.
func NewMemory(name string) *Vector {
	return &Vector{url: MemoryScheme + name, mode: ReadWrite, format: formatMemory, ds: &dataset{}}
}

func layerName(url string) string {
	base := filepath.Base(url)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (v *Vector) URL() string      { return v.url }
func (v *Vector) Mode() AccessMode { return v.mode }

// IsOpen reports whether Close has not been called yet.
func (v *Vector) IsOpen() bool { return !v.closed }

func (v *Vector) LayerCount() int {
	if v.closed {
		return 0
	}
	return len(v.ds.layers)
}

// Layer returns the layer at index i, nil when out of range.
func (v *Vector) Layer(i int) *Layer {
	if v.closed || i < 0 || i >= len(v.ds.layers) {
		return nil
	}
	return v.ds.layers[i]
}

// LayerByName returns the named layer, nil when absent.
func (v *Vector) LayerByName(name string) *Layer {
	if v.closed {
		return nil
	}
	for _, l := range v.ds.layers {
		if l.name == name {
			return l
		}
	}
	return nil
}

// LayerIndex returns the position of the named layer, -1 when absent.
func (v *Vector) LayerIndex(name string) int {
	for i, l := range v.ds.layers {
		if l.name == name {
			return i
		}
	}
	return -1
}

// LayerSR returns the spatial reference of layer i, empty when out of range.
func (v *Vector) LayerSR(i int) string {
	if l := v.Layer(i); l != nil {
		return l.srs
	}
	return ""
}

// LayerType returns the geometry type of layer i.
func (v *Vector) LayerType(i int) GeometryType {
	if l := v.Layer(i); l != nil {
		return l.GeometryType()
	}
	return GeometryUndefined
}

// Modified reports whether the dataset changed since it was opened or saved.
func (v *Vector) Modified() bool { return v.ds.modified }

// Save writes a file dataset back to its URL. Memory datasets have nothing
// to write.
func (v *Vector) Save() error {
	if v.closed {
		return ErrClosed
	}
	if v.mode != ReadWrite {
		return ErrReadOnly
	}
	if v.format == formatMemory {
		v.ds.modified = false
		return nil
	}
	if len(v.ds.layers) > 1 {
		return fmt.Errorf("%w: %s has %d layers", ErrSingleLayer, v.url, len(v.ds.layers))
	}
	if len(v.ds.layers) == 0 {
		return nil
	}

	f, err := os.Create(v.url)
	if err != nil {
		return fmt.Errorf("vector: save %s: %w", v.url, err)
	}
	layer := v.ds.layers[0]
	switch v.format {
	case formatFlatGeobuf:
		err = encodeFlatGeobuf(f, layer)
	case formatGeoJSON:
		err = encodeGeoJSON(f, layer)
	}
	if closeErr := f.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("vector: save %s: %w", v.url, err)
	}
	v.ds.modified = false
	log.Debug("saved dataset", zap.String("url", v.url), zap.Int("features", len(layer.features)))
	return nil
}

// Close releases the handle, saving modified ReadWrite file datasets first.
// Closing twice is a no-op.
func (v *Vector) Close() error {
	if v.closed {
		return nil
	}
	var err error
	if v.mode == ReadWrite && v.format != formatMemory && v.ds.modified {
		err = v.Save()
	}
	v.closed = true
	return err
}

// Feature is one record of a layer.
type Feature struct {
	FID        int64
	Geometry   orb.Geometry
	Properties geojson.Properties
}

// Clone deep copies the feature.
func (f *Feature) Clone() *Feature {
	if f == nil {
		return nil
	}
	out := &Feature{FID: f.FID, Properties: f.Properties.Clone()}
	if f.Geometry != nil {
		out.Geometry = orb.Clone(f.Geometry)
	}
	return out
}
