package vector

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cities builds a memory dataset with one point layer of five features.
func cities(t *testing.T) (*Vector, *Editor) {
	t.Helper()
	v := NewMemory("cities")
	ed := NewEditor(v)
	_, err := ed.CreateLayer("cities", "EPSG:4326", GeometryPoint,
		Field{"name", FieldString}, Field{"pop", FieldInteger})
	require.NoError(t, err)

	rows := []struct {
		x, y float64
		name string
		pop  int
	}{
		{0, 0, "Alpha", 100},
		{1, 1, "Beta", 2500},
		{2, 2, "Gamma", 40},
		{10, 10, "Delta", 9000},
		{11, 11, "alphaville", 7},
	}
	for _, r := range rows {
		_, err := ed.CreateFeature(orb.Point{r.x, r.y}, geojson.Properties{"name": r.name, "pop": r.pop})
		require.NoError(t, err)
	}
	return v, ed
}

func names(l *Layer) []string {
	var out []string
	l.ResetReading()
	for f := l.NextFeature(); f != nil; f = l.NextFeature() {
		out = append(out, f.Properties.MustString("name", ""))
	}
	return out
}

func TestOpenUnknownFormat(t *testing.T) {
	_, err := Open("data.shp", ReadOnly)
	assert.ErrorIs(t, err, ErrUnknownFormat)

	_, err = Open(filepath.Join(t.TempDir(), "missing.fgb"), ReadOnly)
	assert.Error(t, err)

	_, err = Open("mem://x", ReadOnly)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryDataset(t *testing.T) {
	v, _ := cities(t)
	assert.Equal(t, "mem://cities", v.URL())
	assert.Equal(t, 1, v.LayerCount())
	assert.Equal(t, "EPSG:4326", v.LayerSR(0))
	assert.Equal(t, GeometryPoint, v.LayerType(0))
	assert.Equal(t, GeometryUndefined, v.LayerType(3))
	assert.Equal(t, "", v.LayerSR(3))
	assert.True(t, v.Modified())
	assert.Same(t, v.Layer(0), v.LayerByName("cities"))
	assert.Nil(t, v.LayerByName("rivers"))

	require.NoError(t, v.Save())
	assert.False(t, v.Modified())

	require.NoError(t, v.Close())
	assert.False(t, v.IsOpen())
	assert.Nil(t, v.Layer(0))
	assert.ErrorIs(t, v.Save(), ErrClosed)
	assert.NoError(t, v.Close())
}

func TestNextFeatureReturnsCopies(t *testing.T) {
	v, _ := cities(t)
	l := v.Layer(0)
	f := l.NextFeature()
	require.NotNil(t, f)
	f.Properties["name"] = "changed"
	f.Geometry = orb.Point{99, 99}

	orig, ok := l.Feature(f.FID)
	require.True(t, ok)
	assert.Equal(t, "Alpha", orig.Properties["name"])
	assert.Equal(t, orb.Point{0, 0}, orig.Geometry)
}

func TestAttributeFilter(t *testing.T) {
	v, _ := cities(t)
	l := v.Layer(0)

	tests := []struct {
		where string
		want  []string
	}{
		{"pop > 1000", []string{"Beta", "Delta"}},
		{"pop >= 100 AND pop <= 2500", []string{"Alpha", "Beta"}},
		{"name LIKE 'alpha%'", []string{"Alpha", "alphaville"}},
		{"name NOT LIKE '%a'", []string{"alphaville"}},
		{"name = 'Gamma' OR pop < 10", []string{"Gamma", "alphaville"}},
		{"NOT (pop > 50)", []string{"Gamma", "alphaville"}},
		{`"name" IN ('Beta', 'Delta')`, []string{"Beta", "Delta"}},
		{"name <> 'Alpha' AND pop != 7 AND pop <> 40", []string{"Beta", "Delta"}},
		{"name IS NULL", nil},
		{"pop IS NOT NULL AND pop = 9000", []string{"Delta"}},
		{"pop BETWEEN 40 AND 100", []string{"Alpha", "Gamma"}},
		{"pop NOT BETWEEN 40 AND 2500", []string{"Delta", "alphaville"}},
		{"name NOT IN ('Alpha', 'Beta', 'Gamma')", []string{"Delta", "alphaville"}},
		{"pop > -1 AND pop < 8", []string{"alphaville"}},
	}
	for _, tt := range tests {
		t.Run(tt.where, func(t *testing.T) {
			require.NoError(t, l.SetAttributeFilter(tt.where))
			assert.Equal(t, tt.where, l.AttributeFilter())
			assert.Equal(t, tt.want, names(l))
			assert.Equal(t, len(tt.want), l.FeatureCount())
		})
	}

	require.NoError(t, l.SetAttributeFilter(""))
	assert.Equal(t, 5, l.FeatureCount())
}

func TestAttributeFilterErrors(t *testing.T) {
	v, _ := cities(t)
	l := v.Layer(0)

	assert.ErrorIs(t, l.SetAttributeFilter("height > 3"), ErrNoField)

	var fe *FilterError
	for _, bad := range []string{
		"pop >", "name = 'open", "(pop > 1", "pop > 1 pop", "name NOT 'x'", "pop = = 3",
		"pop > 1 LIMIT 1", "pop > 1 ORDER BY name", "pop > 1; DROP TABLE t",
		"name REGEXP 'a'", "t.pop > 1", `"pop" * 2 > 0`,
	} {
		err := l.SetAttributeFilter(bad)
		assert.ErrorAs(t, err, &fe, bad)
	}
	assert.Equal(t, "", l.AttributeFilter())
}

func TestNullComparisons(t *testing.T) {
	v, ed := cities(t)
	l := v.Layer(0)
	require.NoError(t, ed.SetValue(0, "pop", nil))

	require.NoError(t, l.SetAttributeFilter("pop IS NULL"))
	assert.Equal(t, []string{"Alpha"}, names(l))

	// NULL never satisfies a comparison, negated or not
	require.NoError(t, l.SetAttributeFilter("NOT (pop > 1000)"))
	assert.Equal(t, []string{"Gamma", "alphaville"}, names(l))
}

func TestSpatialFilter(t *testing.T) {
	v, _ := cities(t)
	l := v.Layer(0)

	l.SetSpatialFilterRect(2.5, 2.5, -0.5, -0.5)
	assert.Equal(t, []string{"Alpha", "Beta", "Gamma"}, names(l))
	b, ok := l.SpatialFilter()
	require.True(t, ok)
	assert.Equal(t, orb.Bound{Min: orb.Point{-0.5, -0.5}, Max: orb.Point{2.5, 2.5}}, b)

	require.NoError(t, l.SetAttributeFilter("pop > 50"))
	assert.Equal(t, []string{"Alpha", "Beta"}, names(l))

	l.SetSpatialFilter(orb.LineString{{9, 9}, {12, 12}})
	assert.Equal(t, []string{"Delta"}, names(l))

	l.ClearSpatialFilter()
	_, ok = l.SpatialFilter()
	assert.False(t, ok)
	assert.Equal(t, 3, l.FeatureCount())
}

func TestSpatialIndexFollowsEdits(t *testing.T) {
	v, ed := cities(t)
	l := v.Layer(0)
	l.SetSpatialFilterRect(9, 9, 12, 12)
	assert.Equal(t, 2, l.FeatureCount())

	require.NoError(t, ed.UpdateFeature(3, orb.Point{50, 50}))
	assert.Equal(t, []string{"alphaville"}, names(l))
}

func TestExtent(t *testing.T) {
	v, _ := cities(t)
	b, ok := v.Layer(0).Extent()
	require.True(t, ok)
	assert.Equal(t, orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{11, 11}}, b)

	empty := newLayer("e", "", GeometryUndefined, nil)
	_, ok = empty.Extent()
	assert.False(t, ok)
}

func TestInferredGeometryType(t *testing.T) {
	l := newLayer("mixed", "", GeometryUndefined, nil)
	assert.Equal(t, GeometryUndefined, l.GeometryType())
	l.add(&Feature{FID: -1, Geometry: orb.LineString{{0, 0}, {1, 1}}})
	l.add(&Feature{FID: -1, Geometry: orb.MultiLineString{{{0, 0}, {1, 1}}}})
	assert.Equal(t, GeometryLine, l.GeometryType())
	l.add(&Feature{FID: -1, Geometry: orb.Point{0, 0}})
	assert.Equal(t, GeometryCollection, l.GeometryType())
}

func TestMemoryOpener(t *testing.T) {
	v, _ := cities(t)
	o := NewMemoryOpener(nil)
	o.Add(v)

	h, err := o.Open("mem://cities", ReadOnly)
	require.NoError(t, err)
	assert.Equal(t, 5, h.Layer(0).FeatureCount())
	assert.ErrorIs(t, NewEditor(h).CreateField("x", FieldReal), ErrReadOnly)

	_, err = o.Open("mem://other", ReadOnly)
	assert.ErrorIs(t, err, ErrNotFound)
	created, err := o.Open("mem://other", ReadWrite)
	require.NoError(t, err)
	assert.Equal(t, 0, created.LayerCount())

	_, err = o.Open("file.fgb", ReadOnly)
	assert.ErrorIs(t, err, ErrNotFound)

	o.Remove("mem://cities")
	_, err = o.Open("mem://cities", ReadOnly)
	assert.ErrorIs(t, err, ErrNotFound)

	opens := 0
	counting := OpenerFunc(func(url string, mode AccessMode) (*Vector, error) {
		opens++
		return FileOpener{}.Open(url, mode)
	})
	_, _ = NewMemoryOpener(counting).Open("x.geojson", ReadOnly)
	assert.Equal(t, 1, opens)
}

func TestGeoJSONRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "roads.geojson")
	doc := `{
  "type": "FeatureCollection",
  "crs": {"type": "name", "properties": {"name": "urn:ogc:def:crs:EPSG::3857"}},
  "features": [
    {"type": "Feature", "id": 4, "geometry": {"type": "LineString", "coordinates": [[0,0],[1,1]]},
     "properties": {"name": "main", "lanes": 2, "speed": 50.5, "paved": true}},
    {"type": "Feature", "geometry": {"type": "LineString", "coordinates": [[1,1],[2,0]]},
     "properties": {"name": "side", "lanes": 1, "speed": 30, "paved": null}}
  ]
}`
	require.NoError(t, os.WriteFile(src, []byte(doc), 0o644))

	v, err := Open(src, ReadWrite)
	require.NoError(t, err)
	l := v.Layer(0)
	assert.Equal(t, "roads", l.Name())
	assert.Equal(t, "EPSG:3857", l.SpatialReference())
	assert.Equal(t, GeometryLine, l.GeometryType())
	assert.Equal(t, []Field{
		{"lanes", FieldInteger}, {"name", FieldString}, {"paved", FieldBool}, {"speed", FieldReal},
	}, l.Fields())

	main, ok := l.Feature(4)
	require.True(t, ok)
	assert.Equal(t, int64(2), main.Properties["lanes"])
	side, ok := l.Feature(5)
	require.True(t, ok)
	assert.Equal(t, 30.0, side.Properties["speed"])

	ed := NewEditor(v)
	require.NoError(t, ed.OpenLayer(0))
	require.NoError(t, ed.SetValue(5, "name", "back"))
	require.NoError(t, v.Close())

	again, err := Open(src, ReadOnly)
	require.NoError(t, err)
	back, ok := again.Layer(0).Feature(5)
	require.True(t, ok)
	assert.Equal(t, "back", back.Properties["name"])
	assert.Equal(t, "EPSG:3857", again.Layer(0).SpatialReference())
}

func TestSaveRejectsSecondLayer(t *testing.T) {
	v, err := Open(filepath.Join(t.TempDir(), "two.geojson"), ReadWrite)
	require.NoError(t, err)
	ed := NewEditor(v)
	_, err = ed.CreateLayer("a", "EPSG:4326", GeometryPoint)
	require.NoError(t, err)
	_, err = ed.CreateLayer("b", "EPSG:4326", GeometryPoint)
	require.NoError(t, err)
	assert.ErrorIs(t, v.Save(), ErrSingleLayer)
}
