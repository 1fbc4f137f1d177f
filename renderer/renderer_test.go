package renderer

import (
	"image"
	"image/color"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tingold/orb-render/canvas"
	"github.com/tingold/orb-render/vector"
	"github.com/tingold/orb-render/world"
)

const (
	merc      = "EPSG:3857"
	zoneStyle = `VECTORSTYLE[1,"zones",BRUSH["suri-brush",1,COLOR[0,255,0,255]],PEN["suri-pen",1,COLOR[0,0,255,255],WIDTH[2]],` +
		`LABEL["suri-label",1,COLOR[0,0,0,255],BACKCOLOR[0,0,0,0],SIZE[10],ANGLE[0],ANCHOR[4],EXPRESSION["{name}"]]]`
	roadStyle = `VECTORSTYLE[1,"roads",PEN["suri-pen",2,COLOR[255,0,0,255],WIDTH[1]]]`
)

// recorder is a canvas that records the drawing calls it receives.
type recorder struct {
	ops     []string
	polys   [][]canvas.Point
	pens    []canvas.Pen
	texts   []string
	flushes int
}

func (r *recorder) Size() (int, int)     { return 100, 100 }
func (r *recorder) SetPen(p canvas.Pen)   { r.pens = append(r.pens, p) }
func (r *recorder) SetBrush(canvas.Brush) {}
func (r *recorder) SetFont(canvas.Font)   {}

func (r *recorder) DrawPolygon([]canvas.Point) error {
	r.ops = append(r.ops, "polygon")
	return nil
}
func (r *recorder) DrawPolyPolygon(pts []canvas.Point, _ []int) error {
	r.ops = append(r.ops, "polypolygon")
	r.polys = append(r.polys, pts)
	return nil
}
func (r *recorder) DrawLines([]canvas.Point) error {
	r.ops = append(r.ops, "lines")
	return nil
}
func (r *recorder) DrawCircle(canvas.Point, float64) error {
	r.ops = append(r.ops, "circle")
	return nil
}
func (r *recorder) TextExtent(text string) (float64, float64) { return float64(len(text)) * 6, 10 }
func (r *recorder) DrawRotatedText(text string, _ canvas.Point, _ float64) error {
	r.ops = append(r.ops, "text")
	r.texts = append(r.texts, text)
	return nil
}
func (r *recorder) InvertRect(_, _, _, _ float64) error {
	r.ops = append(r.ops, "invert")
	return nil
}
func (r *recorder) Flush(image.Image) error {
	r.flushes++
	r.ops = append(r.ops, "flush")
	return nil
}

func (r *recorder) count(op string) int {
	n := 0
	for _, o := range r.ops {
		if o == op {
			n++
		}
	}
	return n
}

// fixture builds a memory dataset with a polygon layer (0) and a line layer
// (1) and an opener that counts opens.
func fixture(t *testing.T) (*Options, *int) {
	t.Helper()
	v := vector.NewMemory("map")
	ed := vector.NewEditor(v)

	_, err := ed.CreateLayer("zones", merc, vector.GeometryPolygon,
		vector.Field{Name: "name", Type: vector.FieldString}, vector.Field{Name: "pop", Type: vector.FieldInteger})
	require.NoError(t, err)
	square := func(x, y float64) orb.Polygon {
		return orb.Polygon{{{x, y}, {x + 10, y}, {x + 10, y + 10}, {x, y + 10}, {x, y}}}
	}
	_, err = ed.CreateFeature(square(10, 10), geojson.Properties{"name": "zone-a", "pop": 10})
	require.NoError(t, err)
	_, err = ed.CreateFeature(square(50, 50), geojson.Properties{"name": "zone-b", "pop": 500})
	require.NoError(t, err)
	_, err = ed.CreateFeature(square(10000, 10000), geojson.Properties{"name": "far", "pop": 1})
	require.NoError(t, err)

	_, err = ed.CreateLayer("roads", merc, vector.GeometryLine)
	require.NoError(t, err)
	_, err = ed.CreateFeature(orb.LineString{{0, 0}, {100, 100}}, nil)
	require.NoError(t, err)

	mem := vector.NewMemoryOpener(nil)
	mem.Add(v)
	opens := 0
	opts := DefaultOptions()
	opts.Opener = vector.OpenerFunc(func(url string, mode vector.AccessMode) (*vector.Vector, error) {
		opens++
		return mem.Open(url, mode)
	})
	return opts, &opens
}

func element(p Parameters) *Element {
	return &Element{Name: "map", URL: "mem://map", Renderization: GetXmlNode(p)}
}

func params(styles map[int]string) Parameters {
	p := NewParameters()
	for i, s := range styles {
		p.LayerStyles[i] = s
		p.LayerSRS[i] = merc
	}
	return p
}

func newWorld() *world.World {
	w := world.New(merc)
	w.SetWorld(world.NewSubset(0, 100, 100, 0))
	w.SetWindow(world.NewSubset(0, 100, 100, 0))
	w.SetViewport(100, 100)
	return w
}

func TestCreateRejectsMismatchedKeys(t *testing.T) {
	opts, opens := fixture(t)
	reg := NewDefaultRegistry(opts)

	p := params(map[int]string{0: zoneStyle})
	p.LayerSRS[1] = merc
	_, err := reg.Create(VectorRendererName, element(p), nil)
	assert.ErrorIs(t, err, ErrNoLayers)

	_, err = reg.Create(VectorRendererName, element(NewParameters()), nil)
	assert.ErrorIs(t, err, ErrNoLayers)
	assert.Equal(t, 0, *opens)

	_, err = reg.Create("RasterRenderer", element(p), nil)
	assert.ErrorIs(t, err, ErrUnknownRenderer)
	assert.Equal(t, []string{VectorRendererName}, reg.Names())
}

func TestCreateOpensDatasetOnce(t *testing.T) {
	opts, opens := fixture(t)
	r, err := NewVectorRenderer(element(params(map[int]string{0: zoneStyle})), opts)
	require.NoError(t, err)
	assert.Equal(t, 1, *opens)

	bad := element(params(map[int]string{0: zoneStyle}))
	bad.URL = "mem://missing"
	_, err = NewVectorRenderer(bad, opts)
	assert.ErrorIs(t, err, vector.ErrNotFound)

	assert.False(t, r.Update(bad))
	assert.Equal(t, "mem://map", r.URL())
}

func TestRenderLayerWithoutCanvasDoesNoIO(t *testing.T) {
	opts, opens := fixture(t)
	r, err := NewVectorRenderer(element(params(map[int]string{0: zoneStyle})), opts)
	require.NoError(t, err)
	*opens = 0

	assert.False(t, r.RenderLayer(0, newWorld(), nil, nil))
	assert.False(t, r.RenderLayer(0, nil, &recorder{}, nil))
	assert.False(t, r.Render(nil, &recorder{}, nil))
	assert.Equal(t, 0, *opens)
}

func TestRenderPolygonsWithLabels(t *testing.T) {
	opts, opens := fixture(t)
	r, err := NewVectorRenderer(element(params(map[int]string{0: zoneStyle})), opts)
	require.NoError(t, err)

	c := &recorder{}
	require.True(t, r.Render(newWorld(), c, nil))
	// the far polygon is outside the padded window
	assert.Equal(t, 2, c.count("polypolygon"))
	assert.Equal(t, []string{"zone-a", "zone-b"}, c.texts)
	assert.Equal(t, 1, c.flushes)
	assert.Equal(t, "flush", c.ops[len(c.ops)-1])
	assert.Equal(t, 2, *opens)

	require.True(t, r.Render(newWorld(), &recorder{}, nil))
	assert.Equal(t, 3, *opens)
}

func TestRenderClearsFilters(t *testing.T) {
	opts, _ := fixture(t)
	p := params(map[int]string{0: zoneStyle})
	p.AttributeFilter = "pop > 100"
	r, err := NewVectorRenderer(element(p), opts)
	require.NoError(t, err)

	c := &recorder{}
	require.True(t, r.Render(newWorld(), c, nil))
	assert.Equal(t, []string{"zone-b"}, c.texts)

	v, err := opts.Opener.Open("mem://map", vector.ReadOnly)
	require.NoError(t, err)
	l := v.Layer(0)
	_, filtered := l.SpatialFilter()
	assert.False(t, filtered)
	assert.Equal(t, "", l.AttributeFilter())
	assert.Equal(t, 3, l.FeatureCount())
}

func TestRenderBadFilterFailsButFlushes(t *testing.T) {
	opts, _ := fixture(t)
	p := params(map[int]string{0: zoneStyle})
	p.AttributeFilter = "height > 3"
	r, err := NewVectorRenderer(element(p), opts)
	require.NoError(t, err)

	c := &recorder{}
	assert.False(t, r.Render(newWorld(), c, nil))
	assert.Equal(t, 1, c.flushes)
	assert.Zero(t, c.count("polypolygon"))
}

func TestRenderActiveLayer(t *testing.T) {
	opts, _ := fixture(t)
	p := params(map[int]string{0: zoneStyle, 1: roadStyle})
	p.ActiveLayer = 1
	r, err := NewVectorRenderer(element(p), opts)
	require.NoError(t, err)

	c := &recorder{}
	require.True(t, r.Render(newWorld(), c, nil))
	assert.Equal(t, []string{"lines", "flush"}, c.ops)

	p.ActiveLayer = -1
	require.True(t, r.Update(element(p)))
	c = &recorder{}
	require.True(t, r.Render(newWorld(), c, nil))
	assert.Equal(t, 2, c.flushes)
	assert.Equal(t, 2, c.count("polypolygon"))
	assert.Equal(t, 1, c.count("lines"))
}

func TestRenderMissingLayerFails(t *testing.T) {
	opts, _ := fixture(t)
	r, err := NewVectorRenderer(element(params(map[int]string{0: zoneStyle, 7: roadStyle})), opts)
	require.NoError(t, err)

	// layer 0 still renders
	c := &recorder{}
	assert.False(t, r.Render(newWorld(), c, nil))
	assert.Equal(t, 2, c.count("polypolygon"))
	assert.False(t, r.RenderLayer(3, newWorld(), c, nil))
}

func TestUnknownPenFallsBackToSolid(t *testing.T) {
	opts, _ := fixture(t)
	s := `VECTORSTYLE[1,"x",PEN["other-pen",3,COLOR[1,2,3,255],WIDTH[4]],BRUSH["suri-brush",1,COLOR[0,255,0,255]]]`
	r, err := NewVectorRenderer(element(params(map[int]string{0: s})), opts)
	require.NoError(t, err)

	c := &recorder{}
	require.True(t, r.Render(newWorld(), c, nil))
	require.NotEmpty(t, c.pens)
	assert.Equal(t, canvas.Pen{Kind: canvas.PenSolid, Color: color.RGBA{A: 255}, Width: 1}, c.pens[0])
	assert.Equal(t, 2, c.count("polypolygon"))
}

func TestInvertedStyle(t *testing.T) {
	opts, _ := fixture(t)
	s := `VECTORSTYLE[1,"mask",BRUSH["suri-brush",1,COLOR[0,0,0,255]],INVERTED[1]]`
	r, err := NewVectorRenderer(element(params(map[int]string{0: s})), opts)
	require.NoError(t, err)

	c := &recorder{}
	require.True(t, r.Render(newWorld(), c, nil))
	assert.Equal(t, []string{"polypolygon", "polypolygon", "invert", "flush"}, c.ops)
}

func TestCollectionLayer(t *testing.T) {
	v := vector.NewMemory("mixed")
	ed := vector.NewEditor(v)
	_, err := ed.CreateLayer("mixed", merc, vector.GeometryCollection)
	require.NoError(t, err)
	_, err = ed.CreateFeature(orb.Point{5, 5}, nil)
	require.NoError(t, err)
	_, err = ed.CreateFeature(orb.MultiLineString{{{0, 0}, {1, 1}}, {{2, 2}, {3, 3}}}, nil)
	require.NoError(t, err)

	mem := vector.NewMemoryOpener(nil)
	mem.Add(v)
	opts := DefaultOptions()
	opts.Opener = mem

	p := params(map[int]string{0: `VECTORSTYLE[1,"any",PEN["suri-pen",1,COLOR[0,0,0,255],WIDTH[1]]]`})
	e := &Element{URL: "mem://mixed", Renderization: GetXmlNode(p)}
	r, err := NewVectorRenderer(e, opts)
	require.NoError(t, err)

	c := &recorder{}
	require.True(t, r.Render(newWorld(), c, nil))
	assert.Equal(t, 2, c.count("lines"))
	assert.Equal(t, 1, c.count("circle"))
}

func TestBoundingBox(t *testing.T) {
	opts, _ := fixture(t)
	r, err := NewVectorRenderer(element(params(map[int]string{0: zoneStyle})), opts)
	require.NoError(t, err)

	v, err := opts.Opener.Open("mem://map", vector.ReadOnly)
	require.NoError(t, err)
	v.Layer(0).SetSpatialFilterRect(0, 0, 1, 1)

	box, ok := r.BoundingBox(newWorld())
	require.True(t, ok)
	assert.Equal(t, world.NewSubset(10, 10010, 10010, 10), box)

	b, ok := v.Layer(0).SpatialFilter()
	require.True(t, ok)
	assert.Equal(t, orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}}, b)

	_, ok = r.BoundingBox(nil)
	assert.False(t, ok)
}

// geoWorld looks at the first 0.001 degrees north-east of the origin, about
// 111 m of the mercator layers.
func geoWorld() *world.World {
	w := world.New("EPSG:4326")
	w.SetWorld(world.NewSubset(-180, 90, 180, -90))
	w.SetWindow(world.NewSubset(0, 0.001, 0.001, 0))
	w.SetViewport(100, 100)
	return w
}

func TestRenderReprojectsLayer(t *testing.T) {
	opts, _ := fixture(t)
	r, err := NewVectorRenderer(element(params(map[int]string{0: zoneStyle})), opts)
	require.NoError(t, err)

	c := &recorder{}
	require.True(t, r.Render(geoWorld(), c, nil))
	// the far polygon lies 0.09 degrees away, outside the padded window
	assert.Equal(t, 2, c.count("polypolygon"))
	assert.Equal(t, []string{"zone-a", "zone-b"}, c.texts)

	// zone-a starts at (10 m, 10 m), about 8.98 pixels from the left and the bottom
	require.NotEmpty(t, c.polys)
	assert.InDelta(t, 8.983, c.polys[0][0].X, 0.01)
	assert.InDelta(t, 91.017, c.polys[0][0].Y, 0.01)

	v, err := opts.Opener.Open("mem://map", vector.ReadOnly)
	require.NoError(t, err)
	_, filtered := v.Layer(0).SpatialFilter()
	assert.False(t, filtered)
}

func TestBoundingBoxReprojected(t *testing.T) {
	opts, _ := fixture(t)
	r, err := NewVectorRenderer(element(params(map[int]string{0: zoneStyle})), opts)
	require.NoError(t, err)

	box, ok := r.BoundingBox(geoWorld())
	require.True(t, ok)
	const metre = 1 / 111319.49079327357
	assert.InDelta(t, 10*metre, box.UL.X, 1e-9)
	assert.InDelta(t, 10010*metre, box.LR.X, 1e-9)
	assert.InDelta(t, 10*metre, box.LR.Y, 1e-8)
	assert.InDelta(t, 10010*metre, box.UL.Y, 1e-6)
}

func TestMetrics(t *testing.T) {
	opts, _ := fixture(t)
	reg := prometheus.NewRegistry()
	opts.Metrics = reg
	r, err := NewVectorRenderer(element(params(map[int]string{0: zoneStyle, 9: roadStyle})), opts)
	require.NoError(t, err)
	// a second renderer shares the collectors
	_, err = NewVectorRenderer(element(params(map[int]string{0: zoneStyle})), opts)
	require.NoError(t, err)

	r.Render(newWorld(), &recorder{}, nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.metrics.layersRendered.WithLabelValues("0")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.metrics.layerFailures.WithLabelValues("9")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.metrics.geometriesDrawn.WithLabelValues("polygon")))
}

func TestXmlNodeRoundTrip(t *testing.T) {
	p := params(map[int]string{0: zoneStyle, 1: roadStyle})
	p.LayerSRS[1] = "EPSG:4326"
	p.ActiveLayer = 1
	p.AttributeFilter = "pop > 10 AND name <> 'x'"

	data, err := GetXmlNode(p).Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(data), `<layer index="1">EPSG:4326</layer>`)

	n, err := UnmarshalNode(data)
	require.NoError(t, err)
	got, err := GetParameters(n)
	require.NoError(t, err)
	assert.Equal(t, p, got)

	_, err = UnmarshalNode([]byte("<renderization><styles>"))
	assert.ErrorIs(t, err, ErrBadNode)
	_, err = GetParameters(nil)
	assert.ErrorIs(t, err, ErrNoNode)
}
