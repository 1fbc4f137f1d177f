package renderer

import (
	"fmt"
	"image"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/tingold/orb-render/canvas"
	"github.com/tingold/orb-render/log"
	"github.com/tingold/orb-render/srs"
	"github.com/tingold/orb-render/style"
	"github.com/tingold/orb-render/vector"
	"github.com/tingold/orb-render/world"
)

// VectorRendererName is the registry name of the vector renderer.
const VectorRendererName = "VectorRenderer"

// VectorRenderer paints the layers of a vector dataset. The dataset is opened
// and closed on every render so edits made through other handles are always
// seen.
type VectorRenderer struct {
	url     string
	params  Parameters
	opts    *Options
	metrics *metrics
}

// NewVectorRenderer configures a renderer from the renderization node of e.
// The dataset is opened once to check it can be read.
func NewVectorRenderer(e *Element, opts *Options) (*VectorRenderer, error) {
	opts = opts.withDefaults()
	r := &VectorRenderer{opts: opts}
	if err := r.configure(e); err != nil {
		return nil, err
	}
	r.metrics = newMetrics(opts.Metrics)
	return r, nil
}

func (r *VectorRenderer) configure(e *Element) error {
	if e == nil {
		return ErrNoElement
	}
	p, err := GetParameters(e.Renderization)
	if err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}
	v, err := r.opts.Opener.Open(e.URL, vector.ReadOnly)
	if err != nil {
		return fmt.Errorf("renderer: open %s: %w", e.URL, err)
	}
	if err := v.Close(); err != nil {
		log.Debug("close after validation failed", zap.String("url", e.URL), zap.Error(err))
	}
	r.url = e.URL
	r.params = p
	return nil
}

// Update reconfigures the renderer from e. The previous configuration is
// kept when e is invalid.
func (r *VectorRenderer) Update(e *Element) bool {
	if err := r.configure(e); err != nil {
		log.Debug("renderer update rejected", zap.Error(err))
		return false
	}
	return true
}

// Parameters returns a copy of the current configuration.
func (r *VectorRenderer) Parameters() Parameters { return r.params.clone() }

func (r *VectorRenderer) URL() string { return r.url }

// Render draws the active layer when it is configured, every configured
// layer otherwise. A failing layer does not stop the others.
func (r *VectorRenderer) Render(w *world.World, c canvas.Canvas, mask image.Image) bool {
	if w == nil || c == nil {
		log.Debug("render without world or canvas")
		return false
	}
	if _, ok := r.params.LayerStyles[r.params.ActiveLayer]; ok {
		return r.RenderLayer(r.params.ActiveLayer, w, c, mask)
	}
	ok := true
	for _, i := range r.params.Layers() {
		if !r.RenderLayer(i, w, c, mask) {
			ok = false
		}
	}
	return ok
}

// RenderLayer draws one configured layer.
func (r *VectorRenderer) RenderLayer(index int, w *world.World, c canvas.Canvas, mask image.Image) bool {
	if w == nil || c == nil {
		log.Debug("render layer without world or canvas", zap.Int("layer", index))
		return false
	}
	start := time.Now()
	ok := r.renderLayer(index, w, c, mask)
	r.metrics.layerDone(strconv.Itoa(index), ok, float64(time.Since(start).Microseconds())/1000)
	return ok
}

func (r *VectorRenderer) renderLayer(index int, w *world.World, c canvas.Canvas, mask image.Image) bool {
	styleStr, ok := r.params.LayerStyles[index]
	if !ok {
		log.Debug("layer not configured", zap.Int("layer", index))
		return false
	}
	v, err := r.opts.Opener.Open(r.url, vector.ReadOnly)
	if err != nil {
		log.Warn("vector open failed", zap.String("url", r.url), zap.Error(err))
		return false
	}
	defer func() {
		if err := v.Close(); err != nil {
			log.Debug("vector close failed", zap.String("url", r.url), zap.Error(err))
		}
	}()

	l := v.Layer(index)
	if l == nil {
		log.Warn("layer not found", zap.String("url", r.url), zap.Int("layer", index))
		return false
	}
	s, err := style.Parse(styleStr)
	if err != nil {
		log.Debug("invalid layer style", zap.Int("layer", index), zap.String("style", styleStr), zap.Error(err))
		return false
	}
	layerSRS := r.params.LayerSRS[index]
	if layerSRS == "" {
		layerSRS = l.SpatialReference()
	}
	return r.draw(l, layerSRS, s, w, c, mask)
}

// draw renders the features of l visible in w.
func (r *VectorRenderer) draw(l *vector.Layer, layerSRS string, s *style.VectorStyle, w *world.World, c canvas.Canvas, mask image.Image) bool {
	defer func() {
		if err := c.Flush(mask); err != nil {
			log.Warn("canvas flush failed", zap.Error(err))
		}
	}()

	t, err := r.transformation(w.SpatialReference(), layerSRS)
	if err != nil {
		log.Debug("no transformation to layer", zap.String("layer", l.Name()),
			zap.String("world", w.SpatialReference()), zap.String("srs", layerSRS), zap.Error(err))
		return false
	}

	label := newLabeler(l, s)

	defer l.ClearSpatialFilter()
	if r.params.AttributeFilter != "" {
		if err := l.SetAttributeFilter(r.params.AttributeFilter); err != nil {
			log.Debug("invalid attribute filter", zap.String("layer", l.Name()),
				zap.String("filter", r.params.AttributeFilter), zap.Error(err))
			return false
		}
		defer func() { _ = l.SetAttributeFilter("") }()
	}
	if b, ok := r.spatialFilter(w, t); ok {
		l.SetSpatialFilterRect(b.Min[0], b.Min[1], b.Max[0], b.Max[1])
	}

	gtype := l.GeometryType()
	p := painter{world: w, canvas: c}
	ok := true
	batch := make([]*vector.Feature, 0, r.opts.CacheSize)
	flush := func() {
		if len(batch) > 0 && !r.drawBatch(batch, gtype, t, s, label, p) {
			ok = false
		}
		batch = batch[:0]
	}

	l.ResetReading()
	for f := l.NextFeature(); f != nil; f = l.NextFeature() {
		batch = append(batch, f)
		if len(batch) == cap(batch) {
			flush()
		}
	}
	flush()

	if s.Inverted {
		width, height := c.Size()
		if err := c.InvertRect(0, 0, float64(width), float64(height)); err != nil {
			log.Debug("invert failed", zap.Error(err))
		}
	}
	return ok
}

// transformation maps world coordinates to layer coordinates; geometries are
// brought into the world with its inverse.
func (r *VectorRenderer) transformation(worldSRS, layerSRS string) (*srs.Transformation, error) {
	if worldSRS == "" || layerSRS == "" || worldSRS == layerSRS {
		return srs.NewTransformation(srs.WGS84, srs.WGS84)
	}
	return r.opts.Factory.Create(worldSRS, layerSRS)
}

// spatialFilter returns the layer-space rectangle to read: the visible part of
// the world padded on every side by the larger window dimension.
func (r *VectorRenderer) spatialFilter(w *world.World, t *srs.Transformation) (orb.Bound, bool) {
	window := world.NewExtent(w.Window())
	if !usable(window) {
		return orb.Bound{}, false
	}
	visible := window
	if full := world.NewExtent(w.World()); usable(full) {
		var ok bool
		if visible, ok = world.Intersect(full, window); !ok {
			visible = window
		}
	}
	padded := visible.Expand(math.Max(window.Width(), window.Height()))
	b, err := t.ForwardBound(padded.Bound())
	if err != nil {
		log.Debug("spatial filter not transformable", zap.Error(err))
		return orb.Bound{}, false
	}
	return b, true
}

// usable reports whether e is set: valid and not a single point.
func usable(e world.Extent) bool {
	return e.IsValid() && (e.Width() > 0 || e.Height() > 0)
}

// drawBatch draws a batch of features: polygons, then lines, then points,
// then labels. A collection layer succeeds when any of the three passes does.
func (r *VectorRenderer) drawBatch(batch []*vector.Feature, gtype vector.GeometryType, t *srs.Transformation,
	s *style.VectorStyle, label *labeler, p painter) bool {
	var polys []orb.Polygon
	var lines []orb.LineString
	var points []orb.Point
	type labelAt struct {
		text string
		at   orb.Point
	}
	var labels []labelAt

	for _, f := range batch {
		g := f.Geometry
		if !t.IsIdentity() {
			var err error
			if g, err = t.InverseGeometry(g); err != nil {
				log.Debug("feature not transformable", zap.Int64("fid", f.FID), zap.Error(err))
				continue
			}
		}
		for _, part := range explode(g) {
			switch v := part.(type) {
			case orb.Polygon:
				polys = append(polys, v)
			case orb.LineString:
				lines = append(lines, v)
			case orb.Point:
				points = append(points, v)
			}
		}
		if text := label.text(f); text != "" {
			if at, ok := labelPoint(g); ok {
				labels = append(labels, labelAt{text, at})
			}
		}
	}

	var ok bool
	switch gtype {
	case vector.GeometryPolygon:
		ok = r.polygons(polys, s, p)
	case vector.GeometryLine:
		ok = r.lines(lines, s, p)
	case vector.GeometryPoint:
		ok = r.points(points, s, p)
	case vector.GeometryCollection:
		okPolys := r.polygons(polys, s, p)
		okLines := r.lines(lines, s, p)
		okPoints := r.points(points, s, p)
		ok = okPolys || okLines || okPoints
	default:
		log.Debug("layer geometry type not renderable", zap.Stringer("type", gtype))
		return false
	}

	for _, lb := range labels {
		p.label(lb.text, lb.at, s.Label)
	}
	return ok
}

// polygons paints polygons with the style brush and pen. It fails only when
// there was something to draw and nothing could be drawn.
func (r *VectorRenderer) polygons(polys []orb.Polygon, s *style.VectorStyle, p painter) bool {
	if len(polys) == 0 {
		return true
	}
	st := style.Merge(s, style.DefaultPolygonStyle())
	p.canvas.SetPen(penOf(st.Pen))
	p.canvas.SetBrush(brushOf(st.Brush))
	drawn := 0
	for _, poly := range polys {
		if p.polygon(poly) {
			drawn++
		}
	}
	r.metrics.drawn("polygon", drawn)
	return drawn > 0
}

func (r *VectorRenderer) lines(lines []orb.LineString, s *style.VectorStyle, p painter) bool {
	if len(lines) == 0 {
		return true
	}
	st := style.Merge(s, style.DefaultLineStyle())
	p.canvas.SetPen(penOf(st.Pen))
	p.canvas.SetBrush(canvas.Brush{Kind: canvas.BrushNone})
	drawn := 0
	for _, ls := range lines {
		if p.line(ls) {
			drawn++
		}
	}
	r.metrics.drawn("line", drawn)
	return drawn > 0
}

func (r *VectorRenderer) points(points []orb.Point, s *style.VectorStyle, p painter) bool {
	if len(points) == 0 {
		return true
	}
	st := style.Merge(s, style.DefaultPointStyle())
	drawn := 0
	for _, pt := range points {
		if p.mark(pt, st.Symbol) {
			drawn++
		}
	}
	r.metrics.drawn("point", drawn)
	return drawn > 0
}

// BoundingBox returns the extent of the active layer, or of the first
// configured one, in the SRS of w. Spatial filters already set on the layer
// are left as they were.
func (r *VectorRenderer) BoundingBox(w *world.World) (world.Subset, bool) {
	if w == nil {
		return world.Subset{}, false
	}
	index := r.params.ActiveLayer
	if _, ok := r.params.LayerStyles[index]; !ok {
		layers := r.params.Layers()
		if len(layers) == 0 {
			return world.Subset{}, false
		}
		index = layers[0]
	}

	v, err := r.opts.Opener.Open(r.url, vector.ReadOnly)
	if err != nil {
		log.Warn("vector open failed", zap.String("url", r.url), zap.Error(err))
		return world.Subset{}, false
	}
	defer func() { _ = v.Close() }()
	l := v.Layer(index)
	if l == nil {
		return world.Subset{}, false
	}

	if saved, had := l.SpatialFilter(); had {
		l.ClearSpatialFilter()
		defer l.SetSpatialFilterRect(saved.Min[0], saved.Min[1], saved.Max[0], saved.Max[1])
	}
	b, ok := l.Extent()
	if !ok {
		return world.Subset{}, false
	}

	layerSRS := r.params.LayerSRS[index]
	if layerSRS == "" {
		layerSRS = l.SpatialReference()
	}
	t, err := r.transformation(w.SpatialReference(), layerSRS)
	if err != nil {
		log.Debug("no transformation to layer", zap.Error(err))
		return world.Subset{}, false
	}
	if b, err = t.InverseBound(b); err != nil {
		log.Debug("layer extent not transformable", zap.Error(err))
		return world.Subset{}, false
	}
	return world.ExtentFromBound(b).Subset(), true
}

// labeler resolves the label text of a feature: a literal expression, or the
// value of a field when the expression is "{field}".
type labeler struct {
	literal string
	field   string
	enabled bool
}

func newLabeler(l *vector.Layer, s *style.VectorStyle) *labeler {
	if !labelled(s) {
		return &labeler{}
	}
	expr := strings.TrimSpace(s.Label.Expression)
	if strings.HasPrefix(expr, "{") && strings.HasSuffix(expr, "}") {
		field := strings.TrimSpace(expr[1 : len(expr)-1])
		if l.FieldIndex(field) < 0 {
			log.Debug("label field not found", zap.String("layer", l.Name()), zap.String("field", field))
			return &labeler{}
		}
		return &labeler{field: field, enabled: true}
	}
	return &labeler{literal: expr, enabled: true}
}

func (lb *labeler) text(f *vector.Feature) string {
	if !lb.enabled {
		return ""
	}
	if lb.field == "" {
		return lb.literal
	}
	v, ok := f.Properties[lb.field]
	if !ok || v == nil {
		return ""
	}
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}
