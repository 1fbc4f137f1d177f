package vector

import (
	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
)

// minExtent pads degenerate bounds, rtreego rejects zero-length sides.
const minExtent = 1e-9

// indexEntry adapts a feature to rtreego.Spatial.
type indexEntry struct {
	feature *Feature
	rect    rtreego.Rect
}

func (e indexEntry) Bounds() rtreego.Rect { return e.rect }

// spatialIndex is an R-tree over feature bounds.
type spatialIndex struct {
	tree *rtreego.Rtree
}

func newSpatialIndex(features []*Feature) *spatialIndex {
	objs := make([]rtreego.Spatial, 0, len(features))
	for _, f := range features {
		if f.Geometry == nil {
			continue
		}
		r, ok := boundRect(f.Geometry.Bound())
		if !ok {
			continue
		}
		objs = append(objs, indexEntry{feature: f, rect: r})
	}
	return &spatialIndex{tree: rtreego.NewTree(2, 25, 50, objs...)}
}

// search returns the features whose bounds intersect b.
func (s *spatialIndex) search(b orb.Bound) []*Feature {
	r, ok := boundRect(b)
	if !ok {
		return nil
	}
	hits := s.tree.SearchIntersect(r)
	out := make([]*Feature, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.(indexEntry).feature)
	}
	return out
}

func boundRect(b orb.Bound) (rtreego.Rect, bool) {
	w := b.Max[0] - b.Min[0]
	h := b.Max[1] - b.Min[1]
	if w < minExtent {
		w = minExtent
	}
	if h < minExtent {
		h = minExtent
	}
	r, err := rtreego.NewRect(rtreego.Point{b.Min[0], b.Min[1]}, []float64{w, h})
	if err != nil {
		return rtreego.Rect{}, false
	}
	return r, true
}
