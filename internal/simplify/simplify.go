// Package simplify reduces vertex density of feature geometries while
// keeping rings closed, non-degenerate and free of self-intersections.
package simplify

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	orbsimplify "github.com/paulmach/orb/simplify"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geomap/internal/dataset"
	"github.com/sells-group/geomap/internal/geoerr"
)

const stage = "simplify"

// Simplifier applies Douglas-Peucker per line or ring.
type Simplifier struct {
	tolerance   float64
	minVertices int
	dp          *orbsimplify.DouglasPeuckerSimplifier
}

// New returns a Simplifier. Geometries with at most minVertices coordinates
// are left alone. A zero tolerance disables simplification.
func New(tolerance float64, minVertices int) *Simplifier {
	return &Simplifier{
		tolerance:   tolerance,
		minVertices: minVertices,
		dp:          orbsimplify.DouglasPeucker(tolerance),
	}
}

// Stats summarizes one Simplify call.
type Stats struct {
	VerticesIn  int `json:"vertices_in" yaml:"vertices_in"`
	VerticesOut int `json:"vertices_out" yaml:"vertices_out"`
	Simplified  int `json:"simplified" yaml:"simplified"`
	Retained    int `json:"retained" yaml:"retained"`
}

// Simplify returns a collection with the same features in the same order and
// simplified geometries. A feature whose simplified geometry would be invalid
// keeps its original geometry and an InvalidGeometry notice is recorded.
func (s *Simplifier) Simplify(fc *dataset.FeatureCollection, notices *geoerr.Notices) (*dataset.FeatureCollection, Stats) {
	log := zap.L().With(zap.String("component", "simplify"))

	var stats Stats
	features := make([]dataset.Feature, len(fc.Features))
	for i, f := range fc.Features {
		in := dataset.VertexCount(f.Geometry)
		stats.VerticesIn += in

		g, err := s.Geometry(f.Geometry)
		if err != nil {
			g = f.Geometry
			stats.Retained++
			log.Debug("keeping original geometry", zap.Int("feature", f.Index), zap.Error(err))
			if notices != nil {
				notices.Add(geoerr.Notice{
					Stage:   stage,
					Kind:    geoerr.InvalidGeometry,
					Feature: f.Index,
					Message: err.Error(),
				})
			}
		} else if dataset.VertexCount(g) < in {
			stats.Simplified++
		}

		stats.VerticesOut += dataset.VertexCount(g)
		features[i] = dataset.Feature{Index: f.Index, Geometry: g, Properties: f.Properties}
	}

	log.Info("simplified geometries",
		zap.Int("features", len(features)),
		zap.Int("vertices_in", stats.VerticesIn),
		zap.Int("vertices_out", stats.VerticesOut),
		zap.Int("retained", stats.Retained),
		zap.Float64("tolerance", s.tolerance),
	)
	return fc.WithFeatures(features), stats
}

// Geometry simplifies one geometry. The input is never modified. A non-nil
// error means the result would be degenerate and the caller should keep g.
func (s *Simplifier) Geometry(g orb.Geometry) (orb.Geometry, error) {
	if g == nil || s.tolerance <= 0 || dataset.VertexCount(g) <= s.minVertices {
		return g, nil
	}

	switch g := g.(type) {
	case orb.Point, orb.MultiPoint:
		return g, nil
	case orb.LineString:
		return s.lineString(g)
	case orb.MultiLineString:
		out := make(orb.MultiLineString, len(g))
		for i, ls := range g {
			sl, err := s.lineString(ls)
			if err != nil {
				return nil, eris.Wrapf(err, "part %d", i)
			}
			out[i] = sl
		}
		return out, nil
	case orb.Ring:
		p, err := s.polygon(orb.Polygon{g})
		if err != nil {
			return nil, err
		}
		return p[0], nil
	case orb.Polygon:
		return s.polygon(g)
	case orb.MultiPolygon:
		out := make(orb.MultiPolygon, len(g))
		for i, p := range g {
			sp, err := s.polygon(p)
			if err != nil {
				return nil, eris.Wrapf(err, "polygon %d", i)
			}
			out[i] = sp
		}
		if err := checkCrossings(out); err != nil {
			return nil, err
		}
		if err := checkPartNesting(g, out); err != nil {
			return nil, err
		}
		return out, nil
	case orb.Collection:
		out := make(orb.Collection, len(g))
		for i, c := range g {
			sc, err := s.Geometry(c)
			if err != nil {
				return nil, eris.Wrapf(err, "member %d", i)
			}
			out[i] = sc
		}
		return out, nil
	}
	return g, nil
}

func (s *Simplifier) lineString(ls orb.LineString) (orb.LineString, error) {
	if len(ls) <= 2 {
		return ls, nil
	}
	out := s.dp.LineString(ls.Clone())
	if distinct(out) < 2 {
		return nil, eris.New("line collapses to a point")
	}
	return out, nil
}

func (s *Simplifier) polygon(p orb.Polygon) (orb.Polygon, error) {
	out := make(orb.Polygon, len(p))
	for i, r := range p {
		sr := r
		if len(r) > 4 {
			sr = s.dp.Ring(r.Clone())
		}
		if err := checkRing(sr); err != nil {
			if i == 0 {
				return nil, eris.Wrap(err, "exterior ring")
			}
			return nil, eris.Wrapf(err, "hole %d", i)
		}
		out[i] = sr
	}
	if err := checkCrossings(orb.MultiPolygon{out}); err != nil {
		return nil, err
	}
	if err := checkNesting(p, out); err != nil {
		return nil, err
	}
	return out, nil
}

// checkNesting rejects a simplified polygon whose rings no longer nest the
// way they did: every hole vertex must stay inside the exterior ring, and no
// hole may start or stop containing another.
func checkNesting(orig, out orb.Polygon) error {
	for h := 1; h < len(out); h++ {
		for _, pt := range out[h] {
			if !planar.RingContains(out[0], pt) {
				return eris.Errorf("hole %d falls outside the exterior ring", h)
			}
		}
	}
	for i := 1; i < len(out); i++ {
		for j := 1; j < len(out); j++ {
			if i == j || len(out[j]) == 0 {
				continue
			}
			if planar.RingContains(orig[i], orig[j][0]) != planar.RingContains(out[i], out[j][0]) {
				return eris.Errorf("holes %d and %d change nesting", i, j)
			}
		}
	}
	return nil
}

// checkPartNesting rejects a simplified multipolygon in which one part comes
// to contain, or stops containing, the first vertex of another.
func checkPartNesting(orig, out orb.MultiPolygon) error {
	for i := range out {
		for j := range out {
			if i == j || len(out[j]) == 0 || len(out[j][0]) == 0 {
				continue
			}
			if planar.PolygonContains(orig[i], orig[j][0][0]) != planar.PolygonContains(out[i], out[j][0][0]) {
				return eris.Errorf("polygons %d and %d change nesting", i, j)
			}
		}
	}
	return nil
}

// checkRing rejects rings that are open, have fewer than four points or
// enclose no area.
func checkRing(r orb.Ring) error {
	switch {
	case len(r) < 4:
		return eris.Errorf("ring collapses to %d points", len(r))
	case !r.Closed():
		return eris.New("ring is not closed")
	case planar.Area(r) == 0:
		return eris.New("ring collapses to a line")
	}
	return nil
}

func distinct(ls orb.LineString) int {
	n := 0
	for i, p := range ls {
		if i == 0 || !p.Equal(ls[i-1]) {
			n++
		}
	}
	return n
}
