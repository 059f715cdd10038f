package dataset

import (
	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	owkb "github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/planar"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	gwkb "github.com/twpayne/go-geom/encoding/wkb"
	"go.uber.org/zap"
)

// shapeToGeometry converts a go-shp record to an orb geometry. Shapes are
// assembled as go-geom values, which validate layout and ring structure as
// they are pushed, then handed to orb through WKB. Null shapes return nil.
func shapeToGeometry(shape shp.Shape) (orb.Geometry, error) {
	g, err := shapeToGeom(shape)
	if err != nil || g == nil {
		return nil, err
	}

	data, err := gwkb.Marshal(g, gwkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: encode WKB")
	}

	og, err := owkb.Unmarshal(data)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: decode WKB")
	}
	return unwrapSingle(og), nil
}

// shapeToGeom maps every go-shp shape type onto a go-geom XY geometry,
// discarding Z and M values.
func shapeToGeom(shape shp.Shape) (geom.T, error) {
	switch s := shape.(type) {
	case nil, *shp.Null:
		return nil, nil
	case *shp.Point:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y}), nil
	case *shp.PointZ:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y}), nil
	case *shp.PointM:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y}), nil
	case *shp.MultiPoint:
		return multiPoint(s.Points), nil
	case *shp.MultiPointZ:
		return multiPoint(s.Points), nil
	case *shp.MultiPointM:
		return multiPoint(s.Points), nil
	case *shp.PolyLine:
		return multiLineString(s.Parts, s.Points), nil
	case *shp.PolyLineZ:
		return multiLineString(s.Parts, s.Points), nil
	case *shp.PolyLineM:
		return multiLineString(s.Parts, s.Points), nil
	case *shp.Polygon:
		return multiPolygon(s.Parts, s.Points), nil
	case *shp.PolygonZ:
		return multiPolygon(s.Parts, s.Points), nil
	case *shp.PolygonM:
		return multiPolygon(s.Parts, s.Points), nil
	}
	return nil, eris.Errorf("dataset: unsupported shape type %T", shape)
}

func multiPoint(points []shp.Point) geom.T {
	if len(points) == 0 {
		return nil
	}
	flat := make([]float64, 0, len(points)*2)
	for _, p := range points {
		flat = append(flat, p.X, p.Y)
	}
	return geom.NewMultiPointFlat(geom.XY, flat)
}

// splitParts slices points by the part start offsets. Offsets out of range
// are treated as malformed and end the split.
func splitParts(parts []int32, points []shp.Point) [][]shp.Point {
	out := make([][]shp.Point, 0, len(parts))
	for i, start := range parts {
		end := int32(len(points))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		if start < 0 || start > end || end > int32(len(points)) {
			zap.L().Debug("dataset: malformed part offsets", zap.Int("part", i))
			break
		}
		out = append(out, points[start:end])
	}
	return out
}

func multiLineString(parts []int32, points []shp.Point) geom.T {
	mls := geom.NewMultiLineString(geom.XY)

	for i, part := range splitParts(parts, points) {
		if len(part) < 2 {
			zap.L().Debug("dataset: skipping degenerate linestring part", zap.Int("part", i))
			continue
		}
		ls := geom.NewLineStringFlat(geom.XY, flatCoords(part))
		if err := mls.Push(ls); err != nil {
			zap.L().Debug("dataset: skipping malformed linestring part", zap.Int("part", i), zap.Error(err))
			continue
		}
	}

	if mls.NumLineStrings() == 0 {
		return nil
	}
	return mls
}

// multiPolygon groups shapefile rings into polygons. Clockwise rings start a
// new polygon. A counter-clockwise ring is a hole of the latest polygon whose
// shell contains it, and becomes a polygon of its own when no shell does.
func multiPolygon(parts []int32, points []shp.Point) geom.T {
	var (
		polys  []*geom.Polygon
		shells []orb.Ring
	)

	for i, part := range splitParts(parts, points) {
		ring := closeRing(part)
		if len(ring) < 4 {
			zap.L().Debug("dataset: skipping degenerate polygon ring", zap.Int("part", i))
			continue
		}

		lr := geom.NewLinearRingFlat(geom.XY, flatCoords(ring))
		owner := -1
		if signedArea(ring) > 0 {
			owner = containingShell(shells, ring)
		}
		if owner < 0 {
			polys = append(polys, geom.NewPolygon(geom.XY))
			shells = append(shells, toRing(ring))
			owner = len(polys) - 1
		}
		if err := polys[owner].Push(lr); err != nil {
			zap.L().Debug("dataset: skipping malformed polygon ring", zap.Int("part", i), zap.Error(err))
			continue
		}
	}

	mp := geom.NewMultiPolygon(geom.XY)
	for i, p := range polys {
		if p.NumLinearRings() == 0 {
			continue
		}
		if err := mp.Push(p); err != nil {
			zap.L().Debug("dataset: skipping malformed polygon", zap.Int("polygon", i), zap.Error(err))
		}
	}

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// containingShell returns the index of the most recent shell holding every
// vertex of ring, or -1.
func containingShell(shells []orb.Ring, ring []shp.Point) int {
	for i := len(shells) - 1; i >= 0; i-- {
		inside := true
		for _, p := range ring {
			if !planar.RingContains(shells[i], orb.Point{p.X, p.Y}) {
				inside = false
				break
			}
		}
		if inside {
			return i
		}
	}
	return -1
}

func toRing(points []shp.Point) orb.Ring {
	r := make(orb.Ring, len(points))
	for i, p := range points {
		r[i] = orb.Point{p.X, p.Y}
	}
	return r
}

func closeRing(ring []shp.Point) []shp.Point {
	if len(ring) == 0 || ring[0] == ring[len(ring)-1] {
		return ring
	}
	closed := make([]shp.Point, len(ring), len(ring)+1)
	copy(closed, ring)
	return append(closed, ring[0])
}

// signedArea is positive for counter-clockwise rings.
func signedArea(ring []shp.Point) float64 {
	var sum float64
	for i := 0; i+1 < len(ring); i++ {
		sum += ring[i].X*ring[i+1].Y - ring[i+1].X*ring[i].Y
	}
	return sum / 2
}

// flatCoords converts shapefile points to flat coordinate pairs for go-geom.
func flatCoords(points []shp.Point) []float64 {
	flat := make([]float64, 0, len(points)*2)
	for _, p := range points {
		flat = append(flat, p.X, p.Y)
	}
	return flat
}

// unwrapSingle returns the sole member of a one-part multi geometry.
func unwrapSingle(g orb.Geometry) orb.Geometry {
	switch g := g.(type) {
	case orb.MultiPolygon:
		if len(g) == 1 {
			return g[0]
		}
	case orb.MultiLineString:
		if len(g) == 1 {
			return g[0]
		}
	}
	return g
}
