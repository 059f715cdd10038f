package simplify

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geomap/internal/dataset"
	"github.com/sells-group/geomap/internal/geoerr"
)

func circle(cx, cy, r float64, n int) orb.Ring {
	ring := make(orb.Ring, 0, n+1)
	for i := 0; i < n; i++ {
		a := 2 * math.Pi * float64(i) / float64(n)
		ring = append(ring, orb.Point{cx + r*math.Cos(a), cy + r*math.Sin(a)})
	}
	return append(ring, ring[0])
}

// sliver is a long thin ring that collapses under a coarse tolerance.
func sliver() orb.Ring {
	return orb.Ring{{0, 0}, {5, 0.00001}, {10, 0}, {10, 0.00002}, {5, 0.00003}, {0, 0.00002}, {0, 0}}
}

func TestGeometry_ReducesDensePolygon(t *testing.T) {
	s := New(0.01, 4)
	in := orb.Polygon{circle(0, 0, 1, 200)}

	out, err := s.Geometry(in)
	require.NoError(t, err)

	poly := out.(orb.Polygon)
	require.Len(t, poly, 1)
	assert.Less(t, len(poly[0]), len(in[0]))
	assert.GreaterOrEqual(t, len(poly[0]), 4)
	assert.True(t, poly[0].Closed())
	assert.Len(t, in[0], 201, "input is not modified")
}

func TestGeometry_KeepsHoles(t *testing.T) {
	s := New(0.01, 4)
	in := orb.Polygon{circle(0, 0, 10, 300), circle(0, 0, 2, 100)}

	out, err := s.Geometry(in)
	require.NoError(t, err)
	assert.Len(t, out.(orb.Polygon), 2)
}

func TestGeometry_SmallAndPointGeometriesUnchanged(t *testing.T) {
	s := New(1, 4)

	tri := orb.Polygon{{{0, 0}, {1, 0}, {0, 1}, {0, 0}}}
	out, err := s.Geometry(tri)
	require.NoError(t, err)
	assert.Equal(t, tri, out)

	mp := orb.MultiPoint{{0, 0}, {0.1, 0}, {0.2, 0}, {0.3, 0}, {0.4, 0}, {0.5, 0}}
	out, err = s.Geometry(mp)
	require.NoError(t, err)
	assert.Equal(t, mp, out)

	out, err = s.Geometry(nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestGeometry_ZeroToleranceIsNoop(t *testing.T) {
	in := orb.Polygon{circle(0, 0, 1, 50)}
	out, err := New(0, 4).Geometry(in)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestGeometry_CollinearLine(t *testing.T) {
	ls := orb.LineString{{0, 0}, {1, 0}, {2, 0}, {3, 0}, {4, 0}, {5, 0}}
	out, err := New(0.001, 4).Geometry(ls)
	require.NoError(t, err)
	assert.Equal(t, orb.LineString{{0, 0}, {5, 0}}, out)
}

func TestGeometry_DegenerateRing(t *testing.T) {
	_, err := New(0.001, 4).Geometry(orb.Polygon{sliver()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exterior ring")
}

// peaked is a shell whose top vertex lifts the edge over a small hole near
// the top; dropping that vertex leaves the hole outside.
func peaked() orb.Polygon {
	return orb.Polygon{
		{{0, 9}, {0, 10}, {5, 10.5}, {10, 10}, {10, 0}, {0, 0}, {0, 9}},
		{{4.9, 10.1}, {5.1, 10.1}, {5.0, 10.3}, {4.9, 10.1}},
	}
}

func TestGeometry_HoleEscapingShell(t *testing.T) {
	_, err := New(1, 4).Geometry(peaked())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hole 1 falls outside the exterior ring")
}

func TestGeometry_PartSwallowedBySimplifiedNeighbour(t *testing.T) {
	// The notch in the first part holds the second; closing the notch
	// would put the second part inside the first.
	notched := orb.Polygon{{{0, 0}, {10, 0}, {10, 10}, {5.5, 10}, {5, 9}, {4.5, 10}, {0, 10}, {0, 0}}}
	inNotch := orb.Polygon{{{4.95, 9.7}, {5.05, 9.7}, {5, 9.9}, {4.95, 9.7}}}
	_, err := New(2, 4).Geometry(orb.MultiPolygon{notched, inNotch})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "change nesting")
}

func TestSimplify_KeepsOriginalWhenHoleEscapes(t *testing.T) {
	fc := &dataset.FeatureCollection{Features: []dataset.Feature{
		{Index: 0, Geometry: peaked(), Properties: map[string]any{"GLG": "Qal"}},
	}}

	var notices geoerr.Notices
	out, stats := New(1, 4).Simplify(fc, &notices)

	assert.Equal(t, peaked(), out.Features[0].Geometry)
	require.Equal(t, 1, notices.Len())
	assert.Equal(t, geoerr.InvalidGeometry, notices.List()[0].Kind)
	assert.Equal(t, 1, stats.Retained)
}

func TestSimplify_FallsBackPerFeature(t *testing.T) {
	fc := &dataset.FeatureCollection{Features: []dataset.Feature{
		{Index: 0, Geometry: orb.Polygon{circle(0, 0, 1, 400)}, Properties: map[string]any{"GLG": "A"}},
		{Index: 1, Geometry: orb.Polygon{sliver()}, Properties: map[string]any{"GLG": "B"}},
		{Index: 2, Geometry: nil, Properties: map[string]any{"GLG": "C"}},
		{Index: 3, Geometry: orb.Point{1, 1}, Properties: map[string]any{"GLG": "D"}},
	}}

	var notices geoerr.Notices
	out, stats := New(0.001, 4).Simplify(fc, &notices)

	require.Equal(t, fc.Len(), out.Len())
	for i, f := range out.Features {
		assert.Equal(t, fc.Features[i].Index, f.Index)
		assert.Equal(t, fc.Features[i].Properties, f.Properties)
		assert.LessOrEqual(t, dataset.VertexCount(f.Geometry), dataset.VertexCount(fc.Features[i].Geometry))
	}

	assert.Equal(t, orb.Polygon{sliver()}, out.Features[1].Geometry, "degenerate result keeps the original")
	assert.Nil(t, out.Features[2].Geometry)

	require.Equal(t, 1, notices.Len())
	n := notices.List()[0]
	assert.Equal(t, geoerr.InvalidGeometry, n.Kind)
	assert.Equal(t, 1, n.Feature)
	assert.Equal(t, "simplify", n.Stage)

	assert.Equal(t, 1, stats.Retained)
	assert.Equal(t, 1, stats.Simplified)
	assert.LessOrEqual(t, stats.VerticesOut, stats.VerticesIn)
}

func TestCheckCrossings(t *testing.T) {
	tests := []struct {
		name    string
		mp      orb.MultiPolygon
		wantErr string
	}{
		{
			name: "square",
			mp:   orb.MultiPolygon{{{{0, 0}, {0, 1}, {1, 1}, {1, 0}, {0, 0}}}},
		},
		{
			name:    "bow tie",
			mp:      orb.MultiPolygon{{{{0, 0}, {2, 2}, {2, 0}, {0, 2}, {0, 0}}}},
			wantErr: "intersects itself",
		},
		{
			name: "hole inside shell",
			mp:   orb.MultiPolygon{{circle(0, 0, 10, 40), circle(0, 0, 2, 20)}},
		},
		{
			name:    "hole crossing shell",
			mp:      orb.MultiPolygon{{circle(0, 0, 10, 40), circle(9, 0, 3, 20)}},
			wantErr: "cross",
		},
		{
			name: "polygons sharing a corner",
			mp: orb.MultiPolygon{
				{{{0, 0}, {0, 1}, {1, 1}, {1, 0}, {0, 0}}},
				{{{1, 1}, {1, 2}, {2, 2}, {2, 1}, {1, 1}}},
			},
		},
		{
			name: "repeated vertex",
			mp:   orb.MultiPolygon{{{{0, 0}, {0, 1}, {0, 1}, {1, 1}, {1, 0}, {0, 0}}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkCrossings(tt.mp)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestIntersects(t *testing.T) {
	assert.True(t, intersects(orb.Point{0, 0}, orb.Point{2, 2}, orb.Point{0, 2}, orb.Point{2, 0}))
	assert.True(t, intersects(orb.Point{0, 0}, orb.Point{2, 0}, orb.Point{1, 0}, orb.Point{1, 5}), "touching")
	assert.False(t, intersects(orb.Point{0, 0}, orb.Point{1, 0}, orb.Point{2, 0}, orb.Point{3, 0}))
	assert.False(t, crosses(orb.Point{0, 0}, orb.Point{2, 0}, orb.Point{1, 0}, orb.Point{1, 5}))
}
