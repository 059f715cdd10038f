package mapview

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geomap/internal/config"
	"github.com/sells-group/geomap/internal/crs"
	"github.com/sells-group/geomap/internal/dataset"
	"github.com/sells-group/geomap/internal/geoerr"
	"github.com/sells-group/geomap/internal/style"
)

func square(x, y float64) orb.Polygon {
	return orb.Polygon{{{x, y}, {x, y + 1}, {x + 1, y + 1}, {x + 1, y}, {x, y}}}
}

func fixture(t *testing.T, labels []string, geoms []orb.Geometry) (*dataset.FeatureCollection, *style.Style) {
	t.Helper()
	fc := &dataset.FeatureCollection{
		CRS:         crs.WGS84,
		Fields:      []dataset.Field{{Name: "GLG", Type: dataset.Character}},
		LabelColumn: "GLG",
	}
	for i, l := range labels {
		fc.Features = append(fc.Features, dataset.Feature{Index: i, Geometry: geoms[i], Properties: map[string]any{"GLG": l}})
	}
	s, err := style.New(config.Tab20, nil)
	require.NoError(t, err)
	st, err := s.Style(fc)
	require.NoError(t, err)
	return fc, st
}

func TestCompose_OneOverlayPerCategory(t *testing.T) {
	fc, st := fixture(t, []string{"A", "B", "A", "C"},
		[]orb.Geometry{square(0, 0), square(2, 0), square(4, 0), square(6, 2)})

	m, err := NewComposer(config.Default().Map).Compose(fc, st)
	require.NoError(t, err)

	require.Len(t, m.Overlays, 3)
	assert.Equal(t, "A", m.Overlays[0].Name)
	assert.Len(t, m.Overlays[0].Features, 2)
	assert.Len(t, m.Overlays[1].Features, 1)
	assert.Len(t, m.Overlays[2].Features, 1)
	assert.Equal(t, 4, m.FeatureCount())

	a := m.Overlays[0]
	assert.Equal(t, PathStyle{FillColor: config.Tab20[0], Color: "#000000", Weight: 0.5, FillOpacity: 0.6}, a.Style)
	assert.Equal(t, Tooltip{Field: "GLG", Alias: "Unit:"}, a.Tooltip)
	assert.Equal(t, Popup{Field: "GLG"}, a.Popup)
	assert.True(t, a.Visible)
	assert.False(t, m.CollapsedControl)
}

func TestCompose_CenterAndView(t *testing.T) {
	fc, st := fixture(t, []string{"A", "B"}, []orb.Geometry{square(-10, 40), orb.Point{9, 49}})

	m, err := NewComposer(config.Default().Map).Compose(fc, st)
	require.NoError(t, err)

	assert.Equal(t, orb.Point{-0.5, 44.5}, m.Center)
	assert.Equal(t, orb.Bound{Min: orb.Point{-10, 40}, Max: orb.Point{9, 49}}, m.Bounds)
	assert.Equal(t, 13, m.Zoom)
	assert.Equal(t, "Geologic Map", m.Title)

	require.Len(t, m.Basemaps, 3)
	assert.Equal(t, "Street Map", m.Basemaps[0].Name)
	assert.True(t, m.Basemaps[0].Default)
	assert.False(t, m.Basemaps[1].Default)
	assert.Equal(t, "Satellite", m.Basemaps[2].Name)
}

func TestCompose_SkipsNullGeometries(t *testing.T) {
	fc, st := fixture(t, []string{"A", "A", "B"}, []orb.Geometry{square(0, 0), nil, nil})

	m, err := NewComposer(config.Default().Map).Compose(fc, st)
	require.NoError(t, err)
	require.Len(t, m.Overlays, 2)
	assert.Len(t, m.Overlays[0].Features, 1)
	assert.Empty(t, m.Overlays[1].Features)
}

func TestCompose_NoGeometry(t *testing.T) {
	fc, st := fixture(t, []string{"A"}, []orb.Geometry{nil})

	_, err := NewComposer(config.Default().Map).Compose(fc, st)
	require.Error(t, err)
	assert.True(t, geoerr.Is(err, geoerr.EmptyDataset))
}
