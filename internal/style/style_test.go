package style

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geomap/internal/config"
	"github.com/sells-group/geomap/internal/dataset"
	"github.com/sells-group/geomap/internal/geoerr"
)

func labelled(values ...any) *dataset.FeatureCollection {
	fc := &dataset.FeatureCollection{
		Fields:      []dataset.Field{{Name: "GLG", Type: dataset.Character}},
		LabelColumn: "GLG",
	}
	for i, v := range values {
		fc.Features = append(fc.Features, dataset.Feature{Index: i, Properties: map[string]any{"GLG": v}})
	}
	return fc
}

func newStyler(t *testing.T) *Styler {
	t.Helper()
	s, err := New(config.Tab20, nil)
	require.NoError(t, err)
	return s
}

func TestStyle_FirstOccurrenceOrder(t *testing.T) {
	st, err := newStyler(t).Style(labelled("A", "B", "A", "C"))
	require.NoError(t, err)

	require.Len(t, st.Categories, 3)
	assert.Equal(t, "GLG", st.Column)
	assert.Equal(t, []Category{
		{Value: "A", Label: "A", Color: config.Tab20[0], Count: 2},
		{Value: "B", Label: "B", Color: config.Tab20[1], Count: 1},
		{Value: "C", Label: "C", Color: config.Tab20[2], Count: 1},
	}, st.Categories)
	assert.Equal(t, [][]int{{0, 2}, {1}, {3}}, st.Partition())
}

func TestStyle_Deterministic(t *testing.T) {
	fc := labelled("Qal", "Tv", "Kgr", "Qal", nil, "Tv")
	first, err := newStyler(t).Style(fc)
	require.NoError(t, err)
	second, err := newStyler(t).Style(fc)
	require.NoError(t, err)

	assert.Equal(t, first.Colors(), second.Colors())
	assert.Equal(t, first.Categories, second.Categories)
}

func TestStyle_PaletteCycles(t *testing.T) {
	values := make([]any, 25)
	for i := range values {
		values[i] = fmt.Sprintf("U%02d", i)
	}

	st, err := newStyler(t).Style(labelled(values...))
	require.NoError(t, err)
	require.Len(t, st.Categories, 25)
	for i, c := range st.Categories {
		assert.Equal(t, config.Tab20[i%20], c.Color, "category %d", i)
	}
	assert.Equal(t, st.Categories[0].Color, st.Categories[20].Color)
}

func TestStyle_NilAndTypedValues(t *testing.T) {
	st, err := newStyler(t).Style(labelled(nil, int64(3), 2.5, true, ""))
	require.NoError(t, err)

	require.Len(t, st.Categories, 4, "nil and blank share a category")
	assert.Equal(t, "", st.Categories[0].Value)
	assert.Equal(t, NoneLabel, st.Categories[0].Label)
	assert.Equal(t, 2, st.Categories[0].Count)
	assert.Equal(t, "3", st.Categories[1].Value)
	assert.Equal(t, "2.5", st.Categories[2].Value)
	assert.Equal(t, "true", st.Categories[3].Value)

	c, ok := st.Lookup(int64(3))
	require.True(t, ok)
	assert.Equal(t, config.Tab20[1], c.Color)
	_, ok = st.Lookup("missing")
	assert.False(t, ok)
}

func TestStyle_Overrides(t *testing.T) {
	s, err := New([]string{"#111111", "#222222"}, map[string]string{"B": "#abcdef"})
	require.NoError(t, err)

	st, err := s.Style(labelled("A", "B", "C"))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"A": "#111111", "B": "#abcdef", "C": "#222222"}, st.Colors())
}

func TestStyle_NoLabelColumn(t *testing.T) {
	_, err := newStyler(t).Style(&dataset.FeatureCollection{Features: []dataset.Feature{{}}})
	require.Error(t, err)
	assert.True(t, geoerr.Is(err, geoerr.NoLabelColumn))

	fc := labelled("A")
	fc.LabelColumn = "UNIT"
	_, err = newStyler(t).Style(fc)
	assert.True(t, geoerr.Is(err, geoerr.NoLabelColumn))
}

func TestNew_EmptyPalette(t *testing.T) {
	_, err := New(nil, nil)
	assert.Error(t, err)
}

func TestLoadPreset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preset.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
palette: ["#8dd3c7", "#ffffb3"]
colors:
  Qal: "#fff2ae"
stroke:
  weight: 1.5
`), 0o644))

	p, err := LoadPreset(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Qal": "#fff2ae"}, p.Colors)

	cfg := config.Default().Map
	p.Apply(&cfg)
	assert.Equal(t, []string{"#8dd3c7", "#ffffb3"}, cfg.Palette)
	assert.InDelta(t, 1.5, cfg.Stroke.Weight, 1e-9)
	assert.Equal(t, "#000000", cfg.Stroke.Color, "unset stroke fields are kept")
	assert.InDelta(t, 0.6, cfg.Stroke.FillOpacity, 1e-9)
}

func TestLoadPreset_Errors(t *testing.T) {
	_, err := LoadPreset(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("stroke:\n  fill_opacity: 3\n"), 0o644))
	_, err = LoadPreset(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")

	broken := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("palette: [unclosed"), 0o644))
	_, err = LoadPreset(broken)
	assert.Error(t, err)
}
