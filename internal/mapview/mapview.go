// Package mapview composes basemaps and styled category overlays into a map
// definition that renderers consume read-only.
package mapview

import (
	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/sells-group/geomap/internal/config"
	"github.com/sells-group/geomap/internal/crs"
	"github.com/sells-group/geomap/internal/dataset"
	"github.com/sells-group/geomap/internal/geoerr"
	"github.com/sells-group/geomap/internal/style"
)

const stage = "compose"

// Basemap is a selectable tile layer.
type Basemap struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Attribution string `json:"attribution"`
	MaxZoom     int    `json:"max_zoom"`
	Default     bool   `json:"default"`
}

// PathStyle is the fixed vector style of one overlay.
type PathStyle struct {
	FillColor   string  `json:"fillColor"`
	Color       string  `json:"color"`
	Weight      float64 `json:"weight"`
	FillOpacity float64 `json:"fillOpacity"`
}

// Tooltip is shown on hover.
type Tooltip struct {
	Field string `json:"field"`
	Alias string `json:"alias"`
}

// Popup is shown on click.
type Popup struct {
	Field string `json:"field"`
}

// Overlay holds the features of one category.
type Overlay struct {
	Name     string            `json:"name"`
	Value    string            `json:"value"`
	Style    PathStyle         `json:"style"`
	Tooltip  Tooltip           `json:"tooltip"`
	Popup    Popup             `json:"popup"`
	Visible  bool              `json:"visible"`
	Features []dataset.Feature `json:"-"`
}

// ComposedMap is the complete, read-only description of a rendered map.
type ComposedMap struct {
	Title       string
	LabelColumn string
	CRS         crs.CRS
	Center      orb.Point
	Zoom        int
	Bounds      orb.Bound
	Basemaps    []Basemap
	Overlays    []Overlay
	// CollapsedControl reports whether the layer switcher starts folded.
	CollapsedControl bool
}

// FeatureCount returns the number of features across all overlays.
func (m *ComposedMap) FeatureCount() int {
	n := 0
	for _, o := range m.Overlays {
		n += len(o.Features)
	}
	return n
}

// Composer builds ComposedMaps from map configuration.
type Composer struct {
	cfg config.MapConfig
}

// NewComposer returns a Composer.
func NewComposer(cfg config.MapConfig) *Composer {
	return &Composer{cfg: cfg}
}

// Compose builds the map for fc styled by st. The view is centered on the
// middle of the combined bounding box. Features without geometry are left
// out of the overlays.
func (c *Composer) Compose(fc *dataset.FeatureCollection, st *style.Style) (*ComposedMap, error) {
	bound, ok := fc.Bound()
	if !ok {
		return nil, geoerr.Errorf(geoerr.EmptyDataset, stage, "mapview: no feature has a geometry")
	}

	m := &ComposedMap{
		Title:       c.cfg.Title,
		LabelColumn: st.Column,
		CRS:         fc.CRS,
		Center:      bound.Center(),
		Zoom:        c.cfg.Zoom,
		Bounds:      bound,
	}

	for i, b := range c.cfg.Basemaps {
		m.Basemaps = append(m.Basemaps, Basemap{
			Name:        b.Name,
			URL:         b.URL,
			Attribution: b.Attribution,
			MaxZoom:     b.MaxZoom,
			Default:     i == 0,
		})
	}

	skipped := 0
	for i, idx := range st.Partition() {
		cat := st.Categories[i]
		o := Overlay{
			Name:  cat.Label,
			Value: cat.Value,
			Style: PathStyle{
				FillColor:   cat.Color,
				Color:       c.cfg.Stroke.Color,
				Weight:      c.cfg.Stroke.Weight,
				FillOpacity: c.cfg.Stroke.FillOpacity,
			},
			Tooltip: Tooltip{Field: st.Column, Alias: c.cfg.TooltipAlias},
			Popup:   Popup{Field: st.Column},
			Visible: true,
		}
		for _, pos := range idx {
			f := fc.Features[pos]
			if f.Geometry == nil {
				skipped++
				continue
			}
			o.Features = append(o.Features, f)
		}
		m.Overlays = append(m.Overlays, o)
	}

	zap.L().Info("composed map",
		zap.Int("overlays", len(m.Overlays)),
		zap.Int("features", m.FeatureCount()),
		zap.Int("null_geometries", skipped),
		zap.Float64("center_lat", m.Center.Lat()),
		zap.Float64("center_lon", m.Center.Lon()),
	)
	return m, nil
}
