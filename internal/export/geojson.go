package export

import (
	"encoding/json"

	"github.com/paulmach/orb/geojson"

	"github.com/sells-group/geomap/internal/mapview"
)

// GeoJSON writes every overlay feature into one FeatureCollection. Each
// feature carries its attributes plus simplestyle keys (fill, stroke,
// stroke-width, fill-opacity) for viewers that honor them. A source attribute
// with the same name wins over the style key.
func (e *Exporter) GeoJSON(m *mapview.ComposedMap) (*Document, error) {
	out := geojson.NewFeatureCollection()
	for _, o := range m.Overlays {
		for _, f := range overlayCollection(o).Features {
			setStyle(f.Properties, "fill", o.Style.FillColor)
			setStyle(f.Properties, "fill-opacity", o.Style.FillOpacity)
			setStyle(f.Properties, "stroke", o.Style.Color)
			setStyle(f.Properties, "stroke-width", o.Style.Weight)
			out.Append(f)
		}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, failure(err, "encode geojson")
	}
	return &Document{Name: e.stem() + ".geojson", MIMEType: MIMEGeoJSON, Body: data}, nil
}

func setStyle(props geojson.Properties, key string, v any) {
	if _, ok := props[key]; !ok {
		props[key] = v
	}
}
