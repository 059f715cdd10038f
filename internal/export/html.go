package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"

	"github.com/cespare/xxhash/v2"
	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geomap/internal/mapview"
)

// Pinned Leaflet release with subresource integrity hashes.
const (
	leafletCSS          = "https://unpkg.com/leaflet@1.9.4/dist/leaflet.css"
	leafletCSSIntegrity = "sha256-p4NxAoJBhIIN+hmNHrzRCf9tD/miZyoHS5obTRR9BMY="
	leafletJS           = "https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"
	leafletJSIntegrity  = "sha256-20nQCchB9co0qIjJZRGuk2/Z9VM+kNiyxNV1lvTlZBo="
)

type basemapView struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Attribution string `json:"attribution"`
	MaxZoom     int    `json:"maxZoom"`
	Default     bool   `json:"default"`
}

type overlayView struct {
	Name    string                     `json:"name"`
	Style   mapview.PathStyle          `json:"style"`
	Tooltip mapview.Tooltip            `json:"tooltip"`
	Popup   mapview.Popup              `json:"popup"`
	Visible bool                       `json:"visible"`
	Data    *geojson.FeatureCollection `json:"data"`
}

// mapView is the JSON handed to the page script.
type mapView struct {
	Center    [2]float64    `json:"center"`
	Zoom      int           `json:"zoom"`
	Collapsed bool          `json:"collapsed"`
	Basemaps  []basemapView `json:"basemaps"`
	Overlays  []overlayView `json:"overlays"`
}

type page struct {
	Title        string
	ID           string
	CSS          string
	CSSIntegrity string
	JS           string
	JSIntegrity  string
	View         template.JS
}

var pageTmpl = template.Must(template.New("map").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}}</title>
<link rel="stylesheet" href="{{.CSS}}" integrity="{{.CSSIntegrity}}" crossorigin="">
<script src="{{.JS}}" integrity="{{.JSIntegrity}}" crossorigin=""></script>
<style>
html, body { height: 100%; margin: 0; }
.geomap { position: absolute; top: 0; bottom: 0; left: 0; right: 0; }
</style>
</head>
<body>
<div class="geomap" id="{{.ID}}"></div>
<script>
(function () {
  var view = {{.View}};
  var map = L.map({{.ID}}, {center: view.center, zoom: view.zoom});

  function esc(v) {
    if (v === null || v === undefined) { return ""; }
    var d = document.createElement("div");
    d.textContent = String(v);
    return d.innerHTML;
  }

  var bases = {};
  view.basemaps.forEach(function (b) {
    var layer = L.tileLayer(b.url, {attribution: b.attribution, maxZoom: b.maxZoom});
    if (b.default) { layer.addTo(map); }
    bases[b.name] = layer;
  });

  var overlays = {};
  view.overlays.forEach(function (o) {
    var layer = L.geoJSON(o.data, {
      style: function () { return o.style; },
      pointToLayer: function (f, latlng) { return L.circleMarker(latlng, o.style); },
      onEachFeature: function (f, l) {
        var tip = esc(f.properties[o.tooltip.field]);
        l.bindTooltip("<b>" + esc(o.tooltip.alias) + "</b> " + tip, {sticky: true});
        l.bindPopup(esc(f.properties[o.popup.field]));
      }
    });
    if (o.visible) { layer.addTo(map); }
    overlays[o.name] = layer;
  });

  L.control.layers(bases, overlays, {collapsed: view.collapsed}).addTo(map);
})();
</script>
</body>
</html>
`))

// HTML renders m as a standalone Leaflet page. Equal maps render to equal
// bytes: the element id is a hash of the embedded data.
func (e *Exporter) HTML(m *mapview.ComposedMap) (*Document, error) {
	if m == nil {
		return nil, failure(eris.New("nil map"), "render html")
	}

	view := mapView{
		Center:    [2]float64{m.Center.Lat(), m.Center.Lon()},
		Zoom:      m.Zoom,
		Collapsed: m.CollapsedControl,
		Basemaps:  make([]basemapView, 0, len(m.Basemaps)),
		Overlays:  make([]overlayView, 0, len(m.Overlays)),
	}
	for _, b := range m.Basemaps {
		view.Basemaps = append(view.Basemaps, basemapView(b))
	}
	for _, o := range m.Overlays {
		view.Overlays = append(view.Overlays, overlayView{
			Name:    o.Name,
			Style:   o.Style,
			Tooltip: o.Tooltip,
			Popup:   o.Popup,
			Visible: o.Visible,
			Data:    overlayCollection(o),
		})
	}

	data, err := json.Marshal(view)
	if err != nil {
		return nil, failure(err, "encode map data")
	}

	p := page{
		Title:        m.Title,
		ID:           fmt.Sprintf("map_%016x", xxhash.Sum64(data)),
		CSS:          leafletCSS,
		CSSIntegrity: leafletCSSIntegrity,
		JS:           leafletJS,
		JSIntegrity:  leafletJSIntegrity,
		// json.Marshal escapes <, > and & so the data cannot close the script.
		View: template.JS(data), //nolint:gosec
	}

	var buf bytes.Buffer
	if err := pageTmpl.Execute(&buf, p); err != nil {
		return nil, failure(err, "render html")
	}

	zap.L().Debug("export: rendered html", zap.String("name", e.name), zap.Int("bytes", buf.Len()))
	return &Document{Name: e.name, MIMEType: MIMEHTML, Body: buf.Bytes()}, nil
}
