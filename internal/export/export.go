// Package export serializes composed maps into downloadable documents.
package export

import (
	"path/filepath"
	"strings"

	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"

	"github.com/sells-group/geomap/internal/geoerr"
	"github.com/sells-group/geomap/internal/mapview"
)

const stage = "export"

// MIME types of the produced documents.
const (
	MIMEHTML    = "text/html; charset=utf-8"
	MIMEGeoJSON = "application/geo+json"
	MIMEXLSX    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Document is a named byte stream ready for download.
type Document struct {
	Name     string
	MIMEType string
	Body     []byte
}

// Exporter renders documents whose names derive from a base export name
// such as "geology_map.html".
type Exporter struct {
	name string
}

// New returns an Exporter. An empty name falls back to "map.html".
func New(name string) *Exporter {
	if strings.TrimSpace(name) == "" {
		name = "map.html"
	}
	return &Exporter{name: filepath.Base(name)}
}

func (e *Exporter) stem() string {
	return strings.TrimSuffix(e.name, filepath.Ext(e.name))
}

func failure(err error, action string) error {
	return geoerr.New(geoerr.ExportFailure, stage, eris.Wrap(err, "export: "+action))
}

// overlayCollection converts one overlay to GeoJSON. Feature ids are the
// source record positions.
func overlayCollection(o mapview.Overlay) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, f := range o.Features {
		gf := geojson.NewFeature(f.Geometry)
		gf.ID = f.Index
		for k, v := range f.Properties {
			gf.Properties[k] = v
		}
		fc.Append(gf)
	}
	return fc
}
