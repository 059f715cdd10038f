// Package fixture builds small shapefile bundles and zip archives. The sample
// command writes one to disk; tests use the same builders.
package fixture

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"sort"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
)

// WGS84PRJ is the ESRI WKT for geographic WGS 84.
const WGS84PRJ = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`

// Row is one record: a shape and its attribute values in field order. A nil
// value leaves the attribute blank.
type Row struct {
	Shape shp.Shape
	Attrs []any
}

// Layer describes a shapefile bundle.
type Layer struct {
	Name   string
	Type   shp.ShapeType
	Fields []shp.Field
	Rows   []Row
	// PRJ is written as name.prj when non-empty.
	PRJ string
}

// Square returns a closed, clockwise square ring with its corner at (x, y).
func Square(x, y, size float64) []shp.Point {
	return []shp.Point{
		{X: x, Y: y},
		{X: x, Y: y + size},
		{X: x + size, Y: y + size},
		{X: x + size, Y: y},
		{X: x, Y: y},
	}
}

// Hole returns a counter-clockwise square ring, the winding shapefiles use
// for interior rings.
func Hole(x, y, size float64) []shp.Point {
	ring := Square(x, y, size)
	for i, j := 0, len(ring)-1; i < j; i, j = i+1, j-1 {
		ring[i], ring[j] = ring[j], ring[i]
	}
	return ring
}

// Polygon builds a polygon shape from rings.
func Polygon(rings ...[]shp.Point) *shp.Polygon {
	p := shp.Polygon(*shp.NewPolyLine(rings))
	return &p
}

// Write creates the bundle in dir and returns the .shp path.
func Write(dir string, l Layer) (string, error) {
	path := filepath.Join(dir, l.Name+".shp")
	w, err := shp.Create(path, l.Type)
	if err != nil {
		return "", eris.Wrapf(err, "fixture: create %s", path)
	}
	if err := w.SetFields(l.Fields); err != nil {
		w.Close()
		return "", eris.Wrap(err, "fixture: set fields")
	}
	for _, r := range l.Rows {
		idx := int(w.Write(r.Shape))
		for i, v := range r.Attrs {
			if v == nil {
				continue
			}
			if err := w.WriteAttribute(idx, i, v); err != nil {
				w.Close()
				return "", eris.Wrapf(err, "fixture: row %d field %d", idx, i)
			}
		}
	}
	w.Close()

	// go-shp's writer names the attribute table "<name>dbf", without the dot.
	stem := filepath.Join(dir, l.Name)
	if err := os.Rename(stem+"dbf", stem+".dbf"); err != nil {
		return "", eris.Wrap(err, "fixture: rename dbf")
	}

	if l.PRJ != "" {
		if err := os.WriteFile(filepath.Join(dir, l.Name+".prj"), []byte(l.PRJ), 0o644); err != nil {
			return "", eris.Wrap(err, "fixture: write prj")
		}
	}
	return path, nil
}

// Zip packs files into an archive. Entries are written in name order so the
// same input always yields the same bytes.
func Zip(files map[string][]byte) ([]byte, error) {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		fw, err := zw.Create(name)
		if err != nil {
			return nil, eris.Wrapf(err, "fixture: zip entry %s", name)
		}
		if _, err := fw.Write(files[name]); err != nil {
			return nil, eris.Wrapf(err, "fixture: zip write %s", name)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, eris.Wrap(err, "fixture: zip close")
	}
	return buf.Bytes(), nil
}

// Bundle writes the layer to a scratch directory and zips every file it
// produced, optionally under a folder prefix inside the archive.
func Bundle(l Layer, prefix string) ([]byte, error) {
	dir, err := os.MkdirTemp("", "geomap-fixture-*")
	if err != nil {
		return nil, eris.Wrap(err, "fixture: scratch dir")
	}
	defer os.RemoveAll(dir)

	if _, err := Write(dir, l); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrap(err, "fixture: list scratch dir")
	}
	files := make(map[string][]byte, len(entries))
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, eris.Wrapf(err, "fixture: read %s", e.Name())
		}
		files[filepath.ToSlash(filepath.Join(prefix, e.Name()))] = data
	}
	return Zip(files)
}

// Geology is a four-unit sample map in WGS 84 with two polygons sharing the
// unit "Qal".
func Geology() Layer {
	return Layer{
		Name: "geology",
		Type: shp.POLYGON,
		Fields: []shp.Field{
			shp.StringField("GLG", 10),
			shp.StringField("NAME", 40),
			shp.NumberField("AGE_MA", 6),
		},
		Rows: []Row{
			{Polygon(Square(-1.0, 44.0, 0.5)), []any{"Qal", "Alluvium", 0}},
			{Polygon(Square(-0.5, 44.0, 0.5)), []any{"Tv", "Volcanic rocks", 23}},
			{Polygon(Square(-1.0, 44.5, 0.5), Hole(-0.9, 44.6, 0.1)), []any{"Qal", "Alluvium", 1}},
			{Polygon(Square(-0.5, 44.5, 0.5)), []any{"Kgr", "Granite", 90}},
		},
		PRJ: WGS84PRJ,
	}
}
