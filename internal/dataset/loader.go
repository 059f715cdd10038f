package dataset

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geomap/internal/crs"
	"github.com/sells-group/geomap/internal/geoerr"
)

const stage = "load"

// Options configures Load.
type Options struct {
	// PreferredLabel is used as the label column when the schema contains it;
	// otherwise the first field is used.
	PreferredLabel string
}

// bundle lists the files of one shapefile dataset.
type bundle struct {
	shp, shx, dbf string
	prj, cpg      string
}

// Load reads the shapefile at shpPath with its sidecars into a
// FeatureCollection in its native CRS. The .shx and .dbf sidecars are
// required; .prj and .cpg are optional. A dataset without records is returned
// together with an EmptyDataset error.
func Load(shpPath string, opts Options) (*FeatureCollection, error) {
	log := zap.L().With(
		zap.String("component", "dataset.loader"),
		zap.String("file", filepath.Base(shpPath)),
	)

	b, err := resolveBundle(shpPath)
	if err != nil {
		return nil, err
	}

	expected, err := indexRecordCount(b.shx)
	if err != nil {
		return nil, geoerr.New(geoerr.UnreadableDataset, stage, err)
	}
	if err := checkDBFHeader(b.dbf); err != nil {
		return nil, geoerr.New(geoerr.UnreadableDataset, stage, err)
	}

	fc := &FeatureCollection{Source: filepath.Base(shpPath)}
	if b.prj != "" {
		data, err := os.ReadFile(b.prj)
		if err != nil {
			return nil, geoerr.New(geoerr.UnreadableDataset, stage, eris.Wrap(err, "dataset: read .prj"))
		}
		fc.CRS = crs.FromWKT(string(data))
	}

	dec := newTextDecoder(b.cpg)
	if err := readRecords(b.shp, fc, dec); err != nil {
		return nil, geoerr.New(geoerr.UnreadableDataset, stage, err)
	}

	if len(fc.Features) != expected {
		return nil, geoerr.Errorf(geoerr.UnreadableDataset, stage,
			"dataset: read %d records but index lists %d", len(fc.Features), expected)
	}

	fc.LabelColumn = chooseLabel(fc.Fields, opts.PreferredLabel)

	log.Info("loaded shapefile",
		zap.Int("features", len(fc.Features)),
		zap.Int("fields", len(fc.Fields)),
		zap.String("geometry_type", fc.GeometryType),
		zap.String("crs", fc.CRS.String()),
	)

	if len(fc.Features) == 0 {
		return fc, geoerr.Errorf(geoerr.EmptyDataset, stage, "dataset: %s has no records", fc.Source)
	}
	return fc, nil
}

// readRecords streams every record of the shapefile into fc. go-shp panics
// on some truncated records, so the loop converts panics into errors.
func readRecords(shpPath string, fc *FeatureCollection, dec *textDecoder) (err error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return eris.Wrapf(err, "dataset: open shapefile %s", filepath.Base(shpPath))
	}
	defer func() { _ = reader.Close() }()

	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("dataset: malformed shapefile record: %v", r)
		}
	}()

	fc.GeometryType = shapeTypeName(reader.GeometryType)

	shpFields := reader.Fields()
	fc.Fields = make([]Field, len(shpFields))
	for i, f := range shpFields {
		fc.Fields[i] = toField(f)
	}

	rows := reader.AttributeCount()
	for reader.Next() {
		idx, shape := reader.Shape()
		if idx >= rows {
			return eris.Errorf("dataset: record %d has no attribute row (table has %d)", idx, rows)
		}

		g, convErr := shapeToGeometry(shape)
		if convErr != nil {
			return eris.Wrapf(convErr, "dataset: record %d", idx)
		}

		props := make(map[string]any, len(fc.Fields))
		for i, f := range fc.Fields {
			props[f.Name] = parseValue(f, reader.ReadAttribute(idx, i), dec)
		}

		fc.Features = append(fc.Features, Feature{
			Index:      len(fc.Features),
			Geometry:   g,
			Properties: props,
		})
	}

	if rerr := reader.Err(); rerr != nil {
		return eris.Wrap(rerr, "dataset: read shapefile")
	}
	return nil
}

// resolveBundle finds the sidecars next to shpPath, matching the base name
// case-insensitively, and renames them to lower-case extensions with the
// geometry file's exact stem so the shapefile reader can open them.
func resolveBundle(shpPath string) (bundle, error) {
	dir := filepath.Dir(shpPath)
	ext := filepath.Ext(shpPath)
	stem := strings.TrimSuffix(filepath.Base(shpPath), ext)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return bundle{}, geoerr.New(geoerr.UnreadableDataset, stage, eris.Wrap(err, "dataset: list bundle dir"))
	}

	found := map[string]string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		eext := filepath.Ext(name)
		if !strings.EqualFold(strings.TrimSuffix(name, eext), stem) {
			continue
		}
		lower := strings.ToLower(eext)
		// Prefer the exact-case sibling when several differ only by case.
		if prev, ok := found[lower]; ok && strings.TrimSuffix(prev, filepath.Ext(prev)) == stem {
			continue
		}
		found[lower] = name
	}

	b := bundle{}
	canonical := filepath.Join(dir, stem+".shp")
	if shpPath != canonical {
		if err := os.Rename(shpPath, canonical); err != nil {
			return bundle{}, geoerr.New(geoerr.UnreadableDataset, stage, eris.Wrap(err, "dataset: normalize .shp name"))
		}
	}
	b.shp = canonical

	for _, side := range []struct {
		ext      string
		dst      *string
		required bool
	}{
		{".shx", &b.shx, true},
		{".dbf", &b.dbf, true},
		{".prj", &b.prj, false},
		{".cpg", &b.cpg, false},
	} {
		name, ok := found[side.ext]
		if !ok {
			if side.required {
				return bundle{}, geoerr.Errorf(geoerr.UnreadableDataset, stage,
					"dataset: missing required sidecar %s%s", stem, side.ext)
			}
			continue
		}
		want := filepath.Join(dir, stem+side.ext)
		if got := filepath.Join(dir, name); got != want {
			if err := os.Rename(got, want); err != nil {
				return bundle{}, geoerr.New(geoerr.UnreadableDataset, stage,
					eris.Wrapf(err, "dataset: normalize %s name", side.ext))
			}
		}
		*side.dst = want
	}

	return b, nil
}

// indexRecordCount reads the record count from the .shx header: a 100-byte
// header whose big-endian word at offset 24 is the file length in 16-bit
// words, followed by one 8-byte entry per record.
func indexRecordCount(shxPath string) (int, error) {
	f, err := os.Open(shxPath)
	if err != nil {
		return 0, eris.Wrap(err, "dataset: open .shx")
	}
	defer f.Close() //nolint:errcheck

	header := make([]byte, 100)
	if _, err := io.ReadFull(f, header); err != nil {
		return 0, eris.Wrap(err, "dataset: read .shx header")
	}
	if code := binary.BigEndian.Uint32(header[0:4]); code != 9994 {
		return 0, eris.Errorf("dataset: .shx has bad file code %d", code)
	}

	words := int64(binary.BigEndian.Uint32(header[24:28]))
	body := words*2 - 100
	if body < 0 || body%8 != 0 {
		return 0, eris.Errorf("dataset: .shx length %d is not a whole number of records", words*2)
	}
	return int(body / 8), nil
}

// checkDBFHeader verifies the attribute table has a complete dBASE header.
func checkDBFHeader(dbfPath string) error {
	f, err := os.Open(dbfPath)
	if err != nil {
		return eris.Wrap(err, "dataset: open .dbf")
	}
	defer f.Close() //nolint:errcheck

	header := make([]byte, 32)
	if _, err := io.ReadFull(f, header); err != nil {
		return eris.Wrap(err, "dataset: read .dbf header")
	}
	headerLen := binary.LittleEndian.Uint16(header[8:10])
	recordLen := binary.LittleEndian.Uint16(header[10:12])
	if headerLen < 33 || recordLen == 0 {
		return eris.Errorf("dataset: .dbf header is malformed (header %d bytes, record %d bytes)", headerLen, recordLen)
	}
	return nil
}

func shapeTypeName(t shp.ShapeType) string {
	switch t {
	case shp.NULL:
		return "Null"
	case shp.POINT, shp.POINTZ, shp.POINTM:
		return "Point"
	case shp.MULTIPOINT, shp.MULTIPOINTZ, shp.MULTIPOINTM:
		return "MultiPoint"
	case shp.POLYLINE, shp.POLYLINEZ, shp.POLYLINEM:
		return "LineString"
	case shp.POLYGON, shp.POLYGONZ, shp.POLYGONM:
		return "Polygon"
	case shp.MULTIPATCH:
		return "MultiPatch"
	}
	return fmt.Sprintf("ShapeType(%d)", t)
}

// chooseLabel picks preferred when present, else the first field.
func chooseLabel(fields []Field, preferred string) string {
	if len(fields) == 0 {
		return ""
	}
	for _, f := range fields {
		if preferred != "" && f.Name == preferred {
			return f.Name
		}
	}
	return fields[0].Name
}
